package llm

import (
	"fmt"
	"strings"
)

// PromptSchema describes a structured JSON response requested from the LLM.
type PromptSchema struct {
	Name         string        // Schema name (e.g., "FitScore")
	Description  string        // System preamble describing the task
	Fields       []SchemaField // Expected output fields
	Instructions []string      // Extra rules appended after the schema
}

// SchemaField defines a single field in the output.
type SchemaField struct {
	Name        string // JSON field name
	Type        string // Type hint: "integer 0-100", "string"
	Description string // Description for the LLM
	Required    bool   // Whether this field is required
}

// Section is a named block of input text.
type Section struct {
	Title string
	Body  string
}

// BuildPrompt constructs the LLM prompt from schema and input sections.
func BuildPrompt(schema PromptSchema, sections ...Section) string {
	var sb strings.Builder

	sb.WriteString(schema.Description)
	sb.WriteString("\n\n")

	sb.WriteString("Return ONLY valid JSON matching this exact structure:\n{\n")
	for i, field := range schema.Fields {
		typeHint := field.Type
		if typeHint == "" {
			typeHint = "string"
		}
		requiredHint := ""
		if field.Required {
			requiredHint = " (required)"
		}
		sb.WriteString(fmt.Sprintf("  \"%s\": %s%s", field.Name, typeHint, requiredHint))
		if field.Description != "" {
			sb.WriteString(fmt.Sprintf(" // %s", field.Description))
		}
		if i < len(schema.Fields)-1 {
			sb.WriteString(",")
		}
		sb.WriteString("\n")
	}
	sb.WriteString("}\n\n")

	sb.WriteString("IMPORTANT:\n")
	for _, rule := range schema.Instructions {
		sb.WriteString("- " + rule + "\n")
	}
	sb.WriteString("- Return ONLY the JSON object, no markdown, no explanation, no code blocks.\n")

	for _, s := range sections {
		sb.WriteString("\n" + s.Title + ":\n\"\"\"\n")
		sb.WriteString(s.Body)
		sb.WriteString("\n\"\"\"\n")
	}

	return sb.String()
}
