// Package schemas validates LLM responses against embedded JSON Schemas.
package schemas

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed fit_score.schema.json
var fitScoreJSON string

var fitScore = mustCompile("fit_score", fitScoreJSON)

// FitScore returns the schema fit-scoring responses must satisfy.
func FitScore() *Schema {
	return fitScore
}

// Schema is a compiled JSON Schema, safe for concurrent use.
type Schema struct {
	name   string
	schema *gojsonschema.Schema
}

// Compile parses schema content. name identifies the schema in errors.
func Compile(name, content string) (*Schema, error) {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(content))
	if err != nil {
		return nil, &SchemaLoadError{Name: name, Cause: err}
	}
	return &Schema{name: name, schema: s}, nil
}

func mustCompile(name, content string) *Schema {
	s, err := Compile(name, content)
	if err != nil {
		panic(err)
	}
	return s
}

// Name returns the schema's name.
func (s *Schema) Name() string { return s.name }

// Validate checks a JSON document. It returns a *DocumentError when doc is
// not JSON and a *ValidationError listing every violation otherwise.
func (s *Schema) Validate(doc string) error {
	result, err := s.schema.Validate(gojsonschema.NewStringLoader(doc))
	if err != nil {
		return &DocumentError{Schema: s.name, Cause: err}
	}
	if result.Valid() {
		return nil
	}

	verr := &ValidationError{Schema: s.name, Errors: make([]FieldError, 0, len(result.Errors()))}
	for _, desc := range result.Errors() {
		field := desc.Field()
		if field == "" {
			field = "(root)"
		}
		verr.Errors = append(verr.Errors, FieldError{Field: field, Message: desc.Description()})
	}
	return verr
}

// FieldError is one violation at a field path.
type FieldError struct {
	Field   string
	Message string
}

// ValidationError lists the violations of a document.
type ValidationError struct {
	Schema string
	Errors []FieldError
}

// Error renders on one line so it fits a log field or a table cell.
func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		parts[i] = fe.Field + ": " + fe.Message
	}
	return fmt.Sprintf("%s validation failed: %s", e.Schema, strings.Join(parts, "; "))
}

// DocumentError means the document could not be parsed as JSON.
type DocumentError struct {
	Schema string
	Cause  error
}

func (e *DocumentError) Error() string {
	return fmt.Sprintf("%s: malformed JSON document: %v", e.Schema, e.Cause)
}

func (e *DocumentError) Unwrap() error {
	return e.Cause
}

// SchemaLoadError means the schema itself is invalid.
type SchemaLoadError struct {
	Name  string
	Cause error
}

func (e *SchemaLoadError) Error() string {
	return fmt.Sprintf("failed to load schema %s: %v", e.Name, e.Cause)
}

func (e *SchemaLoadError) Unwrap() error {
	return e.Cause
}
