// Package types provides type definitions for structured data used throughout the job extractor.
//
//nolint:revive // types is a standard Go package name pattern
package types

import (
	"encoding/json"
	"strings"
	"time"
)

// NotFoundText is the tabular rendering of a missing field.
const NotFoundText = "Not found"

// ErrorPrefix prefixes error annotations rendered in tabular output.
const ErrorPrefix = "Error: "

// FieldState tells whether a field carries a value, a sentinel, or an error annotation.
type FieldState int

const (
	// StateNotFound is the NotFound sentinel
	StateNotFound FieldState = iota
	// StateFound means Value holds extracted text
	StateFound
	// StateError means Value holds an error message
	StateError
)

// Field is a single extracted value. The zero value is the NotFound sentinel,
// which is distinct from a found empty string.
type Field struct {
	Value string
	State FieldState
}

// Found returns a field holding value. Blank values collapse to NotFound.
func Found(value string) Field {
	if strings.TrimSpace(value) == "" {
		return Field{}
	}
	return Field{Value: value, State: StateFound}
}

// Missing returns the NotFound sentinel.
func Missing() Field {
	return Field{}
}

// Failed returns a field annotated with an error message.
func Failed(message string) Field {
	return Field{Value: message, State: StateError}
}

// OK reports whether the field holds an extracted value.
func (f Field) OK() bool {
	return f.State == StateFound
}

// IsError reports whether the field carries an error annotation.
func (f Field) IsError() bool {
	return f.State == StateError
}

// String renders the field for tabular output.
func (f Field) String() string {
	switch f.State {
	case StateFound:
		return f.Value
	case StateError:
		return ErrorPrefix + f.Value
	default:
		return NotFoundText
	}
}

// MarshalJSON encodes NotFound as null so the key is always present.
func (f Field) MarshalJSON() ([]byte, error) {
	if f.State == StateNotFound {
		return []byte("null"), nil
	}
	return json.Marshal(f.String())
}

// UnmarshalJSON reverses MarshalJSON.
func (f *Field) UnmarshalJSON(data []byte) error {
	var s *string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch {
	case s == nil:
		*f = Missing()
	case strings.HasPrefix(*s, ErrorPrefix):
		*f = Failed(strings.TrimPrefix(*s, ErrorPrefix))
	default:
		*f = Found(*s)
	}
	return nil
}

// DateState describes the outcome of posting-date resolution.
type DateState int

const (
	// DateNotFound means no posting date text was located
	DateNotFound DateState = iota
	// DateResolved means Date holds the calendar date
	DateResolved
	// DateUnresolvable means text was found but matched no known pattern
	DateUnresolvable
)

// DateLayout is the rendering layout for resolved dates.
const DateLayout = "2006-01-02"

// PostedDate is the resolved calendar date of a posting.
type PostedDate struct {
	Date  time.Time
	State DateState
}

// ResolvedDate returns a PostedDate for t.
func ResolvedDate(t time.Time) PostedDate {
	return PostedDate{Date: t, State: DateResolved}
}

// UnresolvableDate returns the Unresolvable marker.
func UnresolvableDate() PostedDate {
	return PostedDate{State: DateUnresolvable}
}

// String renders the date for tabular output.
func (d PostedDate) String() string {
	switch d.State {
	case DateResolved:
		return d.Date.Format(DateLayout)
	case DateUnresolvable:
		return "Unresolvable"
	default:
		return NotFoundText
	}
}

// MarshalJSON encodes the date as "YYYY-MM-DD", "unresolvable" or null.
func (d PostedDate) MarshalJSON() ([]byte, error) {
	switch d.State {
	case DateResolved:
		return json.Marshal(d.Date.Format(DateLayout))
	case DateUnresolvable:
		return json.Marshal("unresolvable")
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON reverses MarshalJSON.
func (d *PostedDate) UnmarshalJSON(data []byte) error {
	var s *string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch {
	case s == nil:
		*d = PostedDate{}
	case *s == "unresolvable":
		*d = UnresolvableDate()
	default:
		t, err := time.Parse(DateLayout, *s)
		if err != nil {
			return err
		}
		*d = ResolvedDate(t)
	}
	return nil
}

// ApplicationMode is how a candidate applies to the posting.
type ApplicationMode string

const (
	// ModeEasyApply is LinkedIn's in-site application flow
	ModeEasyApply ApplicationMode = "easy_apply"
	// ModeExternalApply redirects to the employer's site
	ModeExternalApply ApplicationMode = "external_apply"
	// ModeUnknown means no apply signal was found
	ModeUnknown ApplicationMode = "unknown"
)

// Confidence grades how the application mode was established.
type Confidence string

const (
	// ConfidenceConfirmed comes from an apply button label
	ConfidenceConfirmed Confidence = "confirmed"
	// ConfidenceInferred comes from page-wide phrase search
	ConfidenceInferred Confidence = "inferred"
	// ConfidenceUnconfirmed marks a locale-based guess that may be wrong
	ConfidenceUnconfirmed Confidence = "unconfirmed"
)

// Application describes the apply flow detected on the posting.
type Application struct {
	Mode       ApplicationMode `json:"mode"`
	Confidence Confidence      `json:"confidence,omitempty"`
	Label      string          `json:"label,omitempty"` // raw button text when one was found
	Note       string          `json:"note,omitempty"`
}

// String renders the application mode for tabular output.
func (a Application) String() string {
	var s string
	switch a.Mode {
	case ModeEasyApply:
		s = "Easy Apply"
	case ModeExternalApply:
		s = "Apply"
	default:
		return NotFoundText
	}
	if a.Note != "" {
		s += " (" + a.Note + ")"
	}
	return s
}

// JobPostingRecord is the extractor's output for one URL. Every field is always
// populated, using the NotFound sentinel instead of omission.
type JobPostingRecord struct {
	SourceURL        string      `json:"source_url"`
	CompanyName      Field       `json:"company_name"`
	CompanyURL       Field       `json:"company_url"`
	JobTitle         Field       `json:"job_title"`
	JobDescription   Field       `json:"job_description"`
	Location         Field       `json:"location"`
	PostedAtRaw      Field       `json:"posted_at_raw"`
	PostedAtResolved PostedDate  `json:"posted_at_resolved"`
	ApplicantCount   Field       `json:"applicant_count"`
	Application      Application `json:"application"`
	RetrievedAt      time.Time   `json:"retrieved_at"`

	// DescriptionSource names the strategy that produced the description.
	DescriptionSource string `json:"description_source,omitempty"`
}

// Failed reports whether the record is an error record.
func (r JobPostingRecord) Failed() bool {
	return r.CompanyName.IsError()
}
