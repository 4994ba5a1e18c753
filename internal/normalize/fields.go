package normalize

import (
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/jonathan/job-extractor/internal/locate"
	"github.com/jonathan/job-extractor/internal/types"
)

// Normalized holds the cleaned field values for one record.
type Normalized struct {
	Title            types.Field
	CompanyName      types.Field
	CompanyURL       types.Field
	Description      types.Field
	Location         types.Field
	PostedAtRaw      types.Field
	PostedAtResolved types.PostedDate
	ApplicantCount   types.Field
}

func textField(r locate.Result) types.Field {
	if !r.Found {
		return types.Missing()
	}
	return types.Found(Text(r.Value))
}

// Fields cleans located values. Descriptions keep paragraph breaks; every
// other field is collapsed to one line. The posted-at text is kept as found,
// and resolved against retrievedAt.
func Fields(located locate.Fields, retrievedAt time.Time) Normalized {
	n := Normalized{
		Title:          textField(located.Title),
		CompanyName:    textField(located.CompanyName),
		CompanyURL:     textField(located.CompanyURL),
		Location:       textField(located.Location),
		PostedAtRaw:    textField(located.PostedAt),
		ApplicantCount: textField(located.Applicants),
	}

	if located.Description.Found {
		n.Description = types.Found(Description(located.Description.Value))
	}

	if n.PostedAtRaw.OK() {
		t, err := ParseDate(n.PostedAtRaw.Value, retrievedAt)
		var malformed *MalformedDateError
		switch {
		case err == nil:
			n.PostedAtResolved = types.ResolvedDate(t)
		case errors.As(err, &malformed):
			log.Debug().Str("raw", malformed.Raw).Msg("posting date unresolvable")
			n.PostedAtResolved = types.UnresolvableDate()
		}
	}
	return n
}
