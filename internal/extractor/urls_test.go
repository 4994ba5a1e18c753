package extractor

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseURLList(t *testing.T) {
	text := `
https://www.linkedin.com/jobs/view/senior-engineer-at-acme-111/?trk=feed

https://br.linkedin.com/jobs/view/111
https://www.linkedin.com/jobs/search/?currentJobId=222&keywords=go
   https://boards.greenhouse.io/Acme/jobs/9?utm_source=x#apply
https://www.linkedin.com/jobs/view/333/
not a url
`
	got := ParseURLList(text, []string{"https://linkedin.com/jobs/view/333"})

	assert.Equal(t, []string{
		"https://www.linkedin.com/jobs/view/111/",
		"https://www.linkedin.com/jobs/view/222/",
		"https://boards.greenhouse.io/Acme/jobs/9",
		"not a url",
	}, got)
}

func TestParseURLList_Empty(t *testing.T) {
	assert.Empty(t, ParseURLList("\n  \n", nil))
}

func TestParseURLList_Idempotent(t *testing.T) {
	first := ParseURLList("https://www.linkedin.com/jobs/view/x-5?trk=1\nexample.com/a?utm_medium=m", nil)
	second := ParseURLList(first[0]+"\n"+first[1], nil)
	assert.Equal(t, first, second)
}
