package locate

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Selectors holds every markup hook the locators depend on. The target
// site's markup drifts, so operators can override any entry from a YAML file.
type Selectors struct {
	Title   string `yaml:"title"`
	Company string `yaml:"company"`

	DescriptionContainers []string `yaml:"description_containers"`
	SectionMarkers        []string `yaml:"section_markers"`
	DescriptionXPaths     []string `yaml:"description_xpaths"`

	MetadataContainer string   `yaml:"metadata_container"`
	LocationClasses   []string `yaml:"location_classes"`
	PostedAtClasses   []string `yaml:"posted_at_classes"`
	ApplicantClasses  []string `yaml:"applicant_classes"`
	MetadataNoise     []string `yaml:"metadata_noise"`

	ApplyButtonXPath string   `yaml:"apply_button_xpath"`
	ApplyAlternates  []string `yaml:"apply_alternates"`
	EasyApplyPhrases []string `yaml:"easy_apply_phrases"`
	ApplyPhrases     []string `yaml:"apply_phrases"`
}

// DefaultSelectors returns the selectors for LinkedIn's public and signed-in
// job views.
func DefaultSelectors() Selectors {
	return Selectors{
		Title:   "h1.top-card-layout__title, h1.topcard__title, .job-details-jobs-unified-top-card__job-title h1",
		Company: "a.topcard__org-name-link, .job-details-jobs-unified-top-card__company-name a",

		DescriptionContainers: []string{
			"#job-details",
			".jobs-description__content",
			".show-more-less-html__markup",
			".description__text",
		},
		SectionMarkers: []string{
			"About the job",
			"Job description",
			"Job Summary",
			"Responsibilities",
			"Qualifications",
			"Requirements",
			"Sobre a vaga",
			"Descrição da vaga",
			"Responsabilidades",
			"Qualificações",
			"Requisitos",
		},
		DescriptionXPaths: []string{
			`//*[@id="job-details"]/div/p`,
			`//*[@id="job-details"]//span`,
			`//div[contains(@class,"show-more-less-html__markup")]`,
			`//section[contains(@class,"description")]//div[contains(@class,"markup")]`,
			`//article`,
		},

		MetadataContainer: ".job-details-jobs-unified-top-card__primary-description-container, .jobs-unified-top-card__primary-description, .top-card-layout__second-subline",
		LocationClasses: []string{
			".job-details-jobs-unified-top-card__bullet",
			".jobs-unified-top-card__bullet",
			".topcard__flavor--bullet",
		},
		PostedAtClasses: []string{
			".posted-time-ago__text",
			".jobs-unified-top-card__posted-date",
			".job-details-jobs-unified-top-card__primary-description-container .tvm__text",
		},
		ApplicantClasses: []string{
			".num-applicants__caption",
			".jobs-unified-top-card__applicant-count",
			".job-details-jobs-unified-top-card__applicant-count",
		},
		MetadataNoise: []string{
			"Promoted",
			"Promoted by hirer",
			"Actively recruiting",
			"Responses managed off LinkedIn",
			"Promovida",
			"Recrutando ativamente",
		},

		ApplyButtonXPath: `//button[contains(@class,"jobs-apply-button")]//span`,
		ApplyAlternates: []string{
			`button[data-control-name="jobdetails_topcard_inapply"]`,
			`[data-control-name*="jobdetails_topcard"]`,
			`button[aria-label*="Easy Apply"]`,
			`button[aria-label*="Candidatura simplificada"]`,
			`button[aria-label*="Apply"]`,
			`button[aria-label*="Candidatar"]`,
			`.jobs-apply-button--top-card .artdeco-button__text`,
			`.jobs-apply-button .artdeco-button__text`,
			`.jobs-s-apply button span`,
			`[data-tracking-control-name*="apply-link"]`,
			`button.apply-button, a.apply-button`,
		},
		EasyApplyPhrases: []string{"Easy Apply", "Candidatura simplificada"},
		ApplyPhrases:     []string{"Apply", "Candidatar", "Candidatar-se"},
	}
}

// LoadSelectors returns DefaultSelectors with any entries present in the
// YAML file at path replacing the defaults. An empty path returns the defaults.
func LoadSelectors(path string) (Selectors, error) {
	sel := DefaultSelectors()
	if path == "" {
		return sel, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return sel, fmt.Errorf("failed to read selectors file: %w", err)
	}
	if err := yaml.Unmarshal(data, &sel); err != nil {
		return sel, fmt.Errorf("failed to parse selectors file %s: %w", path, err)
	}
	return sel, nil
}
