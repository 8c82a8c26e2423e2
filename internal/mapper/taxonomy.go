package mapper

import (
	"fmt"
	"strings"

	"finreview/internal/domain"
)

// Mapping assigns one text fragment to a form field.
type Mapping struct {
	FieldName     string         `json:"fieldName"`
	Section       domain.Section `json:"section,omitempty"`
	ExtractedText string         `json:"extractedText"`
	Confidence    float64        `json:"confidence"`
}

// MappingResult is the output of a classifier.
type MappingResult struct {
	Mappings     []Mapping `json:"mappings"`
	UnmappedText []string  `json:"unmappedText"`
	Confidence   float64   `json:"confidence"`
}

// SectionFor returns the first section, in document order, whose taxonomy
// contains field.
func SectionFor(field string) (domain.Section, bool) {
	for _, s := range domain.Sections {
		if inSection(s, field) {
			return s, true
		}
	}
	return "", false
}

// resolveSection picks the section a mapping targets. An explicit section is
// honoured when it actually holds the field.
func resolveSection(m Mapping) (domain.Section, bool) {
	if m.Section != "" && inSection(m.Section, m.FieldName) {
		return m.Section, true
	}
	return SectionFor(m.FieldName)
}

func inSection(s domain.Section, field string) bool {
	for _, f := range domain.SectionFields[s] {
		if f == field {
			return true
		}
	}
	return false
}

// describeTaxonomy renders the field taxonomy for prompts.
func describeTaxonomy() string {
	var b strings.Builder
	for _, s := range domain.Sections {
		fmt.Fprintf(&b, "- %s (%s): %s\n", domain.SectionLabel(s), s, strings.Join(domain.SectionFields[s], ", "))
	}
	return b.String()
}
