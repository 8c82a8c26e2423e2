package enforcer

import (
	"finreview/internal/domain"
)

const defaultPriority = 10

// FieldPriorities orders gaps so identity and income fields surface first.
// Lower numbers are more urgent.
var FieldPriorities = map[string]int{
	domain.FieldApplicantName:      1,
	domain.FieldNRIC:               2,
	domain.FieldOccupation:         3,
	domain.FieldGrossMonthlyIncome: 4,
	domain.FieldRelationship:       5,
	domain.FieldName:               6,
}

var sectionReasons = map[domain.Section]string{
	domain.SectionApplicantIncome: "Required field for applicant income",
	domain.SectionHouseholdIncome: "Required field for household member",
	domain.SectionOtherIncome:     "Required field for other income source",
	domain.SectionPersonal:        "Required personal detail",
}

var fieldSuggestions = map[string][]string{
	domain.FieldOccupation: {
		"Check if written elsewhere in the form",
		"Look for job title or profession",
		"Consider if applicant is unemployed or retired",
	},
	domain.FieldGrossMonthlyIncome: {
		"Look for salary information",
		"Check for hourly wage that can be calculated",
		"Consider if income is zero for unemployed",
	},
	domain.FieldRelationship: {
		"Common relationships: father, mother, spouse, child, sibling",
		"Check family section for clues",
		"Look at names for relationship hints",
	},
	domain.FieldName: {
		"Check if full name is written elsewhere",
		"Look for initials that can be expanded",
		"Verify spelling of existing name",
	},
}

// criticalMarkers are substrings of a gap key that make it block under the
// conservative fallback.
var criticalMarkers = []string{domain.FieldGrossMonthlyIncome, domain.FieldName, domain.FieldOccupation}

func priorityOf(field string) int {
	if p, ok := FieldPriorities[field]; ok {
		return p
	}
	return defaultPriority
}

func suggestionsFor(field string) []string {
	if s, ok := fieldSuggestions[field]; ok {
		return append([]string{}, s...)
	}
	return []string{"Please fill in this required field"}
}

func reasonFor(section domain.Section) string {
	if r, ok := sectionReasons[section]; ok {
		return r
	}
	return "Required field"
}

// A missing income can be inferred as zero when the applicant is unemployed.
func canInfer(field string) bool {
	return field == domain.FieldGrossMonthlyIncome
}

// RulesInfo describes the enforcement rules for API clients.
type RulesInfo struct {
	MandatoryFields domain.SectionRules `json:"mandatoryFields"`
	FieldPriorities map[string]int      `json:"fieldPriorities"`
	DefaultPriority int                 `json:"defaultPriority"`
}

// Rules returns the default mandatory fields and their priorities.
func Rules() RulesInfo {
	prio := make(map[string]int, len(FieldPriorities))
	for k, v := range FieldPriorities {
		prio[k] = v
	}
	return RulesInfo{
		MandatoryFields: domain.DefaultSectionRules(),
		FieldPriorities: prio,
		DefaultPriority: defaultPriority,
	}
}
