package domain

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// FieldPath addresses one field of a FinancialRecord. Index is -1 for
// singular sections.
type FieldPath struct {
	Section Section `json:"section"`
	Index   int     `json:"index"`
	Field   string  `json:"field"`
}

// EntryPath builds a path into a repeating section.
func EntryPath(section Section, index int, field string) FieldPath {
	return FieldPath{Section: section, Index: index, Field: field}
}

// SingularPath builds a path into the personal or financial section.
func SingularPath(section Section, field string) FieldPath {
	return FieldPath{Section: section, Index: -1, Field: field}
}

// String returns the wire form: "applicantIncome.0.occupation",
// "personal.nric" or a bare financial field name.
func (p FieldPath) String() string {
	switch {
	case p.Section == SectionFinancial:
		return p.Field
	case p.Section.Repeating():
		return fmt.Sprintf("%s.%d.%s", p.Section, p.Index, p.Field)
	default:
		return string(p.Section) + "." + p.Field
	}
}

// BlockerKey returns the bracket form used by mandatory field checks,
// e.g. "householdIncome[1].name".
func (p FieldPath) BlockerKey() string {
	if p.Section.Repeating() {
		return fmt.Sprintf("%s[%d].%s", p.Section, p.Index, p.Field)
	}
	return p.String()
}

var bracketPath = regexp.MustCompile(`^(\w+)\[(\d+)\]\.(\w+)$`)

// ParseFieldPath accepts both the dotted and the bracket form.
func ParseFieldPath(s string) (FieldPath, error) {
	s = strings.TrimSpace(s)
	if m := bracketPath.FindStringSubmatch(s); m != nil {
		idx, _ := strconv.Atoi(m[2])
		return validatePath(EntryPath(Section(m[1]), idx, m[3]), s)
	}

	parts := strings.Split(s, ".")
	switch len(parts) {
	case 1:
		return validatePath(SingularPath(SectionFinancial, parts[0]), s)
	case 2:
		sec := Section(parts[0])
		if sec.Repeating() {
			return FieldPath{}, fmt.Errorf("%w: %q is missing an entry index", ErrInvalidFieldPath, s)
		}
		return validatePath(SingularPath(sec, parts[1]), s)
	case 3:
		idx, err := strconv.Atoi(parts[1])
		if err != nil {
			return FieldPath{}, fmt.Errorf("%w: %q", ErrInvalidFieldPath, s)
		}
		return validatePath(EntryPath(Section(parts[0]), idx, parts[2]), s)
	}
	return FieldPath{}, fmt.Errorf("%w: %q", ErrInvalidFieldPath, s)
}

func validatePath(p FieldPath, raw string) (FieldPath, error) {
	fields, ok := SectionFields[p.Section]
	if !ok {
		return FieldPath{}, fmt.Errorf("%w: unknown section in %q", ErrInvalidFieldPath, raw)
	}
	if p.Section.Repeating() && p.Index < 0 {
		return FieldPath{}, fmt.Errorf("%w: %q", ErrInvalidFieldPath, raw)
	}
	if !p.Section.Repeating() && p.Index >= 0 {
		return FieldPath{}, fmt.Errorf("%w: %q", ErrInvalidFieldPath, raw)
	}
	if fieldPosition(fields, p.Field) < 0 {
		return FieldPath{}, fmt.Errorf("%w: unknown field in %q", ErrInvalidFieldPath, raw)
	}
	return p, nil
}

// Less orders paths in document order.
func (p FieldPath) Less(q FieldPath) bool {
	if p.Section != q.Section {
		return sectionPosition(p.Section) < sectionPosition(q.Section)
	}
	if p.Index != q.Index {
		return p.Index < q.Index
	}
	fields := SectionFields[p.Section]
	return fieldPosition(fields, p.Field) < fieldPosition(fields, q.Field)
}

// IsAmount reports whether the path holds a monetary amount.
func (p FieldPath) IsAmount() bool {
	return AmountFields[p.Field]
}

var sectionLabels = map[Section]string{
	SectionApplicantIncome: "Applicant Income",
	SectionHouseholdIncome: "Household Income",
	SectionOtherIncome:     "Other Income",
	SectionPersonal:        "Personal",
}

var fieldLabels = map[string]string{
	FieldOccupation:           "Occupation",
	FieldGrossMonthlyIncome:   "Monthly Income",
	FieldPeriodOfEmployment:   "Employment Period",
	FieldName:                 "Name",
	FieldRelationship:         "Relationship",
	FieldDescription:          "Description",
	FieldAmount:               "Amount",
	FieldApplicantName:        "Applicant Name",
	FieldNRIC:                 "NRIC",
	FieldAddress:              "Address",
	FieldPhoneNumber:          "Phone Number",
	FieldEmail:                "Email",
	FieldFinancialNote:        "Financial Situation Note",
	FieldTotalHouseholdIncome: "Total Household Income",
	FieldMonthlyExpenses:      "Monthly Expenses",
}

// DisplayName returns a reviewer-facing label such as
// "Household Income 2 - Relationship".
func (p FieldPath) DisplayName() string {
	label, ok := fieldLabels[p.Field]
	if !ok {
		label = p.Field
	}
	switch {
	case p.Section == SectionFinancial:
		return label
	case p.Section.Repeating():
		return fmt.Sprintf("%s %d - %s", sectionLabels[p.Section], p.Index+1, label)
	default:
		return sectionLabels[p.Section] + " - " + label
	}
}

// SectionLabel returns the human name of a section.
func SectionLabel(s Section) string {
	if l, ok := sectionLabels[s]; ok {
		return l
	}
	return "Financial"
}

// FieldLabel returns the human name of a field.
func FieldLabel(field string) string {
	if l, ok := fieldLabels[field]; ok {
		return l
	}
	return field
}

func sectionPosition(s Section) int {
	for i, sec := range Sections {
		if sec == s {
			return i
		}
	}
	return len(Sections)
}

func fieldPosition(fields []string, f string) int {
	for i, name := range fields {
		if name == f {
			return i
		}
	}
	return -1
}
