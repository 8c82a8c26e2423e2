package validator

import (
	"regexp"
	"strings"

	"finreview/internal/domain"
)

// Field types understood by the rule validator.
const (
	TypeNRIC         = "nric"
	TypeEmail        = "email"
	TypePhone        = "phone"
	TypePostalCode   = "postalCode"
	TypeIncome       = "income"
	TypeRelationship = "relationship"
)

// patternRule matches the whole value against a regular expression.
type patternRule struct {
	fieldType string
	re        *regexp.Regexp
	message   string
}

func (r *patternRule) FieldType() string { return r.fieldType }
func (r *patternRule) Kind() RuleKind    { return RuleKindPattern }
func (r *patternRule) Message() string   { return r.message }

func (r *patternRule) Check(value string) domain.ValidationResult {
	if r.re.MatchString(strings.TrimSpace(value)) {
		return domain.ValidationResult{
			IsValid:     true,
			Confidence:  1.0,
			Flags:       []string{},
			Suggestions: []string{},
			Method:      domain.MethodRules,
		}
	}
	return domain.ValidationResult{
		IsValid:        false,
		Confidence:     0.2,
		Flags:          []string{domain.FlagFormatError},
		Suggestions:    []string{r.message},
		RequiresReview: true,
		Method:         domain.MethodRules,
	}
}

// minEnumFragment is the shortest value accepted as an abbreviation of an
// allowed value.
const minEnumFragment = 3

// enumRule accepts values that contain an allowed value, or abbreviate one
// with at least minEnumFragment characters.
type enumRule struct {
	fieldType string
	allowed   []string
	message   string
}

func (r *enumRule) FieldType() string { return r.fieldType }
func (r *enumRule) Kind() RuleKind    { return RuleKindEnum }
func (r *enumRule) Message() string   { return r.message }

func (r *enumRule) Check(value string) domain.ValidationResult {
	v := strings.ToLower(strings.TrimSpace(value))
	for _, a := range r.allowed {
		if strings.Contains(v, a) || (len(v) >= minEnumFragment && strings.Contains(a, v)) {
			return domain.ValidationResult{
				IsValid:     true,
				Confidence:  0.9,
				Flags:       []string{},
				Suggestions: []string{},
				Method:      domain.MethodRules,
			}
		}
	}
	return domain.ValidationResult{
		IsValid:        false,
		Confidence:     0.3,
		Flags:          []string{domain.FlagInvalidValue},
		Suggestions:    []string{r.message, "Allowed values: " + strings.Join(r.allowed, ", ")},
		RequiresReview: true,
		Method:         domain.MethodRules,
	}
}

func builtinRules() []Rule {
	return []Rule{
		&patternRule{TypeNRIC, regexp.MustCompile(`^[STFG]\d{7}[A-Z]$`), "NRIC must be in format S1234567A"},
		&patternRule{TypeEmail, regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`), "Invalid email format"},
		&patternRule{TypePhone, regexp.MustCompile(`^[689]\d{7}$`), "Phone number must be 8 digits starting with 6, 8, or 9"},
		&patternRule{TypePostalCode, regexp.MustCompile(`^\d{6}$`), "Postal code must be 6 digits"},
		&patternRule{TypeIncome, regexp.MustCompile(`^\d+(\.\d{1,2})?$`), "Income must be a valid number"},
		&enumRule{
			fieldType: TypeRelationship,
			allowed:   []string{"father", "mother", "spouse", "sibling", "child", "partner", "other"},
			message:   "Must be a valid family relationship",
		},
	}
}

// FieldTypeFor maps a record field name to its rule type. Fields without a
// format rule map to "".
func FieldTypeFor(field string) string {
	switch field {
	case domain.FieldGrossMonthlyIncome, domain.FieldAmount,
		domain.FieldTotalHouseholdIncome, domain.FieldMonthlyExpenses:
		return TypeIncome
	case domain.FieldRelationship:
		return TypeRelationship
	case domain.FieldNRIC:
		return TypeNRIC
	case domain.FieldEmail:
		return TypeEmail
	case domain.FieldPhoneNumber:
		return TypePhone
	}
	return ""
}
