package validator

import "finreview/internal/domain"

// RuleKind distinguishes how a rule checks a value.
type RuleKind string

const (
	RuleKindPattern RuleKind = "pattern"
	RuleKindEnum    RuleKind = "enum"
)

// Rule is a deterministic format check for one field type.
type Rule interface {
	FieldType() string
	Kind() RuleKind
	Message() string
	Check(value string) domain.ValidationResult
}

// RuleInfo describes a registered rule for API listings.
type RuleInfo struct {
	FieldType     string   `json:"field_type"`
	Kind          RuleKind `json:"kind"`
	Pattern       string   `json:"pattern,omitempty"`
	AllowedValues []string `json:"allowed_values,omitempty"`
	Message       string   `json:"message"`
}
