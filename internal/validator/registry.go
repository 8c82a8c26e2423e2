package validator

import (
	"sort"
	"strings"

	"finreview/internal/domain"
)

// Registry maps field types to format rules.
type Registry struct {
	rules map[string]Rule
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{rules: make(map[string]Rule)}
}

// DefaultRegistry returns a Registry holding the built-in rules.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	for _, rule := range builtinRules() {
		r.Register(rule)
	}
	return r
}

// Register adds a rule to the registry, replacing any rule for the same type.
func (r *Registry) Register(rule Rule) {
	r.rules[rule.FieldType()] = rule
}

// Get returns the rule for a field type, or nil if not found.
func (r *Registry) Get(fieldType string) Rule {
	return r.rules[fieldType]
}

// All returns all registered rules ordered by field type.
func (r *Registry) All() []Rule {
	out := make([]Rule, 0, len(r.rules))
	for _, rule := range r.rules {
		out = append(out, rule)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FieldType() < out[j].FieldType() })
	return out
}

// Describe lists the registered rules.
func (r *Registry) Describe() []RuleInfo {
	rules := r.All()
	out := make([]RuleInfo, 0, len(rules))
	for _, rule := range rules {
		info := RuleInfo{FieldType: rule.FieldType(), Kind: rule.Kind(), Message: rule.Message()}
		switch v := rule.(type) {
		case *patternRule:
			info.Pattern = v.re.String()
		case *enumRule:
			info.AllowedValues = append([]string{}, v.allowed...)
		}
		out = append(out, info)
	}
	return out
}

// ValidateFormat checks value against the rule for fieldType. Empty values
// are always invalid; unknown field types pass with reduced confidence.
func (r *Registry) ValidateFormat(value, fieldType string) domain.ValidationResult {
	if strings.TrimSpace(value) == "" {
		return domain.ValidationResult{
			IsValid:        false,
			Confidence:     1.0,
			Flags:          []string{domain.FlagEmptyField},
			Suggestions:    []string{"Field is required"},
			RequiresReview: true,
			Method:         domain.MethodRules,
		}
	}

	rule := r.Get(fieldType)
	if rule == nil {
		return domain.ValidationResult{
			IsValid:     true,
			Confidence:  0.8,
			Flags:       []string{},
			Suggestions: []string{},
			Method:      domain.MethodRules,
		}
	}
	return rule.Check(value)
}
