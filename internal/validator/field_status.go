package validator

import (
	"finreview/internal/domain"
)

// FieldValidationStatus is the reviewer-facing state of one field.
type FieldValidationStatus string

const (
	FieldStatusValid       FieldValidationStatus = "valid"
	FieldStatusInvalid     FieldValidationStatus = "invalid"
	FieldStatusUnsure      FieldValidationStatus = "unsure"
	FieldStatusUnvalidated FieldValidationStatus = "unvalidated"
)

// FieldStatus represents the computed validation state for a single field path.
type FieldStatus struct {
	Label      string                `json:"label"`
	Status     FieldValidationStatus `json:"status"`
	Confidence float64               `json:"confidence"`
	Messages   []string              `json:"messages"`
	Overridden bool                  `json:"overridden"`
}

// ComputeFieldStatuses derives per-field statuses for every populated path of
// a record from its stored verdicts and confidence scores. Fields listed in
// overrides are reported invalid but marked as accepted by the reviewer.
func ComputeFieldStatuses(
	rec *domain.FinancialRecord,
	threshold float64,
	overrides map[string]string,
) map[string]*FieldStatus {
	statuses := make(map[string]*FieldStatus)

	for _, p := range rec.PopulatedPaths() {
		key := p.String()
		fs := &FieldStatus{Label: p.DisplayName(), Messages: []string{}}
		conf, hasConf := rec.ConfidenceAt(p)
		if hasConf {
			fs.Confidence = conf.Confidence
		} else {
			fs.Confidence = rec.Confidence
		}

		v, validated := rec.ValidationAt(p)
		switch {
		case validated && !v.IsValid:
			fs.Status = FieldStatusInvalid
			fs.Messages = append(fs.Messages, v.Suggestions...)
			_, fs.Overridden = overrides[key]
		case validated && (v.RequiresReview || fs.Confidence < threshold):
			fs.Status = FieldStatusUnsure
			fs.Messages = append(fs.Messages, v.Suggestions...)
		case validated:
			fs.Status = FieldStatusValid
		case fs.Confidence < threshold:
			fs.Status = FieldStatusUnsure
		default:
			fs.Status = FieldStatusUnvalidated
		}
		statuses[key] = fs
	}

	return statuses
}
