package mapper

import (
	"strings"

	"go.uber.org/zap"

	"finreview/internal/domain"
)

// Enhance applies mappings to a copy of rec. Fields of repeating sections
// land in the first entry of their section, which is created when absent;
// personal and financial fields are set directly. Mapped values overwrite
// what was there and are recorded as inferred.
func Enhance(rec *domain.FinancialRecord, mappings []Mapping) *domain.FinancialRecord {
	out := rec.Clone()
	for _, m := range mappings {
		path, ok := TargetPath(m)
		if !ok {
			continue
		}

		value := strings.TrimSpace(m.ExtractedText)
		if path.IsAmount() {
			value = trimPeriodSuffix(value)
		}
		if value == "" {
			continue
		}
		prev, had := out.Get(path)
		if err := out.Set(path, value); err != nil {
			zap.L().Debug("skipping mapping", zap.String("path", path.String()), zap.String("text", value), zap.Error(err))
			continue
		}

		current, _ := out.Get(path)
		fc := domain.NewFieldConfidence(current, m.Confidence, domain.SourceInferred)
		fc.OriginalText = m.ExtractedText
		if had && prev != current {
			fc.Alternatives = []string{prev}
		}
		out.SetConfidence(path, fc)
		out.ClearValidation(path)
	}
	return out
}

// TargetPath returns the record path a mapping writes to.
func TargetPath(m Mapping) (domain.FieldPath, bool) {
	section, ok := resolveSection(m)
	if !ok {
		return domain.FieldPath{}, false
	}
	if section.Repeating() {
		return domain.EntryPath(section, 0, m.FieldName), true
	}
	return domain.SingularPath(section, m.FieldName), true
}

var periodSuffixes = []string{"per month", "/month", "a month", "monthly", "/mth", "pm"}

func trimPeriodSuffix(s string) string {
	lower := strings.ToLower(s)
	for _, suffix := range periodSuffixes {
		if strings.HasSuffix(lower, suffix) {
			return strings.TrimSpace(s[:len(s)-len(suffix)])
		}
	}
	return s
}
