package extraction

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"finreview/internal/domain"
	"finreview/internal/port"
)

// FlagDisagreement marks a field the two extractors read differently.
const FlagDisagreement = "extractor disagreement"

// MergeExtractor runs two extractors in parallel and reconciles their
// records field by field.
type MergeExtractor struct {
	primary   port.Extractor
	secondary port.Extractor
}

// NewMergeExtractor creates a MergeExtractor from primary and secondary
// extractors.
func NewMergeExtractor(primary, secondary port.Extractor) *MergeExtractor {
	return &MergeExtractor{primary: primary, secondary: secondary}
}

// Extract implements port.Extractor.
func (m *MergeExtractor) Extract(ctx context.Context, input port.ExtractInput) domain.Outcome[*domain.FinancialRecord] {
	var p, s domain.Outcome[*domain.FinancialRecord]

	var g errgroup.Group
	g.Go(func() error {
		p = m.primary.Extract(ctx, input)
		return nil
	})
	g.Go(func() error {
		s = m.secondary.Extract(ctx, input)
		return nil
	})
	_ = g.Wait()

	switch {
	case !p.Usable() && !s.Usable():
		return domain.Failed(p.Value, eris.Errorf("both extractors failed: primary: %v; secondary: %v", p.Err, s.Err))
	case !p.Usable():
		zap.L().Warn("primary extractor failed, using secondary only", zap.Error(p.Err))
		return domain.Degraded(s.Value, p.Err, append([]string{"primary extractor failed"}, s.Notes...)...)
	case !s.Usable():
		zap.L().Warn("secondary extractor failed, using primary only", zap.Error(s.Err))
		return domain.Degraded(p.Value, s.Err, append([]string{"secondary extractor failed"}, p.Notes...)...)
	}

	merged := MergeRecords(p.Value, s.Value)
	if p.Status == domain.OutcomeDegraded || s.Status == domain.OutcomeDegraded {
		err := p.Err
		if err == nil {
			err = s.Err
		}
		return domain.Degraded(merged, err, append(p.Notes, s.Notes...)...)
	}
	return domain.Succeeded(merged)
}

// MergeRecords reconciles two readings of the same form. For each repeating
// section the reading with more entries wins outright; remaining fields are
// merged path by path, keeping the primary value on disagreement.
func MergeRecords(primary, secondary *domain.FinancialRecord) *domain.FinancialRecord {
	out := primary.Clone()
	for _, section := range domain.Sections {
		if section.Repeating() && secondary.EntryCountRaw(section) > primary.EntryCountRaw(section) {
			takeSection(out, secondary, section)
			continue
		}
		for _, path := range out.Paths() {
			if path.Section == section {
				mergeField(out, secondary, path)
			}
		}
	}

	for _, f := range secondary.Flags {
		out.Flags = appendUnique(out.Flags, f)
	}
	out.Confidence = (primary.Confidence + secondary.Confidence) / 2
	return out
}

func takeSection(out, src *domain.FinancialRecord, section domain.Section) {
	switch section {
	case domain.SectionApplicantIncome:
		out.ApplicantIncome = src.Clone().ApplicantIncome
	case domain.SectionHouseholdIncome:
		out.HouseholdIncome = src.Clone().HouseholdIncome
	case domain.SectionOtherIncome:
		out.OtherIncomeSources = src.Clone().OtherIncomeSources
	}
	for key := range out.FieldConfidence {
		if p, err := domain.ParseFieldPath(key); err == nil && p.Section == section {
			delete(out.FieldConfidence, key)
		}
	}
	for _, p := range src.PopulatedPaths() {
		if p.Section != section {
			continue
		}
		if fc, ok := src.ConfidenceAt(p); ok {
			out.SetConfidence(p, fc)
		}
	}
}

func mergeField(out, secondary *domain.FinancialRecord, path domain.FieldPath) {
	pVal, pOK := out.Get(path)
	sVal, sOK := secondary.Get(path)
	if !sOK {
		return
	}

	if !pOK {
		if err := out.Set(path, sVal); err != nil {
			zap.L().Debug("skipping secondary value", zap.String("path", path.String()), zap.Error(err))
			return
		}
		out.SetConfidence(path, confidenceAt(secondary, path, sVal))
		return
	}

	fc := confidenceAt(out, path, pVal)
	if strings.EqualFold(strings.TrimSpace(pVal), strings.TrimSpace(sVal)) {
		fc.Confidence += (1 - fc.Confidence) * 0.2
		out.SetConfidence(path, fc)
		return
	}

	fc.Confidence *= 0.6
	fc.Alternatives = append(fc.Alternatives, sVal)
	fc.Flags = appendUnique(fc.Flags, FlagDisagreement)
	if fc.Confidence < LowConfidenceThreshold {
		fc.Flags = appendUnique(fc.Flags, domain.FlagLowConfidence)
	}
	out.SetConfidence(path, fc)
}

func confidenceAt(rec *domain.FinancialRecord, path domain.FieldPath, value string) domain.FieldConfidence {
	if fc, ok := rec.ConfidenceAt(path); ok {
		fc.Flags = append([]string{}, fc.Flags...)
		return fc
	}
	return domain.NewFieldConfidence(value, rec.Confidence, domain.SourceOCR)
}
