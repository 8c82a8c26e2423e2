package mapper

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"finreview/internal/domain"
)

// SmartMapper reconciles loose text fragments with the form taxonomy. It is
// a best-effort enhancement: every failure degrades to leaving all fragments
// unmapped.
type SmartMapper struct {
	classifiers []Classifier
}

// New creates a SmartMapper that tries classifiers in order.
func New(classifiers ...Classifier) *SmartMapper {
	return &SmartMapper{classifiers: classifiers}
}

// Map classifies fragments. The first classifier that succeeds wins; a
// fallback classifier's answer is reported as degraded.
func (m *SmartMapper) Map(ctx context.Context, fragments []string) domain.Outcome[MappingResult] {
	if len(fragments) == 0 {
		return domain.Succeeded(MappingResult{Mappings: []Mapping{}, UnmappedText: []string{}})
	}

	var firstErr error
	for i, c := range m.classifiers {
		res, err := c.Classify(ctx, fragments)
		if err == nil && res == nil {
			err = eris.New("mapper: classifier returned no result")
		}
		if err != nil {
			zap.L().Warn("mapping classifier failed", zap.String("classifier", c.Name()), zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
			continue
		}

		result := reconcile(*res, fragments)
		if i == 0 {
			return domain.Succeeded(result)
		}
		return domain.Degraded(result, firstErr, "mapped by "+c.Name()+" classifier")
	}

	if firstErr == nil {
		firstErr = eris.New("mapper: no classifier configured")
	}
	return domain.Failed(MappingResult{
		Mappings:     []Mapping{},
		UnmappedText: append([]string{}, fragments...),
		Confidence:   0,
	}, firstErr)
}

// reconcile drops mappings to unknown fields and makes sure every input
// fragment is either mapped or listed as unmapped.
func reconcile(res MappingResult, fragments []string) MappingResult {
	out := MappingResult{
		Mappings:     []Mapping{},
		UnmappedText: []string{},
		Confidence:   domain.Clamp01(res.Confidence),
	}
	seen := make(map[string]bool)

	for _, mp := range res.Mappings {
		section, ok := resolveSection(mp)
		if !ok {
			zap.L().Debug("dropping mapping to unknown field", zap.String("field", mp.FieldName))
			out.UnmappedText = append(out.UnmappedText, mp.ExtractedText)
			seen[norm(mp.ExtractedText)] = true
			continue
		}
		mp.Section = section
		mp.Confidence = domain.Clamp01(mp.Confidence)
		out.Mappings = append(out.Mappings, mp)
		seen[norm(mp.ExtractedText)] = true
	}
	for _, u := range res.UnmappedText {
		if !seen[norm(u)] {
			out.UnmappedText = append(out.UnmappedText, u)
			seen[norm(u)] = true
		}
	}
	for _, f := range fragments {
		if !seen[norm(f)] {
			out.UnmappedText = append(out.UnmappedText, f)
			seen[norm(f)] = true
		}
	}
	return out
}

func norm(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
