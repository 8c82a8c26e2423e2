package extraction

import (
	"context"
	"encoding/json"
	"math"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"finreview/internal/domain"
	"finreview/internal/llm"
	"finreview/internal/metrics"
	"finreview/internal/port"
)

// Flags attached to records whose extraction did not go cleanly.
const (
	FlagExtractionFailed = "AI extraction failed"
	FlagModelRefusal     = "AI model refusal"
	FlagManualReview     = "Manual review required"
	FlagSchemaWarnings   = "Data validation warnings - manual review recommended"
)

// LowConfidenceThreshold is the field confidence below which a value is
// flagged for confirmation.
const LowConfidenceThreshold = 0.7

const defaultRecordConfidence = 0.5

// LLMExtractor reads form images with a vision-capable language model.
type LLMExtractor struct {
	completer port.Completer
}

// NewLLMExtractor creates an LLMExtractor backed by completer.
func NewLLMExtractor(completer port.Completer) *LLMExtractor {
	return &LLMExtractor{completer: completer}
}

type payload struct {
	ApplicantIncome []struct {
		Occupation            text   `json:"occupation"`
		GrossMonthlyIncomeSGD amount `json:"grossMonthlyIncomeSGD"`
		PeriodOfEmployment    text   `json:"periodOfEmployment"`
	} `json:"applicantIncome"`
	HouseholdIncome []struct {
		Name                    text   `json:"name"`
		RelationshipToApplicant text   `json:"relationshipToApplicant"`
		Occupation              text   `json:"occupation"`
		GrossMonthlyIncomeSGD   amount `json:"grossMonthlyIncomeSGD"`
	} `json:"householdIncome"`
	OtherIncomeSources []struct {
		Description text   `json:"description"`
		AmountSGD   amount `json:"amountSGD"`
	} `json:"otherIncomeSources"`
	Personal *struct {
		ApplicantName text `json:"applicantName"`
		NRIC          text `json:"nric"`
		Address       text `json:"address"`
		PhoneNumber   text `json:"phoneNumber"`
		Email         text `json:"email"`
	} `json:"personal"`
	FinancialSituationNote text               `json:"financialSituationNote"`
	Flags                  []string           `json:"flags"`
	Confidence             *float64           `json:"confidence"`
	ConfidencePerField     map[string]float64 `json:"confidence_per_field"`
	SourcePerField         map[string]string  `json:"source_per_field"`
}

// Extract implements port.Extractor.
func (e *LLMExtractor) Extract(ctx context.Context, input port.ExtractInput) domain.Outcome[*domain.FinancialRecord] {
	out := e.extract(ctx, input)
	metrics.Extractions.WithLabelValues(string(out.Status)).Inc()
	return out
}

func (e *LLMExtractor) extract(ctx context.Context, input port.ExtractInput) domain.Outcome[*domain.FinancialRecord] {
	resp, err := e.completer.Complete(ctx, port.CompletionRequest{
		Purpose:     "extraction",
		System:      systemPrompt,
		Prompt:      buildPrompt(),
		Images:      []port.Image{{Data: input.Data, MediaType: input.ContentType}},
		MaxTokens:   8192,
		Temperature: 0.1,
		JSON:        true,
	})
	if err != nil {
		zap.L().Error("form extraction failed", zap.String("file", input.Filename), zap.Error(err))
		return domain.Failed(FailedRecord(false), eris.Wrap(err, "extraction: complete"))
	}
	if resp.Refused {
		zap.L().Warn("model refused form extraction", zap.String("file", input.Filename))
		return domain.Failed(FailedRecord(true), eris.New("extraction: model refused"))
	}

	raw, ok := llm.ExtractJSON(resp.Text)
	if !ok {
		return domain.Failed(FailedRecord(false), eris.New("extraction: no JSON in response"))
	}
	var p payload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return domain.Failed(FailedRecord(false), eris.Wrap(err, "extraction: decode response"))
	}

	rec := buildRecord(&p)

	violations, err := checkSchema(raw)
	if err != nil {
		zap.L().Warn("schema check could not run", zap.Error(err))
	}
	if len(violations) > 0 {
		zap.L().Warn("extraction output does not match schema",
			zap.String("file", input.Filename), zap.Strings("violations", violations))
		rec.Flags = appendUnique(rec.Flags, FlagSchemaWarnings)
		return domain.Degraded(rec, eris.New("extraction: schema violations"), violations...)
	}
	return domain.Succeeded(rec)
}

// FailedRecord returns the empty record used when extraction produced
// nothing usable.
func FailedRecord(refused bool) *domain.FinancialRecord {
	rec := domain.NewFinancialRecord()
	rec.Confidence = 0
	if refused {
		rec.FinancialSituationNote = "Model refused to process - manual review required"
		rec.Flags = []string{FlagModelRefusal, FlagManualReview}
	} else {
		rec.FinancialSituationNote = "Error processing form - manual review required"
		rec.Flags = []string{FlagExtractionFailed, FlagManualReview}
	}
	return rec
}

func buildRecord(p *payload) *domain.FinancialRecord {
	rec := domain.NewFinancialRecord()
	for _, e := range p.ApplicantIncome {
		rec.ApplicantIncome = append(rec.ApplicantIncome, domain.ApplicantIncome{
			Occupation:            e.Occupation.String(),
			GrossMonthlyIncomeSGD: e.GrossMonthlyIncomeSGD.value,
			PeriodOfEmployment:    e.PeriodOfEmployment.String(),
		})
	}
	for _, e := range p.HouseholdIncome {
		rec.HouseholdIncome = append(rec.HouseholdIncome, domain.HouseholdIncome{
			Name:                    e.Name.String(),
			RelationshipToApplicant: e.RelationshipToApplicant.String(),
			Occupation:              e.Occupation.String(),
			GrossMonthlyIncomeSGD:   e.GrossMonthlyIncomeSGD.value,
		})
	}
	for _, e := range p.OtherIncomeSources {
		rec.OtherIncomeSources = append(rec.OtherIncomeSources, domain.OtherIncomeSource{
			Description: e.Description.String(),
			AmountSGD:   e.AmountSGD.value,
		})
	}
	if p.Personal != nil {
		rec.Personal = domain.PersonalInfo{
			ApplicantName: p.Personal.ApplicantName.String(),
			NRIC:          p.Personal.NRIC.String(),
			Address:       p.Personal.Address.String(),
			PhoneNumber:   p.Personal.PhoneNumber.String(),
			Email:         p.Personal.Email.String(),
		}
	}
	rec.FinancialSituationNote = p.FinancialSituationNote.String()
	if p.Flags != nil {
		rec.Flags = p.Flags
	}

	rec.Confidence = defaultRecordConfidence
	if p.Confidence != nil {
		rec.Confidence = domain.Clamp01(*p.Confidence)
	}

	perField := normalizeKeys(p.ConfidencePerField)
	sources := normalizeKeys(p.SourcePerField)
	for _, path := range rec.PopulatedPaths() {
		value, _ := rec.Get(path)
		conf := rec.Confidence
		if c, ok := perField[path.String()]; ok {
			conf = c
		}
		source := domain.SourceOCR
		if s, ok := sources[path.String()]; ok && domain.ValidFieldSources[domain.FieldSource(s)] {
			source = domain.FieldSource(s)
		}
		fc := domain.NewFieldConfidence(value, conf, source)
		if fc.Confidence < LowConfidenceThreshold {
			fc.Flags = append(fc.Flags, domain.FlagLowConfidence)
		}
		rec.SetConfidence(path, fc)
	}
	return rec
}

// normalizeKeys rewrites path keys in either form to the dotted form and
// drops keys that do not address a known field.
func normalizeKeys[V any](in map[string]V) map[string]V {
	out := make(map[string]V, len(in))
	for k, v := range in {
		p, err := domain.ParseFieldPath(k)
		if err != nil {
			continue
		}
		out[p.String()] = v
	}
	return out
}

func appendUnique(list []string, s string) []string {
	for _, v := range list {
		if v == s {
			return list
		}
	}
	return append(list, s)
}

// text decodes a string field that the model may have sent as a number or
// null.
type text string

func (t *text) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*t = text(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err == nil {
		*t = text(n.String())
	}
	return nil
}

func (t text) String() string { return string(t) }

// amount decodes a monetary field sent as a number, a formatted string such
// as "$2,500", or null.
type amount struct {
	value *float64
}

func (a *amount) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err == nil {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil
		}
		a.value = &f
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return nil
	}
	parsed, err := domain.ParseAmount(s)
	if err != nil {
		zap.L().Debug("ignoring unparsable amount", zap.String("value", s))
		return nil
	}
	a.value = parsed
	return nil
}
