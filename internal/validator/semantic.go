package validator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"finreview/internal/domain"
	"finreview/internal/llm"
	"finreview/internal/port"
)

// Flags the semantic validator may raise. Anything else the model returns
// is discarded.
var semanticFlags = map[string]bool{
	"critical_error":         true,
	"missing_required":       true,
	"impossible_value":       true,
	"system_breaking_format": true,
}

const semanticSystemPrompt = `You validate handwritten financial-aid form fields after they were read by OCR. Be lenient.

Only mark a value invalid for:
- critical errors that make the value unusable
- impossible values (negative income, a birth year in the future, an employment period that ends after today)
- completely invalid formats that no reader could interpret
- obviously fabricated or placeholder data
- missing data in a required field
- formatting that would break downstream systems

Never flag informal phrasing, abbreviations, regional job titles, nicknames for relatives, or variations in date formats. When in doubt, the value is valid.

Respond with a single JSON object and nothing else:
{
  "isValid": true,
  "confidence": 0.9,
  "flags": [],
  "suggestions": [],
  "standardizedValue": "cleaned value",
  "requiresReview": false
}

Allowed flags: critical_error, missing_required, impossible_value, system_breaking_format.`

// SemanticInput is a single field submitted for semantic validation.
type SemanticInput struct {
	Value     string
	FieldName string
	Context   string
}

// SemanticValidator judges field plausibility with a language model. It fails
// closed: any capability problem yields an invalid verdict.
type SemanticValidator struct {
	completer port.Completer
	now       func() time.Time
}

// NewSemanticValidator creates a SemanticValidator backed by completer.
func NewSemanticValidator(completer port.Completer) *SemanticValidator {
	return &SemanticValidator{completer: completer, now: time.Now}
}

// WithClock overrides the clock used for employment period checks.
func (s *SemanticValidator) WithClock(now func() time.Time) *SemanticValidator {
	s.now = now
	return s
}

type semanticReply struct {
	IsValid           *bool    `json:"isValid"`
	Confidence        *float64 `json:"confidence"`
	Flags             []string `json:"flags"`
	Suggestions       []string `json:"suggestions"`
	StandardizedValue *string  `json:"standardizedValue"`
	RequiresReview    bool     `json:"requiresReview"`
}

// Validate asks the model for a verdict on one field.
func (s *SemanticValidator) Validate(ctx context.Context, in SemanticInput) domain.Outcome[domain.ValidationResult] {
	resp, err := s.completer.Complete(ctx, port.CompletionRequest{
		Purpose:     "semantic_validation",
		System:      semanticSystemPrompt,
		Prompt:      s.buildPrompt(in),
		MaxTokens:   300,
		Temperature: 0.1,
		JSON:        true,
	})
	if err != nil {
		return domain.Failed(failClosed(in.Value), eris.Wrap(err, "semantic validation: complete"))
	}
	if resp.Refused {
		return domain.Failed(failClosed(in.Value), eris.New("semantic validation: model refused"))
	}

	raw, ok := llm.ExtractJSON(resp.Text)
	if !ok {
		return domain.Failed(failClosed(in.Value), eris.New("semantic validation: no JSON in response"))
	}
	var reply semanticReply
	if err := json.Unmarshal([]byte(raw), &reply); err != nil {
		return domain.Failed(failClosed(in.Value), eris.Wrap(err, "semantic validation: decode response"))
	}
	if reply.IsValid == nil {
		return domain.Failed(failClosed(in.Value), eris.New("semantic validation: response has no verdict"))
	}

	result := domain.ValidationResult{
		IsValid:           *reply.IsValid,
		StandardizedValue: in.Value,
		Flags:             []string{},
		Suggestions:       nonNil(reply.Suggestions),
		RequiresReview:    reply.RequiresReview,
		Method:            domain.MethodSemantic,
	}
	if reply.Confidence != nil {
		result.Confidence = domain.Clamp01(*reply.Confidence)
	}
	if reply.StandardizedValue != nil && strings.TrimSpace(*reply.StandardizedValue) != "" {
		result.StandardizedValue = *reply.StandardizedValue
	}
	for _, f := range reply.Flags {
		if semanticFlags[f] {
			result.Flags = append(result.Flags, f)
			continue
		}
		zap.L().Debug("dropping semantic flag outside vocabulary",
			zap.String("field", in.FieldName), zap.String("flag", f))
	}
	if !result.IsValid {
		if len(result.Flags) == 0 {
			result.Flags = []string{domain.FlagCriticalError}
		}
		result.RequiresReview = true
	}
	return domain.Succeeded(result)
}

func (s *SemanticValidator) buildPrompt(in SemanticInput) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Field Name: %s\nValue: %q\n", in.FieldName, in.Value)
	if in.Context != "" {
		fmt.Fprintf(&b, "Context: %s\n", in.Context)
	}
	if strings.HasSuffix(in.FieldName, domain.FieldPeriodOfEmployment) {
		fmt.Fprintf(&b, "Today's date: %s. Periods that are ongoing or end before today are valid.\n",
			s.now().Format("2006-01-02"))
	}
	b.WriteString("\nIs this value acceptable for the field?")
	return b.String()
}

func failClosed(value string) domain.ValidationResult {
	return domain.ValidationResult{
		IsValid:           false,
		StandardizedValue: value,
		Confidence:        0,
		Flags:             []string{domain.FlagValidationError},
		Suggestions:       []string{"Could not validate field"},
		RequiresReview:    true,
		Method:            domain.MethodSemantic,
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
