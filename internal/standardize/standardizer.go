package standardize

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"finreview/internal/config"
	"finreview/internal/domain"
	"finreview/internal/metrics"
	"finreview/internal/port"
)

// Standardization methods.
const (
	MethodNone  = "none"
	MethodRules = "rules"
	MethodLLM   = "llm"
)

// Result is the outcome of standardizing one value.
type Result struct {
	Original     string  `json:"original"`
	Standardized string  `json:"standardized"`
	Confidence   float64 `json:"confidence"`
	Applied      bool    `json:"applied"`
	Method       string  `json:"method"`
}

// Standardizer rewrites informal answers into the wording reviewers expect.
// Rules run first; a language model handles text no rule recognises.
type Standardizer struct {
	rules     []compiledRule
	completer port.Completer
}

// New compiles rules into a Standardizer. completer may be nil, in which
// case only rules are applied.
func New(rules []Rule, completer port.Completer) (*Standardizer, error) {
	compiled, err := compile(rules)
	if err != nil {
		return nil, err
	}
	return &Standardizer{rules: compiled, completer: completer}, nil
}

// NewFromConfig builds a Standardizer from the rules file named in cfg, or
// from the built-in rules when none is configured.
func NewFromConfig(cfg config.StandardizeConfig, completer port.Completer) (*Standardizer, error) {
	rules := DefaultRules()
	if cfg.RulesFile != "" {
		loaded, err := LoadRules(cfg.RulesFile)
		if err != nil {
			return nil, err
		}
		rules = loaded
		zap.L().Info("loaded standardization rules", zap.String("file", cfg.RulesFile), zap.Int("count", len(rules)))
	}
	return New(rules, completer)
}

// Rules lists the active rules in evaluation order.
func (s *Standardizer) Rules() []Rule {
	return describe(s.rules)
}

// ApplyRules runs the rules against text. The first matching rule wins.
func (s *Standardizer) ApplyRules(text string) Result {
	for _, r := range s.rules {
		if out, ok := r.apply(text); ok {
			return Result{Original: text, Standardized: out, Confidence: r.Confidence, Applied: true, Method: MethodRules}
		}
	}
	return Result{Original: text, Standardized: text, Confidence: 1.0, Applied: false, Method: MethodRules}
}

// Standardize rewrites text for a field of the given type. With rulesOnly,
// or when no rule matches and no model is configured, the rule result is
// returned as is.
func (s *Standardizer) Standardize(ctx context.Context, text, fieldType string, rulesOnly bool) domain.Outcome[Result] {
	out := s.standardize(ctx, text, fieldType, rulesOnly)
	metrics.Standardizations.WithLabelValues(out.Value.Method, strconv.FormatBool(out.Value.Applied)).Inc()
	return out
}

func (s *Standardizer) standardize(ctx context.Context, text, fieldType string, rulesOnly bool) domain.Outcome[Result] {
	if strings.TrimSpace(text) == "" {
		return domain.Succeeded(Result{Original: text, Standardized: text, Confidence: 1.0, Method: MethodNone})
	}

	res := s.ApplyRules(text)
	if res.Applied || rulesOnly {
		return domain.Succeeded(res)
	}
	if s.completer == nil {
		return domain.Degraded(res, domain.ErrCapabilityUnavailable, "no language model configured")
	}

	if fieldType == "" {
		fieldType = "general"
	}
	standardized, err := s.llmStandardize(ctx, text, fieldType)
	if err != nil {
		zap.L().Warn("llm standardization failed", zap.String("field_type", fieldType), zap.Error(err))
		return domain.Failed(Result{
			Original:     text,
			Standardized: text,
			Confidence:   0.5,
			Applied:      false,
			Method:       MethodLLM,
		}, err)
	}

	confidence := 0.8
	if strings.EqualFold(standardized, text) {
		confidence = 1.0
	}
	return domain.Succeeded(Result{
		Original:     text,
		Standardized: standardized,
		Confidence:   confidence,
		Applied:      standardized != text,
		Method:       MethodLLM,
	})
}

const llmSystemPrompt = `You standardize informal answers written on financial-aid forms into plain, formal wording suitable for case records.

Field type: %s

Rules:
1. Convert informal language to formal equivalents.
2. Standardize relationships ("mum" becomes "mother").
3. Standardize occupations ("cabbie" becomes "taxi driver").
4. Convert vague amounts to numbers where possible ("around 2k" becomes "2000").
5. If the text expresses uncertainty, answer "unknown", "missing" or "ambiguous".
6. Keep the original meaning.
7. If the text is already formal, return it unchanged.

Reply with the standardized text only.`

func (s *Standardizer) llmStandardize(ctx context.Context, text, fieldType string) (string, error) {
	resp, err := s.completer.Complete(ctx, port.CompletionRequest{
		Purpose:     "standardization",
		System:      fmt.Sprintf(llmSystemPrompt, fieldType),
		Prompt:      fmt.Sprintf("Standardize this text for a %s field: %q", fieldType, text),
		MaxTokens:   100,
		Temperature: 0.1,
	})
	if err != nil {
		return "", eris.Wrap(err, "standardize: complete")
	}
	if resp.Refused {
		return "", eris.New("standardize: model refused")
	}
	out := strings.Trim(strings.TrimSpace(resp.Text), `"'`)
	if out == "" {
		return text, nil
	}
	return out, nil
}
