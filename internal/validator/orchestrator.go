package validator

import (
	"context"
	"strconv"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"finreview/internal/domain"
	"finreview/internal/metrics"
)

// SemanticChecker is the semantic half of field validation.
type SemanticChecker interface {
	Validate(ctx context.Context, in SemanticInput) domain.Outcome[domain.ValidationResult]
}

// FieldRequest is one field submitted to the orchestrator. Path is an opaque
// key used to report batch results.
type FieldRequest struct {
	Path      string `json:"path"`
	Value     string `json:"value"`
	FieldName string `json:"fieldName"`
	FieldType string `json:"fieldType,omitempty"`
	Context   string `json:"context,omitempty"`
	RulesOnly bool   `json:"useRulesOnly,omitempty"`
}

// BatchReport aggregates the verdicts of a set of fields.
type BatchReport struct {
	AllValid bool                               `json:"allValid"`
	Results  map[string]domain.ValidationResult `json:"results"`
	// Invalid lists failing paths in submission order.
	Invalid []string `json:"invalid"`
}

// Options tunes the orchestrator.
type Options struct {
	// ShortCircuitConfidence skips semantic validation when the rule verdict
	// is invalid with confidence above this value.
	ShortCircuitConfidence float64
	Concurrency            int
}

// Orchestrator combines rule and semantic validation.
type Orchestrator struct {
	rules        *Registry
	semantic     SemanticChecker
	shortCircuit float64
	concurrency  int
}

// NewOrchestrator creates an Orchestrator. semantic may be nil, in which case
// only rules are applied.
func NewOrchestrator(rules *Registry, semantic SemanticChecker, opts Options) *Orchestrator {
	if opts.ShortCircuitConfidence <= 0 {
		opts.ShortCircuitConfidence = 0.8
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	return &Orchestrator{
		rules:        rules,
		semantic:     semantic,
		shortCircuit: opts.ShortCircuitConfidence,
		concurrency:  opts.Concurrency,
	}
}

// Rules exposes the rule registry.
func (o *Orchestrator) Rules() *Registry {
	return o.rules
}

// ValidateField runs the rule check when a field type is given, then the
// semantic check unless the rule verdict is a confident failure.
func (o *Orchestrator) ValidateField(ctx context.Context, req FieldRequest) domain.ValidationResult {
	result := o.validateField(ctx, req)
	metrics.FieldValidations.WithLabelValues(string(result.Method), strconv.FormatBool(result.IsValid)).Inc()
	return result
}

func (o *Orchestrator) validateField(ctx context.Context, req FieldRequest) domain.ValidationResult {
	var rule *domain.ValidationResult
	if req.FieldType != "" {
		r := o.rules.ValidateFormat(req.Value, req.FieldType)
		rule = &r
		if !r.IsValid && r.Confidence > o.shortCircuit {
			return r.Normalize()
		}
	}

	if req.RulesOnly || o.semantic == nil {
		if rule != nil {
			return rule.Normalize()
		}
		return o.rules.ValidateFormat(req.Value, "").Normalize()
	}

	sem := o.semantic.Validate(ctx, SemanticInput{
		Value:     req.Value,
		FieldName: req.FieldName,
		Context:   req.Context,
	})
	if sem.Err != nil {
		zap.L().Warn("semantic validation failed closed",
			zap.String("field", req.FieldName), zap.Error(sem.Err))
	}
	if rule == nil {
		return sem.Value.Normalize()
	}
	return combine(*rule, sem.Value)
}

func combine(rule, sem domain.ValidationResult) domain.ValidationResult {
	conf := rule.Confidence
	if sem.Confidence < conf {
		conf = sem.Confidence
	}
	return domain.ValidationResult{
		IsValid:           sem.IsValid && rule.IsValid,
		StandardizedValue: sem.StandardizedValue,
		Confidence:        conf,
		Flags:             union(rule.Flags, sem.Flags),
		Suggestions:       union(rule.Suggestions, sem.Suggestions),
		RequiresReview:    rule.RequiresReview || sem.RequiresReview,
		Method:            domain.MethodCombined,
	}.Normalize()
}

// ValidateAll validates fields concurrently. Each field is independent; the
// report is assembled only after every field has finished.
func (o *Orchestrator) ValidateAll(ctx context.Context, reqs []FieldRequest) BatchReport {
	results := make([]domain.ValidationResult, len(reqs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.concurrency)
	for i := range reqs {
		i := i
		g.Go(func() error {
			results[i] = o.ValidateField(gctx, reqs[i])
			return nil
		})
	}
	_ = g.Wait()

	report := BatchReport{
		AllValid: true,
		Results:  make(map[string]domain.ValidationResult, len(reqs)),
		Invalid:  []string{},
	}
	for i, req := range reqs {
		report.Results[req.Path] = results[i]
		if !results[i].IsValid {
			report.AllValid = false
			report.Invalid = append(report.Invalid, req.Path)
		}
	}
	return report
}

// ValidateRecord validates every populated field of a record.
func (o *Orchestrator) ValidateRecord(ctx context.Context, rec *domain.FinancialRecord) BatchReport {
	return o.ValidateAll(ctx, RequestsForRecord(rec, rec.PopulatedPaths()))
}

// RequestsForRecord builds orchestrator requests for the given paths.
func RequestsForRecord(rec *domain.FinancialRecord, paths []domain.FieldPath) []FieldRequest {
	out := make([]FieldRequest, 0, len(paths))
	for _, p := range paths {
		out = append(out, RequestFor(rec, p))
	}
	return out
}

// RequestFor builds the orchestrator request for one path of a record.
func RequestFor(rec *domain.FinancialRecord, p domain.FieldPath) FieldRequest {
	value, _ := rec.Get(p)
	return FieldRequest{
		Path:      p.String(),
		Value:     value,
		FieldName: p.Field,
		FieldType: FieldTypeFor(p.Field),
		Context:   p.DisplayName(),
	}
}

func union(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, list := range [][]string{a, b} {
		for _, s := range list {
			if !seen[s] {
				seen[s] = true
				out = append(out, s)
			}
		}
	}
	return out
}
