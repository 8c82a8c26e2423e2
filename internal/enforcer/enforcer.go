package enforcer

import (
	"context"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"finreview/internal/domain"
	"finreview/internal/metrics"
)

// Method records how an enforcement decision was reached.
type Method string

const (
	MethodNone     Method = "none"
	MethodStrict   Method = "strict"
	MethodJudge    Method = "judge"
	MethodFallback Method = "fallback"
)

// MissingField is one required field that holds no value.
type MissingField struct {
	FieldName   string           `json:"fieldName"`
	Path        domain.FieldPath `json:"-"`
	Section     domain.Section   `json:"section"`
	Priority    int              `json:"priority"`
	Reason      string           `json:"reason"`
	Suggestions []string         `json:"suggestions"`
	CanInfer    bool             `json:"canInfer"`
}

// Result is the outcome of a mandatory field check. InferredValues is keyed
// by the bracket form of the path.
type Result struct {
	MissingFields  []MissingField           `json:"missingFields"`
	CanProceed     bool                     `json:"canProceed"`
	BlockerFields  []string                 `json:"blockerFields"`
	Suggestions    []string                 `json:"suggestions"`
	InferredValues map[string]string        `json:"inferredValues"`
	Status         domain.EnforcementStatus `json:"status"`
	Method         Method                   `json:"method"`
}

// Decision is a judge's opinion on a record with gaps. Keys may use either
// path form.
type Decision struct {
	CanProceed     bool
	BlockerFields  []string
	Suggestions    []string
	InferredValues map[string]string
}

// Judge decides whether a record may proceed despite missing fields.
type Judge interface {
	Judge(ctx context.Context, rec *domain.FinancialRecord, missing []MissingField) (*Decision, error)
}

// Enforcer detects missing mandatory fields and gates progression on them.
type Enforcer struct {
	judge Judge
}

// New creates an Enforcer. judge may be nil, in which case non-strict checks
// use the conservative fallback.
func New(judge Judge) *Enforcer {
	return &Enforcer{judge: judge}
}

// Enforce checks rec against rules. In strict mode any gap blocks without
// consulting the judge.
func (e *Enforcer) Enforce(ctx context.Context, rec *domain.FinancialRecord, rules domain.SectionRules, strict bool) domain.Outcome[Result] {
	if rules == nil {
		rules = domain.DefaultSectionRules()
	}
	missing := DetectMissing(rec, rules)
	out := e.enforce(ctx, rec, missing, strict)
	metrics.EnforcementResults.WithLabelValues(string(out.Value.Status)).Inc()
	return out
}

func (e *Enforcer) enforce(ctx context.Context, rec *domain.FinancialRecord, missing []MissingField, strict bool) domain.Outcome[Result] {
	if len(missing) == 0 {
		return domain.Succeeded(Result{
			MissingFields:  []MissingField{},
			CanProceed:     true,
			BlockerFields:  []string{},
			Suggestions:    []string{"All mandatory fields are complete"},
			InferredValues: map[string]string{},
			Status:         domain.EnforcementComplete,
			Method:         MethodNone,
		})
	}

	if strict {
		return domain.Succeeded(Result{
			MissingFields:  missing,
			CanProceed:     false,
			BlockerFields:  keys(missing),
			Suggestions:    []string{"All fields must be completed in strict mode"},
			InferredValues: map[string]string{},
			Status:         domain.EnforcementBlocked,
			Method:         MethodStrict,
		})
	}

	if e.judge == nil {
		return domain.Degraded(fallback(missing), domain.ErrCapabilityUnavailable, "no enforcement judge configured")
	}

	decision, err := e.judge.Judge(ctx, rec, missing)
	if err != nil {
		zap.L().Warn("enforcement judge failed, using conservative rule",
			zap.Int("missing", len(missing)), zap.Error(err))
		return domain.Degraded(fallback(missing), eris.Wrap(err, "enforcer: judge"))
	}
	return domain.Succeeded(reconcile(missing, decision))
}

// DetectMissing lists the required fields of rec that hold no value, most
// urgent first. Ties keep document order.
func DetectMissing(rec *domain.FinancialRecord, rules domain.SectionRules) []MissingField {
	paths := rec.MissingMandatoryFields(rules)
	out := make([]MissingField, 0, len(paths))
	for _, p := range paths {
		out = append(out, MissingField{
			FieldName:   p.BlockerKey(),
			Path:        p,
			Section:     p.Section,
			Priority:    priorityOf(p.Field),
			Reason:      reasonFor(p.Section),
			Suggestions: suggestionsFor(p.Field),
			CanInfer:    canInfer(p.Field),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority < out[j].Priority })
	return out
}

// reconcile trims a judge decision to the detected gaps. Every gap ends up
// either inferred or blocking; a critical gap the judge ignored forces a
// block.
func reconcile(missing []MissingField, d *Decision) Result {
	gaps := make(map[string]MissingField, len(missing))
	for _, m := range missing {
		gaps[m.FieldName] = m
	}

	inferred := make(map[string]string)
	for k, v := range d.InferredValues {
		key, ok := gapKey(k, gaps)
		if !ok || strings.TrimSpace(v) == "" {
			continue
		}
		if gaps[key].Path.IsAmount() {
			if _, err := domain.ParseAmount(v); err != nil {
				zap.L().Debug("dropping unparsable inferred amount", zap.String("field", key), zap.String("value", v))
				continue
			}
		}
		inferred[key] = strings.TrimSpace(v)
	}

	blockers := []string{}
	listed := make(map[string]bool)
	for _, b := range d.BlockerFields {
		key, ok := gapKey(b, gaps)
		if !ok || listed[key] {
			continue
		}
		if _, done := inferred[key]; done {
			continue
		}
		listed[key] = true
		blockers = append(blockers, key)
	}

	canProceed := d.CanProceed
	for _, m := range missing {
		if _, done := inferred[m.FieldName]; done || listed[m.FieldName] {
			continue
		}
		listed[m.FieldName] = true
		blockers = append(blockers, m.FieldName)
		if isCritical(m.FieldName) {
			canProceed = false
		}
	}

	suggestions := d.Suggestions
	if suggestions == nil {
		suggestions = []string{}
	}
	status := domain.EnforcementRequiresCompletion
	if canProceed {
		status = domain.EnforcementConditionalApproval
	}
	return Result{
		MissingFields:  missing,
		CanProceed:     canProceed,
		BlockerFields:  blockers,
		Suggestions:    suggestions,
		InferredValues: inferred,
		Status:         status,
		Method:         MethodJudge,
	}
}

// fallback blocks when any critical field is missing. All gaps are still
// reported, critical ones first.
func fallback(missing []MissingField) Result {
	var critical, rest []string
	for _, m := range missing {
		if isCritical(m.FieldName) {
			critical = append(critical, m.FieldName)
		} else {
			rest = append(rest, m.FieldName)
		}
	}
	canProceed := len(critical) == 0
	status := domain.EnforcementRequiresCompletion
	if canProceed {
		status = domain.EnforcementConditionalApproval
	}
	return Result{
		MissingFields:  missing,
		CanProceed:     canProceed,
		BlockerFields:  append(append([]string{}, critical...), rest...),
		Suggestions:    []string{"Please complete all required fields before proceeding"},
		InferredValues: map[string]string{},
		Status:         status,
		Method:         MethodFallback,
	}
}

func isCritical(key string) bool {
	for _, marker := range criticalMarkers {
		if strings.Contains(key, marker) {
			return true
		}
	}
	return false
}

func gapKey(raw string, gaps map[string]MissingField) (string, bool) {
	p, err := domain.ParseFieldPath(raw)
	if err != nil {
		return "", false
	}
	key := p.BlockerKey()
	_, ok := gaps[key]
	return key, ok
}

func keys(missing []MissingField) []string {
	out := make([]string, 0, len(missing))
	for _, m := range missing {
		out = append(out, m.FieldName)
	}
	return out
}
