package workflow

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"finreview/internal/domain"
	"finreview/internal/enforcer"
	"finreview/internal/export"
	"finreview/internal/port"
	"finreview/internal/validator"
)

// Validate validates every populated field. Verdicts cached for unchanged
// fields are reused.
func (m *Machine) Validate(ctx context.Context) (validator.BatchReport, error) {
	m.mu.Lock()
	if err := m.requireStage(domain.StageReview); err != nil {
		m.mu.Unlock()
		return validator.BatchReport{}, err
	}
	m.mu.Unlock()
	return m.validateAll(ctx)
}

type pendingField struct {
	path    domain.FieldPath
	version uint64
	value   string
}

func (m *Machine) validateAll(ctx context.Context) (validator.BatchReport, error) {
	m.mu.Lock()
	epoch := m.epoch
	var reqs []validator.FieldRequest
	var pending []pendingField
	if m.deps.Validator != nil {
		for _, p := range m.record.PopulatedPaths() {
			if _, cached := m.record.ValidationAt(p); cached {
				continue
			}
			v, _ := m.record.Get(p)
			reqs = append(reqs, validator.RequestFor(m.record, p))
			pending = append(pending, pendingField{path: p, version: m.versions[p.String()], value: v})
		}
	}
	m.mu.Unlock()

	var batch validator.BatchReport
	if len(reqs) > 0 {
		batch = m.deps.Validator.ValidateAll(ctx, reqs)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.epoch != epoch {
		return validator.BatchReport{}, fmt.Errorf("%w: session was reset during validation", domain.ErrInvalidTransition)
	}
	for i, pf := range pending {
		res, ok := batch.Results[reqs[i].Path]
		if !ok || !m.fresh(epoch, pf.path, pf.version, pf.value) {
			continue
		}
		m.applyValidation(pf.path, pf.value, res, "system")
	}
	return m.report(), nil
}

// report assembles the stored verdicts of all populated fields.
func (m *Machine) report() validator.BatchReport {
	rep := validator.BatchReport{
		AllValid: true,
		Results:  map[string]domain.ValidationResult{},
		Invalid:  []string{},
	}
	for _, p := range m.record.PopulatedPaths() {
		res, ok := m.record.ValidationAt(p)
		if !ok {
			continue
		}
		rep.Results[p.String()] = res
		if !res.IsValid {
			rep.AllValid = false
			rep.Invalid = append(rep.Invalid, p.String())
		}
	}
	return rep
}

// Advance moves a reviewed record to export. Fields that failed validation
// without an accepted override block the move, as do missing mandatory
// fields the enforcer will not let pass. The record is persisted before the
// stage changes; a failed save leaves the session in review.
func (m *Machine) Advance(ctx context.Context, actor string) error {
	m.mu.Lock()
	if err := m.requireStage(domain.StageReview); err != nil {
		m.mu.Unlock()
		return err
	}
	if m.advancing {
		m.mu.Unlock()
		return fmt.Errorf("%w: advance already in progress", domain.ErrInvalidTransition)
	}
	m.advancing = true
	epoch := m.epoch
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		if m.epoch == epoch {
			m.advancing = false
		}
		m.mu.Unlock()
	}()

	if _, err := m.validateAll(ctx); err != nil {
		return err
	}

	m.mu.Lock()
	if blockers := m.validationBlockers(); len(blockers) > 0 {
		m.mu.Unlock()
		return &domain.BlockedError{Kind: domain.ErrValidationBlocked, Fields: blockers}
	}
	snapshot := m.record.Clone()
	m.mu.Unlock()

	inferred := 0
	if m.deps.Enforcer != nil {
		out := m.deps.Enforcer.Enforce(ctx, snapshot, m.opts.Rules, m.opts.Strict)
		if out.Err != nil {
			zap.L().Warn("mandatory field check degraded", zap.String("session_id", m.id.String()), zap.Error(out.Err))
		}

		m.mu.Lock()
		if m.epoch != epoch {
			m.mu.Unlock()
			return fmt.Errorf("%w: session was reset during review", domain.ErrInvalidTransition)
		}
		inferred = m.applyInferred(out.Value.InferredValues, actor)
		if !out.Value.CanProceed && !(m.mandatoryOverride && !m.opts.Strict) {
			fields := mandatoryBlockers(out.Value)
			reasons := make([]string, 0, len(fields))
			for _, f := range fields {
				reasons = append(reasons, f.Label)
			}
			m.raise(domain.InterruptMandatory, domain.FieldPath{}, "", 0, reasons, true)
			m.mu.Unlock()
			return &domain.BlockedError{Kind: domain.ErrMandatoryFieldsMissing, Fields: fields}
		}
		if out.Value.CanProceed {
			m.resolve(domain.InterruptMandatory, "", domain.ResolutionEdited, actor)
		}
		m.mu.Unlock()
	}

	// Inferred values are new field values and must pass validation too.
	if inferred > 0 {
		if _, err := m.validateAll(ctx); err != nil {
			return err
		}
		m.mu.Lock()
		if blockers := m.validationBlockers(); len(blockers) > 0 {
			m.mu.Unlock()
			return &domain.BlockedError{Kind: domain.ErrValidationBlocked, Fields: blockers}
		}
		m.mu.Unlock()
	}

	m.mu.Lock()
	req := port.SaveRequest{
		Record:    m.record.Clone(),
		Overrides: m.acceptedOverrides(),
		History:   append([]domain.AuditEvent{}, m.audit...),
	}
	m.mu.Unlock()

	if m.deps.Repository != nil {
		id, err := m.deps.Repository.Save(ctx, req)
		if err != nil {
			zap.L().Error("failed to save reviewed record", zap.String("session_id", m.id.String()), zap.Error(err))
			return eris.Wrap(err, "workflow: save record")
		}
		m.mu.Lock()
		defer m.mu.Unlock()
		if m.epoch != epoch {
			return fmt.Errorf("%w: session was reset during save", domain.ErrInvalidTransition)
		}
		m.recordID = &id
		m.record.ID = id
		m.logEvent(domain.AuditEvent{Actor: actor, Type: domain.AuditRecordSaved, NewValue: id.String()})
		m.transition(domain.StageExport, actor)
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.epoch != epoch {
		return fmt.Errorf("%w: session was reset during review", domain.ErrInvalidTransition)
	}
	m.transition(domain.StageExport, actor)
	return nil
}

// validationBlockers raises or refreshes a blocking interrupt for every
// invalid field without an accepted override.
func (m *Machine) validationBlockers() []domain.FieldReason {
	var out []domain.FieldReason
	for _, p := range m.record.PopulatedPaths() {
		res, ok := m.record.ValidationAt(p)
		if !ok || res.IsValid || m.overridden(p) {
			continue
		}
		v, _ := m.record.Get(p)
		reasons := reasonsOf(res)
		m.raise(domain.InterruptValidation, p, v, res.Confidence, reasons, true)
		out = append(out, domain.FieldReason{Path: p.String(), Label: p.DisplayName(), Reasons: reasons})
	}
	return out
}

// applyInferred fills gaps with values the enforcer inferred. They are
// marked low confidence and must be confirmed by the reviewer.
func (m *Machine) applyInferred(values map[string]string, actor string) int {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	applied := 0
	for _, k := range keys {
		p, err := domain.ParseFieldPath(k)
		if err != nil {
			continue
		}
		if _, populated := m.record.Get(p); populated {
			continue
		}
		if err := m.record.Set(p, values[k]); err != nil {
			zap.L().Debug("skipping inferred value", zap.String("path", k), zap.Error(err))
			continue
		}
		v, _ := m.record.Get(p)
		key := p.String()
		fc := domain.NewFieldConfidence(v, 0.5, domain.SourceInferred)
		fc.Flags = []string{domain.FlagLowConfidence}
		m.record.SetConfidence(p, fc)
		m.versions[key]++
		m.record.ClearValidation(p)
		m.raise(domain.InterruptConfirmation, p, v, 0.5, []string{"Value inferred from the rest of the form"}, false)
		m.logEvent(domain.AuditEvent{Actor: actor, Type: domain.AuditInferredValueApplied, Path: key, NewValue: v})
		applied++
	}
	return applied
}

func mandatoryBlockers(res enforcer.Result) []domain.FieldReason {
	byKey := make(map[string]int, len(res.MissingFields))
	for i, mf := range res.MissingFields {
		byKey[mf.FieldName] = i
	}
	out := make([]domain.FieldReason, 0, len(res.BlockerFields))
	for _, b := range res.BlockerFields {
		i, ok := byKey[b]
		if !ok {
			out = append(out, domain.FieldReason{Path: b, Label: b, Reasons: []string{"Required field is missing"}})
			continue
		}
		mf := res.MissingFields[i]
		reasons := append([]string{mf.Reason}, mf.Suggestions...)
		out = append(out, domain.FieldReason{Path: mf.Path.String(), Label: mf.Path.DisplayName(), Reasons: reasons})
	}
	return out
}

// WriteExport writes the record in the given format. Exporting never
// changes the record.
func (m *Machine) WriteExport(w io.Writer, format string) error {
	m.mu.Lock()
	if err := m.requireStage(domain.StageReview, domain.StageExport); err != nil {
		m.mu.Unlock()
		return err
	}
	rec := m.record.Clone()
	m.mu.Unlock()
	return export.Write(w, strings.ToLower(format), rec)
}

// ExportFilename returns the download name for an export of this session.
func (m *Machine) ExportFilename(format string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	prefix := strings.TrimSuffix(m.filename, filepath.Ext(m.filename))
	if prefix == "" {
		prefix = "financial_record"
	}
	return export.BuildFilename(prefix, strings.ToLower(format), m.opts.Now())
}
