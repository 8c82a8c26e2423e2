package workflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"finreview/internal/domain"
	"finreview/internal/standardize"
	"finreview/internal/validator"
)

// EditField sets a field to a reviewer-provided value and revalidates that
// field alone.
func (m *Machine) EditField(ctx context.Context, path, value, actor string) (*domain.ValidationResult, error) {
	p, err := domain.ParseFieldPath(path)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	if err := m.requireStage(domain.StageReview); err != nil {
		m.mu.Unlock()
		return nil, err
	}
	old, _ := m.record.Get(p)
	if err := m.record.Set(p, value); err != nil {
		m.mu.Unlock()
		return nil, err
	}
	current, _ := m.record.Get(p)
	key := p.String()

	fc := domain.NewFieldConfidence(current, 1.0, domain.SourceUserProvided)
	if old != current {
		fc.OriginalText = old
	}
	m.record.SetConfidence(p, fc)
	m.versions[key]++
	m.record.ClearValidation(p)
	delete(m.overrides, key)
	m.resolve(domain.InterruptConfirmation, key, domain.ResolutionEdited, actor)
	m.logEvent(domain.AuditEvent{Actor: actor, Type: domain.AuditFieldEdited, Path: key, OldValue: old, NewValue: current})

	if m.deps.Validator == nil {
		m.mu.Unlock()
		return nil, nil
	}
	req := validator.RequestFor(m.record, p)
	epoch, version := m.epoch, m.versions[key]
	m.mu.Unlock()

	res := m.deps.Validator.ValidateField(ctx, req)

	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.fresh(epoch, p, version, current) {
		return nil, nil
	}
	m.applyValidation(p, current, res, actor)
	return &res, nil
}

// applyValidation stores a verdict and opens, refreshes or resolves the
// field's validation interrupt accordingly.
func (m *Machine) applyValidation(p domain.FieldPath, value string, res domain.ValidationResult, actor string) {
	m.record.SetValidation(p, res)
	key := p.String()
	if res.IsValid {
		m.resolve(domain.InterruptValidation, key, domain.ResolutionEdited, actor)
		return
	}
	if m.overridden(p) {
		return
	}
	m.raise(domain.InterruptValidation, p, value, res.Confidence, reasonsOf(res), true)
}

// ConfirmField records that the reviewer checked a low-confidence value.
func (m *Machine) ConfirmField(path, actor string) error {
	p, err := domain.ParseFieldPath(path)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.requireStage(domain.StageReview); err != nil {
		return err
	}
	key := p.String()
	if !m.resolve(domain.InterruptConfirmation, key, domain.ResolutionConfirmed, actor) {
		return fmt.Errorf("%w: no pending confirmation for %s", domain.ErrNotFound, key)
	}
	v, _ := m.record.Get(p)
	m.logEvent(domain.AuditEvent{Actor: actor, Type: domain.AuditFieldConfirmed, Path: key, NewValue: v})
	return nil
}

// AcceptField keeps a value that failed validation. The stored verdict stays
// invalid; the override lasts until the field is edited.
func (m *Machine) AcceptField(path, actor string) error {
	p, err := domain.ParseFieldPath(path)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.requireStage(domain.StageReview); err != nil {
		return err
	}
	key := p.String()
	res, ok := m.record.ValidationAt(p)
	if !ok || res.IsValid {
		return fmt.Errorf("%w: no failed validation for %s", domain.ErrNotFound, key)
	}
	m.accept(p, domain.ResolutionOverride, actor)
	v, _ := m.record.Get(p)
	m.logEvent(domain.AuditEvent{
		Actor:    actor,
		Type:     domain.AuditValidationOverride,
		Path:     key,
		NewValue: v,
		Detail:   strings.Join(res.Flags, ", "),
	})
	return nil
}

func (m *Machine) accept(p domain.FieldPath, res domain.Resolution, actor string) {
	key := p.String()
	v, _ := m.record.Get(p)
	m.overrides[key] = v
	m.resolve(domain.InterruptValidation, key, res, actor)
}

// ContinueAnyway accepts every open blocking interrupt at once. Mandatory
// field interrupts stay open in strict mode. It returns the keys of the
// resolved interrupts; the record-level mandatory interrupt is reported as
// "mandatory".
func (m *Machine) ContinueAnyway(actor string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.requireStage(domain.StageReview); err != nil {
		return nil, err
	}

	resolved := []string{}
	for _, in := range m.interrupts {
		if !in.Open() || !in.Blocking {
			continue
		}
		switch in.Kind {
		case domain.InterruptValidation:
			p, err := domain.ParseFieldPath(in.Path)
			if err != nil {
				continue
			}
			m.accept(p, domain.ResolutionContinueAnyway, actor)
			resolved = append(resolved, in.Path)
		case domain.InterruptMandatory:
			if m.opts.Strict {
				continue
			}
			m.mandatoryOverride = true
			m.resolve(domain.InterruptMandatory, in.Path, domain.ResolutionContinueAnyway, actor)
			resolved = append(resolved, string(domain.InterruptMandatory))
		}
	}
	if len(resolved) > 0 {
		m.logEvent(domain.AuditEvent{Actor: actor, Type: domain.AuditContinueAnyway, Detail: strings.Join(resolved, ", ")})
	}
	return resolved, nil
}

// StandardizeField rewrites an informal text value into standard wording.
// Amount fields are left alone.
func (m *Machine) StandardizeField(ctx context.Context, path, actor string) (standardize.Result, error) {
	p, err := domain.ParseFieldPath(path)
	if err != nil {
		return standardize.Result{}, err
	}
	if p.IsAmount() {
		return standardize.Result{}, fmt.Errorf("%w: %s is an amount", domain.ErrInvalidFieldPath, p)
	}

	m.mu.Lock()
	if err := m.requireStage(domain.StageReview); err != nil {
		m.mu.Unlock()
		return standardize.Result{}, err
	}
	if m.deps.Standardizer == nil {
		m.mu.Unlock()
		return standardize.Result{}, domain.ErrCapabilityUnavailable
	}
	value, populated := m.record.Get(p)
	if !populated {
		m.mu.Unlock()
		return standardize.Result{}, fmt.Errorf("%w: %s is empty", domain.ErrInvalidFieldValue, p)
	}
	key := p.String()
	epoch, version := m.epoch, m.versions[key]
	m.mu.Unlock()

	out := m.deps.Standardizer.Standardize(ctx, value, p.Field, false)

	m.mu.Lock()
	defer m.mu.Unlock()
	if !out.Usable() {
		return out.Value, eris.Wrap(out.Err, "workflow: standardize field")
	}
	res := out.Value
	if !res.Applied || res.Standardized == value {
		res.Applied = false
		return res, nil
	}
	if !m.fresh(epoch, p, version, value) {
		return res, fmt.Errorf("%w: %s changed during standardization", domain.ErrInvalidTransition, key)
	}

	if err := m.record.Set(p, res.Standardized); err != nil {
		return res, err
	}
	fc := domain.NewFieldConfidence(res.Standardized, res.Confidence, domain.SourceStandardized)
	fc.OriginalText = value
	m.record.SetConfidence(p, fc)
	m.versions[key]++
	m.record.ClearValidation(p)
	delete(m.overrides, key)
	m.logEvent(domain.AuditEvent{
		Actor:    actor,
		Type:     domain.AuditFieldStandardized,
		Path:     key,
		OldValue: value,
		NewValue: res.Standardized,
		Detail:   res.Method,
	})
	return res, nil
}

// SetStatus records the reviewer's decision on the record.
func (m *Machine) SetStatus(status domain.RecordStatus, notes, actor string) error {
	if !domain.ValidRecordStatuses[status] {
		return fmt.Errorf("%w: %q", domain.ErrInvalidStatus, status)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.requireStage(domain.StageReview); err != nil {
		return err
	}
	old := m.record.Status
	m.record.Status = status
	m.record.ReviewNotes = notes
	m.record.ReviewerID = actor
	m.logEvent(domain.AuditEvent{Actor: actor, Type: domain.AuditStatusChanged, OldValue: string(old), NewValue: string(status), Detail: notes})
	return nil
}

func reasonsOf(res domain.ValidationResult) []string {
	reasons := append([]string{}, res.Suggestions...)
	if len(reasons) == 0 {
		reasons = append(reasons, res.Flags...)
	}
	return reasons
}
