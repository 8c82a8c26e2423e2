package workflow

import (
	"github.com/google/uuid"

	"finreview/internal/domain"
	"finreview/internal/metrics"
)

// raise opens an interrupt for path, or refreshes the open one of the same
// kind.
func (m *Machine) raise(kind domain.InterruptKind, p domain.FieldPath, value string, conf float64, reasons []string, blocking bool) *domain.Interrupt {
	key := pathKey(p)
	if in := m.openInterrupt(kind, key); in != nil {
		in.Value = value
		in.Confidence = conf
		in.Reasons = append([]string{}, reasons...)
		in.Blocking = blocking
		return in
	}

	label := "Mandatory fields"
	if key != "" {
		label = p.DisplayName()
	}
	in := &domain.Interrupt{
		ID:         uuid.NewString(),
		Kind:       kind,
		Path:       key,
		Label:      label,
		Value:      value,
		Confidence: conf,
		Reasons:    append([]string{}, reasons...),
		Blocking:   blocking,
		Resolution: domain.ResolutionPending,
		CreatedAt:  m.opts.Now(),
	}
	m.interrupts = append(m.interrupts, in)
	metrics.Interrupts.WithLabelValues(string(kind)).Inc()
	return in
}

// resolve closes the open interrupt of kind on path. It reports whether one
// was open.
func (m *Machine) resolve(kind domain.InterruptKind, key string, res domain.Resolution, actor string) bool {
	in := m.openInterrupt(kind, key)
	if in == nil {
		return false
	}
	now := m.opts.Now()
	in.Resolution = res
	in.ResolvedAt = &now
	in.ResolvedBy = actor
	return true
}

func (m *Machine) openInterrupt(kind domain.InterruptKind, key string) *domain.Interrupt {
	for _, in := range m.interrupts {
		if in.Kind == kind && in.Path == key && in.Open() {
			return in
		}
	}
	return nil
}

// Interrupts returns copies of all interrupts, oldest first.
func (m *Machine) Interrupts() []domain.Interrupt {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.copyInterrupts()
}

func (m *Machine) copyInterrupts() []domain.Interrupt {
	out := make([]domain.Interrupt, 0, len(m.interrupts))
	for _, in := range m.interrupts {
		c := *in
		c.Reasons = append([]string{}, in.Reasons...)
		out = append(out, c)
	}
	return out
}

// pathKey is empty for record-level interrupts.
func pathKey(p domain.FieldPath) string {
	if p.Field == "" {
		return ""
	}
	return p.String()
}
