package workflow

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"finreview/internal/domain"
	"finreview/internal/validator"
)

// Snapshot is the serializable state of a review session.
type Snapshot struct {
	ID                uuid.UUID                         `json:"id"`
	Stage             domain.Stage                      `json:"stage"`
	Record            *domain.FinancialRecord           `json:"record"`
	Epoch             uint64                            `json:"epoch"`
	Versions          map[string]uint64                 `json:"versions"`
	Overrides         map[string]string                 `json:"overrides"`
	MandatoryOverride bool                              `json:"mandatory_override"`
	Interrupts        []domain.Interrupt                `json:"interrupts"`
	Audit             []domain.AuditEvent               `json:"audit"`
	LastError         string                            `json:"last_error,omitempty"`
	Notes             []string                          `json:"notes,omitempty"`
	Filename          string                            `json:"filename,omitempty"`
	RecordID          *uuid.UUID                        `json:"record_id,omitempty"`
	FieldStatuses     map[string]*validator.FieldStatus `json:"field_statuses"`
	CreatedAt         time.Time                         `json:"created_at"`
	UpdatedAt         time.Time                         `json:"updated_at"`
}

// Snapshot captures the session state.
func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	versions := make(map[string]uint64, len(m.versions))
	for k, v := range m.versions {
		versions[k] = v
	}
	overrides := make(map[string]string, len(m.overrides))
	for k, v := range m.overrides {
		overrides[k] = v
	}
	var recordID *uuid.UUID
	if m.recordID != nil {
		id := *m.recordID
		recordID = &id
	}
	return Snapshot{
		ID:                m.id,
		Stage:             m.stage,
		Record:            m.record.Clone(),
		Epoch:             m.epoch,
		Versions:          versions,
		Overrides:         overrides,
		MandatoryOverride: m.mandatoryOverride,
		Interrupts:        m.copyInterrupts(),
		Audit:             append([]domain.AuditEvent{}, m.audit...),
		LastError:         m.lastError,
		Notes:             append([]string(nil), m.notes...),
		Filename:          m.filename,
		RecordID:          recordID,
		FieldStatuses:     validator.ComputeFieldStatuses(m.record, m.opts.ConfirmationThreshold, m.acceptedOverrides()),
		CreatedAt:         m.createdAt,
		UpdatedAt:         m.updatedAt,
	}
}

// Restore rebuilds a session from a snapshot. A session captured while
// processing returns to upload, since the extraction it waited on is gone.
func Restore(s Snapshot, deps Deps, opts Options) *Machine {
	m := New(s.ID, deps, opts)
	m.stage = s.Stage
	if s.Record != nil {
		m.record = s.Record.Clone()
	}
	m.epoch = s.Epoch
	for k, v := range s.Versions {
		m.versions[k] = v
	}
	for k, v := range s.Overrides {
		m.overrides[k] = v
	}
	m.mandatoryOverride = s.MandatoryOverride
	for i := range s.Interrupts {
		in := s.Interrupts[i]
		m.interrupts = append(m.interrupts, &in)
	}
	m.audit = append([]domain.AuditEvent{}, s.Audit...)
	m.lastError = s.LastError
	m.notes = append([]string(nil), s.Notes...)
	m.filename = s.Filename
	m.recordID = s.RecordID
	m.createdAt = s.CreatedAt
	m.updatedAt = s.UpdatedAt
	if m.stage == domain.StageProcessing {
		m.epoch++
		m.stage = domain.StageUpload
		m.lastError = "processing was interrupted, please upload again"
	}
	return m
}

// MarshalSnapshot serializes the session for a session store.
func (m *Machine) MarshalSnapshot() ([]byte, error) {
	data, err := json.Marshal(m.Snapshot())
	if err != nil {
		return nil, eris.Wrap(err, "workflow: marshal snapshot")
	}
	return data, nil
}

// UnmarshalSnapshot decodes data written by MarshalSnapshot.
func UnmarshalSnapshot(data []byte) (Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return Snapshot{}, eris.Wrap(err, "workflow: unmarshal snapshot")
	}
	return s, nil
}
