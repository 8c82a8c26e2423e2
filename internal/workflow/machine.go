package workflow

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"finreview/internal/domain"
	"finreview/internal/enforcer"
	"finreview/internal/mapper"
	"finreview/internal/metrics"
	"finreview/internal/port"
	"finreview/internal/standardize"
	"finreview/internal/validator"
)

// FieldValidator validates single fields and batches of fields.
type FieldValidator interface {
	ValidateField(ctx context.Context, req validator.FieldRequest) domain.ValidationResult
	ValidateAll(ctx context.Context, reqs []validator.FieldRequest) validator.BatchReport
}

// MandatoryChecker gates progression on required fields.
type MandatoryChecker interface {
	Enforce(ctx context.Context, rec *domain.FinancialRecord, rules domain.SectionRules, strict bool) domain.Outcome[enforcer.Result]
}

// FieldMapper classifies loose text fragments into form fields.
type FieldMapper interface {
	Map(ctx context.Context, fragments []string) domain.Outcome[mapper.MappingResult]
}

// TextStandardizer rewrites informal answers.
type TextStandardizer interface {
	Standardize(ctx context.Context, text, fieldType string, rulesOnly bool) domain.Outcome[standardize.Result]
}

// Deps are the collaborators of a review session. Only Extractor is
// required.
type Deps struct {
	Extractor    port.Extractor
	Mapper       FieldMapper
	Validator    FieldValidator
	Enforcer     MandatoryChecker
	Standardizer TextStandardizer
	Repository   port.RecordRepository
}

// Options tunes a review session.
type Options struct {
	// ConfirmationThreshold is the field confidence below which the
	// reviewer is asked to confirm a value.
	ConfirmationThreshold float64
	Strict                bool
	Rules                 domain.SectionRules
	Now                   func() time.Time
}

func (o Options) withDefaults() Options {
	if o.ConfirmationThreshold <= 0 {
		o.ConfirmationThreshold = 0.7
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Upload is a form image submitted for extraction.
type Upload struct {
	Filename    string
	ContentType string
	Data        []byte
	// SourceKey is where the original image was archived, if anywhere.
	SourceKey string
}

// Machine is one review session: a record moving from upload through review
// to export, with its interrupts and audit trail. All methods are safe for
// concurrent use. Capability calls run without holding the lock; their
// results are dropped when the session was reset or the field edited in the
// meantime.
type Machine struct {
	mu   sync.Mutex
	deps Deps
	opts Options

	id        uuid.UUID
	stage     domain.Stage
	record    *domain.FinancialRecord
	epoch     uint64
	versions  map[string]uint64
	overrides map[string]string
	// mandatoryOverride is set when the reviewer chose to continue despite
	// missing mandatory fields.
	mandatoryOverride bool
	advancing         bool
	interrupts        []*domain.Interrupt
	audit             []domain.AuditEvent
	lastError         string
	notes             []string
	filename          string
	recordID          *uuid.UUID
	createdAt         time.Time
	updatedAt         time.Time
}

// New creates a session in the upload stage.
func New(id uuid.UUID, deps Deps, opts Options) *Machine {
	opts = opts.withDefaults()
	now := opts.Now()
	return &Machine{
		deps:      deps,
		opts:      opts,
		id:        id,
		stage:     domain.StageUpload,
		record:    domain.NewFinancialRecord(),
		versions:  map[string]uint64{},
		overrides: map[string]string{},
		createdAt: now,
		updatedAt: now,
	}
}

// ID returns the session id.
func (m *Machine) ID() uuid.UUID {
	return m.id
}

// Stage returns the current stage.
func (m *Machine) Stage() domain.Stage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stage
}

// Record returns a copy of the record under review.
func (m *Machine) Record() *domain.FinancialRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.record.Clone()
}

// Submit extracts a record from an uploaded form and moves the session to
// review. A failed extraction returns the session to upload.
func (m *Machine) Submit(ctx context.Context, up Upload) error {
	m.mu.Lock()
	if err := m.requireStage(domain.StageUpload); err != nil {
		m.mu.Unlock()
		return err
	}
	if len(up.Data) == 0 {
		m.mu.Unlock()
		return domain.ErrEmptyFile
	}
	m.filename = up.Filename
	m.lastError = ""
	m.notes = nil
	m.transition(domain.StageProcessing, "system")
	epoch := m.epoch
	m.mu.Unlock()

	out := m.deps.Extractor.Extract(ctx, port.ExtractInput{
		Data:        up.Data,
		ContentType: up.ContentType,
		Filename:    up.Filename,
	})
	rec := out.Value
	if rec == nil {
		rec = domain.NewFinancialRecord()
	}
	var notes []string
	if out.Usable() {
		rec, notes = m.enhance(ctx, rec)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.epoch != epoch {
		zap.L().Info("dropping extraction for reset session", zap.String("session_id", m.id.String()))
		return fmt.Errorf("%w: session was reset during processing", domain.ErrInvalidTransition)
	}

	if !out.Usable() {
		m.lastError = strings.Join(append([]string{out.ErrorText()}, rec.Flags...), "; ")
		m.record = domain.NewFinancialRecord()
		m.logEvent(domain.AuditEvent{Actor: "system", Type: domain.AuditExtractionFailed, Detail: m.lastError})
		m.transition(domain.StageUpload, "system")
		return fmt.Errorf("%w: %s", domain.ErrExtractionFailed, m.lastError)
	}

	m.record = rec
	m.record.SourceFileKey = up.SourceKey
	m.notes = append(append([]string{}, out.Notes...), notes...)
	if out.Status == domain.OutcomeDegraded && out.Err != nil {
		m.notes = append(m.notes, out.ErrorText())
	}
	m.versions = map[string]uint64{}
	m.overrides = map[string]string{}
	m.interrupts = nil
	m.raiseConfirmations()
	m.transition(domain.StageReview, "system")
	return nil
}

// enhance runs the smart mapper over the extracted values and fills fields
// the extractor left empty. Mapper failures leave the record unchanged.
func (m *Machine) enhance(ctx context.Context, rec *domain.FinancialRecord) (*domain.FinancialRecord, []string) {
	if m.deps.Mapper == nil {
		return rec, nil
	}
	fragments := mapper.FlattenRecord(rec)
	if len(fragments) == 0 {
		return rec, nil
	}
	out := m.deps.Mapper.Map(ctx, fragments)
	if !out.Usable() {
		zap.L().Warn("smart mapping failed, keeping extracted record", zap.Error(out.Err))
		return rec, []string{"smart mapping unavailable"}
	}

	var fill []mapper.Mapping
	for _, mp := range out.Value.Mappings {
		p, ok := mapper.TargetPath(mp)
		if !ok {
			continue
		}
		if _, populated := rec.Get(p); !populated {
			fill = append(fill, mp)
		}
	}
	if len(fill) == 0 {
		return rec, out.Notes
	}
	return mapper.Enhance(rec, fill), out.Notes
}

// raiseConfirmations asks the reviewer to confirm every populated field
// whose confidence is below the threshold.
func (m *Machine) raiseConfirmations() {
	for _, p := range m.record.PopulatedPaths() {
		conf := m.record.Confidence
		if fc, ok := m.record.ConfidenceAt(p); ok {
			conf = fc.Confidence
		}
		if conf >= m.opts.ConfirmationThreshold {
			continue
		}
		v, _ := m.record.Get(p)
		m.raise(domain.InterruptConfirmation, p, v, conf, []string{"Low extraction confidence"}, false)
	}
}

// Reset discards the record and returns to upload. Capability results
// still in flight are dropped when they return.
func (m *Machine) Reset(actor string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.epoch++
	m.record = domain.NewFinancialRecord()
	m.versions = map[string]uint64{}
	m.overrides = map[string]string{}
	m.mandatoryOverride = false
	m.advancing = false
	m.interrupts = nil
	m.lastError = ""
	m.notes = nil
	m.filename = ""
	m.recordID = nil
	m.logEvent(domain.AuditEvent{Actor: actor, Type: domain.AuditSessionReset})
	m.transition(domain.StageUpload, actor)
}

// FieldStatuses reports the reviewer-facing status of every populated field.
func (m *Machine) FieldStatuses() map[string]*validator.FieldStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return validator.ComputeFieldStatuses(m.record, m.opts.ConfirmationThreshold, m.acceptedOverrides())
}

func (m *Machine) requireStage(allowed ...domain.Stage) error {
	for _, s := range allowed {
		if m.stage == s {
			return nil
		}
	}
	return fmt.Errorf("%w: session is in %s", domain.ErrInvalidTransition, m.stage)
}

func (m *Machine) transition(to domain.Stage, actor string) {
	from := m.stage
	if from == to {
		return
	}
	m.stage = to
	metrics.StageTransitions.WithLabelValues(string(from), string(to)).Inc()
	m.logEvent(domain.AuditEvent{Actor: actor, Type: domain.AuditStageChanged, OldValue: string(from), NewValue: string(to)})
}

func (m *Machine) logEvent(e domain.AuditEvent) {
	e.At = m.opts.Now()
	if e.Actor == "" {
		e.Actor = "anonymous"
	}
	m.audit = append(m.audit, e)
	m.updatedAt = e.At
}

// acceptedOverrides returns the overrides whose accepted value is still the
// current value.
func (m *Machine) acceptedOverrides() map[string]string {
	out := make(map[string]string, len(m.overrides))
	for key, accepted := range m.overrides {
		p, err := domain.ParseFieldPath(key)
		if err != nil {
			continue
		}
		if v, _ := m.record.Get(p); v == accepted {
			out[key] = accepted
		}
	}
	return out
}

func (m *Machine) overridden(p domain.FieldPath) bool {
	accepted, ok := m.overrides[p.String()]
	if !ok {
		return false
	}
	v, _ := m.record.Get(p)
	return v == accepted
}

// fresh reports whether a result computed for path at (epoch, version,
// value) still applies.
func (m *Machine) fresh(epoch uint64, p domain.FieldPath, version uint64, value string) bool {
	if m.epoch != epoch || m.versions[p.String()] != version {
		return false
	}
	current, _ := m.record.Get(p)
	return current == value
}
