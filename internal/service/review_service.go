package service

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"finreview/internal/config"
	"finreview/internal/domain"
	"finreview/internal/export"
	"finreview/internal/metrics"
	"finreview/internal/port"
	"finreview/internal/standardize"
	s3storage "finreview/internal/storage/s3"
	"finreview/internal/validator"
	"finreview/internal/workflow"
)

// UploadInput is a form image submitted to a review session.
type UploadInput struct {
	Filename string
	Data     []byte
	Actor    string
}

// SessionView is a review session as returned to clients. ImageURL is a
// presigned link to the archived form image when one exists.
type SessionView struct {
	workflow.Snapshot
	ImageURL string `json:"image_url,omitempty"`
}

// EditResult is the outcome of a reviewer edit. Validation is nil when the
// verdict was discarded because the field changed again.
type EditResult struct {
	Validation *domain.ValidationResult `json:"validation"`
	Session    *SessionView             `json:"session"`
}

// ExportFile is a rendered export ready for download.
type ExportFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ReviewService drives review sessions on behalf of HTTP clients.
type ReviewService interface {
	Start(ctx context.Context, actor string) (*SessionView, error)
	Get(ctx context.Context, id uuid.UUID) (*SessionView, error)
	Upload(ctx context.Context, id uuid.UUID, input UploadInput) (*SessionView, error)
	EditField(ctx context.Context, id uuid.UUID, path, value, actor string) (*EditResult, error)
	ConfirmField(ctx context.Context, id uuid.UUID, path, actor string) (*SessionView, error)
	AcceptField(ctx context.Context, id uuid.UUID, path, actor string) (*SessionView, error)
	StandardizeField(ctx context.Context, id uuid.UUID, path, actor string) (*standardize.Result, error)
	Validate(ctx context.Context, id uuid.UUID) (*validator.BatchReport, error)
	ContinueAnyway(ctx context.Context, id uuid.UUID, actor string) ([]string, error)
	SetStatus(ctx context.Context, id uuid.UUID, status domain.RecordStatus, notes, actor string) (*SessionView, error)
	Advance(ctx context.Context, id uuid.UUID, actor string) (*SessionView, error)
	Export(ctx context.Context, id uuid.UUID, format string) (*ExportFile, error)
	Reset(ctx context.Context, id uuid.UUID, actor string) (*SessionView, error)
}

type liveSession struct {
	machine  *workflow.Machine
	lastUsed time.Time
}

type reviewService struct {
	deps    workflow.Deps
	opts    workflow.Options
	store   port.SessionStore
	archive port.FormArchive
	ttl     time.Duration
	presign time.Duration
	now     func() time.Time

	mu   sync.Mutex
	live map[uuid.UUID]*liveSession
}

// NewReviewService creates a ReviewService. Sessions are kept live in memory
// and a snapshot is written to store after every operation, so a session
// evicted from memory or owned by a restarted process is restored on demand.
// archive may be nil.
func NewReviewService(
	pipeline *Pipeline,
	repo port.RecordRepository,
	store port.SessionStore,
	archive port.FormArchive,
	sessionCfg config.SessionConfig,
	s3Cfg *config.S3Config,
) ReviewService {
	opts := pipeline.Options()
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	presign := time.Hour
	if s3Cfg != nil && s3Cfg.PresignExpiry > 0 {
		presign = time.Duration(s3Cfg.PresignExpiry) * time.Second
	}
	return &reviewService{
		deps:    pipeline.Deps(repo),
		opts:    opts,
		store:   store,
		archive: archive,
		ttl:     sessionCfg.TTL,
		presign: presign,
		now:     now,
		live:    map[uuid.UUID]*liveSession{},
	}
}

func (s *reviewService) Start(ctx context.Context, actor string) (*SessionView, error) {
	m := workflow.New(uuid.New(), s.deps, s.opts)
	s.mu.Lock()
	s.live[m.ID()] = &liveSession{machine: m, lastUsed: s.now()}
	metrics.ActiveSessions.Set(float64(len(s.live)))
	s.mu.Unlock()

	zap.L().Info("review session started", zap.String("session_id", m.ID().String()), zap.String("actor", actor))
	s.persist(ctx, m)
	return s.view(ctx, m), nil
}

func (s *reviewService) Get(ctx context.Context, id uuid.UUID) (*SessionView, error) {
	m, err := s.machine(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.view(ctx, m), nil
}

func (s *reviewService) Upload(ctx context.Context, id uuid.UUID, input UploadInput) (*SessionView, error) {
	if len(input.Data) == 0 {
		return nil, domain.ErrEmptyFile
	}
	contentType := http.DetectContentType(input.Data)
	if !domain.AllowedContentTypes[contentType] {
		return nil, domain.ErrUnsupportedFileType
	}

	m, err := s.machine(ctx, id)
	if err != nil {
		return nil, err
	}
	if stage := m.Stage(); stage != domain.StageUpload {
		return nil, fmt.Errorf("%w: session is in %s", domain.ErrInvalidTransition, stage)
	}

	up := workflow.Upload{Filename: input.Filename, ContentType: contentType, Data: input.Data}
	if s.archive != nil {
		key := s3storage.FormKey(id, input.Filename, s.now())
		if _, err := s.archive.Store(ctx, port.ArchiveInput{
			Key:         key,
			Body:        bytes.NewReader(input.Data),
			ContentType: contentType,
			Size:        int64(len(input.Data)),
		}); err != nil {
			zap.L().Warn("failed to archive form image, continuing without it",
				zap.String("session_id", id.String()), zap.Error(err))
		} else {
			up.SourceKey = key
		}
	}

	zap.L().Info("extracting uploaded form",
		zap.String("session_id", id.String()),
		zap.String("filename", input.Filename),
		zap.String("content_type", contentType),
		zap.Int("size", len(input.Data)),
	)
	err = m.Submit(ctx, up)
	s.persist(ctx, m)
	if err != nil {
		return nil, err
	}
	return s.view(ctx, m), nil
}

func (s *reviewService) EditField(ctx context.Context, id uuid.UUID, path, value, actor string) (*EditResult, error) {
	m, err := s.machine(ctx, id)
	if err != nil {
		return nil, err
	}
	res, err := m.EditField(ctx, path, value, actor)
	if err != nil {
		return nil, err
	}
	s.persist(ctx, m)
	return &EditResult{Validation: res, Session: s.view(ctx, m)}, nil
}

func (s *reviewService) ConfirmField(ctx context.Context, id uuid.UUID, path, actor string) (*SessionView, error) {
	return s.apply(ctx, id, func(m *workflow.Machine) error {
		return m.ConfirmField(path, actor)
	})
}

func (s *reviewService) AcceptField(ctx context.Context, id uuid.UUID, path, actor string) (*SessionView, error) {
	return s.apply(ctx, id, func(m *workflow.Machine) error {
		return m.AcceptField(path, actor)
	})
}

func (s *reviewService) StandardizeField(ctx context.Context, id uuid.UUID, path, actor string) (*standardize.Result, error) {
	m, err := s.machine(ctx, id)
	if err != nil {
		return nil, err
	}
	res, err := m.StandardizeField(ctx, path, actor)
	if err != nil {
		return nil, err
	}
	s.persist(ctx, m)
	return &res, nil
}

func (s *reviewService) Validate(ctx context.Context, id uuid.UUID) (*validator.BatchReport, error) {
	m, err := s.machine(ctx, id)
	if err != nil {
		return nil, err
	}
	rep, err := m.Validate(ctx)
	if err != nil {
		return nil, err
	}
	s.persist(ctx, m)
	return &rep, nil
}

func (s *reviewService) ContinueAnyway(ctx context.Context, id uuid.UUID, actor string) ([]string, error) {
	m, err := s.machine(ctx, id)
	if err != nil {
		return nil, err
	}
	resolved, err := m.ContinueAnyway(actor)
	if err != nil {
		return nil, err
	}
	s.persist(ctx, m)
	return resolved, nil
}

func (s *reviewService) SetStatus(ctx context.Context, id uuid.UUID, status domain.RecordStatus, notes, actor string) (*SessionView, error) {
	return s.apply(ctx, id, func(m *workflow.Machine) error {
		return m.SetStatus(status, notes, actor)
	})
}

// Advance persists a blocked attempt as well, since it raises interrupts.
func (s *reviewService) Advance(ctx context.Context, id uuid.UUID, actor string) (*SessionView, error) {
	m, err := s.machine(ctx, id)
	if err != nil {
		return nil, err
	}
	err = m.Advance(ctx, actor)
	s.persist(ctx, m)
	if err != nil {
		return nil, err
	}
	zap.L().Info("review session advanced to export", zap.String("session_id", id.String()), zap.String("actor", actor))
	return s.view(ctx, m), nil
}

func (s *reviewService) Export(ctx context.Context, id uuid.UUID, format string) (*ExportFile, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = export.FormatCSV
	}
	contentType, ok := export.ContentTypes[format]
	if !ok {
		return nil, fmt.Errorf("%w: unsupported export format %q", domain.ErrInvalidFieldValue, format)
	}

	m, err := s.machine(ctx, id)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := m.WriteExport(&buf, format); err != nil {
		return nil, err
	}
	return &ExportFile{
		Filename:    m.ExportFilename(format),
		ContentType: contentType,
		Data:        buf.Bytes(),
	}, nil
}

func (s *reviewService) Reset(ctx context.Context, id uuid.UUID, actor string) (*SessionView, error) {
	return s.apply(ctx, id, func(m *workflow.Machine) error {
		m.Reset(actor)
		return nil
	})
}

func (s *reviewService) apply(ctx context.Context, id uuid.UUID, op func(m *workflow.Machine) error) (*SessionView, error) {
	m, err := s.machine(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := op(m); err != nil {
		return nil, err
	}
	s.persist(ctx, m)
	return s.view(ctx, m), nil
}

// machine returns the live session, restoring it from the store when it is
// not held in memory. Sessions idle for longer than the TTL are dropped.
func (s *reviewService) machine(ctx context.Context, id uuid.UUID) (*workflow.Machine, error) {
	now := s.now()
	s.mu.Lock()
	s.evictIdle(now)
	if ls, ok := s.live[id]; ok {
		ls.lastUsed = now
		s.mu.Unlock()
		return ls.machine, nil
	}
	s.mu.Unlock()

	data, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	snap, err := workflow.UnmarshalSnapshot(data)
	if err != nil {
		return nil, err
	}
	restored := workflow.Restore(snap, s.deps, s.opts)

	s.mu.Lock()
	defer s.mu.Unlock()
	if ls, ok := s.live[id]; ok {
		ls.lastUsed = now
		return ls.machine, nil
	}
	s.live[id] = &liveSession{machine: restored, lastUsed: now}
	metrics.ActiveSessions.Set(float64(len(s.live)))
	zap.L().Debug("review session restored", zap.String("session_id", id.String()), zap.String("stage", string(snap.Stage)))
	return restored, nil
}

func (s *reviewService) evictIdle(now time.Time) {
	if s.ttl <= 0 {
		return
	}
	for id, ls := range s.live {
		if now.Sub(ls.lastUsed) > s.ttl {
			delete(s.live, id)
		}
	}
	metrics.ActiveSessions.Set(float64(len(s.live)))
}

// persist writes the session snapshot. A failed write is logged; the live
// session stays authoritative for this process.
func (s *reviewService) persist(ctx context.Context, m *workflow.Machine) {
	data, err := m.MarshalSnapshot()
	if err == nil {
		err = s.store.Put(ctx, m.ID(), data, s.ttl)
	}
	if err != nil {
		zap.L().Error("failed to persist review session", zap.String("session_id", m.ID().String()), zap.Error(err))
	}
}

func (s *reviewService) view(ctx context.Context, m *workflow.Machine) *SessionView {
	v := &SessionView{Snapshot: m.Snapshot()}
	if s.archive == nil || v.Record == nil || v.Record.SourceFileKey == "" {
		return v
	}
	url, err := s.archive.PresignedURL(ctx, v.Record.SourceFileKey, s.presign)
	if err != nil {
		zap.L().Warn("failed to presign form image", zap.String("key", v.Record.SourceFileKey), zap.Error(err))
		return v
	}
	v.ImageURL = url
	return v
}
