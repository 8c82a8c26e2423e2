package service

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"finreview/internal/config"
	"finreview/internal/domain"
	"finreview/internal/enforcer"
	"finreview/internal/port"
	"finreview/internal/session"
	"finreview/internal/validator"
	"finreview/internal/workflow"
	"finreview/mocks"
)

var fixedNow = time.Date(2026, 3, 15, 9, 30, 0, 0, time.UTC)

func amt(f float64) *float64 { return &f }

// pngContent returns bytes sniffed as image/png.
func pngContent() []byte {
	header := []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}
	return append(header, bytes.Repeat([]byte{0x00}, 100)...)
}

func extractedRecord() *domain.FinancialRecord {
	rec := domain.NewFinancialRecord()
	rec.ApplicantIncome = []domain.ApplicantIncome{{Occupation: "Cleaner", GrossMonthlyIncomeSGD: amt(1500)}}
	rec.Personal = domain.PersonalInfo{ApplicantName: "Tan Ah Kow", NRIC: "S1234567A"}
	rec.Confidence = 0.9
	for _, p := range rec.PopulatedPaths() {
		v, _ := rec.Get(p)
		rec.SetConfidence(p, domain.NewFieldConfidence(v, 0.9, domain.SourceOCR))
	}
	return rec
}

type reviewFixture struct {
	extractor *mocks.MockExtractor
	repo      *mocks.MockRecordRepo
	archive   *mocks.MockFormArchive
	store     port.SessionStore
	svc       *reviewService
}

func newReviewFixture(t *testing.T, withArchive bool, store port.SessionStore) *reviewFixture {
	t.Helper()
	f := &reviewFixture{
		extractor: new(mocks.MockExtractor),
		repo:      new(mocks.MockRecordRepo),
		store:     store,
	}
	if f.store == nil {
		f.store = session.NewMemoryStore()
	}
	pipeline := &Pipeline{
		Extractor: f.extractor,
		Validator: validator.NewOrchestrator(validator.DefaultRegistry(), nil, validator.Options{}),
		Enforcer:  enforcer.New(nil),
		options: workflow.Options{
			Rules: domain.DefaultSectionRules(),
			Now:   func() time.Time { return fixedNow },
		},
	}
	var archive port.FormArchive
	if withArchive {
		f.archive = new(mocks.MockFormArchive)
		archive = f.archive
	}
	svc := NewReviewService(pipeline, f.repo, f.store, archive,
		config.SessionConfig{Store: "memory", TTL: time.Hour},
		&config.S3Config{PresignExpiry: 600},
	)
	f.svc = svc.(*reviewService)
	return f
}

func (f *reviewFixture) forget(id uuid.UUID) {
	f.svc.mu.Lock()
	delete(f.svc.live, id)
	f.svc.mu.Unlock()
}

func TestReviewService_StartAndRestore(t *testing.T) {
	f := newReviewFixture(t, false, nil)
	ctx := context.Background()

	started, err := f.svc.Start(ctx, "reviewer-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StageUpload, started.Stage)

	f.forget(started.ID)
	got, err := f.svc.Get(ctx, started.ID)

	require.NoError(t, err)
	assert.Equal(t, started.ID, got.ID)
	assert.Equal(t, domain.StageUpload, got.Stage)
}

func TestReviewService_GetUnknownSession(t *testing.T) {
	f := newReviewFixture(t, false, nil)

	_, err := f.svc.Get(context.Background(), uuid.New())

	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestReviewService_Upload_RejectsBadFiles(t *testing.T) {
	f := newReviewFixture(t, false, nil)
	ctx := context.Background()
	started, err := f.svc.Start(ctx, "reviewer-1")
	require.NoError(t, err)

	_, err = f.svc.Upload(ctx, started.ID, UploadInput{Filename: "form.png"})
	assert.ErrorIs(t, err, domain.ErrEmptyFile)

	_, err = f.svc.Upload(ctx, started.ID, UploadInput{Filename: "form.txt", Data: []byte("plain text, not an image")})
	assert.ErrorIs(t, err, domain.ErrUnsupportedFileType)

	f.extractor.AssertNotCalled(t, "Extract", mock.Anything, mock.Anything)
}

func TestReviewService_Upload_ArchivesAndExtracts(t *testing.T) {
	f := newReviewFixture(t, true, nil)
	f.svc.now = func() time.Time { return fixedNow }
	ctx := context.Background()
	started, err := f.svc.Start(ctx, "reviewer-1")
	require.NoError(t, err)

	wantKey := "forms/2026/03/15/" + started.ID.String() + "/form.png"
	f.archive.On("Store", mock.Anything, mock.MatchedBy(func(in port.ArchiveInput) bool {
		return in.Key == wantKey && in.ContentType == "image/png" && in.Size == int64(len(pngContent()))
	})).Return(&port.ArchivedObject{Key: wantKey}, nil)
	f.archive.On("PresignedURL", mock.Anything, wantKey, 10*time.Minute).Return("https://s3.example/form.png?sig", nil)
	f.extractor.On("Extract", mock.Anything, mock.MatchedBy(func(in port.ExtractInput) bool {
		return in.ContentType == "image/png" && in.Filename == "form.png"
	})).Return(domain.Succeeded(extractedRecord()))

	view, err := f.svc.Upload(ctx, started.ID, UploadInput{Filename: "form.png", Data: pngContent(), Actor: "reviewer-1"})

	require.NoError(t, err)
	assert.Equal(t, domain.StageReview, view.Stage)
	assert.Equal(t, wantKey, view.Record.SourceFileKey)
	assert.Equal(t, "https://s3.example/form.png?sig", view.ImageURL)
	f.archive.AssertExpectations(t)
	f.extractor.AssertExpectations(t)
}

func TestReviewService_Upload_ArchiveFailureIsNotFatal(t *testing.T) {
	f := newReviewFixture(t, true, nil)
	ctx := context.Background()
	started, err := f.svc.Start(ctx, "reviewer-1")
	require.NoError(t, err)

	f.archive.On("Store", mock.Anything, mock.Anything).Return(nil, errors.New("bucket unreachable"))
	f.extractor.On("Extract", mock.Anything, mock.Anything).Return(domain.Succeeded(extractedRecord()))

	view, err := f.svc.Upload(ctx, started.ID, UploadInput{Filename: "form.png", Data: pngContent()})

	require.NoError(t, err)
	assert.Equal(t, domain.StageReview, view.Stage)
	assert.Empty(t, view.Record.SourceFileKey)
	assert.Empty(t, view.ImageURL)
	f.archive.AssertNotCalled(t, "PresignedURL", mock.Anything, mock.Anything, mock.Anything)
}

func TestReviewService_Upload_WrongStage(t *testing.T) {
	f := newReviewFixture(t, false, nil)
	ctx := context.Background()
	started, err := f.svc.Start(ctx, "reviewer-1")
	require.NoError(t, err)
	f.extractor.On("Extract", mock.Anything, mock.Anything).Return(domain.Succeeded(extractedRecord())).Once()

	_, err = f.svc.Upload(ctx, started.ID, UploadInput{Filename: "form.png", Data: pngContent()})
	require.NoError(t, err)
	_, err = f.svc.Upload(ctx, started.ID, UploadInput{Filename: "form.png", Data: pngContent()})

	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	f.extractor.AssertNumberOfCalls(t, "Extract", 1)
}

func TestReviewService_Upload_ExtractionFailurePersisted(t *testing.T) {
	f := newReviewFixture(t, false, nil)
	ctx := context.Background()
	started, err := f.svc.Start(ctx, "reviewer-1")
	require.NoError(t, err)
	f.extractor.On("Extract", mock.Anything, mock.Anything).
		Return(domain.Failed(domain.NewFinancialRecord(), errors.New("provider timeout")))

	_, err = f.svc.Upload(ctx, started.ID, UploadInput{Filename: "form.png", Data: pngContent()})
	require.ErrorIs(t, err, domain.ErrExtractionFailed)

	f.forget(started.ID)
	got, err := f.svc.Get(ctx, started.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StageUpload, got.Stage)
	assert.Contains(t, got.LastError, "provider timeout")
}

func TestReviewService_EditRestoredSession(t *testing.T) {
	f := newReviewFixture(t, false, nil)
	ctx := context.Background()
	started, err := f.svc.Start(ctx, "reviewer-1")
	require.NoError(t, err)
	f.extractor.On("Extract", mock.Anything, mock.Anything).Return(domain.Succeeded(extractedRecord()))
	_, err = f.svc.Upload(ctx, started.ID, UploadInput{Filename: "form.png", Data: pngContent()})
	require.NoError(t, err)

	f.forget(started.ID)
	res, err := f.svc.EditField(ctx, started.ID, "personal.nric", "S1234567", "reviewer-1")

	require.NoError(t, err)
	require.NotNil(t, res.Validation)
	assert.False(t, res.Validation.IsValid)
	assert.Equal(t, "S1234567", res.Session.Record.Personal.NRIC)

	f.forget(started.ID)
	again, err := f.svc.Get(ctx, started.ID)
	require.NoError(t, err)
	assert.Equal(t, "S1234567", again.Record.Personal.NRIC)
}

func TestReviewService_AdvanceAndExport(t *testing.T) {
	f := newReviewFixture(t, false, nil)
	ctx := context.Background()
	started, err := f.svc.Start(ctx, "reviewer-1")
	require.NoError(t, err)
	f.extractor.On("Extract", mock.Anything, mock.Anything).Return(domain.Succeeded(extractedRecord()))
	_, err = f.svc.Upload(ctx, started.ID, UploadInput{Filename: "Tan form.png", Data: pngContent()})
	require.NoError(t, err)

	recordID := uuid.New()
	f.repo.On("Save", mock.Anything, mock.Anything).Return(recordID, nil)

	view, err := f.svc.Advance(ctx, started.ID, "reviewer-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StageExport, view.Stage)
	require.NotNil(t, view.RecordID)
	assert.Equal(t, recordID, *view.RecordID)

	file, err := f.svc.Export(ctx, started.ID, "CSV")
	require.NoError(t, err)
	assert.Equal(t, "Tan_form_2026-03-15.csv", file.Filename)
	assert.True(t, strings.HasPrefix(file.ContentType, "text/csv"))
	assert.Contains(t, string(file.Data), "Tan Ah Kow")

	_, err = f.svc.Export(ctx, started.ID, "pdf")
	assert.ErrorIs(t, err, domain.ErrInvalidFieldValue)
}

func TestReviewService_ResetReturnsToUpload(t *testing.T) {
	f := newReviewFixture(t, false, nil)
	ctx := context.Background()
	started, err := f.svc.Start(ctx, "reviewer-1")
	require.NoError(t, err)
	f.extractor.On("Extract", mock.Anything, mock.Anything).Return(domain.Succeeded(extractedRecord()))
	_, err = f.svc.Upload(ctx, started.ID, UploadInput{Filename: "form.png", Data: pngContent()})
	require.NoError(t, err)

	view, err := f.svc.Reset(ctx, started.ID, "reviewer-1")

	require.NoError(t, err)
	assert.Equal(t, domain.StageUpload, view.Stage)
	assert.Equal(t, uint64(1), view.Epoch)
}

func TestReviewService_PersistFailureDoesNotFailOperation(t *testing.T) {
	store := new(mocks.MockSessionStore)
	store.On("Put", mock.Anything, mock.Anything, mock.Anything, time.Hour).Return(errors.New("redis down"))
	f := newReviewFixture(t, false, store)

	view, err := f.svc.Start(context.Background(), "reviewer-1")

	require.NoError(t, err)
	assert.Equal(t, domain.StageUpload, view.Stage)
	store.AssertExpectations(t)
}

func TestReviewService_EvictsIdleSessions(t *testing.T) {
	f := newReviewFixture(t, false, nil)
	ctx := context.Background()
	clock := fixedNow
	f.svc.now = func() time.Time { return clock }

	started, err := f.svc.Start(ctx, "reviewer-1")
	require.NoError(t, err)

	clock = clock.Add(2 * time.Hour)
	_, err = f.svc.Get(ctx, uuid.New())
	require.ErrorIs(t, err, domain.ErrSessionNotFound)

	f.svc.mu.Lock()
	_, live := f.svc.live[started.ID]
	f.svc.mu.Unlock()
	assert.False(t, live)
}
