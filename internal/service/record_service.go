package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"finreview/internal/analytics"
	"finreview/internal/domain"
	"finreview/internal/port"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
	// analyticsWindow bounds how many recent records feed the report.
	analyticsWindow = 1000
)

// RecordService reads saved records.
type RecordService interface {
	ListRecent(ctx context.Context, limit int) ([]domain.FinancialRecord, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.FinancialRecord, error)
	Analytics(ctx context.Context) (*analytics.Report, error)
}

type recordService struct {
	repo port.RecordRepository
	now  func() time.Time
}

// NewRecordService creates a new RecordService.
func NewRecordService(repo port.RecordRepository) RecordService {
	return &recordService{repo: repo, now: time.Now}
}

func (s *recordService) ListRecent(ctx context.Context, limit int) ([]domain.FinancialRecord, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	return s.repo.ListRecent(ctx, limit)
}

func (s *recordService) GetByID(ctx context.Context, id uuid.UUID) (*domain.FinancialRecord, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *recordService) Analytics(ctx context.Context) (*analytics.Report, error) {
	records, err := s.repo.ListRecent(ctx, analyticsWindow)
	if err != nil {
		return nil, err
	}
	report := analytics.Compute(records, s.now())
	return &report, nil
}
