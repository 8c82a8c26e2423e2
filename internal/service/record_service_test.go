package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"finreview/internal/domain"
	"finreview/mocks"
)

func TestRecordService_ListRecentClampsLimit(t *testing.T) {
	tests := []struct {
		name  string
		limit int
		want  int
	}{
		{"default", 0, 50},
		{"negative", -3, 50},
		{"within range", 20, 20},
		{"capped", 10000, 500},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(mocks.MockRecordRepo)
			repo.On("ListRecent", mock.Anything, tt.want).Return([]domain.FinancialRecord{}, nil)
			svc := NewRecordService(repo)

			recs, err := svc.ListRecent(context.Background(), tt.limit)

			require.NoError(t, err)
			assert.Empty(t, recs)
			repo.AssertExpectations(t)
		})
	}
}

func TestRecordService_GetByIDNotFound(t *testing.T) {
	repo := new(mocks.MockRecordRepo)
	id := uuid.New()
	repo.On("GetByID", mock.Anything, id).Return(nil, domain.ErrRecordNotFound)
	svc := NewRecordService(repo)

	_, err := svc.GetByID(context.Background(), id)

	assert.ErrorIs(t, err, domain.ErrRecordNotFound)
}

func TestRecordService_Analytics(t *testing.T) {
	repo := new(mocks.MockRecordRepo)
	rec := extractedRecord()
	rec.CreatedAt = fixedNow.AddDate(0, 0, -2)
	rec.Flags = []string{"Handwriting unclear"}
	repo.On("ListRecent", mock.Anything, analyticsWindow).Return([]domain.FinancialRecord{*rec}, nil)
	svc := &recordService{repo: repo, now: func() time.Time { return fixedNow }}

	report, err := svc.Analytics(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, report.Summary.TotalForms)
	assert.Equal(t, 1, report.Summary.FormsWithFlags)
	require.Len(t, report.FlagAnalysis, 1)
	assert.Equal(t, "Handwriting unclear", report.FlagAnalysis[0].Label)
}

func TestRecordService_AnalyticsRepoError(t *testing.T) {
	repo := new(mocks.MockRecordRepo)
	repo.On("ListRecent", mock.Anything, analyticsWindow).Return(nil, errors.New("connection refused"))
	svc := NewRecordService(repo)

	_, err := svc.Analytics(context.Background())

	assert.Error(t, err)
}
