package handler_test

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"finreview/internal/analytics"
	"finreview/internal/domain"
	"finreview/internal/enforcer"
	"finreview/internal/service"
	"finreview/internal/standardize"
	"finreview/internal/validator"
)

type mockReviewService struct {
	mock.Mock
}

func (m *mockReviewService) view(args mock.Arguments) (*service.SessionView, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.SessionView), args.Error(1)
}

func (m *mockReviewService) Start(ctx context.Context, actor string) (*service.SessionView, error) {
	return m.view(m.Called(ctx, actor))
}

func (m *mockReviewService) Get(ctx context.Context, id uuid.UUID) (*service.SessionView, error) {
	return m.view(m.Called(ctx, id))
}

func (m *mockReviewService) Upload(ctx context.Context, id uuid.UUID, input service.UploadInput) (*service.SessionView, error) {
	return m.view(m.Called(ctx, id, input))
}

func (m *mockReviewService) EditField(ctx context.Context, id uuid.UUID, path, value, actor string) (*service.EditResult, error) {
	args := m.Called(ctx, id, path, value, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.EditResult), args.Error(1)
}

func (m *mockReviewService) ConfirmField(ctx context.Context, id uuid.UUID, path, actor string) (*service.SessionView, error) {
	return m.view(m.Called(ctx, id, path, actor))
}

func (m *mockReviewService) AcceptField(ctx context.Context, id uuid.UUID, path, actor string) (*service.SessionView, error) {
	return m.view(m.Called(ctx, id, path, actor))
}

func (m *mockReviewService) StandardizeField(ctx context.Context, id uuid.UUID, path, actor string) (*standardize.Result, error) {
	args := m.Called(ctx, id, path, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*standardize.Result), args.Error(1)
}

func (m *mockReviewService) Validate(ctx context.Context, id uuid.UUID) (*validator.BatchReport, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*validator.BatchReport), args.Error(1)
}

func (m *mockReviewService) ContinueAnyway(ctx context.Context, id uuid.UUID, actor string) ([]string, error) {
	args := m.Called(ctx, id, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *mockReviewService) SetStatus(ctx context.Context, id uuid.UUID, status domain.RecordStatus, notes, actor string) (*service.SessionView, error) {
	return m.view(m.Called(ctx, id, status, notes, actor))
}

func (m *mockReviewService) Advance(ctx context.Context, id uuid.UUID, actor string) (*service.SessionView, error) {
	return m.view(m.Called(ctx, id, actor))
}

func (m *mockReviewService) Export(ctx context.Context, id uuid.UUID, format string) (*service.ExportFile, error) {
	args := m.Called(ctx, id, format)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ExportFile), args.Error(1)
}

func (m *mockReviewService) Reset(ctx context.Context, id uuid.UUID, actor string) (*service.SessionView, error) {
	return m.view(m.Called(ctx, id, actor))
}

type mockRecordService struct {
	mock.Mock
}

func (m *mockRecordService) ListRecent(ctx context.Context, limit int) ([]domain.FinancialRecord, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.FinancialRecord), args.Error(1)
}

func (m *mockRecordService) GetByID(ctx context.Context, id uuid.UUID) (*domain.FinancialRecord, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.FinancialRecord), args.Error(1)
}

func (m *mockRecordService) Analytics(ctx context.Context) (*analytics.Report, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*analytics.Report), args.Error(1)
}

type mockCapabilityService struct {
	mock.Mock
}

func (m *mockCapabilityService) Extract(ctx context.Context, filename string, data []byte) (domain.Outcome[*domain.FinancialRecord], error) {
	args := m.Called(ctx, filename, data)
	return args.Get(0).(domain.Outcome[*domain.FinancialRecord]), args.Error(1)
}

func (m *mockCapabilityService) ValidateField(ctx context.Context, req validator.FieldRequest, rec *domain.FinancialRecord, section domain.Section) service.FieldValidation {
	return m.Called(ctx, req, rec, section).Get(0).(service.FieldValidation)
}

func (m *mockCapabilityService) ValidationRules() service.ValidationRulesInfo {
	return m.Called().Get(0).(service.ValidationRulesInfo)
}

func (m *mockCapabilityService) EnforceFields(ctx context.Context, rec *domain.FinancialRecord, strict bool) domain.Outcome[enforcer.Result] {
	return m.Called(ctx, rec, strict).Get(0).(domain.Outcome[enforcer.Result])
}

func (m *mockCapabilityService) EnforcementRules() enforcer.RulesInfo {
	return m.Called().Get(0).(enforcer.RulesInfo)
}

func (m *mockCapabilityService) SmartMap(ctx context.Context, extracted json.RawMessage) (*service.SmartMappingResult, error) {
	args := m.Called(ctx, extracted)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.SmartMappingResult), args.Error(1)
}

func (m *mockCapabilityService) Standardize(ctx context.Context, text, fieldType string, rulesOnly bool) domain.Outcome[standardize.Result] {
	return m.Called(ctx, text, fieldType, rulesOnly).Get(0).(domain.Outcome[standardize.Result])
}

func (m *mockCapabilityService) StandardizationRules() []standardize.Rule {
	return m.Called().Get(0).([]standardize.Rule)
}
