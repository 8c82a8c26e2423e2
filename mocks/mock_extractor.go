package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"finreview/internal/domain"
	"finreview/internal/port"
)

// MockExtractor is a mock implementation of port.Extractor.
type MockExtractor struct {
	mock.Mock
}

func (m *MockExtractor) Extract(ctx context.Context, input port.ExtractInput) domain.Outcome[*domain.FinancialRecord] {
	args := m.Called(ctx, input)
	return args.Get(0).(domain.Outcome[*domain.FinancialRecord])
}
