package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"finreview/internal/port"
)

// MockFormArchive is a mock implementation of port.FormArchive.
type MockFormArchive struct {
	mock.Mock
}

func (m *MockFormArchive) Store(ctx context.Context, input port.ArchiveInput) (*port.ArchivedObject, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*port.ArchivedObject), args.Error(1)
}

func (m *MockFormArchive) PresignedURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	args := m.Called(ctx, key, expiry)
	return args.String(0), args.Error(1)
}

func (m *MockFormArchive) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}
