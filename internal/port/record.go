package port

import (
	"context"
	"time"

	"github.com/google/uuid"

	"finreview/internal/domain"
)

// SaveRequest bundles a reviewed record with the review trail stored
// alongside it. Overrides maps a path to the value the reviewer accepted
// despite a failed validation.
type SaveRequest struct {
	Record    *domain.FinancialRecord
	Overrides map[string]string
	History   []domain.AuditEvent
}

// RecordRepository persists reviewed financial records.
type RecordRepository interface {
	// Save writes the record and its children in one transaction and
	// returns the new record id.
	Save(ctx context.Context, req SaveRequest) (uuid.UUID, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.FinancialRecord, error)
	// ListRecent returns records newest first.
	ListRecent(ctx context.Context, limit int) ([]domain.FinancialRecord, error)
}

// SessionStore keeps serialized review session snapshots.
type SessionStore interface {
	Put(ctx context.Context, id uuid.UUID, snapshot []byte, ttl time.Duration) error
	// Get returns domain.ErrSessionNotFound for unknown or expired ids.
	Get(ctx context.Context, id uuid.UUID) ([]byte, error)
	Delete(ctx context.Context, id uuid.UUID) error
}
