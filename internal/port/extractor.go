package port

import (
	"context"

	"finreview/internal/domain"
)

// ExtractInput carries an uploaded form image.
type ExtractInput struct {
	Data        []byte
	ContentType string
	Filename    string
}

// Extractor turns a form image into a record with field-level confidence.
// It never returns an error: failures are reported through the outcome
// status and an empty record carrying explanatory flags.
type Extractor interface {
	Extract(ctx context.Context, input ExtractInput) domain.Outcome[*domain.FinancialRecord]
}
