package port

import (
	"context"
	"io"
	"time"
)

// ArchiveInput is an uploaded form image to keep.
type ArchiveInput struct {
	Key         string
	Body        io.Reader
	ContentType string
	Size        int64
}

// ArchivedObject describes a stored form image.
type ArchivedObject struct {
	Key      string
	Location string
	ETag     string
}

// FormArchive keeps the original form images next to the reviewed records.
type FormArchive interface {
	Store(ctx context.Context, input ArchiveInput) (*ArchivedObject, error)
	PresignedURL(ctx context.Context, key string, expiry time.Duration) (string, error)
	Delete(ctx context.Context, key string) error
}
