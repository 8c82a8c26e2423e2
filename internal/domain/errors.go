package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound               = errors.New("resource not found")
	ErrSessionNotFound        = errors.New("review session not found")
	ErrRecordNotFound         = errors.New("financial record not found")
	ErrUnauthorized           = errors.New("unauthorized")
	ErrInvalidTransition      = errors.New("operation not allowed in current stage")
	ErrEmptyFile              = errors.New("uploaded file is empty")
	ErrUnsupportedFileType    = errors.New("unsupported file type")
	ErrFileTooLarge           = errors.New("file exceeds maximum allowed size")
	ErrInvalidFieldPath       = errors.New("invalid field path")
	ErrInvalidFieldValue      = errors.New("invalid field value")
	ErrInvalidStatus          = errors.New("invalid record status")
	ErrValidationBlocked      = errors.New("fields failed validation")
	ErrMandatoryFieldsMissing = errors.New("mandatory fields are missing")
	ErrExtractionFailed       = errors.New("extraction failed")
	ErrCapabilityUnavailable  = errors.New("language model capability unavailable")
	ErrUploadFailed           = errors.New("file upload to storage failed")
)

// FieldReason lists why a single field blocks progress.
type FieldReason struct {
	Path    string   `json:"path"`
	Label   string   `json:"label"`
	Reasons []string `json:"reasons"`
}

// BlockedError is returned when the review gate refuses to advance.
// Kind is ErrValidationBlocked or ErrMandatoryFieldsMissing.
type BlockedError struct {
	Kind   error
	Fields []FieldReason
}

func (e *BlockedError) Error() string {
	paths := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		paths = append(paths, f.Path)
	}
	return fmt.Sprintf("%s: %s", e.Kind, strings.Join(paths, ", "))
}

func (e *BlockedError) Unwrap() error {
	return e.Kind
}
