package export

import (
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"finreview/internal/domain"
)

// Export formats.
const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
)

// ContentTypes maps an export format to its MIME type.
var ContentTypes = map[string]string{
	FormatCSV:  "text/csv; charset=utf-8",
	FormatXLSX: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
}

// Write exports rec in the given format.
func Write(w io.Writer, format string, rec *domain.FinancialRecord) error {
	switch format {
	case FormatCSV:
		return WriteCSV(w, rec)
	case FormatXLSX:
		return WriteXLSX(w, rec)
	}
	return fmt.Errorf("%w: export format %q", domain.ErrInvalidFieldValue, format)
}

// nonAlphanumeric matches characters that are not alphanumeric, hyphen, or underscore.
var nonAlphanumeric = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

// multiUnderscore matches consecutive underscores.
var multiUnderscore = regexp.MustCompile(`_{2,}`)

// SanitizeFilename replaces non-alphanumeric chars (except - _) with _,
// collapses consecutive underscores, and truncates to 100 chars.
func SanitizeFilename(name string) string {
	s := nonAlphanumeric.ReplaceAllString(name, "_")
	s = multiUnderscore.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_")
	if len(s) > 100 {
		s = s[:100]
	}
	if s == "" {
		s = "financial_record"
	}
	return s
}

// BuildFilename returns a sanitized filename for Content-Disposition.
// Format: {prefix}_{YYYY-MM-DD}.{ext}
func BuildFilename(prefix, ext string, now time.Time) string {
	return fmt.Sprintf("%s_%s.%s", SanitizeFilename(prefix), now.Format("2006-01-02"), ext)
}
