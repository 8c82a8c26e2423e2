package export

import (
	"encoding/csv"
	"io"
	"strconv"
	"strings"

	"finreview/internal/domain"
)

// UTF-8 BOM bytes for Excel compatibility on Windows.
var BOM = []byte{0xEF, 0xBB, 0xBF}

// columns is the header row shared by the CSV file and the Record sheet.
var columns = []string{"Section", "Field", "Value"}

// Writer wraps csv.Writer for exporting records as section, field, value
// rows.
type Writer struct {
	csv *csv.Writer
}

// NewWriter creates a Writer that writes CSV to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{csv: csv.NewWriter(w)}
}

// WriteHeader writes the header row.
func (w *Writer) WriteHeader() error {
	return w.csv.Write(columns)
}

// WriteRecord writes one row per populated field, followed by the record
// flags, confidence and status.
func (w *Writer) WriteRecord(rec *domain.FinancialRecord) error {
	for _, row := range Rows(rec) {
		if err := w.csv.Write(row); err != nil {
			return err
		}
	}
	return nil
}

// Flush flushes the underlying csv.Writer buffer.
func (w *Writer) Flush() {
	w.csv.Flush()
}

// Error returns any error from the underlying csv.Writer.
func (w *Writer) Error() error {
	return w.csv.Error()
}

// WriteCSV writes a complete CSV export of rec, BOM included.
func WriteCSV(out io.Writer, rec *domain.FinancialRecord) error {
	if _, err := out.Write(BOM); err != nil {
		return err
	}
	w := NewWriter(out)
	if err := w.WriteHeader(); err != nil {
		return err
	}
	if err := w.WriteRecord(rec); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}

// Rows converts a record into section, field, value triples in document
// order. Repeating sections are labelled with their one-based entry number.
func Rows(rec *domain.FinancialRecord) [][]string {
	var rows [][]string
	for _, p := range rec.PopulatedPaths() {
		v, _ := rec.Get(p)
		rows = append(rows, []string{sectionLabel(p), domain.FieldLabel(p.Field), v})
	}
	rows = append(rows,
		[]string{"Record", "Flags", strings.Join(rec.Flags, "; ")},
		[]string{"Record", "Confidence", formatPercent(rec.Confidence)},
		[]string{"Record", "Status", string(rec.Status)},
	)
	return rows
}

func sectionLabel(p domain.FieldPath) string {
	label := domain.SectionLabel(p.Section)
	if p.Section.Repeating() {
		return label + " " + strconv.Itoa(p.Index+1)
	}
	return label
}

func formatPercent(c float64) string {
	return strconv.FormatFloat(c*100, 'f', 0, 64) + "%"
}
