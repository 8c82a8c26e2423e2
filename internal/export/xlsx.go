package export

import (
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/xuri/excelize/v2"

	"finreview/internal/domain"
)

// Sheet names of the XLSX export.
const (
	RecordSheet     = "Record"
	ConfidenceSheet = "Confidence"
)

var confidenceColumns = []string{"Path", "Confidence", "Source", "Flags"}

// WriteXLSX writes rec as a workbook with a Record sheet holding the same
// rows as the CSV export and a Confidence sheet listing per-field
// confidence.
func WriteXLSX(out io.Writer, rec *domain.FinancialRecord) error {
	f := excelize.NewFile()
	defer f.Close() //nolint:errcheck

	if err := f.SetSheetName("Sheet1", RecordSheet); err != nil {
		return eris.Wrap(err, "export: rename sheet")
	}
	if err := writeRows(f, RecordSheet, columns, toCells(Rows(rec))); err != nil {
		return err
	}

	if _, err := f.NewSheet(ConfidenceSheet); err != nil {
		return eris.Wrap(err, "export: add confidence sheet")
	}
	var conf [][]any
	for _, key := range rec.SortedConfidenceKeys() {
		fc := rec.FieldConfidence[key]
		conf = append(conf, []any{key, fc.Confidence, string(fc.Source), strings.Join(fc.Flags, "; ")})
	}
	if err := writeRows(f, ConfidenceSheet, confidenceColumns, conf); err != nil {
		return err
	}

	if _, err := f.WriteTo(out); err != nil {
		return eris.Wrap(err, "export: write workbook")
	}
	return nil
}

func writeRows(f *excelize.File, sheet string, header []string, rows [][]any) error {
	headerCells := make([]any, len(header))
	for i, h := range header {
		headerCells[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &headerCells); err != nil {
		return eris.Wrapf(err, "export: write %s header", sheet)
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return eris.Wrap(err, "export: cell name")
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return eris.Wrapf(err, "export: write %s row %d", sheet, i+1)
		}
	}
	return nil
}

func toCells(rows [][]string) [][]any {
	out := make([][]any, len(rows))
	for i, row := range rows {
		cells := make([]any, len(row))
		for j, v := range row {
			cells[j] = v
		}
		out[i] = cells
	}
	return out
}
