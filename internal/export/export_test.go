package export

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"finreview/internal/domain"
)

func sampleRecord() *domain.FinancialRecord {
	rec := domain.NewFinancialRecord()
	income := 2800.0
	rent := 0.0
	rec.ApplicantIncome = []domain.ApplicantIncome{{Occupation: "Taxi driver", GrossMonthlyIncomeSGD: &income}}
	rec.HouseholdIncome = []domain.HouseholdIncome{{Name: "Tan, Mei Ling", RelationshipToApplicant: "mother"}}
	rec.OtherIncomeSources = []domain.OtherIncomeSource{{Description: "Rental", AmountSGD: &rent}}
	rec.FinancialSituationNote = "Lost job in March"
	rec.Flags = []string{"low confidence", "unclear handwriting"}
	rec.Confidence = 0.82
	rec.SetConfidence(domain.EntryPath(domain.SectionApplicantIncome, 0, domain.FieldOccupation),
		domain.NewFieldConfidence("Taxi driver", 0.9, domain.SourceOCR))
	return rec
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sampleRecord()))

	data := buf.Bytes()
	require.True(t, bytes.HasPrefix(data, BOM))

	rows, err := csv.NewReader(bytes.NewReader(data[len(BOM):])).ReadAll()
	require.NoError(t, err)

	assert.Equal(t, []string{"Section", "Field", "Value"}, rows[0])
	assert.Equal(t, []string{"Applicant Income 1", "Occupation", "Taxi driver"}, rows[1])
	assert.Equal(t, []string{"Applicant Income 1", "Monthly Income", "2800"}, rows[2])
	assert.Equal(t, []string{"Household Income 1", "Name", "Tan, Mei Ling"}, rows[3])
	assert.Equal(t, []string{"Household Income 1", "Relationship", "mother"}, rows[4])
	assert.Equal(t, []string{"Other Income 1", "Description", "Rental"}, rows[5])
	assert.Equal(t, []string{"Other Income 1", "Amount", "0"}, rows[6])
	assert.Equal(t, []string{"Financial", "Financial Situation Note", "Lost job in March"}, rows[7])
	assert.Equal(t, []string{"Record", "Flags", "low confidence; unclear handwriting"}, rows[8])
	assert.Equal(t, []string{"Record", "Confidence", "82%"}, rows[9])
	assert.Equal(t, []string{"Record", "Status", "pending_review"}, rows[10])
	assert.Len(t, rows, 11)
}

func TestWriteCSV_EmptyRecord(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, domain.NewFinancialRecord()))

	rows, err := csv.NewReader(bytes.NewReader(buf.Bytes()[len(BOM):])).ReadAll()
	require.NoError(t, err)
	assert.Len(t, rows, 4)
}

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, sampleRecord()))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close() //nolint:errcheck

	assert.Equal(t, []string{RecordSheet, ConfidenceSheet}, f.GetSheetList())

	rows, err := f.GetRows(RecordSheet)
	require.NoError(t, err)
	assert.Equal(t, []string{"Section", "Field", "Value"}, rows[0])
	assert.Equal(t, []string{"Applicant Income 1", "Occupation", "Taxi driver"}, rows[1])
	assert.Len(t, rows, 11)

	conf, err := f.GetRows(ConfidenceSheet)
	require.NoError(t, err)
	require.Len(t, conf, 2)
	assert.Equal(t, "applicantIncome.0.occupation", conf[1][0])
	assert.Equal(t, "0.9", conf[1][1])
	assert.Equal(t, "ocr", conf[1][2])
}

func TestWrite_UnknownFormat(t *testing.T) {
	err := Write(&bytes.Buffer{}, "pdf", sampleRecord())
	assert.ErrorIs(t, err, domain.ErrInvalidFieldValue)
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Tan Ah Kow", "Tan_Ah_Kow"},
		{"  form #12 / 2026  ", "form_12_2026"},
		{"***", "financial_record"},
		{"already_clean-name", "already_clean-name"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SanitizeFilename(tt.in), tt.in)
	}
}

func TestBuildFilename(t *testing.T) {
	now := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, "form_abc_2026-03-15.xlsx", BuildFilename("form abc", "xlsx", now))
}
