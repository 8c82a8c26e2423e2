package repository

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finreview/internal/domain"
	"finreview/internal/port"
	"finreview/internal/repository/sqlite"
)

func amt(f float64) *float64 { return &f }

func sampleRecord(createdAt time.Time) *domain.FinancialRecord {
	rec := domain.NewFinancialRecord()
	rec.ApplicantIncome = []domain.ApplicantIncome{
		{Occupation: "taxi driver", GrossMonthlyIncomeSGD: amt(2800), PeriodOfEmployment: "3 years"},
		{Occupation: "part-time tutor", GrossMonthlyIncomeSGD: amt(400)},
	}
	rec.HouseholdIncome = []domain.HouseholdIncome{
		{Name: "Lim Siew Hoon", RelationshipToApplicant: "spouse", Occupation: "cleaner", GrossMonthlyIncomeSGD: amt(1500)},
	}
	rec.OtherIncomeSources = []domain.OtherIncomeSource{{Description: "Rental", AmountSGD: amt(1200)}}
	rec.Personal = domain.PersonalInfo{ApplicantName: "Tan Ah Kow", NRIC: "S1234567", Email: "tan@example.com"}
	rec.FinancialSituationNote = "Supports two children"
	rec.Flags = []string{"Handwriting partially illegible"}
	rec.Confidence = 0.82
	rec.Status = domain.RecordApproved
	rec.ReviewerID = "reviewer-7"
	rec.ReviewNotes = "checked payslips"
	rec.CreatedAt = createdAt

	occ := domain.EntryPath(domain.SectionApplicantIncome, 0, domain.FieldOccupation)
	fc := domain.NewFieldConfidence("taxi driver", 0.95, domain.SourceStandardized)
	fc.OriginalText = "Taxi drvr"
	fc.Alternatives = []string{"Taxi drvr"}
	rec.SetConfidence(occ, fc)

	nric := domain.SingularPath(domain.SectionPersonal, domain.FieldNRIC)
	rec.SetConfidence(nric, domain.NewFieldConfidence("S1234567", 0.9, domain.SourceOCR))
	rec.SetValidation(nric, domain.ValidationResult{
		IsValid:        false,
		Confidence:     0.2,
		Flags:          []string{domain.FlagFormatError},
		Suggestions:    []string{"NRIC must be in format S1234567A"},
		RequiresReview: true,
		Method:         domain.MethodRules,
	})
	rec.SetValidation(occ, domain.ValidationResult{IsValid: true, Confidence: 0.8, Flags: []string{}, Suggestions: []string{}, Method: domain.MethodRules})
	return rec
}

func sampleRequest(rec *domain.FinancialRecord) port.SaveRequest {
	at := time.Date(2026, 3, 15, 9, 30, 0, 0, time.UTC)
	return port.SaveRequest{
		Record:    rec,
		Overrides: map[string]string{"personal.nric": "S1234567"},
		History: []domain.AuditEvent{
			{At: at, Actor: "system", Type: domain.AuditStageChanged, OldValue: "upload", NewValue: "processing"},
			{At: at, Actor: "reviewer-7", Type: domain.AuditFieldStandardized, Path: "applicantIncome.0.occupation", OldValue: "Taxi drvr", NewValue: "taxi driver", Detail: "rules"},
			{At: at, Actor: "reviewer-7", Type: domain.AuditValidationOverride, Path: "personal.nric", NewValue: "S1234567", Detail: "format_error"},
		},
	}
}

func newSQLiteRepo(t *testing.T) (*sqlx.DB, *recordRepo) {
	t.Helper()
	db, err := sqlite.NewDB(context.Background(), filepath.Join(t.TempDir(), "finreview.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, NewRecordRepo(db).(*recordRepo)
}

func TestSave_RollsBackOnChildFailure(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()
	repo := NewRecordRepo(sqlx.NewDb(mockDB, "pgx"))

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO financial_forms`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO applicant_income`).WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	id, err := repo.Save(context.Background(), sampleRequest(sampleRecord(time.Now())))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Equal(t, uuid.Nil, id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSave_RollsBackOnCommitFailure(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()
	repo := NewRecordRepo(sqlx.NewDb(mockDB, "pgx"))

	rec := domain.NewFinancialRecord()
	rec.FinancialSituationNote = "only a note"
	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO financial_forms`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit().WillReturnError(errors.New("serialization failure"))

	_, err = repo.Save(context.Background(), port.SaveRequest{Record: rec})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "commit")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSave_UsesDollarPlaceholdersForPostgres(t *testing.T) {
	mockDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer mockDB.Close()
	repo := NewRecordRepo(sqlx.NewDb(mockDB, "pgx"))

	rec := domain.NewFinancialRecord()
	rec.OtherIncomeSources = []domain.OtherIncomeSource{{Description: "CPF payout", AmountSGD: amt(300)}}
	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO financial_forms .*\$18\)`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO other_income_sources .*VALUES \(\$1, \$2, \$3, \$4\)`).
		WithArgs(sqlmock.AnyArg(), 0, "CPF payout", 300.0).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	id, err := repo.Save(context.Background(), port.SaveRequest{Record: rec})

	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSave_NilRecord(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()
	repo := NewRecordRepo(sqlx.NewDb(mockDB, "pgx"))

	_, err = repo.Save(context.Background(), port.SaveRequest{})

	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLite_SaveAndGet(t *testing.T) {
	db, repo := newSQLiteRepo(t)
	ctx := context.Background()
	created := time.Date(2026, 3, 14, 8, 0, 0, 0, time.UTC)
	want := sampleRecord(created)

	id, err := repo.Save(ctx, sampleRequest(want))
	require.NoError(t, err)

	got, err := repo.GetByID(ctx, id)
	require.NoError(t, err)

	assert.Equal(t, id, got.ID)
	assert.Equal(t, want.ApplicantIncome, got.ApplicantIncome)
	assert.Equal(t, want.HouseholdIncome, got.HouseholdIncome)
	assert.Equal(t, want.OtherIncomeSources, got.OtherIncomeSources)
	assert.Equal(t, want.Personal, got.Personal)
	assert.Equal(t, want.FinancialSituationNote, got.FinancialSituationNote)
	assert.Nil(t, got.TotalHouseholdIncome)
	assert.Equal(t, want.Flags, got.Flags)
	assert.InDelta(t, 0.82, got.Confidence, 1e-9)
	assert.Equal(t, domain.RecordApproved, got.Status)
	assert.Equal(t, "reviewer-7", got.ReviewerID)
	assert.Equal(t, "checked payslips", got.ReviewNotes)
	assert.True(t, created.Equal(got.CreatedAt), "created_at %s", got.CreatedAt)
	assert.Equal(t, want.FieldConfidence, got.FieldConfidence)
	assert.Equal(t, want.Validation, got.Validation)

	var overridden bool
	require.NoError(t, db.GetContext(ctx, &overridden,
		`SELECT overridden FROM field_validation WHERE form_id = ? AND field_path = ?`, id, "personal.nric"))
	assert.True(t, overridden)

	var reasons []string
	require.NoError(t, db.SelectContext(ctx, &reasons,
		`SELECT correction_reason FROM validation_history WHERE form_id = ? ORDER BY position`, id))
	assert.Equal(t, []string{"field_standardized: rules", "validation_override: format_error"}, reasons)

	var missing string
	require.NoError(t, db.GetContext(ctx, &missing, `SELECT missing_mandatory_fields FROM financial_forms WHERE id = ?`, id))
	assert.JSONEq(t, `[]`, missing)
}

func TestSQLite_GetByIDNotFound(t *testing.T) {
	_, repo := newSQLiteRepo(t)

	_, err := repo.GetByID(context.Background(), uuid.New())

	assert.ErrorIs(t, err, domain.ErrRecordNotFound)
}

func TestSQLite_ListRecent(t *testing.T) {
	_, repo := newSQLiteRepo(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)

	var ids []uuid.UUID
	for i := 0; i < 3; i++ {
		rec := sampleRecord(base.AddDate(0, 0, i))
		rec.Personal.ApplicantName = []string{"first", "second", "third"}[i]
		id, err := repo.Save(ctx, port.SaveRequest{Record: rec})
		require.NoError(t, err)
		ids = append(ids, id)
	}

	recs, err := repo.ListRecent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, ids[2], recs[0].ID)
	assert.Equal(t, "third", recs[0].Personal.ApplicantName)
	assert.Equal(t, ids[1], recs[1].ID)
	assert.Len(t, recs[1].ApplicantIncome, 2)
	assert.Len(t, recs[1].HouseholdIncome, 1)
	assert.Contains(t, recs[1].FieldConfidence, "applicantIncome.0.occupation")
}

func TestSQLite_ListRecentEmpty(t *testing.T) {
	_, repo := newSQLiteRepo(t)

	recs, err := repo.ListRecent(context.Background(), 10)

	require.NoError(t, err)
	assert.Empty(t, recs)
}
