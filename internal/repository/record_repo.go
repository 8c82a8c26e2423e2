// Package repository persists reviewed financial records. The SQL is shared
// between PostgreSQL and SQLite: queries use ? placeholders and are rebound
// for the driver in use.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rotisserie/eris"

	"finreview/internal/domain"
	"finreview/internal/port"
)

type formRow struct {
	ID                     uuid.UUID `db:"id"`
	FinancialSituationNote string    `db:"financial_situation_note"`
	TotalHouseholdIncome   *float64  `db:"total_household_income"`
	MonthlyExpenses        *float64  `db:"monthly_expenses"`
	ApplicantName          string    `db:"applicant_name"`
	NRIC                   string    `db:"nric"`
	Address                string    `db:"address"`
	PhoneNumber            string    `db:"phone_number"`
	Email                  string    `db:"email"`
	Flags                  string    `db:"flags"`
	Confidence             float64   `db:"confidence"`
	Status                 string    `db:"status"`
	ReviewerID             string    `db:"reviewer_id"`
	ReviewNotes            string    `db:"review_notes"`
	SourceFileKey          string    `db:"source_file_key"`
	MissingMandatoryFields string    `db:"missing_mandatory_fields"`
	CreatedAt              time.Time `db:"created_at"`
	UpdatedAt              time.Time `db:"updated_at"`
}

type applicantRow struct {
	FormID             uuid.UUID `db:"form_id"`
	Position           int       `db:"position"`
	Occupation         string    `db:"occupation"`
	GrossMonthlyIncome *float64  `db:"gross_monthly_income_sgd"`
	PeriodOfEmployment string    `db:"period_of_employment"`
}

type householdRow struct {
	FormID             uuid.UUID `db:"form_id"`
	Position           int       `db:"position"`
	Name               string    `db:"name"`
	Relationship       string    `db:"relationship_to_applicant"`
	Occupation         string    `db:"occupation"`
	GrossMonthlyIncome *float64  `db:"gross_monthly_income_sgd"`
}

type otherIncomeRow struct {
	FormID      uuid.UUID `db:"form_id"`
	Position    int       `db:"position"`
	Description string    `db:"description"`
	AmountSGD   *float64  `db:"amount_sgd"`
}

type confidenceRow struct {
	FormID       uuid.UUID `db:"form_id"`
	FieldPath    string    `db:"field_path"`
	FieldValue   string    `db:"field_value"`
	Confidence   float64   `db:"confidence_score"`
	Source       string    `db:"extraction_source"`
	Flags        string    `db:"flags"`
	Alternatives string    `db:"alternatives"`
	OriginalText string    `db:"original_text"`
}

type validationRow struct {
	FormID         uuid.UUID `db:"form_id"`
	FieldPath      string    `db:"field_path"`
	IsValid        bool      `db:"is_valid"`
	Confidence     float64   `db:"confidence"`
	Flags          string    `db:"flags"`
	Suggestions    string    `db:"suggestions"`
	RequiresReview bool      `db:"requires_review"`
	Method         string    `db:"method"`
	Overridden     bool      `db:"overridden"`
}

// historyEvents are the audit events recorded as corrections.
var historyEvents = map[domain.AuditEventType]bool{
	domain.AuditFieldEdited:          true,
	domain.AuditFieldStandardized:    true,
	domain.AuditValidationOverride:   true,
	domain.AuditInferredValueApplied: true,
}

const formColumns = `id, financial_situation_note, total_household_income, monthly_expenses,
	applicant_name, nric, address, phone_number, email,
	flags, confidence, status, reviewer_id, review_notes, source_file_key,
	missing_mandatory_fields, created_at, updated_at`

type recordRepo struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewRecordRepo creates a RecordRepository on an open database.
func NewRecordRepo(db *sqlx.DB) port.RecordRepository {
	return &recordRepo{db: db, now: time.Now}
}

func (r *recordRepo) Save(ctx context.Context, req port.SaveRequest) (uuid.UUID, error) {
	rec := req.Record
	if rec == nil {
		return uuid.Nil, eris.New("repository: save: nil record")
	}
	id := uuid.New()
	now := r.now().UTC()
	createdAt := rec.CreatedAt.UTC()
	if rec.CreatedAt.IsZero() {
		createdAt = now
	}

	missing := []string{}
	for _, p := range rec.MissingMandatoryFields(domain.DefaultSectionRules()) {
		missing = append(missing, p.String())
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return uuid.Nil, eris.Wrap(err, "repository: begin save")
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.ExecContext(ctx, tx.Rebind(`INSERT INTO financial_forms (`+formColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		id, rec.FinancialSituationNote, rec.TotalHouseholdIncome, rec.MonthlyExpenses,
		rec.Personal.ApplicantName, rec.Personal.NRIC, rec.Personal.Address, rec.Personal.PhoneNumber, rec.Personal.Email,
		jsonList(rec.Flags), rec.Confidence, string(rec.Status), rec.ReviewerID, rec.ReviewNotes, rec.SourceFileKey,
		jsonList(missing), createdAt, now)
	if err != nil {
		return uuid.Nil, eris.Wrap(err, "repository: insert financial form")
	}

	for i, e := range rec.ApplicantIncome {
		_, err = tx.ExecContext(ctx, tx.Rebind(`INSERT INTO applicant_income
			(form_id, position, occupation, gross_monthly_income_sgd, period_of_employment)
			VALUES (?, ?, ?, ?, ?)`),
			id, i, e.Occupation, e.GrossMonthlyIncomeSGD, e.PeriodOfEmployment)
		if err != nil {
			return uuid.Nil, eris.Wrapf(err, "repository: insert applicant income %d", i)
		}
	}
	for i, e := range rec.HouseholdIncome {
		_, err = tx.ExecContext(ctx, tx.Rebind(`INSERT INTO household_income
			(form_id, position, name, relationship_to_applicant, occupation, gross_monthly_income_sgd)
			VALUES (?, ?, ?, ?, ?, ?)`),
			id, i, e.Name, e.RelationshipToApplicant, e.Occupation, e.GrossMonthlyIncomeSGD)
		if err != nil {
			return uuid.Nil, eris.Wrapf(err, "repository: insert household income %d", i)
		}
	}
	for i, e := range rec.OtherIncomeSources {
		_, err = tx.ExecContext(ctx, tx.Rebind(`INSERT INTO other_income_sources
			(form_id, position, description, amount_sgd) VALUES (?, ?, ?, ?)`),
			id, i, e.Description, e.AmountSGD)
		if err != nil {
			return uuid.Nil, eris.Wrapf(err, "repository: insert other income %d", i)
		}
	}

	for _, key := range rec.SortedConfidenceKeys() {
		fc := rec.FieldConfidence[key]
		_, err = tx.ExecContext(ctx, tx.Rebind(`INSERT INTO field_confidence
			(form_id, field_path, field_value, confidence_score, extraction_source, flags, alternatives, original_text)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
			id, key, fc.Value, fc.Confidence, string(fc.Source), jsonList(fc.Flags), jsonList(fc.Alternatives), fc.OriginalText)
		if err != nil {
			return uuid.Nil, eris.Wrapf(err, "repository: insert confidence for %s", key)
		}
	}

	for _, key := range sortedKeys(rec.Validation) {
		v := rec.Validation[key]
		_, overridden := req.Overrides[key]
		_, err = tx.ExecContext(ctx, tx.Rebind(`INSERT INTO field_validation
			(form_id, field_path, is_valid, confidence, flags, suggestions, requires_review, method, overridden)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`),
			id, key, v.IsValid, v.Confidence, jsonList(v.Flags), jsonList(v.Suggestions), v.RequiresReview, string(v.Method), overridden)
		if err != nil {
			return uuid.Nil, eris.Wrapf(err, "repository: insert validation for %s", key)
		}
	}

	pos := 0
	for _, e := range req.History {
		if !historyEvents[e.Type] {
			continue
		}
		reason := string(e.Type)
		if e.Detail != "" {
			reason += ": " + e.Detail
		}
		_, err = tx.ExecContext(ctx, tx.Rebind(`INSERT INTO validation_history
			(form_id, position, field_path, original_value, corrected_value, correction_reason, corrected_by, corrected_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
			id, pos, e.Path, e.OldValue, e.NewValue, reason, e.Actor, e.At.UTC())
		if err != nil {
			return uuid.Nil, eris.Wrapf(err, "repository: insert history entry %d", pos)
		}
		pos++
	}

	if err := tx.Commit(); err != nil {
		return uuid.Nil, eris.Wrap(err, "repository: commit save")
	}
	return id, nil
}

func (r *recordRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.FinancialRecord, error) {
	var row formRow
	err := r.db.GetContext(ctx, &row,
		r.db.Rebind(`SELECT `+formColumns+` FROM financial_forms WHERE id = ?`), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrRecordNotFound
		}
		return nil, eris.Wrapf(err, "repository: get record %s", id)
	}
	recs, err := r.assemble(ctx, []formRow{row})
	if err != nil {
		return nil, err
	}
	return &recs[0], nil
}

func (r *recordRepo) ListRecent(ctx context.Context, limit int) ([]domain.FinancialRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []formRow
	err := r.db.SelectContext(ctx, &rows,
		r.db.Rebind(`SELECT `+formColumns+` FROM financial_forms ORDER BY created_at DESC, id LIMIT ?`), limit)
	if err != nil {
		return nil, eris.Wrap(err, "repository: list records")
	}
	if len(rows) == 0 {
		return []domain.FinancialRecord{}, nil
	}
	return r.assemble(ctx, rows)
}

// assemble loads the children of forms and builds records in form order.
func (r *recordRepo) assemble(ctx context.Context, forms []formRow) ([]domain.FinancialRecord, error) {
	ids := make([]string, 0, len(forms))
	byID := make(map[uuid.UUID]*domain.FinancialRecord, len(forms))
	out := make([]domain.FinancialRecord, len(forms))
	for i, f := range forms {
		ids = append(ids, f.ID.String())
		out[i] = *fromRow(f)
		byID[f.ID] = &out[i]
	}

	var applicants []applicantRow
	if err := r.selectIn(ctx, &applicants, `SELECT form_id, position, occupation, gross_monthly_income_sgd, period_of_employment
		FROM applicant_income WHERE form_id IN (?) ORDER BY form_id, position`, ids); err != nil {
		return nil, eris.Wrap(err, "repository: load applicant income")
	}
	for _, a := range applicants {
		if rec, ok := byID[a.FormID]; ok {
			rec.ApplicantIncome = append(rec.ApplicantIncome, domain.ApplicantIncome{
				Occupation:            a.Occupation,
				GrossMonthlyIncomeSGD: a.GrossMonthlyIncome,
				PeriodOfEmployment:    a.PeriodOfEmployment,
			})
		}
	}

	var household []householdRow
	if err := r.selectIn(ctx, &household, `SELECT form_id, position, name, relationship_to_applicant, occupation, gross_monthly_income_sgd
		FROM household_income WHERE form_id IN (?) ORDER BY form_id, position`, ids); err != nil {
		return nil, eris.Wrap(err, "repository: load household income")
	}
	for _, h := range household {
		if rec, ok := byID[h.FormID]; ok {
			rec.HouseholdIncome = append(rec.HouseholdIncome, domain.HouseholdIncome{
				Name:                    h.Name,
				RelationshipToApplicant: h.Relationship,
				Occupation:              h.Occupation,
				GrossMonthlyIncomeSGD:   h.GrossMonthlyIncome,
			})
		}
	}

	var other []otherIncomeRow
	if err := r.selectIn(ctx, &other, `SELECT form_id, position, description, amount_sgd
		FROM other_income_sources WHERE form_id IN (?) ORDER BY form_id, position`, ids); err != nil {
		return nil, eris.Wrap(err, "repository: load other income")
	}
	for _, o := range other {
		if rec, ok := byID[o.FormID]; ok {
			rec.OtherIncomeSources = append(rec.OtherIncomeSources, domain.OtherIncomeSource{
				Description: o.Description,
				AmountSGD:   o.AmountSGD,
			})
		}
	}

	var confidence []confidenceRow
	if err := r.selectIn(ctx, &confidence, `SELECT form_id, field_path, field_value, confidence_score, extraction_source, flags, alternatives, original_text
		FROM field_confidence WHERE form_id IN (?)`, ids); err != nil {
		return nil, eris.Wrap(err, "repository: load field confidence")
	}
	for _, c := range confidence {
		if rec, ok := byID[c.FormID]; ok {
			fc := domain.NewFieldConfidence(c.FieldValue, c.Confidence, domain.FieldSource(c.Source))
			fc.Flags = parseList(c.Flags)
			if alts := parseList(c.Alternatives); len(alts) > 0 {
				fc.Alternatives = alts
			}
			fc.OriginalText = c.OriginalText
			rec.FieldConfidence[c.FieldPath] = fc
		}
	}

	var validation []validationRow
	if err := r.selectIn(ctx, &validation, `SELECT form_id, field_path, is_valid, confidence, flags, suggestions, requires_review, method, overridden
		FROM field_validation WHERE form_id IN (?)`, ids); err != nil {
		return nil, eris.Wrap(err, "repository: load field validation")
	}
	for _, v := range validation {
		if rec, ok := byID[v.FormID]; ok {
			rec.Validation[v.FieldPath] = domain.ValidationResult{
				IsValid:        v.IsValid,
				Confidence:     v.Confidence,
				Flags:          parseList(v.Flags),
				Suggestions:    parseList(v.Suggestions),
				RequiresReview: v.RequiresReview,
				Method:         domain.ValidationMethod(v.Method),
			}
		}
	}
	return out, nil
}

func (r *recordRepo) selectIn(ctx context.Context, dest interface{}, query string, ids []string) error {
	q, args, err := sqlx.In(query, ids)
	if err != nil {
		return err
	}
	return r.db.SelectContext(ctx, dest, r.db.Rebind(q), args...)
}

func fromRow(f formRow) *domain.FinancialRecord {
	rec := domain.NewFinancialRecord()
	rec.ID = f.ID
	rec.FinancialSituationNote = f.FinancialSituationNote
	rec.TotalHouseholdIncome = f.TotalHouseholdIncome
	rec.MonthlyExpenses = f.MonthlyExpenses
	rec.Personal = domain.PersonalInfo{
		ApplicantName: f.ApplicantName,
		NRIC:          f.NRIC,
		Address:       f.Address,
		PhoneNumber:   f.PhoneNumber,
		Email:         f.Email,
	}
	rec.Flags = parseList(f.Flags)
	rec.Confidence = f.Confidence
	rec.Status = domain.RecordStatus(f.Status)
	rec.ReviewerID = f.ReviewerID
	rec.ReviewNotes = f.ReviewNotes
	rec.SourceFileKey = f.SourceFileKey
	rec.CreatedAt = f.CreatedAt.UTC()
	rec.UpdatedAt = f.UpdatedAt.UTC()
	return rec
}

func jsonList(items []string) string {
	if len(items) == 0 {
		return "[]"
	}
	b, err := json.Marshal(items)
	if err != nil {
		return "[]"
	}
	return string(b)
}

func parseList(s string) []string {
	out := []string{}
	if s == "" {
		return out
	}
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return []string{}
	}
	return out
}

func sortedKeys(m map[string]domain.ValidationResult) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
