// Package sqlite opens a local SQLite database for single-user and CLI use.
package sqlite

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS financial_forms (
	id                       TEXT PRIMARY KEY,
	financial_situation_note TEXT NOT NULL DEFAULT '',
	total_household_income   REAL,
	monthly_expenses         REAL,
	applicant_name           TEXT NOT NULL DEFAULT '',
	nric                     TEXT NOT NULL DEFAULT '',
	address                  TEXT NOT NULL DEFAULT '',
	phone_number             TEXT NOT NULL DEFAULT '',
	email                    TEXT NOT NULL DEFAULT '',
	flags                    TEXT NOT NULL DEFAULT '[]',
	confidence               REAL NOT NULL DEFAULT 0,
	status                   TEXT NOT NULL DEFAULT 'pending_review',
	reviewer_id              TEXT NOT NULL DEFAULT '',
	review_notes             TEXT NOT NULL DEFAULT '',
	source_file_key          TEXT NOT NULL DEFAULT '',
	missing_mandatory_fields TEXT NOT NULL DEFAULT '[]',
	created_at               DATETIME NOT NULL,
	updated_at               DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_financial_forms_created_at ON financial_forms(created_at);
CREATE INDEX IF NOT EXISTS idx_financial_forms_status ON financial_forms(status);

CREATE TABLE IF NOT EXISTS applicant_income (
	form_id                  TEXT NOT NULL REFERENCES financial_forms(id) ON DELETE CASCADE,
	position                 INTEGER NOT NULL,
	occupation               TEXT NOT NULL DEFAULT '',
	gross_monthly_income_sgd REAL,
	period_of_employment     TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (form_id, position)
);

CREATE TABLE IF NOT EXISTS household_income (
	form_id                   TEXT NOT NULL REFERENCES financial_forms(id) ON DELETE CASCADE,
	position                  INTEGER NOT NULL,
	name                      TEXT NOT NULL DEFAULT '',
	relationship_to_applicant TEXT NOT NULL DEFAULT '',
	occupation                TEXT NOT NULL DEFAULT '',
	gross_monthly_income_sgd  REAL,
	PRIMARY KEY (form_id, position)
);

CREATE TABLE IF NOT EXISTS other_income_sources (
	form_id     TEXT NOT NULL REFERENCES financial_forms(id) ON DELETE CASCADE,
	position    INTEGER NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	amount_sgd  REAL,
	PRIMARY KEY (form_id, position)
);

CREATE TABLE IF NOT EXISTS field_confidence (
	form_id           TEXT NOT NULL REFERENCES financial_forms(id) ON DELETE CASCADE,
	field_path        TEXT NOT NULL,
	field_value       TEXT NOT NULL DEFAULT '',
	confidence_score  REAL NOT NULL DEFAULT 0,
	extraction_source TEXT NOT NULL DEFAULT 'ocr',
	flags             TEXT NOT NULL DEFAULT '[]',
	alternatives      TEXT NOT NULL DEFAULT '[]',
	original_text     TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (form_id, field_path)
);

CREATE TABLE IF NOT EXISTS field_validation (
	form_id         TEXT NOT NULL REFERENCES financial_forms(id) ON DELETE CASCADE,
	field_path      TEXT NOT NULL,
	is_valid        BOOLEAN NOT NULL,
	confidence      REAL NOT NULL DEFAULT 0,
	flags           TEXT NOT NULL DEFAULT '[]',
	suggestions     TEXT NOT NULL DEFAULT '[]',
	requires_review BOOLEAN NOT NULL DEFAULT 0,
	method          TEXT NOT NULL DEFAULT '',
	overridden      BOOLEAN NOT NULL DEFAULT 0,
	PRIMARY KEY (form_id, field_path)
);

CREATE TABLE IF NOT EXISTS validation_history (
	form_id           TEXT NOT NULL REFERENCES financial_forms(id) ON DELETE CASCADE,
	position          INTEGER NOT NULL,
	field_path        TEXT NOT NULL DEFAULT '',
	original_value    TEXT NOT NULL DEFAULT '',
	corrected_value   TEXT NOT NULL DEFAULT '',
	correction_reason TEXT NOT NULL DEFAULT '',
	corrected_by      TEXT NOT NULL DEFAULT '',
	corrected_at      DATETIME NOT NULL,
	PRIMARY KEY (form_id, position)
);

CREATE INDEX IF NOT EXISTS idx_validation_history_field_path ON validation_history(field_path);
`

// NewDB opens the database at path, configures WAL mode and creates the
// schema when missing. SQLite allows a single writer, so the pool holds one
// connection.
func NewDB(ctx context.Context, path string) (*sqlx.DB, error) {
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, eris.Wrap(err, "sqlite: migrate")
	}
	return db, nil
}
