package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/opsremedy/remedy-controller/internal/logic/controller"
)

const actionRecordsSchema = `
CREATE TABLE IF NOT EXISTS action_records (
	id          TEXT PRIMARY KEY,
	ts          TIMESTAMPTZ NOT NULL,
	namespace   TEXT NOT NULL,
	kind        TEXT NOT NULL,
	name        TEXT NOT NULL,
	issue_kind  TEXT NOT NULL,
	severity    TEXT NOT NULL,
	action      TEXT NOT NULL,
	outcome     TEXT NOT NULL,
	root_cause  TEXT,
	detail      TEXT,
	error       TEXT
);
CREATE INDEX IF NOT EXISTS idx_action_records_ts ON action_records (ts);
`

// PostgresSink persists action records to PostgreSQL.
type PostgresSink struct {
	db *sql.DB
}

// NewPostgresSink opens the database, verifies connectivity, and ensures the
// schema exists.
func NewPostgresSink(dsn string) (*PostgresSink, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := db.Exec(actionRecordsSchema); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	return &PostgresSink{db: db}, nil
}

var _ Sink = (*PostgresSink)(nil)

// Append inserts one record.
func (s *PostgresSink) Append(ctx context.Context, rec controller.ActionRecord) error {
	query := `
		INSERT INTO action_records (
			id, ts, namespace, kind, name,
			issue_kind, severity, action, outcome,
			root_cause, detail, error
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err := s.db.ExecContext(ctx, query,
		rec.ID, rec.Timestamp, rec.Resource.Namespace, string(rec.Resource.Kind), rec.Resource.Name,
		string(rec.IssueKind), string(rec.Severity), string(rec.Action), string(rec.Outcome),
		rec.RootCause, rec.Detail, rec.Error,
	)
	if err != nil {
		return fmt.Errorf("insert action record: %w", err)
	}

	return nil
}

// Close closes the database.
func (s *PostgresSink) Close() error {
	return s.db.Close()
}
