package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"jobapply-workers/internal/common/config"

	_ "github.com/lib/pq"
)

// PostgresClient wraps the SQL database connection
type PostgresClient struct {
	DB *sql.DB
}

// NewPostgres opens the pool. The connection is not verified until Ping.
func NewPostgres(cfg config.PostgresConfig) (*PostgresClient, error) {
	db, err := sql.Open("postgres", cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(cfg.MaxIdle)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)

	return &PostgresClient{DB: db}, nil
}

func (c *PostgresClient) Ping(ctx context.Context) error {
	return c.DB.PingContext(ctx)
}

func (c *PostgresClient) Close() error {
	if c.DB != nil {
		return c.DB.Close()
	}
	return nil
}

// Migrate creates the tables used by the stores and the submission steps.
// Every statement is idempotent.
func (c *PostgresClient) Migrate(ctx context.Context) error {
	return Migrate(ctx, c.DB)
}

// Migrate runs the schema statements inside a single transaction.
func Migrate(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for i, stmt := range schema {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration statement %d: %w", i, err)
		}
	}
	return tx.Commit()
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS applicants (
		id           TEXT PRIMARY KEY,
		full_name    TEXT NOT NULL,
		email        TEXT NOT NULL,
		phone        TEXT,
		location     TEXT,
		cover_letter TEXT,
		created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS resumes (
		id           TEXT PRIMARY KEY,
		applicant_id TEXT NOT NULL REFERENCES applicants(id),
		name         TEXT NOT NULL,
		file_path    TEXT NOT NULL,
		file_type    TEXT NOT NULL,
		is_active    BOOLEAN NOT NULL DEFAULT FALSE,
		uploaded_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS job_leads (
		id                   TEXT PRIMARY KEY,
		user_id              TEXT NOT NULL,
		title                TEXT NOT NULL,
		company              TEXT NOT NULL,
		posting_date         TIMESTAMPTZ,
		application_link     TEXT,
		hiring_manager       TEXT,
		hiring_manager_email TEXT,
		status               TEXT NOT NULL DEFAULT 'saved',
		notes                TEXT,
		applied_date         TIMESTAMPTZ,
		salary               TEXT,
		location             TEXT,
		application_method   TEXT NOT NULL DEFAULT 'external',
		follow_up_date       TIMESTAMPTZ,
		last_contact_date    TIMESTAMPTZ,
		can_apply_in_app     BOOLEAN NOT NULL DEFAULT FALSE,
		speed_apply          BOOLEAN NOT NULL DEFAULT FALSE,
		cover_letter         TEXT,
		updated_at           TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_job_leads_user ON job_leads(user_id)`,
	`CREATE TABLE IF NOT EXISTS resume_uploads (
		id           TEXT PRIMARY KEY,
		user_id      TEXT NOT NULL,
		job_id       TEXT NOT NULL,
		file_name    TEXT NOT NULL,
		sha256       TEXT NOT NULL,
		size_bytes   BIGINT NOT NULL,
		uploaded_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS applications (
		id                  TEXT PRIMARY KEY,
		user_id             TEXT NOT NULL,
		job_id              TEXT NOT NULL,
		batch_id            TEXT NOT NULL,
		upload_id           TEXT,
		form_data           JSONB,
		status              TEXT NOT NULL,
		confirmation_number TEXT,
		created_at          TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at          TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (user_id, job_id)
	)`,
	`CREATE TABLE IF NOT EXISTS audit_log (
		id          BIGSERIAL PRIMARY KEY,
		entity_type TEXT NOT NULL,
		entity_id   TEXT NOT NULL,
		action      TEXT NOT NULL,
		actor_id    TEXT,
		details     JSONB,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS notifications (
		id         TEXT PRIMARY KEY,
		user_id    TEXT NOT NULL,
		type       TEXT NOT NULL,
		title      TEXT NOT NULL,
		message    TEXT NOT NULL,
		date       TIMESTAMPTZ NOT NULL,
		read       BOOLEAN NOT NULL DEFAULT FALSE,
		job_id     TEXT,
		actionable BOOLEAN NOT NULL DEFAULT FALSE,
		action     TEXT
	)`,
}
