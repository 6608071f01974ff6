package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"certistage/config"
)

// DB holds the database connection
var DB *sql.DB

// InitDB opens and pings the Postgres connection
func InitDB(connStr string) error {
	if connStr == "" {
		return fmt.Errorf("database connection variables not set. Set DATABASE_URL or DB_HOST, DB_USER, DB_NAME")
	}

	var err error
	DB, err = sql.Open("pgx", connStr)
	if err != nil {
		return fmt.Errorf("failed to open database connection: %w", err)
	}
	DB.SetMaxOpenConns(20)
	DB.SetConnMaxIdleTime(5 * time.Minute)

	// Test the connection
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := DB.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	config.Log.Info("✓ Database connection established successfully")
	return nil
}

// schema is applied idempotently at startup. Templates live as JSONB on
// their certificate type; the *_norm columns hold the verification keys.
const schema = `
CREATE TABLE IF NOT EXISTS events (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	plan_id    TEXT NOT NULL DEFAULT 'free',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS certificate_types (
	id               TEXT PRIMARY KEY,
	event_id         TEXT NOT NULL REFERENCES events(id) ON DELETE CASCADE,
	name             TEXT NOT NULL,
	enabled          BOOLEAN NOT NULL DEFAULT true,
	template         JSONB NOT NULL DEFAULT '{}'::jsonb,
	template_version BIGINT NOT NULL DEFAULT 0,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_certificate_types_event ON certificate_types (event_id);

CREATE TABLE IF NOT EXISTS recipients (
	id                 TEXT PRIMARY KEY,
	event_id           TEXT NOT NULL REFERENCES events(id) ON DELETE CASCADE,
	type_id            TEXT NOT NULL REFERENCES certificate_types(id) ON DELETE CASCADE,
	certificate_id     TEXT NOT NULL,
	name               TEXT NOT NULL,
	email              TEXT NOT NULL DEFAULT '',
	mobile             TEXT NOT NULL DEFAULT '',
	certificate_norm   TEXT NOT NULL,
	name_norm          TEXT NOT NULL,
	email_norm         TEXT NOT NULL DEFAULT '',
	mobile_norm        TEXT NOT NULL DEFAULT '',
	download_status    TEXT NOT NULL DEFAULT 'pending',
	download_count     INTEGER NOT NULL DEFAULT 0 CHECK (download_count >= 0),
	last_downloaded_at TIMESTAMPTZ,
	created_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (type_id, certificate_norm),
	CHECK ((download_status = 'downloaded') = (download_count > 0))
);

CREATE INDEX IF NOT EXISTS idx_recipients_type ON recipients (type_id, created_at);
CREATE INDEX IF NOT EXISTS idx_recipients_event_email ON recipients (event_id, email_norm);
CREATE INDEX IF NOT EXISTS idx_recipients_event_mobile ON recipients (event_id, mobile_norm);
CREATE INDEX IF NOT EXISTS idx_recipients_event_certificate ON recipients (event_id, certificate_norm);
CREATE INDEX IF NOT EXISTS idx_recipients_event_name ON recipients (event_id, name_norm);
`

// Migrate creates the tables when they do not exist yet
func Migrate(ctx context.Context) error {
	if DB == nil {
		return fmt.Errorf("database is not initialized")
	}
	if _, err := DB.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	config.Log.Info("✓ Database schema is up to date")
	return nil
}

// CloseDB closes the database connection
func CloseDB() error {
	if DB != nil {
		return DB.Close()
	}
	return nil
}
