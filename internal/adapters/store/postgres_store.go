package store

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

var postgresDialect = dialect{
	name: "postgres",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS email_records (
			id BIGSERIAL PRIMARY KEY,
			owner_id TEXT NOT NULL,
			email_id TEXT NOT NULL,
			subject TEXT NOT NULL DEFAULT '',
			sender TEXT NOT NULL DEFAULT '',
			snippet TEXT NOT NULL DEFAULT '',
			priority INTEGER NOT NULL DEFAULT 3,
			action TEXT NOT NULL DEFAULT 'needs_review',
			llm_confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
			vector_similarity DOUBLE PRECISION NOT NULL DEFAULT 0,
			rule_weight DOUBLE PRECISION NOT NULL DEFAULT 0,
			final_score DOUBLE PRECISION NOT NULL DEFAULT 0,
			auto_executed BOOLEAN NOT NULL DEFAULT FALSE,
			processed_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_email_records_owner_processed ON email_records(owner_id, processed_at)`,
		`CREATE TABLE IF NOT EXISTS feedback_records (
			id BIGSERIAL PRIMARY KEY,
			owner_id TEXT NOT NULL,
			email_record_id BIGINT NOT NULL REFERENCES email_records(id),
			original_action TEXT NOT NULL,
			user_action TEXT NOT NULL,
			is_override BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_feedback_records_email ON feedback_records(email_record_id)`,
		`CREATE TABLE IF NOT EXISTS owner_credentials (
			owner_id TEXT NOT NULL,
			service TEXT NOT NULL,
			secret TEXT NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (owner_id, service)
		)`,
	},
	numbered:    true,
	returningID: true,
	upsertCredential: `
		INSERT INTO owner_credentials (owner_id, service, secret, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (owner_id, service) DO UPDATE SET secret = EXCLUDED.secret, updated_at = EXCLUDED.updated_at`,
}

// NewPostgresStore connects to PostgreSQL and prepares the schema
func NewPostgresStore(dsn string, logger *zap.Logger, retention, cleanupFreq time.Duration) (*SQLStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open PostgreSQL database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	store, err := newSQLStore(db, postgresDialect, logger, retention, cleanupFreq)
	if err != nil {
		return nil, err
	}

	logger.Info("Connected to PostgreSQL record store")
	return store, nil
}
