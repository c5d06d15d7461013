package store

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

var sqliteDialect = dialect{
	name: "sqlite",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS email_records (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			owner_id TEXT NOT NULL,
			email_id TEXT NOT NULL,
			subject TEXT NOT NULL DEFAULT '',
			sender TEXT NOT NULL DEFAULT '',
			snippet TEXT NOT NULL DEFAULT '',
			priority INTEGER NOT NULL DEFAULT 3,
			action TEXT NOT NULL DEFAULT 'needs_review',
			llm_confidence REAL NOT NULL DEFAULT 0,
			vector_similarity REAL NOT NULL DEFAULT 0,
			rule_weight REAL NOT NULL DEFAULT 0,
			final_score REAL NOT NULL DEFAULT 0,
			auto_executed BOOLEAN NOT NULL DEFAULT 0,
			processed_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_email_records_owner_processed ON email_records(owner_id, processed_at)`,
		`CREATE TABLE IF NOT EXISTS feedback_records (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			owner_id TEXT NOT NULL,
			email_record_id INTEGER NOT NULL REFERENCES email_records(id),
			original_action TEXT NOT NULL,
			user_action TEXT NOT NULL,
			is_override BOOLEAN NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_feedback_records_email ON feedback_records(email_record_id)`,
		`CREATE TABLE IF NOT EXISTS owner_credentials (
			owner_id TEXT NOT NULL,
			service TEXT NOT NULL,
			secret TEXT NOT NULL,
			updated_at TIMESTAMP NOT NULL,
			PRIMARY KEY (owner_id, service)
		)`,
	},
	upsertCredential: `
		INSERT INTO owner_credentials (owner_id, service, secret, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(owner_id, service) DO UPDATE SET secret = excluded.secret, updated_at = excluded.updated_at`,
}

// NewSQLiteStore opens a SQLite database at dbPath and prepares the schema
func NewSQLiteStore(dbPath string, logger *zap.Logger, retention, cleanupFreq time.Duration) (*SQLStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	// SQLite allows a single writer; :memory: databases are per connection
	db.SetMaxOpenConns(1)

	store, err := newSQLStore(db, sqliteDialect, logger, retention, cleanupFreq)
	if err != nil {
		return nil, err
	}

	logger.Info("Opened SQLite record store", zap.String("path", dbPath))
	return store, nil
}
