package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"go.uber.org/zap"
)

var mysqlDialect = dialect{
	name: "mysql",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS email_records (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			owner_id VARCHAR(255) NOT NULL,
			email_id VARCHAR(255) NOT NULL,
			subject TEXT NOT NULL,
			sender VARCHAR(512) NOT NULL DEFAULT '',
			snippet TEXT NOT NULL,
			priority INT NOT NULL DEFAULT 3,
			action VARCHAR(32) NOT NULL DEFAULT 'needs_review',
			llm_confidence DOUBLE NOT NULL DEFAULT 0,
			vector_similarity DOUBLE NOT NULL DEFAULT 0,
			rule_weight DOUBLE NOT NULL DEFAULT 0,
			final_score DOUBLE NOT NULL DEFAULT 0,
			auto_executed BOOLEAN NOT NULL DEFAULT FALSE,
			processed_at DATETIME(6) NOT NULL,
			INDEX idx_email_records_owner_processed (owner_id, processed_at)
		)`,
		`CREATE TABLE IF NOT EXISTS feedback_records (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			owner_id VARCHAR(255) NOT NULL,
			email_record_id BIGINT NOT NULL,
			original_action VARCHAR(32) NOT NULL,
			user_action VARCHAR(32) NOT NULL,
			is_override BOOLEAN NOT NULL DEFAULT FALSE,
			created_at DATETIME(6) NOT NULL,
			INDEX idx_feedback_records_email (email_record_id),
			FOREIGN KEY (email_record_id) REFERENCES email_records(id)
		)`,
		`CREATE TABLE IF NOT EXISTS owner_credentials (
			owner_id VARCHAR(255) NOT NULL,
			service VARCHAR(64) NOT NULL,
			secret TEXT NOT NULL,
			updated_at DATETIME(6) NOT NULL,
			PRIMARY KEY (owner_id, service)
		)`,
	},
	upsertCredential: `
		INSERT INTO owner_credentials (owner_id, service, secret, updated_at)
		VALUES (?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE secret = VALUES(secret), updated_at = VALUES(updated_at)`,
}

// NewMySQLStore connects to MySQL and prepares the schema.
// Timestamps are always scanned as UTC time values regardless of the DSN.
func NewMySQLStore(dsn string, logger *zap.Logger, retention, cleanupFreq time.Duration) (*SQLStore, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("invalid MySQL DSN: %w", err)
	}
	cfg.ParseTime = true
	cfg.Loc = time.UTC

	db, err := sql.Open("mysql", cfg.FormatDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to MySQL database: %w", err)
	}

	store, err := newSQLStore(db, mysqlDialect, logger, retention, cleanupFreq)
	if err != nil {
		return nil, err
	}

	logger.Info("Connected to MySQL record store",
		zap.String("addr", cfg.Addr),
		zap.String("database", cfg.DBName))
	return store, nil
}
