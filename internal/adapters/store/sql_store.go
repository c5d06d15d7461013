package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/mikey/email-housekeeper/internal/core"
	"github.com/mikey/email-housekeeper/internal/credentials"
	"go.uber.org/zap"
)

// dialect captures the differences between the supported SQL engines
type dialect struct {
	name             string
	schema           []string
	numbered         bool // $1, $2 placeholders instead of ?
	returningID      bool
	upsertCredential string
}

// SQLStore is a database/sql implementation of the record repository and
// the credential store. Engine specifics live in its dialect.
type SQLStore struct {
	db          *sql.DB
	dialect     dialect
	logger      *zap.Logger
	retention   time.Duration
	cleanupFreq time.Duration
	stopCh      chan struct{}
	stopOnce    sync.Once
}

func newSQLStore(db *sql.DB, d dialect, logger *zap.Logger, retention, cleanupFreq time.Duration) (*SQLStore, error) {
	for _, stmt := range d.schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create %s schema: %w", d.name, err)
		}
	}

	store := &SQLStore{
		db:          db,
		dialect:     d,
		logger:      logger,
		retention:   retention,
		cleanupFreq: cleanupFreq,
		stopCh:      make(chan struct{}),
	}

	// Start background retention cleanup
	if retention > 0 && cleanupFreq > 0 {
		go store.startCleanupTask()
	}

	return store, nil
}

// rebind rewrites ? placeholders for engines with numbered parameters
func (s *SQLStore) rebind(query string) string {
	if !s.dialect.numbered {
		return query
	}

	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// insert runs an INSERT and returns the generated id
func (s *SQLStore) insert(ctx context.Context, q execQuerier, query string, args ...any) (int64, error) {
	if s.dialect.returningID {
		var id int64
		err := q.QueryRowContext(ctx, s.rebind(query+" RETURNING id"), args...).Scan(&id)
		return id, err
	}

	result, err := q.ExecContext(ctx, s.rebind(query), args...)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

type execQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const emailRecordColumns = `id, owner_id, email_id, subject, sender, snippet, priority, action,
	llm_confidence, vector_similarity, rule_weight, final_score, auto_executed, processed_at`

// RecentEmailIDs returns the email ids processed for the owner since the given time
func (s *SQLStore) RecentEmailIDs(ctx context.Context, ownerID string, since time.Time) (map[string]struct{}, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT email_id FROM email_records
		WHERE owner_id = ? AND processed_at >= ?
	`), ownerID, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to query recent email ids: %w", err)
	}
	defer rows.Close()

	ids := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan email id: %w", err)
		}
		ids[id] = struct{}{}
	}
	return ids, rows.Err()
}

// CreateEmailRecord inserts a processed email and sets its id
func (s *SQLStore) CreateEmailRecord(ctx context.Context, record *core.EmailRecord) error {
	id, err := s.insert(ctx, s.db, `
		INSERT INTO email_records (owner_id, email_id, subject, sender, snippet, priority, action,
			llm_confidence, vector_similarity, rule_weight, final_score, auto_executed, processed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.OwnerID, record.EmailID, record.Subject, record.Sender, record.Snippet,
		int(record.Priority), string(record.Action),
		record.LLMConfidence, record.VectorSimilarity, record.RuleWeight, record.FinalScore,
		record.AutoExecuted, record.ProcessedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to insert email record: %w", err)
	}

	record.ID = id
	return nil
}

// GetEmailRecord loads one of the owner's records
func (s *SQLStore) GetEmailRecord(ctx context.Context, ownerID string, id int64) (*core.EmailRecord, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT `+emailRecordColumns+`
		FROM email_records
		WHERE id = ? AND owner_id = ?
	`), id, ownerID)

	record, err := scanEmailRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", core.ErrRecordNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query email record: %w", err)
	}
	return record, nil
}

// ApplyFeedback stores the feedback and relabels the email record in one transaction
func (s *SQLStore) ApplyFeedback(ctx context.Context, feedback *core.FeedbackRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	id, err := s.insert(ctx, tx, `
		INSERT INTO feedback_records (owner_id, email_record_id, original_action, user_action, is_override, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		feedback.OwnerID, feedback.EmailRecordID, string(feedback.OriginalAction),
		string(feedback.UserAction), feedback.IsOverride, feedback.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to insert feedback: %w", err)
	}

	if _, err := tx.ExecContext(ctx, s.rebind(`
		UPDATE email_records SET action = ?
		WHERE id = ? AND owner_id = ?
	`), string(feedback.UserAction), feedback.EmailRecordID, feedback.OwnerID); err != nil {
		return fmt.Errorf("failed to relabel email record: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit feedback: %w", err)
	}

	feedback.ID = id
	return nil
}

// ListForReview returns the owner's needs_review records, newest first
func (s *SQLStore) ListForReview(ctx context.Context, ownerID string, since time.Time, limit int) ([]*core.EmailRecord, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT `+emailRecordColumns+`
		FROM email_records
		WHERE owner_id = ? AND action = ? AND processed_at >= ?
		ORDER BY processed_at DESC, id DESC
		LIMIT ?
	`), ownerID, string(core.ActionNeedsReview), since.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query review records: %w", err)
	}
	defer rows.Close()

	var records []*core.EmailRecord
	for rows.Next() {
		record, err := scanEmailRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan email record: %w", err)
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// Stats aggregates the owner's records processed since the given time
func (s *SQLStore) Stats(ctx context.Context, ownerID string, since time.Time) (*core.Stats, error) {
	stats := &core.Stats{
		PriorityBreakdown: map[core.Priority]int{1: 0, 2: 0, 3: 0, 4: 0, 5: 0},
	}
	since = since.UTC()

	err := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT COUNT(*),
			COALESCE(SUM(CASE WHEN auto_executed THEN 1 ELSE 0 END), 0),
			COALESCE(AVG(final_score), 0)
		FROM email_records
		WHERE owner_id = ? AND processed_at >= ?
	`), ownerID, since).Scan(&stats.TotalProcessed, &stats.AutoExecutedCount, &stats.AvgConfidence)
	if err != nil {
		return nil, fmt.Errorf("failed to query totals: %w", err)
	}

	actions, err := s.groupCounts(ctx, "action", ownerID, since)
	if err != nil {
		return nil, err
	}
	stats.DeletedCount = actions[string(core.ActionDelete)]
	stats.KeptCount = actions[string(core.ActionKeep)]
	stats.NeedsReviewCount = actions[string(core.ActionNeedsReview)]

	priorities, err := s.groupCounts(ctx, "priority", ownerID, since)
	if err != nil {
		return nil, err
	}
	for value, count := range priorities {
		priority, err := strconv.Atoi(value)
		if err != nil {
			continue
		}
		stats.PriorityBreakdown[core.Priority(priority)] = count
	}

	return stats, nil
}

// groupCounts counts the owner's records per distinct value of column.
// column is always a constant from this package.
func (s *SQLStore) groupCounts(ctx context.Context, column, ownerID string, since time.Time) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT `+column+`, COUNT(*) FROM email_records
		WHERE owner_id = ? AND processed_at >= ?
		GROUP BY `+column), ownerID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s counts: %w", column, err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var value string
		var count int
		if err := rows.Scan(&value, &count); err != nil {
			return nil, fmt.Errorf("failed to scan %s count: %w", column, err)
		}
		counts[value] = count
	}
	return counts, rows.Err()
}

// PurgeBefore deletes records and their feedback processed before the cutoff
func (s *SQLStore) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	cutoff = cutoff.UTC()
	if _, err := tx.ExecContext(ctx, s.rebind(`
		DELETE FROM feedback_records
		WHERE email_record_id IN (SELECT id FROM email_records WHERE processed_at < ?)
	`), cutoff); err != nil {
		return 0, fmt.Errorf("failed to purge feedback: %w", err)
	}

	result, err := tx.ExecContext(ctx, s.rebind(`
		DELETE FROM email_records WHERE processed_at < ?
	`), cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge email records: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit purge: %w", err)
	}

	purged, err := result.RowsAffected()
	if err != nil {
		s.logger.Warn("Failed to get rows affected during purge", zap.Error(err))
		return 0, nil
	}
	return purged, nil
}

// GetCredential returns the owner's stored secret for a service
func (s *SQLStore) GetCredential(ctx context.Context, ownerID, service string) (string, error) {
	var secret string
	err := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT secret FROM owner_credentials
		WHERE owner_id = ? AND service = ?
	`), ownerID, service).Scan(&secret)
	if errors.Is(err, sql.ErrNoRows) {
		return "", credentials.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to query credential: %w", err)
	}
	return secret, nil
}

// SetCredential creates or replaces the owner's secret for a service
func (s *SQLStore) SetCredential(ctx context.Context, ownerID, service, secret string) error {
	if _, err := s.db.ExecContext(ctx, s.rebind(s.dialect.upsertCredential),
		ownerID, service, secret, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to store credential: %w", err)
	}
	return nil
}

// DeleteCredential removes the owner's secret for a service
func (s *SQLStore) DeleteCredential(ctx context.Context, ownerID, service string) error {
	result, err := s.db.ExecContext(ctx, s.rebind(`
		DELETE FROM owner_credentials WHERE owner_id = ? AND service = ?
	`), ownerID, service)
	if err != nil {
		return fmt.Errorf("failed to delete credential: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return credentials.ErrNotFound
	}
	return nil
}

// ListCredentialServices returns the services the owner has stored secrets for
func (s *SQLStore) ListCredentialServices(ctx context.Context, ownerID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT service FROM owner_credentials
		WHERE owner_id = ?
		ORDER BY service
	`), ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query credentials: %w", err)
	}
	defer rows.Close()

	var services []string
	for rows.Next() {
		var service string
		if err := rows.Scan(&service); err != nil {
			return nil, fmt.Errorf("failed to scan credential service: %w", err)
		}
		services = append(services, service)
	}
	return services, rows.Err()
}

// Cleanup purges records older than the retention period
func (s *SQLStore) Cleanup(ctx context.Context) error {
	purged, err := s.PurgeBefore(ctx, time.Now().Add(-s.retention))
	if err != nil {
		return err
	}
	s.logger.Debug("Purged expired email records",
		zap.String("dialect", s.dialect.name),
		zap.Int64("purged_count", purged))
	return nil
}

// startCleanupTask starts a background task to purge expired records
func (s *SQLStore) startCleanupTask() {
	ticker := time.NewTicker(s.cleanupFreq)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := s.Cleanup(context.Background()); err != nil {
				s.logger.Error("Failed to purge email records", zap.Error(err))
			}
		case <-s.stopCh:
			return
		}
	}
}

// Stop stops the background cleanup task and closes the database connection
func (s *SQLStore) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
		if err := s.db.Close(); err != nil {
			s.logger.Error("Failed to close database",
				zap.String("dialect", s.dialect.name),
				zap.Error(err))
		}
	})
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEmailRecord(row rowScanner) (*core.EmailRecord, error) {
	var (
		record   core.EmailRecord
		priority int
		action   string
	)
	err := row.Scan(&record.ID, &record.OwnerID, &record.EmailID, &record.Subject, &record.Sender,
		&record.Snippet, &priority, &action, &record.LLMConfidence, &record.VectorSimilarity,
		&record.RuleWeight, &record.FinalScore, &record.AutoExecuted, &record.ProcessedAt)
	if err != nil {
		return nil, err
	}

	record.Priority = core.ClampPriority(priority)
	record.Action = core.ParseAction(action)
	record.ProcessedAt = record.ProcessedAt.UTC()
	return &record, nil
}
