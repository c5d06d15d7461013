package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/mikey/email-housekeeper/internal/core"
	"github.com/mikey/email-housekeeper/internal/credentials"
	"go.uber.org/zap"
)

// MemoryStore is an in-memory implementation of the record repository and
// the credential store. Data is lost on restart.
type MemoryStore struct {
	records      map[int64]*core.EmailRecord
	feedback     map[int64]*core.FeedbackRecord
	credentials  map[string]map[string]string
	nextRecord   int64
	nextFeedback int64
	mu           sync.RWMutex
	logger       *zap.Logger
	retention    time.Duration
	cleanupFreq  time.Duration
	stopCh       chan struct{}
	stopOnce     sync.Once
}

// NewMemoryStore creates a new in-memory store
func NewMemoryStore(logger *zap.Logger, retention, cleanupFreq time.Duration) *MemoryStore {
	store := &MemoryStore{
		records:     make(map[int64]*core.EmailRecord),
		feedback:    make(map[int64]*core.FeedbackRecord),
		credentials: make(map[string]map[string]string),
		logger:      logger,
		retention:   retention,
		cleanupFreq: cleanupFreq,
		stopCh:      make(chan struct{}),
	}

	// Start background cleanup
	if retention > 0 && cleanupFreq > 0 {
		go store.startCleanupTask()
	}

	return store
}

// RecentEmailIDs returns the email ids processed for the owner since the given time
func (m *MemoryStore) RecentEmailIDs(ctx context.Context, ownerID string, since time.Time) (map[string]struct{}, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make(map[string]struct{})
	for _, r := range m.records {
		if r.OwnerID == ownerID && !r.ProcessedAt.Before(since) {
			ids[r.EmailID] = struct{}{}
		}
	}
	return ids, nil
}

// CreateEmailRecord stores a copy of the record and sets its id
func (m *MemoryStore) CreateEmailRecord(ctx context.Context, record *core.EmailRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextRecord++
	record.ID = m.nextRecord
	stored := *record
	m.records[stored.ID] = &stored
	return nil
}

// GetEmailRecord returns a copy of one of the owner's records
func (m *MemoryStore) GetEmailRecord(ctx context.Context, ownerID string, id int64) (*core.EmailRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.records[id]
	if !ok || r.OwnerID != ownerID {
		return nil, fmt.Errorf("%w: %d", core.ErrRecordNotFound, id)
	}
	record := *r
	return &record, nil
}

// ApplyFeedback stores the feedback and relabels the email record atomically
func (m *MemoryStore) ApplyFeedback(ctx context.Context, feedback *core.FeedbackRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.records[feedback.EmailRecordID]
	if !ok || r.OwnerID != feedback.OwnerID {
		return fmt.Errorf("%w: %d", core.ErrRecordNotFound, feedback.EmailRecordID)
	}

	m.nextFeedback++
	feedback.ID = m.nextFeedback
	stored := *feedback
	m.feedback[stored.ID] = &stored
	r.Action = feedback.UserAction
	return nil
}

// Feedback returns the stored feedback for an email record, oldest first
func (m *MemoryStore) Feedback(emailRecordID int64) []core.FeedbackRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []core.FeedbackRecord
	for _, f := range m.feedback {
		if f.EmailRecordID == emailRecordID {
			out = append(out, *f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ListForReview returns the owner's needs_review records, newest first
func (m *MemoryStore) ListForReview(ctx context.Context, ownerID string, since time.Time, limit int) ([]*core.EmailRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*core.EmailRecord
	for _, r := range m.records {
		if r.OwnerID == ownerID && r.Action == core.ActionNeedsReview && !r.ProcessedAt.Before(since) {
			record := *r
			out = append(out, &record)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].ProcessedAt.Equal(out[j].ProcessedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].ProcessedAt.After(out[j].ProcessedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Stats aggregates the owner's records processed since the given time
func (m *MemoryStore) Stats(ctx context.Context, ownerID string, since time.Time) (*core.Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := &core.Stats{
		PriorityBreakdown: map[core.Priority]int{1: 0, 2: 0, 3: 0, 4: 0, 5: 0},
	}

	var scoreSum float64
	for _, r := range m.records {
		if r.OwnerID != ownerID || r.ProcessedAt.Before(since) {
			continue
		}

		stats.TotalProcessed++
		stats.PriorityBreakdown[r.Priority]++
		scoreSum += r.FinalScore
		if r.AutoExecuted {
			stats.AutoExecutedCount++
		}

		switch r.Action {
		case core.ActionDelete:
			stats.DeletedCount++
		case core.ActionKeep:
			stats.KeptCount++
		default:
			stats.NeedsReviewCount++
		}
	}

	if stats.TotalProcessed > 0 {
		stats.AvgConfidence = scoreSum / float64(stats.TotalProcessed)
	}
	return stats, nil
}

// PurgeBefore deletes records and their feedback processed before the cutoff
func (m *MemoryStore) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var purged int64
	for id, r := range m.records {
		if r.ProcessedAt.Before(cutoff) {
			delete(m.records, id)
			purged++
		}
	}
	for id, f := range m.feedback {
		if _, ok := m.records[f.EmailRecordID]; !ok {
			delete(m.feedback, id)
		}
	}
	return purged, nil
}

// GetCredential returns the owner's stored secret for a service
func (m *MemoryStore) GetCredential(ctx context.Context, ownerID, service string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	secret, ok := m.credentials[ownerID][service]
	if !ok {
		return "", credentials.ErrNotFound
	}
	return secret, nil
}

// SetCredential creates or replaces the owner's secret for a service
func (m *MemoryStore) SetCredential(ctx context.Context, ownerID, service, secret string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.credentials[ownerID] == nil {
		m.credentials[ownerID] = make(map[string]string)
	}
	m.credentials[ownerID][service] = secret
	return nil
}

// DeleteCredential removes the owner's secret for a service
func (m *MemoryStore) DeleteCredential(ctx context.Context, ownerID, service string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.credentials[ownerID][service]; !ok {
		return credentials.ErrNotFound
	}
	delete(m.credentials[ownerID], service)
	return nil
}

// ListCredentialServices returns the services the owner has stored secrets for
func (m *MemoryStore) ListCredentialServices(ctx context.Context, ownerID string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	services := make([]string, 0, len(m.credentials[ownerID]))
	for service := range m.credentials[ownerID] {
		services = append(services, service)
	}
	sort.Strings(services)
	return services, nil
}

// Cleanup purges records older than the retention period
func (m *MemoryStore) Cleanup(ctx context.Context) error {
	purged, err := m.PurgeBefore(ctx, time.Now().Add(-m.retention))
	if err != nil {
		return err
	}
	m.logger.Debug("Purged expired email records", zap.Int64("purged_count", purged))
	return nil
}

// startCleanupTask starts a background task to purge expired records
func (m *MemoryStore) startCleanupTask() {
	ticker := time.NewTicker(m.cleanupFreq)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := m.Cleanup(context.Background()); err != nil {
				m.logger.Error("Failed to purge email records", zap.Error(err))
			}
		case <-m.stopCh:
			return
		}
	}
}

// Stop stops the background cleanup task
func (m *MemoryStore) Stop() {
	m.stopOnce.Do(func() {
		close(m.stopCh)
	})
}
