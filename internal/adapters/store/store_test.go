package store

import (
	"context"
	"testing"
	"time"

	"github.com/mikey/email-housekeeper/internal/core"
	"github.com/mikey/email-housekeeper/internal/credentials"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordStore interface {
	core.RecordRepository
	credentials.Store
	Stop()
}

func backends(t *testing.T) map[string]func(t *testing.T) recordStore {
	t.Helper()
	return map[string]func(t *testing.T) recordStore{
		"memory": func(t *testing.T) recordStore {
			return NewMemoryStore(zap.NewNop(), 0, 0)
		},
		"sqlite": func(t *testing.T) recordStore {
			s, err := NewSQLiteStore(":memory:", zap.NewNop(), 0, 0)
			require.NoError(t, err)
			return s
		},
	}
}

func newRecord(owner, emailID string, action core.Action, priority core.Priority, score float64, at time.Time) *core.EmailRecord {
	return &core.EmailRecord{
		OwnerID:     owner,
		EmailID:     emailID,
		Subject:     "Subject " + emailID,
		Sender:      "sender@example.com",
		Snippet:     "snippet",
		Priority:    priority,
		Action:      action,
		FinalScore:  score,
		ProcessedAt: at,
	}
}

func TestRecordLifecycle(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := open(t)
			defer s.Stop()

			now := time.Now().UTC().Truncate(time.Second)
			record := newRecord("owner-a", "msg-1", core.ActionNeedsReview, core.PriorityLow, 0.42, now)
			record.LLMConfidence = 0.5
			record.AutoExecuted = false

			require.NoError(t, s.CreateEmailRecord(ctx, record))
			assert.NotZero(t, record.ID)

			loaded, err := s.GetEmailRecord(ctx, "owner-a", record.ID)
			require.NoError(t, err)
			assert.Equal(t, "msg-1", loaded.EmailID)
			assert.Equal(t, core.PriorityLow, loaded.Priority)
			assert.Equal(t, core.ActionNeedsReview, loaded.Action)
			assert.InDelta(t, 0.42, loaded.FinalScore, 1e-9)
			assert.True(t, now.Equal(loaded.ProcessedAt))

			_, err = s.GetEmailRecord(ctx, "owner-b", record.ID)
			assert.ErrorIs(t, err, core.ErrRecordNotFound)

			_, err = s.GetEmailRecord(ctx, "owner-a", record.ID+100)
			assert.ErrorIs(t, err, core.ErrRecordNotFound)
		})
	}
}

func TestRecentEmailIDs(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := open(t)
			defer s.Stop()

			now := time.Now().UTC()
			require.NoError(t, s.CreateEmailRecord(ctx, newRecord("owner-a", "fresh", core.ActionKeep, 3, 0.9, now.Add(-time.Hour))))
			require.NoError(t, s.CreateEmailRecord(ctx, newRecord("owner-a", "stale", core.ActionKeep, 3, 0.9, now.Add(-48*time.Hour))))
			require.NoError(t, s.CreateEmailRecord(ctx, newRecord("owner-b", "other", core.ActionKeep, 3, 0.9, now)))

			ids, err := s.RecentEmailIDs(ctx, "owner-a", now.Add(-24*time.Hour))
			require.NoError(t, err)
			assert.Len(t, ids, 1)
			assert.Contains(t, ids, "fresh")
		})
	}
}

func TestApplyFeedback(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := open(t)
			defer s.Stop()

			record := newRecord("owner-a", "msg-1", core.ActionKeep, 4, 0.6, time.Now().UTC())
			require.NoError(t, s.CreateEmailRecord(ctx, record))

			feedback := &core.FeedbackRecord{
				OwnerID:        "owner-a",
				EmailRecordID:  record.ID,
				OriginalAction: core.ActionKeep,
				UserAction:     core.ActionDelete,
				IsOverride:     true,
				CreatedAt:      time.Now().UTC(),
			}
			require.NoError(t, s.ApplyFeedback(ctx, feedback))
			assert.NotZero(t, feedback.ID)

			loaded, err := s.GetEmailRecord(ctx, "owner-a", record.ID)
			require.NoError(t, err)
			assert.Equal(t, core.ActionDelete, loaded.Action)
		})
	}
}

func TestListForReview(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := open(t)
			defer s.Stop()

			now := time.Now().UTC().Truncate(time.Second)
			require.NoError(t, s.CreateEmailRecord(ctx, newRecord("owner-a", "old", core.ActionNeedsReview, 3, 0.5, now.Add(-2*time.Hour))))
			require.NoError(t, s.CreateEmailRecord(ctx, newRecord("owner-a", "new", core.ActionNeedsReview, 3, 0.5, now.Add(-time.Hour))))
			require.NoError(t, s.CreateEmailRecord(ctx, newRecord("owner-a", "kept", core.ActionKeep, 3, 0.9, now)))
			require.NoError(t, s.CreateEmailRecord(ctx, newRecord("owner-a", "ancient", core.ActionNeedsReview, 3, 0.5, now.Add(-72*time.Hour))))

			items, err := s.ListForReview(ctx, "owner-a", now.Add(-24*time.Hour), 50)
			require.NoError(t, err)
			require.Len(t, items, 2)
			assert.Equal(t, "new", items[0].EmailID)
			assert.Equal(t, "old", items[1].EmailID)

			limited, err := s.ListForReview(ctx, "owner-a", now.Add(-24*time.Hour), 1)
			require.NoError(t, err)
			require.Len(t, limited, 1)
			assert.Equal(t, "new", limited[0].EmailID)
		})
	}
}

func TestStats(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := open(t)
			defer s.Stop()

			now := time.Now().UTC()
			auto := newRecord("owner-a", "1", core.ActionDelete, core.PrioritySpam, 0.9, now)
			auto.AutoExecuted = true
			require.NoError(t, s.CreateEmailRecord(ctx, auto))
			require.NoError(t, s.CreateEmailRecord(ctx, newRecord("owner-a", "2", core.ActionKeep, core.PriorityHigh, 0.6, now)))
			require.NoError(t, s.CreateEmailRecord(ctx, newRecord("owner-a", "3", core.ActionNeedsReview, core.PriorityHigh, 0.3, now)))
			require.NoError(t, s.CreateEmailRecord(ctx, newRecord("owner-a", "4", core.ActionKeep, core.PriorityHigh, 0.1, now.Add(-48*time.Hour))))
			require.NoError(t, s.CreateEmailRecord(ctx, newRecord("owner-b", "5", core.ActionKeep, core.PriorityHigh, 0.1, now)))

			stats, err := s.Stats(ctx, "owner-a", now.Add(-24*time.Hour))
			require.NoError(t, err)
			assert.Equal(t, 3, stats.TotalProcessed)
			assert.Equal(t, 1, stats.DeletedCount)
			assert.Equal(t, 1, stats.KeptCount)
			assert.Equal(t, 1, stats.NeedsReviewCount)
			assert.Equal(t, 1, stats.AutoExecutedCount)
			assert.InDelta(t, 0.6, stats.AvgConfidence, 1e-9)
			assert.Equal(t, map[core.Priority]int{1: 0, 2: 2, 3: 0, 4: 0, 5: 1}, stats.PriorityBreakdown)

			empty, err := s.Stats(ctx, "nobody", now.Add(-24*time.Hour))
			require.NoError(t, err)
			assert.Zero(t, empty.TotalProcessed)
			assert.Zero(t, empty.AvgConfidence)
			assert.Len(t, empty.PriorityBreakdown, 5)
		})
	}
}

func TestPurgeBefore(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := open(t)
			defer s.Stop()

			now := time.Now().UTC()
			old := newRecord("owner-a", "old", core.ActionKeep, 3, 0.5, now.Add(-10*24*time.Hour))
			require.NoError(t, s.CreateEmailRecord(ctx, old))
			require.NoError(t, s.ApplyFeedback(ctx, &core.FeedbackRecord{
				OwnerID:        "owner-a",
				EmailRecordID:  old.ID,
				OriginalAction: core.ActionKeep,
				UserAction:     core.ActionKeep,
				CreatedAt:      now,
			}))
			require.NoError(t, s.CreateEmailRecord(ctx, newRecord("owner-a", "new", core.ActionKeep, 3, 0.5, now)))

			purged, err := s.PurgeBefore(ctx, now.Add(-24*time.Hour))
			require.NoError(t, err)
			assert.Equal(t, int64(1), purged)

			_, err = s.GetEmailRecord(ctx, "owner-a", old.ID)
			assert.ErrorIs(t, err, core.ErrRecordNotFound)
		})
	}
}

func TestCredentials(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := open(t)
			defer s.Stop()

			_, err := s.GetCredential(ctx, "owner-a", "openai")
			assert.ErrorIs(t, err, credentials.ErrNotFound)

			require.NoError(t, s.SetCredential(ctx, "owner-a", "openai", "sk-first"))
			require.NoError(t, s.SetCredential(ctx, "owner-a", "openai", "sk-second"))
			require.NoError(t, s.SetCredential(ctx, "owner-a", "gmail", "token"))

			secret, err := s.GetCredential(ctx, "owner-a", "openai")
			require.NoError(t, err)
			assert.Equal(t, "sk-second", secret)

			services, err := s.ListCredentialServices(ctx, "owner-a")
			require.NoError(t, err)
			assert.Equal(t, []string{"gmail", "openai"}, services)

			require.NoError(t, s.DeleteCredential(ctx, "owner-a", "gmail"))
			assert.ErrorIs(t, s.DeleteCredential(ctx, "owner-a", "gmail"), credentials.ErrNotFound)

			services, err = s.ListCredentialServices(ctx, "owner-b")
			require.NoError(t, err)
			assert.Empty(t, services)
		})
	}
}

func TestRebind(t *testing.T) {
	s := &SQLStore{dialect: postgresDialect}
	assert.Equal(t, "SELECT * FROM t WHERE a = $1 AND b = $2", s.rebind("SELECT * FROM t WHERE a = ? AND b = ?"))

	s = &SQLStore{dialect: sqliteDialect}
	assert.Equal(t, "SELECT ?", s.rebind("SELECT ?"))
}
