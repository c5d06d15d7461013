package core_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mikey/email-housekeeper/internal/adapters/store"
	"github.com/mikey/email-housekeeper/internal/core"
	"github.com/mikey/email-housekeeper/internal/utils"
	"github.com/mikey/email-housekeeper/internal/whitelist"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// scriptedLLM answers with the response registered for the first subject found in the prompt
type scriptedLLM struct {
	mu        sync.Mutex
	responses map[string]string
	fallback  string
	calls     int
}

func (s *scriptedLLM) Complete(ctx context.Context, system, prompt string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++

	for subject, response := range s.responses {
		if strings.Contains(prompt, "Subject: "+subject+"\n") {
			return response, nil
		}
	}
	if s.fallback == "" {
		return "", errors.New("no scripted response")
	}
	return s.fallback, nil
}

func (s *scriptedLLM) ModelName() string { return "scripted" }

type fakeEmbedder struct {
	err error
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []float32{float32(len(text)), 1, 0}, nil
}

type fakeMemory struct {
	mu        sync.Mutex
	matches   []core.SimilarityMatch
	searchErr error
	upsertErr error
	upserts   []core.MemoryPoint
}

func (f *fakeMemory) Upsert(ctx context.Context, point *core.MemoryPoint) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upsertErr != nil {
		return "", f.upsertErr
	}
	f.upserts = append(f.upserts, *point)
	return "point-" + point.OwnerID, nil
}

func (f *fakeMemory) Search(ctx context.Context, ownerID string, vector []float32, topK int) ([]core.SimilarityMatch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return append([]core.SimilarityMatch(nil), f.matches...), nil
}

type fakeMailbox struct {
	mu       sync.Mutex
	emails   []core.Email
	trashErr error
	trashed  []string
}

func (f *fakeMailbox) FetchRecent(ctx context.Context, max int) ([]core.Email, error) {
	if len(f.emails) > max {
		return f.emails[:max], nil
	}
	return f.emails, nil
}

func (f *fakeMailbox) Trash(ctx context.Context, emailID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.trashErr != nil {
		return f.trashErr
	}
	f.trashed = append(f.trashed, emailID)
	return nil
}

type fakeMailboxes struct {
	mailbox *fakeMailbox
	err     error
}

func (f *fakeMailboxes) Mailbox(ctx context.Context, ownerID string) (core.Mailbox, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.mailbox, nil
}

// failingRecords rejects inserts for selected email ids
type failingRecords struct {
	*store.MemoryStore
	failIDs map[string]bool
}

func (f *failingRecords) CreateEmailRecord(ctx context.Context, record *core.EmailRecord) error {
	if f.failIDs[record.EmailID] {
		return errors.New("disk full")
	}
	return f.MemoryStore.CreateEmailRecord(ctx, record)
}

type harness struct {
	llm       *scriptedLLM
	embedder  *fakeEmbedder
	memory    *fakeMemory
	records   *store.MemoryStore
	mailbox   *fakeMailbox
	mailboxes *fakeMailboxes
	service   *core.HousekeeperService
}

type harnessOption func(*harness, *core.PipelineConfig, *[]string, *core.RecordRepository)

func withProtectedDomains(domains ...string) harnessOption {
	return func(h *harness, cfg *core.PipelineConfig, protected *[]string, repo *core.RecordRepository) {
		*protected = domains
	}
}

func withFailingInserts(ids ...string) harnessOption {
	return func(h *harness, cfg *core.PipelineConfig, protected *[]string, repo *core.RecordRepository) {
		fail := make(map[string]bool, len(ids))
		for _, id := range ids {
			fail[id] = true
		}
		*repo = &failingRecords{MemoryStore: h.records, failIDs: fail}
	}
}

func withLearnFromDecisions() harnessOption {
	return func(h *harness, cfg *core.PipelineConfig, protected *[]string, repo *core.RecordRepository) {
		cfg.LearnFromDecisions = true
	}
}

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()

	logger := zap.NewNop()
	h := &harness{
		llm:      &scriptedLLM{responses: map[string]string{}},
		embedder: &fakeEmbedder{},
		memory:   &fakeMemory{},
		records:  store.NewMemoryStore(logger, 0, 0),
		mailbox:  &fakeMailbox{},
	}
	h.mailboxes = &fakeMailboxes{mailbox: h.mailbox}
	t.Cleanup(h.records.Stop)

	cfg := core.DefaultPipelineConfig()
	cfg.StepTimeout = 5 * time.Second
	var protected []string
	var repo core.RecordRepository = h.records
	for _, opt := range opts {
		opt(h, &cfg, &protected, &repo)
	}

	scorer, err := core.NewScorer(core.DefaultScoringConfig())
	require.NoError(t, err)

	classifier := core.NewClassifier(h.llm, logger, utils.NewTextProcessor(logger), 2000, 0)
	reinforcement := core.NewReinforcementService(h.memory, scorer, logger, 0)
	h.service = core.NewHousekeeperService(
		classifier,
		h.embedder,
		reinforcement,
		repo,
		h.mailboxes,
		whitelist.NewChecker(protected, logger),
		logger,
		cfg,
	)
	return h
}

func classification(priority int, action string, confidence float64) string {
	return fmt.Sprintf(`{"priority": %d, "action": %q, "confidence": %v, "reasoning": "scripted"}`,
		priority, action, confidence)
}
