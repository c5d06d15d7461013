package core

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/mikey/email-housekeeper/internal/whitelist"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// MaxBatchSize is the largest accepted max emails value for a batch
const MaxBatchSize = 100

// PipelineConfig tunes batch orchestration
type PipelineConfig struct {
	Concurrency        int
	StepTimeout        time.Duration
	DedupWindow        time.Duration
	StatsWindow        time.Duration
	ReviewLimit        int
	LearnFromDecisions bool
}

// DefaultPipelineConfig returns the stock pipeline settings
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		Concurrency: 4,
		StepTimeout: 30 * time.Second,
		DedupWindow: 24 * time.Hour,
		StatsWindow: 24 * time.Hour,
		ReviewLimit: 50,
	}
}

// HousekeeperService is the core service orchestrating the email pipeline:
// classify, embed, reinforce with memory, decide, persist.
type HousekeeperService struct {
	classifier    *Classifier
	embedder      Embedder
	reinforcement *ReinforcementService
	records       RecordRepository
	mailboxes     MailboxProvider
	protected     *whitelist.Checker
	logger        *zap.Logger
	cfg           PipelineConfig
	now           func() time.Time
}

// NewHousekeeperService creates a new housekeeper service
func NewHousekeeperService(
	classifier *Classifier,
	embedder Embedder,
	reinforcement *ReinforcementService,
	records RecordRepository,
	mailboxes MailboxProvider,
	protected *whitelist.Checker,
	logger *zap.Logger,
	cfg PipelineConfig,
) *HousekeeperService {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.DedupWindow <= 0 {
		cfg.DedupWindow = 24 * time.Hour
	}
	if cfg.StatsWindow <= 0 {
		cfg.StatsWindow = 24 * time.Hour
	}
	if cfg.ReviewLimit <= 0 {
		cfg.ReviewLimit = 50
	}
	if protected == nil {
		protected = whitelist.NewChecker(nil, logger)
	}

	return &HousekeeperService{
		classifier:    classifier,
		embedder:      embedder,
		reinforcement: reinforcement,
		records:       records,
		mailboxes:     mailboxes,
		protected:     protected,
		logger:        logger,
		cfg:           cfg,
		now:           time.Now,
	}
}

// Run fetches recent mail for the owner and processes it as one batch.
// A mailbox failure degrades to an empty batch.
func (s *HousekeeperService) Run(ctx context.Context, ownerID string, autoMode bool, maxEmails int) (*BatchStats, error) {
	if err := validateBatch(ownerID, maxEmails); err != nil {
		return nil, err
	}

	var emails []Email
	if s.mailboxes != nil {
		mailbox, err := s.mailboxes.Mailbox(ctx, ownerID)
		if err != nil {
			s.logger.Warn("Mailbox unavailable, nothing to process",
				zap.String("owner_id", ownerID),
				zap.Error(err))
		} else if emails, err = mailbox.FetchRecent(ctx, maxEmails); err != nil {
			s.logger.Error("Failed to fetch emails",
				zap.String("owner_id", ownerID),
				zap.Error(err))
			emails = nil
		}
	}

	return s.ProcessBatch(ctx, ownerID, emails, autoMode, maxEmails)
}

// ProcessBatch drives candidates through the pipeline.
// Emails already processed inside the dedup window are skipped, per-email
// failures are isolated and the counters only cover this call.
func (s *HousekeeperService) ProcessBatch(
	ctx context.Context,
	ownerID string,
	candidates []Email,
	autoMode bool,
	maxEmails int,
) (*BatchStats, error) {
	if err := validateBatch(ownerID, maxEmails); err != nil {
		return nil, err
	}

	// Snapshot taken once; records created by this batch do not shadow later candidates
	existing, err := s.records.RecentEmailIDs(ctx, ownerID, s.now().Add(-s.cfg.DedupWindow))
	if err != nil {
		return nil, fmt.Errorf("failed to load processed email ids: %w", err)
	}

	selected := make([]Email, 0, min(len(candidates), maxEmails))
	for _, email := range candidates {
		if len(selected) == maxEmails {
			break
		}
		if _, seen := existing[email.EmailID]; seen {
			s.logger.Debug("Skipping already processed email",
				zap.String("owner_id", ownerID),
				zap.String("email_id", email.EmailID))
			continue
		}
		selected = append(selected, email)
	}

	stats := NewBatchStats()
	var mu sync.Mutex

	// In-flight pipelines outlive batch cancellation; step timeouts bound them
	pipelineCtx := WithOwner(context.WithoutCancel(ctx), ownerID)

	var g errgroup.Group
	g.SetLimit(s.cfg.Concurrency)

	for i := range selected {
		if ctx.Err() != nil {
			s.logger.Warn("Batch cancelled, not starting remaining emails",
				zap.String("owner_id", ownerID),
				zap.Int("remaining", len(selected)-i))
			break
		}

		email := selected[i]
		g.Go(func() error {
			record, err := s.processSingleEmail(pipelineCtx, ownerID, &email, autoMode)
			if err != nil {
				s.logger.Error("Failed to process email",
					zap.String("owner_id", ownerID),
					zap.String("email_id", email.EmailID),
					zap.Error(err))
				return nil
			}

			mu.Lock()
			stats.Add(record.Action, record.Priority, record.AutoExecuted)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	s.logger.Info("Batch processed",
		zap.String("owner_id", ownerID),
		zap.Int("candidates", len(candidates)),
		zap.Int("processed", stats.TotalProcessed),
		zap.Int("auto_executed", stats.AutoExecuted),
		zap.Bool("auto_mode", autoMode))

	return stats, nil
}

// processSingleEmail runs classify, embed, retrieve, score, decide and persist for one email
func (s *HousekeeperService) processSingleEmail(ctx context.Context, ownerID string, email *Email, autoMode bool) (*EmailRecord, error) {
	text := email.Text()

	llm := s.classifier.Classify(ctx, email.Subject, email.Sender, email.Snippet)

	vector, err := s.embed(ctx, text)
	if err != nil {
		s.logger.Warn("Embedding failed, scoring without memory",
			zap.String("email_id", email.EmailID),
			zap.Error(err))
		vector = nil
	}

	decision := s.reinforcement.EnhanceDecision(ctx, ownerID, llm, vector)
	action, autoExecuted := s.decide(decision, autoMode)

	if action == ActionDelete && s.protected.IsWhitelisted(email.Sender) {
		s.logger.Info("Protected sender, holding delete for review",
			zap.String("email_id", email.EmailID),
			zap.String("sender", email.Sender))
		action = ActionNeedsReview
		autoExecuted = false
	}

	record := &EmailRecord{
		OwnerID:          ownerID,
		EmailID:          email.EmailID,
		Subject:          email.Subject,
		Sender:           email.Sender,
		Snippet:          email.Snippet,
		Priority:         decision.Priority,
		Action:           action,
		LLMConfidence:    decision.LLMConfidence,
		VectorSimilarity: decision.VectorSimilarity,
		RuleWeight:       decision.RuleWeight,
		FinalScore:       decision.FinalScore,
		AutoExecuted:     autoExecuted,
		ProcessedAt:      s.now().UTC(),
	}

	persistCtx, cancel := s.stepContext(ctx)
	defer cancel()
	if err := s.records.CreateEmailRecord(persistCtx, record); err != nil {
		return nil, fmt.Errorf("failed to persist email record: %w", err)
	}

	// Routine decisions only enrich memory when explicitly enabled
	if s.cfg.LearnFromDecisions && vector != nil {
		if _, err := s.reinforcement.StoreDecisionMemory(ctx, ownerID, text, vector, action, record.Priority); err != nil {
			s.logger.Warn("Failed to store decision memory",
				zap.String("email_id", email.EmailID),
				zap.Error(err))
		}
	}

	s.logger.Debug("Email processed",
		zap.String("owner_id", ownerID),
		zap.String("email_id", email.EmailID),
		zap.String("action", string(action)),
		zap.Int("priority", int(record.Priority)),
		zap.Float64("final_score", record.FinalScore),
		zap.Bool("auto_executed", autoExecuted),
		zap.Bool("memory_influenced", decision.MemoryInfluenced))

	return record, nil
}

// decide applies the auto/manual mode gate to a scored decision
func (s *HousekeeperService) decide(decision ScoredDecision, autoMode bool) (Action, bool) {
	switch {
	case autoMode && decision.AutoExecute:
		return decision.Action, true
	case !autoMode && decision.FinalScore < s.reinforcement.Scorer().Config().AutoExecuteThreshold:
		return ActionNeedsReview, false
	default:
		return decision.Action, false
	}
}

func (s *HousekeeperService) embed(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := s.stepContext(ctx)
	defer cancel()
	return s.embedder.Embed(ctx, text)
}

func (s *HousekeeperService) stepContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.cfg.StepTimeout > 0 {
		return context.WithTimeout(ctx, s.cfg.StepTimeout)
	}
	return context.WithCancel(ctx)
}

// GetStats returns processing statistics over the stats window
func (s *HousekeeperService) GetStats(ctx context.Context, ownerID string) (*Stats, error) {
	if ownerID == "" {
		return nil, ErrOwnerRequired
	}

	stats, err := s.records.Stats(ctx, ownerID, s.now().Add(-s.cfg.StatsWindow))
	if err != nil {
		return nil, fmt.Errorf("failed to compute stats: %w", err)
	}
	stats.AvgConfidence = math.Round(stats.AvgConfidence*1000) / 1000
	return stats, nil
}

// ListForReview returns recent emails held for a human decision
func (s *HousekeeperService) ListForReview(ctx context.Context, ownerID string) ([]ReviewItem, error) {
	if ownerID == "" {
		return nil, ErrOwnerRequired
	}

	records, err := s.records.ListForReview(ctx, ownerID, s.now().Add(-s.cfg.StatsWindow), s.cfg.ReviewLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to list review emails: %w", err)
	}

	items := make([]ReviewItem, 0, len(records))
	for _, r := range records {
		items = append(items, ReviewItem{
			ID:              r.ID,
			EmailID:         r.EmailID,
			Subject:         r.Subject,
			Sender:          r.Sender,
			Snippet:         r.Snippet,
			Priority:        r.Priority,
			SuggestedAction: r.Action,
			FinalScore:      r.FinalScore,
			ProcessedAt:     r.ProcessedAt,
		})
	}
	return items, nil
}

func validateBatch(ownerID string, maxEmails int) error {
	if ownerID == "" {
		return ErrOwnerRequired
	}
	if maxEmails < 1 || maxEmails > MaxBatchSize {
		return fmt.Errorf("%w: got %d", ErrInvalidBatchSize, maxEmails)
	}
	return nil
}
