package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/mikey/email-housekeeper/internal/core"
	"go.uber.org/zap"
)

// Runner processes one batch for an owner
type Runner interface {
	Run(ctx context.Context, ownerID string, autoMode bool, maxEmails int) (*core.BatchStats, error)
}

// Config holds the periodic run settings
type Config struct {
	Interval  time.Duration
	Owners    []string
	AutoMode  bool
	MaxEmails int
}

// Scheduler runs a batch for every configured owner on a fixed interval
type Scheduler struct {
	runner Runner
	cfg    Config
	logger *zap.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a new scheduler
func New(runner Runner, cfg Config, logger *zap.Logger) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}
	if cfg.MaxEmails <= 0 {
		cfg.MaxEmails = 20
	}
	return &Scheduler{
		runner: runner,
		cfg:    cfg,
		logger: logger,
	}
}

// Name identifies the frontend in logs
func (s *Scheduler) Name() string {
	return "scheduler"
}

// Start launches the ticker loop
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})

	s.logger.Info("Scheduler started",
		zap.Duration("interval", s.cfg.Interval),
		zap.Strings("owners", s.cfg.Owners),
		zap.Bool("auto_mode", s.cfg.AutoMode))

	go s.loop(ctx, s.done)
	return nil
}

// Stop cancels the loop and waits for an in-flight run to finish
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	<-done
	return nil
}

func (s *Scheduler) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce processes one batch per owner; failures are logged and skipped
func (s *Scheduler) RunOnce(ctx context.Context) {
	for _, owner := range s.cfg.Owners {
		if ctx.Err() != nil {
			return
		}

		stats, err := s.runner.Run(ctx, owner, s.cfg.AutoMode, s.cfg.MaxEmails)
		if err != nil {
			s.logger.Error("Scheduled run failed",
				zap.String("owner_id", owner),
				zap.Error(err))
			continue
		}

		s.logger.Info("Scheduled run completed",
			zap.String("owner_id", owner),
			zap.Int("processed", stats.TotalProcessed),
			zap.Int("deleted", stats.Deleted),
			zap.Int("needs_review", stats.NeedsReview))
	}
}
