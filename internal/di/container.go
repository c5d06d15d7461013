package di

import (
	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mikey/email-housekeeper/internal/adapters/intake"
	"github.com/mikey/email-housekeeper/internal/config"
	"github.com/mikey/email-housekeeper/internal/core"
	"github.com/mikey/email-housekeeper/internal/credentials"
	"github.com/mikey/email-housekeeper/internal/factory"
	"github.com/mikey/email-housekeeper/internal/logging"
	"github.com/mikey/email-housekeeper/internal/ports"
	"github.com/mikey/email-housekeeper/internal/utils"
	"github.com/mikey/email-housekeeper/internal/whitelist"
)

// Mailboxes is the configured mailbox provider and, when mail arrives over
// SMTP, the intake listener that feeds it
type Mailboxes struct {
	dig.Out

	Provider core.MailboxProvider
	Intake   *intake.Intake
}

// BuildContainer creates and configures a dependency injection container for the daemon
func BuildContainer(configFile string) (*dig.Container, error) {
	container := dig.New()

	// Register configuration
	if err := container.Provide(func() (*config.Config, error) {
		return config.Load(configFile)
	}); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(logging.InitLogger); err != nil {
		return nil, err
	}

	if err := provideCore(container); err != nil {
		return nil, err
	}

	// Register frontends
	if err := container.Provide(factory.NewFrontendFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(func(f *factory.FrontendFactory) ([]ports.Frontend, error) {
		return f.CreateFrontends()
	}); err != nil {
		return nil, err
	}

	return container, nil
}

// provideCore registers everything below the frontends. It expects
// *config.Config and *zap.Logger to be provided already.
func provideCore(container *dig.Container) error {
	providers := []interface{}{
		utils.NewTextProcessor,

		// Factories
		factory.NewStoreFactory,
		factory.NewMemoryFactory,
		factory.NewLLMFactory,
		factory.NewMailboxFactory,

		// Record store, also serving owner credentials
		func(f *factory.StoreFactory) (ports.RecordStore, error) {
			return f.CreateRecordStore()
		},
		func(s ports.RecordStore) core.RecordRepository { return s },
		func(s ports.RecordStore) credentials.Store { return s },

		// Credential resolution with the system OpenAI key as default
		func(s credentials.Store, cfg *config.Config, logger *zap.Logger) *credentials.Resolver {
			return credentials.NewResolver(s, map[credentials.Service]string{
				credentials.ServiceOpenAI: cfg.GetOpenAI().APIKey,
			}, logger)
		},

		// Model clients
		func(f *factory.LLMFactory) (core.LLMClient, error) {
			return f.CreateLLMClient()
		},
		func(f *factory.LLMFactory) (core.Embedder, error) {
			return f.CreateEmbedder()
		},

		// Vector memory
		func(f *factory.MemoryFactory) (core.MemoryStore, error) {
			return f.CreateMemoryStore()
		},

		// Mailbox
		func(f *factory.MailboxFactory) (Mailboxes, error) {
			provider, in, err := f.CreateMailboxProvider()
			return Mailboxes{Provider: provider, Intake: in}, err
		},

		// Scoring and the pipeline
		func(cfg *config.Config) (*core.Scorer, error) {
			scoring, err := cfg.GetScoring()
			if err != nil {
				return nil, err
			}
			return core.NewScorer(scoring)
		},
		func(llm core.LLMClient, logger *zap.Logger, tp *utils.TextProcessor, cfg *config.Config) *core.Classifier {
			llmCfg := cfg.GetLLM()
			return core.NewClassifier(llm, logger, tp, llmCfg.MaxSnippetSize, llmCfg.Timeout)
		},
		func(memory core.MemoryStore, scorer *core.Scorer, logger *zap.Logger, cfg *config.Config) *core.ReinforcementService {
			return core.NewReinforcementService(memory, scorer, logger, cfg.GetMemory().Timeout)
		},
		func(cfg *config.Config, logger *zap.Logger) *whitelist.Checker {
			return whitelist.NewChecker(cfg.GetProtectedDomains(), logger)
		},
		func(
			classifier *core.Classifier,
			embedder core.Embedder,
			reinforcement *core.ReinforcementService,
			records core.RecordRepository,
			mailboxes core.MailboxProvider,
			protected *whitelist.Checker,
			logger *zap.Logger,
			cfg *config.Config,
		) *core.HousekeeperService {
			return core.NewHousekeeperService(
				classifier,
				embedder,
				reinforcement,
				records,
				mailboxes,
				protected,
				logger,
				cfg.GetPipeline(),
			)
		},
	}

	for _, provider := range providers {
		if err := container.Provide(provider); err != nil {
			return err
		}
	}
	return nil
}
