package di

import (
	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mikey/email-housekeeper/internal/config"
	"github.com/mikey/email-housekeeper/internal/logging"
)

// CLIOptions contains the command line options of the CLI application
type CLIOptions struct {
	// Model provider options
	Provider       string
	OpenAIAPIKey   string
	OpenAIModel    string
	GeminiAPIKey   string
	BedrockRegion  string
	EmbeddingModel string

	// Storage options
	StorePath  string
	MemoryType string
	MemoryPath string

	// Output options
	Verbose    bool
	JSONLog    bool
	ConfigFile string
}

// BuildCLIContainer creates and configures a dependency injection container for the CLI application
func BuildCLIContainer(opts *CLIOptions) (*dig.Container, error) {
	container := dig.New()

	// Register options
	if err := container.Provide(func() *CLIOptions { return opts }); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(func(opts *CLIOptions) (*zap.Logger, error) {
		return logging.InitConsoleLogger(opts.Verbose, opts.JSONLog)
	}); err != nil {
		return nil, err
	}

	// Register configuration
	if err := container.Provide(func(opts *CLIOptions, logger *zap.Logger) (*config.Config, error) {
		if opts.ConfigFile != "" {
			cfg, err := config.Load(opts.ConfigFile)
			if err != nil {
				return nil, err
			}
			logger.Debug("Loaded configuration from file", zap.String("file", cfg.GetViper().ConfigFileUsed()))
			applyCLIOverrides(cfg, opts)
			return cfg, nil
		}

		// Create config from command line options
		return createConfigFromOptions(opts), nil
	}); err != nil {
		return nil, err
	}

	if err := provideCore(container); err != nil {
		return nil, err
	}

	return container, nil
}

// createConfigFromOptions creates a configuration from command line options
func createConfigFromOptions(opts *CLIOptions) *config.Config {
	v := config.NewEmptyViper()

	if opts.Provider != "" {
		v.Set("llm.provider", opts.Provider)
		v.Set("embedding.provider", opts.Provider)
	}

	switch opts.Provider {
	case "gemini":
		v.Set("gemini.api_key", opts.GeminiAPIKey)
		v.Set("embedding.dimension", 768)
		if opts.EmbeddingModel != "" {
			v.Set("gemini.embedding_model", opts.EmbeddingModel)
		}
	case "bedrock":
		v.Set("bedrock.region", opts.BedrockRegion)
		v.Set("embedding.dimension", 1024)
		if opts.EmbeddingModel != "" {
			v.Set("bedrock.embedding_model_id", opts.EmbeddingModel)
		}
	default:
		v.Set("openai.api_key", opts.OpenAIAPIKey)
		if opts.OpenAIModel != "" {
			v.Set("openai.model_name", opts.OpenAIModel)
		}
		if opts.EmbeddingModel != "" {
			v.Set("openai.embedding_model", opts.EmbeddingModel)
		}
	}

	v.Set("logging.format", "console")
	if opts.Verbose {
		v.Set("logging.level", "debug")
	}

	cfg := config.NewFromViper(v)
	applyCLIOverrides(cfg, opts)
	return cfg
}

// applyCLIOverrides turns off everything a one-shot command does not run and
// points storage at the requested paths
func applyCLIOverrides(cfg *config.Config, opts *CLIOptions) {
	v := cfg.GetViper()

	v.Set("server.enabled", false)
	v.Set("scheduler.enabled", false)
	if v.GetString("mail.provider") == "intake" {
		v.Set("mail.provider", "none")
	}

	if opts.StorePath != "" {
		v.Set("store.type", "sqlite")
		v.Set("store.sqlite_path", opts.StorePath)
	}
	if opts.MemoryType != "" {
		v.Set("memory.type", opts.MemoryType)
	}
	if opts.MemoryPath != "" {
		v.Set("memory.path", opts.MemoryPath)
	}
}
