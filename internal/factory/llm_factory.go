package factory

import (
	"fmt"

	"github.com/mikey/email-housekeeper/internal/config"
	"github.com/mikey/email-housekeeper/internal/core"
	"github.com/mikey/email-housekeeper/internal/credentials"
	"go.uber.org/zap"
)

// LLMFactory creates the classifier transport and the embedder for the configured providers
type LLMFactory struct {
	cfg     *config.Config
	logger  *zap.Logger
	openai  *OpenAIFactory
	gemini  *GeminiFactory
	bedrock *BedrockFactory
}

// NewLLMFactory creates a new LLM factory.
// The resolver selects per-owner OpenAI keys; it may be nil.
func NewLLMFactory(cfg *config.Config, logger *zap.Logger, resolver *credentials.Resolver) *LLMFactory {
	return &LLMFactory{
		cfg:     cfg,
		logger:  logger,
		openai:  NewOpenAIFactory(cfg, logger, resolver),
		gemini:  NewGeminiFactory(cfg, logger),
		bedrock: NewBedrockFactory(cfg, logger),
	}
}

// CreateLLMClient creates a new LLM client based on the configuration
func (f *LLMFactory) CreateLLMClient() (core.LLMClient, error) {
	provider := f.cfg.GetLLM().Provider

	f.logger.Info("Creating LLM client", zap.String("provider", provider))

	switch provider {
	case "openai":
		return f.openai.CreateLLMClient()
	case "gemini":
		return f.gemini.CreateLLMClient()
	case "bedrock":
		return f.bedrock.CreateLLMClient()
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", provider)
	}
}

// CreateEmbedder creates a new embedder based on the configuration
func (f *LLMFactory) CreateEmbedder() (core.Embedder, error) {
	provider := f.cfg.GetEmbedding().Provider

	f.logger.Info("Creating embedder",
		zap.String("provider", provider),
		zap.Int("dimension", f.cfg.GetEmbedding().Dimension))

	switch provider {
	case "openai":
		return f.openai.CreateEmbedder()
	case "gemini":
		return f.gemini.CreateEmbedder()
	case "bedrock":
		return f.bedrock.CreateEmbedder()
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", provider)
	}
}

// Close releases provider clients that hold connections
func (f *LLMFactory) Close() error {
	return f.gemini.Close()
}
