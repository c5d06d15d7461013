package factory

import (
	"errors"

	"github.com/mikey/email-housekeeper/internal/adapters/openai"
	"github.com/mikey/email-housekeeper/internal/config"
	"github.com/mikey/email-housekeeper/internal/core"
	"github.com/mikey/email-housekeeper/internal/credentials"
	"go.uber.org/zap"
)

// OpenAIFactory creates OpenAI LLM clients and embedders
type OpenAIFactory struct {
	cfg      *config.Config
	logger   *zap.Logger
	resolver *credentials.Resolver
}

// NewOpenAIFactory creates a new OpenAI factory
func NewOpenAIFactory(cfg *config.Config, logger *zap.Logger, resolver *credentials.Resolver) *OpenAIFactory {
	return &OpenAIFactory{
		cfg:      cfg,
		logger:   logger,
		resolver: resolver,
	}
}

// source prefers owner keys when a resolver is available
func (f *OpenAIFactory) source() (openai.ClientSource, error) {
	openaiCfg := f.cfg.GetOpenAI()

	if f.resolver != nil {
		return openai.NewOwnerKeySource(f.resolver, openaiCfg.BaseURL, openaiCfg.APIKey, f.logger), nil
	}
	if openaiCfg.APIKey == "" {
		return nil, errors.New("openai API key is required")
	}
	return openai.Static(openai.NewAPIClient(openaiCfg.APIKey, openaiCfg.BaseURL)), nil
}

// CreateLLMClient creates an OpenAI LLM client
func (f *OpenAIFactory) CreateLLMClient() (core.LLMClient, error) {
	source, err := f.source()
	if err != nil {
		return nil, err
	}

	openaiCfg := f.cfg.GetOpenAI()
	return openai.NewOpenAIClient(
		source,
		openaiCfg.ModelName,
		openaiCfg.MaxTokens,
		openaiCfg.Temperature,
		openaiCfg.TopP,
		f.logger,
	), nil
}

// CreateEmbedder creates an OpenAI embedder
func (f *OpenAIFactory) CreateEmbedder() (core.Embedder, error) {
	source, err := f.source()
	if err != nil {
		return nil, err
	}

	return openai.NewEmbedder(
		source,
		f.cfg.GetOpenAI().EmbeddingModel,
		f.cfg.GetEmbedding().Dimension,
		f.logger,
	), nil
}
