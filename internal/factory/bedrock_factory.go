package factory

import (
	"context"
	"sync"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/mikey/email-housekeeper/internal/adapters/bedrock"
	"github.com/mikey/email-housekeeper/internal/config"
	"github.com/mikey/email-housekeeper/internal/core"
	"go.uber.org/zap"
)

// BedrockFactory creates Bedrock LLM clients and Titan embedders
type BedrockFactory struct {
	cfg    *config.Config
	logger *zap.Logger

	mu     sync.Mutex
	client *bedrockruntime.Client
}

// NewBedrockFactory creates a new Bedrock factory
func NewBedrockFactory(cfg *config.Config, logger *zap.Logger) *BedrockFactory {
	return &BedrockFactory{
		cfg:    cfg,
		logger: logger,
	}
}

func (f *BedrockFactory) runtimeClient() (*bedrockruntime.Client, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.client != nil {
		return f.client, nil
	}

	client, err := bedrock.NewRuntimeClient(context.Background(), f.cfg.GetBedrock().Region)
	if err != nil {
		return nil, err
	}
	f.client = client
	return client, nil
}

// CreateLLMClient creates a Bedrock LLM client
func (f *BedrockFactory) CreateLLMClient() (core.LLMClient, error) {
	client, err := f.runtimeClient()
	if err != nil {
		return nil, err
	}

	bedrockCfg := f.cfg.GetBedrock()
	return bedrock.NewBedrockClient(
		client,
		bedrockCfg.ModelID,
		bedrockCfg.MaxTokens,
		bedrockCfg.Temperature,
		bedrockCfg.TopP,
		f.logger,
	), nil
}

// CreateEmbedder creates a Bedrock Titan embedder
func (f *BedrockFactory) CreateEmbedder() (core.Embedder, error) {
	client, err := f.runtimeClient()
	if err != nil {
		return nil, err
	}

	return bedrock.NewEmbedder(
		client,
		f.cfg.GetBedrock().EmbeddingModelID,
		f.cfg.GetEmbedding().Dimension,
		f.logger,
	), nil
}
