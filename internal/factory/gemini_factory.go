package factory

import (
	"context"
	"errors"
	"sync"

	"github.com/google/generative-ai-go/genai"
	"github.com/mikey/email-housekeeper/internal/adapters/gemini"
	"github.com/mikey/email-housekeeper/internal/config"
	"github.com/mikey/email-housekeeper/internal/core"
	"go.uber.org/zap"
)

// GeminiFactory creates Gemini LLM clients and embedders sharing one SDK client
type GeminiFactory struct {
	cfg    *config.Config
	logger *zap.Logger

	mu     sync.Mutex
	client *genai.Client
}

// NewGeminiFactory creates a new Gemini factory
func NewGeminiFactory(cfg *config.Config, logger *zap.Logger) *GeminiFactory {
	return &GeminiFactory{
		cfg:    cfg,
		logger: logger,
	}
}

func (f *GeminiFactory) apiClient() (*genai.Client, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.client != nil {
		return f.client, nil
	}

	geminiCfg := f.cfg.GetGemini()
	if geminiCfg.APIKey == "" {
		return nil, errors.New("gemini API key is required")
	}

	client, err := gemini.NewAPIClient(context.Background(), geminiCfg.APIKey)
	if err != nil {
		return nil, err
	}
	f.client = client
	return client, nil
}

// CreateLLMClient creates a Gemini LLM client
func (f *GeminiFactory) CreateLLMClient() (core.LLMClient, error) {
	client, err := f.apiClient()
	if err != nil {
		return nil, err
	}

	geminiCfg := f.cfg.GetGemini()
	return gemini.NewGeminiClient(
		client,
		geminiCfg.ModelName,
		geminiCfg.MaxTokens,
		geminiCfg.Temperature,
		geminiCfg.TopP,
		f.logger,
	), nil
}

// CreateEmbedder creates a Gemini embedder
func (f *GeminiFactory) CreateEmbedder() (core.Embedder, error) {
	client, err := f.apiClient()
	if err != nil {
		return nil, err
	}

	return gemini.NewEmbedder(
		client,
		f.cfg.GetGemini().EmbeddingModel,
		f.cfg.GetEmbedding().Dimension,
		f.logger,
	), nil
}

// Close closes the shared SDK client if one was created
func (f *GeminiFactory) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.client == nil {
		return nil
	}
	err := f.client.Close()
	f.client = nil
	return err
}
