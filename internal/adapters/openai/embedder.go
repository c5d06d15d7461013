package openai

import (
	"context"
	"errors"
	"fmt"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// Embedder turns text into vectors with the OpenAI embeddings endpoint
type Embedder struct {
	client    ClientSource
	model     openai.EmbeddingModel
	dimension int
	logger    *zap.Logger
}

// NewEmbedder creates a new OpenAI embedder. A zero dimension keeps the model default.
func NewEmbedder(client ClientSource, model string, dimension int, logger *zap.Logger) *Embedder {
	return &Embedder{
		client:    client,
		model:     openai.EmbeddingModel(model),
		dimension: dimension,
		logger:    logger,
	}
}

// Embed returns the embedding of text
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	req := openai.EmbeddingRequest{
		Input: []string{text},
		Model: e.model,
	}
	// Only the text-embedding-3 family accepts a reduced dimension
	if e.dimension > 0 && e.model != openai.AdaEmbeddingV2 {
		req.Dimensions = e.dimension
	}

	client, err := e.client.Client(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := client.CreateEmbeddings(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding with OpenAI: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, errors.New("empty embedding response from OpenAI")
	}

	vector := resp.Data[0].Embedding
	if e.dimension > 0 && len(vector) != e.dimension {
		return nil, fmt.Errorf("embedding dimension mismatch: expected %d, got %d", e.dimension, len(vector))
	}
	return vector, nil
}
