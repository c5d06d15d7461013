package gemini

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
)

// Embedder turns text into vectors with a Gemini embedding model
type Embedder struct {
	model     *genai.EmbeddingModel
	name      string
	dimension int
	logger    *zap.Logger
}

// NewEmbedder creates a new Gemini embedder
func NewEmbedder(client *genai.Client, modelName string, dimension int, logger *zap.Logger) *Embedder {
	model := client.EmbeddingModel(modelName)
	model.TaskType = genai.TaskTypeSemanticSimilarity

	return &Embedder{
		model:     model,
		name:      modelName,
		dimension: dimension,
		logger:    logger,
	}
}

// Embed returns the embedding of text
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := e.model.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, fmt.Errorf("failed to embed content with Gemini: %w", err)
	}
	if resp == nil || resp.Embedding == nil || len(resp.Embedding.Values) == 0 {
		return nil, errors.New("empty embedding response from Gemini")
	}

	vector := resp.Embedding.Values
	if e.dimension > 0 && len(vector) != e.dimension {
		return nil, fmt.Errorf("embedding dimension mismatch for %s: expected %d, got %d", e.name, e.dimension, len(vector))
	}
	return vector, nil
}
