package bedrock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"go.uber.org/zap"
)

// Embedder turns text into vectors with an Amazon Titan text embedding model
type Embedder struct {
	client    InvokeAPI
	modelID   string
	dimension int
	logger    *zap.Logger
}

// NewEmbedder creates a new Titan embedder. A zero dimension keeps the model default.
func NewEmbedder(client InvokeAPI, modelID string, dimension int, logger *zap.Logger) *Embedder {
	return &Embedder{
		client:    client,
		modelID:   modelID,
		dimension: dimension,
		logger:    logger,
	}
}

// Embed returns the embedding of text
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	request := map[string]interface{}{
		"inputText": text,
		"normalize": true,
	}
	if e.dimension > 0 {
		request["dimensions"] = e.dimension
	}

	payload, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal embedding request: %w", err)
	}

	resp, err := e.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(e.modelID),
		Body:        payload,
		Accept:      aws.String("application/json"),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to invoke Bedrock embedding model: %w", err)
	}

	var titanResp struct {
		Embedding           []float64 `json:"embedding"`
		InputTextTokenCount int       `json:"inputTextTokenCount"`
	}
	if err := json.Unmarshal(resp.Body, &titanResp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal embedding response: %w", err)
	}
	if len(titanResp.Embedding) == 0 {
		return nil, errors.New("empty embedding response from Bedrock")
	}
	if e.dimension > 0 && len(titanResp.Embedding) != e.dimension {
		return nil, fmt.Errorf("embedding dimension mismatch: expected %d, got %d", e.dimension, len(titanResp.Embedding))
	}

	vector := make([]float32, len(titanResp.Embedding))
	for i, v := range titanResp.Embedding {
		vector[i] = float32(v)
	}

	e.logger.Debug("Bedrock embedding created",
		zap.String("model", e.modelID),
		zap.Int("input_tokens", titanResp.InputTextTokenCount))

	return vector, nil
}
