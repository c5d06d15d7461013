package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mikey/email-housekeeper/internal/core"
	"github.com/qdrant/go-client/qdrant"
	"go.uber.org/zap"
)

// QdrantConfig holds the connection settings of a Qdrant server
type QdrantConfig struct {
	Host       string
	Port       int
	APIKey     string
	UseTLS     bool
	Collection string
	Dimension  int
}

// QdrantStore is a vector memory backed by a Qdrant server
type QdrantStore struct {
	client     *qdrant.Client
	collection string
	dimension  int
	logger     *zap.Logger
}

// NewQdrantStore connects to Qdrant and makes sure the collection and its owner index exist
func NewQdrantStore(cfg QdrantConfig, logger *zap.Logger) (*QdrantStore, error) {
	if cfg.Dimension <= 0 {
		return nil, fmt.Errorf("qdrant store requires a positive vector dimension, got %d", cfg.Dimension)
	}
	if cfg.Collection == "" {
		cfg.Collection = DefaultCollection
	}

	if !cfg.UseTLS {
		logger.Warn("Qdrant gRPC connection is not using TLS", zap.String("host", cfg.Host))
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Qdrant client: %w", err)
	}

	store := &QdrantStore{
		client:     client,
		collection: cfg.Collection,
		dimension:  cfg.Dimension,
		logger:     logger,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := store.ensureCollection(ctx); err != nil {
		_ = client.Close()
		return nil, err
	}

	logger.Info("Qdrant memory store initialized",
		zap.String("host", cfg.Host),
		zap.Int("port", cfg.Port),
		zap.String("collection", cfg.Collection),
		zap.Int("dimension", cfg.Dimension))

	return store, nil
}

func (s *QdrantStore) ensureCollection(ctx context.Context) error {
	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return fmt.Errorf("checking collection %s: %w", s.collection, err)
	}
	if exists {
		return nil
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(s.dimension),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("creating collection %s: %w", s.collection, err)
	}

	// Every search filters on the owner
	_, err = s.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
		CollectionName: s.collection,
		FieldName:      metaOwnerID,
		FieldType:      qdrant.FieldType_FieldTypeKeyword.Enum(),
	})
	if err != nil {
		return fmt.Errorf("creating owner index on %s: %w", s.collection, err)
	}
	return nil
}

// Upsert stores a memory point and returns its id
func (s *QdrantStore) Upsert(ctx context.Context, point *core.MemoryPoint) (string, error) {
	if point.OwnerID == "" {
		return "", core.ErrOwnerRequired
	}
	if err := checkDimension(point.Vector, s.dimension); err != nil {
		return "", err
	}

	id := point.ID
	if _, err := uuid.Parse(id); err != nil {
		id = uuid.New().String()
	}

	payload := map[string]any{
		metaOwnerID:  point.OwnerID,
		metaAction:   string(point.Action),
		metaPriority: int64(point.Priority),
		"text":       point.Text,
	}
	for k, v := range point.Metadata {
		if _, reserved := payload[k]; !reserved {
			payload[k] = v
		}
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.collection,
		Points: []*qdrant.PointStruct{{
			Id:      qdrant.NewIDUUID(id),
			Vectors: qdrant.NewVectors(point.Vector...),
			Payload: qdrant.NewValueMap(payload),
		}},
	})
	if err != nil {
		return "", fmt.Errorf("upserting point to collection %s: %w", s.collection, err)
	}

	s.logger.Debug("Stored memory point",
		zap.String("id", id),
		zap.String("owner_id", point.OwnerID),
		zap.String("action", string(point.Action)))

	return id, nil
}

// Search returns the owner's closest memory points by cosine similarity
func (s *QdrantStore) Search(ctx context.Context, ownerID string, vector []float32, topK int) ([]core.SimilarityMatch, error) {
	if ownerID == "" {
		return nil, core.ErrOwnerRequired
	}
	if err := checkDimension(vector, s.dimension); err != nil {
		return nil, err
	}
	if topK <= 0 {
		return nil, nil
	}

	results, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(uint64(topK)),
		WithPayload:    qdrant.NewWithPayload(true),
		Filter: &qdrant.Filter{
			Must: []*qdrant.Condition{qdrant.NewMatch(metaOwnerID, ownerID)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("searching collection %s: %w", s.collection, err)
	}

	matches := make([]core.SimilarityMatch, 0, len(results))
	for _, point := range results {
		payload := point.GetPayload()
		matches = append(matches, core.SimilarityMatch{
			Score:    float64(point.GetScore()),
			Action:   core.ParseAction(payload[metaAction].GetStringValue()),
			Priority: core.ClampPriority(int(payload[metaPriority].GetIntegerValue())),
			Text:     payload["text"].GetStringValue(),
		})
	}
	return matches, nil
}

// Close closes the gRPC connection
func (s *QdrantStore) Close() error {
	return s.client.Close()
}
