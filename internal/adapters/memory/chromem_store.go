package memory

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/google/uuid"
	"github.com/mikey/email-housekeeper/internal/core"
	"github.com/philippgille/chromem-go"
	"go.uber.org/zap"
)

// DefaultCollection is the collection holding every owner's memory points
const DefaultCollection = "email_housekeeper_memories"

const (
	metaOwnerID  = "owner_id"
	metaAction   = "action"
	metaPriority = "priority"
)

var errPrecomputedOnly = errors.New("memory collection only accepts precomputed embeddings")

// ChromemStore is an embedded vector memory backed by chromem-go.
// Points from all owners share one collection and are separated by an owner_id filter.
type ChromemStore struct {
	db         *chromem.DB
	collection *chromem.Collection
	dimension  int
	logger     *zap.Logger
}

// NewChromemStore opens an embedded store. An empty path keeps everything in memory,
// otherwise documents are persisted under path.
func NewChromemStore(path string, compress bool, dimension int, logger *zap.Logger) (*ChromemStore, error) {
	var db *chromem.DB
	if path == "" {
		db = chromem.NewDB()
	} else {
		if err := os.MkdirAll(path, 0o755); err != nil {
			return nil, fmt.Errorf("creating directory %s: %w", path, err)
		}
		var err error
		db, err = chromem.NewPersistentDB(path, compress)
		if err != nil {
			return nil, fmt.Errorf("creating chromem DB: %w", err)
		}
	}

	// Embeddings are always computed upstream
	embed := func(ctx context.Context, text string) ([]float32, error) {
		return nil, errPrecomputedOnly
	}

	collection, err := db.GetOrCreateCollection(DefaultCollection, nil, embed)
	if err != nil {
		return nil, fmt.Errorf("getting/creating collection %s: %w", DefaultCollection, err)
	}

	logger.Info("Chromem memory store initialized",
		zap.String("path", path),
		zap.Bool("persistent", path != ""),
		zap.Int("dimension", dimension),
		zap.Int("points", collection.Count()))

	return &ChromemStore{
		db:         db,
		collection: collection,
		dimension:  dimension,
		logger:     logger,
	}, nil
}

// Upsert stores a memory point and returns its id
func (s *ChromemStore) Upsert(ctx context.Context, point *core.MemoryPoint) (string, error) {
	if point.OwnerID == "" {
		return "", core.ErrOwnerRequired
	}
	if err := checkDimension(point.Vector, s.dimension); err != nil {
		return "", err
	}

	id := point.ID
	if id == "" {
		id = uuid.New().String()
	}

	metadata := make(map[string]string, len(point.Metadata)+3)
	for k, v := range point.Metadata {
		metadata[k] = v
	}
	metadata[metaOwnerID] = point.OwnerID
	metadata[metaAction] = string(point.Action)
	metadata[metaPriority] = strconv.Itoa(int(point.Priority))

	// chromem normalizes the vector in place
	vector := append([]float32(nil), point.Vector...)

	err := s.collection.AddDocument(ctx, chromem.Document{
		ID:        id,
		Content:   point.Text,
		Metadata:  metadata,
		Embedding: vector,
	})
	if err != nil {
		return "", fmt.Errorf("adding memory point: %w", err)
	}

	s.logger.Debug("Stored memory point",
		zap.String("id", id),
		zap.String("owner_id", point.OwnerID),
		zap.String("action", string(point.Action)))

	return id, nil
}

// Search returns the owner's closest memory points by cosine similarity
func (s *ChromemStore) Search(ctx context.Context, ownerID string, vector []float32, topK int) ([]core.SimilarityMatch, error) {
	if ownerID == "" {
		return nil, core.ErrOwnerRequired
	}
	if err := checkDimension(vector, s.dimension); err != nil {
		return nil, err
	}

	// Cap k at collection size (chromem requires nResults <= doc count)
	k := topK
	count := s.collection.Count()
	if count == 0 || k <= 0 {
		return nil, nil
	}
	if k > count {
		k = count
	}

	query := append([]float32(nil), vector...)
	results, err := s.collection.QueryEmbedding(ctx, query, k, map[string]string{metaOwnerID: ownerID}, nil)
	if err != nil {
		return nil, fmt.Errorf("querying collection %s: %w", DefaultCollection, err)
	}

	matches := make([]core.SimilarityMatch, 0, len(results))
	for _, r := range results {
		priority, _ := strconv.Atoi(r.Metadata[metaPriority])
		matches = append(matches, core.SimilarityMatch{
			Score:    float64(r.Similarity),
			Action:   core.ParseAction(r.Metadata[metaAction]),
			Priority: core.ClampPriority(priority),
			Text:     r.Content,
		})
	}
	return matches, nil
}

// Count returns the number of stored points across all owners
func (s *ChromemStore) Count() int {
	return s.collection.Count()
}

func checkDimension(vector []float32, dimension int) error {
	if len(vector) == 0 {
		return errors.New("empty vector")
	}
	if dimension > 0 && len(vector) != dimension {
		return fmt.Errorf("vector dimension mismatch: expected %d, got %d", dimension, len(vector))
	}
	return nil
}
