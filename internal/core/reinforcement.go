package core

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"
)

// Memory point sources, stored in MemoryPoint.Metadata["source"]
const (
	MemorySourceFeedback = "user_feedback"
	MemorySourceDecision = "pipeline_decision"
)

// ReinforcementService is the memory-augmented layer on top of the classifier.
// It never retrains a model: past human corrections stored as vectors bias
// future decisions through similarity.
type ReinforcementService struct {
	memory  MemoryStore
	scorer  *Scorer
	logger  *zap.Logger
	timeout time.Duration
}

// NewReinforcementService creates a new reinforcement service
func NewReinforcementService(memory MemoryStore, scorer *Scorer, logger *zap.Logger, timeout time.Duration) *ReinforcementService {
	return &ReinforcementService{
		memory:  memory,
		scorer:  scorer,
		logger:  logger,
		timeout: timeout,
	}
}

// Scorer returns the underlying scorer
func (r *ReinforcementService) Scorer() *Scorer {
	return r.scorer
}

// FindSimilar returns the owner's most similar past decisions, best first.
// Any store failure yields an empty result.
func (r *ReinforcementService) FindSimilar(ctx context.Context, ownerID string, vector []float32) []SimilarityMatch {
	if len(vector) == 0 {
		return nil
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	topK := r.scorer.Config().TopK
	matches, err := r.memory.Search(ctx, ownerID, vector, topK)
	if err != nil {
		r.logger.Warn("Memory search failed, scoring without memory",
			zap.String("owner_id", ownerID),
			zap.Error(err))
		return nil
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches
}

// EnhanceDecision scores a classification against the owner's memory.
// A nil vector means embedding failed and the memory signals take their defaults.
func (r *ReinforcementService) EnhanceDecision(ctx context.Context, ownerID string, llm ClassificationResult, vector []float32) ScoredDecision {
	matches := r.FindSimilar(ctx, ownerID, vector)
	decision := r.scorer.Score(llm, matches)

	if decision.MemoryInfluenced {
		r.logger.Debug("Decision influenced by memory",
			zap.String("owner_id", ownerID),
			zap.Float64("vector_similarity", decision.VectorSimilarity),
			zap.String("llm_action", string(llm.Action)),
			zap.String("action", string(decision.Action)))
	}

	return decision
}

// StoreFeedbackMemory stores a human correction as a new memory point
func (r *ReinforcementService) StoreFeedbackMemory(
	ctx context.Context,
	ownerID string,
	text string,
	vector []float32,
	action Action,
	priority Priority,
) (string, error) {
	return r.store(ctx, ownerID, text, vector, action, priority, MemorySourceFeedback)
}

// StoreDecisionMemory stores an automatic pipeline decision as a memory point
func (r *ReinforcementService) StoreDecisionMemory(
	ctx context.Context,
	ownerID string,
	text string,
	vector []float32,
	action Action,
	priority Priority,
) (string, error) {
	return r.store(ctx, ownerID, text, vector, action, priority, MemorySourceDecision)
}

func (r *ReinforcementService) store(
	ctx context.Context,
	ownerID string,
	text string,
	vector []float32,
	action Action,
	priority Priority,
	source string,
) (string, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	return r.memory.Upsert(ctx, &MemoryPoint{
		OwnerID:  ownerID,
		Vector:   vector,
		Action:   action,
		Priority: priority,
		Text:     text,
		Metadata: map[string]string{"source": source},
	})
}
