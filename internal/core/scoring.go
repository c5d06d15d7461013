package core

import (
	"fmt"
	"math"
)

// ScoringConfig holds the weights and thresholds of the reinforcement scorer
type ScoringConfig struct {
	WeightLLM                float64
	WeightVector             float64
	WeightRule               float64
	SimilarityBoostThreshold float64
	SimilarityBonus          float64
	AutoExecuteThreshold     float64
	MemoryInfluenceThreshold float64
	TopK                     int
}

// DefaultScoringConfig returns the stock weights and thresholds
func DefaultScoringConfig() ScoringConfig {
	return ScoringConfig{
		WeightLLM:                0.6,
		WeightVector:             0.3,
		WeightRule:               0.1,
		SimilarityBoostThreshold: 0.9,
		SimilarityBonus:          0.1,
		AutoExecuteThreshold:     0.85,
		MemoryInfluenceThreshold: 0.7,
		TopK:                     5,
	}
}

// Validate checks that the weights sum to 1.0 and thresholds are in range
func (c ScoringConfig) Validate() error {
	for name, w := range map[string]float64{
		"llm weight":    c.WeightLLM,
		"vector weight": c.WeightVector,
		"rule weight":   c.WeightRule,
	} {
		if w < 0 || w > 1 {
			return fmt.Errorf("%s must be in [0,1], got %v", name, w)
		}
	}
	if sum := c.WeightLLM + c.WeightVector + c.WeightRule; math.Abs(sum-1.0) > 1e-6 {
		return fmt.Errorf("scoring weights must sum to 1.0, got %v", sum)
	}
	if c.AutoExecuteThreshold < 0 || c.AutoExecuteThreshold > 1 {
		return fmt.Errorf("auto execute threshold must be in [0,1], got %v", c.AutoExecuteThreshold)
	}
	if c.SimilarityBonus < 0 {
		return fmt.Errorf("similarity bonus must not be negative, got %v", c.SimilarityBonus)
	}
	if c.TopK <= 0 {
		return fmt.Errorf("top k must be positive, got %d", c.TopK)
	}
	return nil
}

// Scorer blends classifier confidence with memory signals
type Scorer struct {
	cfg ScoringConfig
}

// NewScorer creates a scorer after validating its configuration
func NewScorer(cfg ScoringConfig) (*Scorer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scoring config: %w", err)
	}
	return &Scorer{cfg: cfg}, nil
}

// Config returns the scorer configuration
func (s *Scorer) Config() ScoringConfig {
	return s.cfg
}

// FinalScore computes the clamped weighted blend of the three signals
func (s *Scorer) FinalScore(llmConfidence, vectorSimilarity, ruleWeight float64) float64 {
	score := llmConfidence*s.cfg.WeightLLM +
		vectorSimilarity*s.cfg.WeightVector +
		ruleWeight*s.cfg.WeightRule
	return round4(clamp(score, 0.0, 1.0))
}

// RuleWeight is the share of matches agreeing with the most frequent action.
// With no matches it is the neutral prior 0.5.
func RuleWeight(matches []SimilarityMatch) float64 {
	if len(matches) == 0 {
		return 0.5
	}

	counts := make(map[Action]int, 3)
	best := 0
	for _, m := range matches {
		counts[m.Action]++
		if counts[m.Action] > best {
			best = counts[m.Action]
		}
	}

	return float64(best) / float64(len(matches))
}

// ShouldAutoExecute reports whether a score clears the shared auto-execute threshold
func (s *Scorer) ShouldAutoExecute(finalScore float64) bool {
	return finalScore >= s.cfg.AutoExecuteThreshold
}

// Score combines a classification with the similar memories found for the email.
// matches must be ordered best first.
func (s *Scorer) Score(llm ClassificationResult, matches []SimilarityMatch) ScoredDecision {
	vectorSimilarity := 0.0
	var best *SimilarityMatch
	if len(matches) > 0 {
		best = &matches[0]
		vectorSimilarity = clamp(best.Score, 0.0, 1.0)
	}

	ruleWeight := RuleWeight(matches)
	finalScore := s.FinalScore(llm.Confidence, vectorSimilarity, ruleWeight)

	action := llm.Action
	if best != nil && vectorSimilarity > s.cfg.SimilarityBoostThreshold {
		action = best.Action
		finalScore = round4(math.Min(1.0, finalScore+s.cfg.SimilarityBonus))
	}

	return ScoredDecision{
		Action:           action,
		Priority:         llm.Priority,
		LLMConfidence:    llm.Confidence,
		VectorSimilarity: vectorSimilarity,
		RuleWeight:       ruleWeight,
		FinalScore:       finalScore,
		AutoExecute:      s.ShouldAutoExecute(finalScore),
		MemoryInfluenced: vectorSimilarity > s.cfg.MemoryInfluenceThreshold,
		Reasoning:        llm.Reasoning,
	}
}

// clamp maps NaN to lo
func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
