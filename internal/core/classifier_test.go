package core

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/mikey/email-housekeeper/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubLLM struct {
	response string
	err      error
	prompts  []string
}

func (s *stubLLM) Complete(ctx context.Context, system, prompt string) (string, error) {
	s.prompts = append(s.prompts, prompt)
	return s.response, s.err
}

func (s *stubLLM) ModelName() string { return "stub" }

func TestParseClassification(t *testing.T) {
	tests := []struct {
		name     string
		response string
		expected ClassificationResult
	}{
		{
			name:     "well formed",
			response: `{"priority": 2, "action": "keep", "confidence": 0.8, "reasoning": "from the boss"}`,
			expected: ClassificationResult{Priority: 2, Action: ActionKeep, Confidence: 0.8, Reasoning: "from the boss"},
		},
		{
			name:     "out of range values clamped",
			response: `{"priority": 9, "action": "delete", "confidence": 1.7, "reasoning": "spam"}`,
			expected: ClassificationResult{Priority: 5, Action: ActionDelete, Confidence: 1.0, Reasoning: "spam"},
		},
		{
			name:     "negative values clamped",
			response: `{"priority": -1, "action": "keep", "confidence": -0.2, "reasoning": "x"}`,
			expected: ClassificationResult{Priority: 1, Action: ActionKeep, Confidence: 0.0, Reasoning: "x"},
		},
		{
			name:     "huge priority clamps to spam",
			response: `{"priority": 1e300, "action": "delete", "confidence": 0.9, "reasoning": "x"}`,
			expected: ClassificationResult{Priority: 5, Action: ActionDelete, Confidence: 0.9, Reasoning: "x"},
		},
		{
			name:     "fractional priority truncated",
			response: `{"priority": 4.7, "action": "keep", "confidence": 0.4, "reasoning": "x"}`,
			expected: ClassificationResult{Priority: 4, Action: ActionKeep, Confidence: 0.4, Reasoning: "x"},
		},
		{
			name:     "unknown action coerced",
			response: `{"priority": 3, "action": "archive", "confidence": 0.6, "reasoning": "x"}`,
			expected: ClassificationResult{Priority: 3, Action: ActionNeedsReview, Confidence: 0.6, Reasoning: "x"},
		},
		{
			name:     "missing fields use defaults",
			response: `{}`,
			expected: ClassificationResult{Priority: 3, Action: ActionNeedsReview, Confidence: 0.5, Reasoning: "No reasoning provided"},
		},
		{
			name:     "numeric strings accepted",
			response: `{"priority": "4", "action": "DELETE", "confidence": "0.9"}`,
			expected: ClassificationResult{Priority: 4, Action: ActionDelete, Confidence: 0.9, Reasoning: "No reasoning provided"},
		},
		{
			name:     "json wrapped in prose",
			response: "Sure! Here it is:\n```json\n{\"priority\": 5, \"action\": \"delete\", \"confidence\": 0.99, \"reasoning\": \"promo\"}\n```",
			expected: ClassificationResult{Priority: 5, Action: ActionDelete, Confidence: 0.99, Reasoning: "promo"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := ParseClassification(tt.response)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestParseClassificationErrors(t *testing.T) {
	for _, response := range []string{
		"",
		"not json at all",
		`{"priority": "high"}`,
		`{"priority": 2,`,
		`{"priority": 2, "action": "keep", "confidence": "NaN"}`,
		`{"priority": 2, "action": "keep", "confidence": "+Inf"}`,
		`{"priority": "-Inf", "action": "keep", "confidence": 0.5}`,
	} {
		_, err := ParseClassification(response)
		assert.Error(t, err, "response %q", response)
	}
}

func TestClassifyNonFiniteConfidenceFallsBack(t *testing.T) {
	llm := &stubLLM{response: `{"priority": 5, "action": "delete", "confidence": "NaN", "reasoning": "x"}`}
	classifier := NewClassifier(llm, zap.NewNop(), nil, 0, 0)

	result := classifier.Classify(context.Background(), "Hello", "a@b.c", "body")
	assert.Equal(t, ActionNeedsReview, result.Action)
	assert.Zero(t, result.Confidence)

	scorer, err := NewScorer(DefaultScoringConfig())
	require.NoError(t, err)
	decision := scorer.Score(result, nil)
	assert.GreaterOrEqual(t, decision.FinalScore, 0.0)
	assert.LessOrEqual(t, decision.FinalScore, 1.0)
}

func TestClassifyFallsBackOnFailure(t *testing.T) {
	llm := &stubLLM{err: errors.New("rate limited")}
	classifier := NewClassifier(llm, zap.NewNop(), utils.NewTextProcessor(nil), 2000, 0)

	result := classifier.Classify(context.Background(), "Hello", "a@b.c", "body")

	assert.Equal(t, PriorityMedium, result.Priority)
	assert.Equal(t, ActionNeedsReview, result.Action)
	assert.Zero(t, result.Confidence)
	assert.Equal(t, "Classification failed: rate limited", result.Reasoning)
}

func TestClassifyFallsBackOnGarbage(t *testing.T) {
	classifier := NewClassifier(&stubLLM{response: "I cannot help with that"}, zap.NewNop(), nil, 0, 0)

	result := classifier.Classify(context.Background(), "Hello", "a@b.c", "body")

	assert.Equal(t, ActionNeedsReview, result.Action)
	assert.Zero(t, result.Confidence)
	assert.True(t, strings.HasPrefix(result.Reasoning, "Classification failed:"))
}

func TestClassifyTruncatesSnippet(t *testing.T) {
	llm := &stubLLM{response: `{"priority": 4, "action": "keep", "confidence": 0.7, "reasoning": "ok"}`}
	classifier := NewClassifier(llm, zap.NewNop(), utils.NewTextProcessor(nil), 10, 0)

	result := classifier.Classify(context.Background(), "", "", strings.Repeat("a", 50))

	assert.Equal(t, ActionKeep, result.Action)
	require.Len(t, llm.prompts, 1)
	assert.Contains(t, llm.prompts[0], "Subject: No Subject")
	assert.Contains(t, llm.prompts[0], "From: Unknown")
	assert.Contains(t, llm.prompts[0], "Preview: aaaaaaaaaa [...]")
}

func TestBuildClassificationPromptDefaults(t *testing.T) {
	prompt := BuildClassificationPrompt("", "", "")
	assert.Contains(t, prompt, "Preview: No preview available")
}
