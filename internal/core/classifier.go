package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/mikey/email-housekeeper/internal/utils"
	"go.uber.org/zap"
)

const classificationSystemPrompt = "You are a precise email classifier. Always respond in valid JSON."

const classificationPromptFormat = `You are an email classification assistant. Analyze the following email and provide:

1. priority (1-5): 1=Critical, 2=High, 3=Medium, 4=Low, 5=Spam
2. action: "keep", "delete", or "needs_review"
3. confidence (0.0-1.0): How confident you are in your classification
4. reasoning: Brief explanation

Email:
Subject: %s
From: %s
Preview: %s

Respond ONLY in valid JSON:
{"priority": <int>, "action": "<string>", "confidence": <float>, "reasoning": "<string>"}`

var errNoJSONObject = errors.New("no JSON object found in model response")

// Classifier turns a raw email into a sanitized ClassificationResult.
// It never fails: every error becomes the safe default result.
type Classifier struct {
	llm            LLMClient
	logger         *zap.Logger
	textProcessor  *utils.TextProcessor
	maxSnippetSize int
	timeout        time.Duration
}

// NewClassifier creates a new classifier on top of an LLM client
func NewClassifier(
	llm LLMClient,
	logger *zap.Logger,
	textProcessor *utils.TextProcessor,
	maxSnippetSize int,
	timeout time.Duration,
) *Classifier {
	return &Classifier{
		llm:            llm,
		logger:         logger,
		textProcessor:  textProcessor,
		maxSnippetSize: maxSnippetSize,
		timeout:        timeout,
	}
}

// BuildClassificationPrompt renders the user prompt for one email
func BuildClassificationPrompt(subject, sender, snippet string) string {
	if subject == "" {
		subject = "No Subject"
	}
	if sender == "" {
		sender = "Unknown"
	}
	if snippet == "" {
		snippet = "No preview available"
	}
	return fmt.Sprintf(classificationPromptFormat, subject, sender, snippet)
}

// Classify classifies a single email
func (c *Classifier) Classify(ctx context.Context, subject, sender, snippet string) ClassificationResult {
	if c.textProcessor != nil {
		snippet = c.textProcessor.ProcessText(snippet, c.maxSnippetSize)
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	response, err := c.llm.Complete(ctx, classificationSystemPrompt, BuildClassificationPrompt(subject, sender, snippet))
	if err != nil {
		c.logger.Warn("Classification request failed",
			zap.String("model", c.llm.ModelName()),
			zap.Error(err))
		return FallbackClassification(err)
	}

	result, err := ParseClassification(response)
	if err != nil {
		c.logger.Warn("Failed to parse classification response",
			zap.String("model", c.llm.ModelName()),
			zap.String("response", response),
			zap.Error(err))
		return FallbackClassification(err)
	}

	return result
}

// FallbackClassification is the safe default used whenever classification fails
func FallbackClassification(err error) ClassificationResult {
	return ClassificationResult{
		Priority:   PriorityMedium,
		Action:     ActionNeedsReview,
		Confidence: 0.0,
		Reasoning:  fmt.Sprintf("Classification failed: %v", err),
	}
}

// ParseClassification parses and sanitizes a model response.
// Out of range values are clamped and unknown actions become needs_review.
func ParseClassification(response string) (ClassificationResult, error) {
	raw, err := decodeJSONObject(response)
	if err != nil {
		return ClassificationResult{}, err
	}

	priority := 3.0
	if v, ok := raw["priority"]; ok && v != nil {
		if priority, err = toFloat(v); err != nil {
			return ClassificationResult{}, fmt.Errorf("invalid priority: %w", err)
		}
	}

	confidence := 0.5
	if v, ok := raw["confidence"]; ok && v != nil {
		if confidence, err = toFloat(v); err != nil {
			return ClassificationResult{}, fmt.Errorf("invalid confidence: %w", err)
		}
	}

	action := ActionNeedsReview
	if s, ok := raw["action"].(string); ok {
		action = ParseAction(s)
	}

	reasoning := "No reasoning provided"
	if v, ok := raw["reasoning"]; ok && v != nil {
		if s, ok := v.(string); ok {
			reasoning = s
		} else {
			reasoning = fmt.Sprint(v)
		}
	}

	return ClassificationResult{
		Priority:   Priority(clamp(math.Trunc(priority), float64(PriorityCritical), float64(PrioritySpam))),
		Action:     action,
		Confidence: clamp(confidence, 0.0, 1.0),
		Reasoning:  reasoning,
	}, nil
}

// decodeJSONObject decodes the response as a JSON object, falling back to
// the outermost {...} span when the model wrapped it in prose
func decodeJSONObject(response string) (map[string]any, error) {
	var raw map[string]any
	if err := json.Unmarshal([]byte(response), &raw); err == nil && raw != nil {
		return raw, nil
	}

	start := strings.Index(response, "{")
	end := strings.LastIndex(response, "}")
	if start < 0 || end <= start {
		return nil, errNoJSONObject
	}

	if err := json.Unmarshal([]byte(response[start:end+1]), &raw); err != nil {
		return nil, fmt.Errorf("failed to parse LLM response as JSON: %w", err)
	}
	if raw == nil {
		return nil, errNoJSONObject
	}
	return raw, nil
}

func toFloat(v any) (float64, error) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, err
		}
		f = parsed
	default:
		return 0, fmt.Errorf("unexpected type %T", v)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("non-finite value %v", v)
	}
	return f, nil
}
