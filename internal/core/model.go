package core

import (
	"strings"
	"time"
)

// Action is the housekeeping decision taken for an email
type Action string

const (
	ActionKeep        Action = "keep"
	ActionDelete      Action = "delete"
	ActionNeedsReview Action = "needs_review"
)

// ParseAction converts a raw string into an Action.
// Unknown values are coerced to ActionNeedsReview.
func ParseAction(s string) Action {
	switch Action(strings.ToLower(strings.TrimSpace(s))) {
	case ActionKeep:
		return ActionKeep
	case ActionDelete:
		return ActionDelete
	default:
		return ActionNeedsReview
	}
}

// Priority ranks an email from 1 (critical) to 5 (spam)
type Priority int

const (
	PriorityCritical Priority = 1
	PriorityHigh     Priority = 2
	PriorityMedium   Priority = 3
	PriorityLow      Priority = 4
	PrioritySpam     Priority = 5
)

// ClampPriority forces p into the [1,5] range
func ClampPriority(p int) Priority {
	if p < int(PriorityCritical) {
		return PriorityCritical
	}
	if p > int(PrioritySpam) {
		return PrioritySpam
	}
	return Priority(p)
}

// Label returns the human readable name of the priority
func (p Priority) Label() string {
	switch p {
	case PriorityCritical:
		return "Critical"
	case PriorityHigh:
		return "High"
	case PriorityMedium:
		return "Medium"
	case PriorityLow:
		return "Low"
	case PrioritySpam:
		return "Spam"
	default:
		return "Unknown"
	}
}

// Email is a candidate message fetched from a mailbox
type Email struct {
	EmailID string
	Subject string
	Sender  string
	Snippet string
}

// Text returns the text used for embeddings: subject, sender and snippet, space-joined
func (e *Email) Text() string {
	return e.Subject + " " + e.Sender + " " + e.Snippet
}

// ClassificationResult is the sanitized output of the classifier
type ClassificationResult struct {
	Priority   Priority
	Action     Action
	Confidence float64
	Reasoning  string
}

// MemoryPoint is one persisted decision used for similarity lookups
type MemoryPoint struct {
	ID       string
	OwnerID  string
	Vector   []float32
	Action   Action
	Priority Priority
	Text     string
	Metadata map[string]string
}

// SimilarityMatch is a single memory search hit
type SimilarityMatch struct {
	Score    float64
	Action   Action
	Priority Priority
	Text     string
}

// ScoredDecision is the output of the reinforcement scorer for one email
type ScoredDecision struct {
	Action           Action
	Priority         Priority
	LLMConfidence    float64
	VectorSimilarity float64
	RuleWeight       float64
	FinalScore       float64
	AutoExecute      bool
	MemoryInfluenced bool
	Reasoning        string
}

// EmailRecord is the persisted outcome of processing one email
type EmailRecord struct {
	ID               int64
	OwnerID          string
	EmailID          string
	Subject          string
	Sender           string
	Snippet          string
	Priority         Priority
	Action           Action
	LLMConfidence    float64
	VectorSimilarity float64
	RuleWeight       float64
	FinalScore       float64
	AutoExecuted     bool
	ProcessedAt      time.Time
}

// Text rebuilds the embedding text of the stored email
func (r *EmailRecord) Text() string {
	return r.Subject + " " + r.Sender + " " + r.Snippet
}

// FeedbackRecord is one human correction of a stored decision
type FeedbackRecord struct {
	ID             int64
	OwnerID        string
	EmailRecordID  int64
	OriginalAction Action
	UserAction     Action
	IsOverride     bool
	CreatedAt      time.Time
}

// BatchStats aggregates the outcome of a single batch run
type BatchStats struct {
	TotalProcessed    int              `json:"total_processed"`
	Deleted           int              `json:"deleted"`
	Kept              int              `json:"kept"`
	NeedsReview       int              `json:"needs_review"`
	AutoExecuted      int              `json:"auto_executed"`
	PriorityBreakdown map[Priority]int `json:"priority_breakdown"`
}

// NewBatchStats returns zeroed counters with every priority level present
func NewBatchStats() *BatchStats {
	return &BatchStats{
		PriorityBreakdown: map[Priority]int{1: 0, 2: 0, 3: 0, 4: 0, 5: 0},
	}
}

// Add counts one processed email
func (s *BatchStats) Add(action Action, priority Priority, autoExecuted bool) {
	s.TotalProcessed++
	s.PriorityBreakdown[priority]++

	switch action {
	case ActionDelete:
		s.Deleted++
	case ActionKeep:
		s.Kept++
	default:
		s.NeedsReview++
	}

	if autoExecuted {
		s.AutoExecuted++
	}
}

// Stats summarizes the processing history of an owner over a time window
type Stats struct {
	TotalProcessed    int              `json:"total_processed_24h"`
	DeletedCount      int              `json:"deleted_count"`
	KeptCount         int              `json:"kept_count"`
	NeedsReviewCount  int              `json:"needs_review_count"`
	AutoExecutedCount int              `json:"auto_executed_count"`
	PriorityBreakdown map[Priority]int `json:"priority_breakdown"`
	AvgConfidence     float64          `json:"avg_confidence"`
}

// ReviewItem is a stored email awaiting a human decision
type ReviewItem struct {
	ID              int64     `json:"id"`
	EmailID         string    `json:"email_id"`
	Subject         string    `json:"subject"`
	Sender          string    `json:"sender"`
	Snippet         string    `json:"snippet"`
	Priority        Priority  `json:"priority"`
	SuggestedAction Action    `json:"suggested_action"`
	FinalScore      float64   `json:"final_score"`
	ProcessedAt     time.Time `json:"processed_at"`
}

// FeedbackResult is returned after a feedback submission
type FeedbackResult struct {
	FeedbackID     int64    `json:"feedback_id"`
	EmailRecordID  int64    `json:"email_record_id"`
	OriginalAction Action   `json:"original_action"`
	UserAction     Action   `json:"user_action"`
	IsOverride     bool     `json:"is_override"`
	Message        string   `json:"message"`
	Warnings       []string `json:"warnings,omitempty"`
}
