package core

import (
	"context"
	"time"
)

// LLMClient defines the interface for interacting with LLM services
type LLMClient interface {
	// Complete sends a system and user prompt and returns the raw model text
	Complete(ctx context.Context, system, prompt string) (string, error)

	// ModelName returns the identifier of the model in use
	ModelName() string
}

// Embedder turns free text into a fixed-length vector
type Embedder interface {
	// Embed returns the embedding of text
	Embed(ctx context.Context, text string) ([]float32, error)
}

// MemoryStore persists decisions and answers owner-scoped similarity queries
type MemoryStore interface {
	// Upsert stores a point and returns its id
	Upsert(ctx context.Context, point *MemoryPoint) (string, error)

	// Search returns the topK most similar points of ownerID, best first
	Search(ctx context.Context, ownerID string, vector []float32, topK int) ([]SimilarityMatch, error)
}

// RecordRepository persists email and feedback records
type RecordRepository interface {
	// RecentEmailIDs returns the external ids processed for ownerID since the given time
	RecentEmailIDs(ctx context.Context, ownerID string, since time.Time) (map[string]struct{}, error)

	// CreateEmailRecord inserts a record and sets its ID
	CreateEmailRecord(ctx context.Context, record *EmailRecord) error

	// GetEmailRecord loads a record scoped by owner, ErrRecordNotFound if missing
	GetEmailRecord(ctx context.Context, ownerID string, id int64) (*EmailRecord, error)

	// ApplyFeedback inserts the feedback and relabels its email record atomically
	ApplyFeedback(ctx context.Context, feedback *FeedbackRecord) error

	// ListForReview returns needs_review records since the given time, newest first
	ListForReview(ctx context.Context, ownerID string, since time.Time, limit int) ([]*EmailRecord, error)

	// Stats aggregates the records of ownerID since the given time
	Stats(ctx context.Context, ownerID string, since time.Time) (*Stats, error)

	// PurgeBefore deletes records processed before cutoff
	PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Mailbox is the external mail system of a single owner
type Mailbox interface {
	// FetchRecent returns up to max recent inbox messages
	FetchRecent(ctx context.Context, max int) ([]Email, error)

	// Trash moves a message to the trash
	Trash(ctx context.Context, emailID string) error
}

// MailboxProvider opens the mailbox of an owner
type MailboxProvider interface {
	Mailbox(ctx context.Context, ownerID string) (Mailbox, error)
}
