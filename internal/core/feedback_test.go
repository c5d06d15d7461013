package core_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mikey/email-housekeeper/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedRecord(t *testing.T, h *harness, owner string, action core.Action) *core.EmailRecord {
	t.Helper()
	record := &core.EmailRecord{
		OwnerID:     owner,
		EmailID:     "gmail-123",
		Subject:     "Weekly digest",
		Sender:      "digest@news.example",
		Snippet:     "Top stories",
		Priority:    core.PriorityLow,
		Action:      action,
		FinalScore:  0.6,
		ProcessedAt: time.Now().UTC(),
	}
	require.NoError(t, h.records.CreateEmailRecord(context.Background(), record))
	return record
}

func TestSubmitFeedbackOverride(t *testing.T) {
	h := newHarness(t)
	record := seedRecord(t, h, "owner-a", core.ActionKeep)

	result, err := h.service.SubmitFeedback(context.Background(), "owner-a", record.ID, core.ActionDelete)
	require.NoError(t, err)

	assert.True(t, result.IsOverride)
	assert.Equal(t, core.ActionKeep, result.OriginalAction)
	assert.Equal(t, core.ActionDelete, result.UserAction)
	assert.Equal(t, "Feedback recorded.", result.Message)
	assert.Empty(t, result.Warnings)
	assert.NotZero(t, result.FeedbackID)

	loaded, err := h.records.GetEmailRecord(context.Background(), "owner-a", record.ID)
	require.NoError(t, err)
	assert.Equal(t, core.ActionDelete, loaded.Action)

	feedback := h.records.Feedback(record.ID)
	require.Len(t, feedback, 1)
	assert.True(t, feedback[0].IsOverride)

	require.Len(t, h.memory.upserts, 1)
	point := h.memory.upserts[0]
	assert.Equal(t, "owner-a", point.OwnerID)
	assert.Equal(t, core.ActionDelete, point.Action)
	assert.Equal(t, core.PriorityLow, point.Priority)
	assert.Equal(t, "Weekly digest digest@news.example Top stories", point.Text)
	assert.Equal(t, core.MemorySourceFeedback, point.Metadata["source"])

	assert.Equal(t, []string{"gmail-123"}, h.mailbox.trashed)
}

func TestSubmitFeedbackConfirmation(t *testing.T) {
	h := newHarness(t)
	record := seedRecord(t, h, "owner-a", core.ActionKeep)

	result, err := h.service.SubmitFeedback(context.Background(), "owner-a", record.ID, core.ActionKeep)
	require.NoError(t, err)

	assert.False(t, result.IsOverride)
	assert.Len(t, h.memory.upserts, 1)
	assert.Empty(t, h.mailbox.trashed)
}

func TestSubmitFeedbackFromReview(t *testing.T) {
	h := newHarness(t)
	record := seedRecord(t, h, "owner-a", core.ActionNeedsReview)

	result, err := h.service.SubmitFeedback(context.Background(), "owner-a", record.ID, core.ActionKeep)
	require.NoError(t, err)
	assert.True(t, result.IsOverride)

	items, err := h.service.ListForReview(context.Background(), "owner-a")
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestSubmitFeedbackSoftFailures(t *testing.T) {
	h := newHarness(t)
	h.memory.upsertErr = errors.New("vector db down")
	h.mailbox.trashErr = errors.New("gmail 503")
	record := seedRecord(t, h, "owner-a", core.ActionKeep)

	result, err := h.service.SubmitFeedback(context.Background(), "owner-a", record.ID, core.ActionDelete)
	require.NoError(t, err)

	require.Len(t, result.Warnings, 2)
	assert.Contains(t, result.Message, "Feedback saved, but")
	assert.Contains(t, result.Message, "memory update failed")
	assert.Contains(t, result.Message, "mailbox deletion failed")

	// The relabel is committed regardless
	loaded, err := h.records.GetEmailRecord(context.Background(), "owner-a", record.ID)
	require.NoError(t, err)
	assert.Equal(t, core.ActionDelete, loaded.Action)
	assert.Len(t, h.records.Feedback(record.ID), 1)
}

func TestSubmitFeedbackEmbeddingFailure(t *testing.T) {
	h := newHarness(t)
	h.embedder.err = errors.New("quota exceeded")
	record := seedRecord(t, h, "owner-a", core.ActionDelete)

	result, err := h.service.SubmitFeedback(context.Background(), "owner-a", record.ID, core.ActionKeep)
	require.NoError(t, err)

	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "embedding failed")
	assert.Empty(t, h.memory.upserts)
}

func TestSubmitFeedbackNotFound(t *testing.T) {
	h := newHarness(t)
	record := seedRecord(t, h, "owner-a", core.ActionKeep)

	_, err := h.service.SubmitFeedback(context.Background(), "owner-b", record.ID, core.ActionDelete)
	assert.ErrorIs(t, err, core.ErrRecordNotFound)

	_, err = h.service.SubmitFeedback(context.Background(), "owner-a", record.ID+42, core.ActionDelete)
	assert.ErrorIs(t, err, core.ErrRecordNotFound)

	assert.Empty(t, h.records.Feedback(record.ID))
	assert.Empty(t, h.memory.upserts)
}

func TestSubmitFeedbackInvalidAction(t *testing.T) {
	h := newHarness(t)
	record := seedRecord(t, h, "owner-a", core.ActionKeep)

	_, err := h.service.SubmitFeedback(context.Background(), "owner-a", record.ID, core.ActionNeedsReview)
	assert.ErrorIs(t, err, core.ErrInvalidAction)

	_, err = h.service.SubmitFeedback(context.Background(), "owner-a", record.ID, core.Action("archive"))
	assert.ErrorIs(t, err, core.ErrInvalidAction)
}
