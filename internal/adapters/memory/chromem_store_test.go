package memory

import (
	"context"
	"testing"

	"github.com/mikey/email-housekeeper/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestChromem(t *testing.T) *ChromemStore {
	t.Helper()
	store, err := NewChromemStore("", false, 3, zap.NewNop())
	require.NoError(t, err)
	return store
}

func TestChromemSearchIsOwnerScoped(t *testing.T) {
	ctx := context.Background()
	store := newTestChromem(t)

	_, err := store.Upsert(ctx, &core.MemoryPoint{
		OwnerID: "alice", Vector: []float32{1, 0, 0}, Action: core.ActionDelete, Priority: core.PrioritySpam, Text: "promo",
	})
	require.NoError(t, err)
	_, err = store.Upsert(ctx, &core.MemoryPoint{
		OwnerID: "bob", Vector: []float32{1, 0, 0}, Action: core.ActionKeep, Priority: core.PriorityHigh, Text: "promo",
	})
	require.NoError(t, err)

	matches, err := store.Search(ctx, "alice", []float32{1, 0, 0}, 5)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, core.ActionDelete, matches[0].Action)
	assert.Equal(t, core.PrioritySpam, matches[0].Priority)
	assert.Equal(t, "promo", matches[0].Text)
	assert.InDelta(t, 1.0, matches[0].Score, 1e-5)

	none, err := store.Search(ctx, "carol", []float32{1, 0, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestChromemSearchOrdersBySimilarity(t *testing.T) {
	ctx := context.Background()
	store := newTestChromem(t)

	for _, p := range []struct {
		vector []float32
		action core.Action
	}{
		{[]float32{0, 1, 0}, core.ActionKeep},
		{[]float32{1, 0.1, 0}, core.ActionDelete},
		{[]float32{1, 1, 0}, core.ActionNeedsReview},
	} {
		_, err := store.Upsert(ctx, &core.MemoryPoint{OwnerID: "alice", Vector: p.vector, Action: p.action, Priority: 3, Text: "x"})
		require.NoError(t, err)
	}

	matches, err := store.Search(ctx, "alice", []float32{1, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, core.ActionDelete, matches[0].Action)
	assert.Equal(t, core.ActionNeedsReview, matches[1].Action)
	assert.Greater(t, matches[0].Score, matches[1].Score)
}

func TestChromemEmptyAndInvalid(t *testing.T) {
	ctx := context.Background()
	store := newTestChromem(t)

	matches, err := store.Search(ctx, "alice", []float32{1, 0, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, matches)

	_, err = store.Upsert(ctx, &core.MemoryPoint{OwnerID: "alice", Vector: []float32{1, 0}, Action: core.ActionKeep})
	assert.Error(t, err)

	_, err = store.Search(ctx, "alice", nil, 5)
	assert.Error(t, err)
}

func TestChromemUpsertReplacesByID(t *testing.T) {
	ctx := context.Background()
	store := newTestChromem(t)

	id, err := store.Upsert(ctx, &core.MemoryPoint{OwnerID: "alice", Vector: []float32{1, 0, 0}, Action: core.ActionKeep, Text: "a"})
	require.NoError(t, err)
	_, err = store.Upsert(ctx, &core.MemoryPoint{ID: id, OwnerID: "alice", Vector: []float32{1, 0, 0}, Action: core.ActionDelete, Text: "a"})
	require.NoError(t, err)

	assert.Equal(t, 1, store.Count())
	matches, err := store.Search(ctx, "alice", []float32{1, 0, 0}, 5)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, core.ActionDelete, matches[0].Action)
}

func TestChromemRequiresOwner(t *testing.T) {
	store := newTestChromem(t)

	_, err := store.Upsert(context.Background(), &core.MemoryPoint{Vector: []float32{1, 0, 0}, Action: core.ActionKeep})
	assert.ErrorIs(t, err, core.ErrOwnerRequired)

	_, err = store.Search(context.Background(), "", []float32{1, 0, 0}, 5)
	assert.ErrorIs(t, err, core.ErrOwnerRequired)
}
