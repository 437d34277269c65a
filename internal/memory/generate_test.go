package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tidemark-ai/recollect/internal/db"
)

func newGenerator(store *db.Store, provider *fakeProvider) *Generator {
	builder := NewBuilder(store, nil)
	ingestor := NewIngestor(store, nil, nil, nil)
	return NewGenerator(store, builder, ingestor, provider, "fake-model")
}

func TestGenerateRecordsRunAndReply(t *testing.T) {
	store := newStore(t)
	provider := &fakeProvider{reply: "the answer is 42"}
	gen := newGenerator(store, provider)
	ctx := context.Background()

	_, err := store.GetOrCreateThread(ctx, "dm:c", nil)
	require.NoError(t, err)
	seedItem(t, store, db.Item{
		ThreadID: "dm:c", SourceID: "q1", Type: db.ItemTypeUser, Role: "user",
		AuthorID: "u1", AuthorName: "alice", Content: "what is the answer?",
		CreatedAt: time.Now().Add(-time.Minute),
	})

	res, err := gen.Generate(ctx, "dm:c", "q1", "Reply to the user.", DefaultPolicy())
	require.NoError(t, err)
	assert.Equal(t, "the answer is 42", res.Reply)
	assert.False(t, res.Skipped)
	require.NotEmpty(t, res.RunID)

	// Trigger line appears in the prompt the provider saw
	assert.Contains(t, provider.prompt(), "what is the answer?")

	// The reply was recorded as an assistant item tied to the run
	items, err := store.ItemsChronological(ctx, "dm:c")
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, db.ItemTypeAssistant, items[1].Type)
	assert.Equal(t, res.RunID, items[1].Metadata.RunID)
}

func TestGenerateIdempotentPerTrigger(t *testing.T) {
	store := newStore(t)
	provider := &fakeProvider{reply: "hello"}
	gen := newGenerator(store, provider)
	ctx := context.Background()

	_, err := store.GetOrCreateThread(ctx, "dm:c", nil)
	require.NoError(t, err)
	seedItem(t, store, db.Item{
		ThreadID: "dm:c", SourceID: "q1", Type: db.ItemTypeUser, Role: "user",
		AuthorID: "u1", Content: "hi", CreatedAt: time.Now().Add(-time.Minute),
	})

	first, err := gen.Generate(ctx, "dm:c", "q1", "reply", DefaultPolicy())
	require.NoError(t, err)
	require.False(t, first.Skipped)

	// Redelivered trigger: the succeeded run short-circuits generation
	second, err := gen.Generate(ctx, "dm:c", "q1", "reply", DefaultPolicy())
	require.NoError(t, err)
	assert.True(t, second.Skipped)
	assert.Equal(t, first.RunID, second.RunID)
	assert.Equal(t, 1, provider.callCount())
}

func TestGenerateFailedRunAllowsRetry(t *testing.T) {
	store := newStore(t)
	provider := &fakeProvider{err: errors.New("rate limited")}
	gen := newGenerator(store, provider)
	ctx := context.Background()

	_, err := store.GetOrCreateThread(ctx, "dm:c", nil)
	require.NoError(t, err)
	seedItem(t, store, db.Item{
		ThreadID: "dm:c", SourceID: "q1", Type: db.ItemTypeUser, Role: "user",
		AuthorID: "u1", Content: "hi", CreatedAt: time.Now().Add(-time.Minute),
	})

	_, err = gen.Generate(ctx, "dm:c", "q1", "reply", DefaultPolicy())
	require.Error(t, err)

	// A failed run is not a guard: retries for the trigger still generate
	provider.mu.Lock()
	provider.err = nil
	provider.reply = "recovered"
	provider.mu.Unlock()

	res, err := gen.Generate(ctx, "dm:c", "q1", "reply", DefaultPolicy())
	require.NoError(t, err)
	assert.False(t, res.Skipped)
	assert.Equal(t, "recovered", res.Reply)
	assert.Equal(t, 2, provider.callCount())
}

func TestGenerateWithoutProviderFailsRun(t *testing.T) {
	store := newStore(t)
	builder := NewBuilder(store, nil)
	gen := NewGenerator(store, builder, nil, nil, "")
	ctx := context.Background()

	_, err := store.GetOrCreateThread(ctx, "dm:c", nil)
	require.NoError(t, err)

	_, err = gen.Generate(ctx, "dm:c", "", "reply", DefaultPolicy())
	require.Error(t, err)
}

func TestGenerateDegradedWithoutStore(t *testing.T) {
	gen := NewGenerator(nil, NewBuilder(nil, nil), nil, &fakeProvider{reply: "x"}, "m")

	res, err := gen.Generate(context.Background(), "dm:c", "q1", "reply", DefaultPolicy())
	require.NoError(t, err)
	assert.Empty(t, res.Reply)
}
