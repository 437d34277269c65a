package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tidemark-ai/recollect/internal/config"
	"github.com/tidemark-ai/recollect/internal/db"
	"github.com/tidemark-ai/recollect/internal/db/migrations"
	"github.com/tidemark-ai/recollect/internal/logging"
	"github.com/tidemark-ai/recollect/internal/memory"
	"github.com/tidemark-ai/recollect/internal/retention"
)

func newTestServer(t *testing.T) (*Server, *db.Store) {
	t.Helper()
	migrations.QuietMode = true
	logging.Disable()

	store, err := db.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	cfg := config.DefaultConfig()
	cfg.BotID = "bot-1"

	ingestor := memory.NewIngestor(store, nil, nil, nil)
	builder := memory.NewBuilder(store, nil)
	scheduler := retention.New(store, cfg.Retention)
	return New(cfg, store, ingestor, builder, scheduler), store
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := doJSON(t, srv.http.Handler, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMessageLifecycleOverHTTP(t *testing.T) {
	srv, store := newTestServer(t)
	h := srv.http.Handler

	// Create
	rec := doJSON(t, h, http.MethodPost, "/v1/events/message", map[string]any{
		"source_id":       "m1",
		"conversation_id": "c1",
		"author_id":       "u1",
		"author_name":     "alice",
		"content":         "hello there",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var item db.Item
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &item))
	assert.Equal(t, "dm:c1", item.ThreadID)

	// Redelivery of the same event returns the same item
	rec = doJSON(t, h, http.MethodPost, "/v1/events/message", map[string]any{
		"source_id": "m1", "conversation_id": "c1", "author_id": "u1", "content": "hello there",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var again db.Item
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &again))
	assert.Equal(t, item.ID, again.ID)

	// Edit
	rec = doJSON(t, h, http.MethodPatch, "/v1/events/message/m1", map[string]any{"content": "hello edited"})
	require.Equal(t, http.StatusNoContent, rec.Code)

	// Delete tombstones
	rec = doJSON(t, h, http.MethodDelete, "/v1/events/message/m1", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	stored, err := store.GetItemBySourceID(context.Background(), "m1")
	require.NoError(t, err)
	assert.True(t, stored.Deleted)
}

func TestMessageCreateValidation(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.http.Handler

	rec := doJSON(t, h, http.MethodPost, "/v1/events/message", map[string]any{"content": "no ids"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Structural noise is accepted but not stored
	rec = doJSON(t, h, http.MethodPost, "/v1/events/message", map[string]any{
		"source_id": "m1", "conversation_id": "c1", "system": true, "content": "user joined",
	})
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestContextEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.http.Handler

	for i := 0; i < 3; i++ {
		rec := doJSON(t, h, http.MethodPost, "/v1/events/message", map[string]any{
			"source_id":       fmt.Sprintf("m%d", i),
			"conversation_id": "c1",
			"author_id":       "u1",
			"author_name":     "alice",
			"content":         fmt.Sprintf("message %d", i),
		})
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := doJSON(t, h, http.MethodGet, "/v1/threads/dm:c1/context?trigger=m2", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var pack memory.ContextPack
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &pack))
	assert.Equal(t, "dm:c1", pack.ThreadID)
	assert.Len(t, pack.Messages, 3)
	assert.Contains(t, pack.Transcript, "message 2")

	// Unknown thread yields an empty pack, not an error
	rec = doJSON(t, h, http.MethodGet, "/v1/threads/dm:nowhere/context", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &pack))
	assert.Empty(t, pack.Messages)
}

func TestReplyAndSummaryEndpoints(t *testing.T) {
	srv, store := newTestServer(t)
	h := srv.http.Handler

	rec := doJSON(t, h, http.MethodPost, "/v1/threads/dm:c1/reply", map[string]any{
		"content": "glad to help", "run_id": "run-1",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	require.NoError(t, store.UpdateThreadSummary(context.Background(), "dm:c1", "they talked about help"))

	rec = doJSON(t, h, http.MethodGet, "/v1/threads/dm:c1/summary", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "they talked about help", body["summary"])
}

func TestStateEndpointMerges(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.http.Handler

	rec := doJSON(t, h, http.MethodPost, "/v1/threads/dm:c1/state", map[string]any{"tone": "formal"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, h, http.MethodPost, "/v1/threads/dm:c1/state", map[string]any{"topic": "billing"})
	require.Equal(t, http.StatusOK, rec.Code)

	var thread db.Thread
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &thread))
	assert.Equal(t, "formal", thread.State["tone"])
	assert.Equal(t, "billing", thread.State["topic"])
}

func TestCleanupEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := doJSON(t, srv.http.Handler, http.MethodPost, "/v1/admin/cleanup", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]int64
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, int64(0), body["deleted"])
}
