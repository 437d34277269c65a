package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tidemark-ai/recollect/internal/logging"
	"github.com/tidemark-ai/recollect/internal/memory"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleMessageCreate ingests a platform create event. Skipped events
// (noise, empty, oversized) return 204; the caller needs no detail.
func (s *Server) handleMessageCreate(w http.ResponseWriter, r *http.Request) {
	var ev memory.MessageEvent
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		writeError(w, http.StatusBadRequest, "invalid event payload")
		return
	}
	if ev.SourceID == "" || ev.ConversationID == "" {
		writeError(w, http.StatusBadRequest, "source_id and conversation_id are required")
		return
	}

	item, err := s.ingestor.IngestCreate(r.Context(), ev, s.cfg.BotID)
	if err != nil {
		logging.Errorf("ingest create failed for %s: %v", ev.SourceID, err)
		writeError(w, http.StatusInternalServerError, "ingest failed")
		return
	}
	if item == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (s *Server) handleMessageUpdate(w http.ResponseWriter, r *http.Request) {
	sourceID := chi.URLParam(r, "sourceID")

	var body struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}

	ev := memory.MessageEvent{SourceID: sourceID, Content: body.Content}
	if err := s.ingestor.IngestUpdate(r.Context(), ev); err != nil {
		logging.Errorf("ingest update failed for %s: %v", sourceID, err)
		writeError(w, http.StatusInternalServerError, "update failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMessageDelete(w http.ResponseWriter, r *http.Request) {
	sourceID := chi.URLParam(r, "sourceID")
	if err := s.ingestor.IngestDelete(r.Context(), sourceID); err != nil {
		logging.Errorf("ingest delete failed for %s: %v", sourceID, err)
		writeError(w, http.StatusInternalServerError, "delete failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleContext builds a context pack with the thread's resolved policy.
// A storage failure degrades to an empty pack, never a 500: the caller runs
// with no memory rather than failing the interaction.
func (s *Server) handleContext(w http.ResponseWriter, r *http.Request) {
	threadID := chi.URLParam(r, "threadID")
	trigger := r.URL.Query().Get("trigger")

	pol := s.cfg.ResolvePolicy(threadID)
	pack := s.builder.BuildContextPack(r.Context(), threadID, trigger, pol)
	if pack == nil {
		pack = &memory.ContextPack{ThreadID: threadID}
	}
	writeJSON(w, http.StatusOK, pack)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	threadID := chi.URLParam(r, "threadID")

	summary := ""
	if s.store != nil {
		var err error
		summary, err = s.store.GetThreadSummary(r.Context(), threadID)
		if err != nil {
			logging.Errorf("summary fetch failed for %s: %v", threadID, err)
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"thread_id": threadID, "summary": summary})
}

// handleReply records the system's own outgoing reply as an assistant item
func (s *Server) handleReply(w http.ResponseWriter, r *http.Request) {
	threadID := chi.URLParam(r, "threadID")

	var body struct {
		Content string `json:"content"`
		RunID   string `json:"run_id,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}

	item, err := s.ingestor.IngestOutgoing(r.Context(), threadID, body.Content, body.RunID)
	if err != nil {
		logging.Errorf("ingest outgoing failed for %s: %v", threadID, err)
		writeError(w, http.StatusInternalServerError, "reply ingest failed")
		return
	}
	if item == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// handleState merges partial state into the thread's state bag, creating the
// thread if needed
func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	threadID := chi.URLParam(r, "threadID")

	var partial map[string]any
	if err := json.NewDecoder(r.Body).Decode(&partial); err != nil {
		writeError(w, http.StatusBadRequest, "invalid state payload")
		return
	}

	if s.store == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	thread, err := s.store.GetOrCreateThread(r.Context(), threadID, nil)
	if err != nil {
		logging.Errorf("thread upsert failed for %s: %v", threadID, err)
		writeError(w, http.StatusInternalServerError, "state update failed")
		return
	}
	if err := s.store.UpdateThreadState(r.Context(), thread.ID, partial); err != nil {
		logging.Errorf("state update failed for %s: %v", threadID, err)
		writeError(w, http.StatusInternalServerError, "state update failed")
		return
	}

	thread, err = s.store.GetThread(r.Context(), thread.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "state update failed")
		return
	}
	writeJSON(w, http.StatusOK, thread)
}

func (s *Server) handleCleanup(w http.ResponseWriter, r *http.Request) {
	count, err := s.scheduler.RunCleanupNow(r.Context())
	if err != nil {
		logging.Errorf("manual cleanup failed: %v", err)
		writeError(w, http.StatusInternalServerError, "cleanup failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"deleted": count})
}
