package memory

import (
	"context"
	"fmt"
	"strings"

	"github.com/tidemark-ai/recollect/internal/db"
	"github.com/tidemark-ai/recollect/internal/logging"
)

// Ingestor writes platform message events into the thread store and item log.
// All writes are idempotent by source ID; re-delivery of the same event is a
// silent no-op. With no store configured every call degrades to a no-op so
// the rest of the system runs with reduced memory instead of crashing.
type Ingestor struct {
	store      *db.Store
	cache      ItemCache
	summarizer *Summarizer
	tasks      *TaskQueue
}

// NewIngestor creates an ingestor. store may be nil (degraded mode); cache,
// summarizer, and tasks are each optional.
func NewIngestor(store *db.Store, cache ItemCache, summarizer *Summarizer, tasks *TaskQueue) *Ingestor {
	return &Ingestor{
		store:      store,
		cache:      cache,
		summarizer: summarizer,
		tasks:      tasks,
	}
}

// IngestCreate stores an inbound message event as an item. Events that are
// structural noise, empty with no attachment, or pathologically long are
// skipped entirely. Returns the stored item, or nil when skipped.
func (ing *Ingestor) IngestCreate(ctx context.Context, ev MessageEvent, botID string) (*db.Item, error) {
	if ing.store == nil {
		return nil, nil
	}
	if ev.System {
		return nil, nil
	}
	if strings.TrimSpace(ev.Content) == "" && len(ev.Attachments) == 0 {
		return nil, nil
	}
	// Oversized content is dropped, not truncated: a truncated paste dump
	// would still crowd every later context pack.
	if len(ev.Content) > MaxIngestChars {
		logging.Debugf("skipping oversized message %s (%d chars)", ev.SourceID, len(ev.Content))
		return nil, nil
	}

	threadID := DeriveThreadID(ev.ConversationID, ev.GuildID)
	if _, err := ing.store.GetOrCreateThread(ctx, threadID, nil); err != nil {
		return nil, fmt.Errorf("failed to ensure thread: %w", err)
	}

	itemType := db.ItemTypeUser
	role := "user"
	if ev.AuthorIsBot && ev.AuthorID == botID {
		itemType = db.ItemTypeAssistant
		role = "assistant"
	}

	item := db.Item{
		ThreadID:   threadID,
		SourceID:   ev.SourceID,
		Type:       itemType,
		Role:       role,
		AuthorID:   ev.AuthorID,
		AuthorName: ev.AuthorName,
		Content:    ev.Content,
		Metadata: db.ItemMetadata{
			Attachments: ev.Attachments,
			ReplyTo:     ev.ReplyToID,
			MentionsBot: ev.MentionsUser(botID),
		},
	}
	if !ev.Timestamp.IsZero() {
		item.CreatedAt = ev.Timestamp
	}

	stored, created, err := ing.store.UpsertItem(ctx, item)
	if err != nil {
		return nil, err
	}

	if ing.cache != nil && stored.SourceID != "" {
		ing.cache.Set(stored.SourceID, stored)
	}

	if created {
		ing.scheduleSummarizeCheck(threadID)
	}
	return stored, nil
}

// IngestUpdate rewrites the content of an edited message by source ID.
// Ordering and type never change on edit.
func (ing *Ingestor) IngestUpdate(ctx context.Context, ev MessageEvent) error {
	if ing.store == nil {
		return nil
	}
	if err := ing.store.UpdateItemContentBySourceID(ctx, ev.SourceID, ev.Content); err != nil {
		return err
	}
	if ing.cache != nil {
		ing.cache.Evict(ev.SourceID)
	}
	return nil
}

// IngestDelete tombstones a deleted message: content is blanked and the row
// kept so reply-chain references still resolve.
func (ing *Ingestor) IngestDelete(ctx context.Context, sourceID string) error {
	if ing.store == nil {
		return nil
	}
	if err := ing.store.TombstoneItemBySourceID(ctx, sourceID); err != nil {
		return err
	}
	if ing.cache != nil {
		ing.cache.Evict(sourceID)
	}
	return nil
}

// IngestOutgoing records the system's own reply as an assistant item so
// future context packs see the full exchange. runID ties the item back to
// the generation run that produced it, when one exists.
func (ing *Ingestor) IngestOutgoing(ctx context.Context, threadID, content, runID string) (*db.Item, error) {
	if ing.store == nil {
		return nil, nil
	}
	if strings.TrimSpace(content) == "" {
		return nil, nil
	}

	if _, err := ing.store.GetOrCreateThread(ctx, threadID, nil); err != nil {
		return nil, fmt.Errorf("failed to ensure thread: %w", err)
	}

	item := db.Item{
		ThreadID: threadID,
		Type:     db.ItemTypeAssistant,
		Role:     "assistant",
		Content:  content,
		Metadata: db.ItemMetadata{RunID: runID},
	}

	stored, created, err := ing.store.UpsertItem(ctx, item)
	if err != nil {
		return nil, err
	}
	if created {
		ing.scheduleSummarizeCheck(threadID)
	}
	return stored, nil
}

// scheduleSummarizeCheck enqueues an async summarization check. The check is
// strictly fire-and-forget: it must not delay the ingestion call and its
// failure must not be visible to the ingestion caller.
func (ing *Ingestor) scheduleSummarizeCheck(threadID string) {
	if ing.summarizer == nil || ing.tasks == nil {
		return
	}
	ing.tasks.Enqueue("summarize:"+threadID, func(ctx context.Context) error {
		ing.summarizer.MaybeSummarize(ctx, threadID)
		return nil
	})
}
