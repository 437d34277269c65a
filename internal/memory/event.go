// Package memory implements the conversation memory core: message ingestion,
// per-thread state, context pack assembly, and rolling summarization.
package memory

import (
	"time"

	"github.com/tidemark-ai/recollect/internal/db"
)

// MessageEvent is a platform message notification (create or update). The
// platform connection itself is external; this is the boundary shape it hands
// to the ingestor.
type MessageEvent struct {
	SourceID       string          `json:"source_id"`
	ConversationID string          `json:"conversation_id"`
	GuildID        string          `json:"guild_id,omitempty"` // empty for direct messages
	AuthorID       string          `json:"author_id"`
	AuthorName     string          `json:"author_name"`
	AuthorIsBot    bool            `json:"author_is_bot,omitempty"`
	System         bool            `json:"system,omitempty"` // joins, pins, boosts, other structural noise
	Content        string          `json:"content"`
	ReplyToID      string          `json:"reply_to_id,omitempty"` // source ID of the replied-to message
	MentionIDs     []string        `json:"mention_ids,omitempty"` // user IDs mentioned in content
	Attachments    []db.Attachment `json:"attachments,omitempty"`
	Timestamp      time.Time       `json:"timestamp,omitempty"`
}

// MentionsUser reports whether the event mentions the given user ID
func (e *MessageEvent) MentionsUser(userID string) bool {
	if userID == "" {
		return false
	}
	for _, id := range e.MentionIDs {
		if id == userID {
			return true
		}
	}
	return false
}
