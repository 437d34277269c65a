package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Item types
const (
	ItemTypeUser       = "user"
	ItemTypeAssistant  = "assistant"
	ItemTypeToolCall   = "tool_call"
	ItemTypeToolResult = "tool_result"
	ItemTypeSystem     = "system"
)

// Attachment describes a file attached to a platform message
type Attachment struct {
	ID          string `json:"id,omitempty"`
	Name        string `json:"name,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Kind        string `json:"kind,omitempty"` // image, audio, video, file
	URL         string `json:"url,omitempty"`
}

// ItemMetadata is the free-form metadata bag persisted alongside an item
type ItemMetadata struct {
	Attachments []Attachment `json:"attachments,omitempty"`
	ReplyTo     string       `json:"reply_to,omitempty"` // source ID of the replied-to message
	RunID       string       `json:"run_id,omitempty"`   // provenance for assistant items
	MentionsBot bool         `json:"mentions_bot,omitempty"`
}

// Item is one stored unit of conversation belonging to a thread
type Item struct {
	ID         string       `json:"id"`
	ThreadID   string       `json:"thread_id"`
	SourceID   string       `json:"source_id,omitempty"`
	Type       string       `json:"type"`
	Role       string       `json:"role"`
	AuthorID   string       `json:"author_id,omitempty"`
	AuthorName string       `json:"author_name,omitempty"`
	Content    string       `json:"content"`
	Metadata   ItemMetadata `json:"metadata"`
	Deleted    bool         `json:"deleted,omitempty"`
	EditedAt   time.Time    `json:"edited_at,omitempty"`
	CreatedAt  time.Time    `json:"created_at"`
}

const itemColumns = `id, thread_id, source_id, type, role, author_id, author_name, content, metadata, deleted, edited_at, created_at`

func scanItem(row interface{ Scan(...any) error }) (*Item, error) {
	var it Item
	var sourceID, authorID, authorName, metadata sql.NullString
	var deleted int
	var editedAt sql.NullInt64
	var createdAt int64

	err := row.Scan(&it.ID, &it.ThreadID, &sourceID, &it.Type, &it.Role,
		&authorID, &authorName, &it.Content, &metadata, &deleted, &editedAt, &createdAt)
	if err != nil {
		return nil, err
	}

	it.SourceID = sourceID.String
	it.AuthorID = authorID.String
	it.AuthorName = authorName.String
	if metadata.Valid && metadata.String != "" {
		_ = json.Unmarshal([]byte(metadata.String), &it.Metadata)
	}
	it.Deleted = deleted != 0
	if editedAt.Valid {
		it.EditedAt = time.Unix(editedAt.Int64, 0)
	}
	it.CreatedAt = time.Unix(createdAt, 0)
	return &it, nil
}

// UpsertItem writes an item keyed by source_id. Re-ingesting an event with an
// already-seen source ID is a no-op that returns the existing item; this is
// the expected happy path, not an error. Returns the stored item and whether
// a new row was created.
func (s *Store) UpsertItem(ctx context.Context, it Item) (*Item, bool, error) {
	if it.ID == "" {
		it.ID = uuid.New().String()
	}
	if it.CreatedAt.IsZero() {
		it.CreatedAt = time.Now()
	}

	metaJSON, err := json.Marshal(it.Metadata)
	if err != nil {
		return nil, false, fmt.Errorf("failed to encode item metadata: %w", err)
	}

	sourceID := sql.NullString{String: it.SourceID, Valid: it.SourceID != ""}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO items (id, thread_id, source_id, type, role, author_id, author_name, content, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(source_id) WHERE source_id IS NOT NULL DO NOTHING
	`, it.ID, it.ThreadID, sourceID, it.Type, it.Role, it.AuthorID, it.AuthorName,
		it.Content, string(metaJSON), it.CreatedAt.Unix())
	if err != nil {
		return nil, false, fmt.Errorf("failed to upsert item: %w", err)
	}

	affected, _ := res.RowsAffected()
	if affected == 0 {
		// Conflict on source_id: return the previously stored item unchanged
		existing, err := s.GetItemBySourceID(ctx, it.SourceID)
		if err != nil {
			return nil, false, fmt.Errorf("failed to load existing item: %w", err)
		}
		return existing, false, nil
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE threads SET item_count = item_count + 1, updated_at = ? WHERE id = ?`,
		time.Now().Unix(), it.ThreadID)
	if err != nil {
		return nil, false, err
	}

	stored := it
	return &stored, true, nil
}

// GetItemBySourceID retrieves the item for an originating platform message ID
func (s *Store) GetItemBySourceID(ctx context.Context, sourceID string) (*Item, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM items WHERE source_id = ?`, sourceID)
	return scanItem(row)
}

// UpdateItemContentBySourceID rewrites the content of an edited message.
// Ordering and type are untouched; only content and edited_at change.
func (s *Store) UpdateItemContentBySourceID(ctx context.Context, sourceID, content string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE items SET content = ?, edited_at = ? WHERE source_id = ?`,
		content, time.Now().Unix(), sourceID)
	return err
}

// TombstoneItemBySourceID blanks a deleted message but keeps the row as a
// structural placeholder so reply-chain references do not dangle.
func (s *Store) TombstoneItemBySourceID(ctx context.Context, sourceID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE items SET content = '', deleted = 1, edited_at = ? WHERE source_id = ?`,
		time.Now().Unix(), sourceID)
	return err
}

// RecentItems returns up to limit items for a thread, newest first, optionally
// bounded by a maximum age. maxAge <= 0 disables the age bound.
func (s *Store) RecentItems(ctx context.Context, threadID string, limit int, maxAge time.Duration) ([]Item, error) {
	cutoff := int64(0)
	if maxAge > 0 {
		cutoff = time.Now().Add(-maxAge).Unix()
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+itemColumns+` FROM items
		WHERE thread_id = ? AND created_at >= ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, threadID, cutoff, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *it)
	}
	return items, rows.Err()
}

// ItemsChronological returns all items for a thread, oldest first
func (s *Store) ItemsChronological(ctx context.Context, threadID string) ([]Item, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+itemColumns+` FROM items
		WHERE thread_id = ?
		ORDER BY created_at ASC, id ASC
	`, threadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *it)
	}
	return items, rows.Err()
}

// CountItems returns the number of stored items for a thread
func (s *Store) CountItems(ctx context.Context, threadID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM items WHERE thread_id = ?`, threadID).Scan(&count)
	return count, err
}

// PurgeItemsOlderThan deletes items whose age exceeds ttl and returns the
// count deleted. Thread rows and their summaries are left intact.
func (s *Store) PurgeItemsOlderThan(ctx context.Context, ttl time.Duration) (int64, error) {
	cutoff := time.Now().Add(-ttl).Unix()
	res, err := s.db.ExecContext(ctx, `DELETE FROM items WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
