package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Thread is the persistent identity and rolling state of one conversation.
// Thread IDs are derived deterministically from platform identifiers so that
// concurrent callers converge on the same row; threads are never deleted.
type Thread struct {
	ID               string         `json:"id"`
	State            map[string]any `json:"state"`
	Summary          string         `json:"summary,omitempty"`
	SummaryUpdatedAt time.Time      `json:"summary_updated_at,omitempty"`
	ItemCount        int            `json:"item_count"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

// GetOrCreateThread returns the thread row for id, creating it with the given
// initial state if absent. The upsert never raises a duplicate-key error: an
// existing row keeps its state and summary and only gets updated_at refreshed.
func (s *Store) GetOrCreateThread(ctx context.Context, id string, initialState map[string]any) (*Thread, error) {
	stateJSON := "{}"
	if len(initialState) > 0 {
		b, err := json.Marshal(initialState)
		if err != nil {
			return nil, fmt.Errorf("failed to encode thread state: %w", err)
		}
		stateJSON = string(b)
	}

	now := time.Now().Unix()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO threads (id, state, item_count, created_at, updated_at)
		VALUES (?, ?, 0, ?, ?)
		ON CONFLICT(id) DO UPDATE SET updated_at = excluded.updated_at
	`, id, stateJSON, now, now)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert thread: %w", err)
	}

	return s.GetThread(ctx, id)
}

// GetThread retrieves a thread by ID
func (s *Store) GetThread(ctx context.Context, id string) (*Thread, error) {
	var t Thread
	var stateJSON string
	var summary sql.NullString
	var summaryAt sql.NullInt64
	var createdAt, updatedAt int64

	err := s.db.QueryRowContext(ctx, `
		SELECT id, state, summary, summary_updated_at, item_count, created_at, updated_at
		FROM threads WHERE id = ?
	`, id).Scan(&t.ID, &stateJSON, &summary, &summaryAt, &t.ItemCount, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(stateJSON), &t.State); err != nil {
		t.State = map[string]any{}
	}
	t.Summary = summary.String
	if summaryAt.Valid {
		t.SummaryUpdatedAt = time.Unix(summaryAt.Int64, 0)
	}
	t.CreatedAt = time.Unix(createdAt, 0)
	t.UpdatedAt = time.Unix(updatedAt, 0)
	return &t, nil
}

// UpdateThreadState merges partial into the thread's state bag. New keys
// overwrite, omitted keys persist; the bag is never replaced wholesale.
func (s *Store) UpdateThreadState(ctx context.Context, id string, partial map[string]any) error {
	if len(partial) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var stateJSON string
	if err := tx.QueryRowContext(ctx, `SELECT state FROM threads WHERE id = ?`, id).Scan(&stateJSON); err != nil {
		return fmt.Errorf("failed to load thread state: %w", err)
	}

	state := map[string]any{}
	_ = json.Unmarshal([]byte(stateJSON), &state)
	for k, v := range partial {
		state[k] = v
	}

	merged, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to encode thread state: %w", err)
	}

	_, err = tx.ExecContext(ctx, `UPDATE threads SET state = ?, updated_at = ? WHERE id = ?`,
		string(merged), time.Now().Unix(), id)
	if err != nil {
		return err
	}
	return tx.Commit()
}

// UpdateThreadSummary replaces the rolling summary and stamps summary_updated_at
func (s *Store) UpdateThreadSummary(ctx context.Context, id, summary string) error {
	now := time.Now().Unix()
	_, err := s.db.ExecContext(ctx, `
		UPDATE threads SET summary = ?, summary_updated_at = ?, updated_at = ? WHERE id = ?
	`, summary, now, now, id)
	return err
}

// GetLastSummarizedCount returns how many items had been stored when the
// rolling summary was last updated
func (s *Store) GetLastSummarizedCount(ctx context.Context, id string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT last_summarized_count FROM threads WHERE id = ?`, id).Scan(&count)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return count, err
}

// SetLastSummarizedCount records the item count at the time of summarization
func (s *Store) SetLastSummarizedCount(ctx context.Context, id string, count int) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE threads SET last_summarized_count = ? WHERE id = ?`, count, id)
	return err
}

// GetThreadSummary returns the rolling summary for a thread, or "" if none
func (s *Store) GetThreadSummary(ctx context.Context, id string) (string, error) {
	var summary sql.NullString
	err := s.db.QueryRowContext(ctx, `SELECT summary FROM threads WHERE id = ?`, id).Scan(&summary)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return summary.String, nil
}
