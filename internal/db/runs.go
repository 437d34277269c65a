package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Run statuses
const (
	RunStatusStarted   = "started"
	RunStatusSucceeded = "succeeded"
	RunStatusFailed    = "failed"
)

// Run is an audit/idempotency record of one generation attempt. A run moves
// started -> {succeeded, failed} exactly once; runs outlive their items and
// are purged on a longer TTL for debugging.
type Run struct {
	ID              string    `json:"id"`
	ThreadID        string    `json:"thread_id"`
	TriggerItemID   string    `json:"trigger_item_id,omitempty"`
	Status          string    `json:"status"`
	Provider        string    `json:"provider,omitempty"`
	Model           string    `json:"model,omitempty"`
	SelectedItemIDs []string  `json:"selected_item_ids,omitempty"`
	TokenEstimate   int       `json:"token_estimate,omitempty"`
	Error           string    `json:"error,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	FinishedAt      time.Time `json:"finished_at,omitempty"`
}

// StartRun records the start of a generation attempt
func (s *Store) StartRun(ctx context.Context, threadID, triggerItemID, provider, model string) (*Run, error) {
	r := Run{
		ID:            uuid.New().String(),
		ThreadID:      threadID,
		TriggerItemID: triggerItemID,
		Status:        RunStatusStarted,
		Provider:      provider,
		Model:         model,
		CreatedAt:     time.Now(),
	}

	trigger := sql.NullString{String: triggerItemID, Valid: triggerItemID != ""}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, thread_id, trigger_item_id, status, provider, model, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, r.ID, r.ThreadID, trigger, r.Status, r.Provider, r.Model, r.CreatedAt.Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to start run: %w", err)
	}
	return &r, nil
}

// FinishRun closes a run exactly once. The status guard makes a second finish
// for the same run a no-op rather than a second transition.
func (s *Store) FinishRun(ctx context.Context, runID, status, errText string, selectedItemIDs []string, tokenEstimate int) error {
	if status != RunStatusSucceeded && status != RunStatusFailed {
		return fmt.Errorf("invalid terminal run status %q", status)
	}

	var selected sql.NullString
	if len(selectedItemIDs) > 0 {
		b, err := json.Marshal(selectedItemIDs)
		if err != nil {
			return err
		}
		selected = sql.NullString{String: string(b), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		UPDATE runs SET status = ?, error = ?, selected_item_ids = ?, token_estimate = ?, finished_at = ?
		WHERE id = ? AND status = 'started'
	`, status, errText, selected, tokenEstimate, time.Now().Unix(), runID)
	return err
}

// FindSucceededRunForTrigger returns the succeeded run for a trigger item, if
// any. Callers use this to skip generating twice for the same trigger.
func (s *Store) FindSucceededRunForTrigger(ctx context.Context, triggerItemID string) (*Run, error) {
	if triggerItemID == "" {
		return nil, nil
	}

	var r Run
	var trigger, provider, model, selected, errText sql.NullString
	var createdAt int64
	var finishedAt sql.NullInt64

	err := s.db.QueryRowContext(ctx, `
		SELECT id, thread_id, trigger_item_id, status, provider, model, selected_item_ids, token_estimate, error, created_at, finished_at
		FROM runs WHERE trigger_item_id = ? AND status = 'succeeded'
		ORDER BY created_at DESC LIMIT 1
	`, triggerItemID).Scan(&r.ID, &r.ThreadID, &trigger, &r.Status, &provider, &model,
		&selected, &r.TokenEstimate, &errText, &createdAt, &finishedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	r.TriggerItemID = trigger.String
	r.Provider = provider.String
	r.Model = model.String
	r.Error = errText.String
	if selected.Valid {
		_ = json.Unmarshal([]byte(selected.String), &r.SelectedItemIDs)
	}
	r.CreatedAt = time.Unix(createdAt, 0)
	if finishedAt.Valid {
		r.FinishedAt = time.Unix(finishedAt.Int64, 0)
	}
	return &r, nil
}

// PurgeRunsOlderThan deletes runs whose age exceeds ttl and returns the count
func (s *Store) PurgeRunsOlderThan(ctx context.Context, ttl time.Duration) (int64, error) {
	cutoff := time.Now().Add(-ttl).Unix()
	res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
