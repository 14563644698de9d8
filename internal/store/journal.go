package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// HistoryEntry is one terminal sync run. Entries are append-only; pruning is
// left to the operator.
type HistoryEntry struct {
	ID            int64     `json:"id"`
	RunID         string    `json:"run_id"`
	StartedAt     time.Time `json:"started_at"`
	FinishedAt    time.Time `json:"finished_at"`
	Status        string    `json:"status"` // completed, partial, failed
	DaysBack      int       `json:"days_back"`
	RecordsSynced int       `json:"records_synced"`
	ErrorMessage  *string   `json:"error_message,omitempty"`
}

// AppendSyncHistory records a terminal sync run.
func (s *Store) AppendSyncHistory(ctx context.Context, e HistoryEntry) (int64, error) {
	res, err := s.conn.ExecContext(ctx, `
		INSERT INTO sync_history (run_id, started_at, finished_at, status, days_back, records_synced, error_message)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.RunID, formatTime(e.StartedAt), formatTime(e.FinishedAt), e.Status, e.DaysBack, e.RecordsSynced, e.ErrorMessage,
	)
	if err != nil {
		return 0, fmt.Errorf("append sync history: %w", err)
	}
	return res.LastInsertId()
}

// ListSyncHistory returns the last limit entries, newest first.
func (s *Store) ListSyncHistory(ctx context.Context, limit int) ([]HistoryEntry, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT id, run_id, started_at, finished_at, status, days_back, records_synced, error_message
		FROM sync_history ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list sync history: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var out []HistoryEntry
	for rows.Next() {
		var e HistoryEntry
		var started, finished string
		if err := rows.Scan(&e.ID, &e.RunID, &started, &finished, &e.Status, &e.DaysBack, &e.RecordsSynced, &e.ErrorMessage); err != nil {
			return nil, fmt.Errorf("scan sync history: %w", err)
		}
		if e.StartedAt, err = parseTime(started); err != nil {
			return nil, err
		}
		if e.FinishedAt, err = parseTime(finished); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// HasCompletedSync reports whether any sync run has ever finished with
// status completed or partial. Until one has, the persistent tier is
// treated as empty regardless of row timestamps.
func (s *Store) HasCompletedSync(ctx context.Context) (bool, error) {
	var count int
	err := s.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sync_history WHERE status IN ('completed', 'partial')`,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check completed sync: %w", err)
	}
	return count > 0, nil
}

// SaveProgressSnapshot persists the serialised progress record so a restart
// reveals the last known sync state.
func (s *Store) SaveProgressSnapshot(ctx context.Context, snapshot string) error {
	_, err := s.conn.ExecContext(ctx, `
		INSERT INTO sync_progress (id, snapshot, updated_at) VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET snapshot = excluded.snapshot, updated_at = excluded.updated_at`,
		snapshot, formatTime(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("save progress snapshot: %w", err)
	}
	return nil
}

// LoadProgressSnapshot returns the persisted progress record, or "" when
// none has been saved.
func (s *Store) LoadProgressSnapshot(ctx context.Context) (string, error) {
	var snapshot string
	err := s.conn.QueryRowContext(ctx, `SELECT snapshot FROM sync_progress WHERE id = 1`).Scan(&snapshot)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("load progress snapshot: %w", err)
	}
	return snapshot, nil
}
