package syncer

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"time"
)

// Sync run states.
const (
	StatusIdle      = "idle"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Progress is the live record of the current (or last) sync run. The
// orchestrator is its only writer; readers may observe a slightly stale
// value.
type Progress struct {
	Status        string     `json:"status"`
	Phase         string     `json:"phase"`
	Message       string     `json:"message"`
	StartedAt     *time.Time `json:"started_at,omitempty"`
	FinishedAt    *time.Time `json:"finished_at,omitempty"`
	DaysBack      int        `json:"days_back"`
	RecordsSynced int        `json:"records_synced"`
	ChunksDone    int        `json:"chunks_done"`
	ChunksTotal   int        `json:"chunks_total"`
	Error         *string    `json:"error,omitempty"`
}

// setProgress mutates the progress record under the lock and flushes it to
// the progress file and the store so a restart reveals the last known
// state. Flush failures are logged, never fatal.
func (o *Orchestrator) setProgress(mutate func(*Progress)) {
	o.mu.Lock()
	mutate(&o.progress)
	snapshot := o.progress
	o.mu.Unlock()

	data, err := json.Marshal(snapshot)
	if err != nil {
		log.Printf("sync: marshal progress: %v", err)
		return
	}
	if o.progressPath != "" {
		if err := os.WriteFile(o.progressPath, append(data, '\n'), 0644); err != nil {
			log.Printf("sync: write progress file: %v", err)
		}
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := o.store.SaveProgressSnapshot(ctx, string(data)); err != nil {
		log.Printf("sync: save progress snapshot: %v", err)
	}
}

// Progress returns a copy of the live progress record.
func (o *Orchestrator) Progress() Progress {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.progress
}

// restoreProgress loads the persisted snapshot at startup. A run that was
// in flight when the process died is reported as failed; runs do not
// resume.
func (o *Orchestrator) restoreProgress(ctx context.Context) {
	snapshot, err := o.store.LoadProgressSnapshot(ctx)
	if err != nil {
		log.Printf("sync: load progress snapshot: %v", err)
		return
	}
	if snapshot == "" {
		return
	}

	var p Progress
	if err := json.Unmarshal([]byte(snapshot), &p); err != nil {
		log.Printf("sync: decode progress snapshot: %v", err)
		return
	}
	if p.Status == StatusRunning {
		p.Status = StatusFailed
		msg := "interrupted by restart"
		p.Error = &msg
		now := time.Now().UTC()
		p.FinishedAt = &now
	}

	o.mu.Lock()
	o.progress = p
	o.mu.Unlock()
}
