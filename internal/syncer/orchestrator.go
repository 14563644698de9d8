package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/mtogate/mtogate/internal/config"
	"github.com/mtogate/mtogate/internal/outcome"
	"github.com/mtogate/mtogate/internal/reader"
	"github.com/mtogate/mtogate/internal/store"
	"github.com/mtogate/mtogate/internal/upstream"
)

// settingsKey is the store config key holding operator overrides applied on
// top of the file configuration.
const settingsKey = "sync.settings"

// retriggerGrace is how soon after a successful run a non-forced manual
// trigger is rejected.
const retriggerGrace = 5 * time.Minute

// Settings are the tunable sync parameters. File configuration seeds them;
// UpdateSettings overrides persist across restarts.
type Settings struct {
	AutoSyncEnabled bool     `json:"auto_sync_enabled"`
	Schedule        []string `json:"schedule"`
	DaysBack        int      `json:"days_back"`
	ChunkDays       int      `json:"chunk_days"`
	ParallelChunks  int      `json:"parallel_chunks"`
	RetryCount      int      `json:"retry_count"`
}

// Patch is a partial Settings update; nil fields are left unchanged.
type Patch struct {
	AutoSyncEnabled *bool    `json:"auto_sync_enabled,omitempty"`
	Schedule        []string `json:"schedule,omitempty"`
	DaysBack        *int     `json:"days_back,omitempty"`
	ChunkDays       *int     `json:"chunk_days,omitempty"`
	ParallelChunks  *int     `json:"parallel_chunks,omitempty"`
	RetryCount      *int     `json:"retry_count,omitempty"`
}

// Orchestrator runs date-chunked fan-out ingestion from the nine upstream
// forms into the persistent store. At most one run is active at a time.
type Orchestrator struct {
	store        *store.Store
	q            upstream.Querier
	pageSize     int
	progressPath string

	minDays, maxDays int

	running atomic.Bool

	mu            sync.Mutex
	progress      Progress
	settings      Settings
	lastCompleted time.Time
}

// New builds an Orchestrator, restores the persisted progress snapshot,
// and overlays any persisted settings overrides onto the file config.
func New(ctx context.Context, cfg config.Config, st *store.Store, q upstream.Querier) *Orchestrator {
	o := &Orchestrator{
		store:        st,
		q:            q,
		pageSize:     cfg.Upstream.PageSize,
		progressPath: cfg.ProgressPath,
		minDays:      cfg.ManualMinDays,
		maxDays:      cfg.ManualMaxDays,
		progress:     Progress{Status: StatusIdle},
		settings: Settings{
			AutoSyncEnabled: cfg.AutoSyncEnabled,
			Schedule:        cfg.Schedule,
			DaysBack:        cfg.DaysBack,
			ChunkDays:       cfg.ChunkDays,
			ParallelChunks:  cfg.ParallelChunks,
			RetryCount:      cfg.RetryCount,
		},
	}
	if o.minDays < 1 {
		o.minDays = 1
	}
	if o.maxDays < o.minDays || o.maxDays > 365 {
		o.maxDays = 365
	}

	o.restoreProgress(ctx)
	o.restoreSettings(ctx)
	return o
}

func (o *Orchestrator) restoreSettings(ctx context.Context) {
	raw, err := o.store.GetConfig(ctx, settingsKey, "")
	if err != nil {
		log.Printf("sync: load settings: %v", err)
		return
	}
	if raw == "" {
		return
	}
	var s Settings
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		log.Printf("sync: decode settings: %v", err)
		return
	}
	o.mu.Lock()
	o.settings = s
	o.mu.Unlock()
}

// Settings returns the current effective sync settings.
func (o *Orchestrator) Settings() Settings {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.settings
}

// UpdateSettings applies a partial update, persists the result, and returns
// the new effective settings.
func (o *Orchestrator) UpdateSettings(ctx context.Context, p Patch) (Settings, error) {
	o.mu.Lock()
	s := o.settings
	o.mu.Unlock()

	if p.AutoSyncEnabled != nil {
		s.AutoSyncEnabled = *p.AutoSyncEnabled
	}
	if p.Schedule != nil {
		for _, hm := range p.Schedule {
			if _, err := time.Parse("15:04", hm); err != nil {
				return Settings{}, fmt.Errorf("%w: schedule entry %q is not HH:MM", outcome.ErrValidation, hm)
			}
		}
		s.Schedule = p.Schedule
	}
	if p.DaysBack != nil {
		if err := o.validateDaysBack(*p.DaysBack); err != nil {
			return Settings{}, err
		}
		s.DaysBack = *p.DaysBack
	}
	if p.ChunkDays != nil {
		if *p.ChunkDays < 1 || *p.ChunkDays > 30 {
			return Settings{}, fmt.Errorf("%w: chunk_days must be in [1, 30]", outcome.ErrValidation)
		}
		s.ChunkDays = *p.ChunkDays
	}
	if p.ParallelChunks != nil {
		if *p.ParallelChunks < 1 || *p.ParallelChunks > 8 {
			return Settings{}, fmt.Errorf("%w: parallel_chunks must be in [1, 8]", outcome.ErrValidation)
		}
		s.ParallelChunks = *p.ParallelChunks
	}
	if p.RetryCount != nil {
		if *p.RetryCount < 0 || *p.RetryCount > 10 {
			return Settings{}, fmt.Errorf("%w: retry_count must be in [0, 10]", outcome.ErrValidation)
		}
		s.RetryCount = *p.RetryCount
	}

	raw, err := json.Marshal(s)
	if err != nil {
		return Settings{}, fmt.Errorf("marshal settings: %w", err)
	}
	if err := o.store.SetConfig(ctx, settingsKey, string(raw)); err != nil {
		return Settings{}, err
	}

	o.mu.Lock()
	o.settings = s
	o.mu.Unlock()
	return s, nil
}

func (o *Orchestrator) validateDaysBack(days int) error {
	if days < o.minDays || days > o.maxDays {
		return fmt.Errorf("%w: days_back must be in [%d, %d]", outcome.ErrValidation, o.minDays, o.maxDays)
	}
	return nil
}

// IsRunning reports whether a run is active.
func (o *Orchestrator) IsRunning() bool {
	return o.running.Load()
}

// Trigger starts a run in the background. chunkDays <= 0 uses the
// configured default. Without force, a trigger arriving within a few
// minutes of a successful run is rejected; force bypasses that guard.
// A trigger while a run is active always fails with sync_in_progress.
func (o *Orchestrator) Trigger(daysBack, chunkDays int, force bool) error {
	if daysBack <= 0 {
		daysBack = o.Settings().DaysBack
	}
	if err := o.validateDaysBack(daysBack); err != nil {
		return err
	}
	if chunkDays <= 0 {
		chunkDays = o.Settings().ChunkDays
	}
	if chunkDays < 1 || chunkDays > 30 {
		return fmt.Errorf("%w: chunk_days must be in [1, 30]", outcome.ErrValidation)
	}

	if !force {
		o.mu.Lock()
		recent := !o.lastCompleted.IsZero() && time.Since(o.lastCompleted) < retriggerGrace
		o.mu.Unlock()
		if recent {
			return fmt.Errorf("%w: a sync completed less than %s ago; pass force to re-run", outcome.ErrValidation, retriggerGrace)
		}
	}

	if !o.running.CompareAndSwap(false, true) {
		return outcome.ErrSyncInProgress
	}

	go func() {
		defer o.running.Store(false)
		o.run(context.Background(), daysBack, chunkDays)
	}()
	return nil
}

// RunNow runs a sync synchronously. The scheduler and tests use it.
func (o *Orchestrator) RunNow(ctx context.Context, daysBack, chunkDays int) error {
	if chunkDays <= 0 {
		chunkDays = o.Settings().ChunkDays
	}
	if err := o.validateDaysBack(daysBack); err != nil {
		return err
	}
	if !o.running.CompareAndSwap(false, true) {
		return outcome.ErrSyncInProgress
	}
	defer o.running.Store(false)
	return o.run(ctx, daysBack, chunkDays)
}

// window is one contiguous date chunk, inclusive on both ends.
type window struct {
	start, end time.Time
}

func chunkWindows(end time.Time, daysBack, chunkDays int) []window {
	start := end.AddDate(0, 0, -daysBack)
	var out []window
	for s := start; !s.After(end); s = s.AddDate(0, 0, chunkDays) {
		e := s.AddDate(0, 0, chunkDays-1)
		if e.After(end) {
			e = end
		}
		out = append(out, window{start: s, end: e})
	}
	return out
}

func (o *Orchestrator) run(ctx context.Context, daysBack, chunkDays int) error {
	runID := uuid.NewString()
	started := time.Now().UTC()
	windows := chunkWindows(started, daysBack, chunkDays)
	settings := o.Settings()

	log.Printf("sync: run %s starting: days_back=%d chunk_days=%d chunks=%d", runID, daysBack, chunkDays, len(windows))

	o.setProgress(func(p *Progress) {
		*p = Progress{
			Status:      StatusRunning,
			Phase:       "starting",
			Message:     fmt.Sprintf("syncing last %d days in %d chunks", daysBack, len(windows)),
			StartedAt:   &started,
			DaysBack:    daysBack,
			ChunksTotal: len(windows),
		}
	})

	var total atomic.Int64
	var chunkErrs atomic.Int32

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(settings.ParallelChunks)
	for _, w := range windows {
		g.Go(func() error {
			n, err := o.syncChunk(gctx, w, settings.RetryCount)
			total.Add(int64(n))
			if err != nil {
				if errors.Is(err, upstream.ErrQuery) {
					// Terminal for the chunk, not for the run.
					log.Printf("sync: chunk %s..%s: %v", w.start.Format("2006-01-02"), w.end.Format("2006-01-02"), err)
					chunkErrs.Add(1)
					err = nil
				}
				if err != nil {
					return err
				}
			}
			o.setProgress(func(p *Progress) {
				p.ChunksDone++
				p.RecordsSynced = int(total.Load())
				p.Phase = "syncing"
				p.Message = fmt.Sprintf("chunk %d/%d done, %d records", p.ChunksDone, p.ChunksTotal, p.RecordsSynced)
			})
			return nil
		})
	}
	runErr := g.Wait()

	finished := time.Now().UTC()
	entry := store.HistoryEntry{
		RunID:         runID,
		StartedAt:     started,
		FinishedAt:    finished,
		DaysBack:      daysBack,
		RecordsSynced: int(total.Load()),
	}

	switch {
	case runErr != nil:
		msg := runErr.Error()
		entry.Status = StatusFailed
		entry.ErrorMessage = &msg
		o.setProgress(func(p *Progress) {
			p.Status = StatusFailed
			p.Phase = "failed"
			p.Message = msg
			p.Error = &msg
			p.FinishedAt = &finished
		})
		log.Printf("sync: run %s failed: %v", runID, runErr)
	case chunkErrs.Load() > 0:
		entry.Status = "partial"
		o.setProgress(func(p *Progress) {
			p.Status = StatusCompleted
			p.Phase = "completed"
			p.Message = fmt.Sprintf("completed with %d chunk errors, %d records", chunkErrs.Load(), total.Load())
			p.Error = nil
			p.FinishedAt = &finished
		})
		log.Printf("sync: run %s partial: %d chunk errors, %d records", runID, chunkErrs.Load(), total.Load())
	default:
		entry.Status = StatusCompleted
		o.setProgress(func(p *Progress) {
			p.Status = StatusCompleted
			p.Phase = "completed"
			p.Message = fmt.Sprintf("synced %d records", total.Load())
			p.Error = nil
			p.FinishedAt = &finished
		})
		log.Printf("sync: run %s completed: %d records in %s", runID, total.Load(), finished.Sub(started).Round(time.Millisecond))
	}

	hctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := o.store.AppendSyncHistory(hctx, entry); err != nil {
		log.Printf("sync: append history: %v", err)
	}

	if runErr == nil {
		o.mu.Lock()
		o.lastCompleted = finished
		o.mu.Unlock()
	}
	return runErr
}

// syncChunk fans the nine readers out over one date window. Readers run
// fully in parallel; each reader's rows commit in one transaction.
func (o *Orchestrator) syncChunk(ctx context.Context, w window, retries int) (int, error) {
	var total atomic.Int64
	g, gctx := errgroup.WithContext(ctx)

	sources := []struct {
		name string
		run  func(context.Context) (int, error)
	}{
		{"production_orders", func(ctx context.Context) (int, error) {
			rows, err := reader.FetchByDateRange(ctx, o.q, reader.ProductionOrders, o.pageSize, w.start, w.end, "")
			if err != nil {
				return 0, err
			}
			return o.store.UpsertProductionOrders(ctx, rows, time.Now())
		}},
		{"production_bom", func(ctx context.Context) (int, error) {
			rows, err := reader.FetchByDateRange(ctx, o.q, reader.ProductionBOMs, o.pageSize, w.start, w.end, "")
			if err != nil {
				return 0, err
			}
			return o.store.UpsertProductionBOMs(ctx, rows, time.Now())
		}},
		{"production_receipts", func(ctx context.Context) (int, error) {
			rows, err := reader.FetchByDateRange(ctx, o.q, reader.ProductionReceipts, o.pageSize, w.start, w.end, "")
			if err != nil {
				return 0, err
			}
			return o.store.UpsertProductionReceipts(ctx, rows, time.Now())
		}},
		{"purchase_orders", func(ctx context.Context) (int, error) {
			rows, err := reader.FetchByDateRange(ctx, o.q, reader.PurchaseOrders, o.pageSize, w.start, w.end, "")
			if err != nil {
				return 0, err
			}
			return o.store.UpsertPurchaseOrders(ctx, rows, time.Now())
		}},
		{"purchase_receipts", func(ctx context.Context) (int, error) {
			rows, err := reader.FetchByDateRange(ctx, o.q, reader.PurchaseReceipts, o.pageSize, w.start, w.end, "")
			if err != nil {
				return 0, err
			}
			return o.store.UpsertPurchaseReceipts(ctx, rows, time.Now())
		}},
		{"subcontract_orders", func(ctx context.Context) (int, error) {
			rows, err := reader.FetchByDateRange(ctx, o.q, reader.SubcontractOrders, o.pageSize, w.start, w.end, "")
			if err != nil {
				return 0, err
			}
			return o.store.UpsertSubcontractOrders(ctx, rows, time.Now())
		}},
		{"material_picking", func(ctx context.Context) (int, error) {
			rows, err := reader.FetchByDateRange(ctx, o.q, reader.MaterialPickings, o.pageSize, w.start, w.end, "")
			if err != nil {
				return 0, err
			}
			return o.store.UpsertMaterialPickings(ctx, rows, time.Now())
		}},
		{"sales_deliveries", func(ctx context.Context) (int, error) {
			rows, err := reader.FetchByDateRange(ctx, o.q, reader.SalesDeliveries, o.pageSize, w.start, w.end, "")
			if err != nil {
				return 0, err
			}
			return o.store.UpsertSalesDeliveries(ctx, rows, time.Now())
		}},
		{"sales_orders", func(ctx context.Context) (int, error) {
			rows, err := reader.FetchByDateRange(ctx, o.q, reader.SalesOrders, o.pageSize, w.start, w.end, "")
			if err != nil {
				return 0, err
			}
			return o.store.UpsertSalesOrders(ctx, rows, time.Now())
		}},
	}

	for _, src := range sources {
		g.Go(func() error {
			var n int
			err := retryUpstream(gctx, retries, func() error {
				var err error
				n, err = src.run(gctx)
				return err
			})
			if err != nil {
				return fmt.Errorf("%s: %w", src.name, err)
			}
			total.Add(int64(n))
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return int(total.Load()), err
	}
	return int(total.Load()), nil
}

// retryUpstream retries transient upstream failures with exponential
// backoff. Query errors are permanent.
func retryUpstream(ctx context.Context, retries int, op func() error) error {
	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(retries)), ctx)
	return backoff.Retry(func() error {
		err := op()
		if err == nil {
			return nil
		}
		if errors.Is(err, upstream.ErrUnavailable) {
			return err
		}
		return backoff.Permanent(err)
	}, bo)
}

// History returns the last limit terminal runs.
func (o *Orchestrator) History(ctx context.Context, limit int) ([]store.HistoryEntry, error) {
	if limit < 1 {
		return nil, fmt.Errorf("%w: limit must be >= 1", outcome.ErrValidation)
	}
	return o.store.ListSyncHistory(ctx, limit)
}
