package syncer

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/mtogate/mtogate/internal/outcome"
)

// Scheduler fires a full sync at fixed wall-clock times (HH:MM, local).
// It polls rather than pre-computing timers so settings changes take
// effect on the next tick without a restart.
type Scheduler struct {
	orch *Orchestrator
	tick time.Duration
}

// NewScheduler builds a scheduler over an orchestrator.
func NewScheduler(orch *Orchestrator) *Scheduler {
	return &Scheduler{orch: orch, tick: 30 * time.Second}
}

// Run blocks until ctx is cancelled, firing at each configured schedule
// entry. A minute that passes while the process is down is not back-filled.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	lastFired := ""
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			settings := s.orch.Settings()
			if !settings.AutoSyncEnabled {
				continue
			}
			minute := now.Format("15:04")
			stamp := now.Format("2006-01-02 15:04")
			if stamp == lastFired {
				continue
			}
			for _, hm := range settings.Schedule {
				if hm != minute {
					continue
				}
				lastFired = stamp
				log.Printf("sync: scheduled run at %s (days_back=%d)", minute, settings.DaysBack)
				if err := s.orch.Trigger(settings.DaysBack, settings.ChunkDays, true); err != nil {
					if errors.Is(err, outcome.ErrSyncInProgress) {
						log.Printf("sync: scheduled run at %s skipped: already running", minute)
					} else {
						log.Printf("sync: scheduled run at %s: %v", minute, err)
					}
				}
				break
			}
		}
	}
}
