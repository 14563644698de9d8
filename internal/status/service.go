package status

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/mtogate/mtogate/internal/cache"
	"github.com/mtogate/mtogate/internal/classify"
	"github.com/mtogate/mtogate/internal/config"
	"github.com/mtogate/mtogate/internal/outcome"
	"github.com/mtogate/mtogate/internal/store"
	"github.com/mtogate/mtogate/internal/upstream"
)

// mtoRe bounds the accepted MTO shape: alphanumerics and hyphens, 2-50
// characters, case preserved.
var mtoRe = regexp.MustCompile(`^[A-Za-z0-9-]{2,50}$`)

// Service assembles consolidated MTO status views across the three tiers:
// memory cache, persistent store, and live upstream fan-out.
type Service struct {
	store *store.Store
	q     upstream.Querier
	cls   atomic.Pointer[classify.Classifier]
	cache *cache.Cache[Result]
	group singleflight.Group

	pageSize     int
	freshness    time.Duration
	fanoutBudget time.Duration
}

// New wires a Service from its collaborators.
func New(cfg config.Config, st *store.Store, q upstream.Querier, cls *classify.Classifier) *Service {
	s := &Service{
		store:        st,
		q:            q,
		cache:        cache.New[Result](cfg.CacheMaxSize, time.Duration(cfg.CacheTTLSeconds)*time.Second),
		pageSize:     cfg.Upstream.PageSize,
		freshness:    time.Duration(cfg.FreshnessSeconds) * time.Second,
		fanoutBudget: time.Duration(cfg.Upstream.RequestTimeout) * time.Second,
	}
	if s.fanoutBudget <= 0 {
		s.fanoutBudget = 60 * time.Second
	}
	s.cls.Store(cls)
	return s
}

// SetClassifier swaps in a freshly compiled classifier. In-flight
// assemblies keep the one they started with.
func (s *Service) SetClassifier(cls *classify.Classifier) {
	s.cls.Store(cls)
}

// ValidateMTO checks the MTO shape without touching any tier.
func ValidateMTO(mto string) error {
	if !mtoRe.MatchString(mto) {
		return fmt.Errorf("%w: invalid mto number %q", outcome.ErrValidation, mto)
	}
	return nil
}

// GetStatus returns the consolidated status view for an MTO.
//
// With useCache, a fresh memory entry short-circuits everything. Otherwise
// the call enters a single-flight group keyed by the MTO: concurrent
// callers share one assembly and receive the same result. The shared
// computation runs on a detached context with its own budget, so a caller
// abandoning the wait does not cancel it for the others.
func (s *Service) GetStatus(ctx context.Context, mto string, useCache bool) (Result, error) {
	if err := ValidateMTO(mto); err != nil {
		return Result{}, err
	}

	if useCache {
		if r, ok := s.cache.Get(mto); ok {
			r.DataSource = SourceMemory
			r.CacheAgeSeconds = nil
			return r, nil
		}
	}

	ch := s.group.DoChan(mto, func() (any, error) {
		fanoutCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.fanoutBudget)
		defer cancel()
		return s.assembleMTO(fanoutCtx, mto, useCache)
	})

	select {
	case <-ctx.Done():
		return Result{}, fmt.Errorf("%w: %v", upstream.ErrUnavailable, ctx.Err())
	case v := <-ch:
		if v.Err != nil {
			return Result{}, v.Err
		}
		return v.Val.(Result), nil
	}
}

// assembleMTO runs inside the single-flight group: persistent tier when
// fresh, live fan-out otherwise.
func (s *Service) assembleMTO(ctx context.Context, mto string, useCache bool) (Result, error) {
	now := time.Now().UTC()

	if useCache {
		fresh, oldest, err := s.persistentFresh(ctx, mto, now)
		if err != nil {
			return Result{}, err
		}
		if fresh {
			b, err := s.fetchPersistent(ctx, mto)
			if err != nil {
				return Result{}, err
			}
			if !b.empty() {
				res := assemble(mto, b, s.cls.Load())
				res.QueryTime = now
				res.DataSource = SourcePersistent
				age := int64(now.Sub(oldest).Seconds())
				res.CacheAgeSeconds = &age
				s.cache.Set(mto, res)
				return res, nil
			}
		}
	}

	b, err := s.fetchLive(ctx, mto)
	if err != nil {
		return Result{}, err
	}
	if b.empty() {
		return Result{}, fmt.Errorf("%w: mto %s", outcome.ErrNotFound, mto)
	}

	res := assemble(mto, b, s.cls.Load())
	res.QueryTime = now
	res.DataSource = SourceLive
	s.cache.Set(mto, res)
	return res, nil
}

// persistentFresh decides whether the persistent tier may answer for this
// MTO: at least one sync run must have ever completed, the store must hold
// rows for the MTO, and the newest of those rows must be inside the
// freshness budget. It returns the oldest synced_at for age reporting.
func (s *Service) persistentFresh(ctx context.Context, mto string, now time.Time) (bool, time.Time, error) {
	ok, err := s.store.HasCompletedSync(ctx)
	if err != nil {
		return false, time.Time{}, err
	}
	if !ok {
		return false, time.Time{}, nil
	}

	f, err := s.store.MTOFreshness(ctx, mto)
	if err != nil {
		return false, time.Time{}, err
	}
	if f.Rows == 0 || now.Sub(f.Newest) > s.freshness {
		return false, time.Time{}, nil
	}
	return true, f.Oldest, nil
}

// --- Cache admin ---

// CacheStats returns a snapshot of the memory-cache counters.
func (s *Service) CacheStats() cache.Stats {
	return s.cache.Stats()
}

// ClearCache drops every cached result and returns the count dropped.
func (s *Service) ClearCache() int {
	return s.cache.Clear()
}

// InvalidateCache removes one MTO's cached result.
func (s *Service) InvalidateCache(mto string) bool {
	return s.cache.Invalidate(mto)
}

// ResetCacheStats zeroes counters and the frequency histogram, preserving
// cached entries.
func (s *Service) ResetCacheStats() {
	s.cache.ResetStats()
}

// HotMTOs returns the topN most-queried MTO numbers.
func (s *Service) HotMTOs(topN int) ([]cache.HotKey, error) {
	if topN < 1 {
		return nil, fmt.Errorf("%w: top_n must be >= 1", outcome.ErrValidation)
	}
	return s.cache.HotKeys(topN), nil
}

// WarmReport summarises a warm pass.
type WarmReport struct {
	Requested int `json:"requested"`
	Warmed    int `json:"warmed"`
	Failed    int `json:"failed"`
}

// WarmCache pre-assembles up to count MTOs. With useHot it walks the
// query-frequency histogram; otherwise it walks the most recently synced
// MTOs in the store. Failures are isolated per MTO.
func (s *Service) WarmCache(ctx context.Context, count int, useHot bool) (WarmReport, error) {
	if count < 1 {
		return WarmReport{}, fmt.Errorf("%w: count must be >= 1", outcome.ErrValidation)
	}

	var mtos []string
	if useHot {
		for _, hk := range s.cache.HotKeys(count) {
			mtos = append(mtos, hk.MTO)
		}
	} else {
		recent, err := s.store.RecentMTOs(ctx, count)
		if err != nil {
			return WarmReport{}, err
		}
		mtos = recent
	}

	rep := WarmReport{Requested: len(mtos)}
	for _, mto := range mtos {
		if _, err := s.GetStatus(ctx, mto, true); err != nil {
			log.Printf("cache warm: %s: %v", mto, err)
			rep.Failed++
			continue
		}
		rep.Warmed++
	}
	return rep, nil
}
