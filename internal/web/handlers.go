package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/mtogate/mtogate/internal/outcome"
	"github.com/mtogate/mtogate/internal/syncer"
	"github.com/mtogate/mtogate/internal/upstream"
)

// --- JSON Helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("writeJSON: encode error: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{"error": code, "message": message})
}

// writeOutcome maps domain error kinds onto HTTP statuses.
func writeOutcome(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, outcome.ErrValidation):
		writeError(w, http.StatusBadRequest, "validation_error", err.Error())
	case errors.Is(err, outcome.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, outcome.ErrSyncInProgress):
		writeError(w, http.StatusConflict, "sync_in_progress", err.Error())
	case errors.Is(err, upstream.ErrUnavailable):
		writeError(w, http.StatusServiceUnavailable, "upstream_unavailable", err.Error())
	case errors.Is(err, upstream.ErrQuery):
		writeError(w, http.StatusBadGateway, "upstream_query_error", err.Error())
	default:
		log.Printf("api: internal error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
	}
}

// requireJSON checks the Content-Type header and returns false (with a 415
// response) if it is not application/json.
func requireJSON(w http.ResponseWriter, r *http.Request) bool {
	ct := r.Header.Get("Content-Type")
	if ct == "" || !strings.HasPrefix(ct, "application/json") {
		writeError(w, http.StatusUnsupportedMediaType, "validation_error", "Content-Type must be application/json")
		return false
	}
	return true
}

// boolParam parses a query flag, defaulting when absent or malformed.
func boolParam(r *http.Request, name string, def bool) bool {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func intParam(r *http.Request, name string, def int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", name)
	}
	return n, nil
}

// --- Handlers ---

// handleHealth reports process liveness plus the upstream reachability.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"status":   "ok",
		"time":     time.Now().UTC().Format(time.RFC3339),
		"upstream": "ok",
	}
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()
	if err := s.pinger.Ping(ctx); err != nil {
		resp["status"] = "degraded"
		resp["upstream"] = "unavailable"
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleGetStatus returns the consolidated status view for one MTO.
// use_cache=false forces a live upstream fan-out.
func (s *Server) handleGetStatus(w http.ResponseWriter, r *http.Request) {
	mto := r.PathValue("mto")
	useCache := boolParam(r, "use_cache", true)

	res, err := s.svc.GetStatus(r.Context(), mto, useCache)
	if err != nil {
		writeOutcome(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleRelatedOrders returns the deduplicated bill-number tree for one MTO.
func (s *Server) handleRelatedOrders(w http.ResponseWriter, r *http.Request) {
	mto := r.PathValue("mto")

	res, err := s.svc.GetRelatedOrders(r.Context(), mto)
	if err != nil {
		writeOutcome(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type triggerSyncRequest struct {
	DaysBack  int  `json:"days_back"`
	ChunkDays int  `json:"chunk_days"`
	Force     bool `json:"force"`
}

// handleTriggerSync starts a background sync run and returns immediately.
func (s *Server) handleTriggerSync(w http.ResponseWriter, r *http.Request) {
	var req triggerSyncRequest
	if r.ContentLength > 0 {
		if !requireJSON(w, r) {
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "validation_error", "invalid JSON body")
			return
		}
	}

	if err := s.orch.Trigger(req.DaysBack, req.ChunkDays, req.Force); err != nil {
		writeOutcome(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
}

// handleSyncStatus returns the live progress record for the current or last
// run.
func (s *Server) handleSyncStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.orch.Progress())
}

// handleSyncHistory lists recent terminal runs, newest first.
func (s *Server) handleSyncHistory(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit", 20)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", err.Error())
		return
	}

	entries, err := s.orch.History(r.Context(), limit)
	if err != nil {
		writeOutcome(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"history": entries})
}

// handleGetSyncConfig returns the effective sync settings.
func (s *Server) handleGetSyncConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.orch.Settings())
}

// handleUpdateSyncConfig applies a partial settings update and returns the
// new effective settings.
func (s *Server) handleUpdateSyncConfig(w http.ResponseWriter, r *http.Request) {
	if !requireJSON(w, r) {
		return
	}
	var patch syncer.Patch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", "invalid JSON body")
		return
	}

	settings, err := s.orch.UpdateSettings(r.Context(), patch)
	if err != nil {
		writeOutcome(w, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

// --- Cache admin handlers ---

func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.CacheStats())
}

func (s *Server) handleCacheStatsReset(w http.ResponseWriter, r *http.Request) {
	s.svc.ResetCacheStats()
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

func (s *Server) handleCacheClear(w http.ResponseWriter, r *http.Request) {
	cleared := s.svc.ClearCache()
	writeJSON(w, http.StatusOK, map[string]int{"cleared": cleared})
}

type warmCacheRequest struct {
	Count  int  `json:"count"`
	UseHot bool `json:"use_hot"`
}

// handleCacheWarm pre-assembles MTOs into the memory cache.
func (s *Server) handleCacheWarm(w http.ResponseWriter, r *http.Request) {
	req := warmCacheRequest{Count: 10}
	if r.ContentLength > 0 {
		if !requireJSON(w, r) {
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "validation_error", "invalid JSON body")
			return
		}
	}

	report, err := s.svc.WarmCache(r.Context(), req.Count, req.UseHot)
	if err != nil {
		writeOutcome(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// handleCacheHot lists the most-queried MTOs by cache frequency.
func (s *Server) handleCacheHot(w http.ResponseWriter, r *http.Request) {
	top, err := intParam(r, "top", 10)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", err.Error())
		return
	}

	keys, err := s.svc.HotMTOs(top)
	if err != nil {
		writeOutcome(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"hot": keys})
}

// handleCacheInvalidate drops one MTO's cached result.
func (s *Server) handleCacheInvalidate(w http.ResponseWriter, r *http.Request) {
	mto := r.PathValue("mto")
	removed := s.svc.InvalidateCache(mto)
	writeJSON(w, http.StatusOK, map[string]bool{"removed": removed})
}
