package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mtogate/mtogate/internal/classify"
	"github.com/mtogate/mtogate/internal/config"
	"github.com/mtogate/mtogate/internal/status"
	"github.com/mtogate/mtogate/internal/store"
	"github.com/mtogate/mtogate/internal/syncer"
	"github.com/mtogate/mtogate/internal/upstream"
)

type fakeQuerier struct {
	mu    sync.Mutex
	rows  map[string][]upstream.Record
	delay time.Duration
}

func (f *fakeQuerier) Query(ctx context.Context, formID string, fields []string, filter string, offset, limit int) ([]upstream.Record, error) {
	f.mu.Lock()
	rows, delay := f.rows[formID], f.delay
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if offset > 0 {
		return nil, nil
	}
	return rows, nil
}

type fakePinger struct{ err error }

func (f *fakePinger) Ping(ctx context.Context) error { return f.err }

func testConfig(t *testing.T) config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Config{
		DBPath:       filepath.Join(dir, "test.db"),
		ProgressPath: filepath.Join(dir, "progress.json"),
		ListenPort:   0,

		Schedule: []string{"07:00"},
		DaysBack: 7,

		ManualMinDays: 1,
		ManualMaxDays: 365,

		ChunkDays:      7,
		ParallelChunks: 2,

		CacheMaxSize:     50,
		CacheTTLSeconds:  300,
		FreshnessSeconds: 3600,
	}
	cfg.Upstream.PageSize = 500
	cfg.Upstream.RequestTimeout = 10
	cfg.MaterialClasses = config.DefaultMaterialClasses()
	return cfg
}

func newTestServer(t *testing.T, q *fakeQuerier, pinger *fakePinger) *Server {
	t.Helper()
	cfg := testConfig(t)

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	cls, err := classify.New(cfg.MaterialClasses)
	if err != nil {
		t.Fatalf("classifier: %v", err)
	}
	svc := status.New(cfg, st, q, cls)
	orch := syncer.New(context.Background(), cfg, st, q)
	return New(cfg, svc, orch, pinger)
}

func doRequest(t *testing.T, srv *Server, method, path string, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func statusRows() map[string][]upstream.Record {
	return map[string][]upstream.Record{
		"PRD_MO": {{
			"FBillNo": "MO-001", "FMTONO": "AK2510034",
			"FMaterialId.FNumber": "07.01.001", "FQty": float64(10), "FStatus": "released",
		}},
		"PRD_PPBOM": {{
			"FMOBillNo": "MO-001", "FMtoNo": "AK2510034",
			"FMaterialID.FNumber": "05.02.003", "FMaterialType": float64(2),
			"FMustQty": float64(100), "FPickedQty": float64(50),
		}},
	}
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, &fakeQuerier{}, &fakePinger{})

	w := doRequest(t, srv, http.MethodGet, "/api/v1/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var body map[string]any
	decodeBody(t, w, &body)
	if body["status"] != "ok" || body["upstream"] != "ok" {
		t.Fatalf("body = %v", body)
	}
}

func TestHealthDegraded(t *testing.T) {
	srv := newTestServer(t, &fakeQuerier{}, &fakePinger{err: errors.New("down")})

	w := doRequest(t, srv, http.MethodGet, "/api/v1/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var body map[string]any
	decodeBody(t, w, &body)
	if body["status"] != "degraded" || body["upstream"] != "unavailable" {
		t.Fatalf("body = %v", body)
	}
}

func TestGetStatusEndpoint(t *testing.T) {
	srv := newTestServer(t, &fakeQuerier{rows: statusRows()}, &fakePinger{})

	w := doRequest(t, srv, http.MethodGet, "/api/v1/mto/AK2510034", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body)
	}
	var res status.Result
	decodeBody(t, w, &res)
	if res.Parent.MTO != "AK2510034" || res.DataSource != status.SourceLive {
		t.Fatalf("result = %+v", res)
	}
	if len(res.Children) == 0 {
		t.Fatal("expected child lines")
	}
}

func TestGetStatusInvalidMTO(t *testing.T) {
	srv := newTestServer(t, &fakeQuerier{}, &fakePinger{})

	w := doRequest(t, srv, http.MethodGet, "/api/v1/mto/x", "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	var body map[string]string
	decodeBody(t, w, &body)
	if body["error"] != "validation_error" {
		t.Fatalf("error code = %q", body["error"])
	}
}

func TestGetStatusNotFound(t *testing.T) {
	srv := newTestServer(t, &fakeQuerier{}, &fakePinger{})

	w := doRequest(t, srv, http.MethodGet, "/api/v1/mto/NOPE-404", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

func TestRelatedOrdersEndpoint(t *testing.T) {
	srv := newTestServer(t, &fakeQuerier{rows: statusRows()}, &fakePinger{})

	w := doRequest(t, srv, http.MethodGet, "/api/v1/mto/AK2510034/related", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body)
	}
	var res status.RelatedOrders
	decodeBody(t, w, &res)
	if len(res.Orders.ProductionOrders) != 1 {
		t.Fatalf("production orders = %+v", res.Orders.ProductionOrders)
	}
}

func TestTriggerSyncEndpoint(t *testing.T) {
	q := &fakeQuerier{rows: statusRows(), delay: 100 * time.Millisecond}
	srv := newTestServer(t, q, &fakePinger{})

	w := doRequest(t, srv, http.MethodPost, "/api/v1/sync", `{"days_back":7,"force":true}`)
	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d: %s", w.Code, w.Body)
	}

	// A second trigger while the first is running conflicts.
	w = doRequest(t, srv, http.MethodPost, "/api/v1/sync", `{"days_back":7,"force":true}`)
	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", w.Code)
	}

	deadline := time.Now().Add(5 * time.Second)
	for srv.orch.IsRunning() {
		if time.Now().After(deadline) {
			t.Fatal("sync never finished")
		}
		time.Sleep(10 * time.Millisecond)
	}

	w = doRequest(t, srv, http.MethodGet, "/api/v1/sync/status", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var p syncer.Progress
	decodeBody(t, w, &p)
	if p.Status != syncer.StatusCompleted {
		t.Fatalf("progress = %+v", p)
	}

	w = doRequest(t, srv, http.MethodGet, "/api/v1/sync/history?limit=5", "")
	if w.Code != http.StatusOK {
		t.Fatalf("history status = %d", w.Code)
	}
	var hist struct {
		History []store.HistoryEntry `json:"history"`
	}
	decodeBody(t, w, &hist)
	if len(hist.History) != 1 {
		t.Fatalf("history = %+v", hist.History)
	}
}

func TestTriggerSyncValidation(t *testing.T) {
	srv := newTestServer(t, &fakeQuerier{}, &fakePinger{})

	w := doRequest(t, srv, http.MethodPost, "/api/v1/sync", `{"days_back":9999}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestSyncConfigRoundTrip(t *testing.T) {
	srv := newTestServer(t, &fakeQuerier{}, &fakePinger{})

	w := doRequest(t, srv, http.MethodGet, "/api/v1/sync/config", "")
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}
	var s syncer.Settings
	decodeBody(t, w, &s)
	if s.DaysBack != 7 {
		t.Fatalf("settings = %+v", s)
	}

	w = doRequest(t, srv, http.MethodPut, "/api/v1/sync/config", `{"days_back":30,"auto_sync_enabled":true}`)
	if w.Code != http.StatusOK {
		t.Fatalf("put status = %d: %s", w.Code, w.Body)
	}
	decodeBody(t, w, &s)
	if s.DaysBack != 30 || !s.AutoSyncEnabled {
		t.Fatalf("updated settings = %+v", s)
	}

	w = doRequest(t, srv, http.MethodPut, "/api/v1/sync/config", `{"days_back":9999}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("invalid put status = %d, want 400", w.Code)
	}
}

func TestSyncConfigRequiresJSON(t *testing.T) {
	srv := newTestServer(t, &fakeQuerier{}, &fakePinger{})

	req := httptest.NewRequest(http.MethodPut, "/api/v1/sync/config", strings.NewReader("days_back=30"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("status = %d, want 415", w.Code)
	}
}

func TestCacheEndpoints(t *testing.T) {
	srv := newTestServer(t, &fakeQuerier{rows: statusRows()}, &fakePinger{})

	// Populate the cache with one entry.
	if w := doRequest(t, srv, http.MethodGet, "/api/v1/mto/AK2510034", ""); w.Code != http.StatusOK {
		t.Fatalf("warm request: %d", w.Code)
	}

	w := doRequest(t, srv, http.MethodGet, "/api/v1/cache/stats", "")
	if w.Code != http.StatusOK {
		t.Fatalf("stats status = %d", w.Code)
	}
	var stats struct {
		Size   int `json:"size"`
		Misses int `json:"misses"`
	}
	decodeBody(t, w, &stats)
	if stats.Size != 1 || stats.Misses != 1 {
		t.Fatalf("stats = %+v", stats)
	}

	w = doRequest(t, srv, http.MethodGet, "/api/v1/cache/hot?top=5", "")
	if w.Code != http.StatusOK {
		t.Fatalf("hot status = %d", w.Code)
	}

	w = doRequest(t, srv, http.MethodGet, "/api/v1/cache/hot?top=0", "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("hot top=0 status = %d, want 400", w.Code)
	}

	w = doRequest(t, srv, http.MethodDelete, "/api/v1/cache/AK2510034", "")
	if w.Code != http.StatusOK {
		t.Fatalf("invalidate status = %d", w.Code)
	}
	var removed map[string]bool
	decodeBody(t, w, &removed)
	if !removed["removed"] {
		t.Fatal("expected entry removal")
	}

	w = doRequest(t, srv, http.MethodPost, "/api/v1/cache/clear", "")
	if w.Code != http.StatusOK {
		t.Fatalf("clear status = %d", w.Code)
	}

	w = doRequest(t, srv, http.MethodPost, "/api/v1/cache/stats/reset", "")
	if w.Code != http.StatusOK {
		t.Fatalf("reset status = %d", w.Code)
	}
	decodeBody(t, w, &map[string]string{})
}

func TestCacheWarmEndpoint(t *testing.T) {
	srv := newTestServer(t, &fakeQuerier{rows: statusRows()}, &fakePinger{})

	w := doRequest(t, srv, http.MethodPost, "/api/v1/cache/warm", `{"count":0}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("count=0 status = %d, want 400", w.Code)
	}

	// Nothing synced yet: the recent-MTO walk is empty, the warm is a no-op.
	w = doRequest(t, srv, http.MethodPost, "/api/v1/cache/warm", `{"count":5}`)
	if w.Code != http.StatusOK {
		t.Fatalf("warm status = %d: %s", w.Code, w.Body)
	}
	var rep status.WarmReport
	decodeBody(t, w, &rep)
	if rep.Requested != 0 {
		t.Fatalf("report = %+v", rep)
	}
}
