package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mtogate/mtogate/internal/reader"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func qty(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestUpsertProductionOrdersIdempotent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	rows := []reader.ProductionOrder{
		{BillNo: "MO-001", MTO: "AK2510034", Workshop: "Assembly", MaterialCode: "07.01.001",
			MaterialName: "Widget", Qty: qty("100"), Status: "released"},
	}

	n, err := s.UpsertProductionOrders(ctx, rows, time.Now())
	if err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	if n != 1 {
		t.Fatalf("first upsert wrote %d rows, want 1", n)
	}

	// Same bill again with a changed quantity must update in place.
	rows[0].Qty = qty("120")
	if _, err := s.UpsertProductionOrders(ctx, rows, time.Now()); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	got, err := s.ProductionOrdersByMTO(ctx, "AK2510034")
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d rows, want 1 (conflict key must dedupe)", len(got))
	}
	if !got[0].Qty.Equal(qty("120")) {
		t.Fatalf("qty = %s, want 120", got[0].Qty)
	}
}

func TestUpsertBOMVariantKey(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	rows := []reader.ProductionBOM{
		{MOBillNo: "MO-001", MTO: "AK2510034", MaterialCode: "05.02.003", AuxPropID: 0,
			MaterialType: 2, NeedQty: qty("50"), PickedQty: qty("50")},
		{MOBillNo: "MO-001", MTO: "AK2510034", MaterialCode: "05.02.003", AuxPropID: 7,
			MaterialType: 2, NeedQty: qty("30"), PickedQty: qty("0")},
	}
	if _, err := s.UpsertProductionBOMs(ctx, rows, time.Now()); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	got, err := s.ProductionBOMsByMTO(ctx, "AK2510034")
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d rows, want 2 (aux id is part of the key)", len(got))
	}
}

func TestMTOFreshness(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	f, err := s.MTOFreshness(ctx, "AK2510034")
	if err != nil {
		t.Fatalf("freshness on empty store: %v", err)
	}
	if f.Rows != 0 {
		t.Fatalf("rows = %d on empty store, want 0", f.Rows)
	}

	old := time.Now().Add(-2 * time.Hour)
	recent := time.Now().Add(-5 * time.Minute)

	if _, err := s.UpsertProductionOrders(ctx, []reader.ProductionOrder{
		{BillNo: "MO-001", MTO: "AK2510034", MaterialCode: "07.01.001", Qty: qty("1")},
	}, old); err != nil {
		t.Fatalf("upsert orders: %v", err)
	}
	if _, err := s.UpsertSalesOrders(ctx, []reader.SalesOrder{
		{BillNo: "SO-001", MTO: "AK2510034", MaterialCode: "07.01.001", Qty: qty("1")},
	}, recent); err != nil {
		t.Fatalf("upsert sales orders: %v", err)
	}

	f, err = s.MTOFreshness(ctx, "AK2510034")
	if err != nil {
		t.Fatalf("freshness: %v", err)
	}
	if f.Rows != 2 {
		t.Fatalf("rows = %d, want 2", f.Rows)
	}
	if !f.Oldest.Before(f.Newest) {
		t.Fatalf("oldest %v should precede newest %v", f.Oldest, f.Newest)
	}
	if d := f.Newest.Sub(recent.UTC()); d < -time.Second || d > time.Second {
		t.Fatalf("newest %v not near %v", f.Newest, recent)
	}
}

func TestSyncHistory(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	ok, err := s.HasCompletedSync(ctx)
	if err != nil {
		t.Fatalf("HasCompletedSync: %v", err)
	}
	if ok {
		t.Fatal("no run recorded yet")
	}

	started := time.Now().Add(-time.Minute)
	msg := "chunk 3 failed"
	entries := []HistoryEntry{
		{RunID: "r1", StartedAt: started, FinishedAt: started.Add(10 * time.Second), Status: "failed", DaysBack: 90, ErrorMessage: &msg},
		{RunID: "r2", StartedAt: started.Add(20 * time.Second), FinishedAt: started.Add(30 * time.Second), Status: "completed", DaysBack: 90, RecordsSynced: 1234},
	}
	for _, e := range entries {
		if _, err := s.AppendSyncHistory(ctx, e); err != nil {
			t.Fatalf("append %s: %v", e.RunID, err)
		}
	}

	ok, err = s.HasCompletedSync(ctx)
	if err != nil {
		t.Fatalf("HasCompletedSync: %v", err)
	}
	if !ok {
		t.Fatal("completed run should flip HasCompletedSync")
	}

	got, err := s.ListSyncHistory(ctx, 10)
	if err != nil {
		t.Fatalf("ListSyncHistory: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d entries, want 2", len(got))
	}
	if got[0].RunID != "r2" {
		t.Fatalf("newest first: got %s", got[0].RunID)
	}
	if got[1].ErrorMessage == nil || *got[1].ErrorMessage != msg {
		t.Fatalf("error message lost: %v", got[1].ErrorMessage)
	}

	got, err = s.ListSyncHistory(ctx, 1)
	if err != nil {
		t.Fatalf("ListSyncHistory limit: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("limit ignored: got %d entries", len(got))
	}
}

func TestProgressSnapshotRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	snap, err := s.LoadProgressSnapshot(ctx)
	if err != nil {
		t.Fatalf("load on empty store: %v", err)
	}
	if snap != "" {
		t.Fatalf("expected empty snapshot, got %q", snap)
	}

	if err := s.SaveProgressSnapshot(ctx, `{"status":"running"}`); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := s.SaveProgressSnapshot(ctx, `{"status":"completed"}`); err != nil {
		t.Fatalf("overwrite: %v", err)
	}

	snap, err = s.LoadProgressSnapshot(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if snap != `{"status":"completed"}` {
		t.Fatalf("snapshot = %q", snap)
	}
}

func TestConfigRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	v, err := s.GetConfig(ctx, "missing", "fallback")
	if err != nil {
		t.Fatalf("get missing: %v", err)
	}
	if v != "fallback" {
		t.Fatalf("got %q, want fallback", v)
	}

	if err := s.SetConfig(ctx, "sync.settings", "v1"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := s.SetConfig(ctx, "sync.settings", "v2"); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	v, err = s.GetConfig(ctx, "sync.settings", "")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if v != "v2" {
		t.Fatalf("got %q, want v2", v)
	}
}

func TestRecentMTOs(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	now := time.Now()
	batches := []struct {
		mto string
		at  time.Time
	}{
		{"MTO-OLD", now.Add(-3 * time.Hour)},
		{"MTO-MID", now.Add(-2 * time.Hour)},
		{"MTO-NEW", now.Add(-1 * time.Hour)},
	}
	for i, b := range batches {
		rows := []reader.ProductionOrder{
			{BillNo: b.mto + "-MO", MTO: b.mto, MaterialCode: "07.01.001", Qty: qty("1")},
		}
		if _, err := s.UpsertProductionOrders(ctx, rows, b.at); err != nil {
			t.Fatalf("upsert %d: %v", i, err)
		}
	}

	got, err := s.RecentMTOs(ctx, 2)
	if err != nil {
		t.Fatalf("RecentMTOs: %v", err)
	}
	if len(got) != 2 || got[0] != "MTO-NEW" || got[1] != "MTO-MID" {
		t.Fatalf("got %v, want [MTO-NEW MTO-MID]", got)
	}
}
