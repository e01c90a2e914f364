package bus

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/emberforge/scriptflow"
	"github.com/emberforge/scriptflow/interp"
)

func newTestSQLiteStore(t *testing.T, cfg SQLiteStoreConfig) *SQLiteEventStore {
	t.Helper()
	if cfg.DSN == "" {
		cfg.DSN = filepath.Join(t.TempDir(), "events.db")
	}
	store, err := NewSQLiteEventStore(cfg)
	if err != nil {
		t.Fatalf("NewSQLiteEventStore: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	})
	return store
}

func TestSQLiteEventStore_RoundTrip(t *testing.T) {
	store := newTestSQLiteStore(t, SQLiteStoreConfig{})
	ctx := context.Background()

	in := interp.Event{
		Kind:     interp.EventNodeExecuted,
		RunID:    "run-1",
		ChainID:  "chain-1",
		GraphID:  "gate-graph",
		NodeID:   "check",
		NodeKind: "HasFlag",
		Category: scriptflow.CategoryCondition,
		Tick:     4,
		Clock:    64 * time.Millisecond,
		Time:     time.Date(2025, 6, 1, 12, 0, 0, 123456789, time.UTC),
		Payload:  map[string]any{"result": true},
		Seq:      9,
	}
	if err := store.Append(ctx, in); err != nil {
		t.Fatalf("Append: %v", err)
	}

	got, err := store.List(ctx, "run-1", 0, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("len = %d, want 1", len(got))
	}

	out := got[0]
	if out.Kind != in.Kind || out.RunID != in.RunID || out.ChainID != in.ChainID {
		t.Errorf("identity fields = %+v", out)
	}
	if out.NodeID != "check" || out.NodeKind != "HasFlag" || out.Category != scriptflow.CategoryCondition {
		t.Errorf("node fields = %q/%q/%q", out.NodeID, out.NodeKind, out.Category)
	}
	if out.Tick != 4 || out.Clock != 64*time.Millisecond || out.Seq != 9 {
		t.Errorf("counters = tick %d clock %v seq %d", out.Tick, out.Clock, out.Seq)
	}
	if !out.Time.Equal(in.Time) {
		t.Errorf("Time = %v, want %v", out.Time, in.Time)
	}
	if result, _ := out.Payload["result"].(bool); !result {
		t.Errorf("payload = %v", out.Payload)
	}
}

func TestSQLiteEventStore_ListAfterSeqAndLimit(t *testing.T) {
	store := newTestSQLiteStore(t, SQLiteStoreConfig{})
	seedStore(t, store, "run", 5)
	ctx := context.Background()

	got, err := store.List(ctx, "run", 2, 2)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 2 || got[0].Seq != 3 || got[1].Seq != 4 {
		t.Errorf("List(after 2, limit 2) seqs = %v", seqsOf(got))
	}
}

func TestSQLiteEventStore_ListTicks(t *testing.T) {
	store := newTestSQLiteStore(t, SQLiteStoreConfig{})
	ctx := context.Background()
	for seq := uint64(1); seq <= 6; seq++ {
		e := mkEvent("run", seq)
		e.Tick = (seq + 1) / 2
		if err := store.Append(ctx, e); err != nil {
			t.Fatalf("Append seq %d: %v", seq, err)
		}
	}

	got, err := store.ListTicks(ctx, "run", 2, 3)
	if err != nil {
		t.Fatalf("ListTicks: %v", err)
	}
	if len(got) != 4 || got[0].Seq != 3 || got[3].Seq != 6 {
		t.Errorf("ListTicks(2, 3) seqs = %v, want [3 4 5 6]", seqsOf(got))
	}
}

func TestSQLiteEventStore_LatestSeq(t *testing.T) {
	store := newTestSQLiteStore(t, SQLiteStoreConfig{})
	ctx := context.Background()

	if seq, err := store.LatestSeq(ctx, "run"); err != nil || seq != 0 {
		t.Errorf("LatestSeq on empty store = %d, %v; want 0, nil", seq, err)
	}
	seedStore(t, store, "run", 3)
	if seq, err := store.LatestSeq(ctx, "run"); err != nil || seq != 3 {
		t.Errorf("LatestSeq = %d, %v; want 3, nil", seq, err)
	}
}

func TestSQLiteEventStore_RunIDs(t *testing.T) {
	store := newTestSQLiteStore(t, SQLiteStoreConfig{})
	seedStore(t, store, "zeta", 1)
	seedStore(t, store, "alpha", 1)

	ids, err := store.RunIDs(context.Background())
	if err != nil {
		t.Fatalf("RunIDs: %v", err)
	}
	if len(ids) != 2 || ids[0] != "alpha" || ids[1] != "zeta" {
		t.Errorf("RunIDs = %v, want [alpha zeta]", ids)
	}
}

func TestSQLiteEventStore_PruneByCount(t *testing.T) {
	store := newTestSQLiteStore(t, SQLiteStoreConfig{RetentionCount: 2})
	seedStore(t, store, "run", 5)
	ctx := context.Background()

	if err := store.Prune(ctx); err != nil {
		t.Fatalf("Prune: %v", err)
	}

	got, err := store.List(ctx, "run", 0, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 2 || got[0].Seq != 4 || got[1].Seq != 5 {
		t.Errorf("after prune seqs = %v, want [4 5]", seqsOf(got))
	}
}

func TestSQLiteEventStore_PruneByAge(t *testing.T) {
	store := newTestSQLiteStore(t, SQLiteStoreConfig{RetentionAge: time.Hour})
	ctx := context.Background()

	old := mkEvent("run", 1)
	old.Time = time.Now().Add(-2 * time.Hour)
	fresh := mkEvent("run", 2)
	fresh.Time = time.Now()
	if err := store.Append(ctx, old); err != nil {
		t.Fatalf("Append old: %v", err)
	}
	if err := store.Append(ctx, fresh); err != nil {
		t.Fatalf("Append fresh: %v", err)
	}

	if err := store.Prune(ctx); err != nil {
		t.Fatalf("Prune: %v", err)
	}

	got, err := store.List(ctx, "run", 0, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 1 || got[0].Seq != 2 {
		t.Errorf("after prune seqs = %v, want [2]", seqsOf(got))
	}
}

func seqsOf(events []interp.Event) []uint64 {
	var out []uint64
	for _, e := range events {
		out = append(out, e.Seq)
	}
	return out
}
