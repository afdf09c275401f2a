package pipelineframe

import (
	"context"
	"testing"
	"time"

	"flowline/pkg/frame"
)

func eagerOf(col string, vals ...any) frame.Frame {
	rows := make([]map[string]any, len(vals))
	for i, v := range vals {
		rows[i] = map[string]any{col: v}
	}
	return frame.NewEager(frame.Table{Columns: []string{col}, Rows: rows})
}

func TestBroadcastThenExtractObservesLatest(t *testing.T) {
	pf := New("prices", 4)
	bh := pf.BroadcastHandle("src")

	if err := bh.Broadcast(eagerOf("v", 1)); err != nil {
		t.Fatalf("broadcast: %v", err)
	}

	got := pf.Extract()
	if len(got.Table().Rows) != 1 || got.Table().Rows[0]["v"] != 1 {
		t.Fatalf("extract did not observe latest broadcast: %+v", got.Table())
	}

	clone, err := pf.ExtractClone()
	if err != nil {
		t.Fatalf("extract_clone: %v", err)
	}
	if len(clone.Table().Rows) != 1 || clone.Table().Rows[0]["v"] != 1 {
		t.Fatalf("extract_clone did not observe materialized latest: %+v", clone.Table())
	}
}

func TestTwoConsecutiveBroadcastsCacheReflectsLatest(t *testing.T) {
	pf := New("prices", 4)
	bh := pf.BroadcastHandle("src")

	_ = bh.Broadcast(eagerOf("v", 1))
	_ = bh.Broadcast(eagerOf("v", 2))

	clone, err := pf.ExtractClone()
	if err != nil {
		t.Fatalf("extract_clone: %v", err)
	}
	if clone.Table().Rows[0]["v"] != 2 {
		t.Fatalf("expected latest value 2, got %v", clone.Table().Rows[0]["v"])
	}
}

func TestListenReceivesReplace(t *testing.T) {
	pf := New("prices", 4)
	bh := pf.BroadcastHandle("src")
	lh := pf.ListenHandle("consumer")

	go func() { _ = bh.Broadcast(eagerOf("v", 1)) }()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	u, err := lh.Listen(ctx)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	if u.Kind != Replace {
		t.Fatalf("expected Replace, got %v", u.Kind)
	}
}

func TestForceListenNonBlocking(t *testing.T) {
	pf := New("prices", 4)
	lh := pf.ListenHandle("consumer")
	u := lh.ForceListen()
	if u.Kind != Replace {
		t.Fatalf("expected anonymous Replace, got %v", u.Kind)
	}
}

func TestAsyncBufferOneOverflowsOldest(t *testing.T) {
	pf := New("prices", 1)
	bh := pf.AsyncBroadcastHandle("src")
	bh.Broadcast(eagerOf("v", 1))
	bh.Broadcast(eagerOf("v", 2))

	clone, err := pf.ExtractClone()
	if err != nil {
		t.Fatalf("extract_clone: %v", err)
	}
	if clone.Table().Rows[0]["v"] != 2 {
		t.Fatalf("listener must observe at least the later value, got %v", clone.Table().Rows[0]["v"])
	}
}

func TestKillEmitsKillUpdate(t *testing.T) {
	pf := New("prices", 4)
	bh := pf.AsyncBroadcastHandle("src")
	lh := pf.AsyncListenHandle("consumer")
	bh.Kill()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	u, err := lh.Listen(ctx)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	if u.Kind != Kill {
		t.Fatalf("expected Kill, got %v", u.Kind)
	}
}
