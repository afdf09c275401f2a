package registry

import (
	"testing"

	"flowline/pkg/frame"
)

func TestWithResultsDedupesNames(t *testing.T) {
	r := WithResults([]string{"a", "b", "a"}, 4)
	names := r.Names()
	if len(names) != 2 || names[0] != "a" || names[1] != "b" {
		t.Errorf("expected deduped [a b], got %v", names)
	}
}

func TestInsertAndExtractRoundTrip(t *testing.T) {
	r := WithResults([]string{"rows"}, 4)
	t0 := frame.NewEager(frame.Table{Columns: []string{"id"}, Rows: []map[string]any{{"id": 1}}})

	if err := r.Insert("rows", t0); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	got, err := r.Extract("rows")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(got.Table().Rows) != 1 {
		t.Errorf("expected 1 row, got %d", len(got.Table().Rows))
	}
}

func TestExtractUnknownNameErrors(t *testing.T) {
	r := WithResults([]string{"rows"}, 4)
	if _, err := r.Extract("missing"); err == nil {
		t.Fatal("expected an error for an unknown frame name")
	}
}

func TestGetBroadcastUnknownNameErrors(t *testing.T) {
	r := WithResults(nil, 4)
	if _, err := r.GetBroadcast("rows", "stage-a"); err == nil {
		t.Fatal("expected an error for an unknown frame name")
	}
}

func TestCloseDoesNotPanicOnEmptyRegistry(t *testing.T) {
	r := WithResults([]string{"a", "b"}, 4)
	r.Close()
}
