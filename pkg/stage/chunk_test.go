package stage

import "testing"

func TestContiguousChunksBalancesWithinOne(t *testing.T) {
	chunks := ContiguousChunks(7, 3)
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	total := 0
	max, min := 0, 1<<30
	for _, c := range chunks {
		l := c.Len()
		total += l
		if l > max {
			max = l
		}
		if l < min {
			min = l
		}
	}
	if total != 7 {
		t.Fatalf("expected total 7, got %d", total)
	}
	if max-min > 1 {
		t.Fatalf("expected balance within 1, got max=%d min=%d", max, min)
	}
}

func TestContiguousChunksMaxThreadsExceedsOperators(t *testing.T) {
	chunks := ContiguousChunks(3, 10)
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks (one per operator), got %d", len(chunks))
	}
	for _, c := range chunks {
		if c.Len() != 1 {
			t.Fatalf("expected singleton chunks, got %d", c.Len())
		}
	}
}

func TestContiguousChunksContiguousAndOrdered(t *testing.T) {
	chunks := ContiguousChunks(10, 4)
	prevEnd := 0
	for _, c := range chunks {
		if c.Start != prevEnd {
			t.Fatalf("expected contiguous ranges, gap at %d", c.Start)
		}
		prevEnd = c.End
	}
	if prevEnd != 10 {
		t.Fatalf("expected ranges to cover 10, got %d", prevEnd)
	}
}

func TestContiguousChunksZeroOperators(t *testing.T) {
	if chunks := ContiguousChunks(0, 4); chunks != nil {
		t.Fatalf("expected nil chunks for 0 operators, got %v", chunks)
	}
}
