package sink

import (
	"strings"
	"testing"
)

func TestWithTimestampSuffixExtension(t *testing.T) {
	got := withTimestampSuffix("/tmp/out", ".csv")
	if !strings.HasPrefix(got, "/tmp/out_") {
		t.Errorf("expected prefix /tmp/out_, got %q", got)
	}
	if !strings.HasSuffix(got, ".csv") {
		t.Errorf("expected suffix .csv, got %q", got)
	}
}

func TestWithTimestampSuffixNoExtension(t *testing.T) {
	got := withTimestampSuffix("mytable", "")
	if !strings.HasPrefix(got, "mytable_") {
		t.Errorf("expected prefix mytable_, got %q", got)
	}
}

func TestRandomSuffixDiffers(t *testing.T) {
	a := randomSuffix("base")
	b := randomSuffix("base")
	if a == b {
		t.Skip("random collision, extremely unlikely but not a bug")
	}
	if !strings.HasPrefix(a, "base_") || !strings.HasPrefix(b, "base_") {
		t.Errorf("expected base_ prefix, got %q and %q", a, b)
	}
}
