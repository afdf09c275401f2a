package env

import "testing"

func TestSetAndGetRoundTrips(t *testing.T) {
	r := New()
	if err := r.Set(Pipeline, "nightly"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	v, ok := r.Get(Pipeline)
	if !ok || v != "nightly" {
		t.Errorf("expected (nightly, true), got (%q, %v)", v, ok)
	}
}

func TestSetRejectsUnrecognizedKey(t *testing.T) {
	r := New()
	if err := r.Set(Key("BOGUS"), "x"); err == nil {
		t.Fatal("expected error for unrecognized key")
	}
}

func TestGetMissingKeyReturnsFalse(t *testing.T) {
	r := New()
	if _, ok := r.Get(Runner); ok {
		t.Error("expected ok=false for a key never set")
	}
}

func TestReleaseRemovesOnlyOwnedKeys(t *testing.T) {
	r := New()
	if err := r.Set(ConfigDir, "/etc/flowline"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := r.Set(Runner, "nightly-runner"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	r.Release()

	if _, ok := r.Get(ConfigDir); ok {
		t.Error("expected ConfigDir cleared after Release")
	}
	if _, ok := r.Get(Runner); ok {
		t.Error("expected Runner cleared after Release")
	}
}

func TestReleaseIsIdempotent(t *testing.T) {
	r := New()
	r.Release()
	r.Release()
}
