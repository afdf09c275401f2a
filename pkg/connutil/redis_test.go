package connutil

import (
	"testing"

	"flowline/pkg/config"
)

func TestOpenRedisRejectsNonRedisKind(t *testing.T) {
	if _, err := OpenRedis(&config.ConnectionConfig{Kind: "postgres", Addr: "localhost:6379"}); err == nil {
		t.Fatal("expected an error for a non-redis connection kind")
	}
}

func TestOpenRedisRequiresAddr(t *testing.T) {
	if _, err := OpenRedis(&config.ConnectionConfig{Kind: "redis"}); err == nil {
		t.Fatal("expected an error for a redis connection with no addr")
	}
}

func TestCircuitOpensAfterFailureThreshold(t *testing.T) {
	rc := &ResilientRedis{cfg: RedisConfig{FailureThreshold: 3, SuccessThreshold: 2, OpenTimeout: 0}}
	for i := 0; i < 2; i++ {
		rc.recordFailure()
	}
	if rc.circuit != CircuitClosed {
		t.Fatalf("expected circuit still closed after 2 failures, got %v", rc.circuit)
	}
	rc.recordFailure()
	if rc.circuit != CircuitOpen {
		t.Fatalf("expected circuit open after 3 failures, got %v", rc.circuit)
	}
}

func TestCircuitHalfOpenRequiresSuccessThreshold(t *testing.T) {
	rc := &ResilientRedis{cfg: RedisConfig{FailureThreshold: 1, SuccessThreshold: 2, OpenTimeout: 0}}
	rc.recordFailure()
	if !rc.canExecute() {
		t.Fatal("expected canExecute true once OpenTimeout has elapsed (zero timeout)")
	}
	if rc.circuit != CircuitHalfOpen {
		t.Fatalf("expected half-open after canExecute re-probe, got %v", rc.circuit)
	}
	rc.recordSuccess()
	if rc.circuit != CircuitHalfOpen {
		t.Fatalf("expected still half-open after 1 of 2 successes, got %v", rc.circuit)
	}
	rc.recordSuccess()
	if rc.circuit != CircuitClosed {
		t.Fatalf("expected closed after success threshold met, got %v", rc.circuit)
	}
}
