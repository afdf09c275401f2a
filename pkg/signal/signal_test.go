package signal

import (
	"context"
	"testing"
	"time"

	"flowline/pkg/pipelineframe"
)

func TestSendReplaceReachesPropagator(t *testing.T) {
	s := New()
	p := s.NewPropagator()
	defer p.Close()

	s.SendReplace()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	u, err := p.Recv(ctx)
	if err != nil {
		t.Fatalf("Recv: %v", err)
	}
	if u.Kind != pipelineframe.Replace {
		t.Errorf("expected Replace, got %v", u.Kind)
	}
}

func TestSendReplaceFansOutToEveryPropagator(t *testing.T) {
	s := New()
	p1 := s.NewPropagator()
	p2 := s.NewPropagator()
	defer p1.Close()
	defer p2.Close()

	s.SendReplace()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if _, err := p1.Recv(ctx); err != nil {
		t.Fatalf("p1.Recv: %v", err)
	}
	if _, err := p2.Recv(ctx); err != nil {
		t.Fatalf("p2.Recv: %v", err)
	}
}

func TestRecvAfterCloseReturnsKill(t *testing.T) {
	s := New()
	p := s.NewPropagator()
	p.Close()

	u, err := p.Recv(context.Background())
	if err != nil {
		t.Fatalf("Recv: %v", err)
	}
	if u.Kind != pipelineframe.Kill {
		t.Errorf("expected Kill after Close, got %v", u.Kind)
	}
}

func TestOnSigtermFirstStrikeIsGraceful(t *testing.T) {
	s := New()
	warned := false
	forceExit := s.OnSigterm(func() { warned = true })
	if forceExit {
		t.Error("expected the first SIGTERM to not force exit")
	}
	if !warned {
		t.Error("expected onWarn to be called on the first strike")
	}
	if s.Current() != RequestedKill {
		t.Errorf("expected state RequestedKill, got %v", s.Current())
	}
}

func TestOnSigtermSecondStrikeForcesExit(t *testing.T) {
	s := New()
	s.OnSigterm(nil)
	if forceExit := s.OnSigterm(nil); !forceExit {
		t.Error("expected the second SIGTERM to force exit")
	}
}

func TestRestoreKillFlagWithNoRedisReportsFalse(t *testing.T) {
	s := New()
	if s.RestoreKillFlag(context.Background()) {
		t.Error("expected RestoreKillFlag to report false with no Redis backing")
	}
	if s.Current() != Alive {
		t.Errorf("expected state to remain Alive, got %v", s.Current())
	}
}

func TestNewDurableWithNilRedisBehavesLikeNew(t *testing.T) {
	s := NewDurable(nil, "flowline:kill_flag:test")
	if s.RestoreKillFlag(context.Background()) {
		t.Error("expected RestoreKillFlag to report false with a nil Redis client")
	}
	forceExit := s.OnSigterm(nil)
	if forceExit {
		t.Error("expected the first SIGTERM to not force exit even with a nil Redis client")
	}
	if s.Current() != RequestedKill {
		t.Errorf("expected state RequestedKill, got %v", s.Current())
	}
}
