// Package signal implements process-wide Signal State: a multi-consumer
// async channel carrying Replace/Kill Update Messages, with an OS SIGTERM
// bridge that turns a first signal into a graceful Kill broadcast and a
// second into immediate exit. Each Source Group obtains its own
// independent receiver ("signal propagator") when its async execution
// starts, a
// per-consumer mailbox queue fanned out to many subscribers instead of
// one.
package signal

import (
	"context"
	"sync"
	"time"

	"flowline/pkg/connutil"
	"flowline/pkg/pipelineframe"
)

// durableKillTTL bounds how long a persisted kill-flag survives in
// Redis; a runner that never restarts to consume it shouldn't leave a
// stale flag behind forever.
const durableKillTTL = 24 * time.Hour

// State tracks the two-strike SIGTERM protocol.
type State int

const (
	Alive State = iota
	RequestedKill
)

// SignalState is the process-wide fan-out broadcaster.
type SignalState struct {
	mu      sync.Mutex
	subs    map[int]chan pipelineframe.Update
	nextID  int
	state   State
	stateMu sync.Mutex

	// redis and redisKey back an optional durable kill-flag: when set,
	// OnSigterm's first strike also persists the request so a runner
	// that crashes mid-shutdown can restore it with RestoreKillFlag on
	// the next start instead of silently forgetting a pending kill.
	redis    *connutil.ResilientRedis
	redisKey string
}

// New constructs an empty SignalState with no durable kill-flag backing.
func New() *SignalState {
	return &SignalState{subs: make(map[int]chan pipelineframe.Update)}
}

// NewDurable constructs a SignalState whose SIGTERM kill request is also
// persisted to Redis under key, so a restart can recover an
// in-flight shutdown with RestoreKillFlag instead of resuming as if
// nothing had happened. rc may be nil, in which case this behaves
// exactly like New.
func NewDurable(rc *connutil.ResilientRedis, key string) *SignalState {
	return &SignalState{subs: make(map[int]chan pipelineframe.Update), redis: rc, redisKey: key}
}

// RestoreKillFlag checks the durable kill-flag, if one is configured, and
// if a prior process left it set, transitions straight to RequestedKill
// and broadcasts Kill to every propagator registered so far. It reports
// whether a pending kill was found. A nil Redis backing (plain New) or
// an unavailable Redis connection reports false with no error: the
// durable flag is an optional accelerant, not a requirement for
// correctness.
func (s *SignalState) RestoreKillFlag(ctx context.Context) bool {
	if s.redis == nil {
		return false
	}
	v, err := s.redis.Get(ctx, s.redisKey)
	if err != nil || v == "" {
		return false
	}
	s.stateMu.Lock()
	alreadyRequested := s.state == RequestedKill
	s.state = RequestedKill
	s.stateMu.Unlock()
	if !alreadyRequested {
		s.SendTerminate()
	}
	return true
}

// Propagator is a per-source-group receiver of the process-wide signal
// channel; it is never shared between Source Groups.
type Propagator struct {
	id int
	ch chan pipelineframe.Update
	s  *SignalState
}

// NewPropagator registers a new independent receiver.
func (s *SignalState) NewPropagator() *Propagator {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	ch := make(chan pipelineframe.Update, 16)
	s.subs[id] = ch
	return &Propagator{id: id, ch: ch, s: s}
}

// Recv blocks for the next Replace or Kill.
func (p *Propagator) Recv(ctx context.Context) (pipelineframe.Update, error) {
	select {
	case u, ok := <-p.ch:
		if !ok {
			return pipelineframe.Update{Kind: pipelineframe.Kill}, nil
		}
		return u, nil
	case <-ctx.Done():
		return pipelineframe.Update{}, ctx.Err()
	}
}

// Close unregisters the propagator.
func (p *Propagator) Close() {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	if ch, ok := p.s.subs[p.id]; ok {
		delete(p.s.subs, p.id)
		close(ch)
	}
}

func (s *SignalState) broadcast(u pipelineframe.Update) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- u:
		default:
			// overflow: drop oldest to make room, never block the sender
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- u:
			default:
			}
		}
	}
}

// SendReplace is the only producer of Replace events.
func (s *SignalState) SendReplace() {
	s.broadcast(pipelineframe.Update{Kind: pipelineframe.Replace})
}

// SendTerminate is the only producer of Kill events.
func (s *SignalState) SendTerminate() {
	s.broadcast(pipelineframe.Update{Kind: pipelineframe.Kill})
}

// Current reports the SIGTERM state machine's current phase.
func (s *SignalState) Current() State {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.state
}

// OnSigterm advances the Alive → RequestedKill → (forced exit) state
// machine. The first call sends a Kill and returns false (graceful);
// the second call returns true, signaling the caller to exit
// immediately. onWarn, if non-nil, is invoked with the first strike so
// the runner can log it through its own logger.
func (s *SignalState) OnSigterm(onWarn func()) (forceExit bool) {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	switch s.state {
	case Alive:
		s.state = RequestedKill
		if onWarn != nil {
			onWarn()
		}
		if s.redis != nil {
			// Best-effort: a down Redis must never block termination.
			_ = s.redis.Set(context.Background(), s.redisKey, true, durableKillTTL)
		}
		s.SendTerminate()
		return false
	default:
		return true
	}
}
