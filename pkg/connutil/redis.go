// Package connutil builds resilient connections from a resolved
// config.ConnectionConfig entry: Redis, SQL drivers, Mongo, Elasticsearch
// (Kafka readers are built by pkg/source from the entry's broker list).
// The Redis client here
// uses a reconnect-loop-plus-circuit-breaker shape with no pub/sub
// subscription manager (no component in this engine needs channel
// fan-out through Redis), repurposed as the backing store for
// pkg/signal's optional durable kill-flag and as a plain cache client
// for "redis"-kind connections.
package connutil

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"flowline/pkg/errs"
)

// ConnState tracks whether the underlying Redis connection is currently up.
type ConnState int

const (
	StateDisconnected ConnState = iota
	StateConnected
	StateReconnecting
)

// CircuitState is a standard three-phase circuit breaker.
type CircuitState int

const (
	CircuitClosed CircuitState = iota
	CircuitOpen
	CircuitHalfOpen
)

// RedisConfig configures a ResilientRedis client.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int

	MaxRetries        int // 0 = unbounded
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier float64

	FailureThreshold int
	SuccessThreshold int
	OpenTimeout      time.Duration
}

// DefaultRedisConfig fills in the reconnect/circuit-breaker defaults this
// client uses out of the box.
func DefaultRedisConfig(addr, password string, db int) RedisConfig {
	return RedisConfig{
		Addr: addr, Password: password, DB: db,
		InitialBackoff: 100 * time.Millisecond, MaxBackoff: 30 * time.Second,
		BackoffMultiplier: 2.0, FailureThreshold: 5, SuccessThreshold: 2,
		OpenTimeout: 30 * time.Second,
	}
}

// ResilientRedis wraps *redis.Client with a background reconnect loop and
// a circuit breaker so callers get Unavailable errors instead of blocking
// on a down connection.
type ResilientRedis struct {
	cfg    RedisConfig
	client *redis.Client
	ctx    context.Context
	cancel context.CancelFunc

	stateMu sync.RWMutex
	state   ConnState

	circuitMu    sync.Mutex
	circuit      CircuitState
	failureCount int
	successCount int
	lastFailure  time.Time
}

// NewResilientRedis constructs a client and starts its background
// reconnect/health-check loops. The first connection attempt is
// synchronous; if it fails the loops keep retrying.
func NewResilientRedis(cfg RedisConfig) *ResilientRedis {
	ctx, cancel := context.WithCancel(context.Background())
	rc := &ResilientRedis{
		cfg: cfg, ctx: ctx, cancel: cancel,
		state: StateDisconnected, circuit: CircuitClosed,
	}
	rc.client = redis.NewClient(&redis.Options{
		Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB,
		DialTimeout: 5 * time.Second, ReadTimeout: 3 * time.Second, WriteTimeout: 3 * time.Second,
		PoolSize: 10, MinIdleConns: 2,
	})
	if err := rc.ping(); err == nil {
		rc.setState(StateConnected)
	} else {
		go rc.reconnectLoop()
	}
	go rc.healthCheckLoop()
	return rc
}

func (rc *ResilientRedis) ping() error {
	ctx, cancel := context.WithTimeout(rc.ctx, 5*time.Second)
	defer cancel()
	return rc.client.Ping(ctx).Err()
}

func (rc *ResilientRedis) setState(s ConnState) {
	rc.stateMu.Lock()
	rc.state = s
	rc.stateMu.Unlock()
}

// State reports the connection's current phase.
func (rc *ResilientRedis) State() ConnState {
	rc.stateMu.RLock()
	defer rc.stateMu.RUnlock()
	return rc.state
}

func (rc *ResilientRedis) reconnectLoop() {
	rc.setState(StateReconnecting)
	backoff := rc.cfg.InitialBackoff
	attempts := 0
	for {
		select {
		case <-rc.ctx.Done():
			return
		default:
		}
		attempts++
		if err := rc.ping(); err != nil {
			if rc.cfg.MaxRetries > 0 && attempts >= rc.cfg.MaxRetries {
				rc.setState(StateDisconnected)
				return
			}
			time.Sleep(backoff)
			backoff = time.Duration(float64(backoff) * rc.cfg.BackoffMultiplier)
			if backoff > rc.cfg.MaxBackoff {
				backoff = rc.cfg.MaxBackoff
			}
			continue
		}
		rc.setState(StateConnected)
		rc.resetCircuit()
		return
	}
}

func (rc *ResilientRedis) healthCheckLoop() {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-rc.ctx.Done():
			return
		case <-ticker.C:
			if rc.State() == StateConnected {
				if err := rc.ping(); err != nil {
					rc.recordFailure()
					rc.setState(StateDisconnected)
					go rc.reconnectLoop()
				}
			}
		}
	}
}

func (rc *ResilientRedis) recordFailure() {
	rc.circuitMu.Lock()
	defer rc.circuitMu.Unlock()
	rc.failureCount++
	rc.successCount = 0
	rc.lastFailure = time.Now()
	if rc.circuit == CircuitClosed && rc.failureCount >= rc.cfg.FailureThreshold {
		rc.circuit = CircuitOpen
	}
}

func (rc *ResilientRedis) recordSuccess() {
	rc.circuitMu.Lock()
	defer rc.circuitMu.Unlock()
	switch rc.circuit {
	case CircuitHalfOpen:
		rc.successCount++
		if rc.successCount >= rc.cfg.SuccessThreshold {
			rc.circuit = CircuitClosed
			rc.failureCount = 0
		}
	case CircuitClosed:
		rc.failureCount = 0
	}
}

func (rc *ResilientRedis) resetCircuit() {
	rc.circuitMu.Lock()
	defer rc.circuitMu.Unlock()
	rc.circuit = CircuitClosed
	rc.failureCount = 0
	rc.successCount = 0
}

func (rc *ResilientRedis) canExecute() bool {
	rc.circuitMu.Lock()
	defer rc.circuitMu.Unlock()
	switch rc.circuit {
	case CircuitOpen:
		if time.Since(rc.lastFailure) > rc.cfg.OpenTimeout {
			rc.circuit = CircuitHalfOpen
			return true
		}
		return false
	default:
		return true
	}
}

// Set stores a JSON-encoded value under key with the given expiration.
func (rc *ResilientRedis) Set(ctx context.Context, key string, value any, expiration time.Duration) error {
	if !rc.canExecute() || rc.State() != StateConnected {
		return errs.Connection("connutil.redis_set", "redis unavailable (state=%v)", rc.State())
	}
	data, err := json.Marshal(value)
	if err != nil {
		return errs.RawWrap("connutil.redis_set", err)
	}
	if err := rc.client.Set(ctx, key, data, expiration).Err(); err != nil {
		rc.recordFailure()
		return errs.ConnectionWrap("connutil.redis_set", err, "key %q", key)
	}
	rc.recordSuccess()
	return nil
}

// Get retrieves the raw stored value for key.
func (rc *ResilientRedis) Get(ctx context.Context, key string) (string, error) {
	if !rc.canExecute() || rc.State() != StateConnected {
		return "", errs.Connection("connutil.redis_get", "redis unavailable (state=%v)", rc.State())
	}
	v, err := rc.client.Get(ctx, key).Result()
	if err != nil {
		if err != redis.Nil {
			rc.recordFailure()
		}
		return "", errs.ConnectionWrap("connutil.redis_get", err, "key %q", key)
	}
	rc.recordSuccess()
	return v, nil
}

// Close releases background loops and the underlying client.
func (rc *ResilientRedis) Close() error {
	rc.cancel()
	return rc.client.Close()
}

// Healthy reports whether the connection is up and the circuit is not open.
func (rc *ResilientRedis) Healthy() bool {
	return rc.State() == StateConnected && rc.circuit != CircuitOpen
}
