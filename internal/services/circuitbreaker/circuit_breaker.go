package circuitbreaker

import (
	"context"
	"fmt"
	"strconv"
	"time"

	fiberlog "github.com/gofiber/fiber/v2/log"
	"github.com/redis/go-redis/v9"
)

// State is the breaker state for one model provider.
type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "Closed"
	case Open:
		return "Open"
	case HalfOpen:
		return "HalfOpen"
	default:
		return fmt.Sprintf("Unknown(%d)", int(s))
	}
}

// Config tunes a provider breaker.
type Config struct {
	FailureThreshold int
	SuccessThreshold int
	// Timeout is how long an Open breaker waits before probing HalfOpen.
	Timeout time.Duration
}

// DefaultConfig matches the provider defaults used across the engine.
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 5,
		SuccessThreshold: 3,
		Timeout:          30 * time.Second,
	}
}

const (
	keyPrefix = "cascade:breaker:"
	opTimeout = 1 * time.Second
)

// CircuitBreaker tracks failures of a single model provider in Redis so all
// engine instances share one view of provider health. A nil Redis client
// degrades to an always-closed breaker: availability filtering must never be
// the reason a request fails.
type CircuitBreaker struct {
	client   *redis.Client
	provider string
	config   Config
	prefix   string
}

// NewForProvider creates a breaker for one provider with default config.
func NewForProvider(client *redis.Client, provider string) *CircuitBreaker {
	return NewWithConfig(client, provider, DefaultConfig())
}

// NewWithConfig creates a breaker with explicit config.
func NewWithConfig(client *redis.Client, provider string, config Config) *CircuitBreaker {
	return &CircuitBreaker{
		client:   client,
		provider: provider,
		config:   config,
		prefix:   keyPrefix + provider + ":",
	}
}

func (cb *CircuitBreaker) stateKey() string    { return cb.prefix + "state" }
func (cb *CircuitBreaker) failuresKey() string { return cb.prefix + "failures" }
func (cb *CircuitBreaker) successKey() string  { return cb.prefix + "successes" }
func (cb *CircuitBreaker) openedAtKey() string { return cb.prefix + "opened_at" }

// CanExecute reports whether the provider may be invoked. Redis errors are
// logged and treated as available.
func (cb *CircuitBreaker) CanExecute() bool {
	if cb.client == nil {
		return true
	}
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	state, err := cb.state(ctx)
	if err != nil {
		fiberlog.Errorf("CircuitBreaker: %s state read failed, allowing execution: %v", cb.provider, err)
		return true
	}

	switch state {
	case Closed, HalfOpen:
		return true
	case Open:
		openedAt, err := cb.client.Get(ctx, cb.openedAtKey()).Int64()
		if err != nil {
			fiberlog.Errorf("CircuitBreaker: %s opened_at read failed: %v", cb.provider, err)
			return false
		}
		if time.Since(time.Unix(openedAt, 0)) > cb.config.Timeout {
			cb.setState(ctx, HalfOpen)
			return true
		}
		return false
	default:
		return false
	}
}

// RecordSuccess resets the failure count and, in HalfOpen, closes the
// breaker once enough probes succeed.
func (cb *CircuitBreaker) RecordSuccess() {
	if cb.client == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	state, err := cb.state(ctx)
	if err != nil {
		fiberlog.Errorf("CircuitBreaker: %s success not recorded: %v", cb.provider, err)
		return
	}

	pipe := cb.client.Pipeline()
	pipe.Set(ctx, cb.failuresKey(), 0, 0)
	successes := pipe.Incr(ctx, cb.successKey())
	if _, err := pipe.Exec(ctx); err != nil {
		fiberlog.Errorf("CircuitBreaker: %s success not recorded: %v", cb.provider, err)
		return
	}

	if state == HalfOpen && successes.Val() >= int64(cb.config.SuccessThreshold) {
		cb.setState(ctx, Closed)
		fiberlog.Infof("CircuitBreaker: %s closed after %d successful probes", cb.provider, successes.Val())
	}
}

// RecordFailure increments the failure count and opens the breaker when the
// threshold is reached. A failure during HalfOpen reopens immediately.
func (cb *CircuitBreaker) RecordFailure() {
	if cb.client == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	state, err := cb.state(ctx)
	if err != nil {
		fiberlog.Errorf("CircuitBreaker: %s failure not recorded: %v", cb.provider, err)
		return
	}

	failures, err := cb.client.Incr(ctx, cb.failuresKey()).Result()
	if err != nil {
		fiberlog.Errorf("CircuitBreaker: %s failure not recorded: %v", cb.provider, err)
		return
	}

	if state == HalfOpen || failures >= int64(cb.config.FailureThreshold) {
		cb.setState(ctx, Open)
		fiberlog.Warnf("CircuitBreaker: %s opened after %d failures", cb.provider, failures)
	}
}

// GetState returns the current state, Closed on any error.
func (cb *CircuitBreaker) GetState() State {
	if cb.client == nil {
		return Closed
	}
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	state, err := cb.state(ctx)
	if err != nil {
		return Closed
	}
	return state
}

// Reset forces the breaker back to Closed with zeroed counters.
func (cb *CircuitBreaker) Reset() {
	if cb.client == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	cb.setState(ctx, Closed)
	fiberlog.Infof("CircuitBreaker: %s reset", cb.provider)
}

func (cb *CircuitBreaker) state(ctx context.Context) (State, error) {
	raw, err := cb.client.Get(ctx, cb.stateKey()).Result()
	if err == redis.Nil {
		return Closed, nil
	}
	if err != nil {
		return Closed, fmt.Errorf("failed to get breaker state: %w", err)
	}
	stateInt, err := strconv.Atoi(raw)
	if err != nil {
		return Closed, fmt.Errorf("invalid breaker state %q: %w", raw, err)
	}
	return State(stateInt), nil
}

func (cb *CircuitBreaker) setState(ctx context.Context, state State) {
	pipe := cb.client.Pipeline()
	pipe.Set(ctx, cb.stateKey(), int(state), 0)
	pipe.Set(ctx, cb.successKey(), 0, 0)
	if state == Open {
		pipe.Set(ctx, cb.openedAtKey(), time.Now().Unix(), 0)
	}
	if state == Closed {
		pipe.Set(ctx, cb.failuresKey(), 0, 0)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		fiberlog.Errorf("CircuitBreaker: %s transition to %s failed: %v", cb.provider, state, err)
		return
	}
	fiberlog.Debugf("CircuitBreaker: %s transitioned to %s", cb.provider, state)
}
