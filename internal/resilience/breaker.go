// Package resilience provides a circuit breaker for calls to a remote
// service that may start throttling or failing for a while.
//
// A [Breaker] is closed while calls succeed. After a run of consecutive
// failures it opens and rejects calls with [ErrCircuitOpen] until the
// cooldown has passed. It then lets a single probe through: a successful
// probe closes it again, a failed one restarts the cooldown.
package resilience

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrCircuitOpen is returned by [Breaker.Do] while calls are rejected.
var ErrCircuitOpen = errors.New("resilience: circuit open")

// Defaults used by [New].
const (
	DefaultThreshold = 5
	DefaultCooldown  = 30 * time.Second
)

// State is the operating mode of a [Breaker].
type State int

const (
	// StateClosed forwards every call.
	StateClosed State = iota

	// StateOpen rejects every call until the cooldown has passed.
	StateOpen

	// StateHalfOpen forwards one probe call at a time.
	StateHalfOpen
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Breaker is a three-state circuit breaker. It is safe for concurrent use.
type Breaker struct {
	name      string
	threshold int
	cooldown  time.Duration
	isFailure func(error) bool
	now       func() time.Time

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
	probing  bool
}

// Option configures a [Breaker].
type Option func(*Breaker)

// WithThreshold sets the number of consecutive failures that opens the
// breaker. Non-positive values keep the default.
func WithThreshold(n int) Option {
	return func(b *Breaker) {
		if n > 0 {
			b.threshold = n
		}
	}
}

// WithCooldown sets how long the breaker stays open. Non-positive values
// keep the default.
func WithCooldown(d time.Duration) Option {
	return func(b *Breaker) {
		if d > 0 {
			b.cooldown = d
		}
	}
}

// WithFailureFilter decides which errors count as failures. Errors it
// rejects count as successes: the remote answered, just not favourably.
// By default every non-nil error is a failure.
func WithFailureFilter(f func(error) bool) Option {
	return func(b *Breaker) {
		if f != nil {
			b.isFailure = f
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(b *Breaker) {
		if now != nil {
			b.now = now
		}
	}
}

// New returns a closed breaker. name appears in log messages.
func New(name string, opts ...Option) *Breaker {
	b := &Breaker{
		name:      name,
		threshold: DefaultThreshold,
		cooldown:  DefaultCooldown,
		isFailure: func(err error) bool { return err != nil },
		now:       time.Now,
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

// Do runs fn unless the breaker rejects the call. A call abandoned because
// ctx ended neither counts as a failure nor as a success.
func (b *Breaker) Do(ctx context.Context, fn func(context.Context) error) error {
	probe, err := b.acquire()
	if err != nil {
		return err
	}
	err = fn(ctx)

	b.mu.Lock()
	defer b.mu.Unlock()
	if probe {
		b.probing = false
	}
	switch {
	case err != nil && ctx.Err() != nil:
		// Abandoned.
	case b.isFailure(err):
		b.failure(probe)
	default:
		b.success(probe)
	}
	return err
}

func (b *Breaker) acquire() (probe bool, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateOpen:
		if b.now().Sub(b.openedAt) < b.cooldown {
			return false, ErrCircuitOpen
		}
		b.transition(StateHalfOpen)
		fallthrough
	case StateHalfOpen:
		if b.probing {
			return false, ErrCircuitOpen
		}
		b.probing = true
		return true, nil
	}
	return false, nil
}

// failure must be called with mu held.
func (b *Breaker) failure(probe bool) {
	if probe || b.state == StateHalfOpen {
		b.openedAt = b.now()
		b.transition(StateOpen)
		return
	}
	b.failures++
	if b.failures >= b.threshold {
		b.openedAt = b.now()
		b.transition(StateOpen)
	}
}

// success must be called with mu held.
func (b *Breaker) success(probe bool) {
	b.failures = 0
	if probe {
		b.transition(StateClosed)
	}
}

// transition must be called with mu held.
func (b *Breaker) transition(to State) {
	if b.state == to {
		return
	}
	from := b.state
	b.state = to
	if to == StateClosed {
		b.failures = 0
	}
	log := slog.With("breaker", b.name, "from", from.String(), "to", to.String())
	if to == StateOpen {
		log.Warn("circuit breaker opened", "cooldown", b.cooldown)
		return
	}
	log.Info("circuit breaker state changed")
}

// State returns the current state. An open breaker whose cooldown has
// passed reports [StateHalfOpen]; the transition itself happens on the
// next call.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateOpen && b.now().Sub(b.openedAt) >= b.cooldown {
		return StateHalfOpen
	}
	return b.state
}

// Reset closes the breaker and clears the failure count.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.probing = false
	b.transition(StateClosed)
	b.failures = 0
}
