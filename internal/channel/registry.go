// Package channel enforces the admission rules for registered channels:
// ids and names are unique and the number of channels is capped.
package channel

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/MrWong99/saidwhen/internal/store"
)

// DefaultMaxChannels is the channel ceiling used when none is configured.
const DefaultMaxChannels = 50

var (
	// ErrCapacityExceeded is returned when the registry already holds the
	// maximum number of channels.
	ErrCapacityExceeded = errors.New("channel: too many channels")

	// ErrConflictingChannel is returned when a channel with the same id or
	// name is already registered.
	ErrConflictingChannel = errors.New("channel: conflicting channel already exists")

	// ErrUnknownChannel is returned when no channel has the requested name.
	ErrUnknownChannel = errors.New("channel: unknown channel")
)

// ConflictError reports the registered channels that collide with a
// requested admission. It matches [ErrConflictingChannel] with errors.Is.
type ConflictError struct {
	Existing []store.Channel
}

func (e *ConflictError) Error() string {
	parts := make([]string, len(e.Existing))
	for i, c := range e.Existing {
		parts[i] = fmt.Sprintf("%s (%s)", c.Name, c.ID)
	}
	return fmt.Sprintf("%s: %s", ErrConflictingChannel, strings.Join(parts, ", "))
}

func (e *ConflictError) Unwrap() error { return ErrConflictingChannel }

// Registry admits and resolves channels on top of a [store.Store].
//
// Admissions are serialised by a mutex, which makes check-then-insert atomic
// within one process. Two processes sharing a store can still race; the
// store's unique keys then surface the loser as [ErrConflictingChannel].
type Registry struct {
	store store.Store
	max   int

	mu sync.Mutex
}

// Option configures a [Registry].
type Option func(*Registry)

// WithMaxChannels overrides [DefaultMaxChannels]. Values below 1 are ignored.
func WithMaxChannels(n int) Option {
	return func(r *Registry) {
		if n > 0 {
			r.max = n
		}
	}
}

// NewRegistry returns a registry backed by s.
func NewRegistry(s store.Store, opts ...Option) *Registry {
	r := &Registry{store: s, max: DefaultMaxChannels}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Max returns the channel ceiling.
func (r *Registry) Max() int { return r.max }

// Check reports whether a channel with id and name could be admitted right
// now. It returns [ErrCapacityExceeded] or a [*ConflictError].
func (r *Registry) Check(ctx context.Context, id, name string) error {
	n, err := r.store.CountChannels(ctx)
	if err != nil {
		return fmt.Errorf("channel: count: %w", err)
	}
	if n >= r.max {
		return fmt.Errorf("%w (%d/%d)", ErrCapacityExceeded, n, r.max)
	}

	existing, err := r.store.FindChannels(ctx, id, name)
	if err != nil {
		return fmt.Errorf("channel: find: %w", err)
	}
	if len(existing) > 0 {
		return &ConflictError{Existing: existing}
	}
	return nil
}

// Admit re-runs [Registry.Check] and persists the channel.
func (r *Registry) Admit(ctx context.Context, id, name string) (store.Channel, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.Check(ctx, id, name); err != nil {
		return store.Channel{}, err
	}

	ch := store.Channel{ID: id, Name: name, CreatedAt: time.Now().UTC()}
	if err := r.store.InsertChannel(ctx, ch); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return store.Channel{}, fmt.Errorf("%w: %w", ErrConflictingChannel, err)
		}
		return store.Channel{}, fmt.Errorf("channel: insert: %w", err)
	}
	return ch, nil
}

// Resolve returns the id of the channel registered under name.
func (r *Registry) Resolve(ctx context.Context, name string) (string, error) {
	ch, err := r.store.ChannelByName(ctx, name)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", fmt.Errorf("%w: %q", ErrUnknownChannel, name)
		}
		return "", fmt.Errorf("channel: resolve %q: %w", name, err)
	}
	return ch.ID, nil
}

// List returns all registered channels ordered by name.
func (r *Registry) List(ctx context.Context) ([]store.Channel, error) {
	chs, err := r.store.ListChannels(ctx)
	if err != nil {
		return nil, fmt.Errorf("channel: list: %w", err)
	}
	return chs, nil
}
