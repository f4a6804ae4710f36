// Package termwatch parses the escape-sequence byte stream produced by a
// remote PTY and turns it into async-observable state: whether the remote
// program has switched to the alternate screen buffer, and what directory
// the remote shell last reported via OSC 7 / OSC 633 shell integration.
package termwatch

import (
	"context"
	"errors"
	"sync"
)

// ErrSessionEnded is returned by Watcher.Changed once the detector the
// watcher observes has been released by its writer.
var ErrSessionEnded = errors.New("termwatch: session ended")

// watch is a single-slot, overwrite broadcast channel: if multiple updates
// land before a reader drains the slot, the reader observes only the
// latest value. This is deliberately not a buffered queue - see DESIGN.md
// for why a history of every value is out of scope for this core.
type watch[T any] struct {
	mu      sync.Mutex
	current T
	ch      chan T
	closed  bool
}

func newWatch[T any](initial T) *watch[T] {
	return &watch[T]{
		current: initial,
		ch:      make(chan T, 1),
	}
}

// publish overwrites the slot with v, replacing any value a reader has not
// yet drained. Call only from the single writer goroutine.
func (w *watch[T]) publish(v T) {
	w.mu.Lock()
	w.current = v
	w.mu.Unlock()

	for {
		select {
		case w.ch <- v:
			return
		default:
		}
		select {
		case <-w.ch:
		default:
		}
	}
}

func (w *watch[T]) get() T {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}

// release marks the watch as having no more writers; pending and future
// Watcher.Changed calls return ErrSessionEnded.
func (w *watch[T]) release() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.closed = true
	close(w.ch)
}

func (w *watch[T]) isClosed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closed
}

// Watcher observes a detector's current value and computes transitions.
// Each watcher tracks its own "last seen" value independently, so two
// watchers that poll at different rates each see a correct previous/current
// pair for every transition they do observe.
type Watcher[T any] struct {
	w        *watch[T]
	lastSeen T
}

func newWatcher[T any](w *watch[T]) *Watcher[T] {
	return &Watcher[T]{w: w, lastSeen: w.get()}
}

// Current reads the latest value without suspending.
func (w *Watcher[T]) Current() T {
	return w.w.get()
}

// Changed suspends until the detector publishes a new value, then caches
// and returns it. Returns ErrSessionEnded once the writer side has
// released the detector.
func (w *Watcher[T]) Changed(ctx context.Context) (T, error) {
	select {
	case v, ok := <-w.w.ch:
		if !ok {
			var zero T
			return zero, ErrSessionEnded
		}
		w.lastSeen = v
		return v, nil
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Event is the {previous, current} pair reported by NextEvent.
type Event[T any] struct {
	Previous T
	Current  T
}

// NextEvent waits for the next transition and reports it relative to this
// watcher's own last-observed value, per-watcher - even a watcher that
// missed some intermediate writes reports its own Previous correctly.
func (w *Watcher[T]) NextEvent(ctx context.Context) (Event[T], error) {
	prev := w.lastSeen
	cur, err := w.Changed(ctx)
	if err != nil {
		return Event[T]{}, err
	}
	return Event[T]{Previous: prev, Current: cur}, nil
}

// WaitFor blocks until the watcher observes target as the current value,
// returning immediately if it already is.
func (w *Watcher[T]) WaitFor(ctx context.Context, target T, equal func(a, b T) bool) error {
	if equal(w.Current(), target) {
		return nil
	}
	for {
		v, err := w.Changed(ctx)
		if err != nil {
			return err
		}
		if equal(v, target) {
			return nil
		}
	}
}

// Broadcast is the exported form of the single-slot collapsing channel that
// backs ModeDetector and PWDDetector, reusable anywhere the same "current
// value plus N watchers" shape fits: the PTY actor's exit-status
// publication and the profile package's hot-reload both build on this
// instead of inventing a second broadcast primitive.
type Broadcast[T any] struct {
	w *watch[T]
}

// NewBroadcast returns a Broadcast seeded with initial.
func NewBroadcast[T any](initial T) *Broadcast[T] {
	return &Broadcast[T]{w: newWatch(initial)}
}

// Publish overwrites the slot with v. Call only from the single writer.
func (b *Broadcast[T]) Publish(v T) { b.w.publish(v) }

// Get reads the current value without suspending.
func (b *Broadcast[T]) Get() T { return b.w.get() }

// Release marks the broadcast as having no more writers; current and
// future watchers observe ErrSessionEnded from Changed.
func (b *Broadcast[T]) Release() { b.w.release() }

// Watch constructs a new Watcher over this broadcast.
func (b *Broadcast[T]) Watch() *Watcher[T] { return newWatcher(b.w) }
