package termwatch

import (
	"context"
	"testing"
	"time"
)

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestWatchCollapsesToLatest(t *testing.T) {
	w := newWatch(0)
	watcher := newWatcher(w)

	w.publish(1)
	w.publish(2)
	w.publish(3)

	ctx := testContext(t)
	got, err := watcher.Changed(ctx)
	if err != nil {
		t.Fatalf("Changed: %v", err)
	}
	if got != 3 {
		t.Fatalf("got %d, want 3 (only the latest value should survive)", got)
	}
}

func TestWatcherPerWatcherPrevious(t *testing.T) {
	w := newWatch("a")
	early := newWatcher(w)

	w.publish("b")

	late := newWatcher(w) // created after "b" was published, so its baseline is "b"
	w.publish("c")

	ctx := testContext(t)

	evEarly, err := early.NextEvent(ctx)
	if err != nil {
		t.Fatalf("NextEvent (early): %v", err)
	}
	if evEarly.Previous != "a" || evEarly.Current != "c" {
		t.Fatalf("early watcher: got %+v, want {a c}", evEarly)
	}

	evLate, err := late.NextEvent(ctx)
	if err != nil {
		t.Fatalf("NextEvent (late): %v", err)
	}
	if evLate.Previous != "b" || evLate.Current != "c" {
		t.Fatalf("late watcher: got %+v, want {b c}", evLate)
	}
}

func TestWatchReleaseEndsSession(t *testing.T) {
	w := newWatch(0)
	watcher := newWatcher(w)
	w.release()

	ctx := testContext(t)
	if _, err := watcher.Changed(ctx); err != ErrSessionEnded {
		t.Fatalf("got %v, want ErrSessionEnded", err)
	}
}

func TestWaitForReturnsImmediatelyWhenAlreadyTarget(t *testing.T) {
	w := newWatch(5)
	watcher := newWatcher(w)

	ctx := testContext(t)
	err := watcher.WaitFor(ctx, 5, func(a, b int) bool { return a == b })
	if err != nil {
		t.Fatalf("WaitFor: %v", err)
	}
}

func TestWaitForLoopsUntilTarget(t *testing.T) {
	w := newWatch(0)
	watcher := newWatcher(w)

	go func() {
		w.publish(1)
		w.publish(2)
		w.publish(5)
	}()

	ctx := testContext(t)
	err := watcher.WaitFor(ctx, 5, func(a, b int) bool { return a == b })
	if err != nil {
		t.Fatalf("WaitFor: %v", err)
	}
}
