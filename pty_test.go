package sshcore

import (
	"context"
	"strings"
	"testing"
	"time"
)

// readUntil drains pty.Read until buf contains substr or the deadline
// expires, returning everything read so far.
func readUntil(t *testing.T, pty *PTY, substr string, timeout time.Duration) string {
	t.Helper()

	type chunk struct {
		data []byte
		ok   bool
	}
	chunks := make(chan chunk, 64)
	go func() {
		for {
			data, ok := pty.Read()
			chunks <- chunk{data, ok}
			if !ok {
				return
			}
		}
	}()

	var buf strings.Builder
	deadline := time.After(timeout)
	for {
		select {
		case c := <-chunks:
			if !c.ok {
				return buf.String()
			}
			buf.Write(c.data)
			if strings.Contains(buf.String(), substr) {
				return buf.String()
			}
		case <-deadline:
			return buf.String()
		}
	}
}

func TestPTYEchoesWrittenInput(t *testing.T) {
	sess := connectedSession(t)
	client, err := sess.transport()
	if err != nil {
		t.Fatalf("transport: %v", err)
	}

	ctx, cancel := context.WithCancel(testContext(t))
	defer cancel()

	pty, err := NewPTY(ctx, client, PTYOptions{Command: "cat"}, false, false)
	if err != nil {
		t.Fatalf("NewPTY: %v", err)
	}

	if err := pty.Write([]byte("hello-pty\n")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	out := readUntil(t, pty, "hello-pty", 5*time.Second)
	if !strings.Contains(out, "hello-pty") {
		t.Fatalf("output = %q, want it to contain %q", out, "hello-pty")
	}

	pty.Close()
	status := pty.Wait()
	if status.ToProcessCode() != 0 {
		t.Fatalf("exit code = %d, want 0", status.ToProcessCode())
	}
}

func TestPTYReleaseStopsActor(t *testing.T) {
	sess := connectedSession(t)
	client, err := sess.transport()
	if err != nil {
		t.Fatalf("transport: %v", err)
	}

	ctx, cancel := context.WithCancel(testContext(t))
	defer cancel()

	pty, err := NewPTY(ctx, client, PTYOptions{Command: "cat"}, false, false)
	if err != nil {
		t.Fatalf("NewPTY: %v", err)
	}

	pty.Release()
	status := pty.Wait()
	if status.ToProcessCode() != 255 {
		t.Fatalf("exit code = %d, want 255 (released before exit)", status.ToProcessCode())
	}
}

func TestPTYDetectsAltScreenTransitions(t *testing.T) {
	sess := connectedSession(t)
	client, err := sess.transport()
	if err != nil {
		t.Fatalf("transport: %v", err)
	}

	ctx, cancel := context.WithCancel(testContext(t))
	defer cancel()

	cmd := `printf '\033[?1049h'; sleep 0.2; printf '\033[?1049l'`
	pty, err := NewPTY(ctx, client, PTYOptions{Command: cmd}, true, false)
	if err != nil {
		t.Fatalf("NewPTY: %v", err)
	}

	watcher := pty.WatchMode()
	if watcher == nil {
		t.Fatal("WatchMode: got nil, want a watcher (mode detection was enabled)")
	}

	go func() {
		for {
			if _, ok := pty.Read(); !ok {
				return
			}
		}
	}()

	sawAlt := false
	deadline := time.After(5 * time.Second)
	for !sawAlt {
		select {
		case <-deadline:
			t.Fatal("timed out waiting for alt-screen transition")
		default:
		}
		evCtx, evCancel := context.WithTimeout(ctx, 5*time.Second)
		ev, err := watcher.NextEvent(evCtx)
		evCancel()
		if err != nil {
			t.Fatalf("NextEvent: %v", err)
		}
		if ev.Current.String() == "alt" {
			sawAlt = true
		}
	}

	pty.Wait()
}
