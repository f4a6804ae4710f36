package sshcore

import (
	"context"
	"log/slog"
	"os"
	"sync"

	"golang.org/x/term"
)

// RunOptions configures the interactive runner.
type RunOptions struct {
	// RawMode puts the local terminal into raw mode for the duration of
	// the session and guarantees it is restored on every exit path.
	RawMode bool
	// AutoResize subscribes to the platform's window-change signal (where
	// available) and forwards new terminal dimensions to the PTY.
	AutoResize bool
}

// restoreSequence disables raw mode's visible side effects: show the
// cursor, reset style and colors, and move to a fresh line.
const restoreSequence = "\x1b[?25h\x1b[0m\r\n"

// restoreChain is the process-wide, lazily-chained terminal-restore hook:
// the closest Go analogue of "install a panic hook once, chaining in front
// of whatever was previously installed". Go has no global panic-hook API,
// so the chain is invoked explicitly from a recover() at the top of
// RunInteractive rather than by the runtime.
var (
	restoreMu    sync.Mutex
	restoreChain func()
)

func pushRestoreHook(restore func()) (pop func()) {
	restoreMu.Lock()
	prev := restoreChain
	restoreChain = func() {
		restore()
		if prev != nil {
			prev()
		}
	}
	restoreMu.Unlock()

	return func() {
		restoreMu.Lock()
		restoreChain = prev
		restoreMu.Unlock()
	}
}

func runRestoreChain() {
	restoreMu.Lock()
	chain := restoreChain
	restoreMu.Unlock()
	if chain != nil {
		chain()
	}
}

// RunInteractive drives pty against the local stdin/stdout until the
// remote session ends, optionally owning the local terminal's raw mode and
// auto-resize behavior. Returns exitStatus.ToProcessCode().
func RunInteractive(ctx context.Context, pty *PTY, opts RunOptions) (uint32, error) {
	var oldState *term.State
	if opts.RawMode {
		fd := int(os.Stdin.Fd())
		restore := func() {
			os.Stdout.WriteString(restoreSequence)
			if oldState != nil {
				term.Restore(fd, oldState)
			}
			drainPendingStdin(fd)
		}
		pop := pushRestoreHook(restore)
		defer pop()
		defer restore()

		defer func() {
			if r := recover(); r != nil {
				runRestoreChain()
				panic(r)
			}
		}()

		var err error
		oldState, err = term.MakeRaw(fd)
		if err != nil {
			return 255, err
		}
	}

	var resizeCh chan winsize
	if opts.AutoResize {
		resizeCh = startAutoResize(ctx, pty)
	}

	stdinCh := make(chan []byte)
	go pumpStdin(stdinCh)

	var status ExitStatus
loop:
	for {
		select {
		case data, ok := <-stdinCh:
			if !ok {
				pty.Close()
				stdinCh = nil
				continue
			}
			if err := pty.Write(data); err != nil {
				stdinCh = nil
			}

		case data, ok := <-pty.actor.out:
			if !ok {
				status = pty.Wait()
				break loop
			}
			os.Stdout.Write(data)

		case rs, ok := <-resizeCh:
			if ok {
				if err := pty.Resize(rs.Cols, rs.Rows); err != nil {
					slog.Default().Debug("sshcore: resize forward failed", "error", err)
				}
			}

		case <-ctx.Done():
			pty.Release()
			status = pty.Wait()
			break loop
		}
	}

	return status.ToProcessCode(), nil
}

// pumpStdin reads 1 KiB chunks from stdin until EOF or another read error,
// forwarding each chunk to out, then closes out.
func pumpStdin(out chan<- []byte) {
	defer close(out)
	buf := make([]byte, 1024)
	for {
		n, err := os.Stdin.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			out <- chunk
		}
		if err != nil {
			return
		}
	}
}

