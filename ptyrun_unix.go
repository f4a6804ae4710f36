//go:build !windows

package sshcore

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/creack/pty"
	"golang.org/x/sys/unix"
	"golang.org/x/term"
)

// startAutoResize subscribes to SIGWINCH and forwards the local terminal's
// new size down a channel the caller selects on. The channel is closed
// when ctx is done.
func startAutoResize(ctx context.Context, p *PTY) chan winsize {
	out := make(chan winsize, 1)
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGWINCH)

	// Report the initial size immediately, the way a freshly attached
	// terminal multiplexer pane would.
	if ws, ok := localWinsize(); ok {
		out <- ws
	}

	go func() {
		defer signal.Stop(sig)
		defer close(out)
		for {
			select {
			case <-sig:
				ws, ok := localWinsize()
				if !ok {
					continue
				}
				select {
				case out <- ws:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	return out
}

// localWinsize reads the local terminal's current size, preferring
// golang.org/x/term and cross-checking with github.com/creack/pty's
// ioctl-based helper when the term package can't resolve a size (e.g. a
// non-tty stdin with a tty stdout).
func localWinsize() (winsize, bool) {
	if w, h, err := term.GetSize(int(os.Stdin.Fd())); err == nil {
		return winsize{Cols: uint16(w), Rows: uint16(h)}, true
	}
	ws, err := pty.GetsizeFull(os.Stdout)
	if err != nil {
		slog.Default().Debug("sshcore: failed to read local terminal size", "error", err)
		return winsize{}, false
	}
	return winsize{Cols: ws.Cols, Rows: ws.Rows}, true
}

// drainPendingStdin best-effort drains any bytes already buffered on
// stdin so leftover keystrokes typed during raw mode don't leak into the
// shell that regains the terminal afterwards. Non-blocking: toggles the fd
// to O_NONBLOCK for the duration of the drain.
func drainPendingStdin(fd int) {
	if err := unix.SetNonblock(fd, true); err != nil {
		return
	}
	defer unix.SetNonblock(fd, false)

	buf := make([]byte, 256)
	for {
		n, err := unix.Read(fd, buf)
		if n <= 0 || err != nil {
			return
		}
	}
}
