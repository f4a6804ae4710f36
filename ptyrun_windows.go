//go:build windows

package sshcore

import "context"

// startAutoResize has no SIGWINCH equivalent on Windows; auto-resize is a
// unix-only feature, per §4.F's "platform has a window-change signal
// source" condition.
func startAutoResize(ctx context.Context, p *PTY) chan winsize {
	return nil
}

// drainPendingStdin is a no-op on Windows; console input drain-on-restore
// is a unix terminal-mode concern.
func drainPendingStdin(fd int) {}
