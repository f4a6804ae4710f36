package sshcore

import (
	"context"
	"os"
	"sync"

	"golang.org/x/crypto/ssh"

	"go.olrik.dev/sshcore/termwatch"
)

// PTY is the external-facing handle to a ptyActor. Dropping Go values has
// no destructor equivalent, so Release is the explicit stand-in for
// "dropping the handle aborts the actor task".
type PTY struct {
	actor *ptyActor

	modeEnabled bool
	pwdEnabled  bool

	closeOnce sync.Once
}

// NewPTY opens a fresh session channel on client, requests a pseudo-terminal
// with opts, starts the remote shell (or opts.Command, if set), and spawns
// the PTY actor. detectMode/detectPWD enable the corresponding observer;
// the detectors are shared equally between the actor (writer) and this
// handle (reader) for as long as both are alive.
func NewPTY(ctx context.Context, client *ssh.Client, opts PTYOptions, detectMode, detectPWD bool) (*PTY, error) {
	term := opts.Term
	if term == "" {
		term = os.Getenv("TERM")
	}
	if term == "" {
		term = "xterm"
	}
	cols, rows := opts.Cols, opts.Rows
	if cols == 0 {
		cols = 1
	}
	if rows == 0 {
		rows = 1
	}
	modes := opts.Modes
	if modes == nil {
		modes = defaultTerminalModes()
	}

	ch, reqs, err := openSessionChannel(client)
	if err != nil {
		return nil, err
	}

	ptyPayload := ssh.Marshal(ptyRequestMsg{
		Term:     term,
		Columns:  uint32(cols),
		Rows:     uint32(rows),
		Modelist: encodeModes(modes),
	})
	ok, err := ch.SendRequest("pty-req", true, ptyPayload)
	if err != nil || !ok {
		ch.Close()
		if err == nil {
			err = ErrChannelClosedUnexpectedly
		}
		return nil, err
	}

	if opts.Command != "" {
		ok, err = ch.SendRequest("exec", true, ssh.Marshal(execRequestMsg{Command: opts.Command}))
	} else {
		ok, err = ch.SendRequest("shell", true, nil)
	}
	if err != nil || !ok {
		ch.Close()
		if err == nil {
			err = ErrChannelClosedUnexpectedly
		}
		return nil, err
	}

	var mode *termwatch.ModeDetector
	if detectMode {
		mode = termwatch.NewModeDetector()
	}
	var pwd *termwatch.PWDDetector
	if detectPWD {
		pwd = termwatch.NewPWDDetector()
	}

	actor := newPTYActor(ctx, ch, reqs, mode, pwd)

	return &PTY{actor: actor, modeEnabled: detectMode, pwdEnabled: detectPWD}, nil
}

// Write enqueues bytes to be forwarded to the remote. Returns
// ErrInputChannelClosed once the actor has exited.
func (p *PTY) Write(data []byte) error {
	select {
	case p.actor.in <- data:
		return nil
	case <-p.actor.ctx.Done():
		return ErrInputChannelClosed
	}
}

// Read awaits the next batch of output bytes, returning ok=false once the
// actor ends and no further output remains.
func (p *PTY) Read() (data []byte, ok bool) {
	data, ok = <-p.actor.out
	return data, ok
}

// Resize enqueues a window-change request. Returns ErrResizeChannelClosed
// once the actor has exited.
func (p *PTY) Resize(cols, rows uint16) error {
	select {
	case p.actor.resz <- winsize{Cols: cols, Rows: rows}:
		return nil
	case <-p.actor.ctx.Done():
		return ErrResizeChannelClosed
	}
}

// Close signals EOF to the remote by closing the input channel. It does
// not stop the actor; use Wait or Release for that. Safe to call more than
// once.
func (p *PTY) Close() {
	p.closeOnce.Do(func() {
		close(p.actor.in)
	})
}

// Wait blocks until the actor completes and returns the final exit status.
// Calling Wait consumes the handle the way spec.md's wait() does: callers
// should not continue using the PTY afterwards.
func (p *PTY) Wait() ExitStatus {
	return <-p.actor.result
}

// TryWait performs a non-blocking read of the exit broadcast.
func (p *PTY) TryWait() (ExitStatus, bool) {
	status := p.actor.exitBroadcast.Get()
	return status, status != nil
}

// Release aborts the actor task: the Go stand-in for "dropping the handle".
func (p *PTY) Release() {
	p.actor.cancel()
}

// CurrentMode snapshots the alt-screen state. Returns termwatch.StandardMode
// if mode detection was not enabled.
func (p *PTY) CurrentMode() termwatch.Mode {
	if p.actor.mode == nil {
		return termwatch.StandardMode
	}
	return p.actor.mode.Current()
}

func (p *PTY) IsAltMode() bool { return p.CurrentMode() == termwatch.AltMode }
func (p *PTY) IsStdMode() bool { return p.CurrentMode() == termwatch.StandardMode }

// CurrentPWD snapshots the remote working directory. Returns "" if PWD
// detection was not enabled or no OSC sequence has been observed yet.
func (p *PTY) CurrentPWD() string {
	if p.actor.pwd == nil {
		return ""
	}
	return p.actor.pwd.Current()
}

// WatchMode constructs a new mode watcher, or nil if mode detection is
// disabled.
func (p *PTY) WatchMode() *termwatch.Watcher[termwatch.Mode] {
	if p.actor.mode == nil {
		return nil
	}
	return p.actor.mode.Watch()
}

// WatchPWD constructs a new PWD watcher, or nil if PWD detection is
// disabled.
func (p *PTY) WatchPWD() *termwatch.Watcher[string] {
	if p.actor.pwd == nil {
		return nil
	}
	return p.actor.pwd.Watch()
}
