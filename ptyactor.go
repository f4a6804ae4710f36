package sshcore

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/crypto/ssh"

	"go.olrik.dev/sshcore/termwatch"
)

// ptyRequestMsg is the RFC 4254 §6.2 "pty-req" request payload.
type ptyRequestMsg struct {
	Term     string
	Columns  uint32
	Rows     uint32
	Width    uint32
	Height   uint32
	Modelist string
}

// windowChangeMsg is the RFC 4254 §6.7 "window-change" request payload.
type windowChangeMsg struct {
	Columns uint32
	Rows    uint32
	Width   uint32
	Height  uint32
}

// PTYOptions configures a requested remote pseudo-terminal.
type PTYOptions struct {
	// Term is the terminal type string; defaults to $TERM or "xterm".
	Term string
	// Cols and Rows are the initial terminal dimensions in cells; each is
	// clamped to a minimum of 1.
	Cols, Rows uint16
	// Modes overrides the default terminal-modes table. A caller may pass
	// an empty (non-nil) ssh.TerminalModes to request no modes at all.
	Modes ssh.TerminalModes
	// Command, if non-empty, is exec'd instead of the remote's default
	// shell.
	Command string
}

// defaultTerminalModes matches spec's table: ICRNL, IUTF8, OPOST, ONLCR,
// ISIG, ECHO, ECHOE, ECHOK, ECHOCTL, ECHOKE, IEXTEN, CS8 enabled; IXON,
// IXANY, IMAXBEL, ICANON disabled; both speeds at 38400.
func defaultTerminalModes() ssh.TerminalModes {
	return ssh.TerminalModes{
		ssh.ICRNL:         1,
		ssh.IUTF8:         1,
		ssh.OPOST:         1,
		ssh.ONLCR:         1,
		ssh.ISIG:          1,
		ssh.ECHO:          1,
		ssh.ECHOE:         1,
		ssh.ECHOK:         1,
		ssh.ECHOCTL:       1,
		ssh.ECHOKE:        1,
		ssh.IEXTEN:        1,
		ssh.CS8:           1,
		ssh.IXON:          0,
		ssh.IXANY:         0,
		ssh.IMAXBEL:       0,
		ssh.ICANON:        0,
		ssh.TTY_OP_ISPEED: 38400,
		ssh.TTY_OP_OSPEED: 38400,
	}
}

func encodeModes(modes ssh.TerminalModes) string {
	var buf []byte
	for code, value := range modes {
		buf = append(buf, byte(code))
		var v [4]byte
		v[0] = byte(value >> 24)
		v[1] = byte(value >> 16)
		v[2] = byte(value >> 8)
		v[3] = byte(value)
		buf = append(buf, v[:]...)
	}
	buf = append(buf, 0) // TTY_OP_END
	return string(buf)
}

// ptyActor is the background goroutine bridging input/output/resize against
// one raw SSH session channel. It is the sole reader of the channel's
// message stream and the sole writer to output and to the detectors' feed.
type ptyActor struct {
	ch   ssh.Channel
	cr   *channelReader
	in   chan []byte
	out  chan []byte
	resz chan winsize

	mode *termwatch.ModeDetector
	pwd  *termwatch.PWDDetector

	exitBroadcast *termwatch.Broadcast[ExitStatus]

	ctx    context.Context
	cancel context.CancelFunc

	result chan ExitStatus
}

func newPTYActor(parent context.Context, ch ssh.Channel, reqs <-chan *ssh.Request, mode *termwatch.ModeDetector, pwd *termwatch.PWDDetector) *ptyActor {
	ctx, cancel := context.WithCancel(parent)
	a := &ptyActor{
		ch:            ch,
		cr:            newChannelReader(ch, reqs, false),
		in:            make(chan []byte, 64),
		out:           make(chan []byte, 256),
		resz:          make(chan winsize, 4),
		mode:          mode,
		pwd:           pwd,
		exitBroadcast: termwatch.NewBroadcast[ExitStatus](nil),
		ctx:           ctx,
		cancel:        cancel,
		result:        make(chan ExitStatus, 1),
	}
	go a.run()
	return a
}

func (a *ptyActor) run() {
	status := a.loop()
	status = a.drain(status)

	close(a.out)
	a.exitBroadcast.Publish(status)
	a.exitBroadcast.Release()
	if a.mode != nil {
		a.mode.Release()
	}
	if a.pwd != nil {
		a.pwd.Release()
	}
	a.result <- status
	close(a.result)
}

// loop implements the per-iteration behavior of §4.D exactly: forward
// input, classify channel events, feed detectors, forward to output,
// handle resize. Returns once an exit-status, exit-signal, or channel-end
// event is observed (or the actor's context is canceled).
func (a *ptyActor) loop() ExitStatus {
	for {
		select {
		case data, ok := <-a.in:
			if !ok {
				a.ch.CloseWrite()
				a.in = nil // stop selecting a closed/exhausted channel again
				continue
			}
			if _, err := a.ch.Write(data); err != nil {
				slog.Default().Debug("sshcore: pty write failed", "error", err)
			}

		case ev := <-a.cr.events:
			switch ev.kind {
			case evData:
				if a.mode != nil {
					a.mode.Feed(ev.data)
				}
				if a.pwd != nil {
					a.pwd.Feed(ev.data)
				}
				a.forwardOutput(ev.data)
			case evExitStatus:
				return ExitCode{Code: ev.exitCode}
			case evExitSignal:
				return ExitSignal{Name: ev.sigName, CoreDumped: ev.coreDumped, Message: ev.sigMsg}
			case evChannelEnd:
				return ExitChannelClosed{}
			}

		case rs := <-a.resz:
			payload := ssh.Marshal(windowChangeMsg{Columns: uint32(rs.Cols), Rows: uint32(rs.Rows)})
			if _, err := a.ch.SendRequest("window-change", false, payload); err != nil {
				slog.Default().Debug("sshcore: window-change request failed", "error", err)
			}

		case <-a.ctx.Done():
			return ExitChannelClosed{}
		}
	}
}

// forwardOutput sends data to the output channel. A blocking send is
// deliberate (a full queue is backpressure, not something to drop); only
// Release (which cancels ctx) stops the actor from trying.
func (a *ptyActor) forwardOutput(data []byte) {
	select {
	case a.out <- data:
	case <-a.ctx.Done():
	}
}

// drain continues polling the channel for up to one second after the main
// loop's exit condition fires, forwarding any trailing data (terminal
// cleanup sequences commonly arrive after the exit message).
func (a *ptyActor) drain(status ExitStatus) ExitStatus {
	deadline := time.NewTimer(1 * time.Second)
	defer deadline.Stop()

	for {
		select {
		case ev := <-a.cr.events:
			if ev.kind == evData {
				if a.mode != nil {
					a.mode.Feed(ev.data)
				}
				if a.pwd != nil {
					a.pwd.Feed(ev.data)
				}
				a.forwardOutput(ev.data)
			}
			if ev.kind == evChannelEnd {
				return status
			}
		case <-deadline.C:
			return status
		}
	}
}
