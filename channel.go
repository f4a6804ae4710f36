package sshcore

import (
	"encoding/binary"
	"log/slog"

	"golang.org/x/crypto/ssh"
)

// channelEventKind classifies a demultiplexed message from a raw SSH session
// channel. golang.org/x/crypto/ssh does not expose a single multiplexed
// event source the way some higher-level session APIs do (and its own
// ssh.Session hides the exit-signal's core-dumped flag entirely), so the
// command executor and the PTY actor both drive a channel opened with
// (*ssh.Client).OpenChannel("session", nil) directly and share this
// demultiplexer.
type channelEventKind int

const (
	evData channelEventKind = iota
	evExtData
	evExitStatus
	evExitSignal
	evChannelEnd
)

type channelEvent struct {
	kind       channelEventKind
	data       []byte
	extType    uint32
	exitCode   uint32
	sigName    string
	coreDumped bool
	sigMsg     string
}

// exitSignalMsg mirrors RFC 4254 §6.10's "exit-signal" request payload.
// Decoded with ssh.Unmarshal the same way the teacher's sshserver decodes
// direct-tcpip payloads.
type exitSignalMsg struct {
	Signal     string
	CoreDumped bool
	Message    string
	Lang       string
}

// openSessionChannel opens a fresh "session" channel on client, the raw
// equivalent of (*ssh.Client).NewSession() without the high-level Session
// wrapper that would otherwise hide exit-signal detail.
func openSessionChannel(client *ssh.Client) (ssh.Channel, <-chan *ssh.Request, error) {
	return client.OpenChannel("session", nil)
}

// channelReader owns reading ch for its lifetime and republishes data,
// extended-data, exit-status, exit-signal, and channel-end as a single
// ordered stream of typed events. readStderr should be true only for
// non-PTY channels (exec, scp): a PTY channel has no separate stderr
// stream because the remote kernel merges it into the one pty device.
type channelReader struct {
	events chan channelEvent
}

func newChannelReader(ch ssh.Channel, reqs <-chan *ssh.Request, readStderr bool) *channelReader {
	cr := &channelReader{events: make(chan channelEvent, 64)}
	go cr.readData(ch)
	if readStderr {
		go cr.readExtData(ch)
	}
	go cr.readRequests(reqs)
	return cr
}

func (cr *channelReader) readData(ch ssh.Channel) {
	buf := make([]byte, 32*1024)
	for {
		n, err := ch.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			cr.events <- channelEvent{kind: evData, data: chunk}
		}
		if err != nil {
			return
		}
	}
}

func (cr *channelReader) readExtData(ch ssh.Channel) {
	stderr := ch.Stderr()
	buf := make([]byte, 32*1024)
	for {
		n, err := stderr.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			cr.events <- channelEvent{kind: evExtData, extType: 1, data: chunk}
		}
		if err != nil {
			return
		}
	}
}

func (cr *channelReader) readRequests(reqs <-chan *ssh.Request) {
	for req := range reqs {
		switch req.Type {
		case "exit-status":
			if len(req.Payload) >= 4 {
				cr.events <- channelEvent{kind: evExitStatus, exitCode: binary.BigEndian.Uint32(req.Payload)}
			}
		case "exit-signal":
			var sig exitSignalMsg
			if err := ssh.Unmarshal(req.Payload, &sig); err != nil {
				slog.Default().Error("sshcore: malformed exit-signal payload", "error", err)
			} else {
				cr.events <- channelEvent{
					kind:       evExitSignal,
					sigName:    sig.Signal,
					coreDumped: sig.CoreDumped,
					sigMsg:     sig.Message,
				}
			}
		}
		if req.WantReply {
			req.Reply(false, nil)
		}
	}
	cr.events <- channelEvent{kind: evChannelEnd}
}
