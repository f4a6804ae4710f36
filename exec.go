package sshcore

import (
	"context"
	"io"

	"golang.org/x/crypto/ssh"
)

// execRequestMsg is the RFC 4254 §6.5 "exec" request payload.
type execRequestMsg struct {
	Command string
}

// runCommand opens a fresh session channel, executes command, and consumes
// channel messages in order until the channel ends. Capture is only wired
// to stdout/stderr when the corresponding writer is non-nil, matching
// Exec's "capture disabled" vs. Run's "capture enabled" distinction.
func runCommand(ctx context.Context, client *ssh.Client, command string, stdout, stderr io.Writer) (ExitStatus, error) {
	ch, reqs, err := openSessionChannel(client)
	if err != nil {
		return nil, err
	}
	defer ch.Close()

	payload := ssh.Marshal(execRequestMsg{Command: command})
	ok, err := ch.SendRequest("exec", true, payload)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrProgramDidNotExitCleanly
	}

	cr := newChannelReader(ch, reqs, true)

	var status ExitStatus
	done := make(chan struct{})
	go func() {
		defer close(done)
		for ev := range cr.events {
			switch ev.kind {
			case evData:
				if stdout != nil {
					stdout.Write(ev.data)
				}
			case evExtData:
				if ev.extType == 1 && stderr != nil {
					stderr.Write(ev.data)
				}
			case evExitStatus:
				status = ExitCode{Code: ev.exitCode}
			case evExitSignal:
				status = ExitSignal{Name: ev.sigName, CoreDumped: ev.coreDumped, Message: ev.sigMsg}
			case evChannelEnd:
				return
			}
		}
	}()

	select {
	case <-done:
	case <-ctx.Done():
		ch.Close()
		<-done
		if status == nil {
			return nil, ctx.Err()
		}
	}

	if status == nil {
		return nil, ErrProgramDidNotExitCleanly
	}
	return status, nil
}
