// Package sshcore implements an asynchronous-flavored SSH client: remote
// command execution, SCP sink-mode upload, and interactive PTY sessions with
// alt-screen and working-directory observers layered on top.
package sshcore

import (
	"errors"
	"fmt"
)

// ErrNoAddresses and ErrResolveFailed are re-exported for callers that only
// import sshcore; the resolution itself lives in internal/resolve.
var (
	// ErrNoOpenSession is returned by every Session operation except Close
	// when no live transport is present.
	ErrNoOpenSession = errors.New("sshcore: no open session")

	// ErrProgramDidNotExitCleanly is returned by the command executor when
	// the channel closed without ever observing an exit-status or
	// exit-signal message.
	ErrProgramDidNotExitCleanly = errors.New("sshcore: program did not exit cleanly")

	// ErrInputChannelClosed is returned by PTY.Write after the actor has
	// exited.
	ErrInputChannelClosed = errors.New("sshcore: pty input channel closed")

	// ErrResizeChannelClosed is returned by PTY.Resize after the actor has
	// exited.
	ErrResizeChannelClosed = errors.New("sshcore: pty resize channel closed")

	// ErrChannelClosedUnexpectedly is a generic surfaced error for channel
	// teardown where no more specific classification applies.
	ErrChannelClosedUnexpectedly = errors.New("sshcore: channel closed unexpectedly")

	// ErrChannelClosedDuringTransfer is returned by the SCP uploader when
	// the channel ends mid-transfer with no more specific signal.
	ErrChannelClosedDuringTransfer = errors.New("sshcore: channel closed during scp transfer")

	// ErrScpStartFailed is returned when the remote scp -t invocation's
	// first acknowledgement byte is non-zero.
	ErrScpStartFailed = errors.New("sshcore: remote scp -t did not start cleanly")

	// ErrScpConfirmationFailed is returned when the acknowledgement byte
	// after the metadata line is non-zero.
	ErrScpConfirmationFailed = errors.New("sshcore: remote rejected scp metadata line")

	// ErrScpPostDataConfirmationFailed is returned when the acknowledgement
	// byte after the final zero byte is non-zero.
	ErrScpPostDataConfirmationFailed = errors.New("sshcore: remote rejected scp end-of-data")

	// ErrWriteTimedOut is returned when a single 16 KiB SCP chunk write
	// exceeds its per-chunk timeout.
	ErrWriteTimedOut = errors.New("sshcore: scp chunk write timed out")
)

// AuthKind names which authentication variant failed, carried by
// AuthenticationFailedError.
type AuthKind string

const (
	AuthKindPassword        AuthKind = "password"
	AuthKindPublicKey       AuthKind = "publickey"
	AuthKindPublicKeyCert   AuthKind = "publickey+cert"
	AuthKindNone            AuthKind = "none"
)

// AuthenticationFailedError wraps the underlying transport error with the
// authentication variant that was attempted.
type AuthenticationFailedError struct {
	Kind AuthKind
	Err  error
}

func (e *AuthenticationFailedError) Error() string {
	return fmt.Sprintf("sshcore: %s authentication failed: %v", e.Kind, e.Err)
}

func (e *AuthenticationFailedError) Unwrap() error { return e.Err }

// KeyLoadFailedError wraps a failure to read or parse a private key file.
type KeyLoadFailedError struct {
	Path string
	Err  error
}

func (e *KeyLoadFailedError) Error() string {
	return fmt.Sprintf("sshcore: failed to load private key %q: %v", e.Path, e.Err)
}

func (e *KeyLoadFailedError) Unwrap() error { return e.Err }

// CertLoadFailedError wraps a failure to read or parse an OpenSSH
// certificate file.
type CertLoadFailedError struct {
	Path string
	Err  error
}

func (e *CertLoadFailedError) Error() string {
	return fmt.Sprintf("sshcore: failed to load certificate %q: %v", e.Path, e.Err)
}

func (e *CertLoadFailedError) Unwrap() error { return e.Err }

// RemoteScpError carries text received over the stderr extension of an SCP
// transfer channel while a transfer is in flight.
type RemoteScpError struct {
	Text string
}

func (e *RemoteScpError) Error() string {
	return fmt.Sprintf("sshcore: remote scp error: %s", e.Text)
}

// RemoteScpExitedEarly is returned when the remote scp process reports an
// exit status before the upload has completed.
type RemoteScpExitedEarly struct {
	Code uint32
}

func (e *RemoteScpExitedEarly) Error() string {
	return fmt.Sprintf("sshcore: remote scp exited early with code %d", e.Code)
}
