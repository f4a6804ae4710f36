package sshcore

import (
	"time"

	"golang.org/x/crypto/ssh"
)

// Config is an immutable session configuration produced by Builder.Build.
type Config struct {
	User              string
	Host              string
	Port              uint16
	Scope             string
	Cmd               []string
	InactivityTimeout time.Duration
	Auth              AuthMethod
	HostKeyCallback   ssh.HostKeyCallback
}

// AuthMethod is a tagged sum of the three authentication variants a Builder
// can select. Each unexported implementation carries only the fields its
// variant needs.
type AuthMethod interface {
	authKind() AuthKind
}

type passwordAuth struct {
	password string
}

func (passwordAuth) authKind() AuthKind { return AuthKindPassword }

type publicKeyAuth struct {
	keyPath  string
	certPath string // empty when no certificate is used
}

func (a publicKeyAuth) authKind() AuthKind {
	if a.certPath != "" {
		return AuthKindPublicKeyCert
	}
	return AuthKindPublicKey
}

type noneAuth struct{}

func (noneAuth) authKind() AuthKind { return AuthKindNone }

// ExitStatus is a tagged sum describing how a remote process or PTY session
// ended. Exactly one of ExitCode, ExitSignal, ExitChannelClosed is the
// dynamic type of any ExitStatus value produced by this package.
type ExitStatus interface {
	// ToProcessCode maps the status to a u32 process exit code, the way the
	// interactive runner and CLI layer report results: ExitCode yields its
	// own value, the other two collapse to 255.
	ToProcessCode() uint32

	isExitStatus()
}

// ExitCode means the remote process returned normally with a numeric exit
// code.
type ExitCode struct {
	Code uint32
}

func (e ExitCode) ToProcessCode() uint32 { return e.Code }
func (ExitCode) isExitStatus()           {}

// ExitSignal means the remote process was killed by a signal.
type ExitSignal struct {
	Name       string
	CoreDumped bool
	Message    string
}

func (ExitSignal) ToProcessCode() uint32 { return 255 }
func (ExitSignal) isExitStatus()         {}

// ExitChannelClosed means the channel ended without ever reporting an
// explicit exit-status or exit-signal message.
type ExitChannelClosed struct{}

func (ExitChannelClosed) ToProcessCode() uint32 { return 255 }
func (ExitChannelClosed) isExitStatus()         {}

// winsize is a terminal column/row pair, sent down the PTY actor's resize
// channel and forwarded as an SSH window-change request.
type winsize struct {
	Cols uint16
	Rows uint16
}
