package sshcore

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"al.essio.dev/pkg/shellescape"
	"golang.org/x/crypto/ssh"

	"go.olrik.dev/sshcore/internal/resolve"
)

// Session owns a Config plus an optional live transport handle. Every
// operation except Close fails with ErrNoOpenSession before Connect
// succeeds.
type Session struct {
	cfg    Config
	client *ssh.Client

	// connecting guards against overlapping Connect calls on the same
	// Session. Idiomatic Go mutates the Session in place rather than
	// consuming it by value and returning a new one; this guard is how
	// the "consumed by value" discipline of the source is preserved
	// without value semantics (see DESIGN.md).
	connecting atomic.Bool
	mu         sync.Mutex
}

// Connect resolves the configured address, dials the transport, and
// authenticates using the configured variant. It mutates the Session in
// place; calling Connect again on an already-connected Session is
// undefined by the caller's misuse, not guarded against beyond the
// concurrent-call guard below.
func (s *Session) Connect(ctx context.Context) error {
	if !s.connecting.CompareAndSwap(false, true) {
		return fmt.Errorf("sshcore: Connect already in progress")
	}
	defer s.connecting.Store(false)

	addr, err := resolve.Addr(ctx, s.cfg.Host, s.cfg.Port, s.cfg.Scope)
	if err != nil {
		return err
	}

	clientCfg := &ssh.ClientConfig{
		User:            s.cfg.User,
		Timeout:         s.cfg.InactivityTimeout,
		HostKeyCallback: s.cfg.HostKeyCallback,
	}

	switch auth := s.cfg.Auth.(type) {
	case passwordAuth:
		clientCfg.Auth = []ssh.AuthMethod{ssh.Password(auth.password)}
	case publicKeyAuth:
		signer, err := loadSigner(auth.keyPath, auth.certPath)
		if err != nil {
			return err
		}
		clientCfg.Auth = []ssh.AuthMethod{ssh.PublicKeys(signer)}
	case noneAuth:
		// An empty (non-nil) Auth slice is enough: golang.org/x/crypto/ssh
		// always sends one "none" probe request before consulting Auth, and
		// a server that accepts none-auth completes the handshake there.
		clientCfg.Auth = []ssh.AuthMethod{}
	}

	slog.Default().Debug("sshcore: dialing", "addr", addr.String(), "user", s.cfg.User)

	var dialer net.Dialer
	netConn, err := dialer.DialContext(ctx, "tcp", addr.String())
	if err != nil {
		return fmt.Errorf("sshcore: dialing %s: %w", addr.String(), err)
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(netConn, addr.String(), clientCfg)
	if err != nil {
		netConn.Close()
		return &AuthenticationFailedError{Kind: s.cfg.Auth.authKind(), Err: err}
	}

	s.mu.Lock()
	s.client = ssh.NewClient(sshConn, chans, reqs)
	s.mu.Unlock()

	return nil
}

// loadSigner loads a private key and, when certPath is non-empty, wraps it
// as a certificate signer. ssh.ParsePrivateKey's returned Signer already
// satisfies ssh.AlgorithmSigner, so golang.org/x/crypto/ssh negotiates
// rsa-sha2-256/512 internally — no extra "best supported hash algorithm"
// code is needed beyond passing the signer through ssh.PublicKeys.
func loadSigner(keyPath, certPath string) (ssh.Signer, error) {
	keyBytes, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, &KeyLoadFailedError{Path: keyPath, Err: err}
	}
	signer, err := ssh.ParsePrivateKey(keyBytes)
	if err != nil {
		return nil, &KeyLoadFailedError{Path: keyPath, Err: err}
	}

	if certPath == "" {
		return signer, nil
	}

	certBytes, err := os.ReadFile(certPath)
	if err != nil {
		return nil, &CertLoadFailedError{Path: certPath, Err: err}
	}
	pub, _, _, _, err := ssh.ParseAuthorizedKey(certBytes)
	if err != nil {
		return nil, &CertLoadFailedError{Path: certPath, Err: err}
	}
	cert, ok := pub.(*ssh.Certificate)
	if !ok {
		return nil, &CertLoadFailedError{Path: certPath, Err: fmt.Errorf("not a certificate")}
	}
	certSigner, err := ssh.NewCertSigner(cert, signer)
	if err != nil {
		return nil, &CertLoadFailedError{Path: certPath, Err: err}
	}
	return certSigner, nil
}

// Close disconnects the transport if one is present. A no-op on a
// Disconnected Session.
func (s *Session) Close() error {
	s.mu.Lock()
	client := s.client
	s.client = nil
	s.mu.Unlock()

	if client == nil {
		return nil
	}
	return client.Close()
}

// Client exposes the underlying *ssh.Client so callers can open additional
// channels this Session's own methods don't cover, such as a PTY via
// NewPTY. Returns ErrNoOpenSession before Connect succeeds.
func (s *Session) Client() (*ssh.Client, error) {
	return s.transport()
}

func (s *Session) transport() (*ssh.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client == nil {
		return nil, ErrNoOpenSession
	}
	return s.client, nil
}

// Exec shell-escapes each argument of argv, joins with single spaces, and
// runs it with stdout/stderr capture disabled.
func (s *Session) Exec(ctx context.Context, argv []string) (ExitStatus, error) {
	client, err := s.transport()
	if err != nil {
		return nil, err
	}
	quoted := make([]string, len(argv))
	for i, a := range argv {
		quoted[i] = shellescape.Quote(a)
	}
	return runCommand(ctx, client, strings.Join(quoted, " "), nil, nil)
}

// Run submits the configured default command with stdout/stderr capture
// enabled.
func (s *Session) Run(ctx context.Context, stdout, stderr *os.File) (ExitStatus, error) {
	client, err := s.transport()
	if err != nil {
		return nil, err
	}
	quoted := make([]string, len(s.cfg.Cmd))
	for i, a := range s.cfg.Cmd {
		quoted[i] = shellescape.Quote(a)
	}
	return runCommand(ctx, client, strings.Join(quoted, " "), stdout, stderr)
}

// System wraps cmd through `sh -c` without escaping the wrapped command.
func (s *Session) System(ctx context.Context, cmd string) (ExitStatus, error) {
	client, err := s.transport()
	if err != nil {
		return nil, err
	}
	return runCommand(ctx, client, "sh -c "+shellescape.Quote(cmd), nil, nil)
}

// Cmd sends cmd verbatim, with no escaping at all.
func (s *Session) Cmd(ctx context.Context, cmd string) (ExitStatus, error) {
	client, err := s.transport()
	if err != nil {
		return nil, err
	}
	return runCommand(ctx, client, cmd, nil, nil)
}
