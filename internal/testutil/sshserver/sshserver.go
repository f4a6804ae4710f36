// Package sshserver provides an in-process SSH server for integration testing.
// It supports password and public key authentication, session channels
// (exec, shell with an optional PTY, and -N-style forwarding-only
// sessions), and direct-tcpip channels (for -L port forwarding).
//
// The server generates an SSH config file that can be passed to `ssh -F` so the
// system SSH binary can connect without any manual configuration, and it
// also accepts connections from an in-process golang.org/x/crypto/ssh
// client (the style sshcore's own tests use).
package sshserver

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"fmt"
	"io"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"syscall"
	"testing"

	"github.com/creack/pty"
	"golang.org/x/crypto/ssh"
)

// Server is an in-process SSH server for testing.
type Server struct {
	t    testing.TB
	opts Options

	config   *ssh.ServerConfig
	listener net.Listener
	wg       sync.WaitGroup
	done     chan struct{}

	configDir     string // t.TempDir() for SSH config and host key
	sshConfigPath string
	alias         string
}

// Options configures the test SSH server.
type Options struct {
	Username       string          // Required
	Password       string          // Enables password auth if set
	AuthorizedKeys []ssh.PublicKey // Enables pubkey auth if set
	AllowNoneAuth  bool            // Accepts the RFC 4252 "none" method
	HostKey        ssh.Signer      // Generated if nil
	Alias          string          // Defaults to "test-<port>"
}

// New creates a test SSH server. Call Start() to begin listening.
func New(t testing.TB, opts Options) *Server {
	t.Helper()

	if opts.Username == "" {
		t.Fatal("sshserver: Username is required")
	}

	return &Server{
		t:    t,
		opts: opts,
		done: make(chan struct{}),
	}
}

// Start begins listening on a random port and generates SSH config files.
func (s *Server) Start() {
	s.t.Helper()

	// Generate host key if not provided
	hostKey := s.opts.HostKey
	if hostKey == nil {
		hostKey = generateED25519Key(s.t)
	}

	// Configure server authentication
	s.config = &ssh.ServerConfig{}
	s.config.AddHostKey(hostKey)

	if s.opts.AllowNoneAuth {
		s.config.NoClientAuth = true
	}

	if s.opts.Password != "" {
		s.config.PasswordCallback = func(conn ssh.ConnMetadata, password []byte) (*ssh.Permissions, error) {
			if conn.User() == s.opts.Username && string(password) == s.opts.Password {
				return nil, nil
			}
			return nil, fmt.Errorf("authentication failed for user %q", conn.User())
		}
	}

	if len(s.opts.AuthorizedKeys) > 0 {
		s.config.PublicKeyCallback = func(conn ssh.ConnMetadata, key ssh.PublicKey) (*ssh.Permissions, error) {
			if conn.User() != s.opts.Username {
				return nil, fmt.Errorf("unknown user %q", conn.User())
			}
			keyBytes := key.Marshal()
			for _, authorized := range s.opts.AuthorizedKeys {
				if bytes.Equal(keyBytes, authorized.Marshal()) {
					return nil, nil
				}
			}
			return nil, fmt.Errorf("unknown public key")
		}
	}

	// Listen on a random port
	var err error
	s.listener, err = net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		s.t.Fatalf("sshserver: failed to listen: %v", err)
	}

	// Set alias
	s.alias = s.opts.Alias
	if s.alias == "" {
		s.alias = fmt.Sprintf("test-%d", s.Port())
	}

	// Generate SSH config
	s.configDir = s.t.TempDir()
	s.generateSSHConfig()

	// Start accept loop
	s.wg.Add(1)
	go s.acceptLoop()
}

// Stop closes the listener and waits for all connections to finish.
func (s *Server) Stop() {
	close(s.done)
	s.listener.Close()
	s.wg.Wait()
}

// Port returns the port the server is listening on.
func (s *Server) Port() int {
	return s.listener.Addr().(*net.TCPAddr).Port
}

// Addr returns the server address as "127.0.0.1:<port>".
func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

// SSHConfigPath returns the path to the generated SSH config file.
func (s *Server) SSHConfigPath() string {
	return s.sshConfigPath
}

// Alias returns the SSH config host alias.
func (s *Server) Alias() string {
	return s.alias
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.done:
				return
			default:
				s.t.Logf("sshserver: accept error: %v", err)
				return
			}
		}

		s.wg.Add(1)
		go s.handleConnection(conn)
	}
}

func (s *Server) handleConnection(conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	// Perform SSH handshake
	sshConn, chans, reqs, err := ssh.NewServerConn(conn, s.config)
	if err != nil {
		// Authentication failures are expected in tests
		s.t.Logf("sshserver: handshake failed: %v", err)
		return
	}
	defer sshConn.Close()

	// Handle global requests (keepalive, no-more-sessions)
	go s.handleGlobalRequests(reqs)

	// Handle channels
	for {
		select {
		case <-s.done:
			return
		case newChan, ok := <-chans:
			if !ok {
				return
			}
			switch newChan.ChannelType() {
			case "session":
				s.wg.Add(1)
				go s.handleSession(newChan)
			case "direct-tcpip":
				s.wg.Add(1)
				go s.handleDirectTCPIP(newChan)
			default:
				newChan.Reject(ssh.UnknownChannelType, "unknown channel type")
			}
		}
	}
}

func (s *Server) handleGlobalRequests(reqs <-chan *ssh.Request) {
	for req := range reqs {
		switch req.Type {
		case "keepalive@openssh.com":
			if req.WantReply {
				req.Reply(true, nil)
			}
		case "no-more-sessions@openssh.com":
			if req.WantReply {
				req.Reply(true, nil)
			}
		default:
			if req.WantReply {
				req.Reply(false, nil)
			}
		}
	}
}

// ptyRequestPayload mirrors RFC 4254 §6.2's "pty-req" request.
type ptyRequestPayload struct {
	Term     string
	Columns  uint32
	Rows     uint32
	Width    uint32
	Height   uint32
	Modelist string
}

// windowChangePayload mirrors RFC 4254 §6.7's "window-change" request.
type windowChangePayload struct {
	Columns uint32
	Rows    uint32
	Width   uint32
	Height  uint32
}

// execPayload mirrors RFC 4254 §6.5's "exec" request.
type execPayload struct {
	Command string
}

type exitStatusPayload struct {
	Status uint32
}

type exitSignalPayload struct {
	Signal     string
	CoreDumped bool
	Message    string
	Lang       string
}

// sessionState tracks the one pty-req (if any) a session channel received,
// and the live local PTY master once a PTY-backed shell has started, so a
// later window-change request can resize it.
type sessionState struct {
	mu      sync.Mutex
	ptyReq  *ptyRequestPayload
	ptmx    *os.File
}

func (st *sessionState) setPtyReq(p ptyRequestPayload) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.ptyReq = &p
}

func (st *sessionState) requestedPty() (ptyRequestPayload, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.ptyReq == nil {
		return ptyRequestPayload{}, false
	}
	return *st.ptyReq, true
}

func (st *sessionState) setPtmx(f *os.File) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.ptmx = f
}

func (st *sessionState) resize(cols, rows uint32) {
	st.mu.Lock()
	ptmx := st.ptmx
	st.mu.Unlock()
	if ptmx == nil {
		return
	}
	pty.Setsize(ptmx, &pty.Winsize{Cols: uint16(cols), Rows: uint16(rows)})
}

func reply(req *ssh.Request, ok bool) {
	if req.WantReply {
		req.Reply(ok, nil)
	}
}

// handleSession services one "session" channel: env/pty-req/window-change
// requests are handled inline as they arrive, and the first "shell" or
// "exec" request drives a real local command whose stdio is bridged to the
// channel, exactly what sshcore's exec/pty/scp clients expect from the
// remote end. A channel that only ever does env/pty-req (the -N pattern
// used by port-forwarding tests) blocks until the server stops.
func (s *Server) handleSession(newChan ssh.NewChannel) {
	defer s.wg.Done()

	ch, reqs, err := newChan.Accept()
	if err != nil {
		s.t.Logf("sshserver: failed to accept session: %v", err)
		return
	}
	defer ch.Close()

	sess := &sessionState{}
	execCh := make(chan string, 1)
	shellCh := make(chan struct{}, 1)

	go func() {
		for req := range reqs {
			switch req.Type {
			case "env":
				reply(req, true)
			case "pty-req":
				var p ptyRequestPayload
				if err := ssh.Unmarshal(req.Payload, &p); err == nil {
					sess.setPtyReq(p)
				}
				reply(req, true)
			case "window-change":
				var p windowChangePayload
				if err := ssh.Unmarshal(req.Payload, &p); err == nil {
					sess.resize(p.Columns, p.Rows)
				}
				reply(req, true)
			case "shell":
				reply(req, true)
				select {
				case shellCh <- struct{}{}:
				default:
				}
			case "exec":
				var p execPayload
				ssh.Unmarshal(req.Payload, &p)
				reply(req, true)
				select {
				case execCh <- p.Command:
				default:
				}
			case "subsystem":
				reply(req, true)
			default:
				reply(req, false)
			}
		}
	}()

	select {
	case cmd := <-execCh:
		s.runExec(ch, cmd)
	case <-shellCh:
		s.runShell(ch, sess)
	case <-s.done:
	}
}

// runExec runs command through the system shell, with stdin/stdout/stderr
// bridged directly to the channel, and reports exit-status/exit-signal the
// way a real sshd would.
func (s *Server) runExec(ch ssh.Channel, command string) {
	cmd := exec.Command("sh", "-c", command)
	cmd.Stdin = ch
	cmd.Stdout = ch
	cmd.Stderr = ch.Stderr()

	err := cmd.Run()
	s.sendExitResult(ch, cmd, err)
}

// runShell starts an interactive shell. If the client requested a PTY, it
// is backed by a real local pseudo-terminal (github.com/creack/pty) so the
// remote byte stream genuinely carries terminal escape sequences; otherwise
// stdio is wired directly, matching a no-PTY "shell" request.
func (s *Server) runShell(ch ssh.Channel, sess *sessionState) {
	shellPath := os.Getenv("SHELL")
	if shellPath == "" {
		shellPath = "/bin/sh"
	}
	cmd := exec.Command(shellPath)

	if req, ok := sess.requestedPty(); ok {
		cmd.Env = append(os.Environ(), "TERM="+orDefault(req.Term, "xterm"))
		ptmx, err := pty.Start(cmd)
		if err != nil {
			s.t.Logf("sshserver: failed to start pty shell: %v", err)
			return
		}
		defer ptmx.Close()
		sess.setPtmx(ptmx)
		pty.Setsize(ptmx, &pty.Winsize{Cols: uint16(req.Columns), Rows: uint16(req.Rows)})

		var copyWg sync.WaitGroup
		copyWg.Add(2)
		go func() { defer copyWg.Done(); io.Copy(ptmx, ch) }()
		go func() { defer copyWg.Done(); io.Copy(ch, ptmx) }()

		err = cmd.Wait()
		s.sendExitResult(ch, cmd, err)
		return
	}

	cmd.Stdin = ch
	cmd.Stdout = ch
	cmd.Stderr = ch.Stderr()
	err := cmd.Run()
	s.sendExitResult(ch, cmd, err)
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// sendExitResult classifies cmd's completion the way RFC 4254 §6.10
// distinguishes a numeric exit status from a signal-terminated process,
// and sends the matching channel request.
func (s *Server) sendExitResult(ch ssh.Channel, cmd *exec.Cmd, runErr error) {
	if runErr == nil {
		sendExitStatus(ch, 0)
		return
	}

	var exitErr *exec.ExitError
	if !asExitError(runErr, &exitErr) {
		sendExitStatus(ch, 1)
		return
	}

	if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
		sig := status.Signal()
		sendExitSignal(ch, signalName(sig), status.CoreDump(), sig.String())
		return
	}

	sendExitStatus(ch, uint32(exitErr.ExitCode()))
}

func asExitError(err error, target **exec.ExitError) bool {
	if ee, ok := err.(*exec.ExitError); ok {
		*target = ee
		return true
	}
	return false
}

func signalName(sig syscall.Signal) string {
	switch sig {
	case syscall.SIGHUP:
		return "HUP"
	case syscall.SIGINT:
		return "INT"
	case syscall.SIGQUIT:
		return "QUIT"
	case syscall.SIGKILL:
		return "KILL"
	case syscall.SIGTERM:
		return "TERM"
	case syscall.SIGSEGV:
		return "SEGV"
	case syscall.SIGABRT:
		return "ABRT"
	default:
		return "TERM"
	}
}

func sendExitStatus(ch ssh.Channel, code uint32) {
	ch.SendRequest("exit-status", false, ssh.Marshal(exitStatusPayload{Status: code}))
}

func sendExitSignal(ch ssh.Channel, name string, coreDumped bool, message string) {
	ch.SendRequest("exit-signal", false, ssh.Marshal(exitSignalPayload{
		Signal:     name,
		CoreDumped: coreDumped,
		Message:    message,
		Lang:       "en",
	}))
}

// directTCPIPPayload is the RFC 4254 payload for direct-tcpip channels.
type directTCPIPPayload struct {
	DestHost   string
	DestPort   uint32
	OriginHost string
	OriginPort uint32
}

func (s *Server) handleDirectTCPIP(newChan ssh.NewChannel) {
	defer s.wg.Done()

	var payload directTCPIPPayload
	if err := ssh.Unmarshal(newChan.ExtraData(), &payload); err != nil {
		newChan.Reject(ssh.ConnectionFailed, "invalid payload")
		return
	}

	// Dial the target
	target := net.JoinHostPort(payload.DestHost, fmt.Sprintf("%d", payload.DestPort))
	targetConn, err := net.Dial("tcp", target)
	if err != nil {
		newChan.Reject(ssh.ConnectionFailed, fmt.Sprintf("failed to connect to %s: %v", target, err))
		return
	}
	defer targetConn.Close()

	ch, _, err := newChan.Accept()
	if err != nil {
		s.t.Logf("sshserver: failed to accept direct-tcpip channel: %v", err)
		return
	}
	defer ch.Close()

	// Bidirectional proxy
	var proxyWg sync.WaitGroup
	proxyWg.Add(2)

	go func() {
		defer proxyWg.Done()
		io.Copy(ch, targetConn)
		ch.CloseWrite()
	}()

	go func() {
		defer proxyWg.Done()
		io.Copy(targetConn, ch)
		targetConn.(*net.TCPConn).CloseWrite()
	}()

	// Wait for copy to finish or server shutdown
	doneCh := make(chan struct{})
	go func() {
		proxyWg.Wait()
		close(doneCh)
	}()

	select {
	case <-doneCh:
	case <-s.done:
	}
}

func (s *Server) generateSSHConfig() {
	s.sshConfigPath = filepath.Join(s.configDir, "ssh_config")

	config := fmt.Sprintf(`Host %s
    HostName 127.0.0.1
    Port %d
    User %s
    StrictHostKeyChecking no
    UserKnownHostsFile /dev/null
    LogLevel ERROR
`, s.alias, s.Port(), s.opts.Username)

	// Password-only auth needs additional config to prevent pubkey attempts
	if s.opts.Password != "" && len(s.opts.AuthorizedKeys) == 0 {
		config += "    PreferredAuthentications password\n"
		config += "    PubkeyAuthentication no\n"
	}

	if err := os.WriteFile(s.sshConfigPath, []byte(config), 0600); err != nil {
		s.t.Fatalf("sshserver: failed to write SSH config: %v", err)
	}
}

func generateED25519Key(t testing.TB) ssh.Signer {
	t.Helper()

	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("sshserver: failed to generate ED25519 key: %v", err)
	}

	signer, err := ssh.NewSignerFromKey(priv)
	if err != nil {
		t.Fatalf("sshserver: failed to create signer: %v", err)
	}

	return signer
}

// PublicKeys wraps one or more ssh.PublicKey values into a slice.
// Convenience helper for constructing Options.AuthorizedKeys.
func PublicKeys(keys ...ssh.PublicKey) []ssh.PublicKey {
	return keys
}

// GenerateClientKeyPair generates a temporary ED25519 keypair for testing.
// Returns the signer, the public key, and the path to the private key file.
func GenerateClientKeyPair(t testing.TB, dir string) (ssh.Signer, ssh.PublicKey, string) {
	t.Helper()

	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("sshserver: failed to generate client key: %v", err)
	}

	signer, err := ssh.NewSignerFromKey(priv)
	if err != nil {
		t.Fatalf("sshserver: failed to create client signer: %v", err)
	}

	// Write private key in OpenSSH format using the library
	keyPath := filepath.Join(dir, "id_ed25519_test")
	block, err := ssh.MarshalPrivateKey(priv, "")
	if err != nil {
		t.Fatalf("sshserver: failed to marshal private key: %v", err)
	}

	keyBytes := pem.EncodeToMemory(block)
	if err := os.WriteFile(keyPath, keyBytes, 0600); err != nil {
		t.Fatalf("sshserver: failed to write private key: %v", err)
	}

	return signer, signer.PublicKey(), keyPath
}
