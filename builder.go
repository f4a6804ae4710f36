package sshcore

import (
	"time"

	"golang.org/x/crypto/ssh"
)

// Builder fluently constructs a Config and yields a disconnected Session.
type Builder struct {
	host              string
	user              string
	port              uint16
	scope             string
	password          string
	hasPassword       bool
	keyPath           string
	certPath          string
	cmd               []string
	inactivityTimeout time.Duration
	hostKeyCallback   ssh.HostKeyCallback
}

// NewBuilder returns a Builder populated with the documented defaults:
// host "localhost", user "root", port 22, cmd ["bash"], a 3000s inactivity
// timeout, and a host-key callback that accepts every server key.
//
// Accepting every server key without verification is a known security
// issue, not a design goal; NewBuilder keeps it as the default only for
// compatibility with callers that have not yet installed HostKeyCallback.
func NewBuilder() *Builder {
	return &Builder{
		host:              "localhost",
		user:              "root",
		port:              22,
		cmd:               []string{"bash"},
		inactivityTimeout: 3000 * time.Second,
		hostKeyCallback:   ssh.InsecureIgnoreHostKey(),
	}
}

func (b *Builder) Host(host string) *Builder { b.host = host; return b }
func (b *Builder) User(user string) *Builder { b.user = user; return b }
func (b *Builder) Port(port uint16) *Builder { b.port = port; return b }
func (b *Builder) Scope(scope string) *Builder { b.scope = scope; return b }

func (b *Builder) Password(password string) *Builder {
	b.password = password
	b.hasPassword = true
	return b
}

func (b *Builder) Key(path string) *Builder { b.keyPath = path; return b }
func (b *Builder) Cert(path string) *Builder { b.certPath = path; return b }

func (b *Builder) Cmd(cmd []string) *Builder {
	b.cmd = cmd
	return b
}

func (b *Builder) InactivityTimeout(d time.Duration) *Builder {
	b.inactivityTimeout = d
	return b
}

// HostKeyCallback installs the §9 policy hook: a predicate that decides
// whether to trust a server's host key. Defaults to accepting every key.
func (b *Builder) HostKeyCallback(cb ssh.HostKeyCallback) *Builder {
	b.hostKeyCallback = cb
	return b
}

// Build resolves the authentication variant by priority (key present ⇒
// PublicKey; else password present ⇒ Password; else None) and yields a
// disconnected Session.
func (b *Builder) Build() (*Session, error) {
	var auth AuthMethod
	switch {
	case b.keyPath != "":
		auth = publicKeyAuth{keyPath: b.keyPath, certPath: b.certPath}
	case b.hasPassword:
		auth = passwordAuth{password: b.password}
	default:
		auth = noneAuth{}
	}

	cfg := Config{
		User:              b.user,
		Host:              b.host,
		Port:              b.port,
		Scope:             b.scope,
		Cmd:               b.cmd,
		InactivityTimeout: b.inactivityTimeout,
		Auth:              auth,
		HostKeyCallback:   b.hostKeyCallback,
	}

	return &Session{cfg: cfg}, nil
}
