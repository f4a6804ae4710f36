package sshcore

import "testing"

func TestNewBuilderDefaults(t *testing.T) {
	sess, err := NewBuilder().Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if sess.cfg.Host != "localhost" {
		t.Fatalf("Host = %q, want %q", sess.cfg.Host, "localhost")
	}
	if sess.cfg.User != "root" {
		t.Fatalf("User = %q, want %q", sess.cfg.User, "root")
	}
	if sess.cfg.Port != 22 {
		t.Fatalf("Port = %d, want 22", sess.cfg.Port)
	}
	if len(sess.cfg.Cmd) != 1 || sess.cfg.Cmd[0] != "bash" {
		t.Fatalf("Cmd = %v, want [bash]", sess.cfg.Cmd)
	}
	if _, ok := sess.cfg.Auth.(noneAuth); !ok {
		t.Fatalf("Auth = %T, want noneAuth", sess.cfg.Auth)
	}
}

func TestBuilderKeyTakesPriorityOverPassword(t *testing.T) {
	sess, err := NewBuilder().Password("secret").Key("/tmp/does-not-matter").Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	auth, ok := sess.cfg.Auth.(publicKeyAuth)
	if !ok {
		t.Fatalf("Auth = %T, want publicKeyAuth", sess.cfg.Auth)
	}
	if auth.keyPath != "/tmp/does-not-matter" {
		t.Fatalf("keyPath = %q", auth.keyPath)
	}
}

func TestBuilderCertSelectsPublicKeyCertKind(t *testing.T) {
	sess, err := NewBuilder().Key("/tmp/k").Cert("/tmp/k-cert.pub").Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if got := sess.cfg.Auth.authKind(); got != AuthKindPublicKeyCert {
		t.Fatalf("authKind() = %v, want %v", got, AuthKindPublicKeyCert)
	}
}

func TestBuilderPasswordSelectsPasswordAuth(t *testing.T) {
	sess, err := NewBuilder().Password("secret").Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if got := sess.cfg.Auth.authKind(); got != AuthKindPassword {
		t.Fatalf("authKind() = %v, want %v", got, AuthKindPassword)
	}
}
