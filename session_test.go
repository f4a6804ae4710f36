package sshcore

import (
	"context"
	"testing"
	"time"

	"go.olrik.dev/sshcore/internal/testutil/sshserver"
)

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func newTestServer(t *testing.T, opts sshserver.Options) *sshserver.Server {
	t.Helper()
	srv := sshserver.New(t, opts)
	srv.Start()
	t.Cleanup(srv.Stop)
	return srv
}

func TestSessionConnectPasswordAuth(t *testing.T) {
	srv := newTestServer(t, sshserver.Options{Username: "alice", Password: "hunter2"})

	sess, err := NewBuilder().
		Host("127.0.0.1").
		Port(uint16(srv.Port())).
		User("alice").
		Password("hunter2").
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer sess.Close()

	if err := sess.Connect(testContext(t)); err != nil {
		t.Fatalf("Connect: %v", err)
	}
}

func TestSessionConnectWrongPasswordFails(t *testing.T) {
	srv := newTestServer(t, sshserver.Options{Username: "alice", Password: "hunter2"})

	sess, err := NewBuilder().
		Host("127.0.0.1").
		Port(uint16(srv.Port())).
		User("alice").
		Password("wrong").
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer sess.Close()

	if err := sess.Connect(testContext(t)); err == nil {
		t.Fatal("Connect: expected error for wrong password, got nil")
	}
}

func TestSessionConnectNoneAuth(t *testing.T) {
	srv := newTestServer(t, sshserver.Options{Username: "bob", AllowNoneAuth: true})

	sess, err := NewBuilder().
		Host("127.0.0.1").
		Port(uint16(srv.Port())).
		User("bob").
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer sess.Close()

	if err := sess.Connect(testContext(t)); err != nil {
		t.Fatalf("Connect: %v", err)
	}
}

func TestSessionConnectPublicKeyAuth(t *testing.T) {
	dir := t.TempDir()
	_, pub, keyPath := sshserver.GenerateClientKeyPair(t, dir)

	srv := newTestServer(t, sshserver.Options{
		Username:       "carol",
		AuthorizedKeys: sshserver.PublicKeys(pub),
	})

	sess, err := NewBuilder().
		Host("127.0.0.1").
		Port(uint16(srv.Port())).
		User("carol").
		Key(keyPath).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer sess.Close()

	if err := sess.Connect(testContext(t)); err != nil {
		t.Fatalf("Connect: %v", err)
	}
}

func TestSessionExecWithoutConnectFails(t *testing.T) {
	sess, err := NewBuilder().Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if _, err := sess.Exec(testContext(t), []string{"true"}); err != ErrNoOpenSession {
		t.Fatalf("Exec: got %v, want ErrNoOpenSession", err)
	}
}
