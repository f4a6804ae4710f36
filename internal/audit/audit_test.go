package audit

import (
	"path/filepath"
	"testing"
	"time"
)

func TestDBOpenAndClose(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "audit.db")

	db, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestLogAndRecent(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "audit.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()

	inv := Invocation{
		Kind:       "exec",
		Host:       "example.com",
		User:       "root",
		Command:    "uptime",
		ExitCode:   0,
		ExitKind:   "code",
		DurationMS: 42,
		StartedAt:  time.Now(),
	}
	if err := db.Log(inv); err != nil {
		t.Fatalf("Log: %v", err)
	}

	recent, err := db.Recent(10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recent) != 1 {
		t.Fatalf("len(recent) = %d, want 1", len(recent))
	}
	if recent[0].Command != "uptime" || recent[0].Host != "example.com" {
		t.Fatalf("got %+v", recent[0])
	}
	if recent[0].ID == "" {
		t.Fatal("Log did not assign an ID")
	}
}

func TestRecentForHostFiltersByHost(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "audit.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()

	for _, host := range []string{"a.example.com", "b.example.com", "a.example.com"} {
		if err := db.Log(Invocation{
			Kind: "exec", Host: host, User: "root", Command: "true",
			ExitKind: "code", StartedAt: time.Now(),
		}); err != nil {
			t.Fatalf("Log: %v", err)
		}
	}

	got, err := db.RecentForHost("a.example.com", 10)
	if err != nil {
		t.Fatalf("RecentForHost: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len(got) = %d, want 2", len(got))
	}
	for _, inv := range got {
		if inv.Host != "a.example.com" {
			t.Fatalf("got host %q, want a.example.com", inv.Host)
		}
	}
}
