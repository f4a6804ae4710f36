package profile

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeHCL(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadParsesBasicFields(t *testing.T) {
	dir := t.TempDir()
	path := writeHCL(t, dir, "profiles.hcl", `
profile "prod" {
  host = "prod.example.com"
  user = "deploy"
  port = 2222
  cmd  = ["bash", "-l"]
  inactivity_timeout = "45s"
}
`)

	store, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	p, ok := store.Get("prod")
	if !ok {
		t.Fatal("expected profile \"prod\"")
	}
	if p.Host != "prod.example.com" || p.User != "deploy" || p.Port != 2222 {
		t.Fatalf("got %+v", p)
	}
	if len(p.Cmd) != 2 || p.Cmd[0] != "bash" || p.Cmd[1] != "-l" {
		t.Fatalf("Cmd = %v", p.Cmd)
	}
	if p.InactivityTimeout != 45*time.Second {
		t.Fatalf("InactivityTimeout = %v, want 45s", p.InactivityTimeout)
	}
	if p.AuthKind != AuthKindNone {
		t.Fatalf("AuthKind = %v, want %v", p.AuthKind, AuthKindNone)
	}
}

func TestLoadResolvesAuthKindFromAuthBlock(t *testing.T) {
	dir := t.TempDir()

	keyPath := writeHCL(t, dir, "keyed.hcl", `
profile "keyed" {
  host = "keyed.example.com"
  auth {
    key  = "/home/me/.ssh/id_ed25519"
    cert = "/home/me/.ssh/id_ed25519-cert.pub"
  }
}
`)
	store, err := Load(keyPath)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	p, _ := store.Get("keyed")
	if p.AuthKind != AuthKindPublicKeyCert {
		t.Fatalf("AuthKind = %v, want %v", p.AuthKind, AuthKindPublicKeyCert)
	}

	pwPath := writeHCL(t, dir, "pw.hcl", `
profile "pw" {
  host = "pw.example.com"
  auth {
    password   = true
    secret_ref = "pw-host-secret"
  }
}
`)
	store, err = Load(pwPath)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	p, _ = store.Get("pw")
	if p.AuthKind != AuthKindPassword {
		t.Fatalf("AuthKind = %v, want %v", p.AuthKind, AuthKindPassword)
	}
	if p.SecretRef != "pw-host-secret" {
		t.Fatalf("SecretRef = %q, want %q", p.SecretRef, "pw-host-secret")
	}
}

func TestLoadDirMergesFilesAlphabetically(t *testing.T) {
	dir := t.TempDir()
	writeHCL(t, dir, "a.hcl", `
profile "first" {
  host = "first.example.com"
}
`)
	writeHCL(t, dir, "b.hcl", `
profile "second" {
  host = "second.example.com"
}
`)

	store, err := LoadDir(dir)
	if err != nil {
		t.Fatalf("LoadDir: %v", err)
	}
	if len(store.Profiles) != 2 {
		t.Fatalf("len(Profiles) = %d, want 2", len(store.Profiles))
	}
	if _, ok := store.Get("first"); !ok {
		t.Fatal("expected profile \"first\"")
	}
	if _, ok := store.Get("second"); !ok {
		t.Fatal("expected profile \"second\"")
	}
}

func TestLoadDirRejectsDuplicateProfileNames(t *testing.T) {
	dir := t.TempDir()
	writeHCL(t, dir, "a.hcl", `
profile "dup" {
  host = "a.example.com"
}
`)
	writeHCL(t, dir, "b.hcl", `
profile "dup" {
  host = "b.example.com"
}
`)

	if _, err := LoadDir(dir); err == nil {
		t.Fatal("LoadDir: expected error for duplicate profile name, got nil")
	}
}

func TestLoadDirMissingDirectoryReturnsEmptyStore(t *testing.T) {
	store, err := LoadDir(filepath.Join(t.TempDir(), "does-not-exist"))
	if err != nil {
		t.Fatalf("LoadDir: %v", err)
	}
	if len(store.Profiles) != 0 {
		t.Fatalf("len(Profiles) = %d, want 0", len(store.Profiles))
	}
}
