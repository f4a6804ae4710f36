package sshcore

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestUploadFileWritesExactContent(t *testing.T) {
	sess := connectedSession(t)
	client, err := sess.transport()
	if err != nil {
		t.Fatalf("transport: %v", err)
	}

	localDir := t.TempDir()
	localPath := filepath.Join(localDir, "local.txt")
	want := strings.Repeat("the quick brown fox jumps over the lazy dog\n", 2000) // exceeds one 16 KiB chunk
	if err := os.WriteFile(localPath, []byte(want), 0644); err != nil {
		t.Fatalf("write local file: %v", err)
	}

	remotePath := filepath.Join(t.TempDir(), "uploaded.txt")

	if err := UploadFile(testContext(t), client, localPath, remotePath); err != nil {
		t.Fatalf("UploadFile: %v", err)
	}

	got, err := os.ReadFile(remotePath)
	if err != nil {
		t.Fatalf("read uploaded file: %v", err)
	}
	if string(got) != want {
		t.Fatalf("uploaded content mismatch: got %d bytes, want %d bytes", len(got), len(want))
	}
}

func TestUploadFileUsesRemoteBasename(t *testing.T) {
	sess := connectedSession(t)
	client, err := sess.transport()
	if err != nil {
		t.Fatalf("transport: %v", err)
	}

	localDir := t.TempDir()
	localPath := filepath.Join(localDir, "source-name.txt")
	if err := os.WriteFile(localPath, []byte("payload"), 0644); err != nil {
		t.Fatalf("write local file: %v", err)
	}

	remoteDir := t.TempDir()
	remotePath := filepath.Join(remoteDir, "destination-name.txt")

	if err := UploadFile(testContext(t), client, localPath, remotePath); err != nil {
		t.Fatalf("UploadFile: %v", err)
	}

	if _, err := os.Stat(remotePath); err != nil {
		t.Fatalf("expected file at remote path %q: %v", remotePath, err)
	}
	if _, err := os.Stat(filepath.Join(remoteDir, "source-name.txt")); !os.IsNotExist(err) {
		t.Fatalf("expected no file named after the local basename, got err=%v", err)
	}
}

func TestUploadFileMissingLocalFails(t *testing.T) {
	sess := connectedSession(t)
	client, err := sess.transport()
	if err != nil {
		t.Fatalf("transport: %v", err)
	}

	err = UploadFile(testContext(t), client, filepath.Join(t.TempDir(), "does-not-exist"), filepath.Join(t.TempDir(), "dest"))
	if err == nil {
		t.Fatal("UploadFile: expected error for missing local file, got nil")
	}
}
