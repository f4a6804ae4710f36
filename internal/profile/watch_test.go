package profile

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWatcherPicksUpFileChanges(t *testing.T) {
	dir := t.TempDir()
	writeHCL(t, dir, "profiles.hcl", `
profile "one" {
  host = "one.example.com"
}
`)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w, err := NewWatcher(ctx, dir)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}

	if _, ok := w.Current().Get("one"); !ok {
		t.Fatal("expected profile \"one\" in the initial load")
	}

	watcher := w.Watch()

	// Overwrite the file; this must trigger a debounced reload.
	path := filepath.Join(dir, "profiles.hcl")
	if err := os.WriteFile(path, []byte(`
profile "one" {
  host = "one.example.com"
}
profile "two" {
  host = "two.example.com"
}
`), 0644); err != nil {
		t.Fatalf("rewrite profiles.hcl: %v", err)
	}

	deadline, deadlineCancel := context.WithTimeout(ctx, 3*time.Second)
	defer deadlineCancel()

	for {
		store, err := watcher.Changed(deadline)
		if err != nil {
			t.Fatalf("Changed: %v", err)
		}
		if _, ok := store.Get("two"); ok {
			return
		}
	}
}
