package ycm

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tidwall/gjson"
)

func TestExtraConfWatcher_ReloadsOnChange(t *testing.T) {
	d := newFakeDaemon(t)
	session := startSession(t, d)

	var loads atomic.Int32
	d.setHandler(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if r.URL.Path == "/load_extra_conf_file" && gjson.GetBytes(body, "filepath").Exists() {
			loads.Add(1)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, "{}")
	})

	confPath := filepath.Join(t.TempDir(), ".ycm_extra_conf.py")
	if err := os.WriteFile(confPath, []byte("flags = []\n"), 0o600); err != nil {
		t.Fatalf("write extra conf: %v", err)
	}

	client := NewCompletionClient(session)
	watcher := NewExtraConfWatcher(client, confPath, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := watcher.Start(ctx); err != nil {
		t.Fatalf("start watcher: %v", err)
	}
	defer watcher.Stop()

	// Initial load happens on start.
	if got := loads.Load(); got != 1 {
		t.Fatalf("initial loads = %d, want 1", got)
	}

	// Changing the file triggers a debounced reload.
	if err := os.WriteFile(confPath, []byte("flags = ['-Wall']\n"), 0o600); err != nil {
		t.Fatalf("rewrite extra conf: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for loads.Load() < 2 {
		if time.Now().After(deadline) {
			t.Fatalf("reload never fired; loads = %d", loads.Load())
		}
		time.Sleep(50 * time.Millisecond)
	}
}

func TestExtraConfWatcher_EmptyPathDisabled(t *testing.T) {
	watcher := NewExtraConfWatcher(nil, "", nil)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := watcher.Start(ctx); err != nil {
		t.Fatalf("start with empty path: %v", err)
	}
	watcher.Stop() // no-op; nothing was started
}

func TestExtraConfWatcher_StopIdempotent(t *testing.T) {
	d := newFakeDaemon(t)
	session := startSession(t, d)

	confPath := filepath.Join(t.TempDir(), ".ycm_extra_conf.py")
	if err := os.WriteFile(confPath, []byte("flags = []\n"), 0o600); err != nil {
		t.Fatalf("write extra conf: %v", err)
	}

	client := NewCompletionClient(session)
	watcher := NewExtraConfWatcher(client, confPath, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := watcher.Start(ctx); err != nil {
		t.Fatalf("start watcher: %v", err)
	}
	if err := watcher.Start(ctx); err != nil {
		t.Fatalf("second start: %v", err)
	}

	watcher.Stop()
	watcher.Stop()
}
