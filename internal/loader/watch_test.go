package loader

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func TestWatch_FiresOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "agent-details.csv")
	if err := os.WriteFile(path, []byte("AGENT,TIME,STATE\n"), 0644); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls int32
	changed := make(chan struct{}, 4)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, 20*time.Millisecond, func() {
			atomic.AddInt32(&calls, 1)
			changed <- struct{}{}
		})
	}()

	// Give the watcher time to register.
	time.Sleep(50 * time.Millisecond)

	// An unrelated file in the same directory is ignored.
	if err := os.WriteFile(filepath.Join(dir, "other.csv"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		if err := os.WriteFile(path, []byte("AGENT,TIME,STATE\nAmy,08:00:00,Login\n"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	select {
	case <-changed:
	case <-time.After(2 * time.Second):
		t.Fatal("onChange was not called")
	}

	// Let any stray debounce window pass.
	time.Sleep(100 * time.Millisecond)
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("expected writes to coalesce into 1 call, got %d", got)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Watch did not return after cancel")
	}
}

func TestWatch_MissingDirectory(t *testing.T) {
	err := Watch(context.Background(), filepath.Join(t.TempDir(), "nope", "a.csv"), DefaultDebounce, func() {})
	if err == nil {
		t.Fatal("expected error for a missing directory")
	}
}
