package ingest

import (
	"context"
	"testing"
	"time"
)

// waitFor polls cond until it returns true or the deadline passes.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(20 * time.Millisecond)
	}
	return cond()
}

func TestWatcher_ReingestsOnChange(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dir := t.TempDir()
	store := newTestStore(t)
	pipeline := NewPipeline(store, testIngestConfig())

	watcher, err := NewWatcher(pipeline, []string{dir}, 50*time.Millisecond)
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- watcher.Run(ctx) }()

	// Give the watcher a moment to register the directory.
	time.Sleep(100 * time.Millisecond)

	path := writeTestFile(t, dir, "note.txt", "the first harbor draft")
	docID := documentID(path)
	if !waitFor(t, 3*time.Second, func() bool { return store.ActiveVersion(docID) == 1 }) {
		t.Fatalf("new file was not ingested, ActiveVersion = %d", store.ActiveVersion(docID))
	}

	writeTestFile(t, dir, "note.txt", "the second harbor draft with revisions")
	if !waitFor(t, 3*time.Second, func() bool { return store.ActiveVersion(docID) == 2 }) {
		t.Fatalf("changed file was not reingested, ActiveVersion = %d", store.ActiveVersion(docID))
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Run() returned %v after cancel, want nil", err)
	}
}

func TestWatcher_IgnoresUnsupportedFiles(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dir := t.TempDir()
	store := newTestStore(t)
	pipeline := NewPipeline(store, testIngestConfig())

	watcher, err := NewWatcher(pipeline, []string{dir}, 50*time.Millisecond)
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- watcher.Run(ctx) }()
	time.Sleep(100 * time.Millisecond)

	writeTestFile(t, dir, "dump.bin", "binary-ish payload")
	path := writeTestFile(t, dir, "real.txt", "supported content arrives")
	if !waitFor(t, 3*time.Second, func() bool { return store.ActiveVersion(documentID(path)) >= 1 }) {
		t.Fatal("supported file was not ingested")
	}
	if len(store.Documents()) != 1 {
		t.Errorf("store holds %d documents, want only the supported one", len(store.Documents()))
	}

	cancel()
	<-done
}

func TestWatcher_MissingPathFails(t *testing.T) {
	store := newTestStore(t)
	pipeline := NewPipeline(store, testIngestConfig())

	watcher, err := NewWatcher(pipeline, []string{"/no/such/path"}, 0)
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	if err := watcher.Run(context.Background()); err == nil {
		t.Error("Run() with a missing path should fail")
	}
}
