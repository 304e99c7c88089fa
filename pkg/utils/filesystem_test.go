package utils

import (
	"os"
	"path/filepath"
	"testing"
)

func TestEnsureParentDir(t *testing.T) {
	base := t.TempDir()

	path := filepath.Join(base, "data", "nested", "scout-keyword.db")
	if err := EnsureParentDir(path); err != nil {
		t.Fatalf("EnsureParentDir() error = %v", err)
	}
	info, err := os.Stat(filepath.Dir(path))
	if err != nil {
		t.Fatalf("parent directory was not created: %v", err)
	}
	if !info.IsDir() {
		t.Error("expected a directory")
	}

	// No-op inputs must not error or create anything.
	for _, p := range []string{"", ":memory:", "scout-sessions.db"} {
		if err := EnsureParentDir(p); err != nil {
			t.Errorf("EnsureParentDir(%q) error = %v", p, err)
		}
	}
}
