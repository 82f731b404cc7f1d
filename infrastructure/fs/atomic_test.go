package fs

import (
	"os"
	"path/filepath"
	"testing"
)

func TestWriteAtomic_RoundTrips(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "nested", "out.json")

	if err := WriteAtomic(target, []byte(`{"ok":true}`), 0o644); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("failed to read back: %v", err)
	}
	if string(got) != `{"ok":true}` {
		t.Fatalf("unexpected content: %s", got)
	}
}

func TestEnsureRooted_RejectsEscape(t *testing.T) {
	root := t.TempDir()
	_, err := EnsureRooted(root, filepath.Join(root, "..", "..", "etc", "passwd"))
	if err == nil {
		t.Fatal("expected an UnsafePathError for a path escaping the root")
	}
}

func TestEnsureRooted_AcceptsNestedPath(t *testing.T) {
	root := t.TempDir()
	got, err := EnsureRooted(root, filepath.Join(root, "target", "manifest.json"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == "" {
		t.Fatal("expected a resolved absolute path")
	}
}
