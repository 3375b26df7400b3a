package capture

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/weftend/weftend/receipts"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestCapture_SingleFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "artifact.txt")
	writeFile(t, path, "hello world")

	cap, err := Capture(path, DefaultLimits())
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}
	if cap.Kind != "file" {
		t.Errorf("kind = %q, want file", cap.Kind)
	}
	if len(cap.Entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(cap.Entries))
	}
	if cap.Entries[0].Bytes != int64(len("hello world")) {
		t.Errorf("bytes = %d", cap.Entries[0].Bytes)
	}
	if cap.RootDigest == "" {
		t.Error("expected non-empty rootDigest")
	}
}

func TestCapture_DirectorySortedOrder(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "zeta.txt"), "z")
	writeFile(t, filepath.Join(dir, "alpha.txt"), "a")
	writeFile(t, filepath.Join(dir, "sub", "beta.txt"), "b")

	cap, err := Capture(dir, DefaultLimits())
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}
	if len(cap.Entries) != 3 {
		t.Fatalf("entries = %d, want 3", len(cap.Entries))
	}
	var paths []string
	for _, e := range cap.Entries {
		paths = append(paths, e.Path)
	}
	want := []string{"alpha.txt", "sub/beta.txt", "zeta.txt"}
	for i, w := range want {
		if paths[i] != w {
			t.Errorf("paths[%d] = %q, want %q (full: %v)", i, paths[i], w, paths)
		}
	}
}

func TestCapture_DeterministicRootDigest(t *testing.T) {
	dir1 := t.TempDir()
	dir2 := t.TempDir()
	writeFile(t, filepath.Join(dir1, "a.txt"), "same content")
	writeFile(t, filepath.Join(dir2, "a.txt"), "same content")

	c1, err := Capture(dir1, DefaultLimits())
	if err != nil {
		t.Fatalf("Capture dir1: %v", err)
	}
	c2, err := Capture(dir2, DefaultLimits())
	if err != nil {
		t.Fatalf("Capture dir2: %v", err)
	}
	if c1.RootDigest != c2.RootDigest {
		t.Errorf("rootDigest differs for identical trees: %s != %s", c1.RootDigest, c2.RootDigest)
	}
}

func TestCapture_TruncatesOnMaxFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.txt"), "a")
	writeFile(t, filepath.Join(dir, "b.txt"), "b")
	writeFile(t, filepath.Join(dir, "c.txt"), "c")

	limits := receipts.CaptureLimits{MaxFiles: 2, MaxTotalBytes: 1 << 20, MaxFileBytes: 1 << 20, MaxPathBytes: 4096}
	cap, err := Capture(dir, limits)
	if err == nil {
		t.Fatal("expected truncation error")
	}
	capErr, ok := err.(*Error)
	if !ok {
		t.Fatalf("expected *Error, got %T", err)
	}
	if capErr.ReasonCode != ReasonTruncatedMaxFiles {
		t.Errorf("reasonCode = %q, want %q", capErr.ReasonCode, ReasonTruncatedMaxFiles)
	}
	if cap == nil || !cap.Truncated {
		t.Error("expected cap.Truncated = true")
	}
}

func TestCapture_TruncatesOnMaxFileBytes(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "big.txt"), "0123456789")

	limits := receipts.CaptureLimits{MaxFiles: 10, MaxTotalBytes: 1 << 20, MaxFileBytes: 4, MaxPathBytes: 4096}
	_, err := Capture(dir, limits)
	if err == nil {
		t.Fatal("expected truncation error")
	}
	capErr, ok := err.(*Error)
	if !ok || capErr.ReasonCode != ReasonTruncatedMaxFileBytes {
		t.Fatalf("got %v, want ReasonTruncatedMaxFileBytes", err)
	}
}

func TestCapture_SymlinkEscapeRejected(t *testing.T) {
	dir := t.TempDir()
	outside := t.TempDir()
	writeFile(t, filepath.Join(outside, "secret.txt"), "shh")
	if err := os.Symlink(filepath.Join(outside, "secret.txt"), filepath.Join(dir, "link.txt")); err != nil {
		t.Skipf("symlink not supported: %v", err)
	}

	_, err := Capture(dir, DefaultLimits())
	if err == nil {
		t.Fatal("expected symlink escape error")
	}
	capErr, ok := err.(*Error)
	if !ok || capErr.ReasonCode != ReasonSymlinkEscape {
		t.Fatalf("got %v, want ReasonSymlinkEscape", err)
	}
}

func TestCapture_MissingInput(t *testing.T) {
	_, err := Capture(filepath.Join(t.TempDir(), "nope"), DefaultLimits())
	if err == nil {
		t.Fatal("expected error for missing input")
	}
}
