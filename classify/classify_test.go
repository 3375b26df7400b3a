package classify

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/weftend/weftend/capture"
	"github.com/weftend/weftend/receipts"
)

func captureOf(t *testing.T, path string) *receipts.ArtifactCapture {
	t.Helper()
	c, err := capture.Capture(path, capture.DefaultLimits())
	if err != nil {
		t.Fatalf("capture: %v", err)
	}
	return c
}

func TestClassify_NativeExe(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.exe")
	os.WriteFile(path, []byte("MZ\x90\x00"), 0o644)

	r := Classify(path, captureOf(t, path))
	if r.ArtifactKind != receipts.KindNativeExe {
		t.Errorf("kind = %q, want NATIVE_EXE", r.ArtifactKind)
	}
	if len(r.ReasonCodes) == 0 {
		t.Error("expected reason codes")
	}
}

func TestClassify_ZipMagic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bundle.zip")
	os.WriteFile(path, []byte("PK\x03\x04rest-of-file"), 0o644)

	r := Classify(path, captureOf(t, path))
	if r.ArtifactKind != receipts.KindZIP {
		t.Errorf("kind = %q, want ZIP", r.ArtifactKind)
	}
}

func TestClassify_TextHeuristic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.txt")
	os.WriteFile(path, []byte("just plain ascii text"), 0o644)

	r := Classify(path, captureOf(t, path))
	if r.ArtifactKind != receipts.KindText {
		t.Errorf("kind = %q, want TEXT", r.ArtifactKind)
	}
}

func TestClassify_UnknownBinary(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "blob.bin")
	os.WriteFile(path, []byte{0x00, 0x01, 0x02, 0xFF, 0xFE}, 0o644)

	r := Classify(path, captureOf(t, path))
	if r.ArtifactKind != receipts.KindUnknown {
		t.Errorf("kind = %q, want UNKNOWN", r.ArtifactKind)
	}
}

func TestClassify_ReleaseDir(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "release_manifest.json"), []byte(`{}`), 0o644)
	os.WriteFile(filepath.Join(dir, "runtime_bundle.json"), []byte(`{}`), 0o644)

	r := Classify(dir, captureOf(t, dir))
	if r.ArtifactKind != receipts.KindReleaseDir {
		t.Errorf("kind = %q, want RELEASE_DIR", r.ArtifactKind)
	}
}

func TestClassify_DirWithoutMarkersIsNotReleaseDir(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "release_manifest.json"), []byte(`{}`), 0o644)

	r := Classify(dir, captureOf(t, dir))
	if r.ArtifactKind == receipts.KindReleaseDir {
		t.Error("expected non-RELEASE_DIR when runtime_bundle.json missing")
	}
}

func TestClassify_EntryHintHTMLAtRoot(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "index.html"), []byte("<html></html>"), 0o644)

	r := Classify(dir, captureOf(t, dir))
	if r.EntryHint != "ENTRY_HTML_LIKE" {
		t.Errorf("entryHint = %q, want ENTRY_HTML_LIKE", r.EntryHint)
	}
}

func TestClassify_IsDeterministic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.exe")
	os.WriteFile(path, []byte("MZ"), 0o644)
	cap := captureOf(t, path)

	r1 := Classify(path, cap)
	r2 := Classify(path, cap)
	if r1.ArtifactKind != r2.ArtifactKind || r1.EntryHint != r2.EntryHint {
		t.Fatal("classification not stable across repeated calls")
	}
	if len(r1.ReasonCodes) != len(r2.ReasonCodes) {
		t.Fatal("reasonCodes length differs across repeated calls")
	}
	for i := range r1.ReasonCodes {
		if r1.ReasonCodes[i] != r2.ReasonCodes[i] {
			t.Fatalf("reasonCodes differ at %d: %q != %q", i, r1.ReasonCodes[i], r2.ReasonCodes[i])
		}
	}
}
