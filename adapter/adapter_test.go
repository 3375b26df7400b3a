package adapter

import (
	"archive/zip"
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/weftend/weftend/capture"
	"github.com/weftend/weftend/receipts"
)

func TestNewRegistry_FixedOrder(t *testing.T) {
	r := NewRegistry()
	all := r.All()
	if len(all) != 10 {
		t.Fatalf("expected 10 adapters, got %d", len(all))
	}
	wantFirst := ClassArchive
	if all[0].Class() != wantFirst {
		t.Errorf("first adapter class = %q, want %q", all[0].Class(), wantFirst)
	}
}

func writeZip(t *testing.T, path string, names []string) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer f.Close()
	zw := zip.NewWriter(f)
	for _, n := range names {
		w, err := zw.Create(n)
		if err != nil {
			t.Fatalf("zip create entry: %v", err)
		}
		w.Write([]byte("content"))
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
}

func captureFileOf(t *testing.T, path string) *receipts.ArtifactCapture {
	t.Helper()
	c, err := capture.Capture(path, capture.DefaultLimits())
	if err != nil {
		t.Fatalf("capture: %v", err)
	}
	return c
}

func TestArchiveAdapter_ValidZIP(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bundle.zip")
	writeZip(t, path, []string{"a.txt", "sub/b.txt"})

	a := newArchiveAdapter()
	cap := captureFileOf(t, path)
	if !a.Fitness(path, cap) {
		t.Fatal("expected fitness true for ZIP file")
	}
	res := a.Validate(path, cap, nil)
	if !res.Ok {
		t.Fatalf("expected ok, got failCode=%s message=%s", res.FailCode, res.FailMessage)
	}
}

func TestArchiveAdapter_DuplicateEntryFails(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dup.zip")

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	zw := zip.NewWriter(f)
	w1, _ := zw.Create("a.txt")
	w1.Write([]byte("one"))
	w2, _ := zw.Create("a.txt")
	w2.Write([]byte("two"))
	zw.Close()
	f.Close()

	a := newArchiveAdapter()
	cap := captureFileOf(t, path)
	res := a.Validate(path, cap, nil)
	if res.Ok {
		t.Fatal("expected duplicate entry to fail validation")
	}
	if res.FailCode != "ARCHIVE_FORMAT_MISMATCH" {
		t.Errorf("failCode = %q, want ARCHIVE_FORMAT_MISMATCH", res.FailCode)
	}
}

func TestArchiveAdapter_PathTraversalFails(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "evil.zip")
	writeZip(t, path, []string{"../../etc/passwd"})

	a := newArchiveAdapter()
	cap := captureFileOf(t, path)
	res := a.Validate(path, cap, nil)
	if res.Ok {
		t.Fatal("expected traversal entry to fail validation")
	}
}

func TestArchiveAdapter_NotZipNotTar(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "plain.bin")
	os.WriteFile(path, []byte("not an archive at all"), 0o644)

	a := newArchiveAdapter()
	cap := captureFileOf(t, path)
	res := a.Validate(path, cap, nil)
	if res.Ok {
		t.Fatal("expected non-archive content to fail validation")
	}
}

func TestSignatureAdapter_PEMEnvelope(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sig.p7b")
	os.WriteFile(path, []byte("-----BEGIN PKCS7-----\nMIIB...\n-----END PKCS7-----\n"), 0o644)

	a := newSignatureAdapter()
	cap := captureFileOf(t, path)
	res := a.Validate(path, cap, nil)
	if !res.Ok {
		t.Fatalf("expected ok, got failCode=%s", res.FailCode)
	}
}

func TestSignatureAdapter_CertOnlyEnvelopeWithSigExtensionFails(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sig.p7b")
	os.WriteFile(path, []byte("-----BEGIN CERTIFICATE-----\nMIIB...\n-----END CERTIFICATE-----\n"), 0o644)

	a := newSignatureAdapter()
	cap := captureFileOf(t, path)
	res := a.Validate(path, cap, nil)
	if res.Ok {
		t.Fatal("expected envelope/extension mismatch to fail")
	}
	if res.FailCode != "SIGNATURE_FORMAT_MISMATCH" {
		t.Errorf("failCode = %q", res.FailCode)
	}
}

func TestSCMAdapter_ResolvedHead(t *testing.T) {
	dir := t.TempDir()
	gitDir := filepath.Join(dir, ".git")
	os.MkdirAll(filepath.Join(gitDir, "refs", "heads"), 0o755)
	os.WriteFile(filepath.Join(gitDir, "HEAD"), []byte("ref: refs/heads/main\n"), 0o644)
	os.WriteFile(filepath.Join(gitDir, "refs", "heads", "main"), []byte("abc123\n"), 0o644)

	a := newSCMAdapter()
	cap := captureFileOf(t, dir)
	if !a.Fitness(dir, cap) {
		t.Fatal("expected fitness true for .git directory")
	}
	res := a.Validate(dir, cap, nil)
	if !res.Ok {
		t.Fatalf("expected ok, got failCode=%s message=%s", res.FailCode, res.FailMessage)
	}
}

func TestSCMAdapter_UnresolvedHeadFails(t *testing.T) {
	dir := t.TempDir()
	gitDir := filepath.Join(dir, ".git")
	os.MkdirAll(filepath.Join(gitDir, "refs", "heads"), 0o755)
	os.WriteFile(filepath.Join(gitDir, "HEAD"), []byte("ref: refs/heads/main\n"), 0o644)

	a := newSCMAdapter()
	cap := captureFileOf(t, dir)
	res := a.Validate(dir, cap, nil)
	if res.Ok {
		t.Fatal("expected unresolved ref to fail")
	}
	if res.FailCode != "SCM_REF_UNRESOLVED" {
		t.Errorf("failCode = %q", res.FailCode)
	}
}

func TestDocumentAdapter_PDF(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.pdf")
	content := "%PDF-1.4\n1 0 obj\n<<>>\nendobj\nstartxref\n0\n%%EOF"
	os.WriteFile(path, []byte(content), 0o644)

	a := newDocumentAdapter()
	cap := captureFileOf(t, path)
	res := a.Validate(path, cap, nil)
	if !res.Ok {
		t.Fatalf("expected ok, got failCode=%s message=%s", res.FailCode, res.FailMessage)
	}
}

func TestDocumentAdapter_PDFMissingTrailerFails(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.pdf")
	content := "%PDF-1.4\n1 0 obj\n<<>>\nendobj\nstartxref\n0\n" + string(bytes.Repeat([]byte("x"), 2000))
	os.WriteFile(path, []byte(content), 0o644)

	a := newDocumentAdapter()
	cap := captureFileOf(t, path)
	res := a.Validate(path, cap, nil)
	if res.Ok {
		t.Fatal("expected missing trailer to fail")
	}
}
