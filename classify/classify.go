// Package classify assigns a structural ArtifactKind to a captured input
// using extension and magic-byte heuristics only. It never parses deeply
// and never touches the network; deep structural validation belongs to
// package adapter.
package classify

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/weftend/weftend/receipts"
)

// Result is the classifier's output for a single (path, capture) pair.
type Result struct {
	ArtifactKind receipts.ArtifactKind
	EntryHint    string
	ReasonCodes  []string
}

var nativeExeExts = map[string]bool{
	".exe": true, ".dll": true, ".sys": true, ".drv": true,
}

var zipSignature = []byte("PK\x03\x04")

// Classify inspects path and its capture and returns a stable Result.
// Classification is a pure function of (path, capture): given the same
// two inputs it always returns the same kind, entry hint, and reason
// codes in the same order.
func Classify(path string, cap *receipts.ArtifactCapture) Result {
	var reasons []string

	if cap.Kind == "dir" {
		hasManifest := containsRoot(cap, "release_manifest.json")
		hasBundle := containsRoot(cap, "runtime_bundle.json")
		if hasManifest && hasBundle {
			reasons = append(reasons, "CLASSIFY_RELEASE_DIR_MARKERS_PRESENT")
			hint, hintReasons := entryHint(cap)
			reasons = append(reasons, hintReasons...)
			return Result{ArtifactKind: receipts.KindReleaseDir, EntryHint: hint, ReasonCodes: reasons}
		}
		reasons = append(reasons, "CLASSIFY_DIR_NO_RELEASE_MARKERS")
	}

	ext := strings.ToLower(filepath.Ext(path))
	switch {
	case nativeExeExts[ext]:
		reasons = append(reasons, "CLASSIFY_EXTENSION_NATIVE_EXE")
		hint, hintReasons := entryHint(cap)
		reasons = append(reasons, hintReasons...)
		return Result{ArtifactKind: receipts.KindNativeExe, EntryHint: hint, ReasonCodes: reasons}
	case ext == ".msi":
		reasons = append(reasons, "CLASSIFY_EXTENSION_NATIVE_MSI")
		hint, hintReasons := entryHint(cap)
		reasons = append(reasons, hintReasons...)
		return Result{ArtifactKind: receipts.KindNativeMSI, EntryHint: hint, ReasonCodes: reasons}
	case ext == ".lnk":
		reasons = append(reasons, "CLASSIFY_EXTENSION_SHORTCUT_LNK")
		hint, hintReasons := entryHint(cap)
		reasons = append(reasons, hintReasons...)
		return Result{ArtifactKind: receipts.KindShortcutLNK, EntryHint: hint, ReasonCodes: reasons}
	}

	if head, ok := headBytes(cap, path, 4); ok && bytes.HasPrefix(head, zipSignature) {
		reasons = append(reasons, "CLASSIFY_MAGIC_ZIP_SIGNATURE")
		hint, hintReasons := entryHint(cap)
		reasons = append(reasons, hintReasons...)
		return Result{ArtifactKind: receipts.KindZIP, EntryHint: hint, ReasonCodes: reasons}
	}

	if head, ok := headBytes(cap, path, 512); ok && looksLikeUTF8Text(head) {
		reasons = append(reasons, "CLASSIFY_HEURISTIC_UTF8_TEXT")
		hint, hintReasons := entryHint(cap)
		reasons = append(reasons, hintReasons...)
		return Result{ArtifactKind: receipts.KindText, EntryHint: hint, ReasonCodes: reasons}
	}

	reasons = append(reasons, "CLASSIFY_NO_MATCH_UNKNOWN")
	hint, hintReasons := entryHint(cap)
	reasons = append(reasons, hintReasons...)
	return Result{ArtifactKind: receipts.KindUnknown, EntryHint: hint, ReasonCodes: reasons}
}

func containsRoot(cap *receipts.ArtifactCapture, name string) bool {
	for _, e := range cap.Entries {
		if e.Path == name {
			return true
		}
	}
	return false
}

// entryHint derives a semantic structure marker from the capture's root
// entries. Only one hint is ever emitted today; the return shape leaves
// room for future additions without changing callers.
func entryHint(cap *receipts.ArtifactCapture) (string, []string) {
	for _, e := range cap.Entries {
		if !strings.Contains(e.Path, "/") {
			lower := strings.ToLower(e.Path)
			if strings.HasSuffix(lower, ".html") || strings.HasSuffix(lower, ".htm") {
				return "ENTRY_HTML_LIKE", []string{"CLASSIFY_ENTRY_HINT_HTML_AT_ROOT"}
			}
		}
	}
	if cap.Kind == "dir" && containsRoot(cap, "oci-layout") && containsRoot(cap, "index.json") {
		return "ENTRY_CONTAINER_IMAGE", []string{"CLASSIFY_ENTRY_HINT_OCI_LAYOUT"}
	}
	return "", nil
}

// headBytes returns up to n leading bytes of the artifact's primary file:
// for a single-file capture, the file itself; for a directory capture,
// the root entry that sorts first (classification never inspects more
// than one representative file for magic bytes; deeper inspection is the
// adapter's job).
func headBytes(cap *receipts.ArtifactCapture, path string, n int) ([]byte, bool) {
	target := path
	if cap.Kind == "dir" {
		if len(cap.Entries) == 0 {
			return nil, false
		}
		best := cap.Entries[0]
		for _, e := range cap.Entries[1:] {
			if !strings.Contains(e.Path, "/") && strings.Contains(best.Path, "/") {
				best = e
			}
		}
		target = filepath.Join(cap.BasePath, best.Path)
	}
	f, err := os.Open(target)
	if err != nil {
		return nil, false
	}
	defer f.Close()
	buf := make([]byte, n)
	read, err := f.Read(buf)
	if err != nil && read == 0 {
		return nil, false
	}
	return buf[:read], true
}

func looksLikeUTF8Text(head []byte) bool {
	if len(head) == 0 {
		return false
	}
	if bytes.IndexByte(head, 0) >= 0 {
		return false
	}
	return utf8.Valid(head)
}
