// Package capture walks a file or directory, bounded by configurable
// limits, producing an ordered ArtifactCapture with a root digest.
//
// The walk is breadth-first with children visited in canonical (sorted)
// order so that identical trees on different platforms produce
// byte-identical captures.
package capture

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/weftend/weftend/canon"
	"github.com/weftend/weftend/receipts"
)

// ReasonCode values for capture-specific fatal conditions.
const (
	ReasonTruncatedMaxFiles      = "CAPTURE_TRUNCATED_MAX_FILES"
	ReasonTruncatedMaxTotalBytes = "CAPTURE_TRUNCATED_MAX_TOTAL_BYTES"
	ReasonTruncatedMaxFileBytes  = "CAPTURE_TRUNCATED_MAX_FILE_BYTES"
	ReasonTruncatedMaxPathBytes  = "CAPTURE_TRUNCATED_MAX_PATH_BYTES"
	ReasonSymlinkEscape          = "CAPTURE_SYMLINK_ESCAPES_ROOT"
)

// DefaultLimits are conservative defaults suitable for analysis-only
// scans of untrusted input.
func DefaultLimits() receipts.CaptureLimits {
	return receipts.CaptureLimits{
		MaxFiles:      20000,
		MaxTotalBytes: 512 * 1024 * 1024,
		MaxFileBytes:  64 * 1024 * 1024,
		MaxPathBytes:  4096,
	}
}

// Error is a fatal capture error. Truncation is reported the same way:
// Capture returns an *Error with a CAPTURE_TRUNCATED_* reason code
// together with the partial capture, whose Truncated field is true.
type Error struct {
	ReasonCode string
	Path       string
}

func (e *Error) Error() string {
	return fmt.Sprintf("[%s] %s", e.ReasonCode, e.Path)
}

// Capture walks path and produces an ArtifactCapture. A single regular
// file produces a one-entry capture; a directory is walked breadth-first
// in canonical order.
func Capture(path string, limits receipts.CaptureLimits) (*receipts.ArtifactCapture, error) {
	info, err := os.Lstat(path)
	if err != nil {
		return nil, fmt.Errorf("INPUT_MISSING: %w", err)
	}

	if info.Mode()&os.ModeSymlink != 0 {
		resolved, err := filepath.EvalSymlinks(path)
		if err != nil {
			return nil, &Error{ReasonCode: ReasonSymlinkEscape, Path: path}
		}
		path = resolved
		info, err = os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("INPUT_MISSING: %w", err)
		}
	}

	if !info.IsDir() {
		return captureFile(path, limits)
	}
	return captureDir(path, limits)
}

func captureFile(path string, limits receipts.CaptureLimits) (*receipts.ArtifactCapture, error) {
	data, size, digest, err := digestFile(path, limits.MaxFileBytes)
	if err != nil {
		return nil, err
	}
	_ = data
	leaf := filepath.Base(path)
	cap := &receipts.ArtifactCapture{
		Kind:     "file",
		BasePath: path,
		Entries: []receipts.CaptureEntry{
			{Path: leaf, Bytes: size, Digest: digest},
		},
		Limits: limits,
	}
	root, err := rootDigest(cap.Entries)
	if err != nil {
		return nil, err
	}
	cap.RootDigest = root
	return cap, nil
}

func captureDir(root string, limits receipts.CaptureLimits) (*receipts.ArtifactCapture, error) {
	cap := &receipts.ArtifactCapture{
		Kind:     "dir",
		BasePath: root,
		Limits:   limits,
	}

	var totalBytes int64
	type queued struct{ abs, rel string }
	queue := []queued{{abs: root, rel: ""}}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		dirEntries, err := os.ReadDir(cur.abs)
		if err != nil {
			return nil, fmt.Errorf("INPUT_INVALID: reading %s: %w", cur.abs, err)
		}
		names := make([]string, 0, len(dirEntries))
		byName := make(map[string]os.DirEntry, len(dirEntries))
		for _, de := range dirEntries {
			names = append(names, de.Name())
			byName[de.Name()] = de
		}
		sort.Strings(names)

		for _, name := range names {
			de := byName[name]
			abs := filepath.Join(cur.abs, name)
			rel := name
			if cur.rel != "" {
				rel = cur.rel + "/" + name
			}

			if len(rel) > limits.MaxPathBytes {
				cap.Truncated = true
				return cap, &Error{ReasonCode: ReasonTruncatedMaxPathBytes, Path: rel}
			}

			mode := de.Type()
			if mode&os.ModeSymlink != 0 {
				target, err := filepath.EvalSymlinks(abs)
				if err != nil {
					return nil, &Error{ReasonCode: ReasonSymlinkEscape, Path: rel}
				}
				relToRoot, err := filepath.Rel(root, target)
				if err != nil || strings.HasPrefix(relToRoot, "..") {
					return nil, &Error{ReasonCode: ReasonSymlinkEscape, Path: rel}
				}
				info, err := os.Stat(target)
				if err != nil {
					return nil, fmt.Errorf("INPUT_INVALID: %w", err)
				}
				if info.IsDir() {
					queue = append(queue, queued{abs: target, rel: rel})
					continue
				}
				abs = target
				mode = 0
			}

			if mode.IsDir() {
				queue = append(queue, queued{abs: abs, rel: rel})
				continue
			}
			if !mode.IsRegular() {
				continue
			}

			if len(cap.Entries)+1 > limits.MaxFiles {
				cap.Truncated = true
				return cap, &Error{ReasonCode: ReasonTruncatedMaxFiles, Path: rel}
			}

			_, size, digest, err := digestFile(abs, limits.MaxFileBytes)
			if err != nil {
				if ce, ok := err.(*Error); ok {
					cap.Truncated = true
					ce.Path = rel
					return cap, ce
				}
				return nil, err
			}

			totalBytes += size
			if totalBytes > limits.MaxTotalBytes {
				cap.Truncated = true
				return cap, &Error{ReasonCode: ReasonTruncatedMaxTotalBytes, Path: rel}
			}

			cap.Entries = append(cap.Entries, receipts.CaptureEntry{
				Path: rel, Bytes: size, Digest: digest,
			})
		}
	}

	sort.Slice(cap.Entries, func(i, j int) bool { return canon.Less(cap.Entries[i].Path, cap.Entries[j].Path) })

	if err := checkCaseCollisions(cap.Entries); err != nil {
		return nil, err
	}

	root2, err := rootDigest(cap.Entries)
	if err != nil {
		return nil, err
	}
	cap.RootDigest = root2
	return cap, nil
}

func checkCaseCollisions(entries []receipts.CaptureEntry) error {
	seen := make(map[string]string, len(entries))
	for _, e := range entries {
		key := strings.ToLower(e.Path)
		if prior, ok := seen[key]; ok && prior != e.Path {
			return &Error{ReasonCode: "CAPTURE_CASE_COLLISION", Path: e.Path}
		}
		seen[key] = e.Path
	}
	return nil
}

func digestFile(path string, maxBytes int64) ([]byte, int64, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, "", fmt.Errorf("INPUT_INVALID: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, 0, "", fmt.Errorf("INPUT_INVALID: %w", err)
	}
	if info.Size() > maxBytes {
		return nil, 0, "", &Error{ReasonCode: ReasonTruncatedMaxFileBytes, Path: path}
	}

	h := sha256.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return nil, 0, "", fmt.Errorf("INPUT_INVALID: %w", err)
	}
	return nil, n, canon.Algorithm + ":" + hex.EncodeToString(h.Sum(nil)), nil
}

func rootDigest(entries []receipts.CaptureEntry) (string, error) {
	return canon.DigestValue(map[string]any{"entries": entries})
}
