package canon

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Algorithm is the single digest algorithm used globally within a build.
// Receipts are self-identifying: every receipt's weftendBuild block names
// this algorithm alongside the build digest.
const Algorithm = "sha256"

// Digest hashes raw bytes and returns "<algo>:<lowerhex>".
func Digest(data []byte) string {
	sum := sha256.Sum256(data)
	return Algorithm + ":" + hex.EncodeToString(sum[:])
}

// DigestValue canonicalizes v, then digests the canonical byte stream.
func DigestValue(v any) (string, error) {
	data, err := Marshal(v)
	if err != nil {
		return "", err
	}
	return Digest(data), nil
}

// DigestJSON canonicalizes an already-serialized JSON document, then
// digests the canonical byte stream.
func DigestJSON(raw []byte) (string, error) {
	data, err := CanonicalizeJSON(raw)
	if err != nil {
		return "", err
	}
	return Digest(data), nil
}

// FormatMismatch renders a stable "want/got" digest mismatch message.
func FormatMismatch(want, got string) string {
	if want == got {
		return ""
	}
	if want == "" || got == "" {
		return fmt.Sprintf("digest mismatch (want=%q got=%q)", want, got)
	}
	return fmt.Sprintf("digest mismatch (want=%s got=%s)", want, got)
}
