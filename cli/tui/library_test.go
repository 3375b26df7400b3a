package tui

import (
	"strings"
	"testing"

	"github.com/weftend/weftend/receipts"
)

func TestRenderLibraryStatic_Clean(t *testing.T) {
	state := &receipts.LibraryViewState{
		TargetKey:     "acme-widget",
		BaselineRunID: "run_000001",
		LatestRunID:   "run_000002",
		LastN:         []string{"run_000001", "run_000002"},
		Keys: []receipts.LibraryViewKey{
			{VerdictVsBaseline: receipts.CompareSame, ArtifactDigest: "sha256:abc", Result: "ALLOW"},
		},
	}

	out := RenderLibraryStatic(state)
	for _, want := range []string{"acme-widget", "run_000001", "run_000002", "SAME", "sha256:abc"} {
		if !strings.Contains(out, want) {
			t.Errorf("rendered output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Blocked") {
		t.Errorf("unblocked target should not render a Blocked section:\n%s", out)
	}
}

func TestRenderLibraryStatic_Blocked(t *testing.T) {
	state := &receipts.LibraryViewState{
		TargetKey:     "risky-module",
		BaselineRunID: "run_000001",
		LatestRunID:   "run_000002",
		Blocked: &receipts.Blocked{
			RunID:       "run_000002",
			ReasonCodes: []string{"PRIVACY_LINT_FAILED"},
		},
	}

	out := RenderLibraryStatic(state)
	for _, want := range []string{"risky-module", "Blocked", "PRIVACY_LINT_FAILED"} {
		if !strings.Contains(out, want) {
			t.Errorf("rendered output missing %q:\n%s", want, out)
		}
	}
}

func TestBucketLetters(t *testing.T) {
	got := bucketLetters([]string{"DIGEST_CHANGED", "UNKNOWN_BUCKET", "CONTENT_CHANGED"})
	if got != "DC" {
		t.Errorf("bucketLetters = %q, want %q", got, "DC")
	}
}

func TestOrDash(t *testing.T) {
	if orDash("") != "-" {
		t.Error("orDash(\"\") should return \"-\"")
	}
	if orDash("run_000001") != "run_000001" {
		t.Error("orDash should pass through non-empty values")
	}
}
