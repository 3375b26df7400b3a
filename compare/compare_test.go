package compare

import (
	"testing"

	"github.com/weftend/weftend/receipts"
)

func baseSummary() Summary {
	return Summary{
		Result:            "ALLOW",
		ExitCode:          0,
		ReasonCodes:       []string{"OK_CLEAN"},
		ArtifactDigest:    "sha256:aaaa",
		PolicyDigest:      "sha256:bbbb",
		TargetKind:        "raw",
		ArtifactKind:      "ZIP",
		TotalFiles:        3,
		TotalBytesBounded: 1024,
		FileCountsByKind:  map[string]int{"binary": 1, "other": 2},
		HostReleaseStatus: "OK",
	}
}

func TestCompare_IdenticalSummariesAreSame(t *testing.T) {
	s := baseSummary()
	res, err := Compare(s, s)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Verdict != receipts.CompareSame {
		t.Errorf("verdict = %v, want SAME", res.Verdict)
	}
	if len(res.ChangeBuckets) != 0 {
		t.Errorf("changeBuckets = %v, want empty", res.ChangeBuckets)
	}
}

func TestCompare_DigestChangeDetected(t *testing.T) {
	left := baseSummary()
	right := baseSummary()
	right.ArtifactDigest = "sha256:cccc"

	res, err := Compare(left, right)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Verdict != receipts.CompareChanged {
		t.Errorf("verdict = %v, want CHANGED", res.Verdict)
	}
	if !contains(res.ChangeBuckets, "DIGEST_CHANGED") {
		t.Errorf("changeBuckets = %v, want DIGEST_CHANGED", res.ChangeBuckets)
	}
}

func TestCompare_ReasonsChangedTracksAddedRemoved(t *testing.T) {
	left := baseSummary()
	right := baseSummary()
	right.ReasonCodes = []string{"OK_CLEAN", "NOTE_NEW_DOMAIN"}

	res, err := Compare(left, right)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !contains(res.ChangeBuckets, "REASONS_CHANGED") {
		t.Fatalf("changeBuckets = %v, want REASONS_CHANGED", res.ChangeBuckets)
	}
	for _, c := range res.Changes {
		if c.Bucket == "REASONS_CHANGED" {
			if !contains(c.Added, "NOTE_NEW_DOMAIN") {
				t.Errorf("added = %v, want NOTE_NEW_DOMAIN", c.Added)
			}
			if len(c.Removed) != 0 {
				t.Errorf("removed = %v, want empty", c.Removed)
			}
		}
	}
}

func TestCompare_ContentChangeFromFileCounts(t *testing.T) {
	left := baseSummary()
	right := baseSummary()
	right.FileCountsByKind = map[string]int{"binary": 2, "other": 2}

	res, err := Compare(left, right)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !contains(res.ChangeBuckets, "CONTENT_CHANGED") {
		t.Errorf("changeBuckets = %v, want CONTENT_CHANGED", res.ChangeBuckets)
	}
}

func TestCompare_NativeBinaryAppeared(t *testing.T) {
	left := baseSummary()
	right := baseSummary()
	right.HasNativeBinaries = true

	res, err := Compare(left, right)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !contains(res.ChangeBuckets, "NATIVE_BINARY_APPEARED") {
		t.Errorf("changeBuckets = %v, want NATIVE_BINARY_APPEARED", res.ChangeBuckets)
	}
}

func TestCompare_HostTruthChanged(t *testing.T) {
	left := baseSummary()
	right := baseSummary()
	right.HostReleaseStatus = "UNVERIFIED"

	res, err := Compare(left, right)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !contains(res.ChangeBuckets, "HOST_TRUTH_CHANGED") {
		t.Errorf("changeBuckets = %v, want HOST_TRUTH_CHANGED", res.ChangeBuckets)
	}
}

func TestCompare_ChangeBucketsSortedAndUnique(t *testing.T) {
	left := baseSummary()
	right := baseSummary()
	right.ArtifactDigest = "sha256:cccc"
	right.PolicyDigest = "sha256:dddd"
	right.HasScripts = true

	res, err := Compare(left, right)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := 1; i < len(res.ChangeBuckets); i++ {
		if res.ChangeBuckets[i-1] >= res.ChangeBuckets[i] {
			t.Fatalf("changeBuckets not strictly sorted: %v", res.ChangeBuckets)
		}
	}
}

func TestBucketLetter_KnownAndUnknown(t *testing.T) {
	if got := BucketLetter("DIGEST_CHANGED"); got != "D" {
		t.Errorf("BucketLetter(DIGEST_CHANGED) = %q, want D", got)
	}
	if got := BucketLetter("SCRIPT_SURFACE_CHANGED"); got != "" {
		t.Errorf("BucketLetter(SCRIPT_SURFACE_CHANGED) = %q, want empty", got)
	}
}

func TestBuildReceipt_DigestIsDeterministic(t *testing.T) {
	left := baseSummary()
	right := baseSummary()
	right.ArtifactDigest = "sha256:cccc"
	res, err := Compare(left, right)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	side := receipts.CompareSide{SummaryDigest: "sha256:side", ReceiptKinds: []string{"safeRun"}}
	r1, err := BuildReceipt("weftend.compareReceipt/0", side, side, res, receipts.PrivacyLintPass, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	r2, err := BuildReceipt("weftend.compareReceipt/0", side, side, res, receipts.PrivacyLintPass, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r1.ReceiptDigest != r2.ReceiptDigest {
		t.Errorf("receiptDigest not deterministic: %q vs %q", r1.ReceiptDigest, r2.ReceiptDigest)
	}
	if issues := receipts.ValidateCompareReceipt(r1); len(issues) != 0 {
		t.Errorf("unexpected validation issues: %v", issues)
	}
}

func contains(xs []string, x string) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}
