package receipts

import (
	"fmt"

	"github.com/weftend/weftend/canon"
)

// Issue is a single structural validation finding. Validators never
// throw; they return a slice of Issue, empty when the record is valid.
type Issue struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func issue(field, format string, args ...any) Issue {
	return Issue{Field: field, Message: fmt.Sprintf(format, args...)}
}

// ValidateSafeRunReceipt checks structural invariants of a SafeRunReceipt
// that are cheap to check without touching the filesystem (the evidence
// closure invariant — §8 property 4 — is checked separately by the
// orchestrator's evidence self-verification pass, which has the stage
// directory listing available).
func ValidateSafeRunReceipt(r *SafeRunReceipt) []Issue {
	var issues []Issue
	if r.Schema == "" {
		issues = append(issues, issue("schema", "must not be empty"))
	}
	switch r.AnalysisVerdict {
	case AnalysisAllow, AnalysisDeny, AnalysisWithheld:
	default:
		issues = append(issues, issue("analysisVerdict", "unknown variant %q", r.AnalysisVerdict))
	}
	switch r.ExecutionVerdict {
	case ExecutionAllow, ExecutionDeny, ExecutionSkip, ExecutionNotAttempted:
	default:
		issues = append(issues, issue("executionVerdict", "unknown variant %q", r.ExecutionVerdict))
	}
	if r.AnalysisVerdict == AnalysisAllow {
		if len(r.SubReceipts) == 0 && r.ArtifactKind != KindText {
			// ALLOW with zero declared evidence is only ever legitimate
			// when there is genuinely nothing to declare; flagged as a
			// soft issue so callers can inspect, never hard-rejected here
			// (the fail-closed guarantee is enforced by the orchestrator
			// before this verdict is ever assigned).
			issues = append(issues, issue("subReceipts", "ALLOW verdict with no declared evidence"))
		}
	}
	if r.PolicyID == "" {
		issues = append(issues, issue("policyId", "must not be empty"))
	}
	if r.TopReasonCode == "" {
		issues = append(issues, issue("topReasonCode", "must not be empty"))
	}
	if r.ReceiptDigest == "" {
		issues = append(issues, issue("receiptDigest", "must not be empty"))
	} else if recomputed, err := RecomputeSafeRunDigest(r); err == nil && recomputed != r.ReceiptDigest {
		issues = append(issues, issue("receiptDigest", canon.FormatMismatch(r.ReceiptDigest, recomputed)))
	}
	prevName := ""
	for i, sr := range r.SubReceipts {
		if i > 0 && !(canon.Less(prevName, sr.Name) || prevName == sr.Name) {
			issues = append(issues, issue("subReceipts", "not sorted at index %d", i))
		}
		prevName = sr.Name
	}
	return issues
}

// RecomputeSafeRunDigest computes receiptDigest with the field
// zero-filled, per the "receipts own their digests" design note.
func RecomputeSafeRunDigest(r *SafeRunReceipt) (string, error) {
	cp := *r
	cp.ReceiptDigest = ""
	return canon.DigestValue(cp)
}

// RecomputeOperatorDigest computes an OperatorReceipt's digest with the
// field zero-filled.
func RecomputeOperatorDigest(r *OperatorReceipt) (string, error) {
	cp := *r
	cp.ReceiptDigest = ""
	return canon.DigestValue(cp)
}

// RecomputeCompareDigest computes a CompareReceipt's digest with the
// field zero-filled.
func RecomputeCompareDigest(r *CompareReceipt) (string, error) {
	cp := *r
	cp.ReceiptDigest = ""
	return canon.DigestValue(cp)
}

// ValidateOperatorReceipt checks structural invariants of an
// OperatorReceipt.
func ValidateOperatorReceipt(r *OperatorReceipt) []Issue {
	var issues []Issue
	if sorted := canon.SortUnique(r.Warnings); !stringsEqual(sorted, r.Warnings) {
		issues = append(issues, issue("warnings", "not sort-unique"))
	}
	if r.ReceiptDigest == "" {
		issues = append(issues, issue("receiptDigest", "must not be empty"))
	} else if recomputed, err := RecomputeOperatorDigest(r); err == nil && recomputed != r.ReceiptDigest {
		issues = append(issues, issue("receiptDigest", canon.FormatMismatch(r.ReceiptDigest, recomputed)))
	}
	return issues
}

// ValidateCompareReceipt checks structural invariants of a CompareReceipt.
func ValidateCompareReceipt(r *CompareReceipt) []Issue {
	var issues []Issue
	isSame := len(r.ChangeBuckets) == 0
	if isSame && r.Verdict != CompareSame {
		issues = append(issues, issue("verdict", "expected SAME with empty changeBuckets"))
	}
	if !isSame && r.Verdict != CompareChanged {
		issues = append(issues, issue("verdict", "expected CHANGED with non-empty changeBuckets"))
	}
	prevBucket := ""
	for i, c := range r.Changes {
		if i > 0 && canon.Less(c.Bucket, prevBucket) {
			issues = append(issues, issue("changes", "not sorted by bucket at index %d", i))
		}
		prevBucket = c.Bucket
	}
	if r.ReceiptDigest == "" {
		issues = append(issues, issue("receiptDigest", "must not be empty"))
	} else if recomputed, err := RecomputeCompareDigest(r); err == nil && recomputed != r.ReceiptDigest {
		issues = append(issues, issue("receiptDigest", canon.FormatMismatch(r.ReceiptDigest, recomputed)))
	}
	return issues
}

// ValidateLibraryViewState checks structural invariants of a
// LibraryViewState, in particular that lastN never exceeds 8 entries.
func ValidateLibraryViewState(s *LibraryViewState) []Issue {
	var issues []Issue
	if len(s.LastN) > 8 {
		issues = append(issues, issue("lastN", "exceeds bound of 8 (got %d)", len(s.LastN)))
	}
	if s.TargetKey == "" {
		issues = append(issues, issue("targetKey", "must not be empty"))
	}
	if s.Blocked != nil && len(s.Blocked.ReasonCodes) > 8 {
		issues = append(issues, issue("blocked.reasonCodes", "exceeds bound of 8"))
	}
	return issues
}

// ValidateShadowAuditResult checks the proof-only-field invariant is
// structurally satisfiable (the actual non-echo guarantee is enforced by
// construction in package shadowaudit, which never retains the input
// event slice on the result type).
func ValidateShadowAuditResult(r *ShadowAuditResult) []Issue {
	var issues []Issue
	switch r.Status {
	case "OK", "WARN", "DENY":
	default:
		issues = append(issues, issue("status", "unknown variant %q", r.Status))
	}
	if sorted := canon.SortUnique(r.ReasonFamilies); !stringsEqual(sorted, r.ReasonFamilies) {
		issues = append(issues, issue("reasonFamilies", "not sort-unique"))
	}
	if len(r.ReasonFamilies) > 32 {
		issues = append(issues, issue("reasonFamilies", "exceeds bound of 32"))
	}
	return issues
}

func stringsEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
