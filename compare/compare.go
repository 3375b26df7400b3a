// Package compare implements the bucketed comparison between two
// normalized run summaries, producing the sixteen named change buckets
// and their short-letter codes used by library view keys.
package compare

import (
	"fmt"
	"sort"

	"github.com/weftend/weftend/canon"
	"github.com/weftend/weftend/receipts"
)

const maxChangeListLen = 50

// Summary is the normalized, comparable projection of one run's
// receipts: everything the sixteen change buckets key off of.
type Summary struct {
	Result             string
	ExitCode           int
	ReasonCodes        []string
	ArtifactDigest     string
	PolicyDigest       string
	ExternalRefCount   int
	UniqueDomainCount  int
	TargetKind         string
	ArtifactKind       string
	TotalFiles         int
	TotalBytesBounded  int64
	FileCountsByKind   map[string]int
	HasScripts         bool
	HasNativeBinaries  bool
	URLLikeCount       int
	SignaturePresent   bool
	TimestampPresent   bool
	ArchiveDepthMax    int
	NestedArchiveCount int
	BoundednessMarkers []string
	CapCounters        map[string]int
	DeniedCaps         []string
	HostReleaseStatus  string
	StrictVerify       bool
	StrictExecute      bool
}

// Result is the raw bucketed comparison before receipt packaging.
type Result struct {
	Verdict       receipts.CompareVerdict
	ChangeBuckets []string
	Changes       []receipts.Change
}

// bucketLetter maps the seven library-view-key buckets to their short
// code; buckets outside this set have no letter representation.
var bucketLetter = map[string]string{
	"DIGEST_CHANGED":       "D",
	"CONTENT_CHANGED":      "C",
	"EXTERNALREFS_CHANGED": "X",
	"REASONS_CHANGED":      "R",
	"POLICY_CHANGED":       "P",
	"HOST_TRUTH_CHANGED":   "H",
	"BOUNDS_CHANGED":       "B",
}

// BucketLetter returns the short-letter code for bucket, or "" if the
// bucket has none.
func BucketLetter(bucket string) string {
	return bucketLetter[bucket]
}

// Compare computes the full bucketed diff between left and right.
func Compare(left, right Summary) (Result, error) {
	var changes []receipts.Change

	if left.Result != right.Result {
		changes = append(changes, simpleChange("VERDICT_CHANGED", left.Result, right.Result))
	}
	if left.ExitCode != right.ExitCode {
		changes = append(changes, simpleChange("EXITCODE_CHANGED", fmt.Sprint(left.ExitCode), fmt.Sprint(right.ExitCode)))
	}
	if added, removed := setDiff(left.ReasonCodes, right.ReasonCodes); len(added)+len(removed) > 0 {
		changes = append(changes, countedChange("REASONS_CHANGED", added, removed, left.ReasonCodes, right.ReasonCodes))
	}
	if left.ArtifactDigest != right.ArtifactDigest {
		changes = append(changes, simpleChange("DIGEST_CHANGED", left.ArtifactDigest, right.ArtifactDigest))
	}
	if left.PolicyDigest != right.PolicyDigest {
		changes = append(changes, simpleChange("POLICY_CHANGED", left.PolicyDigest, right.PolicyDigest))
	}
	if left.ExternalRefCount != right.ExternalRefCount || left.UniqueDomainCount != right.UniqueDomainCount {
		changes = append(changes, receipts.Change{Bucket: "EXTERNALREFS_CHANGED", Counts: map[string]int{
			"leftRefs": left.ExternalRefCount, "rightRefs": right.ExternalRefCount,
			"leftDomains": left.UniqueDomainCount, "rightDomains": right.UniqueDomainCount,
		}})
	}
	if left.TargetKind != right.TargetKind || left.ArtifactKind != right.ArtifactKind {
		changes = append(changes, simpleChange("KIND_PROFILE_CHANGED",
			left.TargetKind+"/"+left.ArtifactKind, right.TargetKind+"/"+right.ArtifactKind))
	}
	if contentChanged(left, right) {
		changes = append(changes, receipts.Change{Bucket: "CONTENT_CHANGED"})
	}
	if left.HasScripts != right.HasScripts {
		changes = append(changes, triStateChange("SCRIPT_SURFACE_CHANGED", left.HasScripts, right.HasScripts))
	}
	if left.HasNativeBinaries != right.HasNativeBinaries {
		changes = append(changes, triStateChange("NATIVE_BINARY_APPEARED", left.HasNativeBinaries, right.HasNativeBinaries))
	}
	if left.URLLikeCount != right.URLLikeCount {
		changes = append(changes, simpleChange("URL_INDICATORS_CHANGED", fmt.Sprint(left.URLLikeCount), fmt.Sprint(right.URLLikeCount)))
	}
	if left.SignaturePresent != right.SignaturePresent || left.TimestampPresent != right.TimestampPresent {
		changes = append(changes, receipts.Change{Bucket: "SIGNATURE_STATUS_CHANGED"})
	}
	if left.ArchiveDepthMax != right.ArchiveDepthMax || left.NestedArchiveCount != right.NestedArchiveCount {
		changes = append(changes, receipts.Change{Bucket: "ARCHIVE_DEPTH_CHANGED"})
	}
	if added, removed := setDiff(left.BoundednessMarkers, right.BoundednessMarkers); len(added)+len(removed) > 0 {
		changes = append(changes, countedChange("BOUNDS_CHANGED", added, removed, left.BoundednessMarkers, right.BoundednessMarkers))
	}
	if capsChanged(left, right) {
		changes = append(changes, receipts.Change{Bucket: "CAPS_CHANGED"})
	}
	if left.HostReleaseStatus != right.HostReleaseStatus || left.StrictVerify != right.StrictVerify || left.StrictExecute != right.StrictExecute {
		changes = append(changes, receipts.Change{Bucket: "HOST_TRUTH_CHANGED"})
	}

	sort.Slice(changes, func(i, j int) bool { return canon.Less(changes[i].Bucket, changes[j].Bucket) })

	var buckets []string
	for _, c := range changes {
		buckets = append(buckets, c.Bucket)
	}
	buckets = canon.SortUnique(buckets)

	verdict := receipts.CompareSame
	if len(buckets) > 0 {
		verdict = receipts.CompareChanged
	}

	return Result{Verdict: verdict, ChangeBuckets: buckets, Changes: changes}, nil
}

func contentChanged(l, r Summary) bool {
	if l.TotalFiles != r.TotalFiles || l.TotalBytesBounded != r.TotalBytesBounded {
		return true
	}
	keys := make(map[string]bool)
	for k := range l.FileCountsByKind {
		keys[k] = true
	}
	for k := range r.FileCountsByKind {
		keys[k] = true
	}
	for k := range keys {
		if l.FileCountsByKind[k] != r.FileCountsByKind[k] {
			return true
		}
	}
	return false
}

func capsChanged(l, r Summary) bool {
	if len(l.CapCounters) != len(r.CapCounters) {
		return true
	}
	for k, v := range l.CapCounters {
		if r.CapCounters[k] != v {
			return true
		}
	}
	added, removed := setDiff(l.DeniedCaps, r.DeniedCaps)
	return len(added)+len(removed) > 0
}

func simpleChange(bucket, left, right string) receipts.Change {
	return receipts.Change{
		Bucket:  bucket,
		Added:   canon.SortUnique([]string{right}),
		Removed: canon.SortUnique([]string{left}),
	}
}

func triStateChange(bucket string, left, right bool) receipts.Change {
	return receipts.Change{
		Bucket: bucket,
		Counts: map[string]int{"left": boolToInt(left), "right": boolToInt(right)},
	}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func countedChange(bucket string, added, removed, left, right []string) receipts.Change {
	return receipts.Change{
		Bucket:  bucket,
		Added:   canon.TruncateSorted(added, maxChangeListLen),
		Removed: canon.TruncateSorted(removed, maxChangeListLen),
		Counts:  map[string]int{"left": len(left), "right": len(right)},
	}
}

// setDiff returns sort-unique added (in right, not in left) and removed
// (in left, not in right) elements.
func setDiff(left, right []string) (added, removed []string) {
	leftSet := make(map[string]bool, len(left))
	for _, v := range left {
		leftSet[v] = true
	}
	rightSet := make(map[string]bool, len(right))
	for _, v := range right {
		rightSet[v] = true
	}
	for v := range rightSet {
		if !leftSet[v] {
			added = append(added, v)
		}
	}
	for v := range leftSet {
		if !rightSet[v] {
			removed = append(removed, v)
		}
	}
	return canon.SortUnique(added), canon.SortUnique(removed)
}

// BuildReceipt packages a Result into a canonical CompareReceipt, with
// receiptDigest computed over the zero-filled field.
func BuildReceipt(schema string, left, right receipts.CompareSide, result Result, privacyLint receipts.PrivacyLintVerdict, reasonCodes []string) (*receipts.CompareReceipt, error) {
	r := &receipts.CompareReceipt{
		Schema:        schema,
		Left:          left,
		Right:         right,
		Verdict:       result.Verdict,
		ChangeBuckets: result.ChangeBuckets,
		Changes:       result.Changes,
		PrivacyLint:   privacyLint,
		ReasonCodes:   canon.SortUnique(reasonCodes),
	}
	digest, err := receipts.RecomputeCompareDigest(r)
	if err != nil {
		return nil, err
	}
	r.ReceiptDigest = digest
	return r, nil
}
