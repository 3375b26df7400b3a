// Package receipts defines the typed record family described in the data
// model — ArtifactCapture, ArtifactKind, AdapterResult, ContentSummary,
// SafeRunReceipt, OperatorReceipt, CompareReceipt, LibraryViewState,
// HostRunReceipt, NormalizedArtifact/AdapterManifest, ShadowAuditResult —
// plus structural validators that return issue lists rather than
// throwing, per the "receipts own their digests, never throw" design
// note.
package receipts

// BuildInfo identifies the build that produced a receipt. Every receipt
// embeds one, making receipts self-identifying with respect to the
// single digest algorithm used globally within the build.
type BuildInfo struct {
	Version     string `json:"version"`
	Algorithm   string `json:"algorithm"`
	BuildDigest string `json:"buildDigest"`
}

// ArtifactKind is a closed tagged union of structural artifact kinds.
type ArtifactKind string

const (
	KindReleaseDir     ArtifactKind = "RELEASE_DIR"
	KindNativeExe      ArtifactKind = "NATIVE_EXE"
	KindNativeMSI      ArtifactKind = "NATIVE_MSI"
	KindShortcutLNK    ArtifactKind = "SHORTCUT_LNK"
	KindZIP            ArtifactKind = "ZIP"
	KindText           ArtifactKind = "TEXT"
	KindUnknown        ArtifactKind = "UNKNOWN"
	KindContainerImage ArtifactKind = "CONTAINER_IMAGE"
)

// AnalysisVerdict is a closed tagged union.
type AnalysisVerdict string

const (
	AnalysisAllow    AnalysisVerdict = "ALLOW"
	AnalysisDeny     AnalysisVerdict = "DENY"
	AnalysisWithheld AnalysisVerdict = "WITHHELD"
)

// ExecutionVerdict is a closed tagged union.
type ExecutionVerdict string

const (
	ExecutionAllow        ExecutionVerdict = "ALLOW"
	ExecutionDeny         ExecutionVerdict = "DENY"
	ExecutionSkip         ExecutionVerdict = "SKIP"
	ExecutionNotAttempted ExecutionVerdict = "NOT_ATTEMPTED"
)

// HostSelfStatus is a closed tagged union.
type HostSelfStatus string

const (
	HostSelfOK         HostSelfStatus = "OK"
	HostSelfUnverified HostSelfStatus = "UNVERIFIED"
	HostSelfMissing    HostSelfStatus = "MISSING"
)

// InputKind is a closed tagged union.
type InputKind string

const (
	InputRaw     InputKind = "raw"
	InputRelease InputKind = "release"
)

// CaptureLimits bounds a capture walk.
type CaptureLimits struct {
	MaxFiles      int   `json:"maxFiles"`
	MaxTotalBytes int64 `json:"maxTotalBytes"`
	MaxFileBytes  int64 `json:"maxFileBytes"`
	MaxPathBytes  int   `json:"maxPathBytes"`
}

// CaptureEntry is a single file recorded by a capture.
type CaptureEntry struct {
	Path   string `json:"path"`
	Bytes  int64  `json:"bytes"`
	Digest string `json:"digest"`
}

// ArtifactCapture is the bounded, ordered list of files materially
// included in analysis.
type ArtifactCapture struct {
	Kind       string         `json:"kind"` // file|dir|zip
	BasePath   string         `json:"basePath"`
	Entries    []CaptureEntry `json:"entries"`
	RootDigest string         `json:"rootDigest"`
	Limits     CaptureLimits  `json:"limits"`
	Truncated  bool           `json:"truncated"`
}

// AdapterInfo names the adapter that produced an AdapterResult.
type AdapterInfo struct {
	AdapterID string `json:"adapterId"`
	Mode      string `json:"mode"` // strict|plugin
}

// AdapterResult is the outcome of routing an input through the adapter
// registry. Exactly one of the success or failure field groups is
// meaningful, discriminated by Ok.
type AdapterResult struct {
	Ok             bool           `json:"ok"`
	Adapter        *AdapterInfo   `json:"adapter,omitempty"`
	Summary        map[string]any `json:"summary,omitempty"`
	Findings       []string       `json:"findings,omitempty"`
	AdapterSignals map[string]any `json:"adapterSignals,omitempty"`
	ReasonCodes    []string       `json:"reasonCodes,omitempty"`
	FailCode       string         `json:"failCode,omitempty"`
	FailMessage    string         `json:"failMessage,omitempty"`
}

// ExternalRefs summarizes external references observed in the capture.
type ExternalRefs struct {
	Count      int      `json:"count"`
	TopDomains []string `json:"topDomains"`
}

// StringsIndicators are bounded counters derived from text-file content.
type StringsIndicators struct {
	URLLikeCount        int `json:"urlLikeCount"`
	IPLikeCount         int `json:"ipLikeCount"`
	PowershellLikeCount int `json:"powershellLikeCount"`
	CmdExecLikeCount    int `json:"cmdExecLikeCount"`
}

// PolicyMatch records which policy selection applied and why.
type PolicyMatch struct {
	SelectedPolicy string   `json:"selectedPolicy"`
	ReasonCodes    []string `json:"reasonCodes"`
}

// HashFamily holds the digest(s) anchoring a content summary.
type HashFamily struct {
	SHA256 string `json:"sha256"`
}

// FileCountsByKind buckets file counts by extension class.
type FileCountsByKind struct {
	HTML   int `json:"html"`
	JS     int `json:"js"`
	CSS    int `json:"css"`
	JSON   int `json:"json"`
	WASM   int `json:"wasm"`
	Media  int `json:"media"`
	Binary int `json:"binary"`
	Other  int `json:"other"`
}

// ContentSummary is the deterministic summary derived from capture,
// classifier result, and mint observations.
type ContentSummary struct {
	TargetKind          string            `json:"targetKind"`
	ArtifactKind        ArtifactKind      `json:"artifactKind"`
	FileCountsByKind    FileCountsByKind  `json:"fileCountsByKind"`
	TotalFiles          int               `json:"totalFiles"`
	TotalBytesBounded    int64            `json:"totalBytesBounded"`
	TopExtensions       []string          `json:"topExtensions"`
	HasNativeBinaries   bool              `json:"hasNativeBinaries"`
	HasScripts          bool              `json:"hasScripts"`
	HasHTML             bool              `json:"hasHtml"`
	ExternalRefs        ExternalRefs      `json:"externalRefs"`
	EntryHints          []string          `json:"entryHints"`
	BoundednessMarkers  []string          `json:"boundednessMarkers"`
	ArchiveDepthMax     int               `json:"archiveDepthMax"`
	NestedArchiveCount  int               `json:"nestedArchiveCount"`
	ManifestCount       int               `json:"manifestCount"`
	StringsIndicators   StringsIndicators `json:"stringsIndicators"`
	AdapterSignals      map[string]any    `json:"adapterSignals,omitempty"`
	PolicyMatch         PolicyMatch       `json:"policyMatch"`
	HashFamily          HashFamily        `json:"hashFamily"`
}

// ExecutionResult is the execution sub-block of a SafeRunReceipt.
type ExecutionResult struct {
	Result      ExecutionVerdict `json:"result"`
	ReasonCodes []string         `json:"reasonCodes"`
}

// SubReceipt references a single evidence file by relative path and
// content digest.
type SubReceipt struct {
	Name   string `json:"name"`
	Digest string `json:"digest"`
}

// SafeRunReceipt is the canonical receipt produced by one safe-run
// invocation.
type SafeRunReceipt struct {
	Schema               string           `json:"schema"`
	SchemaVersion        int              `json:"schemaVersion"`
	WeftendBuild         BuildInfo        `json:"weftendBuild"`
	InputKind            InputKind        `json:"inputKind"`
	ArtifactKind         ArtifactKind     `json:"artifactKind"`
	EntryHint            string           `json:"entryHint,omitempty"`
	AnalysisVerdict      AnalysisVerdict  `json:"analysisVerdict"`
	ExecutionVerdict     ExecutionVerdict `json:"executionVerdict"`
	TopReasonCode        string           `json:"topReasonCode"`
	InputDigest          string           `json:"inputDigest,omitempty"`
	PolicyID             string           `json:"policyId"`
	ReleaseID            string           `json:"releaseId,omitempty"`
	ReleaseDirDigest     string           `json:"releaseDirDigest,omitempty"`
	IntakeDecisionDigest string           `json:"intakeDecisionDigest,omitempty"`
	HostReceiptDigest    string           `json:"hostReceiptDigest,omitempty"`
	HostSelfStatus       HostSelfStatus   `json:"hostSelfStatus,omitempty"`
	HostSelfReasonCodes  []string         `json:"hostSelfReasonCodes,omitempty"`
	Adapter              *AdapterInfo     `json:"adapter,omitempty"`
	ContentSummary       ContentSummary   `json:"contentSummary"`
	Execution            ExecutionResult  `json:"execution"`
	SubReceipts          []SubReceipt     `json:"subReceipts"`
	ReceiptDigest        string           `json:"receiptDigest"`
}

// OperatorReceiptEntry names one evidence artifact by kind, relative
// path, and digest.
type OperatorReceiptEntry struct {
	Kind    string `json:"kind"`
	RelPath string `json:"relPath"`
	Digest  string `json:"digest"`
}

// OperatorReceipt is the operator-facing evidence index.
type OperatorReceipt struct {
	Command        string                 `json:"command"`
	WeftendBuild   BuildInfo              `json:"weftendBuild"`
	SchemaVersion  int                    `json:"schemaVersion"`
	Receipts       []OperatorReceiptEntry `json:"receipts"`
	Warnings       []string               `json:"warnings"`
	ContentSummary *ContentSummary        `json:"contentSummary,omitempty"`
	ReceiptDigest  string                 `json:"receiptDigest"`
}

// CompareVerdict is a closed tagged union.
type CompareVerdict string

const (
	CompareSame    CompareVerdict = "SAME"
	CompareChanged CompareVerdict = "CHANGED"
)

// PrivacyLintVerdict is a closed tagged union.
type PrivacyLintVerdict string

const (
	PrivacyLintPass PrivacyLintVerdict = "PASS"
	PrivacyLintFail PrivacyLintVerdict = "FAIL"
)

// CompareSide names one side of a comparison.
type CompareSide struct {
	SummaryDigest string   `json:"summaryDigest"`
	ReceiptKinds  []string `json:"receiptKinds"`
}

// Change is a single bucketed change between two summaries.
type Change struct {
	Bucket  string         `json:"bucket"`
	Added   []string       `json:"added"`
	Removed []string       `json:"removed"`
	Counts  map[string]int `json:"counts,omitempty"`
}

// CompareReceipt is the output of the compare engine.
type CompareReceipt struct {
	Schema        string             `json:"schema"`
	Left          CompareSide        `json:"left"`
	Right         CompareSide        `json:"right"`
	Verdict       CompareVerdict     `json:"verdict"`
	ChangeBuckets []string           `json:"changeBuckets"`
	Changes       []Change           `json:"changes"`
	PrivacyLint   PrivacyLintVerdict `json:"privacyLint"`
	ReasonCodes   []string           `json:"reasonCodes"`
	ReceiptDigest string             `json:"receiptDigest"`
}

// Blocked names a blocked run and the reasons it is blocked.
type Blocked struct {
	RunID       string   `json:"runId"`
	ReasonCodes []string `json:"reasonCodes"`
}

// LibraryViewKey is a single persisted comparison in a library view.
type LibraryViewKey struct {
	VerdictVsBaseline CompareVerdict `json:"verdictVsBaseline"`
	Buckets           []string       `json:"buckets"`
	ArtifactDigest    string         `json:"artifactDigest"`
	Result            string         `json:"result"`
}

// LibraryViewState is the per-target cross-invocation mutable view.
type LibraryViewState struct {
	SchemaVersion int              `json:"schemaVersion"`
	TargetKey     string           `json:"targetKey"`
	BaselineRunID string           `json:"baselineRunId"`
	LatestRunID   string           `json:"latestRunId"`
	Blocked       *Blocked         `json:"blocked"`
	LastN         []string         `json:"lastN"`
	Keys          []LibraryViewKey `json:"keys"`
}

// HostRunReceipt is the receipt returned by the external host runner.
// Treated as opaque by the core except for its digest and status.
type HostRunReceipt struct {
	Schema        string   `json:"schema"`
	ReleaseID     string   `json:"releaseId"`
	Status        string   `json:"status"`
	ReasonCodes   []string `json:"reasonCodes"`
	ReceiptDigest string   `json:"receiptDigest"`
}

// AdapterManifest is the manifest of a pre-materialized normalized
// artifact (e.g. email_export/).
type AdapterManifest struct {
	RequiredFiles []string `json:"requiredFiles"`
}

// ShadowAuditResult is the proof-only output of the shadow-audit reducer.
// It MUST NOT echo events, stream, or request.
type ShadowAuditResult struct {
	Schema           string             `json:"schema"`
	V                int                `json:"v"`
	Status           string             `json:"status"` // OK|WARN|DENY
	ReasonFamilies   []string           `json:"reasonFamilies"`
	TartarusKindCounts map[string]int   `json:"tartarusKindCounts"`
	Counts           map[string]int     `json:"counts"`
	SequenceCounts   SequenceCounts     `json:"sequenceCounts"`
	CapCounts        CapCounts          `json:"capCounts"`
}

// SequenceCounts tallies pair-partitioned event sequence anomalies.
type SequenceCounts struct {
	Missing    int `json:"missing"`
	Extra      int `json:"extra"`
	Reordered  int `json:"reordered"`
	Duplicate  int `json:"duplicate"`
}

// CapCounts tallies capability ledger anomalies.
type CapCounts struct {
	AttemptedWithoutRequest int `json:"attemptedWithoutRequest"`
	AllowedWithoutEvidence  int `json:"allowedWithoutEvidence"`
	Inconsistent            int `json:"inconsistent"`
}
