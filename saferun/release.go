package saferun

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/weftend/weftend/canon"
	"github.com/weftend/weftend/receipts"
)

const maxReleaseMetaBytes = 1 * 1024 * 1024

// releaseFile names one of the four required release metadata files and
// the reason-code family it reports under when missing/invalid/oversize.
type releaseFile struct {
	name         string
	missingCode  string
	invalidCode  string
	oversizeCode string
}

var releaseFiles = []releaseFile{
	{"release_manifest.json", "RELEASE_MANIFEST_MISSING", "RELEASE_MANIFEST_INVALID", "RELEASE_MANIFEST_OVERSIZE"},
	{"runtime_bundle.json", "RUNTIME_BUNDLE_MISSING", "RUNTIME_BUNDLE_INVALID", "RUNTIME_BUNDLE_OVERSIZE"},
	{"evidence.json", "EVIDENCE_MISSING", "EVIDENCE_INVALID", "EVIDENCE_OVERSIZE"},
	{"release_public_key.json", "PUBLIC_KEY_MISSING", "PUBLIC_KEY_INVALID", "PUBLIC_KEY_OVERSIZE"},
}

// releaseBranch handles a classifier result of RELEASE_DIR: it loads
// and validates the four release metadata files, and if all are
// well-formed, either withholds (analysis only) or invokes the host
// runner to execute the release strictly.
func (r *runState) releaseBranch(ctx context.Context) (*branchOutcome, error) {
	out := &branchOutcome{InputKind: receipts.InputRelease}

	var fatalReasons []string
	loaded := make(map[string][]byte, len(releaseFiles))
	for _, rf := range releaseFiles {
		path := filepath.Join(r.cfg.InputPath, rf.name)
		info, err := os.Stat(path)
		if os.IsNotExist(err) {
			fatalReasons = append(fatalReasons, rf.missingCode)
			continue
		}
		if err != nil {
			fatalReasons = append(fatalReasons, rf.invalidCode)
			continue
		}
		if info.Size() > maxReleaseMetaBytes {
			fatalReasons = append(fatalReasons, rf.oversizeCode, "HOST_INPUT_OVERSIZE")
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			fatalReasons = append(fatalReasons, rf.invalidCode)
			continue
		}
		var probe any
		if err := json.Unmarshal(data, &probe); err != nil {
			fatalReasons = append(fatalReasons, rf.invalidCode)
			continue
		}
		loaded[rf.name] = data
	}

	if len(fatalReasons) > 0 {
		out.AnalysisVerdict = receipts.AnalysisDeny
		out.ExecutionVerdict = receipts.ExecutionNotAttempted
		out.ClassifierReasons = fatalReasons
		out.ExecutionReasons = []string{"ANALYSIS_ONLY_NO_EXECUTION_LANE"}
		return out, nil
	}

	if digest, err := canon.DigestValue(loaded); err == nil {
		out.ReleaseDirDigest = digest
	}
	out.ReleaseID = releaseIDFromManifest(loaded["release_manifest.json"])

	if !r.cfg.ExecuteRequested || r.cfg.WithholdExec {
		out.AnalysisVerdict = receipts.AnalysisWithheld
		if r.cfg.WithholdExec {
			out.ExecutionVerdict = receipts.ExecutionNotAttempted
			out.ExecutionReasons = []string{"SAFE_RUN_WITHHOLD_EXEC_REQUESTED"}
		} else {
			out.ExecutionVerdict = receipts.ExecutionNotAttempted
			out.ExecutionReasons = []string{"SAFE_RUN_EXECUTION_NOT_REQUESTED"}
		}
		return out, nil
	}

	releaseDir := filepath.Join(r.stageDir, "release")
	if err := os.MkdirAll(releaseDir, 0o755); err != nil {
		return nil, err
	}
	for _, rf := range releaseFiles {
		if _, err := r.writeArtifact(filepath.Join("release", rf.name), loaded[rf.name]); err != nil {
			return nil, err
		}
	}

	hostOutDir := filepath.Join(r.stageDir, "host")
	hostReceipt, err := r.cfg.HostRunner.HostRunStrict(ctx, releaseDir, hostOutDir)
	if err != nil {
		out.AnalysisVerdict = receipts.AnalysisDeny
		out.ClassifierReasons = []string{"VERIFY_DENIED"}
		out.ExecutionVerdict = receipts.ExecutionNotAttempted
		out.ExecutionReasons = []string{"ANALYSIS_ONLY_NO_EXECUTION_LANE"}
		return out, nil
	}

	hostReceiptJSON := receipts.HostRunReceipt{
		Schema:      "weftend.hostRunReceipt.v1",
		Status:      hostReceipt.SelfStatus,
		ReasonCodes: hostReceipt.ReasonCodes,
	}
	data, err := canon.Marshal(hostReceiptJSON)
	if err != nil {
		return nil, err
	}
	digest, err := r.writeArtifact(filepath.Join("host", "host_run_receipt.json"), data)
	if err != nil {
		return nil, err
	}
	out.HostReceiptDigest = digest

	switch hostReceipt.SelfStatus {
	case string(receipts.HostSelfOK):
		out.HostSelfStatus = receipts.HostSelfOK
		out.ExecutionVerdict = receipts.ExecutionAllow
		out.AnalysisVerdict = receipts.AnalysisAllow
	case string(receipts.HostSelfUnverified):
		out.HostSelfStatus = receipts.HostSelfUnverified
		out.ExecutionVerdict = receipts.ExecutionSkip
		out.AnalysisVerdict = receipts.AnalysisWithheld
	default:
		out.HostSelfStatus = receipts.HostSelfMissing
		out.ExecutionVerdict = receipts.ExecutionNotAttempted
		out.AnalysisVerdict = receipts.AnalysisWithheld
	}
	out.HostSelfReasonCodes = hostReceipt.ReasonCodes
	out.ExecutionReasons = hostReceipt.ReasonCodes

	return out, nil
}

// releaseIDFromManifest best-effort extracts a "releaseId" string field
// from the raw release manifest bytes; absence is not an error, since
// the manifest's own schema is not this package's concern.
func releaseIDFromManifest(data []byte) string {
	if len(data) == 0 {
		return ""
	}
	var probe struct {
		ReleaseID string `json:"releaseId"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return ""
	}
	return probe.ReleaseID
}
