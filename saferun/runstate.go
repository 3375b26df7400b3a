package saferun

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/weftend/weftend/adapter"
	"github.com/weftend/weftend/canon"
	"github.com/weftend/weftend/capture"
	"github.com/weftend/weftend/classify"
	"github.com/weftend/weftend/log"
	"github.com/weftend/weftend/receipts"
	"github.com/weftend/weftend/weftpolicy"
)

// branchOutcome is the shared result shape produced by either the
// release branch or the raw branch; build() folds it into a receipt.
type branchOutcome struct {
	InputKind            receipts.InputKind
	AnalysisVerdict      receipts.AnalysisVerdict
	ExecutionVerdict     receipts.ExecutionVerdict
	ExecutionReasons     []string
	AdapterReasons       []string
	IntakeReasons        []string
	ClassifierReasons    []string
	Adapter              *receipts.AdapterInfo
	AdapterSignals       map[string]any
	ReleaseID            string
	ReleaseDirDigest     string
	IntakeDecisionDigest string
	HostReceiptDigest    string
	HostSelfStatus       receipts.HostSelfStatus
	HostSelfReasonCodes  []string
	InputDigest          string
}

// runState carries everything one safe-run invocation accumulates
// after the stage directory exists: the capture, the policy, and the
// growing list of written sub-receipts.
type runState struct {
	cfg            Config
	logger         *log.Logger
	registry       *adapter.Registry
	policy         *weftpolicy.Policy
	policyID       string
	stageDir       string
	hadPreexisting bool
	startedAt      time.Time

	capture    *receipts.ArtifactCapture
	scriptText string

	artifacts      []receipts.SubReceipt
	privacyVerdict receipts.PrivacyLintVerdict
}

// build runs the full post-stage sequence: capture, classify, branch
// dispatch, receipt assembly, evidence self-verification, and privacy
// lint. It never touches outDir itself; the caller performs the
// atomic rename once build returns successfully.
func (r *runState) build(ctx context.Context) (*Result, error) {
	if r.cfg.ScriptPath != "" {
		data, err := os.ReadFile(r.cfg.ScriptPath)
		if err == nil {
			r.scriptText = string(data)
		}
	}

	cap, err := capture.Capture(r.cfg.InputPath, capture.DefaultLimits())
	if err != nil {
		return nil, err
	}
	r.capture = cap
	r.cfg.Collector.AddCaptureFilesScanned(int64(len(cap.Entries)))
	var totalBytes int64
	for _, e := range cap.Entries {
		totalBytes += e.Bytes
	}
	r.cfg.Collector.AddCaptureBytesBounded(totalBytes)
	if cap.Truncated {
		r.cfg.Collector.IncCaptureTruncation()
	}

	cls := classify.Classify(r.cfg.InputPath, cap)
	r.cfg.Collector.SetDimensions(string(cls.ArtifactKind), filepath.Base(filepath.Clean(r.cfg.InputPath)))
	r.logger.Debug("artifact classified", map[string]any{"artifactKind": cls.ArtifactKind, "entryHint": cls.EntryHint})

	var outcome *branchOutcome
	if cls.ArtifactKind == receipts.KindReleaseDir {
		r.logger.Debug("dispatching release branch", nil)
		outcome, err = r.releaseBranch(ctx)
	} else {
		r.logger.Debug("dispatching raw branch", nil)
		outcome, err = r.rawBranch(ctx, cls)
	}
	if err != nil {
		return nil, err
	}
	outcome.InputDigest = cap.RootDigest
	r.logger.Info("branch outcome", map[string]any{
		"analysisVerdict":  outcome.AnalysisVerdict,
		"executionVerdict": outcome.ExecutionVerdict,
	})

	return r.buildReceipt(ctx, cls, outcome)
}

// writeArtifact writes data under relPath inside the stage directory
// and records its content digest as a sub-receipt. relPath uses
// forward slashes in the recorded name regardless of platform.
func (r *runState) writeArtifact(relPath string, data []byte) (string, error) {
	full := filepath.Join(r.stageDir, relPath)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return "", err
	}
	digest := canon.Digest(data)
	r.artifacts = append(r.artifacts, receipts.SubReceipt{Name: filepath.ToSlash(relPath), Digest: digest})
	return digest, nil
}

// sortedArtifacts returns the accumulated sub-receipts sorted by name
// then digest, as required by the receipt build sequence.
func (r *runState) sortedArtifacts() []receipts.SubReceipt {
	out := append([]receipts.SubReceipt(nil), r.artifacts...)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return canon.Less(out[i].Name, out[j].Name)
		}
		return canon.Less(out[i].Digest, out[j].Digest)
	})
	return out
}
