package saferun

import (
	"context"
	"path/filepath"

	"github.com/weftend/weftend/canon"
	"github.com/weftend/weftend/classify"
	"github.com/weftend/weftend/receipts"
)

// gateInputs carries everything the execution gating decision needs.
type gateInputs struct {
	withholdExec     bool
	executeRequested bool
	intakeAllowed    bool
	artifactKind     receipts.ArtifactKind
}

// unsupportedExecutionKinds are artifact kinds with no execution lane
// at all, independent of intake or withhold-exec state.
var unsupportedExecutionKinds = map[receipts.ArtifactKind]bool{
	receipts.KindZIP:  true,
	receipts.KindText: true,
}

// gateExecution implements the execution reason taxonomy: the first
// matching row wins.
func gateExecution(in gateInputs) (receipts.ExecutionVerdict, []string) {
	switch {
	case in.withholdExec:
		return receipts.ExecutionNotAttempted, []string{"SAFE_RUN_WITHHOLD_EXEC_REQUESTED"}
	case !in.executeRequested:
		return receipts.ExecutionNotAttempted, []string{"SAFE_RUN_EXECUTION_NOT_REQUESTED"}
	case !in.intakeAllowed:
		return receipts.ExecutionSkip, []string{"INTAKE_NOT_APPROVED"}
	case in.artifactKind == receipts.KindNativeExe || in.artifactKind == receipts.KindNativeMSI:
		return receipts.ExecutionNotAttempted, []string{"ARTIFACT_NATIVE_BINARY_WITHHELD", "EXECUTION_WITHHELD_UNSUPPORTED_ARTIFACT"}
	case in.artifactKind == receipts.KindShortcutLNK:
		return receipts.ExecutionNotAttempted, []string{"ARTIFACT_SHORTCUT_UNSUPPORTED", "EXECUTION_WITHHELD_UNSUPPORTED_ARTIFACT"}
	case in.artifactKind == receipts.KindUnknown:
		return receipts.ExecutionNotAttempted, []string{"SAFE_RUN_NO_ENTRYPOINT_FOUND", "ANALYSIS_ONLY_UNKNOWN_ARTIFACT"}
	case unsupportedExecutionKinds[in.artifactKind]:
		return receipts.ExecutionNotAttempted, []string{"ANALYSIS_ONLY_NO_EXECUTION_LANE"}
	default:
		return receipts.ExecutionAllow, nil
	}
}

// executeRelease builds a minimal local release from the captured
// artifact and invokes the host runner against it. Only reachable once
// gateExecution has already returned ExecutionAllow.
func (r *runState) executeRelease(ctx context.Context, cls classify.Result, out *branchOutcome) error {
	releaseDir := filepath.Join(r.stageDir, "release")

	manifest := map[string]any{
		"artifactKind": cls.ArtifactKind,
		"entryHint":    cls.EntryHint,
	}
	bundle := map[string]any{"profile": r.cfg.Profile}
	evidence := map[string]any{"capabilityMentions": []string{}}
	publicKey := map[string]any{"algorithm": canon.Algorithm}

	for _, f := range []struct {
		name string
		body any
	}{
		{"release_manifest.json", manifest},
		{"runtime_bundle.json", bundle},
		{"evidence.json", evidence},
		{"release_public_key.json", publicKey},
	} {
		data, err := canon.Marshal(f.body)
		if err != nil {
			return err
		}
		if _, err := r.writeArtifact(filepath.Join("release", f.name), data); err != nil {
			return err
		}
	}

	hostOutDir := filepath.Join(r.stageDir, "host")
	hostReceipt, err := r.cfg.HostRunner.HostRunStrict(ctx, releaseDir, hostOutDir)
	if err != nil {
		r.logger.Warn("host run failed", map[string]any{"error": err.Error()})
		out.ExecutionVerdict = receipts.ExecutionNotAttempted
		out.ExecutionReasons = append(out.ExecutionReasons, "HOST_RUN_FAILED")
		return nil
	}

	hostReceiptJSON := receipts.HostRunReceipt{
		Schema:      "weftend.hostRunReceipt.v1",
		Status:      hostReceipt.SelfStatus,
		ReasonCodes: hostReceipt.ReasonCodes,
	}
	data, err := canon.Marshal(hostReceiptJSON)
	if err != nil {
		return err
	}
	digest, err := r.writeArtifact(filepath.Join("host", "host_run_receipt.json"), data)
	if err != nil {
		return err
	}
	out.HostReceiptDigest = digest
	out.HostSelfStatus = receipts.HostSelfStatus(hostReceipt.SelfStatus)
	out.HostSelfReasonCodes = hostReceipt.ReasonCodes
	if !hostReceipt.Ran {
		out.ExecutionVerdict = receipts.ExecutionNotAttempted
		out.ExecutionReasons = append(out.ExecutionReasons, hostReceipt.ReasonCodes...)
	}
	return nil
}
