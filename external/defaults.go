package external

import (
	"context"
	"os/exec"
	"runtime"

	"github.com/weftend/weftend/weftpolicy"
)

// WithheldMintExaminer is the conservative default MintExaminer: it
// performs no real examination and reports a withholding observation,
// so any caller relying solely on defaults gets WITHHELD rather than a
// false ALLOW.
type WithheldMintExaminer struct{}

func (WithheldMintExaminer) ExamineArtifact(ctx context.Context, path string, opts MintOptions) (MintResult, error) {
	return MintResult{
		Mint: MintObservation{
			BoundednessMarkers: []string{"BOUND_NO_MINT_EXAMINER_CONFIGURED"},
		},
		Report: "no mint examiner configured; withholding by default",
	}, nil
}

// DenyIntakeDecisionBuilder is the conservative default
// IntakeDecisionBuilder: it never allows, since without a real
// collaborator there is no evidence to allow on.
type DenyIntakeDecisionBuilder struct{}

func (DenyIntakeDecisionBuilder) BuildIntakeDecision(ctx context.Context, mint MintObservation, policy *weftpolicy.Policy, opts MintOptions) (IntakeDecision, error) {
	return IntakeDecision{
		Allow:       false,
		ReasonCodes: []string{"INTAKE_NO_DECISION_BUILDER_CONFIGURED"},
		Disclosure:  "no intake decision builder configured",
		Appeal:      "",
	}, nil
}

// NotAttemptedHostRunner is the conservative default HostRunner: it
// never runs anything and reports MISSING self-status, which the
// orchestrator treats as grounds to block library baseline promotion.
type NotAttemptedHostRunner struct{}

func (NotAttemptedHostRunner) HostRunStrict(ctx context.Context, releaseDir, outDir string) (HostRunReceipt, error) {
	return HostRunReceipt{
		Ran:         false,
		ReasonCodes: []string{"HOST_NO_RUNNER_CONFIGURED"},
		SelfStatus:  "MISSING",
	}, nil
}

// FailClosedPrivacyLinter is the conservative default PrivacyLinter: it
// always reports FAIL, since without a real linter there is no basis
// to claim a clean bill of health.
type FailClosedPrivacyLinter struct{}

func (FailClosedPrivacyLinter) PrivacyLint(ctx context.Context, root string, buildDigest string) (PrivacyReport, error) {
	return PrivacyReport{
		Verdict: "FAIL",
		Notes:   []string{"no privacy linter configured; failing closed"},
	}, nil
}

// BestEffortOpener shells out to the platform's default opener. Errors
// are swallowed by design at the call site (never block receipts); this
// type only reports them for optional logging.
type BestEffortOpener struct{}

func (BestEffortOpener) OpenExternal(path string) error {
	var name string
	var args []string
	switch runtime.GOOS {
	case "darwin":
		name, args = "open", []string{path}
	case "windows":
		name, args = "cmd", []string{"/c", "start", "", path}
	default:
		name, args = "xdg-open", []string{path}
	}
	cmd := exec.Command(name, args...)
	return cmd.Start()
}
