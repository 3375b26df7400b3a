// Package external declares the collaborator contracts the orchestrator
// consumes but does not implement (the mint examiner, the intake
// decision builder, the strict host runner, and the privacy linter),
// plus conservative default implementations that err toward WITHHELD or
// DENY whenever genuine external capability is absent.
//
// Production deployments are expected to supply their own
// implementations of these interfaces (typically backed by a sandboxed
// executor living outside this module's trust boundary); the defaults
// here exist so the orchestrator has a safe, fully fail-closed behavior
// out of the box.
package external

import (
	"context"
	"time"

	"github.com/weftend/weftend/weftpolicy"
)

// MintOptions carries the optional inputs to an artifact examination.
type MintOptions struct {
	Profile    weftpolicy.Profile
	ScriptText string
}

// MintObservation is the bounded observation record produced by
// examining an artifact: boundedness markers, capability mentions, and
// other signals the content summary builder folds in.
type MintObservation struct {
	BoundednessMarkers []string
	CapabilityMentions []string
	ReportText         string
}

// MintResult is the return shape of examineArtifact.
type MintResult struct {
	Mint    MintObservation
	Capture map[string]any
	Report  string
}

// MintExaminer examines an artifact under a profile and returns
// observations the rest of the pipeline consumes. It never touches the
// network and never blocks past a bounded time budget.
type MintExaminer interface {
	ExamineArtifact(ctx context.Context, path string, opts MintOptions) (MintResult, error)
}

// IntakeDecision is the structured verdict produced from a mint
// observation and a policy.
type IntakeDecision struct {
	Allow       bool
	ReasonCodes []string
	Disclosure  string
	Appeal      string
}

// IntakeDecisionBuilder turns a mint observation plus a policy into an
// allow/deny decision with accompanying operator-facing text.
type IntakeDecisionBuilder interface {
	BuildIntakeDecision(ctx context.Context, mint MintObservation, policy *weftpolicy.Policy, opts MintOptions) (IntakeDecision, error)
}

// HostRunReceipt is the host-side record of a strict execution attempt.
type HostRunReceipt struct {
	Ran         bool
	ReasonCodes []string
	SelfStatus  string // OK|UNVERIFIED|MISSING
}

// HostRunner performs (or declines to perform) strict execution of a
// built release against a sandboxed host, never on the caller's own
// filesystem.
type HostRunner interface {
	HostRunStrict(ctx context.Context, releaseDir, outDir string) (HostRunReceipt, error)
}

// PrivacyReport is the privacy linter's verdict.
type PrivacyReport struct {
	Verdict string // PASS|FAIL
	Notes   []string
}

// PrivacyLinter inspects a finalized output tree for inadvertent
// disclosure (e.g. embedded secrets, absolute host paths) before it is
// considered safe to hand to an operator.
type PrivacyLinter interface {
	PrivacyLint(ctx context.Context, root string, buildDigest string) (PrivacyReport, error)
}

// Opener performs a best-effort, never-blocking open of a path in the
// operator's environment (e.g. a file manager). A failure here must
// never affect a receipt.
type Opener interface {
	OpenExternal(path string) error
}

// DefaultTimeout is a 30-second bound for external-collaborator calls.
// Neither the default collaborators nor the saferun orchestrator apply
// it.
const DefaultTimeout = 30 * time.Second
