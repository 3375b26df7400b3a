// Package saferun implements the safe-run orchestrator: the single
// entry point that takes one input path and a policy, and produces a
// canonical, fail-closed receipt describing what was found and what
// (if anything) ran.
package saferun

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/weftend/weftend/adapter"
	"github.com/weftend/weftend/canon"
	"github.com/weftend/weftend/external"
	"github.com/weftend/weftend/log"
	"github.com/weftend/weftend/metrics"
	"github.com/weftend/weftend/receipts"
	"github.com/weftend/weftend/weftpolicy"
)

const SchemaSafeRunReceipt = "weftend.safeRunReceipt/0"
const SchemaOperatorReceipt = "weftend.operatorReceipt/0"
const CurrentSchemaVersion = 0

// Exit codes per spec.md §6.
const (
	ExitSuccess     = 0
	ExitFailClosed  = 40
	ExitInternalErr = 1
)

// Config carries one safe-run invocation's inputs, matching the CLI
// flag surface and the collaborators it is wired to.
type Config struct {
	InputPath        string
	OutDir           string
	PolicyPath       string
	Profile          weftpolicy.Profile
	ExecuteRequested bool
	WithholdExec     bool

	// AdapterSelection is "auto", "none", or one adapter.Class value.
	AdapterSelection string
	EnabledPlugins   []string
	ScriptPath       string

	AdapterMaintenancePolicyPath string
	DisabledAdapterClasses      []string

	LibraryRoot string

	MintExaminer  external.MintExaminer
	IntakeBuilder external.IntakeDecisionBuilder
	HostRunner    external.HostRunner
	PrivacyLinter external.PrivacyLinter

	Build         receipts.BuildInfo
	SchemaVersion int

	Collector *metrics.Collector
	Logger    *log.Logger
}

// Result is the outcome of one Execute call.
type Result struct {
	ExitCode        int
	Receipt         *receipts.SafeRunReceipt
	OperatorReceipt *receipts.OperatorReceipt
	LibraryState    *receipts.LibraryViewState
	LibraryWarnings []string
}

// Orchestrator runs one safe-run invocation end to end.
type Orchestrator struct {
	cfg      Config
	logger   *log.Logger
	registry *adapter.Registry
}

// New validates nothing yet (that's Execute's job via preconditions)
// and fills in conservative defaults for any unset collaborator.
func New(cfg Config) *Orchestrator {
	if cfg.MintExaminer == nil {
		cfg.MintExaminer = external.WithheldMintExaminer{}
	}
	if cfg.IntakeBuilder == nil {
		cfg.IntakeBuilder = external.DenyIntakeDecisionBuilder{}
	}
	if cfg.HostRunner == nil {
		cfg.HostRunner = external.NotAttemptedHostRunner{}
	}
	if cfg.PrivacyLinter == nil {
		cfg.PrivacyLinter = external.FailClosedPrivacyLinter{}
	}
	if cfg.SchemaVersion == 0 {
		cfg.SchemaVersion = CurrentSchemaVersion
	}
	if cfg.Build.Algorithm == "" {
		cfg.Build = DefaultBuildInfo("dev")
	}
	logCtx := log.Context{PolicyID: "", InputKind: "", TargetKey: ""}
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(logCtx)
	}
	return &Orchestrator{cfg: cfg, logger: logger, registry: adapter.NewRegistry()}
}

// DefaultBuildInfo constructs a BuildInfo stamped with the given
// version string; buildDigest is the digest of the version so that
// every receipt built by the same binary shares one buildDigest.
func DefaultBuildInfo(version string) receipts.BuildInfo {
	return receipts.BuildInfo{
		Version:     version,
		Algorithm:   canon.Algorithm,
		BuildDigest: canon.Digest([]byte(version)),
	}
}

// Execute runs one safe-run invocation end to end: preconditions,
// staged writes, branch dispatch, receipt build, evidence
// self-verification, atomic finalize, and library view update.
func (o *Orchestrator) Execute(ctx context.Context) (*Result, error) {
	o.cfg.Collector.IncRunStarted()
	o.logger.Info("safe-run starting", map[string]any{"inputPath": o.cfg.InputPath, "outDir": o.cfg.OutDir})

	pol, policyID, err := o.loadPolicy()
	if err != nil {
		o.cfg.Collector.IncRunFailed()
		return o.preconditionFailure(reasonCodeOf(err))
	}

	if issues := o.checkPreconditions(); len(issues) > 0 {
		o.cfg.Collector.IncRunFailed()
		return o.preconditionFailure(issues...)
	}

	hadPreexisting, err := outDirNonEmpty(o.cfg.OutDir)
	if err != nil {
		o.cfg.Collector.IncRunFailed()
		return o.preconditionFailure("SAFE_RUN_OUT_PATH_NOT_DIRECTORY")
	}

	stageDir := o.cfg.OutDir + ".stage"
	if err := os.RemoveAll(stageDir); err != nil {
		o.cfg.Collector.IncRunFailed()
		return nil, fmt.Errorf("removing stage dir: %w", err)
	}
	if err := os.MkdirAll(stageDir, 0o755); err != nil {
		o.cfg.Collector.IncRunFailed()
		return nil, fmt.Errorf("creating stage dir: %w", err)
	}

	run := &runState{
		cfg:            o.cfg,
		logger:         o.logger,
		registry:       o.registry,
		policy:         pol,
		policyID:       policyID,
		stageDir:       stageDir,
		hadPreexisting: hadPreexisting,
		startedAt:      time.Now(),
	}

	result, err := run.build(ctx)
	if err != nil {
		_ = os.RemoveAll(stageDir)
		o.cfg.Collector.IncRunFailed()
		return nil, err
	}

	if err := finalizeOutDir(stageDir, o.cfg.OutDir); err != nil {
		_ = os.RemoveAll(stageDir)
		o.cfg.Collector.IncRunFailed()
		return nil, fmt.Errorf("finalizing output: %w", err)
	}

	run.updateLibraryView(result)

	if result.Receipt.AnalysisVerdict == receipts.AnalysisDeny {
		o.cfg.Collector.IncRunDenied()
	} else {
		o.cfg.Collector.IncRunCompleted()
	}
	o.logger.Info("safe-run complete", map[string]any{
		"analysisVerdict":  result.Receipt.AnalysisVerdict,
		"executionVerdict": result.Receipt.ExecutionVerdict,
		"topReasonCode":    result.Receipt.TopReasonCode,
		"exitCode":         result.ExitCode,
	})

	return result, nil
}

func (o *Orchestrator) loadPolicy() (*weftpolicy.Policy, string, error) {
	if o.cfg.PolicyPath == "" {
		pol := weftpolicy.Default()
		id, err := weftpolicy.ID(pol)
		return pol, id, err
	}
	return weftpolicy.Load(o.cfg.PolicyPath)
}

func (o *Orchestrator) preconditionFailure(reasonCodes ...string) (*Result, error) {
	return &Result{ExitCode: ExitFailClosed}, &PreconditionError{ReasonCodes: reasonCodes}
}

// PreconditionError is returned when a safe-run fails before any stage
// directory is created.
type PreconditionError struct {
	ReasonCodes []string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("safe-run preconditions failed: %v", e.ReasonCodes)
}

func reasonCodeOf(err error) string {
	switch {
	case err == nil:
		return ""
	default:
		return firstMatchingSentinel(err)
	}
}

func firstMatchingSentinel(err error) string {
	switch {
	case errors.Is(err, weftpolicy.ErrPolicyMissing):
		return "POLICY_MISSING"
	case errors.Is(err, weftpolicy.ErrPolicyInvalid):
		return "POLICY_INVALID"
	default:
		return "POLICY_INVALID"
	}
}

func outDirNonEmpty(outDir string) (bool, error) {
	info, err := os.Stat(outDir)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if !info.IsDir() {
		return false, fmt.Errorf("SAFE_RUN_OUT_PATH_NOT_DIRECTORY")
	}
	entries, err := os.ReadDir(outDir)
	if err != nil {
		return false, err
	}
	return len(entries) > 0, nil
}

func finalizeOutDir(stageDir, outDir string) error {
	_ = os.RemoveAll(outDir)
	return os.Rename(stageDir, outDir)
}

func absClean(path string) string {
	if path == "" {
		return ""
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	return filepath.Clean(abs)
}
