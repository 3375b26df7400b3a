package saferun

import (
	"context"
	"path/filepath"

	"github.com/weftend/weftend/adapter"
	"github.com/weftend/weftend/canon"
	"github.com/weftend/weftend/classify"
	"github.com/weftend/weftend/external"
	"github.com/weftend/weftend/receipts"
)

// rawBranch handles every classifier output other than RELEASE_DIR: it
// examines the artifact, builds an intake decision, routes it through
// the adapter registry, and writes the analysis artifact set.
func (r *runState) rawBranch(ctx context.Context, cls classify.Result) (*branchOutcome, error) {
	out := &branchOutcome{InputKind: receipts.InputRaw}

	mintOpts := external.MintOptions{Profile: r.cfg.Profile, ScriptText: r.scriptText}
	mintResult, err := r.cfg.MintExaminer.ExamineArtifact(ctx, r.cfg.InputPath, mintOpts)
	if err != nil {
		out.AnalysisVerdict = receipts.AnalysisWithheld
		out.ClassifierReasons = append(cls.ReasonCodes, "BOUND_MINT_EXAMINATION_FAILED")
		out.ExecutionVerdict = receipts.ExecutionNotAttempted
		out.ExecutionReasons = []string{"ANALYSIS_ONLY_NO_EXECUTION_LANE"}
		return out, nil
	}

	if err := r.writeMintArtifacts(mintResult); err != nil {
		return nil, err
	}

	intake, err := r.cfg.IntakeBuilder.BuildIntakeDecision(ctx, mintResult.Mint, r.policy, mintOpts)
	if err != nil {
		intake = external.IntakeDecision{Allow: false, ReasonCodes: []string{"INTAKE_DECISION_BUILDER_FAILED"}}
	}
	intakeDigest, err := r.writeIntakeArtifacts(intake)
	if err != nil {
		return nil, err
	}
	out.IntakeDecisionDigest = intakeDigest
	out.IntakeReasons = intake.ReasonCodes

	adapterResult, attempted, adapterClass := r.routeAdapter(cls)
	out.ClassifierReasons = cls.ReasonCodes

	if attempted {
		out.Adapter = adapterResult.Adapter
		out.AdapterSignals = adapterResult.AdapterSignals
		out.AdapterReasons = adapterResult.ReasonCodes

		if err := r.writeCapabilityLedger(mintResult, adapterResult); err != nil {
			return nil, err
		}

		if !adapterResult.Ok {
			r.cfg.Collector.IncAdapterFitFailure()
			r.logger.Warn("adapter validation failed", map[string]any{"class": adapterClass, "failCode": adapterResult.FailCode})
			out.AnalysisVerdict = receipts.AnalysisDeny
			out.ExecutionVerdict = receipts.ExecutionNotAttempted
			out.ExecutionReasons = []string{"ANALYSIS_ONLY_NO_EXECUTION_LANE"}
			out.AdapterReasons = append([]string{adapterResult.FailCode}, adapterResult.ReasonCodes...)
			return out, nil
		}

		r.cfg.Collector.IncAdapterFit(adapterClass)

		if err := r.writeAdapterArtifacts(adapterResult); err != nil {
			return nil, err
		}
	} else {
		if err := r.writeCapabilityLedger(mintResult, nil); err != nil {
			return nil, err
		}
	}

	if intake.Allow {
		out.AnalysisVerdict = receipts.AnalysisAllow
	} else {
		out.AnalysisVerdict = receipts.AnalysisWithheld
	}

	out.ExecutionVerdict, out.ExecutionReasons = gateExecution(gateInputs{
		withholdExec:     r.cfg.WithholdExec,
		executeRequested: r.cfg.ExecuteRequested,
		intakeAllowed:    intake.Allow,
		artifactKind:     cls.ArtifactKind,
	})

	if out.ExecutionVerdict == receipts.ExecutionAllow {
		if err := r.executeRelease(ctx, cls, out); err != nil {
			return nil, err
		}
	}

	return out, nil
}

// routeAdapter applies the adapter selection semantics: "none" skips
// routing entirely (unless plugins were requested, which is always a
// fail-closed mismatch), "auto" picks the first fitting adapter in
// fixed registry order, and an explicit class name invokes that
// class's adapter directly, bypassing its own Fitness check, since the
// operator asked for it explicitly.
func (r *runState) routeAdapter(cls classify.Result) (receipts.AdapterResult, bool, string) {
	cap := r.capture
	path := r.cfg.InputPath

	disabled, ok := r.disabledAdapterClasses()
	if !ok {
		return receipts.AdapterResult{
			Ok:          false,
			FailCode:    adapter.ReasonPolicyInvalid,
			FailMessage: "adapter maintenance policy file is unreadable or malformed",
			ReasonCodes: []string{adapter.ReasonPolicyInvalid},
		}, true, ""
	}

	switch r.cfg.AdapterSelection {
	case "", string(adapter.SelectionNone):
		if len(r.cfg.EnabledPlugins) > 0 {
			if name, ok := adapter.UnknownPlugin(r.cfg.EnabledPlugins); ok {
				return receipts.AdapterResult{
					Ok:          false,
					FailCode:    adapter.ReasonPluginUnknown,
					FailMessage: "unknown plugin enabled: " + name,
					ReasonCodes: []string{adapter.ReasonPluginUnknown},
				}, true, ""
			}
			return receipts.AdapterResult{
				Ok:          false,
				FailCode:    adapter.ReasonPluginUnused,
				FailMessage: "plugins were enabled but adapter selection is none",
				ReasonCodes: []string{adapter.ReasonPluginUnused},
			}, true, ""
		}
		return receipts.AdapterResult{}, false, ""

	case string(adapter.SelectionAuto):
		for _, a := range r.registry.All() {
			if disabled[a.Class()] {
				continue
			}
			if a.Fitness(path, cap) {
				return a.Validate(path, cap, r.cfg.EnabledPlugins), true, string(a.Class())
			}
		}
		if len(r.cfg.EnabledPlugins) > 0 {
			if name, ok := adapter.UnknownPlugin(r.cfg.EnabledPlugins); ok {
				return receipts.AdapterResult{
					Ok:          false,
					FailCode:    adapter.ReasonPluginUnknown,
					FailMessage: "unknown plugin enabled: " + name,
					ReasonCodes: []string{adapter.ReasonPluginUnknown},
				}, true, ""
			}
			return receipts.AdapterResult{
				Ok:          false,
				FailCode:    adapter.ReasonPluginUnused,
				FailMessage: "plugins were enabled but no adapter matched",
				ReasonCodes: []string{adapter.ReasonPluginUnused},
			}, true, ""
		}
		return receipts.AdapterResult{}, false, ""

	default:
		selectedClass := adapter.Class(r.cfg.AdapterSelection)
		if disabled[selectedClass] {
			return receipts.AdapterResult{
				Ok:          false,
				FailCode:    adapter.ReasonTemporarilyUnavailable,
				FailMessage: "adapter class is temporarily disabled by maintenance policy",
				ReasonCodes: []string{adapter.ReasonTemporarilyUnavailable},
			}, true, r.cfg.AdapterSelection
		}
		candidates := r.registry.ByClass(selectedClass)
		if len(candidates) == 0 {
			return receipts.AdapterResult{
				Ok:          false,
				FailCode:    adapter.ReasonPolicyInvalid,
				FailMessage: "unknown adapter class: " + r.cfg.AdapterSelection,
				ReasonCodes: []string{adapter.ReasonPolicyInvalid},
			}, true, r.cfg.AdapterSelection
		}
		return candidates[0].Validate(path, cap, r.cfg.EnabledPlugins), true, r.cfg.AdapterSelection
	}
}

func (r *runState) writeMintArtifacts(mint external.MintResult) error {
	data, err := canon.Marshal(mint.Mint)
	if err != nil {
		return err
	}
	if _, err := r.writeArtifact(filepath.Join("analysis", "weftend_mint_v1.json"), data); err != nil {
		return err
	}
	report := mint.Report
	if report == "" {
		report = mint.Mint.ReportText
	}
	if _, err := r.writeArtifact(filepath.Join("analysis", "weftend_mint_v1.txt"), []byte(report+"\n")); err != nil {
		return err
	}
	return nil
}

func (r *runState) writeIntakeArtifacts(intake external.IntakeDecision) (string, error) {
	data, err := canon.Marshal(intake)
	if err != nil {
		return "", err
	}
	digest, err := r.writeArtifact(filepath.Join("analysis", "intake_decision.json"), data)
	if err != nil {
		return "", err
	}
	if _, err := r.writeArtifact(filepath.Join("analysis", "disclosure.txt"), []byte(intake.Disclosure+"\n")); err != nil {
		return "", err
	}
	appeal := map[string]string{"appeal": intake.Appeal}
	appealData, err := canon.Marshal(appeal)
	if err != nil {
		return "", err
	}
	if _, err := r.writeArtifact(filepath.Join("analysis", "appeal_bundle.json"), appealData); err != nil {
		return "", err
	}
	return digest, nil
}

func (r *runState) writeCapabilityLedger(mint external.MintResult, adapterResult *receipts.AdapterResult) error {
	ledger := map[string]any{
		"capabilityMentions": canon.SortUnique(mint.Mint.CapabilityMentions),
	}
	if adapterResult != nil {
		ledger["adapterFindings"] = adapterResult.Findings
	}
	data, err := canon.Marshal(ledger)
	if err != nil {
		return err
	}
	_, err = r.writeArtifact(filepath.Join("analysis", "capability_ledger_v0.json"), data)
	return err
}

func (r *runState) writeAdapterArtifacts(result receipts.AdapterResult) error {
	if result.Summary != nil {
		data, err := canon.Marshal(result.Summary)
		if err != nil {
			return err
		}
		if _, err := r.writeArtifact(filepath.Join("analysis", "adapter_summary_v0.json"), data); err != nil {
			return err
		}
	}
	if len(result.Findings) > 0 {
		data, err := canon.Marshal(map[string]any{"findings": result.Findings})
		if err != nil {
			return err
		}
		if _, err := r.writeArtifact(filepath.Join("analysis", "adapter_findings_v0.json"), data); err != nil {
			return err
		}
	}
	return nil
}
