package saferun

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/weftend/weftend/canon"
	"github.com/weftend/weftend/classify"
	"github.com/weftend/weftend/compare"
	"github.com/weftend/weftend/library"
	"github.com/weftend/weftend/receipts"
	"github.com/weftend/weftend/summary"
)

const readmeTemplate = "weftend safe-run output\nbuild %s\nschema %s v%d\n\nThis directory is produced by weftend safe-run. Every file it lists\nunder subReceipts/receipts is content-addressed; see\nsafe_run_receipt.json and operator_receipt.json for the full evidence\nindex.\n"

// buildReceipt performs the 8-step receipt build sequence plus the
// post-write evidence self-verification pass.
func (r *runState) buildReceipt(ctx context.Context, cls classify.Result, outcome *branchOutcome) (*Result, error) {
	// 1. content summary
	obs := summary.Observations{
		BoundednessMarkers: outcome.ExecutionReasons,
		AdapterSignals:     outcome.AdapterSignals,
		SelectedPolicy:     string(r.policy.Profile),
		PolicyReasonCodes:  outcome.IntakeReasons,
		TargetKind:         string(outcome.InputKind),
	}
	contentSummary, err := summary.Build(r.capture, cls, obs, "", "")
	if err != nil {
		return nil, err
	}

	// 2. topReasonCode
	allReasons := append([]string{}, outcome.ExecutionReasons...)
	allReasons = append(allReasons, outcome.AdapterReasons...)
	allReasons = append(allReasons, outcome.IntakeReasons...)
	allReasons = append(allReasons, outcome.ClassifierReasons...)
	sortedReasons := canon.SortUnique(allReasons)
	var topReasonCode string
	if len(sortedReasons) > 0 {
		topReasonCode = sortedReasons[0]
	}

	safeRun := &receipts.SafeRunReceipt{
		Schema:               SchemaSafeRunReceipt,
		SchemaVersion:        r.cfg.SchemaVersion,
		WeftendBuild:         r.cfg.Build,
		InputKind:            outcome.InputKind,
		ArtifactKind:         cls.ArtifactKind,
		EntryHint:            cls.EntryHint,
		AnalysisVerdict:      outcome.AnalysisVerdict,
		ExecutionVerdict:     outcome.ExecutionVerdict,
		TopReasonCode:        topReasonCode,
		InputDigest:          outcome.InputDigest,
		PolicyID:             r.policyID,
		ReleaseID:            outcome.ReleaseID,
		ReleaseDirDigest:     outcome.ReleaseDirDigest,
		IntakeDecisionDigest: outcome.IntakeDecisionDigest,
		HostReceiptDigest:    outcome.HostReceiptDigest,
		HostSelfStatus:       outcome.HostSelfStatus,
		HostSelfReasonCodes:  outcome.HostSelfReasonCodes,
		Adapter:              outcome.Adapter,
		ContentSummary:       contentSummary,
		Execution:            receipts.ExecutionResult{Result: outcome.ExecutionVerdict, ReasonCodes: outcome.ExecutionReasons},
	}

	// 3. subReceipts (everything written by the branch step so far)
	safeRun.SubReceipts = r.sortedArtifacts()

	// 4. receiptDigest, write safe_run_receipt.json
	digest, err := receipts.RecomputeSafeRunDigest(safeRun)
	if err != nil {
		return nil, err
	}
	safeRun.ReceiptDigest = digest
	safeRunData, err := canon.Marshal(safeRun)
	if err != nil {
		return nil, err
	}
	safeRunPath := filepath.Join(r.stageDir, "safe_run_receipt.json")
	if err := os.WriteFile(safeRunPath, append(safeRunData, '\n'), 0o644); err != nil {
		return nil, err
	}

	// 5. README
	readme := fmt.Sprintf(readmeTemplate, r.cfg.Build.BuildDigest, SchemaSafeRunReceipt, r.cfg.SchemaVersion)
	readmeDigest, err := r.writeArtifact(filepath.Join("weftend", "README.txt"), []byte(readme))
	if err != nil {
		return nil, err
	}

	// 6. operator receipt entries + evidence self-verification warnings
	var entries []receipts.OperatorReceiptEntry
	entries = append(entries, receipts.OperatorReceiptEntry{Kind: "safeRunReceipt", RelPath: "safe_run_receipt.json", Digest: safeRun.ReceiptDigest})
	entries = append(entries, receipts.OperatorReceiptEntry{Kind: "readme", RelPath: "weftend/README.txt", Digest: readmeDigest})
	for _, a := range safeRun.SubReceipts {
		entries = append(entries, receipts.OperatorReceiptEntry{Kind: "artifact", RelPath: a.Name, Digest: a.Digest})
	}

	expected := map[string]string{
		"safe_run_receipt.json":  safeRun.ReceiptDigest,
		"weftend/README.txt":     readmeDigest,
	}
	for _, a := range safeRun.SubReceipts {
		expected[a.Name] = a.Digest
	}
	evidenceWarnings, err := verifyEvidence(r.stageDir, expected)
	if err != nil {
		return nil, err
	}
	if r.hadPreexisting {
		evidenceWarnings = append(evidenceWarnings, "SAFE_RUN_EVIDENCE_ORPHAN_OUTPUT")
	}

	warnings := append([]string(nil), sortedReasons...)
	warnings = append(warnings, evidenceWarnings...)
	warnings = canon.SortUnique(warnings)

	operator := &receipts.OperatorReceipt{
		Command:        "safe-run",
		WeftendBuild:   r.cfg.Build,
		SchemaVersion:  r.cfg.SchemaVersion,
		Receipts:       entries,
		Warnings:       warnings,
		ContentSummary: &contentSummary,
	}

	// 7. privacy lint
	privacyVerdict := receipts.PrivacyLintFail
	if report, err := r.cfg.PrivacyLinter.PrivacyLint(ctx, r.stageDir, r.cfg.Build.BuildDigest); err == nil && report.Verdict == "PASS" {
		privacyVerdict = receipts.PrivacyLintPass
	}
	if privacyVerdict == receipts.PrivacyLintFail {
		operator.Warnings = canon.SortUnique(append(operator.Warnings, "PRIVACY_LINT_FAILED"))
	}

	opDigest, err := receipts.RecomputeOperatorDigest(operator)
	if err != nil {
		return nil, err
	}
	operator.ReceiptDigest = opDigest
	operatorData, err := canon.Marshal(operator)
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(filepath.Join(r.stageDir, "operator_receipt.json"), append(operatorData, '\n'), 0o644); err != nil {
		return nil, err
	}

	exitCode := ExitSuccess
	if safeRun.AnalysisVerdict == receipts.AnalysisDeny {
		exitCode = ExitFailClosed
	}

	result := &Result{
		ExitCode:        exitCode,
		Receipt:         safeRun,
		OperatorReceipt: operator,
	}

	if privacyVerdict == receipts.PrivacyLintFail {
		result.ExitCode = ExitFailClosed
	}

	r.privacyVerdict = privacyVerdict
	return result, nil
}

// verifyEvidence implements §4.8: every EXPECTED file must exist with
// a matching digest, and every ACTUAL regular file must be expected.
func verifyEvidence(stageDir string, expected map[string]string) ([]string, error) {
	actual := map[string]bool{}
	err := filepath.WalkDir(stageDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(stageDir, path)
		if err != nil {
			return err
		}
		actual[filepath.ToSlash(rel)] = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	var warnings []string
	for name, wantDigest := range expected {
		if !actual[name] {
			warnings = append(warnings, "SAFE_RUN_EVIDENCE_MISSING")
			continue
		}
		if name == "safe_run_receipt.json" || name == "operator_receipt.json" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(stageDir, name))
		if err != nil {
			warnings = append(warnings, "SAFE_RUN_EVIDENCE_MISSING")
			continue
		}
		if canon.Digest(data) != wantDigest {
			warnings = append(warnings, "SAFE_RUN_EVIDENCE_DIGEST_MISMATCH")
		}
	}
	for name := range actual {
		if name == "operator_receipt.json" {
			continue
		}
		if _, ok := expected[name]; !ok {
			warnings = append(warnings, "SAFE_RUN_EVIDENCE_ORPHAN_OUTPUT")
		}
	}
	return canon.SortUnique(warnings), nil
}

// updateLibraryView runs §4.9's completion update when outDir is
// rooted under LibraryRoot/<targetKey>/run_XXXXXX.
func (r *runState) updateLibraryView(result *Result) {
	targetKey, runID, ok := LibraryRunInfo(r.cfg.LibraryRoot, r.cfg.OutDir)
	if !ok {
		return
	}

	loader := func(id string) (compare.Summary, error) {
		path := filepath.Join(r.cfg.LibraryRoot, targetKey, id, "safe_run_receipt.json")
		data, err := os.ReadFile(path)
		if err != nil {
			return compare.Summary{}, err
		}
		var rec receipts.SafeRunReceipt
		if err := json.Unmarshal(data, &rec); err != nil {
			return compare.Summary{}, err
		}
		return SummaryFromReceipt(&rec), nil
	}

	state, warnings, err := library.UpdateOnCompletion(library.CompletionInput{
		Root:                r.cfg.LibraryRoot,
		TargetKey:           targetKey,
		RunID:               runID,
		PrivacyVerdict:      r.privacyVerdict,
		HostSelfStatus:      result.Receipt.HostSelfStatus,
		HostSelfReasonCodes: result.Receipt.HostSelfReasonCodes,
		LoadSummary:         loader,
	})
	if err != nil {
		r.cfg.Collector.IncLibraryWriteFailure()
		result.LibraryWarnings = warnings
		return
	}
	r.cfg.Collector.IncLibraryWriteSuccess()
	result.LibraryState = state
	result.LibraryWarnings = warnings
}

// LibraryRunInfo reports whether outDir is exactly
// libraryRoot/<targetKey>/<runID> with runID prefixed "run_".
func LibraryRunInfo(libraryRoot, outDir string) (targetKey, runID string, ok bool) {
	if libraryRoot == "" {
		return "", "", false
	}
	rel, err := filepath.Rel(absClean(libraryRoot), absClean(outDir))
	if err != nil {
		return "", "", false
	}
	parts := strings.Split(filepath.ToSlash(rel), "/")
	if len(parts) != 2 || !strings.HasPrefix(parts[1], "run_") {
		return "", "", false
	}
	return parts[0], parts[1], true
}

// SummaryFromReceipt projects a persisted SafeRunReceipt into the
// normalized shape the compare engine diffs against.
func SummaryFromReceipt(r *receipts.SafeRunReceipt) compare.Summary {
	exitCode := ExitSuccess
	if r.AnalysisVerdict == receipts.AnalysisDeny {
		exitCode = ExitFailClosed
	}
	fileCounts := map[string]int{
		"html":   r.ContentSummary.FileCountsByKind.HTML,
		"js":     r.ContentSummary.FileCountsByKind.JS,
		"css":    r.ContentSummary.FileCountsByKind.CSS,
		"json":   r.ContentSummary.FileCountsByKind.JSON,
		"wasm":   r.ContentSummary.FileCountsByKind.WASM,
		"media":  r.ContentSummary.FileCountsByKind.Media,
		"binary": r.ContentSummary.FileCountsByKind.Binary,
		"other":  r.ContentSummary.FileCountsByKind.Other,
	}
	return compare.Summary{
		Result:             string(r.AnalysisVerdict),
		ExitCode:           exitCode,
		ReasonCodes:        append([]string{r.TopReasonCode}, r.Execution.ReasonCodes...),
		ArtifactDigest:     r.ContentSummary.HashFamily.SHA256,
		PolicyDigest:       r.PolicyID,
		ExternalRefCount:   r.ContentSummary.ExternalRefs.Count,
		UniqueDomainCount:  len(r.ContentSummary.ExternalRefs.TopDomains),
		TargetKind:         r.ContentSummary.TargetKind,
		ArtifactKind:       string(r.ArtifactKind),
		TotalFiles:         r.ContentSummary.TotalFiles,
		TotalBytesBounded:  r.ContentSummary.TotalBytesBounded,
		FileCountsByKind:   fileCounts,
		HasScripts:         r.ContentSummary.HasScripts,
		HasNativeBinaries:  r.ContentSummary.HasNativeBinaries,
		URLLikeCount:       r.ContentSummary.StringsIndicators.URLLikeCount,
		ArchiveDepthMax:    r.ContentSummary.ArchiveDepthMax,
		NestedArchiveCount: r.ContentSummary.NestedArchiveCount,
		BoundednessMarkers: r.ContentSummary.BoundednessMarkers,
		HostReleaseStatus:  string(r.HostSelfStatus),
		StrictVerify:       r.ArtifactKind == receipts.KindReleaseDir,
		StrictExecute:      r.ExecutionVerdict == receipts.ExecutionAllow,
	}
}
