// Package library maintains the per-target view-state that tracks safe-run
// history: baseline/latest/blocked pointers and a bounded recent-run
// window, all updated atomically via the stage-then-rename pattern used
// throughout this module.
package library

import (
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/weftend/weftend/canon"
	"github.com/weftend/weftend/compare"
	"github.com/weftend/weftend/receipts"
)

const maxLastN = 8
const maxBlockedReasons = 8
const maxTargetKeyBytes = 120

var sanitizePattern = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// SanitizeTargetKey collapses any run of characters outside
// [A-Za-z0-9._-] to a single underscore, trims leading/trailing
// underscores, and bounds the result to 120 bytes.
func SanitizeTargetKey(raw string) string {
	s := sanitizePattern.ReplaceAllString(raw, "_")
	s = strings.Trim(s, "_")
	if len(s) > maxTargetKeyBytes {
		s = s[:maxTargetKeyBytes]
	}
	return s
}

// Paths locates the on-disk layout for one target within a library root.
type Paths struct {
	TargetDir string
	ViewDir   string
	Baseline  string
	Latest    string
	Blocked   string
	StateFile string
}

// TargetPaths returns the fixed layout for targetKey under root.
func TargetPaths(root, targetKey string) Paths {
	targetDir := filepath.Join(root, targetKey)
	viewDir := filepath.Join(targetDir, "view")
	return Paths{
		TargetDir: targetDir,
		ViewDir:   viewDir,
		Baseline:  filepath.Join(viewDir, "baseline.txt"),
		Latest:    filepath.Join(viewDir, "latest.txt"),
		Blocked:   filepath.Join(viewDir, "blocked.txt"),
		StateFile: filepath.Join(viewDir, "view_state.json"),
	}
}

// RunSummaryLoader loads a run's normalized summary for comparison
// against the baseline; the orchestrator supplies this, since only it
// knows where a given runId's receipt artifacts live.
type RunSummaryLoader func(runID string) (compare.Summary, error)

// CompletionInput carries everything needed to update a target's view
// after one safe-run completion.
type CompletionInput struct {
	Root                string
	TargetKey           string
	RunID               string
	PrivacyVerdict      receipts.PrivacyLintVerdict
	HostSelfStatus      receipts.HostSelfStatus
	HostSelfReasonCodes []string
	LoadSummary         RunSummaryLoader
}

// UpdateOnCompletion performs the full §4.9 update sequence for one
// safe-run completion. Failures here are non-fatal to the caller; they
// are surfaced as LIBRARY_* reason codes for the operator receipt's
// warnings list and never change the safe-run analysis verdict.
func UpdateOnCompletion(in CompletionInput) (*receipts.LibraryViewState, []string, error) {
	paths := TargetPaths(in.Root, in.TargetKey)
	if err := os.MkdirAll(paths.ViewDir, 0o755); err != nil {
		return nil, []string{"LIBRARY_VIEWSTATE_WRITE_FAILED"}, err
	}

	runIDs, err := listSiblingRuns(in.Root, in.TargetKey)
	if err != nil {
		return nil, []string{"LIBRARY_VIEWSTATE_WRITE_FAILED"}, err
	}

	var warnings []string

	baseline := readPointer(paths.Baseline)
	if baseline != "" && !contains(runIDs, baseline) {
		if len(runIDs) > 0 {
			baseline = runIDs[0]
		} else {
			baseline = ""
		}
	}
	if baseline == "" && len(runIDs) > 0 {
		baseline = runIDs[0]
	}
	if err := writeAtomic(paths.Baseline, []byte(baseline+"\n")); err != nil {
		warnings = append(warnings, "LIBRARY_BASELINE_WRITE_FAILED")
	}

	if err := writeAtomic(paths.Latest, []byte(in.RunID+"\n")); err != nil {
		warnings = append(warnings, "LIBRARY_LATEST_WRITE_FAILED")
	}

	existingBlocked := readBlocked(paths.Blocked)
	if existingBlocked == nil {
		var reasons []string
		if in.PrivacyVerdict == receipts.PrivacyLintFail {
			reasons = append(reasons, "PRIVACY_LINT_FAILED")
		}
		if in.HostSelfStatus == receipts.HostSelfUnverified || in.HostSelfStatus == receipts.HostSelfMissing {
			reasons = append(reasons, "HOST_SELF_STATUS_"+string(in.HostSelfStatus))
		}
		reasons = append(reasons, in.HostSelfReasonCodes...)
		reasons = canon.SortUnique(reasons)
		reasons = canon.TruncateSorted(reasons, maxBlockedReasons)
		if len(reasons) > 0 {
			blockedLine := in.RunID + " " + strings.Join(reasons, ",")
			if err := writeAtomic(paths.Blocked, []byte(blockedLine+"\n")); err != nil {
				warnings = append(warnings, "LIBRARY_VIEWSTATE_WRITE_FAILED")
			}
			existingBlocked = &receipts.Blocked{RunID: in.RunID, ReasonCodes: reasons}
		}
	}

	priorLastN := readLastN(paths.StateFile)
	lastN := appendBounded(filterExisting(priorLastN, runIDs), in.RunID, maxLastN)

	var keys []receipts.LibraryViewKey
	if in.LoadSummary != nil && baseline != "" {
		baselineSummary, err := in.LoadSummary(baseline)
		if err == nil {
			for _, runID := range lastN {
				runSummary, err := in.LoadSummary(runID)
				if err != nil {
					continue
				}
				cmp, cmpErr := compare.Compare(baselineSummary, runSummary)
				if cmpErr != nil {
					continue
				}
				keys = append(keys, receipts.LibraryViewKey{
					VerdictVsBaseline: cmp.Verdict,
					Buckets:           cmp.ChangeBuckets,
					ArtifactDigest:    runSummary.ArtifactDigest,
					Result:            runSummary.Result,
				})
			}
		}
	}

	state := &receipts.LibraryViewState{
		SchemaVersion: 0,
		TargetKey:     in.TargetKey,
		BaselineRunID: baseline,
		LatestRunID:   in.RunID,
		Blocked:       existingBlocked,
		LastN:         lastN,
		Keys:          keys,
	}

	data, err := canon.Marshal(state)
	if err != nil {
		return nil, append(warnings, "LIBRARY_VIEWSTATE_WRITE_FAILED"), err
	}
	if err := writeAtomic(paths.StateFile, append(data, '\n')); err != nil {
		warnings = append(warnings, "LIBRARY_VIEWSTATE_WRITE_FAILED")
	}

	return state, warnings, nil
}

// AcceptBaseline points baseline.txt at latest.txt and clears blocked.txt.
func AcceptBaseline(root, targetKey string) error {
	paths := TargetPaths(root, targetKey)
	latest := readPointer(paths.Latest)
	if latest == "" {
		return os.ErrNotExist
	}
	if err := writeAtomic(paths.Baseline, []byte(latest+"\n")); err != nil {
		return err
	}
	_ = os.Remove(paths.Blocked)
	return rebuildViewState(paths, targetKey)
}

// RejectBaseline writes a blocked record naming the latest run.
func RejectBaseline(root, targetKey string) error {
	paths := TargetPaths(root, targetKey)
	latest := readPointer(paths.Latest)
	if latest == "" {
		return os.ErrNotExist
	}
	line := latest + " OPERATOR_REJECT_BASELINE"
	if err := writeAtomic(paths.Blocked, []byte(line+"\n")); err != nil {
		return err
	}
	return rebuildViewState(paths, targetKey)
}

func rebuildViewState(paths Paths, targetKey string) error {
	state := &receipts.LibraryViewState{
		SchemaVersion: 0,
		TargetKey:     targetKey,
		BaselineRunID: readPointer(paths.Baseline),
		LatestRunID:   readPointer(paths.Latest),
		Blocked:       readBlocked(paths.Blocked),
		LastN:         readLastN(paths.StateFile),
	}
	data, err := canon.Marshal(state)
	if err != nil {
		return err
	}
	return writeAtomic(paths.StateFile, append(data, '\n'))
}

// ListTargets returns every target key with a view directory under
// root, sorted for stable CLI output.
func ListTargets(root string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var keys []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if _, err := os.Stat(filepath.Join(root, e.Name(), "view", "view_state.json")); err != nil {
			continue
		}
		keys = append(keys, e.Name())
	}
	sort.Slice(keys, func(i, j int) bool { return canon.Less(keys[i], keys[j]) })
	return keys, nil
}

// LoadViewState reads and parses a target's current view_state.json.
func LoadViewState(root, targetKey string) (*receipts.LibraryViewState, error) {
	paths := TargetPaths(root, targetKey)
	data, err := os.ReadFile(paths.StateFile)
	if err != nil {
		return nil, err
	}
	var state receipts.LibraryViewState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, err
	}
	return &state, nil
}

func listSiblingRuns(root, targetKey string) ([]string, error) {
	targetDir := filepath.Join(root, targetKey)
	entries, err := os.ReadDir(targetDir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var runs []string
	for _, e := range entries {
		if e.IsDir() && strings.HasPrefix(e.Name(), "run_") {
			runs = append(runs, e.Name())
		}
	}
	sort.Slice(runs, func(i, j int) bool { return canon.Less(runs[i], runs[j]) })
	return runs, nil
}

func readPointer(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

func readBlocked(path string) *receipts.Blocked {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	line := strings.TrimSpace(string(data))
	parts := strings.SplitN(line, " ", 2)
	if len(parts) != 2 {
		return nil
	}
	return &receipts.Blocked{RunID: parts[0], ReasonCodes: strings.Split(parts[1], ",")}
}

func readLastN(stateFile string) []string {
	data, err := os.ReadFile(stateFile)
	if err != nil {
		return nil
	}
	var state receipts.LibraryViewState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil
	}
	return state.LastN
}

func contains(xs []string, x string) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}

func filterExisting(prior, existing []string) []string {
	var out []string
	for _, p := range prior {
		if contains(existing, p) {
			out = append(out, p)
		}
	}
	return out
}

func appendBounded(xs []string, add string, max int) []string {
	out := append(append([]string(nil), xs...), add)
	if len(out) > max {
		out = out[len(out)-max:]
	}
	return out
}

func writeAtomic(path string, data []byte) error {
	stage := path + ".stage"
	if err := os.WriteFile(stage, data, 0o644); err != nil {
		return err
	}
	return os.Rename(stage, path)
}
