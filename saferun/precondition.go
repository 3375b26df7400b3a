package saferun

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/weftend/weftend/receipts"
)

// checkPreconditions validates everything that must hold before any
// stage directory is created. Returns the full set of violated reason
// codes (not just the first) so a caller sees every problem at once.
func (o *Orchestrator) checkPreconditions() []string {
	var issues []string

	switch _, err := os.Lstat(o.cfg.InputPath); {
	case os.IsNotExist(err):
		issues = append(issues, "INPUT_MISSING")
	case err != nil:
		issues = append(issues, "INPUT_INVALID")
	}

	if reasonCode, ok := checkNormalizedArtifact(o.cfg.InputPath); !ok {
		issues = append(issues, reasonCode)
	}

	if pathsOverlap(o.cfg.OutDir, o.cfg.InputPath) {
		issues = append(issues, "SAFE_RUN_OUT_CONFLICTS_INPUT")
	}
	if pathsOverlap(o.cfg.OutDir, o.cfg.PolicyPath) {
		issues = append(issues, "SAFE_RUN_OUT_CONFLICTS_POLICY")
	}
	if pathsOverlap(o.cfg.OutDir, o.cfg.ScriptPath) {
		issues = append(issues, "SAFE_RUN_OUT_CONFLICTS_SCRIPT")
	}
	if pathsOverlap(o.cfg.OutDir, o.cfg.AdapterMaintenancePolicyPath) {
		issues = append(issues, "SAFE_RUN_OUT_CONFLICTS_ADAPTER_POLICY_FILE")
	}

	if o.cfg.ExecuteRequested && o.cfg.WithholdExec {
		issues = append(issues, "INPUT_INVALID")
	}

	return issues
}

// checkNormalizedArtifact validates a pre-materialized normalized
// artifact directory (leaf name "email_export", case-insensitive).
// Returns (reasonCode, false) on failure; ("", true) when the input is
// not such a directory at all, or is one and validates cleanly.
func checkNormalizedArtifact(inputPath string) (string, bool) {
	leaf := strings.ToLower(filepath.Base(filepath.Clean(inputPath)))
	if leaf != "email_export" {
		return "", true
	}
	info, err := os.Stat(inputPath)
	if err != nil || !info.IsDir() {
		return "ADAPTER_NORMALIZATION_INVALID", false
	}
	manifestPath := filepath.Join(inputPath, "adapter_manifest.json")
	data, err := os.ReadFile(manifestPath)
	if err != nil {
		return "ADAPTER_NORMALIZATION_INVALID", false
	}
	var manifest receipts.AdapterManifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return "ADAPTER_NORMALIZATION_INVALID", false
	}
	for _, f := range manifest.RequiredFiles {
		if _, err := os.Stat(filepath.Join(inputPath, f)); err != nil {
			return "ADAPTER_NORMALIZATION_INVALID", false
		}
	}
	return "", true
}

// pathsOverlap reports whether two paths name the same location or one
// is an ancestor of the other, after absolute normalization. An empty
// path never overlaps (the corresponding input is simply unset).
func pathsOverlap(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	aa, bb := absClean(a), absClean(b)
	if aa == bb {
		return true
	}
	return strings.HasPrefix(bb, aa+string(filepath.Separator)) ||
		strings.HasPrefix(aa, bb+string(filepath.Separator))
}
