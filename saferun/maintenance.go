package saferun

import (
	"encoding/json"
	"os"

	"github.com/weftend/weftend/adapter"
)

// maintenancePolicy is the on-disk shape of an adapter maintenance
// policy file: the set of adapter classes temporarily disabled.
type maintenancePolicy struct {
	DisabledClasses []string `json:"disabledClasses"`
}

// disabledAdapterClasses merges the statically configured disabled
// classes with whatever the maintenance policy file (if any) names.
// An unreadable or malformed policy file reports ok=false so the
// caller can fail closed with ADAPTER_POLICY_INVALID.
func (r *runState) disabledAdapterClasses() (map[adapter.Class]bool, bool) {
	disabled := make(map[adapter.Class]bool, len(r.cfg.DisabledAdapterClasses))
	for _, c := range r.cfg.DisabledAdapterClasses {
		disabled[adapter.Class(c)] = true
	}
	if r.cfg.AdapterMaintenancePolicyPath == "" {
		return disabled, true
	}
	data, err := os.ReadFile(r.cfg.AdapterMaintenancePolicyPath)
	if err != nil {
		return nil, false
	}
	var policy maintenancePolicy
	if err := json.Unmarshal(data, &policy); err != nil {
		return nil, false
	}
	for _, c := range policy.DisabledClasses {
		disabled[adapter.Class(c)] = true
	}
	return disabled, true
}
