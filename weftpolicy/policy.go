// Package weftpolicy loads, validates, and canonicalizes a WeftEndPolicy,
// computing its policyId from the canonical form.
package weftpolicy

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/weftend/weftend/canon"
)

// Profile is a closed tagged union of policy profiles.
type Profile string

const (
	ProfileWeb     Profile = "web"
	ProfileMod     Profile = "mod"
	ProfileGeneric Profile = "generic"
)

// Rule is a single allow/deny rule entry. The exact rule grammar is an
// implementation choice left open by the source excerpt; this shape
// (a class name plus an action) is sufficient to drive adapter
// maintenance-policy style decisions and is stable under canonical
// encoding.
type Rule struct {
	Class  string `json:"class"`
	Action string `json:"action"` // allow|deny
}

// DenyThresholds bounds shadow-audit per-family counters (§4.11).
type DenyThresholds map[string]int

// Policy is a canonicalized WeftEndPolicy.
type Policy struct {
	Profile        Profile        `json:"profile"`
	Rules          []Rule         `json:"rules"`
	DenyThresholds DenyThresholds `json:"denyThresholds,omitempty"`
}

// ErrPolicyInvalid is returned when a policy fails structural validation.
var ErrPolicyInvalid = fmt.Errorf("POLICY_INVALID")

// ErrPolicyMissing is returned when the policy file cannot be read.
var ErrPolicyMissing = fmt.Errorf("POLICY_MISSING")

// Load reads, parses, and validates a policy file, returning the
// canonicalized policy and its policyId.
func Load(path string) (*Policy, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrPolicyMissing, err)
	}
	var p Policy
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrPolicyInvalid, err)
	}
	if err := Validate(&p); err != nil {
		return nil, "", err
	}
	id, err := ID(&p)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrPolicyInvalid, err)
	}
	return &p, id, nil
}

// Validate checks structural invariants of a policy.
func Validate(p *Policy) error {
	switch p.Profile {
	case ProfileWeb, ProfileMod, ProfileGeneric:
	default:
		return fmt.Errorf("%w: unknown profile %q", ErrPolicyInvalid, p.Profile)
	}
	for _, r := range p.Rules {
		if r.Action != "allow" && r.Action != "deny" {
			return fmt.Errorf("%w: rule %q has unknown action %q", ErrPolicyInvalid, r.Class, r.Action)
		}
	}
	for family, threshold := range p.DenyThresholds {
		if threshold < 0 {
			return fmt.Errorf("%w: denyThresholds[%s] must be non-negative", ErrPolicyInvalid, family)
		}
	}
	return nil
}

// ID computes policyId = digest(canonical(policy)).
func ID(p *Policy) (string, error) {
	return canon.DigestValue(p)
}

// Default returns a conservative built-in policy used when no policy
// file is supplied, matching the "generic" profile with no special
// rules and no shadow-audit thresholds.
func Default() *Policy {
	return &Policy{Profile: ProfileGeneric}
}
