// Package shadowaudit implements the proof-only reducer over a bounded
// event stream: it tallies sequence and capability anomalies and
// returns a DENY/WARN/OK verdict without ever echoing the raw events,
// stream, or request it was given.
package shadowaudit

import (
	"regexp"
	"sort"
	"strings"

	"github.com/weftend/weftend/canon"
	"github.com/weftend/weftend/receipts"
)

const (
	MaxEvents         = 512
	MaxEventKeys      = 32
	MaxStringBytes    = 64
	MaxReasonFamilies = 32
	MaxTartarusKinds  = 32
)

var (
	keyPattern   = regexp.MustCompile(`^[A-Za-z0-9._:-]{1,64}$`)
	valuePattern = regexp.MustCompile(`^[A-Za-z0-9._:-]{0,64}$`)
	domainLike   = regexp.MustCompile(`(?i)^[a-z0-9-]+(\.[a-z0-9-]+)+$`)
)

var forbiddenKeyAliases = map[string]bool{
	"userId":      true,
	"deviceId":    true,
	"timestampMs": true,
	"path":        true,
	"url":         true,
	"ip":          true,
	"email":       true,
	"hostname":    true,
}

var hostURLImplyingKeys = map[string]bool{
	"host":     true,
	"hostUrl":  true,
	"endpoint": true,
	"target":   true,
}

const (
	ReasonSchemaInvalid    = "SHADOW_AUDIT_SCHEMA_INVALID"
	ReasonBoundsExceeded   = "SHADOW_AUDIT_BOUNDS_EXCEEDED"
	ReasonPrivacyForbidden = "SHADOW_AUDIT_PRIVACY_FORBIDDEN"
)

// RawEvent is one unvalidated event as received: a flat bag of
// primitive-valued keys, a side ("expected"|"observed"), a numeric
// sequence number, and a kind.
type RawEvent map[string]any

// Request is the bounded input to Reduce. DenyThresholds maps a reason
// family name to the count above which that family forces a DENY
// verdict.
type Request struct {
	Schema         string
	Expected       []RawEvent
	Observed       []RawEvent
	DenyThresholds map[string]int
}

type validatedEvent struct {
	seq        int
	kind       string
	capID      string
	hasCapID   bool
	isRequest  bool
	isAllow    bool
	isDeny     bool
	evidenceOk bool
	reasons    []string
}

// Reduce validates and reduces req into a proof-only ShadowAuditResult.
// The same request yields a byte-identical canonical result regardless
// of the order of req.Expected/req.Observed, because every downstream
// tally is computed over a canonically sorted pair-partition.
func Reduce(req Request) receipts.ShadowAuditResult {
	var reasonFamilies []string
	addFamily := func(f string) { reasonFamilies = append(reasonFamilies, f) }

	total := len(req.Expected) + len(req.Observed)
	if total > MaxEvents {
		addFamily(ReasonBoundsExceeded)
	}

	expected, r1 := validateSide(req.Expected)
	observed, r2 := validateSide(req.Observed)
	reasonFamilies = append(reasonFamilies, r1...)
	reasonFamilies = append(reasonFamilies, r2...)

	seqCounts := reduceSequences(expected, observed)
	capCounts := reduceCapabilities(append(append([]validatedEvent{}, expected...), observed...))

	tartarusKindCounts := reduceKindCounts(expected, observed)

	for family, count := range tallyReasonFamilies(expected, observed) {
		if threshold, ok := req.DenyThresholds[family]; ok && count > threshold {
			addFamily(family)
		}
	}

	counts := map[string]int{
		"totalEvents":    total,
		"expectedEvents": len(req.Expected),
		"observedEvents": len(req.Observed),
		"validEvents":    len(expected) + len(observed),
	}

	reasonFamilies = canon.SortUnique(reasonFamilies)
	reasonFamilies = canon.TruncateSorted(reasonFamilies, MaxReasonFamilies)

	status := statusOf(reasonFamilies, seqCounts, capCounts)

	return receipts.ShadowAuditResult{
		Schema:             "weftend.shadow_audit.v1",
		V:                  1,
		Status:             status,
		ReasonFamilies:     reasonFamilies,
		TartarusKindCounts: tartarusKindCounts,
		Counts:             counts,
		SequenceCounts:     seqCounts,
		CapCounts:          capCounts,
	}
}

func statusOf(reasonFamilies []string, seq receipts.SequenceCounts, cap receipts.CapCounts) string {
	for _, f := range reasonFamilies {
		if f == ReasonSchemaInvalid || f == ReasonBoundsExceeded || f == ReasonPrivacyForbidden {
			return "DENY"
		}
	}
	if len(reasonFamilies) > 0 {
		return "DENY"
	}
	if seq.Missing > 0 || seq.Extra > 0 || seq.Reordered > 0 || seq.Duplicate > 0 {
		return "WARN"
	}
	if cap.AttemptedWithoutRequest > 0 || cap.AllowedWithoutEvidence > 0 || cap.Inconsistent > 0 {
		return "WARN"
	}
	return "OK"
}

// validateSide validates each raw event's keys and values against the
// shared contract, returning the events that pass (in their original
// order; callers that need determinism sort afterward) and any reason
// families raised by invalid events.
func validateSide(events []RawEvent) ([]validatedEvent, []string) {
	var out []validatedEvent
	var reasons []string

	for _, ev := range events {
		if len(ev) > MaxEventKeys {
			reasons = append(reasons, ReasonBoundsExceeded)
			continue
		}
		ok := true
		for k, v := range ev {
			if forbiddenKeyAliases[k] {
				reasons = append(reasons, ReasonPrivacyForbidden)
				ok = false
				continue
			}
			if !keyPattern.MatchString(k) {
				reasons = append(reasons, ReasonSchemaInvalid)
				ok = false
				continue
			}
			if !validValue(k, v) {
				reasons = append(reasons, ReasonSchemaInvalid)
				ok = false
			}
		}
		if !ok {
			continue
		}

		ve, valid := extractEvent(ev)
		if !valid {
			reasons = append(reasons, ReasonSchemaInvalid)
			continue
		}
		out = append(out, ve)
	}
	return out, reasons
}

func validValue(key string, v any) bool {
	switch t := v.(type) {
	case bool:
		return true
	case float64:
		return !(t != t) // NaN check; canon.Marshal rejects Inf/NaN downstream too
	case int:
		return true
	case string:
		return validString(key, t)
	case []any:
		for _, e := range t {
			s, ok := e.(string)
			if !ok || !validString(key, s) {
				return false
			}
		}
		return true
	case []string:
		for _, s := range t {
			if !validString(key, s) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

func validString(key, s string) bool {
	if len(s) > MaxStringBytes {
		return false
	}
	if strings.Contains(s, "://") || strings.HasPrefix(s, "/") {
		return false
	}
	if len(s) >= 2 && s[1] == ':' {
		return false // drive letter
	}
	if hostURLImplyingKeys[key] && domainLike.MatchString(s) {
		return false
	}
	if !valuePattern.MatchString(s) {
		return false
	}
	return true
}

func extractEvent(ev RawEvent) (validatedEvent, bool) {
	var ve validatedEvent
	seqRaw, ok := ev["seq"]
	if !ok {
		return ve, false
	}
	seq, ok := toInt(seqRaw)
	if !ok {
		return ve, false
	}
	kind, _ := ev["kind"].(string)
	if kind == "" {
		return ve, false
	}
	ve.seq = seq
	ve.kind = kind
	if capID, ok := ev["capId"].(string); ok && capID != "" {
		ve.capID = capID
		ve.hasCapID = true
	}
	switch kind {
	case "request":
		ve.isRequest = true
	case "allow":
		ve.isAllow = true
	case "deny":
		ve.isDeny = true
	}
	if eo, ok := ev["evidenceOk"].(bool); ok {
		ve.evidenceOk = eo
	}
	if rc, ok := ev["reasonCodes"].([]any); ok {
		for _, r := range rc {
			if s, ok := r.(string); ok {
				ve.reasons = append(ve.reasons, s)
			}
		}
	}
	if rc, ok := ev["reasonCodes"].([]string); ok {
		ve.reasons = append(ve.reasons, rc...)
	}
	return ve, true
}

func toInt(v any) (int, bool) {
	switch t := v.(type) {
	case int:
		return t, true
	case float64:
		return int(t), true
	default:
		return 0, false
	}
}

// reduceSequences computes the pair-partition tallies over the
// expected and observed sides, keyed by seq.
func reduceSequences(expected, observed []validatedEvent) receipts.SequenceCounts {
	expBySeq := groupBySeq(expected)
	obsBySeq := groupBySeq(observed)

	var out receipts.SequenceCounts
	for seq, kinds := range expBySeq {
		if len(kinds) > 1 {
			out.Duplicate += len(kinds) - 1
		}
		obsKinds, present := obsBySeq[seq]
		if !present {
			out.Missing++
			continue
		}
		if !sameKindSet(kinds, obsKinds) {
			out.Reordered++
		}
	}
	for seq, kinds := range obsBySeq {
		if len(kinds) > 1 {
			out.Duplicate += len(kinds) - 1
		}
		if _, present := expBySeq[seq]; !present {
			out.Extra++
		}
	}
	return out
}

func groupBySeq(events []validatedEvent) map[int][]string {
	out := make(map[int][]string)
	for _, ev := range events {
		out[ev.seq] = append(out[ev.seq], ev.kind)
	}
	for seq, kinds := range out {
		sort.Slice(kinds, func(i, j int) bool { return canon.Less(kinds[i], kinds[j]) })
		out[seq] = kinds
	}
	return out
}

func sameKindSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// reduceCapabilities tallies per-capId request/allow/deny anomalies
// over the combined event set.
func reduceCapabilities(events []validatedEvent) receipts.CapCounts {
	requested := make(map[string]bool)
	allowed := make(map[string]int)
	denied := make(map[string]int)
	allowedMissingEvidence := 0

	for _, ev := range events {
		if !ev.hasCapID {
			continue
		}
		switch {
		case ev.isRequest:
			requested[ev.capID] = true
		case ev.isAllow:
			allowed[ev.capID]++
			if !ev.evidenceOk {
				allowedMissingEvidence++
			}
		case ev.isDeny:
			denied[ev.capID]++
		}
	}

	var out receipts.CapCounts
	out.AllowedWithoutEvidence = allowedMissingEvidence

	seen := make(map[string]bool)
	for capID, n := range allowed {
		seen[capID] = true
		if !requested[capID] {
			out.AttemptedWithoutRequest += n
		}
	}
	for capID, n := range denied {
		seen[capID] = true
		if !requested[capID] {
			out.AttemptedWithoutRequest += n
		}
	}
	for capID := range seen {
		if allowed[capID] > 0 && denied[capID] > 0 {
			out.Inconsistent++
		}
	}
	return out
}

// reduceKindCounts tallies event kind occurrences, bounded to
// MaxTartarusKinds distinct kinds; kinds beyond the bound collapse
// into an "OTHER" overflow bucket so the map itself stays bounded.
func reduceKindCounts(expected, observed []validatedEvent) map[string]int {
	raw := make(map[string]int)
	for _, ev := range append(append([]validatedEvent{}, expected...), observed...) {
		raw[ev.kind]++
	}
	if len(raw) <= MaxTartarusKinds {
		return raw
	}
	kinds := make([]string, 0, len(raw))
	for k := range raw {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return canon.Less(kinds[i], kinds[j]) })

	out := make(map[string]int, MaxTartarusKinds+1)
	for _, k := range kinds[:MaxTartarusKinds-1] {
		out[k] = raw[k]
	}
	overflow := 0
	for _, k := range kinds[MaxTartarusKinds-1:] {
		overflow += raw[k]
	}
	out["OTHER"] = overflow
	return out
}

// tallyReasonFamilies counts occurrences of each distinct reasonCodes
// entry across both sides, used against policy deny thresholds.
func tallyReasonFamilies(expected, observed []validatedEvent) map[string]int {
	out := make(map[string]int)
	for _, ev := range append(append([]validatedEvent{}, expected...), observed...) {
		for _, r := range ev.reasons {
			out[r]++
		}
	}
	return out
}
