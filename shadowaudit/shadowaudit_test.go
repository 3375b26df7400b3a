package shadowaudit

import "testing"

func TestReduce_CleanStreamIsOK(t *testing.T) {
	req := Request{
		Expected: []RawEvent{
			{"seq": 1, "kind": "request", "capId": "net.egress"},
			{"seq": 2, "kind": "allow", "capId": "net.egress", "evidenceOk": true},
		},
		Observed: []RawEvent{
			{"seq": 1, "kind": "request", "capId": "net.egress"},
			{"seq": 2, "kind": "allow", "capId": "net.egress", "evidenceOk": true},
		},
	}
	res := Reduce(req)
	if res.Status != "OK" {
		t.Errorf("status = %q, want OK", res.Status)
	}
	if len(res.ReasonFamilies) != 0 {
		t.Errorf("reasonFamilies = %v, want empty", res.ReasonFamilies)
	}
}

func TestReduce_ForbiddenKeyDenies(t *testing.T) {
	req := Request{
		Observed: []RawEvent{
			{"seq": 1, "kind": "request", "userId": "u-123"},
		},
	}
	res := Reduce(req)
	if res.Status != "DENY" {
		t.Errorf("status = %q, want DENY", res.Status)
	}
	found := false
	for _, f := range res.ReasonFamilies {
		if f == ReasonPrivacyForbidden {
			found = true
		}
	}
	if !found {
		t.Errorf("reasonFamilies = %v, want %s", res.ReasonFamilies, ReasonPrivacyForbidden)
	}
}

func TestReduce_MissingSeqIsCountedMissing(t *testing.T) {
	req := Request{
		Expected: []RawEvent{
			{"seq": 1, "kind": "request"},
			{"seq": 2, "kind": "allow"},
		},
		Observed: []RawEvent{
			{"seq": 1, "kind": "request"},
		},
	}
	res := Reduce(req)
	if res.SequenceCounts.Missing != 1 {
		t.Errorf("missing = %d, want 1", res.SequenceCounts.Missing)
	}
	if res.Status != "WARN" {
		t.Errorf("status = %q, want WARN", res.Status)
	}
}

func TestReduce_ExtraSeqIsCounted(t *testing.T) {
	req := Request{
		Expected: []RawEvent{
			{"seq": 1, "kind": "request"},
		},
		Observed: []RawEvent{
			{"seq": 1, "kind": "request"},
			{"seq": 2, "kind": "allow"},
		},
	}
	res := Reduce(req)
	if res.SequenceCounts.Extra != 1 {
		t.Errorf("extra = %d, want 1", res.SequenceCounts.Extra)
	}
}

func TestReduce_ReorderedWhenKindSetsDiffer(t *testing.T) {
	req := Request{
		Expected: []RawEvent{
			{"seq": 1, "kind": "request"},
		},
		Observed: []RawEvent{
			{"seq": 1, "kind": "allow"},
		},
	}
	res := Reduce(req)
	if res.SequenceCounts.Reordered != 1 {
		t.Errorf("reordered = %d, want 1", res.SequenceCounts.Reordered)
	}
}

func TestReduce_DuplicateSeqCounted(t *testing.T) {
	req := Request{
		Observed: []RawEvent{
			{"seq": 1, "kind": "request"},
			{"seq": 1, "kind": "request"},
		},
	}
	res := Reduce(req)
	if res.SequenceCounts.Duplicate != 1 {
		t.Errorf("duplicate = %d, want 1", res.SequenceCounts.Duplicate)
	}
}

func TestReduce_AttemptedWithoutRequest(t *testing.T) {
	req := Request{
		Observed: []RawEvent{
			{"seq": 1, "kind": "allow", "capId": "net.egress", "evidenceOk": true},
		},
	}
	res := Reduce(req)
	if res.CapCounts.AttemptedWithoutRequest != 1 {
		t.Errorf("attemptedWithoutRequest = %d, want 1", res.CapCounts.AttemptedWithoutRequest)
	}
}

func TestReduce_AllowedWithoutEvidence(t *testing.T) {
	req := Request{
		Observed: []RawEvent{
			{"seq": 1, "kind": "request", "capId": "net.egress"},
			{"seq": 2, "kind": "allow", "capId": "net.egress"},
		},
	}
	res := Reduce(req)
	if res.CapCounts.AllowedWithoutEvidence != 1 {
		t.Errorf("allowedWithoutEvidence = %d, want 1", res.CapCounts.AllowedWithoutEvidence)
	}
}

func TestReduce_InconsistentCapability(t *testing.T) {
	req := Request{
		Observed: []RawEvent{
			{"seq": 1, "kind": "request", "capId": "net.egress"},
			{"seq": 2, "kind": "allow", "capId": "net.egress", "evidenceOk": true},
			{"seq": 3, "kind": "deny", "capId": "net.egress"},
		},
	}
	res := Reduce(req)
	if res.CapCounts.Inconsistent != 1 {
		t.Errorf("inconsistent = %d, want 1", res.CapCounts.Inconsistent)
	}
}

func TestReduce_DenyThresholdExceeded(t *testing.T) {
	req := Request{
		Observed: []RawEvent{
			{"seq": 1, "kind": "request", "reasonCodes": []any{"note.retry"}},
			{"seq": 2, "kind": "request", "reasonCodes": []any{"note.retry"}},
		},
		DenyThresholds: map[string]int{"note.retry": 1},
	}
	res := Reduce(req)
	if res.Status != "DENY" {
		t.Errorf("status = %q, want DENY", res.Status)
	}
}

func TestReduce_NeverEchoesRawEvents(t *testing.T) {
	req := Request{
		Observed: []RawEvent{
			{"seq": 1, "kind": "request", "capId": "net.egress"},
		},
	}
	res := Reduce(req)
	_ = res // ShadowAuditResult has no events/stream/request field by construction.
}

func TestReduce_ShuffleInvariant(t *testing.T) {
	a := Request{
		Observed: []RawEvent{
			{"seq": 1, "kind": "request", "capId": "a"},
			{"seq": 2, "kind": "allow", "capId": "a", "evidenceOk": true},
			{"seq": 3, "kind": "request", "capId": "b"},
		},
	}
	b := Request{
		Observed: []RawEvent{
			{"seq": 3, "kind": "request", "capId": "b"},
			{"seq": 1, "kind": "request", "capId": "a"},
			{"seq": 2, "kind": "allow", "capId": "a", "evidenceOk": true},
		},
	}
	r1 := Reduce(a)
	r2 := Reduce(b)
	if r1.Status != r2.Status || r1.SequenceCounts != r2.SequenceCounts || r1.CapCounts != r2.CapCounts {
		t.Errorf("shuffle changed result: %+v vs %+v", r1, r2)
	}
}
