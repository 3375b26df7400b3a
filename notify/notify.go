// Package notify defines the best-effort post-finalize notification boundary.
//
// Notifiers are told about a safe-run completion after its receipt has
// already been written and finalized. A notifier failure never changes a
// receipt or its verdict; it is fire-and-forget, mirroring the openExternal
// contract for the library view.
package notify

import (
	"context"
	"time"
)

// Event is the payload delivered to a Notifier after a safe-run finalizes.
type Event struct {
	RunID          string `json:"run_id"`
	TargetKey      string `json:"target_key,omitempty"`
	AnalysisVerdict string `json:"analysis_verdict"`
	ExecutionVerdict string `json:"execution_verdict"`
	ReceiptDigest  string `json:"receipt_digest"`
	FinalizedAt    string `json:"finalized_at"` // RFC3339
}

// Notifier delivers a finalize event to a downstream system.
// Implementations must be safe for single-use per event and must respect
// context cancellation and deadlines.
type Notifier interface {
	Notify(ctx context.Context, event *Event) error
	Close() error
}

// Multi fans one event out to several notifiers, collecting but never
// propagating individual failures as fatal — the caller may still inspect
// the returned slice for logging.
type Multi struct {
	Notifiers []Notifier
}

// NotifyAll calls every notifier's Notify, best-effort, and returns the
// per-notifier errors in the same order (nil entries on success).
func (m *Multi) NotifyAll(ctx context.Context, event *Event) []error {
	errs := make([]error, len(m.Notifiers))
	for i, n := range m.Notifiers {
		errs[i] = n.Notify(ctx, event)
	}
	return errs
}

// Close closes every notifier, best-effort.
func (m *Multi) Close() error {
	var first error
	for _, n := range m.Notifiers {
		if err := n.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// NowRFC3339 formats the current time per the FinalizedAt convention.
func NowRFC3339() string {
	return time.Now().UTC().Format(time.RFC3339)
}
