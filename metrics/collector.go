// Package metrics provides per-run metrics collection for safe-run
// invocations. The Collector accumulates counters during a single run.
// It is a leaf package with no internal dependencies.
package metrics

import "sync"

// Snapshot is an immutable point-in-time view of a run's counters.
// Returned by Collector.Snapshot(). Safe to read concurrently after
// creation.
type Snapshot struct {
	// Run lifecycle
	RunsStarted   int64
	RunsCompleted int64
	RunsDenied    int64
	RunsFailed    int64
	RunsCrashed   int64

	// Capture / bounds
	CaptureFilesScanned int64
	CaptureBytesBounded int64
	CaptureTruncations  int64
	BoundsExceededCount int64

	// Adapter
	AdapterFitSuccess  int64
	AdapterFitFailure  int64
	AdapterClassCounts map[string]int64

	// Library view-state
	LibraryWriteSuccess int64
	LibraryWriteFailure int64

	// External collaborators
	NotifySuccess   int64
	NotifyFailure   int64
	S3MirrorSuccess int64
	S3MirrorFailure int64

	// Compare engine
	CompareSame    int64
	CompareChanged int64

	// Shadow-audit
	ShadowAuditOK   int64
	ShadowAuditWarn int64
	ShadowAuditDeny int64

	// Dimensions (informational, set at construction)
	PolicyID  string
	InputKind string
	TargetKey string
	RunID     string
}

// Collector accumulates metrics during a single run. Thread-safe via
// sync.Mutex. All increment methods are nil-receiver safe so callers
// can pass a nil *Collector when metrics are not wired up.
type Collector struct {
	mu sync.Mutex

	runsStarted   int64
	runsCompleted int64
	runsDenied    int64
	runsFailed    int64
	runsCrashed   int64

	captureFilesScanned int64
	captureBytesBounded int64
	captureTruncations  int64
	boundsExceededCount int64

	adapterFitSuccess  int64
	adapterFitFailure  int64
	adapterClassCounts map[string]int64

	libraryWriteSuccess int64
	libraryWriteFailure int64

	notifySuccess   int64
	notifyFailure   int64
	s3MirrorSuccess int64
	s3MirrorFailure int64

	compareSame    int64
	compareChanged int64

	shadowAuditOK   int64
	shadowAuditWarn int64
	shadowAuditDeny int64

	policyID  string
	inputKind string
	targetKey string
	runID     string
}

// NewCollector creates a Collector with dimension labels. inputKind and
// targetKey may be set later via SetDimensions once classification has
// run.
func NewCollector(policyID, runID string) *Collector {
	return &Collector{
		adapterClassCounts: make(map[string]int64),
		policyID:           policyID,
		runID:              runID,
	}
}

// SetDimensions fills in dimensions only known after classification.
func (c *Collector) SetDimensions(inputKind, targetKey string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.inputKind = inputKind
	c.targetKey = targetKey
	c.mu.Unlock()
}

// --- Run lifecycle ---

func (c *Collector) IncRunStarted() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.runsStarted++
	c.mu.Unlock()
}

func (c *Collector) IncRunCompleted() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.runsCompleted++
	c.mu.Unlock()
}

func (c *Collector) IncRunDenied() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.runsDenied++
	c.mu.Unlock()
}

func (c *Collector) IncRunFailed() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.runsFailed++
	c.mu.Unlock()
}

func (c *Collector) IncRunCrashed() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.runsCrashed++
	c.mu.Unlock()
}

// --- Capture / bounds ---

func (c *Collector) AddCaptureFilesScanned(n int64) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.captureFilesScanned += n
	c.mu.Unlock()
}

func (c *Collector) AddCaptureBytesBounded(n int64) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.captureBytesBounded += n
	c.mu.Unlock()
}

func (c *Collector) IncCaptureTruncation() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.captureTruncations++
	c.mu.Unlock()
}

func (c *Collector) IncBoundsExceeded() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.boundsExceededCount++
	c.mu.Unlock()
}

// --- Adapter ---

func (c *Collector) IncAdapterFit(class string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.adapterFitSuccess++
	c.adapterClassCounts[class]++
	c.mu.Unlock()
}

func (c *Collector) IncAdapterFitFailure() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.adapterFitFailure++
	c.mu.Unlock()
}

// --- Library view-state ---

func (c *Collector) IncLibraryWriteSuccess() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.libraryWriteSuccess++
	c.mu.Unlock()
}

func (c *Collector) IncLibraryWriteFailure() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.libraryWriteFailure++
	c.mu.Unlock()
}

// --- External collaborators ---

func (c *Collector) IncNotifySuccess() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.notifySuccess++
	c.mu.Unlock()
}

func (c *Collector) IncNotifyFailure() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.notifyFailure++
	c.mu.Unlock()
}

func (c *Collector) IncS3MirrorSuccess() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.s3MirrorSuccess++
	c.mu.Unlock()
}

func (c *Collector) IncS3MirrorFailure() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.s3MirrorFailure++
	c.mu.Unlock()
}

// --- Compare engine ---

func (c *Collector) IncCompareSame() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.compareSame++
	c.mu.Unlock()
}

func (c *Collector) IncCompareChanged() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.compareChanged++
	c.mu.Unlock()
}

// --- Shadow-audit ---

func (c *Collector) IncShadowAuditStatus(status string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	switch status {
	case "OK":
		c.shadowAuditOK++
	case "WARN":
		c.shadowAuditWarn++
	case "DENY":
		c.shadowAuditDeny++
	}
	c.mu.Unlock()
}

// --- Snapshot ---

func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	classCounts := make(map[string]int64, len(c.adapterClassCounts))
	for k, v := range c.adapterClassCounts {
		classCounts[k] = v
	}

	return Snapshot{
		RunsStarted:   c.runsStarted,
		RunsCompleted: c.runsCompleted,
		RunsDenied:    c.runsDenied,
		RunsFailed:    c.runsFailed,
		RunsCrashed:   c.runsCrashed,

		CaptureFilesScanned: c.captureFilesScanned,
		CaptureBytesBounded: c.captureBytesBounded,
		CaptureTruncations:  c.captureTruncations,
		BoundsExceededCount: c.boundsExceededCount,

		AdapterFitSuccess:  c.adapterFitSuccess,
		AdapterFitFailure:  c.adapterFitFailure,
		AdapterClassCounts: classCounts,

		LibraryWriteSuccess: c.libraryWriteSuccess,
		LibraryWriteFailure: c.libraryWriteFailure,

		NotifySuccess:   c.notifySuccess,
		NotifyFailure:   c.notifyFailure,
		S3MirrorSuccess: c.s3MirrorSuccess,
		S3MirrorFailure: c.s3MirrorFailure,

		CompareSame:    c.compareSame,
		CompareChanged: c.compareChanged,

		ShadowAuditOK:   c.shadowAuditOK,
		ShadowAuditWarn: c.shadowAuditWarn,
		ShadowAuditDeny: c.shadowAuditDeny,

		PolicyID:  c.policyID,
		InputKind: c.inputKind,
		TargetKey: c.targetKey,
		RunID:     c.runID,
	}
}
