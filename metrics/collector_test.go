package metrics

import (
	"sync"
	"testing"
)

func TestCollector_IncrementMethods(t *testing.T) {
	c := NewCollector("strict", "run-001")

	c.IncRunStarted()
	c.IncRunCompleted()
	c.IncRunFailed()
	c.IncRunFailed()
	c.IncRunDenied()
	c.IncRunCrashed()
	c.AddCaptureFilesScanned(12)
	c.AddCaptureBytesBounded(4096)
	c.IncCaptureTruncation()
	c.IncBoundsExceeded()
	c.IncBoundsExceeded()
	c.IncAdapterFit("archive")
	c.IncAdapterFit("archive")
	c.IncAdapterFit("script")
	c.IncAdapterFitFailure()
	c.IncLibraryWriteSuccess()
	c.IncLibraryWriteFailure()
	c.IncNotifySuccess()
	c.IncNotifyFailure()
	c.IncS3MirrorSuccess()
	c.IncS3MirrorFailure()
	c.IncCompareSame()
	c.IncCompareChanged()
	c.IncCompareChanged()
	c.IncShadowAuditStatus("OK")
	c.IncShadowAuditStatus("WARN")
	c.IncShadowAuditStatus("DENY")
	c.IncShadowAuditStatus("DENY")
	c.IncShadowAuditStatus("unknown")

	s := c.Snapshot()

	if s.RunsStarted != 1 {
		t.Errorf("RunsStarted = %d, want 1", s.RunsStarted)
	}
	if s.RunsCompleted != 1 {
		t.Errorf("RunsCompleted = %d, want 1", s.RunsCompleted)
	}
	if s.RunsFailed != 2 {
		t.Errorf("RunsFailed = %d, want 2", s.RunsFailed)
	}
	if s.RunsDenied != 1 {
		t.Errorf("RunsDenied = %d, want 1", s.RunsDenied)
	}
	if s.RunsCrashed != 1 {
		t.Errorf("RunsCrashed = %d, want 1", s.RunsCrashed)
	}
	if s.CaptureFilesScanned != 12 {
		t.Errorf("CaptureFilesScanned = %d, want 12", s.CaptureFilesScanned)
	}
	if s.CaptureBytesBounded != 4096 {
		t.Errorf("CaptureBytesBounded = %d, want 4096", s.CaptureBytesBounded)
	}
	if s.CaptureTruncations != 1 {
		t.Errorf("CaptureTruncations = %d, want 1", s.CaptureTruncations)
	}
	if s.BoundsExceededCount != 2 {
		t.Errorf("BoundsExceededCount = %d, want 2", s.BoundsExceededCount)
	}
	if s.AdapterFitSuccess != 3 {
		t.Errorf("AdapterFitSuccess = %d, want 3", s.AdapterFitSuccess)
	}
	if s.AdapterFitFailure != 1 {
		t.Errorf("AdapterFitFailure = %d, want 1", s.AdapterFitFailure)
	}
	if s.AdapterClassCounts["archive"] != 2 {
		t.Errorf("AdapterClassCounts[archive] = %d, want 2", s.AdapterClassCounts["archive"])
	}
	if s.AdapterClassCounts["script"] != 1 {
		t.Errorf("AdapterClassCounts[script] = %d, want 1", s.AdapterClassCounts["script"])
	}
	if s.LibraryWriteSuccess != 1 || s.LibraryWriteFailure != 1 {
		t.Errorf("library write counters = %d/%d, want 1/1", s.LibraryWriteSuccess, s.LibraryWriteFailure)
	}
	if s.NotifySuccess != 1 || s.NotifyFailure != 1 {
		t.Errorf("notify counters = %d/%d, want 1/1", s.NotifySuccess, s.NotifyFailure)
	}
	if s.S3MirrorSuccess != 1 || s.S3MirrorFailure != 1 {
		t.Errorf("s3 mirror counters = %d/%d, want 1/1", s.S3MirrorSuccess, s.S3MirrorFailure)
	}
	if s.CompareSame != 1 || s.CompareChanged != 2 {
		t.Errorf("compare counters = %d/%d, want 1/2", s.CompareSame, s.CompareChanged)
	}
	if s.ShadowAuditOK != 1 || s.ShadowAuditWarn != 1 || s.ShadowAuditDeny != 2 {
		t.Errorf("shadow-audit counters = %d/%d/%d, want 1/1/2", s.ShadowAuditOK, s.ShadowAuditWarn, s.ShadowAuditDeny)
	}
}

func TestCollector_Dimensions(t *testing.T) {
	c := NewCollector("strict", "run-42")
	c.SetDimensions("zip", "release-bundle-1.2.3")
	s := c.Snapshot()

	if s.PolicyID != "strict" {
		t.Errorf("PolicyID = %q, want %q", s.PolicyID, "strict")
	}
	if s.RunID != "run-42" {
		t.Errorf("RunID = %q, want %q", s.RunID, "run-42")
	}
	if s.InputKind != "zip" {
		t.Errorf("InputKind = %q, want %q", s.InputKind, "zip")
	}
	if s.TargetKey != "release-bundle-1.2.3" {
		t.Errorf("TargetKey = %q, want %q", s.TargetKey, "release-bundle-1.2.3")
	}
}

func TestCollector_SnapshotImmutability(t *testing.T) {
	c := NewCollector("strict", "run-001")
	c.IncRunStarted()
	c.IncLibraryWriteSuccess()

	s1 := c.Snapshot()

	c.IncRunCompleted()
	c.IncLibraryWriteSuccess()
	c.IncLibraryWriteSuccess()

	if s1.RunsCompleted != 0 {
		t.Errorf("s1.RunsCompleted = %d, want 0 (snapshot should be frozen)", s1.RunsCompleted)
	}
	if s1.LibraryWriteSuccess != 1 {
		t.Errorf("s1.LibraryWriteSuccess = %d, want 1 (snapshot should be frozen)", s1.LibraryWriteSuccess)
	}

	s2 := c.Snapshot()
	if s2.RunsCompleted != 1 {
		t.Errorf("s2.RunsCompleted = %d, want 1", s2.RunsCompleted)
	}
	if s2.LibraryWriteSuccess != 3 {
		t.Errorf("s2.LibraryWriteSuccess = %d, want 3", s2.LibraryWriteSuccess)
	}
}

func TestCollector_AdapterClassCountsIsolation(t *testing.T) {
	c := NewCollector("strict", "run-001")
	c.IncAdapterFit("archive")

	s := c.Snapshot()
	s.AdapterClassCounts["archive"] = 999
	s.AdapterClassCounts["injected"] = 1

	s2 := c.Snapshot()
	if s2.AdapterClassCounts["archive"] != 1 {
		t.Errorf("AdapterClassCounts[archive] = %d, want 1 (collector should be isolated from snapshot mutation)", s2.AdapterClassCounts["archive"])
	}
	if _, exists := s2.AdapterClassCounts["injected"]; exists {
		t.Error("AdapterClassCounts should not contain injected key from snapshot mutation")
	}
}

func TestCollector_NilReceiverSafety(t *testing.T) {
	var c *Collector

	c.IncRunStarted()
	c.IncRunCompleted()
	c.IncRunFailed()
	c.IncRunDenied()
	c.IncRunCrashed()
	c.AddCaptureFilesScanned(1)
	c.AddCaptureBytesBounded(1)
	c.IncCaptureTruncation()
	c.IncBoundsExceeded()
	c.IncAdapterFit("archive")
	c.IncAdapterFitFailure()
	c.IncLibraryWriteSuccess()
	c.IncLibraryWriteFailure()
	c.IncNotifySuccess()
	c.IncNotifyFailure()
	c.IncS3MirrorSuccess()
	c.IncS3MirrorFailure()
	c.IncCompareSame()
	c.IncCompareChanged()
	c.IncShadowAuditStatus("OK")
	c.SetDimensions("zip", "target")

	s := c.Snapshot()
	if s.RunsStarted != 0 {
		t.Errorf("nil collector snapshot RunsStarted = %d, want 0", s.RunsStarted)
	}
	if s.AdapterClassCounts != nil {
		t.Errorf("nil collector snapshot AdapterClassCounts should be nil, got %v", s.AdapterClassCounts)
	}
}

func TestCollector_ConcurrentAccess(t *testing.T) {
	c := NewCollector("strict", "run-001")
	const goroutines = 10
	const iterations = 1000

	var wg sync.WaitGroup
	wg.Add(goroutines)

	for range goroutines {
		go func() {
			defer wg.Done()
			for range iterations {
				c.IncRunStarted()
				c.IncLibraryWriteSuccess()
				c.IncAdapterFit("archive")
			}
		}()
	}

	wg.Wait()

	s := c.Snapshot()
	want := int64(goroutines * iterations)

	if s.RunsStarted != want {
		t.Errorf("RunsStarted = %d, want %d", s.RunsStarted, want)
	}
	if s.LibraryWriteSuccess != want {
		t.Errorf("LibraryWriteSuccess = %d, want %d", s.LibraryWriteSuccess, want)
	}
	if s.AdapterClassCounts["archive"] != want {
		t.Errorf("AdapterClassCounts[archive] = %d, want %d", s.AdapterClassCounts["archive"], want)
	}
}

func TestCollector_ZeroValueSnapshot(t *testing.T) {
	c := NewCollector("strict", "run-001")
	s := c.Snapshot()

	if s.RunsStarted != 0 || s.RunsCompleted != 0 || s.RunsFailed != 0 || s.RunsCrashed != 0 || s.RunsDenied != 0 {
		t.Error("fresh collector should have zero run lifecycle counters")
	}
	if s.CaptureFilesScanned != 0 || s.CaptureBytesBounded != 0 || s.CaptureTruncations != 0 {
		t.Error("fresh collector should have zero capture counters")
	}
	if s.AdapterFitSuccess != 0 || s.AdapterFitFailure != 0 {
		t.Error("fresh collector should have zero adapter counters")
	}
	if len(s.AdapterClassCounts) != 0 {
		t.Errorf("fresh collector AdapterClassCounts should be empty, got %v", s.AdapterClassCounts)
	}
}
