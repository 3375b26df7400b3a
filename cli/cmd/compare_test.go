package cmd

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/weftend/weftend/receipts"
	"github.com/weftend/weftend/saferun"
)

func writeReceipt(t *testing.T, dir string, rec *receipts.SafeRunReceipt) {
	t.Helper()
	data, err := json.Marshal(rec)
	if err != nil {
		t.Fatalf("marshal receipt: %v", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "safe_run_receipt.json"), data, 0o644); err != nil {
		t.Fatalf("write receipt: %v", err)
	}
}

func TestLoadSafeRunReceipt_RoundTrips(t *testing.T) {
	dir := t.TempDir()
	want := &receipts.SafeRunReceipt{
		Schema:          "weftend.safeRunReceipt/0",
		AnalysisVerdict: receipts.AnalysisAllow,
		TopReasonCode:   "OK",
	}
	writeReceipt(t, dir, want)

	got, err := loadSafeRunReceipt(dir)
	if err != nil {
		t.Fatalf("loadSafeRunReceipt: %v", err)
	}
	if got.AnalysisVerdict != want.AnalysisVerdict || got.TopReasonCode != want.TopReasonCode {
		t.Errorf("loadSafeRunReceipt = %+v, want %+v", got, want)
	}
}

func TestLoadSafeRunReceipt_MissingFile(t *testing.T) {
	if _, err := loadSafeRunReceipt(t.TempDir()); err == nil {
		t.Fatal("expected error for missing receipt file")
	}
}

func TestCompareSideOf_DeterministicDigest(t *testing.T) {
	dir := t.TempDir()
	writeReceipt(t, dir, &receipts.SafeRunReceipt{AnalysisVerdict: receipts.AnalysisAllow})
	rec, err := loadSafeRunReceipt(dir)
	if err != nil {
		t.Fatalf("loadSafeRunReceipt: %v", err)
	}

	side1, err := compareSideOf(saferun.SummaryFromReceipt(rec))
	if err != nil {
		t.Fatalf("compareSideOf: %v", err)
	}
	side2, err := compareSideOf(saferun.SummaryFromReceipt(rec))
	if err != nil {
		t.Fatalf("compareSideOf: %v", err)
	}
	if side1.SummaryDigest != side2.SummaryDigest {
		t.Errorf("same receipt should produce the same summary digest")
	}
	if len(side1.ReceiptKinds) != 1 || side1.ReceiptKinds[0] != "safe_run_receipt" {
		t.Errorf("ReceiptKinds = %v, want [safe_run_receipt]", side1.ReceiptKinds)
	}
}
