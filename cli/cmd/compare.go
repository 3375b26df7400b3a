package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"github.com/weftend/weftend/canon"
	"github.com/weftend/weftend/compare"
	"github.com/weftend/weftend/receipts"
	"github.com/weftend/weftend/saferun"
)

const compareReceiptSchema = "weftend.compareReceipt/0"

// CompareCommand runs the compare engine over two prior safe-run
// output directories' content summaries and prints the resulting
// CompareReceipt.
func CompareCommand() *cli.Command {
	return &cli.Command{
		Name:      "compare",
		Usage:     "diff two prior safe-run output directories",
		ArgsUsage: "<leftOutDir> <rightOutDir>",
		Action:    compareAction,
	}
}

func compareAction(c *cli.Context) error {
	if c.NArg() != 2 {
		return cli.Exit("compare takes exactly two positional arguments: <leftOutDir> <rightOutDir>", 1)
	}
	leftDir, rightDir := c.Args().Get(0), c.Args().Get(1)

	leftRec, err := loadSafeRunReceipt(leftDir)
	if err != nil {
		return cli.Exit(fmt.Sprintf("reading left receipt: %v", err), 1)
	}
	rightRec, err := loadSafeRunReceipt(rightDir)
	if err != nil {
		return cli.Exit(fmt.Sprintf("reading right receipt: %v", err), 1)
	}

	leftSummary := saferun.SummaryFromReceipt(leftRec)
	rightSummary := saferun.SummaryFromReceipt(rightRec)

	result, err := compare.Compare(leftSummary, rightSummary)
	if err != nil {
		return cli.Exit(fmt.Sprintf("comparing: %v", err), 1)
	}

	left, err := compareSideOf(leftSummary)
	if err != nil {
		return cli.Exit(fmt.Sprintf("left summary digest: %v", err), 1)
	}
	right, err := compareSideOf(rightSummary)
	if err != nil {
		return cli.Exit(fmt.Sprintf("right summary digest: %v", err), 1)
	}

	privacyLint := receipts.PrivacyLintPass
	if leftRec.AnalysisVerdict == receipts.AnalysisDeny || rightRec.AnalysisVerdict == receipts.AnalysisDeny {
		privacyLint = receipts.PrivacyLintFail
	}

	receipt, err := compare.BuildReceipt(compareReceiptSchema, left, right, result, privacyLint, nil)
	if err != nil {
		return cli.Exit(fmt.Sprintf("building compare receipt: %v", err), 1)
	}

	data, err := json.MarshalIndent(receipt, "", "  ")
	if err != nil {
		return cli.Exit(fmt.Sprintf("encoding compare receipt: %v", err), 1)
	}
	fmt.Println(string(data))
	return nil
}

func loadSafeRunReceipt(outDir string) (*receipts.SafeRunReceipt, error) {
	data, err := os.ReadFile(filepath.Join(outDir, "safe_run_receipt.json"))
	if err != nil {
		return nil, err
	}
	var rec receipts.SafeRunReceipt
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func compareSideOf(summary compare.Summary) (receipts.CompareSide, error) {
	digest, err := canon.DigestValue(summary)
	if err != nil {
		return receipts.CompareSide{}, err
	}
	return receipts.CompareSide{
		SummaryDigest: digest,
		ReceiptKinds:  []string{"safe_run_receipt"},
	}, nil
}
