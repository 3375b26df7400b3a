package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/weftend/weftend/log"
	"github.com/weftend/weftend/metrics"
	"github.com/weftend/weftend/notify"
	notifyredis "github.com/weftend/weftend/notify/redis"
	notifywebhook "github.com/weftend/weftend/notify/webhook"
	"github.com/weftend/weftend/receipts"
	"github.com/weftend/weftend/s3mirror"
	"github.com/weftend/weftend/saferun"
	"github.com/weftend/weftend/weftpolicy"
)

// SafeRunCommand returns the safe-run command per spec.md §6.
func SafeRunCommand(build receipts.BuildInfo) *cli.Command {
	return &cli.Command{
		Name:      "safe-run",
		Usage:     "intake and triage one artifact, never executing anything without explicit evidence",
		ArgsUsage: "<input>",
		Flags:     SafeRunFlags(),
		Action:    safeRunAction(build),
	}
}

func safeRunAction(build receipts.BuildInfo) cli.ActionFunc {
	return func(c *cli.Context) error {
		if c.NArg() != 1 {
			return cli.Exit("safe-run takes exactly one positional <input>", saferun.ExitFailClosed)
		}
		if c.Bool("execute") && c.Bool("withhold-exec") {
			return cli.Exit("--execute and --withhold-exec are mutually exclusive", saferun.ExitFailClosed)
		}

		cfg := saferun.Config{
			InputPath:                    c.Args().First(),
			OutDir:                       c.String("out"),
			PolicyPath:                   c.String("policy"),
			Profile:                      weftpolicy.Profile(c.String("profile")),
			ExecuteRequested:             c.Bool("execute"),
			WithholdExec:                 c.Bool("withhold-exec"),
			AdapterSelection:             c.String("adapter"),
			EnabledPlugins:               c.StringSlice("enable-plugin"),
			AdapterMaintenancePolicyPath: os.Getenv("WEFTEND_ADAPTER_DISABLE_FILE"),
			DisabledAdapterClasses:       splitNonEmpty(os.Getenv("WEFTEND_ADAPTER_DISABLE"), ","),
			LibraryRoot:                  libraryRoot(c),
			Build:                        build,
			Collector:                    metrics.NewCollector("", ""),
			Logger:                       log.New(log.Context{}),
		}

		ctx, cancel := signalContext()
		defer cancel()

		orch := saferun.New(cfg)
		result, err := orch.Execute(ctx)
		if err != nil {
			var pe *saferun.PreconditionError
			if errors.As(err, &pe) {
				fmt.Fprintln(os.Stderr, pe.Error())
				return cli.Exit("", saferun.ExitFailClosed)
			}
			return cli.Exit(fmt.Sprintf("safe-run failed: %v", err), saferun.ExitInternalErr)
		}

		printReceiptSummary(result)
		notifyFinalize(ctx, cfg, result)
		mirrorLibraryTarget(ctx, cfg)

		return cli.Exit("", result.ExitCode)
	}
}

func splitNonEmpty(s, sep string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, sep) {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func printReceiptSummary(result *saferun.Result) {
	r := result.Receipt
	fmt.Printf("analysisVerdict=%s executionVerdict=%s topReasonCode=%s\n",
		r.AnalysisVerdict, r.ExecutionVerdict, r.TopReasonCode)
	if len(result.LibraryWarnings) > 0 {
		fmt.Printf("libraryWarnings=%s\n", strings.Join(result.LibraryWarnings, ","))
	}
}

// notifyFinalize fans the finalize event out to any configured
// notifiers. Best-effort: failures are swallowed, never fatal, since
// a receipt is already finalized on disk by the time this runs.
func notifyFinalize(ctx context.Context, cfg saferun.Config, result *saferun.Result) {
	var notifiers []notify.Notifier
	if url := os.Getenv("WEFTEND_NOTIFY_REDIS_URL"); url != "" {
		if n, err := notifyredis.New(notifyredis.Config{URL: url}); err == nil {
			notifiers = append(notifiers, n)
		}
	}
	if url := os.Getenv("WEFTEND_NOTIFY_WEBHOOK_URL"); url != "" {
		if n, err := notifywebhook.New(notifywebhook.Config{URL: url}); err == nil {
			notifiers = append(notifiers, n)
		}
	}
	if len(notifiers) == 0 {
		return
	}
	multi := &notify.Multi{Notifiers: notifiers}
	defer multi.Close()

	event := &notify.Event{
		RunID:            filepath.Base(cfg.OutDir),
		AnalysisVerdict:  string(result.Receipt.AnalysisVerdict),
		ExecutionVerdict: string(result.Receipt.ExecutionVerdict),
		ReceiptDigest:    result.Receipt.ReceiptDigest,
		FinalizedAt:      notify.NowRFC3339(),
	}
	if result.LibraryState != nil {
		event.TargetKey = result.LibraryState.TargetKey
	}
	multi.NotifyAll(ctx, event)
}

// mirrorLibraryTarget best-effort mirrors the updated library view to
// S3 when WEFTEND_S3_MIRROR_BUCKET is set.
func mirrorLibraryTarget(ctx context.Context, cfg saferun.Config) {
	bucket := os.Getenv("WEFTEND_S3_MIRROR_BUCKET")
	if bucket == "" || cfg.LibraryRoot == "" {
		return
	}
	targetKey, _, ok := saferun.LibraryRunInfo(cfg.LibraryRoot, cfg.OutDir)
	if !ok {
		return
	}
	mirror, err := s3mirror.New(ctx, s3mirror.Config{
		Bucket: bucket,
		Prefix: os.Getenv("WEFTEND_S3_MIRROR_PREFIX"),
	})
	if err != nil {
		return
	}
	_ = mirror.PushTarget(ctx, cfg.LibraryRoot, targetKey)
}
