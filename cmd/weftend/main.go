// Package main provides the weftend CLI entrypoint.
//
// Usage:
//
//	weftend safe-run <input> --out <dir> [options]
//	weftend library list|inspect|accept-baseline|reject-baseline ...
//	weftend compare <leftOutDir> <rightOutDir>
//	weftend shadow-audit <requestPath>
//
// Exit codes for safe-run per spec.md §6:
//   - 0:  success
//   - 40: fail-closed
//   - 1:  internal error
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/weftend/weftend/cli/cmd"
	"github.com/weftend/weftend/saferun"
)

// version and commit are set via ldflags at build time.
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	build := saferun.DefaultBuildInfo(fmt.Sprintf("%s+%s", version, commit))

	app := &cli.App{
		Name:           "weftend",
		Usage:          "deterministic, local, fail-closed artifact intake and triage",
		Version:        build.Version,
		ExitErrHandler: exitErrHandler,
		Commands: []*cli.Command{
			cmd.SafeRunCommand(build),
			cmd.LibraryCommand(),
			cmd.CompareCommand(),
			cmd.ShadowAuditCommand(),
			cmd.VersionCommand(build),
		},
	}

	if err := app.Run(os.Args); err != nil {
		os.Exit(saferun.ExitInternalErr)
	}
}

// exitErrHandler preserves exit codes set via cli.Exit, falling back
// to the internal-error exit code for anything unexpected.
func exitErrHandler(_ *cli.Context, err error) {
	if err == nil {
		return
	}

	var exitCoder cli.ExitCoder
	if errors.As(err, &exitCoder) {
		code := exitCoder.ExitCode()
		msg := exitCoder.Error()
		if msg != "" && msg != fmt.Sprintf("exit status %d", code) {
			fmt.Fprintln(os.Stderr, msg)
		}
		os.Exit(code)
	}

	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(saferun.ExitInternalErr)
}
