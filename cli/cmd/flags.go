// Package cmd provides the weftend CLI commands.
package cmd

import (
	"os"

	"github.com/urfave/cli/v2"
)

// Shared flags for the safe-run command, matching the CLI surface
// named in spec.md §6.
var (
	OutFlag = &cli.StringFlag{
		Name:     "out",
		Usage:    "output directory for the safe-run receipt and evidence",
		Required: true,
	}

	PolicyFlag = &cli.StringFlag{
		Name:  "policy",
		Usage: "path to a WeftEndPolicy JSON file",
	}

	ProfileFlag = &cli.StringFlag{
		Name:  "profile",
		Usage: "policy profile: web, mod, or generic",
	}

	ExecuteFlag = &cli.BoolFlag{
		Name:  "execute",
		Usage: "request host execution when intake allows it",
	}

	WithholdExecFlag = &cli.BoolFlag{
		Name:  "withhold-exec",
		Usage: "withhold host execution even when intake would allow it",
	}

	AdapterFlag = &cli.StringFlag{
		Name:  "adapter",
		Usage: "adapter selection: auto, none, or one adapter class",
		Value: "auto",
	}

	EnablePluginFlag = &cli.StringSliceFlag{
		Name:  "enable-plugin",
		Usage: "named plugin to enable for adapter validation (repeatable)",
	}

	// LibraryRootFlag overrides WEFTEND_LIBRARY_ROOT / the ./Library
	// default for the library subcommands.
	LibraryRootFlag = &cli.StringFlag{
		Name:  "library-root",
		Usage: "library root directory (default: $WEFTEND_LIBRARY_ROOT or ./Library)",
	}
)

// SafeRunFlags returns the full flag set for the safe-run command.
func SafeRunFlags() []cli.Flag {
	return []cli.Flag{
		OutFlag,
		PolicyFlag,
		ProfileFlag,
		ExecuteFlag,
		WithholdExecFlag,
		AdapterFlag,
		EnablePluginFlag,
	}
}

// libraryRoot resolves the effective library root: explicit flag,
// then WEFTEND_LIBRARY_ROOT, then ./Library.
func libraryRoot(c *cli.Context) string {
	if v := c.String("library-root"); v != "" {
		return v
	}
	if v := os.Getenv("WEFTEND_LIBRARY_ROOT"); v != "" {
		return v
	}
	return "./Library"
}
