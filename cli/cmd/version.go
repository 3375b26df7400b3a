package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/weftend/weftend/receipts"
)

// VersionCommand reports the weftendBuild info stamped into every receipt.
func VersionCommand(build receipts.BuildInfo) *cli.Command {
	return &cli.Command{
		Name:   "version",
		Usage:  "show weftend build information",
		Action: versionAction(build),
	}
}

func versionAction(build receipts.BuildInfo) cli.ActionFunc {
	return func(c *cli.Context) error {
		fmt.Printf("weftend %s (%s:%s)\n", build.Version, build.Algorithm, build.BuildDigest)
		return nil
	}
}
