package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/weftend/weftend/cli/tui"
	"github.com/weftend/weftend/library"
)

// LibraryCommand groups the library view-state operator subcommands
// named in spec.md §4.9 plus the ambient list/inspect conveniences.
func LibraryCommand() *cli.Command {
	return &cli.Command{
		Name:  "library",
		Usage: "inspect and operate on per-target safe-run history",
		Flags: []cli.Flag{LibraryRootFlag},
		Subcommands: []*cli.Command{
			libraryListCommand(),
			libraryInspectCommand(),
			libraryAcceptBaselineCommand(),
			libraryRejectBaselineCommand(),
		},
	}
}

func libraryListCommand() *cli.Command {
	return &cli.Command{
		Name:   "list",
		Usage:  "list target keys and their baseline/latest/blocked state",
		Action: libraryListAction,
	}
}

func libraryListAction(c *cli.Context) error {
	root := libraryRoot(c)
	keys, err := library.ListTargets(root)
	if err != nil {
		return cli.Exit(fmt.Sprintf("listing targets: %v", err), 1)
	}
	if len(keys) == 0 {
		fmt.Println("(no targets)")
		return nil
	}
	for _, key := range keys {
		state, err := library.LoadViewState(root, key)
		if err != nil {
			fmt.Printf("%s\t(unreadable view state: %v)\n", key, err)
			continue
		}
		blocked := "no"
		if state.Blocked != nil {
			blocked = "yes:" + state.Blocked.RunID
		}
		fmt.Printf("%s\tbaseline=%s\tlatest=%s\tblocked=%s\n",
			key, state.BaselineRunID, state.LatestRunID, blocked)
	}
	return nil
}

func libraryInspectCommand() *cli.Command {
	return &cli.Command{
		Name:      "inspect",
		Usage:     "interactively browse one target's history",
		ArgsUsage: "<targetKey>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "static", Usage: "print a static view instead of launching the TUI"},
		},
		Action: libraryInspectAction,
	}
}

func libraryInspectAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("library inspect takes exactly one positional <targetKey>", 1)
	}
	root := libraryRoot(c)
	targetKey := c.Args().First()
	state, err := library.LoadViewState(root, targetKey)
	if err != nil {
		return cli.Exit(fmt.Sprintf("loading view state for %q: %v", targetKey, err), 1)
	}

	if c.Bool("static") {
		fmt.Print(tui.RenderLibraryStatic(state))
		return nil
	}
	return tui.RunLibraryInspectTUI(state)
}

func libraryAcceptBaselineCommand() *cli.Command {
	return &cli.Command{
		Name:      "accept-baseline",
		Usage:     "accept the latest run as the new baseline and clear any blocked record",
		ArgsUsage: "<targetKey>",
		Action:    libraryAcceptBaselineAction,
	}
}

func libraryAcceptBaselineAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("library accept-baseline takes exactly one positional <targetKey>", 1)
	}
	if err := library.AcceptBaseline(libraryRoot(c), c.Args().First()); err != nil {
		return cli.Exit(fmt.Sprintf("accepting baseline: %v", err), 1)
	}
	fmt.Println("baseline accepted")
	return nil
}

func libraryRejectBaselineCommand() *cli.Command {
	return &cli.Command{
		Name:      "reject-baseline",
		Usage:     "mark the latest run blocked, leaving the prior baseline in place",
		ArgsUsage: "<targetKey>",
		Action:    libraryRejectBaselineAction,
	}
}

func libraryRejectBaselineAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("library reject-baseline takes exactly one positional <targetKey>", 1)
	}
	if err := library.RejectBaseline(libraryRoot(c), c.Args().First()); err != nil {
		return cli.Exit(fmt.Sprintf("rejecting baseline: %v", err), 1)
	}
	fmt.Println("baseline rejected")
	return nil
}
