package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/weftend/weftend/shadowaudit"
)

// ShadowAuditCommand runs the shadow-audit reducer over a JSON request
// file and prints the resulting ShadowAuditResult.
func ShadowAuditCommand() *cli.Command {
	return &cli.Command{
		Name:      "shadow-audit",
		Usage:     "reduce a bounded expected/observed event stream to a proof-only verdict",
		ArgsUsage: "<requestPath>",
		Action:    shadowAuditAction,
	}
}

func shadowAuditAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("shadow-audit takes exactly one positional <requestPath>", 1)
	}

	data, err := os.ReadFile(c.Args().First())
	if err != nil {
		return cli.Exit(fmt.Sprintf("reading request: %v", err), 1)
	}

	var req shadowaudit.Request
	if err := json.Unmarshal(data, &req); err != nil {
		return cli.Exit(fmt.Sprintf("parsing request: %v", err), 1)
	}

	result := shadowaudit.Reduce(req)

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return cli.Exit(fmt.Sprintf("encoding result: %v", err), 1)
	}
	fmt.Println(string(out))
	return nil
}
