// Package main provides the ferryctl operator CLI: list, stats,
// inspect, flush, delete, and reload against a running ferryd's admin
// Unix socket.
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

const version = "0.1.0"
const exitFailure = 1

func main() {
	app := &cli.App{
		Name:    "ferryctl",
		Usage:   "operator CLI for a running ferryd broker",
		Version: version,
		Commands: []*cli.Command{
			listCommand(),
			statsCommand(),
			inspectCommand(),
			flushCommand(),
			deleteCommand(),
			reloadCommand(),
			versionCommand(),
		},
		ExitErrHandler: exitErrHandler,
	}

	if err := app.Run(os.Args); err != nil {
		os.Exit(exitFailure)
	}
}

func exitErrHandler(c *cli.Context, err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "ferryctl: %v\n", err)
	os.Exit(exitFailure)
}
