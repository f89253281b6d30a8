package main

import "github.com/urfave/cli/v2"

// socketFlag names the admin socket every subcommand dials.
var socketFlag = &cli.StringFlag{
	Name:     "socket",
	Aliases:  []string{"s"},
	Usage:    "path to ferryd's admin Unix socket",
	Required: true,
}

var formatFlag = &cli.StringFlag{
	Name:    "format",
	Aliases: []string{"f"},
	Usage:   "output format: json, table, yaml",
}

var tuiFlag = &cli.BoolFlag{
	Name:  "tui",
	Usage: "live dashboard (stats, inspect only)",
}

func readOnlyFlags() []cli.Flag {
	return []cli.Flag{socketFlag, formatFlag, tuiFlag}
}
