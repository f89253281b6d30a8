package main

import (
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/justapithecus/ferryq/internal/adminproto"
	"github.com/justapithecus/ferryq/internal/journal"
	"github.com/justapithecus/ferryq/internal/render"
	"github.com/justapithecus/ferryq/internal/tui"
)

const dialTimeout = 5 * time.Second

func client(c *cli.Context) *adminproto.Client {
	return adminproto.NewClient(c.String("socket"), dialTimeout)
}

func listCommand() *cli.Command {
	return &cli.Command{
		Name:   "list",
		Usage:  "list registered queues and aliases",
		Flags:  readOnlyFlags(),
		Action: listAction,
	}
}

func listAction(c *cli.Context) error {
	resp, err := client(c).Do(adminproto.Request{Verb: adminproto.VerbList})
	if err != nil {
		return err
	}
	if !resp.OK {
		return cli.Exit(resp.Error, 1)
	}

	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}
	return r.Render(struct {
		Queues  []string `json:"queues"`
		Aliases []string `json:"aliases"`
	}{Queues: resp.Queues, Aliases: resp.Aliases})
}

func statsCommand() *cli.Command {
	return &cli.Command{
		Name:   "stats",
		Usage:  "show aggregate counters for every queue",
		Flags:  readOnlyFlags(),
		Action: statsAction,
	}
}

func fetchStats(c *cli.Context, req adminproto.Request) ([]journal.Stat, error) {
	resp, err := client(c).Do(req)
	if err != nil {
		return nil, err
	}
	if !resp.OK {
		return nil, fmt.Errorf("%s", resp.Error)
	}
	return resp.Stats, nil
}

func statsAction(c *cli.Context) error {
	req := adminproto.Request{Verb: adminproto.VerbStats}

	if c.Bool("tui") {
		return tui.Run("stats", func() ([]journal.Stat, error) { return fetchStats(c, req) })
	}

	stats, err := fetchStats(c, req)
	if err != nil {
		return err
	}
	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}
	return r.Render(stats)
}

func inspectCommand() *cli.Command {
	return &cli.Command{
		Name:      "inspect",
		Usage:     "show detailed stats for a single queue",
		ArgsUsage: "<queue>",
		Flags:     readOnlyFlags(),
		Action:    inspectAction,
	}
}

func inspectAction(c *cli.Context) error {
	name := c.Args().First()
	if name == "" {
		return cli.Exit("inspect requires a queue name", 1)
	}
	req := adminproto.Request{Verb: adminproto.VerbInspect, Queue: name}

	if c.Bool("tui") {
		return tui.Run("inspect: "+name, func() ([]journal.Stat, error) { return fetchStats(c, req) })
	}

	stats, err := fetchStats(c, req)
	if err != nil {
		return err
	}
	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}
	return r.Render(stats)
}

func flushCommand() *cli.Command {
	return &cli.Command{
		Name:      "flush",
		Usage:     "discard all items in a queue",
		ArgsUsage: "<queue>",
		Flags:     []cli.Flag{socketFlag},
		Action:    flushAction,
	}
}

func flushAction(c *cli.Context) error {
	name := c.Args().First()
	if name == "" {
		return cli.Exit("flush requires a queue name", 1)
	}
	resp, err := client(c).Do(adminproto.Request{Verb: adminproto.VerbFlush, Queue: name})
	if err != nil {
		return err
	}
	if !resp.OK {
		return cli.Exit(resp.Error, 1)
	}
	fmt.Printf("flushed %s\n", name)
	return nil
}

func deleteCommand() *cli.Command {
	return &cli.Command{
		Name:      "delete",
		Usage:     "permanently remove a queue and its on-disk journal",
		ArgsUsage: "<queue>",
		Flags:     []cli.Flag{socketFlag},
		Action:    deleteAction,
	}
}

func deleteAction(c *cli.Context) error {
	name := c.Args().First()
	if name == "" {
		return cli.Exit("delete requires a queue name", 1)
	}
	resp, err := client(c).Do(adminproto.Request{Verb: adminproto.VerbDelete, Queue: name})
	if err != nil {
		return err
	}
	if !resp.OK {
		return cli.Exit(resp.Error, 1)
	}
	fmt.Printf("deleted %s\n", name)
	return nil
}

func reloadCommand() *cli.Command {
	return &cli.Command{
		Name:   "reload",
		Usage:  "re-read config and reconcile aliases against the running daemon",
		Flags:  []cli.Flag{socketFlag},
		Action: reloadAction,
	}
}

func reloadAction(c *cli.Context) error {
	resp, err := client(c).Do(adminproto.Request{Verb: adminproto.VerbReload})
	if err != nil {
		return err
	}
	if !resp.OK {
		return cli.Exit(resp.Error, 1)
	}
	fmt.Println("reloaded")
	return nil
}

func versionCommand() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "print ferryctl's version",
		Action: func(c *cli.Context) error {
			fmt.Println(version)
			return nil
		},
	}
}
