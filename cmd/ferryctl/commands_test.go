package main

import (
	"errors"
	"flag"
	"path/filepath"
	"testing"

	"github.com/urfave/cli/v2"

	"github.com/justapithecus/ferryq/internal/adminproto"
	"github.com/justapithecus/ferryq/internal/logging"
)

func contextWithSocket(t *testing.T, path string) *cli.Context {
	t.Helper()
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.String("socket", path, "")
	return cli.NewContext(cli.NewApp(), fs, nil)
}

func TestFetchStats_DialFailure(t *testing.T) {
	c := contextWithSocket(t, filepath.Join(t.TempDir(), "no-such-socket"))
	_, err := fetchStats(c, adminproto.Request{Verb: adminproto.VerbStats})
	if err == nil {
		t.Fatal("expected a dial error against a nonexistent socket")
	}
}

func TestFetchStats_PropagatesDaemonError(t *testing.T) {
	dir := t.TempDir()
	sockPath := filepath.Join(dir, "admin.sock")

	srv, err := adminproto.Listen(sockPath, func(req adminproto.Request) adminproto.Response {
		return adminproto.ErrResponse(errors.New("no such queue"))
	}, logging.New())
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	go srv.Serve()
	defer srv.Close()

	c := contextWithSocket(t, sockPath)
	_, err = fetchStats(c, adminproto.Request{Verb: adminproto.VerbInspect, Queue: "ghost"})
	if err == nil {
		t.Fatal("expected the daemon's error to propagate")
	}
}
