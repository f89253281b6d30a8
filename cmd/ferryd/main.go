// Package main provides the ferryd daemon entrypoint.
//
// Usage:
//
//	ferryd -config <path>
//
// SIGHUP reloads configuration and reconciles aliases against it.
// SIGTERM/SIGINT drain the admin socket and shut the registry down.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/justapithecus/ferryq/internal/adminproto"
	"github.com/justapithecus/ferryq/internal/archive"
	"github.com/justapithecus/ferryq/internal/config"
	"github.com/justapithecus/ferryq/internal/facade"
	"github.com/justapithecus/ferryq/internal/journal"
	"github.com/justapithecus/ferryq/internal/lifecycle"
	"github.com/justapithecus/ferryq/internal/logging"
	"github.com/justapithecus/ferryq/internal/metrics"
	"github.com/justapithecus/ferryq/internal/placement"
	"github.com/justapithecus/ferryq/internal/registry"
)

const exitFailure = 1

// defaultReapInterval is how often the expiry reaper sweeps; the config
// file has no setting that changes it.
const defaultReapInterval = 30 * time.Second

func main() {
	app := &cli.App{
		Name:    "ferryd",
		Usage:   "ferryq broker daemon",
		Version: "0.1.0",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "config",
				Usage:    "path to ferryd.yaml",
				Required: true,
			},
		},
		Action:         run,
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
	fmt.Fprintf(os.Stderr, "ferryd: %v\n", err)
	os.Exit(exitFailure)
}

func run(c *cli.Context) error {
	log := logging.New()
	configPath := c.String("config")

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	archiveFn, err := buildArchiveFunc(cfg, log)
	if err != nil {
		return err
	}

	plc := placement.New(cfg.DataRoots)
	mc := metrics.NewCollector()
	reg := registry.New(cfg, plc, mc, log, archiveFn)

	if err := lifecycle.Scan(cfg, reg, archiveFn, log); err != nil {
		return fmt.Errorf("boot scan: %w", err)
	}

	f := facade.New(reg, log)
	reaper := lifecycle.StartReaper(defaultReapInterval, f, log)
	defer reaper.Stop()

	reload := func() error {
		next, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("reload config: %w", err)
		}
		reg.SetConfig(next)
		return lifecycle.ReconcileAliases(next, reg)
	}

	if cfg.AdminSocket != "" {
		srv, err := adminproto.Listen(cfg.AdminSocket, adminproto.Handler(f, reload), log)
		if err != nil {
			return fmt.Errorf("listen admin socket: %w", err)
		}
		go func() {
			if err := srv.Serve(); err != nil {
				log.Error("admin socket serve failed", zap.Error(err))
			}
		}()
		defer srv.Close()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM)
	for sig := range sigCh {
		switch sig {
		case syscall.SIGHUP:
			if err := reload(); err != nil {
				log.Error("config reload failed", zap.Error(err))
			} else {
				log.Info("config reloaded")
			}
		case syscall.SIGINT, syscall.SIGTERM:
			log.Info("shutting down")
			return reg.Shutdown()
		}
	}
	return nil
}

// buildArchiveFunc constructs the cold-retention upload hook when the
// config names an archive bucket, or returns nil (archiving disabled).
func buildArchiveFunc(cfg *config.Config, log *logging.Logger) (journal.ArchiveFunc, error) {
	if cfg.Archive == nil {
		return nil, nil
	}
	up, err := archive.New(context.Background(), archive.Config{
		Bucket:      cfg.Archive.Bucket,
		Prefix:      cfg.Archive.Prefix,
		Region:      cfg.Archive.Region,
		Endpoint:    cfg.Archive.Endpoint,
		PathStyle:   cfg.Archive.PathStyle,
		DeleteLocal: cfg.Archive.DeleteLocal,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("configure archive uploader: %w", err)
	}
	return up.ArchiveFunc(), nil
}
