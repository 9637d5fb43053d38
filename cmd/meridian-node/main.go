// Package main provides the entry point for meridian-node.
//
// meridian-node is the per-process datastore node binary: it reads a
// node configuration file, joins the gossip cluster, and serves the
// RPC handler registry described by SPEC_FULL.md §4.9 until it
// receives a termination signal.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/meridiankv/meridian/internal/config"
	"github.com/meridiankv/meridian/internal/infra/buildinfo"
	"github.com/meridiankv/meridian/internal/infra/shutdown"
	"github.com/meridiankv/meridian/internal/node"
	"github.com/meridiankv/meridian/internal/telemetry/logger"
)

const shutdownTimeout = 15 * time.Second

func main() {
	app := &cli.App{
		Name:      "meridian-node",
		Usage:     "run a meridian cluster node",
		Version:   buildinfo.String(),
		ArgsUsage: "<config-file>",
		Action:    run,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	configFile := c.Args().First()

	cfg, err := config.NewLoader().Load(configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Format: "json",
		Fields: map[string]any{
			"node_id": cfg.NodeID,
			"cluster": cfg.ClusterName,
		},
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	logger.SetDefault(log)

	log.Info("starting meridian-node",
		"version", buildinfo.Version,
		"commit", buildinfo.Commit,
		"config", configFile)

	n, err := node.New(cfg, log)
	if err != nil {
		return fmt.Errorf("init node: %w", err)
	}

	ctx := context.Background()
	if err := n.Start(ctx); err != nil {
		return fmt.Errorf("start node: %w", err)
	}

	if err := n.Bootstrap(); err != nil {
		log.Warn("bootstrap did not complete cleanly", "error", err)
	}

	shutdownHandler := shutdown.NewHandler(shutdownTimeout, log)
	shutdownHandler.OnShutdown("node", n.Shutdown)

	log.Info("node started, press Ctrl+C to stop")
	if err := shutdownHandler.Wait(); err != nil {
		log.Error("shutdown error", "error", err)
		return err
	}

	log.Info("node stopped gracefully")
	return nil
}
