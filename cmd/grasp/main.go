// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Command grasp is the CLI for GRASP.
//
// Usage:
//
//	grasp serve --config config.yaml
//	grasp validate config.yaml
//	grasp version
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/opengrasp/grasp/pkg/config"
	"github.com/opengrasp/grasp/pkg/llms"
	"github.com/opengrasp/grasp/pkg/logger"
	"github.com/opengrasp/grasp/pkg/server"
)

// CLI defines the command-line interface.
type CLI struct {
	Serve    ServeCmd    `cmd:"" help:"Start the GRASP HTTP/WS server."`
	Validate ValidateCmd `cmd:"" help:"Validate a configuration file."`
	Version  VersionCmd  `cmd:"" help:"Show version information."`

	LogLevel  string `help:"Log level (debug, info, warn, error)." default:"info"`
	LogFile   string `help:"Log file path (empty = stderr)."`
	LogFormat string `help:"Log format (simple or verbose)." default:"simple"`
}

// VersionCmd shows version information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	version := "dev"
	if info, ok := debug.ReadBuildInfo(); ok {
		if info.Main.Version != "(devel)" && info.Main.Version != "" {
			version = info.Main.Version
		}
	}
	fmt.Printf("grasp %s\n", version)
	return nil
}

// ServeCmd starts the GRASP server.
type ServeCmd struct {
	Config string `short:"c" help:"Path to config file." type:"path" required:""`
	Port   int    `help:"Override server.port from the config file."`
	Watch  bool   `help:"Re-load and re-validate the config file when it changes; the running server keeps the configuration it started with."`
}

func (c *ServeCmd) Run(cli *CLI) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		slog.Info("shutting down")
		cancel()
	}()

	if err := config.LoadEnvFiles(); err != nil {
		slog.Warn("failed to load .env files", "error", err)
	}

	cfg, loader, err := config.LoadConfigFile(ctx, c.Config)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	defer loader.Close()

	if c.Port != 0 {
		cfg.Server.Port = c.Port
	}

	bridge := llms.NewBridge()
	managers, err := server.BuildManagers(cfg)
	if err != nil {
		return fmt.Errorf("build knowledge graph managers: %w", err)
	}

	srv, err := server.New(cfg, bridge, managers, nil, logger.GetLogger())
	if err != nil {
		return fmt.Errorf("build server: %w", err)
	}

	if c.Watch {
		go func() {
			if err := loader.Watch(ctx); err != nil && ctx.Err() == nil {
				slog.Error("config watch stopped", "error", err)
			}
		}()
	}

	return srv.ListenAndServe(ctx)
}

// ValidateCmd validates a configuration file.
type ValidateCmd struct {
	Config string `arg:"" name:"config" help:"Configuration file path." type:"path"`
}

func (c *ValidateCmd) Run(cli *CLI) error {
	ctx := context.Background()
	cfg, loader, err := config.LoadConfigFile(ctx, c.Config)
	if err != nil {
		return fmt.Errorf("%s: %w", c.Config, err)
	}
	defer loader.Close()

	fmt.Printf("%s: valid (model=%s, knowledge_graphs=%v)\n", c.Config, cfg.Model, cfg.KgNames())
	return nil
}

func main() {
	cli := CLI{}
	ctx := kong.Parse(&cli,
		kong.Name("grasp"),
		kong.Description("GRASP - agentic orchestration over RDF knowledge graphs"),
		kong.UsageOnError(),
	)

	level, err := logger.ParseLevel(cli.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid log level %q: %v\n", cli.LogLevel, err)
		os.Exit(1)
	}

	out := os.Stderr
	if cli.LogFile != "" {
		f, cleanup, err := logger.OpenLogFile(cli.LogFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to open log file: %v\n", err)
			os.Exit(1)
		}
		defer cleanup()
		out = f
	}
	logger.Init(level, out, cli.LogFormat)

	if err := ctx.Run(&cli); err != nil {
		slog.Error("grasp exited with error", "error", err)
		os.Exit(1)
	}
}
