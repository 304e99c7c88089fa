// Copyright 2025 Veraxis Labs
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

// Command scout is the CLI for the Scout research agent.
//
// Usage:
//
//	scout ingest ./docs
//	scout research "why did checkout latency regress after the v2 rollout?"
//	scout serve --config scout.yaml
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"

	"github.com/veraxis/scout"
	"github.com/veraxis/scout/pkg/config"
	"github.com/veraxis/scout/pkg/logger"
)

// CLI defines the command-line interface.
type CLI struct {
	Version  VersionCmd  `cmd:"" help:"Show version information."`
	Serve    ServeCmd    `cmd:"" help:"Start the research agent HTTP server."`
	Research ResearchCmd `cmd:"" help:"Answer a research question from the terminal."`
	Ingest   IngestCmd   `cmd:"" help:"Ingest documents into the knowledge index."`
	Validate ValidateCmd `cmd:"" help:"Validate a configuration file."`

	Config    string `help:"Path to config file." short:"c" type:"path"`
	LogLevel  string `help:"Log level: debug, info, warn, error (default: info)."`
	LogFile   string `help:"Log file path (empty = stderr)."`
	LogFormat string `help:"Log format: simple or verbose (default: simple)."`

	logs logOverrides
}

// logOverrides carries the logging settings that were set explicitly on
// the command line or in the environment. Empty fields were not given;
// the config file fills those in.
type logOverrides struct {
	Level  string
	File   string
	Format string
}

// applyLogging overlays explicit CLI/env logging settings onto the
// loaded config, so the runtime's logger setup keeps them. Priority:
// flag > env var > config file > default.
func (cli *CLI) applyLogging(cfg *config.Config) {
	if cli.logs.Level != "" {
		cfg.Logging.Level = cli.logs.Level
	}
	if cli.logs.File != "" {
		cfg.Logging.Output = cli.logs.File
	}
	if cli.logs.Format != "" {
		cfg.Logging.Format = cli.logs.Format
	}
}

// VersionCmd shows version information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	fmt.Println(scout.GetVersion().String())
	return nil
}

const (
	logLevelEnvVar  = "LOG_LEVEL"
	logFileEnvVar   = "LOG_FILE"
	logFormatEnvVar = "LOG_FORMAT"
)

// initLogger wires the process logger before any config is loaded, so
// startup messages are formatted. Commands that load a config overlay
// these settings onto it via applyLogging and the runtime re-applies
// the merged result. Returns the explicit settings and a cleanup that
// closes the log file, if one was opened.
func initLogger(cliLevel, cliFile, cliFormat string) (logOverrides, func(), error) {
	explicit := logOverrides{
		Level:  firstNonEmpty(cliLevel, os.Getenv(logLevelEnvVar)),
		File:   firstNonEmpty(cliFile, os.Getenv(logFileEnvVar)),
		Format: firstNonEmpty(cliFormat, os.Getenv(logFormatEnvVar)),
	}

	level := firstNonEmpty(explicit.Level, "info")
	format := firstNonEmpty(explicit.Format, "simple")

	parsed, err := logger.ParseLevel(level)
	if err != nil {
		return logOverrides{}, nil, fmt.Errorf("invalid log level: %w", err)
	}

	output := os.Stderr
	var cleanup func()
	if explicit.File != "" {
		f, closeFn, err := logger.OpenLogFile(explicit.File)
		if err != nil {
			return logOverrides{}, nil, fmt.Errorf("failed to open log file: %w", err)
		}
		output = f
		cleanup = closeFn
	}

	logger.Init(parsed, output, format)
	return explicit, cleanup, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// loadConfig loads the config file, or built-in defaults when no path is
// given (embedded vector store, in-memory keyword index and sessions).
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		slog.Info("No config file given, using defaults")
		return config.DefaultConfig(), nil
	}
	cfg, err := config.LoadConfigFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	slog.Info("Loaded configuration", "path", path)
	return cfg, nil
}

// signalContext returns a context that is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		slog.Info("Shutting down...")
		cancel()
	}()

	return ctx, cancel
}

func main() {
	_ = godotenv.Load()

	cli := CLI{}
	ctx := kong.Parse(&cli,
		kong.Name("scout"),
		kong.Description("Scout - an autonomous research agent over your own documents"),
		kong.UsageOnError(),
	)

	explicit, cleanup, err := initLogger(cli.LogLevel, cli.LogFile, cli.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	if cleanup != nil {
		defer cleanup()
	}
	cli.logs = explicit

	err = ctx.Run(&cli)
	ctx.FatalIfErrorf(err)
}
