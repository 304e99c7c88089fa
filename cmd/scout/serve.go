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

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"golang.org/x/term"

	"github.com/veraxis/scout/pkg/config"
	"github.com/veraxis/scout/pkg/config/provider"
	"github.com/veraxis/scout/pkg/ingest"
	"github.com/veraxis/scout/pkg/runtime"
	"github.com/veraxis/scout/pkg/server"
	"github.com/veraxis/scout/pkg/trace"
)

// ServeCmd starts the research agent HTTP server.
type ServeCmd struct {
	Host  string `help:"Bind host (overrides config)."`
	Port  int    `help:"Port to listen on (overrides config)."`
	Watch bool   `help:"Watch the config file for changes."`
}

func (c *ServeCmd) Run(cli *CLI) error {
	ctx, cancel := signalContext()
	defer cancel()

	cfg, loader, err := c.loadConfig(ctx, cli.Config)
	if err != nil {
		return err
	}
	if loader != nil {
		defer loader.Close()
	}
	cli.applyLogging(cfg)

	// CLI flags override config.
	if c.Host != "" {
		cfg.Server.Host = c.Host
	}
	if c.Port != 0 {
		cfg.Server.Port = c.Port
	}

	if loader != nil {
		go func() {
			if err := loader.Watch(ctx); err != nil && ctx.Err() == nil {
				slog.Error("Config watch error", "error", err)
			}
		}()
	}

	rt, err := runtime.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to build runtime: %w", err)
	}
	defer rt.Close()

	deps := server.Deps{
		Engine:    rt.Engine(),
		Sessions:  rt.Sessions(),
		Broadcast: rt.Broadcast(),
		Tracer:    rt.Observability().GetTracer("scout.http"),
		Metrics:   rt.Observability().GetMetrics(),
	}
	if cfg.Trace.File == nil || *cfg.Trace.File {
		deps.Traces = trace.NewReader(cfg.Trace.Dir)
	}

	srv, err := server.NewServer(cfg.Server, deps)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	// Index configured document paths asynchronously so startup is not
	// blocked by a large corpus.
	if len(cfg.Ingest.Paths) > 0 {
		go func() {
			report, err := rt.Pipeline().Run(ctx, cfg.Ingest.Paths)
			if err != nil {
				slog.Warn("Startup ingest failed", "error", err)
				return
			}
			slog.Info("Startup ingest complete",
				"ingested", report.Ingested,
				"unchanged", report.Unchanged,
				"chunks", report.Chunks)
		}()

		if cfg.Ingest.Watch {
			watcher, err := ingest.NewWatcher(rt.Pipeline(), cfg.Ingest.Paths, 0)
			if err != nil {
				slog.Warn("Failed to start ingest watcher", "error", err)
			} else {
				go func() {
					if err := watcher.Run(ctx); err != nil && ctx.Err() == nil {
						slog.Error("Ingest watcher error", "error", err)
					}
				}()
			}
		}
	}

	printServeBanner(cfg, srv.Addr(), deps.Traces != nil)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}
	slog.Info("Server stopped")
	return nil
}

// loadConfig loads the serve configuration. When --watch is set and a
// config path is given, the returned loader reloads the file on change;
// the rebuilt runtime only applies after a restart, so changes are
// surfaced as a warning.
func (c *ServeCmd) loadConfig(ctx context.Context, path string) (*config.Config, *config.Loader, error) {
	if path == "" {
		if c.Watch {
			slog.Warn("--watch requires --config, ignoring")
		}
		slog.Info("No config file given, using defaults")
		return config.DefaultConfig(), nil, nil
	}

	if !c.Watch {
		cfg, err := loadConfig(path)
		return cfg, nil, err
	}

	p, err := provider.New(provider.ProviderConfig{Type: provider.TypeFile, Path: path})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open config: %w", err)
	}
	loader := config.NewLoader(p, config.WithOnChange(func(*config.Config) {
		slog.Warn("Configuration changed on disk, restart to apply", "path", path)
	}))
	cfg, err := loader.Load(ctx)
	if err != nil {
		_ = loader.Close()
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	slog.Info("Loaded configuration", "path", path, "watch", true)
	return cfg, loader, nil
}

func printServeBanner(cfg *config.Config, addr string, traces bool) {
	green, reset := "", ""
	if term.IsTerminal(int(os.Stdout.Fd())) {
		green = "\033[38;2;16;185;129m"
		reset = "\033[0m"
	}

	fmt.Printf("\n%sScout server ready%s\n", green, reset)
	fmt.Printf("   Sessions:   http://%s/v1/sessions\n", addr)
	fmt.Printf("   Health:     http://%s/healthz\n", addr)
	fmt.Printf("   Metrics:    http://%s/metrics\n", addr)
	fmt.Printf("   LLM:        %s (%s)\n", cfg.LLM.Provider, cfg.LLM.Model)
	fmt.Printf("   Vector:     %s\n", cfg.Vector.Provider)
	fmt.Printf("   Store:      %s\n", cfg.Session.Store)
	if traces {
		fmt.Printf("   Traces:     %s\n", cfg.Trace.Dir)
	}
	if len(cfg.Ingest.Paths) > 0 {
		watchStatus := "off"
		if cfg.Ingest.Watch {
			watchStatus = "on"
		}
		fmt.Printf("   Corpus:     %v (watch=%s)\n", cfg.Ingest.Paths, watchStatus)
	}
	fmt.Println("\nPress Ctrl+C to stop")
}
