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
	"fmt"
	"io"
	"os"
	"time"

	"github.com/veraxis/scout/pkg/ingest"
	"github.com/veraxis/scout/pkg/runtime"
)

// IngestCmd indexes documents into the knowledge base.
type IngestCmd struct {
	Paths []string `arg:"" optional:"" name:"path" help:"Files or directories to ingest (defaults to ingest.paths from the config)." type:"path"`
	Watch bool     `help:"Watch the paths and re-ingest changed files."`
}

func (c *IngestCmd) Run(cli *CLI) error {
	ctx, cancel := signalContext()
	defer cancel()

	cfg, err := loadConfig(cli.Config)
	if err != nil {
		return err
	}
	cli.applyLogging(cfg)

	paths := c.Paths
	if len(paths) == 0 {
		paths = cfg.Ingest.Paths
	}
	if len(paths) == 0 {
		return fmt.Errorf("no paths to ingest: pass them as arguments or set ingest.paths in the config")
	}

	rt, err := runtime.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to build runtime: %w", err)
	}
	defer rt.Close()

	report, err := rt.Pipeline().Run(ctx, paths)
	if err != nil {
		return fmt.Errorf("ingest failed: %w", err)
	}
	printReport(os.Stdout, report)
	if report.Failed > 0 && !c.Watch {
		return fmt.Errorf("%d documents failed to ingest", report.Failed)
	}

	if c.Watch {
		fmt.Println("\nWatching for changes, press Ctrl+C to stop")
		watcher, err := ingest.NewWatcher(rt.Pipeline(), paths, 0)
		if err != nil {
			return fmt.Errorf("failed to start watcher: %w", err)
		}
		if err := watcher.Run(ctx); err != nil && ctx.Err() == nil {
			return fmt.Errorf("watch failed: %w", err)
		}
	}
	return nil
}

func printReport(out io.Writer, report *ingest.Report) {
	fmt.Fprintf(out, "Ingested %d documents (%d chunks) in %s\n",
		report.Ingested, report.Chunks, report.Duration.Round(time.Millisecond))
	if report.Unchanged > 0 {
		fmt.Fprintf(out, "  unchanged: %d\n", report.Unchanged)
	}
	if report.Skipped > 0 {
		fmt.Fprintf(out, "  skipped:   %d (unsupported format)\n", report.Skipped)
	}
	if report.Failed > 0 {
		fmt.Fprintf(out, "  failed:    %d\n", report.Failed)
		for _, e := range report.Errors {
			fmt.Fprintf(out, "    - %s\n", e)
		}
	}
}
