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

package ingest

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ===== Watcher =====

// Watcher re-ingests files as they change on disk. Rapid event bursts
// (editors write several times per save) are coalesced per debounce
// window before the pipeline runs.
type Watcher struct {
	pipeline *Pipeline
	watcher  *fsnotify.Watcher
	paths    []string
	debounce time.Duration
}

// NewWatcher creates a watcher over the given files and directories.
func NewWatcher(pipeline *Pipeline, paths []string, debounce time.Duration) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}
	return &Watcher{
		pipeline: pipeline,
		watcher:  fsw,
		paths:    paths,
		debounce: debounce,
	}, nil
}

// Run watches until the context is cancelled. Changed supported files
// are batched through the pipeline after the debounce window; removals
// are logged but leave the index untouched.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	for _, path := range w.paths {
		if err := w.addTree(path); err != nil {
			return err
		}
	}
	slog.Info("Watching for document changes", "paths", w.paths, "debounce", w.debounce)

	pending := make(map[string]struct{})
	flush := make(chan struct{}, 1)
	var timer *time.Timer

	schedule := func() {
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(w.debounce, func() {
			select {
			case flush <- struct{}{}:
			default:
			}
		})
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil

		case <-flush:
			batch := make([]string, 0, len(pending))
			for path := range pending {
				batch = append(batch, path)
			}
			pending = make(map[string]struct{})
			if len(batch) == 0 {
				continue
			}
			if _, err := w.pipeline.Run(ctx, batch); err != nil && ctx.Err() == nil {
				slog.Error("Watch re-ingest failed", "error", err)
			}

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&fsnotify.Chmod == fsnotify.Chmod {
				continue
			}
			if event.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
				slog.Debug("Watched file removed", "path", event.Name)
				continue
			}

			info, err := os.Stat(event.Name)
			if err != nil {
				continue
			}
			if info.IsDir() {
				if event.Op&fsnotify.Create != 0 {
					if err := w.addTree(event.Name); err != nil {
						slog.Warn("Failed to watch new directory", "path", event.Name, "error", err)
					}
				}
				continue
			}
			if w.pipeline.registry.ForPath(event.Name) == nil {
				continue
			}
			pending[event.Name] = struct{}{}
			schedule()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			slog.Error("File watcher error", "error", err)
		}
	}
}

// addTree watches a file's directory, or a directory and all its
// non-hidden subdirectories.
func (w *Watcher) addTree(root string) error {
	info, err := os.Stat(root)
	if err != nil {
		return fmt.Errorf("failed to watch %s: %w", root, err)
	}
	if !info.IsDir() {
		return w.watcher.Add(root)
	}

	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") && path != root {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			slog.Warn("Failed to watch directory", "path", path, "error", err)
		}
		return nil
	})
}
