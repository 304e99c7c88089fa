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
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/veraxis/scout/pkg/config"
	"github.com/veraxis/scout/pkg/index"
	"github.com/veraxis/scout/pkg/model"
)

// ===== Pipeline =====

// Pipeline walks source paths, extracts and chunks their content, and
// feeds versioned documents into the store.
//
// Document identity is the source path (hashed), so a changed file
// becomes a new version of the same document. The content hash of the
// extracted text makes re-runs idempotent: an unchanged file is
// skipped without touching the store.
type Pipeline struct {
	store    *index.Store
	registry *Registry
	chunker  Chunker

	mu     sync.Mutex
	hashes map[string]string
}

// Report summarizes one pipeline run.
type Report struct {
	Ingested  int
	Unchanged int
	Skipped   int
	Failed    int
	Chunks    int
	Errors    []string
	Duration  time.Duration
}

type fileOutcome int

const (
	outcomeIngested fileOutcome = iota
	outcomeUnchanged
	outcomeUnsupported
)

// NewPipeline creates a pipeline over the given store.
func NewPipeline(store *index.Store, cfg config.IngestConfig) *Pipeline {
	return &Pipeline{
		store:    store,
		registry: NewRegistry(),
		chunker:  NewChunker(cfg),
		hashes:   make(map[string]string),
	}
}

// Run ingests the given files and directories (recursively). Per-file
// failures are collected in the report rather than aborting the batch;
// superseded document versions are pruned at the end.
func (p *Pipeline) Run(ctx context.Context, paths []string) (*Report, error) {
	start := time.Now()
	report := &Report{}

	var files []string
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			report.Failed++
			report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", path, err))
			continue
		}
		if !info.IsDir() {
			files = append(files, path)
			continue
		}
		walkErr := filepath.WalkDir(path, func(sub string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if strings.HasPrefix(d.Name(), ".") && sub != path {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if !d.IsDir() {
				files = append(files, sub)
			}
			return nil
		})
		if walkErr != nil {
			report.Failed++
			report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", path, walkErr))
		}
	}

	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		outcome, chunks, err := p.ingestFile(ctx, file)
		switch {
		case err != nil:
			report.Failed++
			report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", file, err))
			slog.Warn("Failed to ingest file", "path", file, "error", err)
		case outcome == outcomeIngested:
			report.Ingested++
			report.Chunks += chunks
		case outcome == outcomeUnchanged:
			report.Unchanged++
		case outcome == outcomeUnsupported:
			report.Skipped++
		}
	}

	if err := p.store.Prune(ctx); err != nil {
		slog.Warn("Failed to prune superseded versions", "error", err)
	}

	report.Duration = time.Since(start)
	slog.Info("Ingest run complete",
		"ingested", report.Ingested,
		"unchanged", report.Unchanged,
		"skipped", report.Skipped,
		"failed", report.Failed,
		"chunks", report.Chunks,
		"duration", report.Duration)
	return report, nil
}

func (p *Pipeline) ingestFile(ctx context.Context, path string) (fileOutcome, int, error) {
	extractor := p.registry.ForPath(path)
	if extractor == nil {
		return outcomeUnsupported, 0, nil
	}

	result, err := extractor.Extract(ctx, path)
	if err != nil {
		return 0, 0, err
	}

	pages := make([]ExtractedPage, 0, len(result.Pages))
	var hashInput strings.Builder
	for _, page := range result.Pages {
		page.Text = Sanitize(page.Text)
		if page.Text == "" {
			continue
		}
		pages = append(pages, page)
		hashInput.WriteString(page.Text)
		hashInput.WriteByte(0)
	}
	if len(pages) == 0 {
		return 0, 0, fmt.Errorf("no extractable text")
	}

	docID := documentID(path)
	sum := sha256.Sum256([]byte(hashInput.String()))
	contentHash := hex.EncodeToString(sum[:])

	p.mu.Lock()
	previous := p.hashes[docID]
	p.mu.Unlock()
	if previous == contentHash {
		return outcomeUnchanged, 0, nil
	}

	version := p.store.ActiveVersion(docID) + 1

	doc := &model.Document{
		ID:         docID,
		Source:     path,
		Type:       result.Type,
		Version:    version,
		Metadata:   result.Metadata,
		IngestedAt: time.Now(),
	}
	if doc.Metadata == nil {
		doc.Metadata = make(map[string]string)
	}
	doc.Metadata["content_hash"] = contentHash

	ordinal := 0
	for _, page := range pages {
		headings := markdownHeadings(page.Text, result.Type)
		for _, piece := range p.chunker.Chunk(page.Text) {
			section := page.Section
			if section == "" {
				section = headingAt(headings, piece.Offset)
			}
			doc.Chunks = append(doc.Chunks, model.Chunk{
				ID:         fmt.Sprintf("%s-v%d-c%d", docID, version, ordinal),
				DocumentID: docID,
				Ordinal:    ordinal,
				Content:    piece.Content,
				Metadata: model.ChunkMetadata{
					Page:       page.Number,
					Section:    section,
					Offset:     piece.Offset,
					TokenCount: piece.TokenCount,
				},
			})
			ordinal++
		}
	}
	if len(doc.Chunks) == 0 {
		return 0, 0, fmt.Errorf("no chunks produced")
	}

	if err := p.store.IngestDocument(ctx, doc); err != nil {
		return 0, 0, err
	}

	p.mu.Lock()
	p.hashes[docID] = contentHash
	p.mu.Unlock()

	slog.Info("Ingested document",
		"path", path,
		"document_id", docID,
		"version", version,
		"chunks", len(doc.Chunks))
	return outcomeIngested, len(doc.Chunks), nil
}

// documentID derives a stable document ID from the absolute source
// path.
func documentID(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	sum := sha256.Sum256([]byte(abs))
	return hex.EncodeToString(sum[:8])
}

// ===== Markdown Sections =====

type headingMark struct {
	offset int
	title  string
}

// markdownHeadings records the rune offset of every markdown heading so
// chunks can carry the section they fall under.
func markdownHeadings(text, docType string) []headingMark {
	if docType != "markdown" {
		return nil
	}
	var marks []headingMark
	offset := 0
	for _, line := range strings.Split(text, "\n") {
		stripped := strings.TrimLeft(line, "#")
		if len(stripped) < len(line) && strings.HasPrefix(stripped, " ") {
			marks = append(marks, headingMark{offset: offset, title: strings.TrimSpace(stripped)})
		}
		offset += len([]rune(line)) + 1
	}
	return marks
}

// headingAt returns the title of the last heading at or before offset.
func headingAt(marks []headingMark, offset int) string {
	section := ""
	for _, m := range marks {
		if m.offset > offset {
			break
		}
		section = m.title
	}
	return section
}
