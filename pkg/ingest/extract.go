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

// Package ingest turns source files into indexed documents: extraction
// per format, sanitization, token-aware chunking, and the pipeline and
// watcher that feed the document store.
package ingest

import (
	"context"
	"fmt"
	"html"
	"os"
	"path/filepath"
	"strings"
)

// ===== Extraction =====

// ExtractedPage is one page-like unit of a document. Formats without
// pages produce a single page numbered 0; spreadsheets produce one per
// sheet with the sheet name as Section.
type ExtractedPage struct {
	Number  int
	Section string
	Text    string
}

// ExtractResult is the format-neutral output of an extractor.
type ExtractResult struct {
	Pages    []ExtractedPage
	Type     string
	Metadata map[string]string
}

// Extractor extracts text from one family of file formats.
type Extractor interface {
	// Supports reports whether the extractor handles the extension
	// (lowercase, with leading dot).
	Supports(ext string) bool

	// Extract reads the file and returns its text content.
	Extract(ctx context.Context, path string) (*ExtractResult, error)
}

// Registry routes files to extractors in registration order.
type Registry struct {
	extractors []Extractor
}

// NewRegistry creates a registry with all built-in extractors.
func NewRegistry() *Registry {
	return &Registry{
		extractors: []Extractor{
			&PDFExtractor{},
			&OfficeExtractor{},
			&HTMLExtractor{},
			&TextExtractor{},
		},
	}
}

// ForPath returns the extractor for the file, or nil when the format is
// not supported.
func (r *Registry) ForPath(path string) Extractor {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range r.extractors {
		if e.Supports(ext) {
			return e
		}
	}
	return nil
}

// SupportedExtensions lists every extension the registry can handle.
func (r *Registry) SupportedExtensions() []string {
	var exts []string
	for _, candidate := range []string{".pdf", ".docx", ".xlsx", ".html", ".htm", ".md", ".markdown", ".txt", ".text"} {
		for _, e := range r.extractors {
			if e.Supports(candidate) {
				exts = append(exts, candidate)
				break
			}
		}
	}
	return exts
}

// ===== Text Extractor =====

// TextExtractor handles plain text and markdown files.
type TextExtractor struct{}

func (e *TextExtractor) Supports(ext string) bool {
	switch ext {
	case ".txt", ".text", ".md", ".markdown":
		return true
	}
	return false
}

func (e *TextExtractor) Extract(_ context.Context, path string) (*ExtractResult, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	docType := "text"
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown":
		docType = "markdown"
	}

	return &ExtractResult{
		Pages: []ExtractedPage{{Text: string(content)}},
		Type:  docType,
		Metadata: map[string]string{
			"title": filepath.Base(path),
		},
	}, nil
}

// ===== HTML Extractor =====

// HTMLExtractor strips tags from HTML files and decodes entities.
type HTMLExtractor struct{}

func (e *HTMLExtractor) Supports(ext string) bool {
	return ext == ".html" || ext == ".htm"
}

func (e *HTMLExtractor) Extract(_ context.Context, path string) (*ExtractResult, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	return &ExtractResult{
		Pages: []ExtractedPage{{Text: stripHTML(string(content))}},
		Type:  "html",
		Metadata: map[string]string{
			"title": filepath.Base(path),
		},
	}, nil
}

// stripHTML removes tags, drops script and style bodies, and decodes
// entities. Block-level tags become newlines so paragraph structure
// survives for chunking.
func stripHTML(input string) string {
	var out strings.Builder
	out.Grow(len(input))

	inTag := false
	var tagName strings.Builder
	skipUntil := "" // closing tag whose body is being discarded

	flushTag := func() {
		raw := strings.TrimSpace(tagName.String())
		tagName.Reset()
		if raw == "" {
			return
		}
		closing := strings.HasPrefix(raw, "/")
		name := strings.ToLower(strings.TrimPrefix(raw, "/"))
		if i := strings.IndexAny(name, " \t\n/"); i >= 0 {
			name = name[:i]
		}

		if skipUntil != "" {
			if closing && name == skipUntil {
				skipUntil = ""
			}
			return
		}
		switch name {
		case "script", "style":
			if !closing {
				skipUntil = name
			}
		case "p", "div", "br", "li", "tr", "h1", "h2", "h3", "h4", "h5", "h6", "table", "ul", "ol", "blockquote", "pre":
			out.WriteByte('\n')
		}
	}

	for _, r := range input {
		switch {
		case inTag:
			if r == '>' {
				inTag = false
				flushTag()
			} else {
				tagName.WriteRune(r)
			}
		case r == '<':
			inTag = true
		case skipUntil == "":
			out.WriteRune(r)
		}
	}

	return html.UnescapeString(out.String())
}
