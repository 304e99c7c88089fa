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

// Package index holds the sparse keyword index backends and the Store
// that composes embedder, vector provider, and keyword index behind
// version-aware document ingestion and search.
package index

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/veraxis/scout/pkg/config"
)

// KeywordDoc is one chunk prepared for keyword indexing.
type KeywordDoc struct {
	ChunkID    string
	DocumentID string
	Version    int
	Ordinal    int
	Page       int
	Source     string
	Content    string
}

// KeywordHit is a scored match from the keyword index. Higher scores
// are better.
type KeywordHit struct {
	ChunkID    string
	DocumentID string
	Version    int
	Ordinal    int
	Page       int
	Source     string
	Content    string
	Score      float64
}

// KeywordIndex is a sparse (lexical) index over chunks.
//
// Search filters support the keys "document_id", "source", and
// "version" (exact match); an unknown filter key is an error rather
// than a silent no-op.
type KeywordIndex interface {
	// Index adds or replaces chunks. Re-indexing an existing chunk ID
	// overwrites it.
	Index(ctx context.Context, docs []KeywordDoc) error

	// Search returns the topK best BM25 matches for the query.
	Search(ctx context.Context, query string, topK int, filters map[string]string) ([]KeywordHit, error)

	// DeleteDocument removes all chunks of the given document version.
	// A version <= 0 removes every version.
	DeleteDocument(ctx context.Context, documentID string, version int) error

	Close() error
}

// NewKeywordIndex builds a keyword index from configuration.
func NewKeywordIndex(cfg config.KeywordConfig) (KeywordIndex, error) {
	switch cfg.Backend {
	case config.KeywordBackendMemory:
		return NewMemoryKeywordIndex(cfg), nil
	case config.KeywordBackendSQLite:
		return NewSQLiteKeywordIndex(cfg)
	default:
		return nil, fmt.Errorf("unsupported keyword backend: %s", cfg.Backend)
	}
}

// tokenize lowercases text and splits it on anything that is not a
// letter or digit, mirroring what the FTS5 unicode61 tokenizer does so
// both backends see the same terms.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

// validateFilters rejects filter keys neither backend understands and
// non-numeric version values.
func validateFilters(filters map[string]string) error {
	for key, value := range filters {
		switch key {
		case "document_id", "source":
		case "version":
			if _, err := strconv.Atoi(value); err != nil {
				return fmt.Errorf("invalid version filter: %q", value)
			}
		default:
			return fmt.Errorf("unsupported keyword filter: %s", key)
		}
	}
	return nil
}
