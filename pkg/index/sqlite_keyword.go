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

package index

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/veraxis/scout/pkg/config"
	"github.com/veraxis/scout/pkg/utils"
)

// ===== SQLite Keyword Index =====

// Schema for the FTS5 keyword index. Only content is tokenized; the
// remaining columns are stored for filtering and hit reconstruction.
const createChunksFTSSQL = `
CREATE VIRTUAL TABLE IF NOT EXISTS chunks_fts USING fts5(
	chunk_id UNINDEXED,
	document_id UNINDEXED,
	version UNINDEXED,
	ordinal UNINDEXED,
	page UNINDEXED,
	source UNINDEXED,
	content,
	tokenize = 'unicode61'
)`

// SQLiteKeywordIndex persists the keyword index in a SQLite FTS5 table
// and ranks matches with the built-in bm25() function.
type SQLiteKeywordIndex struct {
	db *sql.DB
}

// Verify interface compliance
var _ KeywordIndex = (*SQLiteKeywordIndex)(nil)

// NewSQLiteKeywordIndex opens (or creates) the index database at
// cfg.Path. The path ":memory:" keeps the index in RAM.
func NewSQLiteKeywordIndex(cfg config.KeywordConfig) (*SQLiteKeywordIndex, error) {
	if err := utils.EnsureParentDir(cfg.Path); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite3", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open keyword database at %s: %w", cfg.Path, err)
	}

	// A single connection serializes writers (avoiding SQLITE_BUSY)
	// and keeps an in-memory database from being dropped between
	// pooled connections.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(createChunksFTSSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create keyword schema: %w", err)
	}

	return &SQLiteKeywordIndex{db: db}, nil
}

// Index adds or replaces chunks in a single transaction. Existing rows
// for a chunk ID are deleted first so re-ingestion stays idempotent.
func (x *SQLiteKeywordIndex) Index(ctx context.Context, docs []KeywordDoc) error {
	if len(docs) == 0 {
		return nil
	}

	tx, err := x.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() // Rollback if not committed

	for _, doc := range docs {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM chunks_fts WHERE chunk_id = ?`, doc.ChunkID); err != nil {
			return fmt.Errorf("failed to replace chunk %s: %w", doc.ChunkID, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO chunks_fts (chunk_id, document_id, version, ordinal, page, source, content)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			doc.ChunkID, doc.DocumentID, doc.Version, doc.Ordinal, doc.Page, doc.Source, doc.Content); err != nil {
			return fmt.Errorf("failed to index chunk %s: %w", doc.ChunkID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit keyword index: %w", err)
	}
	return nil
}

// Search runs an FTS5 MATCH query ranked by bm25().
func (x *SQLiteKeywordIndex) Search(ctx context.Context, query string, topK int, filters map[string]string) ([]KeywordHit, error) {
	if err := validateFilters(filters); err != nil {
		return nil, err
	}

	match := buildMatchExpr(query)
	if match == "" {
		return nil, nil
	}
	if topK <= 0 {
		topK = 10
	}

	querySQL := `SELECT chunk_id, document_id, version, ordinal, page, source, content, bm25(chunks_fts) AS rank
		FROM chunks_fts WHERE chunks_fts MATCH ?`
	args := []any{match}

	for _, key := range []string{"document_id", "source", "version"} {
		value, ok := filters[key]
		if !ok {
			continue
		}
		querySQL += fmt.Sprintf(" AND %s = ?", key)
		if key == "version" {
			// FTS5 columns have no type affinity, so the bound value
			// must match the stored integer type exactly.
			n, _ := strconv.Atoi(value)
			args = append(args, n)
		} else {
			args = append(args, value)
		}
	}

	querySQL += " ORDER BY rank LIMIT ?"
	args = append(args, topK)

	rows, err := x.db.QueryContext(ctx, querySQL, args...)
	if err != nil {
		return nil, fmt.Errorf("keyword search failed: %w", err)
	}
	defer rows.Close()

	var hits []KeywordHit
	for rows.Next() {
		var hit KeywordHit
		var rank float64
		if err := rows.Scan(&hit.ChunkID, &hit.DocumentID, &hit.Version, &hit.Ordinal,
			&hit.Page, &hit.Source, &hit.Content, &rank); err != nil {
			return nil, fmt.Errorf("failed to scan keyword hit: %w", err)
		}
		// bm25() reports better matches as more negative values.
		hit.Score = -rank
		hits = append(hits, hit)
	}
	return hits, rows.Err()
}

// DeleteDocument removes all chunks of the document, or only one
// version when version is positive.
func (x *SQLiteKeywordIndex) DeleteDocument(ctx context.Context, documentID string, version int) error {
	deleteSQL := `DELETE FROM chunks_fts WHERE document_id = ?`
	args := []any{documentID}
	if version > 0 {
		deleteSQL += ` AND version = ?`
		args = append(args, version)
	}
	if _, err := x.db.ExecContext(ctx, deleteSQL, args...); err != nil {
		return fmt.Errorf("failed to delete document %s: %w", documentID, err)
	}
	return nil
}

// Close closes the underlying database.
func (x *SQLiteKeywordIndex) Close() error {
	return x.db.Close()
}

// buildMatchExpr turns free text into an FTS5 OR expression of quoted
// terms. Tokenizing first strips anything that could act as FTS5 query
// syntax, so raw user input cannot inject operators.
func buildMatchExpr(query string) string {
	terms := tokenize(query)
	if len(terms) == 0 {
		return ""
	}
	quoted := make([]string, len(terms))
	for i, term := range terms {
		quoted[i] = `"` + term + `"`
	}
	return strings.Join(quoted, " OR ")
}
