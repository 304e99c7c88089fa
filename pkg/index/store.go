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
	"fmt"
	"sort"
	"strconv"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/veraxis/scout/pkg/embedder"
	"github.com/veraxis/scout/pkg/model"
	"github.com/veraxis/scout/pkg/observability"
	"github.com/veraxis/scout/pkg/vector"
)

// ===== Document Store =====

// Hit is a scored chunk returned by either search path, with enough
// metadata to build citations without another lookup.
type Hit struct {
	ChunkID    string
	DocumentID string
	Version    int
	Ordinal    int
	Content    string
	Source     string
	Page       int
	Score      float64
}

// Store composes the embedder, the dense vector provider, and the
// sparse keyword index behind version-aware ingestion and search.
//
// Ingestion writes all backend rows for a new document version first
// and then publishes the version with a single map swap, so searches
// see either the entire old version or the entire new one, never a
// mix. Superseded rows stay in the backends until Prune runs, which
// lets searches that started before the swap finish against intact
// data.
type Store struct {
	embedder   embedder.Embedder
	vector     vector.Provider
	keyword    KeywordIndex
	collection string

	// ingestMu serializes writers; searches only take mu.
	ingestMu sync.Mutex

	mu     sync.RWMutex
	active map[string]int
	docs   map[string]*model.Document
	chunks map[string]*model.Chunk
	stale  []staleVersion
}

type staleVersion struct {
	DocumentID string
	Version    int
}

// NewStore creates a Store over the given backends. The collection
// name scopes all vector rows.
func NewStore(emb embedder.Embedder, vec vector.Provider, keyword KeywordIndex, collection string) *Store {
	return &Store{
		embedder:   emb,
		vector:     vec,
		keyword:    keyword,
		collection: collection,
		active:     make(map[string]int),
		docs:       make(map[string]*model.Document),
		chunks:     make(map[string]*model.Chunk),
	}
}

// IngestDocument embeds and indexes all chunks of doc, then atomically
// makes doc.Version the active version for doc.ID. The document is
// treated as immutable after this call.
func (s *Store) IngestDocument(ctx context.Context, doc *model.Document) error {
	if doc == nil || doc.ID == "" {
		return fmt.Errorf("document must have an ID")
	}

	tracer := observability.GetTracer("scout.index")
	ctx, span := tracer.Start(ctx, observability.SpanIngest,
		trace.WithAttributes(
			attribute.String(observability.AttrDocumentID, doc.ID),
			attribute.Int("document.version", doc.Version),
			attribute.Int("document.chunks", len(doc.Chunks)),
		),
	)
	defer span.End()

	s.ingestMu.Lock()
	defer s.ingestMu.Unlock()

	err := s.ingest(ctx, doc)
	observability.GetGlobalMetrics().RecordIngest(ctx, doc.Type, len(doc.Chunks), err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	span.SetStatus(codes.Ok, "success")
	return nil
}

func (s *Store) ingest(ctx context.Context, doc *model.Document) error {
	texts := make([]string, len(doc.Chunks))
	for i := range doc.Chunks {
		texts[i] = doc.Chunks[i].Content
	}

	var vectors [][]float32
	if len(texts) > 0 {
		var err error
		vectors, err = s.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return fmt.Errorf("failed to embed document %s: %w", doc.ID, err)
		}
		if len(vectors) != len(doc.Chunks) {
			return fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(doc.Chunks))
		}
	}

	keywordDocs := make([]KeywordDoc, 0, len(doc.Chunks))
	for i := range doc.Chunks {
		chunk := &doc.Chunks[i]

		// All metadata values go in as strings so version filters
		// behave identically across vector backends.
		metadata := map[string]any{
			"content":     chunk.Content,
			"document_id": chunk.DocumentID,
			"version":     strconv.Itoa(doc.Version),
			"ordinal":     strconv.Itoa(chunk.Ordinal),
			"page":        strconv.Itoa(chunk.Metadata.Page),
			"source":      doc.Source,
		}
		if err := s.vector.Upsert(ctx, s.collection, chunk.ID, vectors[i], metadata); err != nil {
			return fmt.Errorf("failed to store vector for chunk %s: %w", chunk.ID, err)
		}

		keywordDocs = append(keywordDocs, KeywordDoc{
			ChunkID:    chunk.ID,
			DocumentID: chunk.DocumentID,
			Version:    doc.Version,
			Ordinal:    chunk.Ordinal,
			Page:       chunk.Metadata.Page,
			Source:     doc.Source,
			Content:    chunk.Content,
		})
	}

	if len(keywordDocs) > 0 {
		if err := s.keyword.Index(ctx, keywordDocs); err != nil {
			return fmt.Errorf("failed to index keywords for document %s: %w", doc.ID, err)
		}
	}

	// Publish. One write-lock swap makes the new version visible to
	// every subsequent search at once.
	s.mu.Lock()
	if old, ok := s.docs[doc.ID]; ok {
		if old.Version != doc.Version {
			s.stale = append(s.stale, staleVersion{DocumentID: doc.ID, Version: old.Version})
		}
		for i := range old.Chunks {
			delete(s.chunks, old.Chunks[i].ID)
		}
	}
	s.active[doc.ID] = doc.Version
	s.docs[doc.ID] = doc
	for i := range doc.Chunks {
		s.chunks[doc.Chunks[i].ID] = &doc.Chunks[i]
	}
	s.mu.Unlock()

	return nil
}

// SearchVector embeds the query and returns dense matches for active
// document versions only. Filter keys follow the keyword index
// conventions (document_id, source, version).
func (s *Store) SearchVector(ctx context.Context, query string, topK int, filters map[string]string) ([]Hit, error) {
	queryVec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	var filter map[string]any
	if len(filters) > 0 {
		filter = make(map[string]any, len(filters))
		for key, value := range filters {
			filter[key] = value
		}
	}

	results, err := s.vector.SearchWithFilter(ctx, s.collection, queryVec, topK, filter)
	if err != nil {
		return nil, err
	}

	hits := make([]Hit, 0, len(results))
	for _, r := range results {
		hits = append(hits, Hit{
			ChunkID:    r.ID,
			DocumentID: metaString(r.Metadata, "document_id"),
			Version:    metaInt(r.Metadata, "version"),
			Ordinal:    metaInt(r.Metadata, "ordinal"),
			Content:    r.Content,
			Source:     metaString(r.Metadata, "source"),
			Page:       metaInt(r.Metadata, "page"),
			Score:      float64(r.Score),
		})
	}
	return s.filterActive(hits), nil
}

// SearchKeyword returns sparse BM25 matches for active document
// versions only.
func (s *Store) SearchKeyword(ctx context.Context, query string, topK int, filters map[string]string) ([]Hit, error) {
	kwHits, err := s.keyword.Search(ctx, query, topK, filters)
	if err != nil {
		return nil, err
	}

	hits := make([]Hit, 0, len(kwHits))
	for _, h := range kwHits {
		hits = append(hits, Hit{
			ChunkID:    h.ChunkID,
			DocumentID: h.DocumentID,
			Version:    h.Version,
			Ordinal:    h.Ordinal,
			Content:    h.Content,
			Source:     h.Source,
			Page:       h.Page,
			Score:      h.Score,
		})
	}
	return s.filterActive(hits), nil
}

// filterActive drops hits whose version is not the active one for
// their document. Documents this process has never tracked (a
// persisted store reopened before any re-ingest) keep only the highest
// version present in the result set.
func (s *Store) filterActive(hits []Hit) []Hit {
	s.mu.RLock()
	snapshot := make(map[string]int, len(s.active))
	for id, version := range s.active {
		snapshot[id] = version
	}
	s.mu.RUnlock()

	maxSeen := make(map[string]int)
	for _, h := range hits {
		if _, tracked := snapshot[h.DocumentID]; tracked {
			continue
		}
		if h.Version > maxSeen[h.DocumentID] {
			maxSeen[h.DocumentID] = h.Version
		}
	}

	out := hits[:0]
	for _, h := range hits {
		if want, tracked := snapshot[h.DocumentID]; tracked {
			if h.Version == want {
				out = append(out, h)
			}
			continue
		}
		if h.Version == maxSeen[h.DocumentID] {
			out = append(out, h)
		}
	}
	return out
}

// Resolve returns the chunk for an active-version chunk ID.
func (s *Store) Resolve(chunkID string) (*model.Chunk, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	chunk, ok := s.chunks[chunkID]
	return chunk, ok
}

// ActiveVersion returns the active version for a document, or 0 when
// the document is unknown.
func (s *Store) ActiveVersion(documentID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active[documentID]
}

// Document returns the active document by ID.
func (s *Store) Document(documentID string) (*model.Document, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[documentID]
	return doc, ok
}

// Documents lists all active documents ordered by source path.
func (s *Store) Documents() []*model.Document {
	s.mu.RLock()
	defer s.mu.RUnlock()

	docs := make([]*model.Document, 0, len(s.docs))
	for _, doc := range s.docs {
		docs = append(docs, doc)
	}
	sort.Slice(docs, func(i, j int) bool {
		return docs[i].Source < docs[j].Source
	})
	return docs
}

// Prune deletes superseded document versions from both backends.
// Deferred from ingestion so searches that started against the prior
// version finish against intact data. On error the batch is re-queued;
// deletes are idempotent, so retrying already-pruned versions is safe.
func (s *Store) Prune(ctx context.Context) error {
	s.mu.Lock()
	stale := s.stale
	s.stale = nil
	s.mu.Unlock()

	var firstErr error
	for _, sv := range stale {
		filter := map[string]any{
			"document_id": sv.DocumentID,
			"version":     strconv.Itoa(sv.Version),
		}
		if err := s.vector.DeleteByFilter(ctx, s.collection, filter); err != nil && firstErr == nil {
			firstErr = err
		}
		if err := s.keyword.DeleteDocument(ctx, sv.DocumentID, sv.Version); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if firstErr != nil {
		s.mu.Lock()
		s.stale = append(stale, s.stale...)
		s.mu.Unlock()
		return fmt.Errorf("failed to prune stale versions: %w", firstErr)
	}
	return nil
}

// StaleCount reports how many superseded versions await pruning.
func (s *Store) StaleCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.stale)
}

// Close releases the keyword index, the vector provider, and the
// embedder. The first error wins.
func (s *Store) Close() error {
	var firstErr error
	if err := s.keyword.Close(); err != nil {
		firstErr = err
	}
	if err := s.vector.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := s.embedder.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// metaString reads a string metadata value, tolerating absence.
func metaString(metadata map[string]any, key string) string {
	if v, ok := metadata[key].(string); ok {
		return v
	}
	return ""
}

// metaInt reads an integer metadata value. Backends round-trip
// metadata differently (strings, int64, float64), so all are accepted.
func metaInt(metadata map[string]any, key string) int {
	switch v := metadata[key].(type) {
	case string:
		n, _ := strconv.Atoi(v)
		return n
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}
