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
	"math"
	"sort"
	"strconv"
	"sync"

	"github.com/veraxis/scout/pkg/config"
)

// ===== Memory Keyword Index =====

// MemoryKeywordIndex is a process-local BM25 index. It keeps term
// frequencies per chunk and document frequencies across the corpus,
// and scores queries with the Okapi BM25 formula.
type MemoryKeywordIndex struct {
	k1 float64
	b  float64

	mu       sync.RWMutex
	entries  map[string]*memoryEntry
	df       map[string]int
	totalLen int
}

type memoryEntry struct {
	doc    KeywordDoc
	terms  map[string]int
	length int
}

// Verify interface compliance
var _ KeywordIndex = (*MemoryKeywordIndex)(nil)

// NewMemoryKeywordIndex creates an empty in-memory index.
func NewMemoryKeywordIndex(cfg config.KeywordConfig) *MemoryKeywordIndex {
	k1, b := cfg.K1, cfg.B
	if k1 <= 0 {
		k1 = 1.2
	}
	if b <= 0 {
		b = 0.75
	}
	return &MemoryKeywordIndex{
		k1:      k1,
		b:       b,
		entries: make(map[string]*memoryEntry),
		df:      make(map[string]int),
	}
}

// Index adds or replaces chunks. Replacing first removes the old
// chunk's term contributions so document frequencies stay exact.
func (x *MemoryKeywordIndex) Index(_ context.Context, docs []KeywordDoc) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	for _, doc := range docs {
		if _, exists := x.entries[doc.ChunkID]; exists {
			x.removeLocked(doc.ChunkID)
		}

		terms := make(map[string]int)
		tokens := tokenize(doc.Content)
		for _, tok := range tokens {
			terms[tok]++
		}

		x.entries[doc.ChunkID] = &memoryEntry{
			doc:    doc,
			terms:  terms,
			length: len(tokens),
		}
		for term := range terms {
			x.df[term]++
		}
		x.totalLen += len(tokens)
	}

	return nil
}

// Search scores every chunk against the query terms and returns the
// topK best. Equal scores order by chunk ID so results are stable.
func (x *MemoryKeywordIndex) Search(_ context.Context, query string, topK int, filters map[string]string) ([]KeywordHit, error) {
	if err := validateFilters(filters); err != nil {
		return nil, err
	}

	querySet := make(map[string]struct{})
	for _, tok := range tokenize(query) {
		querySet[tok] = struct{}{}
	}

	x.mu.RLock()
	defer x.mu.RUnlock()

	n := len(x.entries)
	if n == 0 || len(querySet) == 0 {
		return nil, nil
	}
	avgLen := float64(x.totalLen) / float64(n)
	if avgLen == 0 {
		avgLen = 1
	}

	var hits []KeywordHit
	for _, entry := range x.entries {
		if !matchesFilters(entry.doc, filters) {
			continue
		}
		score := x.scoreEntry(entry, querySet, n, avgLen)
		if score <= 0 {
			continue
		}
		hit := hitFromDoc(entry.doc)
		hit.Score = score
		hits = append(hits, hit)
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ChunkID < hits[j].ChunkID
	})
	if topK > 0 && len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

// scoreEntry computes Okapi BM25 over the query terms present in the
// entry. Callers hold at least a read lock.
func (x *MemoryKeywordIndex) scoreEntry(entry *memoryEntry, querySet map[string]struct{}, n int, avgLen float64) float64 {
	var score float64
	for term := range querySet {
		tf := float64(entry.terms[term])
		if tf == 0 {
			continue
		}
		df := float64(x.df[term])
		idf := math.Log(1 + (float64(n)-df+0.5)/(df+0.5))
		denom := tf + x.k1*(1-x.b+x.b*float64(entry.length)/avgLen)
		score += idf * (tf * (x.k1 + 1)) / denom
	}
	return score
}

// DeleteDocument removes all chunks of the document, or only one
// version when version is positive.
func (x *MemoryKeywordIndex) DeleteDocument(_ context.Context, documentID string, version int) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	var ids []string
	for id, entry := range x.entries {
		if entry.doc.DocumentID != documentID {
			continue
		}
		if version > 0 && entry.doc.Version != version {
			continue
		}
		ids = append(ids, id)
	}
	for _, id := range ids {
		x.removeLocked(id)
	}
	return nil
}

// Close releases nothing for the in-memory backend.
func (x *MemoryKeywordIndex) Close() error {
	return nil
}

// removeLocked unwinds a chunk's contribution to the corpus statistics.
// Callers hold the write lock.
func (x *MemoryKeywordIndex) removeLocked(chunkID string) {
	entry, ok := x.entries[chunkID]
	if !ok {
		return
	}
	for term := range entry.terms {
		x.df[term]--
		if x.df[term] <= 0 {
			delete(x.df, term)
		}
	}
	x.totalLen -= entry.length
	delete(x.entries, chunkID)
}

func matchesFilters(doc KeywordDoc, filters map[string]string) bool {
	for key, want := range filters {
		switch key {
		case "document_id":
			if doc.DocumentID != want {
				return false
			}
		case "source":
			if doc.Source != want {
				return false
			}
		case "version":
			if strconv.Itoa(doc.Version) != want {
				return false
			}
		}
	}
	return true
}

func hitFromDoc(doc KeywordDoc) KeywordHit {
	return KeywordHit{
		ChunkID:    doc.ChunkID,
		DocumentID: doc.DocumentID,
		Version:    doc.Version,
		Ordinal:    doc.Ordinal,
		Page:       doc.Page,
		Source:     doc.Source,
		Content:    doc.Content,
	}
}
