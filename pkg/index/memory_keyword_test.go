package index

import (
	"context"
	"testing"

	"github.com/veraxis/scout/pkg/config"
)

func newMemoryIndex() *MemoryKeywordIndex {
	return NewMemoryKeywordIndex(config.KeywordConfig{K1: 1.2, B: 0.75})
}

func kwDoc(chunkID, documentID string, version, ordinal int, content string) KeywordDoc {
	return KeywordDoc{
		ChunkID:    chunkID,
		DocumentID: documentID,
		Version:    version,
		Ordinal:    ordinal,
		Source:     "docs/" + documentID + ".md",
		Content:    content,
	}
}

func TestMemoryKeywordIndex_IndexAndSearch(t *testing.T) {
	ctx := context.Background()
	idx := newMemoryIndex()

	docs := []KeywordDoc{
		kwDoc("c1", "doc-1", 1, 0, "go concurrency patterns use goroutines and channels for concurrency"),
		kwDoc("c2", "doc-2", 1, 0, "database concurrency relies on locking"),
		kwDoc("c3", "doc-3", 1, 0, "a recipe for cooking pasta"),
	}
	if err := idx.Index(ctx, docs); err != nil {
		t.Fatalf("Index() error = %v", err)
	}

	hits, err := idx.Search(ctx, "concurrency goroutines", 10, nil)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("Search() returned %d hits, want 2", len(hits))
	}
	if hits[0].ChunkID != "c1" {
		t.Errorf("top hit = %s, want c1 (matches both query terms)", hits[0].ChunkID)
	}
	if hits[0].Score <= hits[1].Score {
		t.Errorf("hits not sorted by score: %f <= %f", hits[0].Score, hits[1].Score)
	}
	if hits[0].DocumentID != "doc-1" || hits[0].Version != 1 {
		t.Errorf("hit metadata = %s v%d, want doc-1 v1", hits[0].DocumentID, hits[0].Version)
	}

	hits, err = idx.Search(ctx, "nonexistent", 10, nil)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(hits) != 0 {
		t.Errorf("Search(nonexistent) returned %d hits, want 0", len(hits))
	}
}

func TestMemoryKeywordIndex_RareTermsRankHigher(t *testing.T) {
	ctx := context.Background()
	idx := newMemoryIndex()

	// Every chunk mentions "research"; only one mentions "quantum".
	docs := []KeywordDoc{
		kwDoc("c1", "doc-1", 1, 0, "research into distributed systems"),
		kwDoc("c2", "doc-2", 1, 0, "research into compiler design"),
		kwDoc("c3", "doc-3", 1, 0, "research into quantum computing"),
	}
	if err := idx.Index(ctx, docs); err != nil {
		t.Fatalf("Index() error = %v", err)
	}

	hits, err := idx.Search(ctx, "quantum research", 10, nil)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(hits) != 3 {
		t.Fatalf("Search() returned %d hits, want 3", len(hits))
	}
	if hits[0].ChunkID != "c3" {
		t.Errorf("top hit = %s, want c3 (contains the rare term)", hits[0].ChunkID)
	}
}

func TestMemoryKeywordIndex_Filters(t *testing.T) {
	ctx := context.Background()
	idx := newMemoryIndex()

	docs := []KeywordDoc{
		kwDoc("c1", "doc-1", 1, 0, "shared topic alpha"),
		kwDoc("c2", "doc-2", 1, 0, "shared topic beta"),
	}
	if err := idx.Index(ctx, docs); err != nil {
		t.Fatalf("Index() error = %v", err)
	}

	hits, err := idx.Search(ctx, "shared topic", 10, map[string]string{"document_id": "doc-2"})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(hits) != 1 || hits[0].ChunkID != "c2" {
		t.Errorf("filtered search = %v, want single hit c2", hits)
	}

	if _, err := idx.Search(ctx, "shared", 10, map[string]string{"author": "x"}); err == nil {
		t.Error("Search() with unsupported filter key should fail")
	}
}

func TestMemoryKeywordIndex_DeleteDocument(t *testing.T) {
	ctx := context.Background()
	idx := newMemoryIndex()

	docs := []KeywordDoc{
		kwDoc("c1-v1", "doc-1", 1, 0, "release notes for the first version"),
		kwDoc("c1-v2", "doc-1", 2, 0, "release notes for the second version"),
		kwDoc("c2", "doc-2", 1, 0, "release checklist"),
	}
	if err := idx.Index(ctx, docs); err != nil {
		t.Fatalf("Index() error = %v", err)
	}

	// Version-specific delete leaves the other version intact.
	if err := idx.DeleteDocument(ctx, "doc-1", 1); err != nil {
		t.Fatalf("DeleteDocument() error = %v", err)
	}
	hits, err := idx.Search(ctx, "release", 10, map[string]string{"document_id": "doc-1"})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(hits) != 1 || hits[0].ChunkID != "c1-v2" {
		t.Fatalf("after versioned delete hits = %v, want only c1-v2", hits)
	}

	// Version <= 0 deletes everything for the document.
	if err := idx.DeleteDocument(ctx, "doc-1", 0); err != nil {
		t.Fatalf("DeleteDocument() error = %v", err)
	}
	hits, err = idx.Search(ctx, "release", 10, nil)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(hits) != 1 || hits[0].ChunkID != "c2" {
		t.Errorf("after full delete hits = %v, want only c2", hits)
	}
}

func TestMemoryKeywordIndex_ReindexReplaces(t *testing.T) {
	ctx := context.Background()
	idx := newMemoryIndex()

	first := kwDoc("c1", "doc-1", 1, 0, "original wording about lighthouses")
	if err := idx.Index(ctx, []KeywordDoc{first}); err != nil {
		t.Fatalf("Index() error = %v", err)
	}

	updated := kwDoc("c1", "doc-1", 1, 0, "revised wording about observatories")
	if err := idx.Index(ctx, []KeywordDoc{updated}); err != nil {
		t.Fatalf("Index() error = %v", err)
	}

	hits, err := idx.Search(ctx, "lighthouses", 10, nil)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(hits) != 0 {
		t.Errorf("old terms still match after re-index: %v", hits)
	}

	hits, err = idx.Search(ctx, "observatories", 10, nil)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(hits) != 1 || hits[0].Content != updated.Content {
		t.Errorf("re-indexed hit = %v, want updated content", hits)
	}
}

func TestMemoryKeywordIndex_TopKAndTies(t *testing.T) {
	ctx := context.Background()
	idx := newMemoryIndex()

	// Identical content scores identically, so order falls back to
	// chunk ID.
	docs := []KeywordDoc{
		kwDoc("c-b", "doc-1", 1, 1, "identical tide tables"),
		kwDoc("c-a", "doc-1", 1, 0, "identical tide tables"),
		kwDoc("c-c", "doc-1", 1, 2, "identical tide tables"),
	}
	if err := idx.Index(ctx, docs); err != nil {
		t.Fatalf("Index() error = %v", err)
	}

	hits, err := idx.Search(ctx, "tide", 2, nil)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("Search() returned %d hits, want topK 2", len(hits))
	}
	if hits[0].ChunkID != "c-a" || hits[1].ChunkID != "c-b" {
		t.Errorf("tie order = [%s %s], want [c-a c-b]", hits[0].ChunkID, hits[1].ChunkID)
	}
}
