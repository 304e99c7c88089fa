package ingest

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/veraxis/scout/pkg/config"
	"github.com/veraxis/scout/pkg/index"
	"github.com/veraxis/scout/pkg/vector"
)

// fixedEmbedder hashes tokens into a small fixed space; deterministic
// and offline, which is all the pipeline tests need.
type fixedEmbedder struct{}

func (fixedEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, 8)
	for _, tok := range strings.Fields(strings.ToLower(text)) {
		sum := 0
		for _, r := range tok {
			sum += int(r)
		}
		vec[sum%8]++
	}
	vec[0] += 0.001
	return vec, nil
}

func (e fixedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

func (fixedEmbedder) Dimension() int { return 8 }
func (fixedEmbedder) Model() string  { return "fixed" }
func (fixedEmbedder) Close() error   { return nil }

func newTestStore(t *testing.T) *index.Store {
	t.Helper()
	provider, err := vector.NewChromemProvider(config.VectorConfig{})
	if err != nil {
		t.Fatalf("NewChromemProvider() error = %v", err)
	}
	keyword := index.NewMemoryKeywordIndex(config.KeywordConfig{})
	store := index.NewStore(fixedEmbedder{}, provider, keyword, "research")
	t.Cleanup(func() { store.Close() })
	return store
}

func testIngestConfig() config.IngestConfig {
	cfg := config.IngestConfig{}
	cfg.SetDefaults()
	return cfg
}

func TestPipeline_Run(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	writeTestFile(t, dir, "harbor.txt", "The harbor expansion was approved. Construction starts in spring.")
	writeTestFile(t, dir, "overview.md", "# Overview\n\nBudget details for the expansion project.")
	writeTestFile(t, dir, "raw.bin", "not a supported format")

	hidden := filepath.Join(dir, ".cache")
	if err := os.MkdirAll(hidden, 0o755); err != nil {
		t.Fatal(err)
	}
	writeTestFile(t, hidden, "ignored.txt", "must not be ingested")

	store := newTestStore(t)
	pipeline := NewPipeline(store, testIngestConfig())

	report, err := pipeline.Run(ctx, []string{dir})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if report.Ingested != 2 {
		t.Errorf("Ingested = %d, want 2", report.Ingested)
	}
	if report.Skipped != 1 {
		t.Errorf("Skipped = %d, want 1", report.Skipped)
	}
	if report.Failed != 0 {
		t.Errorf("Failed = %d, errors: %v", report.Failed, report.Errors)
	}
	if report.Chunks == 0 {
		t.Error("Chunks = 0, want > 0")
	}
	if len(store.Documents()) != 2 {
		t.Errorf("store holds %d documents, want 2", len(store.Documents()))
	}

	hits, err := store.SearchKeyword(ctx, "harbor expansion", 10, nil)
	if err != nil {
		t.Fatalf("SearchKeyword() error = %v", err)
	}
	if len(hits) == 0 {
		t.Error("ingested content is not searchable")
	}

	// Nothing from the hidden directory.
	hits, err = store.SearchKeyword(ctx, "ingested", 10, nil)
	if err != nil {
		t.Fatalf("SearchKeyword() error = %v", err)
	}
	for _, h := range hits {
		if strings.Contains(h.Source, ".cache") {
			t.Errorf("hidden directory file was ingested: %s", h.Source)
		}
	}
}

func TestPipeline_MarkdownSections(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := writeTestFile(t, dir, "plan.md", "# Phase One\n\nDredging the channel.")

	store := newTestStore(t)
	pipeline := NewPipeline(store, testIngestConfig())
	if _, err := pipeline.Run(ctx, []string{path}); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	docID := documentID(path)
	chunk, ok := store.Resolve(docID + "-v1-c0")
	if !ok {
		t.Fatal("Resolve() did not find the first chunk")
	}
	if chunk.Metadata.Section != "Phase One" {
		t.Errorf("Section = %q, want %q", chunk.Metadata.Section, "Phase One")
	}
}

func TestPipeline_UnchangedFileIsSkipped(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := writeTestFile(t, dir, "notes.txt", "stable content")

	store := newTestStore(t)
	pipeline := NewPipeline(store, testIngestConfig())

	if _, err := pipeline.Run(ctx, []string{path}); err != nil {
		t.Fatalf("first Run() error = %v", err)
	}
	report, err := pipeline.Run(ctx, []string{path})
	if err != nil {
		t.Fatalf("second Run() error = %v", err)
	}
	if report.Ingested != 0 || report.Unchanged != 1 {
		t.Errorf("second run = %+v, want unchanged", report)
	}
	if got := store.ActiveVersion(documentID(path)); got != 1 {
		t.Errorf("ActiveVersion = %d, want 1", got)
	}
}

func TestPipeline_ChangedFileBumpsVersion(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := writeTestFile(t, dir, "notes.txt", "the original harbor plan")

	store := newTestStore(t)
	pipeline := NewPipeline(store, testIngestConfig())
	if _, err := pipeline.Run(ctx, []string{path}); err != nil {
		t.Fatalf("first Run() error = %v", err)
	}

	writeTestFile(t, dir, "notes.txt", "the revised harbor plan with docks")
	report, err := pipeline.Run(ctx, []string{path})
	if err != nil {
		t.Fatalf("second Run() error = %v", err)
	}
	if report.Ingested != 1 {
		t.Errorf("Ingested = %d, want 1", report.Ingested)
	}

	docID := documentID(path)
	if got := store.ActiveVersion(docID); got != 2 {
		t.Errorf("ActiveVersion = %d, want 2", got)
	}

	hits, err := store.SearchKeyword(ctx, "harbor", 10, nil)
	if err != nil {
		t.Fatalf("SearchKeyword() error = %v", err)
	}
	for _, h := range hits {
		if h.Version != 2 {
			t.Errorf("search surfaced stale version: %+v", h)
		}
		if !strings.Contains(h.Content, "revised") {
			t.Errorf("hit content = %q, want revised text", h.Content)
		}
	}
}

func TestPipeline_EmptyFileFails(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	writeTestFile(t, dir, "empty.txt", "   \n\n  ")

	store := newTestStore(t)
	pipeline := NewPipeline(store, testIngestConfig())
	report, err := pipeline.Run(ctx, []string{dir})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if report.Failed != 1 {
		t.Errorf("Failed = %d, want 1 (no extractable text)", report.Failed)
	}
}

func TestDocumentID(t *testing.T) {
	a := documentID("docs/a.txt")
	if a != documentID("docs/a.txt") {
		t.Error("documentID() is not stable")
	}
	if a == documentID("docs/b.txt") {
		t.Error("documentID() collides across paths")
	}
	if len(a) != 16 {
		t.Errorf("documentID() length = %d, want 16", len(a))
	}
}

func TestMarkdownHeadings(t *testing.T) {
	text := "# Top\nintro line\n## Deep Dive\nmore text"
	marks := markdownHeadings(text, "markdown")
	if len(marks) != 2 {
		t.Fatalf("markdownHeadings() found %d, want 2", len(marks))
	}
	if marks[0].title != "Top" || marks[1].title != "Deep Dive" {
		t.Errorf("titles = %q, %q", marks[0].title, marks[1].title)
	}

	if got := headingAt(marks, 0); got != "Top" {
		t.Errorf("headingAt(0) = %q, want Top", got)
	}
	if got := headingAt(marks, marks[1].offset+2); got != "Deep Dive" {
		t.Errorf("headingAt(after second) = %q, want Deep Dive", got)
	}

	if marks := markdownHeadings("# Not md", "text"); marks != nil {
		t.Error("markdownHeadings() should ignore non-markdown types")
	}
}
