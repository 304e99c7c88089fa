package ingest

import (
	"strings"
	"testing"

	"github.com/pkoukk/tiktoken-go"

	"github.com/veraxis/scout/pkg/config"
)

func TestSplitSentences(t *testing.T) {
	sentences := splitSentences("First point. Second point! A question? Trailing fragment")
	if len(sentences) != 4 {
		t.Fatalf("splitSentences() returned %d sentences, want 4", len(sentences))
	}
	if strings.TrimSpace(sentences[0].text) != "First point." {
		t.Errorf("sentence[0] = %q", sentences[0].text)
	}
	if strings.TrimSpace(sentences[3].text) != "Trailing fragment" {
		t.Errorf("sentence[3] = %q", sentences[3].text)
	}
	if sentences[0].offset != 0 {
		t.Errorf("sentence[0].offset = %d, want 0", sentences[0].offset)
	}
	if sentences[1].offset != len("First point.") {
		t.Errorf("sentence[1].offset = %d, want %d", sentences[1].offset, len("First point."))
	}
}

func TestSplitSentences_NoSplitInsideWord(t *testing.T) {
	sentences := splitSentences("see example.com for details")
	if len(sentences) != 1 {
		t.Errorf("splitSentences() split inside a hostname: %d sentences", len(sentences))
	}
}

func TestSplitSentences_ParagraphBreaks(t *testing.T) {
	sentences := splitSentences("first paragraph\n\nsecond paragraph")
	if len(sentences) != 2 {
		t.Fatalf("splitSentences() returned %d sentences, want 2", len(sentences))
	}
}

func TestSimpleChunker_Windows(t *testing.T) {
	// window = 10 tokens * 4 runes, overlap = 2 * 4, so step is 32.
	chunker := NewSimpleChunker(config.IngestConfig{ChunkTokens: 10, ChunkOverlap: 2})

	text := strings.Repeat("abcdefghij", 10) // 100 runes
	pieces := chunker.Chunk(text)
	if len(pieces) != 3 {
		t.Fatalf("Chunk() returned %d pieces, want 3", len(pieces))
	}
	for i, p := range pieces {
		if len([]rune(p.Content)) > 40 {
			t.Errorf("piece %d has %d runes, want <= 40", i, len([]rune(p.Content)))
		}
		if want := i * 32; p.Offset != want {
			t.Errorf("piece %d offset = %d, want %d", i, p.Offset, want)
		}
		if p.TokenCount <= 0 {
			t.Errorf("piece %d token count = %d, want > 0", i, p.TokenCount)
		}
	}
}

func TestSimpleChunker_ShortText(t *testing.T) {
	chunker := NewSimpleChunker(config.IngestConfig{ChunkTokens: 512, ChunkOverlap: 64})
	pieces := chunker.Chunk("just a short note")
	if len(pieces) != 1 {
		t.Fatalf("Chunk() returned %d pieces, want 1", len(pieces))
	}
	if pieces[0].Content != "just a short note" || pieces[0].Offset != 0 {
		t.Errorf("piece = %+v", pieces[0])
	}
}

func TestSimpleChunker_EmptyText(t *testing.T) {
	chunker := NewSimpleChunker(config.IngestConfig{ChunkTokens: 512})
	if pieces := chunker.Chunk("   "); len(pieces) != 0 {
		t.Errorf("Chunk(whitespace) returned %d pieces, want 0", len(pieces))
	}
}

func TestTokenChunker(t *testing.T) {
	encoding, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		t.Skipf("token encoding unavailable: %v", err)
	}
	chunker := NewTokenChunker(encoding, config.IngestConfig{ChunkTokens: 20, ChunkOverlap: 5})

	var b strings.Builder
	for i := 0; i < 12; i++ {
		b.WriteString("The committee reviewed the harbor expansion proposal in detail. ")
	}
	pieces := chunker.Chunk(b.String())

	if len(pieces) < 2 {
		t.Fatalf("Chunk() returned %d pieces, want several", len(pieces))
	}
	for i, p := range pieces {
		if p.TokenCount > 20 {
			t.Errorf("piece %d has %d tokens, want <= 20", i, p.TokenCount)
		}
		if p.Content == "" {
			t.Errorf("piece %d is empty", i)
		}
		if i > 0 && p.Offset < pieces[i-1].Offset {
			t.Errorf("piece %d offset %d precedes piece %d offset %d",
				i, p.Offset, i-1, pieces[i-1].Offset)
		}
	}
	if !strings.HasPrefix(pieces[0].Content, "The committee") {
		t.Errorf("first piece = %q, want sentence start", pieces[0].Content)
	}
}

func TestTokenChunker_OversizedSentence(t *testing.T) {
	encoding, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		t.Skipf("token encoding unavailable: %v", err)
	}
	chunker := NewTokenChunker(encoding, config.IngestConfig{ChunkTokens: 10, ChunkOverlap: 0})

	// One giant "sentence" with no terminal punctuation.
	text := strings.Repeat("inventory ", 100)
	pieces := chunker.Chunk(text)
	if len(pieces) < 2 {
		t.Fatalf("Chunk() returned %d pieces, want the sentence hard-split", len(pieces))
	}
	for i, p := range pieces {
		if p.TokenCount > 10 {
			t.Errorf("piece %d has %d tokens, want <= 10", i, p.TokenCount)
		}
	}
}

func TestNewChunker_FallbackOnUnknownEncoding(t *testing.T) {
	chunker := NewChunker(config.IngestConfig{ChunkTokens: 512, ChunkOverlap: 64, Encoding: "no-such-encoding"})
	if _, ok := chunker.(*SimpleChunker); !ok {
		t.Errorf("NewChunker() with unknown encoding = %T, want *SimpleChunker", chunker)
	}
}
