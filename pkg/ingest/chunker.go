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
	"log/slog"
	"strings"
	"unicode"

	"github.com/pkoukk/tiktoken-go"

	"github.com/veraxis/scout/pkg/config"
)

// ===== Chunking =====

// Piece is one chunk of a page: its content, the rune offset where it
// starts in the sanitized page text, and its token count (exact for
// the token chunker, estimated for the fallback).
type Piece struct {
	Content    string
	Offset     int
	TokenCount int
}

// Chunker splits sanitized text into retrieval-sized pieces.
type Chunker interface {
	Chunk(text string) []Piece
}

// NewChunker returns a token-aware chunker for the configured encoding,
// falling back to rune windows when the encoding cannot be loaded
// (tiktoken fetches encodings on first use and may be offline).
func NewChunker(cfg config.IngestConfig) Chunker {
	encoding, err := tiktoken.GetEncoding(cfg.Encoding)
	if err != nil {
		slog.Warn("Token encoding unavailable, using rune-window chunking",
			"encoding", cfg.Encoding, "error", err)
		return NewSimpleChunker(cfg)
	}
	return NewTokenChunker(encoding, cfg)
}

// ===== Token Chunker =====

// TokenChunker packs whole sentences into chunks of at most maxTokens
// tokens, carrying roughly overlap tokens of trailing context into the
// next chunk. A single sentence larger than maxTokens is split on raw
// token windows.
type TokenChunker struct {
	encoding  *tiktoken.Tiktoken
	maxTokens int
	overlap   int
}

// Verify interface compliance
var _ Chunker = (*TokenChunker)(nil)

func NewTokenChunker(encoding *tiktoken.Tiktoken, cfg config.IngestConfig) *TokenChunker {
	maxTokens := cfg.ChunkTokens
	if maxTokens <= 0 {
		maxTokens = 512
	}
	overlap := cfg.ChunkOverlap
	if overlap < 0 || overlap >= maxTokens {
		overlap = 0
	}
	return &TokenChunker{
		encoding:  encoding,
		maxTokens: maxTokens,
		overlap:   overlap,
	}
}

func (tc *TokenChunker) Chunk(text string) []Piece {
	sentences := splitSentences(text)
	if len(sentences) == 0 {
		return nil
	}

	counts := make([]int, len(sentences))
	for i, s := range sentences {
		counts[i] = len(tc.encoding.Encode(s.text, nil, nil))
	}

	var pieces []Piece
	i := 0
	for i < len(sentences) {
		if counts[i] > tc.maxTokens {
			pieces = append(pieces, tc.hardSplit(sentences[i])...)
			i++
			continue
		}

		start := i
		total := 0
		for i < len(sentences) && total+counts[i] <= tc.maxTokens {
			total += counts[i]
			i++
		}

		var b strings.Builder
		for j := start; j < i; j++ {
			b.WriteString(sentences[j].text)
		}
		pieces = append(pieces, Piece{
			Content:    strings.TrimSpace(b.String()),
			Offset:     sentences[start].offset,
			TokenCount: total,
		})

		// Step back so about overlap tokens repeat at the start of the
		// next chunk. The start+1 bound guarantees forward progress.
		if tc.overlap > 0 && i < len(sentences) {
			back := 0
			j := i
			for j > start+1 && back < tc.overlap {
				j--
				back += counts[j]
			}
			i = j
		}
	}
	return pieces
}

// hardSplit chops an oversized sentence on raw token windows.
func (tc *TokenChunker) hardSplit(s sentence) []Piece {
	tokens := tc.encoding.Encode(s.text, nil, nil)
	step := tc.maxTokens - tc.overlap
	if step <= 0 {
		step = tc.maxTokens
	}

	var pieces []Piece
	for start := 0; start < len(tokens); start += step {
		end := start + tc.maxTokens
		if end > len(tokens) {
			end = len(tokens)
		}

		content := strings.TrimSpace(tc.encoding.Decode(tokens[start:end]))
		if content != "" {
			prefixRunes := 0
			if start > 0 {
				prefixRunes = len([]rune(tc.encoding.Decode(tokens[:start])))
			}
			pieces = append(pieces, Piece{
				Content:    content,
				Offset:     s.offset + prefixRunes,
				TokenCount: end - start,
			})
		}
		if end == len(tokens) {
			break
		}
	}
	return pieces
}

// ===== Simple Chunker =====

// SimpleChunker splits on fixed rune windows sized by the rough four
// characters per token heuristic. It is the fallback when no token
// encoding is available.
type SimpleChunker struct {
	window  int
	overlap int
}

// Verify interface compliance
var _ Chunker = (*SimpleChunker)(nil)

func NewSimpleChunker(cfg config.IngestConfig) *SimpleChunker {
	chunkTokens := cfg.ChunkTokens
	if chunkTokens <= 0 {
		chunkTokens = 512
	}
	overlap := cfg.ChunkOverlap
	if overlap < 0 || overlap >= chunkTokens {
		overlap = 0
	}
	return &SimpleChunker{
		window:  chunkTokens * 4,
		overlap: overlap * 4,
	}
}

func (sc *SimpleChunker) Chunk(text string) []Piece {
	runes := []rune(text)
	step := sc.window - sc.overlap
	if step <= 0 {
		step = sc.window
	}

	var pieces []Piece
	for start := 0; start < len(runes); start += step {
		end := start + sc.window
		if end > len(runes) {
			end = len(runes)
		}

		content := strings.TrimSpace(string(runes[start:end]))
		if content != "" {
			pieces = append(pieces, Piece{
				Content:    content,
				Offset:     start,
				TokenCount: (end - start + 3) / 4,
			})
		}
		if end == len(runes) {
			break
		}
	}
	return pieces
}

// ===== Sentence Splitting =====

type sentence struct {
	text   string
	offset int
}

// splitSentences cuts text after sentence-ending punctuation followed
// by whitespace, and at paragraph breaks. Offsets are rune positions
// in the input.
func splitSentences(text string) []sentence {
	runes := []rune(text)
	var sentences []sentence
	start := 0

	emit := func(end int) {
		segment := string(runes[start:end])
		if strings.TrimSpace(segment) != "" {
			sentences = append(sentences, sentence{text: segment, offset: start})
		}
		start = end
	}

	for i := 0; i < len(runes); i++ {
		switch runes[i] {
		case '.', '!', '?':
			if i+1 >= len(runes) || unicode.IsSpace(runes[i+1]) {
				emit(i + 1)
			}
		case '\n':
			if i+1 < len(runes) && runes[i+1] == '\n' {
				emit(i + 1)
			}
		}
	}
	if start < len(runes) {
		emit(len(runes))
	}
	return sentences
}
