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
	"strings"
	"unicode"
)

// ===== Sanitization =====

// maxDocumentRunes bounds a single extracted page so a pathological
// file cannot blow up embedding batches downstream.
const maxDocumentRunes = 1 << 20

// Sanitize normalizes extracted text for chunking: control characters
// are dropped, runs of spaces and tabs collapse to one space, three or
// more newlines collapse to a paragraph break, and the result is
// length-capped. Single newlines survive so sentence and paragraph
// boundaries stay visible to the chunker.
func Sanitize(text string) string {
	var out strings.Builder
	out.Grow(len(text))

	newlines := 0
	spacePending := false
	runeCount := 0

	for _, r := range text {
		if runeCount >= maxDocumentRunes {
			break
		}
		switch {
		case r == '\r':
			// \r\n pairs reduce to the \n that follows.
		case r == '\n':
			spacePending = false
			if newlines < 2 {
				out.WriteByte('\n')
				runeCount++
			}
			newlines++
		case r == ' ' || r == '\t':
			if out.Len() > 0 && newlines == 0 {
				spacePending = true
			}
		case unicode.IsControl(r):
			// dropped
		default:
			if spacePending {
				out.WriteByte(' ')
				runeCount++
				spacePending = false
			}
			newlines = 0
			out.WriteRune(r)
			runeCount++
		}
	}

	return strings.TrimSpace(out.String())
}
