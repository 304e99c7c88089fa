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

package retriever

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/veraxis/scout/pkg/llms"
	"github.com/veraxis/scout/pkg/model"
)

const rerankContentLimit = 500

// LLMReranker grades each candidate's relevance to the query with a
// chat model and replaces the merge score with relevance/10.
//
// Reranking trades latency and API cost for deeper semantic matching,
// so it only makes sense on small candidate sets; the retriever caps
// what it sends here. Transport or parse failures leave the original
// scores in place: retrieval should not fail because reranking did.
type LLMReranker struct {
	provider llms.Provider
}

// NewLLMReranker creates a reranker over the given chat provider.
func NewLLMReranker(provider llms.Provider) *LLMReranker {
	return &LLMReranker{provider: provider}
}

var _ Reranker = (*LLMReranker)(nil)

type rankingDecision struct {
	Index     int    `json:"index"`
	Relevance int    `json:"relevance"`
	Reason    string `json:"reason,omitempty"`
}

// Rerank implements Reranker.
func (r *LLMReranker) Rerank(ctx context.Context, query string, items []model.EvidenceItem) ([]model.EvidenceItem, error) {
	if r.provider == nil {
		return nil, fmt.Errorf("rerank provider is required")
	}
	if len(items) == 0 {
		return items, nil
	}

	prompt := buildRerankPrompt(query, items)
	response, _, err := r.provider.Generate(ctx, []llms.ChatMessage{
		{Role: llms.RoleUser, Content: prompt},
	})
	if err != nil {
		slog.Warn("Rerank request failed, keeping merge scores", "error", err)
		return items, nil
	}

	decisions, err := parseRankings(response, len(items))
	if err != nil {
		slog.Warn("Rerank response unparseable, keeping merge scores", "error", err)
		return items, nil
	}

	for _, d := range decisions {
		items[d.Index].Score = float64(d.Relevance) / 10.0
	}

	slog.Debug("Reranked evidence",
		"query", query,
		"candidates", len(items),
		"model", r.provider.GetModelName())
	return items, nil
}

func buildRerankPrompt(query string, items []model.EvidenceItem) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf(`Given the query: "%s"

Rank the following documents by their relevance to the query.
For each document, provide a relevance score from 1-10 (10 being most relevant).

Documents:
`, strings.ReplaceAll(query, `"`, `'`)))

	for i, item := range items {
		sb.WriteString(fmt.Sprintf("\n[%d] %s\n", i, truncate(item.Content, rerankContentLimit)))
	}

	sb.WriteString(`
Respond with a JSON array of rankings:
[{"index": 0, "relevance": 9, "reason": "directly answers the query"}, ...]

Only include the JSON array, no other text.`)

	return sb.String()
}

// parseRankings extracts ranking decisions from the model response.
// Every index in [0,n) comes back exactly once: duplicates and
// out-of-range entries are dropped, indices the model skipped get the
// lowest relevance.
func parseRankings(response string, n int) ([]rankingDecision, error) {
	start := strings.Index(response, "[")
	end := strings.LastIndex(response, "]")
	if start == -1 || end <= start {
		return nil, fmt.Errorf("no JSON array in response")
	}

	var decisions []rankingDecision
	if err := json.Unmarshal([]byte(response[start:end+1]), &decisions); err != nil {
		return nil, fmt.Errorf("failed to parse rankings: %w", err)
	}

	seen := make(map[int]bool, n)
	valid := decisions[:0]
	for _, d := range decisions {
		if d.Index < 0 || d.Index >= n || seen[d.Index] {
			continue
		}
		seen[d.Index] = true
		// Clamp to the documented 1-10 scale.
		if d.Relevance < 1 {
			d.Relevance = 1
		}
		if d.Relevance > 10 {
			d.Relevance = 10
		}
		valid = append(valid, d)
	}
	for i := 0; i < n; i++ {
		if !seen[i] {
			valid = append(valid, rankingDecision{Index: i, Relevance: 1})
		}
	}
	return valid, nil
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}
