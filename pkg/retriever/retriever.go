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

// Package retriever merges dense and sparse search results into ranked,
// attributed evidence for the reasoning engine.
package retriever

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/veraxis/scout/pkg/config"
	"github.com/veraxis/scout/pkg/fault"
	"github.com/veraxis/scout/pkg/index"
	"github.com/veraxis/scout/pkg/model"
	"github.com/veraxis/scout/pkg/observability"
)

// ===== Interfaces =====

// Retriever returns ranked evidence for a query, at most k items.
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int, filters map[string]string) ([]model.EvidenceItem, error)
}

// Index is the slice of the index store the retriever searches. Both
// sides must honor the same metadata filters.
type Index interface {
	SearchVector(ctx context.Context, query string, topK int, filters map[string]string) ([]index.Hit, error)
	SearchKeyword(ctx context.Context, query string, topK int, filters map[string]string) ([]index.Hit, error)
}

// Reranker re-scores merged candidates. Scores it assigns replace the
// merge scores; the caller sorts afterward.
type Reranker interface {
	Rerank(ctx context.Context, query string, items []model.EvidenceItem) ([]model.EvidenceItem, error)
}

// ===== Hybrid =====

// Hybrid fans a query out to vector and keyword search concurrently,
// min-max normalizes each side's scores, merges by chunk identity with
// a weighted sum, collapses near-adjacent chunks of the same document,
// and optionally reranks before truncating to k.
//
// If one search backend fails the other's results are returned flagged
// Degraded; only when both fail does Retrieve return an error, and
// that error is recoverable (the engine treats it as "no evidence
// found", not a fatal fault).
type Hybrid struct {
	index    Index
	reranker Reranker
	cfg      config.RetrieverConfig
}

// NewHybrid creates a hybrid retriever. A nil reranker disables the
// rerank stage.
func NewHybrid(idx Index, reranker Reranker, cfg config.RetrieverConfig) *Hybrid {
	cfg.SetDefaults()
	return &Hybrid{
		index:    idx,
		reranker: reranker,
		cfg:      cfg,
	}
}

var _ Retriever = (*Hybrid)(nil)

// Retrieve implements the Retriever contract: at most k items, sorted
// by score descending, ties broken by chunk ID so ordering is
// deterministic for identical inputs and index state.
func (h *Hybrid) Retrieve(ctx context.Context, query string, k int, filters map[string]string) ([]model.EvidenceItem, error) {
	start := time.Now()

	query = strings.Join(strings.Fields(query), " ")
	if query == "" {
		return nil, nil
	}
	if k <= 0 {
		k = h.cfg.TopK
	}

	tracer := observability.GetTracer("scout.retriever")
	ctx, span := tracer.Start(ctx, observability.SpanRetrieval,
		trace.WithAttributes(
			attribute.String(observability.AttrQuery, query),
		))
	defer span.End()

	fetchK := k * h.cfg.CandidateMultiplier

	var (
		vectorHits  []index.Hit
		keywordHits []index.Hit
		vectorErr   error
		keywordErr  error
	)
	// Errors are captured rather than returned to the group: a failing
	// search must not cancel its still-running sibling, because partial
	// results degrade instead of aborting.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		vectorHits, vectorErr = h.index.SearchVector(gctx, query, fetchK, filters)
		return nil
	})
	g.Go(func() error {
		keywordHits, keywordErr = h.index.SearchKeyword(gctx, query, fetchK, filters)
		return nil
	})
	_ = g.Wait()

	if vectorErr != nil && keywordErr != nil {
		err := fault.NewEvidenceUnavailable(query,
			fmt.Sprintf("vector: %v; keyword: %v", vectorErr, keywordErr))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		observability.GetGlobalMetrics().RecordRetrieval(ctx, time.Since(start), 0, true)
		return nil, err
	}

	degraded := false
	if vectorErr != nil {
		degraded = true
		slog.Warn("Vector search unavailable, using keyword results only",
			"query", query, "error", vectorErr)
	}
	if keywordErr != nil {
		degraded = true
		slog.Warn("Keyword search unavailable, using vector results only",
			"query", query, "error", keywordErr)
	}

	cands := h.merge(vectorHits, keywordHits)
	cands = h.collapseAdjacent(cands)
	items := toEvidence(cands)

	if h.reranker != nil && len(items) > 0 {
		if limit := h.cfg.Rerank.MaxCandidates; limit > 0 && len(items) > limit {
			// Cap before reranking so every surviving candidate carries
			// an LLM score; mixing rerank and merge scales would make
			// the final ordering meaningless.
			items = items[:limit]
		}
		reranked, err := h.reranker.Rerank(ctx, query, items)
		if err != nil {
			slog.Warn("Rerank failed, keeping merge scores", "query", query, "error", err)
		} else {
			items = reranked
		}
	}

	sortEvidence(items, h.cfg.ScoreEpsilon)
	if len(items) > k {
		items = items[:k]
	}
	for i := range items {
		items[i].Rank = i + 1
		items[i].Degraded = degraded
	}

	span.SetAttributes(attribute.Int(observability.AttrResultCount, len(items)))
	span.SetStatus(codes.Ok, "success")
	observability.GetGlobalMetrics().RecordRetrieval(ctx, time.Since(start), len(items), degraded)
	return items, nil
}

// ===== Merge =====

type scored struct {
	hit          index.Hit
	combined     float64
	vectorScore  float64
	keywordScore float64
}

// merge joins the two hit lists by chunk ID. Each list's scores are
// min-max normalized first so cosine similarities and BM25 values are
// comparable before the weighted sum.
func (h *Hybrid) merge(vectorHits, keywordHits []index.Hit) []scored {
	vnorm := normalizeScores(vectorHits)
	knorm := normalizeScores(keywordHits)

	merged := make(map[string]*scored, len(vectorHits)+len(keywordHits))
	for i, hit := range vectorHits {
		merged[hit.ChunkID] = &scored{
			hit:         hit,
			combined:    h.cfg.VectorWeight * vnorm[i],
			vectorScore: hit.Score,
		}
	}
	for i, hit := range keywordHits {
		if c, ok := merged[hit.ChunkID]; ok {
			c.combined += h.cfg.KeywordWeight * knorm[i]
			c.keywordScore = hit.Score
			continue
		}
		merged[hit.ChunkID] = &scored{
			hit:          hit,
			combined:     h.cfg.KeywordWeight * knorm[i],
			keywordScore: hit.Score,
		}
	}

	cands := make([]scored, 0, len(merged))
	for _, c := range merged {
		cands = append(cands, *c)
	}
	sortScored(cands, h.cfg.ScoreEpsilon)
	return cands
}

// normalizeScores min-max scales a hit list's scores to [0,1]. A list
// whose scores are all equal maps to 1.0 so a lone hit still counts
// fully toward the merge.
func normalizeScores(hits []index.Hit) []float64 {
	if len(hits) == 0 {
		return nil
	}
	lo, hi := hits[0].Score, hits[0].Score
	for _, h := range hits[1:] {
		if h.Score < lo {
			lo = h.Score
		}
		if h.Score > hi {
			hi = h.Score
		}
	}
	out := make([]float64, len(hits))
	if hi-lo < 1e-12 {
		for i := range out {
			out[i] = 1.0
		}
		return out
	}
	for i, h := range hits {
		out[i] = (h.Score - lo) / (hi - lo)
	}
	return out
}

// collapseAdjacent drops candidates that sit within the adjacency
// window of an already-kept, higher-scoring chunk of the same document.
// Expects candidates sorted by score descending.
func (h *Hybrid) collapseAdjacent(cands []scored) []scored {
	if h.cfg.AdjacencyWindow <= 0 || len(cands) < 2 {
		return cands
	}
	kept := make([]scored, 0, len(cands))
	for _, c := range cands {
		shadowed := false
		for _, k := range kept {
			if k.hit.DocumentID != c.hit.DocumentID {
				continue
			}
			if abs(k.hit.Ordinal-c.hit.Ordinal) <= h.cfg.AdjacencyWindow {
				shadowed = true
				break
			}
		}
		if !shadowed {
			kept = append(kept, c)
		}
	}
	return kept
}

func toEvidence(cands []scored) []model.EvidenceItem {
	items := make([]model.EvidenceItem, 0, len(cands))
	for _, c := range cands {
		items = append(items, model.EvidenceItem{
			ChunkID:      c.hit.ChunkID,
			DocumentID:   c.hit.DocumentID,
			Content:      c.hit.Content,
			Score:        c.combined,
			VectorScore:  c.vectorScore,
			KeywordScore: c.keywordScore,
			Source:       attribution(c.hit),
		})
	}
	return items
}

// attribution renders the human-readable source string citations carry.
func attribution(hit index.Hit) string {
	source := hit.Source
	if source == "" {
		source = hit.DocumentID
	}
	if hit.Page > 0 {
		return fmt.Sprintf("%s (page %d)", source, hit.Page)
	}
	return source
}

// ===== Ordering =====

// Scores within epsilon of each other count as tied and fall back to
// chunk ID so repeated queries against an unchanged index return the
// same order.

func sortScored(cands []scored, epsilon float64) {
	sort.Slice(cands, func(i, j int) bool {
		if math.Abs(cands[i].combined-cands[j].combined) > epsilon {
			return cands[i].combined > cands[j].combined
		}
		return cands[i].hit.ChunkID < cands[j].hit.ChunkID
	})
}

func sortEvidence(items []model.EvidenceItem, epsilon float64) {
	sort.Slice(items, func(i, j int) bool {
		if math.Abs(items[i].Score-items[j].Score) > epsilon {
			return items[i].Score > items[j].Score
		}
		return items[i].ChunkID < items[j].ChunkID
	})
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
