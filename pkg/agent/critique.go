package agent

import (
	"fmt"

	"github.com/veraxis/scout/pkg/model"
)

// citationCoverage measures how much of the gathered evidence the
// conclusion actually cites: distinct cited chunks over distinct
// evidence chunks. An answer produced without any evidence covers
// everything by definition.
func citationCoverage(valid []model.Citation, evidence []model.EvidenceItem) float64 {
	total := countChunks(evidence)
	if total == 0 {
		return 1.0
	}
	cited := make(map[string]bool, len(valid))
	for _, c := range valid {
		cited[c.ChunkID] = true
	}
	return float64(len(cited)) / float64(total)
}

func countChunks(evidence []model.EvidenceItem) int {
	distinct := make(map[string]bool, len(evidence))
	for _, item := range evidence {
		distinct[item.ChunkID] = true
	}
	return len(distinct)
}

// critiqueObservation is fed back to the backend when coverage falls
// short: it names the gap and asks for a revision that either cites
// more of the evidence or explains why it does not apply.
func critiqueObservation(coverage, threshold float64, cited, total int) string {
	return fmt.Sprintf(
		"self-critique: the answer cites %d of %d evidence items (coverage %.2f, below %.2f); revise it to ground every claim in the evidence, or state why the remaining evidence is not relevant",
		cited, total, coverage, threshold)
}

// rescoreConfidence blends the backend's self-reported confidence with
// observed citation coverage so an answer ignoring its evidence cannot
// keep a perfect score.
func rescoreConfidence(confidence, coverage float64) float64 {
	return confidence * (0.5 + coverage/2)
}
