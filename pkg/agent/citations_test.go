package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veraxis/scout/pkg/model"
)

func TestVerifyCitations_MatchesEvidence(t *testing.T) {
	ev := []model.EvidenceItem{
		evidence("chunk-1", "doc-a", "a.md", 0.9),
		evidence("chunk-2", "doc-b", "b.md", 0.8),
	}

	valid, invalid := verifyCitations([]string{"chunk-2", "chunk-1"}, ev, nil)

	require.Len(t, valid, 2)
	assert.Empty(t, invalid)
	assert.Equal(t, "chunk-2", valid[0].ChunkID)
	assert.Equal(t, "doc-b", valid[0].DocumentID)
	assert.Equal(t, "b.md", valid[0].Source)
}

func TestVerifyCitations_NormalizesAndDedupes(t *testing.T) {
	ev := []model.EvidenceItem{evidence("chunk-1", "doc-a", "a.md", 0.9)}

	valid, invalid := verifyCitations([]string{"[chunk-1]", "chunk-1", "  chunk-1  ", ""}, ev, nil)

	require.Len(t, valid, 1)
	assert.Equal(t, "chunk-1", valid[0].ChunkID)
	assert.Empty(t, invalid)
}

func TestVerifyCitations_UnknownChunkIsInvalid(t *testing.T) {
	ev := []model.EvidenceItem{evidence("chunk-1", "doc-a", "a.md", 0.9)}

	valid, invalid := verifyCitations([]string{"chunk-9", "chunk-1"}, ev, nil)

	require.Len(t, valid, 1)
	assert.Equal(t, []string{"chunk-9"}, invalid)
}

func TestVerifyCitations_ResolverVetoesStaleChunks(t *testing.T) {
	ev := []model.EvidenceItem{
		evidence("chunk-1", "doc-a", "a.md", 0.9),
		evidence("chunk-2", "doc-a", "a.md", 0.8),
	}
	resolver := &fakeResolver{missing: map[string]bool{"chunk-2": true}}

	valid, invalid := verifyCitations([]string{"chunk-1", "chunk-2"}, ev, resolver)

	require.Len(t, valid, 1)
	assert.Equal(t, "chunk-1", valid[0].ChunkID)
	assert.Equal(t, []string{"chunk-2"}, invalid)
}

func TestVerifyCitations_EmptyInputs(t *testing.T) {
	valid, invalid := verifyCitations(nil, nil, nil)
	assert.Empty(t, valid)
	assert.Empty(t, invalid)

	valid, invalid = verifyCitations([]string{"chunk-1"}, nil, nil)
	assert.Empty(t, valid)
	assert.Equal(t, []string{"chunk-1"}, invalid)
}

func TestCitationCoverage(t *testing.T) {
	noEvidence := citationCoverage(nil, nil)
	assert.InDelta(t, 1.0, noEvidence, 1e-9, "no evidence means nothing left uncited")

	ev := []model.EvidenceItem{
		evidence("chunk-1", "doc-a", "a.md", 0.9),
		evidence("chunk-2", "doc-a", "a.md", 0.8),
		evidence("chunk-2", "doc-a", "a.md", 0.8),
	}
	half := citationCoverage([]model.Citation{{ChunkID: "chunk-1"}}, ev)
	assert.InDelta(t, 0.5, half, 1e-9, "duplicate evidence chunks count once")

	full := citationCoverage([]model.Citation{
		{ChunkID: "chunk-1"},
		{ChunkID: "chunk-2"},
		{ChunkID: "chunk-2"},
	}, ev)
	assert.InDelta(t, 1.0, full, 1e-9)
}

func TestRescoreConfidence(t *testing.T) {
	assert.InDelta(t, 0.8, rescoreConfidence(0.8, 1.0), 1e-9, "full coverage keeps the score")
	assert.InDelta(t, 0.4, rescoreConfidence(0.8, 0.0), 1e-9, "zero coverage halves it")
	assert.InDelta(t, 0.75, rescoreConfidence(1.0, 0.5), 1e-9)
}
