package agent

import (
	"strings"

	"github.com/veraxis/scout/pkg/model"
)

// verifyCitations maps cited chunk ids onto the evidence gathered in
// this chain. A citation is valid only if the chunk was retrieved
// during the run and, when a resolver is available, still belongs to
// an active document version. Duplicates collapse to one citation;
// everything unverifiable comes back in invalid, order preserved.
func verifyCitations(cited []string, evidence []model.EvidenceItem, resolver CitationResolver) ([]model.Citation, []string) {
	byChunk := make(map[string]model.EvidenceItem, len(evidence))
	for _, item := range evidence {
		if _, ok := byChunk[item.ChunkID]; !ok {
			byChunk[item.ChunkID] = item
		}
	}

	var valid []model.Citation
	var invalid []string
	seen := make(map[string]bool, len(cited))
	for _, raw := range cited {
		id := normalizeCitation(raw)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true

		item, ok := byChunk[id]
		if !ok {
			invalid = append(invalid, id)
			continue
		}
		if resolver != nil {
			if _, active := resolver.Resolve(id); !active {
				invalid = append(invalid, id)
				continue
			}
		}
		valid = append(valid, model.Citation{
			ChunkID:    item.ChunkID,
			DocumentID: item.DocumentID,
			Source:     item.Source,
		})
	}
	return valid, invalid
}

// normalizeCitation strips the bracket decoration backends tend to
// echo from evidence listings, "[chunk-7]" and "chunk-7" cite the
// same chunk.
func normalizeCitation(raw string) string {
	id := strings.TrimSpace(raw)
	id = strings.TrimPrefix(id, "[")
	id = strings.TrimSuffix(id, "]")
	return strings.TrimSpace(id)
}
