package usecase

import (
	"sort"

	"github.com/kirillkom/retrieval-insight-engine/internal/core/domain"
)

const defaultRRFK = 10

// fuseRRF merges dense and lexical hit lists via additive Reciprocal Rank
// Fusion. Each hit at 0-based rank i in a list contributes 1/(k+i); a chunk
// present in both lists sums both contributions and is tagged hybrid.
func fuseRRF(dense, lexical []domain.ChunkHit, k int, sourceSuffix string) []domain.FusedHit {
	if k <= 0 {
		k = defaultRRFK
	}

	acc := make(map[string]*domain.FusedHit, len(dense)+len(lexical))
	order := make([]string, 0, len(dense)+len(lexical))

	addDense := func(hits []domain.ChunkHit) {
		for rank, hit := range hits {
			fused, ok := acc[hit.ChunkID]
			if !ok {
				fused = newFusedHit(hit)
				acc[hit.ChunkID] = fused
				order = append(order, hit.ChunkID)
			}
			rankCopy := rank
			fused.SemanticRank = &rankCopy
			score := hit.Score
			fused.RawSemanticScore = &score
			fused.RRFScore += 1.0 / float64(k+rank)
		}
	}

	addLexical := func(hits []domain.ChunkHit) {
		for rank, hit := range hits {
			fused, ok := acc[hit.ChunkID]
			if !ok {
				fused = newFusedHit(hit)
				acc[hit.ChunkID] = fused
				order = append(order, hit.ChunkID)
			}
			rankCopy := rank
			fused.LexicalRank = &rankCopy
			fused.RRFScore += 1.0 / float64(k+rank)
		}
	}

	addDense(dense)
	addLexical(lexical)

	out := make([]domain.FusedHit, 0, len(order))
	for _, chunkID := range order {
		fused := acc[chunkID]
		fused.SourceTag = sourceTagFor(fused.SemanticRank != nil, fused.LexicalRank != nil, sourceSuffix)
		out = append(out, *fused)
	}

	sortFusedHits(out)
	return out
}

func newFusedHit(hit domain.ChunkHit) *domain.FusedHit {
	return &domain.FusedHit{
		ChunkID:               hit.ChunkID,
		DocumentID:            hit.DocumentID,
		DocumentTitle:         hit.DocumentTitle,
		DocumentType:          hit.DocumentType,
		ChunkText:             hit.ChunkText,
		Order:                 hit.Order,
		Metadata:              hit.Metadata,
		TotalChunksInDocument: hit.TotalChunksInDocument,
	}
}

func sourceTagFor(hasSemantic, hasLexical bool, suffix string) domain.SourceTag {
	switch {
	case hasSemantic && hasLexical:
		return domain.SourceTag("hybrid" + suffix)
	case hasSemantic:
		return domain.SourceTag("dense" + suffix)
	default:
		return domain.SourceTag("lexical" + suffix)
	}
}

// sortFusedHits orders by descending RRFScore, ties broken by ascending Order.
func sortFusedHits(hits []domain.FusedHit) {
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].RRFScore != hits[j].RRFScore {
			return hits[i].RRFScore > hits[j].RRFScore
		}
		return hits[i].Order < hits[j].Order
	})
}
