package usecase

import (
	"context"

	"github.com/kirillkom/retrieval-insight-engine/internal/core/domain"
	"github.com/kirillkom/retrieval-insight-engine/internal/core/ports"
)

// minResultsThreshold is the sparse-results trigger (T) from spec.md §4.6.
// Below this many post-filter hits, the fallback controller re-runs both
// retrievers with a relaxed threshold and a doubled result cap.
const minResultsThreshold = 3

func relaxedThreshold(threshold float64) float64 {
	relaxed := threshold - 0.2
	if relaxed < 0.3 {
		relaxed = 0.3
	}
	return relaxed
}

// fallbackSearch is the C6 broadening pass. It is never fatal: a failure on
// either retriever yields whatever the other produced, or an empty slice.
type fallbackSearch struct {
	dense   ports.DenseRetriever
	lexical ports.LexicalRetriever
}

func (f *fallbackSearch) run(
	ctx context.Context,
	vector []float32,
	queryText string,
	threshold float64,
	maxResults int,
	callerID string,
	publicOnly bool,
) ([]domain.ChunkHit, []domain.ChunkHit) {
	relaxed := relaxedThreshold(threshold)
	broadened := maxResults * 2

	var dense, lexical []domain.ChunkHit
	if f.dense != nil {
		if hits, err := f.dense.SearchDense(ctx, vector, relaxed, broadened, callerID, publicOnly); err == nil {
			dense = hits
		}
	}
	if f.lexical != nil {
		if hits, err := f.lexical.SearchLexical(ctx, queryText, broadened, callerID, publicOnly); err == nil {
			lexical = hits
		}
	}
	return dense, lexical
}

// mergeFallback unions the primary fused hits with a fallback fusion pass,
// keyed by chunk id. On conflict the primary hit wins: its RRF score already
// reflects the tighter threshold and should not be diluted by the broadened
// pass.
func mergeFallback(primary, fallback []domain.FusedHit) []domain.FusedHit {
	seen := make(map[string]struct{}, len(primary))
	for _, h := range primary {
		seen[h.ChunkID] = struct{}{}
	}

	out := make([]domain.FusedHit, len(primary))
	copy(out, primary)
	for _, h := range fallback {
		if _, ok := seen[h.ChunkID]; ok {
			continue
		}
		seen[h.ChunkID] = struct{}{}
		out = append(out, h)
	}

	sortFusedHits(out)
	return out
}
