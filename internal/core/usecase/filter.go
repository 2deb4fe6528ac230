package usecase

import (
	"time"

	"github.com/kirillkom/retrieval-insight-engine/internal/core/domain"
)

// applyPostFilter applies §4.5's caller-supplied filters in order, preserving
// the input's relative ordering (a stable filter).
func applyPostFilter(hits []domain.FusedHit, filters domain.SearchFilters) []domain.FusedHit {
	out := hits

	if len(filters.DocumentIDs) > 0 {
		allowed := toSet(filters.DocumentIDs)
		out = filterStable(out, func(h domain.FusedHit) bool {
			_, ok := allowed[h.DocumentID]
			return ok
		})
	}

	if len(filters.DocumentTypes) > 0 {
		allowed := toSet(filters.DocumentTypes)
		out = filterStable(out, func(h domain.FusedHit) bool {
			if h.DocumentType == "" {
				return true
			}
			_, ok := allowed[h.DocumentType]
			return ok
		})
	}

	if filters.DateRange.Start != nil {
		start := *filters.DateRange.Start
		out = filterStable(out, func(h domain.FusedHit) bool {
			d, ok := chunkDate(h.Metadata)
			return !ok || !d.Before(start)
		})
	}

	if filters.DateRange.End != nil {
		end := *filters.DateRange.End
		out = filterStable(out, func(h domain.FusedHit) bool {
			d, ok := chunkDate(h.Metadata)
			return !ok || !d.After(end)
		})
	}

	return out
}

func filterStable(hits []domain.FusedHit, keep func(domain.FusedHit) bool) []domain.FusedHit {
	out := make([]domain.FusedHit, 0, len(hits))
	for _, h := range hits {
		if keep(h) {
			out = append(out, h)
		}
	}
	return out
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}

// chunkDate reads metadata.created_at or metadata.date, parsing RFC3339 or a
// plain date. Hits without a date field are reported as ok=false so they
// pass through every date filter, per §4.5.
func chunkDate(metadata map[string]any) (time.Time, bool) {
	for _, key := range []string{"created_at", "date"} {
		raw, ok := metadata[key]
		if !ok {
			continue
		}
		s, ok := raw.(string)
		if !ok || s == "" {
			continue
		}
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			return t, true
		}
		if t, err := time.Parse("2006-01-02", s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
