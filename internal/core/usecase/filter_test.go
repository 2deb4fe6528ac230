package usecase

import (
	"testing"
	"time"

	"github.com/kirillkom/retrieval-insight-engine/internal/core/domain"
)

func TestApplyPostFilterDocumentIDs(t *testing.T) {
	hits := []domain.FusedHit{
		{ChunkID: "a", DocumentID: "doc-1"},
		{ChunkID: "b", DocumentID: "doc-2"},
	}
	out := applyPostFilter(hits, domain.SearchFilters{DocumentIDs: []string{"doc-2"}})
	if len(out) != 1 || out[0].ChunkID != "b" {
		t.Fatalf("expected only doc-2's chunk, got %+v", out)
	}
}

func TestApplyPostFilterDocumentTypes(t *testing.T) {
	hits := []domain.FusedHit{
		{ChunkID: "a", DocumentType: "policy"},
		{ChunkID: "b", DocumentType: "memo"},
		{ChunkID: "c", DocumentType: ""},
	}
	out := applyPostFilter(hits, domain.SearchFilters{DocumentTypes: []string{"policy"}})
	if len(out) != 2 {
		t.Fatalf("expected 2 hits (matched type + untyped passthrough), got %d", len(out))
	}
	if out[0].ChunkID != "a" || out[1].ChunkID != "c" {
		t.Fatalf("expected stable order [a, c], got %+v", out)
	}
}

func TestApplyPostFilterDateRange(t *testing.T) {
	hits := []domain.FusedHit{
		{ChunkID: "old", Metadata: map[string]any{"created_at": "2020-01-01T00:00:00Z"}},
		{ChunkID: "mid", Metadata: map[string]any{"created_at": "2023-06-01T00:00:00Z"}},
		{ChunkID: "new", Metadata: map[string]any{"created_at": "2025-01-01T00:00:00Z"}},
	}
	start := time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := applyPostFilter(hits, domain.SearchFilters{
		DateRange: domain.DateRange{Start: &start, End: &end},
	})
	if len(out) != 1 || out[0].ChunkID != "mid" {
		t.Fatalf("expected only mid, got %+v", out)
	}
}

func TestApplyPostFilterMissingDatePassesThrough(t *testing.T) {
	hits := []domain.FusedHit{
		{ChunkID: "undated", Metadata: nil},
	}
	start := time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)
	out := applyPostFilter(hits, domain.SearchFilters{
		DateRange: domain.DateRange{Start: &start},
	})
	if len(out) != 1 {
		t.Fatalf("expected undated hit to pass through, got %+v", out)
	}
}

func TestApplyPostFilterNoFiltersIsNoop(t *testing.T) {
	hits := []domain.FusedHit{{ChunkID: "a"}, {ChunkID: "b"}}
	out := applyPostFilter(hits, domain.SearchFilters{})
	if len(out) != 2 {
		t.Fatalf("expected passthrough, got %+v", out)
	}
}
