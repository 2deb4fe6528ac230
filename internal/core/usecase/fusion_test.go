package usecase

import (
	"testing"

	"github.com/kirillkom/retrieval-insight-engine/internal/core/domain"
)

func TestFuseRRFPureDense(t *testing.T) {
	dense := []domain.ChunkHit{
		{ChunkID: "c1", Score: 0.9, Order: 0},
		{ChunkID: "c2", Score: 0.8, Order: 1},
	}
	fused := fuseRRF(dense, nil, 10, "")

	if len(fused) != 2 {
		t.Fatalf("expected 2 fused hits, got %d", len(fused))
	}
	if fused[0].ChunkID != "c1" || fused[1].ChunkID != "c2" {
		t.Fatalf("expected order [c1, c2], got [%s, %s]", fused[0].ChunkID, fused[1].ChunkID)
	}
	if fused[0].RRFScore != 1.0/10 {
		t.Fatalf("expected rrf(c1)=1/10, got %v", fused[0].RRFScore)
	}
	if fused[1].RRFScore != 1.0/11 {
		t.Fatalf("expected rrf(c2)=1/11, got %v", fused[1].RRFScore)
	}
	if fused[0].SourceTag != domain.SourceDense {
		t.Fatalf("expected source_tag=dense, got %s", fused[0].SourceTag)
	}
}

func TestFuseRRFHybridOverlap(t *testing.T) {
	dense := []domain.ChunkHit{
		{ChunkID: "A", Order: 0},
		{ChunkID: "B", Order: 1},
	}
	lexical := []domain.ChunkHit{
		{ChunkID: "B", Order: 1},
		{ChunkID: "C", Order: 2},
	}
	fused := fuseRRF(dense, lexical, 10, "")

	if len(fused) != 3 {
		t.Fatalf("expected 3 fused hits, got %d", len(fused))
	}
	if fused[0].ChunkID != "B" {
		t.Fatalf("expected B first, got %s", fused[0].ChunkID)
	}
	wantB := 1.0/11 + 1.0/10
	if fused[0].RRFScore != wantB {
		t.Fatalf("expected rrf(B)=%v, got %v", wantB, fused[0].RRFScore)
	}
	if fused[0].SourceTag != domain.SourceHybrid {
		t.Fatalf("expected B source_tag=hybrid, got %s", fused[0].SourceTag)
	}
	if fused[1].ChunkID != "A" || fused[2].ChunkID != "C" {
		t.Fatalf("expected order [B, A, C], got [B, %s, %s]", fused[1].ChunkID, fused[2].ChunkID)
	}
}

func TestFuseRRFEmptyListsYieldEmptyResult(t *testing.T) {
	fused := fuseRRF(nil, nil, 10, "")
	if len(fused) != 0 {
		t.Fatalf("expected 0 fused hits, got %d", len(fused))
	}
}

func TestFuseRRFDefaultsKWhenNonPositive(t *testing.T) {
	dense := []domain.ChunkHit{{ChunkID: "c1", Order: 0}}
	fused := fuseRRF(dense, nil, 0, "")
	if fused[0].RRFScore != 1.0/defaultRRFK {
		t.Fatalf("expected default k=%d applied, got score %v", defaultRRFK, fused[0].RRFScore)
	}
}

func TestFuseRRFFallbackSuffixTagsSources(t *testing.T) {
	dense := []domain.ChunkHit{{ChunkID: "c1", Order: 0}}
	fused := fuseRRF(dense, nil, 10, "_fallback")
	if fused[0].SourceTag != domain.SourceDenseFallback {
		t.Fatalf("expected source_tag=dense_fallback, got %s", fused[0].SourceTag)
	}
}
