package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/kirillkom/retrieval-insight-engine/internal/core/domain"
)

type fakeEmbedder struct {
	vector []float32
	err    error
}

func (f *fakeEmbedder) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	return f.vector, f.err
}

type fakeDense struct {
	hits []domain.ChunkHit
	err  error
}

func (f *fakeDense) SearchDense(ctx context.Context, vector []float32, threshold float64, maxResults int, callerID string, publicOnly bool) ([]domain.ChunkHit, error) {
	return f.hits, f.err
}

type fakeLexical struct {
	hits []domain.ChunkHit
	err  error
}

func (f *fakeLexical) SearchLexical(ctx context.Context, queryText string, maxResults int, callerID string, publicOnly bool) ([]domain.ChunkHit, error) {
	return f.hits, f.err
}

func TestRetrieveRejectsEmptyQuery(t *testing.T) {
	uc := &RetrieveUseCase{
		Embedder: &fakeEmbedder{},
		Dense:    &fakeDense{},
		Lexical:  &fakeLexical{},
	}
	_, err := uc.Retrieve(context.Background(), domain.RetrieveOptions{Query: "   "})
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected InvalidArgument, got %v", err)
	}
}

func TestRetrieveFatalOnEmbeddingFailure(t *testing.T) {
	uc := &RetrieveUseCase{
		Embedder: &fakeEmbedder{err: errors.New("boom")},
		Dense:    &fakeDense{},
		Lexical:  &fakeLexical{},
	}
	_, err := uc.Retrieve(context.Background(), domain.RetrieveOptions{Query: "hello"})
	if !domain.IsKind(err, domain.ErrEmbeddingFailure) {
		t.Fatalf("expected EmbeddingFailure, got %v", err)
	}
}

func TestRetrieveDowngradesToSingleRetrieverOnPartialFailure(t *testing.T) {
	uc := &RetrieveUseCase{
		Embedder: &fakeEmbedder{vector: []float32{0.1}},
		Dense:    &fakeDense{hits: []domain.ChunkHit{{ChunkID: "c1", DocumentID: "doc-1", Order: 0}}},
		Lexical:  &fakeLexical{err: errors.New("lexical down")},
	}
	res, err := uc.Retrieve(context.Background(), domain.RetrieveOptions{Query: "hello"})
	if err != nil {
		t.Fatalf("expected success with partial degradation, got %v", err)
	}
	if !res.PerformanceMetrics.Partial {
		t.Fatalf("expected partial=true")
	}
	if res.TotalDocuments != 1 {
		t.Fatalf("expected 1 document from dense side, got %d", res.TotalDocuments)
	}
}

func TestRetrieveFailsWhenBothRetrieversFail(t *testing.T) {
	uc := &RetrieveUseCase{
		Embedder: &fakeEmbedder{vector: []float32{0.1}},
		Dense:    &fakeDense{err: errors.New("dense down")},
		Lexical:  &fakeLexical{err: errors.New("lexical down")},
	}
	_, err := uc.Retrieve(context.Background(), domain.RetrieveOptions{Query: "hello"})
	if !domain.IsKind(err, domain.ErrRetrievalFailure) {
		t.Fatalf("expected RetrievalFailure, got %v", err)
	}
}

func TestRetrieveSucceedsWithNilHitsOnBothSidesWhenNoError(t *testing.T) {
	uc := &RetrieveUseCase{
		Embedder: &fakeEmbedder{vector: []float32{0.1}},
		Dense:    &fakeDense{hits: nil},
		Lexical:  &fakeLexical{hits: nil},
	}
	res, err := uc.Retrieve(context.Background(), domain.RetrieveOptions{Query: "hello"})
	if err != nil {
		t.Fatalf("expected a zero-result success, not a retrieval failure, got %v", err)
	}
	if res.TotalDocuments != 0 {
		t.Fatalf("expected 0 documents, got %d", res.TotalDocuments)
	}
}

func TestRetrieveDebugAttachesTrace(t *testing.T) {
	uc := &RetrieveUseCase{
		Embedder: &fakeEmbedder{vector: []float32{0.1}},
		Dense:    &fakeDense{hits: []domain.ChunkHit{{ChunkID: "c1", DocumentID: "doc-1", Order: 0}}},
		Lexical:  &fakeLexical{},
	}
	res, err := uc.Retrieve(context.Background(), domain.RetrieveOptions{Query: "hello", Debug: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Results[0].Chunks[0].Trace == nil {
		t.Fatalf("expected debug trace attached")
	}
}

func TestRetrieveNoDebugOmitsTrace(t *testing.T) {
	uc := &RetrieveUseCase{
		Embedder: &fakeEmbedder{vector: []float32{0.1}},
		Dense:    &fakeDense{hits: []domain.ChunkHit{{ChunkID: "c1", DocumentID: "doc-1", Order: 0}}},
		Lexical:  &fakeLexical{},
	}
	res, err := uc.Retrieve(context.Background(), domain.RetrieveOptions{Query: "hello"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Results[0].Chunks[0].Trace != nil {
		t.Fatalf("expected no debug trace")
	}
}

func TestRetrieveTriggersFallbackWhenSparse(t *testing.T) {
	uc := &RetrieveUseCase{
		Embedder: &fakeEmbedder{vector: []float32{0.1}},
		Dense:    &fakeDense{hits: []domain.ChunkHit{{ChunkID: "c1", DocumentID: "doc-1", Order: 0}}},
		Lexical:  &fakeLexical{},
	}
	res, err := uc.Retrieve(context.Background(), domain.RetrieveOptions{
		Query:          "hello",
		EnableFallback: true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.FallbackInfo.Used {
		t.Fatalf("expected fallback to run given a single sparse hit")
	}
}
