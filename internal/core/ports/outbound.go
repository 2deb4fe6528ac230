package ports

import (
	"context"

	"github.com/kirillkom/retrieval-insight-engine/internal/core/domain"
)

// QueryEmbedder turns a query string into a unit-normalized vector (C1).
type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, query string) ([]float32, error)
}

// DenseRetriever performs cosine-similarity search over pre-embedded chunks (C2).
type DenseRetriever interface {
	SearchDense(
		ctx context.Context,
		vector []float32,
		threshold float64,
		maxResults int,
		callerID string,
		publicOnly bool,
	) ([]domain.ChunkHit, error)
}

// LexicalRetriever performs full-text search over chunk text (C3).
type LexicalRetriever interface {
	SearchLexical(
		ctx context.Context,
		queryText string,
		maxResults int,
		callerID string,
		publicOnly bool,
	) ([]domain.ChunkHit, error)
}

// InsightCache is the content-addressed insight store (C12).
type InsightCache interface {
	Get(ctx context.Context, cacheKey string) (*domain.CacheEntry, error)
	Put(ctx context.Context, entry domain.CacheEntry) error
}

// ChatMessage is one turn in an LLM chat-completion request.
type ChatMessage struct {
	Role    string
	Content string
}

// LLMClient issues a JSON-mode chat-completion call (C10).
type LLMClient interface {
	ChatJSON(
		ctx context.Context,
		messages []ChatMessage,
		model string,
		temperature float64,
		priority bool,
	) (string, error)
}

// IdentityVerifier verifies an inbound bearer token against the external
// auth provider. A nil CallerIdentity with a nil error means "anonymous,
// public documents only".
type IdentityVerifier interface {
	Verify(ctx context.Context, bearer string) (*domain.CallerIdentity, error)
}

// HistoryRecorder is the best-effort, non-fatal query-history sink.
type HistoryRecorder interface {
	RecordQuery(ctx context.Context, callerID, query string, bundle domain.InsightBundle) error
}
