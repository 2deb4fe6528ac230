package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/kirillkom/retrieval-insight-engine/internal/core/domain"
	"github.com/kirillkom/retrieval-insight-engine/internal/core/ports"
)

const defaultLimit = 50

// RetrieveUseCase is C13's retrieve operation. It composes C1 → (C2 ‖ C3) →
// C4 → C5 → (C6) → C7, per spec.md §4.13.
type RetrieveUseCase struct {
	Embedder ports.QueryEmbedder
	Dense    ports.DenseRetriever
	Lexical  ports.LexicalRetriever
	RRFK     int
	Logger   *slog.Logger

	// DefaultLimit is spec.md §9's `max_chunks`, the per-retriever result
	// cap used when a caller omits `limit`. Zero means use defaultLimit.
	DefaultLimit int
	// MinResultsThreshold is spec.md §9's `min_results_threshold`, the
	// sparse-results trigger for the fallback controller. Zero means use
	// minResultsThreshold.
	MinResultsThreshold int
}

func (uc *RetrieveUseCase) defaultLimit() int {
	if uc.DefaultLimit > 0 {
		return uc.DefaultLimit
	}
	return defaultLimit
}

func (uc *RetrieveUseCase) minResultsThreshold() int {
	if uc.MinResultsThreshold > 0 {
		return uc.MinResultsThreshold
	}
	return minResultsThreshold
}

func (uc *RetrieveUseCase) Retrieve(ctx context.Context, opts domain.RetrieveOptions) (*domain.RetrieveResult, error) {
	query := strings.TrimSpace(opts.Query)
	if query == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "retrieve", errors.New("user_query must not be empty"))
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = uc.defaultLimit()
	}
	threshold := opts.MinSimilarity

	wallStart := time.Now()
	metrics := domain.PerformanceMetrics{}

	embedStart := time.Now()
	vector, err := uc.Embedder.EmbedQuery(ctx, query)
	metrics.EmbeddingGenerationMs = msSince(embedStart)
	if err != nil {
		return nil, domain.WrapError(domain.ErrEmbeddingFailure, "retrieve", err)
	}

	dense, lexical, partial, denseErr, lexicalErr := uc.retrieveParallel(ctx, vector, query, threshold, limit, opts.CallerID, opts.IncludePublicOnly, &metrics)
	if denseErr != nil && lexicalErr != nil {
		return nil, domain.WrapError(domain.ErrRetrievalFailure, "retrieve", errors.New("both retrievers failed"))
	}

	fuseStart := time.Now()
	k := uc.RRFK
	fused := fuseRRF(dense, lexical, k, "")
	metrics.RRFFusionMs = msSince(fuseStart)

	fused = applyPostFilter(fused, opts.Filters)

	fallbackTrigger := uc.minResultsThreshold()
	fallbackInfo := domain.FallbackInfo{Threshold: fallbackTrigger}
	if opts.EnableFallback && len(fused) < fallbackTrigger {
		fallbackInfo.PrecisionResults = len(fused)
		fb := &fallbackSearch{dense: uc.Dense, lexical: uc.Lexical}
		fbDense, fbLexical := fb.run(ctx, vector, query, threshold, limit, opts.CallerID, opts.IncludePublicOnly)
		fbFused := fuseRRF(fbDense, fbLexical, k, "_fallback")

		merged := mergeFallback(fused, fbFused)
		fallbackInfo.Used = true
		fallbackInfo.FallbackResults = len(merged) - len(fused)
		fallbackInfo.TotalCombined = len(merged)
		fused = merged
	}

	groupStart := time.Now()
	docs := groupByDocument(fused, opts.EnableDensityCalc)
	metrics.DocumentGroupingMs = msSince(groupStart)

	if !opts.Debug {
		stripTrace(docs)
	} else {
		attachTrace(docs)
	}

	metrics.Partial = partial
	metrics.TotalSearchMs = metrics.EmbeddingGenerationMs + metrics.SemanticSearchMs + metrics.KeywordSearchMs + metrics.RRFFusionMs + metrics.DocumentGroupingMs
	metrics.TotalWallClockMs = msSince(wallStart)

	totalChunks := 0
	for _, d := range docs {
		totalChunks += len(d.Chunks)
	}

	return &domain.RetrieveResult{
		Results:            docs,
		TotalDocuments:     len(docs),
		TotalChunks:        totalChunks,
		Query:              query,
		PerformanceMetrics: metrics,
		FallbackInfo:       fallbackInfo,
	}, nil
}

// retrieveParallel runs C2 and C3 concurrently, timing each independently.
// A single retriever failure downgrades to the other side's results with
// partial=true; the caller decides "both failed" from denseErr/lexicalErr,
// not from the result slices.
func (uc *RetrieveUseCase) retrieveParallel(
	ctx context.Context,
	vector []float32,
	query string,
	threshold float64,
	limit int,
	callerID string,
	publicOnly bool,
	metrics *domain.PerformanceMetrics,
) ([]domain.ChunkHit, []domain.ChunkHit, bool, error, error) {
	var wg sync.WaitGroup
	var dense, lexical []domain.ChunkHit
	var denseErr, lexicalErr error

	wg.Add(2)
	go func() {
		defer wg.Done()
		start := time.Now()
		dense, denseErr = uc.Dense.SearchDense(ctx, vector, threshold, limit, callerID, publicOnly)
		metrics.SemanticSearchMs = msSince(start)
	}()
	go func() {
		defer wg.Done()
		start := time.Now()
		lexical, lexicalErr = uc.Lexical.SearchLexical(ctx, query, limit, callerID, publicOnly)
		metrics.KeywordSearchMs = msSince(start)
	}()

	parallelStart := time.Now()
	wg.Wait()
	metrics.ParallelRetrievalMs = msSince(parallelStart)

	partial := false
	if denseErr != nil {
		if uc.Logger != nil {
			uc.Logger.Warn("dense retrieval failed, downgrading to lexical only", "error", denseErr)
		}
		dense = nil
		partial = true
	}
	if lexicalErr != nil {
		if uc.Logger != nil {
			uc.Logger.Warn("lexical retrieval failed, downgrading to dense only", "error", lexicalErr)
		}
		lexical = nil
		partial = true
	}
	return dense, lexical, partial, denseErr, lexicalErr
}

func msSince(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000.0
}

// stripTrace removes the debug trace payload when the caller did not ask
// for it, so it never leaks into the default response shape.
func stripTrace(docs []domain.DocumentResult) {
	for i := range docs {
		for j := range docs[i].Chunks {
			docs[i].Chunks[j].Trace = nil
		}
	}
}

func attachTrace(docs []domain.DocumentResult) {
	for i := range docs {
		for j := range docs[i].Chunks {
			hit := &docs[i].Chunks[j]
			hit.Trace = &domain.HitTrace{
				RawSemanticScore: hit.RawSemanticScore,
				SemanticRank:     hit.SemanticRank,
				LexicalRank:      hit.LexicalRank,
				SourceTag:        hit.SourceTag,
			}
		}
	}
}
