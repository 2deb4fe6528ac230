package domain

import "time"

// SourceTag records which retriever(s) contributed a fused hit.
type SourceTag string

const (
	SourceDense           SourceTag = "dense"
	SourceLexical         SourceTag = "lexical"
	SourceHybrid          SourceTag = "hybrid"
	SourceDenseFallback   SourceTag = "dense_fallback"
	SourceLexicalFallback SourceTag = "lexical_fallback"
	SourceHybridFallback  SourceTag = "hybrid_fallback"
)

// ChunkHit is a single retriever's result for one chunk, before fusion.
type ChunkHit struct {
	ChunkID               string
	DocumentID             string
	DocumentTitle          string
	DocumentType           string
	ChunkText              string
	Order                  int
	Metadata               map[string]any
	Score                  float64
	TotalChunksInDocument  int
}

// FusedHit is a ChunkHit after Reciprocal Rank Fusion.
type FusedHit struct {
	ChunkID               string
	DocumentID            string
	DocumentTitle         string
	DocumentType          string
	ChunkText             string
	Order                 int
	Metadata              map[string]any
	TotalChunksInDocument int

	RRFScore         float64
	SemanticRank     *int
	LexicalRank      *int
	RawSemanticScore *float64
	SourceTag        SourceTag

	// Trace carries the raw dense score and per-source ranks, populated only
	// when the request asked for debug=true.
	Trace *HitTrace
}

// HitTrace is the debug payload attached to a FusedHit when requested.
// RawLexicalScore is always nil: fusion keeps only the dense raw score.
type HitTrace struct {
	RawSemanticScore *float64
	RawLexicalScore  *float64
	SemanticRank     *int
	LexicalRank      *int
	SourceTag        SourceTag
}

// DocumentResult groups fused hits under their owning document.
type DocumentResult struct {
	DocumentID        string
	DocumentTitle     string
	DocumentType      string
	Chunks            []FusedHit
	BestRRFScore      float64
	BestRawSimilarity float64
	RelevanceDensity  float64
}

// DateRange bounds chunk metadata dates used by the post-filter.
type DateRange struct {
	Start *time.Time
	End   *time.Time
}

// SearchFilters are the caller-supplied post-filters applied after fusion.
type SearchFilters struct {
	DocumentIDs   []string
	DocumentTypes []string
	DateRange     DateRange
}

// RetrieveOptions carries every per-request knob in spec.md §6/§9.
type RetrieveOptions struct {
	Query             string
	Filters           SearchFilters
	Limit             int
	MinSimilarity     float64
	IncludePublicOnly bool
	EnableFallback    bool
	EnableDensityCalc bool
	Debug             bool
	CallerID          string
	CallerIsInternal  bool
}

// FallbackInfo reports whether the broadening fallback ran and its yield.
type FallbackInfo struct {
	Used             bool
	PrecisionResults int
	FallbackResults  int
	TotalCombined    int
	Threshold        int
}

// PerformanceMetrics carries the per-stage timing breakdown of spec.md §6.
// TotalSearchMs is a sum-of-components figure (kept for backward
// compatibility per spec.md §9); TotalWallClockMs is measured independently.
type PerformanceMetrics struct {
	EmbeddingGenerationMs float64
	SemanticSearchMs      float64
	KeywordSearchMs       float64
	ParallelRetrievalMs   float64
	RRFFusionMs           float64
	DocumentGroupingMs    float64
	TotalSearchMs         float64
	TotalWallClockMs      float64
	Partial               bool
}

// RetrieveResult is the outbound shape of the retrieve operation.
type RetrieveResult struct {
	Results            []DocumentResult
	TotalDocuments     int
	TotalChunks        int
	Query              string
	PerformanceMetrics PerformanceMetrics
	FallbackInfo       FallbackInfo
}
