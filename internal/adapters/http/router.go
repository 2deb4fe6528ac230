package httpadapter

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/retrieval-insight-engine/internal/core/domain"
	"github.com/kirillkom/retrieval-insight-engine/internal/core/ports"
	"github.com/kirillkom/retrieval-insight-engine/internal/observability/metrics"
)

const serviceName = "insight-engine"

// Router wires the HTTP surface of spec.md §6: /v1/retrieve and
// /v1/insights, plus health and metrics endpoints.
type Router struct {
	retrieveUC ports.RetrievalService
	insightsUC ports.InsightService
	identity   ports.IdentityVerifier
	metrics    *metrics.HTTPServerMetrics
	limiter    *callerRateLimiter
	logger     *slog.Logger
	cfg        RouterConfig

	stopEviction chan struct{}
}

// RouterConfig carries the transport-layer knobs spec.md §5 leaves to the
// boundary: per-caller rate limiting and request concurrency backpressure.
type RouterConfig struct {
	RateLimitRPS          float64
	RateLimitBurst        int
	MaxConcurrentRequests int
	BackpressureTimeout   time.Duration
	// DefaultMinSimilarity is spec.md §9's `similarity_threshold`, the
	// dense-retrieval floor applied when a caller omits `min_similarity`.
	DefaultMinSimilarity float64
}

func NewRouter(
	retrieveUC ports.RetrievalService,
	insightsUC ports.InsightService,
	identity ports.IdentityVerifier,
	httpMetrics *metrics.HTTPServerMetrics,
	cfg RouterConfig,
	logger *slog.Logger,
) *Router {
	rt := &Router{
		retrieveUC:   retrieveUC,
		insightsUC:   insightsUC,
		identity:     identity,
		metrics:      httpMetrics,
		limiter:      newCallerRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst),
		logger:       logger,
		cfg:          cfg,
		stopEviction: make(chan struct{}),
	}
	go rt.limiter.evictIdle(rt.stopEviction, 5*time.Minute)
	return rt
}

// Close stops the rate limiter's idle-eviction loop. Call during graceful
// shutdown.
func (rt *Router) Close() {
	close(rt.stopEviction)
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/retrieve", rt.retrieve)
	mux.HandleFunc("/v1/insights", rt.insights)
	mux.Handle("/metrics", rt.metrics.Handler())

	var handler http.Handler = mux
	handler = rt.metrics.Middleware(serviceName, handler)
	handler = backpressureMiddleware(handler, rt.cfg.MaxConcurrentRequests, rt.cfg.BackpressureTimeout)
	handler = rt.limiter.rateLimitMiddleware(handler)
	handler = accessLogMiddleware(handler)
	handler = requestIDMiddleware(handler)
	return handler
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type retrieveRequest struct {
	UserQuery         string              `json:"user_query"`
	Filters           filtersRequest      `json:"filters"`
	Limit             int                 `json:"limit"`
	MinSimilarity     *float64            `json:"min_similarity"`
	IncludePublicOnly bool                `json:"include_public_only"`
	EnableFallback    *bool               `json:"enable_fallback"`
	EnableDensityCalc *bool               `json:"enable_density_calc"`
	Debug             bool                `json:"debug"`
}

type filtersRequest struct {
	DocumentIDs   []string         `json:"document_id"`
	DocumentTypes []string         `json:"document_type"`
	DateRange     dateRangeRequest `json:"dateRange"`
}

type dateRangeRequest struct {
	Start *time.Time `json:"start"`
	End   *time.Time `json:"end"`
}

func (rt *Router) retrieve(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var raw map[string]any
	body, err := decodeJSONBody(r, &raw)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if err := validateAgainstSchema(retrieveRequestSchema, raw); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	var req retrieveRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	identity, err := rt.verify(r)
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}

	opts := domain.RetrieveOptions{
		Query: req.UserQuery,
		Filters: domain.SearchFilters{
			DocumentIDs:   req.Filters.DocumentIDs,
			DocumentTypes: req.Filters.DocumentTypes,
			DateRange: domain.DateRange{
				Start: req.Filters.DateRange.Start,
				End:   req.Filters.DateRange.End,
			},
		},
		Limit:             req.Limit,
		MinSimilarity:     minSimilarityOrDefault(req.MinSimilarity, rt.cfg.DefaultMinSimilarity),
		IncludePublicOnly: req.IncludePublicOnly,
		EnableFallback:    enableFallbackOrDefault(req.EnableFallback),
		EnableDensityCalc: enableDensityCalcOrDefault(req.EnableDensityCalc),
		Debug:             req.Debug,
	}
	if identity != nil {
		opts.CallerID = identity.CallerID
		opts.CallerIsInternal = identity.Internal
	}

	result, err := rt.retrieveUC.Retrieve(r.Context(), opts)
	if err != nil {
		rt.logger.Error("retrieve_failed", "request_id", requestIDFromContext(r.Context()), "error", err)
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}

	rt.metrics.RecordRetrieve(serviceName, result.TotalDocuments, result.FallbackInfo.Used, result.PerformanceMetrics.Partial)
	rt.recordRetrieveStages(result.PerformanceMetrics)
	writeJSON(w, http.StatusOK, result)
}

type insightsRequest struct {
	UserQuery    string                 `json:"user_query"`
	Documents    []domain.DocumentResult `json:"documents"`
	InsightType  domain.InsightType     `json:"insight_type"`
	CacheKey     string                 `json:"cache_key"`
	Priority     bool                   `json:"priority"`
	SearchTimeMs int                    `json:"search_time_ms"`
}

func (rt *Router) insights(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var raw map[string]any
	body, err := decodeJSONBody(r, &raw)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if err := validateAgainstSchema(insightsRequestSchema, raw); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	var req insightsRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	identity, err := rt.verify(r)
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}

	opts := domain.InsightsOptions{
		Query:        req.UserQuery,
		Documents:    req.Documents,
		InsightType:  req.InsightType,
		CacheKey:     req.CacheKey,
		Priority:     req.Priority,
		SearchTimeMs: req.SearchTimeMs,
	}
	if identity != nil {
		opts.CallerID = identity.CallerID
	}

	start := time.Now()
	result, err := rt.insightsUC.GenerateInsights(r.Context(), opts)
	if err != nil {
		rt.logger.Error("insights_failed", "request_id", requestIDFromContext(r.Context()), "error", err)
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}

	kind := string(opts.InsightType)
	if kind == "" {
		kind = string(domain.InsightAll)
	}
	rt.metrics.RecordInsight(serviceName, kind, time.Since(start), result.Cached)
	for _, degradedKind := range result.DegradedKinds {
		rt.metrics.RecordInsightDegraded(serviceName, string(degradedKind))
	}
	writeJSON(w, http.StatusOK, result)
}

func (rt *Router) recordRetrieveStages(pm domain.PerformanceMetrics) {
	rt.metrics.RecordRetrieveStage(serviceName, "embedding_generation", time.Duration(pm.EmbeddingGenerationMs*float64(time.Millisecond)))
	rt.metrics.RecordRetrieveStage(serviceName, "semantic_search", time.Duration(pm.SemanticSearchMs*float64(time.Millisecond)))
	rt.metrics.RecordRetrieveStage(serviceName, "keyword_search", time.Duration(pm.KeywordSearchMs*float64(time.Millisecond)))
	rt.metrics.RecordRetrieveStage(serviceName, "rrf_fusion", time.Duration(pm.RRFFusionMs*float64(time.Millisecond)))
	rt.metrics.RecordRetrieveStage(serviceName, "document_grouping", time.Duration(pm.DocumentGroupingMs*float64(time.Millisecond)))
}

func (rt *Router) verify(r *http.Request) (*domain.CallerIdentity, error) {
	if rt.identity == nil {
		return nil, nil
	}
	bearer := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	return rt.identity.Verify(r.Context(), bearer)
}

func minSimilarityOrDefault(v *float64, fallback float64) float64 {
	if v == nil {
		if fallback > 0 {
			return fallback
		}
		return 0.6
	}
	return *v
}

func enableFallbackOrDefault(v *bool) bool {
	if v == nil {
		return true
	}
	return *v
}

func enableDensityCalcOrDefault(v *bool) bool {
	if v == nil {
		return true
	}
	return *v
}

func decodeJSONBody(r *http.Request, raw *map[string]any) ([]byte, error) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(body, raw); err != nil {
		return nil, err
	}
	return body, nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
