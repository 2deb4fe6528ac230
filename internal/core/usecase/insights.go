package usecase

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/kirillkom/retrieval-insight-engine/internal/core/domain"
	"github.com/kirillkom/retrieval-insight-engine/internal/core/ports"
)

const (
	defaultLLMTimeout = 15 * time.Second
	cacheTTL          = 24 * time.Hour
)

var unavailableSummary = domain.DocumentSummary{
	RelevanceSummary: "Summary unavailable.",
	ConfidenceScore:  0.0,
}

// InsightsUseCase is C8 + C13's insights operation: it consults C12, fans
// out C10 calls for every requested kind concurrently, resolves citations
// via C11, and stores the assembled bundle.
type InsightsUseCase struct {
	LLM     ports.LLMClient
	Cache   ports.InsightCache
	History ports.HistoryRecorder
	Model   string
	Logger  *slog.Logger

	// LLMTimeout is spec.md §9's `llm_timeout_ms`, the per-task deadline.
	// Zero means use defaultLLMTimeout.
	LLMTimeout time.Duration
	// CacheTTL is spec.md §9's `cache_ttl_seconds`. Zero means use cacheTTL.
	CacheTTL time.Duration
}

func (uc *InsightsUseCase) llmTimeout() time.Duration {
	if uc.LLMTimeout > 0 {
		return uc.LLMTimeout
	}
	return defaultLLMTimeout
}

func (uc *InsightsUseCase) cacheTTL() time.Duration {
	if uc.CacheTTL > 0 {
		return uc.CacheTTL
	}
	return cacheTTL
}

func (uc *InsightsUseCase) GenerateInsights(ctx context.Context, opts domain.InsightsOptions) (*domain.InsightsResult, error) {
	insightTypes := resolveInsightTypes(opts.InsightType)

	cacheKey := opts.CacheKey
	if cacheKey == "" {
		cacheKey = deriveCacheKey(opts.InsightType, opts.Query, opts.Documents)
	}

	if uc.Cache != nil {
		if entry, err := uc.Cache.Get(ctx, cacheKey); err == nil && entry != nil {
			return &domain.InsightsResult{Bundle: entry.Bundle, Cached: true}, nil
		} else if err != nil && uc.Logger != nil {
			uc.Logger.Warn("insight cache lookup failed", "error", err, "cache_key", cacheKey)
		}
	}

	bundle := domain.InsightBundle{
		CacheKey:    cacheKey,
		GeneratedAt: time.Time{},
	}
	breakdown := domain.InsightBreakdown{}

	start := time.Now()

	var wg sync.WaitGroup
	var mu sync.Mutex
	var degraded []domain.InsightType

	for _, kind := range insightTypes {
		wg.Add(1)
		go func(kind domain.InsightType) {
			defer wg.Done()
			taskCtx, cancel := context.WithTimeout(ctx, uc.llmTimeout())
			defer cancel()

			elapsed, err := uc.runInsightTask(taskCtx, kind, opts, &bundle, &mu)
			if err != nil && uc.Logger != nil {
				uc.Logger.Warn("insight task degraded", "kind", kind, "error", err)
			}

			mu.Lock()
			if err != nil {
				degraded = append(degraded, kind)
			}
			switch kind {
			case domain.InsightDocumentSummaries:
				breakdown.DocumentSummariesMs = elapsed
			case domain.InsightDirectAnswer:
				breakdown.DirectAnswerMs = elapsed
			case domain.InsightRelatedQuestions:
				breakdown.RelatedQuestionsMs = elapsed
			}
			mu.Unlock()
		}(kind)
	}

	wg.Wait()
	breakdown.TotalMs = float64(time.Since(start).Milliseconds())
	bundle.GeneratedAt = time.Now()

	if uc.Cache != nil {
		if err := uc.Cache.Put(ctx, domain.CacheEntry{
			CacheKey:  cacheKey,
			Bundle:    bundle,
			ExpiresAt: time.Now().Add(uc.cacheTTL()),
		}); err != nil && uc.Logger != nil {
			uc.Logger.Warn("insight cache store failed", "error", err, "cache_key", cacheKey)
		}
	}

	if uc.History != nil {
		if err := uc.History.RecordQuery(ctx, opts.CallerID, opts.Query, bundle); err != nil && uc.Logger != nil {
			uc.Logger.Warn("history_append failed", "error", err, "caller_id", opts.CallerID)
		}
	}

	return &domain.InsightsResult{Bundle: bundle, Breakdown: breakdown, Cached: false, DegradedKinds: degraded}, nil
}

// runInsightTask dispatches one insight kind. It never returns an error that
// aborts the batch: a failure here is logged by the caller and the bundle
// field is left at its documented fallback value.
func (uc *InsightsUseCase) runInsightTask(
	ctx context.Context,
	kind domain.InsightType,
	opts domain.InsightsOptions,
	bundle *domain.InsightBundle,
	mu *sync.Mutex,
) (float64, error) {
	taskStart := time.Now()
	var taskErr error

	switch kind {
	case domain.InsightDocumentSummaries:
		summaries := make([]domain.DocumentSummary, len(opts.Documents))
		var wg sync.WaitGroup
		for i, doc := range opts.Documents {
			wg.Add(1)
			go func(i int, doc domain.DocumentResult) {
				defer wg.Done()
				summaries[i] = uc.summarizeDocument(ctx, opts.Query, doc, opts.Priority)
			}(i, doc)
		}
		wg.Wait()
		mu.Lock()
		bundle.DocumentSummaries = summaries
		mu.Unlock()

	case domain.InsightDirectAnswer:
		answer, contributing, err := uc.generateDirectAnswer(ctx, opts.Query, opts.Documents, opts.Priority)
		taskErr = err
		mu.Lock()
		bundle.DirectAnswer = answer
		if answer != nil {
			answer.SourceDocumentIDs = resolveCitations(answer.AnswerMarkdown, contributing)
		}
		mu.Unlock()

	case domain.InsightRelatedQuestions:
		questions, err := uc.generateRelatedQuestions(ctx, opts.Query, opts.Documents, opts.Priority)
		taskErr = err
		mu.Lock()
		bundle.RelatedQuestions = questions
		mu.Unlock()
	}

	return float64(time.Since(taskStart).Milliseconds()), taskErr
}

func (uc *InsightsUseCase) summarizeDocument(ctx context.Context, query string, doc domain.DocumentResult, priority bool) domain.DocumentSummary {
	messages := buildSummaryPrompt(query, doc)
	raw, err := uc.LLM.ChatJSON(ctx, messages, uc.Model, summaryTemperature, priority)
	if err != nil {
		return fallbackSummary(doc)
	}

	var parsed struct {
		RelevanceSummary string  `json:"relevance_summary"`
		ConfidenceScore  float64 `json:"confidence_score"`
	}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return fallbackSummary(doc)
	}

	return domain.DocumentSummary{
		DocumentID:       doc.DocumentID,
		DocumentTitle:    doc.DocumentTitle,
		DocumentType:     doc.DocumentType,
		RelevanceSummary: parsed.RelevanceSummary,
		ConfidenceScore:  parsed.ConfidenceScore,
	}
}

func fallbackSummary(doc domain.DocumentResult) domain.DocumentSummary {
	s := unavailableSummary
	s.DocumentID = doc.DocumentID
	s.DocumentTitle = doc.DocumentTitle
	s.DocumentType = doc.DocumentType
	return s
}

func (uc *InsightsUseCase) generateDirectAnswer(
	ctx context.Context,
	query string,
	documents []domain.DocumentResult,
	priority bool,
) (*domain.DirectAnswer, []domain.DocumentResult, error) {
	messages, contributing := buildAnswerPrompt(query, documents)
	raw, err := uc.LLM.ChatJSON(ctx, messages, uc.Model, directAnswerTemperature, priority)
	if err != nil {
		return nil, contributing, err
	}

	var parsed struct {
		AnswerMarkdown       string   `json:"answer_markdown"`
		Confidence           float64  `json:"confidence"`
		SourceDocumentTitles []string `json:"source_document_titles"`
	}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, contributing, err
	}

	return &domain.DirectAnswer{
		AnswerMarkdown:       parsed.AnswerMarkdown,
		Confidence:           parsed.Confidence,
		SourceDocumentTitles: parsed.SourceDocumentTitles,
	}, contributing, nil
}

func (uc *InsightsUseCase) generateRelatedQuestions(
	ctx context.Context,
	query string,
	documents []domain.DocumentResult,
	priority bool,
) ([]domain.RelatedQuestion, error) {
	messages := buildRelatedQuestionsPrompt(query, documents)
	raw, err := uc.LLM.ChatJSON(ctx, messages, uc.Model, relatedQuestionsTemperature, priority)
	if err != nil {
		return nil, err
	}

	var parsed struct {
		RelatedQuestions []domain.RelatedQuestion `json:"related_questions"`
	}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, err
	}
	return parsed.RelatedQuestions, nil
}

func resolveInsightTypes(requested domain.InsightType) []domain.InsightType {
	if requested == domain.InsightAll || requested == "" {
		return []domain.InsightType{
			domain.InsightDocumentSummaries,
			domain.InsightDirectAnswer,
			domain.InsightRelatedQuestions,
		}
	}
	return []domain.InsightType{requested}
}
