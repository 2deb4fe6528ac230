package domain

import "time"

// InsightType selects which insight kind(s) an insights request wants.
type InsightType string

const (
	InsightDocumentSummaries InsightType = "document_summaries"
	InsightDirectAnswer      InsightType = "direct_answer"
	InsightRelatedQuestions  InsightType = "related_questions"
	InsightAll               InsightType = "all"
)

// RelatedQuestionCategory is the sum type over follow-up question buckets.
type RelatedQuestionCategory string

const (
	CategoryStrategic RelatedQuestionCategory = "Strategic"
	CategoryTechnical RelatedQuestionCategory = "Technical"
	CategoryAdoption  RelatedQuestionCategory = "Adoption"
)

// DocumentSummary is the per-document relevance summary insight.
type DocumentSummary struct {
	DocumentID       string  `json:"document_id"`
	DocumentTitle    string  `json:"document_title"`
	DocumentType     string  `json:"document_type"`
	RelevanceSummary string  `json:"relevance_summary"`
	ConfidenceScore  float64 `json:"confidence_score"`
}

// DirectAnswer is the cited, markdown answer insight.
type DirectAnswer struct {
	AnswerMarkdown       string   `json:"answer_markdown"`
	Confidence           float64  `json:"confidence"`
	SourceDocumentTitles []string `json:"source_document_titles"`
	SourceDocumentIDs    []string `json:"source_document_ids"`
}

// RelatedQuestion is one categorized follow-up question.
type RelatedQuestion struct {
	Question  string                   `json:"question"`
	Relevance float64                  `json:"relevance"`
	Category  RelatedQuestionCategory  `json:"category"`
}

// InsightBundle is the assembled result of an insights request.
type InsightBundle struct {
	DocumentSummaries []DocumentSummary `json:"document_summaries,omitempty"`
	DirectAnswer      *DirectAnswer     `json:"direct_answer,omitempty"`
	RelatedQuestions  []RelatedQuestion `json:"related_questions,omitempty"`
	CacheKey          string            `json:"cache_key"`
	GeneratedAt       time.Time         `json:"generated_at"`
}

// InsightBreakdown carries per-kind timings for the insights response.
type InsightBreakdown struct {
	DocumentSummariesMs float64
	DirectAnswerMs      float64
	RelatedQuestionsMs  float64
	TotalMs             float64
}

// InsightsResult is the outbound shape of the insights operation.
type InsightsResult struct {
	Bundle        InsightBundle
	Breakdown     InsightBreakdown
	Cached        bool
	DegradedKinds []InsightType
}

// InsightsOptions is the inbound shape of an insights request.
type InsightsOptions struct {
	Query         string
	Documents     []DocumentResult
	InsightType   InsightType
	CacheKey      string
	Priority      bool
	SearchTimeMs  int
	CallerID      string
}

// CacheEntry is a stored insight bundle with its expiry.
type CacheEntry struct {
	CacheKey  string
	Bundle    InsightBundle
	ExpiresAt time.Time
}
