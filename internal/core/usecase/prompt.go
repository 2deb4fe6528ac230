package usecase

import (
	"fmt"
	"sort"
	"strings"

	"github.com/kirillkom/retrieval-insight-engine/internal/core/domain"
	"github.com/kirillkom/retrieval-insight-engine/internal/core/ports"
)

const (
	summaryTemperature          = 0.2
	directAnswerTemperature     = 0.3
	relatedQuestionsTemperature = 0.3

	summaryChunksPerDocument = 6
	answerChunksPerDocument  = 4
	answerChunksGlobalCap    = 16
)

// buildSummaryPrompt assembles the per-document context for C9's
// document_summaries kind: up to 6 top chunks by rrf_score, joined by a
// blank line.
func buildSummaryPrompt(query string, doc domain.DocumentResult) []ports.ChatMessage {
	chunks := topChunks(doc.Chunks, summaryChunksPerDocument)
	context := joinChunkTexts(chunks)

	system := "You summarize retrieved document excerpts for a user query. " +
		"Respond with JSON: {\"relevance_summary\": string, \"confidence_score\": number in [0,1]}. " +
		"The summary must be a single impactful sentence that addresses the query."
	user := fmt.Sprintf(
		"User query: %s\n\nDocument: %s\n\nExcerpts:\n%s",
		query, doc.DocumentTitle, context,
	)
	return []ports.ChatMessage{
		{Role: "system", Content: system},
		{Role: "user", Content: user},
	}
}

// buildAnswerPrompt assembles the global, re-sorted 16-chunk context for
// C9's direct_answer kind.
func buildAnswerPrompt(query string, documents []domain.DocumentResult) ([]ports.ChatMessage, []domain.DocumentResult) {
	context, contributing := globalAnswerContext(documents)

	system := "You answer a user's question using only the provided document excerpts. " +
		"Cite every claim with a literal marker `[Source: <exact document title>]` matching " +
		"one of the document titles given. Respond with JSON: " +
		"{\"answer_markdown\": string, \"confidence\": number in [0,1], \"source_document_titles\": [string]}."
	user := fmt.Sprintf("User query: %s\n\n%s", query, context)
	return []ports.ChatMessage{
		{Role: "system", Content: system},
		{Role: "user", Content: user},
	}, contributing
}

// buildRelatedQuestionsPrompt reuses the same global context as the direct
// answer for C9's related_questions kind.
func buildRelatedQuestionsPrompt(query string, documents []domain.DocumentResult) []ports.ChatMessage {
	context, _ := globalAnswerContext(documents)

	system := "You propose exactly three follow-up questions a user might ask next, given their " +
		"original query and the retrieved context. Each question is tagged with a category of " +
		"Strategic, Technical, or Adoption, and a relevance score in [0.5, 0.95]. Avoid round " +
		"numbers for relevance to keep scoring realistic. Respond with JSON: " +
		"{\"related_questions\": [{\"question\": string, \"relevance\": number, \"category\": string}]}."
	user := fmt.Sprintf("User query: %s\n\n%s", query, context)
	return []ports.ChatMessage{
		{Role: "system", Content: system},
		{Role: "user", Content: user},
	}
}

// globalAnswerContext re-sorts up to 4 chunks per document by rrf_score
// across all documents, truncates to 16 chunks total, and renders the
// excerpt block plus the set of documents that actually contributed.
func globalAnswerContext(documents []domain.DocumentResult) (string, []domain.DocumentResult) {
	type candidate struct {
		hit domain.FusedHit
		doc domain.DocumentResult
	}

	candidates := make([]candidate, 0)
	for _, doc := range documents {
		for _, hit := range topChunks(doc.Chunks, answerChunksPerDocument) {
			candidates = append(candidates, candidate{hit: hit, doc: doc})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].hit.RRFScore != candidates[j].hit.RRFScore {
			return candidates[i].hit.RRFScore > candidates[j].hit.RRFScore
		}
		return candidates[i].hit.Order < candidates[j].hit.Order
	})

	if len(candidates) > answerChunksGlobalCap {
		candidates = candidates[:answerChunksGlobalCap]
	}

	contributingIDs := make(map[string]struct{})
	contributing := make([]domain.DocumentResult, 0)
	var b strings.Builder
	for i, c := range candidates {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "[%s]\n%s", c.doc.DocumentTitle, c.hit.ChunkText)
		if _, ok := contributingIDs[c.doc.DocumentID]; !ok {
			contributingIDs[c.doc.DocumentID] = struct{}{}
			contributing = append(contributing, c.doc)
		}
	}

	return b.String(), contributing
}

func topChunks(chunks []domain.FusedHit, n int) []domain.FusedHit {
	sorted := make([]domain.FusedHit, len(chunks))
	copy(sorted, chunks)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].RRFScore != sorted[j].RRFScore {
			return sorted[i].RRFScore > sorted[j].RRFScore
		}
		return sorted[i].Order < sorted[j].Order
	})
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

func joinChunkTexts(chunks []domain.FusedHit) string {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.ChunkText
	}
	return strings.Join(texts, "\n\n")
}
