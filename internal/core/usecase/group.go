package usecase

import (
	"sort"

	"github.com/kirillkom/retrieval-insight-engine/internal/core/domain"
)

// groupByDocument is C7: it folds fused hits into per-document results,
// tracking running-max scores and a matched/total relevance density.
func groupByDocument(hits []domain.FusedHit, enableDensity bool) []domain.DocumentResult {
	order := make([]string, 0)
	byDoc := make(map[string]*domain.DocumentResult)

	for _, h := range hits {
		doc, ok := byDoc[h.DocumentID]
		if !ok {
			doc = &domain.DocumentResult{
				DocumentID:    h.DocumentID,
				DocumentTitle: h.DocumentTitle,
				DocumentType:  h.DocumentType,
			}
			byDoc[h.DocumentID] = doc
			order = append(order, h.DocumentID)
		}

		doc.Chunks = append(doc.Chunks, h)
		if h.RRFScore > doc.BestRRFScore {
			doc.BestRRFScore = h.RRFScore
		}
		if h.RawSemanticScore != nil && *h.RawSemanticScore > doc.BestRawSimilarity {
			doc.BestRawSimilarity = *h.RawSemanticScore
		}
	}

	out := make([]domain.DocumentResult, 0, len(order))
	for _, id := range order {
		doc := byDoc[id]
		sortDocumentChunks(doc.Chunks)
		doc.RelevanceDensity = relevanceDensity(doc.Chunks, enableDensity)
		out = append(out, *doc)
	}

	sortDocumentResults(out)
	return out
}

func sortDocumentChunks(chunks []domain.FusedHit) {
	sort.SliceStable(chunks, func(i, j int) bool {
		if chunks[i].RRFScore != chunks[j].RRFScore {
			return chunks[i].RRFScore > chunks[j].RRFScore
		}
		return chunks[i].Order < chunks[j].Order
	})
}

func sortDocumentResults(docs []domain.DocumentResult) {
	sort.SliceStable(docs, func(i, j int) bool {
		if docs[i].BestRRFScore != docs[j].BestRRFScore {
			return docs[i].BestRRFScore > docs[j].BestRRFScore
		}
		if docs[i].BestRawSimilarity != docs[j].BestRawSimilarity {
			return docs[i].BestRawSimilarity > docs[j].BestRawSimilarity
		}
		return docs[i].DocumentID < docs[j].DocumentID
	})
}

// relevanceDensity is matched-chunks / total-chunks-in-document, clamped to
// [0, 1]. It is reported as 0 when density calculation is disabled or the
// document's total chunk count is unknown.
func relevanceDensity(chunks []domain.FusedHit, enabled bool) float64 {
	if !enabled || len(chunks) == 0 {
		return 0
	}
	total := chunks[0].TotalChunksInDocument
	if total <= 0 {
		return 0
	}
	density := float64(len(chunks)) / float64(total)
	if density > 1 {
		density = 1
	}
	if density < 0 {
		density = 0
	}
	return density
}
