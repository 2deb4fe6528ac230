package usecase

import (
	"encoding/base64"
	"sort"
	"strings"

	"github.com/kirillkom/retrieval-insight-engine/internal/core/domain"
)

// deriveCacheKey builds the C12 content-addressed cache key per spec.md
// §4.12: insight_type || ":" || base64url(query) || ":" || sorted doc ids.
func deriveCacheKey(insightType domain.InsightType, query string, documents []domain.DocumentResult) string {
	ids := make([]string, len(documents))
	for i, d := range documents {
		ids[i] = d.DocumentID
	}
	sort.Strings(ids)

	var b strings.Builder
	b.WriteString(string(insightType))
	b.WriteByte(':')
	b.WriteString(base64.URLEncoding.EncodeToString([]byte(query)))
	b.WriteByte(':')
	b.WriteString(strings.Join(ids, ","))
	return b.String()
}
