package usecase

import (
	"strings"

	"github.com/kirillkom/retrieval-insight-engine/internal/core/domain"
)

const citationPrefix = "[Source: "

// resolveCitations implements C11. It scans for non-overlapping `[Source:
// TITLE]` markers by hand rather than with regexp. TITLE runs up to the first
// following `]` (so it may contain `[` but not `]`), and an unterminated
// marker is left as literal text rather than consuming the rest of the answer.
func resolveCitations(answer string, contributing []domain.DocumentResult) []string {
	titleToID := make(map[string]string, len(contributing))
	for _, d := range contributing {
		titleToID[d.DocumentTitle] = d.DocumentID
	}

	seen := make(map[string]struct{})
	ids := make([]string, 0)

	rest := answer
	for {
		idx := strings.Index(rest, citationPrefix)
		if idx < 0 {
			break
		}
		titleStart := idx + len(citationPrefix)
		end := strings.IndexByte(rest[titleStart:], ']')
		if end < 0 {
			// Unterminated marker: treat the remainder as literal text.
			break
		}
		end += titleStart

		title := rest[titleStart:end]
		if id, ok := titleToID[title]; ok {
			if _, dup := seen[id]; !dup {
				seen[id] = struct{}{}
				ids = append(ids, id)
			}
		}
		rest = rest[end+1:]
	}

	if len(ids) > 0 {
		return ids
	}
	return fallbackContributingIDs(contributing)
}

func fallbackContributingIDs(contributing []domain.DocumentResult) []string {
	ids := make([]string, 0, len(contributing))
	for _, d := range contributing {
		if len(d.Chunks) > 0 {
			ids = append(ids, d.DocumentID)
		}
	}
	return ids
}
