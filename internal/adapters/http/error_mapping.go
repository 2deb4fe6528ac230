package httpadapter

import (
	"net/http"

	"github.com/kirillkom/retrieval-insight-engine/internal/core/domain"
)

// mapErrorToHTTPStatus implements spec.md §6's error status table. Cache
// errors never reach here: they are logged and swallowed inside the
// insights use case and never surface as a request failure.
func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	case domain.IsKind(err, domain.ErrMethodNotAllowed):
		return http.StatusMethodNotAllowed
	case domain.IsKind(err, domain.ErrEmbeddingFailure):
		return http.StatusInternalServerError
	case domain.IsKind(err, domain.ErrRetrievalFailure):
		return http.StatusInternalServerError
	case domain.IsKind(err, domain.ErrLLMTimeout):
		return http.StatusInternalServerError
	case domain.IsKind(err, domain.ErrLLMError):
		return http.StatusInternalServerError
	case domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
