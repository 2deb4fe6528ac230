package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrMethodNotAllowed  = errors.New("method not allowed")
	ErrTemporary         = errors.New("temporary failure")
	ErrEmbeddingFailure  = errors.New("embedding failure")
	ErrRetrievalFailure  = errors.New("retrieval failure")
	ErrLLMTimeout        = errors.New("llm timeout")
	ErrLLMError          = errors.New("llm error")
	ErrCacheError        = errors.New("cache error")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
