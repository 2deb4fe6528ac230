package httpadapter

import (
	"errors"
	"fmt"

	"github.com/getkin/kin-openapi/openapi3"
)

var errUserQueryRequired = errors.New("user_query is required")

// Request shapes are validated against hand-built OpenAPI schemas rather
// than generated bindings: this service has no generated client/server
// code, so kin-openapi is used standalone for shape checking only.

var retrieveRequestSchema = openapi3.NewObjectSchema().
	WithProperty("user_query", openapi3.NewStringSchema().WithMinLength(1)).
	WithProperty("limit", openapi3.NewIntegerSchema().WithMin(1)).
	WithProperty("min_similarity", openapi3.NewFloat64Schema().WithMin(0).WithMax(1)).
	WithProperty("include_public_only", openapi3.NewBoolSchema()).
	WithProperty("enable_fallback", openapi3.NewBoolSchema()).
	WithProperty("enable_density_calc", openapi3.NewBoolSchema()).
	WithProperty("debug", openapi3.NewBoolSchema()).
	WithRequired([]string{"user_query"})

var insightsRequestSchema = openapi3.NewObjectSchema().
	WithProperty("user_query", openapi3.NewStringSchema().WithMinLength(1)).
	WithProperty("documents", openapi3.NewArraySchema()).
	WithProperty("insight_type", openapi3.NewStringSchema().WithEnum(
		"document_summaries", "direct_answer", "related_questions", "all",
	)).
	WithProperty("cache_key", openapi3.NewStringSchema()).
	WithProperty("priority", openapi3.NewBoolSchema()).
	WithProperty("search_time_ms", openapi3.NewIntegerSchema().WithMin(0)).
	WithRequired([]string{"user_query", "documents"})

func validateAgainstSchema(schema *openapi3.Schema, value any) error {
	if raw, ok := value.(map[string]any); ok {
		if q, _ := raw["user_query"].(string); q == "" {
			return errUserQueryRequired
		}
	}
	if err := schema.VisitJSON(value); err != nil {
		return fmt.Errorf("request shape invalid: %w", err)
	}
	return nil
}
