package ports

import (
	"context"

	"github.com/kirillkom/retrieval-insight-engine/internal/core/domain"
)

// RetrievalService is the inbound contract for the hybrid retrieval pipeline.
type RetrievalService interface {
	Retrieve(ctx context.Context, opts domain.RetrieveOptions) (*domain.RetrieveResult, error)
}

// InsightService is the inbound contract for the insight generation pipeline.
type InsightService interface {
	GenerateInsights(ctx context.Context, opts domain.InsightsOptions) (*domain.InsightsResult, error)
}
