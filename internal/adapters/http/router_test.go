package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kirillkom/retrieval-insight-engine/internal/core/domain"
	"github.com/kirillkom/retrieval-insight-engine/internal/core/ports"
	"github.com/kirillkom/retrieval-insight-engine/internal/observability/metrics"
)

type fakeRetrievalService struct {
	result *domain.RetrieveResult
	err    error
	gotOpts domain.RetrieveOptions
}

func (f *fakeRetrievalService) Retrieve(ctx context.Context, opts domain.RetrieveOptions) (*domain.RetrieveResult, error) {
	f.gotOpts = opts
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type fakeInsightService struct {
	result *domain.InsightsResult
	err    error
}

func (f *fakeInsightService) GenerateInsights(ctx context.Context, opts domain.InsightsOptions) (*domain.InsightsResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type fakeIdentityVerifier struct {
	identity *domain.CallerIdentity
	err      error
}

func (f *fakeIdentityVerifier) Verify(ctx context.Context, bearer string) (*domain.CallerIdentity, error) {
	return f.identity, f.err
}

func newTestRouter(retrieveSvc *fakeRetrievalService, insightSvc *fakeInsightService, identity *fakeIdentityVerifier) *Router {
	var id ports.IdentityVerifier
	if identity != nil {
		id = identity
	}
	cfg := RouterConfig{
		RateLimitRPS:          1000,
		RateLimitBurst:        1000,
		MaxConcurrentRequests: 100,
		BackpressureTimeout:   time.Second,
	}
	return NewRouter(retrieveSvc, insightSvc, id, metrics.NewHTTPServerMetrics("test"), cfg, slog.Default())
}

func TestRetrieveEndpointHappyPath(t *testing.T) {
	svc := &fakeRetrievalService{result: &domain.RetrieveResult{
		Query:          "hello",
		TotalDocuments: 1,
	}}
	rt := newTestRouter(svc, &fakeInsightService{}, nil)

	body, _ := json.Marshal(map[string]any{"user_query": "hello"})
	req := httptest.NewRequest(http.MethodPost, "/v1/retrieve", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	rt.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if svc.gotOpts.Query != "hello" {
		t.Fatalf("expected query passed through, got %q", svc.gotOpts.Query)
	}
}

func TestRetrieveEndpointMapsDocumentedFilterFieldNames(t *testing.T) {
	svc := &fakeRetrievalService{result: &domain.RetrieveResult{Query: "hello"}}
	rt := newTestRouter(svc, &fakeInsightService{}, nil)

	body, _ := json.Marshal(map[string]any{
		"user_query": "hello",
		"filters": map[string]any{
			"document_id":   []string{"doc-1"},
			"document_type": []string{"pdf"},
			"dateRange":     map[string]any{"start": "2024-01-01T00:00:00Z"},
		},
	})
	req := httptest.NewRequest(http.MethodPost, "/v1/retrieve", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	rt.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(svc.gotOpts.Filters.DocumentIDs) != 1 || svc.gotOpts.Filters.DocumentIDs[0] != "doc-1" {
		t.Fatalf("expected document_id to populate Filters.DocumentIDs, got %+v", svc.gotOpts.Filters)
	}
	if len(svc.gotOpts.Filters.DocumentTypes) != 1 || svc.gotOpts.Filters.DocumentTypes[0] != "pdf" {
		t.Fatalf("expected document_type to populate Filters.DocumentTypes, got %+v", svc.gotOpts.Filters)
	}
	if svc.gotOpts.Filters.DateRange.Start == nil {
		t.Fatalf("expected dateRange.start to populate Filters.DateRange.Start, got %+v", svc.gotOpts.Filters)
	}
}

func TestRetrieveEndpointRejectsMissingQuery(t *testing.T) {
	rt := newTestRouter(&fakeRetrievalService{}, &fakeInsightService{}, nil)

	body, _ := json.Marshal(map[string]any{})
	req := httptest.NewRequest(http.MethodPost, "/v1/retrieve", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	rt.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if got := strings.TrimSpace(rec.Body.String()); got != `{"error":"user_query is required"}` {
		t.Fatalf("expected literal user_query error body, got %q", got)
	}
}

func TestRetrieveEndpointRejectsWrongMethod(t *testing.T) {
	rt := newTestRouter(&fakeRetrievalService{}, &fakeInsightService{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/retrieve", nil)
	rec := httptest.NewRecorder()

	rt.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}

func TestRetrieveEndpointMapsUnauthorizedFromIdentity(t *testing.T) {
	rt := newTestRouter(&fakeRetrievalService{}, &fakeInsightService{}, &fakeIdentityVerifier{err: domain.WrapError(domain.ErrUnauthorized, "verify", domain.ErrUnauthorized)})

	body, _ := json.Marshal(map[string]any{"user_query": "hello"})
	req := httptest.NewRequest(http.MethodPost, "/v1/retrieve", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer bad-token")
	rec := httptest.NewRecorder()

	rt.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestInsightsEndpointHappyPath(t *testing.T) {
	svc := &fakeInsightService{result: &domain.InsightsResult{
		Bundle: domain.InsightBundle{CacheKey: "abc"},
	}}
	rt := newTestRouter(&fakeRetrievalService{}, svc, nil)

	body, _ := json.Marshal(map[string]any{
		"user_query": "hello",
		"documents":  []domain.DocumentResult{{DocumentID: "doc-1"}},
	})
	req := httptest.NewRequest(http.MethodPost, "/v1/insights", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	rt.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestInsightsEndpointRejectsMissingDocuments(t *testing.T) {
	rt := newTestRouter(&fakeRetrievalService{}, &fakeInsightService{}, nil)

	body, _ := json.Marshal(map[string]any{"user_query": "hello"})
	req := httptest.NewRequest(http.MethodPost, "/v1/insights", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	rt.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestHealthzOK(t *testing.T) {
	rt := newTestRouter(&fakeRetrievalService{}, &fakeInsightService{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()

	rt.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if _, err := io.ReadAll(rec.Body); err != nil {
		t.Fatalf("unexpected read error: %v", err)
	}
}
