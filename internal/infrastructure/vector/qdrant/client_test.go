package qdrant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kirillkom/retrieval-insight-engine/internal/infrastructure/resilience"
)

func testExecutor() *resilience.Executor {
	cfg := resilience.DefaultConfig()
	cfg.BreakerEnabled = false
	cfg.RetryMaxAttempts = 1
	return resilience.NewExecutor(cfg)
}

func TestSearchDensePublicOnlyUsesMustFilter(t *testing.T) {
	var captured map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&captured)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"result": [{"score": 0.9, "payload": {"chunk_id": "c1", "document_id": "doc-1", "document_title": "T", "chunk_text": "hi"}}]}`))
	}))
	defer server.Close()

	client := New(server.URL, "chunks", testExecutor())
	hits, err := client.SearchDense(context.Background(), []float32{0.1, 0.2}, 0.6, 10, "", true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(hits) != 1 || hits[0].ChunkID != "c1" {
		t.Fatalf("expected one hit with chunk_id=c1, got %+v", hits)
	}

	filter, ok := captured["filter"].(map[string]any)
	if !ok {
		t.Fatalf("expected filter in request body, got %v", captured)
	}
	must, ok := filter["must"].([]any)
	if !ok || len(must) != 2 {
		t.Fatalf("expected a two-clause must (status + public) for public-only search, got %v", filter)
	}
}

func TestSearchDenseWithCallerIDUsesShouldFilter(t *testing.T) {
	var captured map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&captured)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"result": []}`))
	}))
	defer server.Close()

	client := New(server.URL, "chunks", testExecutor())
	_, err := client.SearchDense(context.Background(), []float32{0.1}, 0.6, 10, "caller-1", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	filter, ok := captured["filter"].(map[string]any)
	if !ok {
		t.Fatalf("expected filter in request body, got %v", captured)
	}
	must, ok := filter["must"].([]any)
	if !ok || len(must) != 2 {
		t.Fatalf("expected a two-clause must (status + nested should) for caller-scoped search, got %v", filter)
	}
	nested, ok := must[1].(map[string]any)
	if !ok {
		t.Fatalf("expected second must clause to be a nested filter, got %v", must[1])
	}
	if _, ok := nested["should"]; !ok {
		t.Fatalf("expected nested should clause for caller-scoped search, got %v", nested)
	}
}

func TestSearchDenseErrorOnNonSuccessStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := New(server.URL, "chunks", testExecutor())
	_, err := client.SearchDense(context.Background(), []float32{0.1}, 0.6, 10, "", true)
	if err == nil {
		t.Fatalf("expected error on non-success status")
	}
}
