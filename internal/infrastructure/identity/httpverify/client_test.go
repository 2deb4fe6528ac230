package httpverify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kirillkom/retrieval-insight-engine/internal/core/domain"
	"github.com/kirillkom/retrieval-insight-engine/internal/infrastructure/resilience"
)

func testExecutor() *resilience.Executor {
	cfg := resilience.DefaultConfig()
	cfg.BreakerEnabled = false
	cfg.RetryMaxAttempts = 1
	return resilience.NewExecutor(cfg)
}

func TestVerifyEmptyBearerIsAnonymous(t *testing.T) {
	client := New("http://unused", testExecutor())
	identity, err := client.Verify(context.Background(), "")
	if err != nil || identity != nil {
		t.Fatalf("expected anonymous (nil, nil), got (%v, %v)", identity, err)
	}
}

func TestVerifySuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"caller_id": "user-1", "internal": false}`))
	}))
	defer server.Close()

	client := New(server.URL, testExecutor())
	identity, err := client.Verify(context.Background(), "token-123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if identity.CallerID != "user-1" || identity.Internal {
		t.Fatalf("unexpected identity: %+v", identity)
	}
}

func TestVerifyUnauthorizedWrapsErrUnauthorized(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := New(server.URL, testExecutor())
	_, err := client.Verify(context.Background(), "bad-token")
	if !domain.IsKind(err, domain.ErrUnauthorized) {
		t.Fatalf("expected Unauthorized, got %v", err)
	}
}

func TestVerifyInternalCaller(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"caller_id": "", "internal": true}`))
	}))
	defer server.Close()

	client := New(server.URL, testExecutor())
	identity, err := client.Verify(context.Background(), "service-token")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !identity.Internal || identity.CallerID != "" {
		t.Fatalf("expected internal caller with empty caller id, got %+v", identity)
	}
}
