package httpverify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/retrieval-insight-engine/internal/core/domain"
	"github.com/kirillkom/retrieval-insight-engine/internal/infrastructure/resilience"
)

// Client implements ports.IdentityVerifier (spec.md §6's `verify` hook)
// against an external identity provider over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
	executor   *resilience.Executor
}

func New(baseURL string, executor *resilience.Executor) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 5 * time.Second},
		executor:   executor,
	}
}

// Verify calls the identity provider with the caller's bearer token. A nil
// identity with a nil error means "anonymous, public documents only", per
// spec.md §6. Internal service tokens come back with Internal=true and an
// empty CallerID, which forces the same public-only visibility rule.
func (c *Client) Verify(ctx context.Context, bearer string) (*domain.CallerIdentity, error) {
	if strings.TrimSpace(bearer) == "" {
		return nil, nil
	}

	var identity *domain.CallerIdentity
	err := c.executor.Execute(ctx, "identity.verify", func(ctx context.Context) error {
		reqBody, err := json.Marshal(map[string]string{"token": bearer})
		if err != nil {
			return fmt.Errorf("marshal verify request: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/verify", bytes.NewReader(reqBody))
		if err != nil {
			return fmt.Errorf("create verify request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+bearer)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("verify request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusUnauthorized {
			return domain.WrapError(domain.ErrUnauthorized, "identity.verify", fmt.Errorf("token rejected"))
		}
		if resp.StatusCode >= 300 {
			return fmt.Errorf("verify status: %s", resp.Status)
		}

		var parsed struct {
			CallerID string `json:"caller_id"`
			Internal bool   `json:"internal"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
			return fmt.Errorf("decode verify response: %w", err)
		}
		identity = &domain.CallerIdentity{CallerID: parsed.CallerID, Internal: parsed.Internal}
		return nil
	}, classifyVerifyError)

	if err != nil {
		return nil, err
	}
	return identity, nil
}

func classifyVerifyError(err error) resilience.ErrorClassification {
	if domain.IsKind(err, domain.ErrUnauthorized) {
		return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
	}
	return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
}
