package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/retrieval-insight-engine/internal/core/domain"
	"github.com/kirillkom/retrieval-insight-engine/internal/infrastructure/resilience"
)

// Client is C2's dense retriever adapter: a thin HTTP wrapper over a
// Qdrant collection of pre-embedded chunks. It only searches; indexing is
// owned by the ingestion pipeline this service does not implement.
type Client struct {
	baseURL    string
	collection string
	httpClient *http.Client
	executor   *resilience.Executor
}

func New(baseURL, collection string, executor *resilience.Executor) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		collection: collection,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		executor:   executor,
	}
}

// SearchDense implements ports.DenseRetriever. publicOnly or an empty
// callerID restrict results to documents payload-tagged public=true;
// otherwise a document is visible if it is public or owned by callerID.
func (c *Client) SearchDense(
	ctx context.Context,
	vector []float32,
	threshold float64,
	maxResults int,
	callerID string,
	publicOnly bool,
) ([]domain.ChunkHit, error) {
	reqBody := map[string]any{
		"vector":          vector,
		"limit":           maxResults,
		"score_threshold": threshold,
		"with_payload":    true,
		"filter":          visibilityFilter(callerID, publicOnly),
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal dense search body: %w", err)
	}

	var searchResp struct {
		Result []struct {
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}

	err = c.executor.Execute(ctx, "qdrant.search", func(ctx context.Context) error {
		url := fmt.Sprintf("%s/collections/%s/points/search", c.baseURL, c.collection)
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create dense search request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("qdrant search request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 300 {
			return fmt.Errorf("qdrant search status: %s", resp.Status)
		}

		if err := json.NewDecoder(resp.Body).Decode(&searchResp); err != nil {
			return fmt.Errorf("decode dense search response: %w", err)
		}
		return nil
	}, classifyQdrantError)
	if err != nil {
		return nil, err
	}

	out := make([]domain.ChunkHit, 0, len(searchResp.Result))
	for rank, r := range searchResp.Result {
		out = append(out, domain.ChunkHit{
			ChunkID:               getStringPayload(r.Payload, "chunk_id"),
			DocumentID:            getStringPayload(r.Payload, "document_id"),
			DocumentTitle:         getStringPayload(r.Payload, "document_title"),
			DocumentType:          getStringPayload(r.Payload, "document_type"),
			ChunkText:             getStringPayload(r.Payload, "chunk_text"),
			Order:                 rank,
			Metadata:              getMapPayload(r.Payload, "metadata"),
			Score:                 r.Score,
			TotalChunksInDocument: getIntPayload(r.Payload, "total_chunks_in_document"),
		})
	}
	return out, nil
}

func classifyQdrantError(err error) resilience.ErrorClassification {
	if err == nil {
		return resilience.ErrorClassification{}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}
	return resilience.ErrorClassification{Retryable: false, RecordFailure: true}
}

// visibilityFilter restricts results to indexed documents that are public,
// or public plus caller-owned when a non-anonymous caller is known. Only
// documents with status "indexed" are ever visible to retrieval.
func visibilityFilter(callerID string, publicOnly bool) map[string]any {
	statusClause := map[string]any{
		"key":   "status",
		"match": map[string]any{"value": "indexed"},
	}
	publicClause := map[string]any{
		"key":   "public",
		"match": map[string]any{"value": true},
	}
	if publicOnly || callerID == "" {
		return map[string]any{"must": []map[string]any{statusClause, publicClause}}
	}

	ownedClause := map[string]any{
		"key":   "caller_id",
		"match": map[string]any{"value": callerID},
	}
	return map[string]any{
		"must": []map[string]any{
			statusClause,
			{"should": []map[string]any{publicClause, ownedClause}},
		},
	}
}

func getStringPayload(payload map[string]any, key string) string {
	v, ok := payload[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func getIntPayload(payload map[string]any, key string) int {
	v, ok := payload[key]
	if !ok {
		return 0
	}
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	default:
		return 0
	}
}

func getMapPayload(payload map[string]any, key string) map[string]any {
	v, ok := payload[key]
	if !ok {
		return nil
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	return m
}
