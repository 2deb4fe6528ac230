package ollama

import (
	"context"
	"errors"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/retrieval-insight-engine/internal/core/domain"
	"github.com/kirillkom/retrieval-insight-engine/internal/core/ports"
	"github.com/kirillkom/retrieval-insight-engine/internal/infrastructure/resilience"
)

const priorityHeader = "X-Priority"

// Client is the C1 query embedder and C10 LLM client adapter, backed by an
// Ollama-compatible HTTP API. Every call is routed through the shared
// resilience executor for circuit breaking and retry.
type Client struct {
	baseURL    string
	httpClient *http.Client
	executor   *resilience.Executor
	embedModel string
}

func New(baseURL, embedModel string, executor *resilience.Executor) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 60 * time.Second},
		executor:   executor,
		embedModel: embedModel,
	}
}

// EmbedQuery implements ports.QueryEmbedder (C1).
func (c *Client) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	var vector []float32

	err := c.executor.Execute(ctx, "ollama.embed", func(ctx context.Context) error {
		var resp struct {
			Embedding []float32 `json:"embedding"`
		}
		req := map[string]any{
			"model":  c.embedModel,
			"prompt": query,
		}
		if err := c.postJSON(ctx, "/api/embeddings", req, &resp, "ollama.embed"); err != nil {
			return wrapTemporaryIfNeeded("ollama.embed", err)
		}
		if len(resp.Embedding) == 0 {
			return errors.New("ollama.embed: empty embedding vector")
		}
		vector = l2Normalize(resp.Embedding)
		return nil
	}, classifyOllamaError)

	if err != nil {
		return nil, domain.WrapError(domain.ErrEmbeddingFailure, "embed_query", err)
	}
	return vector, nil
}

// l2Normalize rescales a mean-pooled embedding to unit length so every
// downstream cosine-similarity comparison reduces to a dot product.
func l2Normalize(vector []float32) []float32 {
	var sumSquares float64
	for _, v := range vector {
		sumSquares += float64(v) * float64(v)
	}
	norm := math.Sqrt(sumSquares)
	if norm == 0 {
		return vector
	}
	normalized := make([]float32, len(vector))
	for i, v := range vector {
		normalized[i] = float32(float64(v) / norm)
	}
	return normalized
}

// ChatJSON implements ports.LLMClient (C10). It requests JSON-mode output
// and attaches a priority-tier hint header when requested. A deadline
// exceeded on ctx maps to LLMTimeout; any other failure maps to LLMError.
func (c *Client) ChatJSON(
	ctx context.Context,
	messages []ports.ChatMessage,
	model string,
	temperature float64,
	priority bool,
) (string, error) {
	var content string

	err := c.executor.Execute(ctx, "ollama.chat", func(ctx context.Context) error {
		type chatMessage struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		}
		payload := make([]chatMessage, len(messages))
		for i, m := range messages {
			payload[i] = chatMessage{Role: m.Role, Content: m.Content}
		}

		var resp struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		}
		req := map[string]any{
			"model":    model,
			"messages": payload,
			"format":   "json",
			"stream":   false,
			"options": map[string]any{
				"temperature": temperature,
			},
		}

		headers := map[string]string{}
		if priority {
			headers[priorityHeader] = "high"
		}

		if err := c.postJSONWithHeaders(ctx, "/api/chat", req, &resp, "ollama.chat", headers); err != nil {
			return wrapTemporaryIfNeeded("ollama.chat", err)
		}
		content = resp.Message.Content
		return nil
	}, classifyOllamaError)

	if err == nil {
		return content, nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "", domain.WrapError(domain.ErrLLMTimeout, "chat_json", err)
	}
	return "", domain.WrapError(domain.ErrLLMError, "chat_json", err)
}
