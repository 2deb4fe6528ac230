package neo4j

import (
	"context"
	"encoding/json"
	"errors"
	"net"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/kirillkom/retrieval-insight-engine/internal/core/domain"
	"github.com/kirillkom/retrieval-insight-engine/internal/infrastructure/resilience"
)

// Client is C3's lexical retriever adapter: full-text search over chunk
// nodes via Neo4j's built-in fulltext index.
type Client struct {
	driver    neo4j.DriverWithContext
	database  string
	indexName string
	executor  *resilience.Executor
}

func New(driver neo4j.DriverWithContext, database, indexName string, executor *resilience.Executor) *Client {
	return &Client{driver: driver, database: database, indexName: indexName, executor: executor}
}

func NewDriver(uri, username, password string) (neo4j.DriverWithContext, error) {
	return neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
}

// SearchLexical implements ports.LexicalRetriever (C3). It queries the
// chunk fulltext index and applies the same public/caller-owned visibility
// rule the dense retriever applies.
func (c *Client) SearchLexical(
	ctx context.Context,
	queryText string,
	maxResults int,
	callerID string,
	publicOnly bool,
) ([]domain.ChunkHit, error) {
	cypher := `
CALL db.index.fulltext.queryNodes($indexName, $queryText) YIELD node, score
WHERE node.status = 'indexed'
  AND (node.public = true OR ($callerID <> '' AND node.caller_id = $callerID))
RETURN node.chunk_id AS chunk_id,
       node.document_id AS document_id,
       node.document_title AS document_title,
       node.document_type AS document_type,
       node.chunk_text AS chunk_text,
       node.total_chunks_in_document AS total_chunks_in_document,
       node.metadata_json AS metadata_json,
       score
ORDER BY score DESC
LIMIT $limit`

	params := map[string]any{
		"indexName": c.indexName,
		"queryText": queryText,
		"callerID":  callerID,
		"limit":     maxResults,
	}
	if publicOnly {
		params["callerID"] = ""
	}

	var result *neo4j.EagerResult
	err := c.executor.Execute(ctx, "neo4j.search_lexical", func(ctx context.Context) error {
		res, err := neo4j.ExecuteQuery(
			ctx,
			c.driver,
			cypher,
			params,
			neo4j.EagerResultTransformer,
			neo4j.ExecuteQueryWithDatabase(c.database),
		)
		if err != nil {
			return err
		}
		result = res
		return nil
	}, classifyNeo4jError)
	if err != nil {
		return nil, err
	}

	out := make([]domain.ChunkHit, 0, len(result.Records))
	for rank, record := range result.Records {
		m := record.AsMap()
		out = append(out, domain.ChunkHit{
			ChunkID:               getString(m, "chunk_id"),
			DocumentID:            getString(m, "document_id"),
			DocumentTitle:         getString(m, "document_title"),
			DocumentType:          getString(m, "document_type"),
			ChunkText:             getString(m, "chunk_text"),
			Order:                 rank,
			Metadata:              getMetadata(m, "metadata_json"),
			Score:                 getFloat(m, "score"),
			TotalChunksInDocument: getInt(m, "total_chunks_in_document"),
		})
	}
	return out, nil
}

func (c *Client) Close(ctx context.Context) error {
	return c.driver.Close(ctx)
}

func classifyNeo4jError(err error) resilience.ErrorClassification {
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

func getString(record map[string]any, key string) string {
	v, ok := record[key]
	if !ok || v == nil {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return s
}

func getInt(record map[string]any, key string) int {
	v, ok := record[key]
	if !ok || v == nil {
		return 0
	}
	switch n := v.(type) {
	case int64:
		return int(n)
	case int:
		return n
	default:
		return 0
	}
}

func getFloat(record map[string]any, key string) float64 {
	v, ok := record[key]
	if !ok || v == nil {
		return 0
	}
	switch n := v.(type) {
	case float64:
		return n
	case int64:
		return float64(n)
	default:
		return 0
	}
}

func getMetadata(record map[string]any, key string) map[string]any {
	raw := getString(record, key)
	if raw == "" {
		return nil
	}
	var metadata map[string]any
	if err := json.Unmarshal([]byte(raw), &metadata); err != nil {
		return nil
	}
	return metadata
}
