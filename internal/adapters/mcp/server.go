package mcpadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/retrieval-insight-engine/internal/core/domain"
	"github.com/kirillkom/retrieval-insight-engine/internal/core/ports"
)

// Server exposes retrieve and generate_insights as MCP tools over stdio, a
// second inbound adapter calling the same use cases as the HTTP surface
// (internal/adapters/http). Transport framing is otherwise out of scope;
// this is wiring, not new behavior.
type Server struct {
	mcp                  *server.MCPServer
	retrieveUC           ports.RetrievalService
	insightsUC           ports.InsightService
	logger               *slog.Logger
	defaultMinSimilarity float64
}

func New(retrieveUC ports.RetrievalService, insightsUC ports.InsightService, defaultMinSimilarity float64, logger *slog.Logger) *Server {
	if defaultMinSimilarity <= 0 {
		defaultMinSimilarity = 0.6
	}
	s := &Server{
		retrieveUC:           retrieveUC,
		insightsUC:           insightsUC,
		logger:               logger,
		defaultMinSimilarity: defaultMinSimilarity,
	}

	mcpServer := server.NewMCPServer("retrieval-insight-engine", "1.0.0")
	mcpServer.AddTool(retrieveTool(), s.handleRetrieve)
	mcpServer.AddTool(generateInsightsTool(), s.handleGenerateInsights)
	s.mcp = mcpServer
	return s
}

// Serve blocks, running the MCP server over stdio until the stdio server
// returns. ctx is not passed to the stdio server.
func (s *Server) Serve(ctx context.Context) error {
	return server.ServeStdio(s.mcp)
}

func retrieveTool() mcp.Tool {
	return mcp.NewTool("retrieve",
		mcp.WithDescription("Run the hybrid dense+lexical retrieval pipeline for a query and return grouped, fused documents."),
		mcp.WithString("user_query", mcp.Required(), mcp.Description("The search query text.")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of hits each retriever returns before fusion.")),
		mcp.WithNumber("min_similarity", mcp.Description("Minimum cosine similarity for dense hits, 0-1.")),
		mcp.WithBoolean("include_public_only", mcp.Description("Restrict results to public documents only.")),
		mcp.WithBoolean("enable_fallback", mcp.Description("Allow the broadening fallback when precision results are sparse. Defaults to true.")),
		mcp.WithBoolean("enable_density_calc", mcp.Description("Compute per-document relevance density.")),
		mcp.WithBoolean("debug", mcp.Description("Attach raw per-source trace scores to each chunk.")),
		mcp.WithString("caller_id", mcp.Description("Caller identity for visibility scoping; empty means public-only.")),
	)
}

func generateInsightsTool() mcp.Tool {
	return mcp.NewTool("generate_insights",
		mcp.WithDescription("Generate LLM insights (document summaries, a direct answer, related questions) over a set of retrieved documents."),
		mcp.WithString("user_query", mcp.Required(), mcp.Description("The original search query.")),
		mcp.WithString("documents_json", mcp.Required(), mcp.Description("JSON-encoded array of domain.DocumentResult objects, normally taken from a prior retrieve call's results field.")),
		mcp.WithString("insight_type", mcp.Description("One of document_summaries, direct_answer, related_questions, all. Defaults to all.")),
		mcp.WithString("cache_key", mcp.Description("Caller-supplied cache key override; derived from query+documents when empty.")),
		mcp.WithBoolean("priority", mcp.Description("Route LLM calls with the high-priority header.")),
		mcp.WithNumber("search_time_ms", mcp.Description("Upstream search duration in milliseconds, carried through for breakdown reporting.")),
		mcp.WithString("caller_id", mcp.Description("Caller identity for history recording.")),
	)
}

func (s *Server) handleRetrieve(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	correlationID := uuid.NewString()
	args := request.GetArguments()

	query, _ := args["user_query"].(string)
	if query == "" {
		return mcp.NewToolResultError("user_query is required"), nil
	}

	opts := domain.RetrieveOptions{
		Query:             query,
		Limit:             intArg(args, "limit", 0),
		MinSimilarity:     floatArg(args, "min_similarity", s.defaultMinSimilarity),
		IncludePublicOnly: boolArg(args, "include_public_only", false),
		EnableFallback:    boolArg(args, "enable_fallback", true),
		EnableDensityCalc: boolArg(args, "enable_density_calc", true),
		Debug:             boolArg(args, "debug", false),
		CallerID:          stringArg(args, "caller_id", ""),
	}

	result, err := s.retrieveUC.Retrieve(ctx, opts)
	if err != nil {
		s.logger.Error("mcp_retrieve_failed", "correlation_id", correlationID, "error", err)
		return mcp.NewToolResultError(err.Error()), nil
	}

	payload, err := json.Marshal(result)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("marshal retrieve result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(payload)), nil
}

func (s *Server) handleGenerateInsights(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	correlationID := uuid.NewString()
	args := request.GetArguments()

	query, _ := args["user_query"].(string)
	if query == "" {
		return mcp.NewToolResultError("user_query is required"), nil
	}

	documentsJSON, _ := args["documents_json"].(string)
	var documents []domain.DocumentResult
	if documentsJSON != "" {
		if err := json.Unmarshal([]byte(documentsJSON), &documents); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid documents_json: %v", err)), nil
		}
	}

	opts := domain.InsightsOptions{
		Query:        query,
		Documents:    documents,
		InsightType:  domain.InsightType(stringArg(args, "insight_type", string(domain.InsightAll))),
		CacheKey:     stringArg(args, "cache_key", ""),
		Priority:     boolArg(args, "priority", false),
		SearchTimeMs: intArg(args, "search_time_ms", 0),
		CallerID:     stringArg(args, "caller_id", ""),
	}

	result, err := s.insightsUC.GenerateInsights(ctx, opts)
	if err != nil {
		s.logger.Error("mcp_generate_insights_failed", "correlation_id", correlationID, "error", err)
		return mcp.NewToolResultError(err.Error()), nil
	}

	payload, err := json.Marshal(result)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("marshal insights result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(payload)), nil
}

func stringArg(args map[string]any, key, fallback string) string {
	if v, ok := args[key].(string); ok && v != "" {
		return v
	}
	return fallback
}

func boolArg(args map[string]any, key string, fallback bool) bool {
	if v, ok := args[key].(bool); ok {
		return v
	}
	return fallback
}

func intArg(args map[string]any, key string, fallback int) int {
	if v, ok := args[key].(float64); ok {
		return int(v)
	}
	return fallback
}

func floatArg(args map[string]any, key string, fallback float64) float64 {
	if v, ok := args[key].(float64); ok {
		return v
	}
	return fallback
}
