package pgtools

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// RegisterMCPTools registers postgres_query, postgres_schema and the
// deprecated elasticsearch_mapping tool on the given MCP server. Each call
// returns a single text content holding the JSON Result; error Results are
// also flagged with isError.
func RegisterMCPTools(mcpServer *server.MCPServer, tools *Tools) {
	queryTool := mcp.NewTool(ToolQuery,
		mcp.WithDescription("Execute read-only SQL against PostgreSQL. Use for precise tabular data retrieval."),
		mcp.WithString("sql",
			mcp.Required(),
			mcp.Description("SQL to execute. Use parameter placeholders ($1, $2, ...) if needed."),
		),
		mcp.WithString("params_json",
			mcp.Description("Optional JSON array of parameters to bind to the SQL."),
		),
		mcp.WithReadOnlyHintAnnotation(tools.config.ReadOnly),
		mcp.WithDestructiveHintAnnotation(!tools.config.ReadOnly),
	)

	mcpServer.AddTool(queryTool, tools.loggedToolHandler(ToolQuery, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		input, res := queryInputFromRequest(req)
		if res != nil {
			return toolResult(res), nil
		}
		return toolResult(tools.Query(ctx, input)), nil
	}))

	schemaTool := mcp.NewTool(ToolSchema,
		mcp.WithDescription("List PostgreSQL tables and columns for grounding LLM queries. Optionally filter by schema/table."),
		mcp.WithString("table_schema",
			mcp.Description("Filter by schema, e.g., 'public'."),
		),
		mcp.WithString("table_name",
			mcp.Description("Optional table to inspect. If omitted, returns all tables and columns."),
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithIdempotentHintAnnotation(true),
	)

	mcpServer.AddTool(schemaTool, tools.loggedToolHandler(ToolSchema, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		input := SchemaInput{
			TableSchema: req.GetString("table_schema", ""),
			TableName:   req.GetString("table_name", ""),
		}
		return toolResult(tools.Schema(ctx, input)), nil
	}))

	mappingTool := mcp.NewTool(ToolESMapping,
		mcp.WithDescription("Deprecated: Elasticsearch support removed."),
		mcp.WithString("index",
			mcp.Required(),
			mcp.Description("Deprecated"),
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithIdempotentHintAnnotation(true),
	)

	mcpServer.AddTool(mappingTool, tools.loggedToolHandler(ToolESMapping, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		input := MappingInput{Index: req.GetString("index", "")}
		return toolResult(tools.ElasticsearchMapping(ctx, input)), nil
	}))
}

// queryInputFromRequest binds the query tool arguments. A non-nil Result means
// the request was rejected before reaching the tool.
func queryInputFromRequest(req mcp.CallToolRequest) (QueryInput, *Result) {
	sql, err := req.RequireString("sql")
	if err != nil || sql == "" {
		return QueryInput{}, Failure("sql parameter is required")
	}
	input := QueryInput{SQL: sql}

	raw, ok := req.GetArguments()["params_json"]
	if !ok || raw == nil {
		return input, nil
	}
	switch v := raw.(type) {
	case string:
		input.ParamsJSON = &v
	case []any:
		// Some agents send the array itself instead of its JSON encoding.
		b, err := json.Marshal(v)
		if err != nil {
			return QueryInput{}, Failure(invalidParamsPrefix + err.Error())
		}
		s := string(b)
		input.ParamsJSON = &s
	default:
		return QueryInput{}, Failure(invalidParamsPrefix + "expected a JSON array encoded as a string")
	}
	return input, nil
}

func toolResult(res *Result) *mcp.CallToolResult {
	if res.IsError() {
		return mcp.NewToolResultError(res.String())
	}
	return mcp.NewToolResultText(res.String())
}

// loggedToolHandler wraps a tool handler to log request and response lengths.
func (t *Tools) loggedToolHandler(tool string, handler server.ToolHandlerFunc) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		reqLen := requestLength(req)
		result, err := handler(ctx, req)
		respLen := resultLength(result)
		t.logger.Info().
			Str("tool", tool).
			Int("request_bytes", reqLen).
			Int("response_bytes", respLen).
			Bool("is_error", result != nil && result.IsError).
			Msg("tool call")
		return result, err
	}
}

// requestLength returns the JSON-encoded byte length of the request arguments.
func requestLength(req mcp.CallToolRequest) int {
	args := req.GetArguments()
	if len(args) == 0 {
		return 0
	}
	b, err := json.Marshal(args)
	if err != nil {
		return 0
	}
	return len(b)
}

// resultLength returns the total byte length of text content in a CallToolResult.
func resultLength(result *mcp.CallToolResult) int {
	if result == nil {
		return 0
	}
	total := 0
	for _, c := range result.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			total += len(tc.Text)
		}
	}
	return total
}
