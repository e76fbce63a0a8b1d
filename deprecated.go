package pgtools

import "context"

// ToolESMapping is the MCP name of the removed Elasticsearch mapping tool.
const ToolESMapping = "elasticsearch_mapping"

// ElasticsearchMapping always fails. It remains registered so agents holding
// the old tool name get a clear answer instead of an unknown-tool error.
//
// Deprecated: Elasticsearch support was removed; use Query and Schema.
func (t *Tools) ElasticsearchMapping(ctx context.Context, input MappingInput) *Result {
	return Failure(ErrESRemoved)
}
