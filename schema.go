package pgtools

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// ToolSchema is the MCP name of the schema tool.
const ToolSchema = "postgres_schema"

// SchemaColumns are the columns every successful Schema result carries.
var SchemaColumns = []string{"table_schema", "table_name", "column_name", "data_type"}

// schemaSQL builds the information_schema query for the given filters.
// Filter values are always bound, never interpolated.
func schemaSQL(input SchemaInput) (string, []any) {
	var filters []string
	var args []any
	if input.TableSchema != "" {
		args = append(args, input.TableSchema)
		filters = append(filters, fmt.Sprintf("table_schema = $%d", len(args)))
	}
	if input.TableName != "" {
		args = append(args, input.TableName)
		filters = append(filters, fmt.Sprintf("table_name = $%d", len(args)))
	}

	var sb strings.Builder
	sb.WriteString("SELECT table_schema, table_name, column_name, data_type\n")
	sb.WriteString("FROM information_schema.columns\n")
	if len(filters) > 0 {
		sb.WriteString("WHERE " + strings.Join(filters, " AND ") + "\n")
	}
	sb.WriteString("ORDER BY table_schema, table_name, ordinal_position")
	return sb.String(), args
}

// Schema lists columns from information_schema.columns, optionally filtered
// by schema and/or table name, ordered by schema, table and ordinal position.
// Like Query, every failure is reported in the Result.
func (t *Tools) Schema(ctx context.Context, input SchemaInput) *Result {
	startTime := time.Now()

	if t.driverErr != nil {
		return t.fail(ToolSchema, t.driverErr.Error())
	}

	dsn, ok := ResolveDSN(t.env)
	if !ok {
		return t.fail(ToolSchema, ErrNotConfigured)
	}

	sql, args := schemaSQL(input)
	queryCtx, cancel, _ := t.schemaTimeout.Context(ctx, sql)
	defer cancel()

	rs, err := t.run(queryCtx, dsn, sql, args)
	if err != nil {
		return t.fail(ToolSchema, err.Error())
	}

	t.logger.Info().
		Str("tool", ToolSchema).
		Str("table_schema", input.TableSchema).
		Str("table_name", input.TableName).
		Dur("duration", time.Since(startTime)).
		Int("row_count", len(rs.Rows)).
		Msg("schema described")

	return Success(append([]string(nil), SchemaColumns...), rs.Rows)
}
