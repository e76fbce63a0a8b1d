package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/aichatbot/pgtools"
)

// runCall executes one tool call against the configured database and prints
// the JSON result to stdout. failed reports whether the result was an error.
func runCall(args []string) (failed bool, err error) {
	serverConfig, err := loadServerConfig(configPath())
	if err != nil {
		return false, fmt.Errorf("failed to load config: %w", err)
	}
	logger := setupLogger(serverConfig.Logging, "stdio")

	tools, err := pgtools.New(serverConfig.Config, logger)
	if err != nil {
		return false, fmt.Errorf("failed to create tools: %w", err)
	}
	return call(context.Background(), os.Stdout, tools, args)
}

func call(ctx context.Context, w io.Writer, tools *pgtools.Tools, args []string) (bool, error) {
	if len(args) == 0 {
		return false, fmt.Errorf("usage: pgtools call <%s|%s|%s> [flags]", pgtools.ToolQuery, pgtools.ToolSchema, pgtools.ToolESMapping)
	}

	toolName := args[0]
	fs := flag.NewFlagSet("call "+toolName, flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var res *pgtools.Result
	switch toolName {
	case pgtools.ToolQuery:
		sql := fs.String("sql", "", "SQL to execute")
		params := fs.String("params", "", "JSON array of positional parameters")
		if err := fs.Parse(args[1:]); err != nil {
			return false, err
		}
		if *sql == "" {
			return false, fmt.Errorf("-sql is required")
		}
		input := pgtools.QueryInput{SQL: *sql}
		if *params != "" {
			input.ParamsJSON = params
		}
		res = tools.Query(ctx, input)
	case pgtools.ToolSchema:
		schema := fs.String("schema", "", "filter by table_schema")
		table := fs.String("table", "", "filter by table_name")
		if err := fs.Parse(args[1:]); err != nil {
			return false, err
		}
		res = tools.Schema(ctx, pgtools.SchemaInput{TableSchema: *schema, TableName: *table})
	case pgtools.ToolESMapping:
		index := fs.String("index", "", "index name")
		if err := fs.Parse(args[1:]); err != nil {
			return false, err
		}
		res = tools.ElasticsearchMapping(ctx, pgtools.MappingInput{Index: *index})
	default:
		return false, fmt.Errorf("unknown tool %q", toolName)
	}

	fmt.Fprintln(w, res.String())
	return res.IsError(), nil
}
