// Package pgtools provides PostgreSQL tools for LLM agents.
//
// Three tools are exposed, each a stateless request → result mapping that
// returns a JSON string and never a Go error:
//
//   - postgres_query runs caller-supplied SQL with optional positional
//     parameters (params_json, a JSON array) and returns
//     {"rows": [[...]], "columns": [...]}.
//   - postgres_schema lists information_schema.columns, optionally filtered by
//     table_schema and table_name.
//   - elasticsearch_mapping is retained for old agent configurations and always
//     returns {"error": "Elasticsearch support removed. Use Postgres tools."}.
//
// Failures come back as {"error": "..."}. The connection string is resolved on
// every call from PG_DSN, or composed from PGHOST, PGPORT, PGDATABASE, PGUSER
// and PGPASSWORD. Every call opens its own connection in autocommit mode and
// closes it before returning. SQL without parameters may hold several
// statements; the first result set is returned.
//
// postgres_query does not restrict statement types by default. Set
// Config.ReadOnly to reject anything but read-only statements (checked with
// PostgreSQL's parser via pg_query) and to run each connection with
// default_transaction_read_only.
//
// # Library Usage
//
//	tools, err := pgtools.New(pgtools.Config{}, logger)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	res := tools.Query(ctx, pgtools.QueryInput{SQL: "SELECT 1 AS one"})
//	fmt.Println(res) // {"rows":[[1]],"columns":["one"]}
//
//	// Or register as MCP tools
//	pgtools.RegisterMCPTools(mcpServer, tools)
//
// # Drivers
//
// The default driver is native pgx. Config.Driver may name any registered
// database/sql driver instead, e.g. "postgres" after importing
// github.com/lib/pq. Availability is checked once in New; when the driver is
// missing, database-backed tools return {"error": "<driver> not installed"}.
package pgtools
