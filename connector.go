package pgtools

import (
	"context"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/jackc/pgx/v5"
)

// DriverPgx selects the native pgx connector. Any other Config.Driver value is
// treated as a database/sql driver name (e.g. "postgres" for lib/pq).
const DriverPgx = "pgx"

// ResultSet holds what one statement returned. Columns is nil when the
// statement produced no result set (DDL, DML without RETURNING).
type ResultSet struct {
	Columns []string
	Rows    [][]any
}

// Conn is a single, non-pooled database connection in autocommit mode.
type Conn interface {
	Query(ctx context.Context, sql string, args []any) (*ResultSet, error)
	Exec(ctx context.Context, sql string) error
	Close(ctx context.Context) error
}

// Connector opens connections for tool calls. Available is checked once by New;
// a non-nil error there disables every database-backed tool.
type Connector interface {
	Driver() string
	Available() error
	Connect(ctx context.Context, dsn string) (Conn, error)
}

// NewConnector returns the connector for a Config.Driver value.
func NewConnector(driver string) Connector {
	if driver == "" || driver == DriverPgx {
		return pgxConnector{}
	}
	return sqlConnector{driverName: driver}
}

// --- pgx ---

type pgxConnector struct{}

func (pgxConnector) Driver() string   { return DriverPgx }
func (pgxConnector) Available() error { return nil }

func (pgxConnector) Connect(ctx context.Context, dsn string) (Conn, error) {
	cfg, err := pgx.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	// Extended protocol, single round trip, for parameterized statements.
	// Parameterless SQL switches to the simple protocol per query.
	cfg.DefaultQueryExecMode = pgx.QueryExecModeExec
	conn, err := pgx.ConnectConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &pgxConn{conn: conn}, nil
}

type pgxConn struct {
	conn *pgx.Conn
}

func (c *pgxConn) Query(ctx context.Context, sql string, args []any) (*ResultSet, error) {
	rows, err := c.conn.Query(ctx, sql, pgxQueryArgs(args)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	fieldDescs := rows.FieldDescriptions()
	if len(fieldDescs) == 0 {
		rows.Close()
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return &ResultSet{}, nil
	}

	columns := make([]string, len(fieldDescs))
	for i, fd := range fieldDescs {
		columns[i] = fd.Name
	}

	result := make([][]any, 0)
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, err
		}
		row := make([]any, len(values))
		for i, v := range values {
			row[i] = jsonValue(v)
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &ResultSet{Columns: columns, Rows: result}, nil
}

// pgxQueryArgs sends parameterless SQL over the simple protocol, which
// accepts several statements in one string. Only the first result set is
// returned; the remaining statements still run.
func pgxQueryArgs(args []any) []any {
	if len(args) == 0 {
		return []any{pgx.QueryExecModeSimpleProtocol}
	}
	return args
}

func (c *pgxConn) Exec(ctx context.Context, sql string) error {
	_, err := c.conn.Exec(ctx, sql)
	return err
}

func (c *pgxConn) Close(ctx context.Context) error {
	return c.conn.Close(ctx)
}

// --- database/sql ---

type sqlConnector struct {
	driverName string
}

func (c sqlConnector) Driver() string { return c.driverName }

func (c sqlConnector) Available() error {
	if !slices.Contains(sql.Drivers(), c.driverName) {
		return fmt.Errorf("%s not installed", c.driverName)
	}
	return nil
}

func (c sqlConnector) Connect(ctx context.Context, dsn string) (Conn, error) {
	db, err := sql.Open(c.driverName, dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	conn, err := db.Conn(ctx)
	if err != nil {
		db.Close()
		return nil, err
	}
	return &sqlConn{db: db, conn: conn}, nil
}

type sqlConn struct {
	db   *sql.DB
	conn *sql.Conn
}

func (c *sqlConn) Query(ctx context.Context, query string, args []any) (*ResultSet, error) {
	rows, err := c.conn.QueryContext(ctx, query, sqlArgs(args)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	if len(columns) == 0 {
		rows.Close()
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return &ResultSet{}, nil
	}

	colTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil, err
	}

	result := make([][]any, 0)
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make([]any, len(values))
		for i, v := range values {
			row[i] = sqlValue(v, colTypes[i].DatabaseTypeName())
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &ResultSet{Columns: columns, Rows: result}, nil
}

func (c *sqlConn) Exec(ctx context.Context, query string) error {
	_, err := c.conn.ExecContext(ctx, query)
	return err
}

func (c *sqlConn) Close(ctx context.Context) error {
	connErr := c.conn.Close()
	if err := c.db.Close(); err != nil {
		return err
	}
	return connErr
}

// sqlArgs encodes composite parameters as JSON text; database/sql drivers
// only accept scalar driver values.
func sqlArgs(args []any) []any {
	out := make([]any, len(args))
	for i, a := range args {
		switch a.(type) {
		case map[string]any, []any:
			b, err := json.Marshal(a)
			if err != nil {
				out[i] = a
				continue
			}
			out[i] = string(b)
		default:
			out[i] = a
		}
	}
	return out
}

// sqlValue maps database/sql scan results onto the same JSON forms the pgx
// connector produces. Text-like columns arrive as []byte from most drivers.
func sqlValue(v any, typeName string) any {
	b, ok := v.([]byte)
	if !ok {
		return jsonValue(v)
	}
	switch strings.ToUpper(typeName) {
	case "BYTEA":
		return base64.StdEncoding.EncodeToString(b)
	case "JSON", "JSONB":
		var doc any
		if err := json.Unmarshal(b, &doc); err == nil {
			return doc
		}
	}
	return string(b)
}
