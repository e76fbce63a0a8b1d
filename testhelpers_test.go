package pgtools_test

import (
	"context"
	"os"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"github.com/aichatbot/pgtools"
)

func testLogger() zerolog.Logger {
	return zerolog.New(os.Stderr).Level(zerolog.Disabled)
}

// mapEnv is an Env backed by a map.
func mapEnv(m map[string]string) pgtools.Env {
	return func(key string) string { return m[key] }
}

// configuredEnv is the discrete-variable environment used by most unit tests.
func configuredEnv() pgtools.Env {
	return mapEnv(map[string]string{
		"PGHOST":     "localhost",
		"PGDATABASE": "testdb",
		"PGUSER":     "u",
		"PGPASSWORD": "p",
	})
}

type recordedQuery struct {
	SQL  string
	Args []any
}

// fakeConnector records every connection it opens. Each connection answers
// every query with result (or queryErr).
type fakeConnector struct {
	driver     string
	availErr   error
	connectErr error
	queryErr   error
	result     *pgtools.ResultSet

	mu    sync.Mutex
	dsns  []string
	conns []*fakeConn
}

func (f *fakeConnector) Driver() string {
	if f.driver == "" {
		return "fake"
	}
	return f.driver
}

func (f *fakeConnector) Available() error { return f.availErr }

func (f *fakeConnector) Connect(ctx context.Context, dsn string) (pgtools.Conn, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dsns = append(f.dsns, dsn)
	if f.connectErr != nil {
		return nil, f.connectErr
	}
	c := &fakeConn{result: f.result, queryErr: f.queryErr}
	f.conns = append(f.conns, c)
	return c, nil
}

func (f *fakeConnector) connectCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.dsns)
}

func (f *fakeConnector) lastConn(t *testing.T) *fakeConn {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.conns) == 0 {
		t.Fatal("expected at least one connection")
	}
	return f.conns[len(f.conns)-1]
}

type fakeConn struct {
	result   *pgtools.ResultSet
	queryErr error

	mu      sync.Mutex
	queries []recordedQuery
	execs   []string
	closed  int
}

func (c *fakeConn) Query(ctx context.Context, sql string, args []any) (*pgtools.ResultSet, error) {
	c.mu.Lock()
	c.queries = append(c.queries, recordedQuery{SQL: sql, Args: args})
	c.mu.Unlock()
	if c.queryErr != nil {
		return nil, c.queryErr
	}
	if c.result == nil {
		return &pgtools.ResultSet{}, nil
	}
	// Copy rows; callers may rewrite them in place.
	rows := make([][]any, len(c.result.Rows))
	for i, r := range c.result.Rows {
		rows[i] = append([]any(nil), r...)
	}
	return &pgtools.ResultSet{Columns: c.result.Columns, Rows: rows}, nil
}

func (c *fakeConn) Exec(ctx context.Context, sql string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.execs = append(c.execs, sql)
	return nil
}

func (c *fakeConn) Close(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed++
	return nil
}

func (c *fakeConn) closeCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func newTestTools(t *testing.T, config pgtools.Config, env pgtools.Env, fc *fakeConnector) *pgtools.Tools {
	t.Helper()
	tools, err := pgtools.New(config, testLogger(), pgtools.WithEnv(env), pgtools.WithConnector(fc))
	if err != nil {
		t.Fatalf("failed to create Tools: %v", err)
	}
	return tools
}

func strPtr(s string) *string { return &s }
