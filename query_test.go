package pgtools_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/aichatbot/pgtools"
)

func TestQuery_SelectOne(t *testing.T) {
	t.Parallel()
	fc := &fakeConnector{result: &pgtools.ResultSet{Columns: []string{"one"}, Rows: [][]any{{int32(1)}}}}
	tools := newTestTools(t, pgtools.Config{}, configuredEnv(), fc)

	res := tools.Query(context.Background(), pgtools.QueryInput{SQL: "SELECT 1 AS one"})
	if got := res.String(); got != `{"rows":[[1]],"columns":["one"]}` {
		t.Fatalf("unexpected result: %s", got)
	}

	conn := fc.lastConn(t)
	if len(conn.queries) != 1 || conn.queries[0].SQL != "SELECT 1 AS one" {
		t.Fatalf("expected exactly one execution of the SQL, got %+v", conn.queries)
	}
	if conn.queries[0].Args != nil {
		t.Fatalf("expected no bind args, got %v", conn.queries[0].Args)
	}
	if fc.dsns[0] != "host=localhost port=5432 dbname=testdb user=u password=p" {
		t.Fatalf("unexpected DSN %q", fc.dsns[0])
	}
}

func TestQuery_NoResultSet(t *testing.T) {
	t.Parallel()
	fc := &fakeConnector{result: &pgtools.ResultSet{}}
	tools := newTestTools(t, pgtools.Config{}, configuredEnv(), fc)

	res := tools.Query(context.Background(), pgtools.QueryInput{SQL: "CREATE TABLE t (id int)"})
	if got := res.String(); got != `{"rows":[],"columns":[]}` {
		t.Fatalf("unexpected result: %s", got)
	}
}

func TestQuery_ParamsBoundPositionally(t *testing.T) {
	t.Parallel()
	fc := &fakeConnector{result: &pgtools.ResultSet{Columns: []string{"a", "b"}, Rows: [][]any{}}}
	tools := newTestTools(t, pgtools.Config{}, configuredEnv(), fc)

	res := tools.Query(context.Background(), pgtools.QueryInput{
		SQL:        "SELECT $1::int AS a, $2::text AS b",
		ParamsJSON: strPtr(`[42, "x"]`),
	})
	if res.IsError() {
		t.Fatalf("unexpected error: %s", res.Error())
	}
	conn := fc.lastConn(t)
	if diff := cmp.Diff([]any{int64(42), "x"}, conn.queries[0].Args); diff != "" {
		t.Fatalf("args mismatch (-want +got):\n%s", diff)
	}
}

func TestQuery_BigintParamsBoundExactly(t *testing.T) {
	t.Parallel()
	fc := &fakeConnector{}
	tools := newTestTools(t, pgtools.Config{}, configuredEnv(), fc)

	res := tools.Query(context.Background(), pgtools.QueryInput{
		SQL:        "UPDATE accounts SET note = $3 WHERE id = $1 OR id = $2",
		ParamsJSON: strPtr(`[9007199254740993, 1234567890123456789, 1.0]`),
	})
	if res.IsError() {
		t.Fatalf("unexpected error: %s", res.Error())
	}
	want := []any{int64(9007199254740993), int64(1234567890123456789), 1.0}
	if diff := cmp.Diff(want, fc.lastConn(t).queries[0].Args); diff != "" {
		t.Fatalf("args mismatch (-want +got):\n%s", diff)
	}
}

func TestQuery_InvalidParamsNoConnection(t *testing.T) {
	t.Parallel()
	for _, sql := range []string{"SELECT 1", "DROP TABLE users", ""} {
		fc := &fakeConnector{}
		tools := newTestTools(t, pgtools.Config{}, configuredEnv(), fc)

		res := tools.Query(context.Background(), pgtools.QueryInput{SQL: sql, ParamsJSON: strPtr("not json")})
		if !res.IsError() {
			t.Fatalf("expected error result for SQL %q", sql)
		}
		if !strings.HasPrefix(res.Error(), "Invalid params_json: ") {
			t.Fatalf("expected Invalid params_json error, got %q", res.Error())
		}
		if fc.connectCount() != 0 {
			t.Fatalf("expected no connection attempt, got %d", fc.connectCount())
		}
	}
}

func TestQuery_InvalidParamsCheckedBeforeConfiguration(t *testing.T) {
	t.Parallel()
	fc := &fakeConnector{}
	tools := newTestTools(t, pgtools.Config{}, mapEnv(nil), fc)

	res := tools.Query(context.Background(), pgtools.QueryInput{SQL: "SELECT 1", ParamsJSON: strPtr("[1,")})
	if !strings.HasPrefix(res.Error(), "Invalid params_json: ") {
		t.Fatalf("expected Invalid params_json error, got %q", res.Error())
	}
}

func TestQuery_NotConfigured(t *testing.T) {
	t.Parallel()
	fc := &fakeConnector{}
	tools := newTestTools(t, pgtools.Config{}, mapEnv(map[string]string{"PGHOST": "localhost"}), fc)

	res := tools.Query(context.Background(), pgtools.QueryInput{SQL: "SELECT 1"})
	if got := res.String(); got != `{"error":"PostgreSQL connection not configured"}` {
		t.Fatalf("unexpected result: %s", got)
	}
	if fc.connectCount() != 0 {
		t.Fatalf("expected no connection attempt, got %d", fc.connectCount())
	}
}

func TestQuery_DriverMissing(t *testing.T) {
	t.Parallel()
	fc := &fakeConnector{availErr: errors.New("fake not installed")}
	tools := newTestTools(t, pgtools.Config{}, configuredEnv(), fc)

	res := tools.Query(context.Background(), pgtools.QueryInput{SQL: "SELECT 1", ParamsJSON: strPtr("not json")})
	if res.Error() != "fake not installed" {
		t.Fatalf("expected driver error, got %q", res.Error())
	}
	if fc.connectCount() != 0 {
		t.Fatalf("expected no connection attempt, got %d", fc.connectCount())
	}
}

func TestQuery_UnregisteredSQLDriver(t *testing.T) {
	t.Parallel()
	tools, err := pgtools.New(pgtools.Config{Driver: "nosuchdriver"}, testLogger(), pgtools.WithEnv(configuredEnv()))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tools.Driver() != "nosuchdriver" {
		t.Fatalf("expected driver name nosuchdriver, got %q", tools.Driver())
	}
	res := tools.Query(context.Background(), pgtools.QueryInput{SQL: "SELECT 1"})
	if got := res.String(); got != `{"error":"nosuchdriver not installed"}` {
		t.Fatalf("unexpected result: %s", got)
	}
	res = tools.Schema(context.Background(), pgtools.SchemaInput{})
	if got := res.String(); got != `{"error":"nosuchdriver not installed"}` {
		t.Fatalf("unexpected result: %s", got)
	}
}

func TestQuery_ConnectErrorVerbatim(t *testing.T) {
	t.Parallel()
	fc := &fakeConnector{connectErr: errors.New("dial tcp 127.0.0.1:5432: connect: connection refused")}
	tools := newTestTools(t, pgtools.Config{}, configuredEnv(), fc)

	res := tools.Query(context.Background(), pgtools.QueryInput{SQL: "SELECT 1"})
	if res.Error() != "dial tcp 127.0.0.1:5432: connect: connection refused" {
		t.Fatalf("expected verbatim connect error, got %q", res.Error())
	}
}

func TestQuery_ExecutionErrorClosesConnection(t *testing.T) {
	t.Parallel()
	fc := &fakeConnector{queryErr: errors.New(`ERROR: syntax error at or near "SELEC" (SQLSTATE 42601)`)}
	tools := newTestTools(t, pgtools.Config{}, configuredEnv(), fc)

	res := tools.Query(context.Background(), pgtools.QueryInput{SQL: "SELEC 1"})
	if res.Error() != `ERROR: syntax error at or near "SELEC" (SQLSTATE 42601)` {
		t.Fatalf("expected verbatim execution error, got %q", res.Error())
	}
	if got := fc.lastConn(t).closeCount(); got != 1 {
		t.Fatalf("expected connection closed once, got %d", got)
	}
}

func TestQuery_NewConnectionPerCall(t *testing.T) {
	t.Parallel()
	fc := &fakeConnector{result: &pgtools.ResultSet{Columns: []string{"x"}, Rows: [][]any{{1}}}}
	tools := newTestTools(t, pgtools.Config{}, configuredEnv(), fc)

	for i := 0; i < 3; i++ {
		if res := tools.Query(context.Background(), pgtools.QueryInput{SQL: "SELECT 1 AS x"}); res.IsError() {
			t.Fatalf("unexpected error: %s", res.Error())
		}
	}
	if fc.connectCount() != 3 {
		t.Fatalf("expected 3 connections, got %d", fc.connectCount())
	}
	for i, c := range fc.conns {
		if c.closeCount() != 1 {
			t.Fatalf("connection %d: expected closed once, got %d", i, c.closeCount())
		}
	}
}

func TestQuery_EnvReadPerCall(t *testing.T) {
	t.Parallel()
	env := map[string]string{}
	fc := &fakeConnector{}
	tools := newTestTools(t, pgtools.Config{}, func(k string) string { return env[k] }, fc)

	if res := tools.Query(context.Background(), pgtools.QueryInput{SQL: "SELECT 1"}); res.Error() != pgtools.ErrNotConfigured {
		t.Fatalf("expected not configured, got %s", res)
	}
	env["PG_DSN"] = "postgres://u:p@h/d"
	if res := tools.Query(context.Background(), pgtools.QueryInput{SQL: "SELECT 1"}); res.IsError() {
		t.Fatalf("unexpected error after configuring: %s", res.Error())
	}
	if fc.dsns[0] != "postgres://u:p@h/d" {
		t.Fatalf("expected override DSN, got %q", fc.dsns[0])
	}
}

func TestPing_NotConfigured(t *testing.T) {
	t.Parallel()
	fc := &fakeConnector{}
	tools := newTestTools(t, pgtools.Config{}, mapEnv(nil), fc)

	err := tools.Ping(context.Background())
	if err == nil || err.Error() != "PostgreSQL connection not configured" {
		t.Fatalf("expected not configured error, got %v", err)
	}
	if fc.connectCount() != 0 {
		t.Fatalf("expected no connection attempt, got %d", fc.connectCount())
	}
}

func TestQuery_WritesAllowedByDefault(t *testing.T) {
	t.Parallel()
	fc := &fakeConnector{}
	tools := newTestTools(t, pgtools.Config{}, configuredEnv(), fc)

	res := tools.Query(context.Background(), pgtools.QueryInput{SQL: "DELETE FROM users"})
	if res.IsError() {
		t.Fatalf("expected write to pass through, got %s", res.Error())
	}
	if execs := fc.lastConn(t).execs; len(execs) != 0 {
		t.Fatalf("expected no session settings without read-only mode, got %v", execs)
	}
}

func TestQuery_ReadOnlyRejectsWriteBeforeConnecting(t *testing.T) {
	t.Parallel()
	fc := &fakeConnector{}
	tools := newTestTools(t, pgtools.Config{ReadOnly: true}, configuredEnv(), fc)

	res := tools.Query(context.Background(), pgtools.QueryInput{SQL: "DELETE FROM users"})
	if res.Error() != "read-only policy: DELETE statements are not allowed" {
		t.Fatalf("unexpected result: %s", res)
	}
	if fc.connectCount() != 0 {
		t.Fatalf("expected no connection attempt, got %d", fc.connectCount())
	}
}

func TestQuery_ReadOnlySetsSession(t *testing.T) {
	t.Parallel()
	fc := &fakeConnector{result: &pgtools.ResultSet{Columns: []string{"one"}, Rows: [][]any{{1}}}}
	tools := newTestTools(t, pgtools.Config{ReadOnly: true}, configuredEnv(), fc)

	res := tools.Query(context.Background(), pgtools.QueryInput{SQL: "SELECT 1 AS one"})
	if res.IsError() {
		t.Fatalf("unexpected error: %s", res.Error())
	}
	execs := fc.lastConn(t).execs
	if len(execs) != 1 || execs[0] != "SET default_transaction_read_only = on" {
		t.Fatalf("expected read-only session setting, got %v", execs)
	}
}

func TestQuery_Sanitization(t *testing.T) {
	t.Parallel()
	fc := &fakeConnector{result: &pgtools.ResultSet{
		Columns: []string{"id", "email"},
		Rows:    [][]any{{int64(1), "alice@example.com"}},
	}}
	config := pgtools.Config{Sanitization: []pgtools.SanitizationRule{
		{Pattern: `[^@\s]+@[^@\s]+`, Replacement: "[REDACTED]"},
	}}
	tools := newTestTools(t, config, configuredEnv(), fc)

	res := tools.Query(context.Background(), pgtools.QueryInput{SQL: "SELECT id, email FROM users"})
	if got := res.String(); got != `{"rows":[[1,"[REDACTED]"]],"columns":["id","email"]}` {
		t.Fatalf("unexpected result: %s", got)
	}
}

func TestQuery_TimeoutAppliesDeadline(t *testing.T) {
	t.Parallel()
	var sawDeadline bool
	fc := &deadlineConnector{onConnect: func(ctx context.Context) {
		_, sawDeadline = ctx.Deadline()
	}}
	tools, err := pgtools.New(pgtools.Config{Timeouts: pgtools.TimeoutConfig{QuerySeconds: 5}}, testLogger(),
		pgtools.WithEnv(configuredEnv()), pgtools.WithConnector(fc))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	tools.Query(context.Background(), pgtools.QueryInput{SQL: "SELECT 1"})
	if !sawDeadline {
		t.Fatal("expected connection context to carry a deadline")
	}
}

func TestQuery_NoTimeoutByDefault(t *testing.T) {
	t.Parallel()
	sawDeadline := true
	fc := &deadlineConnector{onConnect: func(ctx context.Context) {
		_, sawDeadline = ctx.Deadline()
	}}
	tools, err := pgtools.New(pgtools.Config{}, testLogger(), pgtools.WithEnv(configuredEnv()), pgtools.WithConnector(fc))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	tools.Query(context.Background(), pgtools.QueryInput{SQL: "SELECT 1"})
	if sawDeadline {
		t.Fatal("expected no deadline without configured timeouts")
	}
}

// deadlineConnector reports the context each connection is opened with.
type deadlineConnector struct {
	fakeConnector
	onConnect func(ctx context.Context)
}

func (d *deadlineConnector) Connect(ctx context.Context, dsn string) (pgtools.Conn, error) {
	d.onConnect(ctx)
	return d.fakeConnector.Connect(ctx, dsn)
}
