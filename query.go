package pgtools

import (
	"context"
	"time"
	"unicode/utf8"

	"github.com/aichatbot/pgtools/internal/policy"
)

// ToolQuery is the MCP name of the query tool.
const ToolQuery = "postgres_query"

// Query executes input.SQL with the optional positional parameters and returns
// the rows and columns it produced. Every failure is reported in the Result;
// Query never returns a Go error.
//
// The statement runs on a fresh autocommit connection. Write statements are
// executed and committed unless Config.ReadOnly is set.
func (t *Tools) Query(ctx context.Context, input QueryInput) *Result {
	startTime := time.Now()

	if t.driverErr != nil {
		return t.fail(ToolQuery, t.driverErr.Error())
	}

	params, err := input.Params()
	if err != nil {
		return t.fail(ToolQuery, invalidParamsPrefix+err.Error())
	}

	dsn, ok := ResolveDSN(t.env)
	if !ok {
		return t.fail(ToolQuery, ErrNotConfigured)
	}

	if t.config.ReadOnly {
		if err := policy.CheckReadOnly(input.SQL); err != nil {
			return t.fail(ToolQuery, readOnlyPrefix+err.Error())
		}
	}

	queryCtx, cancel, timeoutRule := t.queryTimeout.Context(ctx, input.SQL)
	defer cancel()

	rs, err := t.run(queryCtx, dsn, input.SQL, params)
	if err != nil {
		return t.fail(ToolQuery, err.Error())
	}

	rows := t.sanitizer.SanitizeRows(rs.Rows)

	logEvent := t.logger.Info().
		Str("tool", ToolQuery).
		Str("sql", truncateForLog(input.SQL, 200)).
		Int("param_count", len(params)).
		Dur("duration", time.Since(startTime)).
		Int("row_count", len(rows))
	if timeoutRule != "" {
		logEvent = logEvent.Str("timeout_rule", timeoutRule)
	}
	if t.sanitizer.HasRules() {
		logEvent = logEvent.Bool("sanitized", true)
	}
	logEvent.Msg("query executed")

	return Success(rs.Columns, rows)
}

// truncateForLog truncates a string for log output to avoid oversized log entries.
func truncateForLog(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	truncateAt := maxLen
	for truncateAt > 0 && !utf8.RuneStart(s[truncateAt]) {
		truncateAt--
	}
	return s[:truncateAt] + "...[truncated]"
}
