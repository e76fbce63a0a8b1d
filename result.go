package pgtools

import (
	"bytes"
	"encoding/json"
	"errors"
)

// Result is the outcome of a tool call: either a row set or an error message,
// never both. Build one with Success or Failure.
type Result struct {
	columns []string
	rows    [][]any
	err     string
	failed  bool
}

// Success returns a row set result. nil slices are normalized to empty ones.
func Success(columns []string, rows [][]any) *Result {
	if columns == nil {
		columns = []string{}
	}
	if rows == nil {
		rows = [][]any{}
	}
	return &Result{columns: columns, rows: rows}
}

// Failure returns an error result carrying msg.
func Failure(msg string) *Result {
	return &Result{err: msg, failed: true}
}

// IsError reports whether r is an error result.
func (r *Result) IsError() bool { return r.failed }

// Error returns the error message, or "" for a row set result.
func (r *Result) Error() string { return r.err }

// Columns returns the column names in result order.
func (r *Result) Columns() []string { return r.columns }

// Rows returns the rows; each row is positional in Columns order.
func (r *Result) Rows() [][]any { return r.rows }

type successJSON struct {
	Rows    [][]any  `json:"rows"`
	Columns []string `json:"columns"`
}

type failureJSON struct {
	Error string `json:"error"`
}

// MarshalJSON emits {"rows":[...],"columns":[...]} or {"error":"..."}.
func (r *Result) MarshalJSON() ([]byte, error) {
	if r.failed {
		return json.Marshal(failureJSON{Error: r.err})
	}
	return json.Marshal(successJSON{Rows: r.rows, Columns: r.columns})
}

// UnmarshalJSON accepts either wire shape. A payload carrying both an
// "error" key and row data is rejected.
func (r *Result) UnmarshalJSON(data []byte) error {
	var probe struct {
		Rows    *[][]any  `json:"rows"`
		Columns *[]string `json:"columns"`
		Error   *string   `json:"error"`
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&probe); err != nil {
		return err
	}
	switch {
	case probe.Error != nil && (probe.Rows != nil || probe.Columns != nil):
		return errors.New("result has both error and row data")
	case probe.Error != nil:
		*r = *Failure(*probe.Error)
	default:
		var columns []string
		var rows [][]any
		if probe.Columns != nil {
			columns = *probe.Columns
		}
		if probe.Rows != nil {
			rows = *probe.Rows
		}
		*r = *Success(columns, rows)
	}
	return nil
}

// String returns the JSON encoding handed back to the agent framework.
func (r *Result) String() string {
	b, err := json.Marshal(r)
	if err != nil {
		b, _ = json.Marshal(failureJSON{Error: err.Error()})
	}
	return string(b)
}
