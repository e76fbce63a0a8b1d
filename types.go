package pgtools

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// QueryInput is the input for the postgres_query tool.
type QueryInput struct {
	SQL string `json:"sql"`
	// ParamsJSON is an optional JSON array of positional bind parameters.
	// nil, "" and "null" all mean "no parameters"; anything else must be a
	// JSON array.
	ParamsJSON *string `json:"params_json,omitempty"`
}

// Params decodes ParamsJSON into positional bind arguments. Numbers written
// without a fraction or exponent become int64 exactly, all others float64.
// Integers too large for int64 are bound as their decimal text.
func (in QueryInput) Params() ([]any, error) {
	if in.ParamsJSON == nil || *in.ParamsJSON == "" {
		return nil, nil
	}
	data := []byte(*in.ParamsJSON)

	// Unmarshal reports syntax errors and trailing data; the Decoder keeps
	// numbers as written.
	if err := json.Unmarshal(data, new(json.RawMessage)); err != nil {
		return nil, err
	}
	var raw any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, nil
	}
	list, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("expected a JSON array, got %s", jsonKind(raw))
	}

	params := make([]any, len(list))
	for i, v := range list {
		params[i] = bindValue(v)
	}
	return params, nil
}

// SchemaInput is the input for the postgres_schema tool.
// Empty fields are treated as absent filters.
type SchemaInput struct {
	TableSchema string `json:"table_schema,omitempty"`
	TableName   string `json:"table_name,omitempty"`
}

// MappingInput is the input for the deprecated elasticsearch_mapping tool.
type MappingInput struct {
	Index string `json:"index"`
}

func bindValue(v any) any {
	switch val := v.(type) {
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return i
		}
		// Integers beyond int64 and floats beyond float64 are sent as text
		// so the server parses them without rounding.
		if strings.ContainsAny(val.String(), ".eE") {
			if f, err := val.Float64(); err == nil {
				return f
			}
		}
		return val.String()
	case []any:
		for i, item := range val {
			val[i] = bindValue(item)
		}
		return val
	case map[string]any:
		for k, item := range val {
			val[k] = bindValue(item)
		}
		return val
	default:
		return v
	}
}

func jsonKind(v any) string {
	switch v.(type) {
	case map[string]any:
		return "object"
	case string:
		return "string"
	case json.Number:
		return "number"
	case bool:
		return "boolean"
	default:
		return fmt.Sprintf("%T", v)
	}
}
