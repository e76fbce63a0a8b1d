package pgtools

import (
	"database/sql/driver"
	"encoding/base64"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

// jsonValue converts a driver-returned value into something encoding/json can
// always marshal. Rows must stay flat, so composite values become strings
// except JSON documents and arrays, which are kept as decoded by the driver.
func jsonValue(v any) any {
	switch val := v.(type) {
	case nil:
		return nil
	case string, bool, int, int8, int16, int32, int64, uint8, uint16, uint32, uint64:
		return val
	case float32:
		return floatValue(float64(val), val)
	case float64:
		return floatValue(val, val)
	case time.Time:
		return val.Format(time.RFC3339Nano)
	case [16]byte:
		return fmt.Sprintf("%x-%x-%x-%x-%x", val[0:4], val[4:6], val[6:8], val[8:10], val[10:16])
	case []byte:
		return base64.StdEncoding.EncodeToString(val)
	case pgtype.Range[any]:
		return rangeValue(val)
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = jsonValue(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = jsonValue(item)
		}
		return out
	case driver.Valuer:
		// pgtype geometric, interval, time and numeric values encode to their
		// PostgreSQL text form.
		dv, err := val.Value()
		if err != nil {
			return nil
		}
		if s, ok := dv.(string); ok {
			return s
		}
		return jsonValue(dv)
	case fmt.Stringer:
		return val.String()
	default:
		return val
	}
}

func floatValue(f float64, orig any) any {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	}
	return orig
}

func rangeValue(r pgtype.Range[any]) any {
	if !r.Valid {
		return nil
	}
	if r.LowerType == pgtype.Empty {
		return "empty"
	}
	var sb strings.Builder
	if r.LowerType == pgtype.Inclusive {
		sb.WriteByte('[')
	} else {
		sb.WriteByte('(')
	}
	if r.LowerType != pgtype.Unbounded {
		fmt.Fprintf(&sb, "%v", jsonValue(r.Lower))
	}
	sb.WriteByte(',')
	if r.UpperType != pgtype.Unbounded {
		fmt.Fprintf(&sb, "%v", jsonValue(r.Upper))
	}
	if r.UpperType == pgtype.Inclusive {
		sb.WriteByte(']')
	} else {
		sb.WriteByte(')')
	}
	return sb.String()
}
