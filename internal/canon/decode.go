package canon

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// Decode parses canonical bytes back into a Value.
//
// Numbers decode as exact decimals (never floats). Objects decode into
// canonical Maps; since JSON objects cannot carry duplicate keys past
// the parser, re-sorting at construction is idempotent. Decode accepts
// any valid JSON, but only Encode output round-trips bit-exactly.
func Decode(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, &DecodeError{Reason: "invalid canonical bytes", Err: err}
	}
	if dec.More() {
		return nil, &DecodeError{Reason: "trailing data after canonical value"}
	}
	return fromRaw(raw)
}

func fromRaw(raw any) (Value, error) {
	switch v := raw.(type) {
	case nil:
		return Null{}, nil
	case bool:
		return Bool(v), nil
	case string:
		return String(v), nil
	case json.Number:
		d, err := decimal.NewFromString(v.String())
		if err != nil {
			return nil, &DecodeError{Reason: fmt.Sprintf("number %q", v), Err: err}
		}
		return Num(d), nil
	case []any:
		arr := make(Array, len(v))
		for i, elem := range v {
			val, err := fromRaw(elem)
			if err != nil {
				return nil, fmt.Errorf("array[%d]: %w", i, err)
			}
			arr[i] = val
		}
		return arr, nil
	case map[string]any:
		pairs := make([]Pair, 0, len(v))
		for k, elem := range v {
			val, err := fromRaw(elem)
			if err != nil {
				return nil, fmt.Errorf("key %q: %w", k, err)
			}
			pairs = append(pairs, Pair{Key: k, Val: val})
		}
		m, err := NewMap(pairs...)
		if err != nil {
			return nil, &DecodeError{Reason: "object construction", Err: err}
		}
		return m, nil
	default:
		return nil, &DecodeError{Reason: fmt.Sprintf("unsupported JSON shape %T", raw)}
	}
}
