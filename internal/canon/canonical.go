package canon

import (
	"bytes"
	"encoding/json"
	"fmt"

	"golang.org/x/text/unicode/norm"
)

// Encode produces the canonical byte form of a value for hashing and
// persistence. This is the ONLY serialization that may feed
// content-addressed identity computation.
//
// Guarantees:
//  1. Object keys sorted bytewise (enforced by Map construction)
//  2. No inserted whitespace
//  3. Strings NFC normalized, no HTML escaping (< > & stay literal)
//  4. Decimals in minimal base-10 form, every zero as "0"
//  5. Absent optionals as the literal null
//
// Identical logical values encode to byte-identical output on any
// machine, process, or day.
func Encode(v Value) ([]byte, error) {
	var buf bytes.Buffer
	if err := encode(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encode(buf *bytes.Buffer, v Value) error {
	switch val := v.(type) {
	case nil:
		return &EncodeError{Reason: "untyped nil is not a canonical value; use canon.Null"}
	case Null:
		buf.WriteString("null")
		return nil
	case Bool:
		if val {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
		return nil
	case String:
		return encodeString(buf, string(val))
	case Number:
		buf.WriteString(canonicalDecimal(val.dec))
		return nil
	case Array:
		buf.WriteByte('[')
		for i, elem := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := encode(buf, elem); err != nil {
				return fmt.Errorf("array[%d]: %w", i, err)
			}
		}
		buf.WriteByte(']')
		return nil
	case Map:
		buf.WriteByte('{')
		for i, p := range val.pairs {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := encodeString(buf, p.Key); err != nil {
				return fmt.Errorf("key %q: %w", p.Key, err)
			}
			buf.WriteByte(':')
			if err := encode(buf, p.Val); err != nil {
				return fmt.Errorf("value for key %q: %w", p.Key, err)
			}
		}
		buf.WriteByte('}')
		return nil
	default:
		return &EncodeError{Reason: fmt.Sprintf("unsupported value type %T", v)}
	}
}

// encodeString writes a canonical JSON string with NFC normalization.
// HTML escaping is disabled: <, > and & must stay literal so that the
// same text always produces the same bytes regardless of the Go
// encoder's default browser-safety behavior.
func encodeString(buf *bytes.Buffer, s string) error {
	normalized := norm.NFC.String(s)

	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(normalized); err != nil {
		return &EncodeError{Reason: fmt.Sprintf("string encoding: %v", err)}
	}

	// json.Encoder appends a trailing newline, drop it
	out := tmp.Bytes()
	if n := len(out); n > 0 && out[n-1] == '\n' {
		out = out[:n-1]
	}
	buf.Write(out)
	return nil
}
