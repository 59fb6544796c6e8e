package ledger

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/roach88/tally/internal/canon"
)

// StateValue is a sealed union of the serializable primitives a state
// delta may carry. Only DecimalValue, StringValue, BoolValue,
// DateValue, TimeValue, and NullValue implement it - never an open,
// untyped value, so replay and hashing stay total.
type StateValue interface {
	stateValue() // Sealed - only these types implement it
	canonical() canon.Value
}

// DecimalValue is an exact decimal state value.
type DecimalValue struct{ D decimal.Decimal }

func (DecimalValue) stateValue() {}
func (v DecimalValue) canonical() canon.Value {
	return canon.MustMap(canon.P("type", canon.String("decimal")), canon.P("value", canon.Num(v.D)))
}

// StringValue is a string state value.
type StringValue struct{ S string }

func (StringValue) stateValue() {}
func (v StringValue) canonical() canon.Value {
	return canon.MustMap(canon.P("type", canon.String("string")), canon.P("value", canon.String(v.S)))
}

// BoolValue is a boolean state value.
type BoolValue struct{ B bool }

func (BoolValue) stateValue() {}
func (v BoolValue) canonical() canon.Value {
	return canon.MustMap(canon.P("type", canon.String("bool")), canon.P("value", canon.Bool(v.B)))
}

// DateValue is a calendar-date state value (no time of day).
type DateValue struct{ Y int; M time.Month; D int }

func (DateValue) stateValue() {}
func (v DateValue) canonical() canon.Value {
	s := fmt.Sprintf("%04d-%02d-%02d", v.Y, int(v.M), v.D)
	return canon.MustMap(canon.P("type", canon.String("date")), canon.P("value", canon.String(s)))
}

// TimeValue is a UTC instant state value.
type TimeValue struct{ T time.Time }

func (TimeValue) stateValue() {}
func (v TimeValue) canonical() canon.Value {
	return canon.MustMap(
		canon.P("type", canon.String("timestamp")),
		canon.P("value", canon.String(v.T.UTC().Format(time.RFC3339Nano))),
	)
}

// NullValue is the absent state value.
type NullValue struct{}

func (NullValue) stateValue() {}
func (NullValue) canonical() canon.Value {
	return canon.MustMap(canon.P("type", canon.String("null")), canon.P("value", canon.Null{}))
}

// StateDelta records one field transition carried by a transaction:
// unit and field name plus old and new values drawn from the closed
// StateValue union.
type StateDelta struct {
	Unit  string
	Field string
	Old   StateValue
	New   StateValue
}

func (d StateDelta) canonical() canon.Value {
	return canon.MustMap(
		canon.P("unit", canon.String(d.Unit)),
		canon.P("field", canon.String(d.Field)),
		canon.P("old", d.Old.canonical()),
		canon.P("new", d.New.canonical()),
	)
}

// stateValueFromCanon rebuilds a StateValue from its tagged wire form.
func stateValueFromCanon(v canon.Value) (StateValue, error) {
	m, ok := v.(canon.Map)
	if !ok {
		return nil, fmt.Errorf("state value: not an object")
	}
	typRaw, ok := m.Get("type")
	if !ok {
		return nil, fmt.Errorf("state value: missing type")
	}
	typ, ok := typRaw.(canon.String)
	if !ok {
		return nil, fmt.Errorf("state value: type is not a string")
	}
	val, ok := m.Get("value")
	if !ok {
		return nil, fmt.Errorf("state value: missing value")
	}

	switch string(typ) {
	case "decimal":
		n, ok := val.(canon.Number)
		if !ok {
			return nil, fmt.Errorf("state value: decimal payload is not a number")
		}
		return DecimalValue{D: n.Decimal()}, nil
	case "string":
		s, ok := val.(canon.String)
		if !ok {
			return nil, fmt.Errorf("state value: string payload is not a string")
		}
		return StringValue{S: string(s)}, nil
	case "bool":
		b, ok := val.(canon.Bool)
		if !ok {
			return nil, fmt.Errorf("state value: bool payload is not a bool")
		}
		return BoolValue{B: bool(b)}, nil
	case "date":
		s, ok := val.(canon.String)
		if !ok {
			return nil, fmt.Errorf("state value: date payload is not a string")
		}
		t, err := time.Parse("2006-01-02", string(s))
		if err != nil {
			return nil, fmt.Errorf("state value: date %q: %w", s, err)
		}
		return DateValue{Y: t.Year(), M: t.Month(), D: t.Day()}, nil
	case "timestamp":
		s, ok := val.(canon.String)
		if !ok {
			return nil, fmt.Errorf("state value: timestamp payload is not a string")
		}
		t, err := time.Parse(time.RFC3339Nano, string(s))
		if err != nil {
			return nil, fmt.Errorf("state value: timestamp %q: %w", s, err)
		}
		return TimeValue{T: t.UTC()}, nil
	case "null":
		return NullValue{}, nil
	default:
		return nil, fmt.Errorf("state value: unknown type %q", typ)
	}
}
