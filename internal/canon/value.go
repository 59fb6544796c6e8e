package canon

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/unicode/norm"
)

// Value is a sealed interface representing constrained value types.
// Only Null, Bool, String, Number, Array, and Map implement it.
// NO float variant - floats break determinism and are forbidden.
type Value interface {
	canonValue() // Sealed - only these types implement it
}

// Null represents the canonical null value.
// Absent optionals encode as Null, never as a missing key.
type Null struct{}

func (Null) canonValue() {}

// Bool represents a boolean value.
type Bool bool

func (Bool) canonValue() {}

// String represents a string value. NFC normalization happens at the
// encode boundary, not at construction.
type String string

func (String) canonValue() {}

// Number represents an exact decimal value.
// Always decimal.Decimal, never float64.
type Number struct {
	dec decimal.Decimal
}

func (Number) canonValue() {}

// Num wraps a decimal as a canonical Number.
func Num(d decimal.Decimal) Number {
	return Number{dec: d}
}

// Int builds a Number from an int64.
func Int(n int64) Number {
	return Number{dec: decimal.NewFromInt(n)}
}

// Decimal returns the wrapped decimal.
func (n Number) Decimal() decimal.Decimal {
	return n.dec
}

// Array represents an ordered sequence of values.
type Array []Value

func (Array) canonValue() {}

// Pair is one key/value entry of a Map.
type Pair struct {
	Key string
	Val Value
}

// Map is a finite partial function stored as a key-sorted sequence of
// unique pairs. Canonical form is enforced at construction: keys NFC
// normalized then sorted bytewise, duplicates with identical values
// deduplicated, duplicates with conflicting values rejected. Structural
// equality therefore implies byte-identical encoding.
type Map struct {
	pairs []Pair
}

func (Map) canonValue() {}

// NewMap builds a Map from pairs supplied in any order.
// Keys are NFC normalized here, before sorting, so the stored order is
// the byte order the encoder emits and NFC-equal keys are the same key.
// Duplicate keys with equal values collapse to one entry; duplicate keys
// with conflicting values are a construction error.
func NewMap(pairs ...Pair) (Map, error) {
	sorted := make([]Pair, len(pairs))
	for i, p := range pairs {
		sorted[i] = Pair{Key: norm.NFC.String(p.Key), Val: p.Val}
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Key < sorted[j].Key
	})

	out := sorted[:0]
	for _, p := range sorted {
		if n := len(out); n > 0 && out[n-1].Key == p.Key {
			if !Equal(out[n-1].Val, p.Val) {
				return Map{}, fmt.Errorf("canon: conflicting values for duplicate key %q", p.Key)
			}
			continue
		}
		out = append(out, p)
	}
	return Map{pairs: out}, nil
}

// MustMap is like NewMap but panics on duplicate-key conflicts.
// Use only in tests or when keys are known to be unique.
func MustMap(pairs ...Pair) Map {
	m, err := NewMap(pairs...)
	if err != nil {
		panic(err)
	}
	return m
}

// P is a shorthand Pair constructor for ergonomic Map building.
// Example: MustMap(P("currency", String("USD")), P("amount", Num(d)))
func P(key string, val Value) Pair {
	return Pair{Key: key, Val: val}
}

// Get returns the value for key. This is the total lookup form; all
// production lookups go through it.
func (m Map) Get(key string) (Value, bool) {
	key = norm.NFC.String(key)
	i := sort.Search(len(m.pairs), func(i int) bool { return m.pairs[i].Key >= key })
	if i < len(m.pairs) && m.pairs[i].Key == key {
		return m.pairs[i].Val, true
	}
	return nil, false
}

// MustGet returns the value for key and panics if absent.
// Permitted in tests only; production code uses Get.
func (m Map) MustGet(key string) Value {
	v, ok := m.Get(key)
	if !ok {
		panic(fmt.Sprintf("canon: missing key %q", key))
	}
	return v
}

// Len returns the number of entries.
func (m Map) Len() int {
	return len(m.pairs)
}

// Keys returns the keys in canonical (sorted) order.
func (m Map) Keys() []string {
	keys := make([]string, len(m.pairs))
	for i, p := range m.pairs {
		keys[i] = p.Key
	}
	return keys
}

// Pairs returns a copy of the entries in canonical order.
func (m Map) Pairs() []Pair {
	out := make([]Pair, len(m.pairs))
	copy(out, m.pairs)
	return out
}

// With returns a new Map with key bound to val, replacing any existing
// binding. The receiver is unchanged.
func (m Map) With(key string, val Value) Map {
	key = norm.NFC.String(key)
	out := make([]Pair, 0, len(m.pairs)+1)
	inserted := false
	for _, p := range m.pairs {
		switch {
		case p.Key == key:
			out = append(out, Pair{Key: key, Val: val})
			inserted = true
		case p.Key > key && !inserted:
			out = append(out, Pair{Key: key, Val: val}, p)
			inserted = true
		default:
			out = append(out, p)
		}
	}
	if !inserted {
		out = append(out, Pair{Key: key, Val: val})
	}
	return Map{pairs: out}
}

// Equal reports structural equality of two canonical values.
// Numbers compare by numeric value (1.50 equals 1.5), which matches the
// encoder's minimal-form normalization.
func Equal(a, b Value) bool {
	switch av := a.(type) {
	case Null:
		_, ok := b.(Null)
		return ok
	case Bool:
		bv, ok := b.(Bool)
		return ok && av == bv
	case String:
		bv, ok := b.(String)
		return ok && av == bv
	case Number:
		bv, ok := b.(Number)
		return ok && av.dec.Equal(bv.dec)
	case Array:
		bv, ok := b.(Array)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !Equal(av[i], bv[i]) {
				return false
			}
		}
		return true
	case Map:
		bv, ok := b.(Map)
		if !ok || len(av.pairs) != len(bv.pairs) {
			return false
		}
		for i := range av.pairs {
			if av.pairs[i].Key != bv.pairs[i].Key || !Equal(av.pairs[i].Val, bv.pairs[i].Val) {
				return false
			}
		}
		return true
	case nil:
		return b == nil
	default:
		return false
	}
}

// canonicalDecimal renders a decimal in its minimal base-10 form.
// All zero representations, regardless of internal exponent, normalize
// to the single literal "0".
func canonicalDecimal(d decimal.Decimal) string {
	if d.IsZero() {
		return "0"
	}
	s := d.String()
	if strings.ContainsRune(s, '.') {
		s = strings.TrimRight(s, "0")
		s = strings.TrimRight(s, ".")
	}
	return s
}
