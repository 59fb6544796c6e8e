package attest

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/roach88/tally/internal/canon"
	"github.com/roach88/tally/internal/refined"
)

// Attestation is an immutable, timestamped, content-addressed record
// of a fact. Fields are exported for persistence but are never mutated
// after creation; superseding observations are new attestations whose
// provenance may reference this one.
type Attestation struct {
	// ID is the hash of the full record (everything below except
	// RecordedAt, which is knowledge time, not record content).
	ID string

	// ContentHash hashes only Value, for value-level dedup queries.
	ContentHash string

	Value      canon.Value
	Confidence Confidence
	Source     refined.NonEmptyString

	// Timestamp is event time: when the fact was true. Always UTC.
	Timestamp time.Time

	// RecordedAt is knowledge time: when the store learned the fact.
	RecordedAt time.Time

	// Provenance is the ordered list of parent attestation ids.
	// Non-empty for Derived confidence; typically empty for Firm.
	Provenance []string
}

// identity builds the map whose hash is the attestation id. RecordedAt
// is excluded: identity covers what was attested, not when the system
// learned it, so the same fact re-created later deduplicates.
func (a Attestation) identity() (canon.Map, error) {
	prov := make(canon.Array, len(a.Provenance))
	for i, p := range a.Provenance {
		prov[i] = canon.String(p)
	}
	return canon.NewMap(
		canon.P("content_hash", canon.String(a.ContentHash)),
		canon.P("value", a.Value),
		canon.P("confidence", a.Confidence.canonical()),
		canon.P("source", canon.String(a.Source.String())),
		canon.P("timestamp", canon.String(formatUTC(a.Timestamp))),
		canon.P("provenance", prov),
	)
}

// record builds the full persisted form, identity fields plus the
// bitemporal knowledge stamp.
func (a Attestation) record() (canon.Map, error) {
	id, err := a.identity()
	if err != nil {
		return canon.Map{}, err
	}
	return canon.NewMap(append(id.Pairs(),
		canon.P("id", canon.String(a.ID)),
		canon.P("recorded_at", canon.String(formatUTC(a.RecordedAt))),
	)...)
}

// MarshalCanonical returns the canonical bytes of the full record.
func (a Attestation) MarshalCanonical() ([]byte, error) {
	rec, err := a.record()
	if err != nil {
		return nil, err
	}
	return canon.Encode(rec)
}

// UnmarshalCanonical reconstructs an attestation from stored bytes.
func UnmarshalCanonical(data []byte) (Attestation, error) {
	v, err := canon.Decode(data)
	if err != nil {
		return Attestation{}, fmt.Errorf("attestation decode: %w", err)
	}
	m, ok := v.(canon.Map)
	if !ok {
		return Attestation{}, fmt.Errorf("attestation decode: not an object")
	}

	var a Attestation
	if a.ID, err = stringField(m, "id"); err != nil {
		return Attestation{}, err
	}
	if a.ContentHash, err = stringField(m, "content_hash"); err != nil {
		return Attestation{}, err
	}
	val, ok := m.Get("value")
	if !ok {
		return Attestation{}, fmt.Errorf("attestation decode: missing value")
	}
	a.Value = val

	confVal, ok := m.Get("confidence")
	if !ok {
		return Attestation{}, fmt.Errorf("attestation decode: missing confidence")
	}
	if a.Confidence, err = confidenceFromValue(confVal); err != nil {
		return Attestation{}, err
	}

	src, err := stringField(m, "source")
	if err != nil {
		return Attestation{}, err
	}
	if a.Source, err = refined.NewNonEmptyString("source", src); err != nil {
		return Attestation{}, err
	}

	if a.Timestamp, err = timeField(m, "timestamp"); err != nil {
		return Attestation{}, err
	}
	if a.RecordedAt, err = timeField(m, "recorded_at"); err != nil {
		return Attestation{}, err
	}

	provVal, ok := m.Get("provenance")
	if !ok {
		return Attestation{}, fmt.Errorf("attestation decode: missing provenance")
	}
	provArr, ok := provVal.(canon.Array)
	if !ok {
		return Attestation{}, fmt.Errorf("attestation decode: provenance is not an array")
	}
	for i, p := range provArr {
		s, ok := p.(canon.String)
		if !ok {
			return Attestation{}, fmt.Errorf("attestation decode: provenance[%d] is not a string", i)
		}
		a.Provenance = append(a.Provenance, string(s))
	}
	return a, nil
}

// confidenceFromValue rebuilds the sealed union from its wire form via
// the kind discriminator.
func confidenceFromValue(v canon.Value) (Confidence, error) {
	m, ok := v.(canon.Map)
	if !ok {
		return nil, fmt.Errorf("confidence decode: not an object")
	}
	kind, err := stringField(m, "kind")
	if err != nil {
		return nil, err
	}

	switch kind {
	case KindFirm:
		source, err := stringField(m, "source")
		if err != nil {
			return nil, err
		}
		observedAt, err := timeField(m, "observed_at")
		if err != nil {
			return nil, err
		}
		sourceRef, err := optionalStringField(m, "source_ref")
		if err != nil {
			return nil, err
		}
		return NewFirm(source, observedAt, sourceRef)

	case KindQuoted:
		bid, err := numberField(m, "bid")
		if err != nil {
			return nil, err
		}
		ask, err := numberField(m, "ask")
		if err != nil {
			return nil, err
		}
		venue, err := stringField(m, "venue")
		if err != nil {
			return nil, err
		}
		var size *decimal.Decimal
		if sv, ok := m.Get("size"); ok {
			if n, isNum := sv.(canon.Number); isNum {
				d := n.Decimal()
				size = &d
			}
		}
		var conditions []string
		if cv, ok := m.Get("conditions"); ok {
			arr, isArr := cv.(canon.Array)
			if !isArr {
				return nil, fmt.Errorf("confidence decode: conditions is not an array")
			}
			for _, c := range arr {
				s, isStr := c.(canon.String)
				if !isStr {
					return nil, fmt.Errorf("confidence decode: condition is not a string")
				}
				conditions = append(conditions, string(s))
			}
		}
		return NewQuoted(bid, ask, venue, size, conditions)

	case KindDerived:
		method, err := stringField(m, "method")
		if err != nil {
			return nil, err
		}
		modelConfigRef, err := optionalStringField(m, "model_config_ref")
		if err != nil {
			return nil, err
		}
		fqVal, ok := m.Get("fit_quality")
		if !ok {
			return nil, fmt.Errorf("confidence decode: missing fit_quality")
		}
		fq, ok := fqVal.(canon.Map)
		if !ok {
			return nil, fmt.Errorf("confidence decode: fit_quality is not an object")
		}
		ciVal, ok := m.Get("confidence_interval")
		if !ok {
			return nil, fmt.Errorf("confidence decode: missing confidence_interval")
		}
		ci, ok := ciVal.(canon.Array)
		if !ok || len(ci) != 2 {
			return nil, fmt.Errorf("confidence decode: confidence_interval must be a 2-element array")
		}
		low, lok := ci[0].(canon.Number)
		high, hok := ci[1].(canon.Number)
		if !lok || !hok {
			return nil, fmt.Errorf("confidence decode: confidence_interval bounds must be numbers")
		}
		level, err := numberField(m, "confidence_level")
		if err != nil {
			return nil, err
		}
		return NewDerived(method, modelConfigRef, fq, low.Decimal(), high.Decimal(), level)

	default:
		return nil, fmt.Errorf("confidence decode: unknown kind %q", kind)
	}
}

func stringField(m canon.Map, key string) (string, error) {
	v, ok := m.Get(key)
	if !ok {
		return "", fmt.Errorf("decode: missing field %q", key)
	}
	s, ok := v.(canon.String)
	if !ok {
		return "", fmt.Errorf("decode: field %q is not a string", key)
	}
	return string(s), nil
}

func optionalStringField(m canon.Map, key string) (string, error) {
	v, ok := m.Get(key)
	if !ok {
		return "", nil
	}
	if _, isNull := v.(canon.Null); isNull {
		return "", nil
	}
	s, ok := v.(canon.String)
	if !ok {
		return "", fmt.Errorf("decode: field %q is not a string", key)
	}
	return string(s), nil
}

func numberField(m canon.Map, key string) (decimal.Decimal, error) {
	v, ok := m.Get(key)
	if !ok {
		return decimal.Decimal{}, fmt.Errorf("decode: missing field %q", key)
	}
	n, ok := v.(canon.Number)
	if !ok {
		return decimal.Decimal{}, fmt.Errorf("decode: field %q is not a number", key)
	}
	return n.Decimal(), nil
}

func timeField(m canon.Map, key string) (time.Time, error) {
	s, err := stringField(m, key)
	if err != nil {
		return time.Time{}, err
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("decode: field %q: %w", key, err)
	}
	return t.UTC(), nil
}
