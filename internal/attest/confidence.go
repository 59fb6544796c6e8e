package attest

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/roach88/tally/internal/canon"
	"github.com/roach88/tally/internal/refined"
)

// Confidence is a sealed union classifying a fact's epistemic status.
// Only Firm, Quoted, and Derived implement it. The Kind strings are
// part of the wire contract: renaming one changes every attestation id
// that includes it (guarded by a characterization test).
type Confidence interface {
	confidence() // Sealed - only these types implement it

	// Kind returns the wire discriminator.
	Kind() string

	// Rank orders strength: Firm > Quoted > Derived. An output's
	// confidence should never exceed the weakest of its inputs.
	Rank() int

	canonical() canon.Value
}

// Wire discriminators.
const (
	KindFirm    = "Firm"
	KindQuoted  = "Quoted"
	KindDerived = "Derived"
)

// Firm is an exact, authoritative observation: a settlement statement,
// an exchange fill, a signed confirmation.
type Firm struct {
	source     refined.NonEmptyString
	observedAt time.Time
	sourceRef  string
}

func (Firm) confidence()  {}
func (Firm) Kind() string { return KindFirm }
func (Firm) Rank() int    { return 3 }

// NewFirm validates and constructs a Firm confidence.
func NewFirm(source string, observedAt time.Time, sourceRef string) (Firm, error) {
	src, err := refined.NewNonEmptyString("firm.source", source)
	if err != nil {
		return Firm{}, err
	}
	at, err := requireUTC("firm.observed_at", observedAt)
	if err != nil {
		return Firm{}, err
	}
	return Firm{source: src, observedAt: at, sourceRef: sourceRef}, nil
}

// Source returns the authoritative source name.
func (f Firm) Source() string { return f.source.String() }

// ObservedAt returns the UTC observation instant.
func (f Firm) ObservedAt() time.Time { return f.observedAt }

// SourceRef returns the external reference, empty when absent.
func (f Firm) SourceRef() string { return f.sourceRef }

func (f Firm) canonical() canon.Value {
	ref := canon.Value(canon.Null{})
	if f.sourceRef != "" {
		ref = canon.String(f.sourceRef)
	}
	return canon.MustMap(
		canon.P("kind", canon.String(KindFirm)),
		canon.P("observed_at", canon.String(formatUTC(f.observedAt))),
		canon.P("source", canon.String(f.source.String())),
		canon.P("source_ref", ref),
	)
}

// Quoted is a value bounded by a live two-sided market.
type Quoted struct {
	bid        decimal.Decimal
	ask        decimal.Decimal
	venue      refined.NonEmptyString
	size       *refined.PositiveDecimal
	conditions []string
}

func (Quoted) confidence()  {}
func (Quoted) Kind() string { return KindQuoted }
func (Quoted) Rank() int    { return 2 }

// NewQuoted validates and constructs a Quoted confidence.
// A crossed market (bid > ask) is rejected at construction. size is
// optional and must be positive when present.
func NewQuoted(bid, ask decimal.Decimal, venue string, size *decimal.Decimal, conditions []string) (Quoted, error) {
	if bid.GreaterThan(ask) {
		return Quoted{}, &refined.ValidationError{
			Field:   "quoted",
			Message: fmt.Sprintf("bid %s exceeds ask %s", bid, ask),
		}
	}
	ven, err := refined.NewNonEmptyString("quoted.venue", venue)
	if err != nil {
		return Quoted{}, err
	}
	q := Quoted{bid: bid, ask: ask, venue: ven, conditions: append([]string(nil), conditions...)}
	if size != nil {
		sz, err := refined.NewPositiveDecimal("quoted.size", *size)
		if err != nil {
			return Quoted{}, err
		}
		q.size = &sz
	}
	return q, nil
}

// Bid returns the bid price.
func (q Quoted) Bid() decimal.Decimal { return q.bid }

// Ask returns the ask price.
func (q Quoted) Ask() decimal.Decimal { return q.ask }

// Venue returns the quoting venue.
func (q Quoted) Venue() string { return q.venue.String() }

// Size returns the quoted size and whether one was present.
func (q Quoted) Size() (decimal.Decimal, bool) {
	if q.size == nil {
		return decimal.Decimal{}, false
	}
	return q.size.Decimal(), true
}

// Conditions returns a copy of the quote conditions.
func (q Quoted) Conditions() []string {
	return append([]string(nil), q.conditions...)
}

// Mid returns the mid price (bid+ask)/2.
func (q Quoted) Mid() decimal.Decimal {
	return q.bid.Add(q.ask).Div(decimal.NewFromInt(2))
}

// Spread returns ask-bid; non-negative by construction.
func (q Quoted) Spread() decimal.Decimal {
	return q.ask.Sub(q.bid)
}

func (q Quoted) canonical() canon.Value {
	size := canon.Value(canon.Null{})
	if q.size != nil {
		size = canon.Num(q.size.Decimal())
	}
	conds := make(canon.Array, len(q.conditions))
	for i, c := range q.conditions {
		conds[i] = canon.String(c)
	}
	return canon.MustMap(
		canon.P("kind", canon.String(KindQuoted)),
		canon.P("bid", canon.Num(q.bid)),
		canon.P("ask", canon.Num(q.ask)),
		canon.P("venue", canon.String(q.venue.String())),
		canon.P("size", size),
		canon.P("conditions", conds),
	)
}

// Derived is a model output. Uncertainty fields are mandatory: there is
// no confidence claim without quantified uncertainty.
type Derived struct {
	method          refined.NonEmptyString
	modelConfigRef  string
	fitQuality      canon.Map
	intervalLow     decimal.Decimal
	intervalHigh    decimal.Decimal
	confidenceLevel decimal.Decimal
}

func (Derived) confidence()  {}
func (Derived) Kind() string { return KindDerived }
func (Derived) Rank() int    { return 1 }

// NewDerived validates and constructs a Derived confidence.
// fitQuality must be non-empty, the interval ordered, and the level
// strictly inside (0,1).
func NewDerived(method, modelConfigRef string, fitQuality canon.Map, intervalLow, intervalHigh, confidenceLevel decimal.Decimal) (Derived, error) {
	m, err := refined.NewNonEmptyString("derived.method", method)
	if err != nil {
		return Derived{}, err
	}
	if fitQuality.Len() == 0 {
		return Derived{}, &refined.ValidationError{Field: "derived.fit_quality", Message: "must be non-empty"}
	}
	if intervalLow.GreaterThan(intervalHigh) {
		return Derived{}, &refined.ValidationError{
			Field:   "derived.confidence_interval",
			Message: fmt.Sprintf("low %s exceeds high %s", intervalLow, intervalHigh),
		}
	}
	one := decimal.NewFromInt(1)
	if !confidenceLevel.IsPositive() || confidenceLevel.GreaterThanOrEqual(one) {
		return Derived{}, &refined.ValidationError{
			Field:   "derived.confidence_level",
			Message: fmt.Sprintf("must be in (0,1), got %s", confidenceLevel),
		}
	}
	return Derived{
		method:          m,
		modelConfigRef:  modelConfigRef,
		fitQuality:      fitQuality,
		intervalLow:     intervalLow,
		intervalHigh:    intervalHigh,
		confidenceLevel: confidenceLevel,
	}, nil
}

// Method returns the derivation method name.
func (d Derived) Method() string { return d.method.String() }

// ModelConfigRef returns the model configuration reference, empty when
// absent.
func (d Derived) ModelConfigRef() string { return d.modelConfigRef }

// FitQuality returns the fit-quality metrics map.
func (d Derived) FitQuality() canon.Map { return d.fitQuality }

// ConfidenceInterval returns (low, high).
func (d Derived) ConfidenceInterval() (decimal.Decimal, decimal.Decimal) {
	return d.intervalLow, d.intervalHigh
}

// ConfidenceLevel returns the level in (0,1).
func (d Derived) ConfidenceLevel() decimal.Decimal { return d.confidenceLevel }

func (d Derived) canonical() canon.Value {
	ref := canon.Value(canon.Null{})
	if d.modelConfigRef != "" {
		ref = canon.String(d.modelConfigRef)
	}
	return canon.MustMap(
		canon.P("kind", canon.String(KindDerived)),
		canon.P("method", canon.String(d.method.String())),
		canon.P("model_config_ref", ref),
		canon.P("fit_quality", d.fitQuality),
		canon.P("confidence_interval", canon.Array{canon.Num(d.intervalLow), canon.Num(d.intervalHigh)}),
		canon.P("confidence_level", canon.Num(d.confidenceLevel)),
	)
}

// Weakest returns the lowest-ranked confidence among its arguments.
// Useful for callers deriving outputs: the result's confidence should
// not exceed the weakest input.
func Weakest(confs ...Confidence) (Confidence, bool) {
	if len(confs) == 0 {
		return nil, false
	}
	weakest := confs[0]
	for _, c := range confs[1:] {
		if c.Rank() < weakest.Rank() {
			weakest = c
		}
	}
	return weakest, true
}

func formatUTC(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// requireUTC validates an instant at a construction boundary: it must
// be set and carry a zero UTC offset. The returned time is pinned to
// the UTC location so equal instants compare and encode identically
// whether the caller used time.UTC or an explicit +00:00 zone.
func requireUTC(field string, t time.Time) (time.Time, error) {
	if t.IsZero() {
		return time.Time{}, &refined.ValidationError{Field: field, Message: "must be set"}
	}
	if _, offset := t.Zone(); offset != 0 {
		return time.Time{}, &refined.ValidationError{Field: field, Message: "must be UTC-aware"}
	}
	return t.UTC(), nil
}
