// Package refined provides validated scalar types for tally.
//
// Every type here is constructible only through a validating factory
// returning (value, error); an invalid value cannot exist past
// construction, so downstream code never re-checks. All values are
// immutable: arithmetic returns new instances.
package refined
