// Package attest implements the content-addressed attestation store:
// immutable, provenance-tracked records of observed or derived facts.
//
// Every attestation carries a confidence classification (Firm, Quoted,
// or Derived), a UTC event timestamp, and an ordered list of parent
// attestation ids. Identity is the hash of the full record under
// canon.DomainAttestation; a secondary value-only hash supports
// deduplication queries. Records are never updated or deleted after a
// successful Put; corrections are new attestations referencing the old
// one.
//
// The provenance graph is acyclic by construction: an attestation's id
// hashes content that includes its provenance list, so it is computed
// after all parents exist and cannot reference itself or a
// not-yet-created record.
package attest
