package attest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/roach88/tally/internal/canon"
	"github.com/roach88/tally/internal/refined"
	"github.com/roach88/tally/internal/storage"
)

const (
	recordPrefix  = "att/"
	contentPrefix = "content/"
)

// Store creates and persists content-addressed attestations.
//
// Creation and storage of independent attestations are side-effect-free
// with respect to each other and may proceed in parallel; the only
// serialization point is the content-index read-modify-write, which is
// guarded by a mutex and naturally idempotent.
type Store struct {
	mu  sync.Mutex
	kv  storage.KeyValueStore
	now func() time.Time
}

// NewStore wraps the injected key-value persistence.
func NewStore(kv storage.KeyValueStore) *Store {
	return &Store{kv: kv, now: time.Now}
}

// NewStoreAt injects a clock for deterministic knowledge-time stamps.
func NewStoreAt(kv storage.KeyValueStore, now func() time.Time) *Store {
	return &Store{kv: kv, now: now}
}

// Create validates inputs and computes the content-addressed identity.
// It does not persist; call Put with the result. Upstream collaborators
// only ever submit values through Create, never by constructing an
// Attestation directly.
//
// Validations: source non-empty; timestamp UTC-aware; Derived
// confidence requires non-empty provenance; every provenance id must
// already exist in the store (the DAG stays closed by construction).
func (s *Store) Create(ctx context.Context, value canon.Value, conf Confidence, source string, timestamp time.Time, provenance []string) (Attestation, error) {
	src, err := refined.NewNonEmptyString("source", source)
	if err != nil {
		return Attestation{}, err
	}
	timestamp, err = requireUTC("timestamp", timestamp)
	if err != nil {
		return Attestation{}, err
	}
	if conf == nil {
		return Attestation{}, &refined.ValidationError{Field: "confidence", Message: "must be set"}
	}
	if conf.Kind() == KindDerived && len(provenance) == 0 {
		return Attestation{}, &refined.ValidationError{
			Field:   "provenance",
			Message: "derived attestation requires non-empty provenance",
		}
	}
	for _, parent := range provenance {
		ok, err := s.Exists(ctx, parent)
		if err != nil {
			return Attestation{}, err
		}
		if !ok {
			return Attestation{}, &ProvenanceError{Missing: parent, Reason: "parent must exist before derivation"}
		}
	}

	contentHash, err := canon.Hash(canon.DomainValue, value)
	if err != nil {
		return Attestation{}, fmt.Errorf("attestation content hash: %w", err)
	}

	a := Attestation{
		ContentHash: contentHash,
		Value:       value,
		Confidence:  conf,
		Source:      src,
		Timestamp:   timestamp,
		RecordedAt:  s.now().UTC(),
		Provenance:  append([]string(nil), provenance...),
	}

	identity, err := a.identity()
	if err != nil {
		return Attestation{}, fmt.Errorf("attestation identity: %w", err)
	}
	a.ID, err = canon.Hash(canon.DomainAttestation, identity)
	if err != nil {
		return Attestation{}, fmt.Errorf("attestation id: %w", err)
	}
	return a, nil
}

// Put persists an attestation. Idempotent: storing an id that already
// exists is a no-op returning the existing id - content addressing
// makes duplicate writes safe. The id is recomputed before writing so a
// tampered record can never enter the store.
func (s *Store) Put(ctx context.Context, a Attestation) (string, error) {
	identity, err := a.identity()
	if err != nil {
		return "", fmt.Errorf("put attestation: %w", err)
	}
	want, err := canon.Hash(canon.DomainAttestation, identity)
	if err != nil {
		return "", fmt.Errorf("put attestation: %w", err)
	}
	if a.ID != want {
		return "", &refined.ValidationError{
			Field:   "id",
			Message: fmt.Sprintf("does not match record content (got %s, want %s)", a.ID, want),
		}
	}

	ok, err := s.Exists(ctx, a.ID)
	if err != nil {
		return "", err
	}
	if ok {
		return a.ID, nil
	}

	data, err := a.MarshalCanonical()
	if err != nil {
		return "", fmt.Errorf("put attestation: %w", err)
	}
	if err := s.kv.Put(ctx, recordPrefix+a.ID, data); err != nil {
		return "", err
	}
	if err := s.indexContent(ctx, a.ContentHash, a.ID); err != nil {
		return "", err
	}
	return a.ID, nil
}

// Get retrieves an attestation by id.
func (s *Store) Get(ctx context.Context, id string) (Attestation, error) {
	data, ok, err := s.kv.Get(ctx, recordPrefix+id)
	if err != nil {
		return Attestation{}, err
	}
	if !ok {
		return Attestation{}, &NotFoundError{ID: id}
	}
	return UnmarshalCanonical(data)
}

// Exists reports whether an attestation id is stored.
func (s *Store) Exists(ctx context.Context, id string) (bool, error) {
	_, ok, err := s.kv.Get(ctx, recordPrefix+id)
	if err != nil {
		return false, err
	}
	return ok, nil
}

// FindByContentHash returns the ids of all attestations whose value
// hashes to contentHash, in storage order. Distinct attestations (same
// value, different source or confidence) share a content hash.
func (s *Store) FindByContentHash(ctx context.Context, contentHash string) ([]string, error) {
	data, ok, err := s.kv.Get(ctx, contentPrefix+contentHash)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	v, err := canon.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("content index decode: %w", err)
	}
	arr, ok := v.(canon.Array)
	if !ok {
		return nil, fmt.Errorf("content index decode: not an array")
	}
	ids := make([]string, 0, len(arr))
	for _, e := range arr {
		id, ok := e.(canon.String)
		if !ok {
			return nil, fmt.Errorf("content index decode: non-string id")
		}
		ids = append(ids, string(id))
	}
	return ids, nil
}

// ProvenanceNode is one ancestor in a provenance walk.
type ProvenanceNode struct {
	ID    string
	Depth int
}

// ProvenanceChain is the ancestry of one attestation in breadth-first
// order, each ancestor listed once at its minimum depth.
type ProvenanceChain struct {
	Root  string
	Nodes []ProvenanceNode
}

// IDs returns the ancestor ids in walk order.
func (c ProvenanceChain) IDs() []string {
	ids := make([]string, len(c.Nodes))
	for i, n := range c.Nodes {
		ids[i] = n.ID
	}
	return ids
}

// WalkProvenance traverses the ancestry of id breadth-first up to
// maxDepth levels. Any referenced parent missing from the store is a
// ProvenanceError; exceeding maxDepth with ancestors unvisited is too.
func (s *Store) WalkProvenance(ctx context.Context, id string, maxDepth int) (ProvenanceChain, error) {
	root, err := s.Get(ctx, id)
	if err != nil {
		return ProvenanceChain{}, err
	}

	chain := ProvenanceChain{Root: id}
	seen := map[string]bool{id: true}

	type frame struct {
		id    string
		depth int
	}
	queue := make([]frame, 0, len(root.Provenance))
	for _, p := range root.Provenance {
		queue = append(queue, frame{id: p, depth: 1})
	}

	for len(queue) > 0 {
		f := queue[0]
		queue = queue[1:]
		if seen[f.id] {
			continue
		}
		if f.depth > maxDepth {
			return ProvenanceChain{}, &ProvenanceError{
				ID:     id,
				Reason: fmt.Sprintf("ancestry exceeds max depth %d", maxDepth),
			}
		}
		seen[f.id] = true

		parent, err := s.Get(ctx, f.id)
		if err != nil {
			if _, notFound := err.(*NotFoundError); notFound {
				return ProvenanceChain{}, &ProvenanceError{ID: id, Missing: f.id}
			}
			return ProvenanceChain{}, err
		}
		chain.Nodes = append(chain.Nodes, ProvenanceNode{ID: f.id, Depth: f.depth})
		for _, gp := range parent.Provenance {
			queue = append(queue, frame{id: gp, depth: f.depth + 1})
		}
	}
	return chain, nil
}

// indexContent appends id to the content-hash index unless already
// present. Serialized by the store mutex; concurrent stores of the same
// content converge to one entry.
func (s *Store) indexContent(ctx context.Context, contentHash, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.FindByContentHash(ctx, contentHash)
	if err != nil {
		return err
	}
	for _, e := range existing {
		if e == id {
			return nil
		}
	}
	arr := make(canon.Array, 0, len(existing)+1)
	for _, e := range existing {
		arr = append(arr, canon.String(e))
	}
	arr = append(arr, canon.String(id))

	data, err := canon.Encode(arr)
	if err != nil {
		return fmt.Errorf("content index encode: %w", err)
	}
	return s.kv.Put(ctx, contentPrefix+contentHash, data)
}
