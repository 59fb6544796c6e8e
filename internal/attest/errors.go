package attest

import "fmt"

// NotFoundError reports a missing attestation id.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("attestation %s not found", e.ID)
}

// ProvenanceError reports a broken provenance reference: the DAG must
// be closed, so a dangling parent id is a hard error, never a silent
// gap.
type ProvenanceError struct {
	ID      string
	Missing string
	Reason  string
}

func (e *ProvenanceError) Error() string {
	if e.Missing != "" {
		return fmt.Sprintf("provenance of %s: missing parent %s", e.ID, e.Missing)
	}
	return fmt.Sprintf("provenance of %s: %s", e.ID, e.Reason)
}
