package canon

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration. The prefixes, like
// tagged-union variant names, are part of the wire contract: changing
// one changes every hash computed under it.
const (
	DomainAttestation = "tally/attestation/v1"
	DomainValue       = "tally/value/v1"
	DomainTransaction = "tally/transaction/v1"
	DomainSnapshot    = "tally/snapshot/v1"
)

// HashBytes computes SHA-256 with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte separator prevents domain/data boundary ambiguity.
func HashBytes(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Hash computes the content hash of a value under a domain:
// SHA-256 over the canonical encoding. Encoding failure is surfaced,
// never swallowed.
func Hash(domain string, v Value) (string, error) {
	data, err := Encode(v)
	if err != nil {
		return "", fmt.Errorf("hash: %w", err)
	}
	return HashBytes(domain, data), nil
}
