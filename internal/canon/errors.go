package canon

import "fmt"

// EncodeError reports a value the codec cannot canonically represent.
// It is surfaced to callers rather than panicking: the codec must stay
// total so the attestation store and ledger stay total above it.
type EncodeError struct {
	Reason string
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("canon: encode: %s", e.Reason)
}

// DecodeError reports bytes that do not parse as a canonical value.
type DecodeError struct {
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("canon: decode: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("canon: decode: %s", e.Reason)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
