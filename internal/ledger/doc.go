// Package ledger implements the double-entry ledger engine.
//
// The engine is a single logical writer: all transaction execution
// against one ledger is serialized, so there is exactly one place
// balances change and conservation and idempotency stay trivial to
// reason about. Readers are served from copies and never block the
// writer.
//
// The append-only log, not the in-memory balance index, is the source
// of truth. Transactions are appended before the index is updated;
// corrections are new, reversing transactions, never edits.
//
// Conservation is structural: a Move both debits its source and
// credits its destination by the same quantity of the same unit, so no
// transaction can change the total quantity of any instrument summed
// across accounts. Execute verifies the property per instrument before
// any mutation anyway, and rejects with no partial effect.
package ledger
