package storage

import "errors"

// Sentinel errors shared by every store backend. Callers match them with
// errors.Is.
var (
	// ErrNotFound means the requested trade or snapshot does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateKey means a trade with the same trade_id is already in
	// the ledger. Ledger rows are never updated.
	ErrDuplicateKey = errors.New("duplicate key: ledger rows are immutable")

	// ErrInvalidInput rejects nil records and non-positive limits.
	ErrInvalidInput = errors.New("invalid input")
)
