package storage

import "errors"

// Storage errors.
var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateKey is returned when attempting to insert a record
	// with a key that already exists. Audit events are append-only.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrInvalidInput is returned when input validation fails.
	ErrInvalidInput = errors.New("invalid input")
)

// Ledger errors returned by Tx transfers.
var (
	// ErrUnauthorizedTransfer is returned when the authority does not own the source account.
	ErrUnauthorizedTransfer = errors.New("transfer authority does not own source account")

	// ErrMintMismatch is returned when source and destination hold different mints.
	ErrMintMismatch = errors.New("token account mint mismatch")

	// ErrAccountFrozen is returned when either side of a transfer is frozen.
	ErrAccountFrozen = errors.New("token account frozen")

	// ErrInsufficientFunds is returned when a balance is below the requested amount.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrOverflow is returned when a credit would overflow 64 bits.
	ErrOverflow = errors.New("balance overflow")
)
