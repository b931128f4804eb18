package storage

import (
	"context"

	"otc-swaps/internal/domain"
)

// Tx is the unit of work of one lifecycle operation.
// Everything done through a Tx is committed together or not at all.
type Tx interface {
	// LoadSwap retrieves a swap record. Returns ErrNotFound if not exists.
	LoadSwap(ctx context.Context, id domain.Identity) (*domain.SwapRecord, error)

	// CreateSwap persists a new record. Returns ErrDuplicateKey if the id exists.
	CreateSwap(ctx context.Context, r *domain.SwapRecord) error

	// SaveSwap overwrites an existing record. Returns ErrNotFound if not exists.
	SaveSwap(ctx context.Context, r *domain.SwapRecord) error

	// TokenAccount retrieves a token account. Returns ErrNotFound if not exists.
	TokenAccount(ctx context.Context, addr domain.Identity) (*domain.TokenAccount, error)

	// OpenTokenAccount creates an empty token account, or returns the existing one
	// when mint and owner match. Returns ErrDuplicateKey on a mismatching account.
	OpenTokenAccount(ctx context.Context, addr, mint, owner domain.Identity) (*domain.TokenAccount, error)

	// TransferTokens moves amount between accounts of the same mint.
	// authority must equal the owner of from. Returns ErrUnauthorizedTransfer,
	// ErrMintMismatch, ErrAccountFrozen or ErrInsufficientFunds.
	TransferTokens(ctx context.Context, from, to, authority domain.Identity, amount uint64) error

	// NativeBalance returns the settlement balance in lamports; zero if the account is unknown.
	NativeBalance(ctx context.Context, addr domain.Identity) (uint64, error)

	// DebitNative subtracts lamports. Returns ErrInsufficientFunds.
	DebitNative(ctx context.Context, addr domain.Identity, amount uint64) error

	// CreditNative adds lamports. Returns ErrOverflow.
	CreditNative(ctx context.Context, addr domain.Identity, amount uint64) error

	// AppendEvent adds an audit event. Returns ErrDuplicateKey if the event id exists.
	AppendEvent(ctx context.Context, e *domain.Event) error
}

// Runtime executes units of work.
// Operations on the same swap id are strictly serialized; different ids run in parallel.
type Runtime interface {
	// Execute runs fn in a fresh Tx. The Tx commits iff fn returns nil.
	Execute(ctx context.Context, swapID domain.Identity, fn func(ctx context.Context, tx Tx) error) error
}

// SwapReader provides read-only access to swap records.
type SwapReader interface {
	// GetSwap retrieves a record by id. Returns ErrNotFound if not exists.
	GetSwap(ctx context.Context, id domain.Identity) (*domain.SwapRecord, error)

	// ListSwapsBySeller retrieves all records of a seller, ordered by created_at ASC.
	ListSwapsBySeller(ctx context.Context, seller domain.Identity) ([]*domain.SwapRecord, error)

	// ListActiveSwaps retrieves all active records, ordered by created_at ASC.
	ListActiveSwaps(ctx context.Context) ([]*domain.SwapRecord, error)
}

// EventReader provides read-only access to the audit log.
type EventReader interface {
	// GetBySwapID retrieves all events of a swap, ordered by occurred_at ASC.
	GetBySwapID(ctx context.Context, swapID domain.Identity) ([]*domain.Event, error)

	// GetByTimeRange retrieves events within [start, end] (inclusive, unix seconds).
	GetByTimeRange(ctx context.Context, start, end int64) ([]*domain.Event, error)
}

// EventStore is an append-only event log outside the swap runtime (analytics mirror).
type EventStore interface {
	EventReader

	// InsertBulk adds multiple events atomically. Fails entire batch on any duplicate id.
	InsertBulk(ctx context.Context, events []*domain.Event) error
}

// LedgerReader provides read-only access to token and settlement balances.
type LedgerReader interface {
	// GetTokenAccount retrieves a token account. Returns ErrNotFound if not exists.
	GetTokenAccount(ctx context.Context, addr domain.Identity) (*domain.TokenAccount, error)

	// GetNativeBalance returns the settlement balance in lamports; zero if unknown.
	GetNativeBalance(ctx context.Context, addr domain.Identity) (uint64, error)
}

// LedgerAdmin seeds ledger state. Used by dev tooling and tests, never by the lifecycle.
type LedgerAdmin interface {
	// PutTokenAccount creates or replaces a token account.
	PutTokenAccount(ctx context.Context, acct *domain.TokenAccount) error

	// SetNativeBalance sets the settlement balance of addr.
	SetNativeBalance(ctx context.Context, addr domain.Identity, lamports uint64) error
}

// Store is the full persistence surface of the service.
type Store interface {
	Runtime
	SwapReader
	EventReader
	LedgerReader
	LedgerAdmin
}
