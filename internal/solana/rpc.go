// Package solana reads on-chain state over the Solana JSON-RPC HTTP API.
package solana

import (
	"context"
	"errors"

	"otc-swaps/internal/domain"
)

// ErrAccountNotFound is returned when an address holds no account.
var ErrAccountNotFound = errors.New("solana: account not found")

// RPCClient defines the Solana RPC HTTP calls used to inspect swap inputs.
type RPCClient interface {
	// GetAccountInfo retrieves raw account info. Returns nil if the account does not exist.
	GetAccountInfo(ctx context.Context, pubkey string) (*AccountInfo, error)

	// GetBalance returns the lamport balance of an address.
	GetBalance(ctx context.Context, pubkey string) (uint64, error)

	// GetSlot returns the latest slot at the client's commitment level.
	GetSlot(ctx context.Context) (int64, error)

	// GetTokenAccount fetches and decodes an SPL token account.
	GetTokenAccount(ctx context.Context, address domain.Identity) (*domain.TokenAccount, error)

	// GetSignaturesForAddress retrieves signatures for an address with pagination.
	GetSignaturesForAddress(ctx context.Context, address string, opts *SignaturesOpts) ([]SignatureInfo, error)
}

// AccountInfo represents Solana account information.
type AccountInfo struct {
	Lamports   uint64 `json:"lamports"`
	Owner      string `json:"owner"`
	Data       string `json:"data"` // base64 encoded
	Executable bool   `json:"executable"`
	RentEpoch  uint64 `json:"rentEpoch"`
}
