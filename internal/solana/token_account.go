package solana

import (
	"encoding/binary"
	"errors"
	"fmt"

	"otc-swaps/internal/domain"
)

// SPL token account layout.
const (
	TokenAccountSize = 165

	tokenMintOffset   = 0
	tokenOwnerOffset  = 32
	tokenAmountOffset = 64
	tokenStateOffset  = 108
)

// Token account states.
const (
	TokenStateUninitialized byte = 0
	TokenStateInitialized   byte = 1
	TokenStateFrozen        byte = 2
)

var (
	// ErrNotTokenAccount is returned when the data is not an SPL token account.
	ErrNotTokenAccount = errors.New("solana: not a token account")

	// ErrUninitialized is returned for a token account that was never initialized.
	ErrUninitialized = errors.New("solana: token account uninitialized")
)

// ParseTokenAccount decodes SPL token account data held at address.
func ParseTokenAccount(address domain.Identity, data []byte) (*domain.TokenAccount, error) {
	if len(data) != TokenAccountSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrNotTokenAccount, len(data))
	}

	state := data[tokenStateOffset]
	switch state {
	case TokenStateUninitialized:
		return nil, ErrUninitialized
	case TokenStateInitialized, TokenStateFrozen:
	default:
		return nil, fmt.Errorf("%w: state %d", ErrNotTokenAccount, state)
	}

	mint, err := domain.IdentityFromBytes(data[tokenMintOffset : tokenMintOffset+32])
	if err != nil {
		return nil, err
	}
	owner, err := domain.IdentityFromBytes(data[tokenOwnerOffset : tokenOwnerOffset+32])
	if err != nil {
		return nil, err
	}

	return &domain.TokenAccount{
		Address: address,
		Mint:    mint,
		Owner:   owner,
		Amount:  binary.LittleEndian.Uint64(data[tokenAmountOffset : tokenAmountOffset+8]),
		Frozen:  state == TokenStateFrozen,
	}, nil
}

// EncodeTokenAccount renders acct in the SPL layout with no delegate or close authority.
func EncodeTokenAccount(acct *domain.TokenAccount) []byte {
	data := make([]byte, TokenAccountSize)
	copy(data[tokenMintOffset:], acct.Mint[:])
	copy(data[tokenOwnerOffset:], acct.Owner[:])
	binary.LittleEndian.PutUint64(data[tokenAmountOffset:], acct.Amount)
	data[tokenStateOffset] = TokenStateInitialized
	if acct.Frozen {
		data[tokenStateOffset] = TokenStateFrozen
	}
	return data
}
