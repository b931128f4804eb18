package escrow

import (
	"errors"
	"fmt"

	"otc-swaps/internal/storage"
)

// Kind identifies a lifecycle failure. Kinds are stable and exposed to clients.
type Kind int

// Error kinds. The first twelve mirror the program's error codes.
const (
	KindUnknown Kind = iota
	KindInvalidAmount
	KindEmptyWhitelist
	KindInvalidExpiryTime
	KindInvalidTokenMint
	KindTokenAccountFrozen
	KindInsufficientBalance
	KindSwapNotActive
	KindSwapExpired
	KindBuyerNotWhitelisted
	KindUnauthorizedCancellation
	KindInvalidAmountToBuy
	KindInvalidRecipientAddress

	KindInvalidWhitelist
	KindSwapAlreadyExists
	KindSwapNotFound
	KindInvalidTokenOwner
)

var kindNames = map[Kind]string{
	KindUnknown:                  "Unknown",
	KindInvalidAmount:            "InvalidAmount",
	KindEmptyWhitelist:           "EmptyWhitelist",
	KindInvalidExpiryTime:        "InvalidExpiryTime",
	KindInvalidTokenMint:         "InvalidTokenMint",
	KindTokenAccountFrozen:       "TokenAccountFrozen",
	KindInsufficientBalance:      "InsufficientBalance",
	KindSwapNotActive:            "SwapNotActive",
	KindSwapExpired:              "SwapExpired",
	KindBuyerNotWhitelisted:      "BuyerNotWhitelisted",
	KindUnauthorizedCancellation: "UnauthorizedCancellation",
	KindInvalidAmountToBuy:       "InvalidAmountToBuy",
	KindInvalidRecipientAddress:  "InvalidRecipientAddress",
	KindInvalidWhitelist:         "InvalidWhitelist",
	KindSwapAlreadyExists:        "SwapAlreadyExists",
	KindSwapNotFound:             "SwapNotFound",
	KindInvalidTokenOwner:        "InvalidTokenOwner",
}

var kindMessages = map[Kind]string{
	KindUnknown:                  "internal error",
	KindInvalidAmount:            "amount must be greater than 0",
	KindEmptyWhitelist:           "whitelist cannot be empty",
	KindInvalidExpiryTime:        "invalid expiry time",
	KindInvalidTokenMint:         "invalid token mint",
	KindTokenAccountFrozen:       "token account is frozen",
	KindInsufficientBalance:      "insufficient balance",
	KindSwapNotActive:            "swap is not active",
	KindSwapExpired:              "swap has expired",
	KindBuyerNotWhitelisted:      "buyer is not whitelisted",
	KindUnauthorizedCancellation: "unauthorized cancellation attempt",
	KindInvalidAmountToBuy:       "invalid amount to buy",
	KindInvalidRecipientAddress:  "invalid recipient address",
	KindInvalidWhitelist:         "whitelist exceeds maximum size",
	KindSwapAlreadyExists:        "swap already exists for seller and mint",
	KindSwapNotFound:             "swap not found",
	KindInvalidTokenOwner:        "token account is not owned by seller",
}

// String returns the stable kind name, e.g. "SwapExpired".
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Message returns the default human-readable message of k.
func (k Kind) Message() string {
	if msg, ok := kindMessages[k]; ok {
		return msg
	}
	return kindMessages[KindUnknown]
}

// ParseKind resolves a kind name. Unknown names map to KindUnknown.
func ParseKind(name string) Kind {
	for k, n := range kindNames {
		if n == name {
			return k
		}
	}
	return KindUnknown
}

// Error is a lifecycle failure of a specific Kind.
// Err optionally carries the underlying cause.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Kind.Message(), e.Err)
	}
	return e.Kind.Message()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same Kind when target carries no cause,
// so errors.Is(err, ErrSwapExpired) works for wrapped instances.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Err == nil
}

// Sentinels, one per Kind.
var (
	ErrInvalidAmount            = &Error{Kind: KindInvalidAmount}
	ErrEmptyWhitelist           = &Error{Kind: KindEmptyWhitelist}
	ErrInvalidExpiryTime        = &Error{Kind: KindInvalidExpiryTime}
	ErrInvalidTokenMint         = &Error{Kind: KindInvalidTokenMint}
	ErrTokenAccountFrozen       = &Error{Kind: KindTokenAccountFrozen}
	ErrInsufficientBalance      = &Error{Kind: KindInsufficientBalance}
	ErrSwapNotActive            = &Error{Kind: KindSwapNotActive}
	ErrSwapExpired              = &Error{Kind: KindSwapExpired}
	ErrBuyerNotWhitelisted      = &Error{Kind: KindBuyerNotWhitelisted}
	ErrUnauthorizedCancellation = &Error{Kind: KindUnauthorizedCancellation}
	ErrInvalidAmountToBuy       = &Error{Kind: KindInvalidAmountToBuy}
	ErrInvalidRecipientAddress  = &Error{Kind: KindInvalidRecipientAddress}
	ErrInvalidWhitelist         = &Error{Kind: KindInvalidWhitelist}
	ErrSwapAlreadyExists        = &Error{Kind: KindSwapAlreadyExists}
	ErrSwapNotFound             = &Error{Kind: KindSwapNotFound}
	ErrInvalidTokenOwner        = &Error{Kind: KindInvalidTokenOwner}
)

func newError(kind Kind, cause error) *Error {
	return &Error{Kind: kind, Err: cause}
}

// KindOf returns the Kind carried by err, or KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// fromLedger translates a ledger failure raised inside a unit of work.
// Errors that already carry a Kind pass through unchanged.
func fromLedger(err error) error {
	var e *Error
	if err == nil || errors.As(err, &e) {
		return err
	}
	switch {
	case errors.Is(err, storage.ErrAccountFrozen):
		return newError(KindTokenAccountFrozen, err)
	case errors.Is(err, storage.ErrMintMismatch):
		return newError(KindInvalidTokenMint, err)
	case errors.Is(err, storage.ErrInsufficientFunds):
		return newError(KindInsufficientBalance, err)
	}
	return err
}
