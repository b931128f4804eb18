package escrow

import (
	"time"

	"otc-swaps/internal/domain"
)

// MaxExpiryWindow is the furthest a new swap may expire from creation time.
const MaxExpiryWindow = 48 * time.Hour

// Guard checks are pure and run before any mutation.

// RequireActive fails with SwapNotActive once the record is closed.
func RequireActive(r *domain.SwapRecord) error {
	if !r.IsActive {
		return ErrSwapNotActive
	}
	return nil
}

// RequireNotExpired fails with SwapExpired when now is past the expiry.
// A fill at exactly the expiry second is still accepted.
func RequireNotExpired(r *domain.SwapRecord, now int64) error {
	if now > r.ExpiryTimestamp {
		return ErrSwapExpired
	}
	return nil
}

// RequireWhitelisted fails with BuyerNotWhitelisted if actor is not eligible.
func RequireWhitelisted(r *domain.SwapRecord, actor domain.Identity) error {
	if !r.Whitelist.Contains(actor) {
		return ErrBuyerNotWhitelisted
	}
	return nil
}

// RequireOwner fails with UnauthorizedCancellation if actor is not the seller.
func RequireOwner(r *domain.SwapRecord, actor domain.Identity) error {
	if actor != r.Seller {
		return ErrUnauthorizedCancellation
	}
	return nil
}

// RequireTokenAccountUsable checks the mint first, then the frozen flag.
func RequireTokenAccountUsable(acct *domain.TokenAccount, expectedMint domain.Identity) error {
	if acct.Mint != expectedMint {
		return ErrInvalidTokenMint
	}
	if acct.Frozen {
		return ErrTokenAccountFrozen
	}
	return nil
}

// RequireRecipientOwner fails with InvalidRecipientAddress unless buyer owns the destination.
func RequireRecipientOwner(acct *domain.TokenAccount, buyer domain.Identity) error {
	if acct.Owner != buyer {
		return ErrInvalidRecipientAddress
	}
	return nil
}

// ValidateExpiry accepts expiry in (now, now+MaxExpiryWindow].
func ValidateExpiry(now, expiry int64) error {
	if expiry <= now || expiry > now+int64(MaxExpiryWindow/time.Second) {
		return ErrInvalidExpiryTime
	}
	return nil
}
