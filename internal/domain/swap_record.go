package domain

// SwapStatus is the lifecycle state derived from IsActive and the fill counters.
type SwapStatus string

// Swap status constants
const (
	SwapStatusActive          SwapStatus = "active"
	SwapStatusPartiallyFilled SwapStatus = "partially_filled"
	SwapStatusFilled          SwapStatus = "filled"
	SwapStatusCancelled       SwapStatus = "cancelled"
)

// SwapRecord is the persisted state of one OTC swap.
// One record per (seller, token mint); keyed by the derived swap address.
// Corresponds to swaps table in PostgreSQL.
type SwapRecord struct {
	ID                 Identity  // derived address, seeds ["swap", seller, mint]
	Seller             Identity  // creator, sole cancel authority
	SellerTokenAccount Identity  // source of the deposit, destination of refunds
	TokenMint          Identity  // escrowed asset
	EscrowAccount      Identity  // token account owned by ID
	TotalAmount        uint64    // deposited at creation, immutable
	AmountRemaining    uint64    // unsold quantity, never increases
	PriceTotal         uint64    // settlement amount (lamports) for TotalAmount
	ExpiryTimestamp    int64     // unix seconds; fills rejected after this instant
	Whitelist          Whitelist // eligible buyers, fixed at creation
	RecipientHint      Identity  // informational, not enforced
	IsActive           bool      // false once cancelled or fully filled
	EscrowBump         uint8     // bump seed of ID
	CreatedAt          int64     // unix seconds
	UpdatedAt          int64     // unix seconds
}

// AmountSold returns the quantity already filled.
func (r *SwapRecord) AmountSold() uint64 {
	return r.TotalAmount - r.AmountRemaining
}

// Status derives the lifecycle state.
func (r *SwapRecord) Status() SwapStatus {
	switch {
	case r.IsActive && r.AmountRemaining == r.TotalAmount:
		return SwapStatusActive
	case r.IsActive:
		return SwapStatusPartiallyFilled
	case r.AmountRemaining == 0:
		return SwapStatusFilled
	default:
		return SwapStatusCancelled
	}
}

// Clone returns a deep copy.
func (r *SwapRecord) Clone() *SwapRecord {
	if r == nil {
		return nil
	}
	c := *r
	c.Whitelist = Whitelist{members: r.Whitelist.Members()}
	return &c
}
