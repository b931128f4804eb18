package api

import (
	"github.com/shopspring/decimal"

	"otc-swaps/internal/domain"
	"otc-swaps/internal/pricing"
)

// CreateSwapRequest is the body of POST /v1/swaps. The seller is the request signer.
type CreateSwapRequest struct {
	SellerTokenAccount domain.Identity   `json:"seller_token_account"`
	TokenMint          domain.Identity   `json:"token_mint"`
	Amount             uint64            `json:"amount"`
	ExpiryTimestamp    int64             `json:"expiry_timestamp"`
	Whitelist          []domain.Identity `json:"whitelist"`
	RecipientHint      *domain.Identity  `json:"recipient_hint,omitempty"`
	PriceTotal         uint64            `json:"price_total"`
}

// FillRequest is the body of POST /v1/swaps/{id}/fill. The buyer is the request signer.
// Destination defaults to the buyer's associated token account.
type FillRequest struct {
	Quantity    uint64           `json:"quantity"`
	Destination *domain.Identity `json:"destination,omitempty"`
}

// SwapResponse is the public view of a swap record.
type SwapResponse struct {
	ID                 domain.Identity   `json:"id"`
	Seller             domain.Identity   `json:"seller"`
	SellerTokenAccount domain.Identity   `json:"seller_token_account"`
	TokenMint          domain.Identity   `json:"token_mint"`
	EscrowAccount      domain.Identity   `json:"escrow_account"`
	TotalAmount        uint64            `json:"total_amount"`
	AmountRemaining    uint64            `json:"amount_remaining"`
	AmountSold         uint64            `json:"amount_sold"`
	PriceTotal         uint64            `json:"price_total"`
	UnitPrice          decimal.Decimal   `json:"unit_price"`
	ExpiryTimestamp    int64             `json:"expiry_timestamp"`
	Whitelist          []domain.Identity `json:"whitelist"`
	RecipientHint      *domain.Identity  `json:"recipient_hint,omitempty"`
	IsActive           bool              `json:"is_active"`
	Status             domain.SwapStatus `json:"status"`
	EscrowBump         uint8             `json:"escrow_bump"`
	CreatedAt          int64             `json:"created_at"`
	UpdatedAt          int64             `json:"updated_at"`
}

// NewSwapResponse renders r.
func NewSwapResponse(r *domain.SwapRecord) SwapResponse {
	resp := SwapResponse{
		ID:                 r.ID,
		Seller:             r.Seller,
		SellerTokenAccount: r.SellerTokenAccount,
		TokenMint:          r.TokenMint,
		EscrowAccount:      r.EscrowAccount,
		TotalAmount:        r.TotalAmount,
		AmountRemaining:    r.AmountRemaining,
		AmountSold:         r.AmountSold(),
		PriceTotal:         r.PriceTotal,
		UnitPrice:          pricing.UnitPrice(r.PriceTotal, r.TotalAmount, 9),
		ExpiryTimestamp:    r.ExpiryTimestamp,
		Whitelist:          r.Whitelist.Members(),
		IsActive:           r.IsActive,
		Status:             r.Status(),
		EscrowBump:         r.EscrowBump,
		CreatedAt:          r.CreatedAt,
		UpdatedAt:          r.UpdatedAt,
	}
	if !r.RecipientHint.IsZero() {
		hint := r.RecipientHint
		resp.RecipientHint = &hint
	}
	return resp
}

// SwapListResponse is the body of GET /v1/swaps.
type SwapListResponse struct {
	Swaps []SwapResponse `json:"swaps"`
}

// SwapAccountResponse is the body of GET /v1/swaps/{id}/account: the record in
// its fixed binary account layout.
type SwapAccountResponse struct {
	ID       domain.Identity `json:"id"`
	Version  byte            `json:"version"`
	Size     int             `json:"size"`
	Encoding string          `json:"encoding"`
	Data     string          `json:"data"`
}

// EventListResponse is the body of the audit endpoints.
type EventListResponse struct {
	Events []*domain.Event `json:"events"`
}

// DevTokenAccountRequest seeds a token account. Dev mode only.
type DevTokenAccountRequest struct {
	Address domain.Identity `json:"address"`
	Mint    domain.Identity `json:"mint"`
	Owner   domain.Identity `json:"owner"`
	Amount  uint64          `json:"amount"`
	Frozen  bool            `json:"frozen"`
}

// DevAirdropRequest sets a native balance. Dev mode only.
type DevAirdropRequest struct {
	Owner    domain.Identity `json:"owner"`
	Lamports uint64          `json:"lamports"`
}

// DevBalanceResponse reports ledger state after a dev write.
type DevBalanceResponse struct {
	Owner    domain.Identity `json:"owner"`
	Lamports uint64          `json:"lamports"`
}
