package domain

// EventType identifies a lifecycle transition.
type EventType string

// Event type constants
const (
	EventTypeCreated   EventType = "swap.created"
	EventTypeExecuted  EventType = "swap.executed"
	EventTypeCancelled EventType = "swap.cancelled"
)

// Event is an immutable audit record appended after a successful transition.
// Schema is consumed by indexers and UIs; fields are only ever added.
// Corresponds to swap_events table in PostgreSQL and ClickHouse.
type Event struct {
	ID         string    `json:"id"`          // uuid
	Type       EventType `json:"type"`        // swap.created | swap.executed | swap.cancelled
	SwapID     Identity  `json:"swap_id"`     // derived swap address
	Seller     Identity  `json:"seller"`      // swap creator
	TokenMint  Identity  `json:"token_mint"`  // escrowed asset
	Amount     uint64    `json:"amount"`      // created: deposit, executed: quantity, cancelled: total amount
	OccurredAt int64     `json:"occurred_at"` // unix seconds

	// swap.created
	ExpiryTimestamp *int64     `json:"expiry_timestamp,omitempty"`
	Whitelist       []Identity `json:"whitelist,omitempty"`

	// swap.executed
	Buyer   *Identity `json:"buyer,omitempty"`
	Payment *uint64   `json:"payment,omitempty"`

	// swap.cancelled
	Refund *uint64 `json:"refund,omitempty"`
	Sold   *uint64 `json:"sold,omitempty"`
}

// FillReceipt is returned to the buyer after a successful fill.
type FillReceipt struct {
	SwapID          Identity `json:"swap_id"`
	QuantityFilled  uint64   `json:"quantity_filled"`
	PaymentCharged  uint64   `json:"payment_charged"`
	AmountRemaining uint64   `json:"amount_remaining"`
	IsActive        bool     `json:"is_active"`
}

// CancelReceipt is returned to the seller after a successful cancel.
type CancelReceipt struct {
	SwapID         Identity `json:"swap_id"`
	AmountRefunded uint64   `json:"amount_refunded"`
	AmountSold     uint64   `json:"amount_sold"`
}
