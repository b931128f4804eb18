// Package reporting summarizes the swap audit log as Markdown and CSV.
package reporting

import (
	"time"

	"github.com/shopspring/decimal"

	"otc-swaps/internal/domain"
)

// Report summarizes swap activity in a time window.
type Report struct {
	// Metadata
	GeneratedAt time.Time
	RangeStart  int64 // Unix seconds, inclusive
	RangeEnd    int64 // Unix seconds, inclusive

	Summary Summary

	// Per-swap rows (sorted by first event time, then swap id)
	Swaps []SwapRow

	// Event counts per type
	EventCounts map[domain.EventType]int
}

// Summary contains totals over every event in range.
type Summary struct {
	SwapsCreated    int
	SwapsFilled     int // fully sold
	SwapsCancelled  int
	Fills           int
	UniqueBuyers    int
	TokensEscrowed  uint64
	TokensSold      uint64
	TokensRefunded  uint64
	LamportsSettled uint64
}

// SwapRow aggregates the events of one swap.
type SwapRow struct {
	SwapID          domain.Identity
	Seller          domain.Identity
	TokenMint       domain.Identity
	Deposited       uint64 // from swap.created, zero if created before the window
	Sold            uint64
	Refunded        uint64
	Fills           int
	LamportsSettled uint64
	AvgPrice        decimal.Decimal // lamports per token over fills in range
	Status          string
	FirstEventAt    int64
	LastEventAt     int64
}
