package reporting

import (
	"context"
	"fmt"
	"sort"
	"time"

	"otc-swaps/internal/domain"
	"otc-swaps/internal/pricing"
)

// EventSource reads audit events by time range.
type EventSource interface {
	GetByTimeRange(ctx context.Context, start, end int64) ([]*domain.Event, error)
}

// Generator produces reports from stored events.
type Generator struct {
	events EventSource
	now    func() time.Time // Injectable clock for deterministic output
}

// NewGenerator creates a new report generator.
func NewGenerator(events EventSource) *Generator {
	return &Generator{
		events: events,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Generate builds a report over events with occurred_at in [start, end].
func (g *Generator) Generate(ctx context.Context, start, end int64) (*Report, error) {
	if end < start {
		return nil, fmt.Errorf("invalid range: end %d before start %d", end, start)
	}

	events, err := g.events.GetByTimeRange(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("load events: %w", err)
	}

	r := &Report{
		GeneratedAt: g.now(),
		RangeStart:  start,
		RangeEnd:    end,
		EventCounts: make(map[domain.EventType]int),
	}

	rows := make(map[domain.Identity]*SwapRow)
	buyers := make(map[domain.Identity]struct{})

	for _, e := range events {
		r.EventCounts[e.Type]++

		row, ok := rows[e.SwapID]
		if !ok {
			row = &SwapRow{
				SwapID:       e.SwapID,
				Seller:       e.Seller,
				TokenMint:    e.TokenMint,
				Status:       string(domain.SwapStatusActive),
				FirstEventAt: e.OccurredAt,
			}
			rows[e.SwapID] = row
		}
		row.LastEventAt = e.OccurredAt

		switch e.Type {
		case domain.EventTypeCreated:
			r.Summary.SwapsCreated++
			r.Summary.TokensEscrowed += e.Amount
			row.Deposited = e.Amount

		case domain.EventTypeExecuted:
			r.Summary.Fills++
			r.Summary.TokensSold += e.Amount
			row.Fills++
			row.Sold += e.Amount
			if e.Payment != nil {
				r.Summary.LamportsSettled += *e.Payment
				row.LamportsSettled += *e.Payment
			}
			if e.Buyer != nil {
				buyers[*e.Buyer] = struct{}{}
			}
			row.Status = string(domain.SwapStatusPartiallyFilled)
			if row.Deposited > 0 && row.Sold == row.Deposited {
				row.Status = string(domain.SwapStatusFilled)
				r.Summary.SwapsFilled++
			}

		case domain.EventTypeCancelled:
			r.Summary.SwapsCancelled++
			row.Status = string(domain.SwapStatusCancelled)
			if e.Refund != nil {
				r.Summary.TokensRefunded += *e.Refund
				row.Refunded = *e.Refund
			}
		}
	}
	r.Summary.UniqueBuyers = len(buyers)

	r.Swaps = make([]SwapRow, 0, len(rows))
	for _, row := range rows {
		row.AvgPrice = pricing.UnitPrice(row.LamportsSettled, row.Sold, 9)
		r.Swaps = append(r.Swaps, *row)
	}
	sort.Slice(r.Swaps, func(i, j int) bool {
		if r.Swaps[i].FirstEventAt != r.Swaps[j].FirstEventAt {
			return r.Swaps[i].FirstEventAt < r.Swaps[j].FirstEventAt
		}
		return r.Swaps[i].SwapID.String() < r.Swaps[j].SwapID.String()
	})

	return r, nil
}
