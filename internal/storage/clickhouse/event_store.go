package clickhouse

import (
	"context"
	"errors"
	"fmt"
	"time"

	"otc-swaps/internal/domain"
	"otc-swaps/internal/observability"
	"otc-swaps/internal/storage"
)

// EventStore mirrors the audit log into ClickHouse for analytics.
// It is fed after commit and is never the source of truth.
type EventStore struct {
	conn *Conn
}

// NewEventStore creates a new EventStore.
func NewEventStore(conn *Conn) *EventStore {
	return &EventStore{conn: conn}
}

// Compile-time interface check.
var _ storage.EventStore = (*EventStore)(nil)

// Notify mirrors one committed event. Replays of an already mirrored event are ignored.
func (s *EventStore) Notify(ctx context.Context, e *domain.Event) error {
	err := s.InsertBulk(ctx, []*domain.Event{e})
	if errors.Is(err, storage.ErrDuplicateKey) {
		return nil
	}
	return err
}

// InsertBulk adds multiple events. Fails entire batch on any duplicate id.
func (s *EventStore) InsertBulk(ctx context.Context, events []*domain.Event) error {
	if len(events) == 0 {
		return nil
	}
	start := time.Now()

	seen := make(map[string]struct{}, len(events))
	for _, e := range events {
		if e == nil || e.ID == "" {
			return storage.ErrInvalidInput
		}
		if _, exists := seen[e.ID]; exists {
			return storage.ErrDuplicateKey
		}
		seen[e.ID] = struct{}{}
	}

	for _, e := range events {
		exists, err := s.exists(ctx, e.ID)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if exists {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO swap_events (
			id, event_type, swap_id, seller, token_mint, buyer,
			amount, payment, refund, sold, expiry, whitelist, occurred_at
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, e := range events {
		r := toRow(e)
		err = batch.Append(
			r.id, r.eventType, r.swapID, r.seller, r.tokenMint, r.buyer,
			r.amount, r.payment, r.refund, r.sold, r.expiry, r.whitelist, r.occurredAt,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	err = batch.Send()
	observability.RecordDBQuery("clickhouse", "insert_events", time.Since(start).Seconds(), err)
	if err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

const eventColumns = `
	id, event_type, swap_id, seller, token_mint, buyer,
	amount, payment, refund, sold, expiry, whitelist, occurred_at
`

// GetBySwapID retrieves all events of a swap, ordered by occurred_at ASC.
func (s *EventStore) GetBySwapID(ctx context.Context, swapID domain.Identity) ([]*domain.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM swap_events FINAL WHERE swap_id = ? ORDER BY occurred_at ASC, id ASC`

	rows, err := s.conn.Query(ctx, query, swapID.String())
	if err != nil {
		return nil, fmt.Errorf("query by swap id: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// GetByTimeRange retrieves events within [start, end] (inclusive).
func (s *EventStore) GetByTimeRange(ctx context.Context, start, end int64) ([]*domain.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM swap_events FINAL WHERE occurred_at >= ? AND occurred_at <= ? ORDER BY occurred_at ASC, id ASC`

	rows, err := s.conn.Query(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("query by time range: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// exists checks if an event with the given id exists.
func (s *EventStore) exists(ctx context.Context, id string) (bool, error) {
	var count uint64
	err := s.conn.QueryRow(ctx, `SELECT count(*) FROM swap_events WHERE id = ?`, id).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// eventRow is the flat column form; absent optional fields are stored as zero values.
type eventRow struct {
	id, eventType, swapID, seller, tokenMint, buyer string
	amount, payment, refund, sold                    uint64
	expiry                                           int64
	whitelist                                        []string
	occurredAt                                       int64
}

func toRow(e *domain.Event) eventRow {
	r := eventRow{
		id:         e.ID,
		eventType:  string(e.Type),
		swapID:     e.SwapID.String(),
		seller:     e.Seller.String(),
		tokenMint:  e.TokenMint.String(),
		amount:     e.Amount,
		whitelist:  make([]string, 0, len(e.Whitelist)),
		occurredAt: e.OccurredAt,
	}
	if e.Buyer != nil {
		r.buyer = e.Buyer.String()
	}
	if e.Payment != nil {
		r.payment = *e.Payment
	}
	if e.Refund != nil {
		r.refund = *e.Refund
	}
	if e.Sold != nil {
		r.sold = *e.Sold
	}
	if e.ExpiryTimestamp != nil {
		r.expiry = *e.ExpiryTimestamp
	}
	for _, id := range e.Whitelist {
		r.whitelist = append(r.whitelist, id.String())
	}
	return r
}

// fromRow restores the optional fields that belong to the event type.
func fromRow(r eventRow) (*domain.Event, error) {
	e := &domain.Event{
		ID:         r.id,
		Type:       domain.EventType(r.eventType),
		Amount:     r.amount,
		OccurredAt: r.occurredAt,
	}

	var err error
	if e.SwapID, err = domain.ParseIdentity(r.swapID); err != nil {
		return nil, err
	}
	if e.Seller, err = domain.ParseIdentity(r.seller); err != nil {
		return nil, err
	}
	if e.TokenMint, err = domain.ParseIdentity(r.tokenMint); err != nil {
		return nil, err
	}

	switch e.Type {
	case domain.EventTypeCreated:
		expiry := r.expiry
		e.ExpiryTimestamp = &expiry
		for _, s := range r.whitelist {
			id, err := domain.ParseIdentity(s)
			if err != nil {
				return nil, err
			}
			e.Whitelist = append(e.Whitelist, id)
		}
	case domain.EventTypeExecuted:
		buyer, err := domain.ParseIdentity(r.buyer)
		if err != nil {
			return nil, err
		}
		payment := r.payment
		e.Buyer = &buyer
		e.Payment = &payment
	case domain.EventTypeCancelled:
		refund, sold := r.refund, r.sold
		e.Refund = &refund
		e.Sold = &sold
	}
	return e, nil
}

// scanEvents scans multiple rows.
func scanEvents(rows chRows) ([]*domain.Event, error) {
	var events []*domain.Event

	for rows.Next() {
		var r eventRow
		err := rows.Scan(
			&r.id, &r.eventType, &r.swapID, &r.seller, &r.tokenMint, &r.buyer,
			&r.amount, &r.payment, &r.refund, &r.sold, &r.expiry, &r.whitelist, &r.occurredAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}

		e, err := fromRow(r)
		if err != nil {
			return nil, fmt.Errorf("decode event %s: %w", r.id, err)
		}
		events = append(events, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}
