package escrow

import (
	"context"
	"errors"
	"log"

	"otc-swaps/internal/domain"
	"otc-swaps/internal/observability"
	"otc-swaps/internal/pricing"
)

// Notifier receives audit events after the transition that produced them committed.
// Implementations must not block for long; errors are logged, never surfaced to the caller.
type Notifier interface {
	Notify(ctx context.Context, e *domain.Event) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, e *domain.Event) error

// Notify calls f.
func (f NotifierFunc) Notify(ctx context.Context, e *domain.Event) error {
	return f(ctx, e)
}

// Notifiers fans an event out to every sink. All sinks are called; errors are joined.
type Notifiers []Notifier

// Notify delivers e to every sink.
func (ns Notifiers) Notify(ctx context.Context, e *domain.Event) error {
	var errs []error
	for _, n := range ns {
		if n == nil {
			continue
		}
		if err := n.Notify(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// NoopNotifier drops every event.
type NoopNotifier struct{}

// Notify does nothing.
func (NoopNotifier) Notify(context.Context, *domain.Event) error { return nil }

// LogNotifier writes one line per event.
type LogNotifier struct {
	Logger *log.Logger
}

// Notify logs e.
func (n LogNotifier) Notify(_ context.Context, e *domain.Event) error {
	logger := n.Logger
	if logger == nil {
		logger = log.Default()
	}

	switch e.Type {
	case domain.EventTypeCreated:
		logger.Printf("event %s swap=%s seller=%s mint=%s amount=%d whitelist=%d",
			e.Type, e.SwapID, e.Seller, e.TokenMint, e.Amount, len(e.Whitelist))
	case domain.EventTypeExecuted:
		var buyer domain.Identity
		var payment uint64
		if e.Buyer != nil {
			buyer = *e.Buyer
		}
		if e.Payment != nil {
			payment = *e.Payment
		}
		logger.Printf("event %s swap=%s buyer=%s quantity=%d payment=%s SOL",
			e.Type, e.SwapID, buyer, e.Amount, pricing.FormatSOL(payment))
	case domain.EventTypeCancelled:
		var refund, sold uint64
		if e.Refund != nil {
			refund = *e.Refund
		}
		if e.Sold != nil {
			sold = *e.Sold
		}
		logger.Printf("event %s swap=%s seller=%s refund=%d sold=%d", e.Type, e.SwapID, e.Seller, refund, sold)
	default:
		logger.Printf("event %s swap=%s", e.Type, e.SwapID)
	}
	return nil
}

// publish delivers committed events; failures are logged and counted.
func (e *Engine) publish(ctx context.Context, events []*domain.Event) {
	for _, ev := range events {
		observability.RecordEventPublished(string(ev.Type))
		if e.notifier == nil {
			continue
		}
		if err := e.notifier.Notify(ctx, ev); err != nil {
			observability.RecordNotifyError("engine")
			e.logger.Printf("notify %s for swap %s: %v", ev.Type, ev.SwapID, err)
		}
	}
}
