// Package escrow implements the swap lifecycle: create, fill and cancel.
//
// Every operation runs as one unit of work on storage.Runtime keyed by the swap id,
// so operations on the same swap are serialized and either fully apply or not at all.
// The escrow token account is owned by the swap id itself; the engine passes that id
// as transfer authority, which is what lets many buyers withdraw without the seller.
package escrow

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/lightningnetwork/lnd/clock"

	"otc-swaps/internal/domain"
	"otc-swaps/internal/idhash"
	"otc-swaps/internal/observability"
	"otc-swaps/internal/pricing"
	"otc-swaps/internal/storage"
)

// Options configures an Engine.
type Options struct {
	// ProgramID namespaces derived swap addresses. Defaults to idhash.OTCProgramAddress.
	ProgramID domain.Identity

	// Runtime executes units of work. Required.
	Runtime storage.Runtime

	// Clock supplies the current time. Defaults to the system clock.
	Clock clock.Clock

	// Notifier receives committed events. Optional.
	Notifier Notifier

	// Logger for lifecycle logging. Defaults to stderr with an [escrow] prefix.
	Logger *log.Logger

	// NewEventID generates audit event ids. Defaults to random uuids.
	NewEventID func() string
}

// Engine executes lifecycle operations.
type Engine struct {
	programID  domain.Identity
	runtime    storage.Runtime
	clock      clock.Clock
	notifier   Notifier
	logger     *log.Logger
	newEventID func() string
}

// NewEngine creates an engine.
func NewEngine(opts Options) (*Engine, error) {
	if opts.Runtime == nil {
		return nil, errors.New("escrow: runtime is required")
	}
	if opts.ProgramID.IsZero() {
		opts.ProgramID = domain.MustParseIdentity(idhash.OTCProgramAddress)
	}
	if opts.Clock == nil {
		opts.Clock = clock.NewDefaultClock()
	}
	if opts.Logger == nil {
		opts.Logger = log.New(os.Stderr, "[escrow] ", log.LstdFlags)
	}
	if opts.NewEventID == nil {
		opts.NewEventID = func() string { return uuid.NewString() }
	}

	return &Engine{
		programID:  opts.ProgramID,
		runtime:    opts.Runtime,
		clock:      opts.Clock,
		notifier:   opts.Notifier,
		logger:     opts.Logger,
		newEventID: opts.NewEventID,
	}, nil
}

// ProgramID returns the program id swap addresses are derived under.
func (e *Engine) ProgramID() domain.Identity {
	return e.programID
}

// SwapID derives the record id of (seller, mint).
func (e *Engine) SwapID(seller, mint domain.Identity) (domain.Identity, uint8, error) {
	return idhash.SwapAddress(e.programID, seller, mint)
}

// CreateParams are the inputs of Create.
type CreateParams struct {
	Seller             domain.Identity
	SellerTokenAccount domain.Identity
	TokenMint          domain.Identity
	Amount             uint64
	ExpiryTimestamp    int64
	Whitelist          []domain.Identity
	RecipientHint      domain.Identity
	PriceTotal         uint64
}

// FillParams are the inputs of Fill.
// A zero Destination resolves to the buyer's associated token account.
type FillParams struct {
	SwapID      domain.Identity
	Buyer       domain.Identity
	Destination domain.Identity
	Quantity    uint64
}

// Create escrows p.Amount tokens and opens a swap.
func (e *Engine) Create(ctx context.Context, p CreateParams) (rec *domain.SwapRecord, err error) {
	start := time.Now()
	defer func() { e.record("create", start, err) }()

	id, bump, err := e.SwapID(p.Seller, p.TokenMint)
	if err != nil {
		return nil, fmt.Errorf("derive swap address: %w", err)
	}
	escrowAccount, err := idhash.AssociatedTokenAddress(id, p.TokenMint)
	if err != nil {
		return nil, fmt.Errorf("derive escrow account: %w", err)
	}

	now := e.clock.Now().Unix()
	var events []*domain.Event

	err = e.runtime.Execute(ctx, id, func(ctx context.Context, tx storage.Tx) error {
		// The runtime may retry this closure; only the committed attempt's events survive.
		events, rec = events[:0], nil

		src, err := tx.TokenAccount(ctx, p.SellerTokenAccount)
		if errors.Is(err, storage.ErrNotFound) {
			return newError(KindInvalidTokenMint, fmt.Errorf("source account %s: %w", p.SellerTokenAccount, err))
		}
		if err != nil {
			return err
		}
		if err := RequireTokenAccountUsable(src, p.TokenMint); err != nil {
			return err
		}
		if src.Owner != p.Seller {
			return ErrInvalidTokenOwner
		}

		if p.Amount == 0 {
			return ErrInvalidAmount
		}
		wl, wlErr := domain.NewWhitelist(p.Whitelist...)
		if wlErr == nil && wl.Len() == 0 {
			return ErrEmptyWhitelist
		}
		if err := ValidateExpiry(now, p.ExpiryTimestamp); err != nil {
			return err
		}
		if wlErr != nil {
			return newError(KindInvalidWhitelist, wlErr)
		}
		if src.Amount < p.Amount {
			return ErrInsufficientBalance
		}

		if _, err := tx.LoadSwap(ctx, id); err == nil {
			return ErrSwapAlreadyExists
		} else if !errors.Is(err, storage.ErrNotFound) {
			return err
		}

		if _, err := tx.OpenTokenAccount(ctx, escrowAccount, p.TokenMint, id); err != nil {
			return fmt.Errorf("open escrow account: %w", err)
		}
		if err := tx.TransferTokens(ctx, p.SellerTokenAccount, escrowAccount, p.Seller, p.Amount); err != nil {
			return fromLedger(err)
		}

		rec = &domain.SwapRecord{
			ID:                 id,
			Seller:             p.Seller,
			SellerTokenAccount: p.SellerTokenAccount,
			TokenMint:          p.TokenMint,
			EscrowAccount:      escrowAccount,
			TotalAmount:        p.Amount,
			AmountRemaining:    p.Amount,
			PriceTotal:         p.PriceTotal,
			ExpiryTimestamp:    p.ExpiryTimestamp,
			Whitelist:          wl,
			RecipientHint:      p.RecipientHint,
			IsActive:           true,
			EscrowBump:         bump,
			CreatedAt:          now,
			UpdatedAt:          now,
		}
		if err := tx.CreateSwap(ctx, rec); err != nil {
			if errors.Is(err, storage.ErrDuplicateKey) {
				return ErrSwapAlreadyExists
			}
			return err
		}

		expiry := p.ExpiryTimestamp
		ev := e.newEvent(domain.EventTypeCreated, rec, p.Amount, now)
		ev.ExpiryTimestamp = &expiry
		ev.Whitelist = wl.Members()
		if err := tx.AppendEvent(ctx, ev); err != nil {
			return err
		}
		events = append(events, ev)
		return nil
	})
	if err != nil {
		return nil, err
	}

	observability.RecordCreated(rec.TotalAmount)
	e.logger.Printf("created swap %s seller=%s mint=%s amount=%d price=%d expiry=%d",
		rec.ID, rec.Seller, rec.TokenMint, rec.TotalAmount, rec.PriceTotal, rec.ExpiryTimestamp)
	e.publish(ctx, events)

	return rec, nil
}

// Fill buys p.Quantity tokens from a swap at its fixed ratio.
func (e *Engine) Fill(ctx context.Context, p FillParams) (receipt *domain.FillReceipt, err error) {
	start := time.Now()
	defer func() { e.record("fill", start, err) }()

	now := e.clock.Now().Unix()
	var (
		events  []*domain.Event
		payment uint64
	)

	err = e.runtime.Execute(ctx, p.SwapID, func(ctx context.Context, tx storage.Tx) error {
		events, payment, receipt = events[:0], 0, nil

		rec, err := tx.LoadSwap(ctx, p.SwapID)
		if errors.Is(err, storage.ErrNotFound) {
			return ErrSwapNotFound
		}
		if err != nil {
			return err
		}

		if err := RequireActive(rec); err != nil {
			return err
		}
		if err := RequireNotExpired(rec, now); err != nil {
			return err
		}
		if err := RequireWhitelisted(rec, p.Buyer); err != nil {
			return err
		}

		dest := p.Destination
		if dest.IsZero() {
			dest, err = idhash.AssociatedTokenAddress(p.Buyer, rec.TokenMint)
			if err != nil {
				return fmt.Errorf("derive buyer token account: %w", err)
			}
		}
		destAcct, err := tx.TokenAccount(ctx, dest)
		if errors.Is(err, storage.ErrNotFound) {
			return newError(KindInvalidRecipientAddress, fmt.Errorf("destination %s: %w", dest, err))
		}
		if err != nil {
			return err
		}
		if err := RequireTokenAccountUsable(destAcct, rec.TokenMint); err != nil {
			return err
		}
		if err := RequireRecipientOwner(destAcct, p.Buyer); err != nil {
			return err
		}

		if p.Quantity == 0 || p.Quantity > rec.AmountRemaining {
			return ErrInvalidAmountToBuy
		}

		payment, err = pricing.RequiredPaymentFor(rec, p.Quantity)
		if err != nil {
			return fmt.Errorf("price fill: %w", err)
		}
		balance, err := tx.NativeBalance(ctx, p.Buyer)
		if err != nil {
			return err
		}
		if balance < payment {
			return ErrInsufficientBalance
		}

		if err := tx.DebitNative(ctx, p.Buyer, payment); err != nil {
			return fromLedger(err)
		}
		if err := tx.CreditNative(ctx, rec.Seller, payment); err != nil {
			return fromLedger(err)
		}
		if err := tx.TransferTokens(ctx, rec.EscrowAccount, dest, rec.ID, p.Quantity); err != nil {
			return fromLedger(err)
		}

		rec.AmountRemaining -= p.Quantity
		if rec.AmountRemaining == 0 {
			rec.IsActive = false
		}
		rec.UpdatedAt = now
		if err := tx.SaveSwap(ctx, rec); err != nil {
			return err
		}

		buyer := p.Buyer
		paid := payment
		ev := e.newEvent(domain.EventTypeExecuted, rec, p.Quantity, now)
		ev.Buyer = &buyer
		ev.Payment = &paid
		if err := tx.AppendEvent(ctx, ev); err != nil {
			return err
		}
		events = append(events, ev)

		receipt = &domain.FillReceipt{
			SwapID:          rec.ID,
			QuantityFilled:  p.Quantity,
			PaymentCharged:  payment,
			AmountRemaining: rec.AmountRemaining,
			IsActive:        rec.IsActive,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	observability.RecordFilled(receipt.QuantityFilled, receipt.PaymentCharged, !receipt.IsActive)
	e.logger.Printf("filled swap %s buyer=%s quantity=%d payment=%d remaining=%d",
		receipt.SwapID, p.Buyer, receipt.QuantityFilled, receipt.PaymentCharged, receipt.AmountRemaining)
	e.publish(ctx, events)

	return receipt, nil
}

// Cancel closes an active swap and refunds the unsold remainder to the seller.
// Expiry does not gate cancellation.
func (e *Engine) Cancel(ctx context.Context, swapID, seller domain.Identity) (receipt *domain.CancelReceipt, err error) {
	start := time.Now()
	defer func() { e.record("cancel", start, err) }()

	now := e.clock.Now().Unix()
	var events []*domain.Event

	err = e.runtime.Execute(ctx, swapID, func(ctx context.Context, tx storage.Tx) error {
		events, receipt = events[:0], nil

		rec, err := tx.LoadSwap(ctx, swapID)
		if errors.Is(err, storage.ErrNotFound) {
			return ErrSwapNotFound
		}
		if err != nil {
			return err
		}

		if err := RequireActive(rec); err != nil {
			return err
		}
		if err := RequireOwner(rec, seller); err != nil {
			return err
		}

		refund := rec.AmountRemaining
		if refund > 0 {
			if err := tx.TransferTokens(ctx, rec.EscrowAccount, rec.SellerTokenAccount, rec.ID, refund); err != nil {
				return fromLedger(err)
			}
		}

		rec.IsActive = false
		rec.UpdatedAt = now
		if err := tx.SaveSwap(ctx, rec); err != nil {
			return err
		}

		sold := rec.AmountSold()
		ev := e.newEvent(domain.EventTypeCancelled, rec, rec.TotalAmount, now)
		ev.Refund = &refund
		ev.Sold = &sold
		if err := tx.AppendEvent(ctx, ev); err != nil {
			return err
		}
		events = append(events, ev)

		receipt = &domain.CancelReceipt{
			SwapID:         rec.ID,
			AmountRefunded: refund,
			AmountSold:     sold,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	observability.RecordCancelled(receipt.AmountRefunded)
	e.logger.Printf("cancelled swap %s refund=%d sold=%d", receipt.SwapID, receipt.AmountRefunded, receipt.AmountSold)
	e.publish(ctx, events)

	return receipt, nil
}

func (e *Engine) newEvent(t domain.EventType, rec *domain.SwapRecord, amount uint64, now int64) *domain.Event {
	return &domain.Event{
		ID:         e.newEventID(),
		Type:       t,
		SwapID:     rec.ID,
		Seller:     rec.Seller,
		TokenMint:  rec.TokenMint,
		Amount:     amount,
		OccurredAt: now,
	}
}

func (e *Engine) record(op string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = KindOf(err).String()
	}
	observability.RecordOperation(op, outcome, time.Since(start).Seconds())
}
