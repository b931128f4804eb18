package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/jackc/pgx/v5"

	"otc-swaps/internal/domain"
	"otc-swaps/internal/storage"
)

// pgTx implements storage.Tx on a pgx transaction.
type pgTx struct {
	tx pgx.Tx
}

var _ storage.Tx = (*pgTx)(nil)

func (t *pgTx) LoadSwap(ctx context.Context, id domain.Identity) (*domain.SwapRecord, error) {
	query := `SELECT ` + swapColumns + ` FROM swaps WHERE id = $1 FOR UPDATE`

	r, err := scanSwap(t.tx.QueryRow(ctx, query, id.String()))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("load swap: %w", err)
	}
	return r, nil
}

func (t *pgTx) CreateSwap(ctx context.Context, r *domain.SwapRecord) error {
	if r == nil || r.ID.IsZero() {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO swaps (
			id, seller, seller_token_account, token_mint, escrow_account,
			total_amount, amount_remaining, price_total,
			expiry_timestamp, whitelist, recipient_hint, is_active, escrow_bump,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6::numeric, $7::numeric, $8::numeric, $9, $10, $11, $12, $13, $14, $15)
	`

	_, err := t.tx.Exec(ctx, query,
		r.ID.String(),
		r.Seller.String(),
		r.SellerTokenAccount.String(),
		r.TokenMint.String(),
		r.EscrowAccount.String(),
		u64(r.TotalAmount),
		u64(r.AmountRemaining),
		u64(r.PriceTotal),
		r.ExpiryTimestamp,
		identityStrings(r.Whitelist.Members()),
		optionalIdentityString(r.RecipientHint),
		r.IsActive,
		int16(r.EscrowBump),
		r.CreatedAt,
		r.UpdatedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert swap: %w", err)
	}
	return nil
}

// SaveSwap persists the mutable fields. Identity, amounts at creation and whitelist never change.
func (t *pgTx) SaveSwap(ctx context.Context, r *domain.SwapRecord) error {
	if r == nil {
		return storage.ErrInvalidInput
	}

	query := `
		UPDATE swaps
		SET amount_remaining = $2::numeric, is_active = $3, updated_at = $4
		WHERE id = $1
	`
	tag, err := t.tx.Exec(ctx, query, r.ID.String(), u64(r.AmountRemaining), r.IsActive, r.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update swap: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (t *pgTx) TokenAccount(ctx context.Context, addr domain.Identity) (*domain.TokenAccount, error) {
	return t.lockAccount(ctx, addr)
}

func (t *pgTx) lockAccount(ctx context.Context, addr domain.Identity) (*domain.TokenAccount, error) {
	query := `SELECT address, mint, owner, amount::text, frozen FROM token_accounts WHERE address = $1 FOR UPDATE`

	acct, err := scanTokenAccount(t.tx.QueryRow(ctx, query, addr.String()))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("lock token account: %w", err)
	}
	return acct, nil
}

func (t *pgTx) OpenTokenAccount(ctx context.Context, addr, mint, owner domain.Identity) (*domain.TokenAccount, error) {
	if addr.IsZero() || mint.IsZero() || owner.IsZero() {
		return nil, storage.ErrInvalidInput
	}

	query := `
		INSERT INTO token_accounts (address, mint, owner, amount, frozen)
		VALUES ($1, $2, $3, 0, FALSE)
		ON CONFLICT (address) DO NOTHING
	`
	if _, err := t.tx.Exec(ctx, query, addr.String(), mint.String(), owner.String()); err != nil {
		return nil, fmt.Errorf("open token account: %w", err)
	}

	acct, err := t.lockAccount(ctx, addr)
	if err != nil {
		return nil, err
	}
	if acct.Mint != mint || acct.Owner != owner {
		return nil, storage.ErrDuplicateKey
	}
	return acct, nil
}

func (t *pgTx) TransferTokens(ctx context.Context, from, to, authority domain.Identity, amount uint64) error {
	// Lock both rows in address order so concurrent transfers cannot deadlock on each other.
	first, second := from, to
	if second.String() < first.String() {
		first, second = second, first
	}
	locked := make(map[domain.Identity]*domain.TokenAccount, 2)
	for _, addr := range []domain.Identity{first, second} {
		if _, ok := locked[addr]; ok {
			continue
		}
		acct, err := t.lockAccount(ctx, addr)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return fmt.Errorf("token account %s: %w", addr, err)
			}
			return err
		}
		locked[addr] = acct
	}

	src, dst := locked[from], locked[to]
	if src.Owner != authority {
		return storage.ErrUnauthorizedTransfer
	}
	if src.Mint != dst.Mint {
		return storage.ErrMintMismatch
	}
	if src.Frozen || dst.Frozen {
		return storage.ErrAccountFrozen
	}
	if src.Amount < amount {
		return storage.ErrInsufficientFunds
	}
	if from == to {
		return nil
	}
	if dst.Amount > math.MaxUint64-amount {
		return storage.ErrOverflow
	}

	query := `UPDATE token_accounts SET amount = $2::numeric WHERE address = $1`
	if _, err := t.tx.Exec(ctx, query, from.String(), u64(src.Amount-amount)); err != nil {
		return fmt.Errorf("debit token account: %w", err)
	}
	if _, err := t.tx.Exec(ctx, query, to.String(), u64(dst.Amount+amount)); err != nil {
		return fmt.Errorf("credit token account: %w", err)
	}
	return nil
}

func (t *pgTx) NativeBalance(ctx context.Context, addr domain.Identity) (uint64, error) {
	return nativeBalance(ctx, t.tx, addr, true)
}

// lockNative makes sure the balance row exists, then locks it.
// Without the row a concurrent credit to a fresh address could be lost.
func (t *pgTx) lockNative(ctx context.Context, addr domain.Identity) (uint64, error) {
	query := `INSERT INTO native_balances (address, lamports) VALUES ($1, 0) ON CONFLICT (address) DO NOTHING`
	if _, err := t.tx.Exec(ctx, query, addr.String()); err != nil {
		return 0, fmt.Errorf("open native balance: %w", err)
	}
	return nativeBalance(ctx, t.tx, addr, true)
}

func (t *pgTx) DebitNative(ctx context.Context, addr domain.Identity, amount uint64) error {
	bal, err := t.lockNative(ctx, addr)
	if err != nil {
		return err
	}
	if bal < amount {
		return storage.ErrInsufficientFunds
	}
	return setNativeBalance(ctx, t.tx, addr, bal-amount)
}

func (t *pgTx) CreditNative(ctx context.Context, addr domain.Identity, amount uint64) error {
	bal, err := t.lockNative(ctx, addr)
	if err != nil {
		return err
	}
	if bal > math.MaxUint64-amount {
		return storage.ErrOverflow
	}
	return setNativeBalance(ctx, t.tx, addr, bal+amount)
}

func (t *pgTx) AppendEvent(ctx context.Context, e *domain.Event) error {
	if e == nil || e.ID == "" {
		return storage.ErrInvalidInput
	}

	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	query := `
		INSERT INTO swap_events (id, event_type, swap_id, seller, token_mint, amount, occurred_at, payload)
		VALUES ($1, $2, $3, $4, $5, $6::numeric, $7, $8)
	`
	_, err = t.tx.Exec(ctx, query,
		e.ID,
		string(e.Type),
		e.SwapID.String(),
		e.Seller.String(),
		e.TokenMint.String(),
		u64(e.Amount),
		e.OccurredAt,
		string(payload),
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}
