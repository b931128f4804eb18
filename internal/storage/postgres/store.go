package postgres

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"otc-swaps/internal/domain"
	"otc-swaps/internal/observability"
	"otc-swaps/internal/storage"
)

// maxRetries bounds re-execution after deadlock or serialization aborts.
const maxRetries = 5

// Store implements storage.Store using PostgreSQL.
// Each unit of work is one READ COMMITTED transaction that first takes a
// transaction-scoped advisory lock on the swap id, then row locks the ledger rows it touches.
type Store struct {
	pool *Pool
}

// NewStore creates a new Store.
func NewStore(pool *Pool) *Store {
	return &Store{pool: pool}
}

// Compile-time interface check.
var _ storage.Store = (*Store)(nil)

// Execute runs fn in a transaction and commits it iff fn returns nil.
func (s *Store) Execute(ctx context.Context, swapID domain.Identity, fn func(ctx context.Context, tx storage.Tx) error) error {
	start := time.Now()

	var err error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		err = s.executeOnce(ctx, swapID, fn)
		if !isRetryableError(err) {
			break
		}
	}

	observability.RecordDBQuery("postgres", "execute", time.Since(start).Seconds(), err)
	return err
}

func (s *Store) executeOnce(ctx context.Context, swapID domain.Identity, fn func(ctx context.Context, tx storage.Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, lockKey(swapID)); err != nil {
		return fmt.Errorf("lock swap %s: %w", swapID, err)
	}

	if err := fn(ctx, &pgTx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// lockKey folds a swap id into the advisory lock key space.
func lockKey(id domain.Identity) int64 {
	return int64(binary.BigEndian.Uint64(id[:8]))
}

const swapColumns = `
	id, seller, seller_token_account, token_mint, escrow_account,
	total_amount::text, amount_remaining::text, price_total::text,
	expiry_timestamp, whitelist, recipient_hint, is_active, escrow_bump,
	created_at, updated_at
`

// GetSwap retrieves a record by id. Returns ErrNotFound if not exists.
func (s *Store) GetSwap(ctx context.Context, id domain.Identity) (*domain.SwapRecord, error) {
	query := `SELECT ` + swapColumns + ` FROM swaps WHERE id = $1`

	r, err := scanSwap(s.pool.QueryRow(ctx, query, id.String()))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get swap: %w", err)
	}
	return r, nil
}

// ListSwapsBySeller retrieves all records of a seller, ordered by created_at ASC.
func (s *Store) ListSwapsBySeller(ctx context.Context, seller domain.Identity) ([]*domain.SwapRecord, error) {
	query := `SELECT ` + swapColumns + ` FROM swaps WHERE seller = $1 ORDER BY created_at ASC, id ASC`
	return s.querySwaps(ctx, query, seller.String())
}

// ListActiveSwaps retrieves all active records, ordered by created_at ASC.
func (s *Store) ListActiveSwaps(ctx context.Context) ([]*domain.SwapRecord, error) {
	query := `SELECT ` + swapColumns + ` FROM swaps WHERE is_active ORDER BY created_at ASC, id ASC`
	return s.querySwaps(ctx, query)
}

func (s *Store) querySwaps(ctx context.Context, query string, args ...any) ([]*domain.SwapRecord, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query swaps: %w", err)
	}
	defer rows.Close()

	var result []*domain.SwapRecord
	for rows.Next() {
		r, err := scanSwap(rows)
		if err != nil {
			return nil, fmt.Errorf("scan swap: %w", err)
		}
		result = append(result, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate swaps: %w", err)
	}
	return result, nil
}

// GetBySwapID retrieves all events of a swap in append order.
func (s *Store) GetBySwapID(ctx context.Context, swapID domain.Identity) ([]*domain.Event, error) {
	query := `SELECT payload FROM swap_events WHERE swap_id = $1 ORDER BY seq ASC`
	return queryEvents(ctx, s.pool, query, swapID.String())
}

// GetByTimeRange retrieves events within [start, end] (inclusive) in append order.
func (s *Store) GetByTimeRange(ctx context.Context, start, end int64) ([]*domain.Event, error) {
	query := `SELECT payload FROM swap_events WHERE occurred_at >= $1 AND occurred_at <= $2 ORDER BY seq ASC`
	return queryEvents(ctx, s.pool, query, start, end)
}

// GetTokenAccount retrieves a token account. Returns ErrNotFound if not exists.
func (s *Store) GetTokenAccount(ctx context.Context, addr domain.Identity) (*domain.TokenAccount, error) {
	query := `SELECT address, mint, owner, amount::text, frozen FROM token_accounts WHERE address = $1`

	acct, err := scanTokenAccount(s.pool.QueryRow(ctx, query, addr.String()))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get token account: %w", err)
	}
	return acct, nil
}

// GetNativeBalance returns the settlement balance in lamports; zero if unknown.
func (s *Store) GetNativeBalance(ctx context.Context, addr domain.Identity) (uint64, error) {
	return nativeBalance(ctx, s.pool, addr, false)
}

// PutTokenAccount creates or replaces a token account.
func (s *Store) PutTokenAccount(ctx context.Context, acct *domain.TokenAccount) error {
	if acct == nil || acct.Address.IsZero() || acct.Mint.IsZero() || acct.Owner.IsZero() {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO token_accounts (address, mint, owner, amount, frozen)
		VALUES ($1, $2, $3, $4::numeric, $5)
		ON CONFLICT (address) DO UPDATE
		SET mint = EXCLUDED.mint, owner = EXCLUDED.owner, amount = EXCLUDED.amount, frozen = EXCLUDED.frozen
	`
	_, err := s.pool.Exec(ctx, query, acct.Address.String(), acct.Mint.String(), acct.Owner.String(), u64(acct.Amount), acct.Frozen)
	if err != nil {
		return fmt.Errorf("put token account: %w", err)
	}
	return nil
}

// SetNativeBalance sets the settlement balance of addr.
func (s *Store) SetNativeBalance(ctx context.Context, addr domain.Identity, lamports uint64) error {
	if addr.IsZero() {
		return storage.ErrInvalidInput
	}
	return setNativeBalance(ctx, s.pool, addr, lamports)
}

func scanSwap(row pgx.Row) (*domain.SwapRecord, error) {
	var (
		id, seller, sellerAcct, mint, escrowAcct string
		total, remaining, price                  string
		whitelist                                []string
		hint                                     string
		bump                                     int16
		r                                        domain.SwapRecord
	)

	err := row.Scan(
		&id, &seller, &sellerAcct, &mint, &escrowAcct,
		&total, &remaining, &price,
		&r.ExpiryTimestamp, &whitelist, &hint, &r.IsActive, &bump,
		&r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	for _, f := range []struct {
		dst *domain.Identity
		src string
	}{
		{&r.ID, id}, {&r.Seller, seller}, {&r.SellerTokenAccount, sellerAcct},
		{&r.TokenMint, mint}, {&r.EscrowAccount, escrowAcct},
	} {
		if *f.dst, err = domain.ParseIdentity(f.src); err != nil {
			return nil, err
		}
	}
	if r.RecipientHint, err = parseOptionalIdentity(hint); err != nil {
		return nil, err
	}
	if r.TotalAmount, err = parseU64(total); err != nil {
		return nil, err
	}
	if r.AmountRemaining, err = parseU64(remaining); err != nil {
		return nil, err
	}
	if r.PriceTotal, err = parseU64(price); err != nil {
		return nil, err
	}

	members, err := parseIdentities(whitelist)
	if err != nil {
		return nil, err
	}
	if r.Whitelist, err = domain.NewWhitelist(members...); err != nil {
		return nil, err
	}
	r.EscrowBump = uint8(bump)

	return &r, nil
}

func scanTokenAccount(row pgx.Row) (*domain.TokenAccount, error) {
	var addr, mint, owner, amount string
	var acct domain.TokenAccount

	if err := row.Scan(&addr, &mint, &owner, &amount, &acct.Frozen); err != nil {
		return nil, err
	}

	var err error
	if acct.Address, err = domain.ParseIdentity(addr); err != nil {
		return nil, err
	}
	if acct.Mint, err = domain.ParseIdentity(mint); err != nil {
		return nil, err
	}
	if acct.Owner, err = domain.ParseIdentity(owner); err != nil {
		return nil, err
	}
	if acct.Amount, err = parseU64(amount); err != nil {
		return nil, err
	}
	return &acct, nil
}

func queryEvents(ctx context.Context, q querier, query string, args ...any) ([]*domain.Event, error) {
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var result []*domain.Event
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		var e domain.Event
		if err := json.Unmarshal(payload, &e); err != nil {
			return nil, fmt.Errorf("decode event: %w", err)
		}
		result = append(result, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return result, nil
}

// nativeBalance reads a settlement balance, optionally locking the row.
func nativeBalance(ctx context.Context, q querier, addr domain.Identity, forUpdate bool) (uint64, error) {
	query := `SELECT lamports::text FROM native_balances WHERE address = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	var lamports string
	if err := q.QueryRow(ctx, query, addr.String()).Scan(&lamports); err != nil {
		if isNotFoundError(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("get native balance: %w", err)
	}
	return parseU64(lamports)
}

func setNativeBalance(ctx context.Context, q querier, addr domain.Identity, lamports uint64) error {
	query := `
		INSERT INTO native_balances (address, lamports) VALUES ($1, $2::numeric)
		ON CONFLICT (address) DO UPDATE SET lamports = EXCLUDED.lamports
	`
	if _, err := q.Exec(ctx, query, addr.String(), u64(lamports)); err != nil {
		return fmt.Errorf("set native balance: %w", err)
	}
	return nil
}
