package memory

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	"otc-swaps/internal/domain"
	"otc-swaps/internal/storage"
)

// optimisticAttempts bounds retries before a unit of work runs exclusively.
const optimisticAttempts = 3

// errConflict signals that a ledger entry changed between read and commit.
var errConflict = errors.New("memory: concurrent ledger update")

type accountEntry struct {
	acct    domain.TokenAccount
	version uint64
}

type nativeEntry struct {
	lamports uint64
	version  uint64
}

// Store is an in-memory implementation of storage.Store.
// Operations on one swap id are serialized by a per-id mutex; ledger entries
// shared between swaps are validated optimistically at commit.
type Store struct {
	mu       sync.RWMutex
	gate     sync.RWMutex // held shared by optimistic units, exclusively after repeated conflicts
	swaps    map[domain.Identity]*domain.SwapRecord
	accounts map[domain.Identity]*accountEntry
	native   map[domain.Identity]*nativeEntry
	events   []*domain.Event
	eventIDs map[string]struct{}

	locksMu sync.Mutex
	locks   map[domain.Identity]*sync.Mutex
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{
		swaps:    make(map[domain.Identity]*domain.SwapRecord),
		accounts: make(map[domain.Identity]*accountEntry),
		native:   make(map[domain.Identity]*nativeEntry),
		eventIDs: make(map[string]struct{}),
		locks:    make(map[domain.Identity]*sync.Mutex),
	}
}

var _ storage.Store = (*Store)(nil)

func (s *Store) swapLock(id domain.Identity) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()

	l, ok := s.locks[id]
	if !ok {
		l = &sync.Mutex{}
		s.locks[id] = l
	}
	return l
}

// Execute runs fn in a staged transaction and commits it iff fn returns nil.
func (s *Store) Execute(ctx context.Context, swapID domain.Identity, fn func(ctx context.Context, tx storage.Tx) error) error {
	l := s.swapLock(swapID)
	l.Lock()
	defer l.Unlock()

	for attempt := 0; attempt < optimisticAttempts; attempt++ {
		err := s.attempt(ctx, fn, false)
		if !errors.Is(err, errConflict) {
			return err
		}
	}

	// Nothing else commits while the gate is held exclusively, so this cannot conflict.
	return s.attempt(ctx, fn, true)
}

func (s *Store) attempt(ctx context.Context, fn func(ctx context.Context, tx storage.Tx) error, exclusive bool) error {
	if exclusive {
		s.gate.Lock()
		defer s.gate.Unlock()
	} else {
		s.gate.RLock()
		defer s.gate.RUnlock()
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	tx := newTx(s)
	if err := fn(ctx, tx); err != nil {
		return err
	}
	return s.commit(tx)
}

// commit applies staged writes after validating every ledger version seen by tx.
func (s *Store) commit(tx *memTx) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for addr, seen := range tx.accountVersions {
		if currentAccountVersion(s.accounts[addr]) != seen {
			return errConflict
		}
	}
	for addr, seen := range tx.nativeVersions {
		if currentNativeVersion(s.native[addr]) != seen {
			return errConflict
		}
	}
	for _, e := range tx.events {
		if _, exists := s.eventIDs[e.ID]; exists {
			return storage.ErrDuplicateKey
		}
	}

	for addr := range tx.dirtyAccounts {
		acct := tx.accounts[addr]
		s.accounts[addr] = &accountEntry{acct: *acct, version: tx.accountVersions[addr] + 1}
	}
	for addr := range tx.dirtyNative {
		s.native[addr] = &nativeEntry{lamports: tx.native[addr], version: tx.nativeVersions[addr] + 1}
	}
	for id, r := range tx.swaps {
		s.swaps[id] = r.Clone()
	}
	for _, e := range tx.events {
		s.eventIDs[e.ID] = struct{}{}
		s.events = append(s.events, cloneEvent(e))
	}

	return nil
}

func currentAccountVersion(e *accountEntry) uint64 {
	if e == nil {
		return 0
	}
	return e.version
}

func currentNativeVersion(e *nativeEntry) uint64 {
	if e == nil {
		return 0
	}
	return e.version
}

// GetSwap retrieves a record by id. Returns ErrNotFound if not exists.
func (s *Store) GetSwap(_ context.Context, id domain.Identity) (*domain.SwapRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.swaps[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return r.Clone(), nil
}

// ListSwapsBySeller retrieves all records of a seller, ordered by created_at ASC.
func (s *Store) ListSwapsBySeller(_ context.Context, seller domain.Identity) ([]*domain.SwapRecord, error) {
	return s.listSwaps(func(r *domain.SwapRecord) bool { return r.Seller == seller }), nil
}

// ListActiveSwaps retrieves all active records, ordered by created_at ASC.
func (s *Store) ListActiveSwaps(_ context.Context) ([]*domain.SwapRecord, error) {
	return s.listSwaps(func(r *domain.SwapRecord) bool { return r.IsActive }), nil
}

func (s *Store) listSwaps(match func(*domain.SwapRecord) bool) []*domain.SwapRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.SwapRecord
	for _, r := range s.swaps {
		if match(r) {
			result = append(result, r.Clone())
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt != result[j].CreatedAt {
			return result[i].CreatedAt < result[j].CreatedAt
		}
		return result[i].ID.String() < result[j].ID.String()
	})

	return result
}

// GetBySwapID retrieves all events of a swap in append order.
func (s *Store) GetBySwapID(_ context.Context, swapID domain.Identity) ([]*domain.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Event
	for _, e := range s.events {
		if e.SwapID == swapID {
			result = append(result, cloneEvent(e))
		}
	}
	return result, nil
}

// GetByTimeRange retrieves events within [start, end] (inclusive) in append order.
func (s *Store) GetByTimeRange(_ context.Context, start, end int64) ([]*domain.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Event
	for _, e := range s.events {
		if e.OccurredAt >= start && e.OccurredAt <= end {
			result = append(result, cloneEvent(e))
		}
	}
	return result, nil
}

// GetTokenAccount retrieves a token account. Returns ErrNotFound if not exists.
func (s *Store) GetTokenAccount(_ context.Context, addr domain.Identity) (*domain.TokenAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.accounts[addr]
	if !ok {
		return nil, storage.ErrNotFound
	}
	acct := e.acct
	return &acct, nil
}

// GetNativeBalance returns the settlement balance in lamports; zero if unknown.
func (s *Store) GetNativeBalance(_ context.Context, addr domain.Identity) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if e, ok := s.native[addr]; ok {
		return e.lamports, nil
	}
	return 0, nil
}

// PutTokenAccount creates or replaces a token account.
func (s *Store) PutTokenAccount(_ context.Context, acct *domain.TokenAccount) error {
	if acct == nil || acct.Address.IsZero() || acct.Mint.IsZero() || acct.Owner.IsZero() {
		return storage.ErrInvalidInput
	}

	s.gate.RLock()
	defer s.gate.RUnlock()
	s.mu.Lock()
	defer s.mu.Unlock()

	s.accounts[acct.Address] = &accountEntry{acct: *acct, version: currentAccountVersion(s.accounts[acct.Address]) + 1}
	return nil
}

// SetNativeBalance sets the settlement balance of addr.
func (s *Store) SetNativeBalance(_ context.Context, addr domain.Identity, lamports uint64) error {
	if addr.IsZero() {
		return storage.ErrInvalidInput
	}

	s.gate.RLock()
	defer s.gate.RUnlock()
	s.mu.Lock()
	defer s.mu.Unlock()

	s.native[addr] = &nativeEntry{lamports: lamports, version: currentNativeVersion(s.native[addr]) + 1}
	return nil
}

// memTx stages reads and writes of one unit of work.
type memTx struct {
	s *Store

	swaps map[domain.Identity]*domain.SwapRecord

	accounts        map[domain.Identity]*domain.TokenAccount // nil value = known absent
	accountVersions map[domain.Identity]uint64
	dirtyAccounts   map[domain.Identity]struct{}

	native         map[domain.Identity]uint64
	nativeVersions map[domain.Identity]uint64
	dirtyNative    map[domain.Identity]struct{}

	events []*domain.Event
}

func newTx(s *Store) *memTx {
	return &memTx{
		s:               s,
		swaps:           make(map[domain.Identity]*domain.SwapRecord),
		accounts:        make(map[domain.Identity]*domain.TokenAccount),
		accountVersions: make(map[domain.Identity]uint64),
		dirtyAccounts:   make(map[domain.Identity]struct{}),
		native:          make(map[domain.Identity]uint64),
		nativeVersions:  make(map[domain.Identity]uint64),
		dirtyNative:     make(map[domain.Identity]struct{}),
	}
}

var _ storage.Tx = (*memTx)(nil)

func (tx *memTx) LoadSwap(_ context.Context, id domain.Identity) (*domain.SwapRecord, error) {
	if r, ok := tx.swaps[id]; ok {
		return r.Clone(), nil
	}

	tx.s.mu.RLock()
	defer tx.s.mu.RUnlock()

	r, ok := tx.s.swaps[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return r.Clone(), nil
}

func (tx *memTx) CreateSwap(ctx context.Context, r *domain.SwapRecord) error {
	if r == nil || r.ID.IsZero() {
		return storage.ErrInvalidInput
	}
	if _, err := tx.LoadSwap(ctx, r.ID); err == nil {
		return storage.ErrDuplicateKey
	}
	tx.swaps[r.ID] = r.Clone()
	return nil
}

func (tx *memTx) SaveSwap(ctx context.Context, r *domain.SwapRecord) error {
	if r == nil {
		return storage.ErrInvalidInput
	}
	if _, err := tx.LoadSwap(ctx, r.ID); err != nil {
		return err
	}
	tx.swaps[r.ID] = r.Clone()
	return nil
}

// account returns the staged copy of addr, loading it on first access.
func (tx *memTx) account(addr domain.Identity) *domain.TokenAccount {
	if acct, ok := tx.accounts[addr]; ok {
		return acct
	}

	tx.s.mu.RLock()
	e := tx.s.accounts[addr]
	tx.s.mu.RUnlock()

	tx.accountVersions[addr] = currentAccountVersion(e)
	if e == nil {
		tx.accounts[addr] = nil
		return nil
	}
	acct := e.acct
	tx.accounts[addr] = &acct
	return &acct
}

func (tx *memTx) TokenAccount(_ context.Context, addr domain.Identity) (*domain.TokenAccount, error) {
	acct := tx.account(addr)
	if acct == nil {
		return nil, storage.ErrNotFound
	}
	c := *acct
	return &c, nil
}

func (tx *memTx) OpenTokenAccount(_ context.Context, addr, mint, owner domain.Identity) (*domain.TokenAccount, error) {
	if addr.IsZero() || mint.IsZero() || owner.IsZero() {
		return nil, storage.ErrInvalidInput
	}

	if acct := tx.account(addr); acct != nil {
		if acct.Mint != mint || acct.Owner != owner {
			return nil, storage.ErrDuplicateKey
		}
		c := *acct
		return &c, nil
	}

	acct := &domain.TokenAccount{Address: addr, Mint: mint, Owner: owner}
	tx.accounts[addr] = acct
	tx.dirtyAccounts[addr] = struct{}{}
	c := *acct
	return &c, nil
}

func (tx *memTx) TransferTokens(_ context.Context, from, to, authority domain.Identity, amount uint64) error {
	src := tx.account(from)
	if src == nil {
		return fmt.Errorf("source %s: %w", from, storage.ErrNotFound)
	}
	dst := tx.account(to)
	if dst == nil {
		return fmt.Errorf("destination %s: %w", to, storage.ErrNotFound)
	}
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

	src.Amount -= amount
	dst.Amount += amount
	tx.dirtyAccounts[from] = struct{}{}
	tx.dirtyAccounts[to] = struct{}{}
	return nil
}

// lamports returns the staged balance of addr, loading it on first access.
func (tx *memTx) lamports(addr domain.Identity) uint64 {
	if v, ok := tx.native[addr]; ok {
		return v
	}

	tx.s.mu.RLock()
	e := tx.s.native[addr]
	tx.s.mu.RUnlock()

	tx.nativeVersions[addr] = currentNativeVersion(e)
	var v uint64
	if e != nil {
		v = e.lamports
	}
	tx.native[addr] = v
	return v
}

func (tx *memTx) NativeBalance(_ context.Context, addr domain.Identity) (uint64, error) {
	return tx.lamports(addr), nil
}

func (tx *memTx) DebitNative(_ context.Context, addr domain.Identity, amount uint64) error {
	bal := tx.lamports(addr)
	if bal < amount {
		return storage.ErrInsufficientFunds
	}
	tx.native[addr] = bal - amount
	tx.dirtyNative[addr] = struct{}{}
	return nil
}

func (tx *memTx) CreditNative(_ context.Context, addr domain.Identity, amount uint64) error {
	bal := tx.lamports(addr)
	if bal > math.MaxUint64-amount {
		return storage.ErrOverflow
	}
	tx.native[addr] = bal + amount
	tx.dirtyNative[addr] = struct{}{}
	return nil
}

func (tx *memTx) AppendEvent(_ context.Context, e *domain.Event) error {
	if e == nil || e.ID == "" {
		return storage.ErrInvalidInput
	}
	for _, staged := range tx.events {
		if staged.ID == e.ID {
			return storage.ErrDuplicateKey
		}
	}
	tx.events = append(tx.events, cloneEvent(e))
	return nil
}

func cloneEvent(e *domain.Event) *domain.Event {
	c := *e
	if e.Whitelist != nil {
		c.Whitelist = append([]domain.Identity(nil), e.Whitelist...)
	}
	return &c
}
