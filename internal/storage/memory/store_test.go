package memory

import (
	"context"
	"errors"
	"sync"
	"testing"

	"otc-swaps/internal/domain"
	"otc-swaps/internal/storage"
)

func testID(n byte) domain.Identity {
	var id domain.Identity
	id[0] = n
	id[31] = 0x5A
	return id
}

func seedAccount(t *testing.T, s *Store, addr, mint, owner domain.Identity, amount uint64) {
	t.Helper()
	err := s.PutTokenAccount(context.Background(), &domain.TokenAccount{Address: addr, Mint: mint, Owner: owner, Amount: amount})
	if err != nil {
		t.Fatalf("PutTokenAccount failed: %v", err)
	}
}

func TestStore_CommitOnSuccess(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	swapID := testID(1)
	mint, owner := testID(2), testID(3)
	seedAccount(t, s, testID(10), mint, owner, 100)

	err := s.Execute(ctx, swapID, func(ctx context.Context, tx storage.Tx) error {
		if _, err := tx.OpenTokenAccount(ctx, testID(11), mint, swapID); err != nil {
			return err
		}
		if err := tx.TransferTokens(ctx, testID(10), testID(11), owner, 60); err != nil {
			return err
		}
		if err := tx.CreateSwap(ctx, &domain.SwapRecord{ID: swapID, TotalAmount: 60, AmountRemaining: 60, IsActive: true}); err != nil {
			return err
		}
		return tx.AppendEvent(ctx, &domain.Event{ID: "e1", Type: domain.EventTypeCreated, SwapID: swapID, OccurredAt: 5})
	})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	src, _ := s.GetTokenAccount(ctx, testID(10))
	dst, _ := s.GetTokenAccount(ctx, testID(11))
	if src.Amount != 40 || dst.Amount != 60 {
		t.Errorf("balances: got src=%d dst=%d, want 40/60", src.Amount, dst.Amount)
	}

	rec, err := s.GetSwap(ctx, swapID)
	if err != nil {
		t.Fatalf("GetSwap failed: %v", err)
	}
	if rec.AmountRemaining != 60 {
		t.Errorf("AmountRemaining: got %d, want 60", rec.AmountRemaining)
	}

	events, _ := s.GetBySwapID(ctx, swapID)
	if len(events) != 1 {
		t.Errorf("Expected 1 event, got %d", len(events))
	}
}

func TestStore_DiscardOnError(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	swapID := testID(1)
	mint, owner := testID(2), testID(3)
	seedAccount(t, s, testID(10), mint, owner, 100)
	seedAccount(t, s, testID(11), mint, owner, 0)
	if err := s.SetNativeBalance(ctx, owner, 50); err != nil {
		t.Fatalf("SetNativeBalance failed: %v", err)
	}

	boom := errors.New("boom")
	err := s.Execute(ctx, swapID, func(ctx context.Context, tx storage.Tx) error {
		if err := tx.TransferTokens(ctx, testID(10), testID(11), owner, 30); err != nil {
			return err
		}
		if err := tx.DebitNative(ctx, owner, 20); err != nil {
			return err
		}
		if err := tx.CreateSwap(ctx, &domain.SwapRecord{ID: swapID}); err != nil {
			return err
		}
		if err := tx.AppendEvent(ctx, &domain.Event{ID: "e1", SwapID: swapID}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Expected boom, got %v", err)
	}

	src, _ := s.GetTokenAccount(ctx, testID(10))
	if src.Amount != 100 {
		t.Errorf("source balance changed: %d", src.Amount)
	}
	bal, _ := s.GetNativeBalance(ctx, owner)
	if bal != 50 {
		t.Errorf("native balance changed: %d", bal)
	}
	if _, err := s.GetSwap(ctx, swapID); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
	if events, _ := s.GetBySwapID(ctx, swapID); len(events) != 0 {
		t.Errorf("Expected no events, got %d", len(events))
	}
}

func TestStore_TransferRules(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	mint, other, owner := testID(2), testID(4), testID(3)
	seedAccount(t, s, testID(10), mint, owner, 100)
	seedAccount(t, s, testID(11), mint, owner, 0)
	seedAccount(t, s, testID(12), other, owner, 0)
	if err := s.PutTokenAccount(ctx, &domain.TokenAccount{Address: testID(13), Mint: mint, Owner: owner, Frozen: true}); err != nil {
		t.Fatalf("PutTokenAccount failed: %v", err)
	}

	tests := []struct {
		name      string
		to        domain.Identity
		authority domain.Identity
		amount    uint64
		want      error
	}{
		{"wrong authority", testID(11), testID(9), 1, storage.ErrUnauthorizedTransfer},
		{"mint mismatch", testID(12), owner, 1, storage.ErrMintMismatch},
		{"frozen destination", testID(13), owner, 1, storage.ErrAccountFrozen},
		{"insufficient", testID(11), owner, 101, storage.ErrInsufficientFunds},
		{"missing destination", testID(99), owner, 1, storage.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.Execute(ctx, testID(1), func(ctx context.Context, tx storage.Tx) error {
				return tx.TransferTokens(ctx, testID(10), tt.to, tt.authority, tt.amount)
			})
			if !errors.Is(err, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestStore_CreateSwapDuplicate(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	id := testID(1)

	create := func(ctx context.Context, tx storage.Tx) error {
		return tx.CreateSwap(ctx, &domain.SwapRecord{ID: id})
	}
	if err := s.Execute(ctx, id, create); err != nil {
		t.Fatalf("First create failed: %v", err)
	}
	if err := s.Execute(ctx, id, create); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}
}

func TestStore_ReadYourWrites(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	id := testID(1)

	err := s.Execute(ctx, id, func(ctx context.Context, tx storage.Tx) error {
		if err := tx.CreditNative(ctx, testID(5), 10); err != nil {
			return err
		}
		bal, err := tx.NativeBalance(ctx, testID(5))
		if err != nil {
			return err
		}
		if bal != 10 {
			t.Errorf("staged balance: got %d, want 10", bal)
		}
		// Not visible outside the transaction yet.
		if outside, _ := s.GetNativeBalance(ctx, testID(5)); outside != 0 {
			t.Errorf("uncommitted balance visible: %d", outside)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
}

func TestStore_SharedLedgerAcrossSwaps(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	payer := testID(5)
	if err := s.SetNativeBalance(ctx, payer, 1000); err != nil {
		t.Fatalf("SetNativeBalance failed: %v", err)
	}

	// Different swap ids run in parallel but debit the same account.
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n byte) {
			defer wg.Done()
			err := s.Execute(ctx, testID(100+n), func(ctx context.Context, tx storage.Tx) error {
				return tx.DebitNative(ctx, payer, 10)
			})
			if err != nil {
				t.Errorf("Execute failed: %v", err)
			}
		}(byte(i))
	}
	wg.Wait()

	bal, _ := s.GetNativeBalance(ctx, payer)
	if bal != 500 {
		t.Errorf("Lost update: got %d, want 500", bal)
	}
}

func TestStore_ListSwaps(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	seller := testID(7)

	recs := []*domain.SwapRecord{
		{ID: testID(1), Seller: seller, IsActive: true, CreatedAt: 30},
		{ID: testID(2), Seller: seller, IsActive: false, CreatedAt: 10},
		{ID: testID(3), Seller: testID(8), IsActive: true, CreatedAt: 20},
	}
	for _, r := range recs {
		r := r
		if err := s.Execute(ctx, r.ID, func(ctx context.Context, tx storage.Tx) error {
			return tx.CreateSwap(ctx, r)
		}); err != nil {
			t.Fatalf("CreateSwap failed: %v", err)
		}
	}

	bySeller, _ := s.ListSwapsBySeller(ctx, seller)
	if len(bySeller) != 2 || bySeller[0].ID != testID(2) {
		t.Errorf("ListSwapsBySeller: unexpected order or size %d", len(bySeller))
	}

	active, _ := s.ListActiveSwaps(ctx)
	if len(active) != 2 || active[0].ID != testID(3) || active[1].ID != testID(1) {
		t.Errorf("ListActiveSwaps: unexpected result (%d records)", len(active))
	}
}

func TestStore_GetByTimeRange(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	err := s.Execute(ctx, testID(1), func(ctx context.Context, tx storage.Tx) error {
		for i, ts := range []int64{100, 200, 300} {
			if err := tx.AppendEvent(ctx, &domain.Event{ID: string(rune('a' + i)), SwapID: testID(1), OccurredAt: ts}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	events, _ := s.GetByTimeRange(ctx, 150, 300)
	if len(events) != 2 {
		t.Errorf("Expected 2 events, got %d", len(events))
	}
}

func TestStore_ReturnsCopies(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	seedAccount(t, s, testID(10), testID(2), testID(3), 100)

	acct, _ := s.GetTokenAccount(ctx, testID(10))
	acct.Amount = 0

	again, _ := s.GetTokenAccount(ctx, testID(10))
	if again.Amount != 100 {
		t.Errorf("store mutated through returned pointer")
	}
}

func TestStore_ContextCancelled(t *testing.T) {
	s := NewStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := s.Execute(ctx, testID(1), func(context.Context, storage.Tx) error {
		called = true
		return nil
	})
	if !errors.Is(err, context.Canceled) || called {
		t.Errorf("Expected context.Canceled without running fn, got %v (called=%v)", err, called)
	}
}
