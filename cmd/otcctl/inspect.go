package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"otc-swaps/internal/domain"
	"otc-swaps/internal/pricing"
	"otc-swaps/internal/solana"
)

// newRPCClient is swapped in tests.
var newRPCClient = func(endpoint, commitment string) solana.RPCClient {
	return solana.NewHTTPClient(endpoint, solana.WithCommitment(commitment))
}

func runInspect(ctx context.Context, env *cliEnv, args []string) error {
	fs := newFlagSet(env, "inspect")
	endpoint := fs.String("rpc-endpoint", env.getenv("SOLANA_RPC_ENDPOINT"), "Solana RPC HTTP endpoint")
	address := identityVar(fs, "address", "Wallet or token account to inspect")
	limit := fs.Int("signatures", 5, "Recent signatures to list (0 disables)")
	commitment := fs.String("commitment", solana.DefaultCommitment, "Commitment level: processed, confirmed or finalized")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *endpoint == "" {
		return errors.New("-rpc-endpoint is required")
	}
	if err := requireID("address", *address); err != nil {
		return err
	}

	switch *commitment {
	case "processed", "confirmed", "finalized":
	default:
		return fmt.Errorf("unknown commitment %q", *commitment)
	}

	return inspect(ctx, newRPCClient(*endpoint, *commitment), *address, *limit, env.stdout)
}

// inspect prints the native balance of addr and, when it is an SPL token account, its decoded state.
func inspect(ctx context.Context, rpc solana.RPCClient, addr domain.Identity, limit int, w io.Writer) error {
	slot, err := rpc.GetSlot(ctx)
	if err != nil {
		return fmt.Errorf("get slot: %w", err)
	}
	lamports, err := rpc.GetBalance(ctx, addr.String())
	if err != nil {
		return fmt.Errorf("get balance: %w", err)
	}
	fmt.Fprintf(w, "slot:     %d\n", slot)
	fmt.Fprintf(w, "address:  %s\n", addr)
	fmt.Fprintf(w, "balance:  %s SOL\n", pricing.FormatSOL(lamports))

	acct, err := rpc.GetTokenAccount(ctx, addr)
	switch {
	case err == nil:
		fmt.Fprintln(w, "token account:")
		fmt.Fprintf(w, "  mint:   %s\n", acct.Mint)
		fmt.Fprintf(w, "  owner:  %s\n", acct.Owner)
		fmt.Fprintf(w, "  amount: %d\n", acct.Amount)
		fmt.Fprintf(w, "  frozen: %t\n", acct.Frozen)
	case errors.Is(err, solana.ErrAccountNotFound), errors.Is(err, solana.ErrNotTokenAccount):
		// Wallets and program accounts carry no token state.
	default:
		return fmt.Errorf("get token account: %w", err)
	}

	if limit <= 0 {
		return nil
	}
	sigs, err := rpc.GetSignaturesForAddress(ctx, addr.String(), &solana.SignaturesOpts{Limit: limit})
	if err != nil {
		return fmt.Errorf("get signatures: %w", err)
	}
	fmt.Fprintf(w, "recent signatures (%d):\n", len(sigs))
	for _, sig := range sigs {
		status := "ok"
		if sig.Failed() {
			status = "failed"
		}
		when := "-"
		if sig.BlockTime != nil {
			when = time.Unix(*sig.BlockTime, 0).UTC().Format(time.RFC3339)
		}
		fmt.Fprintf(w, "  %s slot=%d time=%s %s\n", sig.Signature, sig.Slot, when, status)
	}
	return nil
}
