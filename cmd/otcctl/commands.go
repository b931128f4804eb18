package main

import (
	"context"
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"otc-swaps/internal/api"
	"otc-swaps/internal/domain"
	"otc-swaps/internal/feed"
	"otc-swaps/internal/idhash"
	"otc-swaps/internal/pricing"
)

const defaultURL = "http://localhost:8080"

// commonFlags are shared by every command that talks to otcd.
type commonFlags struct {
	url *string
	key *string
}

func newFlagSet(env *cliEnv, name string) *flag.FlagSet {
	fs := flag.NewFlagSet("otcctl "+name, flag.ContinueOnError)
	fs.SetOutput(env.stderr)
	return fs
}

func addCommon(fs *flag.FlagSet, env *cliEnv, withKey bool) commonFlags {
	base := env.getenv("OTC_URL")
	if base == "" {
		base = defaultURL
	}
	c := commonFlags{url: fs.String("url", base, "otcd base URL")}
	if withKey {
		c.key = fs.String("key", env.getenv("OTC_KEYPAIR"), "Keypair file used to sign requests")
	}
	return c
}

// client builds an API client, loading the signing key when the command takes one.
func (c commonFlags) client() (*apiClient, error) {
	var key ed25519.PrivateKey
	if c.key != nil {
		var err error
		if key, err = loadKeypair(*c.key); err != nil {
			return nil, err
		}
	}
	return newAPIClient(*c.url, key), nil
}

func identityVar(fs *flag.FlagSet, name, usage string) *domain.Identity {
	id := new(domain.Identity)
	fs.Func(name, usage, func(s string) error {
		parsed, err := domain.ParseIdentity(s)
		if err != nil {
			return err
		}
		*id = parsed
		return nil
	})
	return id
}

func identityListVar(fs *flag.FlagSet, name, usage string) *[]domain.Identity {
	ids := new([]domain.Identity)
	fs.Func(name, usage, func(s string) error {
		for _, part := range strings.Split(s, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			id, err := domain.ParseIdentity(part)
			if err != nil {
				return fmt.Errorf("%s: %w", part, err)
			}
			*ids = append(*ids, id)
		}
		return nil
	})
	return ids
}

func requireID(name string, id domain.Identity) error {
	if id.IsZero() {
		return fmt.Errorf("-%s is required", name)
	}
	return nil
}

func printJSON(env *cliEnv, v any) error {
	enc := json.NewEncoder(env.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func runKeygen(_ context.Context, env *cliEnv, args []string) error {
	fs := newFlagSet(env, "keygen")
	out := fs.String("out", "id.json", "Output keypair file")
	force := fs.Bool("force", false, "Overwrite an existing file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if !*force {
		if _, err := os.Stat(*out); err == nil {
			return fmt.Errorf("%s already exists (use -force)", *out)
		}
	}

	id, err := generateKeypair(*out)
	if err != nil {
		return err
	}
	fmt.Fprintln(env.stdout, id)
	return nil
}

func runAddress(_ context.Context, env *cliEnv, args []string) error {
	fs := newFlagSet(env, "address")
	keyPath := fs.String("key", env.getenv("OTC_KEYPAIR"), "Keypair file")
	mint := identityVar(fs, "mint", "Also print the associated token account for this mint")
	if err := fs.Parse(args); err != nil {
		return err
	}

	key, err := loadKeypair(*keyPath)
	if err != nil {
		return err
	}
	owner := publicIdentity(key)
	fmt.Fprintln(env.stdout, owner)

	if !mint.IsZero() {
		ata, err := idhash.AssociatedTokenAddress(owner, *mint)
		if err != nil {
			return err
		}
		fmt.Fprintln(env.stdout, ata)
	}
	return nil
}

func runCreate(ctx context.Context, env *cliEnv, args []string) error {
	fs := newFlagSet(env, "create")
	common := addCommon(fs, env, true)
	account := identityVar(fs, "account", "Seller token account (defaults to the seller's associated token account)")
	mint := identityVar(fs, "mint", "Token mint")
	amount := fs.Uint64("amount", 0, "Base units to escrow")
	price := fs.Uint64("price", 0, "Total price in lamports for the whole amount")
	expiresIn := fs.Duration("expires-in", time.Hour, "Lifetime of the swap")
	expiry := fs.Int64("expiry", 0, "Absolute expiry as unix seconds (overrides -expires-in)")
	whitelist := identityListVar(fs, "whitelist", "Comma-separated buyer addresses")
	hint := identityVar(fs, "hint", "Optional recipient hint")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := requireID("mint", *mint); err != nil {
		return err
	}

	client, err := common.client()
	if err != nil {
		return err
	}

	if account.IsZero() {
		ata, err := idhash.AssociatedTokenAddress(publicIdentity(client.key), *mint)
		if err != nil {
			return err
		}
		*account = ata
	}

	req := api.CreateSwapRequest{
		SellerTokenAccount: *account,
		TokenMint:          *mint,
		Amount:             *amount,
		ExpiryTimestamp:    *expiry,
		Whitelist:          *whitelist,
		PriceTotal:         *price,
	}
	if req.ExpiryTimestamp == 0 {
		req.ExpiryTimestamp = time.Now().Add(*expiresIn).Unix()
	}
	if !hint.IsZero() {
		req.RecipientHint = hint
	}

	swap, err := client.CreateSwap(ctx, req)
	if err != nil {
		return err
	}
	return printJSON(env, swap)
}

func runFill(ctx context.Context, env *cliEnv, args []string) error {
	fs := newFlagSet(env, "fill")
	common := addCommon(fs, env, true)
	swapID := identityVar(fs, "swap", "Swap id")
	quantity := fs.Uint64("quantity", 0, "Base units to buy")
	dest := identityVar(fs, "destination", "Token account to receive the tokens (defaults to the buyer's associated token account)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := requireID("swap", *swapID); err != nil {
		return err
	}

	client, err := common.client()
	if err != nil {
		return err
	}

	req := api.FillRequest{Quantity: *quantity}
	if !dest.IsZero() {
		req.Destination = dest
	}
	receipt, err := client.FillSwap(ctx, *swapID, req)
	if err != nil {
		return err
	}
	return printJSON(env, receipt)
}

func runCancel(ctx context.Context, env *cliEnv, args []string) error {
	fs := newFlagSet(env, "cancel")
	common := addCommon(fs, env, true)
	swapID := identityVar(fs, "swap", "Swap id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := requireID("swap", *swapID); err != nil {
		return err
	}

	client, err := common.client()
	if err != nil {
		return err
	}
	receipt, err := client.CancelSwap(ctx, *swapID)
	if err != nil {
		return err
	}
	return printJSON(env, receipt)
}

func runGet(ctx context.Context, env *cliEnv, args []string) error {
	fs := newFlagSet(env, "get")
	common := addCommon(fs, env, false)
	swapID := identityVar(fs, "swap", "Swap id")
	raw := fs.Bool("raw", false, "Print the binary account layout (base64) instead of the decoded record")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := requireID("swap", *swapID); err != nil {
		return err
	}

	client, _ := common.client()
	if *raw {
		account, err := client.GetSwapAccount(ctx, *swapID)
		if err != nil {
			return err
		}
		return printJSON(env, account)
	}
	swap, err := client.GetSwap(ctx, *swapID)
	if err != nil {
		return err
	}
	return printJSON(env, swap)
}

func runList(ctx context.Context, env *cliEnv, args []string) error {
	fs := newFlagSet(env, "list")
	common := addCommon(fs, env, false)
	seller := identityVar(fs, "seller", "Only swaps of this seller, including closed ones")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, _ := common.client()
	swaps, err := client.ListSwaps(ctx, *seller)
	if err != nil {
		return err
	}

	fmt.Fprintf(env.stdout, "%-44s %-18s %12s %12s %14s\n", "SWAP", "STATUS", "REMAINING", "TOTAL", "PRICE (SOL)")
	for _, s := range swaps {
		fmt.Fprintf(env.stdout, "%-44s %-18s %12d %12d %14s\n",
			s.ID, s.Status, s.AmountRemaining, s.TotalAmount, pricing.FormatSOL(s.PriceTotal))
	}
	return nil
}

func runQuote(ctx context.Context, env *cliEnv, args []string) error {
	fs := newFlagSet(env, "quote")
	common := addCommon(fs, env, false)
	swapID := identityVar(fs, "swap", "Swap id")
	quantity := fs.Uint64("quantity", 0, "Base units to price")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := requireID("swap", *swapID); err != nil {
		return err
	}

	client, _ := common.client()
	quote, err := client.Quote(ctx, *swapID, *quantity)
	if err != nil {
		return err
	}
	fmt.Fprintf(env.stdout, "quantity:   %d\n", quote.Quantity)
	fmt.Fprintf(env.stdout, "payment:    %d lamports (%s SOL)\n", quote.Payment, pricing.FormatSOL(quote.Payment))
	fmt.Fprintf(env.stdout, "unit price: %s lamports\n", quote.UnitPrice.String())
	return nil
}

func runEvents(ctx context.Context, env *cliEnv, args []string) error {
	fs := newFlagSet(env, "events")
	common := addCommon(fs, env, false)
	swapID := identityVar(fs, "swap", "Swap id")
	from := fs.Int64("from", 0, "Range start, unix seconds")
	to := fs.Int64("to", 0, "Range end, unix seconds (defaults to now)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, _ := common.client()

	var (
		events []*domain.Event
		err    error
	)
	if !swapID.IsZero() {
		events, err = client.GetBySwapID(ctx, *swapID)
	} else {
		end := *to
		if end == 0 {
			end = time.Now().Unix()
		}
		events, err = client.GetByTimeRange(ctx, *from, end)
	}
	if err != nil {
		return err
	}
	return printJSON(env, events)
}

func runWatch(ctx context.Context, env *cliEnv, args []string) error {
	fs := newFlagSet(env, "watch")
	common := addCommon(fs, env, false)
	swapID := identityVar(fs, "swap", "Only events of this swap")
	seller := identityVar(fs, "seller", "Only events of this seller")
	count := fs.Int("count", 0, "Exit after this many events (0 streams until interrupted)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, _ := common.client()
	endpoint, err := client.feedURL()
	if err != nil {
		return err
	}

	sub, err := feed.Dial(ctx, endpoint, feed.Filter{SwapID: *swapID, Seller: *seller}, nil)
	if err != nil {
		return err
	}
	defer sub.Close()

	enc := json.NewEncoder(env.stdout)
	seen := 0
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-sub.Errors():
			fmt.Fprintf(env.stderr, "Warning: %v\n", err)
		case e, ok := <-sub.Events():
			if !ok {
				return errors.New("feed closed")
			}
			if err := enc.Encode(e); err != nil {
				return err
			}
			seen++
			if *count > 0 && seen >= *count {
				return nil
			}
		}
	}
}

func runDevAccount(ctx context.Context, env *cliEnv, args []string) error {
	fs := newFlagSet(env, "dev-account")
	common := addCommon(fs, env, false)
	address := identityVar(fs, "address", "Token account address (defaults to the owner's associated token account)")
	mint := identityVar(fs, "mint", "Token mint")
	owner := identityVar(fs, "owner", "Account owner")
	amount := fs.Uint64("amount", 0, "Balance in base units")
	frozen := fs.Bool("frozen", false, "Freeze the account")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := errors.Join(requireID("mint", *mint), requireID("owner", *owner)); err != nil {
		return err
	}

	if address.IsZero() {
		ata, err := idhash.AssociatedTokenAddress(*owner, *mint)
		if err != nil {
			return err
		}
		*address = ata
	}

	client, _ := common.client()
	if err := client.PutTokenAccount(ctx, api.DevTokenAccountRequest{
		Address: *address,
		Mint:    *mint,
		Owner:   *owner,
		Amount:  *amount,
		Frozen:  *frozen,
	}); err != nil {
		return err
	}
	fmt.Fprintln(env.stdout, *address)
	return nil
}

func runDevAirdrop(ctx context.Context, env *cliEnv, args []string) error {
	fs := newFlagSet(env, "dev-airdrop")
	common := addCommon(fs, env, false)
	owner := identityVar(fs, "owner", "Recipient")
	lamports := fs.Uint64("lamports", 0, "Balance to set")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := requireID("owner", *owner); err != nil {
		return err
	}

	client, _ := common.client()
	if err := client.Airdrop(ctx, *owner, *lamports); err != nil {
		return err
	}
	fmt.Fprintf(env.stdout, "%s: %s SOL\n", *owner, pricing.FormatSOL(*lamports))
	return nil
}
