package stub

import (
	"context"
	"encoding/base64"

	"otc-swaps/internal/domain"
	"otc-swaps/internal/idhash"
	"otc-swaps/internal/solana"
)

// RPCClient implements solana.RPCClient for testing.
type RPCClient struct {
	Slot       int64
	Accounts   map[string]*solana.AccountInfo
	Balances   map[string]uint64
	Signatures map[string][]solana.SignatureInfo
}

var _ solana.RPCClient = (*RPCClient)(nil)

// NewRPCClient creates a new stub RPC client.
func NewRPCClient() *RPCClient {
	return &RPCClient{
		Accounts:   make(map[string]*solana.AccountInfo),
		Balances:   make(map[string]uint64),
		Signatures: make(map[string][]solana.SignatureInfo),
	}
}

// GetAccountInfo returns the stored account, or nil if absent.
func (c *RPCClient) GetAccountInfo(_ context.Context, pubkey string) (*solana.AccountInfo, error) {
	info, ok := c.Accounts[pubkey]
	if !ok {
		return nil, nil
	}
	cp := *info
	return &cp, nil
}

// GetBalance returns the stored balance; zero if unknown.
func (c *RPCClient) GetBalance(_ context.Context, pubkey string) (uint64, error) {
	return c.Balances[pubkey], nil
}

// GetSlot returns Slot.
func (c *RPCClient) GetSlot(context.Context) (int64, error) {
	return c.Slot, nil
}

// GetTokenAccount decodes a stored token account.
func (c *RPCClient) GetTokenAccount(ctx context.Context, address domain.Identity) (*domain.TokenAccount, error) {
	info, err := c.GetAccountInfo(ctx, address.String())
	if err != nil {
		return nil, err
	}
	return solana.DecodeTokenAccount(address, info)
}

// GetSignaturesForAddress retrieves signatures for an address from the stub store.
func (c *RPCClient) GetSignaturesForAddress(_ context.Context, address string, opts *solana.SignaturesOpts) ([]solana.SignatureInfo, error) {
	sigs, ok := c.Signatures[address]
	if !ok {
		return nil, nil
	}

	// Apply limit if specified
	if opts != nil && opts.Limit > 0 && opts.Limit < len(sigs) {
		return sigs[:opts.Limit], nil
	}

	return sigs, nil
}

// AddTokenAccount stores acct encoded as an SPL token account.
func (c *RPCClient) AddTokenAccount(acct *domain.TokenAccount) {
	c.Accounts[acct.Address.String()] = &solana.AccountInfo{
		Lamports: 2039280,
		Owner:    idhash.TokenProgramAddress,
		Data:     base64.StdEncoding.EncodeToString(solana.EncodeTokenAccount(acct)),
	}
}

// AddSignatures adds signatures for an address to the stub store.
func (c *RPCClient) AddSignatures(address string, sigs []solana.SignatureInfo) {
	c.Signatures[address] = sigs
}
