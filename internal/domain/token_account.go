package domain

// TokenAccount is a fungible-token balance held for one mint.
// Owner is the transfer authority; for escrow accounts it is the swap record ID.
type TokenAccount struct {
	Address Identity // account address
	Mint    Identity // token mint
	Owner   Identity // transfer authority
	Amount  uint64   // raw token units
	Frozen  bool     // frozen accounts can neither send nor receive
}
