package domain

import (
	"encoding/binary"
	"fmt"
)

// SwapRecordLayoutVersion is the current binary layout version.
const SwapRecordLayoutVersion byte = 1

// SwapRecordLayoutSize is the fixed encoded size of a SwapRecord:
// version(1) seller(32) escrow(32) mint(32) total(8) remaining(8) price(8) expiry(8)
// whitelist count(1) whitelist(10*32) recipient(32) active(1) bump(1) seller token account(32).
const SwapRecordLayoutSize = 1 + 3*IdentitySize + 4*8 + 1 + MaxWhitelistSize*IdentitySize + IdentitySize + 1 + 1 + IdentitySize

// MarshalBinary encodes the record into the fixed little-endian account layout.
// ID, CreatedAt and UpdatedAt are not part of the layout; ID is the storage key.
// The API serves this encoding as the swap's raw account data.
func (r *SwapRecord) MarshalBinary() ([]byte, error) {
	if r.Whitelist.Len() > MaxWhitelistSize {
		return nil, ErrWhitelistTooLarge
	}

	buf := make([]byte, SwapRecordLayoutSize)
	off := 0
	put := func(id Identity) {
		copy(buf[off:off+IdentitySize], id[:])
		off += IdentitySize
	}
	putU64 := func(v uint64) {
		binary.LittleEndian.PutUint64(buf[off:off+8], v)
		off += 8
	}

	buf[off] = SwapRecordLayoutVersion
	off++
	put(r.Seller)
	put(r.EscrowAccount)
	put(r.TokenMint)
	putU64(r.TotalAmount)
	putU64(r.AmountRemaining)
	putU64(r.PriceTotal)
	putU64(uint64(r.ExpiryTimestamp))

	members := r.Whitelist.Members()
	buf[off] = byte(len(members))
	off++
	for i := 0; i < MaxWhitelistSize; i++ {
		if i < len(members) {
			put(members[i])
		} else {
			off += IdentitySize
		}
	}

	put(r.RecipientHint)
	if r.IsActive {
		buf[off] = 1
	}
	off++
	buf[off] = r.EscrowBump
	off++
	put(r.SellerTokenAccount)

	return buf, nil
}

// UnmarshalBinary decodes a record produced by MarshalBinary.
func (r *SwapRecord) UnmarshalBinary(data []byte) error {
	if len(data) != SwapRecordLayoutSize {
		return fmt.Errorf("swap record layout: got %d bytes, want %d", len(data), SwapRecordLayoutSize)
	}
	if data[0] != SwapRecordLayoutVersion {
		return fmt.Errorf("swap record layout: unsupported version %d", data[0])
	}

	off := 1
	get := func() Identity {
		var id Identity
		copy(id[:], data[off:off+IdentitySize])
		off += IdentitySize
		return id
	}
	getU64 := func() uint64 {
		v := binary.LittleEndian.Uint64(data[off : off+8])
		off += 8
		return v
	}

	r.Seller = get()
	r.EscrowAccount = get()
	r.TokenMint = get()
	r.TotalAmount = getU64()
	r.AmountRemaining = getU64()
	r.PriceTotal = getU64()
	r.ExpiryTimestamp = int64(getU64())

	count := int(data[off])
	off++
	if count > MaxWhitelistSize {
		return fmt.Errorf("swap record layout: whitelist count %d exceeds %d", count, MaxWhitelistSize)
	}
	ids := make([]Identity, 0, count)
	for i := 0; i < MaxWhitelistSize; i++ {
		id := get()
		if i < count {
			ids = append(ids, id)
		}
	}
	wl, err := NewWhitelist(ids...)
	if err != nil {
		return err
	}
	r.Whitelist = wl

	r.RecipientHint = get()
	r.IsActive = data[off] == 1
	off++
	r.EscrowBump = data[off]
	off++
	r.SellerTokenAccount = get()

	return nil
}
