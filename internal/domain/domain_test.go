package domain

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"testing"
)

func testID(fill byte) Identity {
	var id Identity
	copy(id[:], bytes.Repeat([]byte{fill}, IdentitySize))
	return id
}

func TestIdentity_TextRoundTrip(t *testing.T) {
	id := testID(0x42)

	parsed, err := ParseIdentity(id.String())
	if err != nil {
		t.Fatalf("ParseIdentity: %v", err)
	}
	if parsed != id {
		t.Errorf("round trip mismatch: %s != %s", parsed, id)
	}
}

func TestIdentity_ParseRejectsBadInput(t *testing.T) {
	for _, in := range []string{"", "0OIl", "3mJr7AoUXx2Wqd"} {
		if _, err := ParseIdentity(in); err == nil {
			t.Errorf("ParseIdentity(%q) expected error", in)
		}
	}
}

func TestWhitelist_DedupesAndDropsZero(t *testing.T) {
	wl, err := NewWhitelist(testID(1), testID(2), testID(1), Identity{}, testID(3))
	if err != nil {
		t.Fatalf("NewWhitelist: %v", err)
	}
	if wl.Len() != 3 {
		t.Fatalf("expected 3 members, got %d", wl.Len())
	}
	members := wl.Members()
	if members[0] != testID(1) || members[1] != testID(2) || members[2] != testID(3) {
		t.Errorf("insertion order not kept: %v", members)
	}
	if wl.Contains(Identity{}) {
		t.Error("zero identity must never be a member")
	}
	if !wl.Contains(testID(2)) || wl.Contains(testID(9)) {
		t.Error("Contains returned wrong membership")
	}
}

func TestWhitelist_MaxSize(t *testing.T) {
	ids := make([]Identity, 0, MaxWhitelistSize+1)
	for i := 1; i <= MaxWhitelistSize; i++ {
		ids = append(ids, testID(byte(i)))
	}
	if _, err := NewWhitelist(ids...); err != nil {
		t.Fatalf("ten members must be accepted: %v", err)
	}

	ids = append(ids, testID(0xEE))
	if _, err := NewWhitelist(ids...); !errors.Is(err, ErrWhitelistTooLarge) {
		t.Errorf("expected ErrWhitelistTooLarge, got %v", err)
	}

	// Duplicates do not count towards the limit.
	ids[MaxWhitelistSize] = testID(1)
	if _, err := NewWhitelist(ids...); err != nil {
		t.Errorf("duplicate should collapse: %v", err)
	}
}

func TestWhitelist_MembersIsCopy(t *testing.T) {
	wl, _ := NewWhitelist(testID(1))
	m := wl.Members()
	m[0] = testID(9)
	if !wl.Contains(testID(1)) || wl.Contains(testID(9)) {
		t.Error("mutating Members() result changed the whitelist")
	}
}

func TestWhitelist_JSON(t *testing.T) {
	wl, _ := NewWhitelist(testID(1), testID(2))
	data, err := json.Marshal(wl)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded Whitelist
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.Len() != 2 || !decoded.Contains(testID(2)) {
		t.Errorf("decoded whitelist mismatch: %v", decoded.Members())
	}
}

func TestSwapRecord_Status(t *testing.T) {
	tests := []struct {
		name      string
		remaining uint64
		active    bool
		want      SwapStatus
	}{
		{"untouched", 1000, true, SwapStatusActive},
		{"partial", 600, true, SwapStatusPartiallyFilled},
		{"filled", 0, false, SwapStatusFilled},
		{"cancelled partial", 600, false, SwapStatusCancelled},
		{"cancelled untouched", 1000, false, SwapStatusCancelled},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &SwapRecord{TotalAmount: 1000, AmountRemaining: tt.remaining, IsActive: tt.active}
			if got := r.Status(); got != tt.want {
				t.Errorf("Status() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestSwapRecord_CloneIsDeep(t *testing.T) {
	wl, _ := NewWhitelist(testID(1))
	r := &SwapRecord{TotalAmount: 10, AmountRemaining: 10, Whitelist: wl, IsActive: true}
	c := r.Clone()
	c.AmountRemaining = 3
	c.IsActive = false
	if r.AmountRemaining != 10 || !r.IsActive {
		t.Error("clone shares state with original")
	}
}

func TestSwapRecord_LayoutSize(t *testing.T) {
	// 3 identities + 2 amounts + price + signed timestamp + 10 whitelist slots
	// + recipient + bool + bump, plus version, whitelist count and seller token account.
	want := 1 + 96 + 32 + 1 + 320 + 32 + 1 + 1 + 32
	if SwapRecordLayoutSize != want {
		t.Fatalf("SwapRecordLayoutSize = %d, want %d", SwapRecordLayoutSize, want)
	}
}

func TestSwapRecord_LayoutOffsets(t *testing.T) {
	wl, _ := NewWhitelist(testID(0xB1), testID(0xB2))
	r := &SwapRecord{
		Seller:             testID(0x01),
		EscrowAccount:      testID(0x02),
		TokenMint:          testID(0x03),
		TotalAmount:        1000,
		AmountRemaining:    600,
		PriceTotal:         100,
		ExpiryTimestamp:    -5,
		Whitelist:          wl,
		RecipientHint:      testID(0x04),
		IsActive:           true,
		EscrowBump:         254,
		SellerTokenAccount: testID(0x05),
	}

	data, err := r.MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary: %v", err)
	}
	if len(data) != SwapRecordLayoutSize {
		t.Fatalf("encoded %d bytes", len(data))
	}
	if data[0] != SwapRecordLayoutVersion {
		t.Errorf("version byte = %d", data[0])
	}
	if data[1] != 0x01 || data[33] != 0x02 || data[65] != 0x03 {
		t.Error("identity fields at wrong offsets")
	}
	if got := binary.LittleEndian.Uint64(data[97:105]); got != 1000 {
		t.Errorf("total amount = %d", got)
	}
	if got := int64(binary.LittleEndian.Uint64(data[121:129])); got != -5 {
		t.Errorf("expiry = %d", got)
	}
	if data[129] != 2 {
		t.Errorf("whitelist count = %d", data[129])
	}

	var decoded SwapRecord
	if err := decoded.UnmarshalBinary(data); err != nil {
		t.Fatalf("UnmarshalBinary: %v", err)
	}
	if decoded.AmountRemaining != 600 || decoded.ExpiryTimestamp != -5 || !decoded.IsActive || decoded.EscrowBump != 254 {
		t.Errorf("decoded scalar fields mismatch: %+v", decoded)
	}
	if !decoded.Whitelist.Contains(testID(0xB2)) || decoded.Whitelist.Len() != 2 {
		t.Error("decoded whitelist mismatch")
	}
	if decoded.SellerTokenAccount != testID(0x05) {
		t.Error("decoded seller token account mismatch")
	}
}

func TestSwapRecord_LayoutRejectsUnknownVersion(t *testing.T) {
	data := make([]byte, SwapRecordLayoutSize)
	data[0] = 9
	var r SwapRecord
	if err := r.UnmarshalBinary(data); err == nil {
		t.Error("expected version error")
	}
	if err := r.UnmarshalBinary(data[:10]); err == nil {
		t.Error("expected size error")
	}
}
