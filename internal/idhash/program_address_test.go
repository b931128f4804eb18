package idhash

import (
	"bytes"
	"errors"
	"testing"

	"otc-swaps/internal/domain"
)

func fill(b byte) domain.Identity {
	var id domain.Identity
	copy(id[:], bytes.Repeat([]byte{b}, domain.IdentitySize))
	return id
}

var programID = domain.MustParseIdentity(OTCProgramAddress)

func TestSwapAddress_Deterministic(t *testing.T) {
	seller := fill(0x11)
	mint := fill(0x22)

	first, bump, err := SwapAddress(programID, seller, mint)
	if err != nil {
		t.Fatalf("SwapAddress: %v", err)
	}

	for i := 0; i < 5; i++ {
		again, againBump, err := SwapAddress(programID, seller, mint)
		if err != nil {
			t.Fatalf("SwapAddress: %v", err)
		}
		if again != first || againBump != bump {
			t.Fatalf("not deterministic: %s/%d != %s/%d", again, againBump, first, bump)
		}
	}
}

func TestSwapAddress_OffCurveAndBumpConsistent(t *testing.T) {
	seller := fill(0x33)
	mint := fill(0x44)

	addr, bump, err := SwapAddress(programID, seller, mint)
	if err != nil {
		t.Fatalf("SwapAddress: %v", err)
	}
	if isOnCurve(addr[:]) {
		t.Error("derived address must be off curve")
	}

	recreated, err := CreateProgramAddress([][]byte{[]byte("swap"), seller[:], mint[:], {bump}}, programID)
	if err != nil {
		t.Fatalf("CreateProgramAddress: %v", err)
	}
	if recreated != addr {
		t.Errorf("CreateProgramAddress with bump %d = %s, want %s", bump, recreated, addr)
	}
}

func TestSwapAddress_DifferentInputs(t *testing.T) {
	base, _, _ := SwapAddress(programID, fill(1), fill(2))

	diffSeller, _, _ := SwapAddress(programID, fill(3), fill(2))
	if base == diffSeller {
		t.Error("different seller should produce different address")
	}

	diffMint, _, _ := SwapAddress(programID, fill(1), fill(3))
	if base == diffMint {
		t.Error("different mint should produce different address")
	}

	diffProgram, _, _ := SwapAddress(fill(9), fill(1), fill(2))
	if base == diffProgram {
		t.Error("different program should produce different address")
	}
}

func TestAssociatedTokenAddress_PerOwner(t *testing.T) {
	mint := fill(0x55)

	a, err := AssociatedTokenAddress(fill(0x01), mint)
	if err != nil {
		t.Fatalf("AssociatedTokenAddress: %v", err)
	}
	b, err := AssociatedTokenAddress(fill(0x02), mint)
	if err != nil {
		t.Fatalf("AssociatedTokenAddress: %v", err)
	}
	if a == b {
		t.Error("different owners must get different token accounts")
	}
}

func TestCreateProgramAddress_SeedLimits(t *testing.T) {
	long := bytes.Repeat([]byte{1}, maxSeedLength+1)
	if _, err := CreateProgramAddress([][]byte{long}, programID); err == nil || errors.Is(err, ErrOnCurve) {
		t.Errorf("expected seed length error, got %v", err)
	}

	many := make([][]byte, maxSeeds+1)
	if _, err := CreateProgramAddress(many, programID); err == nil {
		t.Error("expected too many seeds error")
	}
}

func TestIsOnCurve(t *testing.T) {
	// The ed25519 base point encoding is on the curve.
	basePoint := []byte{
		0x58, 0x66, 0x66, 0x66, 0x66, 0x66, 0x66, 0x66,
		0x66, 0x66, 0x66, 0x66, 0x66, 0x66, 0x66, 0x66,
		0x66, 0x66, 0x66, 0x66, 0x66, 0x66, 0x66, 0x66,
		0x66, 0x66, 0x66, 0x66, 0x66, 0x66, 0x66, 0x66,
	}
	if !isOnCurve(basePoint) {
		t.Error("base point should be on curve")
	}
	if isOnCurve([]byte{1, 2, 3}) {
		t.Error("short input is never on curve")
	}
}
