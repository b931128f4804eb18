package idhash

import (
	"crypto/sha256"
	"errors"
	"fmt"

	"filippo.io/edwards25519"

	"otc-swaps/internal/domain"
)

// Well-known program addresses.
const (
	// OTCProgramAddress is the default program id of the OTC swap program.
	OTCProgramAddress = "FDoRMA7k9uXybXW97bBU3979YG1ax4xf3Bf7jaAqYG48"
	// TokenProgramAddress is the SPL token program.
	TokenProgramAddress = "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA"
	// AssociatedTokenProgramAddress is the SPL associated token account program.
	AssociatedTokenProgramAddress = "ATokenGPvbdGVxr1b2hvZbsiqW5xWH25efTNsLJA8knL"
)

const (
	pdaMarker     = "ProgramDerivedAddress"
	maxSeeds      = 16
	maxSeedLength = 32
	swapSeed      = "swap"
)

var (
	// ErrOnCurve is returned when seeds hash to a valid ed25519 point.
	ErrOnCurve = errors.New("derived address is on the ed25519 curve")

	// ErrNoViableBump is returned when no bump seed yields an off-curve address.
	ErrNoViableBump = errors.New("no viable bump seed")
)

var (
	tokenProgramID           = domain.MustParseIdentity(TokenProgramAddress)
	associatedTokenProgramID = domain.MustParseIdentity(AssociatedTokenProgramAddress)
)

// CreateProgramAddress derives an address from seeds (bump included) and a program id.
// Formula: SHA256(seed_0 | ... | seed_n | programID | "ProgramDerivedAddress").
// Returns ErrOnCurve if the hash is a valid curve point: such an address could have a private key.
func CreateProgramAddress(seeds [][]byte, programID domain.Identity) (domain.Identity, error) {
	if len(seeds) > maxSeeds {
		return domain.Identity{}, fmt.Errorf("too many seeds: %d > %d", len(seeds), maxSeeds)
	}

	h := sha256.New()
	for _, seed := range seeds {
		if len(seed) > maxSeedLength {
			return domain.Identity{}, fmt.Errorf("seed too long: %d > %d", len(seed), maxSeedLength)
		}
		h.Write(seed)
	}
	h.Write(programID[:])
	h.Write([]byte(pdaMarker))

	var addr domain.Identity
	copy(addr[:], h.Sum(nil))

	if isOnCurve(addr[:]) {
		return domain.Identity{}, ErrOnCurve
	}
	return addr, nil
}

// FindProgramAddress searches bump seeds from 255 down to 1 and returns the first
// off-curve address together with its bump.
func FindProgramAddress(seeds [][]byte, programID domain.Identity) (domain.Identity, uint8, error) {
	withBump := make([][]byte, len(seeds)+1)
	copy(withBump, seeds)

	for bump := byte(255); bump > 0; bump-- {
		withBump[len(seeds)] = []byte{bump}
		addr, err := CreateProgramAddress(withBump, programID)
		if errors.Is(err, ErrOnCurve) {
			continue
		}
		if err != nil {
			return domain.Identity{}, 0, err
		}
		return addr, bump, nil
	}

	return domain.Identity{}, 0, ErrNoViableBump
}

// SwapAddress derives the swap record id for (seller, mint).
// Seeds: ["swap", seller, mint]
func SwapAddress(programID, seller, mint domain.Identity) (domain.Identity, uint8, error) {
	return FindProgramAddress([][]byte{[]byte(swapSeed), seller[:], mint[:]}, programID)
}

// AssociatedTokenAddress derives the canonical token account of owner for mint.
// Seeds: [owner, token_program_id, mint] under the associated token program.
func AssociatedTokenAddress(owner, mint domain.Identity) (domain.Identity, error) {
	addr, _, err := FindProgramAddress([][]byte{owner[:], tokenProgramID[:], mint[:]}, associatedTokenProgramID)
	return addr, err
}

func isOnCurve(point []byte) bool {
	if len(point) != 32 {
		return false
	}
	_, err := new(edwards25519.Point).SetBytes(point)
	return err == nil
}
