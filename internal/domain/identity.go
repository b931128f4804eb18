package domain

import (
	"fmt"

	"github.com/mr-tron/base58"
)

// IdentitySize is the byte length of an ed25519 public key.
const IdentitySize = 32

// Identity is a 32-byte account address or actor public key.
// Text form is base58 (Bitcoin alphabet), as used by Solana.
type Identity [IdentitySize]byte

// ParseIdentity decodes a base58 address.
func ParseIdentity(s string) (Identity, error) {
	var id Identity
	if s == "" {
		return id, fmt.Errorf("empty identity")
	}
	decoded, err := base58.Decode(s)
	if err != nil {
		return id, fmt.Errorf("decode identity %q: %w", s, err)
	}
	if len(decoded) != IdentitySize {
		return id, fmt.Errorf("identity %q has %d bytes, want %d", s, len(decoded), IdentitySize)
	}
	copy(id[:], decoded)
	return id, nil
}

// MustParseIdentity is ParseIdentity that panics on error. Intended for constants and tests.
func MustParseIdentity(s string) Identity {
	id, err := ParseIdentity(s)
	if err != nil {
		panic(err)
	}
	return id
}

// IdentityFromBytes copies a 32-byte slice into an Identity.
func IdentityFromBytes(b []byte) (Identity, error) {
	var id Identity
	if len(b) != IdentitySize {
		return id, fmt.Errorf("identity has %d bytes, want %d", len(b), IdentitySize)
	}
	copy(id[:], b)
	return id, nil
}

// String returns the base58 form.
func (id Identity) String() string {
	return base58.Encode(id[:])
}

// IsZero reports whether id is the all-zero address.
func (id Identity) IsZero() bool {
	return id == Identity{}
}

// Bytes returns a copy of the raw key bytes.
func (id Identity) Bytes() []byte {
	out := make([]byte, IdentitySize)
	copy(out, id[:])
	return out
}

// MarshalText implements encoding.TextMarshaler.
func (id Identity) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *Identity) UnmarshalText(text []byte) error {
	parsed, err := ParseIdentity(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
