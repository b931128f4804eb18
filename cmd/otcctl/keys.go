package main

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"os"

	"otc-swaps/internal/domain"
)

// Keypair files use the Solana CLI layout: a JSON array of the 64 private key bytes
// (seed followed by public key).

func generateKeypair(path string) (domain.Identity, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return domain.Identity{}, err
	}

	ints := make([]int, len(priv))
	for i, b := range priv {
		ints[i] = int(b)
	}
	data, err := json.Marshal(ints)
	if err != nil {
		return domain.Identity{}, err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return domain.Identity{}, fmt.Errorf("write keypair: %w", err)
	}
	return domain.IdentityFromBytes(pub)
}

func loadKeypair(path string) (ed25519.PrivateKey, error) {
	if path == "" {
		return nil, fmt.Errorf("keypair required (-key or OTC_KEYPAIR)")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read keypair: %w", err)
	}

	var ints []int
	if err := json.Unmarshal(data, &ints); err != nil {
		return nil, fmt.Errorf("parse keypair %s: %w", path, err)
	}
	if len(ints) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("keypair %s: want %d bytes, got %d", path, ed25519.PrivateKeySize, len(ints))
	}

	key := make([]byte, len(ints))
	for i, v := range ints {
		if v < 0 || v > 255 {
			return nil, fmt.Errorf("keypair %s: byte %d out of range", path, i)
		}
		key[i] = byte(v)
	}

	priv := ed25519.PrivateKey(key)
	// The trailing half must match the seed, otherwise signatures will not verify.
	derived := ed25519.NewKeyFromSeed(priv.Seed())
	if !derived.Equal(priv) {
		return nil, fmt.Errorf("keypair %s: public key does not match seed", path)
	}
	return priv, nil
}

func publicIdentity(key ed25519.PrivateKey) domain.Identity {
	id, _ := domain.IdentityFromBytes(key.Public().(ed25519.PublicKey))
	return id
}
