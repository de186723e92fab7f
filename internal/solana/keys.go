package solana

import (
	"crypto/ed25519"
	"crypto/sha256"
	"errors"
	"fmt"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// Well-known program and mint addresses.
const (
	// WSOL is the wrapped SOL mint.
	WSOL = "So11111111111111111111111111111111111111112"
	// SystemProgram is the native system program.
	SystemProgram = "11111111111111111111111111111111"
	// TokenProgram is the SPL token program.
	TokenProgram = "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA"
	// AssociatedTokenProgram creates associated token accounts.
	AssociatedTokenProgram = "ATokenGPvbdGVxr1b2hvZbsiqW5xWH25efTNsLJA8knL"
	// ComputeBudgetProgram sets per-transaction compute limits and fees.
	ComputeBudgetProgram = "ComputeBudget111111111111111111111111111111"
)

// ErrMaxSeedLength is returned when a PDA seed exceeds 32 bytes.
var ErrMaxSeedLength = errors.New("seed exceeds maximum length")

// DecodePubkey decodes a base58 address into its 32 raw bytes.
func DecodePubkey(address string) ([]byte, error) {
	raw, err := base58.Decode(address)
	if err != nil {
		return nil, fmt.Errorf("decode pubkey %q: %w", address, err)
	}
	if len(raw) != 32 {
		return nil, fmt.Errorf("pubkey %q: expected 32 bytes, got %d", address, len(raw))
	}
	return raw, nil
}

// Keypair is an ed25519 wallet key with its base58 public address.
type Keypair struct {
	priv ed25519.PrivateKey
	pub  string
}

// KeypairFromBase58 parses a base58-encoded 64-byte secret key.
func KeypairFromBase58(secret string) (*Keypair, error) {
	raw, err := base58.Decode(secret)
	if err != nil {
		return nil, fmt.Errorf("decode secret key: %w", err)
	}
	if len(raw) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("secret key: expected %d bytes, got %d", ed25519.PrivateKeySize, len(raw))
	}
	priv := ed25519.PrivateKey(raw)
	pub := base58.Encode(priv.Public().(ed25519.PublicKey))
	return &Keypair{priv: priv, pub: pub}, nil
}

// PublicKey returns the base58 public address.
func (k *Keypair) PublicKey() string { return k.pub }

// Sign signs a message with the wallet key.
func (k *Keypair) Sign(message []byte) []byte {
	return ed25519.Sign(k.priv, message)
}

// CreateProgramAddress computes the program address for the given seeds.
// It fails if the resulting point lies on the ed25519 curve.
func CreateProgramAddress(seeds [][]byte, programID []byte) (string, error) {
	data := make([]byte, 0, 64)
	for _, seed := range seeds {
		if len(seed) > 32 {
			return "", ErrMaxSeedLength
		}
		data = append(data, seed...)
	}
	data = append(data, programID...)
	data = append(data, []byte("ProgramDerivedAddress")...)

	hash := sha256.Sum256(data)
	if isOnCurve(hash[:]) {
		return "", errors.New("invalid seeds: address falls on the curve")
	}
	return base58.Encode(hash[:]), nil
}

// FindProgramAddress searches bump seeds 255..1 for a valid program address.
func FindProgramAddress(seeds [][]byte, programID []byte) (string, byte, error) {
	for bump := byte(255); bump > 0; bump-- {
		addr, err := CreateProgramAddress(append(seeds, []byte{bump}), programID)
		if err == nil {
			return addr, bump, nil
		}
		if errors.Is(err, ErrMaxSeedLength) {
			return "", 0, err
		}
	}
	return "", 0, errors.New("no valid program address found")
}

// AssociatedTokenAddress derives the associated token account for an owner
// and mint. Seeds: [owner, token program, mint] under the ATA program.
func AssociatedTokenAddress(owner, mint string) (string, error) {
	ownerBytes, err := DecodePubkey(owner)
	if err != nil {
		return "", err
	}
	mintBytes, err := DecodePubkey(mint)
	if err != nil {
		return "", err
	}
	tokenProgBytes, err := DecodePubkey(TokenProgram)
	if err != nil {
		return "", err
	}
	ataProgBytes, err := DecodePubkey(AssociatedTokenProgram)
	if err != nil {
		return "", err
	}

	addr, _, err := FindProgramAddress([][]byte{ownerBytes, tokenProgBytes, mintBytes}, ataProgBytes)
	if err != nil {
		return "", fmt.Errorf("derive associated token address: %w", err)
	}
	return addr, nil
}

func isOnCurve(point []byte) bool {
	if len(point) != 32 {
		return false
	}
	_, err := new(edwards25519.Point).SetBytes(point)
	return err == nil
}
