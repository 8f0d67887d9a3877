package pumpfun

import (
	"fmt"

	"github.com/mr-tron/base58"
)

// PublicKey is a 32-byte account address.
type PublicKey [32]byte

// ParsePublicKey decodes a base58 address.
func ParsePublicKey(s string) (PublicKey, error) {
	var pk PublicKey
	raw, err := base58.Decode(s)
	if err != nil {
		return pk, fmt.Errorf("decode base58 %q: %w", s, err)
	}
	if len(raw) != 32 {
		return pk, fmt.Errorf("invalid public key length %d for %q", len(raw), s)
	}
	copy(pk[:], raw)
	return pk, nil
}

// MustPublicKey is ParsePublicKey for compile-time constants.
func MustPublicKey(s string) PublicKey {
	pk, err := ParsePublicKey(s)
	if err != nil {
		panic(err)
	}
	return pk
}

// String returns the base58 form.
func (k PublicKey) String() string {
	return base58.Encode(k[:])
}

// IsZero reports whether k is the all-zero key.
func (k PublicKey) IsZero() bool {
	return k == PublicKey{}
}

// Program and well-known account addresses.
var (
	ProgramID              = MustPublicKey("6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P")
	GlobalAccount          = MustPublicKey("4wTV1YmiEkRvAtNtsSGPtUrqRYQMe5SKy2uB4Jjaxnjf")
	FeeRecipient           = MustPublicKey("CebN5WGQ4jvEPvsVU4EoHEpgzq1VV7AbicfhtW4xC9iM")
	EventAuthority         = MustPublicKey("Ce6TQqeHC9p8KetsN6JsjHK7UTZk7nasjjnr7XxXp9F1")
	MetadataProgramID      = MustPublicKey("metaqbxxUerdq28cj1RbAWkYQm3ybzjb6a8bt518x1s")
	TokenProgramID         = MustPublicKey("TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA")
	AssociatedTokenProgram = MustPublicKey("ATokenGPvbdGVxr1b2hvZbsiqW5xWH25efTNsLJA8knL")
	SystemProgramID        = MustPublicKey("11111111111111111111111111111111")
	ComputeBudgetProgramID = MustPublicKey("ComputeBudget111111111111111111111111111111")
	NativeMint             = MustPublicKey("So11111111111111111111111111111111111111112")
)

const (
	// TokenSupply is the fixed supply of every curve token, in whole tokens.
	TokenSupply = 1_000_000_000
	// TokenDecimals is the mint decimals of every curve token.
	TokenDecimals = 6
	// LamportsPerSOL converts lamports to SOL.
	LamportsPerSOL = 1_000_000_000

	BuyDiscriminator  uint64 = 16927863322537952870
	SellDiscriminator uint64 = 12502976635542562355
)
