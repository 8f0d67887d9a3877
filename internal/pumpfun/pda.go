package pumpfun

import (
	"crypto/sha256"
	"errors"

	"filippo.io/edwards25519"
)

const pdaMarker = "ProgramDerivedAddress"

// ErrNoViableBump is returned when no bump yields an off-curve address.
var ErrNoViableBump = errors.New("unable to find a viable program address bump seed")

// FindProgramAddress derives the program address for seeds, trying bumps
// from 255 down to 0 and returning the first off-curve hash.
func FindProgramAddress(seeds [][]byte, program PublicKey) (PublicKey, uint8, error) {
	for bump := 255; bump >= 0; bump-- {
		h := sha256.New()
		for _, seed := range seeds {
			h.Write(seed)
		}
		h.Write([]byte{byte(bump)})
		h.Write(program[:])
		h.Write([]byte(pdaMarker))

		var candidate PublicKey
		copy(candidate[:], h.Sum(nil))
		if !isOnCurve(candidate[:]) {
			return candidate, uint8(bump), nil
		}
	}
	return PublicKey{}, 0, ErrNoViableBump
}

func isOnCurve(point []byte) bool {
	if len(point) != 32 {
		return false
	}
	_, err := new(edwards25519.Point).SetBytes(point)
	return err == nil
}

func mustDerive(seeds [][]byte, program PublicKey) PublicKey {
	pk, _, err := FindProgramAddress(seeds, program)
	if err != nil {
		// Unreachable for 32-byte seeds in practice.
		panic(err)
	}
	return pk
}

// BondingCurvePDA returns the curve account for mint.
func BondingCurvePDA(mint PublicKey) PublicKey {
	return mustDerive([][]byte{[]byte("bonding-curve"), mint[:]}, ProgramID)
}

// CreatorVaultPDA returns the fee vault of a token creator.
func CreatorVaultPDA(creator PublicKey) PublicKey {
	return mustDerive([][]byte{[]byte("creator-vault"), creator[:]}, ProgramID)
}

// MetadataPDA returns the token metadata account for mint.
func MetadataPDA(mint PublicKey) PublicKey {
	return mustDerive([][]byte{[]byte("metadata"), MetadataProgramID[:], mint[:]}, MetadataProgramID)
}

// AssociatedTokenAddress returns owner's associated token account for mint.
func AssociatedTokenAddress(owner, mint PublicKey) PublicKey {
	return mustDerive([][]byte{owner[:], TokenProgramID[:], mint[:]}, AssociatedTokenProgram)
}
