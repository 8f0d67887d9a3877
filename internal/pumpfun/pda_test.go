package pumpfun

import (
	"testing"

	solanago "github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testMint = MustPublicKey("7GCihgDB8fe6KNjn2MYtkzZcRjQy3t9GHdC8uHYmW2hr")

func TestFindProgramAddress_MatchesReference(t *testing.T) {
	seeds := [][]byte{[]byte("bonding-curve"), testMint[:]}

	got, bump, err := FindProgramAddress(seeds, ProgramID)
	require.NoError(t, err)

	want, wantBump, err := solanago.FindProgramAddress(seeds, solanago.PublicKey(ProgramID))
	require.NoError(t, err)

	assert.Equal(t, want.String(), got.String())
	assert.Equal(t, wantBump, bump)
	assert.Equal(t, got, BondingCurvePDA(testMint))
}

func TestAssociatedTokenAddress_MatchesReference(t *testing.T) {
	wallet := MustPublicKey("9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM")

	want, _, err := solanago.FindAssociatedTokenAddress(solanago.PublicKey(wallet), solanago.PublicKey(testMint))
	require.NoError(t, err)

	assert.Equal(t, want.String(), AssociatedTokenAddress(wallet, testMint).String())
}

func TestDerivedAddressesAreOffCurve(t *testing.T) {
	creator := MustPublicKey("9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM")
	for name, pk := range map[string]PublicKey{
		"curve":    BondingCurvePDA(testMint),
		"vault":    CreatorVaultPDA(creator),
		"metadata": MetadataPDA(testMint),
	} {
		assert.False(t, isOnCurve(pk[:]), name)
	}
}

func TestParsePublicKey(t *testing.T) {
	pk, err := ParsePublicKey(ProgramID.String())
	require.NoError(t, err)
	assert.Equal(t, ProgramID, pk)

	_, err = ParsePublicKey("0OIl")
	assert.Error(t, err)

	_, err = ParsePublicKey("abc")
	assert.Error(t, err)

	assert.True(t, PublicKey{}.IsZero())
	assert.False(t, ProgramID.IsZero())
}
