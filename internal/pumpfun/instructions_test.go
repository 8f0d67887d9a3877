package pumpfun

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeBuy_Golden(t *testing.T) {
	data := EncodeBuy(1_000_000, 10_000_000)
	require.Len(t, data, InstructionSize)
	assert.Equal(t, "66063d1201daebea"+"40420f0000000000"+"8096980000000000", hex.EncodeToString(data))
}

func TestEncodeSell_Discriminator(t *testing.T) {
	data := EncodeSell(5, 0)
	require.Len(t, data, InstructionSize)
	assert.Equal(t, "33e685a4017f83ad", hex.EncodeToString(data[:8]))
	assert.Equal(t, "0500000000000000", hex.EncodeToString(data[8:16]))
	assert.Equal(t, "0000000000000000", hex.EncodeToString(data[16:]))
}

func TestAccountLayouts(t *testing.T) {
	user := MustPublicKey("9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM")
	accts := NewTradeAccounts(testMint, user, user)

	buy := BuyAccounts(accts)
	sell := SellAccounts(accts)
	require.Len(t, buy, 12)
	require.Len(t, sell, 12)

	assert.Equal(t, GlobalAccount, buy[0].PublicKey)
	assert.True(t, buy[1].IsWritable)
	assert.Equal(t, user, buy[6].PublicKey)
	assert.True(t, buy[6].IsSigner)
	assert.True(t, buy[6].IsWritable)
	assert.Equal(t, TokenProgramID, buy[8].PublicKey)
	assert.Equal(t, accts.CreatorVault, buy[9].PublicKey)
	assert.Equal(t, ProgramID, buy[11].PublicKey)

	assert.Equal(t, accts.CreatorVault, sell[8].PublicKey)
	assert.True(t, sell[8].IsWritable)
	assert.Equal(t, TokenProgramID, sell[9].PublicKey)
	assert.False(t, sell[9].IsWritable)

	signers := 0
	for _, m := range buy {
		if m.IsSigner {
			signers++
		}
	}
	assert.Equal(t, 1, signers)
}

func TestComputeBudgetData(t *testing.T) {
	assert.Equal(t, "02400d0300", hex.EncodeToString(SetComputeUnitLimitData(200_000)))
	assert.Equal(t, "0340420f0000000000", hex.EncodeToString(SetComputeUnitPriceData(1_000_000)))
}
