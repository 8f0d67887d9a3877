package pumpfun

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func curveBytes(vTok, vSol, rTok, rSol, supply uint64, complete bool, creator *PublicKey) []byte {
	data := make([]byte, 8, 81)
	for _, v := range []uint64{vTok, vSol, rTok, rSol, supply} {
		data = binary.LittleEndian.AppendUint64(data, v)
	}
	if complete {
		data = append(data, 1)
	} else {
		data = append(data, 0)
	}
	if creator != nil {
		data = append(data, creator[:]...)
	}
	return data
}

func TestDecodeBondingCurve(t *testing.T) {
	creator := MustPublicKey("9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM")
	cs, err := DecodeBondingCurve(curveBytes(testVTok, testVSol, 793_100_000_000_000, 0, 1_000_000_000_000_000, false, &creator))
	require.NoError(t, err)

	assert.Equal(t, testVTok, cs.VirtualTokenReserves)
	assert.Equal(t, testVSol, cs.VirtualSolReserves)
	assert.Equal(t, uint64(793_100_000_000_000), cs.RealTokenReserves)
	assert.False(t, cs.Complete)
	assert.True(t, cs.HasCreator)
	assert.Equal(t, creator, cs.Creator)
	require.NoError(t, cs.Validate())

	assert.InDelta(t, 2.7958e-8, cs.Price(), 1e-15)
	assert.Equal(t, uint64(27_958_000_000), cs.MarketCapLamports())
	assert.InDelta(t, 27.958, cs.MarketCapSOL(), 1e-9)
}

func TestDecodeBondingCurve_NoCreator(t *testing.T) {
	cs, err := DecodeBondingCurve(curveBytes(1, 1, 0, 0, 1, true, nil))
	require.NoError(t, err)
	assert.True(t, cs.Complete)
	assert.False(t, cs.HasCreator)
}

func TestDecodeBondingCurve_Short(t *testing.T) {
	_, err := DecodeBondingCurve(make([]byte, 40))
	assert.ErrorIs(t, err, ErrInvalidAccount)
}

func TestCurveState_Validate(t *testing.T) {
	assert.ErrorIs(t, CurveState{VirtualSolReserves: 1, TokenTotalSupply: 1}.Validate(), ErrZeroReserves)
	assert.ErrorIs(t, CurveState{VirtualSolReserves: 1, VirtualTokenReserves: 1}.Validate(), ErrInvalidAccount)
	assert.Zero(t, CurveState{}.Price())
}

func metadataBytes(fields ...string) []byte {
	data := make([]byte, metadataHeader)
	data[0] = 4
	for _, f := range fields {
		data = binary.LittleEndian.AppendUint32(data, uint32(len(f)))
		data = append(data, f...)
	}
	return data
}

func TestDecodeMetadata(t *testing.T) {
	md, err := DecodeMetadata(metadataBytes("Doge Coin\x00\x00\x00", "DOGE\x00", "https://x"))
	require.NoError(t, err)
	assert.Equal(t, "Doge Coin", md.Name)
	assert.Equal(t, "DOGE", md.Symbol)
}

func TestDecodeMetadata_FixedWidthFallback(t *testing.T) {
	data := make([]byte, metadataHeader)
	name := make([]byte, metadataNameLen)
	copy(name, "\xff\xff\xff\xffPepe")
	data = append(data, name...)
	symbol := make([]byte, metadataSymbLen)
	copy(symbol, "PEPE")
	data = append(data, symbol...)

	md, err := DecodeMetadata(data)
	require.NoError(t, err)
	assert.Contains(t, md.Name, "Pepe")
	assert.Equal(t, "PEPE", md.Symbol)
}

func TestDecodeMetadata_TooShort(t *testing.T) {
	_, err := DecodeMetadata(make([]byte, 10))
	assert.ErrorIs(t, err, ErrInvalidAccount)
}
