package pumpfun

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"
	"strings"
)

// ErrInvalidAccount is returned for account data that cannot be decoded.
var ErrInvalidAccount = errors.New("invalid account data")

const (
	curveHeaderSize  = 8
	curveMinSize     = curveHeaderSize + 5*8 + 1
	metadataHeader   = 1 + 32 + 32
	metadataNameLen  = 32
	metadataSymbLen  = 10
	maxMetadataField = 200
)

// CurveState is a decoded bonding-curve account.
type CurveState struct {
	VirtualTokenReserves uint64
	VirtualSolReserves   uint64
	RealTokenReserves    uint64
	RealSolReserves      uint64
	TokenTotalSupply     uint64
	Complete             bool
	Creator              PublicKey
	HasCreator           bool
}

// DecodeBondingCurve parses curve account data.
func DecodeBondingCurve(data []byte) (CurveState, error) {
	if len(data) < curveMinSize {
		return CurveState{}, fmt.Errorf("%w: bonding curve is %d bytes", ErrInvalidAccount, len(data))
	}
	off := curveHeaderSize
	next := func() uint64 {
		v := binary.LittleEndian.Uint64(data[off : off+8])
		off += 8
		return v
	}

	var cs CurveState
	cs.VirtualTokenReserves = next()
	cs.VirtualSolReserves = next()
	cs.RealTokenReserves = next()
	cs.RealSolReserves = next()
	cs.TokenTotalSupply = next()
	cs.Complete = data[off] == 1
	off++

	if off+32 <= len(data) {
		copy(cs.Creator[:], data[off:off+32])
		cs.HasCreator = true
	}
	return cs, nil
}

// EncodeBondingCurve is the inverse of DecodeBondingCurve with a zero header.
func EncodeBondingCurve(cs CurveState) []byte {
	data := make([]byte, curveHeaderSize, curveMinSize+32)
	for _, v := range []uint64{cs.VirtualTokenReserves, cs.VirtualSolReserves, cs.RealTokenReserves, cs.RealSolReserves, cs.TokenTotalSupply} {
		data = binary.LittleEndian.AppendUint64(data, v)
	}
	if cs.Complete {
		data = append(data, 1)
	} else {
		data = append(data, 0)
	}
	if cs.HasCreator {
		data = append(data, cs.Creator[:]...)
	}
	return data
}

var (
	scale9  = big.NewInt(1_000_000_000)
	scale12 = new(big.Float).SetInt64(1_000_000_000_000)
)

// priceScaled is vSol*1e9/vTok using integer division.
func (c CurveState) priceScaled() *big.Int {
	if c.VirtualTokenReserves == 0 {
		return new(big.Int)
	}
	p := new(big.Int).Mul(new(big.Int).SetUint64(c.VirtualSolReserves), scale9)
	return p.Quo(p, new(big.Int).SetUint64(c.VirtualTokenReserves))
}

// Price returns the spot price in SOL per whole token.
func (c CurveState) Price() float64 {
	f := new(big.Float).SetInt(c.priceScaled())
	f.Quo(f, scale12)
	v, _ := f.Float64()
	return v
}

// MarketCapLamports returns the curve-implied market cap in lamports.
func (c CurveState) MarketCapLamports() uint64 {
	mc := new(big.Int).Mul(c.priceScaled(), new(big.Int).SetUint64(c.TokenTotalSupply))
	mc.Quo(mc, scale9)
	if !mc.IsUint64() {
		return ^uint64(0)
	}
	return mc.Uint64()
}

// MarketCapSOL returns the curve-implied market cap in SOL.
func (c CurveState) MarketCapSOL() float64 {
	return float64(c.MarketCapLamports()) / LamportsPerSOL
}

// Validate rejects curves that cannot be priced.
func (c CurveState) Validate() error {
	if c.VirtualTokenReserves == 0 || c.VirtualSolReserves == 0 {
		return ErrZeroReserves
	}
	if c.TokenTotalSupply == 0 {
		return fmt.Errorf("%w: zero total supply", ErrInvalidAccount)
	}
	return nil
}

// Metadata holds the display fields of a token metadata account.
type Metadata struct {
	Name   string
	Symbol string
}

// DecodeMetadata reads the length-prefixed name and symbol, falling back to
// fixed-width fields when the prefixes are inconsistent with the data.
func DecodeMetadata(data []byte) (Metadata, error) {
	if md, err := decodeBorshMetadata(data); err == nil {
		return md, nil
	}
	if len(data) < metadataHeader {
		return Metadata{}, fmt.Errorf("%w: metadata is %d bytes", ErrInvalidAccount, len(data))
	}
	off := metadataHeader
	name := data[off:min(off+metadataNameLen, len(data))]
	off += metadataNameLen
	var symbol []byte
	if off < len(data) {
		symbol = data[off:min(off+metadataSymbLen, len(data))]
	}
	return Metadata{Name: cleanField(name), Symbol: cleanField(symbol)}, nil
}

func decodeBorshMetadata(data []byte) (Metadata, error) {
	off := metadataHeader
	readString := func() (string, error) {
		if off+4 > len(data) {
			return "", ErrInvalidAccount
		}
		n := int(binary.LittleEndian.Uint32(data[off:]))
		off += 4
		if n > maxMetadataField || off+n > len(data) {
			return "", ErrInvalidAccount
		}
		s := cleanField(data[off : off+n])
		off += n
		return s, nil
	}

	name, err := readString()
	if err != nil {
		return Metadata{}, err
	}
	symbol, err := readString()
	if err != nil {
		return Metadata{}, err
	}
	return Metadata{Name: name, Symbol: symbol}, nil
}

func cleanField(b []byte) string {
	return strings.TrimSpace(strings.ReplaceAll(string(b), "\x00", ""))
}
