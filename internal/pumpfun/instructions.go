package pumpfun

import "encoding/binary"

// InstructionSize is the byte length of a buy or sell payload.
const InstructionSize = 24

// AccountMeta is one positional account of an instruction.
type AccountMeta struct {
	PublicKey  PublicKey
	IsSigner   bool
	IsWritable bool
}

// TradeAccounts are the per-trade addresses the program requires.
type TradeAccounts struct {
	Mint                   PublicKey
	BondingCurve           PublicKey
	AssociatedBondingCurve PublicKey
	UserTokenAccount       PublicKey
	User                   PublicKey
	CreatorVault           PublicKey
}

// NewTradeAccounts derives every per-trade address from mint, user and creator.
func NewTradeAccounts(mint, user, creator PublicKey) TradeAccounts {
	curve := BondingCurvePDA(mint)
	return TradeAccounts{
		Mint:                   mint,
		BondingCurve:           curve,
		AssociatedBondingCurve: AssociatedTokenAddress(curve, mint),
		UserTokenAccount:       AssociatedTokenAddress(user, mint),
		User:                   user,
		CreatorVault:           CreatorVaultPDA(creator),
	}
}

func encode(discriminator, amount, bound uint64) []byte {
	data := make([]byte, InstructionSize)
	binary.LittleEndian.PutUint64(data[0:8], discriminator)
	binary.LittleEndian.PutUint64(data[8:16], amount)
	binary.LittleEndian.PutUint64(data[16:24], bound)
	return data
}

// EncodeBuy returns the buy payload: discriminator, token amount, max SOL cost.
func EncodeBuy(tokens, maxSolCost uint64) []byte {
	return encode(BuyDiscriminator, tokens, maxSolCost)
}

// EncodeSell returns the sell payload: discriminator, token amount, min SOL output.
func EncodeSell(tokens, minSolOut uint64) []byte {
	return encode(SellDiscriminator, tokens, minSolOut)
}

// BuyAccounts returns the buy instruction's account list.
func BuyAccounts(a TradeAccounts) []AccountMeta {
	return []AccountMeta{
		{PublicKey: GlobalAccount},
		{PublicKey: FeeRecipient, IsWritable: true},
		{PublicKey: a.Mint},
		{PublicKey: a.BondingCurve, IsWritable: true},
		{PublicKey: a.AssociatedBondingCurve, IsWritable: true},
		{PublicKey: a.UserTokenAccount, IsWritable: true},
		{PublicKey: a.User, IsSigner: true, IsWritable: true},
		{PublicKey: SystemProgramID},
		{PublicKey: TokenProgramID},
		{PublicKey: a.CreatorVault, IsWritable: true},
		{PublicKey: EventAuthority},
		{PublicKey: ProgramID},
	}
}

// SellAccounts returns the sell instruction's account list. It matches the
// buy layout with the creator vault and token program positions swapped.
func SellAccounts(a TradeAccounts) []AccountMeta {
	return []AccountMeta{
		{PublicKey: GlobalAccount},
		{PublicKey: FeeRecipient, IsWritable: true},
		{PublicKey: a.Mint},
		{PublicKey: a.BondingCurve, IsWritable: true},
		{PublicKey: a.AssociatedBondingCurve, IsWritable: true},
		{PublicKey: a.UserTokenAccount, IsWritable: true},
		{PublicKey: a.User, IsSigner: true, IsWritable: true},
		{PublicKey: SystemProgramID},
		{PublicKey: a.CreatorVault, IsWritable: true},
		{PublicKey: TokenProgramID},
		{PublicKey: EventAuthority},
		{PublicKey: ProgramID},
	}
}

// SetComputeUnitLimitData encodes a compute budget unit limit instruction.
func SetComputeUnitLimitData(units uint32) []byte {
	data := make([]byte, 5)
	data[0] = 2
	binary.LittleEndian.PutUint32(data[1:], units)
	return data
}

// SetComputeUnitPriceData encodes a compute budget unit price instruction.
func SetComputeUnitPriceData(microLamports uint64) []byte {
	data := make([]byte, 9)
	data[0] = 3
	binary.LittleEndian.PutUint64(data[1:], microLamports)
	return data
}
