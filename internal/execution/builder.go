package execution

import (
	"fmt"

	solanago "github.com/gagliardetto/solana-go"
	associatedtokenaccount "github.com/gagliardetto/solana-go/programs/associated-token-account"
	"github.com/gagliardetto/solana-go/programs/token"

	"pumpfun-engine/internal/pumpfun"
)

// SignedTx is a serialized, signed legacy transaction.
type SignedTx struct {
	Raw       []byte
	Signature string
}

// BuyTx describes a buy transaction.
type BuyTx struct {
	Accounts   pumpfun.TradeAccounts
	Tokens     uint64
	MaxSolCost uint64
	Budget     *ComputeBudget
	CreateATA  bool
}

// SellTx describes a sell transaction. CloseATA reclaims the token account
// rent and is only valid when the whole balance is sold.
type SellTx struct {
	Accounts  pumpfun.TradeAccounts
	Tokens    uint64
	MinSolOut uint64
	Budget    *ComputeBudget
	CloseATA  bool
}

// Builder assembles and signs trade transactions for one wallet.
type Builder struct {
	key    solanago.PrivateKey
	wallet solanago.PublicKey
}

// NewBuilder decodes a base58 wallet secret key.
func NewBuilder(privateKey string) (*Builder, error) {
	key, err := solanago.PrivateKeyFromBase58(privateKey)
	if err != nil {
		return nil, fmt.Errorf("decode wallet key: %w", err)
	}
	return &Builder{key: key, wallet: key.PublicKey()}, nil
}

// Wallet returns the signing wallet's address.
func (b *Builder) Wallet() pumpfun.PublicKey {
	return pumpfun.PublicKey(b.wallet)
}

// Buy builds: compute budget, optional ATA create, buy.
func (b *Builder) Buy(blockhash string, tx BuyTx) (SignedTx, error) {
	var instrs []solanago.Instruction
	instrs = appendBudget(instrs, tx.Budget)
	if tx.CreateATA {
		instrs = append(instrs, associatedtokenaccount.NewCreateInstruction(
			b.wallet,
			b.wallet,
			solanago.PublicKey(tx.Accounts.Mint),
		).Build())
	}
	instrs = append(instrs, programInstruction(
		pumpfun.BuyAccounts(tx.Accounts),
		pumpfun.EncodeBuy(tx.Tokens, tx.MaxSolCost),
	))
	return b.assemble(blockhash, instrs)
}

// Sell builds: compute budget, sell, optional ATA close.
func (b *Builder) Sell(blockhash string, tx SellTx) (SignedTx, error) {
	var instrs []solanago.Instruction
	instrs = appendBudget(instrs, tx.Budget)
	instrs = append(instrs, programInstruction(
		pumpfun.SellAccounts(tx.Accounts),
		pumpfun.EncodeSell(tx.Tokens, tx.MinSolOut),
	))
	if tx.CloseATA {
		instrs = append(instrs, token.NewCloseAccountInstruction(
			solanago.PublicKey(tx.Accounts.UserTokenAccount),
			b.wallet,
			b.wallet,
			[]solanago.PublicKey{},
		).Build())
	}
	return b.assemble(blockhash, instrs)
}

func (b *Builder) assemble(blockhash string, instrs []solanago.Instruction) (SignedTx, error) {
	hash, err := solanago.HashFromBase58(blockhash)
	if err != nil {
		return SignedTx{}, fmt.Errorf("parse blockhash: %w", err)
	}

	tx, err := solanago.NewTransaction(instrs, hash, solanago.TransactionPayer(b.wallet))
	if err != nil {
		return SignedTx{}, fmt.Errorf("create transaction: %w", err)
	}
	if _, err := tx.Sign(func(key solanago.PublicKey) *solanago.PrivateKey {
		if key.Equals(b.wallet) {
			return &b.key
		}
		return nil
	}); err != nil {
		return SignedTx{}, fmt.Errorf("sign transaction: %w", err)
	}

	raw, err := tx.MarshalBinary()
	if err != nil {
		return SignedTx{}, fmt.Errorf("serialize transaction: %w", err)
	}
	return SignedTx{Raw: raw, Signature: tx.Signatures[0].String()}, nil
}

func appendBudget(instrs []solanago.Instruction, budget *ComputeBudget) []solanago.Instruction {
	if budget == nil {
		return instrs
	}
	program := solanago.PublicKey(pumpfun.ComputeBudgetProgramID)
	return append(instrs,
		&solanago.GenericInstruction{ProgID: program, DataBytes: pumpfun.SetComputeUnitLimitData(budget.UnitLimit)},
		&solanago.GenericInstruction{ProgID: program, DataBytes: pumpfun.SetComputeUnitPriceData(budget.UnitPrice)},
	)
}

func programInstruction(metas []pumpfun.AccountMeta, data []byte) solanago.Instruction {
	accounts := make(solanago.AccountMetaSlice, len(metas))
	for i, m := range metas {
		accounts[i] = &solanago.AccountMeta{
			PublicKey:  solanago.PublicKey(m.PublicKey),
			IsSigner:   m.IsSigner,
			IsWritable: m.IsWritable,
		}
	}
	return &solanago.GenericInstruction{
		AccountValues: accounts,
		ProgID:        solanago.PublicKey(pumpfun.ProgramID),
		DataBytes:     data,
	}
}
