package stub

import (
	"context"
	"encoding/base64"
	"errors"
	"sync"

	"github.com/mr-tron/base58"

	"pumpfun-engine/internal/pumpfun"
	"pumpfun-engine/internal/solana"
)

// ErrUnavailable is a canned transport error for failure injection.
var ErrUnavailable = errors.New("stub rpc unavailable")

// RPCClient implements solana.RPCClient over in-memory maps for testing.
type RPCClient struct {
	mu sync.Mutex

	Transactions  map[string]*solana.Transaction
	Accounts      map[string]*solana.AccountInfo
	Balances      map[string]uint64
	TokenAccounts map[string][]solana.TokenAccount
	TokenBalances map[string]*solana.TokenAmount
	Fees          []solana.PrioritizationFee
	FeesErr       error
	AccountsErr   error
	Blockhash     string

	// SendHook overrides SendTransaction when set.
	SendHook func(raw []byte) (string, error)
	Sent     [][]byte

	calls map[string]int
}

var _ solana.RPCClient = (*RPCClient)(nil)

// NewRPCClient creates a new stub RPC client.
func NewRPCClient() *RPCClient {
	return &RPCClient{
		Transactions:  make(map[string]*solana.Transaction),
		Accounts:      make(map[string]*solana.AccountInfo),
		Balances:      make(map[string]uint64),
		TokenAccounts: make(map[string][]solana.TokenAccount),
		TokenBalances: make(map[string]*solana.TokenAmount),
		Blockhash:     "EtWTRABZaYq6iMfeYKouRu166VU2xqa1wcaWoxPkrZBG",
		calls:         make(map[string]int),
	}
}

func (c *RPCClient) record(method string) {
	c.calls[method]++
}

// Calls returns how many times method was invoked.
func (c *RPCClient) Calls(method string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[method]
}

// GetTransaction returns nil, nil for unknown signatures, as a node does for
// transactions it has not seen yet.
func (c *RPCClient) GetTransaction(_ context.Context, signature string) (*solana.Transaction, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.record("getTransaction")
	return c.Transactions[signature], nil
}

// GetAccountInfo returns a stored account or nil.
func (c *RPCClient) GetAccountInfo(_ context.Context, pubkey string) (*solana.AccountInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.record("getAccountInfo")
	if c.AccountsErr != nil {
		return nil, c.AccountsErr
	}
	return c.Accounts[pubkey], nil
}

// GetMultipleAccounts returns stored accounts in request order.
func (c *RPCClient) GetMultipleAccounts(_ context.Context, pubkeys []string) ([]*solana.AccountInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.record("getMultipleAccounts")
	if c.AccountsErr != nil {
		return nil, c.AccountsErr
	}
	out := make([]*solana.AccountInfo, len(pubkeys))
	for i, pk := range pubkeys {
		out[i] = c.Accounts[pk]
	}
	return out, nil
}

// GetBalance returns the stored lamport balance.
func (c *RPCClient) GetBalance(_ context.Context, pubkey string) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.record("getBalance")
	return c.Balances[pubkey], nil
}

// GetTokenAccountsByOwner returns stored token accounts filtered by mint.
func (c *RPCClient) GetTokenAccountsByOwner(_ context.Context, owner string, filter solana.TokenAccountsFilter) ([]solana.TokenAccount, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.record("getTokenAccountsByOwner")
	var out []solana.TokenAccount
	for _, a := range c.TokenAccounts[owner] {
		if filter.Mint != "" && a.Mint != filter.Mint {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

// GetTokenAccountBalance returns the stored token balance.
func (c *RPCClient) GetTokenAccountBalance(_ context.Context, account string) (*solana.TokenAmount, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.record("getTokenAccountBalance")
	bal, ok := c.TokenBalances[account]
	if !ok {
		return nil, errors.New("could not find account")
	}
	return bal, nil
}

// GetRecentPrioritizationFees returns the stored fee samples.
func (c *RPCClient) GetRecentPrioritizationFees(_ context.Context, _ []string) ([]solana.PrioritizationFee, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.record("getRecentPrioritizationFees")
	if c.FeesErr != nil {
		return nil, c.FeesErr
	}
	return append([]solana.PrioritizationFee(nil), c.Fees...), nil
}

// GetLatestBlockhash returns the stored blockhash.
func (c *RPCClient) GetLatestBlockhash(_ context.Context, _ string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.record("getLatestBlockhash")
	return c.Blockhash, nil
}

// SendTransaction records raw and returns its first signature.
func (c *RPCClient) SendTransaction(_ context.Context, raw []byte) (string, error) {
	c.mu.Lock()
	c.record("sendTransaction")
	c.Sent = append(c.Sent, raw)
	hook := c.SendHook
	c.mu.Unlock()

	if hook != nil {
		return hook(raw)
	}
	if len(raw) < 65 {
		return "", errors.New("transaction too short")
	}
	// Wire format: compact-u16 signature count, then 64-byte signatures.
	return base58.Encode(raw[1:65]), nil
}

// SetTransaction stores a transaction under its signature.
func (c *RPCClient) SetTransaction(tx *solana.Transaction) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Transactions[tx.Signature] = tx
}

// SetAccount stores account data for pubkey.
func (c *RPCClient) SetAccount(pubkey string, info *solana.AccountInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Accounts[pubkey] = info
}

// SetBalance stores a lamport balance.
func (c *RPCClient) SetBalance(pubkey string, lamports uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Balances[pubkey] = lamports
}

// SetTokenBalance stores a token account balance.
func (c *RPCClient) SetTokenBalance(account string, amount *solana.TokenAmount) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if amount == nil {
		delete(c.TokenBalances, account)
		return
	}
	c.TokenBalances[account] = amount
}

// SetTokenAccounts replaces the token accounts listed for owner.
func (c *RPCClient) SetTokenAccounts(owner string, accounts []solana.TokenAccount) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.TokenAccounts[owner] = accounts
}

// SetCurve stores an encoded bonding curve account for mint.
func (c *RPCClient) SetCurve(mint pumpfun.PublicKey, cs pumpfun.CurveState) {
	c.SetAccount(pumpfun.BondingCurvePDA(mint).String(), &solana.AccountInfo{
		Owner: pumpfun.ProgramID.String(),
		Data:  base64.StdEncoding.EncodeToString(pumpfun.EncodeBondingCurve(cs)),
	})
}
