package solana

import "context"

// RPCClient defines the Solana RPC HTTP interface used by the engine.
type RPCClient interface {
	// GetTransaction retrieves a confirmed transaction by signature.
	// Returns nil when the transaction is not yet visible.
	GetTransaction(ctx context.Context, signature string) (*Transaction, error)

	// GetAccountInfo retrieves a single account. Returns nil if absent.
	GetAccountInfo(ctx context.Context, pubkey string) (*AccountInfo, error)

	// GetMultipleAccounts retrieves accounts in one round trip.
	// Missing accounts are nil entries at their index.
	GetMultipleAccounts(ctx context.Context, pubkeys []string) ([]*AccountInfo, error)

	// GetBalance returns the lamport balance of an account.
	GetBalance(ctx context.Context, pubkey string) (uint64, error)

	// GetTokenAccountsByOwner lists parsed SPL token accounts of owner.
	GetTokenAccountsByOwner(ctx context.Context, owner string, filter TokenAccountsFilter) ([]TokenAccount, error)

	// GetTokenAccountBalance returns the balance of a token account.
	GetTokenAccountBalance(ctx context.Context, account string) (*TokenAmount, error)

	// GetRecentPrioritizationFees returns per-slot fee samples.
	GetRecentPrioritizationFees(ctx context.Context, accounts []string) ([]PrioritizationFee, error)

	// GetLatestBlockhash returns a recent blockhash at the given commitment.
	GetLatestBlockhash(ctx context.Context, commitment string) (string, error)

	// SendTransaction submits a signed wire transaction and returns its signature.
	SendTransaction(ctx context.Context, raw []byte) (string, error)
}
