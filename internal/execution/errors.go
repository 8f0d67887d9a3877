package execution

import "errors"

var (
	// ErrOnChainRejected means the transaction landed with a program error.
	ErrOnChainRejected = errors.New("transaction rejected on chain")
	// ErrNotConfirmed means the transaction never became visible.
	ErrNotConfirmed = errors.New("transaction not confirmed")
	// ErrInsufficientBalance means the wallet cannot cover the trade and fees.
	ErrInsufficientBalance = errors.New("insufficient SOL balance")
	// ErrNothingToSell means the wallet's token account is empty or missing.
	ErrNothingToSell = errors.New("no tokens to sell")
	// ErrSellAbandoned means every sell attempt failed.
	ErrSellAbandoned = errors.New("sell abandoned")
	// ErrWalletNotInTransaction means a fill cannot be attributed to the wallet.
	ErrWalletNotInTransaction = errors.New("wallet not found in transaction")
)
