package execution

import (
	"context"
	"errors"
	"fmt"

	"pumpfun-engine/internal/solana"
)

// TxGetter reads confirmed transactions.
type TxGetter interface {
	GetTransaction(ctx context.Context, signature string) (*solana.Transaction, error)
}

// Confirm polls for sig until it is visible at confirmed commitment. A
// transaction that landed with an error is ErrOnChainRejected and is not
// polled again.
func Confirm(ctx context.Context, rpc TxGetter, sig string, policy RetryPolicy) (*solana.Transaction, error) {
	var confirmed *solana.Transaction
	err := policy.Do(ctx, func(int) error {
		tx, err := rpc.GetTransaction(ctx, sig)
		if err != nil {
			return err
		}
		if tx == nil {
			return ErrNotConfirmed
		}
		if tx.Meta != nil && tx.Meta.Err != nil {
			return Permanent(fmt.Errorf("%w: %v", ErrOnChainRejected, tx.Meta.Err))
		}
		confirmed = tx
		return nil
	})
	if err == nil {
		return confirmed, nil
	}
	if errors.Is(err, ErrOnChainRejected) || errors.Is(err, ErrNotConfirmed) || ctx.Err() != nil {
		return nil, fmt.Errorf("confirm %s: %w", sig, err)
	}
	return nil, fmt.Errorf("confirm %s: %w: %v", sig, ErrNotConfirmed, err)
}
