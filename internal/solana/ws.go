package solana

import "context"

// WSClient streams logsSubscribe notifications. Implementations reconnect
// and resubscribe on their own; the returned channel closes only when the
// client is closed.
type WSClient interface {
	SubscribeLogs(ctx context.Context, filter LogsFilter) (<-chan LogNotification, error)
	Close() error
}

// LogsFilter selects transactions that mention one of the given program ids.
type LogsFilter struct {
	Mentions []string
}

// LogNotification is one transaction's log lines. Err is the raw
// transaction error and is nil for successful transactions.
type LogNotification struct {
	Signature string
	Slot      int64
	Logs      []string
	Err       any
}
