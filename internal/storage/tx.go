package storage

import (
	"context"
	"time"

	dErrors "hemalink/pkg/domain-errors"
)

// DefaultTxTimeout bounds a transaction whose context carries no deadline.
const DefaultTxTimeout = 5 * time.Second

// TxContext applies the transaction timeout when ctx has no deadline and
// rejects already cancelled contexts. Callers must invoke the returned cancel.
func TxContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc, error) {
	if err := ctx.Err(); err != nil {
		return ctx, func() {}, dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	if timeout <= 0 {
		timeout = DefaultTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); hasDeadline {
		return ctx, func() {}, nil
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	return ctx, cancel, nil
}

// CheckTxContext is called after locks are acquired; waiting on a lock may
// have consumed the whole budget.
func CheckTxContext(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	return nil
}
