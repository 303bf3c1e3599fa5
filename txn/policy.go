package txn

import (
	"context"
	"time"

	"github.com/avast/retry-go/v4"
)

// RetryPolicy controls how many times a forward action is attempted before
// the operation is considered failed. Inverses are never retried: the
// rollback sweep runs each inverse exactly once and collects failures
// (see Transaction.Rollback).
type RetryPolicy struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts uint
	// Delay is the base delay between attempts.
	Delay time.Duration
}

// DefaultRetryPolicy returns the retry policy for an operation kind.
// Remote calls are retried because transient network failures are expected;
// local mutations are not, because a partially applied local side effect is
// exactly what the inverse exists to clean up.
func DefaultRetryPolicy(k Kind) RetryPolicy {
	switch k {
	case KindRemoteAPI, KindNetwork:
		return RetryPolicy{MaxAttempts: 3, Delay: 500 * time.Millisecond}
	case KindFileSystem, KindVersionControl, KindProcessExecution, KindConfiguration:
		return RetryPolicy{MaxAttempts: 1}
	}

	return RetryPolicy{MaxAttempts: 1}
}

// options returns the 'avast/retry' functional options for the policy.
func (p RetryPolicy) options(ctx context.Context) []retry.Option {
	return []retry.Option{
		retry.Attempts(p.MaxAttempts),
		retry.Delay(p.Delay),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
	}
}

// NewUnrecoverableError marks an error so the forward action is not retried
// even under a retrying policy. Useful for failures where a second attempt
// can only make things worse, e.g. a rejected push.
func NewUnrecoverableError(err error) error {
	return retry.Unrecoverable(err)
}
