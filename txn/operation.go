package txn

import (
	"context"
	"fmt"

	"github.com/avast/retry-go/v4"

	"github.com/shipstream/shipstream/pkg/logger"
)

// Action is a side-effecting call against an external system. Forward
// actions may fail; inverse actions must be idempotent and must tolerate a
// starting state where the forward action never ran or only partially
// applied.
type Action func(ctx context.Context) error

// PostCondition verifies that an action's side effect is actually in place.
// It is run immediately after the forward action and again during commit.
type PostCondition func(ctx context.Context) (bool, error)

// Operation is the atomic unit the coordinator schedules and can undo: a
// forward action, its inverse, and an optional post-condition, bound to a
// unique id and a declared set of prerequisite operation ids.
//
// Operations are typed command objects: all context they need is passed
// explicitly at construction, not captured from surrounding caller state.
// An Operation belongs to exactly one Transaction and is driven strictly
// sequentially by it; it is not safe for concurrent use on its own.
type Operation struct {
	id            string
	kind          Kind
	description   string
	action        Action
	inverse       Action
	postCondition PostCondition
	dependencies  []string
	retryPolicy   RetryPolicy

	preState  *Snapshot
	postState *Snapshot

	attempted  bool
	completed  bool
	rolledBack bool
	lastErr    error

	// inverseRan guards the idempotence of Rollback: the inverse's external
	// effect is applied at most once per operation.
	inverseRan  bool
	rollbackErr error
}

// OperationOption configures an Operation at construction.
type OperationOption func(*Operation)

// WithPostCondition sets the verification predicate run after the forward
// action and again at commit.
func WithPostCondition(pc PostCondition) OperationOption {
	return func(o *Operation) {
		o.postCondition = pc
	}
}

// WithDependencies declares the ids of operations that must complete before
// this one runs. Duplicates are dropped, order of first mention is kept.
func WithDependencies(ids ...string) OperationOption {
	return func(o *Operation) {
		seen := make(map[string]struct{}, len(ids))
		for _, id := range ids {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			o.dependencies = append(o.dependencies, id)
		}
	}
}

// WithRetryPolicy overrides the kind's default retry policy for the forward
// action.
func WithRetryPolicy(p RetryPolicy) OperationOption {
	return func(o *Operation) {
		o.retryPolicy = p
	}
}

// NewOperation creates an operation. The action and inverse are required;
// a missing one is rejected at Prepare time by the owning transaction.
func NewOperation(id string, kind Kind, description string, action, inverse Action, opts ...OperationOption) *Operation {
	op := &Operation{
		id:          id,
		kind:        kind,
		description: description,
		action:      action,
		inverse:     inverse,
		retryPolicy: DefaultRetryPolicy(kind),
	}
	for _, opt := range opts {
		opt(op)
	}

	return op
}

// ID returns the operation id, unique within its transaction.
func (o *Operation) ID() string { return o.id }

// Kind returns the operation classification.
func (o *Operation) Kind() Kind { return o.kind }

// Description returns the human-readable intent.
func (o *Operation) Description() string { return o.description }

// Dependencies returns the declared prerequisite ids in declaration order.
func (o *Operation) Dependencies() []string {
	deps := make([]string, len(o.dependencies))
	copy(deps, o.dependencies)

	return deps
}

// Attempted reports whether Execute was ever called.
func (o *Operation) Attempted() bool { return o.attempted }

// Completed reports whether the forward action succeeded.
func (o *Operation) Completed() bool { return o.completed }

// RolledBack reports whether the inverse succeeded.
func (o *Operation) RolledBack() bool { return o.rolledBack }

// Err returns the last forward-action or validation error.
func (o *Operation) Err() error { return o.lastErr }

// PreState returns the snapshot captured before the forward action, or nil
// if capture failed or Execute never ran.
func (o *Operation) PreState() *Snapshot { return o.preState }

// PostState returns the snapshot captured after the forward action
// succeeded, or nil.
func (o *Operation) PostState() *Snapshot { return o.postState }

// precheck verifies the operation is structurally complete. Run once per
// operation during Prepare.
func (o *Operation) precheck() error {
	switch {
	case o.id == "":
		return fmt.Errorf("%w: empty id", ErrInvalidOperation)
	case o.action == nil:
		return fmt.Errorf("%w: operation %q has no action", ErrInvalidOperation, o.id)
	case o.inverse == nil:
		return fmt.Errorf("%w: operation %q has no inverse", ErrInvalidOperation, o.id)
	}

	return nil
}

// Execute captures the pre-state, invokes the forward action under the
// operation's retry policy and, on success, captures the post-state and
// marks the operation completed. On failure the error is recorded and
// returned; Execute never attempts rollback itself, so the coordinator can
// preserve reverse-order guarantees across operations.
func (o *Operation) Execute(ctx context.Context, capturer Capturer, lggr logger.Logger) error {
	o.attempted = true

	o.preState = o.captureState(ctx, capturer, lggr, "pre")

	var err error
	if o.retryPolicy.MaxAttempts > 1 {
		err = retry.Do(func() error {
			return o.action(ctx)
		}, append(o.retryPolicy.options(ctx), retry.OnRetry(func(attempt uint, err error) {
			lggr.Infow("Operation failed, retrying", "operation", o.id, "attempt", attempt, "error", err)
		}))...)
	} else {
		err = o.action(ctx)
	}
	if err != nil {
		o.lastErr = err

		return fmt.Errorf("operation %q: %w", o.id, err)
	}

	o.postState = o.captureState(ctx, capturer, lggr, "post")
	o.completed = true

	return nil
}

// Validate runs the post-condition if one is present. A predicate that
// returns false or errors means the side effect cannot be trusted, which
// the coordinator treats identically to an execution failure.
func (o *Operation) Validate(ctx context.Context) error {
	if o.postCondition == nil {
		return nil
	}

	ok, err := o.postCondition(ctx)
	if err != nil {
		return fmt.Errorf("operation %q post-condition: %w", o.id, err)
	}
	if !ok {
		return fmt.Errorf("operation %q: %w", o.id, ErrPostConditionFailed)
	}

	return nil
}

// Rollback invokes the inverse action. It may be called even if Execute
// never ran or failed mid-way; inverses are required to tolerate a no-op
// starting state. A second call does not re-apply the inverse's external
// effect and returns the first call's result.
func (o *Operation) Rollback(ctx context.Context, lggr logger.Logger) error {
	if o.inverseRan {
		return o.rollbackErr
	}
	o.inverseRan = true

	lggr.Infow("Rolling back operation", "operation", o.id, "kind", o.kind.String())

	if err := o.inverse(ctx); err != nil {
		o.rollbackErr = fmt.Errorf("operation %q rollback: %w", o.id, err)

		return o.rollbackErr
	}

	o.rolledBack = true

	return nil
}

func (o *Operation) captureState(ctx context.Context, capturer Capturer, lggr logger.Logger, phase string) *Snapshot {
	if capturer == nil {
		return nil
	}

	snap, err := capturer.Capture(ctx)
	if err != nil {
		// Snapshots are diagnostic, not load-bearing; a capture failure must
		// not fail the operation.
		lggr.Warnw("Failed to capture state snapshot", "operation", o.id, "phase", phase, "error", err)

		return nil
	}

	return snap
}
