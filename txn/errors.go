package txn

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotInitializing is returned when adding an operation to a
	// transaction that has already been prepared.
	ErrNotInitializing = errors.New("transaction is no longer accepting operations")

	// ErrOperationLimit is returned when adding an operation would exceed
	// the configured operation ceiling.
	ErrOperationLimit = errors.New("transaction operation limit exceeded")

	// ErrDuplicateOperation is returned when an operation id is already
	// present in the transaction.
	ErrDuplicateOperation = errors.New("duplicate operation id")

	// ErrDanglingDependency is returned at prepare time when an operation
	// depends on an id that does not exist in the transaction.
	ErrDanglingDependency = errors.New("dependency does not resolve to an operation in this transaction")

	// ErrDependencyCycle is returned at prepare time when the operations
	// cannot be linearized.
	ErrDependencyCycle = errors.New("dependency cycle detected")

	// ErrInvalidTransition is returned when a lifecycle method is called
	// from a state it is not valid in.
	ErrInvalidTransition = errors.New("invalid transaction state transition")

	// ErrInvalidOperation is returned at prepare time when an operation is
	// structurally incomplete (missing id, action or inverse).
	ErrInvalidOperation = errors.New("invalid operation")

	// ErrPostConditionFailed is returned when an operation's post-condition
	// predicate reports false.
	ErrPostConditionFailed = errors.New("post-condition not satisfied")

	// ErrSchedulingInvariant is returned when an operation is reached before
	// all of its declared dependencies completed. This is a coordinator bug,
	// never an expected runtime condition.
	ErrSchedulingInvariant = errors.New("scheduling invariant violated")
)

// RollbackError is the most severe failure the engine reports: one or more
// inverses failed during a rollback sweep, so the external systems may be
// left partially mutated and a human must intervene directly.
type RollbackError struct {
	// Cause is the failure that triggered the rollback.
	Cause error
	// FailedOps lists the ids of operations whose inverse failed, in sweep
	// order.
	FailedOps []string
	// Errs aggregates the individual inverse failures.
	Errs error
}

// Error implements the error interface.
func (e *RollbackError) Error() string {
	return fmt.Sprintf("rollback failed for operations [%s] (triggered by: %v): %v",
		strings.Join(e.FailedOps, ", "), e.Cause, e.Errs)
}

// Unwrap returns the aggregated inverse failures.
func (e *RollbackError) Unwrap() error {
	return e.Errs
}
