/*
Package txn provides the atomic transaction engine for shipstream workflows.

A Transaction groups a sequence of side-effecting operations against external
systems (a git working tree, a code-hosting API, a provisioning binary) into a
single logical unit. None of these systems offer native multi-step
transactions, so the engine implements saga-style rollback: every Operation
carries an inverse action, and any failure during execution drives a
deterministic reverse-order sweep of the inverses of everything already
applied.

# Core Components

Operation:
  - The smallest unit of work: a forward action, an idempotent inverse, and
    an optional post-condition predicate.
  - Declares prerequisite operation ids; the engine orders execution so that
    every operation runs after everything it depends on.
  - System state is captured around the forward action for post-mortem
    diagnostics.

Transaction:
  - A state machine owning an ordered list of operations. It moves through
    Prepare, Execute and Commit, and transitions to RollingBack on any
    failure.
  - Keeps an append-only audit trail of every state transition and operation
    outcome.
  - Strictly sequential: operations mutate shared external state, so the
    engine never runs them concurrently within one transaction.

Registry:
  - An explicit owner for live and finished transactions with a
    create/dispose lifecycle, so independent workflows do not share hidden
    state.

Emitter:
  - An optional hook invoked on terminal transaction states so dashboards or
    notifiers can react. Publishing is a silent no-op when no subscriber is
    registered.

# Basic Usage

	tx := txn.New("release v1.4.0", lggr)
	err := tx.AddOperation(txn.NewOperation(
		"create-branch", txn.KindVersionControl, "create release branch",
		action, inverse,
		txn.WithPostCondition(check),
	))
	if err != nil {
		return err
	}
	if err := tx.Prepare(ctx); err != nil {
		return err
	}
	return tx.Execute(ctx)

# Rollback Guarantees

Rollback is best effort. Version-control operations have natural, reliable
inverses. Code-hosting API operations generally do not (a created issue
cannot be un-created); their inverses close the created resource with an
explanatory comment and therefore carry weaker guarantees. If an inverse
itself fails during a sweep, the sweep continues, the failure is collected,
and the transaction ends in StateFailed with a RollbackError listing every
operation that could not be undone.
*/
package txn
