package txn

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/shipstream/shipstream/pkg/logger"
)

const (
	// DefaultMaxOperations bounds pathological transactions.
	DefaultMaxOperations = 100

	// DefaultTimeout is the advisory transaction timeout. The engine does
	// not enforce it; it is surfaced for the surrounding workflow to decide
	// when to give up waiting on the whole transaction.
	DefaultTimeout = 30 * time.Minute
)

// errCallerRollback is the cause recorded when the caller explicitly rolls
// back an executed transaction instead of committing it.
var errCallerRollback = errors.New("rollback requested by caller")

// Metrics summarizes a transaction's outcome.
type Metrics struct {
	TotalOps  int           `json:"totalOps"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
	Duration  time.Duration `json:"duration"`
}

// Transaction is the coordinator: a state machine owning an ordered list of
// operations, executed strictly sequentially and rolled back as a unit on
// any failure. All methods are safe for concurrent use, but operations
// within one transaction never run concurrently with each other — they
// mutate shared external state, and concurrent mutation is the very
// inconsistency the engine exists to prevent.
type Transaction struct {
	mu sync.Mutex

	id            string
	description   string
	state         State
	isolation     IsolationLevel
	timeout       time.Duration
	maxOperations int
	autoCommit    bool

	operations []*Operation
	// order is the dependency-resolved execution order, fixed at Prepare.
	order []*Operation
	// completed records operations in completion order; rollback walks it
	// in reverse.
	completed []*Operation

	audit    *auditRecorder
	emitter  Emitter
	capturer Capturer
	lggr     logger.Logger
	clock    func() time.Time

	// executed is set when every operation succeeded but auto-commit is off
	// and the transaction is awaiting an explicit Commit.
	executed  bool
	startedAt time.Time
	metrics   Metrics
	lastErr   error
}

// Option configures a Transaction at construction.
type Option func(*Transaction)

// WithID sets a caller-supplied transaction id instead of a generated one.
func WithID(id string) Option {
	return func(t *Transaction) { t.id = id }
}

// WithIsolationLevel sets the advisory isolation level.
func WithIsolationLevel(l IsolationLevel) Option {
	return func(t *Transaction) { t.isolation = l }
}

// WithTimeout sets the advisory transaction timeout.
func WithTimeout(d time.Duration) Option {
	return func(t *Transaction) { t.timeout = d }
}

// WithMaxOperations sets the operation ceiling.
func WithMaxOperations(n int) Option {
	return func(t *Transaction) { t.maxOperations = n }
}

// WithEmitter registers the subscriber for terminal-state events.
func WithEmitter(e Emitter) Option {
	return func(t *Transaction) { t.emitter = e }
}

// WithCapturer sets the snapshot capturer used around every operation.
func WithCapturer(c Capturer) Option {
	return func(t *Transaction) { t.capturer = c }
}

// WithAutoCommit controls whether Execute commits automatically once every
// operation succeeds. When disabled the transaction stays in Executing until
// the caller inspects results and calls Commit (or Rollback).
func WithAutoCommit(enabled bool) Option {
	return func(t *Transaction) { t.autoCommit = enabled }
}

// WithClock overrides the time source. Intended for tests.
func WithClock(clock func() time.Time) Option {
	return func(t *Transaction) { t.clock = clock }
}

// New creates a transaction in StateInitializing.
func New(description string, lggr logger.Logger, opts ...Option) *Transaction {
	t := &Transaction{
		id:            uuid.New().String(),
		description:   description,
		state:         StateInitializing,
		isolation:     ReadCommitted,
		timeout:       DefaultTimeout,
		maxOperations: DefaultMaxOperations,
		autoCommit:    true,
		lggr:          lggr,
		clock:         time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	t.audit = newAuditRecorder(t.clock)
	t.audit.record("transaction %q created: %s", t.id, t.description)

	return t
}

// ID returns the transaction id.
func (t *Transaction) ID() string { return t.id }

// Description returns the human-readable intent.
func (t *Transaction) Description() string { return t.description }

// State returns the current lifecycle state.
func (t *Transaction) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.state
}

// IsolationLevel returns the advisory isolation level.
func (t *Transaction) IsolationLevel() IsolationLevel { return t.isolation }

// Timeout returns the advisory transaction timeout.
func (t *Transaction) Timeout() time.Duration { return t.timeout }

// Metrics returns the transaction metrics computed so far.
func (t *Transaction) Metrics() Metrics {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.metrics
}

// Err returns the error that drove the transaction into a terminal failure
// state, or nil.
func (t *Transaction) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.lastErr
}

// AuditTrail returns a copy of the append-only audit trail.
func (t *Transaction) AuditTrail() []string {
	return t.audit.trail()
}

// Operations returns the operations in insertion order.
func (t *Transaction) Operations() []*Operation {
	t.mu.Lock()
	defer t.mu.Unlock()

	ops := make([]*Operation, len(t.operations))
	copy(ops, t.operations)

	return ops
}

// AddOperation appends an operation. Only valid while Initializing; the
// operation ceiling and id uniqueness are enforced here so a bad add is
// rejected synchronously without touching the transaction's state.
func (t *Transaction) AddOperation(op *Operation) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state != StateInitializing {
		return fmt.Errorf("%w: state is %s", ErrNotInitializing, t.state)
	}
	if len(t.operations) >= t.maxOperations {
		return fmt.Errorf("%w: limit is %d", ErrOperationLimit, t.maxOperations)
	}
	for _, existing := range t.operations {
		if existing.id == op.id {
			return fmt.Errorf("%w: %q", ErrDuplicateOperation, op.id)
		}
	}

	t.operations = append(t.operations, op)
	t.audit.record("operation %q added (kind=%s, deps=%v)", op.id, op.kind, op.dependencies)

	return nil
}

// Prepare validates the dependency graph, runs each operation's pre-flight
// check and fixes the execution order. A dangling dependency, a cycle or a
// structurally incomplete operation is a caller programming error: the whole
// transaction moves to StateFailed and never executes.
func (t *Transaction) Prepare(_ context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state != StateInitializing {
		return fmt.Errorf("%w: prepare called in state %s", ErrInvalidTransition, t.state)
	}

	t.audit.record("preparing transaction (%d operations, isolation=%s)", len(t.operations), t.isolation)
	t.lggr.Infow("Preparing transaction",
		"transaction", t.id, "operations", len(t.operations), "isolation", t.isolation.String())

	for _, op := range t.operations {
		if err := op.precheck(); err != nil {
			t.failLocked(err)

			return err
		}
		t.audit.record("validated operation %q", op.id)
	}

	order, err := resolveOrder(t.operations)
	if err != nil {
		t.failLocked(err)

		return err
	}
	t.order = order

	t.setState(StatePrepared)

	return nil
}

// Execute runs the operations in dependency order, capturing state around
// each. The first failure aborts the loop and drives a rollback of
// everything already completed. On success the transaction commits
// automatically, unless auto-commit is disabled, in which case it stays in
// Executing awaiting an explicit Commit.
//
// The returned error is the triggering failure; if the rollback sweep itself
// failed, a *RollbackError is returned instead, listing the operations that
// could not be undone.
func (t *Transaction) Execute(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state != StatePrepared {
		return fmt.Errorf("%w: execute called in state %s", ErrInvalidTransition, t.state)
	}

	t.setState(StateExecuting)
	t.startedAt = t.clock()

	completedSet := make(map[string]struct{}, len(t.order))
	for _, op := range t.order {
		for _, dep := range op.dependencies {
			if _, ok := completedSet[dep]; !ok {
				err := fmt.Errorf("%w: operation %q reached before dependency %q completed",
					ErrSchedulingInvariant, op.id, dep)
				t.audit.record("aborting execution: %v", err)

				return t.failExecutionLocked(ctx, err)
			}
		}

		t.audit.record("executing operation %q (%s)", op.id, op.kind)
		t.lggr.Infow("Executing operation",
			"transaction", t.id, "operation", op.id, "kind", op.kind.String(), "description", op.description)

		err := op.Execute(ctx, t.capturer, t.lggr)
		if err == nil {
			if verr := op.Validate(ctx); verr != nil {
				// A side effect that cannot be verified is not trusted.
				op.lastErr = verr
				err = verr
			}
		}
		if err != nil {
			t.metrics.Failed++
			t.audit.record("operation %q failed: %v", op.id, err)
			t.lggr.Errorw("Operation failed", "transaction", t.id, "operation", op.id, "error", err)

			return t.failExecutionLocked(ctx, err)
		}

		completedSet[op.id] = struct{}{}
		t.completed = append(t.completed, op)
		t.metrics.Succeeded++
		t.audit.record("operation %q completed", op.id)
	}

	if t.autoCommit {
		return t.commitLocked(ctx)
	}

	t.executed = true
	t.audit.record("execution complete; awaiting explicit commit")

	return nil
}

// Commit finalizes an executed transaction. Only valid when every operation
// has succeeded and auto-commit is disabled.
func (t *Transaction) Commit(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state != StateExecuting || !t.executed {
		return fmt.Errorf("%w: commit called in state %s", ErrInvalidTransition, t.state)
	}

	return t.commitLocked(ctx)
}

// Rollback undoes an executed transaction instead of committing it. Only
// valid when auto-commit is disabled and execution has finished; failures
// during execution or commit trigger rollback internally.
func (t *Transaction) Rollback(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state != StateExecuting || !t.executed {
		return fmt.Errorf("%w: rollback called in state %s", ErrInvalidTransition, t.state)
	}

	return t.rollbackLocked(ctx, errCallerRollback)
}

// Abort cancels the transaction before anything has executed. Nothing needs
// rolling back, so this is only meaningful from Initializing or Prepared;
// once execution has begun the only way to stop is to let the coordinator's
// failure handling drive rollback.
func (t *Transaction) Abort() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch t.state {
	case StateInitializing, StatePrepared:
		t.setState(StateAborted)
		t.audit.record("transaction aborted by caller")
		t.lggr.Infow("Transaction aborted", "transaction", t.id)

		return nil
	case StateExecuting, StateCommitting, StateCommitted, StateRollingBack, StateRolledBack, StateFailed, StateAborted:
		return fmt.Errorf("%w: abort called in state %s", ErrInvalidTransition, t.state)
	}

	return fmt.Errorf("%w: abort called in state %s", ErrInvalidTransition, t.state)
}

// commitLocked re-validates every completed operation, computes metrics and
// transitions to Committed. A validation failure here routes to rollback:
// commit is not allowed to leave the transaction in an inconsistent
// Committed state.
func (t *Transaction) commitLocked(ctx context.Context) error {
	t.setState(StateCommitting)
	t.audit.record("committing transaction")

	for _, op := range t.completed {
		if err := op.Validate(ctx); err != nil {
			t.audit.record("final validation of %q failed: %v", op.id, err)
			t.lggr.Errorw("Final validation failed",
				"transaction", t.id, "operation", op.id, "error", err)

			if sweepErr := t.rollbackLocked(ctx, err); sweepErr != nil {
				return sweepErr
			}

			return err
		}
	}

	t.finalizeMetricsLocked()
	t.setState(StateCommitted)
	t.audit.record("transaction committed (%d operations, duration=%s)", t.metrics.Succeeded, t.metrics.Duration)
	t.lggr.Infow("Transaction committed",
		"transaction", t.id, "operations", t.metrics.Succeeded, "duration", t.metrics.Duration)
	t.emitLocked(TransactionCommitted, "")

	return nil
}

// failExecutionLocked drives the transaction into rollback after an
// execution failure. It returns the triggering error, or a *RollbackError
// if the sweep itself failed.
func (t *Transaction) failExecutionLocked(ctx context.Context, cause error) error {
	t.lastErr = cause
	if sweepErr := t.rollbackLocked(ctx, cause); sweepErr != nil {
		return sweepErr
	}

	return cause
}

// rollbackLocked walks the completed operations in reverse completion order
// and invokes each inverse exactly once. Individual inverse failures are
// collected but never stop the sweep: every operation that can be undone is
// undone. If any inverse failed, the transaction ends in StateFailed and the
// returned *RollbackError lists the operations a human must repair by hand.
func (t *Transaction) rollbackLocked(ctx context.Context, cause error) error {
	t.setState(StateRollingBack)
	t.audit.record("rolling back %d completed operations (cause: %v)", len(t.completed), cause)
	t.lggr.Warnw("Rolling back transaction",
		"transaction", t.id, "completed", len(t.completed), "cause", cause)

	var errs error
	var failedOps []string
	for i := len(t.completed) - 1; i >= 0; i-- {
		op := t.completed[i]
		if err := op.Rollback(ctx, t.lggr); err != nil {
			failedOps = append(failedOps, op.id)
			errs = multierr.Append(errs, err)
			t.audit.record("rollback of %q failed: %v", op.id, err)
			t.lggr.Errorw("Rollback of operation failed",
				"transaction", t.id, "operation", op.id, "error", err)

			continue
		}
		t.audit.record("rolled back operation %q", op.id)
	}

	t.finalizeMetricsLocked()
	t.lastErr = cause

	if errs != nil {
		rbErr := &RollbackError{Cause: cause, FailedOps: failedOps, Errs: errs}
		t.lastErr = rbErr
		t.setState(StateFailed)
		t.audit.record("transaction failed: %v", rbErr)
		t.lggr.Errorw("Transaction failed: manual intervention required",
			"transaction", t.id, "failedOperations", failedOps)
		t.emitLocked(TransactionFailed, rbErr.Error())

		return rbErr
	}

	t.setState(StateRolledBack)
	t.audit.record("transaction rolled back")
	t.lggr.Infow("Transaction rolled back", "transaction", t.id, "cause", cause)
	t.emitLocked(TransactionRolledBack, cause.Error())

	return nil
}

// failLocked marks the transaction failed before execution ever started
// (validation errors at prepare time). Nothing has run, so there is nothing
// to roll back.
func (t *Transaction) failLocked(cause error) {
	t.lastErr = cause
	t.metrics.TotalOps = len(t.operations)
	t.setState(StateFailed)
	t.audit.record("transaction failed during preparation: %v", cause)
	t.lggr.Errorw("Transaction preparation failed", "transaction", t.id, "error", cause)
	t.emitLocked(TransactionFailed, cause.Error())
}

func (t *Transaction) finalizeMetricsLocked() {
	t.metrics.TotalOps = len(t.operations)
	if !t.startedAt.IsZero() {
		t.metrics.Duration = t.clock().Sub(t.startedAt)
	}
}

// setState performs a state transition. Every transition the coordinator
// makes is validated against the transition table; a violation is a bug in
// the coordinator itself.
func (t *Transaction) setState(to State) {
	if !canTransition(t.state, to) {
		t.lggr.Panicw("Illegal state transition", "transaction", t.id, "from", t.state.String(), "to", to.String())
	}
	t.audit.record("state: %s -> %s", t.state, to)
	t.state = to
}

// emitLocked publishes a terminal-state event. Silent no-op when no
// subscriber is registered.
func (t *Transaction) emitLocked(eventType EventType, reason string) {
	if t.emitter == nil {
		return
	}
	t.emitter.Emit(newEvent(eventType, t.id, t.description, t.metrics, reason, t.clock()))
}
