package txn

// State is the lifecycle state of a Transaction. A transaction is in exactly
// one state at any time and transitions are one-directional except for the
// Executing/Committing escape paths into RollingBack.
type State int

const (
	// StateInitializing is the only state in which operations may be added.
	StateInitializing State = iota
	// StatePrepared means the dependency graph validated and every operation
	// passed its pre-flight check.
	StatePrepared
	// StateExecuting means operations are running, or have all run and the
	// transaction is awaiting an explicit Commit.
	StateExecuting
	// StateCommitting means final validation of completed operations is in
	// progress.
	StateCommitting
	// StateCommitted is terminal: every operation executed and validated.
	StateCommitted
	// StateRollingBack means inverses are being applied in reverse
	// completion order.
	StateRollingBack
	// StateRolledBack is terminal: every required inverse succeeded.
	StateRolledBack
	// StateFailed is terminal: either preparation failed, or one or more
	// inverses failed and the external systems may be partially mutated.
	StateFailed
	// StateAborted is terminal: the caller cancelled before execution began.
	StateAborted
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateInitializing:
		return "Initializing"
	case StatePrepared:
		return "Prepared"
	case StateExecuting:
		return "Executing"
	case StateCommitting:
		return "Committing"
	case StateCommitted:
		return "Committed"
	case StateRollingBack:
		return "RollingBack"
	case StateRolledBack:
		return "RolledBack"
	case StateFailed:
		return "Failed"
	case StateAborted:
		return "Aborted"
	}

	return "Unknown"
}

// Terminal reports whether the state is final. A terminal transaction is
// immutable; all mutating calls are rejected.
func (s State) Terminal() bool {
	switch s {
	case StateCommitted, StateRolledBack, StateFailed, StateAborted:
		return true
	case StateInitializing, StatePrepared, StateExecuting, StateCommitting, StateRollingBack:
		return false
	}

	return false
}

// canTransition is the single source of truth for the state machine. Every
// transition the coordinator performs goes through this table.
func canTransition(from, to State) bool {
	switch from {
	case StateInitializing:
		return to == StatePrepared || to == StateFailed || to == StateAborted
	case StatePrepared:
		return to == StateExecuting || to == StateAborted
	case StateExecuting:
		return to == StateCommitting || to == StateRollingBack
	case StateCommitting:
		return to == StateCommitted || to == StateRollingBack
	case StateRollingBack:
		return to == StateRolledBack || to == StateFailed
	case StateCommitted, StateRolledBack, StateFailed, StateAborted:
		return false
	}

	return false
}

// Kind classifies an operation by the external system it mutates. The kind
// selects the default retry policy for the forward action and is carried in
// audit lines and reports.
type Kind int

const (
	KindFileSystem Kind = iota
	KindVersionControl
	KindRemoteAPI
	KindProcessExecution
	KindConfiguration
	KindNetwork
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindFileSystem:
		return "FileSystem"
	case KindVersionControl:
		return "VersionControl"
	case KindRemoteAPI:
		return "RemoteAPI"
	case KindProcessExecution:
		return "ProcessExecution"
	case KindConfiguration:
		return "Configuration"
	case KindNetwork:
		return "Network"
	}

	return "Unknown"
}

// IsolationLevel is advisory metadata describing how aggressively the
// surrounding workflow may run transactions concurrently. The engine does
// not implement locking; callers that run transactions against the same
// external resource (e.g. one working tree) must serialize them.
type IsolationLevel int

const (
	ReadUncommitted IsolationLevel = iota
	ReadCommitted
	RepeatableRead
	Serializable
)

// String returns the isolation level name.
func (l IsolationLevel) String() string {
	switch l {
	case ReadUncommitted:
		return "ReadUncommitted"
	case ReadCommitted:
		return "ReadCommitted"
	case RepeatableRead:
		return "RepeatableRead"
	case Serializable:
		return "Serializable"
	}

	return "Unknown"
}
