package txn

import (
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/ksuid"
)

// auditRecorder keeps the append-only, timestamped record of every state
// transition and operation outcome for one transaction. Entries are retained
// in memory on the transaction for post-mortem reporting; callers wanting
// durability serialize the terminal transaction state themselves.
type auditRecorder struct {
	mu      sync.Mutex
	clock   func() time.Time
	entries []string
}

func newAuditRecorder(clock func() time.Time) *auditRecorder {
	return &auditRecorder{clock: clock}
}

// record appends one audit line. Each line carries the timestamp and a
// sortable entry id so interleaved trails from multiple transactions can be
// reconciled after the fact.
func (a *auditRecorder) record(format string, args ...any) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.entries = append(a.entries, fmt.Sprintf("%s [%s] %s",
		a.clock().UTC().Format(time.RFC3339Nano), ksuid.New().String(), fmt.Sprintf(format, args...)))
}

// trail returns a copy of all entries recorded so far.
func (a *auditRecorder) trail() []string {
	a.mu.Lock()
	defer a.mu.Unlock()

	entries := make([]string, len(a.entries))
	copy(entries, a.entries)

	return entries
}

// len returns the number of entries recorded so far.
func (a *auditRecorder) len() int {
	a.mu.Lock()
	defer a.mu.Unlock()

	return len(a.entries)
}
