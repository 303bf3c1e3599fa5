package txn

import (
	"fmt"
	"sync"

	"github.com/shipstream/shipstream/pkg/logger"
)

// Registry owns the transactions created by a workflow. It replaces the
// process-wide singleton coordinator of older automation scripts with an
// explicit object that has a clear create/dispose lifecycle, so independent
// workflows and tests never share hidden state.
type Registry struct {
	mu   sync.RWMutex
	txns map[string]*Transaction
	lggr logger.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(lggr logger.Logger) *Registry {
	return &Registry{
		txns: make(map[string]*Transaction),
		lggr: lggr,
	}
}

// Create builds a new transaction and tracks it in the registry.
func (r *Registry) Create(description string, opts ...Option) *Transaction {
	t := New(description, r.lggr, opts...)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.txns[t.ID()] = t

	return t
}

// Get returns the transaction with the given id.
func (r *Registry) Get(id string) (*Transaction, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.txns[id]

	return t, ok
}

// Active returns every tracked transaction that has not reached a terminal
// state.
func (r *Registry) Active() []*Transaction {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var active []*Transaction
	for _, t := range r.txns {
		if !t.State().Terminal() {
			active = append(active, t)
		}
	}

	return active
}

// List returns every tracked transaction.
func (r *Registry) List() []*Transaction {
	r.mu.RLock()
	defer r.mu.RUnlock()

	txns := make([]*Transaction, 0, len(r.txns))
	for _, t := range r.txns {
		txns = append(txns, t)
	}

	return txns
}

// Dispose removes a terminal transaction from the registry. Disposing a
// live transaction is rejected; abort or roll it back first.
func (r *Registry) Dispose(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.txns[id]
	if !ok {
		return fmt.Errorf("transaction %q not found in registry", id)
	}
	if !t.State().Terminal() {
		return fmt.Errorf("transaction %q is still %s; cannot dispose", id, t.State())
	}
	delete(r.txns, id)

	return nil
}
