package txn

import (
	"time"

	"github.com/segmentio/ksuid"
)

// EventType identifies a terminal transaction outcome.
type EventType int

const (
	// TransactionCommitted is published when every operation executed and
	// validated.
	TransactionCommitted EventType = iota
	// TransactionRolledBack is published when a failure triggered a rollback
	// sweep and every required inverse succeeded.
	TransactionRolledBack
	// TransactionFailed is published when preparation failed or one or more
	// inverses failed during rollback.
	TransactionFailed
)

// String returns the event type name.
func (t EventType) String() string {
	switch t {
	case TransactionCommitted:
		return "TransactionCommitted"
	case TransactionRolledBack:
		return "TransactionRolledBack"
	case TransactionFailed:
		return "TransactionFailed"
	}

	return "Unknown"
}

// Event is published when a transaction reaches a terminal state so external
// subscribers (status dashboards, notifiers) can react.
type Event struct {
	ID            string    `json:"id"`
	Type          EventType `json:"type"`
	TransactionID string    `json:"transactionId"`
	Description   string    `json:"description"`
	Metrics       Metrics   `json:"metrics"`
	// Reason carries the triggering error for rollback and failure events.
	Reason    string    `json:"reason,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Emitter receives terminal transaction events. Implementations run on the
// transaction's goroutine while it holds its internal lock: they must not
// block for long and must not call back into the transaction. The Event
// carries everything a subscriber needs.
type Emitter interface {
	Emit(event Event)
}

// EmitterFunc adapts a function to the Emitter interface.
type EmitterFunc func(event Event)

// Emit implements Emitter.
func (f EmitterFunc) Emit(event Event) {
	f(event)
}

// newEvent builds an event for the given transaction outcome.
func newEvent(t EventType, txID, description string, metrics Metrics, reason string, now time.Time) Event {
	return Event{
		ID:            ksuid.New().String(),
		Type:          t,
		TransactionID: txID,
		Description:   description,
		Metrics:       metrics,
		Reason:        reason,
		Timestamp:     now,
	}
}
