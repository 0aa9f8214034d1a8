// Package transfer routes individual payments to the transfer mechanism
// matching their token class and tracks each dispatched transfer through an
// explicit receipt that resolves exactly once.
package transfer

import (
	"context"
	"sync"

	"github.com/petersalomonsen/near-treasury-bulk-payment-contract/pkg/amount"
)

// Request describes a single transfer to dispatch.
type Request struct {
	TokenID   string
	Recipient string
	Amount    amount.Amount
}

// Outcome is the terminal result of a dispatched transfer.
type Outcome struct {
	OK bool
	// Reference identifies the executed transfer when OK.
	Reference string
	// Reason describes the failure when not OK.
	Reason string
}

// Receipt is the pending half of a dispatched transfer. The backend that
// issued it resolves it exactly once; callers await the outcome without
// blocking the dispatch of other transfers.
type Receipt struct {
	id   string
	done chan struct{}

	once    sync.Once
	outcome Outcome
}

// NewReceipt creates an unresolved receipt. Exported for test doubles that
// stand in for transfer backends.
func NewReceipt(id string) *Receipt {
	return &Receipt{id: id, done: make(chan struct{})}
}

// ID returns the dispatch identifier.
func (r *Receipt) ID() string { return r.id }

// Resolve records the outcome. Later calls are ignored: a dispatch produces
// exactly one outcome.
func (r *Receipt) Resolve(outcome Outcome) {
	r.once.Do(func() {
		r.outcome = outcome
		close(r.done)
	})
}

// Outcome blocks until the receipt resolves or the context is cancelled.
func (r *Receipt) Outcome(ctx context.Context) (Outcome, error) {
	select {
	case <-r.done:
		return r.outcome, nil
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
}

func resolved(id string, outcome Outcome) *Receipt {
	r := NewReceipt(id)
	r.Resolve(outcome)
	return r
}

func success(id, reference string) *Receipt {
	return resolved(id, Outcome{OK: true, Reference: reference})
}

func failure(id, reason string) *Receipt {
	return resolved(id, Outcome{Reason: reason})
}
