// Package payment defines the payment list domain model: content-addressed
// lists of (recipient, amount) records tracked through an approval and
// payout lifecycle.
package payment

import (
	"time"

	"github.com/petersalomonsen/near-treasury-bulk-payment-contract/pkg/amount"
)

// ListStatus is the lifecycle state of a payment list.
type ListStatus string

const (
	ListStatusPending  ListStatus = "pending"
	ListStatusApproved ListStatus = "approved"
	ListStatusRejected ListStatus = "rejected"
)

// RecordStatus is the lifecycle state of a single payment.
type RecordStatus string

const (
	RecordStatusPending RecordStatus = "pending"
	RecordStatusPaid    RecordStatus = "paid"
	RecordStatusFailed  RecordStatus = "failed"
)

// Input is a payment as supplied by a submitter.
type Input struct {
	Recipient string        `json:"recipient"`
	Amount    amount.Amount `json:"amount"`
}

// Record is a payment tracked by the ledger. The recipient and amount are
// immutable after admission; only the status fields mutate.
type Record struct {
	Recipient string        `json:"recipient"`
	Amount    amount.Amount `json:"amount"`
	Status    RecordStatus  `json:"status"`

	// ExecutionRef identifies the completed transfer when Status is paid.
	ExecutionRef string `json:"execution_ref,omitempty"`
	// FailureReason describes the dispatch failure when Status is failed.
	FailureReason string `json:"failure_reason,omitempty"`
}

// List is a content-addressed batch of payments. The ID is the SHA-256 of
// the canonical list content and is never assigned independently of it.
type List struct {
	ID        string     `json:"id"`
	TokenID   string     `json:"token_id"`
	Submitter string     `json:"submitter"`
	Status    ListStatus `json:"status"`
	Payments  []Record   `json:"payments"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// TotalAmount sums all payment amounts with overflow checking.
func (l List) TotalAmount() (amount.Amount, error) {
	total := amount.Zero()
	for _, p := range l.Payments {
		next, err := total.Add(p.Amount)
		if err != nil {
			return amount.Amount{}, err
		}
		total = next
	}
	return total, nil
}

// PendingCount returns the number of records still pending.
func (l List) PendingCount() int { return l.countStatus(RecordStatusPending) }

// PaidCount returns the number of records settled successfully.
func (l List) PaidCount() int { return l.countStatus(RecordStatusPaid) }

// FailedCount returns the number of records whose dispatch failed.
func (l List) FailedCount() int { return l.countStatus(RecordStatusFailed) }

func (l List) countStatus(status RecordStatus) int {
	n := 0
	for _, p := range l.Payments {
		if p.Status == status {
			n++
		}
	}
	return n
}

// Transaction is a settled payment with its execution reference, exposed to
// callers that need to locate the underlying transfer.
type Transaction struct {
	Recipient    string        `json:"recipient"`
	Amount       amount.Amount `json:"amount"`
	ExecutionRef string        `json:"execution_ref"`
}

// Transactions returns the settled payments of the list.
func (l List) Transactions() []Transaction {
	var out []Transaction
	for _, p := range l.Payments {
		if p.Status == RecordStatusPaid {
			out = append(out, Transaction{
				Recipient:    p.Recipient,
				Amount:       p.Amount,
				ExecutionRef: p.ExecutionRef,
			})
		}
	}
	return out
}
