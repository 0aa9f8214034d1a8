// Package payout executes approved payment lists in bounded batches,
// routing each payment to the transfer mechanism for the list's token.
package payout

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/petersalomonsen/near-treasury-bulk-payment-contract/internal/app/domain/payment"
	"github.com/petersalomonsen/near-treasury-bulk-payment-contract/internal/app/metrics"
	"github.com/petersalomonsen/near-treasury-bulk-payment-contract/internal/app/storage"
	"github.com/petersalomonsen/near-treasury-bulk-payment-contract/internal/app/transfer"
	"github.com/petersalomonsen/near-treasury-bulk-payment-contract/pkg/listid"
	"github.com/petersalomonsen/near-treasury-bulk-payment-contract/pkg/logger"
)

// MaxBatchSize bounds how many payments a single batch may process. It is
// both the default and the ceiling: larger requests are clamped, keeping
// every invocation inside a predictable amount of work.
const MaxBatchSize = 100

// BatchResult summarizes one payout batch.
type BatchResult struct {
	ListID    string `json:"list_id"`
	Processed int    `json:"processed"`
	Paid      int    `json:"paid"`
	Failed    int    `json:"failed"`
	// Remaining counts the pending payments left after this batch.
	Remaining int `json:"remaining"`
}

// Engine drains approved payment lists.
type Engine struct {
	mu         *sync.Mutex
	store      storage.PaymentListStore
	dispatcher transfer.Dispatcher
	log        *logger.Logger
	now        func() time.Time
}

// NewEngine creates the payout engine. The mutex serializes list writes
// and must be shared with the other list-mutating services; pass nil for
// a standalone lock.
func NewEngine(store storage.PaymentListStore, dispatcher transfer.Dispatcher, mu *sync.Mutex, log *logger.Logger) *Engine {
	if mu == nil {
		mu = &sync.Mutex{}
	}
	if log == nil {
		log = logger.NewDefault("payout")
	}
	return &Engine{mu: mu, store: store, dispatcher: dispatcher, log: log, now: time.Now}
}

// PayoutBatch processes up to maxCount pending payments of an approved
// list, in list order. maxCount values outside [1, MaxBatchSize] are
// replaced by MaxBatchSize. A payment whose dispatch fails is marked
// failed with its reason and never aborts the batch; anyone may trigger a
// batch since approval already authorized the spend.
func (e *Engine) PayoutBatch(ctx context.Context, id string, maxCount int) (BatchResult, error) {
	if !listid.Valid(id) {
		return BatchResult{}, fmt.Errorf("malformed list id %q: %w", id, payment.ErrValidation)
	}
	if maxCount <= 0 || maxCount > MaxBatchSize {
		maxCount = MaxBatchSize
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	list, err := e.store.GetList(ctx, id)
	if err != nil {
		return BatchResult{}, err
	}
	if list.Status != payment.ListStatusApproved {
		return BatchResult{}, fmt.Errorf("list %s is %s, payouts require an approved list: %w", id, list.Status, payment.ErrState)
	}

	start := e.now()
	result := BatchResult{ListID: id}
	var waitErr error

	for i := range list.Payments {
		if result.Processed == maxCount {
			break
		}
		rec := &list.Payments[i]
		if rec.Status != payment.RecordStatusPending {
			continue
		}

		receipt, err := e.dispatcher.Dispatch(ctx, transfer.Request{
			TokenID:   list.TokenID,
			Recipient: rec.Recipient,
			Amount:    rec.Amount,
		})
		if err != nil {
			rec.Status = payment.RecordStatusFailed
			rec.FailureReason = err.Error()
			result.Failed++
			result.Processed++
			continue
		}

		outcome, err := receipt.Outcome(ctx)
		if err != nil {
			// The wait was cut short; keep the outcomes already recorded
			// and persist them below so no settled payment is re-dispatched.
			waitErr = err
			break
		}
		if outcome.OK {
			rec.Status = payment.RecordStatusPaid
			rec.ExecutionRef = outcome.Reference
			result.Paid++
		} else {
			rec.Status = payment.RecordStatusFailed
			rec.FailureReason = outcome.Reason
			result.Failed++
		}
		result.Processed++
	}

	if result.Processed > 0 {
		list.UpdatedAt = e.now()
		if _, err := e.store.UpdateList(ctx, list); err != nil {
			return BatchResult{}, fmt.Errorf("update list: %w", err)
		}
	}
	result.Remaining = list.PendingCount()

	metrics.PayoutsProcessed.WithLabelValues("paid").Add(float64(result.Paid))
	metrics.PayoutsProcessed.WithLabelValues("failed").Add(float64(result.Failed))
	metrics.BatchDuration.Observe(e.now().Sub(start).Seconds())

	if waitErr != nil {
		return result, waitErr
	}
	e.log.Infof("list %s batch: %d paid, %d failed, %d remaining", id, result.Paid, result.Failed, result.Remaining)
	return result, nil
}
