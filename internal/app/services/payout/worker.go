package payout

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/petersalomonsen/near-treasury-bulk-payment-contract/internal/app/domain/payment"
	"github.com/petersalomonsen/near-treasury-bulk-payment-contract/internal/app/storage"
	"github.com/petersalomonsen/near-treasury-bulk-payment-contract/pkg/logger"
)

// DefaultPollInterval is how often the worker scans for approved lists
// with pending payments when no interval is configured.
const DefaultPollInterval = 15 * time.Second

// Worker periodically drains approved lists in the background. Pending
// lists are left alone until someone approves them and rejected lists are
// skipped entirely.
type Worker struct {
	engine    *Engine
	store     storage.PaymentListStore
	interval  time.Duration
	batchSize int
	log       *logger.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewWorker creates the drain worker. Non-positive interval or batchSize
// fall back to DefaultPollInterval and MaxBatchSize.
func NewWorker(engine *Engine, store storage.PaymentListStore, interval time.Duration, batchSize int, log *logger.Logger) *Worker {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if batchSize <= 0 || batchSize > MaxBatchSize {
		batchSize = MaxBatchSize
	}
	if log == nil {
		log = logger.NewDefault("payout-worker")
	}
	return &Worker{engine: engine, store: store, interval: interval, batchSize: batchSize, log: log}
}

// Name implements system.Service.
func (w *Worker) Name() string { return "payout-worker" }

// Start launches the polling loop.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return errors.New("payout worker already running")
	}

	runCtx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel
	w.running = true

	w.wg.Add(1)
	go w.run(runCtx)
	w.log.Infof("payout worker started, polling every %s", w.interval)
	return nil
}

// Stop halts the polling loop and waits for an in-flight scan to finish.
func (w *Worker) Stop(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.running {
		return nil
	}
	w.cancel()
	w.wg.Wait()
	w.running = false
	w.log.Info("payout worker stopped")
	return nil
}

func (w *Worker) run(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.drain(ctx)
		}
	}
}

// drain runs payout batches for every approved list until none has
// pending payments left. Failed payments stay failed until the submitter
// retries them, so they never keep the worker busy.
func (w *Worker) drain(ctx context.Context) {
	lists, err := w.store.ListLists(ctx)
	if err != nil {
		w.log.Errorf("list scan failed: %v", err)
		return
	}

	for _, list := range lists {
		if list.Status != payment.ListStatusApproved || list.PendingCount() == 0 {
			continue
		}
		for {
			result, err := w.engine.PayoutBatch(ctx, list.ID, w.batchSize)
			if err != nil {
				w.log.Errorf("payout batch for %s failed: %v", list.ID, err)
				break
			}
			if result.Remaining == 0 || result.Processed == 0 {
				break
			}
		}
		if ctx.Err() != nil {
			return
		}
	}
}
