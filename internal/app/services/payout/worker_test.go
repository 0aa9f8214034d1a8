package payout

import (
	"context"
	"testing"
	"time"

	"github.com/petersalomonsen/near-treasury-bulk-payment-contract/internal/app/domain/payment"
	"github.com/petersalomonsen/near-treasury-bulk-payment-contract/pkg/amount"
)

func TestWorkerDrainsApprovedLists(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.native.CreateAccount("bob.near")
	f.native.CreateAccount("carol.near")

	id := f.approvedList(t, "near", []payment.Input{
		{Recipient: "bob.near", Amount: amount.FromUint64(100)},
		{Recipient: "carol.near", Amount: amount.FromUint64(200)},
	})

	worker := NewWorker(f.engine, f.store, 10*time.Millisecond, 1, nil)
	if err := worker.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer worker.Stop(ctx)

	deadline := time.After(2 * time.Second)
	for {
		list, err := f.store.GetList(ctx, id)
		if err != nil {
			t.Fatalf("GetList failed: %v", err)
		}
		if list.PendingCount() == 0 {
			if list.PaidCount() != 2 {
				t.Fatalf("paid = %d, want 2", list.PaidCount())
			}
			return
		}
		select {
		case <-deadline:
			t.Fatalf("worker did not drain list, still %d pending", list.PendingCount())
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestWorkerSkipsUnapprovedLists(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.native.CreateAccount("bob.near")

	// Pending list: the worker must leave it alone.
	id := f.approvedList(t, "near", []payment.Input{
		{Recipient: "bob.near", Amount: amount.FromUint64(100)},
	})
	list, _ := f.store.GetList(ctx, id)
	list.Status = payment.ListStatusPending
	if _, err := f.store.UpdateList(ctx, list); err != nil {
		t.Fatalf("UpdateList failed: %v", err)
	}

	worker := NewWorker(f.engine, f.store, 10*time.Millisecond, 0, nil)
	if err := worker.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	time.Sleep(100 * time.Millisecond)
	if err := worker.Stop(ctx); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	list, _ = f.store.GetList(ctx, id)
	if list.PendingCount() != 1 {
		t.Fatalf("worker touched a pending list: %+v", list)
	}
}

func TestWorkerStartStop(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	worker := NewWorker(f.engine, f.store, time.Hour, 0, nil)

	if err := worker.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := worker.Start(ctx); err == nil {
		t.Fatal("second Start succeeded, want error")
	}
	if err := worker.Stop(ctx); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	// Stop is idempotent.
	if err := worker.Stop(ctx); err != nil {
		t.Fatalf("second Stop failed: %v", err)
	}
}
