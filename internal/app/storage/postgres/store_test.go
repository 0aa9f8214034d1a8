package postgres

import (
	"context"
	"database/sql"
	"os"
	"testing"

	_ "github.com/lib/pq"

	"github.com/petersalomonsen/near-treasury-bulk-payment-contract/internal/app/domain/payment"
	"github.com/petersalomonsen/near-treasury-bulk-payment-contract/pkg/amount"
)

func TestStoreIntegration(t *testing.T) {
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set; skipping postgres integration test")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()

	store := New(db)
	ctx := context.Background()

	if err := store.Bootstrap(ctx); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}

	list := payment.List{
		ID:        "a1b2c3d4e5f6a1b2c3d4e5f6a1b2c3d4a1b2c3d4e5f6a1b2c3d4e5f6a1b2c3d4",
		TokenID:   "native",
		Submitter: "treasury.near",
		Status:    payment.ListStatusPending,
		Payments: []payment.Record{
			{Recipient: "alice.near", Amount: amount.FromUint64(100), Status: payment.RecordStatusPending},
			{Recipient: "bob.near", Amount: amount.MustParse("2000000000000000000000000"), Status: payment.RecordStatusPending},
		},
	}

	created, err := store.CreateList(ctx, list)
	if err != nil {
		t.Fatalf("create list: %v", err)
	}

	created.Status = payment.ListStatusApproved
	created.Payments[0].Status = payment.RecordStatusPaid
	created.Payments[0].ExecutionRef = "ref-1"
	if _, err := store.UpdateList(ctx, created); err != nil {
		t.Fatalf("update list: %v", err)
	}

	fetched, err := store.GetList(ctx, list.ID)
	if err != nil {
		t.Fatalf("get list: %v", err)
	}
	if fetched.Status != payment.ListStatusApproved {
		t.Fatalf("expected approved, got %s", fetched.Status)
	}
	if fetched.Payments[0].ExecutionRef != "ref-1" {
		t.Fatalf("execution ref not persisted: %#v", fetched.Payments[0])
	}
	if !fetched.Payments[1].Amount.Equal(amount.MustParse("2000000000000000000000000")) {
		t.Fatalf("amount not round-tripped: %s", fetched.Payments[1].Amount)
	}

	if err := store.PutCredit(ctx, "treasury.near", amount.FromUint64(42)); err != nil {
		t.Fatalf("put credit: %v", err)
	}
	balance, err := store.GetCredit(ctx, "treasury.near")
	if err != nil || !balance.Equal(amount.FromUint64(42)) {
		t.Fatalf("get credit: %s %v", balance, err)
	}
}
