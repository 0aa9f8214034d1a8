package storage

import (
	"context"

	"github.com/petersalomonsen/near-treasury-bulk-payment-contract/internal/app/domain/payment"
	"github.com/petersalomonsen/near-treasury-bulk-payment-contract/pkg/amount"
)

// PaymentListStore persists payment lists keyed by content hash.
type PaymentListStore interface {
	CreateList(ctx context.Context, list payment.List) (payment.List, error)
	UpdateList(ctx context.Context, list payment.List) (payment.List, error)
	GetList(ctx context.Context, id string) (payment.List, error)
	ListLists(ctx context.Context) ([]payment.List, error)
}

// StorageCreditStore persists prepaid storage credit balances per account.
type StorageCreditStore interface {
	GetCredit(ctx context.Context, account string) (amount.Amount, error)
	PutCredit(ctx context.Context, account string, balance amount.Amount) error
	ListCredits(ctx context.Context) (map[string]amount.Amount, error)
}
