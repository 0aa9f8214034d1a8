// Package credits implements the prepaid storage credit ledger. Accounts
// buy credits ahead of time; the registry consumes them when admitting
// payment lists.
package credits

import (
	"context"
	"fmt"
	"sync"

	"github.com/petersalomonsen/near-treasury-bulk-payment-contract/internal/app/domain/payment"
	"github.com/petersalomonsen/near-treasury-bulk-payment-contract/internal/app/metrics"
	"github.com/petersalomonsen/near-treasury-bulk-payment-contract/internal/app/storage"
	"github.com/petersalomonsen/near-treasury-bulk-payment-contract/pkg/amount"
	"github.com/petersalomonsen/near-treasury-bulk-payment-contract/pkg/logger"
)

// Storage pricing. A record reserves BytesPerRecord bytes (recipient id up
// to 100 bytes, 16-byte amount, status and container overhead), each byte
// priced at CostPerByte, with a 10% revenue markup on top.
const (
	BytesPerRecord = 216
	markupPercent  = 110
)

// CostPerByte returns the raw storage price per byte.
func CostPerByte() amount.Amount {
	return amount.MustParse("10000000000000000000") // 10^19
}

// Service is the storage credit ledger.
type Service struct {
	mu    *sync.Mutex
	store storage.StorageCreditStore
	log   *logger.Logger
}

// New creates the credit ledger. The mutex serializes balance mutations;
// pass nil for a standalone lock.
func New(store storage.StorageCreditStore, mu *sync.Mutex, log *logger.Logger) *Service {
	if mu == nil {
		mu = &sync.Mutex{}
	}
	if log == nil {
		log = logger.NewDefault("credits")
	}
	return &Service{mu: mu, store: store, log: log}
}

// CalculateCost returns the exact deposit required to buy storage for
// numRecords payment records: ceil(n * BytesPerRecord * CostPerByte *
// markup / 100), with every intermediate step overflow-checked.
func (s *Service) CalculateCost(numRecords uint64) (amount.Amount, error) {
	if numRecords == 0 {
		return amount.Amount{}, fmt.Errorf("number of records must be greater than 0: %w", payment.ErrValidation)
	}

	storageBytes, err := amount.FromUint64(BytesPerRecord).MulUint64(numRecords)
	if err != nil {
		return amount.Amount{}, err
	}
	baseCost, err := storageBytes.Mul(CostPerByte())
	if err != nil {
		return amount.Amount{}, err
	}
	marked, err := baseCost.MulUint64(markupPercent)
	if err != nil {
		return amount.Amount{}, err
	}
	return ceilDiv100(marked)
}

// ceilDiv100 divides by 100 rounding up.
func ceilDiv100(a amount.Amount) (amount.Amount, error) {
	bumped, err := a.Add(amount.FromUint64(99))
	if err != nil {
		return amount.Amount{}, err
	}
	return bumped.Div(100)
}

// BuyStorage purchases storage credits for numRecords records. The
// attached deposit must equal CalculateCost exactly; the beneficiary
// (caller when empty) is credited with the full marked-up amount. The
// markup split is an accounting identity only: no separate revenue balance
// is kept.
func (s *Service) BuyStorage(ctx context.Context, caller string, numRecords uint64, beneficiary string, attached amount.Amount) (amount.Amount, error) {
	cost, err := s.CalculateCost(numRecords)
	if err != nil {
		return amount.Amount{}, err
	}
	if !attached.Equal(cost) {
		return amount.Amount{}, fmt.Errorf("exact deposit required: %s, attached: %s: %w", cost, attached, payment.ErrFundingMismatch)
	}

	if beneficiary == "" {
		beneficiary = caller
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.creditLocked(ctx, beneficiary, cost); err != nil {
		return amount.Amount{}, err
	}

	metrics.StoragePurchases.Inc()
	s.log.Infof("storage purchased: %d records for %s (beneficiary: %s)", numRecords, cost, beneficiary)
	return cost, nil
}

// Credit adds to an account's balance. Besides purchases, the registry
// uses it to roll back an admission debit when storing a list fails.
func (s *Service) Credit(ctx context.Context, account string, amt amount.Amount) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.creditLocked(ctx, account, amt)
}

func (s *Service) creditLocked(ctx context.Context, account string, amt amount.Amount) error {
	current, err := s.store.GetCredit(ctx, account)
	if err != nil {
		return fmt.Errorf("get credit: %w", err)
	}
	next, err := current.Add(amt)
	if err != nil {
		return err
	}
	if err := s.store.PutCredit(ctx, account, next); err != nil {
		return err
	}
	metrics.CreditBalance.WithLabelValues(account).Set(next.Float64())
	return nil
}

// Debit atomically checks and subtracts amt from the account's balance.
func (s *Service) Debit(ctx context.Context, account string, amt amount.Amount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.store.GetCredit(ctx, account)
	if err != nil {
		return fmt.Errorf("get credit: %w", err)
	}
	if current.Cmp(amt) < 0 {
		return fmt.Errorf("required: %s, available: %s: %w", amt, current, payment.ErrInsufficientCredit)
	}
	next, err := current.Sub(amt)
	if err != nil {
		return err
	}
	if err := s.store.PutCredit(ctx, account, next); err != nil {
		return err
	}
	metrics.CreditBalance.WithLabelValues(account).Set(next.Float64())
	return nil
}

// ViewCredit returns the account's balance, zero for unknown accounts.
func (s *Service) ViewCredit(ctx context.Context, account string) (amount.Amount, error) {
	return s.store.GetCredit(ctx, account)
}
