// Package registry admits payment lists into the ledger. Admission is
// content-addressed: the list id is derived from the list's canonical
// content, resubmitting identical content is a no-op, and the submitter's
// storage credit funds the admission.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/petersalomonsen/near-treasury-bulk-payment-contract/internal/app/domain/payment"
	"github.com/petersalomonsen/near-treasury-bulk-payment-contract/internal/app/metrics"
	"github.com/petersalomonsen/near-treasury-bulk-payment-contract/internal/app/services/credits"
	"github.com/petersalomonsen/near-treasury-bulk-payment-contract/internal/app/storage"
	"github.com/petersalomonsen/near-treasury-bulk-payment-contract/pkg/listid"
	"github.com/petersalomonsen/near-treasury-bulk-payment-contract/pkg/logger"
)

// Service registers and serves payment lists.
type Service struct {
	mu       *sync.Mutex
	store    storage.PaymentListStore
	credits  *credits.Service
	log      *logger.Logger
	now      func() time.Time
	operator string
}

// Option customizes the registry.
type Option func(*Service)

// WithOperator names the account allowed to submit lists on behalf of
// another submitter.
func WithOperator(account string) Option {
	return func(s *Service) { s.operator = account }
}

// New creates the registry. The mutex serializes list writes and must be
// shared with every other service that mutates lists; it must NOT be the
// credit ledger's lock, which the registry acquires nested inside this
// one. Pass nil for a standalone lock.
func New(store storage.PaymentListStore, credits *credits.Service, mu *sync.Mutex, log *logger.Logger, opts ...Option) *Service {
	if mu == nil {
		mu = &sync.Mutex{}
	}
	if log == nil {
		log = logger.NewDefault("registry")
	}
	s := &Service{mu: mu, store: store, credits: credits, log: log, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SubmitList admits a payment list for the caller and returns its id. The
// caller's storage credit is debited the full admission cost up front.
// Submitting content that is already registered returns the existing id
// without a second debit, regardless of how far that list has progressed.
func (s *Service) SubmitList(ctx context.Context, caller, tokenID string, payments []payment.Input) (string, error) {
	return s.SubmitListFor(ctx, caller, tokenID, payments, caller)
}

// SubmitListFor admits a list recorded under a different submitter. Only
// the configured operator account may submit on someone else's behalf; the
// submitter owns the list and pays the admission fee.
func (s *Service) SubmitListFor(ctx context.Context, caller, tokenID string, payments []payment.Input, submitter string) (string, error) {
	if submitter == "" {
		submitter = caller
	}
	if submitter != caller && (s.operator == "" || caller != s.operator) {
		return "", fmt.Errorf("only the operator may submit on behalf of %s: %w", submitter, payment.ErrUnauthorized)
	}
	if len(payments) == 0 {
		return "", fmt.Errorf("payment list must not be empty: %w", payment.ErrValidation)
	}
	if tokenID == "" {
		return "", fmt.Errorf("token id must not be empty: %w", payment.ErrValidation)
	}
	for i, p := range payments {
		if p.Recipient == "" {
			return "", fmt.Errorf("payment %d: recipient must not be empty: %w", i, payment.ErrValidation)
		}
		if p.Amount.IsZero() {
			return "", fmt.Errorf("payment %d: amount must be greater than 0: %w", i, payment.ErrValidation)
		}
	}

	id, err := computeID(submitter, tokenID, payments)
	if err != nil {
		return "", err
	}

	cost, err := s.credits.CalculateCost(uint64(len(payments)))
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.store.GetList(ctx, id); err == nil {
		s.log.Infof("list %s resubmitted by %s, returning existing id", id, caller)
		return id, nil
	} else if !errors.Is(err, payment.ErrNotFound) {
		return "", fmt.Errorf("get list: %w", err)
	}

	if err := s.credits.Debit(ctx, submitter, cost); err != nil {
		return "", err
	}

	records := make([]payment.Record, len(payments))
	for i, p := range payments {
		records[i] = payment.Record{
			Recipient: p.Recipient,
			Amount:    p.Amount,
			Status:    payment.RecordStatusPending,
		}
	}
	now := s.now()
	list := payment.List{
		ID:        id,
		TokenID:   tokenID,
		Submitter: submitter,
		Status:    payment.ListStatusPending,
		Payments:  records,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := s.store.CreateList(ctx, list); err != nil {
		// Return the admission fee so a storage fault does not eat credit.
		if refundErr := s.credits.Credit(ctx, submitter, cost); refundErr != nil {
			s.log.Errorf("refund after failed create of %s: %v", id, refundErr)
		}
		return "", fmt.Errorf("create list: %w", err)
	}

	metrics.ListsSubmitted.Inc()
	s.log.Infof("list %s submitted by %s: %d payments, token %s, fee %s", id, submitter, len(payments), tokenID, cost)
	return id, nil
}

// ViewList returns the list with the given id.
func (s *Service) ViewList(ctx context.Context, id string) (payment.List, error) {
	if !listid.Valid(id) {
		return payment.List{}, fmt.Errorf("malformed list id %q: %w", id, payment.ErrValidation)
	}
	return s.store.GetList(ctx, id)
}

// ViewLists returns all registered lists.
func (s *Service) ViewLists(ctx context.Context) ([]payment.List, error) {
	return s.store.ListLists(ctx)
}

// VerifyID recomputes the id for the given content and reports whether it
// matches the claimed id. Used by callers that received a list and its id
// from an untrusted channel.
func (s *Service) VerifyID(claimed, submitter, tokenID string, payments []payment.Input) (bool, error) {
	id, err := computeID(submitter, tokenID, payments)
	if err != nil {
		return false, err
	}
	return id == claimed, nil
}

func computeID(submitter, tokenID string, payments []payment.Input) (string, error) {
	canonical := make([]listid.Payment, len(payments))
	for i, p := range payments {
		canonical[i] = listid.Payment{
			Amount:    p.Amount.String(),
			Recipient: p.Recipient,
		}
	}
	return listid.Compute(submitter, tokenID, canonical)
}
