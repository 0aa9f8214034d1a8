// Package approval gates payment lists between admission and payout. A
// pending list becomes approved only when the submitter funds its exact
// total, through a direct native deposit or through a fungible or
// multi-token transfer callback carrying the list id.
package approval

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/petersalomonsen/near-treasury-bulk-payment-contract/internal/app/domain/payment"
	"github.com/petersalomonsen/near-treasury-bulk-payment-contract/internal/app/domain/token"
	"github.com/petersalomonsen/near-treasury-bulk-payment-contract/internal/app/metrics"
	"github.com/petersalomonsen/near-treasury-bulk-payment-contract/internal/app/storage"
	"github.com/petersalomonsen/near-treasury-bulk-payment-contract/pkg/amount"
	"github.com/petersalomonsen/near-treasury-bulk-payment-contract/pkg/listid"
	"github.com/petersalomonsen/near-treasury-bulk-payment-contract/pkg/logger"
)

// Service transitions payment lists through their approval lifecycle.
type Service struct {
	mu    *sync.Mutex
	store storage.PaymentListStore
	log   *logger.Logger
	now   func() time.Time
}

// New creates the approval service. The mutex serializes list writes and
// must be shared with the other list-mutating services; pass nil for a
// standalone lock.
func New(store storage.PaymentListStore, mu *sync.Mutex, log *logger.Logger) *Service {
	if mu == nil {
		mu = &sync.Mutex{}
	}
	if log == nil {
		log = logger.NewDefault("approval")
	}
	return &Service{mu: mu, store: store, log: log, now: time.Now}
}

// ApproveList approves a pending list with a direct native deposit. The
// deposit must equal the list total exactly; anything else is refused so
// the caller keeps their funds.
func (s *Service) ApproveList(ctx context.Context, caller, id string, attached amount.Amount) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.approveLocked(ctx, caller, id, "", attached, "native")
}

// OnTokenTransfer is the fungible token receiver hook. sender is the
// account that sent the tokens, tokenContract the token contract that
// invoked the hook, and msg carries the list id. The returned amount is
// the unconsumed portion to refund: zero on approval, the full transfer
// when the approval is refused.
func (s *Service) OnTokenTransfer(ctx context.Context, sender, tokenContract string, transferred amount.Amount, msg string) (amount.Amount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := strings.TrimSpace(msg)
	if err := s.approveLocked(ctx, sender, id, tokenContract, transferred, "ft"); err != nil {
		return transferred, err
	}
	return amount.Zero(), nil
}

// OnMultiTokenTransfer is the multi-token receiver hook. The transfer
// must carry exactly one token; the returned amounts mirror the input and
// hold the unconsumed portions to refund.
func (s *Service) OnMultiTokenTransfer(ctx context.Context, sender string, tokenIDs []string, amounts []amount.Amount, msg string) ([]amount.Amount, error) {
	refund := make([]amount.Amount, len(amounts))
	copy(refund, amounts)

	if len(tokenIDs) != 1 || len(amounts) != 1 {
		return refund, fmt.Errorf("expected exactly one token, got %d: %w", len(tokenIDs), payment.ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := strings.TrimSpace(msg)
	if err := s.approveLocked(ctx, sender, id, tokenIDs[0], amounts[0], "mt"); err != nil {
		return refund, err
	}
	return []amount.Amount{amount.Zero()}, nil
}

// approveLocked performs the checks every funding path shares. fundingToken
// is empty for the native path; token paths additionally require it to
// match the list's token id.
func (s *Service) approveLocked(ctx context.Context, sender, id, fundingToken string, attached amount.Amount, path string) error {
	if !listid.Valid(id) {
		return fmt.Errorf("malformed list id %q: %w", id, payment.ErrValidation)
	}
	list, err := s.store.GetList(ctx, id)
	if err != nil {
		return err
	}
	if list.Status != payment.ListStatusPending {
		return fmt.Errorf("list %s is %s, only pending lists can be approved: %w", id, list.Status, payment.ErrState)
	}
	if sender != list.Submitter {
		return fmt.Errorf("only the submitter %s may approve list %s: %w", list.Submitter, id, payment.ErrUnauthorized)
	}
	if fundingToken != "" && !tokenMatches(list.TokenID, fundingToken) {
		return fmt.Errorf("list %s expects token %s, funded with %s: %w", id, list.TokenID, fundingToken, payment.ErrFundingMismatch)
	}

	total, err := list.TotalAmount()
	if err != nil {
		return err
	}
	if !attached.Equal(total) {
		return fmt.Errorf("exact deposit required: %s, attached: %s: %w", total, attached, payment.ErrFundingMismatch)
	}

	list.Status = payment.ListStatusApproved
	list.UpdatedAt = s.now()
	if _, err := s.store.UpdateList(ctx, list); err != nil {
		return fmt.Errorf("update list: %w", err)
	}

	metrics.ListsApproved.WithLabelValues(path).Inc()
	s.log.Infof("list %s approved by %s via %s for %s", id, sender, path, total)
	return nil
}

// tokenMatches reports whether a funding token contract satisfies the
// list's declared token id. Bridged ids name their underlying contract
// after the scheme prefix.
func tokenMatches(listTokenID, fundingToken string) bool {
	if listTokenID == fundingToken {
		return true
	}
	class := token.Parse(listTokenID)
	return class.Kind != token.KindNative && class.Contract == fundingToken
}

// RejectList rejects a pending list. Only the submitter may reject, and
// rejection is terminal: the list keeps its records for audit but can
// never be approved or paid out.
func (s *Service) RejectList(ctx context.Context, caller, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !listid.Valid(id) {
		return fmt.Errorf("malformed list id %q: %w", id, payment.ErrValidation)
	}
	list, err := s.store.GetList(ctx, id)
	if err != nil {
		return err
	}
	if list.Status != payment.ListStatusPending {
		return fmt.Errorf("list %s is %s, only pending lists can be rejected: %w", id, list.Status, payment.ErrState)
	}
	if caller != list.Submitter {
		return fmt.Errorf("only the submitter %s may reject list %s: %w", list.Submitter, id, payment.ErrUnauthorized)
	}

	list.Status = payment.ListStatusRejected
	list.UpdatedAt = s.now()
	if _, err := s.store.UpdateList(ctx, list); err != nil {
		return fmt.Errorf("update list: %w", err)
	}
	s.log.Infof("list %s rejected by %s", id, caller)
	return nil
}

// RetryFailed flips every failed record of an approved list back to
// pending so the next payout batch picks them up again. Returns the
// number of records reset.
func (s *Service) RetryFailed(ctx context.Context, caller, id string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !listid.Valid(id) {
		return 0, fmt.Errorf("malformed list id %q: %w", id, payment.ErrValidation)
	}
	list, err := s.store.GetList(ctx, id)
	if err != nil {
		return 0, err
	}
	if list.Status != payment.ListStatusApproved {
		return 0, fmt.Errorf("list %s is %s, retries require an approved list: %w", id, list.Status, payment.ErrState)
	}
	if caller != list.Submitter {
		return 0, fmt.Errorf("only the submitter %s may retry list %s: %w", list.Submitter, id, payment.ErrUnauthorized)
	}

	reset := 0
	for i := range list.Payments {
		if list.Payments[i].Status == payment.RecordStatusFailed {
			list.Payments[i].Status = payment.RecordStatusPending
			list.Payments[i].FailureReason = ""
			reset++
		}
	}
	if reset == 0 {
		return 0, nil
	}

	list.UpdatedAt = s.now()
	if _, err := s.store.UpdateList(ctx, list); err != nil {
		return 0, fmt.Errorf("update list: %w", err)
	}
	s.log.Infof("list %s: %d failed payments reset by %s", id, reset, caller)
	return reset, nil
}
