// Package memory provides an in-memory implementation of the storage
// interfaces for tests and prototyping.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/petersalomonsen/near-treasury-bulk-payment-contract/internal/app/domain/payment"
	"github.com/petersalomonsen/near-treasury-bulk-payment-contract/pkg/amount"
)

// Store is a thread-safe in-memory persistence layer implementing the
// storage interfaces. It deliberately keeps the implementation simple.
type Store struct {
	mu      sync.RWMutex
	lists   map[string]payment.List
	credits map[string]amount.Amount
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		lists:   make(map[string]payment.List),
		credits: make(map[string]amount.Amount),
	}
}

// PaymentListStore implementation ---------------------------------------------

func (s *Store) CreateList(_ context.Context, list payment.List) (payment.List, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.lists[list.ID]; exists {
		return payment.List{}, fmt.Errorf("list %s already exists", list.ID)
	}

	now := time.Now().UTC()
	list.CreatedAt = now
	list.UpdatedAt = now

	s.lists[list.ID] = cloneList(list)
	return cloneList(list), nil
}

func (s *Store) UpdateList(_ context.Context, list payment.List) (payment.List, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.lists[list.ID]
	if !ok {
		return payment.List{}, fmt.Errorf("list %s: %w", list.ID, payment.ErrNotFound)
	}

	list.CreatedAt = original.CreatedAt
	list.UpdatedAt = time.Now().UTC()

	s.lists[list.ID] = cloneList(list)
	return cloneList(list), nil
}

func (s *Store) GetList(_ context.Context, id string) (payment.List, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list, ok := s.lists[id]
	if !ok {
		return payment.List{}, fmt.Errorf("list %s: %w", id, payment.ErrNotFound)
	}
	return cloneList(list), nil
}

func (s *Store) ListLists(_ context.Context) ([]payment.List, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]payment.List, 0, len(s.lists))
	for _, list := range s.lists {
		result = append(result, cloneList(list))
	}
	return result, nil
}

// StorageCreditStore implementation -------------------------------------------

func (s *Store) GetCredit(_ context.Context, account string) (amount.Amount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.credits[account], nil
}

func (s *Store) PutCredit(_ context.Context, account string, balance amount.Amount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.credits[account] = balance
	return nil
}

func (s *Store) ListCredits(_ context.Context) (map[string]amount.Amount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string]amount.Amount, len(s.credits))
	for account, balance := range s.credits {
		result[account] = balance
	}
	return result, nil
}

// Helpers ---------------------------------------------------------------------

func cloneList(list payment.List) payment.List {
	list.Payments = append([]payment.Record(nil), list.Payments...)
	return list
}
