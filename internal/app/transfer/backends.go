package transfer

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/petersalomonsen/near-treasury-bulk-payment-contract/pkg/amount"
)

// NativeLedger settles native-currency transfers against an in-process
// account ledger. Transfers to accounts that do not exist fail.
type NativeLedger struct {
	mu       sync.Mutex
	balances map[string]amount.Amount
}

// NewNativeLedger creates an empty native ledger.
func NewNativeLedger() *NativeLedger {
	return &NativeLedger{balances: make(map[string]amount.Amount)}
}

// CreateAccount registers an account so it can receive transfers.
func (l *NativeLedger) CreateAccount(account string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.balances[account]; !ok {
		l.balances[account] = amount.Zero()
	}
}

// Balance returns the account balance, zero for unknown accounts.
func (l *NativeLedger) Balance(account string) amount.Amount {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[account]
}

// Transfer dispatches a direct value transfer to the recipient.
func (l *NativeLedger) Transfer(recipient string, amt amount.Amount) *Receipt {
	id := uuid.NewString()

	l.mu.Lock()
	defer l.mu.Unlock()

	balance, ok := l.balances[recipient]
	if !ok {
		return failure(id, fmt.Sprintf("recipient account %s does not exist", recipient))
	}
	next, err := balance.Add(amt)
	if err != nil {
		return failure(id, fmt.Sprintf("recipient balance overflow: %v", err))
	}
	l.balances[recipient] = next
	return success(id, id)
}

// TokenBank models the fungible token contracts reachable from the payout
// engine. Recipients must be registered with a token contract before they
// can receive its tokens.
type TokenBank struct {
	mu       sync.Mutex
	balances map[string]map[string]amount.Amount
}

// NewTokenBank creates an empty token bank.
func NewTokenBank() *TokenBank {
	return &TokenBank{balances: make(map[string]map[string]amount.Amount)}
}

// RegisterAccount registers an account with a token contract.
func (b *TokenBank) RegisterAccount(contract, account string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	holders, ok := b.balances[contract]
	if !ok {
		holders = make(map[string]amount.Amount)
		b.balances[contract] = holders
	}
	if _, ok := holders[account]; !ok {
		holders[account] = amount.Zero()
	}
}

// Balance returns an account's balance on a token contract.
func (b *TokenBank) Balance(contract, account string) amount.Amount {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.balances[contract][account]
}

// Transfer dispatches an ft_transfer against the token contract.
func (b *TokenBank) Transfer(contract, recipient string, amt amount.Amount) *Receipt {
	id := uuid.NewString()

	b.mu.Lock()
	defer b.mu.Unlock()

	holders, ok := b.balances[contract]
	if !ok {
		return failure(id, fmt.Sprintf("token contract %s does not exist", contract))
	}
	balance, ok := holders[recipient]
	if !ok {
		return failure(id, fmt.Sprintf("recipient %s is not registered with token %s", recipient, contract))
	}
	next, err := balance.Add(amt)
	if err != nil {
		return failure(id, fmt.Sprintf("recipient balance overflow: %v", err))
	}
	holders[recipient] = next
	return success(id, id)
}

// PoASuffix marks bridged tokens whose withdrawals target an external
// chain and therefore require a WITHDRAW_TO memo.
const PoASuffix = ".omft.near"

// IntentsHub is the multi-asset intermediary for bridged tokens. A
// withdrawal instructs the hub to transfer (or burn-and-release) the
// underlying token to the recipient.
type IntentsHub struct {
	bank *TokenBank

	mu          sync.Mutex
	withdrawals []Withdrawal
}

// Withdrawal records one withdrawal executed by the hub.
type Withdrawal struct {
	Token     string
	Recipient string
	Amount    amount.Amount
	Memo      string
}

// NewIntentsHub creates a hub performing withdrawals against the bank.
func NewIntentsHub(bank *TokenBank) *IntentsHub {
	return &IntentsHub{bank: bank}
}

// Withdraw dispatches an ft_withdraw of the underlying token.
func (h *IntentsHub) Withdraw(tokenID, recipient string, amt amount.Amount) *Receipt {
	memo := ""
	target := recipient
	if strings.HasSuffix(tokenID, PoASuffix) {
		// PoA bridge tokens are delivered by the token contract itself,
		// steered by the memo.
		memo = "WITHDRAW_TO:" + recipient
		target = tokenID
		h.bank.RegisterAccount(tokenID, target)
	}

	receipt := h.bank.Transfer(tokenID, target, amt)

	outcome, _ := receipt.Outcome(context.Background())
	if outcome.OK {
		h.mu.Lock()
		h.withdrawals = append(h.withdrawals, Withdrawal{
			Token:     tokenID,
			Recipient: recipient,
			Amount:    amt,
			Memo:      memo,
		})
		h.mu.Unlock()
	}
	return receipt
}

// Withdrawals returns the executed withdrawals, newest last.
func (h *IntentsHub) Withdrawals() []Withdrawal {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Withdrawal, len(h.withdrawals))
	copy(out, h.withdrawals)
	return out
}
