package transfer

import (
	"context"
	"testing"

	"github.com/petersalomonsen/near-treasury-bulk-payment-contract/pkg/amount"
)

func newTestRouter() (*Router, *NativeLedger, *TokenBank, *IntentsHub) {
	native := NewNativeLedger()
	tokens := NewTokenBank()
	intents := NewIntentsHub(tokens)
	return NewRouter(native, tokens, intents, nil), native, tokens, intents
}

func dispatchOutcome(t *testing.T, r *Router, req Request) Outcome {
	t.Helper()
	receipt, err := r.Dispatch(context.Background(), req)
	if err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	outcome, err := receipt.Outcome(context.Background())
	if err != nil {
		t.Fatalf("Outcome failed: %v", err)
	}
	return outcome
}

func TestRouterNativeAliases(t *testing.T) {
	router, native, _, _ := newTestRouter()
	native.CreateAccount("bob.near")

	for _, tokenID := range []string{"native", "near", "NEAR"} {
		outcome := dispatchOutcome(t, router, Request{
			TokenID:   tokenID,
			Recipient: "bob.near",
			Amount:    amount.FromUint64(10),
		})
		if !outcome.OK || outcome.Reference == "" {
			t.Fatalf("token %q: outcome %+v", tokenID, outcome)
		}
	}
	if got := native.Balance("bob.near"); !got.Equal(amount.FromUint64(30)) {
		t.Fatalf("balance = %s, want 30", got)
	}
}

func TestRouterFungible(t *testing.T) {
	router, _, tokens, _ := newTestRouter()
	tokens.RegisterAccount("wrap.near", "bob.near")

	outcome := dispatchOutcome(t, router, Request{
		TokenID:   "wrap.near",
		Recipient: "bob.near",
		Amount:    amount.FromUint64(7),
	})
	if !outcome.OK {
		t.Fatalf("outcome %+v", outcome)
	}
	if got := tokens.Balance("wrap.near", "bob.near"); !got.Equal(amount.FromUint64(7)) {
		t.Fatalf("balance = %s, want 7", got)
	}
}

func TestRouterBridged(t *testing.T) {
	router, _, _, intents := newTestRouter()

	outcome := dispatchOutcome(t, router, Request{
		TokenID:   "nep141:btc.omft.near",
		Recipient: "bc1qaddress",
		Amount:    amount.FromUint64(100),
	})
	if !outcome.OK {
		t.Fatalf("outcome %+v", outcome)
	}

	withdrawals := intents.Withdrawals()
	if len(withdrawals) != 1 {
		t.Fatalf("withdrawals = %d, want 1", len(withdrawals))
	}
	if withdrawals[0].Memo != "WITHDRAW_TO:bc1qaddress" {
		t.Fatalf("memo = %q", withdrawals[0].Memo)
	}
}

func TestRouterBridgedNonPoA(t *testing.T) {
	router, _, tokens, intents := newTestRouter()
	tokens.RegisterAccount("usdc.near", "bob.near")

	outcome := dispatchOutcome(t, router, Request{
		TokenID:   "nep141:usdc.near",
		Recipient: "bob.near",
		Amount:    amount.FromUint64(5),
	})
	if !outcome.OK {
		t.Fatalf("outcome %+v", outcome)
	}
	if withdrawals := intents.Withdrawals(); len(withdrawals) != 1 || withdrawals[0].Memo != "" {
		t.Fatalf("unexpected withdrawals: %+v", withdrawals)
	}
}

func TestRouterFailureSurfacesOnReceipt(t *testing.T) {
	router, _, _, _ := newTestRouter()

	outcome := dispatchOutcome(t, router, Request{
		TokenID:   "near",
		Recipient: "ghost.near",
		Amount:    amount.FromUint64(1),
	})
	if outcome.OK || outcome.Reason == "" {
		t.Fatalf("expected failure with reason, got %+v", outcome)
	}
}

func TestRouterCancelledContext(t *testing.T) {
	router, native, _, _ := newTestRouter()
	native.CreateAccount("bob.near")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := router.Dispatch(ctx, Request{TokenID: "near", Recipient: "bob.near", Amount: amount.FromUint64(1)}); err == nil {
		t.Fatal("expected error from cancelled context")
	}
}

func TestReceiptResolvesOnce(t *testing.T) {
	receipt := NewReceipt("r-1")
	receipt.Resolve(Outcome{OK: true, Reference: "tx-1"})
	receipt.Resolve(Outcome{Reason: "late failure"})

	outcome, err := receipt.Outcome(context.Background())
	if err != nil {
		t.Fatalf("Outcome failed: %v", err)
	}
	if !outcome.OK || outcome.Reference != "tx-1" {
		t.Fatalf("second resolve won: %+v", outcome)
	}
}
