package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	app "github.com/petersalomonsen/near-treasury-bulk-payment-contract/internal/app"
	"github.com/petersalomonsen/near-treasury-bulk-payment-contract/internal/app/domain/payment"
	"github.com/petersalomonsen/near-treasury-bulk-payment-contract/pkg/amount"
)

func newTestServer(t *testing.T, opts ...Option) (*httptest.Server, *app.Application) {
	t.Helper()
	application := app.NewWithStores(nil, nil, app.Stores{})
	srv := httptest.NewServer(NewHandler(application, opts...))
	t.Cleanup(srv.Close)
	return srv, application
}

func doJSON(t *testing.T, method, url string, payload any) (*http.Response, map[string]json.RawMessage) {
	t.Helper()
	var body bytes.Buffer
	if payload != nil {
		if err := json.NewEncoder(&body).Encode(payload); err != nil {
			t.Fatalf("encode payload: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &body)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })

	var decoded map[string]json.RawMessage
	_ = json.NewDecoder(resp.Body).Decode(&decoded)
	return resp, decoded
}

func rawString(t *testing.T, raw json.RawMessage) string {
	t.Helper()
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		t.Fatalf("unmarshal %s: %v", raw, err)
	}
	return s
}

// buyCredits purchases enough credit for numRecords records via the API.
func buyCredits(t *testing.T, srv *httptest.Server, application *app.Application, account string, numRecords uint64) {
	t.Helper()
	cost, err := application.Credits.CalculateCost(numRecords)
	if err != nil {
		t.Fatalf("CalculateCost failed: %v", err)
	}
	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/storage/buy", map[string]any{
		"caller":      account,
		"num_records": numRecords,
		"attached":    cost,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("buy storage status = %d", resp.StatusCode)
	}
}

func submitTestList(t *testing.T, srv *httptest.Server, application *app.Application) string {
	t.Helper()
	buyCredits(t, srv, application, "alice.near", 2)
	resp, body := doJSON(t, http.MethodPost, srv.URL+"/submit-list", map[string]any{
		"submitter": "alice.near",
		"token_id":  "near",
		"payments": []map[string]string{
			{"recipient": "bob.near", "amount": "100"},
			{"recipient": "carol.near", "amount": "200"},
		},
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("submit status = %d, body %v", resp.StatusCode, body)
	}
	return rawString(t, body["id"])
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t)
	resp, body := doJSON(t, http.MethodGet, srv.URL+"/health", nil)
	if resp.StatusCode != http.StatusOK || rawString(t, body["status"]) != "ok" {
		t.Fatalf("health = %d %v", resp.StatusCode, body)
	}
}

func TestStorageCostEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/storage/cost?num_records=10", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if got := rawString(t, body["cost"]); got != "23760000000000000000000" {
		t.Fatalf("cost = %s", got)
	}

	resp, _ = doJSON(t, http.MethodGet, srv.URL+"/storage/cost", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("missing param status = %d", resp.StatusCode)
	}
}

func TestBuyStorageAndViewCredit(t *testing.T) {
	srv, application := newTestServer(t)
	buyCredits(t, srv, application, "alice.near", 3)

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/credits/alice.near", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	cost, _ := application.Credits.CalculateCost(3)
	if got := rawString(t, body["balance"]); got != cost.String() {
		t.Fatalf("balance = %s, want %s", got, cost)
	}
}

func TestBuyStorageWrongDeposit(t *testing.T) {
	srv, _ := newTestServer(t)
	resp, body := doJSON(t, http.MethodPost, srv.URL+"/storage/buy", map[string]any{
		"caller":      "alice.near",
		"num_records": 3,
		"attached":    "1",
	})
	if resp.StatusCode != http.StatusPaymentRequired {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if msg := rawString(t, body["error"]); !strings.Contains(msg, "exact deposit required") {
		t.Fatalf("error = %q", msg)
	}
}

func TestSubmitListAndView(t *testing.T) {
	srv, application := newTestServer(t)
	id := submitTestList(t, srv, application)

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/list/"+id, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("view status = %d", resp.StatusCode)
	}
	if got := rawString(t, body["status"]); got != string(payment.ListStatusPending) {
		t.Fatalf("status = %s", got)
	}
	if got := rawString(t, body["total_amount"]); got != "300" {
		t.Fatalf("total_amount = %s", got)
	}
	var pending int
	if err := json.Unmarshal(body["pending"], &pending); err != nil || pending != 2 {
		t.Fatalf("pending = %s (%v)", body["pending"], err)
	}
}

func TestSubmitListIDMismatch(t *testing.T) {
	srv, application := newTestServer(t)
	buyCredits(t, srv, application, "alice.near", 1)

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/submit-list", map[string]any{
		"submitter": "alice.near",
		"token_id":  "near",
		"payments":  []map[string]string{{"recipient": "bob.near", "amount": "100"}},
		"list_id":   strings.Repeat("a", 64),
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if msg := rawString(t, body["error"]); !strings.Contains(msg, "does not match") {
		t.Fatalf("error = %q", msg)
	}
}

type fakeVerifier struct {
	allow bool
	err   error
}

func (v fakeVerifier) HasMatchingProposal(ctx context.Context, listID string) (bool, error) {
	return v.allow, v.err
}

func TestSubmitListProposalGate(t *testing.T) {
	srv, application := newTestServer(t, WithProposalVerifier(fakeVerifier{allow: false}))
	buyCredits(t, srv, application, "alice.near", 1)

	// Without a claimed list_id there is nothing to match a proposal
	// against, so the gate does not apply.
	body := map[string]any{
		"submitter": "alice.near",
		"token_id":  "near",
		"payments":  []map[string]string{{"recipient": "bob.near", "amount": "100"}},
	}
	resp, raw := doJSON(t, http.MethodPost, srv.URL+"/submit-list", body)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("submission without list_id skips the gate: %d %v", resp.StatusCode, raw)
	}
}

func TestSubmitListProposalDenied(t *testing.T) {
	srv, application := newTestServer(t, WithProposalVerifier(fakeVerifier{allow: false}))
	buyCredits(t, srv, application, "alice.near", 1)

	// First register to learn the id, then resubmit with the gate active.
	id, err := application.Registry.SubmitList(context.Background(), "alice.near", "near",
		[]payment.Input{{Recipient: "bob.near", Amount: amount.FromUint64(100)}})
	if err != nil {
		t.Fatalf("SubmitList failed: %v", err)
	}

	resp, raw := doJSON(t, http.MethodPost, srv.URL+"/submit-list", map[string]any{
		"submitter": "alice.near",
		"token_id":  "near",
		"payments":  []map[string]string{{"recipient": "bob.near", "amount": "100"}},
		"list_id":   id,
	})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("status = %d %v", resp.StatusCode, raw)
	}
}

func TestApproveRejectOverHTTP(t *testing.T) {
	srv, application := newTestServer(t)
	id := submitTestList(t, srv, application)

	// Wrong caller is refused.
	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/list/"+id+"/approve", map[string]any{
		"caller":   "mallory.near",
		"attached": "300",
	})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	// Wrong deposit is refused.
	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/list/"+id+"/approve", map[string]any{
		"caller":   "alice.near",
		"attached": "299",
	})
	if resp.StatusCode != http.StatusPaymentRequired {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/list/"+id+"/approve", map[string]any{
		"caller":   "alice.near",
		"attached": "300",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	// Rejecting an approved list conflicts.
	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/list/"+id+"/reject", map[string]any{
		"caller": "alice.near",
	})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestPayoutOverHTTP(t *testing.T) {
	srv, application := newTestServer(t)
	application.Native.CreateAccount("bob.near")
	application.Native.CreateAccount("carol.near")

	id := submitTestList(t, srv, application)
	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/list/"+id+"/approve", map[string]any{
		"caller":   "alice.near",
		"attached": "300",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("approve status = %d", resp.StatusCode)
	}

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/list/"+id+"/payout", map[string]any{"max_count": 10})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("payout status = %d", resp.StatusCode)
	}
	var paid int
	if err := json.Unmarshal(body["paid"], &paid); err != nil || paid != 2 {
		t.Fatalf("paid = %s (%v)", body["paid"], err)
	}

	resp, raw := doJSON(t, http.MethodGet, srv.URL+"/list/"+id+"/transactions", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("transactions status = %d %v", resp.StatusCode, raw)
	}
}

func TestPayoutEmptyBodyDefaults(t *testing.T) {
	srv, application := newTestServer(t)
	application.Native.CreateAccount("bob.near")
	application.Native.CreateAccount("carol.near")

	id := submitTestList(t, srv, application)
	if err := application.Approval.ApproveList(context.Background(), "alice.near", id, amount.MustParse("300")); err != nil {
		t.Fatalf("ApproveList failed: %v", err)
	}

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/list/"+id+"/payout", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d %v", resp.StatusCode, body)
	}
}

func TestListNotFound(t *testing.T) {
	srv, _ := newTestServer(t)
	missing := strings.Repeat("0", 64)
	resp, _ := doJSON(t, http.MethodGet, srv.URL+"/list/"+missing, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestAuditTrail(t *testing.T) {
	srv, application := newTestServer(t)
	submitTestList(t, srv, application)

	resp, err := http.Get(srv.URL + "/audit")
	if err != nil {
		t.Fatalf("GET /audit failed: %v", err)
	}
	defer resp.Body.Close()

	var entries []map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		t.Fatalf("decode audit: %v", err)
	}
	if len(entries) < 2 {
		t.Fatalf("audit entries = %d, want at least the purchase and the submit", len(entries))
	}
	last := entries[len(entries)-1]
	if last["path"] != "/submit-list" || last["caller"] != "alice.near" {
		t.Fatalf("unexpected audit entry: %v", last)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestMethodRouting(t *testing.T) {
	srv, _ := newTestServer(t)
	resp, err := http.Post(srv.URL+"/health", "application/json", nil)
	if err != nil {
		t.Fatalf("POST /health failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", resp.StatusCode)
	}
}
