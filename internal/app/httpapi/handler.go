// Package httpapi exposes the payment ledger over REST.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	app "github.com/petersalomonsen/near-treasury-bulk-payment-contract/internal/app"
	"github.com/petersalomonsen/near-treasury-bulk-payment-contract/internal/app/domain/payment"
	"github.com/petersalomonsen/near-treasury-bulk-payment-contract/internal/app/metrics"
	"github.com/petersalomonsen/near-treasury-bulk-payment-contract/pkg/amount"
)

// ProposalVerifier checks that a governance proposal authorizing the list
// exists before a submission is accepted. A nil verifier skips the check.
type ProposalVerifier interface {
	HasMatchingProposal(ctx context.Context, listID string) (bool, error)
}

// handler bundles HTTP endpoints for the application services.
type handler struct {
	app       *app.Application
	proposals ProposalVerifier
	audit     *auditLog
}

// Option customizes the handler.
type Option func(*handler)

// WithProposalVerifier gates submissions on a governance proposal check.
func WithProposalVerifier(v ProposalVerifier) Option {
	return func(h *handler) { h.proposals = v }
}

// NewHandler returns a router exposing the REST API.
func NewHandler(application *app.Application, opts ...Option) http.Handler {
	h := &handler{app: application, audit: newAuditLog(0)}
	for _, opt := range opts {
		opt(h)
	}

	r := mux.NewRouter()
	r.Use(metricsMiddleware)

	r.HandleFunc("/health", h.health).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	r.HandleFunc("/storage/cost", h.storageCost).Methods(http.MethodGet)
	r.HandleFunc("/storage/buy", h.buyStorage).Methods(http.MethodPost)
	r.HandleFunc("/credits/{account}", h.viewCredit).Methods(http.MethodGet)

	r.HandleFunc("/submit-list", h.submitList).Methods(http.MethodPost)
	r.HandleFunc("/lists", h.listLists).Methods(http.MethodGet)
	r.HandleFunc("/list/{id}", h.viewList).Methods(http.MethodGet)
	r.HandleFunc("/list/{id}/transactions", h.listTransactions).Methods(http.MethodGet)
	r.HandleFunc("/list/{id}/approve", h.approveList).Methods(http.MethodPost)
	r.HandleFunc("/list/{id}/reject", h.rejectList).Methods(http.MethodPost)
	r.HandleFunc("/list/{id}/retry", h.retryFailed).Methods(http.MethodPost)
	r.HandleFunc("/list/{id}/payout", h.payoutBatch).Methods(http.MethodPost)

	r.HandleFunc("/audit", h.auditEntries).Methods(http.MethodGet)

	return r
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) storageCost(w http.ResponseWriter, r *http.Request) {
	var numRecords uint64
	if _, err := fmt.Sscanf(r.URL.Query().Get("num_records"), "%d", &numRecords); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("num_records query parameter required"))
		return
	}

	cost, err := h.app.Credits.CalculateCost(numRecords)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"num_records": numRecords, "cost": cost})
}

func (h *handler) buyStorage(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Caller      string        `json:"caller"`
		NumRecords  uint64        `json:"num_records"`
		Beneficiary string        `json:"beneficiary"`
		Attached    amount.Amount `json:"attached"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	credited, err := h.app.Credits.BuyStorage(r.Context(), payload.Caller, payload.NumRecords, payload.Beneficiary, payload.Attached)
	h.audit.add(r, payload.Caller, err)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"credited": credited})
}

func (h *handler) viewCredit(w http.ResponseWriter, r *http.Request) {
	account := mux.Vars(r)["account"]
	balance, err := h.app.Credits.ViewCredit(r.Context(), account)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"account": account, "balance": balance})
}

func (h *handler) submitList(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Submitter string          `json:"submitter"`
		TokenID   string          `json:"token_id"`
		Payments  []payment.Input `json:"payments"`
		// ListID is the id the client computed; when present it must match
		// the server-side hash so corrupted submissions are caught early.
		ListID string `json:"list_id,omitempty"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	if payload.ListID != "" {
		ok, err := h.app.Registry.VerifyID(payload.ListID, payload.Submitter, payload.TokenID, payload.Payments)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		if !ok {
			writeError(w, http.StatusBadRequest, fmt.Errorf("list_id does not match submitted content"))
			return
		}
	}

	if h.proposals != nil && payload.ListID != "" {
		ok, err := h.proposals.HasMatchingProposal(r.Context(), payload.ListID)
		if err != nil {
			writeError(w, http.StatusBadGateway, fmt.Errorf("proposal lookup failed: %w", err))
			return
		}
		if !ok {
			writeError(w, http.StatusForbidden, fmt.Errorf("no approved proposal found for list %s", payload.ListID))
			return
		}
	}

	id, err := h.app.Registry.SubmitList(r.Context(), payload.Submitter, payload.TokenID, payload.Payments)
	h.audit.add(r, payload.Submitter, err)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

func (h *handler) listLists(w http.ResponseWriter, r *http.Request) {
	lists, err := h.app.Registry.ViewLists(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, lists)
}

// listView is the list representation served to clients, the raw list plus
// derived counters.
type listView struct {
	payment.List
	TotalAmount   amount.Amount `json:"total_amount"`
	TotalPayments int           `json:"total_payments"`
	Pending       int           `json:"pending"`
	Paid          int           `json:"paid"`
	Failed        int           `json:"failed"`
}

func (h *handler) viewList(w http.ResponseWriter, r *http.Request) {
	list, err := h.app.Registry.ViewList(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	total, err := list.TotalAmount()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, listView{
		List:          list,
		TotalAmount:   total,
		TotalPayments: len(list.Payments),
		Pending:       list.PendingCount(),
		Paid:          list.PaidCount(),
		Failed:        list.FailedCount(),
	})
}

func (h *handler) listTransactions(w http.ResponseWriter, r *http.Request) {
	list, err := h.app.Registry.ViewList(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	txs := list.Transactions()
	if txs == nil {
		txs = []payment.Transaction{}
	}
	writeJSON(w, http.StatusOK, txs)
}

func (h *handler) approveList(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Caller   string        `json:"caller"`
		Attached amount.Amount `json:"attached"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	id := mux.Vars(r)["id"]
	err := h.app.Approval.ApproveList(r.Context(), payload.Caller, id, payload.Attached)
	h.audit.add(r, payload.Caller, err)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": id, "status": string(payment.ListStatusApproved)})
}

func (h *handler) rejectList(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Caller string `json:"caller"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	id := mux.Vars(r)["id"]
	err := h.app.Approval.RejectList(r.Context(), payload.Caller, id)
	h.audit.add(r, payload.Caller, err)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": id, "status": string(payment.ListStatusRejected)})
}

func (h *handler) retryFailed(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Caller string `json:"caller"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	reset, err := h.app.Approval.RetryFailed(r.Context(), payload.Caller, mux.Vars(r)["id"])
	h.audit.add(r, payload.Caller, err)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"reset": reset})
}

func (h *handler) payoutBatch(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		MaxCount int `json:"max_count"`
	}
	// An empty body means a default-sized batch.
	if err := decodeJSON(r.Body, &payload); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	result, err := h.app.Payout.PayoutBatch(r.Context(), mux.Vars(r)["id"], payload.MaxCount)
	h.audit.add(r, "", err)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *handler) auditEntries(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.audit.list())
}

// statusFor maps the domain error taxonomy to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, payment.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, payment.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, payment.ErrState):
		return http.StatusConflict
	case errors.Is(err, payment.ErrFundingMismatch), errors.Is(err, payment.ErrInsufficientCredit):
		return http.StatusPaymentRequired
	case errors.Is(err, payment.ErrValidation), errors.Is(err, amount.ErrOverflow):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func decodeJSON(body io.ReadCloser, dst interface{}) error {
	defer body.Close()
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
