package api

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/quorix-finance/deposits-backend/internal/paystack"
)

// The deposit endpoints are stateless forwarders to Paystack: one outbound
// call plus response reshaping. No rows are written here — crediting happens
// only when the webhook arrives.

// ─── POST /api/deposits ───────────────────────────────────────────────────────

type initiateDepositRequest struct {
	Email  string          `json:"email"`
	Amount decimal.Decimal `json:"amount"` // major units
}

type initiateDepositResponse struct {
	Status           string `json:"status"` // always "pending"
	Reference        string `json:"reference"`
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
}

// handleInitiateDeposit asks Paystack for a hosted payment page and returns
// its reference and URL.
func (s *Server) handleInitiateDeposit(w http.ResponseWriter, r *http.Request) {
	var req initiateDepositRequest
	if !decode(w, r, &req) {
		return
	}

	if req.Email == "" {
		respondErr(w, http.StatusBadRequest, "email is required")
		return
	}
	if !req.Amount.IsPositive() {
		respondErr(w, http.StatusBadRequest, "amount must be positive")
		return
	}

	// Paystack expects the amount in minor units. The shift must land on a
	// whole number — sub-minor-unit amounts cannot be charged.
	minor := req.Amount.Shift(2)
	if !minor.IsInteger() {
		respondErr(w, http.StatusBadRequest, "amount has more than two decimal places")
		return
	}

	auth, err := s.paystack.InitializeTransaction(r.Context(), paystack.InitializeParams{
		Email:       req.Email,
		AmountMinor: minor.IntPart(),
	})
	if err != nil {
		s.respondInternalErr(w, r, fmt.Errorf("initialize transaction: %w", err))
		return
	}

	respond(w, http.StatusOK, initiateDepositResponse{
		Status:           "pending",
		Reference:        auth.Reference,
		AuthorizationURL: auth.AuthorizationURL,
		AccessCode:       auth.AccessCode,
	})
}

// ─── GET /api/deposits/{reference} ────────────────────────────────────────────

type verifyDepositResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`

	// Amount is a pointer so non-success responses omit the field entirely
	// instead of reporting a zero amount.
	Amount   *decimal.Decimal `json:"amount,omitempty"` // major units
	Email    string           `json:"email,omitempty"`
	Channel  string           `json:"channel,omitempty"`
	PaidAt   string           `json:"paid_at,omitempty"`
	Currency string           `json:"currency,omitempty"`
}

// handleVerifyDeposit fetches the current status of a payment reference from
// Paystack. Non-success statuses ("pending", "failed", "abandoned") are still
// a 200 — the lookup worked; the payment just isn't done.
func (s *Server) handleVerifyDeposit(w http.ResponseWriter, r *http.Request) {
	reference := chi.URLParam(r, "reference")
	if reference == "" {
		respondErr(w, http.StatusBadRequest, "transaction reference is required")
		return
	}

	status, err := s.paystack.VerifyTransaction(r.Context(), reference)
	if err != nil {
		s.respondInternalErr(w, r, fmt.Errorf("verify transaction: %w", err))
		return
	}

	if status.Status != "success" {
		respond(w, http.StatusOK, verifyDepositResponse{
			Status:  status.Status,
			Message: fmt.Sprintf("Transaction is %s", status.Status),
		})
		return
	}

	respond(w, http.StatusOK, verifyDepositResponse{
		Status:   "success",
		Message:  "Deposit verified successfully",
		Amount:   &status.AmountMajor,
		Email:    status.CustomerEmail,
		Channel:  status.Channel,
		PaidAt:   status.PaidAt,
		Currency: s.cfg.Currency,
	})
}
