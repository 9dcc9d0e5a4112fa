package api_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/quorix-finance/deposits-backend/internal/paystack"
)

func doJSON(t *testing.T, handler http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", testAPIKey)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

// ─── POST /api/deposits ───────────────────────────────────────────────────────

func TestInitiateDeposit(t *testing.T) {
	deps := newTestServer(t)

	rr := doJSON(t, deps.handler, http.MethodPost, "/api/deposits",
		`{"email":"a@x.com","amount":"250.50"}`)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp map[string]string
	decodeJSON(t, rr, &resp)
	if resp["status"] != "pending" {
		t.Errorf("status: got %q, want pending", resp["status"])
	}
	if resp["reference"] != "ref-stub" {
		t.Errorf("reference: got %q", resp["reference"])
	}
	if resp["authorization_url"] == "" {
		t.Error("authorization_url missing")
	}

	// The major-unit amount must reach Paystack in minor units, exactly.
	if got := deps.paystack.lastInitialize.AmountMinor; got != 25050 {
		t.Errorf("minor amount sent: got %d, want 25050", got)
	}
	if got := deps.paystack.lastInitialize.Email; got != "a@x.com" {
		t.Errorf("email sent: got %q", got)
	}
}

func TestInitiateDeposit_Validation(t *testing.T) {
	deps := newTestServer(t)

	cases := []struct {
		name string
		body string
	}{
		{"missing email", `{"amount":"100"}`},
		{"zero amount", `{"email":"a@x.com","amount":"0"}`},
		{"negative amount", `{"email":"a@x.com","amount":"-5"}`},
		{"sub-minor-unit amount", `{"email":"a@x.com","amount":"10.005"}`},
		{"malformed json", `{"email":`},
		{"unknown field", `{"email":"a@x.com","amount":"1","extra":true}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := doJSON(t, deps.handler, http.MethodPost, "/api/deposits", tc.body)
			if rr.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d: %s", rr.Code, rr.Body.String())
			}
		})
	}
}

func TestInitiateDeposit_UpstreamFailure(t *testing.T) {
	deps := newTestServer(t)
	deps.paystack.initializeFn = func(context.Context, paystack.InitializeParams) (paystack.Authorization, error) {
		return paystack.Authorization{}, errors.New("paystack: status 502")
	}

	rr := doJSON(t, deps.handler, http.MethodPost, "/api/deposits",
		`{"email":"a@x.com","amount":"100"}`)
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
	// Internal details must not leak.
	if strings.Contains(rr.Body.String(), "502") {
		t.Errorf("upstream error leaked: %s", rr.Body.String())
	}
}

// ─── GET /api/deposits/{reference} ────────────────────────────────────────────

func TestVerifyDeposit_Success(t *testing.T) {
	deps := newTestServer(t)
	deps.paystack.verifyFn = func(_ context.Context, ref string) (paystack.TransactionStatus, error) {
		return paystack.TransactionStatus{
			Status:        "success",
			AmountMajor:   decimal.RequireFromString("5000"),
			CustomerEmail: "a@x.com",
			Channel:       "bank_transfer",
			PaidAt:        "2026-08-30T10:00:00.000Z",
		}, nil
	}

	rr := doJSON(t, deps.handler, http.MethodGet, "/api/deposits/ref-123", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if deps.paystack.lastVerifyRef != "ref-123" {
		t.Errorf("verify reference: got %q", deps.paystack.lastVerifyRef)
	}

	var resp struct {
		Status   string          `json:"status"`
		Amount   decimal.Decimal `json:"amount"`
		Email    string          `json:"email"`
		Currency string          `json:"currency"`
	}
	decodeJSON(t, rr, &resp)
	if resp.Status != "success" {
		t.Errorf("status: got %q", resp.Status)
	}
	if !resp.Amount.Equal(decimal.NewFromInt(5000)) {
		t.Errorf("amount: got %s", resp.Amount)
	}
	if resp.Currency != "NGN" {
		t.Errorf("currency: got %q", resp.Currency)
	}
}

func TestVerifyDeposit_Pending(t *testing.T) {
	deps := newTestServer(t)

	// Stub default is "pending". A non-success status is still a 200: the
	// lookup worked, the payment just isn't done.
	rr := doJSON(t, deps.handler, http.MethodGet, "/api/deposits/ref-p", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var resp map[string]any
	decodeJSON(t, rr, &resp)
	if resp["status"] != "pending" {
		t.Errorf("status: got %v", resp["status"])
	}
	if _, ok := resp["amount"]; ok {
		t.Error("pending response must not carry an amount")
	}
}

// ─── AUTH & OPERATIONAL ───────────────────────────────────────────────────────

func TestDepositEndpoints_RequireAPIKey(t *testing.T) {
	deps := newTestServer(t)

	cases := []struct {
		name string
		key  string
	}{
		{"missing key", ""},
		{"wrong key", "not-the-key"},
		{"padded wrong key", testAPIKey + "x"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/deposits",
				strings.NewReader(`{"email":"a@x.com","amount":"1"}`))
			if tc.key != "" {
				req.Header.Set("x-api-key", tc.key)
			}
			rr := httptest.NewRecorder()
			deps.handler.ServeHTTP(rr, req)
			if rr.Code != http.StatusUnauthorized {
				t.Errorf("expected 401, got %d", rr.Code)
			}
		})
	}
}

func TestHealthz(t *testing.T) {
	deps := newTestServer(t)
	rr := httptest.NewRecorder()
	deps.handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rr.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rr.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	deps := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/deposits", nil)
	req.Header.Set("Origin", "https://app.quorix.finance")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rr := httptest.NewRecorder()
	deps.handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("preflight: expected 204, got %d", rr.Code)
	}
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "https://app.quorix.finance" {
		t.Errorf("allow-origin: got %q", got)
	}
	if !strings.Contains(rr.Header().Get("Access-Control-Allow-Headers"), "x-api-key") {
		t.Errorf("allow-headers missing x-api-key: %q", rr.Header().Get("Access-Control-Allow-Headers"))
	}
}
