// Package paystack defines the interface for Paystack API calls and webhook
// authentication, and provides the notification types consumed by the ledger.
package paystack

import (
	"context"

	"github.com/shopspring/decimal"
)

// MinorUnitScale is the fixed conversion factor between the minor unit the
// processor reports (kobo) and the major unit recorded on accounts (naira).
const MinorUnitScale = 100

// ─── TYPES ────────────────────────────────────────────────────────────────────

// InitializeParams holds the inputs for starting a hosted deposit.
type InitializeParams struct {
	Email       string
	AmountMinor int64 // minor units (kobo); Paystack expects this
}

// Authorization is the subset of an initialize response callers need to get
// the user onto Paystack's hosted payment page.
type Authorization struct {
	Reference        string
	AuthorizationURL string
	AccessCode       string
}

// TransactionStatus is the reshaped result of a verify call.
type TransactionStatus struct {
	Status        string // "success", "pending", "failed", "abandoned"
	AmountMajor   decimal.Decimal
	CustomerEmail string
	Channel       string
	PaidAt        string
}

// ─── CLIENT INTERFACE ─────────────────────────────────────────────────────────

// Client is the interface the api package uses for outbound Paystack calls.
// Both operations are stateless request/response forwarding — no retries, no
// caching. Tests inject a stub.
type Client interface {
	// InitializeTransaction creates a processor-hosted payment and returns
	// its reference and authorization URL.
	InitializeTransaction(ctx context.Context, p InitializeParams) (Authorization, error)

	// VerifyTransaction fetches the current status of a payment reference.
	VerifyTransaction(ctx context.Context, reference string) (TransactionStatus, error)
}

// MinorToMajor converts an amount in minor units to the exact major-unit
// decimal. 333 → 3.33 with no floating-point involved, so repeated small
// deposits never accumulate rounding drift.
func MinorToMajor(minor int64) decimal.Decimal {
	// MinorUnitScale is 100, i.e. a decimal shift of two places.
	return decimal.New(minor, -2)
}
