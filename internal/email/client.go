// Package email defines the interface for transactional email delivery and
// provides a Resend-backed implementation.
package email

import (
	"context"

	"github.com/shopspring/decimal"
)

// DepositReceiptParams holds the data for the post-credit receipt email.
type DepositReceiptParams struct {
	To        string // recipient email address
	Amount    decimal.Decimal
	Currency  string // e.g. "NGN"
	Reference string
	Channel   string
}

// Sender is the interface the webhook handler uses to send email. Tests
// inject a stub that records calls without hitting the network.
type Sender interface {
	// SendDepositReceipt confirms a credited deposit to the customer. Called
	// after the balance mutation commits; failure must never fail the webhook.
	SendDepositReceipt(ctx context.Context, p DepositReceiptParams) error
}

// Noop discards all email. Used when RESEND_API_KEY is not configured.
type Noop struct{}

func (Noop) SendDepositReceipt(context.Context, DepositReceiptParams) error { return nil }
