// Package events publishes internal notifications about applied credits so
// downstream consumers (analytics, user notifications) can react without
// coupling to this service's store.
package events

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// DepositCredited is emitted exactly once per applied credit (the transaction
// reference is the deduplication key for consumers).
type DepositCredited struct {
	TransactionID string          `json:"transaction_id"`
	AccountID     string          `json:"account_id"`
	Reference     string          `json:"reference"`
	Amount        decimal.Decimal `json:"amount"` // major units
	Channel       string          `json:"channel"`
	OccurredAt    time.Time       `json:"occurred_at"`
}

// Publisher delivers events to whatever backbone is configured. Publishing is
// best-effort from the webhook's point of view: a failure is logged, never
// turned into a non-2xx response (that would make the processor redeliver an
// already-credited deposit).
type Publisher interface {
	Publish(ctx context.Context, event DepositCredited) error
}

// Noop discards events. Used when no broker is configured and in tests that
// don't care about publishing.
type Noop struct{}

func (Noop) Publish(context.Context, DepositCredited) error { return nil }
