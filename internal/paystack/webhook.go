package paystack

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// SignatureHeader is the request header Paystack puts the body signature in.
const SignatureHeader = "x-paystack-signature"

// EventChargeSuccess is the only event kind that results in a credit. New
// creditable kinds get their own constant and a branch in Creditable — the
// success-path contract itself never changes.
const EventChargeSuccess = "charge.success"

// ─── SIGNATURE ───────────────────────────────────────────────────────────────

// VerifySignature reports whether signature is the hex-encoded HMAC-SHA512 of
// payload under secret.
//
// payload must be the exact raw body bytes as received on the wire. Paystack
// signs its own serialization; re-encoding a parsed structure changes field
// order and number formatting and would reject genuine notifications. The
// comparison is constant-time.
func VerifySignature(payload []byte, signature, secret string) bool {
	if secret == "" || signature == "" {
		return false
	}

	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(signature))
}

// Sign computes the hex HMAC-SHA512 signature for payload. The server only
// verifies; this exists for tests and local tooling that replay notifications.
func Sign(payload []byte, secret string) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// ─── NOTIFICATION ────────────────────────────────────────────────────────────

// Notification is one webhook delivery attempt. The same Reference may arrive
// any number of times across processor retries — expected traffic, not an
// error.
type Notification struct {
	Event string           `json:"event"`
	Data  NotificationData `json:"data"`
}

type NotificationData struct {
	Reference string `json:"reference"`
	Amount    int64  `json:"amount"` // minor units
	Channel   string `json:"channel"`
	Customer  struct {
		Email string `json:"email"`
	} `json:"customer"`
	Metadata json.RawMessage `json:"metadata,omitempty"`
}

// metadataFields are the keys this backend reads out of the otherwise opaque
// metadata object.
type metadataFields struct {
	UserID string `json:"user_id"`
}

// ParseNotification decodes an authenticated webhook body. Unknown fields are
// tolerated — Paystack adds payload fields without notice.
func ParseNotification(payload []byte) (Notification, error) {
	var n Notification
	if err := json.Unmarshal(payload, &n); err != nil {
		return Notification{}, fmt.Errorf("paystack: parse notification: %w", err)
	}
	if n.Event == "" {
		return Notification{}, fmt.Errorf("paystack: notification has no event field")
	}
	return n, nil
}

// Creditable reports whether this notification represents a successful charge
// — the one event kind that moves money. Everything else is acknowledged and
// ignored so the processor stops redelivering it.
func (n Notification) Creditable() bool {
	return n.Event == EventChargeSuccess
}

// UserID extracts the explicit account identifier from metadata, or "" when
// absent or unparseable.
func (n Notification) UserID() string {
	if len(n.Data.Metadata) == 0 {
		return ""
	}
	var m metadataFields
	if err := json.Unmarshal(n.Data.Metadata, &m); err != nil {
		return ""
	}
	return m.UserID
}
