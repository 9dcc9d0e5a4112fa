package api

import (
	"fmt"
	"io"
	"net/http"

	"github.com/quorix-finance/deposits-backend/internal/email"
	"github.com/quorix-finance/deposits-backend/internal/events"
	"github.com/quorix-finance/deposits-backend/internal/ledger"
	"github.com/quorix-finance/deposits-backend/internal/metrics"
	"github.com/quorix-finance/deposits-backend/internal/paystack"
)

// ─── POST /api/webhooks/paystack ──────────────────────────────────────────────

// handlePaystackWebhook is the entry point for all Paystack webhook
// deliveries.
//
// Paystack delivers events at-least-once and retries on any non-2xx response,
// timeout, or ambiguous failure — with the identical payload. The response
// contract is therefore strict: 2xx only for states that must not be
// redelivered (credited, duplicate, unresolved, ignored), non-2xx only for
// states where a rerun can succeed. Every path after signature verification
// is idempotent, so redelivery is always safe.
//
// Response mapping:
//
//	401 — bad/missing signature (never retried productively; logged as a
//	      potential tampering attempt)
//	500 — missing webhook secret (configuration fault; verification is never
//	      skipped) or transient store fault (retry wanted)
//	400 — unreadable or malformed body
//	200 — every terminal business outcome, with its status in the body
func (s *Server) handlePaystackWebhook(w http.ResponseWriter, r *http.Request) {
	// ── 1. Read and size-limit the raw body ───────────────────────────────────
	// The signature covers the exact bytes on the wire, so the body is read
	// before any parsing. 64 KB is generous for any Paystack event.
	r.Body = http.MaxBytesReader(w, r.Body, 65536)
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		respondErr(w, http.StatusBadRequest, "could not read request body")
		return
	}

	// ── 2. Verify the signature header ────────────────────────────────────────
	if s.cfg.PaystackWebhookSecret == "" {
		// Config validation prevents this at startup; the guard stays so a
		// misconfigured deploy can never skip verification.
		s.respondInternalErr(w, r, fmt.Errorf("paystack webhook secret is not configured"))
		return
	}

	sig := r.Header.Get(paystack.SignatureHeader)
	if !paystack.VerifySignature(payload, sig, s.cfg.PaystackWebhookSecret) {
		metrics.SignatureRejects.Inc()
		s.logger.Warn("webhook: invalid signature", "remote", r.RemoteAddr, logField(r))
		respondErr(w, http.StatusUnauthorized, "invalid webhook signature")
		return
	}

	// ── 3. Parse the authenticated payload ────────────────────────────────────
	n, err := paystack.ParseNotification(payload)
	if err != nil {
		s.logger.Warn("webhook: malformed payload with valid signature", "error", err, logField(r))
		respondErr(w, http.StatusBadRequest, "malformed notification")
		return
	}

	// ── 4. Run the credit pipeline ────────────────────────────────────────────
	result, err := s.ledger.ProcessNotification(r.Context(), n)
	if err != nil {
		metrics.WebhookNotifications.WithLabelValues("failed").Inc()
		s.logger.Error("webhook: processing failed, expecting redelivery",
			"event", n.Event,
			"reference", n.Data.Reference,
			"error", err,
			logField(r),
		)
		// Non-2xx so Paystack redelivers; the pipeline is idempotent.
		respondErr(w, http.StatusInternalServerError, "webhook processing failed")
		return
	}

	metrics.WebhookNotifications.WithLabelValues(string(result.Status)).Inc()

	// ── 5. Post-credit side effects (best-effort) ─────────────────────────────
	if result.Status == ledger.StatusCredited {
		s.publishCredited(r, n, result)
		s.sendReceipt(r, n, result)
	}

	respond(w, http.StatusOK, map[string]string{"status": string(result.Status)})
}

// publishCredited emits the DepositCredited event. Failures are logged and
// swallowed — failing the response here would make Paystack redeliver an
// already-applied credit forever.
func (s *Server) publishCredited(r *http.Request, n paystack.Notification, result ledger.Result) {
	err := s.publisher.Publish(r.Context(), events.DepositCredited{
		TransactionID: result.Record.ID.String(),
		AccountID:     result.AccountID.String(),
		Reference:     result.Record.Reference,
		Amount:        result.Amount,
		Channel:       result.Record.Channel,
		OccurredAt:    result.Record.CreatedAt,
	})
	if err != nil {
		s.logger.Error("webhook: publish deposit event failed",
			"reference", result.Record.Reference,
			"error", err,
			logField(r),
		)
	}
}

// sendReceipt emails the customer. Same best-effort rule as publishing.
func (s *Server) sendReceipt(r *http.Request, n paystack.Notification, result ledger.Result) {
	if n.Data.Customer.Email == "" {
		return
	}
	err := s.mailer.SendDepositReceipt(r.Context(), email.DepositReceiptParams{
		To:        n.Data.Customer.Email,
		Amount:    result.Amount,
		Currency:  s.cfg.Currency,
		Reference: result.Record.Reference,
		Channel:   result.Record.Channel,
	})
	if err != nil {
		s.logger.Error("webhook: receipt email failed",
			"reference", result.Record.Reference,
			"error", err,
			logField(r),
		)
	}
}
