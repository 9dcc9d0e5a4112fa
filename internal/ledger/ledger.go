// Package ledger turns an authenticated, creditable payment notification into
// exactly one balance credit. It owns the resolution, idempotency, and write
// protocol; the durable state itself lives behind store.Store.
//
// Correctness model: handlers for two concurrent deliveries of the same
// reference may both reach Apply. The store's uniqueness constraint on
// reference decides the winner — the loser observes ErrDuplicateReference and
// terminates as StatusDuplicate without mutating anything. No in-process
// locking is involved, so the guarantee holds across processes and machines.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sqlc-dev/pqtype"

	"github.com/quorix-finance/deposits-backend/internal/metrics"
	"github.com/quorix-finance/deposits-backend/internal/paystack"
	"github.com/quorix-finance/deposits-backend/internal/store"
)

// Status is the terminal outcome of processing one notification. Every status
// except a returned error maps to a 2xx acknowledgement — the processor must
// only redeliver on genuine transient failure.
type Status string

const (
	// StatusCredited — balance mutated, exactly once.
	StatusCredited Status = "credited"
	// StatusDuplicate — reference already applied; no mutation. Expected
	// traffic under redelivery, never logged as an error.
	StatusDuplicate Status = "duplicate"
	// StatusUnresolved — no account matches the notification. Acknowledged so
	// the processor stops redelivering; logged for manual reconciliation
	// since the money is otherwise unclaimed.
	StatusUnresolved Status = "unresolved"
	// StatusIgnored — not a creditable event kind.
	StatusIgnored Status = "ignored"
)

// Result reports what happened to a notification.
type Result struct {
	Status    Status
	AccountID uuid.UUID       // zero for ignored/unresolved
	Amount    decimal.Decimal // major units credited; zero unless StatusCredited
	Record    store.TransactionRecord
}

// Config holds the ledger's tunables.
type Config struct {
	// StoreTimeout bounds every store round trip so a stalled database fails
	// the request (and triggers redelivery) instead of hanging it.
	StoreTimeout time.Duration
}

// Service is the credit pipeline. Construct with New.
type Service struct {
	store  store.Store
	cfg    Config
	logger *slog.Logger
}

func New(st store.Store, cfg Config, logger *slog.Logger) *Service {
	if cfg.StoreTimeout <= 0 {
		cfg.StoreTimeout = 5 * time.Second
	}
	return &Service{store: st, cfg: cfg, logger: logger}
}

// ProcessNotification runs the full pipeline for one authenticated
// notification: classify, resolve, guard, write. A non-nil error means a
// transient fault — the caller must respond non-2xx so the processor
// redelivers; every path here is safe to rerun with the identical payload.
func (s *Service) ProcessNotification(ctx context.Context, n paystack.Notification) (Result, error) {
	// ── Classify ──────────────────────────────────────────────────────────────
	if !n.Creditable() {
		s.logger.Debug("ledger: non-creditable event acknowledged", "event", n.Event, "reference", n.Data.Reference)
		return Result{Status: StatusIgnored}, nil
	}
	if n.Data.Reference == "" {
		// A charge.success without a reference cannot be deduplicated; treat
		// as non-creditable rather than risking a double credit.
		s.logger.Warn("ledger: charge.success without reference ignored", "email", n.Data.Customer.Email)
		return Result{Status: StatusIgnored}, nil
	}
	if n.Data.Amount <= 0 {
		s.logger.Warn("ledger: non-positive amount ignored", "reference", n.Data.Reference, "amount", n.Data.Amount)
		return Result{Status: StatusIgnored}, nil
	}

	// ── Resolve ───────────────────────────────────────────────────────────────
	account, err := s.resolveAccount(ctx, n)
	if errors.Is(err, store.ErrAccountNotFound) {
		// Benign terminal: acknowledge so the processor stops redelivering an
		// unresolvable event, but make the unclaimed money visible.
		s.logger.Warn("ledger: no account for deposit — needs manual follow-up",
			"reference", n.Data.Reference,
			"email", n.Data.Customer.Email,
			"amount_minor", n.Data.Amount,
		)
		return Result{Status: StatusUnresolved}, nil
	}
	if err != nil {
		return Result{}, fmt.Errorf("resolve account: %w", err)
	}

	// ── Guard ─────────────────────────────────────────────────────────────────
	// Cheap pre-check; the authoritative guard is the uniqueness constraint
	// hit inside Apply. This only short-circuits the common sequential-retry
	// case without an insert attempt.
	if _, err := s.findTransaction(ctx, n.Data.Reference); err == nil {
		s.logger.Debug("ledger: duplicate delivery, already credited", "reference", n.Data.Reference)
		return Result{Status: StatusDuplicate, AccountID: account.ID}, nil
	} else if !errors.Is(err, store.ErrTransactionNotFound) {
		return Result{}, fmt.Errorf("check reference: %w", err)
	}

	// ── Write ─────────────────────────────────────────────────────────────────
	rec := store.TransactionRecord{
		ID:        uuid.New(),
		AccountID: account.ID,
		Amount:    paystack.MinorToMajor(n.Data.Amount),
		Type:      "credit",
		Reference: n.Data.Reference,
		Channel:   n.Data.Channel,
		CreatedAt: time.Now().UTC(),
	}
	if len(n.Data.Metadata) > 0 {
		rec.Metadata = pqtype.NullRawMessage{RawMessage: n.Data.Metadata, Valid: true}
	}

	applied, err := s.apply(ctx, rec)
	if err != nil {
		return Result{}, err
	}
	if !applied {
		// Lost the race with a concurrent delivery of the same reference.
		s.logger.Debug("ledger: concurrent duplicate detected at write", "reference", n.Data.Reference)
		return Result{Status: StatusDuplicate, AccountID: account.ID}, nil
	}

	s.logger.Info("ledger: deposit credited",
		"reference", rec.Reference,
		"account_id", rec.AccountID,
		"amount", rec.Amount,
		"channel", rec.Channel,
	)
	return Result{Status: StatusCredited, AccountID: account.ID, Amount: rec.Amount, Record: rec}, nil
}

// resolveAccount maps the notification to an account. An explicit user_id in
// metadata wins and is trusted as-is (it was set by our own deposit-initiation
// call); otherwise the customer email is looked up. An unparseable user_id
// degrades to the email path rather than failing the delivery.
func (s *Service) resolveAccount(ctx context.Context, n paystack.Notification) (store.Account, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()

	if raw := n.UserID(); raw != "" {
		id, err := uuid.Parse(raw)
		if err == nil {
			return s.store.GetAccount(ctx, id)
		}
		s.logger.Warn("ledger: unparseable user_id in metadata, falling back to email",
			"user_id", raw, "reference", n.Data.Reference)
	}

	if n.Data.Customer.Email == "" {
		return store.Account{}, store.ErrAccountNotFound
	}
	return s.store.FindAccountByEmail(ctx, n.Data.Customer.Email)
}

func (s *Service) findTransaction(ctx context.Context, reference string) (store.TransactionRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()
	return s.store.FindTransactionByReference(ctx, reference)
}

// apply performs the durable write. Returns applied=false when the reference
// turned out to be a duplicate (either path), and an error only for transient
// faults where nothing was credited.
func (s *Service) apply(ctx context.Context, rec store.TransactionRecord) (applied bool, err error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()

	err = s.store.Credit(ctx, rec)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, store.ErrDuplicateReference):
		return false, nil
	case errors.Is(err, store.ErrAtomicUnsupported):
		return s.applyFallback(ctx, rec)
	default:
		return false, fmt.Errorf("credit: %w", err)
	}
}

// applyFallback is the distinctly inferior path for stores without an atomic
// credit: insert the marker, then read-modify-write the balance. The window
// between the two writes is unsafe under concurrent credits to the same
// account, and a failure after the marker insert leaves the record without
// its balance increment — both conditions are surfaced loudly so operators
// know this path is live.
func (s *Service) applyFallback(ctx context.Context, rec store.TransactionRecord) (bool, error) {
	metrics.FallbackBalanceWrites.Inc()
	s.logger.Warn("ledger: atomic credit unsupported, using non-atomic fallback", "reference", rec.Reference)

	err := s.store.InsertTransaction(ctx, rec)
	if errors.Is(err, store.ErrDuplicateReference) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("fallback insert: %w", err)
	}

	balance, err := s.store.GetBalance(ctx, rec.AccountID)
	if err != nil {
		s.logger.Error("ledger: INCONSISTENT — transaction recorded but balance not read",
			"reference", rec.Reference, "account_id", rec.AccountID, "error", err)
		return false, fmt.Errorf("fallback read balance: %w", err)
	}

	if err := s.store.SetBalance(ctx, rec.AccountID, balance.Add(rec.Amount)); err != nil {
		// The marker exists but the money does not. Redelivery will now stop
		// at the duplicate guard, so this needs a human.
		s.logger.Error("ledger: INCONSISTENT — transaction recorded but balance not updated",
			"reference", rec.Reference, "account_id", rec.AccountID, "error", err)
		return false, fmt.Errorf("fallback write balance: %w", err)
	}
	return true, nil
}
