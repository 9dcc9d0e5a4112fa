// Package store defines the persistence contract for accounts and deposit
// transaction records, plus the Postgres and in-memory implementations.
//
// The rest of the system only mutates through two paths: Credit (the
// preferred, atomic path) and the InsertTransaction/SetBalance pair (the
// fallback for stores that cannot combine both writes). Everything else is
// read-only.
//
// Dependency rule: store imports nothing from api, ledger, paystack, events,
// or email.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sqlc-dev/pqtype"
)

// ─── TYPES ────────────────────────────────────────────────────────────────────

// Account is a user balance row. Accounts are created and owned by the
// account-management service; this backend only reads them and increments
// Balance through the credit path.
type Account struct {
	ID        uuid.UUID
	Email     string
	Balance   decimal.Decimal // major currency units
	CreatedAt time.Time
}

// TransactionRecord is one applied credit. Reference is unique per real-world
// payment attempt — the uniqueness constraint on it is the idempotency
// contract for webhook redelivery.
type TransactionRecord struct {
	ID        uuid.UUID
	AccountID uuid.UUID
	Amount    decimal.Decimal // major currency units, positive
	Type      string          // always "credit" here
	Reference string
	Channel   string
	Metadata  pqtype.NullRawMessage // raw processor metadata, kept for investigation
	CreatedAt time.Time
}

// ─── ERRORS ──────────────────────────────────────────────────────────────────

var (
	// ErrAccountNotFound is returned by account lookups when no row matches.
	// For email resolution this is a benign outcome, not a store fault.
	ErrAccountNotFound = errors.New("store: account not found")

	// ErrTransactionNotFound is returned by FindTransactionByReference when
	// the reference has not been applied yet.
	ErrTransactionNotFound = errors.New("store: transaction not found")

	// ErrDuplicateReference is returned by Credit and InsertTransaction when a
	// record with the same reference already exists. Callers must treat it as
	// "already processed", never as a failure.
	ErrDuplicateReference = errors.New("store: duplicate transaction reference")

	// ErrAtomicUnsupported is returned by Credit when the store cannot insert
	// the record and increment the balance in one atomic operation. The caller
	// falls back to InsertTransaction + GetBalance + SetBalance.
	ErrAtomicUnsupported = errors.New("store: atomic credit unsupported")
)

// ─── INTERFACE ───────────────────────────────────────────────────────────────

// Store is the persistence contract the ledger and API layers depend on.
// Implementations must be safe for concurrent use; cross-request correctness
// comes from the store's own atomicity, never from caller-side locking.
type Store interface {
	// FindAccountByEmail resolves an account by its email address. The email
	// column is unique-constrained; implementations that predate the
	// constraint must pick the earliest-created match deterministically.
	FindAccountByEmail(ctx context.Context, email string) (Account, error)

	// GetAccount fetches an account by ID.
	GetAccount(ctx context.Context, id uuid.UUID) (Account, error)

	// FindTransactionByReference looks up an applied credit by its processor
	// reference. Returns ErrTransactionNotFound when absent.
	FindTransactionByReference(ctx context.Context, reference string) (TransactionRecord, error)

	// Credit inserts rec and increments the account balance by rec.Amount as
	// one atomic operation: either both effects are durable or neither is.
	// Returns ErrDuplicateReference when rec.Reference was already applied and
	// ErrAtomicUnsupported when the store has no atomic path.
	Credit(ctx context.Context, rec TransactionRecord) error

	// InsertTransaction writes only the transaction record. Fallback path:
	// the durable idempotency marker when Credit is unsupported.
	InsertTransaction(ctx context.Context, rec TransactionRecord) error

	// GetBalance and SetBalance are the read-then-write fallback for balance
	// mutation. Not safe under concurrent credits to the same account — use
	// only when Credit reports ErrAtomicUnsupported.
	GetBalance(ctx context.Context, id uuid.UUID) (decimal.Decimal, error)
	SetBalance(ctx context.Context, id uuid.UUID, balance decimal.Decimal) error
}
