package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// uniqueViolation is the Postgres error code raised when an insert hits the
// transactions_reference_key constraint.
const uniqueViolation = "23505"

// Postgres implements Store on top of database/sql with the lib/pq driver.
//
// Expected schema:
//
//	CREATE TABLE accounts (
//	    id         uuid PRIMARY KEY,
//	    email      text NOT NULL,
//	    balance    numeric(18,2) NOT NULL DEFAULT 0 CHECK (balance >= 0),
//	    created_at timestamptz NOT NULL DEFAULT now()
//	);
//	CREATE UNIQUE INDEX accounts_email_key ON accounts (lower(email));
//
//	CREATE TABLE transactions (
//	    id         uuid PRIMARY KEY,
//	    account_id uuid NOT NULL REFERENCES accounts (id),
//	    amount     numeric(18,2) NOT NULL CHECK (amount > 0),
//	    type       text NOT NULL,
//	    reference  text NOT NULL UNIQUE,
//	    channel    text NOT NULL DEFAULT '',
//	    metadata   jsonb,
//	    created_at timestamptz NOT NULL DEFAULT now()
//	);
type Postgres struct {
	pool *sql.DB
}

// NewPostgres wraps a live connection pool. The pool must already be open and
// verified (PingContext) before calling this.
func NewPostgres(pool *sql.DB) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) FindAccountByEmail(ctx context.Context, email string) (Account, error) {
	// The unique index on lower(email) makes the LIMIT redundant; the
	// ORDER BY is the documented tie-break for databases migrated before the
	// index existed.
	const q = `
		SELECT id, email, balance, created_at
		FROM accounts
		WHERE lower(email) = lower($1)
		ORDER BY created_at ASC
		LIMIT 1`

	var a Account
	err := p.pool.QueryRowContext(ctx, q, email).Scan(&a.ID, &a.Email, &a.Balance, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Account{}, ErrAccountNotFound
	}
	if err != nil {
		return Account{}, fmt.Errorf("find account by email: %w", err)
	}
	return a, nil
}

func (p *Postgres) GetAccount(ctx context.Context, id uuid.UUID) (Account, error) {
	const q = `SELECT id, email, balance, created_at FROM accounts WHERE id = $1`

	var a Account
	err := p.pool.QueryRowContext(ctx, q, id).Scan(&a.ID, &a.Email, &a.Balance, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Account{}, ErrAccountNotFound
	}
	if err != nil {
		return Account{}, fmt.Errorf("get account: %w", err)
	}
	return a, nil
}

func (p *Postgres) FindTransactionByReference(ctx context.Context, reference string) (TransactionRecord, error) {
	const q = `
		SELECT id, account_id, amount, type, reference, channel, metadata, created_at
		FROM transactions
		WHERE reference = $1`

	var rec TransactionRecord
	err := p.pool.QueryRowContext(ctx, q, reference).Scan(
		&rec.ID, &rec.AccountID, &rec.Amount, &rec.Type,
		&rec.Reference, &rec.Channel, &rec.Metadata, &rec.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return TransactionRecord{}, ErrTransactionNotFound
	}
	if err != nil {
		return TransactionRecord{}, fmt.Errorf("find transaction by reference: %w", err)
	}
	return rec, nil
}

// Credit inserts the transaction record and applies the balance increment in
// one database transaction. The increment runs server-side
// (balance = balance + $n), so concurrent credits to the same account from
// unrelated deposits never lose an update; two concurrent deliveries of the
// same reference are serialised by the unique constraint — the loser's insert
// fails with 23505 and the whole transaction rolls back without touching the
// balance.
func (p *Postgres) Credit(ctx context.Context, rec TransactionRecord) error {
	tx, err := p.pool.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("credit: begin: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := insertTransaction(ctx, tx, rec); err != nil {
		_ = tx.Rollback()
		return err
	}

	const incr = `UPDATE accounts SET balance = balance + $1 WHERE id = $2`
	res, err := tx.ExecContext(ctx, incr, rec.Amount, rec.AccountID)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("credit: increment balance: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		_ = tx.Rollback()
		return fmt.Errorf("credit: increment balance: %w", ErrAccountNotFound)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("credit: commit: %w", err)
	}
	return nil
}

func (p *Postgres) InsertTransaction(ctx context.Context, rec TransactionRecord) error {
	return insertTransaction(ctx, p.pool, rec)
}

// execer covers both *sql.DB and *sql.Tx so the insert is shared between the
// atomic and fallback paths.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertTransaction(ctx context.Context, db execer, rec TransactionRecord) error {
	const q = `
		INSERT INTO transactions (id, account_id, amount, type, reference, channel, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := db.ExecContext(ctx, q,
		rec.ID, rec.AccountID, rec.Amount, rec.Type,
		rec.Reference, rec.Channel, rec.Metadata, rec.CreatedAt,
	)

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return ErrDuplicateReference
	}
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

func (p *Postgres) GetBalance(ctx context.Context, id uuid.UUID) (decimal.Decimal, error) {
	const q = `SELECT balance FROM accounts WHERE id = $1`

	var balance decimal.Decimal
	err := p.pool.QueryRowContext(ctx, q, id).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Decimal{}, ErrAccountNotFound
	}
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("get balance: %w", err)
	}
	return balance, nil
}

func (p *Postgres) SetBalance(ctx context.Context, id uuid.UUID, balance decimal.Decimal) error {
	const q = `UPDATE accounts SET balance = $1 WHERE id = $2`

	res, err := p.pool.ExecContext(ctx, q, balance, id)
	if err != nil {
		return fmt.Errorf("set balance: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrAccountNotFound
	}
	return nil
}
