package store

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Memory is an in-memory Store used by tests and local development. A single
// mutex guards all state, which makes Credit naturally atomic; call
// DisableAtomicCredit to make it report ErrAtomicUnsupported instead, so the
// read-then-write fallback path can be exercised.
type Memory struct {
	mu           sync.Mutex
	accounts     map[uuid.UUID]Account
	transactions map[string]TransactionRecord // keyed by reference

	atomicDisabled bool
}

// NewMemory returns an empty in-memory store with the atomic credit path
// enabled.
func NewMemory() *Memory {
	return &Memory{
		accounts:     make(map[uuid.UUID]Account),
		transactions: make(map[string]TransactionRecord),
	}
}

// DisableAtomicCredit makes Credit return ErrAtomicUnsupported, simulating a
// store configuration without an atomic increment primitive.
func (m *Memory) DisableAtomicCredit() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.atomicDisabled = true
}

// SeedAccount inserts an account and returns it. Accounts are owned by an
// external service in production; this exists for tests and seeding only.
func (m *Memory) SeedAccount(email string, balance decimal.Decimal) Account {
	m.mu.Lock()
	defer m.mu.Unlock()

	a := Account{
		ID:        uuid.New(),
		Email:     email,
		Balance:   balance,
		CreatedAt: time.Now(),
	}
	m.accounts[a.ID] = a
	return a
}

func (m *Memory) FindAccountByEmail(_ context.Context, email string) (Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Earliest-created match wins — same deterministic tie-break the Postgres
	// query documents.
	var found Account
	var ok bool
	for _, a := range m.accounts {
		if !strings.EqualFold(a.Email, email) {
			continue
		}
		if !ok || a.CreatedAt.Before(found.CreatedAt) {
			found = a
			ok = true
		}
	}
	if !ok {
		return Account{}, ErrAccountNotFound
	}
	return found, nil
}

func (m *Memory) GetAccount(_ context.Context, id uuid.UUID) (Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.accounts[id]
	if !ok {
		return Account{}, ErrAccountNotFound
	}
	return a, nil
}

func (m *Memory) FindTransactionByReference(_ context.Context, reference string) (TransactionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.transactions[reference]
	if !ok {
		return TransactionRecord{}, ErrTransactionNotFound
	}
	return rec, nil
}

func (m *Memory) Credit(_ context.Context, rec TransactionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.atomicDisabled {
		return ErrAtomicUnsupported
	}

	if _, exists := m.transactions[rec.Reference]; exists {
		return ErrDuplicateReference
	}
	a, ok := m.accounts[rec.AccountID]
	if !ok {
		return ErrAccountNotFound
	}

	m.transactions[rec.Reference] = rec
	a.Balance = a.Balance.Add(rec.Amount)
	m.accounts[rec.AccountID] = a
	return nil
}

func (m *Memory) InsertTransaction(_ context.Context, rec TransactionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.transactions[rec.Reference]; exists {
		return ErrDuplicateReference
	}
	m.transactions[rec.Reference] = rec
	return nil
}

func (m *Memory) GetBalance(_ context.Context, id uuid.UUID) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.accounts[id]
	if !ok {
		return decimal.Decimal{}, ErrAccountNotFound
	}
	return a.Balance, nil
}

func (m *Memory) SetBalance(_ context.Context, id uuid.UUID, balance decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.accounts[id]
	if !ok {
		return ErrAccountNotFound
	}
	a.Balance = balance
	m.accounts[id] = a
	return nil
}

// TransactionCount reports how many records exist. Test helper.
func (m *Memory) TransactionCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.transactions)
}
