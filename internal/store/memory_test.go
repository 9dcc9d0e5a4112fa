package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func testRecord(accountID uuid.UUID, reference string, amount int64) TransactionRecord {
	return TransactionRecord{
		ID:        uuid.New(),
		AccountID: accountID,
		Amount:    decimal.NewFromInt(amount),
		Type:      "credit",
		Reference: reference,
		Channel:   "bank_transfer",
		CreatedAt: time.Now().UTC(),
	}
}

func TestMemory_FindAccountByEmail(t *testing.T) {
	m := NewMemory()
	a := m.SeedAccount("User@X.com", decimal.NewFromInt(10))

	got, err := m.FindAccountByEmail(context.Background(), "user@x.com")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if got.ID != a.ID {
		t.Errorf("got account %s, want %s", got.ID, a.ID)
	}

	if _, err := m.FindAccountByEmail(context.Background(), "missing@x.com"); !errors.Is(err, ErrAccountNotFound) {
		t.Errorf("expected ErrAccountNotFound, got %v", err)
	}
}

func TestMemory_CreditAppliesBothEffects(t *testing.T) {
	m := NewMemory()
	a := m.SeedAccount("a@x.com", decimal.NewFromInt(5))

	if err := m.Credit(context.Background(), testRecord(a.ID, "ref-1", 7)); err != nil {
		t.Fatalf("credit: %v", err)
	}

	balance, err := m.GetBalance(context.Background(), a.ID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if !balance.Equal(decimal.NewFromInt(12)) {
		t.Errorf("balance: got %s, want 12", balance)
	}

	if _, err := m.FindTransactionByReference(context.Background(), "ref-1"); err != nil {
		t.Errorf("record not found after credit: %v", err)
	}
}

func TestMemory_CreditDuplicateReference(t *testing.T) {
	m := NewMemory()
	a := m.SeedAccount("a@x.com", decimal.Zero)

	if err := m.Credit(context.Background(), testRecord(a.ID, "ref-1", 3)); err != nil {
		t.Fatalf("first credit: %v", err)
	}
	err := m.Credit(context.Background(), testRecord(a.ID, "ref-1", 3))
	if !errors.Is(err, ErrDuplicateReference) {
		t.Fatalf("expected ErrDuplicateReference, got %v", err)
	}

	balance, _ := m.GetBalance(context.Background(), a.ID)
	if !balance.Equal(decimal.NewFromInt(3)) {
		t.Errorf("duplicate must not touch balance: got %s", balance)
	}
}

func TestMemory_CreditUnknownAccount(t *testing.T) {
	m := NewMemory()
	err := m.Credit(context.Background(), testRecord(uuid.New(), "ref-1", 3))
	if !errors.Is(err, ErrAccountNotFound) {
		t.Errorf("expected ErrAccountNotFound, got %v", err)
	}
	if m.TransactionCount() != 0 {
		t.Error("failed credit must not leave a record behind")
	}
}

func TestMemory_ConcurrentCreditSameReference(t *testing.T) {
	m := NewMemory()
	a := m.SeedAccount("a@x.com", decimal.Zero)

	const attempts = 16
	var applied, duplicate int
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := m.Credit(context.Background(), testRecord(a.ID, "ref-race", 10))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				applied++
			case errors.Is(err, ErrDuplicateReference):
				duplicate++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if applied != 1 {
		t.Errorf("applied: got %d, want 1", applied)
	}
	if duplicate != attempts-1 {
		t.Errorf("duplicates: got %d, want %d", duplicate, attempts-1)
	}

	balance, _ := m.GetBalance(context.Background(), a.ID)
	if !balance.Equal(decimal.NewFromInt(10)) {
		t.Errorf("balance: got %s, want 10", balance)
	}
}

func TestMemory_ConcurrentCreditsDistinctReferences(t *testing.T) {
	m := NewMemory()
	a := m.SeedAccount("a@x.com", decimal.Zero)

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rec := testRecord(a.ID, uuid.NewString(), 1)
			if err := m.Credit(context.Background(), rec); err != nil {
				t.Errorf("credit %d: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	balance, _ := m.GetBalance(context.Background(), a.ID)
	if !balance.Equal(decimal.NewFromInt(n)) {
		t.Errorf("balance: got %s, want %d — lost update under concurrency", balance, n)
	}
}

func TestMemory_DisabledAtomicReportsUnsupported(t *testing.T) {
	m := NewMemory()
	m.DisableAtomicCredit()
	a := m.SeedAccount("a@x.com", decimal.Zero)

	err := m.Credit(context.Background(), testRecord(a.ID, "ref-1", 5))
	if !errors.Is(err, ErrAtomicUnsupported) {
		t.Fatalf("expected ErrAtomicUnsupported, got %v", err)
	}

	// The fallback primitives still work.
	if err := m.InsertTransaction(context.Background(), testRecord(a.ID, "ref-1", 5)); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := m.SetBalance(context.Background(), a.ID, decimal.NewFromInt(5)); err != nil {
		t.Fatalf("set balance: %v", err)
	}
	balance, _ := m.GetBalance(context.Background(), a.ID)
	if !balance.Equal(decimal.NewFromInt(5)) {
		t.Errorf("balance: got %s, want 5", balance)
	}
}

func TestMemory_EmailTieBreakIsEarliestCreated(t *testing.T) {
	m := NewMemory()
	first := m.SeedAccount("dup@x.com", decimal.Zero)
	// Force a later timestamp on the second seed.
	m.mu.Lock()
	second := Account{ID: uuid.New(), Email: "dup@x.com", CreatedAt: first.CreatedAt.Add(time.Hour)}
	m.accounts[second.ID] = second
	m.mu.Unlock()

	got, err := m.FindAccountByEmail(context.Background(), "dup@x.com")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if got.ID != first.ID {
		t.Errorf("tie-break picked %s, want earliest-created %s", got.ID, first.ID)
	}
}
