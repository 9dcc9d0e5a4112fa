package api_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/quorix-finance/deposits-backend/internal/api"
	"github.com/quorix-finance/deposits-backend/internal/email"
	"github.com/quorix-finance/deposits-backend/internal/events"
	"github.com/quorix-finance/deposits-backend/internal/ledger"
	"github.com/quorix-finance/deposits-backend/internal/paystack"
	"github.com/quorix-finance/deposits-backend/internal/store"
)

const (
	testWebhookSecret = "sk_test_webhook_secret"
	testAPIKey        = "test-api-key"
)

// testDeps bundles a fully wired handler with the fakes behind it so tests
// can drive requests and then inspect state and recorded side effects.
type testDeps struct {
	handler   http.Handler
	mem       *store.Memory
	publisher *recorderPublisher
	mailer    *recorderMailer
	paystack  *stubPaystackClient
}

type serverOption func(*testDeps) store.Store

// withStoreFault makes every Credit call fail, simulating a database outage
// mid-pipeline. Reads still work so the fault surfaces at the write.
func withStoreFault(err error) serverOption {
	return func(d *testDeps) store.Store {
		return &faultStore{Store: d.mem, creditErr: err}
	}
}

func newTestServer(t *testing.T, opts ...serverOption) *testDeps {
	t.Helper()

	deps := &testDeps{
		mem:       store.NewMemory(),
		publisher: &recorderPublisher{},
		mailer:    &recorderMailer{},
		paystack:  &stubPaystackClient{},
	}

	var st store.Store = deps.mem
	for _, opt := range opts {
		st = opt(deps)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	lg := ledger.New(st, ledger.Config{}, logger)

	deps.handler = api.NewServer(lg, st, deps.paystack, deps.publisher, deps.mailer, api.Config{
		PaystackWebhookSecret: testWebhookSecret,
		APIKey:                testAPIKey,
		Currency:              "NGN",
		Env:                   "development",
	}, logger)

	return deps
}

func decodeJSON(t *testing.T, rr *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.Unmarshal(rr.Body.Bytes(), dst); err != nil {
		t.Fatalf("decode response %q: %v", rr.Body.String(), err)
	}
}

// ─── FAKES ────────────────────────────────────────────────────────────────────

// faultStore delegates everything to the wrapped store except Credit.
type faultStore struct {
	store.Store
	creditErr error
}

func (f *faultStore) Credit(ctx context.Context, rec store.TransactionRecord) error {
	return f.creditErr
}

// recorderPublisher records published events; err, when set, is returned from
// every Publish call.
type recorderPublisher struct {
	mu        sync.Mutex
	published []events.DepositCredited
	err       error
}

func (p *recorderPublisher) Publish(_ context.Context, event events.DepositCredited) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, event)
	return nil
}

// recorderMailer records receipt sends; err, when set, is returned from every
// SendDepositReceipt call.
type recorderMailer struct {
	mu       sync.Mutex
	receipts []email.DepositReceiptParams
	err      error
}

func (m *recorderMailer) SendDepositReceipt(_ context.Context, p email.DepositReceiptParams) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.receipts = append(m.receipts, p)
	return nil
}

// stubPaystackClient returns canned responses for the outbound deposit calls.
type stubPaystackClient struct {
	initializeFn func(context.Context, paystack.InitializeParams) (paystack.Authorization, error)
	verifyFn     func(context.Context, string) (paystack.TransactionStatus, error)

	lastInitialize paystack.InitializeParams
	lastVerifyRef  string
}

func (c *stubPaystackClient) InitializeTransaction(ctx context.Context, p paystack.InitializeParams) (paystack.Authorization, error) {
	c.lastInitialize = p
	if c.initializeFn != nil {
		return c.initializeFn(ctx, p)
	}
	return paystack.Authorization{
		Reference:        "ref-stub",
		AuthorizationURL: "https://checkout.paystack.com/stub",
		AccessCode:       "ac_stub",
	}, nil
}

func (c *stubPaystackClient) VerifyTransaction(ctx context.Context, reference string) (paystack.TransactionStatus, error) {
	c.lastVerifyRef = reference
	if c.verifyFn != nil {
		return c.verifyFn(ctx, reference)
	}
	return paystack.TransactionStatus{Status: "pending"}, nil
}
