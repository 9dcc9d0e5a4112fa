// Package api implements the HTTP layer for the Quorix deposits backend.
// Handlers are methods on *Server. Each handler file is responsible for one
// resource group and only imports the dependencies it actually uses.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/quorix-finance/deposits-backend/internal/email"
	"github.com/quorix-finance/deposits-backend/internal/events"
	"github.com/quorix-finance/deposits-backend/internal/ledger"
	"github.com/quorix-finance/deposits-backend/internal/paystack"
	"github.com/quorix-finance/deposits-backend/internal/store"
)

// Config holds the values the HTTP layer needs at request time.
type Config struct {
	// PaystackWebhookSecret is the HMAC key for inbound webhook signatures —
	// the same secret key used for outbound API calls.
	PaystackWebhookSecret string

	// APIKey is required in the x-api-key header on the deposit endpoints.
	APIKey string

	// Currency labels receipt emails and verify responses. No conversion.
	Currency string

	// Env is "production", "staging", or "development".
	Env string
}

// Server holds all shared dependencies. Each handler file attaches methods to
// this type and uses only the fields it needs.
type Server struct {
	// ledger runs the credit pipeline for authenticated notifications.
	ledger *ledger.Service

	// store serves direct reads (deposit lookups); all mutation goes through
	// the ledger.
	store store.Store

	// paystack forwards deposit initiation and verification calls.
	paystack paystack.Client

	// publisher emits DepositCredited events after a successful credit.
	publisher events.Publisher

	// mailer sends the deposit receipt after a successful credit.
	mailer email.Sender

	cfg    Config
	logger *slog.Logger
}

// NewServer constructs the Server and wires the chi router. The returned
// http.Handler is ready to pass to http.ListenAndServe.
func NewServer(
	lg *ledger.Service,
	st store.Store,
	paystackClient paystack.Client,
	publisher events.Publisher,
	mailer email.Sender,
	cfg Config,
	logger *slog.Logger,
) http.Handler {
	s := &Server{
		ledger:    lg,
		store:     st,
		paystack:  paystackClient,
		publisher: publisher,
		mailer:    mailer,
		cfg:       cfg,
		logger:    logger,
	}

	return s.routes()
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	// ── Global middleware ─────────────────────────────────────────────────────
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggerMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(s.corsMiddleware)
	r.Use(middleware.Timeout(30 * time.Second))

	// ── Operational ───────────────────────────────────────────────────────────
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Handle("/metrics", promhttp.Handler())

	// ── API ───────────────────────────────────────────────────────────────────
	r.Route("/api", func(r chi.Router) {

		// Paystack webhook — no API key (signature verification inside handler).
		r.Post("/webhooks/paystack", s.handlePaystackWebhook)

		// Deposit initiation/verification — stateless forwarders, API key auth.
		r.Group(func(r chi.Router) {
			r.Use(s.requireAPIKey)
			r.Post("/deposits", s.handleInitiateDeposit)
			r.Get("/deposits/{reference}", s.handleVerifyDeposit)
		})
	})

	return r
}
