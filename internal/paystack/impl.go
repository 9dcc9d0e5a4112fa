package paystack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultBaseURL = "https://api.paystack.co"

// restClient is the concrete Client backed by Paystack's REST API. There is
// no official Go SDK, so this wraps net/http directly.
type restClient struct {
	secretKey  string
	baseURL    string
	httpClient *http.Client
}

// NewClient returns a Client that talks to the live Paystack API.
// secretKey is your PAYSTACK_SECRET_KEY env var.
func NewClient(secretKey string) Client {
	return &restClient{
		secretKey: secretKey,
		baseURL:   defaultBaseURL,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// ─── PAYSTACK API SHAPES ──────────────────────────────────────────────────────

// envelope is the wrapper Paystack puts around every response body.
type envelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type initializeRequest struct {
	Email    string   `json:"email"`
	Amount   int64    `json:"amount"` // minor units
	Channels []string `json:"channels,omitempty"`
}

type initializeData struct {
	Reference        string `json:"reference"`
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
}

type verifyData struct {
	Status   string `json:"status"`
	Amount   int64  `json:"amount"` // minor units
	Channel  string `json:"channel"`
	PaidAt   string `json:"paid_at"`
	Customer struct {
		Email string `json:"email"`
	} `json:"customer"`
}

// ─── CLIENT IMPLEMENTATION ────────────────────────────────────────────────────

func (c *restClient) InitializeTransaction(ctx context.Context, p InitializeParams) (Authorization, error) {
	var data initializeData
	err := c.do(ctx, http.MethodPost, "/transaction/initialize", initializeRequest{
		Email:    p.Email,
		Amount:   p.AmountMinor,
		Channels: []string{"bank_transfer"},
	}, &data)
	if err != nil {
		return Authorization{}, fmt.Errorf("paystack: initialize transaction: %w", err)
	}

	return Authorization{
		Reference:        data.Reference,
		AuthorizationURL: data.AuthorizationURL,
		AccessCode:       data.AccessCode,
	}, nil
}

func (c *restClient) VerifyTransaction(ctx context.Context, reference string) (TransactionStatus, error) {
	var data verifyData
	err := c.do(ctx, http.MethodGet, "/transaction/verify/"+reference, nil, &data)
	if err != nil {
		return TransactionStatus{}, fmt.Errorf("paystack: verify transaction %s: %w", reference, err)
	}

	return TransactionStatus{
		Status:        data.Status,
		AmountMajor:   MinorToMajor(data.Amount),
		CustomerEmail: data.Customer.Email,
		Channel:       data.Channel,
		PaidAt:        data.PaidAt,
	}, nil
}

// do sends one request and decodes the enveloped response into out.
func (c *restClient) do(ctx context.Context, method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("decode response (HTTP %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 || !env.Status {
		return fmt.Errorf("paystack responded HTTP %d: %s", resp.StatusCode, env.Message)
	}

	if out != nil {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("decode data: %w", err)
		}
	}
	return nil
}
