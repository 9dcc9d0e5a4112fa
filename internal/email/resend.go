package email

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// resendClient is the concrete Sender backed by the Resend API.
type resendClient struct {
	apiKey     string
	fromAddr   string // e.g. "deposits@quorix.finance"
	fromName   string // e.g. "Quorix"
	httpClient *http.Client
}

// NewResendClient returns a Sender that delivers email via Resend.
func NewResendClient(apiKey, fromAddr, fromName string) Sender {
	return &resendClient{
		apiKey:   apiKey,
		fromAddr: fromAddr,
		fromName: fromName,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// ─── RESEND API SHAPES ────────────────────────────────────────────────────────

type resendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

type resendResponse struct {
	ID    string `json:"id"`
	Error *struct {
		Name       string `json:"name"`
		Message    string `json:"message"`
		StatusCode int    `json:"statusCode"`
	} `json:"error"`
}

// ─── SENDER IMPLEMENTATION ────────────────────────────────────────────────────

func (c *resendClient) SendDepositReceipt(ctx context.Context, p DepositReceiptParams) error {
	subject := fmt.Sprintf("Deposit received — %s %s", p.Currency, p.Amount.StringFixed(2))

	html := fmt.Sprintf(`
		<p>Your deposit has been credited to your Quorix balance.</p>
		<table>
			<tr><td>Amount</td><td><strong>%s %s</strong></td></tr>
			<tr><td>Channel</td><td>%s</td></tr>
			<tr><td>Reference</td><td>%s</td></tr>
		</table>
		<p>If you did not make this deposit, contact support immediately.</p>`,
		p.Currency, p.Amount.StringFixed(2), p.Channel, p.Reference,
	)

	return c.send(ctx, resendRequest{
		From:    fmt.Sprintf("%s <%s>", c.fromName, c.fromAddr),
		To:      []string{p.To},
		Subject: subject,
		HTML:    html,
	})
}

func (c *resendClient) send(ctx context.Context, reqBody resendRequest) error {
	b, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("email: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "https://api.resend.com/emails", bytes.NewReader(b))
	if err != nil {
		return fmt.Errorf("email: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("email: send request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("email: read response: %w", err)
	}

	var body resendResponse
	_ = json.Unmarshal(raw, &body) // best-effort decode for the error detail

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if body.Error != nil {
			return fmt.Errorf("email: resend responded %d: %s", resp.StatusCode, body.Error.Message)
		}
		return fmt.Errorf("email: resend responded %d", resp.StatusCode)
	}
	return nil
}
