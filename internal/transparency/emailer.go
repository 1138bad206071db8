package transparency

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Emailer sends best-effort transparency receipts through the email service.
// Callers log failures and move on; nothing here may affect a settlement
// outcome.
type Emailer struct {
	httpClient *http.Client
	baseURL    string
}

// Option configures optional client behavior.
type Option func(*Emailer)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(e *Emailer) {
		if client != nil {
			e.httpClient = client
		}
	}
}

// NewEmailer builds the transparency email client. An empty base URL yields a
// nil emailer, which Send treats as a silent no-op.
func NewEmailer(baseURL string, timeout time.Duration, opts ...Option) *Emailer {
	trimmed := strings.TrimSpace(baseURL)
	if trimmed == "" {
		return nil
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	emailer := &Emailer{
		baseURL:    strings.TrimRight(trimmed, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(emailer)
		}
	}
	return emailer
}

// EventData describes the settlement the receipt documents.
type EventData struct {
	RecipientName       string          `json:"recipientName"`
	TotalFundsCollected decimal.Decimal `json:"totalFundsCollected"`
	FinalGiftPrice      decimal.Decimal `json:"finalGiftPrice"`
	RemainingBalance    decimal.Decimal `json:"remainingBalance"`
	Disposition         string          `json:"disposition"`
	ViewGiftDetailsURL  string          `json:"viewGiftDetailsUrl"`
}

// Recipient is one addressee of the transparency email.
type Recipient struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

type sendRequest struct {
	EventData EventData   `json:"eventData"`
	To        []Recipient `json:"to"`
}

// Send posts the transparency receipt. A nil emailer is a no-op.
func (e *Emailer) Send(ctx context.Context, event EventData, to []Recipient) error {
	if e == nil {
		return nil
	}
	if len(to) == 0 {
		return fmt.Errorf("no recipients")
	}

	payload, err := json.Marshal(sendRequest{EventData: event, To: to})
	if err != nil {
		return fmt.Errorf("marshal transparency email: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/gifts/transparency-email", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build transparency email request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send transparency email: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("transparency email rejected with status %d", resp.StatusCode)
	}
	return nil
}
