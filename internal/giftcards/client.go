package giftcards

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	pkgerrors "github.com/wishbeeai/wishbee-backend/pkg/errors"
)

const giftCardFailureFallback = "Gift card failed. Please try again."

// Client wraps the external gift-card issuance service.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewClient builds the issuer client for the configured base URL.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	trimmed := strings.TrimSpace(baseURL)
	if trimmed == "" {
		return nil, fmt.Errorf("gift card issuer base url is required")
	}

	client := &Client{
		baseURL:    strings.TrimRight(trimmed, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

// IssueRequest is the payload sent to the issuance service.
type IssueRequest struct {
	Amount              decimal.Decimal `json:"amount"`
	RecipientEmail      string          `json:"recipientEmail"`
	RecipientName       string          `json:"recipientName"`
	GiftName            string          `json:"giftName"`
	TotalFundsCollected decimal.Decimal `json:"totalFundsCollected"`
	FinalGiftPrice      decimal.Decimal `json:"finalGiftPrice"`
}

// IssueResult is the issuer's outcome. FallbackToCredits means platform
// credits were granted instead of a card; that is a qualified success, not a
// failure. ClaimURL and RedeemCode are both kept when present since some
// providers require both for redemption.
type IssueResult struct {
	ClaimURL          string
	RedeemCode        string
	FallbackToCredits bool
	Message           string
}

// Issue requests a gift card covering the provided amount.
func (c *Client) Issue(ctx context.Context, giftID uuid.UUID, req IssueRequest) (*IssueResult, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "gift card issuer not configured")
	}
	if giftID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "gift id is required")
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "marshal issue request")
	}

	url := fmt.Sprintf("%s/gifts/%s/settle-wishbee", c.baseURL, giftID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build issue request")
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, giftCardFailureFallback)
	}
	defer func() { _ = resp.Body.Close() }()

	var apiResp struct {
		ClaimURL          string `json:"claimUrl"`
		RedeemCode        string `json:"redeemCode"`
		FallbackToCredits bool   `json:"fallbackToCredits"`
		Message           string `json:"message"`
		Error             string `json:"error"`
		Suggestion        string `json:"suggestion"`
	}
	decodeErr := json.NewDecoder(resp.Body).Decode(&apiResp)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := serviceMessage(apiResp.Error, apiResp.Message, apiResp.Suggestion)
		if msg == "" {
			msg = giftCardFailureFallback
		}
		return nil, pkgerrors.New(pkgerrors.CodeDependency, msg).WithDetails(map[string]any{"status": resp.StatusCode})
	}
	if decodeErr != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, decodeErr, "decode issue response")
	}

	return &IssueResult{
		ClaimURL:          apiResp.ClaimURL,
		RedeemCode:        apiResp.RedeemCode,
		FallbackToCredits: apiResp.FallbackToCredits,
		Message:           apiResp.Message,
	}, nil
}

func serviceMessage(candidates ...string) string {
	for _, candidate := range candidates {
		if trimmed := strings.TrimSpace(candidate); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
