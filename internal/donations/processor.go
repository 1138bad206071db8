package donations

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

const donationFailureFallback = "Donation failed. Please try again."

// Processor wraps the external instant-donation-processing service.
type Processor struct {
	httpClient *http.Client
	baseURL    string
}

// ProcessorOption configures optional client behavior.
type ProcessorOption func(*Processor)

// WithProcessorHTTPClient overrides the default HTTP client.
func WithProcessorHTTPClient(client *http.Client) ProcessorOption {
	return func(p *Processor) {
		if client != nil {
			p.httpClient = client
		}
	}
}

// NewProcessor builds the donation processor client for the configured base URL.
func NewProcessor(baseURL string, opts ...ProcessorOption) (*Processor, error) {
	trimmed := strings.TrimSpace(baseURL)
	if trimmed == "" {
		return nil, fmt.Errorf("donation processor base url is required")
	}

	processor := &Processor{
		baseURL:    strings.TrimRight(trimmed, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(processor)
		}
	}
	return processor, nil
}

// ProcessInstantRequest is the payload sent to the donation processor.
type ProcessInstantRequest struct {
	GiftID              uuid.UUID       `json:"giftId"`
	Amount              decimal.Decimal `json:"amount"`
	NetAmount           decimal.Decimal `json:"netAmount"`
	TotalToCharge       decimal.Decimal `json:"totalToCharge"`
	CharityID           string          `json:"charityId"`
	CharityName         string          `json:"charityName"`
	FeeCovered          bool            `json:"feeCovered"`
	RecipientName       string          `json:"recipientName"`
	GiftName            string          `json:"giftName"`
	TotalFundsCollected decimal.Decimal `json:"totalFundsCollected"`
	FinalGiftPrice      decimal.Decimal `json:"finalGiftPrice"`
}

// ProcessInstantResult carries the processor's receipt, when one is issued.
type ProcessInstantResult struct {
	ReceiptURL string
}

// ProcessInstant charges the donation and returns the receipt URL if the
// processor produced one. Failures surface the processor's own message when
// present so the caller can pass it through verbatim.
func (p *Processor) ProcessInstant(ctx context.Context, req ProcessInstantRequest) (*ProcessInstantResult, error) {
	if p == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "donation processor not configured")
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "marshal donation request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/donations/process-instant", bytes.NewReader(payload))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build donation request")
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, donationFailureFallback)
	}
	defer func() { _ = resp.Body.Close() }()

	var apiResp struct {
		ReceiptURL string `json:"receiptUrl"`
		Error      string `json:"error"`
		Message    string `json:"message"`
		Suggestion string `json:"suggestion"`
	}
	decodeErr := json.NewDecoder(resp.Body).Decode(&apiResp)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := serviceMessage(apiResp.Error, apiResp.Message, apiResp.Suggestion)
		if msg == "" {
			msg = donationFailureFallback
		}
		return nil, pkgerrors.New(pkgerrors.CodeDependency, msg).WithDetails(map[string]any{"status": resp.StatusCode})
	}
	if decodeErr != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, decodeErr, "decode donation response")
	}

	return &ProcessInstantResult{ReceiptURL: apiResp.ReceiptURL}, nil
}

func serviceMessage(candidates ...string) string {
	for _, candidate := range candidates {
		if trimmed := strings.TrimSpace(candidate); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
