package gifts

import (
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/wishbeeai/wishbee-backend/pkg/db/models"
)

// DefaultRecipient is used when no recipient can be derived from the gift.
const DefaultRecipient = "the recipient"

// GiftView is the canonical read model for a gift during settlement.
type GiftView struct {
	ID                  uuid.UUID       `json:"id"`
	Title               string          `json:"title"`
	RecipientName       string          `json:"recipient_name"`
	TargetAmount        decimal.Decimal `json:"target_amount"`
	CurrentAmount       decimal.Decimal `json:"current_amount"`
	Remaining           decimal.Decimal `json:"remaining"`
	TotalFundsCollected decimal.Decimal `json:"total_funds_collected"`
	FinalGiftPrice      decimal.Decimal `json:"final_gift_price"`
}

// NewGiftView maps a stored gift onto the settlement read model.
func NewGiftView(gift models.Gift) GiftView {
	title := ResolveTitle(gift)
	remaining := Remaining(gift.CurrentAmount, gift.TargetAmount)
	recipient := ""
	if gift.RecipientName != nil {
		recipient = strings.TrimSpace(*gift.RecipientName)
	}
	if recipient == "" {
		recipient = DeriveRecipient(title)
	}
	return GiftView{
		ID:                  gift.ID,
		Title:               title,
		RecipientName:       recipient,
		TargetAmount:        gift.TargetAmount.Round(2),
		CurrentAmount:       gift.CurrentAmount.Round(2),
		Remaining:           remaining,
		TotalFundsCollected: gift.CurrentAmount.Round(2),
		FinalGiftPrice:      gift.CurrentAmount.Round(2).Sub(remaining),
	}
}

// ResolveTitle picks the display title from the legacy title columns.
// Precedence: name, then collection_title, then gift_name.
func ResolveTitle(gift models.Gift) string {
	for _, candidate := range []string{gift.Name, gift.CollectionTitle, gift.GiftName} {
		if trimmed := strings.TrimSpace(candidate); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

// Remaining computes the settleable overage. It is never negative: a gift at
// or below target has nothing to settle.
func Remaining(current, target decimal.Decimal) decimal.Decimal {
	diff := current.Sub(target).Round(2)
	if diff.IsNegative() {
		return decimal.Zero.Round(2)
	}
	return diff
}

// DeriveRecipient extracts a recipient display name from a gift title.
// It recognizes a trailing "for X" clause ("New bike for Maya") and a leading
// possessive ("Maya's new bike"), falling back to DefaultRecipient.
func DeriveRecipient(title string) string {
	trimmed := strings.TrimSpace(title)
	if trimmed == "" {
		return DefaultRecipient
	}

	lower := strings.ToLower(trimmed)
	if idx := strings.LastIndex(lower, " for "); idx >= 0 {
		candidate := strings.TrimSpace(trimmed[idx+len(" for "):])
		if candidate != "" {
			return candidate
		}
	}

	first := strings.Fields(trimmed)[0]
	for _, suffix := range []string{"'s", "’s"} {
		if strings.HasSuffix(first, suffix) {
			candidate := strings.TrimSuffix(first, suffix)
			if candidate != "" {
				return candidate
			}
		}
	}

	return DefaultRecipient
}
