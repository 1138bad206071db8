package settlement

import (
	"time"

	"github.com/wishbeeai/wishbee-backend/internal/gifts"
	"github.com/wishbeeai/wishbee-backend/pkg/enums"
)

// State is the lifecycle state of one settlement session.
type State string

const (
	StateViewingMenu       State = "viewing_menu"
	StateGiftCardSuccess   State = "gift_card_success"
	StateDonationConfirmed State = "donation_confirmed"
	StateTipThankYou       State = "tip_thank_you"
)

// IsTerminal reports whether the session has disposed of its balance. A
// terminal session accepts no further dispositions; a fresh LoadGift is the
// only way to settle again.
func (s State) IsTerminal() bool {
	switch s {
	case StateGiftCardSuccess, StateDonationConfirmed, StateTipThankYou:
		return true
	}
	return false
}

// Outcome carries the display payload of a completed disposition.
type Outcome struct {
	Disposition       enums.Disposition `json:"disposition"`
	Amount            string            `json:"amount"`
	CharityName       string            `json:"charity_name,omitempty"`
	ClaimURL          string            `json:"claim_url,omitempty"`
	RedeemCode        string            `json:"redeem_code,omitempty"`
	FallbackToCredits bool              `json:"fallback_to_credits,omitempty"`
	Message           string            `json:"message,omitempty"`
	ReceiptURL        *string           `json:"receipt_url,omitempty"`
}

// Session is the per-settlement working state, stored in Redis as JSON. The
// busy flag is not part of the value: single-flight is enforced with a
// separate lock key so a crashed call can never wedge a session.
type Session struct {
	ID         string         `json:"id"`
	Gift       gifts.GiftView `json:"gift"`
	State      State          `json:"state"`
	ActiveView NavID          `json:"active_view"`
	Email      string         `json:"email,omitempty"`
	Outcome    *Outcome       `json:"outcome,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}
