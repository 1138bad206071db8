package settlement

import "github.com/shopspring/decimal"

// NavID identifies one of the mutually exclusive remaining-balance views.
type NavID string

const (
	NavSendWishbee    NavID = "send-wishbee"
	NavGiftCard       NavID = "gift-card"
	NavCharity        NavID = "charity"
	NavSupportWishbee NavID = "support-wishbee"
	NavHistory        NavID = "settlement-history"
)

// AllNavIDs lists every view in menu order.
var AllNavIDs = []NavID{NavSendWishbee, NavGiftCard, NavCharity, NavSupportWishbee, NavHistory}

// IsValid reports whether the value is a known view identifier.
func (n NavID) IsValid() bool {
	switch n {
	case NavSendWishbee, NavGiftCard, NavCharity, NavSupportWishbee, NavHistory:
		return true
	}
	return false
}

// ViewEnabled reports whether a view can be selected for the given remaining
// balance. A sub-minimum balance cannot be issued as a card or platform
// credit, so those views are disabled; tipping and history always work.
func ViewEnabled(nav NavID, remaining, minCardBalance decimal.Decimal) bool {
	if !nav.IsValid() {
		return false
	}
	switch nav {
	case NavSendWishbee, NavGiftCard:
		return remaining.GreaterThanOrEqual(minCardBalance)
	}
	return true
}

// InitialView picks the view shown when a settlement session starts.
func InitialView(remaining, minCardBalance decimal.Decimal) NavID {
	if remaining.LessThan(minCardBalance) {
		return NavSupportWishbee
	}
	return NavSendWishbee
}

// SelectView applies a view selection: choosing a disabled or unknown view is
// a no-op that keeps the current view.
func SelectView(current, candidate NavID, remaining, minCardBalance decimal.Decimal) NavID {
	if !ViewEnabled(candidate, remaining, minCardBalance) {
		return current
	}
	return candidate
}
