package donations

import (
	"github.com/shopspring/decimal"
	pkgerrors "github.com/wishbeeai/wishbee-backend/pkg/errors"
)

// FeePolicy maps a gross donation amount to the transaction fee charged on it.
// The schedule is injected so product can change it without touching callers.
type FeePolicy func(gross decimal.Decimal) decimal.Decimal

// PercentPlusFlat builds the platform's standard fee schedule:
// fee = round2(gross*percent + flat).
func PercentPlusFlat(percent, flat decimal.Decimal) FeePolicy {
	return func(gross decimal.Decimal) decimal.Decimal {
		return gross.Mul(percent).Add(flat).Round(2)
	}
}

// DonationAmounts is the computed split for one donation.
type DonationAmounts struct {
	Fee          decimal.Decimal `json:"fee"`
	NetToCharity decimal.Decimal `json:"net_to_charity"`
	TotalCharged decimal.Decimal `json:"total_charged"`
}

// ComputeDonationAmounts splits a gross donation into fee, net and charge
// amounts. When the donor covers fees the charity receives the full gross and
// the donor is charged gross+fee; otherwise the fee comes out of the gross.
// Pure and deterministic; all outputs rounded to 2 decimal places.
func ComputeDonationAmounts(gross decimal.Decimal, coverFees bool, policy FeePolicy) (DonationAmounts, error) {
	if policy == nil {
		return DonationAmounts{}, pkgerrors.New(pkgerrors.CodeValidation, "fee policy is required")
	}
	if gross.IsNegative() {
		return DonationAmounts{}, pkgerrors.New(pkgerrors.CodeValidation, "donation amount cannot be negative")
	}

	rounded := gross.Round(2)
	fee := policy(rounded).Round(2)

	if coverFees {
		return DonationAmounts{
			Fee:          fee,
			NetToCharity: rounded,
			TotalCharged: rounded.Add(fee).Round(2),
		}, nil
	}

	net := rounded.Sub(fee).Round(2)
	if net.IsNegative() {
		net = decimal.Zero.Round(2)
	}
	return DonationAmounts{
		Fee:          fee,
		NetToCharity: net,
		TotalCharged: rounded,
	}, nil
}
