package enums

import "fmt"

// Disposition maps to the disposition_enum enum in Postgres. It names the
// path a remaining gift balance was settled through.
type Disposition string

const (
	DispositionTip      Disposition = "tip"
	DispositionDonation Disposition = "donation"
	DispositionGiftCard Disposition = "giftcard"
)

var validDispositions = []Disposition{
	DispositionTip,
	DispositionDonation,
	DispositionGiftCard,
}

// IsValid reports whether the value matches the canonical disposition enum.
func (d Disposition) IsValid() bool {
	for _, candidate := range validDispositions {
		if candidate == d {
			return true
		}
	}
	return false
}

// ParseDisposition converts raw input into Disposition.
func ParseDisposition(value string) (Disposition, error) {
	for _, candidate := range validDispositions {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid disposition %q", value)
}
