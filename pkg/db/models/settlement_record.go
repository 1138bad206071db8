package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/wishbeeai/wishbee-backend/pkg/enums"
)

// SettlementRecord is an append-only ledger entry documenting one disposition
// of a gift's remaining balance. Rows are never updated or deleted.
type SettlementRecord struct {
	ID                  uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	GiftID              uuid.UUID         `gorm:"column:gift_id;type:uuid;not null;index"`
	Amount              decimal.Decimal   `gorm:"column:amount;type:numeric(12,2);not null"`
	Disposition         enums.Disposition `gorm:"column:disposition;type:disposition_enum;not null"`
	RecipientName       string            `gorm:"column:recipient_name"`
	GiftName            string            `gorm:"column:gift_name"`
	TotalFundsCollected decimal.Decimal   `gorm:"column:total_funds_collected;type:numeric(12,2);not null"`
	FinalGiftPrice      decimal.Decimal   `gorm:"column:final_gift_price;type:numeric(12,2);not null"`
	ReceiptURL          *string           `gorm:"column:receipt_url"`
	CreatedAt           time.Time         `gorm:"column:created_at;autoCreateTime"`
}
