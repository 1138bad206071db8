package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Gift is a funding pool created by one user and contributed to by others
// toward purchasing a named item. Older records populate CollectionTitle or
// GiftName instead of Name; the gifts package resolves the precedence.
type Gift struct {
	ID              uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name            string          `gorm:"column:name"`
	CollectionTitle string          `gorm:"column:collection_title"`
	GiftName        string          `gorm:"column:gift_name"`
	TargetAmount    decimal.Decimal `gorm:"column:target_amount;type:numeric(12,2);not null"`
	CurrentAmount   decimal.Decimal `gorm:"column:current_amount;type:numeric(12,2);not null"`
	RecipientName   *string         `gorm:"column:recipient_name"`
	CreatedAt       time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
