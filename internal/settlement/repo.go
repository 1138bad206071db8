package settlement

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/wishbeeai/wishbee-backend/pkg/db/models"
	"gorm.io/gorm"
)

// Repository manages the append-only settlement ledger. Records are created
// and read, never updated or deleted.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, record *models.SettlementRecord) error
	ListByGiftID(ctx context.Context, giftID uuid.UUID) ([]models.SettlementRecord, error)
	GetByID(ctx context.Context, giftID, id uuid.UUID) (*models.SettlementRecord, error)
	ExistsForAmount(ctx context.Context, giftID uuid.UUID, amount decimal.Decimal) (bool, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a settlement repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, record *models.SettlementRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}

func (r *repository) ListByGiftID(ctx context.Context, giftID uuid.UUID) ([]models.SettlementRecord, error) {
	var records []models.SettlementRecord
	if err := r.db.WithContext(ctx).
		Where("gift_id = ?", giftID).
		Order("created_at DESC").
		Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

func (r *repository) GetByID(ctx context.Context, giftID, id uuid.UUID) (*models.SettlementRecord, error) {
	var record models.SettlementRecord
	if err := r.db.WithContext(ctx).
		First(&record, "id = ? AND gift_id = ?", id, giftID).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

// ExistsForAmount is the ledger-side guard behind the single-settlement
// invariant: one outstanding record per gift and settled amount.
func (r *repository) ExistsForAmount(ctx context.Context, giftID uuid.UUID, amount decimal.Decimal) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.SettlementRecord{}).
		Where("gift_id = ? AND amount = ?", giftID, amount).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}
