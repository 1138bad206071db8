package gifts

import (
	"context"

	"github.com/google/uuid"
	"github.com/wishbeeai/wishbee-backend/pkg/db/models"
	"gorm.io/gorm"
)

// Repository manages persistence for gift snapshots.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	GetByID(ctx context.Context, id uuid.UUID) (*models.Gift, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a gift repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Gift, error) {
	var gift models.Gift
	if err := r.db.WithContext(ctx).First(&gift, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &gift, nil
}
