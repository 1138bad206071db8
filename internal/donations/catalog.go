package donations

import (
	"context"
	"errors"
	"fmt"

	"github.com/wishbeeai/wishbee-backend/pkg/db/models"
	pkgerrors "github.com/wishbeeai/wishbee-backend/pkg/errors"
	"gorm.io/gorm"
)

// ReservedTipCharityID routes to the platform tip path, never to a donation.
const ReservedTipCharityID = "support-wishbee"

// CharityRepository manages persistence for the charity catalog.
type CharityRepository interface {
	WithTx(tx *gorm.DB) CharityRepository
	List(ctx context.Context) ([]models.Charity, error)
	GetByID(ctx context.Context, id string) (*models.Charity, error)
}

type charityRepository struct {
	db *gorm.DB
}

// NewCharityRepository returns a charity repository bound to the provided database.
func NewCharityRepository(db *gorm.DB) CharityRepository {
	return &charityRepository{db: db}
}

func (r *charityRepository) WithTx(tx *gorm.DB) CharityRepository {
	if tx == nil {
		return r
	}
	return &charityRepository{db: tx}
}

func (r *charityRepository) List(ctx context.Context) ([]models.Charity, error) {
	var charities []models.Charity
	if err := r.db.WithContext(ctx).
		Where("id <> ?", ReservedTipCharityID).
		Order("name ASC").
		Find(&charities).Error; err != nil {
		return nil, err
	}
	return charities, nil
}

func (r *charityRepository) GetByID(ctx context.Context, id string) (*models.Charity, error) {
	var charity models.Charity
	if err := r.db.WithContext(ctx).First(&charity, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &charity, nil
}

// Catalog exposes the donation charity catalog.
type Catalog interface {
	List(ctx context.Context) ([]models.Charity, error)
	Get(ctx context.Context, id string) (*models.Charity, error)
}

type catalog struct {
	repo CharityRepository
}

// NewCatalog wires a catalog service with the provided repository.
func NewCatalog(repo CharityRepository) (Catalog, error) {
	if repo == nil {
		return nil, fmt.Errorf("charity repository required")
	}
	return &catalog{repo: repo}, nil
}

func (c *catalog) List(ctx context.Context) ([]models.Charity, error) {
	charities, err := c.repo.List(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list charities")
	}
	return charities, nil
}

// Get resolves a donatable charity. The reserved tip entry is rejected here
// so it can never be targeted by the donation path.
func (c *catalog) Get(ctx context.Context, id string) (*models.Charity, error) {
	if id == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "charity id is required")
	}
	if id == ReservedTipCharityID {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "charity id is reserved for platform tips")
	}

	charity, err := c.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "charity not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load charity")
	}
	return charity, nil
}
