package gifts

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	pkgerrors "github.com/wishbeeai/wishbee-backend/pkg/errors"
	"gorm.io/gorm"
)

// Service exposes read access to gift snapshots.
type Service interface {
	Get(ctx context.Context, id uuid.UUID) (*GiftView, error)
}

type service struct {
	repo Repository
}

// NewService wires a gift service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("gift repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*GiftView, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "gift id is required")
	}

	gift, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "gift not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load gift")
	}

	view := NewGiftView(*gift)
	return &view, nil
}
