package donations

import (
	"context"
	"testing"

	"github.com/wishbeeai/wishbee-backend/pkg/db/models"
	pkgerrors "github.com/wishbeeai/wishbee-backend/pkg/errors"
	"gorm.io/gorm"
)

type fakeCharityRepo struct {
	charities map[string]models.Charity
}

func newFakeCharityRepo(charities ...models.Charity) *fakeCharityRepo {
	repo := &fakeCharityRepo{charities: make(map[string]models.Charity)}
	for _, charity := range charities {
		repo.charities[charity.ID] = charity
	}
	return repo
}

func (f *fakeCharityRepo) WithTx(tx *gorm.DB) CharityRepository {
	return f
}

func (f *fakeCharityRepo) List(ctx context.Context) ([]models.Charity, error) {
	var out []models.Charity
	for _, charity := range f.charities {
		if charity.ID == ReservedTipCharityID {
			continue
		}
		out = append(out, charity)
	}
	return out, nil
}

func (f *fakeCharityRepo) GetByID(ctx context.Context, id string) (*models.Charity, error) {
	if charity, ok := f.charities[id]; ok {
		return &charity, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func TestCatalogListExcludesReservedEntry(t *testing.T) {
	repo := newFakeCharityRepo(
		models.Charity{ID: "make-a-wish", Name: "Make-A-Wish"},
		models.Charity{ID: ReservedTipCharityID, Name: "Support Wishbee"},
	)
	cat, err := NewCatalog(repo)
	if err != nil {
		t.Fatalf("new catalog: %v", err)
	}

	charities, err := cat.List(context.Background())
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if len(charities) != 1 || charities[0].ID != "make-a-wish" {
		t.Fatalf("unexpected catalog contents: %+v", charities)
	}
}

func TestCatalogGetRejectsReservedEntry(t *testing.T) {
	repo := newFakeCharityRepo(models.Charity{ID: ReservedTipCharityID, Name: "Support Wishbee"})
	cat, err := NewCatalog(repo)
	if err != nil {
		t.Fatalf("new catalog: %v", err)
	}

	_, err = cat.Get(context.Background(), ReservedTipCharityID)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error for reserved id, got %v", err)
	}
}

func TestCatalogGetNotFound(t *testing.T) {
	cat, err := NewCatalog(newFakeCharityRepo())
	if err != nil {
		t.Fatalf("new catalog: %v", err)
	}

	_, err = cat.Get(context.Background(), "nope")
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestCatalogGet(t *testing.T) {
	cat, err := NewCatalog(newFakeCharityRepo(models.Charity{ID: "toys-for-tots", Name: "Toys for Tots"}))
	if err != nil {
		t.Fatalf("new catalog: %v", err)
	}

	charity, err := cat.Get(context.Background(), "toys-for-tots")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if charity.Name != "Toys for Tots" {
		t.Fatalf("unexpected charity %+v", charity)
	}
}
