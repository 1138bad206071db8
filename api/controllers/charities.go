package controllers

import (
	"net/http"

	"github.com/wishbeeai/wishbee-backend/api/responses"
	"github.com/wishbeeai/wishbee-backend/internal/donations"
	pkgerrors "github.com/wishbeeai/wishbee-backend/pkg/errors"
	"github.com/wishbeeai/wishbee-backend/pkg/logger"
)

type charityView struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Icon        string   `json:"icon,omitempty"`
	LogoURL     *string  `json:"logo_url,omitempty"`
	Causes      []string `json:"causes,omitempty"`
}

// CharityList serves the donatable charity catalog. The reserved platform tip
// entry never appears here.
func CharityList(catalog donations.Catalog, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if catalog == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "charity catalog unavailable"))
			return
		}

		charities, err := catalog.List(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		views := make([]charityView, 0, len(charities))
		for _, charity := range charities {
			views = append(views, charityView{
				ID:          charity.ID,
				Name:        charity.Name,
				Description: charity.Description,
				Icon:        charity.Icon,
				LogoURL:     charity.LogoURL,
				Causes:      charity.Causes,
			})
		}
		responses.WriteSuccess(w, views)
	}
}
