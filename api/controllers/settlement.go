package controllers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/wishbeeai/wishbee-backend/api/middleware"
	"github.com/wishbeeai/wishbee-backend/api/responses"
	"github.com/wishbeeai/wishbee-backend/api/validators"
	"github.com/wishbeeai/wishbee-backend/internal/settlement"
	"github.com/wishbeeai/wishbee-backend/pkg/db/models"
	pkgerrors "github.com/wishbeeai/wishbee-backend/pkg/errors"
	"github.com/wishbeeai/wishbee-backend/pkg/logger"
)

type navView struct {
	ID      settlement.NavID `json:"id"`
	Enabled bool             `json:"enabled"`
}

type sessionResponse struct {
	ID         string              `json:"id"`
	Gift       giftResponse        `json:"gift"`
	State      settlement.State    `json:"state"`
	ActiveView settlement.NavID    `json:"active_view"`
	Views      []navView           `json:"views"`
	Outcome    *settlement.Outcome `json:"outcome,omitempty"`
}

type giftResponse struct {
	ID                  uuid.UUID `json:"id"`
	Title               string    `json:"title"`
	RecipientName       string    `json:"recipient_name"`
	TargetAmount        string    `json:"target_amount"`
	CurrentAmount       string    `json:"current_amount"`
	Remaining           string    `json:"remaining"`
	TotalFundsCollected string    `json:"total_funds_collected"`
	FinalGiftPrice      string    `json:"final_gift_price"`
}

func newSessionResponse(session *settlement.Session, minCardBalance decimal.Decimal) sessionResponse {
	views := make([]navView, 0, len(settlement.AllNavIDs))
	for _, nav := range settlement.AllNavIDs {
		views = append(views, navView{
			ID:      nav,
			Enabled: settlement.ViewEnabled(nav, session.Gift.Remaining, minCardBalance),
		})
	}
	return sessionResponse{
		ID: session.ID,
		Gift: giftResponse{
			ID:                  session.Gift.ID,
			Title:               session.Gift.Title,
			RecipientName:       session.Gift.RecipientName,
			TargetAmount:        session.Gift.TargetAmount.StringFixed(2),
			CurrentAmount:       session.Gift.CurrentAmount.StringFixed(2),
			Remaining:           session.Gift.Remaining.StringFixed(2),
			TotalFundsCollected: session.Gift.TotalFundsCollected.StringFixed(2),
			FinalGiftPrice:      session.Gift.FinalGiftPrice.StringFixed(2),
		},
		State:      session.State,
		ActiveView: session.ActiveView,
		Views:      views,
		Outcome:    session.Outcome,
	}
}

type settlementRecordView struct {
	ID                  uuid.UUID `json:"id"`
	GiftID              uuid.UUID `json:"gift_id"`
	Amount              string    `json:"amount"`
	Disposition         string    `json:"disposition"`
	RecipientName       string    `json:"recipient_name,omitempty"`
	GiftName            string    `json:"gift_name,omitempty"`
	TotalFundsCollected string    `json:"total_funds_collected"`
	FinalGiftPrice      string    `json:"final_gift_price"`
	ReceiptURL          *string   `json:"receipt_url,omitempty"`
	CreatedAt           time.Time `json:"created_at"`
}

func newSettlementRecordView(record models.SettlementRecord) settlementRecordView {
	return settlementRecordView{
		ID:                  record.ID,
		GiftID:              record.GiftID,
		Amount:              record.Amount.StringFixed(2),
		Disposition:         string(record.Disposition),
		RecipientName:       record.RecipientName,
		GiftName:            record.GiftName,
		TotalFundsCollected: record.TotalFundsCollected.StringFixed(2),
		FinalGiftPrice:      record.FinalGiftPrice.StringFixed(2),
		ReceiptURL:          record.ReceiptURL,
		CreatedAt:           record.CreatedAt,
	}
}

// SettlementSessionCreate opens a settlement session for a gift. The session
// email comes from the authenticated user, not the request body.
func SettlementSessionCreate(svc settlement.Service, minCardBalance decimal.Decimal, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "settlement service unavailable"))
			return
		}

		giftID, err := uuid.Parse(chi.URLParam(r, "giftId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid gift id"))
			return
		}

		session, err := svc.LoadGift(r.Context(), giftID, middleware.EmailFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newSessionResponse(session, minCardBalance))
	}
}

type giftCardRequest struct {
	Amount         string `json:"amount" validate:"required"`
	RecipientEmail string `json:"recipient_email" validate:"required,email"`
}

// SettlementGiftCard converts the full remaining balance into a gift card.
func SettlementGiftCard(svc settlement.Service, minCardBalance decimal.Decimal, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "settlement service unavailable"))
			return
		}

		var payload giftCardRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		amount, err := parseAmount(payload.Amount)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		session, err := svc.SettleAsGiftCard(r.Context(), chi.URLParam(r, "sessionId"), settlement.GiftCardInput{
			Amount:         amount,
			RecipientEmail: payload.RecipientEmail,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newSessionResponse(session, minCardBalance))
	}
}

type donationRequest struct {
	CharityID string `json:"charity_id" validate:"required"`
	Amount    string `json:"amount" validate:"required"`
	CoverFees bool   `json:"cover_fees"`
}

// SettlementDonation donates the full remaining balance to a charity.
func SettlementDonation(svc settlement.Service, minCardBalance decimal.Decimal, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "settlement service unavailable"))
			return
		}

		var payload donationRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		amount, err := parseAmount(payload.Amount)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		session, err := svc.DonateToCharity(r.Context(), chi.URLParam(r, "sessionId"), settlement.DonationInput{
			CharityID: payload.CharityID,
			Amount:    amount,
			CoverFees: payload.CoverFees,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newSessionResponse(session, minCardBalance))
	}
}

type tipRequest struct {
	Amount string `json:"amount" validate:"required"`
}

// SettlementTip leaves the full remaining balance as a platform tip.
func SettlementTip(svc settlement.Service, minCardBalance decimal.Decimal, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "settlement service unavailable"))
			return
		}

		var payload tipRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		amount, err := parseAmount(payload.Amount)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		session, err := svc.TipPlatform(r.Context(), chi.URLParam(r, "sessionId"), settlement.TipInput{Amount: amount})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newSessionResponse(session, minCardBalance))
	}
}

// SettlementHistory lists the gift's ledger entries, newest first.
func SettlementHistory(svc settlement.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "settlement service unavailable"))
			return
		}

		giftID, err := uuid.Parse(chi.URLParam(r, "giftId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid gift id"))
			return
		}

		records, err := svc.History(r.Context(), giftID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		views := make([]settlementRecordView, 0, len(records))
		for _, record := range records {
			views = append(views, newSettlementRecordView(record))
		}
		responses.WriteSuccess(w, views)
	}
}

// SettlementReceipt resolves one ledger entry of a gift.
func SettlementReceipt(svc settlement.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "settlement service unavailable"))
			return
		}

		giftID, err := uuid.Parse(chi.URLParam(r, "giftId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid gift id"))
			return
		}
		settlementID, err := uuid.Parse(chi.URLParam(r, "settlementId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid settlement id"))
			return
		}

		record, err := svc.Receipt(r.Context(), giftID, settlementID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newSettlementRecordView(*record))
	}
}

func parseAmount(raw string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid amount")
	}
	if amount.IsNegative() {
		return decimal.Decimal{}, pkgerrors.New(pkgerrors.CodeValidation, "amount cannot be negative")
	}
	return amount.Round(2), nil
}
