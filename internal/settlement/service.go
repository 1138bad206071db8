package settlement

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/wishbeeai/wishbee-backend/internal/donations"
	"github.com/wishbeeai/wishbee-backend/internal/giftcards"
	"github.com/wishbeeai/wishbee-backend/internal/gifts"
	"github.com/wishbeeai/wishbee-backend/internal/transparency"
	"github.com/wishbeeai/wishbee-backend/pkg/db/models"
	"github.com/wishbeeai/wishbee-backend/pkg/enums"
	pkgerrors "github.com/wishbeeai/wishbee-backend/pkg/errors"
	"github.com/wishbeeai/wishbee-backend/pkg/logger"
	"github.com/wishbeeai/wishbee-backend/pkg/metrics"
	"gorm.io/gorm"
)

type giftLoader interface {
	Get(ctx context.Context, id uuid.UUID) (*gifts.GiftView, error)
}

type giftCardIssuer interface {
	Issue(ctx context.Context, giftID uuid.UUID, req giftcards.IssueRequest) (*giftcards.IssueResult, error)
}

type donationProcessor interface {
	ProcessInstant(ctx context.Context, req donations.ProcessInstantRequest) (*donations.ProcessInstantResult, error)
}

type transparencyEmailer interface {
	Send(ctx context.Context, event transparency.EventData, to []transparency.Recipient) error
}

// Policy bundles the configured numeric knobs of the settlement flows.
type Policy struct {
	MinCardBalance decimal.Decimal
	CallTimeout    time.Duration
	PublicBaseURL  string
	FeePolicy      donations.FeePolicy
}

// Service drives the disposition of a gift's remaining balance: exactly one
// of gift card, charity donation, or platform tip per settlement session.
type Service interface {
	LoadGift(ctx context.Context, giftID uuid.UUID, email string) (*Session, error)
	SettleAsGiftCard(ctx context.Context, sessionID string, in GiftCardInput) (*Session, error)
	DonateToCharity(ctx context.Context, sessionID string, in DonationInput) (*Session, error)
	TipPlatform(ctx context.Context, sessionID string, in TipInput) (*Session, error)
	History(ctx context.Context, giftID uuid.UUID) ([]models.SettlementRecord, error)
	Receipt(ctx context.Context, giftID, settlementID uuid.UUID) (*models.SettlementRecord, error)
}

// GiftCardInput captures the gift-card disposition request.
type GiftCardInput struct {
	Amount         decimal.Decimal
	RecipientEmail string
}

// DonationInput captures the charity donation request.
type DonationInput struct {
	CharityID string
	Amount    decimal.Decimal
	CoverFees bool
}

// TipInput captures the platform tip request.
type TipInput struct {
	Amount decimal.Decimal
}

type service struct {
	gifts     giftLoader
	repo      Repository
	sessions  SessionStore
	issuer    giftCardIssuer
	processor donationProcessor
	catalog   donations.Catalog
	emailer   transparencyEmailer
	metrics   *metrics.SettlementMetrics
	logg      *logger.Logger
	policy    Policy
}

// NewService builds the settlement service.
func NewService(
	giftSvc giftLoader,
	repo Repository,
	sessions SessionStore,
	issuer giftCardIssuer,
	processor donationProcessor,
	catalog donations.Catalog,
	emailer transparencyEmailer,
	m *metrics.SettlementMetrics,
	logg *logger.Logger,
	policy Policy,
) (Service, error) {
	if giftSvc == nil {
		return nil, fmt.Errorf("gift service required")
	}
	if repo == nil {
		return nil, fmt.Errorf("settlement repository required")
	}
	if sessions == nil {
		return nil, fmt.Errorf("session store required")
	}
	if issuer == nil {
		return nil, fmt.Errorf("gift card issuer required")
	}
	if processor == nil {
		return nil, fmt.Errorf("donation processor required")
	}
	if catalog == nil {
		return nil, fmt.Errorf("charity catalog required")
	}
	if policy.FeePolicy == nil {
		return nil, fmt.Errorf("fee policy required")
	}
	if policy.MinCardBalance.IsZero() || policy.MinCardBalance.IsNegative() {
		policy.MinCardBalance = decimal.RequireFromString("1.00")
	}
	if policy.CallTimeout <= 0 {
		policy.CallTimeout = 30 * time.Second
	}
	policy.PublicBaseURL = strings.TrimRight(strings.TrimSpace(policy.PublicBaseURL), "/")

	return &service{
		gifts:     giftSvc,
		repo:      repo,
		sessions:  sessions,
		issuer:    issuer,
		processor: processor,
		catalog:   catalog,
		emailer:   emailer,
		metrics:   m,
		logg:      logg,
		policy:    policy,
	}, nil
}

func (s *service) LoadGift(ctx context.Context, giftID uuid.UUID, email string) (*Session, error) {
	view, err := s.gifts.Get(ctx, giftID)
	if err != nil {
		return nil, err
	}

	session := &Session{
		ID:         uuid.NewString(),
		Gift:       *view,
		State:      StateViewingMenu,
		ActiveView: InitialView(view.Remaining, s.policy.MinCardBalance),
		Email:      strings.TrimSpace(email),
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.sessions.Save(ctx, session); err != nil {
		return nil, err
	}

	if s.logg != nil {
		lctx := s.logg.WithGiftID(ctx, giftID.String())
		lctx = s.logg.WithSessionID(lctx, session.ID)
		s.logg.Info(lctx, "settlement session opened")
	}
	return session, nil
}

func (s *service) SettleAsGiftCard(ctx context.Context, sessionID string, in GiftCardInput) (*Session, error) {
	session, release, err := s.beginDisposition(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	defer release()

	remaining := session.Gift.Remaining
	if strings.TrimSpace(in.RecipientEmail) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "recipient email is required")
	}
	if !in.Amount.Equal(remaining) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must equal the full remaining balance").
			WithDetails(map[string]any{"remaining": remaining.StringFixed(2)})
	}
	if remaining.LessThan(s.policy.MinCardBalance) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "remaining balance is below the gift card minimum")
	}
	if err := s.guardUnsettled(ctx, session.Gift.ID, remaining); err != nil {
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, s.policy.CallTimeout)
	defer cancel()

	start := time.Now()
	result, err := s.issuer.Issue(callCtx, session.Gift.ID, giftcards.IssueRequest{
		Amount:              remaining,
		RecipientEmail:      strings.TrimSpace(in.RecipientEmail),
		RecipientName:       session.Gift.RecipientName,
		GiftName:            session.Gift.Title,
		TotalFundsCollected: session.Gift.TotalFundsCollected,
		FinalGiftPrice:      session.Gift.FinalGiftPrice,
	})
	s.metrics.ObserveExternalCall("giftcard_issuer", time.Since(start))
	if err != nil {
		s.metrics.IncSettlement(string(enums.DispositionGiftCard), "failure")
		return nil, err
	}

	record := s.newRecord(session, remaining, enums.DispositionGiftCard, nil)
	s.writeRecord(ctx, session, record)

	outcome := &Outcome{
		Disposition:       enums.DispositionGiftCard,
		Amount:            remaining.StringFixed(2),
		ClaimURL:          result.ClaimURL,
		RedeemCode:        result.RedeemCode,
		FallbackToCredits: result.FallbackToCredits,
		Message:           result.Message,
	}
	session.State = StateGiftCardSuccess
	session.Outcome = outcome
	if err := s.sessions.Save(ctx, session); err != nil {
		return nil, err
	}

	s.metrics.IncSettlement(string(enums.DispositionGiftCard), outcomeLabel(result.FallbackToCredits))
	return session, nil
}

func (s *service) DonateToCharity(ctx context.Context, sessionID string, in DonationInput) (*Session, error) {
	session, release, err := s.beginDisposition(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	defer release()

	remaining := session.Gift.Remaining
	if !in.Amount.Equal(remaining) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must equal the full remaining balance").
			WithDetails(map[string]any{"remaining": remaining.StringFixed(2)})
	}

	charity, err := s.catalog.Get(ctx, in.CharityID)
	if err != nil {
		return nil, err
	}

	// Fee split is computed strictly before the processor call.
	amounts, err := donations.ComputeDonationAmounts(remaining, in.CoverFees, s.policy.FeePolicy)
	if err != nil {
		return nil, err
	}
	if err := s.guardUnsettled(ctx, session.Gift.ID, remaining); err != nil {
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, s.policy.CallTimeout)
	defer cancel()

	start := time.Now()
	result, err := s.processor.ProcessInstant(callCtx, donations.ProcessInstantRequest{
		GiftID:              session.Gift.ID,
		Amount:              remaining,
		NetAmount:           amounts.NetToCharity,
		TotalToCharge:       amounts.TotalCharged,
		CharityID:           charity.ID,
		CharityName:         charity.Name,
		FeeCovered:          in.CoverFees,
		RecipientName:       session.Gift.RecipientName,
		GiftName:            session.Gift.Title,
		TotalFundsCollected: session.Gift.TotalFundsCollected,
		FinalGiftPrice:      session.Gift.FinalGiftPrice,
	})
	s.metrics.ObserveExternalCall("donation_processor", time.Since(start))
	if err != nil {
		// No ledger write; the session stays in viewing_menu for a retry.
		s.metrics.IncSettlement(string(enums.DispositionDonation), "failure")
		return nil, err
	}

	var receiptURL *string
	if result.ReceiptURL != "" {
		receiptURL = &result.ReceiptURL
	}
	record := s.newRecord(session, remaining, enums.DispositionDonation, receiptURL)
	s.writeRecord(ctx, session, record)

	session.State = StateDonationConfirmed
	session.Outcome = &Outcome{
		Disposition: enums.DispositionDonation,
		Amount:      remaining.StringFixed(2),
		CharityName: charity.Name,
		ReceiptURL:  receiptURL,
	}
	if err := s.sessions.Save(ctx, session); err != nil {
		return nil, err
	}

	s.metrics.IncSettlement(string(enums.DispositionDonation), "success")
	return session, nil
}

func (s *service) TipPlatform(ctx context.Context, sessionID string, in TipInput) (*Session, error) {
	session, release, err := s.beginDisposition(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	defer release()

	remaining := session.Gift.Remaining
	if !in.Amount.Equal(remaining) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must equal the full remaining balance").
			WithDetails(map[string]any{"remaining": remaining.StringFixed(2)})
	}
	if err := s.guardUnsettled(ctx, session.Gift.ID, remaining); err != nil {
		return nil, err
	}

	// The ledger write is the external call for this path. The record id is
	// minted here so the receipt URL can be stored on the row itself.
	recordID := uuid.New()
	receiptURL := s.receiptURL(session.Gift.ID, recordID)
	record := s.newRecord(session, remaining, enums.DispositionTip, &receiptURL)
	record.ID = recordID

	callCtx, cancel := context.WithTimeout(ctx, s.policy.CallTimeout)
	defer cancel()

	start := time.Now()
	writeErr := s.repo.Create(callCtx, record)
	s.metrics.ObserveExternalCall("settlement_ledger", time.Since(start))

	outcome := &Outcome{
		Disposition: enums.DispositionTip,
		Amount:      remaining.StringFixed(2),
	}
	if writeErr != nil {
		// Soft failure: the tip is still acknowledged, just without a receipt.
		if s.logg != nil {
			lctx := s.logg.WithSessionID(ctx, session.ID)
			s.logg.Error(lctx, "tip ledger write failed", writeErr)
		}
		s.metrics.IncSettlement(string(enums.DispositionTip), "soft_failure")
	} else {
		outcome.ReceiptURL = &receiptURL
		s.metrics.IncSettlement(string(enums.DispositionTip), "success")
	}

	session.State = StateTipThankYou
	session.Outcome = outcome
	if err := s.sessions.Save(ctx, session); err != nil {
		return nil, err
	}

	if writeErr == nil && session.Email != "" {
		s.sendTransparencyEmail(ctx, session)
	}
	return session, nil
}

func (s *service) History(ctx context.Context, giftID uuid.UUID) ([]models.SettlementRecord, error) {
	if giftID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "gift id is required")
	}
	records, err := s.repo.ListByGiftID(ctx, giftID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list settlement history")
	}
	return records, nil
}

func (s *service) Receipt(ctx context.Context, giftID, settlementID uuid.UUID) (*models.SettlementRecord, error) {
	if giftID == uuid.Nil || settlementID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "gift id and settlement id are required")
	}
	record, err := s.repo.GetByID(ctx, giftID, settlementID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "settlement record not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load settlement record")
	}
	return record, nil
}

// beginDisposition loads the session, rejects terminal states, and takes the
// single-flight lock. The returned release func is a no-op on the error path.
func (s *service) beginDisposition(ctx context.Context, sessionID string) (*Session, func(), error) {
	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, noopRelease, err
	}
	if session.State.IsTerminal() {
		return nil, noopRelease, pkgerrors.New(pkgerrors.CodeStateConflict, "this balance has already been settled").
			WithDetails(map[string]any{"state": string(session.State)})
	}

	acquired, err := s.sessions.AcquireLock(ctx, sessionID)
	if err != nil {
		return nil, noopRelease, err
	}
	if !acquired {
		return nil, noopRelease, pkgerrors.New(pkgerrors.CodeConflict, "another settlement attempt is in progress")
	}

	release := func() {
		if err := s.sessions.ReleaseLock(context.WithoutCancel(ctx), sessionID); err != nil && s.logg != nil {
			s.logg.Error(ctx, "release settlement lock", err)
		}
	}
	return session, release, nil
}

func (s *service) guardUnsettled(ctx context.Context, giftID uuid.UUID, amount decimal.Decimal) error {
	exists, err := s.repo.ExistsForAmount(ctx, giftID, amount)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check settlement ledger")
	}
	if exists {
		return pkgerrors.New(pkgerrors.CodeConflict, "this balance has already been settled")
	}
	return nil
}

func (s *service) newRecord(session *Session, amount decimal.Decimal, disposition enums.Disposition, receiptURL *string) *models.SettlementRecord {
	return &models.SettlementRecord{
		GiftID:              session.Gift.ID,
		Amount:              amount,
		Disposition:         disposition,
		RecipientName:       session.Gift.RecipientName,
		GiftName:            session.Gift.Title,
		TotalFundsCollected: session.Gift.TotalFundsCollected,
		FinalGiftPrice:      session.Gift.FinalGiftPrice,
		ReceiptURL:          receiptURL,
	}
}

// writeRecord appends the ledger row after the external settlement already
// succeeded. The money has moved at this point, so a failed write is logged
// rather than surfaced as a failed settlement.
func (s *service) writeRecord(ctx context.Context, session *Session, record *models.SettlementRecord) {
	if err := s.repo.Create(ctx, record); err != nil && s.logg != nil {
		lctx := s.logg.WithSessionID(ctx, session.ID)
		lctx = s.logg.WithGiftID(lctx, session.Gift.ID.String())
		s.logg.Error(lctx, "settlement ledger write failed", err)
	}
}

func (s *service) sendTransparencyEmail(ctx context.Context, session *Session) {
	if s.emailer == nil {
		return
	}

	event := transparency.EventData{
		RecipientName:       session.Gift.RecipientName,
		TotalFundsCollected: session.Gift.TotalFundsCollected,
		FinalGiftPrice:      session.Gift.FinalGiftPrice,
		RemainingBalance:    session.Gift.Remaining,
		Disposition:         string(enums.DispositionTip),
		ViewGiftDetailsURL:  fmt.Sprintf("%s/gifts/%s", s.policy.PublicBaseURL, session.Gift.ID),
	}
	to := []transparency.Recipient{{Email: session.Email, Name: session.Gift.RecipientName}}

	sendCtx := context.WithoutCancel(ctx)
	go func() {
		if err := s.emailer.Send(sendCtx, event, to); err != nil && s.logg != nil {
			s.logg.Warn(s.logg.WithSessionID(sendCtx, session.ID), "transparency email failed: "+err.Error())
		}
	}()
}

func (s *service) receiptURL(giftID, settlementID uuid.UUID) string {
	return fmt.Sprintf("%s/gifts/%s/receipt/%s", s.policy.PublicBaseURL, giftID, settlementID)
}

func outcomeLabel(fallback bool) string {
	if fallback {
		return "fallback_credits"
	}
	return "success"
}

func noopRelease() {}
