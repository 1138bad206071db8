package settlement

import (
	"context"
	"errors"
	"sync"
	"testing"
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
	"gorm.io/gorm"
)

type fakeGiftLoader struct {
	views map[uuid.UUID]gifts.GiftView
}

func (f *fakeGiftLoader) Get(_ context.Context, id uuid.UUID) (*gifts.GiftView, error) {
	if view, ok := f.views[id]; ok {
		return &view, nil
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "gift not found")
}

type fakeLedger struct {
	mu       sync.Mutex
	records  []models.SettlementRecord
	createFn func(record *models.SettlementRecord) error
}

func (f *fakeLedger) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeLedger) Create(_ context.Context, record *models.SettlementRecord) error {
	if f.createFn != nil {
		if err := f.createFn(record); err != nil {
			return err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	f.records = append(f.records, *record)
	return nil
}

func (f *fakeLedger) ListByGiftID(_ context.Context, giftID uuid.UUID) ([]models.SettlementRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.SettlementRecord
	for _, record := range f.records {
		if record.GiftID == giftID {
			out = append(out, record)
		}
	}
	return out, nil
}

func (f *fakeLedger) GetByID(_ context.Context, giftID, id uuid.UUID) (*models.SettlementRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, record := range f.records {
		if record.GiftID == giftID && record.ID == id {
			copied := record
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeLedger) ExistsForAmount(_ context.Context, giftID uuid.UUID, amount decimal.Decimal) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, record := range f.records {
		if record.GiftID == giftID && record.Amount.Equal(amount) {
			return true, nil
		}
	}
	return false, nil
}

type fakeIssuer struct {
	result *giftcards.IssueResult
	err    error
	calls  int
}

func (f *fakeIssuer) Issue(_ context.Context, _ uuid.UUID, _ giftcards.IssueRequest) (*giftcards.IssueResult, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type fakeProcessor struct {
	result  *donations.ProcessInstantResult
	err     error
	calls   int
	lastReq donations.ProcessInstantRequest
}

func (f *fakeProcessor) ProcessInstant(_ context.Context, req donations.ProcessInstantRequest) (*donations.ProcessInstantResult, error) {
	f.calls++
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type fakeCatalog struct {
	charities map[string]models.Charity
}

func (f *fakeCatalog) List(_ context.Context) ([]models.Charity, error) {
	var out []models.Charity
	for _, charity := range f.charities {
		out = append(out, charity)
	}
	return out, nil
}

func (f *fakeCatalog) Get(_ context.Context, id string) (*models.Charity, error) {
	if id == donations.ReservedTipCharityID {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "charity id is reserved for platform tips")
	}
	if charity, ok := f.charities[id]; ok {
		return &charity, nil
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "charity not found")
}

type fakeEmailer struct {
	sent chan transparency.EventData
	err  error
}

func newFakeEmailer() *fakeEmailer {
	return &fakeEmailer{sent: make(chan transparency.EventData, 1)}
}

func (f *fakeEmailer) Send(_ context.Context, event transparency.EventData, _ []transparency.Recipient) error {
	f.sent <- event
	return f.err
}

type fixture struct {
	svc       Service
	giftID    uuid.UUID
	ledger    *fakeLedger
	issuer    *fakeIssuer
	processor *fakeProcessor
	emailer   *fakeEmailer
	store     SessionStore
}

func newFixture(t *testing.T, current, target string) *fixture {
	t.Helper()
	giftID := uuid.New()
	view := gifts.NewGiftView(models.Gift{
		ID:            giftID,
		Name:          "New bike for Maya",
		TargetAmount:  decimal.RequireFromString(target),
		CurrentAmount: decimal.RequireFromString(current),
	})

	ledger := &fakeLedger{}
	issuer := &fakeIssuer{result: &giftcards.IssueResult{ClaimURL: "https://cards.example.com/claim/1", RedeemCode: "WISH-1"}}
	processor := &fakeProcessor{result: &donations.ProcessInstantResult{ReceiptURL: "https://receipts.example.com/d/1"}}
	emailer := newFakeEmailer()
	store := newTestStore()

	svc, err := NewService(
		&fakeGiftLoader{views: map[uuid.UUID]gifts.GiftView{giftID: view}},
		ledger,
		store,
		issuer,
		processor,
		&fakeCatalog{charities: map[string]models.Charity{
			"make-a-wish": {ID: "make-a-wish", Name: "Make-A-Wish"},
		}},
		emailer,
		nil,
		nil,
		Policy{
			MinCardBalance: decimal.RequireFromString("1.00"),
			CallTimeout:    5 * time.Second,
			PublicBaseURL:  "https://wishbee.ai",
			FeePolicy:      donations.PercentPlusFlat(decimal.RequireFromString("0.029"), decimal.RequireFromString("0.30")),
		},
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return &fixture{svc: svc, giftID: giftID, ledger: ledger, issuer: issuer, processor: processor, emailer: emailer, store: store}
}

func (f *fixture) load(t *testing.T, email string) *Session {
	t.Helper()
	session, err := f.svc.LoadGift(context.Background(), f.giftID, email)
	if err != nil {
		t.Fatalf("LoadGift error: %v", err)
	}
	return session
}

func TestLoadGiftInitialViews(t *testing.T) {
	t.Run("healthy balance starts at send-wishbee", func(t *testing.T) {
		fx := newFixture(t, "120.00", "100.00")
		session := fx.load(t, "")
		if session.State != StateViewingMenu {
			t.Fatalf("unexpected state %s", session.State)
		}
		if !session.Gift.Remaining.Equal(decimal.RequireFromString("20.00")) {
			t.Fatalf("unexpected remaining %s", session.Gift.Remaining)
		}
		if session.ActiveView != NavSendWishbee {
			t.Fatalf("unexpected initial view %s", session.ActiveView)
		}
	})

	t.Run("sub-dollar balance starts at support-wishbee", func(t *testing.T) {
		fx := newFixture(t, "100.50", "100.00")
		session := fx.load(t, "")
		if !session.Gift.Remaining.Equal(decimal.RequireFromString("0.50")) {
			t.Fatalf("unexpected remaining %s", session.Gift.Remaining)
		}
		if session.ActiveView != NavSupportWishbee {
			t.Fatalf("unexpected initial view %s", session.ActiveView)
		}
	})
}

func TestLoadGiftNotFound(t *testing.T) {
	fx := newFixture(t, "120.00", "100.00")
	_, err := fx.svc.LoadGift(context.Background(), uuid.New(), "")
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestSettleAsGiftCardSuccess(t *testing.T) {
	fx := newFixture(t, "120.00", "100.00")
	session := fx.load(t, "")

	got, err := fx.svc.SettleAsGiftCard(context.Background(), session.ID, GiftCardInput{
		Amount:         decimal.RequireFromString("20.00"),
		RecipientEmail: "maya@example.com",
	})
	if err != nil {
		t.Fatalf("SettleAsGiftCard error: %v", err)
	}
	if got.State != StateGiftCardSuccess {
		t.Fatalf("unexpected state %s", got.State)
	}
	if got.Outcome.ClaimURL == "" || got.Outcome.RedeemCode == "" {
		t.Fatalf("claim url and redeem code must both be kept: %+v", got.Outcome)
	}

	records, _ := fx.ledger.ListByGiftID(context.Background(), fx.giftID)
	if len(records) != 1 || records[0].Disposition != enums.DispositionGiftCard {
		t.Fatalf("expected one giftcard ledger record, got %+v", records)
	}
	if !records[0].Amount.Equal(decimal.RequireFromString("20.00")) {
		t.Fatalf("unexpected record amount %s", records[0].Amount)
	}
}

func TestSettleAsGiftCardFallbackIsQualifiedSuccess(t *testing.T) {
	fx := newFixture(t, "120.00", "100.00")
	fx.issuer.result = &giftcards.IssueResult{FallbackToCredits: true, Message: "Credits issued"}
	session := fx.load(t, "")

	got, err := fx.svc.SettleAsGiftCard(context.Background(), session.ID, GiftCardInput{
		Amount:         decimal.RequireFromString("20.00"),
		RecipientEmail: "maya@example.com",
	})
	if err != nil {
		t.Fatalf("fallback must not be an error, got %v", err)
	}
	if got.State != StateGiftCardSuccess {
		t.Fatalf("unexpected state %s", got.State)
	}
	if !got.Outcome.FallbackToCredits || got.Outcome.Message != "Credits issued" {
		t.Fatalf("fallback message must surface as success: %+v", got.Outcome)
	}
}

func TestSettleAsGiftCardValidation(t *testing.T) {
	fx := newFixture(t, "120.00", "100.00")
	session := fx.load(t, "")

	_, err := fx.svc.SettleAsGiftCard(context.Background(), session.ID, GiftCardInput{
		Amount: decimal.RequireFromString("20.00"),
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error for missing email, got %v", err)
	}

	_, err = fx.svc.SettleAsGiftCard(context.Background(), session.ID, GiftCardInput{
		Amount:         decimal.RequireFromString("5.00"),
		RecipientEmail: "maya@example.com",
	})
	typed = pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error for partial amount, got %v", err)
	}

	if fx.issuer.calls != 0 {
		t.Fatalf("validation failures must not reach the issuer, got %d calls", fx.issuer.calls)
	}
}

func TestSettleAsGiftCardIssuerFailureIsRetryable(t *testing.T) {
	fx := newFixture(t, "120.00", "100.00")
	fx.issuer.err = pkgerrors.New(pkgerrors.CodeDependency, "Issuer maintenance window")
	session := fx.load(t, "")

	_, err := fx.svc.SettleAsGiftCard(context.Background(), session.ID, GiftCardInput{
		Amount:         decimal.RequireFromString("20.00"),
		RecipientEmail: "maya@example.com",
	})
	if err == nil {
		t.Fatal("expected issuer error")
	}

	// Session stays in the menu and no ledger record exists.
	reloaded, err := fx.store.Get(context.Background(), session.ID)
	if err != nil {
		t.Fatalf("reload session: %v", err)
	}
	if reloaded.State != StateViewingMenu {
		t.Fatalf("failed attempt must leave session in viewing_menu, got %s", reloaded.State)
	}
	if records, _ := fx.ledger.ListByGiftID(context.Background(), fx.giftID); len(records) != 0 {
		t.Fatalf("no ledger write on failure, got %+v", records)
	}

	// The busy flag is released, so the same operation can be retried.
	fx.issuer.err = nil
	if _, err := fx.svc.SettleAsGiftCard(context.Background(), session.ID, GiftCardInput{
		Amount:         decimal.RequireFromString("20.00"),
		RecipientEmail: "maya@example.com",
	}); err != nil {
		t.Fatalf("retry after failure should succeed, got %v", err)
	}
}

func TestDonateToCharitySuccess(t *testing.T) {
	fx := newFixture(t, "120.00", "100.00")
	session := fx.load(t, "")

	got, err := fx.svc.DonateToCharity(context.Background(), session.ID, DonationInput{
		CharityID: "make-a-wish",
		Amount:    decimal.RequireFromString("20.00"),
		CoverFees: true,
	})
	if err != nil {
		t.Fatalf("DonateToCharity error: %v", err)
	}
	if got.State != StateDonationConfirmed {
		t.Fatalf("unexpected state %s", got.State)
	}
	if got.Outcome.CharityName != "Make-A-Wish" || got.Outcome.ReceiptURL == nil {
		t.Fatalf("unexpected outcome %+v", got.Outcome)
	}

	// Fee split computed before the call, with the configured 2.9% + $0.30.
	req := fx.processor.lastReq
	if !req.NetAmount.Equal(decimal.RequireFromString("20.00")) {
		t.Fatalf("unexpected net %s", req.NetAmount)
	}
	if !req.TotalToCharge.Equal(decimal.RequireFromString("20.88")) {
		t.Fatalf("unexpected total %s", req.TotalToCharge)
	}

	records, _ := fx.ledger.ListByGiftID(context.Background(), fx.giftID)
	if len(records) != 1 || records[0].Disposition != enums.DispositionDonation {
		t.Fatalf("expected donation ledger record, got %+v", records)
	}
}

func TestDonateToCharityTerminalStateRejectsFurtherDispositions(t *testing.T) {
	fx := newFixture(t, "120.00", "100.00")
	session := fx.load(t, "")

	if _, err := fx.svc.DonateToCharity(context.Background(), session.ID, DonationInput{
		CharityID: "make-a-wish",
		Amount:    decimal.RequireFromString("20.00"),
	}); err != nil {
		t.Fatalf("DonateToCharity error: %v", err)
	}

	_, err := fx.svc.TipPlatform(context.Background(), session.ID, TipInput{Amount: decimal.RequireFromString("20.00")})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict after settlement, got %v", err)
	}

	_, err = fx.svc.SettleAsGiftCard(context.Background(), session.ID, GiftCardInput{
		Amount:         decimal.RequireFromString("20.00"),
		RecipientEmail: "maya@example.com",
	})
	typed = pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict after settlement, got %v", err)
	}
}

func TestDonateToCharityFailureLeavesMenu(t *testing.T) {
	fx := newFixture(t, "120.00", "100.00")
	fx.processor.err = pkgerrors.New(pkgerrors.CodeDependency, "Card declined by issuer")
	session := fx.load(t, "")

	_, err := fx.svc.DonateToCharity(context.Background(), session.ID, DonationInput{
		CharityID: "make-a-wish",
		Amount:    decimal.RequireFromString("20.00"),
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Message() != "Card declined by issuer" {
		t.Fatalf("expected verbatim processor message, got %v", err)
	}

	reloaded, _ := fx.store.Get(context.Background(), session.ID)
	if reloaded.State != StateViewingMenu {
		t.Fatalf("failed donation must leave viewing_menu, got %s", reloaded.State)
	}
	if records, _ := fx.ledger.ListByGiftID(context.Background(), fx.giftID); len(records) != 0 {
		t.Fatalf("no ledger write on failure, got %+v", records)
	}
}

func TestDonateToCharityRejectsReservedCharity(t *testing.T) {
	fx := newFixture(t, "120.00", "100.00")
	session := fx.load(t, "")

	_, err := fx.svc.DonateToCharity(context.Background(), session.ID, DonationInput{
		CharityID: donations.ReservedTipCharityID,
		Amount:    decimal.RequireFromString("20.00"),
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error for reserved charity, got %v", err)
	}
	if fx.processor.calls != 0 {
		t.Fatal("reserved charity must never reach the processor")
	}
}

func TestTipPlatformSuccessSendsEmail(t *testing.T) {
	fx := newFixture(t, "120.00", "100.00")
	session := fx.load(t, "gifter@example.com")

	got, err := fx.svc.TipPlatform(context.Background(), session.ID, TipInput{
		Amount: decimal.RequireFromString("20.00"),
	})
	if err != nil {
		t.Fatalf("TipPlatform error: %v", err)
	}
	if got.State != StateTipThankYou {
		t.Fatalf("unexpected state %s", got.State)
	}
	if got.Outcome.ReceiptURL == nil {
		t.Fatal("expected receipt url on successful tip")
	}

	records, _ := fx.ledger.ListByGiftID(context.Background(), fx.giftID)
	if len(records) != 1 || records[0].Disposition != enums.DispositionTip {
		t.Fatalf("expected tip ledger record, got %+v", records)
	}
	if records[0].ReceiptURL == nil || *records[0].ReceiptURL != *got.Outcome.ReceiptURL {
		t.Fatalf("receipt url mismatch: record=%v outcome=%v", records[0].ReceiptURL, got.Outcome.ReceiptURL)
	}

	select {
	case event := <-fx.emailer.sent:
		if event.Disposition != string(enums.DispositionTip) {
			t.Fatalf("unexpected email disposition %q", event.Disposition)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("expected transparency email")
	}
}

func TestTipPlatformLedgerFailureIsSoft(t *testing.T) {
	fx := newFixture(t, "120.00", "100.00")
	fx.ledger.createFn = func(*models.SettlementRecord) error {
		return errors.New("ledger unavailable")
	}
	session := fx.load(t, "gifter@example.com")

	got, err := fx.svc.TipPlatform(context.Background(), session.ID, TipInput{
		Amount: decimal.RequireFromString("20.00"),
	})
	if err != nil {
		t.Fatalf("tip ledger failure must stay soft, got %v", err)
	}
	if got.State != StateTipThankYou {
		t.Fatalf("expected tip_thank_you despite ledger failure, got %s", got.State)
	}
	if got.Outcome.ReceiptURL != nil {
		t.Fatalf("expected nil receipt on soft failure, got %v", *got.Outcome.ReceiptURL)
	}

	select {
	case <-fx.emailer.sent:
		t.Fatal("no transparency email without a receipt")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestTipPlatformNoEmailWithoutSessionEmail(t *testing.T) {
	fx := newFixture(t, "120.00", "100.00")
	session := fx.load(t, "")

	if _, err := fx.svc.TipPlatform(context.Background(), session.ID, TipInput{
		Amount: decimal.RequireFromString("20.00"),
	}); err != nil {
		t.Fatalf("TipPlatform error: %v", err)
	}

	select {
	case <-fx.emailer.sent:
		t.Fatal("no transparency email without a session email")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestDispositionBusyFlagSingleFlight(t *testing.T) {
	fx := newFixture(t, "120.00", "100.00")
	session := fx.load(t, "")

	// Simulate an in-flight attempt by holding the lock.
	if ok, err := fx.store.AcquireLock(context.Background(), session.ID); err != nil || !ok {
		t.Fatalf("prepare lock: ok=%v err=%v", ok, err)
	}

	_, err := fx.svc.TipPlatform(context.Background(), session.ID, TipInput{
		Amount: decimal.RequireFromString("20.00"),
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected conflict while busy, got %v", err)
	}
}

func TestDuplicateSettlementGuard(t *testing.T) {
	fx := newFixture(t, "120.00", "100.00")
	first := fx.load(t, "")

	if _, err := fx.svc.TipPlatform(context.Background(), first.ID, TipInput{
		Amount: decimal.RequireFromString("20.00"),
	}); err != nil {
		t.Fatalf("TipPlatform error: %v", err)
	}

	// A fresh session for the same unchanged gift hits the ledger guard.
	second := fx.load(t, "")
	_, err := fx.svc.TipPlatform(context.Background(), second.ID, TipInput{
		Amount: decimal.RequireFromString("20.00"),
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected duplicate-settlement conflict, got %v", err)
	}
}

func TestHistoryAndReceipt(t *testing.T) {
	fx := newFixture(t, "120.00", "100.00")
	session := fx.load(t, "")

	got, err := fx.svc.TipPlatform(context.Background(), session.ID, TipInput{
		Amount: decimal.RequireFromString("20.00"),
	})
	if err != nil {
		t.Fatalf("TipPlatform error: %v", err)
	}

	records, err := fx.svc.History(context.Background(), fx.giftID)
	if err != nil {
		t.Fatalf("History error: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected one record, got %d", len(records))
	}

	record, err := fx.svc.Receipt(context.Background(), fx.giftID, records[0].ID)
	if err != nil {
		t.Fatalf("Receipt error: %v", err)
	}
	if record.ReceiptURL == nil || *record.ReceiptURL != *got.Outcome.ReceiptURL {
		t.Fatalf("receipt url mismatch: %v vs %v", record.ReceiptURL, got.Outcome.ReceiptURL)
	}

	_, err = fx.svc.Receipt(context.Background(), fx.giftID, uuid.New())
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found for unknown settlement, got %v", err)
	}
}
