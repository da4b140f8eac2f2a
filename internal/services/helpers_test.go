package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"campaign-payments/internal/database"
	"campaign-payments/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var gatewayPaidAt = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

// fakeGateway answers Verify from a table keyed by reference. References
// without an entry are pending.
type fakeGateway struct {
	mu            sync.Mutex
	verifications map[string]Verification
	verifyErrs    map[string]error
	initErr       error
	initialized   []InitializeRequest

	verifyCalls atomic.Int32
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		verifications: make(map[string]Verification),
		verifyErrs:    make(map[string]error),
	}
}

func (g *fakeGateway) Name() string {
	return "fake"
}

func (g *fakeGateway) Initialize(_ context.Context, req InitializeRequest) (*InitializeResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.initErr != nil {
		return nil, g.initErr
	}
	g.initialized = append(g.initialized, req)
	return &InitializeResult{
		Reference:        req.Reference,
		AuthorizationURL: "https://checkout.example.com/" + req.Reference,
		AccessCode:       "AC_" + req.Reference,
	}, nil
}

func (g *fakeGateway) Verify(_ context.Context, reference string) (*Verification, error) {
	g.verifyCalls.Add(1)

	g.mu.Lock()
	defer g.mu.Unlock()

	if err, ok := g.verifyErrs[reference]; ok {
		return nil, err
	}
	if v, ok := g.verifications[reference]; ok {
		return &v, nil
	}
	return &Verification{Reference: reference, Status: ProviderPending}, nil
}

func (g *fakeGateway) set(reference string, status ProviderStatus, amountMinor int64, currency string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.verifyErrs, reference)
	v := Verification{
		Reference:       reference,
		Status:          status,
		AmountMinor:     amountMinor,
		Currency:        currency,
		GatewayResponse: string(status),
	}
	if status == ProviderSuccess {
		v.PaidAt = &gatewayPaidAt
	}
	g.verifications[reference] = v
}

func (g *fakeGateway) fail(reference string, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.verifyErrs[reference] = err
}

// flakyStore is the real ledger with injectable fulfillment failures
type flakyStore struct {
	*database.Ledger
	mu       sync.Mutex
	failRefs map[string]bool
}

func (s *flakyStore) RecordFulfillment(ctx context.Context, reference string, at time.Time) (bool, error) {
	s.mu.Lock()
	fail := s.failRefs[reference]
	s.mu.Unlock()
	if fail {
		return false, errors.New("disk I/O error")
	}
	return s.Ledger.RecordFulfillment(ctx, reference, at)
}

func (s *flakyStore) failFulfillment(reference string, fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failRefs[reference] = fail
}

// countingNotifier records fulfillment notifications
type countingNotifier struct {
	calls atomic.Int32
}

func (n *countingNotifier) NotifyFulfilled(context.Context, *models.Transaction) error {
	n.calls.Add(1)
	return nil
}

type testEnv struct {
	db           *gorm.DB
	store        *flakyStore
	gateway      *fakeGateway
	directory    *DirectoryService
	notifier     *countingNotifier
	confirmation *ConfirmationService
	tickets      *models.Campaign
	votes        *models.Campaign
	contestant   models.Contestant
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := database.OpenSQLite(fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()), logger.Silent)
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))
	t.Cleanup(func() { database.Close(db, nil) })

	env := &testEnv{
		db:        db,
		store:     &flakyStore{Ledger: database.NewLedger(db), failRefs: make(map[string]bool)},
		gateway:   newFakeGateway(),
		directory: NewDirectoryService(db),
		notifier:  &countingNotifier{},
	}
	env.confirmation = NewConfirmationService(env.store, env.gateway, zap.NewNop(), env.notifier)
	t.Cleanup(env.confirmation.Wait)

	env.tickets = env.seedCampaign(t, "concert", "owner-1", models.CampaignTypeTicket)
	env.votes = env.seedCampaign(t, "awards", "owner-1", models.CampaignTypeVote)
	env.contestant = models.Contestant{CampaignID: env.votes.ID, Name: "Contestant A"}
	require.NoError(t, db.Create(&env.contestant).Error)

	return env
}

func (e *testEnv) seedCampaign(t *testing.T, slug, owner string, campaignType models.CampaignType) *models.Campaign {
	t.Helper()
	campaign := &models.Campaign{
		Slug:       slug,
		Title:      "Campaign " + slug,
		Type:       campaignType,
		Currency:   "NGN",
		UnitAmount: 500,
		MaxPerTxn:  10,
		OwnerID:    owner,
		IsActive:   true,
	}
	require.NoError(t, e.db.Create(campaign).Error)
	return campaign
}

// createPending records a pending transaction directly in the ledger
func (e *testEnv) createPending(t *testing.T, campaign *models.Campaign, reference string, quantity int) *models.Transaction {
	t.Helper()
	txn := &models.Transaction{
		Reference:    reference,
		Provider:     e.gateway.Name(),
		CampaignID:   campaign.ID,
		CampaignType: campaign.Type,
		Status:       models.StatusPending,
		Amount:       campaign.UnitAmount * int64(quantity),
		Currency:     campaign.Currency,
		Quantity:     quantity,
		Email:        "payer@example.com",
	}
	if campaign.Type == models.CampaignTypeVote {
		txn.ContestantID = &e.contestant.ID
	}
	require.NoError(t, e.store.CreateTransaction(context.Background(), txn))
	return txn
}

// settleAtGateway makes the gateway report status for txn with matching amount
func (e *testEnv) settleAtGateway(txn *models.Transaction, status ProviderStatus) {
	e.gateway.set(txn.Reference, status, toMinorUnits(txn.Amount), txn.Currency)
}

func (e *testEnv) issuanceCount(t *testing.T, reference string) int64 {
	t.Helper()
	var count int64
	require.NoError(t, e.db.Model(&models.TicketIssuance{}).Where("reference = ?", reference).Count(&count).Error)
	return count
}

func (e *testEnv) tallyCount(t *testing.T, reference string) int64 {
	t.Helper()
	var count int64
	require.NoError(t, e.db.Model(&models.VoteTally{}).Where("reference = ?", reference).Count(&count).Error)
	return count
}

func (e *testEnv) reload(t *testing.T, reference string) *models.Transaction {
	t.Helper()
	txn, err := e.store.GetTransaction(context.Background(), reference)
	require.NoError(t, err)
	return txn
}
