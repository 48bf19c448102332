package worker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/antinvestor/daraja-api/config"
	"github.com/antinvestor/daraja-api/service/coreapi"
	"github.com/antinvestor/daraja-api/service/models"
	"github.com/antinvestor/daraja-api/service/tracker"
	"github.com/pitabwire/frame"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// sweepRepo is an in memory PaymentRepository for sweeper passes.
type sweepRepo struct {
	mu       sync.Mutex
	payments map[string]*models.Payment
}

func newSweepRepo(payments ...*models.Payment) *sweepRepo {
	repo := &sweepRepo{payments: map[string]*models.Payment{}}
	for _, payment := range payments {
		repo.payments[payment.CheckoutRequestID] = payment
	}
	return repo
}

func (r *sweepRepo) Create(_ context.Context, payment *models.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.payments[payment.CheckoutRequestID] = payment
	return nil
}

func (r *sweepRepo) GetByCheckoutRequestID(_ context.Context, checkoutRequestID string) (*models.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	payment, ok := r.payments[checkoutRequestID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return payment, nil
}

func (r *sweepRepo) GetByReference(_ context.Context, reference string) (*models.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, payment := range r.payments {
		if payment.Reference == reference {
			return payment, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *sweepRepo) CompareAndSwapStatus(_ context.Context, checkoutRequestID string,
	expectedStatus string, updates map[string]any) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	payment, ok := r.payments[checkoutRequestID]
	if !ok || payment.Status != expectedStatus {
		return false, nil
	}
	if v, ok := updates["status"]; ok {
		payment.Status = v.(string)
	}
	if v, ok := updates["failure_reason"]; ok {
		payment.FailureReason = v.(string)
	}
	if v, ok := updates["resolved_at"]; ok {
		payment.ResolvedAt = v.(*time.Time)
	}
	return true, nil
}

func (r *sweepRepo) StalePending(_ context.Context, olderThan time.Time) ([]*models.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var stale []*models.Payment
	for _, payment := range r.payments {
		if payment.Status == models.StatusPending && payment.CreatedAt.Before(olderThan) {
			stale = append(stale, payment)
		}
	}
	return stale, nil
}

// recordingBusiness captures verdicts the sweeper recovers from the provider.
type recordingBusiness struct {
	mu        sync.Mutex
	callbacks []*models.StkCallback
}

func (b *recordingBusiness) InitiatePayment(_ context.Context, _ *models.InitiateRequest) (*models.Payment, error) {
	return nil, nil
}

func (b *recordingBusiness) ReconcileCallback(_ context.Context, callback *models.StkCallback) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.callbacks = append(b.callbacks, callback)
	return nil
}

func (b *recordingBusiness) CheckStatus(_ context.Context, _ string) (*models.StatusResult, error) {
	return nil, nil
}

func (b *recordingBusiness) StatusHistory(_ context.Context, _ string) ([]*models.PaymentStatus, error) {
	return nil, nil
}

type sweepTokens struct{}

func (sweepTokens) AccessToken(_ context.Context) (string, error) {
	return "sweep-token", nil
}

func stalePayment(checkoutRequestID string, age time.Duration) *models.Payment {
	payment := &models.Payment{
		CheckoutRequestID: checkoutRequestID,
		Reference:         "ref-" + checkoutRequestID,
		Status:            models.StatusPending,
		Amount:            decimal.NullDecimal{Valid: true, Decimal: decimal.NewFromInt(100)},
	}
	payment.CreatedAt = time.Now().Add(-age)
	return payment
}

func newSweeper(t *testing.T, repo *sweepRepo, biz *recordingBusiness, client coreapi.DarajaApiClient) (context.Context, *ExpirySweeper) {
	t.Helper()
	ctx, service := frame.NewService("daraja_api_tests")
	return ctx, &ExpirySweeper{
		Service:  service,
		Repo:     repo,
		Business: biz,
		Pending:  tracker.New(),
		Client:   client,
		Tokens:   sweepTokens{},
		Cfg:      &config.DarajaConfig{ShortCode: "174379", PassKey: "test-pass-key"},
		Window:   2 * time.Hour,
		Interval: time.Minute,
	}
}

func TestSweepExpiresStalePending(t *testing.T) {
	repo := newSweepRepo(
		stalePayment("ws_CO_stale", 3*time.Hour),
		stalePayment("ws_CO_fresh", time.Minute),
	)
	biz := &recordingBusiness{}

	client := new(coreapi.MockClient)
	// Still in flight, the provider has no verdict yet.
	client.On("QuerySTKPush", mock.Anything, mock.Anything, "sweep-token").
		Return(nil, assert.AnError)

	ctx, sweeper := newSweeper(t, repo, biz, client)
	require.NoError(t, sweeper.Sweep(ctx))

	stale, err := repo.GetByCheckoutRequestID(ctx, "ws_CO_stale")
	require.NoError(t, err)
	assert.Equal(t, models.StatusExpired, stale.Status)
	assert.Contains(t, stale.FailureReason, "expiry window")
	require.NotNil(t, stale.ResolvedAt)

	// Payments inside the window are untouched.
	fresh, err := repo.GetByCheckoutRequestID(ctx, "ws_CO_fresh")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, fresh.Status)

	assert.Empty(t, biz.callbacks)
}

func TestSweepRecoversLostCallback(t *testing.T) {
	repo := newSweepRepo(stalePayment("ws_CO_lost", 3*time.Hour))
	biz := &recordingBusiness{}

	client := new(coreapi.MockClient)
	client.On("QuerySTKPush", mock.Anything, mock.MatchedBy(func(req models.STKQueryRequest) bool {
		return req.CheckoutRequestID == "ws_CO_lost" &&
			req.BusinessShortCode == "174379" &&
			req.Password != "" && req.Timestamp != ""
	}), "sweep-token").Return(&models.STKQueryResponse{
		ResponseCode:      "0",
		CheckoutRequestID: "ws_CO_lost",
		ResultCode:        "0",
		ResultDesc:        "The service request is processed successfully.",
	}, nil)

	ctx, sweeper := newSweeper(t, repo, biz, client)
	require.NoError(t, sweeper.Sweep(ctx))

	// The verdict goes through reconciliation instead of a blind expiry.
	require.Len(t, biz.callbacks, 1)
	assert.Equal(t, "ws_CO_lost", biz.callbacks[0].CheckoutRequestID)
	assert.True(t, biz.callbacks[0].Successful())

	stored, err := repo.GetByCheckoutRequestID(ctx, "ws_CO_lost")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, stored.Status)
	client.AssertExpectations(t)
}

func TestSweepInconclusiveQueryStillExpires(t *testing.T) {
	repo := newSweepRepo(stalePayment("ws_CO_mute", 3*time.Hour))
	biz := &recordingBusiness{}

	client := new(coreapi.MockClient)
	// A response with no result code means the outcome is still unknown.
	client.On("QuerySTKPush", mock.Anything, mock.Anything, "sweep-token").
		Return(&models.STKQueryResponse{ResponseCode: "0"}, nil)

	ctx, sweeper := newSweeper(t, repo, biz, client)
	require.NoError(t, sweeper.Sweep(ctx))

	stored, err := repo.GetByCheckoutRequestID(ctx, "ws_CO_mute")
	require.NoError(t, err)
	assert.Equal(t, models.StatusExpired, stored.Status)
	assert.Empty(t, biz.callbacks)
}

func TestSweepLosesRaceToCallback(t *testing.T) {
	payment := stalePayment("ws_CO_race", 3*time.Hour)
	repo := newSweepRepo(payment)
	biz := &recordingBusiness{}

	client := new(coreapi.MockClient)
	client.On("QuerySTKPush", mock.Anything, mock.Anything, "sweep-token").
		Run(func(mock.Arguments) {
			// A callback terminalizes the payment between the staleness scan
			// and the expiry swap.
			_, _ = repo.CompareAndSwapStatus(context.Background(), "ws_CO_race",
				models.StatusPending, map[string]any{"status": models.StatusCompleted})
		}).
		Return(nil, assert.AnError)

	ctx, sweeper := newSweeper(t, repo, biz, client)
	require.NoError(t, sweeper.Sweep(ctx))

	stored, err := repo.GetByCheckoutRequestID(ctx, "ws_CO_race")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, stored.Status)
	assert.Empty(t, stored.FailureReason)
}

func TestSweepWithoutProviderClient(t *testing.T) {
	repo := newSweepRepo(stalePayment("ws_CO_offline", 3*time.Hour))
	biz := &recordingBusiness{}

	ctx, sweeper := newSweeper(t, repo, biz, nil)
	require.NoError(t, sweeper.Sweep(ctx))

	stored, err := repo.GetByCheckoutRequestID(ctx, "ws_CO_offline")
	require.NoError(t, err)
	assert.Equal(t, models.StatusExpired, stored.Status)
}

func TestSweepReapsStaleTrackerEntries(t *testing.T) {
	repo := newSweepRepo()
	biz := &recordingBusiness{}

	ctx, sweeper := newSweeper(t, repo, biz, nil)

	sweeper.Pending.Track("ws_CO_tracked")
	require.NoError(t, sweeper.Sweep(ctx))
	// Inside the window the entry survives.
	assert.True(t, sweeper.Pending.Tracked("ws_CO_tracked"))

	sweeper.Window = -time.Minute
	require.NoError(t, sweeper.Sweep(ctx))
	assert.False(t, sweeper.Pending.Tracked("ws_CO_tracked"))
}
