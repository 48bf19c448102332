package worker

import (
	"context"
	"encoding/base64"
	"strconv"
	"time"

	"github.com/antinvestor/daraja-api/config"
	"github.com/antinvestor/daraja-api/service/business"
	"github.com/antinvestor/daraja-api/service/coreapi"
	"github.com/antinvestor/daraja-api/service/models"
	"github.com/antinvestor/daraja-api/service/repository"
	"github.com/antinvestor/daraja-api/service/tracker"
	"github.com/pitabwire/frame"
)

// ExpirySweeper reclaims payments whose callback never arrived. It drops
// stale in-memory entries and expires durable records that are still
// Pending past the window, asking the provider for a definitive verdict
// first so a lost callback can still settle the payment.
//
// Every durable transition goes through the compare and swap guarded on
// Pending, so a callback racing the sweep always wins over a stale expiry.
type ExpirySweeper struct {
	Service  *frame.Service
	Repo     repository.PaymentRepository
	Business business.PaymentBusiness
	Pending  *tracker.Tracker
	Client   coreapi.DarajaApiClient
	Tokens   coreapi.TokenSource
	Cfg      *config.DarajaConfig

	Window   time.Duration
	Interval time.Duration
}

// Run loops until the context is cancelled.
func (s *ExpirySweeper) Run(ctx context.Context) {
	interval := s.Interval
	if interval <= 0 {
		interval = time.Minute
	}

	logger := s.Service.Log(ctx).WithField("type", "ExpirySweeper")
	logger.WithField("window", s.Window.String()).Info("sweeper started")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("sweeper stopping")
			return
		case <-ticker.C:
			if err := s.Sweep(ctx); err != nil {
				logger.WithError(err).Warn("sweep pass failed")
			}
		}
	}
}

// Sweep performs one pass over stale state.
func (s *ExpirySweeper) Sweep(ctx context.Context) error {
	cutoff := time.Now().Add(-s.Window)
	logger := s.Service.Log(ctx).WithField("type", "ExpirySweeper")

	reaped := s.Pending.ReapOlderThan(cutoff)
	if len(reaped) > 0 {
		logger.WithField("count", len(reaped)).Debug("dropped stale in-memory entries")
	}

	stale, err := s.Repo.StalePending(ctx, cutoff)
	if err != nil {
		return err
	}

	for _, payment := range stale {
		s.expire(ctx, payment)
	}
	return nil
}

func (s *ExpirySweeper) expire(ctx context.Context, payment *models.Payment) {
	logger := s.Service.Log(ctx).
		WithField("type", "ExpirySweeper").
		WithField("checkout_request_id", payment.CheckoutRequestID)

	if verdict := s.queryProvider(ctx, payment.CheckoutRequestID); verdict != nil {
		// The provider already resolved this payment, its callback was
		// lost. Apply the verdict through the normal reconciliation path.
		logger.WithField("result_code", verdict.ResultCode).
			Info("recovering lost callback from provider status query")
		if err := s.Business.ReconcileCallback(ctx, verdict); err != nil {
			logger.WithError(err).Warn("could not apply provider verdict")
		}
		return
	}

	now := time.Now()
	swapped, err := s.Repo.CompareAndSwapStatus(ctx, payment.CheckoutRequestID, models.StatusPending, map[string]any{
		"status":         models.StatusExpired,
		"failure_reason": "no provider callback received within the expiry window",
		"resolved_at":    &now,
	})
	if err != nil {
		logger.WithError(err).Warn("could not expire payment")
		return
	}
	if !swapped {
		// A callback terminalized the record mid-sweep, it wins.
		logger.Debug("payment resolved while sweeping, leaving it alone")
		return
	}

	logger.Info("payment expired without a callback")
}

// queryProvider returns a synthetic callback when the provider reports a
// definitive terminal result, nil when the outcome is still unknown.
func (s *ExpirySweeper) queryProvider(ctx context.Context, checkoutRequestID string) *models.StkCallback {
	if s.Client == nil || s.Tokens == nil {
		return nil
	}
	logger := s.Service.Log(ctx).
		WithField("type", "ExpirySweeper").
		WithField("checkout_request_id", checkoutRequestID)

	accessToken, err := s.Tokens.AccessToken(ctx)
	if err != nil {
		logger.WithError(err).Debug("no token for provider status query")
		return nil
	}

	timestamp := time.Now().Format(coreapi.TimestampFormat)
	response, err := s.Client.QuerySTKPush(ctx, models.STKQueryRequest{
		BusinessShortCode: s.Cfg.ShortCode,
		Password:          base64Password(s.Cfg.ShortCode, s.Cfg.PassKey, timestamp),
		Timestamp:         timestamp,
		CheckoutRequestID: checkoutRequestID,
	}, accessToken)
	if err != nil {
		// The provider answers queries for in-flight payments with an
		// error payload, so an error here means no verdict yet.
		logger.WithError(err).Debug("provider status query inconclusive")
		return nil
	}
	if response.ResultCode == "" {
		return nil
	}

	resultCode, err := strconv.Atoi(response.ResultCode)
	if err != nil {
		return nil
	}
	return &models.StkCallback{
		MerchantRequestID: response.MerchantRequestID,
		CheckoutRequestID: checkoutRequestID,
		ResultCode:        resultCode,
		ResultDesc:        response.ResultDesc,
	}
}

func base64Password(shortCode, passKey, timestamp string) string {
	return base64.StdEncoding.EncodeToString([]byte(shortCode + passKey + timestamp))
}
