package business

import (
	"context"
	"encoding/base64"
	"errors"
	"strconv"
	"time"

	"github.com/antinvestor/daraja-api/config"
	"github.com/antinvestor/daraja-api/service/coreapi"
	"github.com/antinvestor/daraja-api/service/events"
	"github.com/antinvestor/daraja-api/service/models"
	"github.com/antinvestor/daraja-api/service/repository"
	"github.com/antinvestor/daraja-api/service/tracker"
	"github.com/pitabwire/frame"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	transactionTypePayBill = "CustomerPayBillOnline"

	accountReferenceLimit = 12
	transactionDescLimit  = 13

	defaultDescription = "Payment"
)

type PaymentBusiness interface {
	InitiatePayment(ctx context.Context, request *models.InitiateRequest) (*models.Payment, error)
	ReconcileCallback(ctx context.Context, callback *models.StkCallback) error
	CheckStatus(ctx context.Context, checkoutRequestID string) (*models.StatusResult, error)
	StatusHistory(ctx context.Context, checkoutRequestID string) ([]*models.PaymentStatus, error)
}

type paymentBusiness struct {
	service    *frame.Service
	cfg        *config.DarajaConfig
	repo       repository.PaymentRepository
	statusRepo repository.PaymentStatusRepository
	client     coreapi.DarajaApiClient
	tokens     coreapi.TokenSource
	pending    *tracker.Tracker
	emit       func(ctx context.Context, name string, payload any) error
}

func NewPaymentBusiness(_ context.Context, service *frame.Service, cfg *config.DarajaConfig,
	repo repository.PaymentRepository, statusRepo repository.PaymentStatusRepository,
	client coreapi.DarajaApiClient, tokens coreapi.TokenSource, pending *tracker.Tracker) (PaymentBusiness, error) {
	if service == nil || cfg == nil || repo == nil || statusRepo == nil ||
		client == nil || tokens == nil || pending == nil {
		return nil, ErrorInitializationFail
	}
	return &paymentBusiness{
		service:    service,
		cfg:        cfg,
		repo:       repo,
		statusRepo: statusRepo,
		client:     client,
		tokens:     tokens,
		pending:    pending,
		emit:       service.Emit,
	}, nil
}

// InitiatePayment validates and canonicalizes the request, submits the push
// payment to the provider and durably records the accepted payment as
// Pending before returning. A caller can never observe success for a
// payment that is not yet in the store, the callback may beat the response.
func (pb *paymentBusiness) InitiatePayment(ctx context.Context, request *models.InitiateRequest) (*models.Payment, error) {
	logger := pb.service.Log(ctx).WithField("reference", request.Reference)

	if request.Reference == "" {
		return nil, validationError("merchant reference is required")
	}

	phone, err := NormalizePhoneNumber(request.PhoneNumber)
	if err != nil {
		return nil, err
	}

	units, err := NormalizeAmount(request.Amount, pb.cfg.TransactionCeiling)
	if err != nil {
		return nil, err
	}

	// Retrying a push payment silently risks double charging the payer, so
	// a retry has to be a new explicit call with a new reference.
	_, err = pb.repo.GetByReference(ctx, request.Reference)
	if err == nil {
		return nil, ErrorDuplicateReference
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		logger.WithError(err).Error("could not check reference uniqueness")
		return nil, ErrorStoreUnavailable
	}

	accessToken, err := pb.tokens.AccessToken(ctx)
	if err != nil {
		if errors.Is(err, coreapi.ErrInvalidCredentials) {
			logger.WithError(err).Error("provider credential rejection")
			return nil, ErrorCredentialRejected
		}
		logger.WithError(err).Warn("could not obtain provider token")
		return nil, ErrorProviderUnavailable
	}

	description := request.Purpose
	if description == "" {
		description = defaultDescription
	}

	timestamp := time.Now().Format(coreapi.TimestampFormat)
	pushRequest := models.STKPushRequest{
		BusinessShortCode: pb.cfg.ShortCode,
		Password:          pb.password(timestamp),
		Timestamp:         timestamp,
		TransactionType:   transactionTypePayBill,
		Amount:            strconv.FormatInt(units, 10),
		PartyA:            phone,
		PartyB:            pb.cfg.ShortCode,
		PhoneNumber:       phone,
		CallBackURL:       pb.cfg.CallbackURL,
		AccountReference:  truncateField(request.Reference, accountReferenceLimit),
		TransactionDesc:   truncateField(description, transactionDescLimit),
	}

	response, err := pb.client.InitiateSTKPush(ctx, pushRequest, accessToken)
	if err != nil {
		logger.WithError(err).Warn("push payment request failed")
		return nil, ErrorProviderUnavailable
	}
	if !response.Accepted() {
		logger.WithField("response_code", response.ResponseCode).
			WithField("response_description", response.ResponseDescription).
			Info("provider rejected push payment")
		return nil, initiationRejectedError(response.ResponseDescription)
	}

	payment := &models.Payment{
		CheckoutRequestID: response.CheckoutRequestID,
		MerchantRequestID: response.MerchantRequestID,
		Reference:         request.Reference,
		PhoneNumber:       phone,
		Amount:            decimal.NullDecimal{Valid: true, Decimal: decimal.NewFromInt(units)},
		Description:       description,
		Status:            models.StatusPending,
		Extra: datatypes.JSONMap{
			"customer_message": response.CustomerMessage,
		},
	}
	payment.GenID(ctx)

	if err = pb.repo.Create(ctx, payment); err != nil {
		// Money may move with no local record, this must never pass quietly.
		logger.WithError(err).
			WithField("checkout_request_id", response.CheckoutRequestID).
			Error("provider accepted payment but the durable write failed")
		return nil, ErrorStoreUnavailable
	}

	pb.pending.Track(payment.CheckoutRequestID)
	pb.emitStatus(ctx, payment, nil)

	return payment, nil
}

// ReconcileCallback applies the provider's asynchronous result. The store
// is authoritative so the update is attempted even when this process never
// recorded the payment, and an unknown correlation id is logged and
// swallowed because the provider must always receive a clean
// acknowledgement.
func (pb *paymentBusiness) ReconcileCallback(ctx context.Context, callback *models.StkCallback) error {
	logger := pb.service.Log(ctx).
		WithField("checkout_request_id", callback.CheckoutRequestID).
		WithField("result_code", callback.ResultCode)

	if callback.CheckoutRequestID == "" {
		logger.Warn("callback without a checkout request id")
		return nil
	}

	now := time.Now()
	updates := map[string]any{
		"resolved_at": &now,
	}
	if callback.Successful() {
		updates["status"] = models.StatusCompleted
		updates["receipt_number"] = callback.ReceiptNumber()
	} else {
		updates["status"] = models.StatusFailed
		updates["failure_reason"] = callback.ResultDesc
	}

	swapped, err := pb.repo.CompareAndSwapStatus(ctx, callback.CheckoutRequestID, models.StatusPending, updates)
	if err != nil {
		logger.WithError(err).Error("durable store unavailable during reconciliation")
		return ErrorStoreUnavailable
	}

	if !swapped {
		record, getErr := pb.repo.GetByCheckoutRequestID(ctx, callback.CheckoutRequestID)
		if errors.Is(getErr, gorm.ErrRecordNotFound) {
			logger.Warn("reconciliation mismatch: callback for unknown payment")
			return nil
		}
		if getErr != nil {
			logger.WithError(getErr).Error("could not read back payment after lost swap")
			return nil
		}
		// Terminal already, a duplicate callback or a lost race against the
		// sweeper. Either way this is a no-op.
		logger.WithField("status", record.Status).Debug("payment already resolved, ignoring callback")
		return nil
	}

	pb.pending.Resolve(callback.CheckoutRequestID)

	record, err := pb.repo.GetByCheckoutRequestID(ctx, callback.CheckoutRequestID)
	if err != nil {
		logger.WithError(err).Warn("payment resolved but could not be read back for propagation")
		return nil
	}

	if callback.Successful() {
		confirmed := callback.ConfirmedAmount()
		if record.Amount.Valid && !confirmed.IsZero() && !confirmed.Equal(record.Amount.Decimal) {
			logger.WithField("requested", record.Amount.Decimal).
				WithField("confirmed", confirmed).
				Warn("provider confirmed a different amount than requested")
		}
	}

	pb.emitStatus(ctx, record, map[string]any{
		"result_desc":    callback.ResultDesc,
		"receipt_number": record.ReceiptNumber,
	})

	return nil
}

// CheckStatus answers from the durable store only. The in-memory attempt
// counter rides along for observability and never influences the state.
func (pb *paymentBusiness) CheckStatus(ctx context.Context, checkoutRequestID string) (*models.StatusResult, error) {
	record, err := pb.repo.GetByCheckoutRequestID(ctx, checkoutRequestID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		if pb.pending.Tracked(checkoutRequestID) {
			pb.service.Log(ctx).WithField("checkout_request_id", checkoutRequestID).
				Warn("tracked payment missing from durable store")
		}
		return nil, ErrorPaymentDoesNotExist
	}
	if err != nil {
		return nil, ErrorStoreUnavailable
	}

	return &models.StatusResult{
		CheckoutRequestID: record.CheckoutRequestID,
		Status:            record.Status,
		ReceiptNumber:     record.ReceiptNumber,
		FailureReason:     record.FailureReason,
		Attempts:          pb.pending.Bump(checkoutRequestID),
	}, nil
}

// StatusHistory returns the recorded lifecycle transitions in order. The
// audit rows are written by the status save event, so a freshly accepted
// payment may briefly answer with an empty history.
func (pb *paymentBusiness) StatusHistory(ctx context.Context, checkoutRequestID string) ([]*models.PaymentStatus, error) {
	_, err := pb.repo.GetByCheckoutRequestID(ctx, checkoutRequestID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrorPaymentDoesNotExist
	}
	if err != nil {
		return nil, ErrorStoreUnavailable
	}

	history, err := pb.statusRepo.GetByCheckoutRequestID(ctx, checkoutRequestID)
	if err != nil {
		return nil, ErrorStoreUnavailable
	}
	return history, nil
}

func (pb *paymentBusiness) password(timestamp string) string {
	return base64.StdEncoding.EncodeToString([]byte(pb.cfg.ShortCode + pb.cfg.PassKey + timestamp))
}

// emitStatus queues the audit/propagation event. A failure here is reported
// and retried out of band, it never reverts the payment's state.
func (pb *paymentBusiness) emitStatus(ctx context.Context, payment *models.Payment, extra map[string]any) {
	statusRecord := &models.PaymentStatus{
		PaymentID:         payment.GetID(),
		CheckoutRequestID: payment.CheckoutRequestID,
		Status:            payment.Status,
		Extra:             datatypes.JSONMap(extra),
	}
	statusRecord.GenID(ctx)

	event := events.StatusSave{}
	if err := pb.emit(ctx, event.Name(), statusRecord); err != nil {
		pb.service.Log(ctx).WithError(err).
			WithField("checkout_request_id", payment.CheckoutRequestID).
			Warn("could not emit payment status event")
	}
}
