package repository

import (
	"context"
	"time"

	"github.com/antinvestor/daraja-api/service/models"
	"github.com/pitabwire/frame"
)

type PaymentRepository interface {
	Create(ctx context.Context, payment *models.Payment) error
	GetByCheckoutRequestID(ctx context.Context, checkoutRequestID string) (*models.Payment, error)
	GetByReference(ctx context.Context, reference string) (*models.Payment, error)
	// CompareAndSwapStatus atomically applies updates to the payment row
	// identified by checkoutRequestID only while its status still equals
	// expectedStatus. It reports whether the swap happened.
	CompareAndSwapStatus(ctx context.Context, checkoutRequestID string, expectedStatus string, updates map[string]any) (bool, error)
	StalePending(ctx context.Context, olderThan time.Time) ([]*models.Payment, error)
}

type paymentRepository struct {
	abstractRepository
}

func NewPaymentRepository(_ context.Context, service *frame.Service) PaymentRepository {
	return &paymentRepository{abstractRepository{service: service}}
}

func (repo *paymentRepository) Create(ctx context.Context, payment *models.Payment) error {
	return repo.writeDB(ctx).Create(payment).Error
}

func (repo *paymentRepository) GetByCheckoutRequestID(ctx context.Context, checkoutRequestID string) (*models.Payment, error) {
	payment := models.Payment{}
	err := repo.readDB(ctx).First(&payment, "checkout_request_id = ?", checkoutRequestID).Error
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

func (repo *paymentRepository) GetByReference(ctx context.Context, reference string) (*models.Payment, error) {
	payment := models.Payment{}
	err := repo.readDB(ctx).First(&payment, "reference = ?", reference).Error
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

func (repo *paymentRepository) CompareAndSwapStatus(ctx context.Context, checkoutRequestID string, expectedStatus string, updates map[string]any) (bool, error) {
	result := repo.writeDB(ctx).Model(&models.Payment{}).
		Where("checkout_request_id = ? AND status = ?", checkoutRequestID, expectedStatus).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (repo *paymentRepository) StalePending(ctx context.Context, olderThan time.Time) ([]*models.Payment, error) {
	var payments []*models.Payment
	err := repo.readDB(ctx).Find(&payments,
		"status = ? AND created_at < ?", models.StatusPending, olderThan).Error
	if err != nil {
		return nil, err
	}
	return payments, nil
}
