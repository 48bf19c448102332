package repository

import (
	"context"

	"github.com/antinvestor/daraja-api/service/models"
	"github.com/pitabwire/frame"
)

type PaymentStatusRepository interface {
	GetByCheckoutRequestID(ctx context.Context, checkoutRequestID string) ([]*models.PaymentStatus, error)
	Save(ctx context.Context, status *models.PaymentStatus) error
}

type paymentStatusRepository struct {
	abstractRepository
}

func NewPaymentStatusRepository(_ context.Context, service *frame.Service) PaymentStatusRepository {
	return &paymentStatusRepository{abstractRepository{service: service}}
}

func (repo *paymentStatusRepository) GetByCheckoutRequestID(ctx context.Context, checkoutRequestID string) ([]*models.PaymentStatus, error) {
	var statuses []*models.PaymentStatus
	err := repo.readDB(ctx).Order("created_at asc").
		Find(&statuses, "checkout_request_id = ?", checkoutRequestID).Error
	if err != nil {
		return nil, err
	}
	return statuses, nil
}

func (repo *paymentStatusRepository) Save(ctx context.Context, status *models.PaymentStatus) error {
	return repo.writeDB(ctx).Save(status).Error
}
