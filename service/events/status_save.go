package events

import (
	"context"
	"errors"

	"github.com/antinvestor/daraja-api/service/models"
	"github.com/pitabwire/frame"
	"gorm.io/gorm/clause"
)

// StatusTopic is the pub/sub subject terminal and pending statuses are
// propagated on for downstream consumers.
const StatusTopic = "payment.status"

// StatusSave persists a payment status audit row and propagates it to the
// status topic. It runs only after the payments row itself is confirmed, so
// a failure here is retried by the event bus without ever touching the
// payment's state.
type StatusSave struct {
	Service *frame.Service
}

func (event *StatusSave) Name() string {
	return "payment.status.save"
}

func (event *StatusSave) PayloadType() any {
	return &models.PaymentStatus{}
}

func (event *StatusSave) Validate(ctx context.Context, payload any) error {
	status, ok := payload.(*models.PaymentStatus)
	if !ok {
		return errors.New("payload is not of type models.PaymentStatus")
	}
	if status.CheckoutRequestID == "" {
		return errors.New("checkout request id should already have been set")
	}
	return nil
}

func (event *StatusSave) Execute(ctx context.Context, payload any) error {
	status := payload.(*models.PaymentStatus)

	logger := event.Service.Log(ctx).WithField("type", event.Name())
	logger.WithField("payload", status).Debug("handling event")

	if status.GetID() == "" {
		status.GenID(ctx)
	}

	result := event.Service.DB(ctx, false).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(status)
	if result.Error != nil {
		logger.WithError(result.Error).Warn("could not save status to db")
		return result.Error
	}

	err := event.Service.Publish(ctx, StatusTopic, status)
	if err != nil {
		logger.WithError(err).Warn("could not publish status to topic")
		return err
	}

	return nil
}
