package events

import (
	"testing"

	"github.com/antinvestor/daraja-api/service/models"
	"github.com/stretchr/testify/assert"
)

func TestStatusSaveName(t *testing.T) {
	event := &StatusSave{}
	assert.Equal(t, "payment.status.save", event.Name())
	assert.IsType(t, &models.PaymentStatus{}, event.PayloadType())
}

func TestStatusSaveValidate(t *testing.T) {
	tests := []struct {
		name        string
		payload     any
		expectError bool
	}{
		{
			name: "valid payload",
			payload: &models.PaymentStatus{
				CheckoutRequestID: "ws_CO_event",
				Status:            models.StatusCompleted,
			},
		},
		{
			name:        "missing checkout request id",
			payload:     &models.PaymentStatus{Status: models.StatusCompleted},
			expectError: true,
		},
		{
			name:        "wrong payload type",
			payload:     &models.Payment{},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event := &StatusSave{}
			err := event.Validate(t.Context(), tt.payload)
			if tt.expectError {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}
