package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/antinvestor/daraja-api/service/business"
	"github.com/antinvestor/daraja-api/service/models"
	"github.com/gorilla/mux"
	"github.com/pitabwire/frame"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// JobServer carries the shared dependencies of the HTTP handlers.
type JobServer struct {
	Service  *frame.Service
	Business business.PaymentBusiness
}

func HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// InitiatePayment accepts a push payment initiation from internal callers.
func (js *JobServer) InitiatePayment(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Invalid request method", http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	logger := js.Service.Log(ctx).WithField("type", "InitiatePaymentHandler")

	var request models.InitiateRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		logger.WithError(err).Info("failed to decode initiation request")
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	payment, err := js.Business.InitiatePayment(ctx, &request)
	if err != nil {
		logger.WithError(err).WithField("reference", request.Reference).
			Info("payment initiation did not succeed")
		writeStatusError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"checkoutRequestId": payment.CheckoutRequestID,
		"customerMessage":   customerMessage(payment),
	})
}

// GetPaymentStatus answers status polls from the durable store.
func (js *JobServer) GetPaymentStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	checkoutRequestID := mux.Vars(r)["checkoutRequestID"]

	result, err := js.Business.CheckStatus(ctx, checkoutRequestID)
	if err != nil {
		js.Service.Log(ctx).WithError(err).
			WithField("checkout_request_id", checkoutRequestID).
			Debug("status query did not resolve")
		writeStatusError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(result)
}

// GetPaymentHistory lists the recorded lifecycle transitions of a payment.
func (js *JobServer) GetPaymentHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	checkoutRequestID := mux.Vars(r)["checkoutRequestID"]

	history, err := js.Business.StatusHistory(ctx, checkoutRequestID)
	if err != nil {
		writeStatusError(w, err)
		return
	}
	if history == nil {
		history = []*models.PaymentStatus{}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(history)
}

func customerMessage(payment *models.Payment) string {
	message, _ := payment.Extra["customer_message"].(string)
	return message
}

// writeStatusError maps the business error taxonomy onto HTTP responses.
func writeStatusError(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	switch status.Code(err) {
	case codes.InvalidArgument:
		code = http.StatusBadRequest
	case codes.NotFound:
		code = http.StatusNotFound
	case codes.AlreadyExists:
		code = http.StatusConflict
	case codes.FailedPrecondition:
		code = http.StatusUnprocessableEntity
	case codes.Unauthenticated:
		code = http.StatusBadGateway
	case codes.Unavailable:
		code = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error": status.Convert(err).Message(),
	})
}
