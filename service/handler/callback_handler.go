package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/antinvestor/daraja-api/service/models"
)

// HandleCallback receives the provider's asynchronous push payment result.
//
// The wire contract requires a ResultCode 0 acknowledgement no matter what
// happens internally, otherwise the provider retries the callback
// indefinitely. Internal failures are logged and alerted on, never
// reflected in the response.
func (js *JobServer) HandleCallback(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Invalid request method", http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	logger := js.Service.Log(ctx).WithField("type", "CallbackHandler")

	var envelope models.CallbackEnvelope
	if err := json.NewDecoder(r.Body).Decode(&envelope); err != nil {
		logger.WithError(err).Warn("failed to decode callback body")
		acknowledge(w)
		return
	}

	callback := envelope.Body.StkCallback
	logger = logger.WithField("checkout_request_id", callback.CheckoutRequestID).
		WithField("result_code", callback.ResultCode)
	logger.Info("received provider callback")

	if err := js.Business.ReconcileCallback(ctx, &callback); err != nil {
		logger.WithError(err).Error("callback reconciliation failed internally")
	}

	acknowledge(w)
}

func acknowledge(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(models.CallbackAck{
		ResultCode: 0,
		ResultDesc: "Accepted",
	})
}
