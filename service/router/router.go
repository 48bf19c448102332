package router

import (
	handlers "github.com/antinvestor/daraja-api/service/handler"
	"github.com/gorilla/mux"
)

func NewRouter(js *handlers.JobServer) *mux.Router {
	router := mux.NewRouter().StrictSlash(true)
	// Health check endpoint
	router.HandleFunc("/health", handlers.HealthHandler).Methods("GET")
	// Internal payment endpoints
	router.HandleFunc("/payments", js.InitiatePayment).Methods("POST")
	router.HandleFunc("/payments/{checkoutRequestID}", js.GetPaymentStatus).Methods("GET")
	router.HandleFunc("/payments/{checkoutRequestID}/history", js.GetPaymentHistory).Methods("GET")
	// Provider callback endpoint
	router.HandleFunc("/receivepayments", js.HandleCallback).Methods("POST")
	return router
}
