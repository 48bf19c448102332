package models

import (
	"time"

	"github.com/pitabwire/frame"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

const (
	// StatusInitiated exists only between building the push request and the
	// provider accepting it; it is never persisted.
	StatusInitiated = "INITIATED"
	StatusPending   = "PENDING"
	StatusCompleted = "COMPLETED"
	StatusFailed    = "FAILED"
	StatusExpired   = "EXPIRED"
)

// IsTerminal reports whether a payment status can never change again.
func IsTerminal(status string) bool {
	switch status {
	case StatusCompleted, StatusFailed, StatusExpired:
		return true
	}
	return false
}

// Payment Table holds the push payment details.
// CheckoutRequestID is the provider issued correlation id, assigned once on
// acceptance and immutable thereafter.
type Payment struct {
	frame.BaseModel

	CheckoutRequestID string `gorm:"type:varchar(100);uniqueIndex"`
	MerchantRequestID string `gorm:"type:varchar(100)"`

	Reference   string              `gorm:"type:varchar(50);uniqueIndex"`
	PhoneNumber string              `gorm:"type:varchar(15)"`
	Amount      decimal.NullDecimal `gorm:"type:numeric" json:"amount"`
	Description string              `gorm:"type:varchar(100)"`

	Status        string `gorm:"type:varchar(20);index"`
	ReceiptNumber string `gorm:"type:varchar(50)"`
	FailureReason string `gorm:"type:varchar(255)"`
	ResolvedAt    *time.Time

	Extra datatypes.JSONMap `gorm:"index:,type:gin,option:jsonb_path_ops" json:"extra"`
}

func (model *Payment) IsResolved() bool {
	return IsTerminal(model.Status)
}

// PaymentStatus is the append mostly audit trail of lifecycle transitions,
// written by the status save event after the payments row is confirmed.
type PaymentStatus struct {
	frame.BaseModel
	PaymentID         string            `gorm:"type:varchar(50);index"`
	CheckoutRequestID string            `gorm:"type:varchar(100);index"`
	Status            string            `gorm:"type:varchar(20)"`
	Extra             datatypes.JSONMap `gorm:"index:,type:gin,option:jsonb_path_ops" json:"extra"`
}

// STKPushRequest is the provider push payment request body.
type STKPushRequest struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	TransactionType   string `json:"TransactionType"`
	Amount            string `json:"Amount"`
	PartyA            string `json:"PartyA"`
	PartyB            string `json:"PartyB"`
	PhoneNumber       string `json:"PhoneNumber"`
	CallBackURL       string `json:"CallBackURL"`
	AccountReference  string `json:"AccountReference"`
	TransactionDesc   string `json:"TransactionDesc"`
}

// STKPushResponse is the synchronous acceptance response. ResponseCode "0"
// means the request was accepted for processing, any other value is a
// rejection.
type STKPushResponse struct {
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	CustomerMessage     string `json:"CustomerMessage"`
}

func (resp *STKPushResponse) Accepted() bool {
	return resp.ResponseCode == "0"
}

type STKQueryRequest struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	CheckoutRequestID string `json:"CheckoutRequestID"`
}

type STKQueryResponse struct {
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResultCode          string `json:"ResultCode"`
	ResultDesc          string `json:"ResultDesc"`
}

// InitiateRequest is the inbound payment initiation body from internal
// callers.
type InitiateRequest struct {
	Reference   string          `json:"merchantReference"`
	PhoneNumber string          `json:"phone"`
	Amount      decimal.Decimal `json:"amount"`
	Purpose     string          `json:"purpose"`
}

// StatusResult is what the status resolver answers with. Attempts counts
// status polls observed by this process only and is best effort.
type StatusResult struct {
	CheckoutRequestID string `json:"checkoutRequestId"`
	Status            string `json:"status"`
	ReceiptNumber     string `json:"receiptNumber,omitempty"`
	FailureReason     string `json:"failureReason,omitempty"`
	Attempts          int    `json:"attempts"`
}
