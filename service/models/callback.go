package models

import (
	"github.com/shopspring/decimal"
)

// CallbackEnvelope is the asynchronous result the provider posts back after
// the payer responds to the push prompt.
type CallbackEnvelope struct {
	Body CallbackBody `json:"Body"`
}

type CallbackBody struct {
	StkCallback StkCallback `json:"stkCallback"`
}

type StkCallback struct {
	MerchantRequestID string           `json:"MerchantRequestID"`
	CheckoutRequestID string           `json:"CheckoutRequestID"`
	ResultCode        int              `json:"ResultCode"`
	ResultDesc        string           `json:"ResultDesc"`
	CallbackMetadata  CallbackMetadata `json:"CallbackMetadata"`
}

type CallbackMetadata struct {
	Item []CallbackItem `json:"Item"`
}

// CallbackItem values arrive as strings or numbers depending on the field.
type CallbackItem struct {
	Name  string `json:"Name"`
	Value any    `json:"Value"`
}

func (cb *StkCallback) Successful() bool {
	return cb.ResultCode == 0
}

func (cb *StkCallback) metadataValue(name string) (any, bool) {
	for _, item := range cb.CallbackMetadata.Item {
		if item.Name == name {
			return item.Value, true
		}
	}
	return nil, false
}

// ReceiptNumber returns the provider receipt present on successful results.
func (cb *StkCallback) ReceiptNumber() string {
	value, ok := cb.metadataValue("MpesaReceiptNumber")
	if !ok {
		return ""
	}
	receipt, _ := value.(string)
	return receipt
}

// ConfirmedAmount returns the amount the provider confirms was debited.
func (cb *StkCallback) ConfirmedAmount() decimal.Decimal {
	value, ok := cb.metadataValue("Amount")
	if !ok {
		return decimal.Zero
	}
	switch amount := value.(type) {
	case float64:
		return decimal.NewFromFloat(amount)
	case string:
		parsed, err := decimal.NewFromString(amount)
		if err != nil {
			return decimal.Zero
		}
		return parsed
	}
	return decimal.Zero
}

// CallbackAck is the wire acknowledgement the provider expects. It is always
// ResultCode 0, otherwise the provider retries the callback indefinitely.
type CallbackAck struct {
	ResultCode int    `json:"ResultCode"`
	ResultDesc string `json:"ResultDesc"`
}
