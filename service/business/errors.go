package business

import (
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var (
	ErrorInitializationFail = status.Error(codes.Internal, "Internal configuration is invalid")

	ErrorPaymentDoesNotExist = status.Error(codes.NotFound, "Specified payment does not exist")

	ErrorDuplicateReference = status.Error(codes.AlreadyExists, "Merchant reference has already been used")

	ErrorCredentialRejected = status.Error(codes.Unauthenticated, "Provider rejected the client credentials")

	ErrorProviderUnavailable = status.Error(codes.Unavailable, "Payment provider is unreachable")

	// ErrorStoreUnavailable covers the window where the provider accepted a
	// push request but the durable write failed, so the payment state is
	// unknown until a later status query resolves it.
	ErrorStoreUnavailable = status.Error(codes.Internal, "Durable store is unavailable, payment state unknown, retry the status query")
)

func validationError(reason string) error {
	return status.Error(codes.InvalidArgument, reason)
}

func invalidPhoneError(raw string) error {
	return status.Errorf(codes.InvalidArgument, "invalid phone number: %q", raw)
}

func invalidAmountError(reason string) error {
	return status.Errorf(codes.InvalidArgument, "invalid amount: %s", reason)
}

func initiationRejectedError(description string) error {
	return status.Errorf(codes.FailedPrecondition, "provider rejected the payment request: %s", description)
}
