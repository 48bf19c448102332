package coreapi

import (
	"context"

	"github.com/antinvestor/daraja-api/service/models"
	"github.com/stretchr/testify/mock"
)

// MockClient is a mock implementation of the DarajaApiClient interface.
type MockClient struct {
	mock.Mock
}

// GenerateBearerToken mocks the GenerateBearerToken method.
func (m *MockClient) GenerateBearerToken(ctx context.Context) (*BearerTokenResponse, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*BearerTokenResponse), args.Error(1)
}

// InitiateSTKPush mocks the InitiateSTKPush method.
func (m *MockClient) InitiateSTKPush(ctx context.Context, request models.STKPushRequest, accessToken string) (*models.STKPushResponse, error) {
	args := m.Called(ctx, request, accessToken)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.STKPushResponse), args.Error(1)
}

// QuerySTKPush mocks the QuerySTKPush method.
func (m *MockClient) QuerySTKPush(ctx context.Context, request models.STKQueryRequest, accessToken string) (*models.STKQueryResponse, error) {
	args := m.Called(ctx, request, accessToken)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.STKQueryResponse), args.Error(1)
}
