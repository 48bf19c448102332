package coreapi

import (
	"context"

	"github.com/antinvestor/daraja-api/service/models"
)

//nolint:revive // DarajaApiClient follows original API naming convention
type DarajaApiClient interface {
	GenerateBearerToken(ctx context.Context) (*BearerTokenResponse, error)
	InitiateSTKPush(ctx context.Context, request models.STKPushRequest, accessToken string) (*models.STKPushResponse, error)
	QuerySTKPush(ctx context.Context, request models.STKQueryRequest, accessToken string) (*models.STKQueryResponse, error)
}

// TokenSource hands out a bearer token valid for at least the safety margin.
type TokenSource interface {
	AccessToken(ctx context.Context) (string, error)
}
