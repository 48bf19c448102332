package coreapi

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/antinvestor/daraja-api/service/models"
)

// ErrInvalidCredentials is returned when the provider rejects the configured
// consumer key/secret pair.
var ErrInvalidCredentials = errors.New("provider rejected client credentials")

// TimestampFormat is the provider's password timestamp layout.
const TimestampFormat = "20060102150405"

// Client represents the Daraja API client
type Client struct {
	ShortCode      string
	ConsumerKey    string
	ConsumerSecret string
	PassKey        string
	HttpClient     *http.Client
	Env            string
}

// New creates a new instance of the Daraja API client
func New(shortCode, consumerKey, consumerSecret, passKey, env string) *Client {
	tr := &http.Transport{
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
		MaxIdleConns:       10,
		IdleConnTimeout:    30 * time.Second,
		DisableCompression: true,
	}

	httpClient := &http.Client{
		Transport: tr,
		Timeout:   30 * time.Second,
	}

	return &Client{
		ShortCode:      shortCode,
		ConsumerKey:    consumerKey,
		ConsumerSecret: consumerSecret,
		PassKey:        passKey,
		HttpClient:     httpClient,
		Env:            env,
	}
}

// Password derives the provider request password for the given timestamp.
func (c *Client) Password(timestamp string) string {
	return base64.StdEncoding.EncodeToString([]byte(c.ShortCode + c.PassKey + timestamp))
}

// BearerTokenResponse represents the response structure for bearer token generation
type BearerTokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   string `json:"expires_in"`
}

// GenerateBearerToken generates a Bearer token for authorization
func (c *Client) GenerateBearerToken(ctx context.Context) (*BearerTokenResponse, error) {
	url := fmt.Sprintf("%s/oauth/v1/generate?grant_type=client_credentials", c.Env)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(c.ConsumerKey, c.ConsumerSecret)

	resp, err := c.HttpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, fmt.Errorf("%w: %s", ErrInvalidCredentials, string(respBody))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to generate token: %s, body: %s", resp.Status, string(respBody))
	}

	var tokenResponse BearerTokenResponse
	if err := json.Unmarshal(respBody, &tokenResponse); err != nil {
		return nil, err
	}
	return &tokenResponse, nil
}

// InitiateSTKPush submits a push payment request that prompts the payer's
// phone for authorization. The synchronous response only signals acceptance,
// the outcome arrives later on the callback URL.
func (c *Client) InitiateSTKPush(ctx context.Context, request models.STKPushRequest, accessToken string) (*models.STKPushResponse, error) {
	url := fmt.Sprintf("%s/mpesa/stkpush/v1/processrequest", c.Env)

	jsonBody, err := json.Marshal(request)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.HttpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var pushResponse models.STKPushResponse
	if err := json.Unmarshal(respBody, &pushResponse); err != nil {
		return nil, fmt.Errorf("failed to initiate stk push: %s, body: %s", resp.Status, string(respBody))
	}
	// Rejections come back with a non 200 status and an error payload that
	// has no response code; normalise those to a rejected response.
	if resp.StatusCode != http.StatusOK && pushResponse.ResponseCode == "" {
		pushResponse.ResponseCode = resp.Status
		pushResponse.ResponseDescription = string(respBody)
	}
	return &pushResponse, nil
}

// QuerySTKPush asks the provider for the current result of a previously
// accepted push payment request.
func (c *Client) QuerySTKPush(ctx context.Context, request models.STKQueryRequest, accessToken string) (*models.STKQueryResponse, error) {
	url := fmt.Sprintf("%s/mpesa/stkpushquery/v1/query", c.Env)

	jsonBody, err := json.Marshal(request)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.HttpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to query stk push: %s, body: %s", resp.Status, string(respBody))
	}

	var queryResponse models.STKQueryResponse
	if err := json.Unmarshal(respBody, &queryResponse); err != nil {
		return nil, err
	}
	return &queryResponse, nil
}
