package coreapi

import (
	"context"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// TokenManager caches the provider bearer token and refreshes it before
// expiry. Concurrent callers share a single in-flight refresh so a token
// expiry never turns into a thundering herd against the credential endpoint.
type TokenManager struct {
	client DarajaApiClient
	margin time.Duration

	mu        sync.Mutex
	token     string
	expiresAt time.Time

	group singleflight.Group
}

func NewTokenManager(client DarajaApiClient, margin time.Duration) *TokenManager {
	if margin <= 0 {
		margin = 30 * time.Second
	}
	return &TokenManager{
		client: client,
		margin: margin,
	}
}

func (tm *TokenManager) cached() (string, bool) {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	if tm.token == "" || time.Now().After(tm.expiresAt.Add(-tm.margin)) {
		return "", false
	}
	return tm.token, true
}

// AccessToken returns the cached token while it remains within the safety
// margin, otherwise fetches a fresh one. All callers waiting on a failed
// refresh receive the same error and nothing is cached.
func (tm *TokenManager) AccessToken(ctx context.Context) (string, error) {
	if token, ok := tm.cached(); ok {
		return token, nil
	}

	value, err, _ := tm.group.Do("token", func() (any, error) {
		// A caller that queued behind a completed refresh reuses it.
		if token, ok := tm.cached(); ok {
			return token, nil
		}

		response, err := tm.client.GenerateBearerToken(ctx)
		if err != nil {
			return nil, err
		}

		ttlSeconds, err := strconv.Atoi(response.ExpiresIn)
		if err != nil || ttlSeconds <= 0 {
			ttlSeconds = 3600
		}

		tm.mu.Lock()
		tm.token = response.AccessToken
		tm.expiresAt = time.Now().Add(time.Duration(ttlSeconds) * time.Second)
		tm.mu.Unlock()

		return response.AccessToken, nil
	})
	if err != nil {
		return "", err
	}
	return value.(string), nil
}
