package epm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/cleitonmarx/epm-copilot/internal/domain"
	"github.com/cleitonmarx/epm-copilot/internal/telemetry"
)

// expiryMargin invalidates a cached token before its nominal expiry so a token
// never expires mid-call.
const expiryMargin = 30 * time.Second

// TokenIssuer obtains a fresh bearer token from the identity service.
type TokenIssuer interface {
	Issue(ctx context.Context) (token string, expiresIn time.Duration, err error)
}

// IDCSTokenIssuer requests client-credentials tokens from an IDCS token endpoint.
type IDCSTokenIssuer struct {
	tokenURL     string
	clientID     string
	clientSecret string
	scope        string
	client       *http.Client
}

// NewIDCSTokenIssuer creates a token issuer for the given endpoint and client credentials.
func NewIDCSTokenIssuer(tokenURL, clientID, clientSecret, scope string, client *http.Client) IDCSTokenIssuer {
	return IDCSTokenIssuer{
		tokenURL:     tokenURL,
		clientID:     clientID,
		clientSecret: clientSecret,
		scope:        scope,
		client:       client,
	}
}

// Issue performs one client-credentials grant and returns the token with its lifetime.
func (i IDCSTokenIssuer) Issue(ctx context.Context) (string, time.Duration, error) {
	spanCtx, span := telemetry.Start(ctx)
	defer span.End()

	form := url.Values{"grant_type": {"client_credentials"}}
	if i.scope != "" {
		form.Set("scope", i.scope)
	}

	req, err := http.NewRequestWithContext(spanCtx, http.MethodPost, i.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		telemetry.RecordErrorAndStatus(span, err)
		return "", 0, domain.NewTokenAcquisitionErr(err.Error())
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(i.clientID, i.clientSecret)

	resp, err := i.client.Do(req)
	if err != nil {
		telemetry.RecordErrorAndStatus(span, err)
		return "", 0, domain.NewTokenAcquisitionErr(fmt.Sprintf("token endpoint unreachable: %v", err))
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		telemetry.RecordErrorAndStatus(span, err)
		return "", 0, domain.NewTokenAcquisitionErr(fmt.Sprintf("read token response: %v", err))
	}

	if resp.StatusCode >= 300 {
		err := domain.NewTokenAcquisitionErr(fmt.Sprintf("token endpoint returned %s", resp.Status))
		telemetry.RecordErrorAndStatus(span, err)
		return "", 0, err
	}

	var payload struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.Unmarshal(respBody, &payload); err != nil {
		telemetry.RecordErrorAndStatus(span, err)
		return "", 0, domain.NewTokenAcquisitionErr(fmt.Sprintf("decode token response: %v", err))
	}
	if payload.AccessToken == "" {
		err := domain.NewTokenAcquisitionErr("token endpoint response has no access_token")
		telemetry.RecordErrorAndStatus(span, err)
		return "", 0, err
	}

	expiresIn := payload.ExpiresIn
	if expiresIn <= 0 {
		expiresIn = 3600
	}
	return payload.AccessToken, time.Duration(expiresIn) * time.Second, nil
}

// TokenCache holds one bearer token and its expiry, reissuing through the
// injected issuer when the token is absent or inside the expiry margin.
// Acquisition is serialized: concurrent callers never trigger duplicate issuances.
type TokenCache struct {
	mu        sync.Mutex
	token     string
	expiresAt time.Time

	clock  domain.CurrentTimeProvider
	issuer TokenIssuer
}

// NewTokenCache creates an empty cache over the given clock and issuer.
func NewTokenCache(clock domain.CurrentTimeProvider, issuer TokenIssuer) *TokenCache {
	return &TokenCache{clock: clock, issuer: issuer}
}

// Acquire returns the cached token while it is valid, otherwise issues a fresh
// one. On issuance failure the cache stays empty and the next caller retries.
func (c *TokenCache) Acquire(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	if c.token != "" && now.Before(c.expiresAt.Add(-expiryMargin)) {
		return c.token, nil
	}

	token, expiresIn, err := c.issuer.Issue(ctx)
	if err != nil {
		return "", err
	}

	c.token = token
	c.expiresAt = now.Add(expiresIn)
	return token, nil
}

var _ domain.TokenSource = (*TokenCache)(nil)
