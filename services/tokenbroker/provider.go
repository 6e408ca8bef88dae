package tokenbroker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrRefreshRejected means the provider refused the refresh token; the
// stored credential is dead and must be invalidated, not retried.
var ErrRefreshRejected = errors.New("provider rejected the refresh token")

// ProviderClient talks to the content provider's OAuth endpoints using
// client credentials over basic auth.
type ProviderClient struct {
	httpClient   *http.Client
	authBaseURL  string
	clientID     string
	clientSecret string
	redirectURL  string
	userAgent    string
}

// NewProviderClient creates an OAuth client for the content provider.
func NewProviderClient(authBaseURL, clientID, clientSecret, redirectURL, userAgent string) *ProviderClient {
	return &ProviderClient{
		httpClient:   &http.Client{Timeout: 10 * time.Second},
		authBaseURL:  strings.TrimRight(authBaseURL, "/"),
		clientID:     clientID,
		clientSecret: clientSecret,
		redirectURL:  redirectURL,
		userAgent:    userAgent,
	}
}

// tokenResponse is the provider's access token payload.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	Scope        string `json:"scope"`
	Error        string `json:"error,omitempty"`
}

// AuthURL builds the user-facing authorization URL for the connect flow.
func (c *ProviderClient) AuthURL(state string) string {
	q := url.Values{}
	q.Set("client_id", c.clientID)
	q.Set("response_type", "code")
	q.Set("state", state)
	q.Set("redirect_uri", c.redirectURL)
	q.Set("duration", "permanent")
	q.Set("scope", "read")
	return c.authBaseURL + "/api/v1/authorize?" + q.Encode()
}

// ExchangeCode trades an authorization code for a token record.
func (c *ProviderClient) ExchangeCode(ctx context.Context, code string) (TokenRecord, error) {
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("redirect_uri", c.redirectURL)
	return c.tokenRequest(ctx, form)
}

// Refresh trades a refresh token for a fresh access token. A definitive
// provider rejection returns ErrRefreshRejected; transport errors do not.
func (c *ProviderClient) Refresh(ctx context.Context, refreshToken string) (TokenRecord, error) {
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)

	record, err := c.tokenRequest(ctx, form)
	if err != nil {
		return TokenRecord{}, err
	}
	// Providers commonly omit the refresh token on refresh; keep the old one.
	if record.RefreshToken == "" {
		record.RefreshToken = refreshToken
	}
	return record, nil
}

func (c *ProviderClient) tokenRequest(ctx context.Context, form url.Values) (TokenRecord, error) {
	endpoint := c.authBaseURL + "/api/v1/access_token"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return TokenRecord{}, fmt.Errorf("create token request: %w", err)
	}
	req.SetBasicAuth(c.clientID, c.clientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return TokenRecord{}, fmt.Errorf("token request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnauthorized {
		return TokenRecord{}, ErrRefreshRejected
	}
	if resp.StatusCode != http.StatusOK {
		return TokenRecord{}, fmt.Errorf("token request failed: status %d", resp.StatusCode)
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return TokenRecord{}, fmt.Errorf("decode token response: %w", err)
	}
	if tr.Error != "" {
		return TokenRecord{}, ErrRefreshRejected
	}
	if tr.AccessToken == "" {
		return TokenRecord{}, errors.New("token response missing access token")
	}

	return TokenRecord{
		AccessToken:  tr.AccessToken,
		RefreshToken: tr.RefreshToken,
		Scope:        tr.Scope,
		ExpiresAt:    time.Now().UTC().Add(time.Duration(tr.ExpiresIn) * time.Second),
	}, nil
}
