package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	commonhttp "jobapply-workers/internal/common/http"
)

// PortalClient obtains session tokens for an employer application portal
// using the OAuth2 client credentials grant.
type PortalClient struct {
	tokenURL     string
	clientID     string
	clientSecret string
	httpClient   *commonhttp.Client
	now          func() time.Time
}

// TokenResponse holds the response from the token endpoint.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
	TokenType   string `json:"token_type"`
	Scope       string `json:"scope"`
}

// Session is a token with its absolute expiry.
type Session struct {
	AccessToken string    `json:"accessToken"`
	TokenType   string    `json:"tokenType"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

func (s Session) Valid(now time.Time) bool {
	return s.AccessToken != "" && now.Before(s.ExpiresAt)
}

func NewPortalClient(tokenURL, clientID, clientSecret string, timeout time.Duration) *PortalClient {
	return &PortalClient{
		tokenURL:     strings.TrimSuffix(tokenURL, "/"),
		clientID:     clientID,
		clientSecret: clientSecret,
		httpClient:   commonhttp.NewClient(timeout),
		now:          time.Now,
	}
}

// Login requests a token scoped to the portal host on behalf of the user.
// maxTTL caps the lifetime reported by the endpoint when positive.
func (p *PortalClient) Login(ctx context.Context, userID, portalHost string, maxTTL time.Duration) (Session, error) {
	if p.tokenURL == "" {
		return Session{}, fmt.Errorf("portal token url is not configured")
	}

	data := url.Values{}
	data.Set("grant_type", "client_credentials")
	data.Set("client_id", p.clientID)
	data.Set("client_secret", p.clientSecret)
	data.Set("scope", "apply:"+portalHost)
	data.Set("subject", userID)

	resp, err := p.httpClient.PostForm(ctx, p.tokenURL, data)
	if err != nil {
		return Session{}, err
	}
	if !resp.OK() {
		return Session{}, fmt.Errorf("token request failed with status %d: %s", resp.StatusCode, string(resp.Body))
	}

	var tokenResp TokenResponse
	if err := json.Unmarshal(resp.Body, &tokenResp); err != nil {
		return Session{}, fmt.Errorf("failed to decode token response: %w", err)
	}
	if tokenResp.AccessToken == "" {
		return Session{}, fmt.Errorf("token response has no access_token")
	}

	ttl := time.Duration(tokenResp.ExpiresIn) * time.Second
	if maxTTL > 0 && (ttl <= 0 || ttl > maxTTL) {
		ttl = maxTTL
	}
	if tokenResp.TokenType == "" {
		tokenResp.TokenType = "Bearer"
	}

	return Session{
		AccessToken: tokenResp.AccessToken,
		TokenType:   tokenResp.TokenType,
		ExpiresAt:   p.now().Add(ttl),
	}, nil
}
