package fitbit

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
)

// DefaultTokenURL is the provider's OAuth2 token endpoint.
const DefaultTokenURL = "https://api.fitbit.com/oauth2/token"

// RefreshThreshold is how close to expiry a token may get before the request
// gate refreshes it.
const RefreshThreshold = 5 * time.Minute

// TokenSet is one OAuth credential set. The manager replaces all three fields
// together; a reader never observes a refresh token paired with a stale
// expiry.
type TokenSet struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// TokenManager tracks and refreshes the OAuth credentials for one subject's
// wearable connection. It carries no retry policy; callers decide what a
// failed refresh means for their request.
type TokenManager struct {
	clientID     string
	clientSecret string
	tokenURL     string
	httpClient   *http.Client
	now          func() time.Time

	mu     sync.Mutex
	tokens TokenSet
}

// NewTokenManager creates a manager seeded with the given token set.
func NewTokenManager(clientID, clientSecret string, initial TokenSet) *TokenManager {
	return &TokenManager{
		clientID:     clientID,
		clientSecret: clientSecret,
		tokenURL:     DefaultTokenURL,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		now:          time.Now,
		tokens:       initial,
	}
}

// SetTokenURL overrides the token endpoint, for tests and alternate regions.
func (m *TokenManager) SetTokenURL(u string) {
	m.tokenURL = u
}

// IsAuthenticated reports whether any token is currently set.
func (m *TokenManager) IsAuthenticated() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tokens.AccessToken != ""
}

// NeedsRefresh reports whether the access token expires within the refresh
// threshold, or whether no expiry is known at all.
func (m *TokenManager) NeedsRefresh() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.needsRefreshLocked()
}

func (m *TokenManager) needsRefreshLocked() bool {
	if m.tokens.ExpiresAt.IsZero() {
		return true
	}
	return m.tokens.ExpiresAt.Before(m.now().Add(RefreshThreshold))
}

// AccessToken returns the current access token.
func (m *TokenManager) AccessToken() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tokens.AccessToken
}

// Tokens returns a copy of the current token set.
func (m *TokenManager) Tokens() TokenSet {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tokens
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
}

// Refresh exchanges the stored refresh token for a new token set. Concurrent
// callers coalesce: whichever arrives second finds a fresh token and returns
// without a second exchange. On failure the existing set is left untouched so
// a soon-to-expire token stays usable for the rest of its validity window.
func (m *TokenManager) Refresh(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// A concurrent refresh may have already replaced the set.
	if !m.needsRefreshLocked() {
		return nil
	}
	if m.tokens.RefreshToken == "" {
		return fmt.Errorf("fitbit: no refresh token")
	}

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", m.tokens.RefreshToken)

	req, err := http.NewRequestWithContext(ctx, "POST", m.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create token request: %w", err)
	}
	req.SetBasicAuth(m.clientID, m.clientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read token response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("token refresh failed with status %d: %s", resp.StatusCode, string(body))
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return fmt.Errorf("failed to parse token response: %w", err)
	}
	if tr.AccessToken == "" || tr.RefreshToken == "" {
		return fmt.Errorf("token response missing fields")
	}

	// Atomic replacement: all three fields change together.
	m.tokens = TokenSet{
		AccessToken:  tr.AccessToken,
		RefreshToken: tr.RefreshToken,
		ExpiresAt:    m.now().Add(time.Duration(tr.ExpiresIn) * time.Second),
	}
	return nil
}
