// Package dexcom is an HTTP client for the Dexcom Share API, the glucose
// telemetry provider.
package dexcom

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"time"
)

// Dexcom Share API endpoints (US region)
const (
	DefaultBaseURL = "https://share2.dexcom.com/ShareWebServices/Services"
	AppID          = "d89443d2-327c-4a6f-89e5-496bbb0317db"
)

// AuthError reports a failed login or an expired session that could not be
// re-established.
type AuthError struct {
	Op  string
	Err error
}

func (e *AuthError) Error() string { return "dexcom auth: " + e.Op + ": " + e.Err.Error() }
func (e *AuthError) Unwrap() error { return e.Err }

// IsAuthError reports whether err is an authentication failure.
func IsAuthError(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae)
}

// Client is an HTTP client for the Dexcom Share API.
type Client struct {
	Username   string
	Password   string
	BaseURL    string
	HTTPClient *http.Client
	sessionID  string
	accountID  string
}

// NewClient creates a new Dexcom API client.
func NewClient(username, password string) *Client {
	return &Client{
		Username: username,
		Password: password,
		BaseURL:  DefaultBaseURL,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Reading represents a glucose reading from Dexcom.
type Reading struct {
	WT    string // Timestamp like "Date(1234567890000)"
	ST    string // System time
	DT    string // Display time
	Value int    // Glucose in mg/dL
	Trend string // Trend direction
}

// Authenticate performs the two-step account/session login. The discovered
// account ID is reused by later re-logins.
func (c *Client) Authenticate(ctx context.Context) error {
	// Step 1: Get account ID
	accountID, err := c.postForString(ctx, "/General/AuthenticatePublisherAccount", map[string]string{
		"accountName":   c.Username,
		"password":      c.Password,
		"applicationId": AppID,
	})
	if err != nil {
		return &AuthError{Op: "authenticate account", Err: err}
	}
	c.accountID = accountID

	// Step 2: Get session ID
	sessionID, err := c.postForString(ctx, "/General/LoginPublisherAccountById", map[string]string{
		"accountId":     c.accountID,
		"password":      c.Password,
		"applicationId": AppID,
	})
	if err != nil {
		return &AuthError{Op: "login", Err: err}
	}
	c.sessionID = sessionID

	return nil
}

// IsAuthenticated reports whether the client holds a session ID.
func (c *Client) IsAuthenticated() bool {
	return c.sessionID != ""
}

// AccountID returns the connection identifier discovered during login.
func (c *Client) AccountID() string {
	return c.accountID
}

// postForString POSTs a JSON body and decodes a bare JSON string response.
func (c *Client) postForString(ctx context.Context, path string, body map[string]string) (string, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.BaseURL+path, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("status %d: %s", resp.StatusCode, string(respBody))
	}

	var value string
	if err := json.Unmarshal(respBody, &value); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	return value, nil
}

// FetchReadings fetches glucose readings from Dexcom. A non-200 response is
// treated as an expired session: the client re-authenticates once and retries;
// a second failure aborts with an AuthError.
func (c *Client) FetchReadings(ctx context.Context, maxCount, minutes int) ([]Reading, error) {
	if c.sessionID == "" {
		if err := c.Authenticate(ctx); err != nil {
			return nil, err
		}
	}

	readings, retry, err := c.fetchOnce(ctx, maxCount, minutes)
	if err == nil || !retry {
		return readings, err
	}

	// Session expired mid-poll: exactly one re-login then retry.
	c.sessionID = ""
	if err := c.Authenticate(ctx); err != nil {
		return nil, err
	}
	readings, retry, err = c.fetchOnce(ctx, maxCount, minutes)
	if retry {
		return nil, &AuthError{Op: "fetch after re-login", Err: err}
	}
	return readings, err
}

// fetchOnce performs a single latest-values request. retry is true when the
// response suggests an expired session.
func (c *Client) fetchOnce(ctx context.Context, maxCount, minutes int) (readings []Reading, retry bool, err error) {
	url := fmt.Sprintf("%s/Publisher/ReadPublisherLatestGlucoseValues?sessionId=%s&minutes=%d&maxCount=%d",
		c.BaseURL, c.sessionID, minutes, maxCount)

	req, err := http.NewRequestWithContext(ctx, "POST", url, nil)
	if err != nil {
		return nil, false, fmt.Errorf("failed to create fetch request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, false, fmt.Errorf("fetch request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, false, fmt.Errorf("failed to read fetch response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, true, fmt.Errorf("fetch failed with status %d: %s", resp.StatusCode, string(body))
	}

	if err := json.Unmarshal(body, &readings); err != nil {
		return nil, false, fmt.Errorf("failed to parse readings: %w", err)
	}
	return readings, false, nil
}

var timestampRe = regexp.MustCompile(`Date\((\d+)\)`)

// ParseTimestamp parses a Dexcom timestamp "Date(1234567890000)" to Unix milliseconds.
func ParseTimestamp(wt string) int64 {
	matches := timestampRe.FindStringSubmatch(wt)
	if len(matches) < 2 {
		return 0
	}
	ms, err := strconv.ParseInt(matches[1], 10, 64)
	if err != nil {
		return 0
	}
	return ms
}
