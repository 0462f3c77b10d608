// Package fitbit is an HTTP client for the wearable telemetry provider's
// OAuth2 REST API. It owns the token lifecycle and the parsing boundary that
// turns the provider's nested JSON into canonical telemetry types.
package fitbit

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/jwulff/vitalsync-go/internal/telemetry"
)

// DefaultBaseURL is the provider's REST API root.
const DefaultBaseURL = "https://api.fitbit.com"

// Client fetches wearable metrics for one subject's connection.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	Tokens     *TokenManager
}

// NewClient creates a client backed by the given token manager.
func NewClient(tokens *TokenManager) *Client {
	return &Client{
		BaseURL:    DefaultBaseURL,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
		Tokens:     tokens,
	}
}

// get is the single authenticated-request gate every metric fetch passes
// through. Before each call it refreshes the token when expiry is within the
// refresh threshold; a failed refresh fails only this request, so other
// metrics in the same cycle still attempt independently.
func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	if c.Tokens.NeedsRefresh() {
		if err := c.Tokens.Refresh(ctx); err != nil {
			return nil, fmt.Errorf("token refresh before request: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, "GET", c.BaseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.Tokens.AccessToken())
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s failed with status %d: %s", path, resp.StatusCode, string(body))
	}
	return body, nil
}

// FetchHeartRate fetches intraday heart-rate samples for the window.
func (c *Client) FetchHeartRate(ctx context.Context, date time.Time, since *time.Time) ([]telemetry.HeartRateSample, error) {
	w := SelectWindow(date, since)
	path := fmt.Sprintf("/1/user/-/activities/heart/date/%s/1d/1min.json", w.DateString())
	if w.Intraday() {
		path = fmt.Sprintf("/1/user/-/activities/heart/date/%s/1d/1min/time/%s/%s.json", w.DateString(), w.Start, w.End)
	}
	body, err := c.get(ctx, path)
	if err != nil {
		return nil, err
	}
	return parseHeartRate(w.Date, body), nil
}

// FetchHRVDaily fetches the day's HRV summary.
func (c *Client) FetchHRVDaily(ctx context.Context, date time.Time, _ *time.Time) ([]telemetry.HRVDailySummary, error) {
	body, err := c.get(ctx, fmt.Sprintf("/1/user/-/hrv/date/%s.json", date.Format("2006-01-02")))
	if err != nil {
		return nil, err
	}
	return parseHRVDaily(body), nil
}

// FetchHRVIntraday fetches short-window HRV samples for the window.
func (c *Client) FetchHRVIntraday(ctx context.Context, date time.Time, since *time.Time) ([]telemetry.HRVIntradaySample, error) {
	w := SelectWindow(date, since)
	path := fmt.Sprintf("/1/user/-/hrv/date/%s/all.json", w.DateString())
	if w.Intraday() {
		path = fmt.Sprintf("/1/user/-/hrv/date/%s/all/time/%s/%s.json", w.DateString(), w.Start, w.End)
	}
	body, err := c.get(ctx, path)
	if err != nil {
		return nil, err
	}
	return parseHRVIntraday(body), nil
}

// FetchSleep fetches the day's sleep sessions with stage breakdowns.
func (c *Client) FetchSleep(ctx context.Context, date time.Time, _ *time.Time) ([]telemetry.SleepSession, error) {
	body, err := c.get(ctx, fmt.Sprintf("/1.2/user/-/sleep/date/%s.json", date.Format("2006-01-02")))
	if err != nil {
		return nil, err
	}
	return parseSleep(body), nil
}

// FetchActivityDaily fetches the day's activity summary.
func (c *Client) FetchActivityDaily(ctx context.Context, date time.Time, _ *time.Time) ([]telemetry.ActivityDailySummary, error) {
	body, err := c.get(ctx, fmt.Sprintf("/1/user/-/activities/date/%s.json", date.Format("2006-01-02")))
	if err != nil {
		return nil, err
	}
	return parseActivityDaily(date, body), nil
}

// FetchStepsIntraday fetches intraday step counts for the window.
func (c *Client) FetchStepsIntraday(ctx context.Context, date time.Time, since *time.Time) ([]telemetry.StepsIntradaySample, error) {
	w := SelectWindow(date, since)
	path := fmt.Sprintf("/1/user/-/activities/steps/date/%s/1d/15min.json", w.DateString())
	if w.Intraday() {
		path = fmt.Sprintf("/1/user/-/activities/steps/date/%s/1d/15min/time/%s/%s.json", w.DateString(), w.Start, w.End)
	}
	body, err := c.get(ctx, path)
	if err != nil {
		return nil, err
	}
	return parseSteps(w.Date, body), nil
}
