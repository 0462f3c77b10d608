// Package nutrition is a thin client for the text-to-structured-estimate
// collaborator. It is invoked out of band, never on the ingestion cadence,
// and its absence must not affect ingestion.
package nutrition

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// Confidence tiers the collaborator reports with an estimate.
const (
	ConfidenceHigh    = "high"
	ConfidenceMedium  = "medium"
	ConfidenceLow     = "low"
	ConfidenceUnknown = "unknown"
)

// Estimate is the structured macro estimate for a free-text meal description.
type Estimate struct {
	Calories   float64 `json:"calories"`
	ProteinG   float64 `json:"protein_g"`
	CarbsG     float64 `json:"carbs_g"`
	FatG       float64 `json:"fat_g"`
	Confidence string  `json:"confidence"`
}

// Client calls the estimator service.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	log        zerolog.Logger
}

// NewClient creates a client for the estimator at baseURL.
func NewClient(baseURL string, log zerolog.Logger) *Client {
	return &Client{
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
		log:        log.With().Str("component", "nutrition").Logger(),
	}
}

type estimateRequest struct {
	Description string `json:"description"`
}

// EstimateMeal sends a free-text meal description and returns the structured
// estimate. A malformed response is discarded: the zero estimate with an
// unknown confidence tier is substituted and the problem logged, matching the
// validation policy for collaborator output. Transport failures are returned
// as errors for the caller to decide on.
func (c *Client) EstimateMeal(ctx context.Context, description string) (Estimate, error) {
	fallback := Estimate{Confidence: ConfidenceUnknown}

	payload, err := json.Marshal(estimateRequest{Description: description})
	if err != nil {
		return fallback, fmt.Errorf("failed to marshal estimate request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.BaseURL+"/estimate", bytes.NewReader(payload))
	if err != nil {
		return fallback, fmt.Errorf("failed to create estimate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fallback, fmt.Errorf("estimate request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fallback, fmt.Errorf("failed to read estimate response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fallback, fmt.Errorf("estimate failed with status %d: %s", resp.StatusCode, string(body))
	}

	var estimate Estimate
	if err := json.Unmarshal(body, &estimate); err != nil {
		c.log.Warn().Err(err).Msg("malformed estimate response discarded")
		return fallback, nil
	}
	if !valid(estimate) {
		c.log.Warn().Interface("estimate", estimate).Msg("implausible estimate discarded")
		return fallback, nil
	}
	if estimate.Confidence == "" {
		estimate.Confidence = ConfidenceUnknown
	}
	return estimate, nil
}

// valid rejects estimates the service should never produce.
func valid(e Estimate) bool {
	if e.Calories < 0 || e.ProteinG < 0 || e.CarbsG < 0 || e.FatG < 0 {
		return false
	}
	switch e.Confidence {
	case ConfidenceHigh, ConfidenceMedium, ConfidenceLow, ConfidenceUnknown, "":
		return true
	}
	return false
}
