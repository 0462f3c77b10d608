// Package forecast is a thin client for the glucose forecasting
// collaborator: it turns a feature vector derived from stored readings into
// predicted future values per time horizon. It is queried on demand, not as
// part of the ingestion cycle.
package forecast

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/jwulff/vitalsync-go/internal/telemetry"
)

// FeatureVector is the model input derived from stored readings.
type FeatureVector struct {
	LatestMmol   float64 `json:"latest_mmol"`
	MeanMmol1h   float64 `json:"mean_mmol_1h"`
	SlopeMmolMin float64 `json:"slope_mmol_min"`
	Readings1h   int     `json:"readings_1h"`
}

// Prediction is one predicted value at a future horizon.
type Prediction struct {
	HorizonMinutes int     `json:"horizon_minutes"`
	Mmol           float64 `json:"mmol"`
}

// Client calls the forecasting service.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewClient creates a client for the forecaster at baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

type forecastResponse struct {
	Predictions []Prediction `json:"predictions"`
}

// Predict submits a feature vector and returns predictions ordered by
// horizon. Entries with a non-positive horizon are dropped as malformed.
func (c *Client) Predict(ctx context.Context, features FeatureVector) ([]Prediction, error) {
	payload, err := json.Marshal(features)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal features: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.BaseURL+"/forecast", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create forecast request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("forecast request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read forecast response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("forecast failed with status %d: %s", resp.StatusCode, string(body))
	}

	var fr forecastResponse
	if err := json.Unmarshal(body, &fr); err != nil {
		return nil, fmt.Errorf("failed to parse forecast response: %w", err)
	}

	var predictions []Prediction
	for _, p := range fr.Predictions {
		if p.HorizonMinutes <= 0 {
			continue
		}
		predictions = append(predictions, p)
	}
	sort.Slice(predictions, func(i, j int) bool {
		return predictions[i].HorizonMinutes < predictions[j].HorizonMinutes
	})
	return predictions, nil
}

// BuildFeatures derives a feature vector from the most recent hour of
// readings. The input must be sorted ascending by timestamp, as the store's
// range query returns it.
func BuildFeatures(readings []telemetry.GlucoseReading, now time.Time) FeatureVector {
	var fv FeatureVector
	if len(readings) == 0 {
		return fv
	}

	latest := readings[len(readings)-1]
	fv.LatestMmol = latest.Mmol

	cutoff := now.Add(-time.Hour)
	var sum float64
	var recent []telemetry.GlucoseReading
	for _, r := range readings {
		if r.Timestamp.Before(cutoff) {
			continue
		}
		recent = append(recent, r)
		sum += r.Mmol
	}
	fv.Readings1h = len(recent)
	if len(recent) > 0 {
		fv.MeanMmol1h = sum / float64(len(recent))
	}
	if len(recent) >= 2 {
		first, last := recent[0], recent[len(recent)-1]
		if minutes := last.Timestamp.Sub(first.Timestamp).Minutes(); minutes > 0 {
			fv.SlopeMmolMin = (last.Mmol - first.Mmol) / minutes
		}
	}
	return fv
}
