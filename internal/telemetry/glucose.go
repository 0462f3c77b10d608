// Package telemetry defines the canonical reading types the ingestion
// pipeline normalizes provider data into.
package telemetry

import (
	"strings"
	"time"
)

// MgdlPerMmol is the conversion factor between mg/dL and mmol/L glucose units.
const MgdlPerMmol = 18.0182

// RangeStatus represents the glucose range classification.
type RangeStatus string

const (
	RangeUrgentLow RangeStatus = "urgentLow"
	RangeLow       RangeStatus = "low"
	RangeNormal    RangeStatus = "normal"
	RangeHigh      RangeStatus = "high"
	RangeVeryHigh  RangeStatus = "veryHigh"
)

// Glucose thresholds in mg/dL.
const (
	ThresholdUrgentLow = 55
	ThresholdLow       = 70
	ThresholdHigh      = 180
	ThresholdVeryHigh  = 250
)

// StaleThreshold is how old a reading can be before it's considered stale.
const StaleThreshold = 10 * time.Minute

// GlucoseReading is a normalized blood-glucose sample. Both unit
// representations are always populated and mutually consistent; readings are
// unique per (SubjectID, Timestamp).
type GlucoseReading struct {
	SubjectID string
	Timestamp time.Time // always UTC
	MgDL      float64
	Mmol      float64
	Trend     string // provider trend name, empty when unknown
}

// NewGlucoseReading builds a reading from a mg/dL value, deriving the mmol/L
// representation and normalizing the timestamp to UTC.
func NewGlucoseReading(subjectID string, ts time.Time, mgdl float64, trend string) GlucoseReading {
	return GlucoseReading{
		SubjectID: subjectID,
		Timestamp: ts.UTC(),
		MgDL:      mgdl,
		Mmol:      MgdlToMmol(mgdl),
		Trend:     trend,
	}
}

// MgdlToMmol converts mg/dL to mmol/L.
func MgdlToMmol(mgdl float64) float64 {
	return mgdl / MgdlPerMmol
}

// MmolToMgdl converts mmol/L to mg/dL.
func MmolToMgdl(mmol float64) float64 {
	return mmol * MgdlPerMmol
}

// TrendArrows maps provider trend names to display arrows.
var TrendArrows = map[string]string{
	"doubleup":      "^^",
	"singleup":      "^",
	"fortyfiveup":   "/",
	"flat":          "-",
	"fortyfivedown": "\\",
	"singledown":    "v",
	"doubledown":    "vv",
}

// ClassifyRange determines the range status for a glucose value.
func ClassifyRange(mgdl float64) RangeStatus {
	if mgdl < ThresholdUrgentLow {
		return RangeUrgentLow
	}
	if mgdl < ThresholdLow {
		return RangeLow
	}
	if mgdl <= ThresholdHigh {
		return RangeNormal
	}
	if mgdl <= ThresholdVeryHigh {
		return RangeHigh
	}
	return RangeVeryHigh
}

// MapTrendArrow converts a provider trend string to a display arrow.
func MapTrendArrow(trend string) string {
	if arrow, ok := TrendArrows[strings.ToLower(trend)]; ok {
		return arrow
	}
	return "?"
}

// IsStaleReading checks if a timestamp is older than the stale threshold.
func IsStaleReading(ts time.Time) bool {
	return time.Since(ts) >= StaleThreshold
}
