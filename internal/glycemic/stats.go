// Package glycemic computes glucose risk statistics from reading sets.
package glycemic

import (
	"math"

	"github.com/jwulff/vitalsync-go/internal/telemetry"
)

// Range bounds in mmol/L; both are inclusive bounds of "in range".
const (
	LowThresholdMmol  = 3.9
	HighThresholdMmol = 10.0
)

// Stats holds derived glycemic metrics for a window of readings. When
// TotalReadings is zero every other field is nil. Stats are recomputed on
// request and never persisted.
type Stats struct {
	TotalReadings int

	// AverageMmol is the arithmetic mean of the mmol/L values.
	AverageMmol *float64

	// TIR, TBR and TAR are the percentage of readings in, below and above
	// the [LowThresholdMmol, HighThresholdMmol] range. They sum to 100 for
	// non-empty input.
	TIR *float64
	TBR *float64
	TAR *float64

	// CV is the coefficient of variation (100 * population stddev / mean),
	// nil when there are fewer than two readings.
	CV *float64

	// LBGI and HBGI are the low and high blood glucose indices from the
	// Kovatchev symmetrized risk transform.
	LBGI *float64
	HBGI *float64
}

// ComputeStats derives glycemic metrics from an unordered reading set.
func ComputeStats(readings []telemetry.GlucoseReading) Stats {
	n := len(readings)
	stats := Stats{TotalReadings: n}
	if n == 0 {
		return stats
	}

	var sum, below, in, above float64
	for _, r := range readings {
		sum += r.Mmol
		switch {
		case r.Mmol < LowThresholdMmol:
			below++
		case r.Mmol > HighThresholdMmol:
			above++
		default:
			in++
		}
	}
	count := float64(n)
	mean := sum / count

	stats.AverageMmol = ptr(mean)
	stats.TBR = ptr(below / count * 100)
	stats.TIR = ptr(in / count * 100)
	stats.TAR = ptr(above / count * 100)

	if n >= 2 {
		var sqsum float64
		for _, r := range readings {
			d := r.Mmol - mean
			sqsum += d * d
		}
		stddev := math.Sqrt(sqsum / count)
		stats.CV = ptr(100 * stddev / mean)
	}

	lbgi, hbgi := riskIndices(readings)
	stats.LBGI = ptr(lbgi)
	stats.HBGI = ptr(hbgi)

	return stats
}

// riskIndices applies the Kovatchev symmetrized risk transform. Each reading
// is converted to mg/dL, mapped through f = 1.509*(ln(bg)^1.084 - 5.381), and
// 10*f^2 accumulates into the low-risk sum when f is negative, otherwise into
// the high-risk sum. Each sum is divided by the reading count.
func riskIndices(readings []telemetry.GlucoseReading) (lbgi, hbgi float64) {
	for _, r := range readings {
		bg := r.Mmol * telemetry.MgdlPerMmol
		f := 1.509 * (math.Pow(math.Log(bg), 1.084) - 5.381)
		risk := 10 * f * f
		if f < 0 {
			lbgi += risk
		} else {
			hbgi += risk
		}
	}
	count := float64(len(readings))
	return lbgi / count, hbgi / count
}

func ptr(v float64) *float64 { return &v }
