package telemetry

import "time"

// Metric tags the wearable reading kinds the pipeline tracks.
type Metric string

const (
	MetricGlucose       Metric = "glucose"
	MetricHeartRate     Metric = "heart_rate"
	MetricHRVDaily      Metric = "hrv_daily"
	MetricHRVIntraday   Metric = "hrv_intraday"
	MetricSleep         Metric = "sleep"
	MetricActivityDaily Metric = "activity_daily"
	MetricStepsIntraday Metric = "steps_intraday"
)

// WearableMetrics lists every metric the wearable adapter polls.
var WearableMetrics = []Metric{
	MetricHeartRate,
	MetricHRVDaily,
	MetricHRVIntraday,
	MetricSleep,
	MetricActivityDaily,
	MetricStepsIntraday,
}

// HeartRateSample is a single intraday heart-rate measurement.
type HeartRateSample struct {
	SubjectID string
	Timestamp time.Time
	BPM       int
}

// HRVDailySummary is a per-day heart-rate-variability summary. RMSSD values
// stay zero when the provider omits them.
type HRVDailySummary struct {
	SubjectID  string
	Date       time.Time // midnight UTC of the summarized day
	DailyRMSSD float64
	DeepRMSSD  float64
}

// HRVIntradaySample is a short-window HRV measurement.
type HRVIntradaySample struct {
	SubjectID string
	Timestamp time.Time
	RMSSD     float64
	Coverage  float64
	LF        float64
	HF        float64
}

// SleepSession is one sleep period with its stage breakdown. Stage minutes
// stay zero when the provider reports no stage data.
type SleepSession struct {
	SubjectID    string
	StartTime    time.Time
	EndTime      time.Time
	DeepMinutes  int
	LightMinutes int
	REMMinutes   int
	WakeMinutes  int
	Efficiency   int
	IsMainSleep  bool
}

// ActivityDailySummary is a per-day activity rollup.
type ActivityDailySummary struct {
	SubjectID         string
	Date              time.Time
	Steps             int
	CaloriesOut       int
	DistanceKM        float64
	SedentaryMinutes  int
	LightlyActiveMin  int
	FairlyActiveMin   int
	VeryActiveMinutes int
}

// StepsIntradaySample is a step count for one intraday interval.
type StepsIntradaySample struct {
	SubjectID string
	Timestamp time.Time
	Steps     int
}
