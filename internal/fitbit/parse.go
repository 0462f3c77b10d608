package fitbit

import (
	"encoding/json"
	"time"

	"github.com/jwulff/vitalsync-go/internal/telemetry"
)

// The provider's payloads are deeply nested and optional-field-heavy. Each
// parse function is the boundary between the wire shape and the canonical
// types: missing or malformed fields degrade to "no data" (empty result, zero
// fields), never to an error. SubjectID is stamped later by the adapter.

type heartRateResponse struct {
	Intraday struct {
		Dataset []struct {
			Time  string `json:"time"`
			Value int    `json:"value"`
		} `json:"dataset"`
	} `json:"activities-heart-intraday"`
}

func parseHeartRate(date time.Time, body []byte) []telemetry.HeartRateSample {
	var resp heartRateResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil
	}

	var samples []telemetry.HeartRateSample
	for _, entry := range resp.Intraday.Dataset {
		ts, ok := clockTimeOnDay(date, entry.Time)
		if !ok || entry.Value <= 0 {
			continue
		}
		samples = append(samples, telemetry.HeartRateSample{
			Timestamp: ts,
			BPM:       entry.Value,
		})
	}
	return samples
}

type hrvDailyResponse struct {
	HRV []struct {
		Value struct {
			DailyRMSSD float64 `json:"dailyRmssd"`
			DeepRMSSD  float64 `json:"deepRmssd"`
		} `json:"value"`
		DateTime string `json:"dateTime"`
	} `json:"hrv"`
}

func parseHRVDaily(body []byte) []telemetry.HRVDailySummary {
	var resp hrvDailyResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil
	}

	var summaries []telemetry.HRVDailySummary
	for _, entry := range resp.HRV {
		day, err := time.Parse("2006-01-02", entry.DateTime)
		if err != nil {
			continue
		}
		summaries = append(summaries, telemetry.HRVDailySummary{
			Date:       day.UTC(),
			DailyRMSSD: entry.Value.DailyRMSSD,
			DeepRMSSD:  entry.Value.DeepRMSSD,
		})
	}
	return summaries
}

type hrvIntradayResponse struct {
	HRV []struct {
		Minutes []struct {
			Minute string `json:"minute"`
			Value  struct {
				RMSSD    float64 `json:"rmssd"`
				Coverage float64 `json:"coverage"`
				LF       float64 `json:"lf"`
				HF       float64 `json:"hf"`
			} `json:"value"`
		} `json:"minutes"`
	} `json:"hrv"`
}

func parseHRVIntraday(body []byte) []telemetry.HRVIntradaySample {
	var resp hrvIntradayResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil
	}

	var samples []telemetry.HRVIntradaySample
	for _, day := range resp.HRV {
		for _, m := range day.Minutes {
			ts, err := time.Parse("2006-01-02T15:04:05", m.Minute)
			if err != nil {
				continue
			}
			samples = append(samples, telemetry.HRVIntradaySample{
				Timestamp: ts.UTC(),
				RMSSD:     m.Value.RMSSD,
				Coverage:  m.Value.Coverage,
				LF:        m.Value.LF,
				HF:        m.Value.HF,
			})
		}
	}
	return samples
}

type sleepResponse struct {
	Sleep []struct {
		StartTime   string `json:"startTime"`
		EndTime     string `json:"endTime"`
		IsMainSleep bool   `json:"isMainSleep"`
		Efficiency  int    `json:"efficiency"`
		Levels      struct {
			Summary map[string]struct {
				Minutes int `json:"minutes"`
			} `json:"summary"`
		} `json:"levels"`
	} `json:"sleep"`
}

func parseSleep(body []byte) []telemetry.SleepSession {
	var resp sleepResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil
	}

	var sessions []telemetry.SleepSession
	for _, entry := range resp.Sleep {
		start, err := parseSleepTime(entry.StartTime)
		if err != nil {
			continue
		}
		end, err := parseSleepTime(entry.EndTime)
		if err != nil {
			continue
		}

		session := telemetry.SleepSession{
			StartTime:   start,
			EndTime:     end,
			Efficiency:  entry.Efficiency,
			IsMainSleep: entry.IsMainSleep,
		}
		// Stage summary is absent for short naps; minutes stay zero.
		if s, ok := entry.Levels.Summary["deep"]; ok {
			session.DeepMinutes = s.Minutes
		}
		if s, ok := entry.Levels.Summary["light"]; ok {
			session.LightMinutes = s.Minutes
		}
		if s, ok := entry.Levels.Summary["rem"]; ok {
			session.REMMinutes = s.Minutes
		}
		if s, ok := entry.Levels.Summary["wake"]; ok {
			session.WakeMinutes = s.Minutes
		}
		sessions = append(sessions, session)
	}
	return sessions
}

func parseSleepTime(s string) (time.Time, error) {
	t, err := time.Parse("2006-01-02T15:04:05.000", s)
	if err != nil {
		t, err = time.Parse("2006-01-02T15:04:05", s)
	}
	return t.UTC(), err
}

type activityDailyResponse struct {
	Summary *struct {
		Steps                int `json:"steps"`
		CaloriesOut          int `json:"caloriesOut"`
		SedentaryMinutes     int `json:"sedentaryMinutes"`
		LightlyActiveMinutes int `json:"lightlyActiveMinutes"`
		FairlyActiveMinutes  int `json:"fairlyActiveMinutes"`
		VeryActiveMinutes    int `json:"veryActiveMinutes"`
		Distances            []struct {
			Activity string  `json:"activity"`
			Distance float64 `json:"distance"`
		} `json:"distances"`
	} `json:"summary"`
}

func parseActivityDaily(date time.Time, body []byte) []telemetry.ActivityDailySummary {
	var resp activityDailyResponse
	if err := json.Unmarshal(body, &resp); err != nil || resp.Summary == nil {
		return nil
	}

	summary := telemetry.ActivityDailySummary{
		Date:              midnightUTC(date),
		Steps:             resp.Summary.Steps,
		CaloriesOut:       resp.Summary.CaloriesOut,
		SedentaryMinutes:  resp.Summary.SedentaryMinutes,
		LightlyActiveMin:  resp.Summary.LightlyActiveMinutes,
		FairlyActiveMin:   resp.Summary.FairlyActiveMinutes,
		VeryActiveMinutes: resp.Summary.VeryActiveMinutes,
	}
	for _, d := range resp.Summary.Distances {
		if d.Activity == "total" {
			summary.DistanceKM = d.Distance
		}
	}
	return []telemetry.ActivityDailySummary{summary}
}

type stepsResponse struct {
	Intraday struct {
		Dataset []struct {
			Time  string `json:"time"`
			Value int    `json:"value"`
		} `json:"dataset"`
	} `json:"activities-steps-intraday"`
}

func parseSteps(date time.Time, body []byte) []telemetry.StepsIntradaySample {
	var resp stepsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil
	}

	var samples []telemetry.StepsIntradaySample
	for _, entry := range resp.Intraday.Dataset {
		ts, ok := clockTimeOnDay(date, entry.Time)
		if !ok {
			continue
		}
		samples = append(samples, telemetry.StepsIntradaySample{
			Timestamp: ts,
			Steps:     entry.Value,
		})
	}
	return samples
}

// clockTimeOnDay combines a "15:04:05" clock value with the target date.
func clockTimeOnDay(date time.Time, clock string) (time.Time, bool) {
	t, err := time.Parse("15:04:05", clock)
	if err != nil {
		return time.Time{}, false
	}
	y, m, d := date.Date()
	return time.Date(y, m, d, t.Hour(), t.Minute(), t.Second(), 0, time.UTC), true
}

func midnightUTC(date time.Time) time.Time {
	y, m, d := date.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
