package fitbit

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/lifedata/connector/internal/models"
)

type sleepLog struct {
	LogID         int64           `json:"logId"`
	DateOfSleep   string          `json:"dateOfSleep"`
	StartTime     string          `json:"startTime"`
	EndTime       string          `json:"endTime"`
	Duration      int64           `json:"duration"`
	Efficiency    int             `json:"efficiency"`
	IsMainSleep   bool            `json:"isMainSleep"`
	MinutesAsleep int             `json:"minutesAsleep"`
	MinutesAwake  int             `json:"minutesAwake"`
	TimeInBed     int             `json:"timeInBed"`
	Type          string          `json:"type"`
	Levels        json.RawMessage `json:"levels,omitempty"`
}

type distance struct {
	Activity string  `json:"activity"`
	Distance float64 `json:"distance"`
}

type activitySummary struct {
	Steps                int             `json:"steps"`
	Distances            []distance      `json:"distances"`
	Floors               *int            `json:"floors,omitempty"`
	CaloriesOut          int             `json:"caloriesOut"`
	CaloriesBMR          int             `json:"caloriesBMR"`
	ActivityCalories     int             `json:"activityCalories"`
	SedentaryMinutes     int             `json:"sedentaryMinutes"`
	LightlyActiveMinutes int             `json:"lightlyActiveMinutes"`
	FairlyActiveMinutes  int             `json:"fairlyActiveMinutes"`
	VeryActiveMinutes    int             `json:"veryActiveMinutes"`
	ActiveZoneMinutes    json.RawMessage `json:"activeZoneMinutes,omitempty"`
}

type heartRateZone struct {
	Name        string  `json:"name"`
	Min         int     `json:"min"`
	Max         int     `json:"max"`
	Minutes     int     `json:"minutes"`
	CaloriesOut float64 `json:"caloriesOut"`
}

type heartRateDay struct {
	DateTime string `json:"dateTime"`
	Value    struct {
		RestingHeartRate *int            `json:"restingHeartRate,omitempty"`
		HeartRateZones   []heartRateZone `json:"heartRateZones"`
	} `json:"value"`
}

type hrvDay struct {
	DateTime string `json:"dateTime"`
	Value    struct {
		DailyRmssd float64 `json:"dailyRmssd"`
		DeepRmssd  float64 `json:"deepRmssd"`
	} `json:"value"`
}

type spo2Day struct {
	DateTime string `json:"dateTime"`
	Value    struct {
		Avg float64 `json:"avg"`
		Min float64 `json:"min"`
		Max float64 `json:"max"`
	} `json:"value"`
}

type breathingRateDay struct {
	DateTime string `json:"dateTime"`
	Value    struct {
		BreathingRate float64 `json:"breathingRate"`
	} `json:"value"`
}

type cardioScoreDay struct {
	DateTime string `json:"dateTime"`
	Value    struct {
		VO2Max string `json:"vo2Max"`
	} `json:"value"`
}

type temperatureSkinDay struct {
	DateTime string `json:"dateTime"`
	Value    struct {
		NightlyRelative float64 `json:"nightlyRelative"`
	} `json:"value"`
	LogType string `json:"logType"`
}

func sleepRecord(s sleepLog) models.RawRecord {
	id := strconv.FormatInt(s.LogID, 10)
	return models.RawRecord{
		SourceID: id,
		Payload: map[string]any{
			"log_id":         id,
			"date":           s.DateOfSleep,
			"start_time":     s.StartTime,
			"end_time":       s.EndTime,
			"duration_ms":    s.Duration,
			"efficiency":     s.Efficiency,
			"is_main_sleep":  s.IsMainSleep,
			"minutes_asleep": s.MinutesAsleep,
			"minutes_awake":  s.MinutesAwake,
			"time_in_bed":    s.TimeInBed,
			"sleep_type":     s.Type,
			"levels":         rawOrNil(s.Levels),
		},
	}
}

func activityRecord(date string, a activitySummary) models.RawRecord {
	total := 0.0
	for _, d := range a.Distances {
		if d.Activity == "total" {
			total = d.Distance
			break
		}
	}
	return models.RawRecord{
		SourceID: date,
		Payload: map[string]any{
			"date":                   date,
			"steps":                  a.Steps,
			"distance_km":            total,
			"floors":                 a.Floors,
			"calories_total":         a.CaloriesOut,
			"calories_bmr":           a.CaloriesBMR,
			"calories_activity":      a.ActivityCalories,
			"sedentary_minutes":      a.SedentaryMinutes,
			"lightly_active_minutes": a.LightlyActiveMinutes,
			"fairly_active_minutes":  a.FairlyActiveMinutes,
			"very_active_minutes":    a.VeryActiveMinutes,
			"active_zone_minutes":    rawOrNil(a.ActiveZoneMinutes),
		},
	}
}

func heartRateRecord(d heartRateDay) models.RawRecord {
	return models.RawRecord{
		SourceID: d.DateTime,
		Payload: map[string]any{
			"date":               d.DateTime,
			"resting_heart_rate": d.Value.RestingHeartRate,
			"heart_rate_zones":   d.Value.HeartRateZones,
		},
	}
}

func hrvRecord(d hrvDay) models.RawRecord {
	return models.RawRecord{
		SourceID: d.DateTime,
		Payload: map[string]any{
			"date":        d.DateTime,
			"daily_rmssd": d.Value.DailyRmssd,
			"deep_rmssd":  d.Value.DeepRmssd,
		},
	}
}

func spo2Record(d spo2Day) models.RawRecord {
	return models.RawRecord{
		SourceID: d.DateTime,
		Payload: map[string]any{
			"date":     d.DateTime,
			"avg_spo2": d.Value.Avg,
			"min_spo2": d.Value.Min,
			"max_spo2": d.Value.Max,
		},
	}
}

func breathingRateRecord(d breathingRateDay) models.RawRecord {
	return models.RawRecord{
		SourceID: d.DateTime,
		Payload: map[string]any{
			"date":           d.DateTime,
			"breathing_rate": d.Value.BreathingRate,
		},
	}
}

// VO2Max is reported either as a single value or as a "low-high" range.
type VO2Max struct {
	Value     *float64
	RangeLow  *float64
	RangeHigh *float64
}

// ParseVO2Max reads "44" or "41-45". A range yields its midpoint as Value.
func ParseVO2Max(s string) VO2Max {
	s = strings.TrimSpace(s)
	if s == "" {
		return VO2Max{}
	}
	if parts := strings.Split(s, "-"); len(parts) == 2 {
		low, errLow := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
		high, errHigh := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if errLow == nil && errHigh == nil {
			mid := (low + high) / 2
			return VO2Max{Value: &mid, RangeLow: &low, RangeHigh: &high}
		}
		return VO2Max{}
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return VO2Max{}
	}
	return VO2Max{Value: &v}
}

func cardioScoreRecord(d cardioScoreDay) models.RawRecord {
	v := ParseVO2Max(d.Value.VO2Max)
	return models.RawRecord{
		SourceID: d.DateTime,
		Payload: map[string]any{
			"date":               d.DateTime,
			"vo2_max":            v.Value,
			"vo2_max_range_low":  v.RangeLow,
			"vo2_max_range_high": v.RangeHigh,
		},
	}
}

func temperatureSkinRecord(d temperatureSkinDay) models.RawRecord {
	return models.RawRecord{
		SourceID: d.DateTime,
		Payload: map[string]any{
			"date":             d.DateTime,
			"nightly_relative": d.Value.NightlyRelative,
			"log_type":         d.LogType,
		},
	}
}

// rawOrNil keeps nested JSON as-is and maps an absent value to null.
func rawOrNil(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return raw
}
