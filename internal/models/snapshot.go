package models

import "time"

// DailyValue is one calendar-day bucket.
type DailyValue struct {
	Day   time.Time `json:"day"`
	Value float64   `json:"value"`
}

// MetricSummary is the reduced view of one metric for a fetch cycle.
type MetricSummary struct {
	Today   float64      `json:"today"`
	Average float64      `json:"average"`
	History []DailyValue `json:"history"`
}

// WorkoutSummary is a workout as shown on the daily view.
type WorkoutSummary struct {
	WorkoutType     string    `json:"workout_type"`
	DurationMinutes float64   `json:"duration_minutes"`
	CaloriesBurned  *float64  `json:"calories_burned,omitempty"`
	StartedAt       time.Time `json:"started_at"`
}

// DailyHealthSnapshot holds one fetch cycle's reduced values. It is filled
// by the aggregator and read-only afterwards.
type DailyHealthSnapshot struct {
	GeneratedAt time.Time                    `json:"generated_at"`
	WindowDays  int                          `json:"window_days"`
	Metrics     map[MetricType]MetricSummary `json:"metrics"`
	Workouts    []WorkoutSummary             `json:"workouts"`
}

// NewDailyHealthSnapshot returns an empty snapshot.
func NewDailyHealthSnapshot(now time.Time, windowDays int) *DailyHealthSnapshot {
	return &DailyHealthSnapshot{
		GeneratedAt: now,
		WindowDays:  windowDays,
		Metrics:     make(map[MetricType]MetricSummary),
	}
}

// Today is today's reduced value, 0 when absent.
func (s *DailyHealthSnapshot) Today(t MetricType) float64 {
	if s == nil {
		return 0
	}
	return s.Metrics[t].Today
}

// Average is the rolling baseline, 0 when absent.
func (s *DailyHealthSnapshot) Average(t MetricType) float64 {
	if s == nil {
		return 0
	}
	return s.Metrics[t].Average
}

// History is the daily series, nil when absent.
func (s *DailyHealthSnapshot) History(t MetricType) []DailyValue {
	if s == nil {
		return nil
	}
	return s.Metrics[t].History
}
