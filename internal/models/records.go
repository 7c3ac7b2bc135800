package models

import "time"

// Row sources.
const (
	SourceAppleHealth = "apple_health"
	SourceOmronCSV    = "omron_csv"
)

// MetricSample is one normalized reading. Value is already in Unit, the
// canonical unit of MetricType.
type MetricSample struct {
	MetricType MetricType `json:"metric_type"`
	Value      float64    `json:"value"`
	Unit       string     `json:"unit"`
	RecordedAt time.Time  `json:"recorded_at"`
	Source     string     `json:"source"`
}

// WorkoutRecord is one workout session.
type WorkoutRecord struct {
	WorkoutType     string    `json:"workout_type"`
	DurationMinutes float64   `json:"duration_minutes"`
	CaloriesBurned  *float64  `json:"calories_burned,omitempty"`
	DistanceMeters  *float64  `json:"distance_meters,omitempty"`
	AvgHeartRate    *float64  `json:"avg_heart_rate,omitempty"`
	MaxHeartRate    *float64  `json:"max_heart_rate,omitempty"`
	StartedAt       time.Time `json:"started_at"`
	EndedAt         time.Time `json:"ended_at"`
	Source          string    `json:"source"`
}

// SleepStageRecord is one contiguous sleep stage interval.
type SleepStageRecord struct {
	Stage     string    `json:"sleep_stage"`
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at"`
	Source    string    `json:"source"`
}

// DurationMinutes is the stage length.
func (r SleepStageRecord) DurationMinutes() float64 {
	return r.EndedAt.Sub(r.StartedAt).Minutes()
}

// SyncPayload is everything one extraction produced.
type SyncPayload struct {
	Vitals   []MetricSample     `json:"vitals"`
	Workouts []WorkoutRecord    `json:"workouts"`
	Sleep    []SleepStageRecord `json:"sleep"`
}

// Empty reports whether nothing was extracted.
func (p SyncPayload) Empty() bool {
	return len(p.Vitals) == 0 && len(p.Workouts) == 0 && len(p.Sleep) == 0
}

// Sleep stage categories.
const (
	SleepInBed   = "in_bed"
	SleepAsleep  = "asleep"
	SleepAwake   = "awake"
	SleepCore    = "core"
	SleepDeep    = "deep"
	SleepREM     = "rem"
	SleepUnknown = "unknown"
)

// Workout categories.
const (
	WorkoutRunning    = "running"
	WorkoutWalking    = "walking"
	WorkoutCycling    = "cycling"
	WorkoutSwimming   = "swimming"
	WorkoutYoga       = "yoga"
	WorkoutStrength   = "strength"
	WorkoutHIIT       = "hiit"
	WorkoutElliptical = "elliptical"
	WorkoutRowing     = "rowing"
	WorkoutHiking     = "hiking"
	WorkoutOther      = "workout"
)
