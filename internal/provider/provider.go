package provider

import (
	"context"
	"errors"
	"time"

	"wisefido-health-sync/internal/models"
)

var (
	// ErrPermissionDenied means read access to the health store was not granted.
	ErrPermissionDenied = errors.New("health data permission denied")
	// ErrNoData means the query matched no samples.
	ErrNoData = errors.New("no health data")
)

// Sample is one raw quantity sample in the provider's native unit.
type Sample struct {
	Value float64
	Unit  string
	Start time.Time
	End   time.Time
}

// Bucket is one calendar-day statistic.
type Bucket struct {
	Day   time.Time
	Value float64
}

// Workout is one raw workout session.
type Workout struct {
	ActivityType    int
	Start           time.Time
	End             time.Time
	DurationSeconds float64
	EnergyKcal      *float64
	DistanceMeters  *float64
	AvgHeartRate    *float64
	MaxHeartRate    *float64
}

// SleepSample is one raw sleep analysis interval. Value is the store's
// stage code.
type SleepSample struct {
	Value int
	Start time.Time
	End   time.Time
}

// SampleQuery selects raw samples of one type in [Start, End).
type SampleQuery struct {
	NativeID    string
	Start       time.Time
	End         time.Time
	Limit       int
	NewestFirst bool
}

// Provider is read access to the health data store. Statistic values are
// in the metric's canonical unit: samples stored in other units are converted
// before they are reduced.
type Provider interface {
	// RequestAuthorization returns ErrPermissionDenied when reads are not allowed.
	RequestAuthorization(ctx context.Context) error
	// Statistic reduces [start, end) with def.Kind. Latest ignores a zero start.
	// Returns ErrNoData for an empty window.
	Statistic(ctx context.Context, def models.MetricDef, start, end time.Time) (float64, error)
	// DailyStatistics buckets [start, end) by calendar day in loc. Days
	// without samples are omitted.
	DailyStatistics(ctx context.Context, def models.MetricDef, start, end time.Time, loc *time.Location) ([]Bucket, error)
	Samples(ctx context.Context, q SampleQuery) ([]Sample, error)
	Workouts(ctx context.Context, start, end time.Time, limit int) ([]Workout, error)
	SleepSamples(ctx context.Context, start, end time.Time) ([]SleepSample, error)
}
