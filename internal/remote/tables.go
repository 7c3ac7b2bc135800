package remote

import (
	"strings"

	"wisefido-health-sync/internal/models"
	"wisefido-health-sync/internal/units"
)

// Row is one record as sent to the remote store, keyed by column name.
type Row map[string]any

// TableSpec describes a remote table and its upsert conflict key.
type TableSpec struct {
	Name     string
	Columns  []string
	Conflict []string
}

// ConflictKey renders the conflict columns of row.
func (t TableSpec) ConflictKey(row Row) string {
	parts := make([]string, len(t.Conflict))
	for i, c := range t.Conflict {
		parts[i] = toString(row[c])
	}
	return strings.Join(parts, "|")
}

var (
	VitalsTable = TableSpec{
		Name:     "apple_health_vitals",
		Columns:  []string{"user_id", "metric_type", "value", "unit", "recorded_at", "source"},
		Conflict: []string{"user_id", "metric_type", "recorded_at"},
	}
	WorkoutsTable = TableSpec{
		Name: "apple_health_workouts",
		Columns: []string{"user_id", "workout_type", "duration_minutes", "calories_burned",
			"distance_meters", "avg_heart_rate", "max_heart_rate", "started_at", "ended_at", "source"},
		Conflict: []string{"user_id", "workout_type", "started_at"},
	}
	SleepTable = TableSpec{
		Name:     "apple_health_sleep",
		Columns:  []string{"user_id", "sleep_stage", "started_at", "ended_at", "source"},
		Conflict: []string{"user_id", "sleep_stage", "started_at"},
	}
)

// Dedup keys; the owner is constant within one upload.
func vitalKey(s models.MetricSample) string {
	return string(s.MetricType) + "|" + units.ISO8601(s.RecordedAt)
}

func workoutKey(w models.WorkoutRecord) string {
	return w.WorkoutType + "|" + units.ISO8601(w.StartedAt)
}

func sleepKey(s models.SleepStageRecord) string {
	return s.Stage + "|" + units.ISO8601(s.StartedAt)
}

func vitalRow(owner string, s models.MetricSample) Row {
	return Row{
		"user_id":     owner,
		"metric_type": string(s.MetricType),
		"value":       s.Value,
		"unit":        s.Unit,
		"recorded_at": units.ISO8601(s.RecordedAt),
		"source":      sourceOr(s.Source),
	}
}

func workoutRow(owner string, w models.WorkoutRecord) Row {
	row := Row{
		"user_id":          owner,
		"workout_type":     w.WorkoutType,
		"duration_minutes": w.DurationMinutes,
		"started_at":       units.ISO8601(w.StartedAt),
		"ended_at":         units.ISO8601(w.EndedAt),
		"source":           sourceOr(w.Source),
	}
	// optional metrics are omitted, not nulled
	if w.CaloriesBurned != nil {
		row["calories_burned"] = *w.CaloriesBurned
	}
	if w.DistanceMeters != nil {
		row["distance_meters"] = *w.DistanceMeters
	}
	if w.AvgHeartRate != nil {
		row["avg_heart_rate"] = *w.AvgHeartRate
	}
	if w.MaxHeartRate != nil {
		row["max_heart_rate"] = *w.MaxHeartRate
	}
	return row
}

func sleepRow(owner string, s models.SleepStageRecord) Row {
	return Row{
		"user_id":     owner,
		"sleep_stage": s.Stage,
		"started_at":  units.ISO8601(s.StartedAt),
		"ended_at":    units.ISO8601(s.EndedAt),
		"source":      sourceOr(s.Source),
	}
}

func sourceOr(s string) string {
	if s == "" {
		return models.SourceAppleHealth
	}
	return s
}
