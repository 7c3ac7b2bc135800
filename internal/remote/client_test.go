package remote

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"wisefido-health-sync/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func samplePayload(n int) models.SyncPayload {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var p models.SyncPayload
	for i := 0; i < n; i++ {
		p.Vitals = append(p.Vitals, models.MetricSample{
			MetricType: models.MetricHeartRate,
			Value:      60 + float64(i%20),
			Unit:       models.UnitCountPerMinute,
			RecordedAt: t0.Add(time.Duration(i) * time.Minute),
			Source:     models.SourceAppleHealth,
		})
	}
	kcal := 300.0
	p.Workouts = []models.WorkoutRecord{{
		WorkoutType: models.WorkoutRunning, DurationMinutes: 30, CaloriesBurned: &kcal,
		StartedAt: t0, EndedAt: t0.Add(30 * time.Minute),
	}}
	p.Sleep = []models.SleepStageRecord{
		{Stage: models.SleepDeep, StartedAt: t0, EndedAt: t0.Add(time.Hour)},
		{Stage: models.SleepREM, StartedAt: t0.Add(time.Hour), EndedAt: t0.Add(2 * time.Hour)},
	}
	return p
}

func TestUpload_IsIdempotent(t *testing.T) {
	store := NewMemoryStore()
	c := NewClient(store, "owner-1", 500, zap.NewNop())
	p := samplePayload(1200)

	res, err := c.Upload(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, 1203, res.Committed())
	assert.Equal(t, 1200, store.Count(VitalsTable.Name))

	_, err = c.Upload(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, 1200, store.Count(VitalsTable.Name))
	assert.Equal(t, 1, store.Count(WorkoutsTable.Name))
	assert.Equal(t, 2, store.Count(SleepTable.Name))
}

func TestUpload_DedupLastWinsReachesStore(t *testing.T) {
	store := NewMemoryStore()
	c := NewClient(store, "owner-1", 500, zap.NewNop())
	t0 := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)

	_, err := c.Upload(context.Background(), models.SyncPayload{Vitals: []models.MetricSample{
		{MetricType: models.MetricHeartRate, RecordedAt: t0, Value: 70},
		{MetricType: models.MetricHeartRate, RecordedAt: t0, Value: 72},
	}})
	require.NoError(t, err)

	rows := store.Rows(VitalsTable.Name)
	require.Len(t, rows, 1)
	assert.Equal(t, 72.0, rows[0]["value"])
	assert.Equal(t, "owner-1", rows[0]["user_id"])
	assert.Equal(t, "2024-01-01T08:00:00Z", rows[0]["recorded_at"])
}

func TestUpload_ChunkFailureStopsOnlyThatTable(t *testing.T) {
	store := NewMemoryStore()
	vitalsCalls := 0
	store.FailOn = func(spec TableSpec, _ int) error {
		if spec.Name != VitalsTable.Name {
			return nil
		}
		vitalsCalls++
		if vitalsCalls == 2 {
			return fmt.Errorf("%w: status 503", ErrNetwork)
		}
		return nil
	}
	c := NewClient(store, "owner-1", 500, zap.NewNop())

	res, err := c.Upload(context.Background(), samplePayload(1200))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNetwork)

	var upErr *UploadError
	require.True(t, errors.As(err, &upErr))
	assert.Equal(t, VitalsTable.Name, upErr.Table)
	assert.Equal(t, 500, upErr.Committed)
	assert.Equal(t, 1200, upErr.Total)
	assert.True(t, upErr.Partial())

	// third vitals chunk never attempted, other tables unaffected
	assert.Equal(t, 2, vitalsCalls)
	assert.Equal(t, 500, store.Count(VitalsTable.Name))
	assert.Equal(t, 1, store.Count(WorkoutsTable.Name))
	assert.Equal(t, 2, store.Count(SleepTable.Name))
	assert.Equal(t, 503, res.Committed())
}

func TestUpload_ErrorsFromSeveralTablesAreCombined(t *testing.T) {
	store := NewMemoryStore()
	store.FailOn = func(spec TableSpec, _ int) error {
		if spec.Name == SleepTable.Name || spec.Name == WorkoutsTable.Name {
			return ErrRejected
		}
		return nil
	}
	c := NewClient(store, "owner-1", 500, zap.NewNop())

	_, err := c.Upload(context.Background(), samplePayload(10))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRejected)
	assert.Contains(t, err.Error(), SleepTable.Name)
	assert.Contains(t, err.Error(), WorkoutsTable.Name)
	assert.Equal(t, 10, store.Count(VitalsTable.Name))
}

func TestUpload_EmptyPayloadMakesNoCalls(t *testing.T) {
	store := NewMemoryStore()
	c := NewClient(store, "owner-1", 500, zap.NewNop())

	res, err := c.Upload(context.Background(), models.SyncPayload{})
	require.NoError(t, err)
	assert.Zero(t, res.Total())
	assert.Zero(t, store.Calls())
}

func TestUploadReadings(t *testing.T) {
	store := NewMemoryStore()
	c := NewClient(store, "owner-1", 500, zap.NewNop())
	pulse := 65
	at := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)

	res, err := c.UploadReadings(context.Background(), []models.BPReading{
		{Systolic: 120, Diastolic: 80, Pulse: &pulse, MeasuredAt: at},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Committed())

	for _, r := range store.Rows(VitalsTable.Name) {
		assert.Equal(t, models.SourceOmronCSV, r["source"])
	}
}

func TestWorkoutRow_OmitsAbsentMetrics(t *testing.T) {
	row := workoutRow("o", models.WorkoutRecord{WorkoutType: "yoga"})
	_, has := row["calories_burned"]
	assert.False(t, has)
	assert.Equal(t, models.SourceAppleHealth, row["source"])
}
