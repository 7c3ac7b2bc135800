package provider

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"wisefido-health-sync/internal/models"
	"wisefido-health-sync/internal/units"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

// insufficient_privilege
const pqInsufficientPrivilege = "42501"

// PostgresProvider reads the health store mirror:
//
//	health_samples(type_id, value, unit, start_at, end_at)
//	health_workouts(activity_type, started_at, ended_at, duration_seconds,
//	                energy_kcal, distance_m, avg_hr, max_hr)
//	health_sleep_samples(stage_value, started_at, ended_at)
type PostgresProvider struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewPostgresProvider(db *sql.DB, logger *zap.Logger) *PostgresProvider {
	return &PostgresProvider{db: db, logger: logger}
}

// RequestAuthorization checks SELECT privilege on every health table.
func (p *PostgresProvider) RequestAuthorization(ctx context.Context) error {
	const q = `
		SELECT has_table_privilege(current_user, 'health_samples', 'SELECT')
		   AND has_table_privilege(current_user, 'health_workouts', 'SELECT')
		   AND has_table_privilege(current_user, 'health_sleep_samples', 'SELECT')`

	var granted bool
	if err := p.db.QueryRowContext(ctx, q).Scan(&granted); err != nil {
		return mapError(fmt.Errorf("failed to check health data privileges: %w", err))
	}
	if !granted {
		return ErrPermissionDenied
	}
	return nil
}

// Statistic reduces per stored unit in SQL and combines the groups in the
// canonical unit.
func (p *PostgresProvider) Statistic(ctx context.Context, def models.MetricDef, start, end time.Time) (float64, error) {
	if def.Kind == models.Latest {
		return p.latest(ctx, def, start, end)
	}

	const q = `SELECT unit, SUM(value), COUNT(*) FROM health_samples
		WHERE type_id = $1 AND start_at >= $2 AND start_at < $3
		GROUP BY unit`

	rows, err := p.db.QueryContext(ctx, q, def.NativeID, start, end)
	if err != nil {
		return 0, mapError(fmt.Errorf("statistic %s: %w", def.NativeID, err))
	}
	defer rows.Close()

	var groups []unitGroup
	for rows.Next() {
		var g unitGroup
		if err := rows.Scan(&g.Unit, &g.Sum, &g.Count); err != nil {
			return 0, fmt.Errorf("scan statistic: %w", err)
		}
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		return 0, mapError(err)
	}

	v, ok := combine(def, groups)
	if !ok {
		return 0, ErrNoData
	}
	return v, nil
}

func (p *PostgresProvider) latest(ctx context.Context, def models.MetricDef, start, end time.Time) (float64, error) {
	q := `SELECT value, unit FROM health_samples
		WHERE type_id = $1 AND start_at < $2
		ORDER BY start_at DESC LIMIT 1`
	args := []any{def.NativeID, end}
	if !start.IsZero() {
		q = `SELECT value, unit FROM health_samples
			WHERE type_id = $1 AND start_at >= $2 AND start_at < $3
			ORDER BY start_at DESC LIMIT 1`
		args = []any{def.NativeID, start, end}
	}

	var g unitGroup
	if err := p.db.QueryRowContext(ctx, q, args...).Scan(&g.Last, &g.Unit); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrNoData
		}
		return 0, mapError(fmt.Errorf("statistic %s: %w", def.NativeID, err))
	}
	g.Sum, g.Count = g.Last, 1

	v, ok := combine(def, []unitGroup{g})
	if !ok {
		return 0, fmt.Errorf("statistic %s: %w: %s", def.NativeID, units.ErrUnsupportedConversion, g.Unit)
	}
	return v, nil
}

func (p *PostgresProvider) DailyStatistics(ctx context.Context, def models.MetricDef, start, end time.Time, loc *time.Location) ([]Bucket, error) {
	if loc == nil {
		loc = time.Local
	}

	const q = `SELECT date_trunc('day', start_at AT TIME ZONE $4) AS day, unit,
			SUM(value), COUNT(*),
			(ARRAY_AGG(value ORDER BY start_at DESC))[1], MAX(start_at)
		FROM health_samples
		WHERE type_id = $1 AND start_at >= $2 AND start_at < $3
		GROUP BY day, unit
		ORDER BY day`

	rows, err := p.db.QueryContext(ctx, q, def.NativeID, start, end, units.ZoneName(loc))
	if err != nil {
		return nil, mapError(fmt.Errorf("daily statistics %s: %w", def.NativeID, err))
	}
	defer rows.Close()

	var (
		days   []time.Time
		groups = make(map[time.Time][]unitGroup)
	)
	for rows.Next() {
		var (
			day time.Time
			g   unitGroup
		)
		if err := rows.Scan(&day, &g.Unit, &g.Sum, &g.Count, &g.Last, &g.LastAt); err != nil {
			return nil, fmt.Errorf("scan daily bucket: %w", err)
		}
		// day is a wall-clock date in loc
		key := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, loc)
		if _, seen := groups[key]; !seen {
			days = append(days, key)
		}
		groups[key] = append(groups[key], g)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}

	out := make([]Bucket, 0, len(days))
	for _, day := range days {
		if v, ok := combine(def, groups[day]); ok {
			out = append(out, Bucket{Day: day, Value: v})
		}
	}
	return out, nil
}

func (p *PostgresProvider) Samples(ctx context.Context, sq SampleQuery) ([]Sample, error) {
	order := "ASC"
	if sq.NewestFirst {
		order = "DESC"
	}
	q := `SELECT value, unit, start_at, end_at FROM health_samples
		WHERE type_id = $1 AND start_at >= $2 AND start_at < $3
		ORDER BY start_at ` + order
	args := []any{sq.NativeID, sq.Start, sq.End}
	if sq.Limit > 0 {
		q += ` LIMIT $4`
		args = append(args, sq.Limit)
	}

	rows, err := p.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, mapError(fmt.Errorf("samples %s: %w", sq.NativeID, err))
	}
	defer rows.Close()

	var out []Sample
	for rows.Next() {
		var s Sample
		if err := rows.Scan(&s.Value, &s.Unit, &s.Start, &s.End); err != nil {
			return nil, fmt.Errorf("scan sample: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	p.logger.Debug("Fetched health samples",
		zap.String("type_id", sq.NativeID),
		zap.Int("count", len(out)),
	)
	return out, nil
}

func (p *PostgresProvider) Workouts(ctx context.Context, start, end time.Time, limit int) ([]Workout, error) {
	q := `SELECT activity_type, started_at, ended_at, duration_seconds,
			energy_kcal, distance_m, avg_hr, max_hr
		FROM health_workouts
		WHERE started_at >= $1 AND started_at < $2
		ORDER BY started_at DESC`
	args := []any{start, end}
	if limit > 0 {
		q += ` LIMIT $3`
		args = append(args, limit)
	}

	rows, err := p.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, mapError(fmt.Errorf("workouts: %w", err))
	}
	defer rows.Close()

	var out []Workout
	for rows.Next() {
		var (
			w                          Workout
			energy, dist, avgHR, maxHR sql.NullFloat64
		)
		if err := rows.Scan(&w.ActivityType, &w.Start, &w.End, &w.DurationSeconds,
			&energy, &dist, &avgHR, &maxHR); err != nil {
			return nil, fmt.Errorf("scan workout: %w", err)
		}
		w.EnergyKcal = nullFloat(energy)
		w.DistanceMeters = nullFloat(dist)
		w.AvgHeartRate = nullFloat(avgHR)
		w.MaxHeartRate = nullFloat(maxHR)
		out = append(out, w)
	}
	return out, rows.Err()
}

func (p *PostgresProvider) SleepSamples(ctx context.Context, start, end time.Time) ([]SleepSample, error) {
	const q = `SELECT stage_value, started_at, ended_at FROM health_sleep_samples
		WHERE started_at >= $1 AND started_at < $2
		ORDER BY started_at DESC`

	rows, err := p.db.QueryContext(ctx, q, start, end)
	if err != nil {
		return nil, mapError(fmt.Errorf("sleep samples: %w", err))
	}
	defer rows.Close()

	var out []SleepSample
	for rows.Next() {
		var s SleepSample
		if err := rows.Scan(&s.Value, &s.Start, &s.End); err != nil {
			return nil, fmt.Errorf("scan sleep sample: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func nullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

// mapError turns a privilege failure into ErrPermissionDenied, keeping the cause.
func mapError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == pqInsufficientPrivilege {
		return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
	}
	return err
}
