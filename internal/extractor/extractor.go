package extractor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"wisefido-health-sync/internal/models"
	"wisefido-health-sync/internal/provider"
	"wisefido-health-sync/internal/units"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Options tunes an Extractor. Zero values pick the defaults.
type Options struct {
	Catalog             []models.MetricDef // default models.SyncCatalog
	SampleLimit         int                // per metric, default 5000
	WorkoutLookbackDays int                // default 730
	Parallelism         int                // concurrent metric queries, default 4
	QueryTimeout        time.Duration      // per query, default 30s
	Now                 func() time.Time
}

// Extraction is the payload of one window. Failed names the queries that
// errored (metric types, "workouts", "sleep") and Err combines their errors.
// An empty window is not a failure.
type Extraction struct {
	Payload models.SyncPayload
	Failed  []string
	Err     error
}

// Complete reports whether every query succeeded.
func (x Extraction) Complete() bool {
	return x.Err == nil
}

// Extractor pulls the full sync window from the provider.
type Extractor struct {
	provider provider.Provider
	logger   *zap.Logger
	opts     Options
}

func New(p provider.Provider, logger *zap.Logger, opts Options) *Extractor {
	if len(opts.Catalog) == 0 {
		opts.Catalog = models.SyncCatalog
	}
	if opts.SampleLimit <= 0 {
		opts.SampleLimit = 5000
	}
	if opts.WorkoutLookbackDays <= 0 {
		opts.WorkoutLookbackDays = 730
	}
	if opts.Parallelism <= 0 {
		opts.Parallelism = 4
	}
	if opts.QueryTimeout <= 0 {
		opts.QueryTimeout = 30 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Extractor{provider: p, logger: logger, opts: opts}
}

// Extract reads [since, now). Per-query failures are logged, yield fewer
// records and are reported in the Extraction; Extract itself never fails.
func (e *Extractor) Extract(ctx context.Context, since time.Time) Extraction {
	return e.ExtractUntil(ctx, since, e.opts.Now())
}

// ExtractUntil reads [since, until).
func (e *Extractor) ExtractUntil(ctx context.Context, since, until time.Time) Extraction {
	var (
		x  Extraction
		mu sync.Mutex
	)
	failed := func(name string, err error) {
		mu.Lock()
		defer mu.Unlock()
		x.Failed = append(x.Failed, name)
		x.Err = multierr.Append(x.Err, fmt.Errorf("%s: %w", name, err))
	}

	// 1. metric samples, catalog order preserved
	perMetric := make([][]models.MetricSample, len(e.opts.Catalog))
	g := new(errgroup.Group)
	g.SetLimit(e.opts.Parallelism)
	for i, d := range e.opts.Catalog {
		i, d := i, d
		g.Go(func() error {
			samples, err := e.metricSamples(ctx, d, since, until)
			if err != nil {
				failed(string(d.Type), err)
			}
			perMetric[i] = samples
			return nil
		})
	}
	_ = g.Wait()

	for _, s := range perMetric {
		x.Payload.Vitals = append(x.Payload.Vitals, s...)
	}

	// 2. workouts over the bounded lookback
	workoutStart := until.AddDate(0, 0, -e.opts.WorkoutLookbackDays)
	if since.After(workoutStart) {
		workoutStart = since
	}
	workouts, err := e.workouts(ctx, workoutStart, until)
	if err != nil {
		failed("workouts", err)
	}
	x.Payload.Workouts = workouts

	// 3. sleep stages
	sleep, err := e.sleep(ctx, since, until)
	if err != nil {
		failed("sleep", err)
	}
	x.Payload.Sleep = sleep

	e.logger.Info("Extraction finished",
		zap.Time("since", since),
		zap.Time("until", until),
		zap.Int("vitals", len(x.Payload.Vitals)),
		zap.Int("workouts", len(x.Payload.Workouts)),
		zap.Int("sleep", len(x.Payload.Sleep)),
		zap.Strings("failed", x.Failed),
	)
	return x
}

func (e *Extractor) metricSamples(ctx context.Context, d models.MetricDef, since, until time.Time) ([]models.MetricSample, error) {
	qctx, cancel := context.WithTimeout(ctx, e.opts.QueryTimeout)
	defer cancel()

	raw, err := e.provider.Samples(qctx, provider.SampleQuery{
		NativeID:    d.NativeID,
		Start:       since,
		End:         until,
		Limit:       e.opts.SampleLimit,
		NewestFirst: true,
	})
	if err != nil {
		if errors.Is(err, provider.ErrNoData) {
			return nil, nil
		}
		e.logger.Warn("Sample query failed",
			zap.String("metric", string(d.Type)),
			zap.Error(err),
		)
		return nil, err
	}

	out := make([]models.MetricSample, 0, len(raw))
	dropped := 0
	for _, s := range raw {
		v, err := units.ToCanonical(d, s.Value, s.Unit)
		if err != nil {
			dropped++
			continue
		}
		out = append(out, models.MetricSample{
			MetricType: d.Type,
			Value:      v,
			Unit:       d.Unit,
			RecordedAt: s.Start,
			Source:     models.SourceAppleHealth,
		})
	}
	if dropped > 0 {
		e.logger.Warn("Dropped samples with unconvertible units",
			zap.String("metric", string(d.Type)),
			zap.Int("dropped", dropped),
		)
	}
	return out, nil
}

func (e *Extractor) workouts(ctx context.Context, start, end time.Time) ([]models.WorkoutRecord, error) {
	qctx, cancel := context.WithTimeout(ctx, e.opts.QueryTimeout)
	defer cancel()

	raw, err := e.provider.Workouts(qctx, start, end, 0)
	if err != nil && !errors.Is(err, provider.ErrNoData) {
		e.logger.Warn("Workout query failed", zap.Error(err))
		return nil, err
	}

	out := make([]models.WorkoutRecord, 0, len(raw))
	for _, w := range raw {
		duration := w.DurationSeconds
		if duration <= 0 {
			duration = w.End.Sub(w.Start).Seconds()
		}
		out = append(out, models.WorkoutRecord{
			WorkoutType:     provider.WorkoutCategory(w.ActivityType),
			DurationMinutes: duration / 60,
			CaloriesBurned:  w.EnergyKcal,
			DistanceMeters:  w.DistanceMeters,
			AvgHeartRate:    w.AvgHeartRate,
			MaxHeartRate:    w.MaxHeartRate,
			StartedAt:       w.Start,
			EndedAt:         w.End,
			Source:          models.SourceAppleHealth,
		})
	}
	return out, nil
}

func (e *Extractor) sleep(ctx context.Context, start, end time.Time) ([]models.SleepStageRecord, error) {
	qctx, cancel := context.WithTimeout(ctx, e.opts.QueryTimeout)
	defer cancel()

	raw, err := e.provider.SleepSamples(qctx, start, end)
	if err != nil && !errors.Is(err, provider.ErrNoData) {
		e.logger.Warn("Sleep query failed", zap.Error(err))
		return nil, err
	}

	out := make([]models.SleepStageRecord, 0, len(raw))
	for _, s := range raw {
		out = append(out, models.SleepStageRecord{
			Stage:     provider.SleepStage(s.Value),
			StartedAt: s.Start,
			EndedAt:   s.End,
			Source:    models.SourceAppleHealth,
		})
	}
	return out, nil
}
