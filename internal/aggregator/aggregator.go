package aggregator

import (
	"context"
	"time"

	"wisefido-health-sync/internal/models"
	"wisefido-health-sync/internal/provider"
	"wisefido-health-sync/internal/units"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Options tunes an Aggregator. Zero values pick the defaults.
type Options struct {
	BaselineDays int           // rolling window, default 7
	QueryTimeout time.Duration // per provider query, default 30s
	WorkoutLimit int           // today's workouts, default 10
	Location     *time.Location
	Now          func() time.Time
}

// Aggregator reduces provider data into a DailyHealthSnapshot.
type Aggregator struct {
	provider provider.Provider
	logger   *zap.Logger
	opts     Options
}

func New(p provider.Provider, logger *zap.Logger, opts Options) *Aggregator {
	if opts.BaselineDays <= 0 {
		opts.BaselineDays = 7
	}
	if opts.QueryTimeout <= 0 {
		opts.QueryTimeout = 30 * time.Second
	}
	if opts.WorkoutLimit <= 0 {
		opts.WorkoutLimit = 10
	}
	if opts.Location == nil {
		opts.Location = units.LocalLocation()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Aggregator{provider: p, logger: logger, opts: opts}
}

// Fetch builds a fresh snapshot for defs. It always completes: failed,
// denied, or empty queries leave 0 (or an all-zero history) for that metric.
func (a *Aggregator) Fetch(ctx context.Context, defs []models.MetricDef) *models.DailyHealthSnapshot {
	now := a.opts.Now().In(a.opts.Location)
	sod := units.StartOfDay(now)
	baselineStart := units.AddDays(sod, -a.opts.BaselineDays)

	snap := models.NewDailyHealthSnapshot(now, a.opts.BaselineDays)
	for _, d := range defs {
		snap.Metrics[d.Type] = models.MetricSummary{}
	}

	// 1. today
	today := make([]float64, len(defs))
	a.fanOut(ctx, len(defs), func(qctx context.Context, i int) {
		today[i] = a.today(qctx, defs[i], sod, now)
	})
	for i, d := range defs {
		s := snap.Metrics[d.Type]
		s.Today = today[i]
		snap.Metrics[d.Type] = s
	}

	// 2. baseline over complete prior days
	averages := make([]float64, len(defs))
	a.fanOut(ctx, len(defs), func(qctx context.Context, i int) {
		averages[i] = a.baseline(qctx, defs[i], baselineStart, sod)
	})
	for i, d := range defs {
		s := snap.Metrics[d.Type]
		s.Average = averages[i]
		snap.Metrics[d.Type] = s
	}

	// 3. daily history, prior days plus today
	histories := make([][]models.DailyValue, len(defs))
	a.fanOut(ctx, len(defs), func(qctx context.Context, i int) {
		histories[i] = a.history(qctx, defs[i], baselineStart, now)
	})
	for i, d := range defs {
		s := snap.Metrics[d.Type]
		s.History = histories[i]
		snap.Metrics[d.Type] = s
	}

	// 4. today's workouts
	snap.Workouts = a.todayWorkouts(ctx, sod, now)

	return snap
}

// fanOut runs fn for 0..n-1 in parallel, each under its own timeout, and
// returns when all have finished. fn writes only its own slot.
func (a *Aggregator) fanOut(ctx context.Context, n int, fn func(ctx context.Context, i int)) {
	var g errgroup.Group
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			qctx, cancel := context.WithTimeout(ctx, a.opts.QueryTimeout)
			defer cancel()
			fn(qctx, i)
			return nil
		})
	}
	_ = g.Wait()
}

func (a *Aggregator) today(ctx context.Context, d models.MetricDef, sod, now time.Time) float64 {
	start := sod
	if d.Kind == models.Latest {
		// most recent sample ever, not just today
		start = time.Time{}
	}

	v, err := a.provider.Statistic(ctx, d, start, now)
	if err != nil {
		a.absorb(d, "today", err)
		return 0
	}
	return v
}

// baseline averages the daily values over [start, end), counting only days
// with a value above zero.
func (a *Aggregator) baseline(ctx context.Context, d models.MetricDef, start, end time.Time) float64 {
	buckets, err := a.provider.DailyStatistics(ctx, d, start, end, a.opts.Location)
	if err != nil {
		a.absorb(d, "baseline", err)
		return 0
	}

	values := make([]float64, 0, len(buckets))
	for _, b := range buckets {
		values = append(values, b.Value)
	}
	return AverageNonZero(values)
}

func (a *Aggregator) history(ctx context.Context, d models.MetricDef, start, end time.Time) []models.DailyValue {
	days := units.DayStarts(start, end)
	out := make([]models.DailyValue, len(days))
	for i, day := range days {
		out[i] = models.DailyValue{Day: day}
	}

	buckets, err := a.provider.DailyStatistics(ctx, d, start, end, a.opts.Location)
	if err != nil {
		a.absorb(d, "history", err)
		return out
	}

	byDay := make(map[string]float64, len(buckets))
	for _, b := range buckets {
		byDay[units.DayKey(b.Day)] = b.Value
	}
	for i := range out {
		out[i].Value = byDay[units.DayKey(out[i].Day)]
	}
	return out
}

func (a *Aggregator) todayWorkouts(ctx context.Context, sod, now time.Time) []models.WorkoutSummary {
	qctx, cancel := context.WithTimeout(ctx, a.opts.QueryTimeout)
	defer cancel()

	workouts, err := a.provider.Workouts(qctx, sod, now, a.opts.WorkoutLimit)
	if err != nil {
		a.logger.Debug("Workout query absorbed", zap.Error(err))
		return nil
	}

	out := make([]models.WorkoutSummary, 0, len(workouts))
	for _, w := range workouts {
		out = append(out, models.WorkoutSummary{
			WorkoutType:     provider.WorkoutCategory(w.ActivityType),
			DurationMinutes: w.DurationSeconds / 60,
			CaloriesBurned:  w.EnergyKcal,
			StartedAt:       w.Start,
		})
	}
	return out
}

func (a *Aggregator) absorb(d models.MetricDef, phase string, err error) {
	a.logger.Debug("Metric query absorbed",
		zap.String("metric", string(d.Type)),
		zap.String("phase", phase),
		zap.Error(err),
	)
}

// AverageNonZero is the mean of the values above zero, or 0 if there are none.
func AverageNonZero(values []float64) float64 {
	var (
		sum float64
		n   int
	)
	for _, v := range values {
		if v > 0 {
			sum += v
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}
