package remote

import (
	"context"
	"time"

	"wisefido-health-sync/internal/metrics"
	"wisefido-health-sync/internal/models"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// TableResult is the outcome for one table.
type TableResult struct {
	Table     string `json:"table"`
	Total     int    `json:"total"`     // rows after dedup
	Committed int    `json:"committed"` // rows in successfully upserted chunks
	Chunks    int    `json:"chunks"`
}

// UploadResult is the outcome of one Upload call.
type UploadResult struct {
	Tables   []TableResult `json:"tables"`
	Duration time.Duration `json:"duration"`
}

// Committed sums committed rows across tables.
func (r UploadResult) Committed() int {
	n := 0
	for _, t := range r.Tables {
		n += t.Committed
	}
	return n
}

// Total sums deduplicated rows across tables.
func (r UploadResult) Total() int {
	n := 0
	for _, t := range r.Tables {
		n += t.Total
	}
	return n
}

// Client dedups, chunks and upserts payloads for one owner.
type Client struct {
	store     Store
	ownerID   string
	batchSize int
	logger    *zap.Logger
}

func NewClient(store Store, ownerID string, batchSize int, logger *zap.Logger) *Client {
	if batchSize <= 0 {
		batchSize = 500
	}
	return &Client{store: store, ownerID: ownerID, batchSize: batchSize, logger: logger}
}

// Upload writes the three tables. Tables proceed independently; inside a
// table chunks go strictly in order and the first failing chunk stops that
// table. The error combines one *UploadError per failed table.
func (c *Client) Upload(ctx context.Context, p models.SyncPayload) (UploadResult, error) {
	start := time.Now()

	vitals := Dedup(p.Vitals, vitalKey)
	workouts := Dedup(p.Workouts, workoutKey)
	sleep := Dedup(p.Sleep, sleepKey)

	jobs := []struct {
		spec TableSpec
		rows []Row
	}{
		{VitalsTable, mapRows(vitals, func(s models.MetricSample) Row { return vitalRow(c.ownerID, s) })},
		{WorkoutsTable, mapRows(workouts, func(w models.WorkoutRecord) Row { return workoutRow(c.ownerID, w) })},
		{SleepTable, mapRows(sleep, func(s models.SleepStageRecord) Row { return sleepRow(c.ownerID, s) })},
	}

	results := make([]TableResult, len(jobs))
	errs := make([]error, len(jobs))

	var g errgroup.Group
	for i, job := range jobs {
		i, job := i, job
		g.Go(func() error {
			results[i], errs[i] = c.uploadTable(ctx, job.spec, job.rows)
			return nil
		})
	}
	_ = g.Wait()

	res := UploadResult{Tables: results, Duration: time.Since(start)}
	err := multierr.Combine(errs...)

	c.logger.Info("Upload finished",
		zap.Int("total", res.Total()),
		zap.Int("committed", res.Committed()),
		zap.Duration("duration", res.Duration),
		zap.Error(err),
	)
	return res, err
}

// UploadReadings uploads imported blood pressure readings as vitals.
func (c *Client) UploadReadings(ctx context.Context, readings []models.BPReading) (UploadResult, error) {
	return c.Upload(ctx, models.SyncPayload{Vitals: models.ReadingsToSamples(readings)})
}

func (c *Client) uploadTable(ctx context.Context, spec TableSpec, rows []Row) (TableResult, error) {
	res := TableResult{Table: spec.Name, Total: len(rows)}

	for i, chunk := range Chunk(rows, c.batchSize) {
		if err := c.store.Upsert(ctx, spec, chunk); err != nil {
			c.logger.Error("Chunk upload failed, skipping rest of table",
				zap.String("table", spec.Name),
				zap.Int("chunk", i),
				zap.Int("committed", res.Committed),
				zap.Int("total", res.Total),
				zap.Error(err),
			)
			return res, &UploadError{Table: spec.Name, Committed: res.Committed, Total: res.Total, Err: err}
		}
		res.Committed += len(chunk)
		res.Chunks++
		metrics.UploadedRows.WithLabelValues(spec.Name).Add(float64(len(chunk)))
	}
	return res, nil
}

func mapRows[T any](items []T, fn func(T) Row) []Row {
	out := make([]Row, len(items))
	for i, it := range items {
		out[i] = fn(it)
	}
	return out
}
