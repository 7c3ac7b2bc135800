package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"wisefido-health-sync/internal/extractor"
	"wisefido-health-sync/internal/metrics"
	"wisefido-health-sync/internal/models"
	"wisefido-health-sync/internal/notify"
	"wisefido-health-sync/internal/provider"
	"wisefido-health-sync/internal/remote"
	"wisefido-health-sync/internal/rules"
	"wisefido-health-sync/internal/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrSyncInProgress is returned when Sync is called while a run is active.
var ErrSyncInProgress = errors.New("sync already in progress")

// State is a step of a sync run.
type State string

const (
	StateIdle             State = "idle"
	StateRequestingAccess State = "requesting_access"
	StateExtracting       State = "extracting"
	StateUploading        State = "uploading"
	StateReevaluating     State = "reevaluating"
	StateSchedulingNext   State = "scheduling_next"
	StateFailed           State = "failed"
)

// Authorizer asks the health store for read access.
type Authorizer interface {
	RequestAuthorization(ctx context.Context) error
}

// Extractor produces the payload for [since, until).
type Extractor interface {
	ExtractUntil(ctx context.Context, since, until time.Time) extractor.Extraction
}

// Uploader writes a payload to the remote store.
type Uploader interface {
	Upload(ctx context.Context, p models.SyncPayload) (remote.UploadResult, error)
}

// SnapshotFetcher builds the daily snapshot.
type SnapshotFetcher interface {
	Fetch(ctx context.Context, defs []models.MetricDef) *models.DailyHealthSnapshot
}

// Dispatcher turns insights into notifications.
type Dispatcher interface {
	Dispatch(ctx context.Context, insights []models.Insight) (notify.DispatchResult, error)
}

// AlertSource supplies remote critical alerts as insights.
type AlertSource interface {
	CriticalInsights(ctx context.Context) ([]models.Insight, error)
}

// Deps are the collaborators of an Orchestrator. Alerts and Events may be nil.
type Deps struct {
	Authorizer  Authorizer
	Extractor   Extractor
	Uploader    Uploader
	Aggregator  SnapshotFetcher
	Dispatcher  Dispatcher
	Checkpoints *store.CheckpointStore
	Alerts      AlertSource
	Events      EventPublisher
	Metrics     []models.MetricDef // default models.TrackedDefs()
}

// Options tunes an Orchestrator. Zero values pick the defaults.
type Options struct {
	FirstSyncDays int           // window of the first sync, default 730
	Interval      time.Duration // periodic sync interval, default 1h
	Now           func() time.Time
}

// RunReport summarizes one successful sync run.
type RunReport struct {
	RunID    string                `json:"run_id"`
	Since    time.Time             `json:"since"`
	Until    time.Time             `json:"until"`
	Vitals   int                   `json:"vitals"`
	Workouts int                   `json:"workouts"`
	Sleep    int                   `json:"sleep"`
	Upload   remote.UploadResult   `json:"upload"`
	Insights []models.Insight      `json:"insights"`
	Dispatch notify.DispatchResult `json:"dispatch"`
	NextRun  time.Time             `json:"next_run"`
	Duration time.Duration         `json:"duration"`
}

// Evaluation is the result of a fetch-only pass.
type Evaluation struct {
	Snapshot *models.DailyHealthSnapshot `json:"snapshot"`
	Insights []models.Insight            `json:"insights"`
}

// Status is the orchestrator's externally visible state.
type Status struct {
	State          State      `json:"state"`
	LastRunID      string     `json:"last_run_id,omitempty"`
	LastResult     string     `json:"last_result,omitempty"`
	LastStartedAt  *time.Time `json:"last_started_at,omitempty"`
	LastFinishedAt *time.Time `json:"last_finished_at,omitempty"`
	Checkpoint     *time.Time `json:"checkpoint,omitempty"`
	NextRunAt      *time.Time `json:"next_run_at,omitempty"`
	LastCommitted  int        `json:"last_committed"`
	LastTotal      int        `json:"last_total"`
	LastError      string     `json:"last_error,omitempty"`
	LastErrorKind  ErrorKind  `json:"last_error_kind,omitempty"`
	Transitions    []State    `json:"transitions,omitempty"`
}

// Orchestrator runs the sync state machine. At most one sync runs at a time;
// Evaluate and Check may run alongside it.
type Orchestrator struct {
	deps   Deps
	opts   Options
	logger *zap.Logger

	running sync.Mutex
	rearm   chan time.Time

	mu     sync.RWMutex
	status Status
}

func NewOrchestrator(deps Deps, logger *zap.Logger, opts Options) *Orchestrator {
	if len(deps.Metrics) == 0 {
		deps.Metrics = models.TrackedDefs()
	}
	if opts.FirstSyncDays <= 0 {
		opts.FirstSyncDays = 730
	}
	if opts.Interval <= 0 {
		opts.Interval = time.Hour
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Orchestrator{
		deps:   deps,
		opts:   opts,
		logger: logger,
		rearm:  make(chan time.Time, 1),
		status: Status{State: StateIdle},
	}
}

// Rearm delivers the next periodic run time after every successful sync.
func (o *Orchestrator) Rearm() <-chan time.Time {
	return o.rearm
}

// Status returns a copy of the current status.
func (o *Orchestrator) Status() Status {
	o.mu.RLock()
	defer o.mu.RUnlock()

	s := o.status
	s.Transitions = append([]State(nil), o.status.Transitions...)
	return s
}

// Sync runs one full cycle. The checkpoint moves to the end of the window
// only after every provider query and the upload succeeded. Records read
// before a provider failure are still uploaded.
func (o *Orchestrator) Sync(ctx context.Context) (*RunReport, error) {
	if !o.running.TryLock() {
		return nil, ErrSyncInProgress
	}
	defer o.running.Unlock()

	start := o.opts.Now()
	report := &RunReport{RunID: uuid.NewString(), Until: start}
	o.begin(report.RunID, start)

	o.transition(StateRequestingAccess)
	if err := o.deps.Authorizer.RequestAuthorization(ctx); err != nil {
		kind := KindNetwork
		if errors.Is(err, provider.ErrPermissionDenied) {
			kind = KindPermissionDenied
		}
		return nil, o.fail(ctx, report, start, &SyncError{Kind: kind, Step: StateRequestingAccess, Err: err})
	}

	o.transition(StateExtracting)
	since, err := o.windowStart(ctx, start)
	if err != nil {
		return nil, o.fail(ctx, report, start, &SyncError{Kind: KindInternal, Step: StateExtracting, Err: err})
	}
	report.Since = since

	extraction := o.deps.Extractor.ExtractUntil(ctx, since, report.Until)
	payload := extraction.Payload
	report.Vitals = len(payload.Vitals)
	report.Workouts = len(payload.Workouts)
	report.Sleep = len(payload.Sleep)
	o.logger.Info("Extracted sync window",
		zap.String("run_id", report.RunID),
		zap.Time("since", since),
		zap.Time("until", report.Until),
		zap.Int("vitals", report.Vitals),
		zap.Int("workouts", report.Workouts),
		zap.Int("sleep", report.Sleep),
	)

	o.transition(StateUploading)
	res, err := o.deps.Uploader.Upload(ctx, payload)
	report.Upload = res
	if err != nil {
		return nil, o.fail(ctx, report, start, uploadFailure(res, err))
	}
	if !extraction.Complete() {
		return nil, o.fail(ctx, report, start, extractionFailure(extraction, res))
	}
	if err := o.deps.Checkpoints.Save(ctx, report.Until); err != nil {
		return nil, o.fail(ctx, report, start, &SyncError{Kind: KindInternal, Step: StateUploading, Committed: res.Committed(), Total: res.Total(), Err: err})
	}
	o.setCheckpoint(report.Until)

	o.transition(StateReevaluating)
	report.Insights, report.Dispatch = o.check(ctx)

	o.transition(StateSchedulingNext)
	report.NextRun = o.opts.Now().Add(o.opts.Interval)
	o.armNext(report.NextRun)

	report.Duration = o.opts.Now().Sub(start)
	o.succeed(ctx, report)
	o.transition(StateIdle)
	return report, nil
}

// Evaluate fetches a fresh snapshot and derives insights without uploading
// or notifying.
func (o *Orchestrator) Evaluate(ctx context.Context) *Evaluation {
	snapshot := o.deps.Aggregator.Fetch(ctx, o.deps.Metrics)
	insights := rules.Evaluate(snapshot)

	if o.deps.Alerts != nil {
		remoteInsights, err := o.deps.Alerts.CriticalInsights(ctx)
		if err != nil {
			o.logger.Warn("Remote alerts unavailable", zap.Error(err))
		} else {
			insights = rules.Merge(insights, remoteInsights)
		}
	}

	recordInsights(insights)
	return &Evaluation{Snapshot: snapshot, Insights: insights}
}

// Check is the periodic health check: evaluate, then dispatch notifications.
func (o *Orchestrator) Check(ctx context.Context) ([]models.Insight, notify.DispatchResult) {
	return o.check(ctx)
}

func (o *Orchestrator) check(ctx context.Context) ([]models.Insight, notify.DispatchResult) {
	ev := o.Evaluate(ctx)

	res, err := o.deps.Dispatcher.Dispatch(ctx, ev.Insights)
	if err != nil {
		o.logger.Warn("Notification dispatch failed", zap.Error(err))
	}
	return ev.Insights, res
}

// windowStart is the stored checkpoint, or now minus FirstSyncDays.
func (o *Orchestrator) windowStart(ctx context.Context, now time.Time) (time.Time, error) {
	cp, ok, err := o.deps.Checkpoints.Load(ctx)
	if err != nil {
		return time.Time{}, err
	}
	if !ok {
		return now.AddDate(0, 0, -o.opts.FirstSyncDays), nil
	}
	o.setCheckpoint(cp)
	return cp, nil
}

func (o *Orchestrator) armNext(next time.Time) {
	o.mu.Lock()
	o.status.NextRunAt = &next
	o.mu.Unlock()

	select {
	case <-o.rearm:
	default:
	}
	o.rearm <- next
}

func (o *Orchestrator) begin(runID string, start time.Time) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.status.LastRunID = runID
	o.status.LastStartedAt = &start
	o.status.Transitions = []State{StateIdle}
}

func (o *Orchestrator) transition(s State) {
	o.mu.Lock()
	o.status.State = s
	o.status.Transitions = append(o.status.Transitions, s)
	runID := o.status.LastRunID
	o.mu.Unlock()

	o.logger.Debug("Sync state changed", zap.String("run_id", runID), zap.String("state", string(s)))
}

func (o *Orchestrator) setCheckpoint(t time.Time) {
	o.mu.Lock()
	o.status.Checkpoint = &t
	o.mu.Unlock()
}

func (o *Orchestrator) succeed(ctx context.Context, report *RunReport) {
	finished := o.opts.Now()

	o.mu.Lock()
	o.status.LastResult = "success"
	o.status.LastFinishedAt = &finished
	o.status.LastCommitted = report.Upload.Committed()
	o.status.LastTotal = report.Upload.Total()
	o.status.LastError = ""
	o.status.LastErrorKind = ""
	o.mu.Unlock()

	metrics.SyncRuns.WithLabelValues("success").Inc()
	metrics.SyncDuration.Observe(report.Duration.Seconds())

	o.logger.Info("Sync completed",
		zap.String("run_id", report.RunID),
		zap.Int("committed", report.Upload.Committed()),
		zap.Int("insights", len(report.Insights)),
		zap.Strings("notified", report.Dispatch.Scheduled),
		zap.Duration("duration", report.Duration),
	)

	o.publish(ctx, RunEvent{
		RunID:      report.RunID,
		Result:     "success",
		Since:      report.Since,
		Until:      report.Until,
		Vitals:     report.Vitals,
		Workouts:   report.Workouts,
		Sleep:      report.Sleep,
		Committed:  report.Upload.Committed(),
		Total:      report.Upload.Total(),
		Insights:   len(report.Insights),
		DurationMs: report.Duration.Milliseconds(),
		FinishedAt: finished,
	})
}

// fail moves through Failed back to Idle, recording serr.
func (o *Orchestrator) fail(ctx context.Context, report *RunReport, start time.Time, serr *SyncError) error {
	o.transition(StateFailed)

	finished := o.opts.Now()
	duration := finished.Sub(start)

	o.mu.Lock()
	o.status.LastResult = "failed"
	o.status.LastFinishedAt = &finished
	o.status.LastCommitted = serr.Committed
	o.status.LastTotal = serr.Total
	o.status.LastError = serr.Message()
	o.status.LastErrorKind = serr.Kind
	o.mu.Unlock()

	metrics.SyncRuns.WithLabelValues(string(serr.Kind)).Inc()
	metrics.SyncDuration.Observe(duration.Seconds())

	o.logger.Error("Sync failed",
		zap.String("run_id", report.RunID),
		zap.String("step", string(serr.Step)),
		zap.String("kind", string(serr.Kind)),
		zap.Int("committed", serr.Committed),
		zap.Error(serr.Err),
	)

	o.publish(ctx, RunEvent{
		RunID:      report.RunID,
		Result:     string(serr.Kind),
		Step:       serr.Step,
		Since:      report.Since,
		Until:      report.Until,
		Vitals:     report.Vitals,
		Workouts:   report.Workouts,
		Sleep:      report.Sleep,
		Committed:  serr.Committed,
		Total:      serr.Total,
		DurationMs: duration.Milliseconds(),
		Error:      serr.Error(),
		FinishedAt: finished,
	})

	o.transition(StateIdle)
	return serr
}

func (o *Orchestrator) publish(ctx context.Context, ev RunEvent) {
	if o.deps.Events == nil {
		return
	}
	if err := o.deps.Events.Publish(ctx, ev); err != nil {
		o.logger.Warn("Failed to publish run event", zap.String("run_id", ev.RunID), zap.Error(err))
	}
}

func recordInsights(insights []models.Insight) {
	counts := map[models.Severity]float64{}
	for _, in := range insights {
		counts[in.Severity]++
	}
	for _, sev := range []models.Severity{models.SeverityInfo, models.SeverityAttention, models.SeverityWarning, models.SeverityCritical} {
		metrics.InsightsBySeverity.WithLabelValues(sev.String()).Set(counts[sev])
	}
}

// extractionFailure fails a run whose provider reads did not all succeed.
// The window is kept so the next run reads it again.
func extractionFailure(x extractor.Extraction, res remote.UploadResult) *SyncError {
	kind := KindNetwork
	if errors.Is(x.Err, provider.ErrPermissionDenied) {
		kind = KindPermissionDenied
	}
	return &SyncError{
		Kind:      kind,
		Step:      StateExtracting,
		Committed: res.Committed(),
		Total:     res.Total(),
		Err:       fmt.Errorf("%d provider queries failed: %w", len(x.Failed), x.Err),
	}
}

// uploadFailure classifies an Upload error. Any committed rows make it a
// partial upload.
func uploadFailure(res remote.UploadResult, err error) *SyncError {
	serr := &SyncError{
		Step:      StateUploading,
		Committed: res.Committed(),
		Total:     res.Total(),
		Err:       err,
	}
	switch {
	case serr.Committed > 0:
		serr.Kind = KindPartialUpload
	case errors.Is(err, remote.ErrNetwork):
		serr.Kind = KindNetwork
	case errors.Is(err, remote.ErrRejected):
		serr.Kind = KindRejected
	default:
		serr.Kind = KindInternal
	}
	return serr
}

// ErrorKind classifies a failed run.
type ErrorKind string

const (
	KindPermissionDenied ErrorKind = "permission_denied"
	KindNetwork          ErrorKind = "network"
	KindPartialUpload    ErrorKind = "partial_upload"
	KindRejected         ErrorKind = "rejected"
	KindInternal         ErrorKind = "internal"
)

// SyncError is the error returned by a failed Sync.
type SyncError struct {
	Kind      ErrorKind
	Step      State
	Committed int
	Total     int
	Err       error
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("sync failed at %s (%s): %v", e.Step, e.Kind, e.Err)
}

func (e *SyncError) Unwrap() error {
	return e.Err
}

// Message is a short text suitable for showing to the user.
func (e *SyncError) Message() string {
	switch e.Kind {
	case KindPermissionDenied:
		return "Health data access was denied. Allow read access and try again."
	case KindNetwork:
		if e.Step == StateExtracting {
			return "Some health data could not be read. The sync will be retried."
		}
		return "Could not reach the server. The sync will be retried."
	case KindPartialUpload:
		return fmt.Sprintf("Uploaded %d of %d records before an error. The rest will be retried.", e.Committed, e.Total)
	case KindRejected:
		return "The server rejected the upload."
	default:
		return "Sync failed unexpectedly."
	}
}

// Retryable reports whether running the same window again may succeed.
func (e *SyncError) Retryable() bool {
	return e.Kind == KindNetwork || e.Kind == KindPartialUpload
}
