package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"wisefido-health-sync/internal/metrics"
	"wisefido-health-sync/internal/models"
	"wisefido-health-sync/internal/store"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// LedgerKey holds the cooldown ledger: alert id to last fire time.
const LedgerKey = "notification_cooldowns"

// Ledger records when each alert id last fired.
type Ledger map[string]time.Time

// DispatchResult lists what happened to each catalogued insight.
type DispatchResult struct {
	Scheduled  []string `json:"scheduled"`
	Suppressed []string `json:"suppressed"`
	Failed     []string `json:"failed"`
}

// Dispatcher turns insights into notifications, at most one per alert id
// per cooldown window.
type Dispatcher struct {
	mu        sync.Mutex
	kv        store.KV
	scheduler Scheduler
	catalog   map[string]Alert
	logger    *zap.Logger
	now       func() time.Time
}

func NewDispatcher(kv store.KV, scheduler Scheduler, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		kv:        kv,
		scheduler: scheduler,
		catalog:   DefaultCatalog,
		logger:    logger,
		now:       time.Now,
	}
}

// WithClock replaces the time source.
func (d *Dispatcher) WithClock(now func() time.Time) *Dispatcher {
	d.now = now
	return d
}

// WithCatalog replaces the alert catalog.
func (d *Dispatcher) WithCatalog(c map[string]Alert) *Dispatcher {
	d.catalog = c
	return d
}

// Dispatch schedules a notification for every catalogued insight whose
// alert id is outside its cooldown. The ledger is written once, after all
// scheduling, and only fired ids are recorded.
func (d *Dispatcher) Dispatch(ctx context.Context, insights []models.Insight) (DispatchResult, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var res DispatchResult
	ledger, err := d.load(ctx)
	if err != nil {
		return res, err
	}

	now := d.now()
	var errs error
	changed := false

	for _, in := range insights {
		alert, ok := d.catalog[in.ID]
		if !ok {
			continue
		}

		if last, fired := ledger[alert.ID]; fired && now.Sub(last) < alert.Cooldown {
			res.Suppressed = append(res.Suppressed, alert.ID)
			metrics.Notifications.WithLabelValues(alert.ID, "suppressed").Inc()
			d.logger.Debug("Alert in cooldown",
				zap.String("alert_id", alert.ID),
				zap.Time("last_fired", last),
				zap.Duration("cooldown", alert.Cooldown),
			)
			continue
		}

		n := Notification{
			ID:       alert.ID,
			Title:    alert.Title,
			Body:     in.Message,
			Severity: in.Severity,
			FiredAt:  now,
		}
		if err := d.scheduler.Schedule(ctx, n); err != nil {
			res.Failed = append(res.Failed, alert.ID)
			metrics.Notifications.WithLabelValues(alert.ID, "failed").Inc()
			d.logger.Error("Failed to schedule notification", zap.String("alert_id", alert.ID), zap.Error(err))
			errs = multierr.Append(errs, err)
			continue
		}

		ledger[alert.ID] = now
		changed = true
		res.Scheduled = append(res.Scheduled, alert.ID)
		metrics.Notifications.WithLabelValues(alert.ID, "scheduled").Inc()
		d.logger.Info("Notification scheduled", zap.String("alert_id", alert.ID), zap.String("title", alert.Title))
	}

	if changed {
		errs = multierr.Append(errs, d.save(ctx, ledger))
	}
	return res, errs
}

// Ledger returns a copy of the persisted ledger.
func (d *Dispatcher) Ledger(ctx context.Context) (Ledger, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.load(ctx)
}

func (d *Dispatcher) load(ctx context.Context) (Ledger, error) {
	raw, err := d.kv.Get(ctx, LedgerKey)
	if err != nil {
		if errors.Is(err, store.ErrMiss) {
			return Ledger{}, nil
		}
		return nil, fmt.Errorf("failed to read cooldown ledger: %w", err)
	}

	ledger := Ledger{}
	if err := json.Unmarshal([]byte(raw), &ledger); err != nil {
		// a corrupt ledger at worst repeats a notification
		d.logger.Warn("Discarding corrupt cooldown ledger", zap.Error(err))
		return Ledger{}, nil
	}
	return ledger, nil
}

func (d *Dispatcher) save(ctx context.Context, ledger Ledger) error {
	data, err := json.Marshal(ledger)
	if err != nil {
		return fmt.Errorf("failed to marshal cooldown ledger: %w", err)
	}
	if err := d.kv.Set(ctx, LedgerKey, string(data), 0); err != nil {
		return fmt.Errorf("failed to save cooldown ledger: %w", err)
	}
	return nil
}
