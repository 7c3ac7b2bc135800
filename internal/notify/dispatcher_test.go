package notify

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"wisefido-health-sync/internal/models"
	"wisefido-health-sync/internal/rules"
	"wisefido-health-sync/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeScheduler struct {
	mu   sync.Mutex
	sent []Notification
	err  error
}

func (f *fakeScheduler) Schedule(_ context.Context, n Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, n)
	return nil
}

func (f *fakeScheduler) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func glucoseHigh() models.Insight {
	return models.Insight{ID: rules.AlertGlucoseHigh, Title: "High Blood Glucose", Message: "Glucose reading of 250 mg/dL", Severity: models.SeverityCritical}
}

func newTestDispatcher(kv store.KV, s Scheduler) (*Dispatcher, *fakeClock) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)}
	return NewDispatcher(kv, s, zap.NewNop()).WithClock(clock.now), clock
}

func TestDispatch_CooldownSuppression(t *testing.T) {
	ctx := context.Background()
	sched := &fakeScheduler{}
	d, clock := newTestDispatcher(store.NewMemoryKV(), sched)

	res, err := d.Dispatch(ctx, []models.Insight{glucoseHigh()})
	require.NoError(t, err)
	assert.Equal(t, []string{rules.AlertGlucoseHigh}, res.Scheduled)

	clock.advance(3*time.Hour + 59*time.Minute)
	res, err = d.Dispatch(ctx, []models.Insight{glucoseHigh()})
	require.NoError(t, err)
	assert.Equal(t, []string{rules.AlertGlucoseHigh}, res.Suppressed)
	assert.Equal(t, 1, sched.count())

	clock.advance(time.Minute)
	_, err = d.Dispatch(ctx, []models.Insight{glucoseHigh()})
	require.NoError(t, err)
	assert.Equal(t, 2, sched.count())
}

func TestDispatch_UsesCatalogTitleAndInsightBody(t *testing.T) {
	sched := &fakeScheduler{}
	d, clock := newTestDispatcher(store.NewMemoryKV(), sched)

	_, err := d.Dispatch(context.Background(), []models.Insight{glucoseHigh()})
	require.NoError(t, err)
	require.Len(t, sched.sent, 1)
	assert.Equal(t, "High Blood Glucose", sched.sent[0].Title)
	assert.Equal(t, "Glucose reading of 250 mg/dL", sched.sent[0].Body)
	assert.Equal(t, clock.t, sched.sent[0].FiredAt)
}

func TestDispatch_IgnoresInsightsOutsideCatalog(t *testing.T) {
	kv := store.NewMemoryKV()
	sched := &fakeScheduler{}
	d, _ := newTestDispatcher(kv, sched)

	res, err := d.Dispatch(context.Background(), []models.Insight{
		rules.AllClear(),
		{ID: rules.AlertHRVBelowBase, Severity: models.SeverityAttention},
	})
	require.NoError(t, err)
	assert.Empty(t, res.Scheduled)
	assert.Zero(t, sched.count())

	_, err = kv.Get(context.Background(), LedgerKey)
	assert.ErrorIs(t, err, store.ErrMiss)
}

func TestDispatch_SameIdTwiceInOneBatchFiresOnce(t *testing.T) {
	sched := &fakeScheduler{}
	d, _ := newTestDispatcher(store.NewMemoryKV(), sched)

	res, err := d.Dispatch(context.Background(), []models.Insight{glucoseHigh(), glucoseHigh()})
	require.NoError(t, err)
	assert.Len(t, res.Scheduled, 1)
	assert.Len(t, res.Suppressed, 1)
}

func TestDispatch_LedgerPersistsAcrossDispatchers(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemoryKV()
	first, clock := newTestDispatcher(kv, &fakeScheduler{})

	_, err := first.Dispatch(ctx, []models.Insight{{ID: rules.AlertGlucoseLow, Severity: models.SeverityCritical}})
	require.NoError(t, err)

	raw, err := kv.Get(ctx, LedgerKey)
	require.NoError(t, err)
	var ledger map[string]time.Time
	require.NoError(t, json.Unmarshal([]byte(raw), &ledger))
	assert.True(t, ledger[rules.AlertGlucoseLow].Equal(clock.t))

	sched := &fakeScheduler{}
	second := NewDispatcher(kv, sched, zap.NewNop()).WithClock(func() time.Time { return clock.t.Add(time.Hour) })
	res, err := second.Dispatch(ctx, []models.Insight{{ID: rules.AlertGlucoseLow, Severity: models.SeverityCritical}})
	require.NoError(t, err)
	assert.Equal(t, []string{rules.AlertGlucoseLow}, res.Suppressed)
}

func TestDispatch_FailedScheduleDoesNotStartCooldown(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemoryKV()
	sched := &fakeScheduler{err: errors.New("no display")}
	d, _ := newTestDispatcher(kv, sched)

	res, err := d.Dispatch(ctx, []models.Insight{glucoseHigh()})
	require.Error(t, err)
	assert.Equal(t, []string{rules.AlertGlucoseHigh}, res.Failed)

	sched.err = nil
	res, err = d.Dispatch(ctx, []models.Insight{glucoseHigh()})
	require.NoError(t, err)
	assert.Equal(t, []string{rules.AlertGlucoseHigh}, res.Scheduled)
}

func TestDispatch_CorruptLedgerIsReset(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemoryKV()
	require.NoError(t, kv.Set(ctx, LedgerKey, "{not json", 0))
	sched := &fakeScheduler{}
	d, _ := newTestDispatcher(kv, sched)

	_, err := d.Dispatch(ctx, []models.Insight{glucoseHigh()})
	require.NoError(t, err)
	assert.Equal(t, 1, sched.count())
}

func TestDispatch_ConcurrentCallersFireOnce(t *testing.T) {
	sched := &fakeScheduler{}
	d, _ := newTestDispatcher(store.NewMemoryKV(), sched)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = d.Dispatch(context.Background(), []models.Insight{glucoseHigh()})
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, sched.count())
}

func TestCatalogCooldowns(t *testing.T) {
	assert.Equal(t, 2*time.Hour, DefaultCatalog[rules.AlertGlucoseLow].Cooldown)
	assert.Equal(t, 12*time.Hour, DefaultCatalog[rules.AlertHRVSevereDrop].Cooldown)
	for id, a := range DefaultCatalog {
		assert.Equal(t, id, a.ID)
	}
}
