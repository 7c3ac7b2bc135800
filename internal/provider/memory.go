package provider

import (
	"context"
	"sort"
	"sync"
	"time"

	"wisefido-health-sync/internal/models"
)

// MemoryProvider is an in-process health store for demos and tests.
type MemoryProvider struct {
	mu       sync.RWMutex
	denied   bool
	samples  map[string][]Sample
	workouts []Workout
	sleep    []SleepSample
}

func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{samples: make(map[string][]Sample)}
}

// Deny makes every call fail with ErrPermissionDenied.
func (m *MemoryProvider) Deny(denied bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.denied = denied
}

// AddSamples appends samples for nativeID.
func (m *MemoryProvider) AddSamples(nativeID string, samples ...Sample) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.samples[nativeID] = append(m.samples[nativeID], samples...)
}

func (m *MemoryProvider) AddWorkouts(workouts ...Workout) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.workouts = append(m.workouts, workouts...)
}

func (m *MemoryProvider) AddSleep(samples ...SleepSample) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sleep = append(m.sleep, samples...)
}

func (m *MemoryProvider) RequestAuthorization(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.denied {
		return ErrPermissionDenied
	}
	return nil
}

func (m *MemoryProvider) Statistic(ctx context.Context, def models.MetricDef, start, end time.Time) (float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.denied {
		return 0, ErrPermissionDenied
	}

	v, ok := combine(def, groupByUnit(m.window(def.NativeID, start, end)))
	if !ok {
		return 0, ErrNoData
	}
	return v, nil
}

func (m *MemoryProvider) DailyStatistics(ctx context.Context, def models.MetricDef, start, end time.Time, loc *time.Location) ([]Bucket, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.denied {
		return nil, ErrPermissionDenied
	}
	if loc == nil {
		loc = time.Local
	}

	byDay := make(map[time.Time][]Sample)
	for _, s := range m.window(def.NativeID, start, end) {
		y, mo, d := s.Start.In(loc).Date()
		day := time.Date(y, mo, d, 0, 0, 0, 0, loc)
		byDay[day] = append(byDay[day], s)
	}

	out := make([]Bucket, 0, len(byDay))
	for day, samples := range byDay {
		if v, ok := combine(def, groupByUnit(samples)); ok {
			out = append(out, Bucket{Day: day, Value: v})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Day.Before(out[j].Day) })
	return out, nil
}

func (m *MemoryProvider) Samples(ctx context.Context, q SampleQuery) ([]Sample, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.denied {
		return nil, ErrPermissionDenied
	}

	in := m.window(q.NativeID, q.Start, q.End)
	sort.SliceStable(in, func(i, j int) bool {
		if q.NewestFirst {
			return in[i].Start.After(in[j].Start)
		}
		return in[i].Start.Before(in[j].Start)
	})
	if q.Limit > 0 && len(in) > q.Limit {
		in = in[:q.Limit]
	}
	return in, nil
}

func (m *MemoryProvider) Workouts(ctx context.Context, start, end time.Time, limit int) ([]Workout, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.denied {
		return nil, ErrPermissionDenied
	}

	var out []Workout
	for _, w := range m.workouts {
		if !w.Start.Before(start) && w.Start.Before(end) {
			out = append(out, w)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start.After(out[j].Start) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryProvider) SleepSamples(ctx context.Context, start, end time.Time) ([]SleepSample, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.denied {
		return nil, ErrPermissionDenied
	}

	var out []SleepSample
	for _, s := range m.sleep {
		if !s.Start.Before(start) && s.Start.Before(end) {
			out = append(out, s)
		}
	}
	return out, nil
}

// window copies samples with Start in [start, end); a zero start is unbounded.
func (m *MemoryProvider) window(nativeID string, start, end time.Time) []Sample {
	var out []Sample
	for _, s := range m.samples[nativeID] {
		if (start.IsZero() || !s.Start.Before(start)) && s.Start.Before(end) {
			out = append(out, s)
		}
	}
	return out
}
