package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	redispkg "wisefido-health-sync/common/redis"

	"github.com/go-redis/redis/v8"
)

// RunEvent describes one finished sync run.
type RunEvent struct {
	RunID      string    `json:"run_id"`
	Result     string    `json:"result"` // "success" or an ErrorKind
	Step       State     `json:"step,omitempty"`
	Since      time.Time `json:"since"`
	Until      time.Time `json:"until"`
	Vitals     int       `json:"vitals"`
	Workouts   int       `json:"workouts"`
	Sleep      int       `json:"sleep"`
	Committed  int       `json:"committed"`
	Total      int       `json:"total"`
	Insights   int       `json:"insights"`
	DurationMs int64     `json:"duration_ms"`
	Error      string    `json:"error,omitempty"`
	FinishedAt time.Time `json:"finished_at"`
}

// EventPublisher receives run events. Publishing is best effort.
type EventPublisher interface {
	Publish(ctx context.Context, ev RunEvent) error
}

// EventLog is an EventPublisher that can also list recent events.
type EventLog interface {
	EventPublisher
	Recent(ctx context.Context, n int) ([]RunEvent, error)
}

// RedisEventLog appends run events to a capped Redis stream.
type RedisEventLog struct {
	client *redis.Client
	stream string
	maxLen int64
}

func NewRedisEventLog(client *redis.Client, stream string) *RedisEventLog {
	return &RedisEventLog{client: client, stream: stream, maxLen: 1000}
}

func (l *RedisEventLog) Publish(ctx context.Context, ev RunEvent) error {
	if _, err := redispkg.PublishJSONToStream(ctx, l.client, l.stream, l.maxLen, ev); err != nil {
		return fmt.Errorf("failed to publish run event: %w", err)
	}
	return nil
}

// Recent returns up to n events, newest first. Entries that do not decode
// are skipped.
func (l *RedisEventLog) Recent(ctx context.Context, n int) ([]RunEvent, error) {
	msgs, err := redispkg.ReadLatest(ctx, l.client, l.stream, int64(n))
	if err != nil {
		return nil, fmt.Errorf("failed to read run events: %w", err)
	}

	out := make([]RunEvent, 0, len(msgs))
	for _, m := range msgs {
		raw, ok := m.Values["data"].(string)
		if !ok {
			continue
		}
		var ev RunEvent
		if err := json.Unmarshal([]byte(raw), &ev); err != nil {
			continue
		}
		out = append(out, ev)
	}
	return out, nil
}

// MemoryEventLog keeps the last events in process when Redis is not
// configured.
type MemoryEventLog struct {
	mu     sync.Mutex
	events []RunEvent
	limit  int
}

func NewMemoryEventLog(limit int) *MemoryEventLog {
	if limit <= 0 {
		limit = 100
	}
	return &MemoryEventLog{limit: limit}
}

func (l *MemoryEventLog) Publish(_ context.Context, ev RunEvent) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.events = append(l.events, ev)
	if len(l.events) > l.limit {
		l.events = l.events[len(l.events)-l.limit:]
	}
	return nil
}

func (l *MemoryEventLog) Recent(_ context.Context, n int) ([]RunEvent, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]RunEvent, 0, n)
	for i := len(l.events) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, l.events[i])
	}
	return out, nil
}
