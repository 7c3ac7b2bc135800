package service

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisEventLog_PublishAndRecent(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	log := NewRedisEventLog(client, "health:sync:events")
	ctx := context.Background()

	for i, result := range []string{"success", "network", "success"} {
		require.NoError(t, log.Publish(ctx, RunEvent{
			RunID:      string(rune('a' + i)),
			Result:     result,
			Committed:  i * 10,
			FinishedAt: syncNow.Add(time.Duration(i) * time.Hour),
		}))
	}
	require.NoError(t, client.XAdd(ctx, &redis.XAddArgs{
		Stream: "health:sync:events",
		Values: map[string]interface{}{"data": "{broken"},
	}).Err())

	events, err := log.Recent(ctx, 3)
	require.NoError(t, err)
	require.Len(t, events, 2, "undecodable entries are skipped")
	assert.Equal(t, "c", events[0].RunID)
	assert.Equal(t, 20, events[0].Committed)
	assert.Equal(t, "network", events[1].Result)
}

func TestRedisEventLog_EmptyStream(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	events, err := NewRedisEventLog(client, "nothing-here").Recent(context.Background(), 5)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestMemoryEventLog_KeepsNewest(t *testing.T) {
	log := NewMemoryEventLog(2)
	ctx := context.Background()
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, log.Publish(ctx, RunEvent{RunID: id}))
	}

	events, err := log.Recent(ctx, 5)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "c", events[0].RunID)
	assert.Equal(t, "b", events[1].RunID)
}
