package store

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// CheckpointKey holds the end of the last successfully uploaded window.
const CheckpointKey = "lastHealthSyncDate"

// CheckpointStore reads and writes the sync checkpoint.
type CheckpointStore struct {
	kv KV
}

func NewCheckpointStore(kv KV) *CheckpointStore {
	return &CheckpointStore{kv: kv}
}

// Load returns the checkpoint and whether one exists.
func (c *CheckpointStore) Load(ctx context.Context) (time.Time, bool, error) {
	raw, err := c.kv.Get(ctx, CheckpointKey)
	if err != nil {
		if errors.Is(err, ErrMiss) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, fmt.Errorf("failed to read checkpoint: %w", err)
	}

	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("corrupt checkpoint %q: %w", raw, err)
	}
	return t, true, nil
}

// Save persists t without expiry.
func (c *CheckpointStore) Save(ctx context.Context, t time.Time) error {
	if err := c.kv.Set(ctx, CheckpointKey, t.UTC().Format(time.RFC3339Nano), 0); err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}
	return nil
}
