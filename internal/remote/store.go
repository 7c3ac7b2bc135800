package remote

import (
	"context"
	"errors"
	"fmt"
	"strconv"
)

var (
	// ErrNetwork is a transport failure, timeout or 5xx; retrying is safe.
	ErrNetwork = errors.New("remote network failure")
	// ErrRejected is a request the remote store refused.
	ErrRejected = errors.New("remote store rejected request")
)

// Store upserts rows into a remote table. Rows sharing spec.Conflict
// values overwrite each other.
type Store interface {
	Upsert(ctx context.Context, spec TableSpec, rows []Row) error
}

// UploadError reports a table whose upload stopped at a failing chunk.
// Chunks before it stay committed.
type UploadError struct {
	Table     string
	Committed int
	Total     int
	Err       error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload %s: %d/%d rows committed: %v", e.Table, e.Committed, e.Total, e.Err)
}

func (e *UploadError) Unwrap() error {
	return e.Err
}

// Partial reports whether some rows of the table were committed.
func (e *UploadError) Partial() bool {
	return e.Committed > 0
}

func toString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	default:
		return fmt.Sprint(val)
	}
}
