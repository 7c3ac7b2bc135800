package remote

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// PostgRESTConfig configures a PostgRESTStore.
type PostgRESTConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration // batch dispatch timeout, default 120s
	Retries int           // retries on network errors and 5xx
}

// PostgRESTStore upserts through a PostgREST (Supabase-style) endpoint.
type PostgRESTStore struct {
	http   *resty.Client
	logger *zap.Logger
}

func NewPostgRESTStore(cfg PostgRESTConfig, logger *zap.Logger) *PostgRESTStore {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}

	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.Retries).
		SetRetryWaitTime(1 * time.Second).
		SetRetryMaxWaitTime(5 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() >= http.StatusInternalServerError
		}).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	if cfg.APIKey != "" {
		client.SetHeader("apikey", cfg.APIKey).SetAuthToken(cfg.APIKey)
	}

	return &PostgRESTStore{http: client, logger: logger}
}

// Upsert posts rows as one bulk insert. columns names every column of the
// table, so rows that leave out optional values still share one key set and
// the missing ones are stored as defaults.
func (s *PostgRESTStore) Upsert(ctx context.Context, spec TableSpec, rows []Row) error {
	if len(rows) == 0 {
		return nil
	}

	resp, err := s.http.R().
		SetContext(ctx).
		SetQueryParam("on_conflict", strings.Join(spec.Conflict, ",")).
		SetQueryParam("columns", strings.Join(spec.Columns, ",")).
		SetHeader("Prefer", "resolution=merge-duplicates,return=minimal").
		SetBody(rows).
		Post("/rest/v1/" + spec.Name)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrNetwork, spec.Name, err)
	}

	status := resp.StatusCode()
	switch {
	case status >= http.StatusInternalServerError || status == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s: status %d", ErrNetwork, spec.Name, status)
	case resp.IsError():
		s.logger.Error("Remote store rejected upsert",
			zap.String("table", spec.Name),
			zap.Int("status", status),
			zap.String("body", truncate(resp.String(), 512)),
		)
		return fmt.Errorf("%w: %s: status %d: %s", ErrRejected, spec.Name, status, truncate(resp.String(), 200))
	}

	s.logger.Debug("Upserted rows",
		zap.String("table", spec.Name),
		zap.Int("rows", len(rows)),
		zap.Int("status", status),
	)
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
