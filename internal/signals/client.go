// Package signals reads critical alerts from the remote health dashboard.
package signals

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"wisefido-health-sync/internal/models"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

const signalsPath = "/api/dashboard/signals"

type Config struct {
	BaseURL   string
	UserEmail string
	CacheTTL  time.Duration // default 5m
	Timeout   time.Duration // default 30s
}

// Client fetches the dashboard and caches it for CacheTTL.
type Client struct {
	http   *resty.Client
	email  string
	ttl    time.Duration
	logger *zap.Logger
	now    func() time.Time

	mu       sync.Mutex
	cached   *Dashboard
	cachedAt time.Time
}

func NewClient(cfg Config, logger *zap.Logger) *Client {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "application/json")

	return &Client{
		http:   client,
		email:  cfg.UserEmail,
		ttl:    cfg.CacheTTL,
		logger: logger,
		now:    time.Now,
	}
}

// Dashboard returns the cached dashboard while it is fresh, unless force
// is set.
func (c *Client) Dashboard(ctx context.Context, force bool) (*Dashboard, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !force && c.cached != nil && c.now().Sub(c.cachedAt) < c.ttl {
		return c.cached, nil
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("X-User-Email", c.email).
		Get(signalsPath)
	if err != nil {
		c.logger.Warn("Dashboard signals request failed", zap.Error(err))
		return nil, fmt.Errorf("failed to fetch dashboard signals: %w", err)
	}
	if resp.IsError() {
		c.logger.Warn("Dashboard signals returned error", zap.Int("status_code", resp.StatusCode()))
		return nil, fmt.Errorf("dashboard signals: status %d", resp.StatusCode())
	}

	d, err := DecodeDashboard(resp.Body())
	if err != nil {
		return nil, err
	}

	c.cached = d
	c.cachedAt = c.now()
	c.logger.Debug("Dashboard signals refreshed",
		zap.Int("critical_alerts", len(d.CriticalAlerts)),
		zap.Int("overdue_screenings", len(d.OverdueScreenings)),
	)
	return d, nil
}

// CriticalInsights returns the dashboard's critical alerts as insights.
func (c *Client) CriticalInsights(ctx context.Context) ([]models.Insight, error) {
	d, err := c.Dashboard(ctx, false)
	if err != nil {
		return nil, err
	}

	out := make([]models.Insight, 0, len(d.CriticalAlerts))
	for _, a := range d.CriticalAlerts {
		out = append(out, a.Insight())
	}
	return out, nil
}
