package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"wisefido-health-sync/internal/models"

	"github.com/gen2brain/beeep"
	"go.uber.org/zap"
)

// Notification is one user-facing alert. Scheduling the same ID again
// replaces the earlier one.
type Notification struct {
	ID       string          `json:"id"`
	Title    string          `json:"title"`
	Body     string          `json:"body"`
	Severity models.Severity `json:"severity"`
	FiredAt  time.Time       `json:"fired_at"`
}

// Scheduler delivers notifications.
type Scheduler interface {
	Schedule(ctx context.Context, n Notification) error
}

// LogScheduler only logs. Used on headless hosts.
type LogScheduler struct {
	logger *zap.Logger
}

func NewLogScheduler(logger *zap.Logger) *LogScheduler {
	return &LogScheduler{logger: logger}
}

func (s *LogScheduler) Schedule(_ context.Context, n Notification) error {
	s.logger.Warn("Health alert",
		zap.String("alert_id", n.ID),
		zap.String("title", n.Title),
		zap.String("body", n.Body),
		zap.String("severity", n.Severity.String()),
	)
	return nil
}

// DesktopScheduler shows native desktop notifications.
type DesktopScheduler struct {
	notify func(title, message string) error
	alert  func(title, message string) error
}

func NewDesktopScheduler(appName string) *DesktopScheduler {
	if appName != "" {
		beeep.AppName = appName
	}
	return &DesktopScheduler{
		notify: func(title, message string) error { return beeep.Notify(title, message, "") },
		alert:  func(title, message string) error { return beeep.Alert(title, message, "") },
	}
}

// Schedule uses an audible alert for critical notifications.
func (s *DesktopScheduler) Schedule(_ context.Context, n Notification) error {
	send := s.notify
	if n.Severity >= models.SeverityCritical {
		send = s.alert
	}
	if err := send(n.Title, n.Body); err != nil {
		return fmt.Errorf("desktop notification %s: %w", n.ID, err)
	}
	return nil
}

// Publisher is the subset of the MQTT client used here.
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload []byte) error
}

// MQTTScheduler publishes each notification as a retained message on
// <prefix>/<id>, so the broker keeps only the latest one per alert.
type MQTTScheduler struct {
	pub    Publisher
	prefix string
}

func NewMQTTScheduler(pub Publisher, prefix string) *MQTTScheduler {
	return &MQTTScheduler{pub: pub, prefix: strings.TrimRight(prefix, "/")}
}

func (s *MQTTScheduler) Schedule(_ context.Context, n Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}
	return s.pub.Publish(s.prefix+"/"+n.ID, 1, true, payload)
}
