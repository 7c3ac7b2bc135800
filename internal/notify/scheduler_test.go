package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"wisefido-health-sync/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type publishCall struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

type fakePublisher struct {
	calls []publishCall
	err   error
}

func (f *fakePublisher) Publish(topic string, qos byte, retained bool, payload []byte) error {
	f.calls = append(f.calls, publishCall{topic, qos, retained, payload})
	return f.err
}

func TestMQTTScheduler(t *testing.T) {
	pub := &fakePublisher{}
	s := NewMQTTScheduler(pub, "health/alerts/")

	err := s.Schedule(context.Background(), Notification{ID: "glucose-low", Title: "Low Blood Glucose", Severity: models.SeverityCritical})
	require.NoError(t, err)
	require.Len(t, pub.calls, 1)

	call := pub.calls[0]
	assert.Equal(t, "health/alerts/glucose-low", call.topic)
	assert.Equal(t, byte(1), call.qos)
	assert.True(t, call.retained)

	var got map[string]any
	require.NoError(t, json.Unmarshal(call.payload, &got))
	assert.Equal(t, "critical", got["severity"])
	assert.Equal(t, "Low Blood Glucose", got["title"])

	pub.err = errors.New("broker down")
	assert.Error(t, s.Schedule(context.Background(), Notification{ID: "x"}))
}

func TestDesktopScheduler_CriticalUsesAlert(t *testing.T) {
	var used []string
	s := &DesktopScheduler{
		notify: func(title, message string) error { used = append(used, "notify"); return nil },
		alert:  func(title, message string) error { used = append(used, "alert"); return nil },
	}

	require.NoError(t, s.Schedule(context.Background(), Notification{Severity: models.SeverityCritical}))
	require.NoError(t, s.Schedule(context.Background(), Notification{Severity: models.SeverityWarning}))
	assert.Equal(t, []string{"alert", "notify"}, used)
}

func TestLogScheduler(t *testing.T) {
	assert.NoError(t, NewLogScheduler(zap.NewNop()).Schedule(context.Background(), Notification{ID: "bp-hypertensive"}))
}
