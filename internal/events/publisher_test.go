package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kjstillabower/air-quality-service/internal/alerts"
	"github.com/kjstillabower/air-quality-service/internal/models"
)

type fakeWriter struct {
	msgs   []kafkago.Message
	err    error
	closed bool
}

func (f *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafkago.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

var occurred = time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)

func alertEvent() alerts.Event {
	return alerts.Event{
		EventID: "evt-01",
		Type:    alerts.EventFired,
		Alert: models.AlertRecord{
			AlertID:   "A-002",
			StationID: "ST-DEL-002",
			Pollutant: "PM2.5",
			Status:    models.AlertActive,
		},
		OccurredAt: occurred,
	}
}

func TestSerializeToMessage(t *testing.T) {
	msg, err := serializeToMessage(FromAlert(alertEvent()))
	require.NoError(t, err)

	assert.Equal(t, []byte("ST-DEL-002"), msg.Key)
	assert.Equal(t, occurred, msg.Time)
	assert.Contains(t, string(msg.Value), `"type":"alert.fired"`)
	assert.Contains(t, string(msg.Value), `"alert_id":"A-002"`)
	require.Len(t, msg.Headers, 3)
	assert.Equal(t, "event_id", msg.Headers[0].Key)
	assert.Equal(t, []byte("evt-01"), msg.Headers[0].Value)
	assert.Equal(t, "event_type", msg.Headers[1].Key)
	assert.Equal(t, []byte(occurred.Format(time.RFC3339)), msg.Headers[2].Value)
}

func TestSerializeToMessage_Unencodable(t *testing.T) {
	_, err := serializeToMessage(Envelope{Type: "x", Payload: make(chan int)})
	assert.Error(t, err)
}

func TestKafkaPublisher_Publish(t *testing.T) {
	fw := &fakeWriter{}
	p := &KafkaPublisher{writer: fw, topic: "aq-events", logger: zap.NewNop()}

	require.NoError(t, p.Publish(context.Background(), FromAlert(alertEvent()), FromWebhook(models.WebhookEvent{
		EventID:    "evt-02",
		Type:       "sensor.offline",
		ReceivedAt: occurred,
	})))

	require.Len(t, fw.msgs, 2)
	var env Envelope
	require.NoError(t, json.Unmarshal(fw.msgs[1].Value, &env))
	assert.Equal(t, TypeWebhookReceived, env.Type)
	assert.Equal(t, "evt-02", env.Key)

	require.NoError(t, p.Close())
	assert.True(t, fw.closed)
}

func TestKafkaPublisher_PublishEmpty(t *testing.T) {
	fw := &fakeWriter{err: errors.New("should not be called")}
	p := &KafkaPublisher{writer: fw, topic: "aq-events", logger: zap.NewNop()}

	assert.NoError(t, p.Publish(context.Background()))
}

func TestKafkaPublisher_PublishError(t *testing.T) {
	fw := &fakeWriter{err: errors.New("leader not available")}
	p := &KafkaPublisher{writer: fw, topic: "aq-events", logger: zap.NewNop()}

	err := p.Publish(context.Background(), FromAlert(alertEvent()))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "aq-events")
}

func TestAlertNotifier(t *testing.T) {
	fw := &fakeWriter{}
	n := NewAlertNotifier(&KafkaPublisher{writer: fw, topic: "t", logger: zap.NewNop()})

	require.NoError(t, n.Notify(context.Background(), alertEvent()))

	assert.Equal(t, "kafka", n.Name())
	assert.Len(t, fw.msgs, 1)
}

func TestNopPublisher(t *testing.T) {
	var p Publisher = NopPublisher{}
	assert.NoError(t, p.Publish(context.Background(), FromAlert(alertEvent())))
	assert.NoError(t, p.Close())
}
