package kafka

import (
	"context"
	"errors"
	"testing"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
)

type fakeMessageWriter struct {
	written []kafkago.Message
	err     error
	closed  bool
}

func (f *fakeMessageWriter) WriteMessages(_ context.Context, msgs ...kafkago.Message) error {
	if f.err != nil {
		return f.err
	}
	f.written = append(f.written, msgs...)
	return nil
}

func (f *fakeMessageWriter) Close() error {
	f.closed = true
	return nil
}

func TestNewWriterRequiresBrokers(t *testing.T) {
	_, err := NewWriter(config.KafkaConfig{Brokers: " , "}, nil)
	require.ErrorIs(t, err, errNoBrokers)
}

func TestPublishMapsMessage(t *testing.T) {
	fake := &fakeMessageWriter{}
	w := &Writer{writer: fake}

	err := w.Publish(context.Background(), outbox.Message{
		Topic: "orders",
		Key:   "order-1",
		Data:  []byte(`{"ok":true}`),
		Attributes: map[string]string{
			"event_type": "order_created",
			"event_id":   "evt-1",
		},
	})
	require.NoError(t, err)
	require.Len(t, fake.written, 1)

	msg := fake.written[0]
	require.Equal(t, "orders", msg.Topic)
	require.Equal(t, []byte("order-1"), msg.Key)
	require.JSONEq(t, `{"ok":true}`, string(msg.Value))
	require.Len(t, msg.Headers, 2)
	require.Equal(t, "event_id", msg.Headers[0].Key)
	require.Equal(t, "event_type", msg.Headers[1].Key)
}

func TestPublishPropagatesErrors(t *testing.T) {
	w := &Writer{writer: &fakeMessageWriter{err: errors.New("leader not available")}}
	require.Error(t, w.Publish(context.Background(), outbox.Message{Topic: "orders"}))
	require.Error(t, w.Publish(context.Background(), outbox.Message{}))
}

func TestPingReportsUnreachableBrokers(t *testing.T) {
	w := &Writer{
		writer:  &fakeMessageWriter{},
		brokers: []string{"a:9092", "b:9092"},
		dial: func(context.Context, string, string) (*kafkago.Conn, error) {
			return nil, errors.New("connection refused")
		},
	}
	require.ErrorContains(t, w.Ping(context.Background()), "connection refused")
}

func TestCloseAndNilWriter(t *testing.T) {
	fake := &fakeMessageWriter{}
	w := &Writer{writer: fake}
	require.NoError(t, w.Close())
	require.True(t, fake.closed)
	require.Equal(t, "kafka", w.Name())

	var nilWriter *Writer
	require.ErrorIs(t, nilWriter.Publish(context.Background(), outbox.Message{Topic: "x"}), errNotInitialized)
	require.NoError(t, nilWriter.Close())
}
