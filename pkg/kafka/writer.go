package kafka

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
)

const (
	sinkName            = "kafka"
	defaultWriteTimeout = 10 * time.Second
)

var (
	_ outbox.Sink = (*Writer)(nil)

	errNoBrokers      = errors.New("kafka brokers are required")
	errNotInitialized = errors.New("kafka writer not initialized")
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

type dialFunc func(ctx context.Context, network, address string) (*kafkago.Conn, error)

// Writer publishes outbox messages to Kafka. The topic travels on each
// message so one writer serves every event type.
type Writer struct {
	writer  messageWriter
	brokers []string
	dial    dialFunc
}

func NewWriter(cfg config.KafkaConfig, logg *logger.Logger) (*Writer, error) {
	brokers := cfg.BrokerList()
	if len(brokers) == 0 {
		return nil, errNoBrokers
	}
	timeout := cfg.WriteTimeout
	if timeout <= 0 {
		timeout = defaultWriteTimeout
	}
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Balancer:     &kafkago.Hash{},
		WriteTimeout: timeout,
		RequiredAcks: kafkago.RequireAll,
	}
	if logg != nil {
		ctx := logg.WithField(context.Background(), "brokers", brokers)
		logg.Info(ctx, "kafka writer initialized")
	}
	return &Writer{writer: w, brokers: brokers, dial: kafkago.DialContext}, nil
}

func (w *Writer) Name() string {
	return sinkName
}

// Publish writes a single message keyed by the aggregate so every event for an
// order lands on the same partition.
func (w *Writer) Publish(ctx context.Context, msg outbox.Message) error {
	if w == nil || w.writer == nil {
		return errNotInitialized
	}
	if msg.Topic == "" {
		return errors.New("kafka topic is required")
	}
	return w.writer.WriteMessages(ctx, toKafkaMessage(msg))
}

// Ping dials the first reachable broker.
func (w *Writer) Ping(ctx context.Context) error {
	if w == nil || w.writer == nil {
		return errNotInitialized
	}
	var lastErr error
	for _, broker := range w.brokers {
		conn, err := w.dial(ctx, "tcp", broker)
		if err != nil {
			lastErr = err
			continue
		}
		return conn.Close()
	}
	return fmt.Errorf("no kafka broker reachable: %w", lastErr)
}

func (w *Writer) Close() error {
	if w == nil || w.writer == nil {
		return nil
	}
	return w.writer.Close()
}

func toKafkaMessage(msg outbox.Message) kafkago.Message {
	keys := make([]string, 0, len(msg.Attributes))
	for k := range msg.Attributes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	headers := make([]kafkago.Header, 0, len(keys))
	for _, k := range keys {
		headers = append(headers, kafkago.Header{Key: k, Value: []byte(msg.Attributes[k])})
	}
	return kafkago.Message{
		Topic:   msg.Topic,
		Key:     []byte(msg.Key),
		Value:   msg.Data,
		Headers: headers,
	}
}
