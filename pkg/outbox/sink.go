package outbox

import "context"

// Message is the transport-neutral shape handed to a Sink.
type Message struct {
	Topic      string
	Key        string
	Data       []byte
	Attributes map[string]string
}

// Sink delivers resolved outbox rows to a broker. Publish returns once the
// broker acknowledged the message.
type Sink interface {
	Name() string
	Publish(ctx context.Context, msg Message) error
	Ping(ctx context.Context) error
	Close() error
}
