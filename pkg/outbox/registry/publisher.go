package registry

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
)

// EventDescriptor links an event type to its aggregate and topic.
type EventDescriptor struct {
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	Topic         string
}

// ResolvedEvent is the result of decoding an outbox row.
type ResolvedEvent struct {
	Descriptor EventDescriptor
	Envelope   outbox.PayloadEnvelope
	Payload    interface{}
}

// EventRegistry maps each supported event type to its descriptor.
type EventRegistry struct {
	entries  map[enums.OutboxEventType]EventDescriptor
	decoders *DecoderRegistry
}

// NonRetryableError signals the dispatcher should stop retrying a row.
type NonRetryableError struct {
	Err error
}

func (e NonRetryableError) Error() string {
	if e.Err == nil {
		return "non-retryable error"
	}
	return e.Err.Error()
}

func (e NonRetryableError) Unwrap() error {
	return e.Err
}

// NewNonRetryableError wraps an error to signal no retries.
func NewNonRetryableError(err error) NonRetryableError {
	return NonRetryableError{Err: err}
}

// NewEventRegistry builds the registry; every order event goes to ordersTopic.
func NewEventRegistry(ordersTopic string) (*EventRegistry, error) {
	ordersTopic = strings.TrimSpace(ordersTopic)
	if ordersTopic == "" {
		return nil, fmt.Errorf("orders topic is required")
	}

	reg := &EventRegistry{
		entries:  make(map[enums.OutboxEventType]EventDescriptor),
		decoders: NewDecoderRegistry(),
	}
	reg.register(enums.EventOrderCreated, ordersTopic, decodeInto[payloads.OrderCreatedEvent]())
	reg.register(enums.EventOrderPaid, ordersTopic, decodeInto[payloads.OrderPaidEvent]())
	reg.register(enums.EventOrderCanceled, ordersTopic, decodeInto[payloads.OrderCanceledEvent]())
	for _, eventType := range []enums.OutboxEventType{
		enums.EventOrderShipped,
		enums.EventOrderReceived,
		enums.EventOrderCompleted,
	} {
		reg.register(eventType, ordersTopic, decodeInto[payloads.OrderStatusChangedEvent]())
	}
	return reg, nil
}

func (r *EventRegistry) register(eventType enums.OutboxEventType, topic string, decoder decoderFunc) {
	r.entries[eventType] = EventDescriptor{
		EventType:     eventType,
		AggregateType: enums.AggregateOrder,
		Topic:         topic,
	}
	r.decoders.Register(eventType, 1, decoder)
}

// Resolve validates the row and decodes its typed payload.
func (r *EventRegistry) Resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	desc, ok := r.entries[event.EventType]
	if !ok {
		return nil, NewNonRetryableError(fmt.Errorf("unsupported event type %s", event.EventType))
	}
	if desc.AggregateType != event.AggregateType {
		return nil, NewNonRetryableError(fmt.Errorf("aggregate mismatch: expected %s got %s", desc.AggregateType, event.AggregateType))
	}
	if event.AggregateID == uuid.Nil {
		return nil, NewNonRetryableError(fmt.Errorf("missing aggregate_id"))
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(event.Payload, &envelope); err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("decode envelope: %w", err))
	}

	trimmed := bytes.TrimSpace(envelope.Data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, NewNonRetryableError(fmt.Errorf("payload missing for %s", event.EventType))
	}

	payload, err := r.decoders.Decode(event.EventType, envelope.Version, envelope.Data)
	if err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("decode %s payload: %w", event.EventType, err))
	}

	return &ResolvedEvent{
		Descriptor: desc,
		Envelope:   envelope,
		Payload:    payload,
	}, nil
}
