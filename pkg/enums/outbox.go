package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregateOrder OutboxAggregateType = "order"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateOrder,
}

// IsValid reports whether the value matches the canonical aggregate_type enum.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType maps to the event_type enum in Postgres.
type OutboxEventType string

const (
	EventOrderCreated   OutboxEventType = "order_created"
	EventOrderPaid      OutboxEventType = "order_paid"
	EventOrderShipped   OutboxEventType = "order_shipped"
	EventOrderReceived  OutboxEventType = "order_received"
	EventOrderCompleted OutboxEventType = "order_completed"
	EventOrderCanceled  OutboxEventType = "order_canceled"
)

var validOutboxEventTypes = []OutboxEventType{
	EventOrderCreated,
	EventOrderPaid,
	EventOrderShipped,
	EventOrderReceived,
	EventOrderCompleted,
	EventOrderCanceled,
}

// IsValid reports whether the value matches the canonical event_type enum.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}

// DeadLetterReason maps to outbox_dlq_error_reason_enum: why a row left the
// publish loop for good.
type DeadLetterReason string

const (
	DeadLetterMaxAttempts  DeadLetterReason = "max_attempts"
	DeadLetterNonRetryable DeadLetterReason = "non_retryable"
)

func (r DeadLetterReason) IsValid() bool {
	switch r {
	case DeadLetterMaxAttempts, DeadLetterNonRetryable:
		return true
	}
	return false
}

// DeadLetterFor decides whether a failed publish is terminal. attempt is the
// 1-based count including the failure being classified; maxAttempts <= 0 never
// exhausts.
func DeadLetterFor(nonRetryable bool, attempt, maxAttempts int) (DeadLetterReason, bool) {
	if nonRetryable {
		return DeadLetterNonRetryable, true
	}
	if maxAttempts > 0 && attempt >= maxAttempts {
		return DeadLetterMaxAttempts, true
	}
	return "", false
}
