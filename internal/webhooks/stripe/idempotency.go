package stripewebhook

import (
	"context"
	"errors"
)

const consumerName = "stripe_webhook"

type processedTracker interface {
	CheckAndMarkProcessed(ctx context.Context, consumer, eventID string) (bool, error)
	Delete(ctx context.Context, consumer, eventID string) error
}

// IdempotencyGuard drops Stripe redeliveries of events already handled.
type IdempotencyGuard struct {
	tracker processedTracker
}

func NewIdempotencyGuard(tracker processedTracker) (*IdempotencyGuard, error) {
	if tracker == nil {
		return nil, errors.New("idempotency tracker is required")
	}
	return &IdempotencyGuard{tracker: tracker}, nil
}

// CheckAndMark reports true when eventID was seen before.
func (g *IdempotencyGuard) CheckAndMark(ctx context.Context, eventID string) (bool, error) {
	if eventID == "" {
		return false, errors.New("event id is required")
	}
	return g.tracker.CheckAndMarkProcessed(ctx, consumerName, eventID)
}

// Delete releases the mark so Stripe's retry can be processed.
func (g *IdempotencyGuard) Delete(ctx context.Context, eventID string) error {
	if eventID == "" {
		return errors.New("event id is required")
	}
	return g.tracker.Delete(ctx, consumerName, eventID)
}
