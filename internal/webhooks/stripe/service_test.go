package stripewebhook

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"

	"github.com/angelmondragon/storefront-backend/internal/payments"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

type confirmCall struct {
	orderID uuid.UUID
	tradeID string
}

type stubPayments struct {
	calls    []confirmCall
	err      error
	canceled bool
}

func (s *stubPayments) ConfirmPayment(_ context.Context, orderID uuid.UUID, tradeID string) (*payments.Confirmation, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.calls = append(s.calls, confirmCall{orderID: orderID, tradeID: tradeID})
	return &payments.Confirmation{OrderID: orderID, TradeID: tradeID, Duplicate: len(s.calls) > 1, OrderCanceled: s.canceled}, nil
}

func newTestService(t *testing.T, stub *stubPayments) *Service {
	t.Helper()
	svc, err := NewService(ServiceParams{Payments: stub, Logger: logger.Nop()})
	if err != nil {
		t.Fatalf("setup service: %v", err)
	}
	return svc
}

func sessionEvent(t *testing.T, eventType stripe.EventType, payload map[string]any) *stripe.Event {
	t.Helper()
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return &stripe.Event{ID: "evt_1", Type: eventType, Data: &stripe.EventData{Raw: raw}}
}

func TestHandleCheckoutSessionCompletedUsesPaymentIntent(t *testing.T) {
	stub := &stubPayments{}
	svc := newTestService(t, stub)
	orderID := uuid.New()

	event := sessionEvent(t, stripe.EventTypeCheckoutSessionCompleted, map[string]any{
		"id":                  "cs_1",
		"client_reference_id": orderID.String(),
		"payment_status":      "paid",
		"payment_intent":      "pi_123",
	})
	if err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("handle event: %v", err)
	}
	if len(stub.calls) != 1 || stub.calls[0].orderID != orderID || stub.calls[0].tradeID != "pi_123" {
		t.Fatalf("unexpected confirm calls %+v", stub.calls)
	}
}

func TestHandleCheckoutSessionFallsBackToMetadataAndSessionID(t *testing.T) {
	stub := &stubPayments{}
	svc := newTestService(t, stub)
	orderID := uuid.New()

	event := sessionEvent(t, stripe.EventTypeCheckoutSessionCompleted, map[string]any{
		"id":             "cs_2",
		"payment_status": "paid",
		"metadata":       map[string]string{"order_id": orderID.String()},
	})
	if err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("handle event: %v", err)
	}
	if len(stub.calls) != 1 || stub.calls[0].orderID != orderID || stub.calls[0].tradeID != "cs_2" {
		t.Fatalf("unexpected confirm calls %+v", stub.calls)
	}
}

func TestHandleCheckoutSessionUnpaidIsIgnored(t *testing.T) {
	stub := &stubPayments{}
	svc := newTestService(t, stub)

	event := sessionEvent(t, stripe.EventTypeCheckoutSessionCompleted, map[string]any{
		"id":                  "cs_3",
		"client_reference_id": uuid.NewString(),
		"payment_status":      "unpaid",
	})
	if err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("handle event: %v", err)
	}
	if len(stub.calls) != 0 {
		t.Fatalf("expected no confirmation, got %+v", stub.calls)
	}
}

func TestHandleCheckoutSessionMissingReference(t *testing.T) {
	svc := newTestService(t, &stubPayments{})
	event := sessionEvent(t, stripe.EventTypeCheckoutSessionCompleted, map[string]any{
		"id":             "cs_4",
		"payment_status": "paid",
	})
	err := svc.HandleEvent(context.Background(), event)
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestHandleEventPropagatesConfirmFailure(t *testing.T) {
	stub := &stubPayments{err: errors.New("db down")}
	svc := newTestService(t, stub)
	event := sessionEvent(t, stripe.EventTypeCheckoutSessionCompleted, map[string]any{
		"id":                  "cs_5",
		"client_reference_id": uuid.NewString(),
		"payment_status":      "paid",
	})
	if err := svc.HandleEvent(context.Background(), event); err == nil {
		t.Fatal("expected error")
	}
}

func TestHandleEventIgnoresOtherTypes(t *testing.T) {
	stub := &stubPayments{}
	svc := newTestService(t, stub)
	event := sessionEvent(t, stripe.EventTypeInvoicePaid, map[string]any{"id": "in_1"})
	if err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := svc.HandleEvent(context.Background(), nil); err == nil {
		t.Fatal("expected error for nil event")
	}
}

type stubTracker struct {
	seen    map[string]bool
	deleted []string
}

func (s *stubTracker) CheckAndMarkProcessed(_ context.Context, consumer, eventID string) (bool, error) {
	key := consumer + ":" + eventID
	if s.seen[key] {
		return true, nil
	}
	s.seen[key] = true
	return false, nil
}

func (s *stubTracker) Delete(_ context.Context, consumer, eventID string) error {
	delete(s.seen, consumer+":"+eventID)
	s.deleted = append(s.deleted, eventID)
	return nil
}

func TestIdempotencyGuard(t *testing.T) {
	tracker := &stubTracker{seen: map[string]bool{}}
	guard, err := NewIdempotencyGuard(tracker)
	if err != nil {
		t.Fatalf("new guard: %v", err)
	}
	ctx := context.Background()

	dup, err := guard.CheckAndMark(ctx, "evt_1")
	if err != nil || dup {
		t.Fatalf("first delivery should pass, dup=%v err=%v", dup, err)
	}
	dup, _ = guard.CheckAndMark(ctx, "evt_1")
	if !dup {
		t.Fatal("second delivery should be a duplicate")
	}
	if err := guard.Delete(ctx, "evt_1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	dup, _ = guard.CheckAndMark(ctx, "evt_1")
	if dup {
		t.Fatal("released event should be processed again")
	}
	if _, err := guard.CheckAndMark(ctx, ""); err == nil {
		t.Fatal("expected error for empty event id")
	}
	if _, err := NewIdempotencyGuard(nil); err == nil {
		t.Fatal("expected error for nil tracker")
	}
}

func TestHandleLatePaymentForCanceledOrderSucceeds(t *testing.T) {
	stub := &stubPayments{canceled: true}
	svc := newTestService(t, stub)

	event := sessionEvent(t, stripe.EventTypeCheckoutSessionCompleted, map[string]any{
		"id":                  "cs_late",
		"client_reference_id": uuid.NewString(),
		"payment_status":      "paid",
		"payment_intent":      "pi_late",
	})
	if err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("late payment should be acknowledged, got %v", err)
	}
	if len(stub.calls) != 1 {
		t.Fatalf("expected one confirmation, got %d", len(stub.calls))
	}
}
