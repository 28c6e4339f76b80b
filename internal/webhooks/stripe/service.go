package stripewebhook

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"

	"github.com/angelmondragon/storefront-backend/internal/payments"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

type paymentConfirmer interface {
	ConfirmPayment(ctx context.Context, orderID uuid.UUID, tradeID string) (*payments.Confirmation, error)
}

type ServiceParams struct {
	Payments paymentConfirmer
	Logger   *logger.Logger
}

// Service applies verified Stripe events to orders.
type Service struct {
	payments paymentConfirmer
	logg     *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Payments == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payment service required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	return &Service{payments: params.Payments, logg: params.Logger}, nil
}

func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) error {
	if event == nil || event.Data == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}

	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted, stripe.EventTypeCheckoutSessionAsyncPaymentSucceeded:
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode checkout session event")
		}
		if sess.PaymentStatus == stripe.CheckoutSessionPaymentStatusUnpaid {
			s.logg.Info(s.logg.WithField(ctx, "session_id", sess.ID), "checkout session completed without payment")
			return nil
		}
		return s.confirm(ctx, &sess)
	default:
		return nil
	}
}

func (s *Service) confirm(ctx context.Context, sess *stripe.CheckoutSession) error {
	orderID, err := OrderIDFromSession(sess)
	if err != nil {
		return err
	}
	tradeID := TradeIDFromSession(sess)
	result, err := s.payments.ConfirmPayment(ctx, orderID, tradeID)
	if err != nil {
		return err
	}
	switch {
	case result.OrderCanceled:
		s.logg.Warn(s.logg.WithFields(ctx, map[string]any{"order_id": orderID.String(), "trade_id": tradeID}), "late payment acknowledged for canceled order")
	case result.Duplicate:
		s.logg.Info(s.logg.WithOrderID(ctx, orderID.String()), "payment already confirmed")
	}
	return nil
}

// OrderIDFromSession reads the order id from client_reference_id, falling
// back to the order_id metadata entry.
func OrderIDFromSession(sess *stripe.CheckoutSession) (uuid.UUID, error) {
	raw := strings.TrimSpace(sess.ClientReferenceID)
	if raw == "" && sess.Metadata != nil {
		raw = strings.TrimSpace(sess.Metadata["order_id"])
	}
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "order reference missing from checkout session")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order reference")
	}
	return id, nil
}

// TradeIDFromSession prefers the payment intent id and uses the session id
// when the intent was not expanded onto the event.
func TradeIDFromSession(sess *stripe.CheckoutSession) string {
	if sess.PaymentIntent != nil && sess.PaymentIntent.ID != "" {
		return sess.PaymentIntent.ID
	}
	return sess.ID
}
