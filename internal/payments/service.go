package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	stripego "github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/storefront-backend/pkg/stripe"
)

const (
	freightLineName  = "Freight"
	defaultUnpaidTTL = 30 * time.Minute
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Gateway opens hosted payment pages.
type Gateway interface {
	CreateCheckoutSession(ctx context.Context, input stripe.CheckoutSessionInput) (*stripego.CheckoutSession, error)
}

// PaymentLink is what the client follows to pay.
type PaymentLink struct {
	OrderID   uuid.UUID `json:"order_id"`
	SessionID string    `json:"session_id"`
	URL       string    `json:"url"`
}

// Confirmation is the outcome of ConfirmPayment. Duplicate is set when the
// order had already been paid. OrderCanceled means the charge arrived after
// the order expired: the trade is recorded for refund and the order stays canceled.
type Confirmation struct {
	OrderID       uuid.UUID `json:"order_id"`
	TradeID       string    `json:"trade_id"`
	Duplicate     bool      `json:"duplicate"`
	OrderCanceled bool      `json:"order_canceled"`
}

type Service interface {
	CreatePaymentLink(ctx context.Context, userID, orderID uuid.UUID) (*PaymentLink, error)
	ConfirmPayment(ctx context.Context, orderID uuid.UUID, tradeID string) (*Confirmation, error)
}

// ServiceParams wires the payment service.
type ServiceParams struct {
	Tx       txRunner
	Orders   orders.Repository
	Payments *Repository
	Gateway  Gateway
	Outbox   outboxPublisher
	Currency string
	// UnpaidTTL matches the expiry job so hosted pages close with the order.
	UnpaidTTL time.Duration
	Logger    *logger.Logger
}

type service struct {
	tx       txRunner
	orders   orders.Repository
	payments *Repository
	gateway  Gateway
	outbox   outboxPublisher
	currency  string
	unpaidTTL time.Duration
	logg      *logger.Logger
}

func NewService(params ServiceParams) (Service, error) {
	if params.Tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Payments == nil {
		return nil, fmt.Errorf("payments repository required")
	}
	if params.Gateway == nil {
		return nil, fmt.Errorf("payment gateway required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	currency := params.Currency
	if currency == "" {
		currency = "usd"
	}
	unpaidTTL := params.UnpaidTTL
	if unpaidTTL <= 0 {
		unpaidTTL = defaultUnpaidTTL
	}
	return &service{
		tx:        params.Tx,
		orders:    params.Orders,
		payments:  params.Payments,
		gateway:   params.Gateway,
		outbox:    params.Outbox,
		currency:  currency,
		unpaidTTL: unpaidTTL,
		logg:      params.Logger,
	}, nil
}

func (s *service) CreatePaymentLink(ctx context.Context, userID, orderID uuid.UUID) (*PaymentLink, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	order, err := s.orders.FindOwnedOrder(ctx, userID, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if order.Status != enums.OrderStatusUnpaid {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order is not awaiting payment").
			WithDetails(map[string]any{"status": order.Status})
	}

	sessionInput := stripe.CheckoutSessionInput{
		OrderID:   order.ID.String(),
		Currency:  s.currency,
		Lines:     checkoutLines(order),
		ExpiresAt: order.CreatedAt.Add(s.unpaidTTL),
	}
	sess, err := s.gateway.CreateCheckoutSession(ctx, sessionInput)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create checkout session")
	}
	s.logg.Info(s.logg.WithOrderID(ctx, order.ID.String()), "payment link created")
	return &PaymentLink{OrderID: order.ID, SessionID: sess.ID, URL: sess.URL}, nil
}

func (s *service) ConfirmPayment(ctx context.Context, orderID uuid.UUID, tradeID string) (*Confirmation, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if tradeID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "trade id required")
	}
	if existing, err := s.existing(ctx, orderID); existing != nil || err != nil {
		return existing, err
	}

	canceled := false
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		ordersRepo := s.orders.WithTx(tx)
		order, err := ordersRepo.FindOrder(ctx, orderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		switch order.Status {
		case enums.OrderStatusUnpaid:
		case enums.OrderStatusCanceled:
			// stock was already released; keep the trade so the charge can be refunded
			canceled = true
			return s.payments.WithTx(tx).Create(ctx, &models.Payment{OrderID: order.ID, TradeID: tradeID})
		default:
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order is not awaiting payment").
				WithDetails(map[string]any{"status": order.Status})
		}

		if err := s.payments.WithTx(tx).Create(ctx, &models.Payment{OrderID: order.ID, TradeID: tradeID}); err != nil {
			return err
		}
		moved, err := ordersRepo.TransitionStatus(ctx, order.ID, enums.OrderStatusUnpaid, enums.OrderStatusUnsent)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
		}
		if !moved {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order status changed concurrently")
		}

		now := time.Now().UTC()
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderPaid,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         &outbox.ActorRef{UserID: order.UserID, Role: enums.UserRoleCustomer},
			OccurredAt:    now,
			Data: payloads.OrderPaidEvent{
				OrderID: order.ID,
				UserID:  order.UserID,
				TradeID: tradeID,
				Amount:  order.TotalAmount,
				PaidAt:  now,
			},
		})
	})
	if err != nil {
		if db.IsUniqueViolation(err, "") {
			// a concurrent confirmation won the insert
			if existing, lookupErr := s.existing(ctx, orderID); existing != nil {
				return existing, nil
			} else if lookupErr != nil {
				return nil, lookupErr
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "trade id already recorded")
		}
		return nil, err
	}

	logCtx := s.logg.WithFields(s.logg.WithOrderID(ctx, orderID.String()), map[string]any{"trade_id": tradeID})
	if canceled {
		s.logg.Warn(logCtx, "payment received for canceled order, refund required")
		return &Confirmation{OrderID: orderID, TradeID: tradeID, OrderCanceled: true}, nil
	}
	s.logg.Info(logCtx, "payment confirmed")
	return &Confirmation{OrderID: orderID, TradeID: tradeID}, nil
}

func (s *service) existing(ctx context.Context, orderID uuid.UUID) (*Confirmation, error) {
	payment, err := s.payments.FindByOrder(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
	}
	if payment == nil {
		return nil, nil
	}
	return &Confirmation{OrderID: orderID, TradeID: payment.TradeID, Duplicate: true}, nil
}

// checkoutLines prices the hosted page so it sums to the order total.
func checkoutLines(order *models.Order) []stripe.CheckoutLine {
	lines := make([]stripe.CheckoutLine, 0, len(order.Lines)+1)
	for _, line := range order.Lines {
		name := line.ItemID.String()
		if line.Item != nil && line.Item.Name != "" {
			name = line.Item.Name
		}
		lines = append(lines, stripe.CheckoutLine{
			Name:       name,
			UnitAmount: toMinorUnits(line.UnitPrice),
			Quantity:   int64(line.Quantity),
		})
	}
	if order.Freight.IsPositive() {
		lines = append(lines, stripe.CheckoutLine{
			Name:       freightLineName,
			UnitAmount: toMinorUnits(order.Freight),
			Quantity:   1,
		})
	}
	return lines
}

func toMinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}
