package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service covers order reads and the shipping and receipt transitions.
type Service interface {
	List(ctx context.Context, userID uuid.UUID, params pagination.Params) (pagination.Page[OrderDTO], error)
	Get(ctx context.Context, userID, orderID uuid.UUID) (*OrderDTO, error)
	Ship(ctx context.Context, staffID, orderID uuid.UUID) (*OrderDTO, error)
	ConfirmReceipt(ctx context.Context, userID, orderID uuid.UUID) (*OrderDTO, error)
}

type service struct {
	repo   Repository
	tx     txRunner
	outbox outboxPublisher
	logg   *logger.Logger
}

// NewService builds an order service with the required dependencies.
func NewService(repo Repository, tx txRunner, outbox outboxPublisher, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, tx: tx, outbox: outbox, logg: logg}, nil
}

func (s *service) List(ctx context.Context, userID uuid.UUID, params pagination.Params) (pagination.Page[OrderDTO], error) {
	if userID == uuid.Nil {
		return pagination.Page[OrderDTO]{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if _, err := pagination.ParseCursor(params.Cursor); err != nil {
		return pagination.Page[OrderDTO]{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, err := s.repo.ListUserOrders(ctx, userID, params)
	if err != nil {
		return pagination.Page[OrderDTO]{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	dtos := make([]OrderDTO, 0, len(rows))
	for _, row := range rows {
		dtos = append(dtos, FromModel(row))
	}
	return pagination.PageFrom(dtos, params.Limit, func(o OrderDTO) pagination.Cursor {
		return pagination.Cursor{CreatedAt: o.CreatedAt, ID: o.ID}
	}), nil
}

func (s *service) Get(ctx context.Context, userID, orderID uuid.UUID) (*OrderDTO, error) {
	order, err := loadOwned(ctx, s.repo, userID, orderID)
	if err != nil {
		return nil, err
	}
	dto := FromModel(*order)
	return &dto, nil
}

func (s *service) Ship(ctx context.Context, staffID, orderID uuid.UUID) (*OrderDTO, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	var result *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindOrder(ctx, orderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		actor := &outbox.ActorRef{UserID: staffID, Role: enums.UserRoleStaff}
		if err := Transition(ctx, repo, s.outbox, tx, order, enums.OrderStatusUnreceived, enums.EventOrderShipped, actor); err != nil {
			return err
		}
		result = order
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logg.Info(s.logg.WithOrderID(ctx, orderID.String()), "order shipped")
	return s.Get(ctx, result.UserID, orderID)
}

func (s *service) ConfirmReceipt(ctx context.Context, userID, orderID uuid.UUID) (*OrderDTO, error) {
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := loadOwned(ctx, repo, userID, orderID)
		if err != nil {
			return err
		}
		actor := &outbox.ActorRef{UserID: userID, Role: enums.UserRoleCustomer}
		return Transition(ctx, repo, s.outbox, tx, order, enums.OrderStatusUncommented, enums.EventOrderReceived, actor)
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, userID, orderID)
}

// Transition moves order to next and queues the matching status event in tx.
// Disallowed or lost transitions are state conflicts.
func Transition(ctx context.Context, repo Repository, emitter outboxPublisher, tx *gorm.DB, order *models.Order, next enums.OrderStatus, eventType enums.OutboxEventType, actor *outbox.ActorRef) error {
	from := order.Status
	if !from.CanTransitionTo(next) {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "order status transition not allowed").
			WithDetails(map[string]any{"from": from, "to": next})
	}
	moved, err := repo.TransitionStatus(ctx, order.ID, from, next)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
	}
	if !moved {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "order status changed concurrently")
	}
	order.Status = next

	now := time.Now().UTC()
	return emitter.Emit(ctx, tx, outbox.DomainEvent{
		EventType:   eventType,
		AggregateID: order.ID,
		Actor:       actor,
		OccurredAt:  now,
		Data: payloads.OrderStatusChangedEvent{
			OrderID:   order.ID,
			UserID:    order.UserID,
			From:      from,
			To:        next,
			ChangedAt: now,
		},
	})
}

func loadOwned(ctx context.Context, repo Repository, userID, orderID uuid.UUID) (*models.Order, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := repo.FindOwnedOrder(ctx, userID, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}
