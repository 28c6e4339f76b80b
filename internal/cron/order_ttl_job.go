package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/items"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
)

const (
	defaultUnpaidTTL  = 30 * time.Minute
	orderTTLBatchSize = 200
	expiredReason     = "payment_timeout"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// OrderTTLJobParams configure the unpaid order expiry job.
type OrderTTLJobParams struct {
	Logger    *logger.Logger
	DB        txRunner
	Orders    orders.Repository
	Items     *items.Repository
	Outbox    outboxEmitter
	UnpaidTTL time.Duration
}

// NewOrderTTLJob cancels orders left UNPAID past the TTL and puts their
// quantities back on the shelf.
func NewOrderTTLJob(params OrderTTLJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Items == nil {
		return nil, fmt.Errorf("items repository required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox service required")
	}
	ttl := params.UnpaidTTL
	if ttl <= 0 {
		ttl = defaultUnpaidTTL
	}
	return &orderTTLJob{
		logg:   params.Logger,
		db:     params.DB,
		orders: params.Orders,
		items:  params.Items,
		outbox: params.Outbox,
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

type orderTTLJob struct {
	logg   *logger.Logger
	db     txRunner
	orders orders.Repository
	items  *items.Repository
	outbox outboxEmitter
	ttl    time.Duration
	now    func() time.Time
}

func (j *orderTTLJob) Name() string { return "order-ttl" }

func (j *orderTTLJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.ttl)
	stale, err := j.orders.FindUnpaidBefore(ctx, cutoff, orderTTLBatchSize)
	if err != nil {
		return fmt.Errorf("query unpaid orders: %w", err)
	}

	var errs error
	canceled := 0
	for i := range stale {
		ok, err := j.cancel(ctx, stale[i])
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("cancel order %s: %w", stale[i].ID, err))
			continue
		}
		if ok {
			canceled++
		}
	}
	if canceled > 0 || errs != nil {
		j.logg.Info(j.logg.WithFields(ctx, map[string]any{
			"candidates": len(stale),
			"canceled":   canceled,
			"cutoff":     cutoff,
		}), "unpaid order expiry pass complete")
	}
	return errs
}

// cancel runs in its own transaction so one bad order does not hold back the
// rest. It reports false when the order was paid in the meantime.
func (j *orderTTLJob) cancel(ctx context.Context, order models.Order) (bool, error) {
	canceled := false
	err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		moved, err := j.orders.WithTx(tx).TransitionStatus(ctx, order.ID, enums.OrderStatusUnpaid, enums.OrderStatusCanceled)
		if err != nil {
			return err
		}
		if !moved {
			return nil
		}

		itemsRepo := j.items.WithTx(tx)
		for _, line := range order.Lines {
			if err := itemsRepo.Restock(ctx, line.ItemID, line.Quantity); err != nil {
				return err
			}
			if line.Item != nil {
				if err := itemsRepo.AdjustProductSales(ctx, line.Item.ProductID, -line.Quantity); err != nil {
					return err
				}
			}
		}

		now := j.now().UTC()
		canceled = true
		return j.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCanceled,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Version:       1,
			OccurredAt:    now,
			Data: payloads.OrderCanceledEvent{
				OrderID:    order.ID,
				UserID:     order.UserID,
				CanceledAt: now,
				Reason:     expiredReason,
			},
		})
	})
	if err != nil {
		return false, err
	}
	return canceled, nil
}
