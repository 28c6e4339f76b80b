package checkout

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/internal/checkout/helpers"
	"github.com/angelmondragon/storefront-backend/internal/checkout/reservation"
	"github.com/angelmondragon/storefront-backend/internal/items"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type addressLookup interface {
	GetOwned(ctx context.Context, userID, addressID uuid.UUID) (*models.Address, error)
}

// SelectedCart is the slice of cart behavior checkout needs: read the entries
// and drop the ones that became order lines.
type SelectedCart interface {
	Entries(ctx context.Context) ([]cart.Entry, error)
	RemoveItems(ctx context.Context, itemIDs ...uuid.UUID) error
}

// CartOpener resolves the authenticated cart for a user.
type CartOpener interface {
	OpenCart(userID uuid.UUID) (SelectedCart, error)
}

// CartOpenerFunc adapts a plain function to CartOpener.
type CartOpenerFunc func(userID uuid.UUID) (SelectedCart, error)

func (f CartOpenerFunc) OpenCart(userID uuid.UUID) (SelectedCart, error) {
	return f(userID)
}

// PlaceOrderInput is the client supplied part of a checkout.
type PlaceOrderInput struct {
	AddressID uuid.UUID       `json:"address_id" validate:"required"`
	PayMethod enums.PayMethod `json:"pay_method" validate:"required"`
}

// SettlementItem is one selected entry priced at the current catalog price.
type SettlementItem struct {
	ID              uuid.UUID       `json:"id"`
	Name            string          `json:"name"`
	DefaultImageURL string          `json:"default_image_url"`
	Price           decimal.Decimal `json:"price"`
	Count           int             `json:"count"`
}

// Settlement previews what checkout would charge.
type Settlement struct {
	Freight decimal.Decimal  `json:"freight"`
	Items   []SettlementItem `json:"items"`
}

// Service executes checkout orchestration.
type Service interface {
	Settlement(ctx context.Context, userID uuid.UUID) (*Settlement, error)
	PlaceOrder(ctx context.Context, userID uuid.UUID, input PlaceOrderInput) (*orders.OrderDTO, error)
}

// ServiceParams wires checkout dependencies.
type ServiceParams struct {
	Tx        txRunner
	Carts     CartOpener
	Addresses addressLookup
	Items     *items.Repository
	Orders    orders.Repository
	Outbox    outboxPublisher
	Freight   decimal.Decimal
	Metrics   *metrics.CheckoutMetrics
	Logger    *logger.Logger
}

type service struct {
	tx        txRunner
	carts     CartOpener
	addresses addressLookup
	items     *items.Repository
	orders    orders.Repository
	outbox    outboxPublisher
	freight   decimal.Decimal
	metrics   *metrics.CheckoutMetrics
	logg      *logger.Logger
	now       func() time.Time
}

// NewService builds the checkout service.
func NewService(params ServiceParams) (Service, error) {
	if params.Tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if params.Carts == nil {
		return nil, fmt.Errorf("cart opener required")
	}
	if params.Addresses == nil {
		return nil, fmt.Errorf("address service required")
	}
	if params.Items == nil {
		return nil, fmt.Errorf("items repository required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Freight.IsNegative() {
		return nil, fmt.Errorf("freight must not be negative")
	}
	return &service{
		tx:        params.Tx,
		carts:     params.Carts,
		addresses: params.Addresses,
		items:     params.Items,
		orders:    params.Orders,
		outbox:    params.Outbox,
		freight:   params.Freight,
		metrics:   params.Metrics,
		logg:      params.Logger,
		now:       time.Now,
	}, nil
}

func (s *service) Settlement(ctx context.Context, userID uuid.UUID) (*Settlement, error) {
	_, selected, err := s.selectedEntries(ctx, userID)
	if err != nil {
		return nil, err
	}

	result := &Settlement{Freight: s.freight, Items: []SettlementItem{}}
	if len(selected) == 0 {
		return result, nil
	}
	catalog, err := s.items.FindByIDs(ctx, entryIDs(selected))
	if err != nil {
		return nil, err
	}
	for _, entry := range selected {
		item, ok := catalog[entry.ItemID]
		if !ok {
			continue
		}
		result.Items = append(result.Items, SettlementItem{
			ID:              item.ID,
			Name:            item.Name,
			DefaultImageURL: item.DefaultImageURL,
			Price:           item.Price,
			Count:           entry.Count,
		})
	}
	return result, nil
}

func (s *service) PlaceOrder(ctx context.Context, userID uuid.UUID, input PlaceOrderInput) (*orders.OrderDTO, error) {
	started := s.now()
	order, err := s.placeOrder(ctx, userID, input)
	switch {
	case err == nil:
		s.metrics.IncPlaced(string(input.PayMethod))
		s.metrics.ObserveDuration(metrics.CheckoutResultSuccess, time.Since(started))
	case pkgerrors.IsCode(err, pkgerrors.CodeOutOfStock):
		s.metrics.IncOutOfStock()
		s.metrics.ObserveDuration(metrics.CheckoutResultOutOfStock, time.Since(started))
	default:
		s.metrics.ObserveDuration(metrics.CheckoutResultError, time.Since(started))
	}
	return order, err
}

func (s *service) placeOrder(ctx context.Context, userID uuid.UUID, input PlaceOrderInput) (*orders.OrderDTO, error) {
	if !input.PayMethod.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid pay method").
			WithDetails(map[string]any{"pay_method": input.PayMethod})
	}
	if input.AddressID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "address id required")
	}
	if _, err := s.addresses.GetOwned(ctx, userID, input.AddressID); err != nil {
		return nil, err
	}

	store, selected, err := s.selectedEntries(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(selected) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "no cart items selected")
	}

	var result *models.Order
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		ordersRepo := s.orders.WithTx(tx)
		itemsRepo := s.items.WithTx(tx)

		order := &models.Order{
			ID:          uuid.New(),
			UserID:      userID,
			AddressID:   input.AddressID,
			TotalAmount: decimal.Zero,
			Freight:     s.freight,
			PayMethod:   input.PayMethod,
			Status:      input.PayMethod.InitialOrderStatus(),
		}
		if err := ordersRepo.CreateOrder(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create order")
		}

		catalog, err := itemsRepo.FindByIDs(ctx, entryIDs(selected))
		if err != nil {
			return err
		}
		requests := make([]reservation.DebitRequest, 0, len(selected))
		lines := make([]models.OrderLine, 0, len(selected))
		for _, entry := range selected {
			item, ok := catalog[entry.ItemID]
			if !ok {
				return pkgerrors.New(pkgerrors.CodeNotFound, "item not found").
					WithDetails(map[string]any{"item_id": entry.ItemID})
			}
			requests = append(requests, reservation.DebitRequest{
				ItemID:    item.ID,
				ProductID: item.ProductID,
				Qty:       entry.Count,
				Available: item.Stock,
			})
			lines = append(lines, helpers.BuildLine(order.ID, item, entry.Count))
		}

		if err := reservation.DebitInventory(ctx, itemsRepo, requests); err != nil {
			return err
		}
		if err := ordersRepo.CreateLines(ctx, lines); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create order lines")
		}

		totals := helpers.ComputeTotals(lines, s.freight)
		if err := ordersRepo.UpdateTotals(ctx, order.ID, totals.TotalCount, totals.TotalAmount); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update order totals")
		}
		order.TotalCount = totals.TotalCount
		order.TotalAmount = totals.TotalAmount

		for i := range lines {
			item := catalog[lines[i].ItemID]
			lines[i].Item = &item
		}
		order.Lines = lines

		if err := s.emitOrderCreated(ctx, tx, order); err != nil {
			return err
		}
		result = order
		return nil
	})
	if err != nil {
		return nil, err
	}

	ctx = s.logg.WithOrderID(ctx, result.ID.String())
	if err := store.RemoveItems(ctx, entryIDs(selected)...); err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "order placed but cart cleanup failed")
	}
	s.logg.Info(ctx, "order placed")

	dto := orders.FromModel(*result)
	return &dto, nil
}

func (s *service) selectedEntries(ctx context.Context, userID uuid.UUID) (SelectedCart, []cart.Entry, error) {
	if userID == uuid.Nil {
		return nil, nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	store, err := s.carts.OpenCart(userID)
	if err != nil {
		return nil, nil, err
	}
	entries, err := store.Entries(ctx)
	if err != nil {
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read cart")
	}
	return store, cart.Selected(entries), nil
}

func (s *service) emitOrderCreated(ctx context.Context, tx *gorm.DB, order *models.Order) error {
	snapshots := make([]payloads.OrderLineSnapshot, 0, len(order.Lines))
	for _, line := range order.Lines {
		snapshots = append(snapshots, payloads.OrderLineSnapshot{
			ItemID:    line.ItemID,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
		})
	}
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         &outbox.ActorRef{UserID: order.UserID, Role: enums.UserRoleCustomer},
		Data: payloads.OrderCreatedEvent{
			OrderID:     order.ID,
			UserID:      order.UserID,
			PayMethod:   order.PayMethod,
			Status:      order.Status,
			TotalCount:  order.TotalCount,
			TotalAmount: order.TotalAmount,
			Freight:     order.Freight,
			Lines:       snapshots,
		},
		Version: 1,
	})
}

func entryIDs(entries []cart.Entry) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(entries))
	for _, entry := range entries {
		ids = append(ids, entry.ItemID)
	}
	return ids
}
