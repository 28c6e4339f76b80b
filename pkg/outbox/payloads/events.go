package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// OrderLineSnapshot mirrors one committed order line.
type OrderLineSnapshot struct {
	ItemID    uuid.UUID       `json:"item_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// OrderCreatedEvent is emitted once checkout committed the order and debited stock.
type OrderCreatedEvent struct {
	OrderID     uuid.UUID           `json:"order_id"`
	UserID      uuid.UUID           `json:"user_id"`
	PayMethod   enums.PayMethod     `json:"pay_method"`
	Status      enums.OrderStatus   `json:"status"`
	TotalCount  int                 `json:"total_count"`
	TotalAmount decimal.Decimal     `json:"total_amount"`
	Freight     decimal.Decimal     `json:"freight"`
	Lines       []OrderLineSnapshot `json:"lines"`
}

// OrderPaidEvent is emitted when a card payment settles an UNPAID order.
type OrderPaidEvent struct {
	OrderID uuid.UUID       `json:"order_id"`
	UserID  uuid.UUID       `json:"user_id"`
	TradeID string          `json:"trade_id"`
	Amount  decimal.Decimal `json:"amount"`
	PaidAt  time.Time       `json:"paid_at"`
}

// OrderStatusChangedEvent covers ship, receipt and completion transitions.
type OrderStatusChangedEvent struct {
	OrderID   uuid.UUID         `json:"order_id"`
	UserID    uuid.UUID         `json:"user_id"`
	From      enums.OrderStatus `json:"from"`
	To        enums.OrderStatus `json:"to"`
	ChangedAt time.Time         `json:"changed_at"`
}

// OrderCanceledEvent is emitted when an unpaid order expires and its stock is restored.
type OrderCanceledEvent struct {
	OrderID    uuid.UUID `json:"order_id"`
	UserID     uuid.UUID `json:"user_id"`
	CanceledAt time.Time `json:"canceled_at"`
	Reason     string    `json:"reason,omitempty"`
}
