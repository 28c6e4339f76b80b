package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// OrderDTO is the order shape returned by list and detail endpoints.
type OrderDTO struct {
	ID          uuid.UUID         `json:"id"`
	AddressID   uuid.UUID         `json:"address_id"`
	Status      enums.OrderStatus `json:"status"`
	PayMethod   enums.PayMethod   `json:"pay_method"`
	TotalCount  int               `json:"total_count"`
	TotalAmount decimal.Decimal   `json:"total_amount"`
	Freight     decimal.Decimal   `json:"freight"`
	CreatedAt   time.Time         `json:"created_at"`
	Lines       []OrderLineDTO    `json:"lines"`
}

// OrderLineDTO exposes the price snapshot taken at checkout.
type OrderLineDTO struct {
	ItemID          uuid.UUID       `json:"item_id"`
	Name            string          `json:"name"`
	DefaultImageURL string          `json:"default_image_url,omitempty"`
	Quantity        int             `json:"quantity"`
	UnitPrice       decimal.Decimal `json:"unit_price"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	IsCommented     bool            `json:"is_commented"`
}

func FromModel(order models.Order) OrderDTO {
	dto := OrderDTO{
		ID:          order.ID,
		AddressID:   order.AddressID,
		Status:      order.Status,
		PayMethod:   order.PayMethod,
		TotalCount:  order.TotalCount,
		TotalAmount: order.TotalAmount,
		Freight:     order.Freight,
		CreatedAt:   order.CreatedAt,
		Lines:       make([]OrderLineDTO, 0, len(order.Lines)),
	}
	for _, line := range order.Lines {
		lineDTO := OrderLineDTO{
			ItemID:      line.ItemID,
			Quantity:    line.Quantity,
			UnitPrice:   line.UnitPrice,
			Subtotal:    line.Subtotal(),
			IsCommented: line.IsCommented,
		}
		if line.Item != nil {
			lineDTO.Name = line.Item.Name
			lineDTO.DefaultImageURL = line.Item.DefaultImageURL
		}
		dto.Lines = append(dto.Lines, lineDTO)
	}
	return dto
}
