package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// OrderLine is one purchased item. Quantity and UnitPrice are a point in time
// copy and never change; the comment fields are filled in after delivery.
type OrderLine struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey"`
	OrderID     uuid.UUID       `gorm:"column:order_id;type:uuid;not null;index"`
	ItemID      uuid.UUID       `gorm:"column:item_id;type:uuid;not null;index"`
	Quantity    int             `gorm:"column:quantity;not null"`
	UnitPrice   decimal.Decimal `gorm:"column:unit_price;type:numeric(10,2);not null"`
	Comment     string          `gorm:"column:comment;not null;default:''"`
	Score       int             `gorm:"column:score;not null;default:5"`
	IsAnonymous bool            `gorm:"column:is_anonymous;not null;default:false"`
	IsCommented bool            `gorm:"column:is_commented;not null;default:false"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time       `gorm:"column:updated_at;autoUpdateTime"`

	Item *Item `gorm:"foreignKey:ItemID;references:ID"`
}

func (l *OrderLine) BeforeCreate(*gorm.DB) error {
	ensureID(&l.ID)
	return nil
}

// Subtotal returns unit price times quantity.
func (l OrderLine) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}
