package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Payment records a confirmed gateway settlement; one per order.
type Payment struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	OrderID   uuid.UUID `gorm:"column:order_id;type:uuid;not null;uniqueIndex"`
	TradeID   string    `gorm:"column:trade_id;not null;uniqueIndex"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (p *Payment) BeforeCreate(*gorm.DB) error {
	ensureID(&p.ID)
	return nil
}
