package models

import (
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Order is created by checkout together with its lines.
type Order struct {
	ID          uuid.UUID         `gorm:"type:uuid;primaryKey"`
	UserID      uuid.UUID         `gorm:"column:user_id;type:uuid;not null;index"`
	AddressID   uuid.UUID         `gorm:"column:address_id;type:uuid;not null"`
	TotalCount  int               `gorm:"column:total_count;not null;default:0"`
	TotalAmount decimal.Decimal   `gorm:"column:total_amount;type:numeric(10,2);not null"`
	Freight     decimal.Decimal   `gorm:"column:freight;type:numeric(10,2);not null"`
	PayMethod   enums.PayMethod   `gorm:"column:pay_method;type:pay_method_enum;not null"`
	Status      enums.OrderStatus `gorm:"column:status;type:order_status_enum;not null"`
	CreatedAt   time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time         `gorm:"column:updated_at;autoUpdateTime"`

	Lines []OrderLine `gorm:"foreignKey:OrderID;references:ID"`
}

func (o *Order) BeforeCreate(*gorm.DB) error {
	ensureID(&o.ID)
	return nil
}
