package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Item is a sellable stock keeping unit. Stock is never negative; the
// migration backs this with a check constraint.
type Item struct {
	ID              uuid.UUID       `gorm:"type:uuid;primaryKey"`
	ProductID       uuid.UUID       `gorm:"column:product_id;type:uuid;not null;index"`
	Name            string          `gorm:"column:name;not null"`
	DefaultImageURL string          `gorm:"column:default_image_url"`
	Price           decimal.Decimal `gorm:"column:price;type:numeric(10,2);not null"`
	Stock           int             `gorm:"column:stock;not null;default:0"`
	Sales           int             `gorm:"column:sales;not null;default:0"`
	CommentCount    int             `gorm:"column:comment_count;not null;default:0"`
	IsLaunched      bool            `gorm:"column:is_launched;not null;default:true"`
	CreatedAt       time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (i *Item) BeforeCreate(*gorm.DB) error {
	ensureID(&i.ID)
	return nil
}
