package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Address is a shipping destination owned by a user.
type Address struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID    uuid.UUID `gorm:"column:user_id;type:uuid;not null;index"`
	Receiver  string    `gorm:"column:receiver;not null"`
	Province  string    `gorm:"column:province;not null"`
	City      string    `gorm:"column:city;not null"`
	District  string    `gorm:"column:district;not null"`
	Place     string    `gorm:"column:place;not null"`
	Mobile    string    `gorm:"column:mobile;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (a *Address) BeforeCreate(*gorm.DB) error {
	ensureID(&a.ID)
	return nil
}
