package payments

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/repo"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
)

// Repository persists gateway confirmations.
type Repository struct {
	repo.Base
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{Base: r.Base.WithTx(tx)}
}

func (r *Repository) Create(ctx context.Context, payment *models.Payment) error {
	return r.DB(ctx).Create(payment).Error
}

// FindByOrder returns nil without error when the order has no payment yet.
func (r *Repository) FindByOrder(ctx context.Context, orderID uuid.UUID) (*models.Payment, error) {
	var found []models.Payment
	if err := r.DB(ctx).Where("order_id = ?", orderID).Limit(1).Find(&found).Error; err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, nil
	}
	return &found[0], nil
}
