package address

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/repo"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
)

type Repository struct {
	repo.Base
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

func (r *Repository) Create(ctx context.Context, address *models.Address) error {
	return r.DB(ctx).Create(address).Error
}

// FindOwned loads the address only when it belongs to userID.
func (r *Repository) FindOwned(ctx context.Context, userID, id uuid.UUID) (*models.Address, error) {
	var address models.Address
	if err := r.DB(ctx).Where("id = ? AND user_id = ?", id, userID).First(&address).Error; err != nil {
		return nil, err
	}
	return &address, nil
}

func (r *Repository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Address, error) {
	var rows []models.Address
	err := r.DB(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&rows).Error
	return rows, err
}
