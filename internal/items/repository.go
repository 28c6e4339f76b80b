package items

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/repo"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

// Repository reads catalog items and applies the stock and counter mutations
// driven by checkout, order expiry and comments.
type Repository struct {
	repo.Base
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

// WithTx returns a repository bound to tx.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{Base: r.Base.WithTx(tx)}
}

// FindByID returns a NotFound error when the item does not exist.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Item, error) {
	var item models.Item
	if err := r.DB(ctx).First(&item, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "item not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load item")
	}
	return &item, nil
}

// FindByIDs loads every referenced item in one query. Missing ids are simply
// absent from the returned map.
func (r *Repository) FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Item, error) {
	out := make(map[uuid.UUID]models.Item, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []models.Item
	if err := r.DB(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load items")
	}
	for _, row := range rows {
		out[row.ID] = row
	}
	return out, nil
}

// DebitStock removes qty from stock and credits sales in a single conditional
// statement. It reports false when the row did not have enough stock.
func (r *Repository) DebitStock(ctx context.Context, itemID uuid.UUID, qty int) (bool, error) {
	if qty <= 0 {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "debit quantity must be positive")
	}
	res := r.DB(ctx).Exec(`
		UPDATE items
		SET stock = stock - ?,
			sales = sales + ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND stock >= ?
	`, qty, qty, itemID, qty)
	if res.Error != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeInternal, res.Error, "debit item stock")
	}
	return res.RowsAffected == 1, nil
}

// Restock returns qty to stock and takes it back out of sales, flooring sales at zero.
func (r *Repository) Restock(ctx context.Context, itemID uuid.UUID, qty int) error {
	if qty <= 0 {
		return nil
	}
	res := r.DB(ctx).Exec(`
		UPDATE items
		SET stock = stock + ?,
			sales = CASE WHEN sales >= ? THEN sales - ? ELSE 0 END,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, qty, qty, qty, itemID)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, res.Error, "restock item")
	}
	return nil
}

// AdjustProductSales moves the product level sales counter by delta, flooring at zero.
func (r *Repository) AdjustProductSales(ctx context.Context, productID uuid.UUID, delta int) error {
	if delta == 0 {
		return nil
	}
	res := r.DB(ctx).Exec(`
		UPDATE products
		SET sales = CASE WHEN sales + ? >= 0 THEN sales + ? ELSE 0 END,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, delta, delta, productID)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, res.Error, "adjust product sales")
	}
	return nil
}

func (r *Repository) IncrementCommentCount(ctx context.Context, itemID uuid.UUID) error {
	res := r.DB(ctx).Exec(`
		UPDATE items
		SET comment_count = comment_count + 1,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, itemID)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, res.Error, "increment comment count")
	}
	return nil
}
