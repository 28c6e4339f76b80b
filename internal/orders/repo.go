package orders

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/repo"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
)

type repository struct {
	repo.Base
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{Base: r.Base.WithTx(tx)}
}

func (r *repository) CreateOrder(ctx context.Context, order *models.Order) error {
	return r.DB(ctx).Omit("Lines").Create(order).Error
}

func (r *repository) CreateLines(ctx context.Context, lines []models.OrderLine) error {
	if len(lines) == 0 {
		return nil
	}
	return r.DB(ctx).Omit("Item").Create(&lines).Error
}

func (r *repository) UpdateTotals(ctx context.Context, orderID uuid.UUID, totalCount int, totalAmount decimal.Decimal) error {
	return r.DB(ctx).
		Model(&models.Order{}).
		Where("id = ?", orderID).
		Updates(map[string]any{
			"total_count":  totalCount,
			"total_amount": totalAmount,
		}).Error
}

func (r *repository) FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.DB(ctx).
		Preload("Lines", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC, id ASC") }).
		Where("id = ?", orderID).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindOwnedOrder(ctx context.Context, userID, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.DB(ctx).
		Preload("Lines", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC, id ASC") }).
		Preload("Lines.Item").
		Where("id = ? AND user_id = ?", orderID, userID).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// ListUserOrders returns up to limit+1 orders, newest first, so callers can
// detect the next page.
func (r *repository) ListUserOrders(ctx context.Context, userID uuid.UUID, params pagination.Params) ([]models.Order, error) {
	query := r.DB(ctx).
		Preload("Lines", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC, id ASC") }).
		Preload("Lines.Item").
		Where("user_id = ?", userID)

	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, fmt.Errorf("parse cursor: %w", err)
	}
	if cursor != nil {
		query = query.Where("(created_at < ?) OR (created_at = ? AND id < ?)", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}

	var rows []models.Order
	err = query.
		Order("created_at DESC").
		Order("id DESC").
		Limit(pagination.LimitWithBuffer(params.Limit)).
		Find(&rows).Error
	return rows, err
}

func (r *repository) FindUnpaidBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error) {
	var rows []models.Order
	err := r.DB(ctx).
		Preload("Lines").
		Preload("Lines.Item").
		Where("status = ? AND created_at < ?", enums.OrderStatusUnpaid, cutoff).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// TransitionStatus moves the order only if it is still in from. It reports
// false when a concurrent writer already moved it.
func (r *repository) TransitionStatus(ctx context.Context, orderID uuid.UUID, from, to enums.OrderStatus) (bool, error) {
	res := r.DB(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status = ?", orderID, from).
		Update("status", to)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) FindLine(ctx context.Context, orderID, itemID uuid.UUID) (*models.OrderLine, error) {
	var line models.OrderLine
	err := r.DB(ctx).
		Where("order_id = ? AND item_id = ?", orderID, itemID).
		First(&line).Error
	if err != nil {
		return nil, err
	}
	return &line, nil
}

func (r *repository) ListUncommentedLines(ctx context.Context, orderID uuid.UUID) ([]models.OrderLine, error) {
	var lines []models.OrderLine
	err := r.DB(ctx).
		Preload("Item").
		Where("order_id = ? AND is_commented = ?", orderID, false).
		Order("created_at ASC, id ASC").
		Find(&lines).Error
	return lines, err
}

func (r *repository) CountUncommentedLines(ctx context.Context, orderID uuid.UUID) (int64, error) {
	var count int64
	err := r.DB(ctx).
		Model(&models.OrderLine{}).
		Where("order_id = ? AND is_commented = ?", orderID, false).
		Count(&count).Error
	return count, err
}

// MarkLineCommented writes the review only if the line was not commented yet.
func (r *repository) MarkLineCommented(ctx context.Context, lineID uuid.UUID, input LineComment) (bool, error) {
	res := r.DB(ctx).
		Model(&models.OrderLine{}).
		Where("id = ? AND is_commented = ?", lineID, false).
		Updates(map[string]any{
			"comment":      input.Comment,
			"score":        input.Score,
			"is_anonymous": input.Anonymous,
			"is_commented": true,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) ListItemComments(ctx context.Context, itemID uuid.UUID, limit int) ([]ItemCommentRow, error) {
	var rows []ItemCommentRow
	err := r.DB(ctx).
		Table("order_lines AS l").
		Select("l.id, l.comment, l.score, l.is_anonymous, u.username, l.updated_at").
		Joins("JOIN orders o ON o.id = l.order_id").
		Joins("JOIN users u ON u.id = o.user_id").
		Where("l.item_id = ? AND l.is_commented = ?", itemID, true).
		Order("l.updated_at DESC").
		Limit(pagination.NormalizeLimit(limit)).
		Scan(&rows).Error
	return rows, err
}
