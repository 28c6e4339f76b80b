package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
)

// Repository defines persistence operations for orders and their lines.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateOrder(ctx context.Context, order *models.Order) error
	CreateLines(ctx context.Context, lines []models.OrderLine) error
	UpdateTotals(ctx context.Context, orderID uuid.UUID, totalCount int, totalAmount decimal.Decimal) error
	FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	FindOwnedOrder(ctx context.Context, userID, orderID uuid.UUID) (*models.Order, error)
	ListUserOrders(ctx context.Context, userID uuid.UUID, params pagination.Params) ([]models.Order, error)
	FindUnpaidBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error)
	TransitionStatus(ctx context.Context, orderID uuid.UUID, from, to enums.OrderStatus) (bool, error)
	FindLine(ctx context.Context, orderID, itemID uuid.UUID) (*models.OrderLine, error)
	ListUncommentedLines(ctx context.Context, orderID uuid.UUID) ([]models.OrderLine, error)
	CountUncommentedLines(ctx context.Context, orderID uuid.UUID) (int64, error)
	MarkLineCommented(ctx context.Context, lineID uuid.UUID, input LineComment) (bool, error)
	ListItemComments(ctx context.Context, itemID uuid.UUID, limit int) ([]ItemCommentRow, error)
}

// LineComment is the review written against one order line.
type LineComment struct {
	Comment   string
	Score     int
	Anonymous bool
}

// ItemCommentRow is a commented line joined with its author.
type ItemCommentRow struct {
	LineID      uuid.UUID `gorm:"column:id"`
	Comment     string    `gorm:"column:comment"`
	Score       int       `gorm:"column:score"`
	IsAnonymous bool      `gorm:"column:is_anonymous"`
	Username    string    `gorm:"column:username"`
	UpdatedAt   time.Time `gorm:"column:updated_at"`
}
