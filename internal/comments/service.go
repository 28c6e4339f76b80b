package comments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/items"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
)

const (
	anonymousUsername = "***"
	maxCommentLength  = 500
	itemCommentLimit  = 30
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// SubmitInput is one review for one order line.
type SubmitInput struct {
	ItemID    uuid.UUID `json:"item_id" validate:"required"`
	Comment   string    `json:"comment" validate:"required"`
	Score     int       `json:"score" validate:"min=0,max=5"`
	Anonymous bool      `json:"is_anonymous"`
}

// UncommentedLine is a line still waiting for a review.
type UncommentedLine struct {
	ItemID          uuid.UUID       `json:"item_id"`
	Name            string          `json:"name"`
	DefaultImageURL string          `json:"default_image_url,omitempty"`
	UnitPrice       decimal.Decimal `json:"unit_price"`
	Quantity        int             `json:"quantity"`
}

// ItemComment is the public view of a review.
type ItemComment struct {
	Username  string    `json:"username"`
	Comment   string    `json:"comment"`
	Score     int       `json:"score"`
	CreatedAt time.Time `json:"created_at"`
}

// SubmitResult reports whether the review completed the order.
type SubmitResult struct {
	OrderID     uuid.UUID         `json:"order_id"`
	ItemID      uuid.UUID         `json:"item_id"`
	OrderStatus enums.OrderStatus `json:"order_status"`
}

type Service interface {
	Submit(ctx context.Context, userID, orderID uuid.UUID, input SubmitInput) (*SubmitResult, error)
	Uncommented(ctx context.Context, userID, orderID uuid.UUID) ([]UncommentedLine, error)
	ItemComments(ctx context.Context, itemID uuid.UUID) ([]ItemComment, error)
}

type service struct {
	tx     txRunner
	orders orders.Repository
	items  *items.Repository
	outbox outboxPublisher
	logg   *logger.Logger
}

func NewService(tx txRunner, ordersRepo orders.Repository, itemsRepo *items.Repository, publisher outboxPublisher, logg *logger.Logger) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if ordersRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if itemsRepo == nil {
		return nil, fmt.Errorf("items repository required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{tx: tx, orders: ordersRepo, items: itemsRepo, outbox: publisher, logg: logg}, nil
}

func (s *service) Submit(ctx context.Context, userID, orderID uuid.UUID, input SubmitInput) (*SubmitResult, error) {
	input.Comment = strings.TrimSpace(input.Comment)
	if err := validateSubmit(input); err != nil {
		return nil, err
	}

	var result *SubmitResult
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		ordersRepo := s.orders.WithTx(tx)
		order, err := s.loadOwned(ctx, ordersRepo, userID, orderID)
		if err != nil {
			return err
		}
		if order.Status != enums.OrderStatusUncommented {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order is not awaiting comments").
				WithDetails(map[string]any{"status": order.Status})
		}

		line, err := ordersRepo.FindLine(ctx, order.ID, input.ItemID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order line not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order line")
		}
		marked, err := ordersRepo.MarkLineCommented(ctx, line.ID, orders.LineComment{
			Comment:   input.Comment,
			Score:     input.Score,
			Anonymous: input.Anonymous,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save comment")
		}
		if !marked {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order line already commented")
		}
		if err := s.items.WithTx(tx).IncrementCommentCount(ctx, input.ItemID); err != nil {
			return err
		}

		remaining, err := ordersRepo.CountUncommentedLines(ctx, order.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count uncommented lines")
		}
		if remaining == 0 {
			actor := &outbox.ActorRef{UserID: userID, Role: enums.UserRoleCustomer}
			if err := orders.Transition(ctx, ordersRepo, s.outbox, tx, order, enums.OrderStatusCompleted, enums.EventOrderCompleted, actor); err != nil {
				return err
			}
		}
		result = &SubmitResult{OrderID: order.ID, ItemID: input.ItemID, OrderStatus: order.Status}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if result.OrderStatus == enums.OrderStatusCompleted {
		s.logg.Info(s.logg.WithOrderID(ctx, orderID.String()), "order completed")
	}
	return result, nil
}

func (s *service) Uncommented(ctx context.Context, userID, orderID uuid.UUID) ([]UncommentedLine, error) {
	order, err := s.loadOwned(ctx, s.orders, userID, orderID)
	if err != nil {
		return nil, err
	}
	out := []UncommentedLine{}
	if order.Status != enums.OrderStatusUncommented {
		return out, nil
	}
	lines, err := s.orders.ListUncommentedLines(ctx, order.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list uncommented lines")
	}
	for _, line := range lines {
		entry := UncommentedLine{ItemID: line.ItemID, UnitPrice: line.UnitPrice, Quantity: line.Quantity}
		if line.Item != nil {
			entry.Name = line.Item.Name
			entry.DefaultImageURL = line.Item.DefaultImageURL
		}
		out = append(out, entry)
	}
	return out, nil
}

func (s *service) ItemComments(ctx context.Context, itemID uuid.UUID) ([]ItemComment, error) {
	if itemID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "item id required")
	}
	rows, err := s.orders.ListItemComments(ctx, itemID, itemCommentLimit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list item comments")
	}
	out := make([]ItemComment, 0, len(rows))
	for _, row := range rows {
		username := row.Username
		if row.IsAnonymous {
			username = anonymousUsername
		}
		out = append(out, ItemComment{
			Username:  username,
			Comment:   row.Comment,
			Score:     row.Score,
			CreatedAt: row.UpdatedAt,
		})
	}
	return out, nil
}

func (s *service) loadOwned(ctx context.Context, repo orders.Repository, userID, orderID uuid.UUID) (*models.Order, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := repo.FindOwnedOrder(ctx, userID, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

func validateSubmit(input SubmitInput) error {
	details := map[string]string{}
	if input.ItemID == uuid.Nil {
		details["item_id"] = "required"
	}
	if input.Comment == "" {
		details["comment"] = "required"
	} else if len([]rune(input.Comment)) > maxCommentLength {
		details["comment"] = fmt.Sprintf("must be at most %d characters", maxCommentLength)
	}
	if input.Score < 0 || input.Score > 5 {
		details["score"] = "must be between 0 and 5"
	}
	if len(details) > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid comment").WithDetails(details)
	}
	return nil
}
