package reservation

import (
	"context"

	"github.com/google/uuid"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

type stockDebiter interface {
	DebitStock(ctx context.Context, itemID uuid.UUID, qty int) (bool, error)
	AdjustProductSales(ctx context.Context, productID uuid.UUID, delta int) error
}

// DebitRequest is one selected cart entry to take out of stock. Available is
// the stock observed when the item was loaded and only feeds error details.
type DebitRequest struct {
	ItemID    uuid.UUID
	ProductID uuid.UUID
	Qty       int
	Available int
}

// DebitInventory debits every request inside the caller's transaction. The
// first shortfall aborts with an OutOfStock error so the caller rolls back.
func DebitInventory(ctx context.Context, repo stockDebiter, requests []DebitRequest) error {
	if len(requests) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "no items to debit")
	}
	for _, req := range requests {
		if req.Qty <= 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive").
				WithDetails(map[string]any{"item_id": req.ItemID, "requested": req.Qty})
		}
		ok, err := repo.DebitStock(ctx, req.ItemID, req.Qty)
		if err != nil {
			return err
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeOutOfStock, "insufficient stock").
				WithDetails(map[string]any{
					"item_id":   req.ItemID,
					"requested": req.Qty,
					"available": req.Available,
				})
		}
		if err := repo.AdjustProductSales(ctx, req.ProductID, req.Qty); err != nil {
			return err
		}
	}
	return nil
}
