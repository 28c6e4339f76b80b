package helpers

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
)

// OrderTotals is what gets persisted on the order row after lines are built.
type OrderTotals struct {
	TotalCount  int
	Subtotal    decimal.Decimal
	Freight     decimal.Decimal
	TotalAmount decimal.Decimal
}

// BuildLine snapshots the item price onto a new order line.
func BuildLine(orderID uuid.UUID, item models.Item, qty int) models.OrderLine {
	return models.OrderLine{
		OrderID:   orderID,
		ItemID:    item.ID,
		Quantity:  qty,
		UnitPrice: item.Price,
	}
}

// ComputeTotals sums line quantities and subtotals, then adds freight.
func ComputeTotals(lines []models.OrderLine, freight decimal.Decimal) OrderTotals {
	totals := OrderTotals{Subtotal: decimal.Zero, Freight: freight}
	for _, line := range lines {
		totals.TotalCount += line.Quantity
		totals.Subtotal = totals.Subtotal.Add(line.Subtotal())
	}
	totals.TotalAmount = totals.Subtotal.Add(freight)
	return totals
}
