package orders

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/anihan/coop-market-backend/internal/stock"
	"github.com/anihan/coop-market-backend/pkg/db/models"
	"github.com/anihan/coop-market-backend/pkg/enums"
)

// buildLineItems turns the allocations of one requested item into line item
// rows. Each allocation becomes its own row so the supplying member and
// source entry stay traceable; the unit price is snapshotted here and never
// consulted again.
func buildLineItems(allocs []stock.Allocation, productID uuid.UUID, category enums.UnitCategory, unitPrice decimal.Decimal) []models.OrderLineItem {
	items := make([]models.OrderLineItem, 0, len(allocs))
	for _, alloc := range allocs {
		items = append(items, models.OrderLineItem{
			StockID:     alloc.StockID,
			ProductID:   productID,
			MemberID:    alloc.MemberID,
			Category:    category,
			Quantity:    alloc.Quantity,
			UnitPrice:   unitPrice,
			TotalAmount: alloc.Quantity.Mul(unitPrice).Round(2),
		})
	}
	return items
}

// subtotalOf sums the frozen line totals.
func subtotalOf(items []models.OrderLineItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.TotalAmount)
	}
	return total
}

// AggregatedRow is a customer-facing view of an order's line items for one
// (product, category) pair, collapsing however many stock sources fulfilled
// it.
type AggregatedRow struct {
	ProductID   uuid.UUID          `json:"product_id"`
	Category    enums.UnitCategory `json:"category"`
	Quantity    decimal.Decimal    `json:"quantity"`
	UnitPrice   decimal.Decimal    `json:"unit_price"`
	TotalAmount decimal.Decimal    `json:"total_amount"`
}

// aggregateLineItems groups line items by (product, category), summing
// quantities and the stored per-item totals. The unit price is taken from
// the group's first item; all items in a group carry the same snapshot by
// construction. Nothing here consults current product pricing, so the rows
// stay frozen at what the order was actually charged. Groups come out in
// first-seen order.
func aggregateLineItems(items []models.OrderLineItem) []AggregatedRow {
	type groupKey struct {
		productID uuid.UUID
		category  enums.UnitCategory
	}

	index := make(map[groupKey]int, len(items))
	rows := make([]AggregatedRow, 0, len(items))
	for _, item := range items {
		key := groupKey{productID: item.ProductID, category: item.Category}
		at, ok := index[key]
		if !ok {
			index[key] = len(rows)
			rows = append(rows, AggregatedRow{
				ProductID:   item.ProductID,
				Category:    item.Category,
				Quantity:    item.Quantity,
				UnitPrice:   item.UnitPrice,
				TotalAmount: item.TotalAmount,
			})
			continue
		}
		rows[at].Quantity = rows[at].Quantity.Add(item.Quantity)
		rows[at].TotalAmount = rows[at].TotalAmount.Add(item.TotalAmount)
	}
	return rows
}
