package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/anihan/coop-market-backend/pkg/enums"
)

// OrderLineItem is one unit of a sale drawn from a single stock entry. The
// unit price is copied from the product at creation and never recomputed.
// ReleasedAt doubles as the double-release guard for the allocation.
type OrderLineItem struct {
	ID          uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	OrderID     uuid.UUID          `gorm:"column:order_id;type:uuid;not null;index"`
	StockID     uuid.UUID          `gorm:"column:stock_id;type:uuid;not null"`
	ProductID   uuid.UUID          `gorm:"column:product_id;type:uuid;not null"`
	MemberID    uuid.UUID          `gorm:"column:member_id;type:uuid;not null"`
	Category    enums.UnitCategory `gorm:"column:category;type:text;not null"`
	Quantity    decimal.Decimal    `gorm:"column:quantity;type:numeric(12,3);not null"`
	UnitPrice   decimal.Decimal    `gorm:"column:unit_price;type:numeric(12,2);not null"`
	TotalAmount decimal.Decimal    `gorm:"column:total_amount;type:numeric(12,2);not null"`
	ReleasedAt  *time.Time         `gorm:"column:released_at"`
	CreatedAt   time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

func (i *OrderLineItem) BeforeCreate(_ *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}
