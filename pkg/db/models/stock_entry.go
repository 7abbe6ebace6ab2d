package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/anihan/coop-market-backend/pkg/enums"
)

// StockEntry is one supplying member's available quantity of a product in a
// single unit category. The row is the atomic unit of reservation and is
// never deleted; depleted rows stay at zero for history.
type StockEntry struct {
	ID        uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	ProductID uuid.UUID          `gorm:"column:product_id;type:uuid;not null;uniqueIndex:ux_stock_entries_product_member_category"`
	MemberID  uuid.UUID          `gorm:"column:member_id;type:uuid;not null;uniqueIndex:ux_stock_entries_product_member_category"`
	Category  enums.UnitCategory `gorm:"column:category;type:text;not null;uniqueIndex:ux_stock_entries_product_member_category"`
	Quantity  decimal.Decimal    `gorm:"column:quantity;type:numeric(12,3);not null"`
	CreatedAt time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

func (s *StockEntry) BeforeCreate(_ *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}
