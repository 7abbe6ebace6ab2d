package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/anihan/coop-market-backend/pkg/enums"
)

// StockTrailEntry is the append-only record of a single stock mutation.
// Rows are never updated or deleted after insert.
type StockTrailEntry struct {
	ID          uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	StockID     uuid.UUID          `gorm:"column:stock_id;type:uuid;not null;index"`
	ProductID   uuid.UUID          `gorm:"column:product_id;type:uuid;not null;index"`
	MemberID    *uuid.UUID         `gorm:"column:member_id;type:uuid"`
	Action      enums.StockAction  `gorm:"column:action;type:text;not null"`
	OldQuantity decimal.Decimal    `gorm:"column:old_quantity;type:numeric(12,3);not null"`
	NewQuantity decimal.Decimal    `gorm:"column:new_quantity;type:numeric(12,3);not null"`
	PerformedBy *uuid.UUID         `gorm:"column:performed_by;type:uuid"`
	Notes       *string            `gorm:"column:notes"`
	CreatedAt   time.Time          `gorm:"column:created_at;autoCreateTime;index"`
}

func (s *StockTrailEntry) BeforeCreate(_ *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}
