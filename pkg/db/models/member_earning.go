package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// MemberEarning credits a supplying member for their portion of an approved
// order. Amount is derived from the frozen line item, never edited.
type MemberEarning struct {
	ID        uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	MemberID  uuid.UUID       `gorm:"column:member_id;type:uuid;not null;index"`
	OrderID   uuid.UUID       `gorm:"column:order_id;type:uuid;not null;index"`
	StockID   uuid.UUID       `gorm:"column:stock_id;type:uuid;not null"`
	Quantity  decimal.Decimal `gorm:"column:quantity;type:numeric(12,3);not null"`
	Amount    decimal.Decimal `gorm:"column:amount;type:numeric(12,2);not null"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime"`
}

func (e *MemberEarning) BeforeCreate(_ *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
