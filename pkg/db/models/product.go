package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/anihan/coop-market-backend/pkg/enums"
)

// Product is a sellable good with per-unit prices by category. A missing
// price means the product is not sold in that category.
type Product struct {
	ID        uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	Name      string           `gorm:"column:name;not null"`
	PriceKilo *decimal.Decimal `gorm:"column:price_kilo;type:numeric(12,2)"`
	PricePc   *decimal.Decimal `gorm:"column:price_pc;type:numeric(12,2)"`
	PriceTali *decimal.Decimal `gorm:"column:price_tali;type:numeric(12,2)"`
	Archived  bool             `gorm:"column:archived;not null;default:false"`
	CreatedAt time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Product) BeforeCreate(_ *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// PriceFor returns the current per-unit price for the category, or nil when
// the product is not priced in that category.
func (p *Product) PriceFor(category enums.UnitCategory) *decimal.Decimal {
	switch category {
	case enums.UnitCategoryKilo:
		return p.PriceKilo
	case enums.UnitCategoryPc:
		return p.PricePc
	case enums.UnitCategoryTali:
		return p.PriceTali
	default:
		return nil
	}
}
