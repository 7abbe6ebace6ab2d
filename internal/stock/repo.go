package stock

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/anihan/coop-market-backend/pkg/clock"
	"github.com/anihan/coop-market-backend/pkg/db/models"
	"github.com/anihan/coop-market-backend/pkg/enums"
)

// Repository manages persistence for stock entries.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, entry *models.StockEntry) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.StockEntry, error)
	FindByOwner(ctx context.Context, productID, memberID uuid.UUID, category enums.UnitCategory) (*models.StockEntry, error)
	FindAvailableForProduct(ctx context.Context, productID uuid.UUID, category enums.UnitCategory) ([]models.StockEntry, error)
	ListByMember(ctx context.Context, memberID uuid.UUID) ([]models.StockEntry, error)
	DecrementQuantity(ctx context.Context, id uuid.UUID, qty decimal.Decimal) (decimal.Decimal, bool, error)
	IncrementQuantity(ctx context.Context, id uuid.UUID, qty decimal.Decimal) (decimal.Decimal, error)
	SetQuantity(ctx context.Context, id uuid.UUID, qty decimal.Decimal) error
}

type repository struct {
	db    *gorm.DB
	clock clock.Clock
}

// NewRepository returns a stock repository bound to the provided database.
func NewRepository(db *gorm.DB, clk clock.Clock) Repository {
	if clk == nil {
		clk = clock.System()
	}
	return &repository{db: db, clock: clk}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx, clock: r.clock}
}

func (r *repository) Create(ctx context.Context, entry *models.StockEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.StockEntry, error) {
	var entry models.StockEntry
	if err := r.db.WithContext(ctx).First(&entry, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &entry, nil
}

func (r *repository) FindByOwner(ctx context.Context, productID, memberID uuid.UUID, category enums.UnitCategory) (*models.StockEntry, error) {
	var entry models.StockEntry
	err := r.db.WithContext(ctx).
		Where("product_id = ? AND member_id = ? AND category = ?", productID, memberID, category).
		First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &entry, nil
}

// FindAvailableForProduct returns entries with quantity left, deepest pool
// first so reservations drain the fewest members.
func (r *repository) FindAvailableForProduct(ctx context.Context, productID uuid.UUID, category enums.UnitCategory) ([]models.StockEntry, error) {
	var entries []models.StockEntry
	err := r.db.WithContext(ctx).
		Where("product_id = ? AND category = ? AND quantity > 0", productID, category).
		Order("quantity DESC, created_at ASC").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *repository) ListByMember(ctx context.Context, memberID uuid.UUID) ([]models.StockEntry, error) {
	var entries []models.StockEntry
	err := r.db.WithContext(ctx).
		Where("member_id = ?", memberID).
		Order("created_at ASC").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// DecrementQuantity atomically subtracts qty when the entry still holds at
// least that much. The conditional update is the oversell guard: ok is false
// when another reservation got there first. On success the returned quantity
// is the row's value after the decrement, read back in the same statement so
// trail entries reflect the delta that actually happened.
func (r *repository) DecrementQuantity(ctx context.Context, id uuid.UUID, qty decimal.Decimal) (decimal.Decimal, bool, error) {
	var row struct {
		Quantity decimal.Decimal
	}
	res := r.db.WithContext(ctx).Raw(
		"UPDATE stock_entries SET quantity = quantity - ?, updated_at = ? WHERE id = ? AND quantity >= ? RETURNING quantity",
		qty, r.clock.Now().UTC(), id, qty,
	).Scan(&row)
	if res.Error != nil {
		return decimal.Zero, false, res.Error
	}
	return row.Quantity, res.RowsAffected == 1, nil
}

// IncrementQuantity adds qty back to an entry and returns the post-update
// quantity.
func (r *repository) IncrementQuantity(ctx context.Context, id uuid.UUID, qty decimal.Decimal) (decimal.Decimal, error) {
	var row struct {
		Quantity decimal.Decimal
	}
	res := r.db.WithContext(ctx).Raw(
		"UPDATE stock_entries SET quantity = quantity + ?, updated_at = ? WHERE id = ? RETURNING quantity",
		qty, r.clock.Now().UTC(), id,
	).Scan(&row)
	if res.Error != nil {
		return decimal.Zero, res.Error
	}
	if res.RowsAffected == 0 {
		return decimal.Zero, gorm.ErrRecordNotFound
	}
	return row.Quantity, nil
}

func (r *repository) SetQuantity(ctx context.Context, id uuid.UUID, qty decimal.Decimal) error {
	return r.db.WithContext(ctx).Exec(
		"UPDATE stock_entries SET quantity = ?, updated_at = ? WHERE id = ?",
		qty, r.clock.Now().UTC(), id,
	).Error
}
