package stock

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/anihan/coop-market-backend/pkg/db/models"
)

// TrailRepository manages persistence for the append-only stock trail.
// There are deliberately no update or delete operations.
type TrailRepository interface {
	WithTx(tx *gorm.DB) TrailRepository
	Append(ctx context.Context, entry *models.StockTrailEntry) error
	ListByStockID(ctx context.Context, stockID uuid.UUID) ([]models.StockTrailEntry, error)
	ListByProductID(ctx context.Context, productID uuid.UUID) ([]models.StockTrailEntry, error)
	ListByTimeRange(ctx context.Context, from, to time.Time) ([]models.StockTrailEntry, error)
}

type trailRepository struct {
	db *gorm.DB
}

// NewTrailRepository returns a trail repository bound to the provided database.
func NewTrailRepository(db *gorm.DB) TrailRepository {
	return &trailRepository{db: db}
}

func (r *trailRepository) WithTx(tx *gorm.DB) TrailRepository {
	if tx == nil {
		return r
	}
	return &trailRepository{db: tx}
}

func (r *trailRepository) Append(ctx context.Context, entry *models.StockTrailEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *trailRepository) ListByStockID(ctx context.Context, stockID uuid.UUID) ([]models.StockTrailEntry, error) {
	var entries []models.StockTrailEntry
	err := r.db.WithContext(ctx).
		Where("stock_id = ?", stockID).
		Order("created_at ASC, id ASC").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *trailRepository) ListByProductID(ctx context.Context, productID uuid.UUID) ([]models.StockTrailEntry, error) {
	var entries []models.StockTrailEntry
	err := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("created_at ASC, id ASC").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// ListByTimeRange returns trail rows with from <= created_at < to, oldest
// first.
func (r *trailRepository) ListByTimeRange(ctx context.Context, from, to time.Time) ([]models.StockTrailEntry, error) {
	var entries []models.StockTrailEntry
	err := r.db.WithContext(ctx).
		Where("created_at >= ? AND created_at < ?", from, to).
		Order("created_at ASC, id ASC").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}
