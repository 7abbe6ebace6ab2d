package earnings

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/anihan/coop-market-backend/pkg/db/models"
)

// Repository manages persistence for member earnings.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateBatch(ctx context.Context, rows []models.MemberEarning) error
	ListByMember(ctx context.Context, memberID uuid.UUID) ([]models.MemberEarning, error)
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.MemberEarning, error)
	TotalForMember(ctx context.Context, memberID uuid.UUID) (decimal.Decimal, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an earnings repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateBatch(ctx context.Context, rows []models.MemberEarning) error {
	if len(rows) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&rows).Error
}

func (r *repository) ListByMember(ctx context.Context, memberID uuid.UUID) ([]models.MemberEarning, error) {
	var out []models.MemberEarning
	err := r.db.WithContext(ctx).
		Where("member_id = ?", memberID).
		Order("created_at DESC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *repository) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.MemberEarning, error) {
	var out []models.MemberEarning
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *repository) TotalForMember(ctx context.Context, memberID uuid.UUID) (decimal.Decimal, error) {
	var total *string
	err := r.db.WithContext(ctx).
		Model(&models.MemberEarning{}).
		Select("CAST(COALESCE(SUM(amount), 0) AS TEXT)").
		Where("member_id = ?", memberID).
		Scan(&total).Error
	if err != nil {
		return decimal.Zero, err
	}
	if total == nil || *total == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(*total)
}
