package orders

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/anihan/coop-market-backend/pkg/db/models"
	"github.com/anihan/coop-market-backend/pkg/enums"
)

// Repository manages persistence for orders and their line items.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) error
	Save(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	// FindByIDForUpdate loads the order row with a row lock so concurrent
	// lifecycle transitions on the same order serialize.
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Order, error)
	ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]models.Order, error)
	FindPendingOrders(ctx context.Context) ([]models.Order, error)
	FindByDeliveryStatus(ctx context.Context, status enums.DeliveryStatus) ([]models.Order, error)
	FindDeliveredUnconfirmedBefore(ctx context.Context, cutoff time.Time) ([]models.Order, error)
	FindDelayedSince(ctx context.Context, cutoff time.Time) ([]models.Order, error)
	// MarkLineItemReleased flips released_at exactly once. A false return
	// means the allocation was already released.
	MarkLineItemReleased(ctx context.Context, itemID uuid.UUID, at time.Time) (bool, error)
	// ConfirmReceived flips customer_received exactly once. A false return
	// means the order was already confirmed (or never delivered).
	ConfirmReceived(ctx context.Context, orderID uuid.UUID, at time.Time, rating *int, feedback *string) (bool, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an order repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *repository) Save(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Omit("Items").Save(order).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).Preload("Items").First(&order, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	q := r.db.WithContext(ctx)
	// sqlite serializes writers on its own and rejects FOR UPDATE.
	if q.Dialector.Name() != "sqlite" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var order models.Order
	if err := q.First(&order, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if err := r.db.WithContext(ctx).Where("order_id = ?", id).Order("created_at ASC").Find(&order.Items).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]models.Order, error) {
	var out []models.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("customer_id = ?", customerID).
		Order("created_at DESC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *repository) FindPendingOrders(ctx context.Context) ([]models.Order, error) {
	var out []models.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("status = ?", enums.OrderStatusPending).
		Order("created_at ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *repository) FindByDeliveryStatus(ctx context.Context, status enums.DeliveryStatus) ([]models.Order, error) {
	var out []models.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("status = ? AND delivery_status = ?", enums.OrderStatusApproved, status).
		Order("created_at ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *repository) FindDeliveredUnconfirmedBefore(ctx context.Context, cutoff time.Time) ([]models.Order, error) {
	var out []models.Order
	err := r.db.WithContext(ctx).
		Where("delivery_status = ? AND customer_received = ? AND delivered_at <= ?",
			enums.DeliveryStatusDelivered, false, cutoff).
		Order("delivered_at ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *repository) FindDelayedSince(ctx context.Context, cutoff time.Time) ([]models.Order, error) {
	var out []models.Order
	err := r.db.WithContext(ctx).
		Where("status = ? AND delayed_at <= ?", enums.OrderStatusDelayed, cutoff).
		Order("delayed_at ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *repository) MarkLineItemReleased(ctx context.Context, itemID uuid.UUID, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Exec(
		"UPDATE order_line_items SET released_at = ?, updated_at = ? WHERE id = ? AND released_at IS NULL",
		at, at, itemID,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) ConfirmReceived(ctx context.Context, orderID uuid.UUID, at time.Time, rating *int, feedback *string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND delivery_status = ? AND customer_received = ?",
			orderID, enums.DeliveryStatusDelivered, false).
		Updates(map[string]any{
			"customer_received":     true,
			"customer_confirmed_at": at,
			"rating":                rating,
			"feedback":              feedback,
			"updated_at":            at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
