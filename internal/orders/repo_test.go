package orders

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/anihan/coop-market-backend/pkg/db/models"
	"github.com/anihan/coop-market-backend/pkg/enums"
)

func setupRepoDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "file:orders_repo_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Order{}, &models.OrderLineItem{}))
	return db
}

func seedOrder(t *testing.T, db *gorm.DB, mutate func(*models.Order)) *models.Order {
	t.Helper()

	order := &models.Order{
		CustomerID:     uuid.New(),
		Status:         enums.OrderStatusPending,
		DeliveryStatus: enums.DeliveryStatusPending,
		Subtotal:       decimal.NewFromInt(0),
		Items: []models.OrderLineItem{
			{
				StockID:     uuid.New(),
				ProductID:   uuid.New(),
				MemberID:    uuid.New(),
				Category:    enums.UnitCategoryKilo,
				Quantity:    decimal.NewFromInt(2),
				UnitPrice:   decimal.NewFromInt(50),
				TotalAmount: decimal.NewFromInt(100),
			},
		},
	}
	if mutate != nil {
		mutate(order)
	}
	require.NoError(t, db.Create(order).Error)
	return order
}

func TestMarkLineItemReleasedOnce(t *testing.T) {
	db := setupRepoDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	order := seedOrder(t, db, nil)
	itemID := order.Items[0].ID
	at := time.Date(2026, 8, 2, 10, 0, 0, 0, time.UTC)

	released, err := repo.MarkLineItemReleased(ctx, itemID, at)
	require.NoError(t, err)
	assert.True(t, released)

	// Second release of the same allocation must not take effect.
	released, err = repo.MarkLineItemReleased(ctx, itemID, at.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, released)

	var item models.OrderLineItem
	require.NoError(t, db.First(&item, "id = ?", itemID).Error)
	require.NotNil(t, item.ReleasedAt)
	assert.True(t, item.ReleasedAt.Equal(at))
}

func TestConfirmReceivedGuards(t *testing.T) {
	db := setupRepoDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	deliveredAt := time.Date(2026, 8, 3, 14, 0, 0, 0, time.UTC)
	delivered := seedOrder(t, db, func(o *models.Order) {
		o.Status = enums.OrderStatusApproved
		o.DeliveryStatus = enums.DeliveryStatusDelivered
		o.DeliveredAt = &deliveredAt
	})
	undelivered := seedOrder(t, db, nil)

	rating := 5
	feedback := "fresh produce"
	at := deliveredAt.Add(2 * time.Hour)

	confirmed, err := repo.ConfirmReceived(ctx, delivered.ID, at, &rating, &feedback)
	require.NoError(t, err)
	assert.True(t, confirmed)

	confirmed, err = repo.ConfirmReceived(ctx, delivered.ID, at.Add(time.Hour), nil, nil)
	require.NoError(t, err)
	assert.False(t, confirmed, "already-confirmed order must not flip again")

	confirmed, err = repo.ConfirmReceived(ctx, undelivered.ID, at, nil, nil)
	require.NoError(t, err)
	assert.False(t, confirmed, "undelivered order must not confirm")

	reloaded, err := repo.FindByID(ctx, delivered.ID)
	require.NoError(t, err)
	require.NotNil(t, reloaded)
	assert.True(t, reloaded.CustomerReceived)
	require.NotNil(t, reloaded.Rating)
	assert.Equal(t, 5, *reloaded.Rating)
	require.NotNil(t, reloaded.Feedback)
	assert.Equal(t, "fresh produce", *reloaded.Feedback)
}

func TestFindDeliveredUnconfirmedBefore(t *testing.T) {
	db := setupRepoDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	old := time.Date(2026, 8, 1, 8, 0, 0, 0, time.UTC)
	recent := old.Add(5 * 24 * time.Hour)
	cutoff := old.Add(3 * 24 * time.Hour)

	stale := seedOrder(t, db, func(o *models.Order) {
		o.Status = enums.OrderStatusApproved
		o.DeliveryStatus = enums.DeliveryStatusDelivered
		o.DeliveredAt = &old
	})
	seedOrder(t, db, func(o *models.Order) {
		o.Status = enums.OrderStatusApproved
		o.DeliveryStatus = enums.DeliveryStatusDelivered
		o.DeliveredAt = &recent
	})
	seedOrder(t, db, func(o *models.Order) {
		o.Status = enums.OrderStatusApproved
		o.DeliveryStatus = enums.DeliveryStatusDelivered
		o.DeliveredAt = &old
		o.CustomerReceived = true
	})

	out, err := repo.FindDeliveredUnconfirmedBefore(ctx, cutoff)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, stale.ID, out[0].ID)
}

func TestFindDelayedSince(t *testing.T) {
	db := setupRepoDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	old := time.Date(2026, 8, 1, 8, 0, 0, 0, time.UTC)
	recent := old.Add(3 * 24 * time.Hour)
	cutoff := old.Add(2 * 24 * time.Hour)

	lingering := seedOrder(t, db, func(o *models.Order) {
		o.Status = enums.OrderStatusDelayed
		o.DelayedAt = &old
	})
	seedOrder(t, db, func(o *models.Order) {
		o.Status = enums.OrderStatusDelayed
		o.DelayedAt = &recent
	})
	seedOrder(t, db, func(o *models.Order) {
		o.Status = enums.OrderStatusApproved
	})

	out, err := repo.FindDelayedSince(ctx, cutoff)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, lingering.ID, out[0].ID)
}

func TestFindByDeliveryStatusFiltersApproved(t *testing.T) {
	db := setupRepoDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	approved := seedOrder(t, db, func(o *models.Order) {
		o.Status = enums.OrderStatusApproved
		o.DeliveryStatus = enums.DeliveryStatusReadyToPickup
	})
	seedOrder(t, db, func(o *models.Order) {
		o.Status = enums.OrderStatusDelayed
		o.DeliveryStatus = enums.DeliveryStatusReadyToPickup
	})

	out, err := repo.FindByDeliveryStatus(ctx, enums.DeliveryStatusReadyToPickup)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, approved.ID, out[0].ID)
	require.Len(t, out[0].Items, 1)
}
