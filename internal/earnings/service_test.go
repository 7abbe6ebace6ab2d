package earnings

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/anihan/coop-market-backend/pkg/db/models"
	"github.com/anihan/coop-market-backend/pkg/enums"
)

func TestRecordForOrder(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()

	memberA := uuid.New()
	memberB := uuid.New()
	order := &models.Order{
		ID:         uuid.New(),
		CustomerID: uuid.New(),
		Items: []models.OrderLineItem{
			{
				ID:          uuid.New(),
				StockID:     uuid.New(),
				ProductID:   uuid.New(),
				MemberID:    memberA,
				Category:    enums.UnitCategoryKilo,
				Quantity:    decimal.RequireFromString("2"),
				UnitPrice:   decimal.RequireFromString("45.00"),
				TotalAmount: decimal.RequireFromString("90.00"),
			},
			{
				ID:          uuid.New(),
				StockID:     uuid.New(),
				ProductID:   uuid.New(),
				MemberID:    memberB,
				Category:    enums.UnitCategoryPc,
				Quantity:    decimal.RequireFromString("3"),
				UnitPrice:   decimal.RequireFromString("5.00"),
				TotalAmount: decimal.RequireFromString("15.00"),
			},
		},
	}

	if err := svc.RecordForOrder(ctx, db, order); err != nil {
		t.Fatalf("record: %v", err)
	}

	byOrder, err := svc.ListByOrder(ctx, order.ID)
	if err != nil {
		t.Fatalf("list by order: %v", err)
	}
	if len(byOrder) != 2 {
		t.Fatalf("expected 2 earnings, got %d", len(byOrder))
	}

	forA, err := svc.ListByMember(ctx, memberA)
	if err != nil {
		t.Fatalf("list by member: %v", err)
	}
	if len(forA) != 1 || !forA[0].Amount.Equal(decimal.RequireFromString("90.00")) {
		t.Fatalf("unexpected earnings for member a: %+v", forA)
	}

	totalA, err := svc.TotalForMember(ctx, memberA)
	if err != nil {
		t.Fatalf("total: %v", err)
	}
	if !totalA.Equal(decimal.RequireFromString("90.00")) {
		t.Fatalf("total for member a = %s, want 90.00", totalA)
	}
}

func TestTotalForMemberAccumulates(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()

	member := uuid.New()
	for _, amount := range []string{"10.50", "4.25", "0.25"} {
		order := &models.Order{
			ID:         uuid.New(),
			CustomerID: uuid.New(),
			Items: []models.OrderLineItem{{
				ID:          uuid.New(),
				StockID:     uuid.New(),
				ProductID:   uuid.New(),
				MemberID:    member,
				Category:    enums.UnitCategoryKilo,
				Quantity:    decimal.RequireFromString("1"),
				UnitPrice:   decimal.RequireFromString(amount),
				TotalAmount: decimal.RequireFromString(amount),
			}},
		}
		if err := svc.RecordForOrder(ctx, db, order); err != nil {
			t.Fatalf("record %s: %v", amount, err)
		}
	}

	total, err := svc.TotalForMember(ctx, member)
	if err != nil {
		t.Fatalf("total: %v", err)
	}
	if !total.Equal(decimal.RequireFromString("15.00")) {
		t.Fatalf("total = %s, want 15.00", total)
	}

	// An unknown member has earned nothing.
	zero, err := svc.TotalForMember(ctx, uuid.New())
	if err != nil {
		t.Fatalf("total unknown: %v", err)
	}
	if !zero.IsZero() {
		t.Fatalf("expected zero, got %s", zero)
	}
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:earnings_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.MemberEarning{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func newTestService(t *testing.T, db *gorm.DB) Service {
	t.Helper()
	svc, err := NewService(NewRepository(db))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}
