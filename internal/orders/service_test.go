package orders

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/anihan/coop-market-backend/internal/autoconfirm"
	"github.com/anihan/coop-market-backend/internal/earnings"
	"github.com/anihan/coop-market-backend/internal/stock"
	"github.com/anihan/coop-market-backend/pkg/db/models"
	"github.com/anihan/coop-market-backend/pkg/enums"
	pkgerrors "github.com/anihan/coop-market-backend/pkg/errors"
	"github.com/anihan/coop-market-backend/pkg/logger"
)

type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time {
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

type stubPricing struct {
	prices map[uuid.UUID]decimal.Decimal
}

func (p *stubPricing) UnitPrice(_ context.Context, productID uuid.UUID, _ enums.UnitCategory) (decimal.Decimal, error) {
	price, ok := p.prices[productID]
	if !ok {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	return price, nil
}

type recordedNotification struct {
	Event      enums.NotificationEvent
	OrderID    uuid.UUID
	Recipients []uuid.UUID
}

type stubNotifier struct {
	sent []recordedNotification
}

func (n *stubNotifier) Notify(_ context.Context, event enums.NotificationEvent, order *models.Order, recipients []uuid.UUID) {
	n.sent = append(n.sent, recordedNotification{Event: event, OrderID: order.ID, Recipients: recipients})
}

type gormTxRunner struct {
	db *gorm.DB
}

func (r gormTxRunner) WithTx(_ context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.Transaction(fn)
}

type testEnv struct {
	db       *gorm.DB
	svc      Service
	stock    stock.Service
	earnings earnings.Service
	notifier *stubNotifier
	pricing  *stubPricing
	clock    *testClock
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dsn := "file:orders_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(
		&models.StockEntry{},
		&models.StockTrailEntry{},
		&models.Order{},
		&models.OrderLineItem{},
		&models.MemberEarning{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	logg := logger.New(logger.Options{ServiceName: "orders-test"})
	clk := &testClock{now: time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)}
	runner := gormTxRunner{db: db}

	stockSvc, err := stock.NewService(stock.NewRepository(db, clk), stock.NewTrailRepository(db), runner, logg, clk)
	if err != nil {
		t.Fatalf("stock service: %v", err)
	}
	earningsSvc, err := earnings.NewService(earnings.NewRepository(db))
	if err != nil {
		t.Fatalf("earnings service: %v", err)
	}

	pricing := &stubPricing{prices: map[uuid.UUID]decimal.Decimal{}}
	notifier := &stubNotifier{}
	rule := autoconfirm.NewRule(autoconfirm.DefaultGrace, clk)

	svc, err := NewService(NewRepository(db), stockSvc, pricing, runner, notifier, earningsSvc, rule, logg, clk)
	if err != nil {
		t.Fatalf("orders service: %v", err)
	}

	return &testEnv{
		db:       db,
		svc:      svc,
		stock:    stockSvc,
		earnings: earningsSvc,
		notifier: notifier,
		pricing:  pricing,
		clock:    clk,
	}
}

// seedProduct registers a price and supplies qty of stock from one member.
func (e *testEnv) seedProduct(t *testing.T, price, qty string, category enums.UnitCategory) (productID, memberID uuid.UUID) {
	t.Helper()
	productID = uuid.New()
	memberID = uuid.New()
	e.pricing.prices[productID] = decimal.RequireFromString(price)
	entry := models.StockEntry{
		ProductID: productID,
		MemberID:  memberID,
		Category:  category,
		Quantity:  decimal.RequireFromString(qty),
	}
	if err := e.db.Create(&entry).Error; err != nil {
		t.Fatalf("seed stock: %v", err)
	}
	return productID, memberID
}

func (e *testEnv) createOrder(t *testing.T, productID uuid.UUID, category enums.UnitCategory, qty string) *models.Order {
	t.Helper()
	order, err := e.svc.CreateOrder(context.Background(), CreateOrderInput{
		CustomerID: uuid.New(),
		Items: []RequestedItem{{
			ProductID: productID,
			Category:  category,
			Quantity:  decimal.RequireFromString(qty),
		}},
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	return order
}

func TestCreateOrderSnapshotsPriceAndReserves(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	productID, memberID := env.seedProduct(t, "10.00", "10", enums.UnitCategoryKilo)

	order := env.createOrder(t, productID, enums.UnitCategoryKilo, "4")

	if order.Status != enums.OrderStatusPending || order.DeliveryStatus != enums.DeliveryStatusPending {
		t.Fatalf("unexpected initial state: %s/%s", order.Status, order.DeliveryStatus)
	}
	if !order.Subtotal.Equal(decimal.RequireFromString("40.00")) {
		t.Fatalf("subtotal = %s, want 40.00", order.Subtotal)
	}
	if len(order.Items) != 1 {
		t.Fatalf("expected 1 line item, got %d", len(order.Items))
	}
	item := order.Items[0]
	if item.MemberID != memberID || !item.UnitPrice.Equal(decimal.RequireFromString("10.00")) {
		t.Fatalf("unexpected line item: %+v", item)
	}

	// Later price changes never touch the frozen snapshot.
	env.pricing.prices[productID] = decimal.RequireFromString("99.00")
	reloaded, err := env.svc.Get(ctx, order.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !reloaded.Items[0].UnitPrice.Equal(decimal.RequireFromString("10.00")) {
		t.Fatalf("snapshot price changed: %s", reloaded.Items[0].UnitPrice)
	}

	entry, err := env.stock.GetEntry(ctx, item.StockID)
	if err != nil {
		t.Fatalf("get entry: %v", err)
	}
	if !entry.Quantity.Equal(decimal.RequireFromString("6")) {
		t.Fatalf("expected 6 remaining, got %s", entry.Quantity)
	}
}

func TestCreateOrderInsufficientStock(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	productID, _ := env.seedProduct(t, "10.00", "3", enums.UnitCategoryKilo)

	_, err := env.svc.CreateOrder(context.Background(), CreateOrderInput{
		CustomerID: uuid.New(),
		Items: []RequestedItem{{
			ProductID: productID,
			Category:  enums.UnitCategoryKilo,
			Quantity:  decimal.RequireFromString("5"),
		}},
	})
	if !pkgerrors.IsCode(err, pkgerrors.CodeInsufficientStock) {
		t.Fatalf("expected insufficient stock, got %v", err)
	}

	// The failed order leaves no rows behind.
	var count int64
	if err := env.db.Model(&models.Order{}).Count(&count).Error; err != nil {
		t.Fatalf("count orders: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected no orders, got %d", count)
	}
}

func TestApproveFreezesSplitOnce(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	productID, memberID := env.seedProduct(t, "10.00", "20", enums.UnitCategoryKilo)
	order := env.createOrder(t, productID, enums.UnitCategoryKilo, "10")

	approved, err := env.svc.Approve(ctx, order.ID, uuid.New())
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if approved.Status != enums.OrderStatusApproved {
		t.Fatalf("status = %s", approved.Status)
	}
	if !approved.CoopShare.Equal(decimal.RequireFromString("10.00")) ||
		!approved.MemberShare.Equal(decimal.RequireFromString("100.00")) ||
		!approved.TotalAmount.Equal(decimal.RequireFromString("110.00")) {
		t.Fatalf("unexpected split: coop=%s member=%s total=%s",
			approved.CoopShare, approved.MemberShare, approved.TotalAmount)
	}
	if approved.ApprovedAt == nil {
		t.Fatal("expected approved_at set")
	}

	if _, err := env.svc.Approve(ctx, order.ID, uuid.New()); !pkgerrors.IsCode(err, pkgerrors.CodeFrozen) {
		t.Fatalf("expected frozen error on re-approval, got %v", err)
	}

	rows, err := env.earnings.ListByMember(ctx, memberID)
	if err != nil {
		t.Fatalf("earnings: %v", err)
	}
	if len(rows) != 1 || !rows[0].Amount.Equal(decimal.RequireFromString("100.00")) {
		t.Fatalf("unexpected earnings: %+v", rows)
	}

	if len(env.notifier.sent) == 0 || env.notifier.sent[0].Event != enums.NotificationOrderApproved {
		t.Fatalf("expected approval notification, got %+v", env.notifier.sent)
	}
}

func TestRejectReleasesAllocations(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	productID, _ := env.seedProduct(t, "10.00", "10", enums.UnitCategoryKilo)
	order := env.createOrder(t, productID, enums.UnitCategoryKilo, "7")

	rejected, err := env.svc.Reject(ctx, order.ID, uuid.New(), "produce below standard")
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if rejected.Status != enums.OrderStatusRejected || rejected.RejectReason == nil {
		t.Fatalf("unexpected order: %+v", rejected)
	}

	entry, err := env.stock.GetEntry(ctx, order.Items[0].StockID)
	if err != nil {
		t.Fatalf("get entry: %v", err)
	}
	if !entry.Quantity.Equal(decimal.RequireFromString("10")) {
		t.Fatalf("expected restored stock 10, got %s", entry.Quantity)
	}

	trail, err := env.stock.Trail(ctx, entry.ID)
	if err != nil {
		t.Fatalf("trail: %v", err)
	}
	if len(trail) != 2 {
		t.Fatalf("expected reserve + release trail rows, got %d", len(trail))
	}
	if trail[len(trail)-1].Action != enums.StockActionReleased {
		t.Fatalf("expected released trail row, got %s", trail[len(trail)-1].Action)
	}

	// Terminal state: nothing else may touch the order.
	if _, err := env.svc.Approve(ctx, order.ID, uuid.New()); !pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected state conflict, got %v", err)
	}
	if _, err := env.svc.Reject(ctx, order.ID, uuid.New(), "again"); !pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected state conflict, got %v", err)
	}
}

func TestDelayedCancelReleasesStock(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	productID, _ := env.seedProduct(t, "5.00", "8", enums.UnitCategoryPc)
	order := env.createOrder(t, productID, enums.UnitCategoryPc, "8")

	// Cancellation is only open to delayed orders.
	if _, err := env.svc.Cancel(ctx, order.ID, uuid.New()); !pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected state conflict cancelling pending order, got %v", err)
	}

	if _, err := env.svc.Approve(ctx, order.ID, uuid.New()); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if _, err := env.svc.Cancel(ctx, order.ID, uuid.New()); !pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected state conflict cancelling approved order, got %v", err)
	}

	if _, err := env.svc.MarkDelayed(ctx, order.ID, uuid.New()); err != nil {
		t.Fatalf("mark delayed: %v", err)
	}
	cancelled, err := env.svc.Cancel(ctx, order.ID, uuid.New())
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.Status != enums.OrderStatusCancelled || cancelled.CancelledAt == nil {
		t.Fatalf("unexpected order: %+v", cancelled)
	}

	entry, err := env.stock.GetEntry(ctx, order.Items[0].StockID)
	if err != nil {
		t.Fatalf("get entry: %v", err)
	}
	if !entry.Quantity.Equal(decimal.RequireFromString("8")) {
		t.Fatalf("expected restored stock, got %s", entry.Quantity)
	}
}

func TestAdvanceDeliveryStampsOnce(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	productID, _ := env.seedProduct(t, "10.00", "5", enums.UnitCategoryKilo)
	order := env.createOrder(t, productID, enums.UnitCategoryKilo, "2")

	// Delivery cannot move before approval.
	if _, err := env.svc.AdvanceDelivery(ctx, order.ID, enums.DeliveryStatusReadyToPickup); !pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected state conflict, got %v", err)
	}

	if _, err := env.svc.Approve(ctx, order.ID, uuid.New()); err != nil {
		t.Fatalf("approve: %v", err)
	}

	// Stage skips are rejected.
	if _, err := env.svc.AdvanceDelivery(ctx, order.ID, enums.DeliveryStatusDelivered); !pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected state conflict on skip, got %v", err)
	}

	for _, stage := range []enums.DeliveryStatus{
		enums.DeliveryStatusReadyToPickup,
		enums.DeliveryStatusOutForDelivery,
		enums.DeliveryStatusDelivered,
	} {
		env.clock.Advance(time.Hour)
		if _, err := env.svc.AdvanceDelivery(ctx, order.ID, stage); err != nil {
			t.Fatalf("advance to %s: %v", stage, err)
		}
	}

	delivered, err := env.svc.Get(ctx, order.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if delivered.ReadyAt == nil || delivered.DispatchedAt == nil || delivered.DeliveredAt == nil {
		t.Fatal("expected all delivery timestamps set")
	}
	firstDeliveredAt := *delivered.DeliveredAt

	// Re-sending the current stage is a no-op that keeps the timestamp.
	env.clock.Advance(time.Hour)
	again, err := env.svc.AdvanceDelivery(ctx, order.ID, enums.DeliveryStatusDelivered)
	if err != nil {
		t.Fatalf("re-advance: %v", err)
	}
	if again.DeliveredAt == nil || !again.DeliveredAt.Equal(firstDeliveredAt) {
		t.Fatalf("delivered_at changed: %v -> %v", firstDeliveredAt, again.DeliveredAt)
	}
}

func TestMarkReceivedAndAutoConfirmExclusive(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	productID, _ := env.seedProduct(t, "10.00", "5", enums.UnitCategoryKilo)
	order := env.createOrder(t, productID, enums.UnitCategoryKilo, "2")
	deliverOrder(t, env, order.ID)

	// Within the grace window the sweep does nothing.
	confirmed, err := env.svc.ConfirmIfEligible(ctx, order.ID)
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if confirmed {
		t.Fatal("expected no confirmation within grace window")
	}

	env.clock.Advance(4 * 24 * time.Hour)

	confirmed, err = env.svc.ConfirmIfEligible(ctx, order.ID)
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if !confirmed {
		t.Fatal("expected auto-confirmation past grace window")
	}

	// Redundant sweeps are no-ops with a single confirmation timestamp.
	confirmedAgain, err := env.svc.ConfirmIfEligible(ctx, order.ID)
	if err != nil {
		t.Fatalf("confirm again: %v", err)
	}
	if confirmedAgain {
		t.Fatal("expected second confirm to be a no-op")
	}

	// The late customer command loses to auto-confirmation.
	rating := 5
	if _, err := env.svc.MarkReceived(ctx, order.ID, &rating, nil); !pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected state conflict, got %v", err)
	}

	final, err := env.svc.Get(ctx, order.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !final.CustomerReceived || final.CustomerConfirmedAt == nil {
		t.Fatal("expected confirmed order")
	}
	if final.Rating != nil {
		t.Fatalf("expected no rating after auto-confirm, got %d", *final.Rating)
	}
}

func TestMarkReceivedRecordsRating(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	productID, _ := env.seedProduct(t, "10.00", "5", enums.UnitCategoryKilo)
	order := env.createOrder(t, productID, enums.UnitCategoryKilo, "2")

	// Not delivered yet.
	if _, err := env.svc.MarkReceived(ctx, order.ID, nil, nil); !pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected state conflict, got %v", err)
	}

	deliverOrder(t, env, order.ID)

	bad := 7
	if _, err := env.svc.MarkReceived(ctx, order.ID, &bad, nil); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	rating := 4
	feedback := "fresh and on time"
	received, err := env.svc.MarkReceived(ctx, order.ID, &rating, &feedback)
	if err != nil {
		t.Fatalf("mark received: %v", err)
	}
	if !received.CustomerReceived || received.Rating == nil || *received.Rating != 4 {
		t.Fatalf("unexpected order: %+v", received)
	}
	if received.Feedback == nil || *received.Feedback != feedback {
		t.Fatal("expected feedback recorded")
	}
}

func TestGetAppliesLazyAutoConfirm(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	productID, _ := env.seedProduct(t, "10.00", "5", enums.UnitCategoryKilo)
	order := env.createOrder(t, productID, enums.UnitCategoryKilo, "2")
	deliverOrder(t, env, order.ID)

	env.clock.Advance(4 * 24 * time.Hour)

	got, err := env.svc.Get(ctx, order.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.CustomerReceived || got.CustomerConfirmedAt == nil {
		t.Fatal("expected lazy auto-confirmation on read")
	}
}

func deliverOrder(t *testing.T, env *testEnv, orderID uuid.UUID) {
	t.Helper()
	ctx := context.Background()
	if _, err := env.svc.Approve(ctx, orderID, uuid.New()); err != nil {
		t.Fatalf("approve: %v", err)
	}
	for _, stage := range []enums.DeliveryStatus{
		enums.DeliveryStatusReadyToPickup,
		enums.DeliveryStatusOutForDelivery,
		enums.DeliveryStatusDelivered,
	} {
		if _, err := env.svc.AdvanceDelivery(ctx, orderID, stage); err != nil {
			t.Fatalf("advance to %s: %v", stage, err)
		}
	}
}

func TestApproveRecoversDelayedOrder(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	productID, memberID := env.seedProduct(t, "10.00", "10", enums.UnitCategoryKilo)
	order := env.createOrder(t, productID, enums.UnitCategoryKilo, "4")

	approved, err := env.svc.Approve(ctx, order.ID, uuid.New())
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if _, err := env.svc.MarkDelayed(ctx, order.ID, uuid.New()); err != nil {
		t.Fatalf("delay: %v", err)
	}

	recovered, err := env.svc.Approve(ctx, order.ID, uuid.New())
	if err != nil {
		t.Fatalf("re-approve delayed: %v", err)
	}
	if recovered.Status != enums.OrderStatusApproved {
		t.Fatalf("status = %s", recovered.Status)
	}
	if recovered.DelayedAt != nil {
		t.Fatal("expected delayed_at cleared on recovery")
	}
	if !recovered.CoopShare.Equal(approved.CoopShare) ||
		!recovered.TotalAmount.Equal(approved.TotalAmount) {
		t.Fatalf("recovery must not recompute frozen financials: coop=%s total=%s",
			recovered.CoopShare, recovered.TotalAmount)
	}

	// Members were credited on the first approval only.
	rows, err := env.earnings.ListByMember(ctx, memberID)
	if err != nil {
		t.Fatalf("earnings: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected a single earnings row, got %d", len(rows))
	}

	// A recovered order delivers normally.
	if _, err := env.svc.AdvanceDelivery(ctx, order.ID, enums.DeliveryStatusReadyToPickup); err != nil {
		t.Fatalf("advance after recovery: %v", err)
	}
}

func TestAggregateCollapsesAllocations(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	productID, _ := env.seedProduct(t, "10.00", "6", enums.UnitCategoryKilo)

	// Second member's pool for the same product so one requested item is
	// fulfilled from two stock sources.
	second := models.StockEntry{
		ProductID: productID,
		MemberID:  uuid.New(),
		Category:  enums.UnitCategoryKilo,
		Quantity:  decimal.RequireFromString("4"),
	}
	if err := env.db.Create(&second).Error; err != nil {
		t.Fatalf("seed second entry: %v", err)
	}

	order := env.createOrder(t, productID, enums.UnitCategoryKilo, "8")
	if len(order.Items) != 2 {
		t.Fatalf("expected 2 line items across members, got %d", len(order.Items))
	}

	rows, err := env.svc.Aggregate(ctx, order.ID)
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected one aggregated row, got %d", len(rows))
	}
	row := rows[0]
	if row.ProductID != productID || row.Category != enums.UnitCategoryKilo {
		t.Fatalf("unexpected group: %+v", row)
	}
	if !row.Quantity.Equal(decimal.RequireFromString("8")) {
		t.Fatalf("quantity = %s, want 8", row.Quantity)
	}
	if !row.UnitPrice.Equal(decimal.RequireFromString("10.00")) {
		t.Fatalf("unit price = %s, want 10.00", row.UnitPrice)
	}
	if !row.TotalAmount.Equal(decimal.RequireFromString("80.00")) {
		t.Fatalf("total = %s, want 80.00", row.TotalAmount)
	}

	// A later price change must not leak into the placed order's rows.
	env.pricing.prices[productID] = decimal.RequireFromString("25.00")
	rows, err = env.svc.Aggregate(ctx, order.ID)
	if err != nil {
		t.Fatalf("aggregate after price change: %v", err)
	}
	if !rows[0].UnitPrice.Equal(decimal.RequireFromString("10.00")) ||
		!rows[0].TotalAmount.Equal(decimal.RequireFromString("80.00")) {
		t.Fatalf("aggregated row drifted with live pricing: %+v", rows[0])
	}

	if _, err := env.svc.Aggregate(ctx, uuid.New()); !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
