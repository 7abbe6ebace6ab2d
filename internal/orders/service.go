package orders

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/anihan/coop-market-backend/internal/autoconfirm"
	"github.com/anihan/coop-market-backend/internal/revenue"
	"github.com/anihan/coop-market-backend/internal/stock"
	"github.com/anihan/coop-market-backend/pkg/clock"
	"github.com/anihan/coop-market-backend/pkg/db/models"
	"github.com/anihan/coop-market-backend/pkg/enums"
	pkgerrors "github.com/anihan/coop-market-backend/pkg/errors"
	"github.com/anihan/coop-market-backend/pkg/logger"
)

// Service drives orders through their approval and delivery state machines.
type Service interface {
	CreateOrder(ctx context.Context, input CreateOrderInput) (*models.Order, error)
	Approve(ctx context.Context, orderID, performedBy uuid.UUID) (*models.Order, error)
	Reject(ctx context.Context, orderID, performedBy uuid.UUID, reason string) (*models.Order, error)
	MarkDelayed(ctx context.Context, orderID, performedBy uuid.UUID) (*models.Order, error)
	Cancel(ctx context.Context, orderID, performedBy uuid.UUID) (*models.Order, error)
	AdvanceDelivery(ctx context.Context, orderID uuid.UUID, target enums.DeliveryStatus) (*models.Order, error)
	MarkReceived(ctx context.Context, orderID uuid.UUID, rating *int, feedback *string) (*models.Order, error)
	// ConfirmIfEligible auto-confirms a delivered order past the grace
	// window. Safe to call redundantly; reports whether this call confirmed.
	ConfirmIfEligible(ctx context.Context, orderID uuid.UUID) (bool, error)
	Get(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	// Aggregate collapses an order's line items into one customer-facing
	// row per (product, category), priced from the stored snapshots.
	Aggregate(ctx context.Context, orderID uuid.UUID) ([]AggregatedRow, error)
	ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]models.Order, error)
	ListPending(ctx context.Context) ([]models.Order, error)
	ListByDeliveryStatus(ctx context.Context, status enums.DeliveryStatus) ([]models.Order, error)
	FindDeliveredUnconfirmedBefore(ctx context.Context, cutoff time.Time) ([]models.Order, error)
	FindDelayedSince(ctx context.Context, cutoff time.Time) ([]models.Order, error)
}

// Notifier dispatches a fire-and-forget notification after a transition has
// committed. Implementations must not fail the calling operation.
type Notifier interface {
	Notify(ctx context.Context, event enums.NotificationEvent, order *models.Order, recipients []uuid.UUID)
}

// pricingSource resolves a product's current per-category price, consulted
// only when a line item is created.
type pricingSource interface {
	UnitPrice(ctx context.Context, productID uuid.UUID, category enums.UnitCategory) (decimal.Decimal, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// earningsRecorder credits supplying members when an order's financials
// freeze. It runs inside the approval transaction.
type earningsRecorder interface {
	RecordForOrder(ctx context.Context, tx *gorm.DB, order *models.Order) error
}

type service struct {
	repo     Repository
	stock    stock.Service
	pricing  pricingSource
	tx       txRunner
	notifier Notifier
	earnings earningsRecorder
	rule     autoconfirm.Rule
	logg     *logger.Logger
	clock    clock.Clock
}

// NewService wires the order lifecycle service.
func NewService(repo Repository, stockSvc stock.Service, pricing pricingSource, tx txRunner, notifier Notifier, earnings earningsRecorder, rule autoconfirm.Rule, logg *logger.Logger, clk clock.Clock) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if stockSvc == nil {
		return nil, fmt.Errorf("stock service required")
	}
	if pricing == nil {
		return nil, fmt.Errorf("pricing source required")
	}
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if clk == nil {
		clk = clock.System()
	}
	return &service{
		repo:     repo,
		stock:    stockSvc,
		pricing:  pricing,
		tx:       tx,
		notifier: notifier,
		earnings: earnings,
		rule:     rule,
		logg:     logg,
		clock:    clk,
	}, nil
}

// RequestedItem is one product/category/quantity ask on a new order.
type RequestedItem struct {
	ProductID uuid.UUID
	Category  enums.UnitCategory
	Quantity  decimal.Decimal
}

// CreateOrderInput captures a new customer order.
type CreateOrderInput struct {
	CustomerID  uuid.UUID
	Items       []RequestedItem
	PerformedBy uuid.UUID
}

func (s *service) CreateOrder(ctx context.Context, input CreateOrderInput) (*models.Order, error) {
	if input.CustomerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer id is required")
	}
	if len(input.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order requires at least one item")
	}
	for _, item := range input.Items {
		if item.ProductID == uuid.Nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "item product id is required")
		}
		if !item.Category.IsValid() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid unit category %q", item.Category))
		}
		if !item.Quantity.IsPositive() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "item quantity must be positive")
		}
	}

	var order *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		var lineItems []models.OrderLineItem
		for _, item := range input.Items {
			unitPrice, err := s.pricing.UnitPrice(ctx, item.ProductID, item.Category)
			if err != nil {
				return err
			}
			allocs, err := s.stock.Reserve(ctx, tx, stock.ReserveRequest{
				ProductID:   item.ProductID,
				Category:    item.Category,
				Quantity:    item.Quantity,
				PerformedBy: input.PerformedBy,
			})
			if err != nil {
				return err
			}
			lineItems = append(lineItems, buildLineItems(allocs, item.ProductID, item.Category, unitPrice)...)
		}

		order = &models.Order{
			CustomerID:     input.CustomerID,
			Status:         enums.OrderStatusPending,
			DeliveryStatus: enums.DeliveryStatusPending,
			Subtotal:       subtotalOf(lineItems),
			Items:          lineItems,
		}
		return repo.Create(ctx, order)
	})
	if err != nil {
		return nil, err
	}

	ctx = s.logg.WithOrderID(ctx, order.ID.String())
	s.logg.Info(ctx, "order created")
	return order, nil
}

func (s *service) Approve(ctx context.Context, orderID, performedBy uuid.UUID) (*models.Order, error) {
	var order *models.Order
	err := s.lockedTransition(ctx, orderID, func(tx *gorm.DB, repo Repository, current *models.Order) error {
		if current.Status == enums.OrderStatusDelayed {
			// Recovery from an operational delay. Financials froze on the
			// first approval and are not recomputed, and members were
			// already credited.
			current.Status = enums.OrderStatusApproved
			current.DelayedAt = nil
			if err := repo.Save(ctx, current); err != nil {
				return err
			}
			order = current
			return nil
		}
		if current.FinancialsFrozen() {
			return pkgerrors.New(pkgerrors.CodeFrozen, "order financials are already frozen")
		}
		if !canTransition(current.Status, enums.OrderStatusApproved) {
			return transitionError(current.Status, enums.OrderStatusApproved)
		}

		split := revenue.Calculate(current.Subtotal)
		now := s.clock.Now().UTC()

		current.Status = enums.OrderStatusApproved
		current.CoopShare = split.CoopShare
		current.MemberShare = split.MemberShare
		current.TotalAmount = split.TotalAmount
		current.ApprovedAt = &now

		if err := repo.Save(ctx, current); err != nil {
			return err
		}
		if s.earnings != nil {
			if err := s.earnings.RecordForOrder(ctx, tx, current); err != nil {
				return err
			}
		}
		order = current
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notify(ctx, enums.NotificationOrderApproved, order, s.orderParties(order))
	return order, nil
}

func (s *service) Reject(ctx context.Context, orderID, performedBy uuid.UUID, reason string) (*models.Order, error) {
	if reason == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "rejection reason is required")
	}

	var order *models.Order
	err := s.lockedTransition(ctx, orderID, func(tx *gorm.DB, repo Repository, current *models.Order) error {
		if !canTransition(current.Status, enums.OrderStatusRejected) {
			return transitionError(current.Status, enums.OrderStatusRejected)
		}

		now := s.clock.Now().UTC()
		current.Status = enums.OrderStatusRejected
		current.RejectedAt = &now
		current.RejectReason = &reason

		if err := s.releaseAllocations(ctx, tx, repo, current, performedBy, "order rejected"); err != nil {
			return err
		}
		if err := repo.Save(ctx, current); err != nil {
			return err
		}
		order = current
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notify(ctx, enums.NotificationOrderRejected, order, []uuid.UUID{order.CustomerID})
	return order, nil
}

func (s *service) MarkDelayed(ctx context.Context, orderID, performedBy uuid.UUID) (*models.Order, error) {
	var order *models.Order
	err := s.lockedTransition(ctx, orderID, func(tx *gorm.DB, repo Repository, current *models.Order) error {
		if !canTransition(current.Status, enums.OrderStatusDelayed) {
			return transitionError(current.Status, enums.OrderStatusDelayed)
		}
		if current.DeliveryStatus == enums.DeliveryStatusDelivered {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "delivered orders cannot be delayed")
		}

		now := s.clock.Now().UTC()
		current.Status = enums.OrderStatusDelayed
		current.DelayedAt = &now

		if err := repo.Save(ctx, current); err != nil {
			return err
		}
		order = current
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notify(ctx, enums.NotificationOrderDelayed, order, []uuid.UUID{order.CustomerID})
	return order, nil
}

func (s *service) Cancel(ctx context.Context, orderID, performedBy uuid.UUID) (*models.Order, error) {
	var order *models.Order
	err := s.lockedTransition(ctx, orderID, func(tx *gorm.DB, repo Repository, current *models.Order) error {
		if !canTransition(current.Status, enums.OrderStatusCancelled) {
			return transitionError(current.Status, enums.OrderStatusCancelled)
		}

		now := s.clock.Now().UTC()
		current.Status = enums.OrderStatusCancelled
		current.CancelledAt = &now

		if err := s.releaseAllocations(ctx, tx, repo, current, performedBy, "order cancelled"); err != nil {
			return err
		}
		if err := repo.Save(ctx, current); err != nil {
			return err
		}
		order = current
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notify(ctx, enums.NotificationOrderCancelled, order, s.orderParties(order))
	return order, nil
}

func (s *service) AdvanceDelivery(ctx context.Context, orderID uuid.UUID, target enums.DeliveryStatus) (*models.Order, error) {
	if !target.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid delivery status %q", target))
	}

	advanced := false
	var order *models.Order
	err := s.lockedTransition(ctx, orderID, func(tx *gorm.DB, repo Repository, current *models.Order) error {
		// Re-sending the current stage must be tolerated: status-update
		// commands are delivered at least once.
		if current.DeliveryStatus == target {
			order = current
			return nil
		}
		if current.Status != enums.OrderStatusApproved {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("delivery cannot advance while order is %s", current.Status))
		}
		if current.DeliveryStatus.Next() != target {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("illegal delivery transition %s -> %s", current.DeliveryStatus, target))
		}

		now := s.clock.Now().UTC()
		current.DeliveryStatus = target
		switch target {
		case enums.DeliveryStatusReadyToPickup:
			if current.ReadyAt == nil {
				current.ReadyAt = &now
			}
		case enums.DeliveryStatusOutForDelivery:
			if current.DispatchedAt == nil {
				current.DispatchedAt = &now
			}
		case enums.DeliveryStatusDelivered:
			if current.DeliveredAt == nil {
				current.DeliveredAt = &now
			}
		}

		if err := repo.Save(ctx, current); err != nil {
			return err
		}
		order = current
		advanced = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if advanced {
		s.notify(ctx, enums.NotificationDeliveryAdvanced, order, []uuid.UUID{order.CustomerID})
	}
	return order, nil
}

func (s *service) MarkReceived(ctx context.Context, orderID uuid.UUID, rating *int, feedback *string) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	if rating != nil && (*rating < 1 || *rating > 5) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "rating must be between 1 and 5")
	}

	current, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	if current.DeliveryStatus != enums.DeliveryStatusDelivered {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order has not been delivered")
	}

	now := s.clock.Now().UTC()
	confirmed, err := s.repo.ConfirmReceived(ctx, orderID, now, rating, feedback)
	if err != nil {
		return nil, err
	}
	if !confirmed {
		// Auto-confirmation or a duplicate command won the race.
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order is already confirmed")
	}

	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	s.notify(ctx, enums.NotificationOrderReceived, order, s.orderParties(order))
	return order, nil
}

func (s *service) ConfirmIfEligible(ctx context.Context, orderID uuid.UUID) (bool, error) {
	if orderID == uuid.Nil {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}

	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return false, err
	}
	if order == nil {
		return false, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	if !s.rule.Eligible(order) {
		return false, nil
	}

	confirmed, err := s.repo.ConfirmReceived(ctx, orderID, s.clock.Now().UTC(), nil, nil)
	if err != nil {
		return false, err
	}
	if !confirmed {
		return false, nil
	}

	ctx = s.logg.WithOrderID(ctx, orderID.String())
	s.logg.Info(ctx, "order auto-confirmed after grace window")

	order, err = s.repo.FindByID(ctx, orderID)
	if err != nil {
		return true, err
	}
	s.notify(ctx, enums.NotificationAutoConfirmed, order, s.orderParties(order))
	return true, nil
}

// Get loads an order, lazily applying auto-confirmation so a stale delivered
// order is never observed unconfirmed past its grace window.
func (s *service) Get(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}

	if s.rule.Eligible(order) {
		if _, err := s.ConfirmIfEligible(ctx, orderID); err != nil {
			return nil, err
		}
		return s.repo.FindByID(ctx, orderID)
	}
	return order, nil
}

func (s *service) Aggregate(ctx context.Context, orderID uuid.UUID) ([]AggregatedRow, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return aggregateLineItems(order.Items), nil
}

func (s *service) ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]models.Order, error) {
	if customerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer id is required")
	}
	return s.repo.ListByCustomer(ctx, customerID)
}

func (s *service) ListPending(ctx context.Context) ([]models.Order, error) {
	return s.repo.FindPendingOrders(ctx)
}

func (s *service) ListByDeliveryStatus(ctx context.Context, status enums.DeliveryStatus) ([]models.Order, error) {
	if !status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid delivery status %q", status))
	}
	return s.repo.FindByDeliveryStatus(ctx, status)
}

func (s *service) FindDeliveredUnconfirmedBefore(ctx context.Context, cutoff time.Time) ([]models.Order, error) {
	return s.repo.FindDeliveredUnconfirmedBefore(ctx, cutoff)
}

func (s *service) FindDelayedSince(ctx context.Context, cutoff time.Time) ([]models.Order, error) {
	return s.repo.FindDelayedSince(ctx, cutoff)
}

// lockedTransition runs fn against the order row under a per-order lock so
// concurrent transitions serialize instead of interleaving.
func (s *service) lockedTransition(ctx context.Context, orderID uuid.UUID, fn func(tx *gorm.DB, repo Repository, current *models.Order) error) error {
	if orderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		current, err := repo.FindByIDForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if current == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return fn(tx, repo, current)
	})
}

// releaseAllocations returns every unreleased line item's quantity to stock.
// The released_at guard makes retried release commands a warned no-op.
func (s *service) releaseAllocations(ctx context.Context, tx *gorm.DB, repo Repository, order *models.Order, performedBy uuid.UUID, note string) error {
	now := s.clock.Now().UTC()
	for i := range order.Items {
		item := &order.Items[i]
		if item.ReleasedAt != nil {
			continue
		}
		released, err := repo.MarkLineItemReleased(ctx, item.ID, now)
		if err != nil {
			return err
		}
		if !released {
			s.logg.Warn(ctx, fmt.Sprintf("allocation %s already released, skipping", item.ID))
			continue
		}
		item.ReleasedAt = &now
		if err := s.stock.Release(ctx, tx, stock.ReleaseRequest{
			StockID:     item.StockID,
			Quantity:    item.Quantity,
			PerformedBy: performedBy,
			Notes:       note,
		}); err != nil {
			return err
		}
	}
	return nil
}

func (s *service) orderParties(order *models.Order) []uuid.UUID {
	seen := map[uuid.UUID]struct{}{order.CustomerID: {}}
	recipients := []uuid.UUID{order.CustomerID}
	for _, item := range order.Items {
		if _, ok := seen[item.MemberID]; ok {
			continue
		}
		seen[item.MemberID] = struct{}{}
		recipients = append(recipients, item.MemberID)
	}
	return recipients
}

func (s *service) notify(ctx context.Context, event enums.NotificationEvent, order *models.Order, recipients []uuid.UUID) {
	if s.notifier == nil || order == nil {
		return
	}
	s.notifier.Notify(ctx, event, order, recipients)
}

func transitionError(from, to enums.OrderStatus) error {
	return pkgerrors.New(pkgerrors.CodeStateConflict,
		fmt.Sprintf("illegal order transition %s -> %s", from, to))
}
