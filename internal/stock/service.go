package stock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/anihan/coop-market-backend/pkg/clock"
	"github.com/anihan/coop-market-backend/pkg/db"
	"github.com/anihan/coop-market-backend/pkg/db/models"
	"github.com/anihan/coop-market-backend/pkg/enums"
	pkgerrors "github.com/anihan/coop-market-backend/pkg/errors"
	"github.com/anihan/coop-market-backend/pkg/logger"
)

// Service owns stock quantities and the audit trail behind them. Every
// mutation lands one trail entry in the same transaction as the quantity
// change.
type Service interface {
	AddSupply(ctx context.Context, input AddSupplyInput) (*models.StockEntry, error)
	Adjust(ctx context.Context, input AdjustInput) (*models.StockEntry, error)
	Reserve(ctx context.Context, tx *gorm.DB, req ReserveRequest) ([]Allocation, error)
	Release(ctx context.Context, tx *gorm.DB, req ReleaseRequest) error
	GetEntry(ctx context.Context, id uuid.UUID) (*models.StockEntry, error)
	ListByMember(ctx context.Context, memberID uuid.UUID) ([]models.StockEntry, error)
	Trail(ctx context.Context, stockID uuid.UUID) ([]models.StockTrailEntry, error)
	TrailByProduct(ctx context.Context, productID uuid.UUID) ([]models.StockTrailEntry, error)
	TrailByTimeRange(ctx context.Context, from, to time.Time) ([]models.StockTrailEntry, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type service struct {
	repo  Repository
	trail TrailRepository
	tx    txRunner
	logg  *logger.Logger
	clock clock.Clock
}

// NewService wires a stock service with its repositories.
func NewService(repo Repository, trail TrailRepository, tx txRunner, logg *logger.Logger, clk clock.Clock) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("stock repository required")
	}
	if trail == nil {
		return nil, fmt.Errorf("stock trail repository required")
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
	return &service{repo: repo, trail: trail, tx: tx, logg: logg, clock: clk}, nil
}

// AddSupplyInput captures a member dropping off produce.
type AddSupplyInput struct {
	ProductID   uuid.UUID
	MemberID    uuid.UUID
	Category    enums.UnitCategory
	Quantity    decimal.Decimal
	PerformedBy uuid.UUID
	Notes       string
}

// AdjustInput captures a manual correction to an entry's quantity.
type AdjustInput struct {
	StockID     uuid.UUID
	NewQuantity decimal.Decimal
	PerformedBy uuid.UUID
	Notes       string
}

// ReserveRequest asks for qty of a product in one unit category, drawn from
// however many members' entries it takes.
type ReserveRequest struct {
	ProductID   uuid.UUID
	Category    enums.UnitCategory
	Quantity    decimal.Decimal
	PerformedBy uuid.UUID
}

// Allocation is one slice of a fulfilled reservation: qty taken from a
// single member's stock entry.
type Allocation struct {
	StockID  uuid.UUID
	MemberID uuid.UUID
	Quantity decimal.Decimal
}

// ReleaseRequest returns a previously reserved quantity to an entry.
type ReleaseRequest struct {
	StockID     uuid.UUID
	Quantity    decimal.Decimal
	PerformedBy uuid.UUID
	Notes       string
}

func (s *service) AddSupply(ctx context.Context, input AddSupplyInput) (*models.StockEntry, error) {
	if input.ProductID == uuid.Nil || input.MemberID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id and member id are required")
	}
	if !input.Category.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid unit category %q", input.Category))
	}
	if !input.Quantity.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}

	var entry *models.StockEntry
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		trail := s.trail.WithTx(tx)

		existing, err := repo.FindByOwner(ctx, input.ProductID, input.MemberID, input.Category)
		if err != nil {
			return err
		}

		if existing == nil {
			entry = &models.StockEntry{
				ProductID: input.ProductID,
				MemberID:  input.MemberID,
				Category:  input.Category,
				Quantity:  input.Quantity,
			}
			if err := repo.Create(ctx, entry); err != nil {
				if db.IsUniqueViolation(err, "ux_stock_entries_product_member_category") {
					return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "concurrent supply for the same pool entry, retry")
				}
				return err
			}
			return s.appendTrail(ctx, trail, entry, enums.StockActionSupplied, decimal.Zero, input.Quantity, input.PerformedBy, input.Notes)
		}

		newQty, err := repo.IncrementQuantity(ctx, existing.ID, input.Quantity)
		if err != nil {
			return err
		}
		existing.Quantity = newQty
		entry = existing
		return s.appendTrail(ctx, trail, entry, enums.StockActionSupplied, newQty.Sub(input.Quantity), newQty, input.PerformedBy, input.Notes)
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

func (s *service) Adjust(ctx context.Context, input AdjustInput) (*models.StockEntry, error) {
	if input.StockID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "stock id is required")
	}
	if input.NewQuantity.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity cannot be negative")
	}

	var entry *models.StockEntry
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		trail := s.trail.WithTx(tx)

		found, err := repo.FindByID(ctx, input.StockID)
		if err != nil {
			return err
		}
		if found == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "stock entry not found")
		}

		oldQty := found.Quantity
		if err := repo.SetQuantity(ctx, found.ID, input.NewQuantity); err != nil {
			return err
		}
		found.Quantity = input.NewQuantity
		entry = found
		return s.appendTrail(ctx, trail, entry, enums.StockActionAdjusted, oldQty, input.NewQuantity, input.PerformedBy, input.Notes)
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// Reserve decrements stock for req inside the caller's transaction, greedily
// draining the deepest entries first. Either the full quantity is reserved or
// nothing is: an insufficient pool returns CodeInsufficientStock so the
// surrounding transaction rolls back.
func (s *service) Reserve(ctx context.Context, tx *gorm.DB, req ReserveRequest) ([]Allocation, error) {
	if tx == nil {
		return nil, fmt.Errorf("transaction required")
	}
	if req.ProductID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	if !req.Category.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid unit category %q", req.Category))
	}
	if !req.Quantity.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}

	repo := s.repo.WithTx(tx)
	trail := s.trail.WithTx(tx)

	entries, err := repo.FindAvailableForProduct(ctx, req.ProductID, req.Category)
	if err != nil {
		return nil, err
	}

	remaining := req.Quantity
	var allocations []Allocation

	for _, entry := range entries {
		if !remaining.IsPositive() {
			break
		}

		available := entry.Quantity
		for available.IsPositive() {
			take := decimal.Min(remaining, available)
			newQty, ok, err := repo.DecrementQuantity(ctx, entry.ID, take)
			if err != nil {
				return nil, err
			}
			if !ok {
				// Entry shrank under a concurrent reservation. Re-read and
				// retry with whatever is left.
				fresh, err := repo.FindByID(ctx, entry.ID)
				if err != nil {
					return nil, err
				}
				if fresh == nil || !fresh.Quantity.IsPositive() {
					available = decimal.Zero
					continue
				}
				available = fresh.Quantity
				continue
			}

			// The trail pair comes from the row the update actually hit,
			// not from the earlier scan, so (old, new) always matches the
			// real delta even when a concurrent decrement landed between
			// the scan and this statement.
			if err := s.appendTrail(ctx, trail, &entry, enums.StockActionReserved, newQty.Add(take), newQty, req.PerformedBy, ""); err != nil {
				return nil, err
			}
			allocations = append(allocations, Allocation{
				StockID:  entry.ID,
				MemberID: entry.MemberID,
				Quantity: take,
			})
			remaining = remaining.Sub(take)
			break
		}
	}

	if remaining.IsPositive() {
		s.logg.Warn(ctx, fmt.Sprintf("insufficient stock for product %s: short %s %s", req.ProductID, remaining, req.Category))
		return nil, pkgerrors.New(pkgerrors.CodeInsufficientStock, "insufficient stock to fulfill request").
			WithDetails(map[string]any{
				"product_id": req.ProductID,
				"category":   req.Category,
				"requested":  req.Quantity.String(),
				"short":      remaining.String(),
			})
	}

	return allocations, nil
}

// Release returns qty to an entry inside the caller's transaction. The
// caller is responsible for the double-release guard on the allocation row.
func (s *service) Release(ctx context.Context, tx *gorm.DB, req ReleaseRequest) error {
	if tx == nil {
		return fmt.Errorf("transaction required")
	}
	if req.StockID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "stock id is required")
	}
	if !req.Quantity.IsPositive() {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}

	repo := s.repo.WithTx(tx)
	trail := s.trail.WithTx(tx)

	entry, err := repo.FindByID(ctx, req.StockID)
	if err != nil {
		return err
	}
	if entry == nil {
		return pkgerrors.New(pkgerrors.CodeNotFound, "stock entry not found")
	}

	newQty, err := repo.IncrementQuantity(ctx, entry.ID, req.Quantity)
	if err != nil {
		return err
	}
	return s.appendTrail(ctx, trail, entry, enums.StockActionReleased, newQty.Sub(req.Quantity), newQty, req.PerformedBy, req.Notes)
}

func (s *service) GetEntry(ctx context.Context, id uuid.UUID) (*models.StockEntry, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "stock id is required")
	}
	entry, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "stock entry not found")
	}
	return entry, nil
}

func (s *service) ListByMember(ctx context.Context, memberID uuid.UUID) ([]models.StockEntry, error) {
	if memberID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "member id is required")
	}
	return s.repo.ListByMember(ctx, memberID)
}

func (s *service) Trail(ctx context.Context, stockID uuid.UUID) ([]models.StockTrailEntry, error) {
	if stockID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "stock id is required")
	}
	return s.trail.ListByStockID(ctx, stockID)
}

func (s *service) TrailByProduct(ctx context.Context, productID uuid.UUID) ([]models.StockTrailEntry, error) {
	if productID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	return s.trail.ListByProductID(ctx, productID)
}

func (s *service) TrailByTimeRange(ctx context.Context, from, to time.Time) ([]models.StockTrailEntry, error) {
	if from.IsZero() || to.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "from and to are required")
	}
	if !from.Before(to) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "from must be earlier than to")
	}
	return s.trail.ListByTimeRange(ctx, from, to)
}

func (s *service) appendTrail(ctx context.Context, trail TrailRepository, entry *models.StockEntry, action enums.StockAction, oldQty, newQty decimal.Decimal, performedBy uuid.UUID, notes string) error {
	record := &models.StockTrailEntry{
		StockID:     entry.ID,
		ProductID:   entry.ProductID,
		MemberID:    &entry.MemberID,
		Action:      action,
		OldQuantity: oldQty,
		NewQuantity: newQty,
		CreatedAt:   s.clock.Now().UTC(),
	}
	if performedBy != uuid.Nil {
		record.PerformedBy = &performedBy
	}
	if notes != "" {
		record.Notes = &notes
	}
	return trail.Append(ctx, record)
}
