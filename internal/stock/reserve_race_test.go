package stock

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/anihan/coop-market-backend/pkg/db/models"
	"github.com/anihan/coop-market-backend/pkg/enums"
	pkgerrors "github.com/anihan/coop-market-backend/pkg/errors"
	"github.com/anihan/coop-market-backend/pkg/logger"
)

// contendedRepo models one stock row that a concurrent reservation has
// already decremented: the availability scan still reports the stale
// quantity while the conditional update runs against the real row.
type contendedRepo struct {
	entry      models.StockEntry
	qty        decimal.Decimal
	scanQty    decimal.Decimal
	decrements int
	casMisses  int
}

func (r *contendedRepo) WithTx(_ *gorm.DB) Repository { return r }

func (r *contendedRepo) Create(context.Context, *models.StockEntry) error {
	panic("unexpected create")
}

func (r *contendedRepo) FindByID(_ context.Context, id uuid.UUID) (*models.StockEntry, error) {
	if id != r.entry.ID {
		return nil, nil
	}
	fresh := r.entry
	fresh.Quantity = r.qty
	return &fresh, nil
}

func (r *contendedRepo) FindByOwner(context.Context, uuid.UUID, uuid.UUID, enums.UnitCategory) (*models.StockEntry, error) {
	panic("unexpected find by owner")
}

func (r *contendedRepo) FindAvailableForProduct(context.Context, uuid.UUID, enums.UnitCategory) ([]models.StockEntry, error) {
	stale := r.entry
	stale.Quantity = r.scanQty
	return []models.StockEntry{stale}, nil
}

func (r *contendedRepo) ListByMember(context.Context, uuid.UUID) ([]models.StockEntry, error) {
	panic("unexpected list")
}

func (r *contendedRepo) DecrementQuantity(_ context.Context, id uuid.UUID, qty decimal.Decimal) (decimal.Decimal, bool, error) {
	r.decrements++
	if id != r.entry.ID || r.qty.LessThan(qty) {
		r.casMisses++
		return decimal.Zero, false, nil
	}
	r.qty = r.qty.Sub(qty)
	return r.qty, true, nil
}

func (r *contendedRepo) IncrementQuantity(_ context.Context, id uuid.UUID, qty decimal.Decimal) (decimal.Decimal, error) {
	if id != r.entry.ID {
		return decimal.Zero, gorm.ErrRecordNotFound
	}
	r.qty = r.qty.Add(qty)
	return r.qty, nil
}

func (r *contendedRepo) SetQuantity(context.Context, uuid.UUID, decimal.Decimal) error {
	panic("unexpected set")
}

type recordingTrail struct {
	rows []models.StockTrailEntry
}

func (tr *recordingTrail) WithTx(_ *gorm.DB) TrailRepository { return tr }

func (tr *recordingTrail) Append(_ context.Context, entry *models.StockTrailEntry) error {
	tr.rows = append(tr.rows, *entry)
	return nil
}

func (tr *recordingTrail) ListByStockID(context.Context, uuid.UUID) ([]models.StockTrailEntry, error) {
	return tr.rows, nil
}

func (tr *recordingTrail) ListByProductID(context.Context, uuid.UUID) ([]models.StockTrailEntry, error) {
	return tr.rows, nil
}

func (tr *recordingTrail) ListByTimeRange(context.Context, time.Time, time.Time) ([]models.StockTrailEntry, error) {
	return tr.rows, nil
}

type noopTxRunner struct{}

func (noopTxRunner) WithTx(_ context.Context, fn func(tx *gorm.DB) error) error {
	return fn(&gorm.DB{})
}

func newContendedRepo(scan, actual string) *contendedRepo {
	return &contendedRepo{
		entry: models.StockEntry{
			ID:        uuid.New(),
			ProductID: uuid.New(),
			MemberID:  uuid.New(),
			Category:  enums.UnitCategoryKilo,
		},
		qty:     decimal.RequireFromString(actual),
		scanQty: decimal.RequireFromString(scan),
	}
}

func newContendedService(t *testing.T, repo *contendedRepo, trail *recordingTrail) Service {
	t.Helper()
	svc, err := NewService(repo, trail, noopTxRunner{}, logger.New(logger.Options{ServiceName: "stock-test"}), nil)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func TestReserveTrailMatchesRowAfterConcurrentDecrement(t *testing.T) {
	t.Parallel()

	// Scan saw 10, but a committed concurrent reservation already took the
	// row to 7. The decrement of 5 still succeeds against the real row.
	repo := newContendedRepo("10", "7")
	trail := &recordingTrail{}
	svc := newContendedService(t, repo, trail)

	allocs, err := svc.Reserve(context.Background(), &gorm.DB{}, ReserveRequest{
		ProductID: repo.entry.ProductID,
		Category:  enums.UnitCategoryKilo,
		Quantity:  decimal.RequireFromString("5"),
	})
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if len(allocs) != 1 || !allocs[0].Quantity.Equal(decimal.RequireFromString("5")) {
		t.Fatalf("unexpected allocations: %+v", allocs)
	}
	if !repo.qty.Equal(decimal.RequireFromString("2")) {
		t.Fatalf("row quantity = %s, want 2", repo.qty)
	}

	// The trail pair must describe the delta the row actually took, not
	// the one the stale scan implied.
	if len(trail.rows) != 1 {
		t.Fatalf("expected one trail row, got %d", len(trail.rows))
	}
	row := trail.rows[0]
	if !row.OldQuantity.Equal(decimal.RequireFromString("7")) ||
		!row.NewQuantity.Equal(decimal.RequireFromString("2")) {
		t.Fatalf("trail recorded old=%s new=%s, want 7 -> 2", row.OldQuantity, row.NewQuantity)
	}
}

func TestReserveRetriesAfterEntryShrinks(t *testing.T) {
	t.Parallel()

	// Requesting the full stale quantity misses the conditional update,
	// forcing the re-read path; the retry takes what is really left and
	// the shortfall surfaces as insufficient stock.
	repo := newContendedRepo("10", "7")
	trail := &recordingTrail{}
	svc := newContendedService(t, repo, trail)

	_, err := svc.Reserve(context.Background(), &gorm.DB{}, ReserveRequest{
		ProductID: repo.entry.ProductID,
		Category:  enums.UnitCategoryKilo,
		Quantity:  decimal.RequireFromString("10"),
	})
	if !pkgerrors.IsCode(err, pkgerrors.CodeInsufficientStock) {
		t.Fatalf("expected insufficient stock, got %v", err)
	}

	if repo.casMisses != 1 {
		t.Fatalf("expected one conditional-update miss, got %d", repo.casMisses)
	}
	if repo.decrements != 2 {
		t.Fatalf("expected miss then retry, got %d decrements", repo.decrements)
	}
	// The retry drained only what the row really held; it never went
	// negative and never handed out more than 7.
	if !repo.qty.Equal(decimal.Zero) {
		t.Fatalf("row quantity = %s, want 0", repo.qty)
	}
	if len(trail.rows) != 1 {
		t.Fatalf("expected one trail row for the successful take, got %d", len(trail.rows))
	}
	if !trail.rows[0].OldQuantity.Equal(decimal.RequireFromString("7")) ||
		!trail.rows[0].NewQuantity.Equal(decimal.Zero) {
		t.Fatalf("trail recorded old=%s new=%s, want 7 -> 0",
			trail.rows[0].OldQuantity, trail.rows[0].NewQuantity)
	}
}
