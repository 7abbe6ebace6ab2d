package earnings

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/anihan/coop-market-backend/pkg/db/models"
	pkgerrors "github.com/anihan/coop-market-backend/pkg/errors"
)

// Service tracks what the cooperative owes each supplying member.
type Service interface {
	// RecordForOrder writes one earning row per line item of a freshly
	// approved order, inside the approval transaction.
	RecordForOrder(ctx context.Context, tx *gorm.DB, order *models.Order) error
	ListByMember(ctx context.Context, memberID uuid.UUID) ([]models.MemberEarning, error)
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.MemberEarning, error)
	TotalForMember(ctx context.Context, memberID uuid.UUID) (decimal.Decimal, error)
}

type service struct {
	repo Repository
}

// NewService wires an earnings service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("earnings repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) RecordForOrder(ctx context.Context, tx *gorm.DB, order *models.Order) error {
	if order == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order is required")
	}
	rows := make([]models.MemberEarning, 0, len(order.Items))
	for _, item := range order.Items {
		rows = append(rows, models.MemberEarning{
			MemberID: item.MemberID,
			OrderID:  order.ID,
			StockID:  item.StockID,
			Quantity: item.Quantity,
			Amount:   item.TotalAmount,
		})
	}
	return s.repo.WithTx(tx).CreateBatch(ctx, rows)
}

func (s *service) ListByMember(ctx context.Context, memberID uuid.UUID) ([]models.MemberEarning, error) {
	if memberID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "member id is required")
	}
	return s.repo.ListByMember(ctx, memberID)
}

func (s *service) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.MemberEarning, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	return s.repo.ListByOrder(ctx, orderID)
}

func (s *service) TotalForMember(ctx context.Context, memberID uuid.UUID) (decimal.Decimal, error) {
	if memberID == uuid.Nil {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "member id is required")
	}
	return s.repo.TotalForMember(ctx, memberID)
}
