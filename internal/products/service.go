package products

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/anihan/coop-market-backend/pkg/db/models"
	"github.com/anihan/coop-market-backend/pkg/enums"
	pkgerrors "github.com/anihan/coop-market-backend/pkg/errors"
)

// Service owns the product catalog and its per-category pricing.
type Service interface {
	CreateProduct(ctx context.Context, input CreateProductInput) (*models.Product, error)
	UpdatePrices(ctx context.Context, productID uuid.UUID, input UpdatePricesInput) (*models.Product, error)
	Archive(ctx context.Context, productID uuid.UUID) error
	Get(ctx context.Context, productID uuid.UUID) (*models.Product, error)
	List(ctx context.Context, includeArchived bool) ([]models.Product, error)
	// UnitPrice resolves the orderable price for a product in a category.
	// Archived products and unpriced categories are rejected.
	UnitPrice(ctx context.Context, productID uuid.UUID, category enums.UnitCategory) (decimal.Decimal, error)
}

// CreateProductInput captures a new catalog item. At least one category
// price must be set.
type CreateProductInput struct {
	Name      string
	PriceKilo *decimal.Decimal
	PricePc   *decimal.Decimal
	PriceTali *decimal.Decimal
}

// UpdatePricesInput carries per-category price changes. Nil fields are left
// untouched; historical orders keep their snapshotted prices either way.
type UpdatePricesInput struct {
	PriceKilo *decimal.Decimal
	PricePc   *decimal.Decimal
	PriceTali *decimal.Decimal
}

type service struct {
	repo Repository
}

// NewService wires a product service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("product repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) CreateProduct(ctx context.Context, input CreateProductInput) (*models.Product, error) {
	if input.Name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product name is required")
	}
	if input.PriceKilo == nil && input.PricePc == nil && input.PriceTali == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one category price is required")
	}
	for _, price := range []*decimal.Decimal{input.PriceKilo, input.PricePc, input.PriceTali} {
		if price != nil && price.IsNegative() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "prices cannot be negative")
		}
	}

	product := &models.Product{
		Name:      input.Name,
		PriceKilo: input.PriceKilo,
		PricePc:   input.PricePc,
		PriceTali: input.PriceTali,
	}
	if err := s.repo.Create(ctx, product); err != nil {
		return nil, err
	}
	return product, nil
}

func (s *service) UpdatePrices(ctx context.Context, productID uuid.UUID, input UpdatePricesInput) (*models.Product, error) {
	product, err := s.mustFind(ctx, productID)
	if err != nil {
		return nil, err
	}

	for _, price := range []*decimal.Decimal{input.PriceKilo, input.PricePc, input.PriceTali} {
		if price != nil && price.IsNegative() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "prices cannot be negative")
		}
	}

	if input.PriceKilo != nil {
		product.PriceKilo = input.PriceKilo
	}
	if input.PricePc != nil {
		product.PricePc = input.PricePc
	}
	if input.PriceTali != nil {
		product.PriceTali = input.PriceTali
	}

	if err := s.repo.Save(ctx, product); err != nil {
		return nil, err
	}
	return product, nil
}

func (s *service) Archive(ctx context.Context, productID uuid.UUID) error {
	product, err := s.mustFind(ctx, productID)
	if err != nil {
		return err
	}
	if product.Archived {
		return nil
	}
	product.Archived = true
	return s.repo.Save(ctx, product)
}

func (s *service) Get(ctx context.Context, productID uuid.UUID) (*models.Product, error) {
	return s.mustFind(ctx, productID)
}

func (s *service) List(ctx context.Context, includeArchived bool) ([]models.Product, error) {
	return s.repo.List(ctx, includeArchived)
}

func (s *service) UnitPrice(ctx context.Context, productID uuid.UUID, category enums.UnitCategory) (decimal.Decimal, error) {
	if !category.IsValid() {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid unit category %q", category))
	}
	product, err := s.mustFind(ctx, productID)
	if err != nil {
		return decimal.Zero, err
	}
	if product.Archived {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeStateConflict, "product is archived")
	}
	price := product.PriceFor(category)
	if price == nil {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("product is not priced per %s", category))
	}
	return *price, nil
}

func (s *service) mustFind(ctx context.Context, productID uuid.UUID) (*models.Product, error) {
	if productID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	product, err := s.repo.FindByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	return product, nil
}
