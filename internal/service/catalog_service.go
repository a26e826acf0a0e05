package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/egannguyen/go-kafka-ecommerce/storefront/internal/apperror"
	"github.com/egannguyen/go-kafka-ecommerce/storefront/internal/checkout"
	"github.com/egannguyen/go-kafka-ecommerce/storefront/internal/entity"
	"github.com/egannguyen/go-kafka-ecommerce/storefront/internal/repository"
)

// CatalogService exposes products and admin stock edits.
type CatalogService struct {
	store repository.Store
}

func NewCatalogService(store repository.Store) *CatalogService {
	return &CatalogService{store: store}
}

// ListProducts returns products ordered by name, filtered by a name substring when query is set.
func (s *CatalogService) ListProducts(ctx context.Context, query string) ([]entity.Product, error) {
	products, err := s.store.Repos().Products.FindAll(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	if products == nil {
		products = []entity.Product{}
	}
	return products, nil
}

func (s *CatalogService) GetProduct(ctx context.Context, id string) (*entity.Product, error) {
	product, err := s.store.Repos().Products.FindByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperror.NotFound("product %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load product %s: %w", id, err)
	}
	return product, nil
}

// UpdateStock sets a product's absolute stock level.
func (s *CatalogService) UpdateStock(ctx context.Context, id string, stock int) (*entity.Product, error) {
	slog.Info("Service: Updating stock", "product_id", id, "stock", stock)

	if stock < 0 {
		return nil, apperror.Invalid("stock must not be negative")
	}
	product, err := s.store.Repos().Products.SetStock(ctx, id, stock)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperror.NotFound("product %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update stock for %s: %w", id, err)
	}
	return product, nil
}

// Seed loads the demo catalog into an empty store.
func (s *CatalogService) Seed(ctx context.Context) error {
	products := DemoCatalog()
	if err := validatePrices(products); err != nil {
		return err
	}
	if err := s.store.Repos().Products.Seed(ctx, products); err != nil {
		return fmt.Errorf("failed to seed products: %w", err)
	}
	slog.Info("Catalog seeded")
	return nil
}

func validatePrices(products []entity.Product) error {
	for _, p := range products {
		if !p.Price.IsPositive() || !checkout.IsMoney(p.Price) {
			return apperror.Invalid("product %s has invalid price %s", p.ID, p.Price)
		}
		if p.DiscountPrice.Valid && (p.DiscountPrice.Decimal.IsNegative() || !checkout.IsMoney(p.DiscountPrice.Decimal)) {
			return apperror.Invalid("product %s has invalid discount price %s", p.ID, p.DiscountPrice.Decimal)
		}
	}
	return nil
}

// DemoCatalog is the product set used for local development.
func DemoCatalog() []entity.Product {
	price := func(v string) decimal.Decimal { return decimal.RequireFromString(v) }
	return []entity.Product{
		{ID: "prod-headphones", Name: "Wireless Headphones", Description: "Over-ear, noise cancelling", Price: price("300"), Category: "audio", ImageURL: "/images/headphones.jpg", Stock: 25, Status: entity.ProductActive},
		{ID: "prod-keyboard", Name: "Mechanical Keyboard", Description: "Hot-swappable switches", Price: price("180"), DiscountPrice: decimal.NewNullDecimal(price("149")), Category: "peripherals", ImageURL: "/images/keyboard.jpg", Stock: 40, Status: entity.ProductActive},
		{ID: "prod-lamp", Name: "Desk Lamp", Description: "Dimmable LED", Price: price("100"), Category: "home", ImageURL: "/images/lamp.jpg", Stock: 60, Status: entity.ProductActive},
		{ID: "prod-mug", Name: "Coffee Mug", Description: "Ceramic, 350ml", Price: price("25.50"), Category: "home", ImageURL: "/images/mug.jpg", Stock: 120, Status: entity.ProductActive},
		{ID: "prod-monitor", Name: "27in Monitor", Description: "1440p IPS", Price: price("720"), DiscountPrice: decimal.NewNullDecimal(price("649.99")), Category: "displays", ImageURL: "/images/monitor.jpg", Stock: 8, Status: entity.ProductActive},
		{ID: "prod-webcam", Name: "HD Webcam", Description: "Discontinued model", Price: price("90"), Category: "peripherals", ImageURL: "/images/webcam.jpg", Stock: 0, Status: entity.ProductInactive},
	}
}
