// Package checkout holds the pure steps of order placement: stock and
// availability validation, price resolution, totals and order numbering.
package checkout

import (
	"github.com/egannguyen/go-kafka-ecommerce/storefront/internal/apperror"
	"github.com/egannguyen/go-kafka-ecommerce/storefront/internal/entity"
)

// ValidateLines checks every cart line against the current product records.
// products is keyed by product id; a missing key means the product is gone.
// The first failing line aborts validation.
func ValidateLines(items []entity.CartItem, products map[string]*entity.Product) error {
	if len(items) == 0 {
		return apperror.Invalid("cart is empty")
	}
	for _, item := range items {
		if item.Quantity <= 0 {
			return apperror.Invalid("invalid quantity %d for product %s", item.Quantity, item.ProductID)
		}
		p, ok := products[item.ProductID]
		if !ok || p == nil {
			return apperror.Invalid("product %s is no longer available", item.ProductID)
		}
		if p.Status != entity.ProductActive {
			return apperror.Invalid("product %s is not available", p.Name)
		}
		if p.Stock < item.Quantity {
			return InsufficientStock(p.Name, p.Stock, item.Quantity)
		}
	}
	return nil
}

// InsufficientStock builds the error returned when a line exceeds stock.
func InsufficientStock(productName string, available, requested int) *apperror.Error {
	return apperror.Invalid("insufficient stock for %s (available: %d, requested: %d)", productName, available, requested)
}
