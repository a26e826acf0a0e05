package checkout

import (
	"github.com/shopspring/decimal"

	"github.com/egannguyen/go-kafka-ecommerce/storefront/internal/entity"
)

// Policy holds the shipping and tax parameters used to total an order.
type Policy struct {
	// Shipping is free when the subtotal is strictly greater than this.
	FreeShippingThreshold decimal.Decimal
	ShippingFee           decimal.Decimal
	TaxRate               decimal.Decimal
}

// DefaultPolicy is free shipping above 500, a flat fee of 50 otherwise and 18% tax.
func DefaultPolicy() Policy {
	return Policy{
		FreeShippingThreshold: decimal.NewFromInt(500),
		ShippingFee:           decimal.NewFromInt(50),
		TaxRate:               decimal.RequireFromString("0.18"),
	}
}

// MoneyPlaces is the scale of every stored monetary column.
const MoneyPlaces = 2

// IsMoney reports whether d is representable at MoneyPlaces without rounding.
func IsMoney(d decimal.Decimal) bool {
	return d.Equal(d.Round(MoneyPlaces))
}

// UnitPrice is the discount price when one is set, else the list price,
// rounded to MoneyPlaces.
func UnitPrice(p *entity.Product) decimal.Decimal {
	if p.DiscountPrice.Valid {
		return p.DiscountPrice.Decimal.Round(MoneyPlaces)
	}
	return p.Price.Round(MoneyPlaces)
}

// BuildLines snapshots each cart line into an order line using the product's
// current name, image and unit price. Lines must already be validated.
func BuildLines(items []entity.CartItem, products map[string]*entity.Product) []entity.OrderItem {
	lines := make([]entity.OrderItem, 0, len(items))
	for _, item := range items {
		p := products[item.ProductID]
		price := UnitPrice(p)
		lines = append(lines, entity.OrderItem{
			ProductID:    p.ID,
			ProductName:  p.Name,
			ProductImage: p.ImageURL,
			Quantity:     item.Quantity,
			Price:        price,
			Subtotal:     price.Mul(decimal.NewFromInt(int64(item.Quantity))),
		})
	}
	return lines
}

// Calculate derives the order totals from priced lines. Discounts are not
// applied at checkout, so DiscountAmount is always zero.
func (p Policy) Calculate(lines []entity.OrderItem) entity.Totals {
	total := decimal.Zero
	for _, line := range lines {
		total = total.Add(line.Subtotal)
	}

	shipping := p.ShippingFee
	if total.GreaterThan(p.FreeShippingThreshold) {
		shipping = decimal.Zero
	}

	tax := total.Mul(p.TaxRate).Round(0)
	discount := decimal.Zero

	return entity.Totals{
		TotalAmount:    total,
		DiscountAmount: discount,
		ShippingAmount: shipping,
		TaxAmount:      tax,
		FinalAmount:    total.Add(shipping).Add(tax).Sub(discount),
	}
}
