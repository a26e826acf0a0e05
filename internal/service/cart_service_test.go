package service

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/egannguyen/go-kafka-ecommerce/storefront/internal/apperror"
	"github.com/egannguyen/go-kafka-ecommerce/storefront/internal/entity"
)

func TestCartService_AddItemMergesLines(t *testing.T) {
	f := newFixture(t)

	_, err := f.carts.AddItem(f.ctx, "u1", "p-disc", 1)
	require.NoError(t, err)
	cart, err := f.carts.AddItem(f.ctx, "u1", "p-disc", 2)
	require.NoError(t, err)

	require.Len(t, cart.Items, 1)
	assert.Equal(t, 3, cart.Items[0].Quantity)
	assert.True(t, cart.Items[0].Price.Equal(dec("150")), "price at add time uses the discount price")
	assert.False(t, cart.Items[0].AddedAt.IsZero())
}

func TestCartService_AddItemRejections(t *testing.T) {
	f := newFixture(t)
	f.addToCart(t, "u1", "p-a", 4)

	tests := []struct {
		name      string
		productID string
		quantity  int
		kind      apperror.Kind
		msg       string
	}{
		{"zero quantity", "p-a", 0, apperror.KindInvalid, "quantity must be at least 1"},
		{"unknown product", "p-x", 1, apperror.KindNotFound, "product p-x not found"},
		{"inactive product", "p-off", 1, apperror.KindInvalid, "product Retired is not available"},
		{"merged quantity exceeds stock", "p-a", 2, apperror.KindInvalid, "insufficient stock for Product A (available: 5, requested: 6)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.carts.AddItem(f.ctx, "u1", tt.productID, tt.quantity)
			require.Error(t, err)
			assert.Equal(t, tt.kind, apperror.KindOf(err))
			assert.Equal(t, tt.msg, apperror.MessageOf(err))
		})
	}

	cart, err := f.carts.GetCart(f.ctx, "u1")
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 4, cart.Items[0].Quantity)
}

func TestCartService_UpdateAndRemove(t *testing.T) {
	f := newFixture(t)
	f.addToCart(t, "u1", "p-a", 1)
	f.addToCart(t, "u1", "p-b", 1)

	cart, err := f.carts.UpdateItem(f.ctx, "u1", "p-b", 7)
	require.NoError(t, err)
	assert.Equal(t, 7, cart.Items[1].Quantity)

	_, err = f.carts.UpdateItem(f.ctx, "u1", "p-b", 11)
	assert.Equal(t, apperror.KindInvalid, apperror.KindOf(err))

	_, err = f.carts.UpdateItem(f.ctx, "u1", "p-disc", 1)
	assert.Equal(t, apperror.KindNotFound, apperror.KindOf(err))

	_, err = f.carts.UpdateItem(f.ctx, "u1", "p-a", -1)
	assert.Equal(t, apperror.KindInvalid, apperror.KindOf(err))

	cart, err = f.carts.UpdateItem(f.ctx, "u1", "p-a", 0)
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, "p-b", cart.Items[0].ProductID)

	_, err = f.carts.RemoveItem(f.ctx, "u1", "p-a")
	assert.Equal(t, apperror.KindNotFound, apperror.KindOf(err))

	cart, err = f.carts.RemoveItem(f.ctx, "u1", "p-b")
	require.NoError(t, err)
	assert.Empty(t, cart.Items)
}

func TestCartService_Clear(t *testing.T) {
	f := newFixture(t)
	f.addToCart(t, "u1", "p-a", 1)
	f.addToCart(t, "u2", "p-a", 1)

	require.NoError(t, f.carts.Clear(f.ctx, "u1"))

	cart, err := f.carts.GetCart(f.ctx, "u1")
	require.NoError(t, err)
	assert.True(t, cart.IsEmpty())

	other, err := f.carts.GetCart(f.ctx, "u2")
	require.NoError(t, err)
	assert.Len(t, other.Items, 1)
}

func TestCatalogService(t *testing.T) {
	f := newFixture(t)

	products, err := f.catalog.ListProducts(f.ctx, "product")
	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Equal(t, "Product A", products[0].Name)

	none, err := f.catalog.ListProducts(f.ctx, "zzz")
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)

	_, err = f.catalog.GetProduct(f.ctx, "p-x")
	assert.Equal(t, apperror.KindNotFound, apperror.KindOf(err))

	_, err = f.catalog.UpdateStock(f.ctx, "p-a", -1)
	assert.Equal(t, apperror.KindInvalid, apperror.KindOf(err))
	_, err = f.catalog.UpdateStock(f.ctx, "p-x", 1)
	assert.Equal(t, apperror.KindNotFound, apperror.KindOf(err))

	updated, err := f.catalog.UpdateStock(f.ctx, "p-a", 42)
	require.NoError(t, err)
	assert.Equal(t, 42, updated.Stock)

	require.NoError(t, f.catalog.Seed(f.ctx))
	all, err := f.catalog.ListProducts(f.ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 4, "seeding leaves a populated catalog alone")
}

func TestDemoCatalog_IsConsistent(t *testing.T) {
	seen := make(map[string]bool)
	for _, p := range DemoCatalog() {
		assert.False(t, seen[p.ID], "duplicate id %s", p.ID)
		seen[p.ID] = true
		assert.True(t, p.Price.IsPositive())
		assert.GreaterOrEqual(t, p.Stock, 0)
		if p.DiscountPrice.Valid {
			assert.True(t, p.DiscountPrice.Decimal.LessThan(p.Price))
		}
	}
}

func TestValidatePrices(t *testing.T) {
	require.NoError(t, validatePrices(DemoCatalog()))

	err := validatePrices([]entity.Product{{ID: "p-x", Price: dec("10.005")}})
	assert.Equal(t, apperror.KindInvalid, apperror.KindOf(err))
	assert.Equal(t, "product p-x has invalid price 10.005", apperror.MessageOf(err))

	err = validatePrices([]entity.Product{{ID: "p-y", Price: dec("10"), DiscountPrice: decimal.NewNullDecimal(dec("9.999"))}})
	assert.Equal(t, "product p-y has invalid discount price 9.999", apperror.MessageOf(err))
}

func TestAddressService(t *testing.T) {
	f := newFixture(t)

	_, err := f.addresses.Create(f.ctx, "u1", entity.Address{FullName: "  ", Line1: "1 Main St"})
	require.Error(t, err)
	assert.Equal(t, "missing required address fields: full_name, phone, city, postal_code, country", apperror.MessageOf(err))

	addr, err := f.addresses.Create(f.ctx, "u1", entity.Address{
		ID: "ignored", UserID: "someone-else",
		FullName: " Ada ", Phone: "1", Line1: "1 Main St", City: "Pune", PostalCode: "411001", Country: "IN",
	})
	require.NoError(t, err)
	assert.NotEqual(t, "ignored", addr.ID)
	assert.Equal(t, "u1", addr.UserID)
	assert.Equal(t, "Ada", addr.FullName)

	got, err := f.addresses.Get(f.ctx, "u1", addr.ID)
	require.NoError(t, err)
	assert.Equal(t, addr.ID, got.ID)

	_, err = f.addresses.Get(f.ctx, "u2", addr.ID)
	assert.Equal(t, apperror.KindNotFound, apperror.KindOf(err))

	list, err := f.addresses.List(f.ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, list, 1)
}
