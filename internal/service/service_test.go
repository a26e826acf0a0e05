package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/egannguyen/go-kafka-ecommerce/storefront/internal/checkout"
	"github.com/egannguyen/go-kafka-ecommerce/storefront/internal/entity"
	"github.com/egannguyen/go-kafka-ecommerce/storefront/internal/idempotency"
	"github.com/egannguyen/go-kafka-ecommerce/storefront/internal/messaging/mocks"
	"github.com/egannguyen/go-kafka-ecommerce/storefront/internal/repository"
	"github.com/egannguyen/go-kafka-ecommerce/storefront/internal/repository/memory"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func dec(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

// sequenceNumbers replays a fixed list of order numbers, repeating the last one.
type sequenceNumbers struct {
	mu  sync.Mutex
	seq []string
	i   int
}

func (n *sequenceNumbers) Next() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	idx := min(n.i, len(n.seq)-1)
	n.i++
	return n.seq[idx]
}

type fixture struct {
	ctx       context.Context
	store     repository.Store
	memory    *memory.Store
	publisher *mocks.MockPublisher
	orders    *OrderService
	carts     *CartService
	addresses *AddressService
	catalog   *CatalogService
}

type fixtureConfig struct {
	wrap    func(*memory.Store) repository.Store
	numbers OrderNumbers
}

type fixtureOption func(*fixtureConfig)

func withStore(wrap func(*memory.Store) repository.Store) fixtureOption {
	return func(c *fixtureConfig) { c.wrap = wrap }
}

func withNumbers(numbers ...string) fixtureOption {
	return func(c *fixtureConfig) { c.numbers = &sequenceNumbers{seq: numbers} }
}

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()

	cfg := fixtureConfig{
		wrap:    func(m *memory.Store) repository.Store { return m },
		numbers: checkout.NewOrderNumberGenerator("ORD"),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	ctrl := gomock.NewController(t)
	f := &fixture{
		ctx:       context.Background(),
		memory:    memory.NewStore(),
		publisher: mocks.NewMockPublisher(ctrl),
	}
	f.store = cfg.wrap(f.memory)
	f.orders = NewOrderService(f.store, f.publisher, idempotency.NewMemoryStore(24*time.Hour), checkout.DefaultPolicy(), cfg.numbers)
	f.carts = NewCartService(f.store)
	f.addresses = NewAddressService(f.store)
	f.catalog = NewCatalogService(f.store)

	err := f.memory.Repos().Products.Seed(f.ctx, []entity.Product{
		{ID: "p-a", Name: "Product A", Price: dec("300"), Stock: 5, Status: entity.ProductActive},
		{ID: "p-b", Name: "Product B", Price: dec("100"), Stock: 10, Status: entity.ProductActive},
		{ID: "p-disc", Name: "Discounted", Price: dec("200"), DiscountPrice: decimal.NewNullDecimal(dec("150")), Stock: 5, Status: entity.ProductActive},
		{ID: "p-off", Name: "Retired", Price: dec("50"), Stock: 5, Status: entity.ProductInactive},
	})
	require.NoError(t, err)
	return f
}

func (f *fixture) address(t *testing.T, userID string) string {
	t.Helper()
	addr, err := f.addresses.Create(f.ctx, userID, entity.Address{
		FullName: "Ada Lovelace", Phone: "555-0100", Line1: "1 Main St", City: "Pune", PostalCode: "411001", Country: "IN",
	})
	require.NoError(t, err)
	return addr.ID
}

func (f *fixture) addToCart(t *testing.T, userID, productID string, qty int) {
	t.Helper()
	_, err := f.carts.AddItem(f.ctx, userID, productID, qty)
	require.NoError(t, err)
}

func (f *fixture) stock(t *testing.T, productID string) int {
	t.Helper()
	p, err := f.catalog.GetProduct(f.ctx, productID)
	require.NoError(t, err)
	return p.Stock
}

func (f *fixture) expectPublish(topic string, times int) {
	f.publisher.EXPECT().
		PublishEvent(gomock.Any(), topic, gomock.Any(), gomock.Any()).
		Return(nil).
		Times(times)
}

func (f *fixture) place(t *testing.T, userID, addressID string) *entity.Order {
	t.Helper()
	order, replayed, err := f.orders.PlaceOrder(f.ctx, PlaceOrderInput{
		UserID:            userID,
		ShippingAddressID: addressID,
		PaymentMethod:     entity.PaymentCOD,
	})
	require.NoError(t, err)
	require.False(t, replayed)
	return order
}
