package repository

import (
	"context"
	"errors"

	"github.com/egannguyen/go-kafka-ecommerce/storefront/internal/entity"
)

var (
	// ErrNotFound is returned when a looked-up record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrInsufficientStock is returned by a conditional stock decrement that
	// would take stock below zero.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrDuplicateOrderNumber is returned when an order number is already taken.
	ErrDuplicateOrderNumber = errors.New("duplicate order number")
	// ErrStatusConflict is returned when an order's status changed underneath a
	// compare-and-set status update.
	ErrStatusConflict = errors.New("order status changed concurrently")
	// ErrConcurrency is returned when an event stream is not at the expected version.
	ErrConcurrency = errors.New("event stream version conflict")
)

// ProductRepository handles persistence for Products.
type ProductRepository interface {
	// FindAll lists products ordered by name, optionally filtered by a
	// case-insensitive substring of the name.
	FindAll(ctx context.Context, query string) ([]entity.Product, error)
	FindByID(ctx context.Context, id string) (*entity.Product, error)
	// FindByIDs returns the products that exist among ids, keyed by id.
	FindByIDs(ctx context.Context, ids []string) (map[string]*entity.Product, error)
	SetStock(ctx context.Context, id string, stock int) (*entity.Product, error)
	// DecrementStock subtracts qty only if at least qty units are in stock.
	DecrementStock(ctx context.Context, id string, qty int) error
	IncrementStock(ctx context.Context, id string, qty int) error
	// Seed inserts initial products if none exist.
	Seed(ctx context.Context, products []entity.Product) error
}

// CartRepository handles persistence for Carts.
type CartRepository interface {
	// FindByUser returns the user's cart, or an empty one if none was stored yet.
	FindByUser(ctx context.Context, userID string) (*entity.Cart, error)
	Save(ctx context.Context, cart *entity.Cart) error
	// Clear empties the cart's lines but keeps the cart.
	Clear(ctx context.Context, userID string) error
}

// AddressRepository handles persistence for Addresses.
type AddressRepository interface {
	Create(ctx context.Context, addr *entity.Address) error
	FindByUser(ctx context.Context, userID string) ([]entity.Address, error)
	// FindByID returns ErrNotFound unless the address belongs to userID.
	FindByID(ctx context.Context, userID, id string) (*entity.Address, error)
}

// OrderRepository handles persistence for Orders.
type OrderRepository interface {
	Create(ctx context.Context, order *entity.Order) error
	FindByID(ctx context.Context, id string) (*entity.Order, error)
	FindByUser(ctx context.Context, userID string) ([]entity.Order, error)
	FindRecent(ctx context.Context, limit int) ([]entity.Order, error)
	// UpdateStatus persists the order's status fields only if its stored
	// status still equals from.
	UpdateStatus(ctx context.Context, order *entity.Order, from entity.OrderStatus) error
}

// EventStore handles appending and loading events for an aggregate stream.
type EventStore interface {
	SaveEvents(ctx context.Context, streamID string, streamType string, expectedVersion int, events []entity.Event) error
	LoadEvents(ctx context.Context, streamID string) ([]entity.EventStoreRecord, error)
}

// Repositories groups the repositories bound to one connection or transaction.
type Repositories struct {
	Products  ProductRepository
	Carts     CartRepository
	Addresses AddressRepository
	Orders    OrderRepository
	Events    EventStore
}

// Store hands out repositories and runs units of work atomically.
type Store interface {
	Repos() Repositories
	// InTx runs fn against repositories bound to a single transaction. The
	// transaction commits when fn returns nil and rolls back otherwise.
	InTx(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error
	Close() error
}
