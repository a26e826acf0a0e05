// Package memory is an in-process repository.Store. Transactions are
// serialised behind a single lock and roll back by restoring a snapshot, so it
// behaves like a serialisable database for tests and local development.
package memory

import (
	"context"
	"sync"

	"github.com/egannguyen/go-kafka-ecommerce/storefront/internal/entity"
	"github.com/egannguyen/go-kafka-ecommerce/storefront/internal/repository"
)

type state struct {
	products     map[string]entity.Product
	carts        map[string]entity.Cart
	addresses    map[string]entity.Address
	orders       map[string]entity.Order
	orderNumbers map[string]string
	events       map[string][]entity.EventStoreRecord
}

func newState() *state {
	return &state{
		products:     make(map[string]entity.Product),
		carts:        make(map[string]entity.Cart),
		addresses:    make(map[string]entity.Address),
		orders:       make(map[string]entity.Order),
		orderNumbers: make(map[string]string),
		events:       make(map[string][]entity.EventStoreRecord),
	}
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.products {
		c.products[k] = v
	}
	for k, v := range s.carts {
		c.carts[k] = copyCart(v)
	}
	for k, v := range s.addresses {
		c.addresses[k] = v
	}
	for k, v := range s.orders {
		c.orders[k] = copyOrder(v)
	}
	for k, v := range s.orderNumbers {
		c.orderNumbers[k] = v
	}
	for k, v := range s.events {
		c.events[k] = append([]entity.EventStoreRecord(nil), v...)
	}
	return c
}

// Store is a repository.Store held in memory.
type Store struct {
	mu sync.Mutex
	st *state
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{st: newState()}
}

func (s *Store) Repos() repository.Repositories {
	return (&session{store: s}).repos()
}

func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, repos repository.Repositories) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.st.clone()
	if err := fn(ctx, (&session{store: s, inTx: true}).repos()); err != nil {
		s.st = snapshot
		return err
	}
	return nil
}

func (s *Store) Close() error {
	return nil
}

// session binds repositories either to the store lock (outside a
// transaction) or to the lock already held by InTx.
type session struct {
	store *Store
	inTx  bool
}

func (s *session) do(ctx context.Context, fn func(st *state) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !s.inTx {
		s.store.mu.Lock()
		defer s.store.mu.Unlock()
	}
	return fn(s.store.st)
}

func (s *session) repos() repository.Repositories {
	return repository.Repositories{
		Products:  &productRepository{s},
		Carts:     &cartRepository{s},
		Addresses: &addressRepository{s},
		Orders:    &orderRepository{s},
		Events:    &eventStore{s},
	}
}

func copyCart(c entity.Cart) entity.Cart {
	c.Items = append([]entity.CartItem{}, c.Items...)
	return c
}

func copyOrder(o entity.Order) entity.Order {
	o.Items = append([]entity.OrderItem{}, o.Items...)
	if o.DeliveredAt != nil {
		t := *o.DeliveredAt
		o.DeliveredAt = &t
	}
	if o.CancelledAt != nil {
		t := *o.CancelledAt
		o.CancelledAt = &t
	}
	return o
}
