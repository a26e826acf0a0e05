package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/egannguyen/go-kafka-ecommerce/storefront/internal/entity"
	"github.com/egannguyen/go-kafka-ecommerce/storefront/internal/repository"
)

type productRepository struct{ s *session }

func (r *productRepository) FindAll(ctx context.Context, query string) ([]entity.Product, error) {
	needle := strings.ToLower(strings.TrimSpace(query))
	var products []entity.Product
	err := r.s.do(ctx, func(st *state) error {
		for _, p := range st.products {
			if needle == "" || strings.Contains(strings.ToLower(p.Name), needle) {
				products = append(products, p)
			}
		}
		return nil
	})
	sort.Slice(products, func(i, j int) bool { return products[i].Name < products[j].Name })
	return products, err
}

func (r *productRepository) FindByID(ctx context.Context, id string) (*entity.Product, error) {
	var p entity.Product
	err := r.s.do(ctx, func(st *state) error {
		found, ok := st.products[id]
		if !ok {
			return repository.ErrNotFound
		}
		p = found
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *productRepository) FindByIDs(ctx context.Context, ids []string) (map[string]*entity.Product, error) {
	products := make(map[string]*entity.Product, len(ids))
	err := r.s.do(ctx, func(st *state) error {
		for _, id := range ids {
			if p, ok := st.products[id]; ok {
				products[id] = &p
			}
		}
		return nil
	})
	return products, err
}

func (r *productRepository) SetStock(ctx context.Context, id string, stock int) (*entity.Product, error) {
	var p entity.Product
	err := r.s.do(ctx, func(st *state) error {
		found, ok := st.products[id]
		if !ok {
			return repository.ErrNotFound
		}
		if stock < 0 {
			return fmt.Errorf("stock must not be negative: %d", stock)
		}
		found.Stock = stock
		found.UpdatedAt = time.Now()
		st.products[id] = found
		p = found
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *productRepository) DecrementStock(ctx context.Context, id string, qty int) error {
	return r.s.do(ctx, func(st *state) error {
		p, ok := st.products[id]
		if !ok || p.Stock < qty {
			return repository.ErrInsufficientStock
		}
		p.Stock -= qty
		p.UpdatedAt = time.Now()
		st.products[id] = p
		return nil
	})
}

func (r *productRepository) IncrementStock(ctx context.Context, id string, qty int) error {
	return r.s.do(ctx, func(st *state) error {
		p, ok := st.products[id]
		if !ok {
			return repository.ErrNotFound
		}
		p.Stock += qty
		p.UpdatedAt = time.Now()
		st.products[id] = p
		return nil
	})
}

func (r *productRepository) Seed(ctx context.Context, products []entity.Product) error {
	return r.s.do(ctx, func(st *state) error {
		if len(st.products) > 0 {
			return nil
		}
		for _, p := range products {
			if p.UpdatedAt.IsZero() {
				p.UpdatedAt = time.Now()
			}
			st.products[p.ID] = p
		}
		return nil
	})
}

type cartRepository struct{ s *session }

func (r *cartRepository) FindByUser(ctx context.Context, userID string) (*entity.Cart, error) {
	cart := entity.Cart{UserID: userID, Items: []entity.CartItem{}}
	err := r.s.do(ctx, func(st *state) error {
		if stored, ok := st.carts[userID]; ok {
			cart = copyCart(stored)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &cart, nil
}

func (r *cartRepository) Save(ctx context.Context, cart *entity.Cart) error {
	return r.s.do(ctx, func(st *state) error {
		cart.UpdatedAt = time.Now()
		st.carts[cart.UserID] = copyCart(*cart)
		return nil
	})
}

func (r *cartRepository) Clear(ctx context.Context, userID string) error {
	return r.s.do(ctx, func(st *state) error {
		st.carts[userID] = entity.Cart{UserID: userID, Items: []entity.CartItem{}, UpdatedAt: time.Now()}
		return nil
	})
}

type addressRepository struct{ s *session }

func (r *addressRepository) Create(ctx context.Context, addr *entity.Address) error {
	return r.s.do(ctx, func(st *state) error {
		st.addresses[addr.ID] = *addr
		return nil
	})
}

func (r *addressRepository) FindByUser(ctx context.Context, userID string) ([]entity.Address, error) {
	addresses := []entity.Address{}
	err := r.s.do(ctx, func(st *state) error {
		for _, a := range st.addresses {
			if a.UserID == userID {
				addresses = append(addresses, a)
			}
		}
		return nil
	})
	sort.Slice(addresses, func(i, j int) bool { return addresses[i].CreatedAt.Before(addresses[j].CreatedAt) })
	return addresses, err
}

func (r *addressRepository) FindByID(ctx context.Context, userID, id string) (*entity.Address, error) {
	var addr entity.Address
	err := r.s.do(ctx, func(st *state) error {
		a, ok := st.addresses[id]
		if !ok || a.UserID != userID {
			return repository.ErrNotFound
		}
		addr = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &addr, nil
}

type orderRepository struct{ s *session }

func (r *orderRepository) Create(ctx context.Context, order *entity.Order) error {
	return r.s.do(ctx, func(st *state) error {
		if _, taken := st.orderNumbers[order.OrderNumber]; taken {
			return repository.ErrDuplicateOrderNumber
		}
		st.orders[order.ID] = copyOrder(*order)
		st.orderNumbers[order.OrderNumber] = order.ID
		return nil
	})
}

func (r *orderRepository) FindByID(ctx context.Context, id string) (*entity.Order, error) {
	var order entity.Order
	err := r.s.do(ctx, func(st *state) error {
		o, ok := st.orders[id]
		if !ok {
			return repository.ErrNotFound
		}
		order = copyOrder(o)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *orderRepository) FindByUser(ctx context.Context, userID string) ([]entity.Order, error) {
	return r.list(ctx, func(o entity.Order) bool { return o.UserID == userID }, 0)
}

func (r *orderRepository) FindRecent(ctx context.Context, limit int) ([]entity.Order, error) {
	return r.list(ctx, func(entity.Order) bool { return true }, limit)
}

func (r *orderRepository) list(ctx context.Context, match func(entity.Order) bool, limit int) ([]entity.Order, error) {
	orders := []entity.Order{}
	err := r.s.do(ctx, func(st *state) error {
		for _, o := range st.orders {
			if match(o) {
				orders = append(orders, copyOrder(o))
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(orders, func(i, j int) bool { return orders[i].CreatedAt.After(orders[j].CreatedAt) })
	if limit > 0 && len(orders) > limit {
		orders = orders[:limit]
	}
	return orders, nil
}

func (r *orderRepository) UpdateStatus(ctx context.Context, order *entity.Order, from entity.OrderStatus) error {
	return r.s.do(ctx, func(st *state) error {
		stored, ok := st.orders[order.ID]
		if !ok || stored.Status != from {
			return repository.ErrStatusConflict
		}
		stored.Status = order.Status
		stored.PaymentStatus = order.PaymentStatus
		stored.CancellationReason = order.CancellationReason
		stored.DeliveredAt = order.DeliveredAt
		stored.CancelledAt = order.CancelledAt
		stored.UpdatedAt = order.UpdatedAt
		st.orders[order.ID] = copyOrder(stored)
		return nil
	})
}

type eventStore struct{ s *session }

func (e *eventStore) SaveEvents(ctx context.Context, streamID string, streamType string, expectedVersion int, events []entity.Event) error {
	if len(events) == 0 {
		return nil
	}
	return e.s.do(ctx, func(st *state) error {
		stream := st.events[streamID]
		if current := len(stream); current != expectedVersion {
			return fmt.Errorf("%w: expected version %d, got %d", repository.ErrConcurrency, expectedVersion, current)
		}

		now := time.Now()
		version := expectedVersion
		for _, event := range events {
			version++
			payload, err := json.Marshal(event)
			if err != nil {
				return fmt.Errorf("failed to marshal event %s: %w", event.EventType(), err)
			}
			stream = append(stream, entity.EventStoreRecord{
				ID:         uuid.NewString(),
				StreamID:   streamID,
				StreamType: streamType,
				Version:    version,
				EventType:  event.EventType(),
				Payload:    payload,
				CreatedAt:  now,
			})
		}
		st.events[streamID] = stream
		return nil
	})
}

func (e *eventStore) LoadEvents(ctx context.Context, streamID string) ([]entity.EventStoreRecord, error) {
	var records []entity.EventStoreRecord
	err := e.s.do(ctx, func(st *state) error {
		records = append(records, st.events[streamID]...)
		return nil
	})
	return records, err
}
