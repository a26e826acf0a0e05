package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/egannguyen/go-kafka-ecommerce/storefront/internal/apperror"
	"github.com/egannguyen/go-kafka-ecommerce/storefront/internal/checkout"
	"github.com/egannguyen/go-kafka-ecommerce/storefront/internal/entity"
	"github.com/egannguyen/go-kafka-ecommerce/storefront/internal/idempotency"
	"github.com/egannguyen/go-kafka-ecommerce/storefront/internal/messaging"
	"github.com/egannguyen/go-kafka-ecommerce/storefront/internal/repository"
)

// maxOrderNumberAttempts bounds how often checkout retries after an order
// number collision.
const maxOrderNumberAttempts = 3

const defaultRecentOrdersLimit = 50

// OrderNumbers hands out candidate order numbers.
type OrderNumbers interface {
	Next() string
}

// Caller identifies who is performing an operation.
type Caller struct {
	UserID string
	Admin  bool
}

// PlaceOrderInput is the checkout request of one caller.
type PlaceOrderInput struct {
	UserID            string
	ShippingAddressID string
	PaymentMethod     entity.PaymentMethod
	CouponCode        string
	Notes             string
	// IdempotencyKey, when set, makes repeated checkouts return the first order.
	IdempotencyKey string
}

// OrderService orchestrates checkout and the order lifecycle.
type OrderService struct {
	store       repository.Store
	publisher   messaging.Publisher
	idempotency idempotency.Store
	policy      checkout.Policy
	numbers     OrderNumbers
	now         func() time.Time
}

func NewOrderService(
	store repository.Store,
	publisher messaging.Publisher,
	idem idempotency.Store,
	policy checkout.Policy,
	numbers OrderNumbers,
) *OrderService {
	return &OrderService{
		store:       store,
		publisher:   publisher,
		idempotency: idem,
		policy:      policy,
		numbers:     numbers,
		now:         time.Now,
	}
}

// PlaceOrder turns the caller's cart into an order. Order creation, stock
// decrements, cart reset and the OrderPlaced event commit together or not at
// all. The boolean result is true when an earlier order was replayed for the
// same idempotency key.
func (s *OrderService) PlaceOrder(ctx context.Context, in PlaceOrderInput) (*entity.Order, bool, error) {
	slog.Info("Service: Placing order", "user_id", in.UserID, "address_id", in.ShippingAddressID, "payment_method", in.PaymentMethod)

	if in.ShippingAddressID == "" {
		return nil, false, apperror.Invalid("shipping address is required")
	}
	if in.PaymentMethod == "" {
		return nil, false, apperror.Invalid("payment method is required")
	}
	if !in.PaymentMethod.Valid() {
		return nil, false, apperror.Invalid("invalid payment method %q", in.PaymentMethod)
	}

	if in.IdempotencyKey != "" {
		existing, err := s.replay(ctx, in.UserID, in.IdempotencyKey)
		if err != nil {
			return nil, false, err
		}
		if existing != nil {
			slog.Info("Order already placed for idempotency key", "order_id", existing.ID, "user_id", in.UserID)
			return existing, true, nil
		}
	}

	var order *entity.Order
	var err error
	for attempt := 1; attempt <= maxOrderNumberAttempts; attempt++ {
		err = s.store.InTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
			var txErr error
			order, txErr = s.placeInTx(ctx, repos, in)
			return txErr
		})
		if !errors.Is(err, repository.ErrDuplicateOrderNumber) {
			break
		}
		slog.Warn("Order number collision, retrying", "user_id", in.UserID, "attempt", attempt)
	}
	if errors.Is(err, repository.ErrDuplicateOrderNumber) {
		return nil, false, fmt.Errorf("failed to allocate a unique order number after %d attempts: %w", maxOrderNumberAttempts, err)
	}
	if err != nil {
		return nil, false, err
	}

	slog.Info("Order placed", "order_id", order.ID, "order_number", order.OrderNumber, "final_amount", order.FinalAmount.String())

	if in.IdempotencyKey != "" {
		if err := s.idempotency.Put(ctx, in.UserID, in.IdempotencyKey, order.ID); err != nil {
			slog.Error("Failed to record idempotency key", "order_id", order.ID, "err", err)
		}
	}
	s.publish(ctx, messaging.TopicOrderPlaced, order.ID, placedEvent(order))

	return order, false, nil
}

func (s *OrderService) replay(ctx context.Context, userID, key string) (*entity.Order, error) {
	orderID, found, err := s.idempotency.Get(ctx, userID, key)
	if err != nil {
		return nil, fmt.Errorf("failed to check idempotency key: %w", err)
	}
	if !found {
		return nil, nil
	}
	order, err := s.store.Repos().Orders.FindByID(ctx, orderID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load order %s: %w", orderID, err)
	}
	return order, nil
}

func (s *OrderService) placeInTx(ctx context.Context, repos repository.Repositories, in PlaceOrderInput) (*entity.Order, error) {
	addr, err := repos.Addresses.FindByID(ctx, in.UserID, in.ShippingAddressID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperror.NotFound("shipping address %s not found", in.ShippingAddressID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load shipping address: %w", err)
	}

	cart, err := repos.Carts.FindByUser(ctx, in.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}
	if cart.IsEmpty() {
		return nil, apperror.Invalid("cart is empty")
	}

	ids := make([]string, 0, len(cart.Items))
	for _, item := range cart.Items {
		ids = append(ids, item.ProductID)
	}
	products, err := repos.Products.FindByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load cart products: %w", err)
	}

	if err := checkout.ValidateLines(cart.Items, products); err != nil {
		return nil, err
	}

	lines := checkout.BuildLines(cart.Items, products)
	now := s.now().UTC()
	order := &entity.Order{
		ID:              uuid.NewString(),
		OrderNumber:     s.numbers.Next(),
		UserID:          in.UserID,
		Items:           lines,
		Totals:          s.policy.Calculate(lines),
		Status:          entity.OrderPending,
		PaymentMethod:   in.PaymentMethod,
		PaymentStatus:   entity.PaymentPending,
		ShippingAddress: addr.Snapshot(),
		CouponCode:      in.CouponCode,
		Notes:           in.Notes,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := repos.Orders.Create(ctx, order); err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	for _, line := range order.Items {
		err := repos.Products.DecrementStock(ctx, line.ProductID, line.Quantity)
		if errors.Is(err, repository.ErrInsufficientStock) {
			available := 0
			if p, findErr := repos.Products.FindByID(ctx, line.ProductID); findErr == nil {
				available = p.Stock
			}
			return nil, checkout.InsufficientStock(line.ProductName, available, line.Quantity).Wrap(err)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to decrement stock for %s: %w", line.ProductID, err)
		}
	}

	if err := repos.Carts.Clear(ctx, in.UserID); err != nil {
		return nil, fmt.Errorf("failed to clear cart: %w", err)
	}

	if err := repos.Events.SaveEvents(ctx, order.ID, entity.StreamOrder, 0, []entity.Event{placedEvent(order)}); err != nil {
		return nil, fmt.Errorf("failed to save OrderPlaced event: %w", err)
	}

	return order, nil
}

func placedEvent(order *entity.Order) entity.OrderPlaced {
	return entity.OrderPlaced{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		UserID:      order.UserID,
		Items:       order.Items,
		FinalAmount: order.FinalAmount,
		PlacedAt:    order.CreatedAt,
	}
}

// GetOrder returns an order visible to the caller. Customers only see their
// own orders; anything else is reported as not found.
func (s *OrderService) GetOrder(ctx context.Context, caller Caller, id string) (*entity.Order, error) {
	return s.visibleOrder(ctx, s.store.Repos(), caller, id)
}

func (s *OrderService) visibleOrder(ctx context.Context, repos repository.Repositories, caller Caller, id string) (*entity.Order, error) {
	order, err := repos.Orders.FindByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperror.NotFound("order %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load order %s: %w", id, err)
	}
	if !caller.Admin && order.UserID != caller.UserID {
		return nil, apperror.NotFound("order %s not found", id)
	}
	return order, nil
}

// ListOrders returns the user's orders, newest first.
func (s *OrderService) ListOrders(ctx context.Context, userID string) ([]entity.Order, error) {
	orders, err := s.store.Repos().Orders.FindByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, nil
}

// ListRecentOrders returns the latest orders across all users.
func (s *OrderService) ListRecentOrders(ctx context.Context, limit int) ([]entity.Order, error) {
	if limit <= 0 {
		limit = defaultRecentOrdersLimit
	}
	orders, err := s.store.Repos().Orders.FindRecent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent orders: %w", err)
	}
	return orders, nil
}

// CancelOrder cancels a pending or confirmed order and puts its stock back.
func (s *OrderService) CancelOrder(ctx context.Context, caller Caller, id, reason string) (*entity.Order, error) {
	slog.Info("Service: Cancelling order", "order_id", id, "user_id", caller.UserID, "admin", caller.Admin)

	var order *entity.Order
	var event entity.OrderCancelledEvent
	err := s.store.InTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		var err error
		order, err = s.visibleOrder(ctx, repos, caller, id)
		if err != nil {
			return err
		}
		if !order.Status.Cancellable() {
			return apperror.Invalid("order %s cannot be cancelled in status %s", order.OrderNumber, order.Status)
		}

		from := order.Status
		now := s.now().UTC()
		order.Status = entity.OrderCancelled
		order.CancelledAt = &now
		order.CancellationReason = reason
		order.UpdatedAt = now
		if order.PaymentStatus == entity.PaymentPaid {
			order.PaymentStatus = entity.PaymentRefunded
		}

		if err := s.updateStatus(ctx, repos, order, from); err != nil {
			return err
		}

		for _, line := range order.Items {
			if err := repos.Products.IncrementStock(ctx, line.ProductID, line.Quantity); err != nil {
				return fmt.Errorf("failed to restore stock for %s: %w", line.ProductID, err)
			}
		}

		event = entity.OrderCancelledEvent{
			OrderID:     order.ID,
			From:        from,
			Reason:      reason,
			Items:       order.Items,
			CancelledAt: now,
		}
		return s.appendEvent(ctx, repos, order.ID, event)
	})
	if err != nil {
		return nil, err
	}

	slog.Info("Order cancelled", "order_id", order.ID, "from", event.From)
	s.publish(ctx, messaging.TopicOrderCancelled, order.ID, event)
	return order, nil
}

// UpdateStatus moves an order along the lifecycle on behalf of an admin.
// Cancelling goes through CancelOrder so stock is restored.
func (s *OrderService) UpdateStatus(ctx context.Context, id string, next entity.OrderStatus) (*entity.Order, error) {
	slog.Info("Service: Updating order status", "order_id", id, "status", next)

	if !next.Valid() {
		return nil, apperror.Invalid("invalid order status %q", next)
	}
	if next == entity.OrderCancelled {
		return s.CancelOrder(ctx, Caller{Admin: true}, id, "cancelled by admin")
	}

	var order *entity.Order
	var event entity.OrderStatusChanged
	err := s.store.InTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		var err error
		order, err = s.visibleOrder(ctx, repos, Caller{Admin: true}, id)
		if err != nil {
			return err
		}
		if !order.Status.CanTransitionTo(next) {
			return apperror.Invalid("cannot change order status from %s to %s", order.Status, next)
		}

		from := order.Status
		now := s.now().UTC()
		order.Status = next
		order.UpdatedAt = now
		if next == entity.OrderDelivered {
			order.DeliveredAt = &now
			if order.PaymentMethod == entity.PaymentCOD {
				order.PaymentStatus = entity.PaymentPaid
			}
		}

		if err := s.updateStatus(ctx, repos, order, from); err != nil {
			return err
		}

		event = entity.OrderStatusChanged{OrderID: order.ID, From: from, To: next, ChangedAt: now}
		return s.appendEvent(ctx, repos, order.ID, event)
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, messaging.TopicOrderStatusChanged, order.ID, event)
	return order, nil
}

func (s *OrderService) updateStatus(ctx context.Context, repos repository.Repositories, order *entity.Order, from entity.OrderStatus) error {
	err := repos.Orders.UpdateStatus(ctx, order, from)
	if errors.Is(err, repository.ErrStatusConflict) {
		return apperror.Conflict("order %s was modified concurrently, retry", order.ID).Wrap(err)
	}
	if err != nil {
		return fmt.Errorf("failed to update order status: %w", err)
	}
	return nil
}

func (s *OrderService) appendEvent(ctx context.Context, repos repository.Repositories, orderID string, event entity.Event) error {
	records, err := repos.Events.LoadEvents(ctx, orderID)
	if err != nil {
		return fmt.Errorf("failed to load order history: %w", err)
	}

	aggregate := entity.NewOrderAggregate(orderID)
	if err := aggregate.Rehydrate(records); err != nil {
		return fmt.Errorf("failed to rehydrate order aggregate: %w", err)
	}

	expected := aggregate.GetVersion()
	if err := aggregate.ApplyEvent(event); err != nil {
		return fmt.Errorf("failed to apply %s to order %s: %w", event.EventType(), orderID, err)
	}

	err = repos.Events.SaveEvents(ctx, aggregate.GetAggregateID(), entity.StreamOrder, expected, []entity.Event{event})
	if errors.Is(err, repository.ErrConcurrency) {
		return apperror.Conflict("order %s was modified concurrently, retry", orderID).Wrap(err)
	}
	if err != nil {
		return fmt.Errorf("failed to save %s event: %w", event.EventType(), err)
	}
	return nil
}

// History replays the order's event stream.
func (s *OrderService) History(ctx context.Context, caller Caller, id string) (*entity.OrderAggregate, error) {
	repos := s.store.Repos()
	if _, err := s.visibleOrder(ctx, repos, caller, id); err != nil {
		return nil, err
	}

	records, err := repos.Events.LoadEvents(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load order history: %w", err)
	}

	aggregate := entity.NewOrderAggregate(id)
	if err := aggregate.Rehydrate(records); err != nil {
		return nil, fmt.Errorf("failed to rehydrate order aggregate: %w", err)
	}
	return aggregate, nil
}

// publish runs after commit; a broker failure is logged and does not undo the order.
func (s *OrderService) publish(ctx context.Context, topic, key string, event entity.Event) {
	if err := s.publisher.PublishEvent(ctx, topic, key, event); err != nil {
		slog.Error("Failed to publish event", "topic", topic, "order_id", key, "event", event.EventType(), "err", err)
	}
}
