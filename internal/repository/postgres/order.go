package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/egannguyen/go-kafka-ecommerce/storefront/internal/entity"
	"github.com/egannguyen/go-kafka-ecommerce/storefront/internal/repository"
)

const orderColumns = `id, order_number, user_id, total_amount, discount_amount, shipping_amount, tax_amount, final_amount,
	status, payment_method, payment_status,
	ship_full_name, ship_phone, ship_line1, ship_line2, ship_city, ship_state, ship_postal_code, ship_country,
	coupon_code, notes, cancellation_reason, created_at, updated_at, delivered_at, cancelled_at`

type orderRepository struct {
	db dbtx
}

// NewOrderRepository creates a new OrderRepository backed by Postgres.
func NewOrderRepository(db dbtx) repository.OrderRepository {
	return &orderRepository{db: db}
}

func scanOrder(row rowScanner) (*entity.Order, error) {
	var (
		o                      entity.Order
		deliveredAt, cancelled sql.NullTime
		ship                   = &o.ShippingAddress
	)
	err := row.Scan(
		&o.ID, &o.OrderNumber, &o.UserID,
		&o.TotalAmount, &o.DiscountAmount, &o.ShippingAmount, &o.TaxAmount, &o.FinalAmount,
		&o.Status, &o.PaymentMethod, &o.PaymentStatus,
		&ship.FullName, &ship.Phone, &ship.Line1, &ship.Line2, &ship.City, &ship.State, &ship.PostalCode, &ship.Country,
		&o.CouponCode, &o.Notes, &o.CancellationReason, &o.CreatedAt, &o.UpdatedAt, &deliveredAt, &cancelled,
	)
	if err != nil {
		return nil, err
	}
	if deliveredAt.Valid {
		o.DeliveredAt = &deliveredAt.Time
	}
	if cancelled.Valid {
		o.CancelledAt = &cancelled.Time
	}
	return &o, nil
}

func (r *orderRepository) Create(ctx context.Context, o *entity.Order) error {
	ship := o.ShippingAddress
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO orders (`+orderColumns+`) VALUES
		($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26)`,
		o.ID, o.OrderNumber, o.UserID,
		o.TotalAmount, o.DiscountAmount, o.ShippingAmount, o.TaxAmount, o.FinalAmount,
		o.Status, o.PaymentMethod, o.PaymentStatus,
		ship.FullName, ship.Phone, ship.Line1, ship.Line2, ship.City, ship.State, ship.PostalCode, ship.Country,
		o.CouponCode, o.Notes, o.CancellationReason, o.CreatedAt, o.UpdatedAt, o.DeliveredAt, o.CancelledAt,
	)
	if isUniqueViolation(err, "orders_order_number_key") {
		return repository.ErrDuplicateOrderNumber
	}
	if err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}

	for i, item := range o.Items {
		_, err = r.db.ExecContext(ctx,
			"INSERT INTO order_items (order_id, position, product_id, product_name, product_image, quantity, price, subtotal) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)",
			o.ID, i, item.ProductID, item.ProductName, item.ProductImage, item.Quantity, item.Price, item.Subtotal,
		)
		if err != nil {
			return fmt.Errorf("failed to insert order item: %w", err)
		}
	}
	return nil
}

func (r *orderRepository) FindByID(ctx context.Context, id string) (*entity.Order, error) {
	o, err := scanOrder(r.db.QueryRowContext(ctx, "SELECT "+orderColumns+" FROM orders WHERE id = $1", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order %s: %w", id, err)
	}

	orders := []entity.Order{*o}
	if err := r.loadItems(ctx, orders); err != nil {
		return nil, err
	}
	return &orders[0], nil
}

func (r *orderRepository) FindByUser(ctx context.Context, userID string) ([]entity.Order, error) {
	return r.query(ctx, "SELECT "+orderColumns+" FROM orders WHERE user_id = $1 ORDER BY created_at DESC", userID)
}

func (r *orderRepository) FindRecent(ctx context.Context, limit int) ([]entity.Order, error) {
	return r.query(ctx, "SELECT "+orderColumns+" FROM orders ORDER BY created_at DESC LIMIT $1", limit)
}

func (r *orderRepository) UpdateStatus(ctx context.Context, o *entity.Order, from entity.OrderStatus) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE orders SET status = $2, payment_status = $3, cancellation_reason = $4,
			delivered_at = $5, cancelled_at = $6, updated_at = $7
		WHERE id = $1 AND status = $8`,
		o.ID, o.Status, o.PaymentStatus, o.CancellationReason, o.DeliveredAt, o.CancelledAt, o.UpdatedAt, from,
	)
	if err != nil {
		return fmt.Errorf("failed to update order status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return repository.ErrStatusConflict
	}
	return nil
}

func (r *orderRepository) query(ctx context.Context, query string, args ...any) ([]entity.Order, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	orders := []entity.Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating order rows: %w", err)
	}

	if err := r.loadItems(ctx, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// loadItems fetches the lines of all given orders in one query.
func (r *orderRepository) loadItems(ctx context.Context, orders []entity.Order) error {
	if len(orders) == 0 {
		return nil
	}

	ids := make([]string, len(orders))
	index := make(map[string]int, len(orders))
	for i := range orders {
		ids[i] = orders[i].ID
		index[orders[i].ID] = i
		orders[i].Items = []entity.OrderItem{}
	}

	rows, err := r.db.QueryContext(ctx,
		"SELECT order_id, product_id, product_name, product_image, quantity, price, subtotal FROM order_items WHERE order_id = ANY($1) ORDER BY order_id, position",
		pq.Array(ids),
	)
	if err != nil {
		return fmt.Errorf("failed to query order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			orderID string
			item    entity.OrderItem
		)
		if err := rows.Scan(&orderID, &item.ProductID, &item.ProductName, &item.ProductImage, &item.Quantity, &item.Price, &item.Subtotal); err != nil {
			return fmt.Errorf("failed to scan order item: %w", err)
		}
		i := index[orderID]
		orders[i].Items = append(orders[i].Items, item)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating order item rows: %w", err)
	}
	return nil
}
