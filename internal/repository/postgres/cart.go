package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/egannguyen/go-kafka-ecommerce/storefront/internal/entity"
	"github.com/egannguyen/go-kafka-ecommerce/storefront/internal/repository"
)

type cartRepository struct {
	db dbtx
}

// NewCartRepository creates a new CartRepository backed by Postgres.
func NewCartRepository(db dbtx) repository.CartRepository {
	return &cartRepository{db: db}
}

func (r *cartRepository) FindByUser(ctx context.Context, userID string) (*entity.Cart, error) {
	cart := &entity.Cart{UserID: userID, Items: []entity.CartItem{}}

	err := r.db.QueryRowContext(ctx, "SELECT updated_at FROM carts WHERE user_id = $1", userID).Scan(&cart.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return cart, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cart: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		"SELECT product_id, quantity, price, added_at FROM cart_items WHERE user_id = $1 ORDER BY position",
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query cart items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item entity.CartItem
		if err := rows.Scan(&item.ProductID, &item.Quantity, &item.Price, &item.AddedAt); err != nil {
			return nil, fmt.Errorf("failed to scan cart item: %w", err)
		}
		cart.Items = append(cart.Items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating cart item rows: %w", err)
	}
	return cart, nil
}

func (r *cartRepository) Save(ctx context.Context, cart *entity.Cart) error {
	cart.UpdatedAt = time.Now()
	if err := r.touch(ctx, cart.UserID, cart.UpdatedAt); err != nil {
		return err
	}

	if _, err := r.db.ExecContext(ctx, "DELETE FROM cart_items WHERE user_id = $1", cart.UserID); err != nil {
		return fmt.Errorf("failed to reset cart items: %w", err)
	}

	for i, item := range cart.Items {
		_, err := r.db.ExecContext(ctx,
			"INSERT INTO cart_items (user_id, position, product_id, quantity, price, added_at) VALUES ($1, $2, $3, $4, $5, $6)",
			cart.UserID, i, item.ProductID, item.Quantity, item.Price, item.AddedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert cart item: %w", err)
		}
	}
	return nil
}

func (r *cartRepository) Clear(ctx context.Context, userID string) error {
	if err := r.touch(ctx, userID, time.Now()); err != nil {
		return err
	}
	if _, err := r.db.ExecContext(ctx, "DELETE FROM cart_items WHERE user_id = $1", userID); err != nil {
		return fmt.Errorf("failed to clear cart: %w", err)
	}
	return nil
}

func (r *cartRepository) touch(ctx context.Context, userID string, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO carts (user_id, updated_at) VALUES ($1, $2) ON CONFLICT (user_id) DO UPDATE SET updated_at = EXCLUDED.updated_at",
		userID, at,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert cart: %w", err)
	}
	return nil
}
