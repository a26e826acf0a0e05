package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/egannguyen/go-kafka-ecommerce/storefront/internal/apperror"
	"github.com/egannguyen/go-kafka-ecommerce/storefront/internal/checkout"
	"github.com/egannguyen/go-kafka-ecommerce/storefront/internal/entity"
	"github.com/egannguyen/go-kafka-ecommerce/storefront/internal/repository"
)

// CartService manages each user's shopping cart.
type CartService struct {
	store repository.Store
	now   func() time.Time
}

func NewCartService(store repository.Store) *CartService {
	return &CartService{store: store, now: time.Now}
}

// GetCart returns the user's cart, empty if nothing was added yet.
func (s *CartService) GetCart(ctx context.Context, userID string) (*entity.Cart, error) {
	cart, err := s.store.Repos().Carts.FindByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}
	return cart, nil
}

// AddItem adds quantity units of a product, merging with an existing line.
func (s *CartService) AddItem(ctx context.Context, userID, productID string, quantity int) (*entity.Cart, error) {
	slog.Info("Service: Adding item to cart", "user_id", userID, "product_id", productID, "quantity", quantity)

	if quantity < 1 {
		return nil, apperror.Invalid("quantity must be at least 1")
	}

	var cart *entity.Cart
	err := s.store.InTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		product, err := purchasableProduct(ctx, repos, productID)
		if err != nil {
			return err
		}

		cart, err = repos.Carts.FindByUser(ctx, userID)
		if err != nil {
			return fmt.Errorf("failed to load cart: %w", err)
		}

		idx := lineIndex(cart, productID)
		if idx < 0 {
			cart.Items = append(cart.Items, entity.CartItem{ProductID: productID, AddedAt: s.now().UTC()})
			idx = len(cart.Items) - 1
		}
		line := &cart.Items[idx]
		requested := line.Quantity + quantity
		if requested > product.Stock {
			return checkout.InsufficientStock(product.Name, product.Stock, requested)
		}
		line.Quantity = requested
		line.Price = checkout.UnitPrice(product)

		if err := repos.Carts.Save(ctx, cart); err != nil {
			return fmt.Errorf("failed to save cart: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return cart, nil
}

// UpdateItem sets the quantity of an existing line; zero removes it.
func (s *CartService) UpdateItem(ctx context.Context, userID, productID string, quantity int) (*entity.Cart, error) {
	slog.Info("Service: Updating cart item", "user_id", userID, "product_id", productID, "quantity", quantity)

	if quantity < 0 {
		return nil, apperror.Invalid("quantity must not be negative")
	}
	if quantity == 0 {
		return s.RemoveItem(ctx, userID, productID)
	}

	var cart *entity.Cart
	err := s.store.InTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		var err error
		cart, err = repos.Carts.FindByUser(ctx, userID)
		if err != nil {
			return fmt.Errorf("failed to load cart: %w", err)
		}
		idx := lineIndex(cart, productID)
		if idx < 0 {
			return apperror.NotFound("product %s is not in the cart", productID)
		}

		product, err := purchasableProduct(ctx, repos, productID)
		if err != nil {
			return err
		}
		if quantity > product.Stock {
			return checkout.InsufficientStock(product.Name, product.Stock, quantity)
		}

		cart.Items[idx].Quantity = quantity
		cart.Items[idx].Price = checkout.UnitPrice(product)
		if err := repos.Carts.Save(ctx, cart); err != nil {
			return fmt.Errorf("failed to save cart: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return cart, nil
}

// RemoveItem drops a product's line from the cart.
func (s *CartService) RemoveItem(ctx context.Context, userID, productID string) (*entity.Cart, error) {
	slog.Info("Service: Removing cart item", "user_id", userID, "product_id", productID)

	var cart *entity.Cart
	err := s.store.InTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		var err error
		cart, err = repos.Carts.FindByUser(ctx, userID)
		if err != nil {
			return fmt.Errorf("failed to load cart: %w", err)
		}
		idx := lineIndex(cart, productID)
		if idx < 0 {
			return apperror.NotFound("product %s is not in the cart", productID)
		}
		cart.Items = append(cart.Items[:idx], cart.Items[idx+1:]...)
		if err := repos.Carts.Save(ctx, cart); err != nil {
			return fmt.Errorf("failed to save cart: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return cart, nil
}

// Clear empties the cart.
func (s *CartService) Clear(ctx context.Context, userID string) error {
	slog.Info("Service: Clearing cart", "user_id", userID)
	if err := s.store.Repos().Carts.Clear(ctx, userID); err != nil {
		return fmt.Errorf("failed to clear cart: %w", err)
	}
	return nil
}

func purchasableProduct(ctx context.Context, repos repository.Repositories, productID string) (*entity.Product, error) {
	product, err := repos.Products.FindByID(ctx, productID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperror.NotFound("product %s not found", productID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load product %s: %w", productID, err)
	}
	if product.Status != entity.ProductActive {
		return nil, apperror.Invalid("product %s is not available", product.Name)
	}
	return product, nil
}

func lineIndex(cart *entity.Cart, productID string) int {
	for i, item := range cart.Items {
		if item.ProductID == productID {
			return i
		}
	}
	return -1
}
