package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/egannguyen/go-kafka-ecommerce/storefront/internal/apperror"
	"github.com/egannguyen/go-kafka-ecommerce/storefront/internal/entity"
	"github.com/egannguyen/go-kafka-ecommerce/storefront/internal/repository"
)

// AddressService manages users' shipping addresses.
type AddressService struct {
	store repository.Store
	now   func() time.Time
}

func NewAddressService(store repository.Store) *AddressService {
	return &AddressService{store: store, now: time.Now}
}

// Create stores a new address for userID. ID, UserID and CreatedAt of in are ignored.
func (s *AddressService) Create(ctx context.Context, userID string, in entity.Address) (*entity.Address, error) {
	slog.Info("Service: Creating address", "user_id", userID)

	addr := entity.Address{
		ID:         uuid.NewString(),
		UserID:     userID,
		FullName:   strings.TrimSpace(in.FullName),
		Phone:      strings.TrimSpace(in.Phone),
		Line1:      strings.TrimSpace(in.Line1),
		Line2:      strings.TrimSpace(in.Line2),
		City:       strings.TrimSpace(in.City),
		State:      strings.TrimSpace(in.State),
		PostalCode: strings.TrimSpace(in.PostalCode),
		Country:    strings.TrimSpace(in.Country),
		CreatedAt:  s.now().UTC(),
	}

	required := []struct{ field, value string }{
		{"full_name", addr.FullName},
		{"phone", addr.Phone},
		{"line1", addr.Line1},
		{"city", addr.City},
		{"postal_code", addr.PostalCode},
		{"country", addr.Country},
	}
	var missing []string
	for _, r := range required {
		if r.value == "" {
			missing = append(missing, r.field)
		}
	}
	if len(missing) > 0 {
		return nil, apperror.Invalid("missing required address fields: %s", strings.Join(missing, ", "))
	}

	if err := s.store.Repos().Addresses.Create(ctx, &addr); err != nil {
		return nil, fmt.Errorf("failed to create address: %w", err)
	}
	return &addr, nil
}

func (s *AddressService) List(ctx context.Context, userID string) ([]entity.Address, error) {
	addresses, err := s.store.Repos().Addresses.FindByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list addresses: %w", err)
	}
	return addresses, nil
}

func (s *AddressService) Get(ctx context.Context, userID, id string) (*entity.Address, error) {
	addr, err := s.store.Repos().Addresses.FindByID(ctx, userID, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperror.NotFound("address %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load address %s: %w", id, err)
	}
	return addr, nil
}
