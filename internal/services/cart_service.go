package services

import (
	"context"
	"errors"
	"strings"
	"time"

	domain "github.com/tthaingoc/EcoFashion-sub009/internal/domain"
	"github.com/tthaingoc/EcoFashion-sub009/internal/repositories"
)

var (
	errCartRepositoryRequired = errors.New("cart service: repository is required")
	errCartClockRequired      = errors.New("cart service: clock is required")
)

// ErrCartInvalidInput indicates the caller supplied invalid input.
var ErrCartInvalidInput = errors.New("cart service: invalid input")

// ErrCartUnavailable indicates the cart backend cannot fulfil the request.
var ErrCartUnavailable = errors.New("cart service: unavailable")

// ErrCartItemNotFound indicates the referenced line is not in the cart.
var ErrCartItemNotFound = errors.New("cart service: item not found")

// ErrCartTooManyItems indicates the cart line limit would be exceeded.
var ErrCartTooManyItems = errors.New("cart service: too many items")

// CartServiceDeps wires the repository and limits for cart operations.
type CartServiceDeps struct {
	Repository repositories.CartRepository
	MaxItems   int
	Clock      func() time.Time
	Logger     func(context.Context, string, map[string]any)
}

type cartService struct {
	repo     repositories.CartRepository
	maxItems int
	now      func() time.Time
	logger   func(context.Context, string, map[string]any)
}

// NewCartService constructs a CartService enforcing dependency validation.
func NewCartService(deps CartServiceDeps) (CartService, error) {
	if deps.Repository == nil {
		return nil, errCartRepositoryRequired
	}
	if deps.Clock == nil {
		return nil, errCartClockRequired
	}

	maxItems := deps.MaxItems
	if maxItems <= 0 {
		maxItems = 100
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &cartService{
		repo:     deps.Repository,
		maxItems: maxItems,
		now:      func() time.Time { return deps.Clock().UTC() },
		logger:   logger,
	}, nil
}

// GetOrCreateCart loads the owner's cart, returning an empty cart when none exists.
func (s *cartService) GetOrCreateCart(ctx context.Context, ownerID string) (Cart, error) {
	if s == nil || s.repo == nil {
		return Cart{}, ErrCartUnavailable
	}

	uid := strings.TrimSpace(ownerID)
	if uid == "" {
		return Cart{}, ErrCartInvalidInput
	}

	cart, err := s.repo.FindByOwner(ctx, uid)
	if err != nil {
		return Cart{}, translateCartError(err)
	}
	if cart.OwnerID == "" {
		cart.OwnerID = uid
	}
	return cart, nil
}

// UpsertItem sets the quantity for one cart line. A quantity of zero or less
// removes the line.
func (s *cartService) UpsertItem(ctx context.Context, cmd UpsertCartItemCommand) (Cart, error) {
	if s == nil || s.repo == nil {
		return Cart{}, ErrCartUnavailable
	}

	uid := strings.TrimSpace(cmd.OwnerID)
	if uid == "" || !cmd.Item.Valid() {
		return Cart{}, ErrCartInvalidInput
	}
	if cmd.Quantity > 0 {
		if strings.TrimSpace(cmd.ProviderID) == "" || !cmd.ProviderType.Valid() {
			return Cart{}, ErrCartInvalidInput
		}
		if cmd.UnitPrice < 0 {
			return Cart{}, ErrCartInvalidInput
		}
	}

	cart, err := s.repo.FindByOwner(ctx, uid)
	if err != nil {
		return Cart{}, translateCartError(err)
	}
	cart.OwnerID = uid

	now := s.now()
	key := cmd.Item.Key()
	idx := -1
	for i := range cart.Items {
		if cart.Items[i].ItemRef.Key() == key {
			idx = i
			break
		}
	}

	switch {
	case cmd.Quantity <= 0 && idx < 0:
		return cart, nil
	case cmd.Quantity <= 0:
		cart.Items = append(cart.Items[:idx], cart.Items[idx+1:]...)
	case idx >= 0:
		cart.Items[idx].Quantity = cmd.Quantity
		cart.Items[idx].UnitPrice = cmd.UnitPrice
		cart.Items[idx].ProviderID = cmd.ProviderID
		cart.Items[idx].ProviderType = cmd.ProviderType
	default:
		if len(cart.Items) >= s.maxItems {
			return Cart{}, ErrCartTooManyItems
		}
		cart.Items = append(cart.Items, domain.CartItem{
			ItemRef:      cmd.Item,
			ProviderID:   cmd.ProviderID,
			ProviderType: cmd.ProviderType,
			Quantity:     cmd.Quantity,
			UnitPrice:    cmd.UnitPrice,
			AddedAt:      now,
		})
	}

	cart.UpdatedAt = now
	saved, err := s.repo.Save(ctx, cart)
	if err != nil {
		return Cart{}, translateCartError(err)
	}
	s.logger(ctx, "cart.item_upserted", map[string]any{
		"ownerID":  uid,
		"item":     key,
		"quantity": cmd.Quantity,
	})
	return saved, nil
}

// RemoveItem drops one line from the cart. Removing an absent line fails with
// ErrCartItemNotFound so clients can detect stale state.
func (s *cartService) RemoveItem(ctx context.Context, cmd RemoveCartItemCommand) (Cart, error) {
	if s == nil || s.repo == nil {
		return Cart{}, ErrCartUnavailable
	}

	uid := strings.TrimSpace(cmd.OwnerID)
	if uid == "" || !cmd.Item.Valid() {
		return Cart{}, ErrCartInvalidInput
	}

	cart, err := s.repo.FindByOwner(ctx, uid)
	if err != nil {
		return Cart{}, translateCartError(err)
	}
	cart.OwnerID = uid

	key := cmd.Item.Key()
	idx := -1
	for i := range cart.Items {
		if cart.Items[i].ItemRef.Key() == key {
			idx = i
			break
		}
	}
	if idx < 0 {
		return Cart{}, ErrCartItemNotFound
	}

	cart.Items = append(cart.Items[:idx], cart.Items[idx+1:]...)
	cart.UpdatedAt = s.now()

	saved, err := s.repo.Save(ctx, cart)
	if err != nil {
		return Cart{}, translateCartError(err)
	}
	return saved, nil
}

// Clear empties the cart, keeping the document so owner metadata survives.
func (s *cartService) Clear(ctx context.Context, ownerID string) error {
	if s == nil || s.repo == nil {
		return ErrCartUnavailable
	}

	uid := strings.TrimSpace(ownerID)
	if uid == "" {
		return ErrCartInvalidInput
	}

	cart, err := s.repo.FindByOwner(ctx, uid)
	if err != nil {
		return translateCartError(err)
	}
	if len(cart.Items) == 0 {
		return nil
	}

	cart.OwnerID = uid
	cart.Items = nil
	cart.UpdatedAt = s.now()
	if _, err := s.repo.Save(ctx, cart); err != nil {
		return translateCartError(err)
	}
	return nil
}

func translateCartError(err error) error {
	if err == nil {
		return nil
	}
	return errors.Join(ErrCartUnavailable, err)
}
