package services

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/tthaingoc/EcoFashion-sub009/internal/domain"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestCartServiceUpsertItemAddsLine(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	var saved domain.Cart
	repo := &stubCartRepo{
		saveFn: func(_ context.Context, cart domain.Cart) (domain.Cart, error) {
			saved = cart
			return cart, nil
		},
	}

	svc, err := NewCartService(CartServiceDeps{Repository: repo, Clock: fixedClock(now)})
	if err != nil {
		t.Fatalf("new cart service: %v", err)
	}

	cart, err := svc.UpsertItem(context.Background(), UpsertCartItemCommand{
		OwnerID:      "buyer-1",
		Item:         domain.ItemRef{MaterialID: "mat-1"},
		ProviderID:   "supplier-1",
		ProviderType: domain.ProviderSupplier,
		Quantity:     3,
		UnitPrice:    15000,
	})
	if err != nil {
		t.Fatalf("upsert item: %v", err)
	}
	if len(cart.Items) != 1 {
		t.Fatalf("expected 1 line, got %d", len(cart.Items))
	}
	line := cart.Items[0]
	if line.Quantity != 3 || line.UnitPrice != 15000 {
		t.Fatalf("unexpected line %+v", line)
	}
	if !line.AddedAt.Equal(now) {
		t.Fatalf("expected addedAt %v, got %v", now, line.AddedAt)
	}
	if !saved.UpdatedAt.Equal(now) {
		t.Fatalf("expected cart updatedAt %v, got %v", now, saved.UpdatedAt)
	}
}

func TestCartServiceUpsertItemZeroQuantityRemovesLine(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	repo := &stubCartRepo{
		findFn: func(_ context.Context, ownerID string) (domain.Cart, error) {
			return domain.Cart{
				ID:      ownerID,
				OwnerID: ownerID,
				Items: []domain.CartItem{{
					ItemRef:      domain.ItemRef{ProductID: "prod-1"},
					ProviderID:   "designer-1",
					ProviderType: domain.ProviderDesigner,
					Quantity:     2,
					UnitPrice:    90000,
				}},
			}, nil
		},
	}

	svc, err := NewCartService(CartServiceDeps{Repository: repo, Clock: fixedClock(now)})
	if err != nil {
		t.Fatalf("new cart service: %v", err)
	}

	cart, err := svc.UpsertItem(context.Background(), UpsertCartItemCommand{
		OwnerID:  "buyer-1",
		Item:     domain.ItemRef{ProductID: "prod-1"},
		Quantity: 0,
	})
	if err != nil {
		t.Fatalf("upsert item: %v", err)
	}
	if len(cart.Items) != 0 {
		t.Fatalf("expected empty cart, got %d lines", len(cart.Items))
	}
}

func TestCartServiceUpsertItemMergesExistingLine(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	repo := &stubCartRepo{
		findFn: func(_ context.Context, ownerID string) (domain.Cart, error) {
			return domain.Cart{
				ID:      ownerID,
				OwnerID: ownerID,
				Items: []domain.CartItem{{
					ItemRef:      domain.ItemRef{MaterialID: "mat-1"},
					ProviderID:   "supplier-1",
					ProviderType: domain.ProviderSupplier,
					Quantity:     1,
					UnitPrice:    10000,
				}},
			}, nil
		},
	}

	svc, err := NewCartService(CartServiceDeps{Repository: repo, Clock: fixedClock(now)})
	if err != nil {
		t.Fatalf("new cart service: %v", err)
	}

	cart, err := svc.UpsertItem(context.Background(), UpsertCartItemCommand{
		OwnerID:      "buyer-1",
		Item:         domain.ItemRef{MaterialID: "mat-1"},
		ProviderID:   "supplier-1",
		ProviderType: domain.ProviderSupplier,
		Quantity:     5,
		UnitPrice:    12000,
	})
	if err != nil {
		t.Fatalf("upsert item: %v", err)
	}
	if len(cart.Items) != 1 {
		t.Fatalf("expected merged single line, got %d", len(cart.Items))
	}
	if cart.Items[0].Quantity != 5 || cart.Items[0].UnitPrice != 12000 {
		t.Fatalf("expected replaced quantity and price, got %+v", cart.Items[0])
	}
}

func TestCartServiceUpsertItemRejectsAmbiguousRef(t *testing.T) {
	svc, err := NewCartService(CartServiceDeps{Repository: &stubCartRepo{}, Clock: time.Now})
	if err != nil {
		t.Fatalf("new cart service: %v", err)
	}

	_, err = svc.UpsertItem(context.Background(), UpsertCartItemCommand{
		OwnerID:      "buyer-1",
		Item:         domain.ItemRef{MaterialID: "mat-1", ProductID: "prod-1"},
		ProviderID:   "supplier-1",
		ProviderType: domain.ProviderSupplier,
		Quantity:     1,
		UnitPrice:    100,
	})
	if !errors.Is(err, ErrCartInvalidInput) {
		t.Fatalf("expected ErrCartInvalidInput, got %v", err)
	}
}

func TestCartServiceUpsertItemEnforcesLineLimit(t *testing.T) {
	repo := &stubCartRepo{
		findFn: func(_ context.Context, ownerID string) (domain.Cart, error) {
			return domain.Cart{
				ID:      ownerID,
				OwnerID: ownerID,
				Items: []domain.CartItem{
					{ItemRef: domain.ItemRef{MaterialID: "mat-1"}, ProviderID: "s1", ProviderType: domain.ProviderSupplier, Quantity: 1, UnitPrice: 100},
					{ItemRef: domain.ItemRef{MaterialID: "mat-2"}, ProviderID: "s1", ProviderType: domain.ProviderSupplier, Quantity: 1, UnitPrice: 100},
				},
			}, nil
		},
	}

	svc, err := NewCartService(CartServiceDeps{Repository: repo, MaxItems: 2, Clock: time.Now})
	if err != nil {
		t.Fatalf("new cart service: %v", err)
	}

	_, err = svc.UpsertItem(context.Background(), UpsertCartItemCommand{
		OwnerID:      "buyer-1",
		Item:         domain.ItemRef{MaterialID: "mat-3"},
		ProviderID:   "s1",
		ProviderType: domain.ProviderSupplier,
		Quantity:     1,
		UnitPrice:    100,
	})
	if !errors.Is(err, ErrCartTooManyItems) {
		t.Fatalf("expected ErrCartTooManyItems, got %v", err)
	}
}

func TestCartServiceRemoveItemMissingLine(t *testing.T) {
	svc, err := NewCartService(CartServiceDeps{Repository: &stubCartRepo{}, Clock: time.Now})
	if err != nil {
		t.Fatalf("new cart service: %v", err)
	}

	_, err = svc.RemoveItem(context.Background(), RemoveCartItemCommand{
		OwnerID: "buyer-1",
		Item:    domain.ItemRef{MaterialID: "mat-9"},
	})
	if !errors.Is(err, ErrCartItemNotFound) {
		t.Fatalf("expected ErrCartItemNotFound, got %v", err)
	}
}

func TestCartServiceClearEmptyCartSkipsSave(t *testing.T) {
	saves := 0
	repo := &stubCartRepo{
		saveFn: func(_ context.Context, cart domain.Cart) (domain.Cart, error) {
			saves++
			return cart, nil
		},
	}
	svc, err := NewCartService(CartServiceDeps{Repository: repo, Clock: time.Now})
	if err != nil {
		t.Fatalf("new cart service: %v", err)
	}

	if err := svc.Clear(context.Background(), "buyer-1"); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if saves != 0 {
		t.Fatalf("expected no save for already-empty cart, got %d", saves)
	}
}
