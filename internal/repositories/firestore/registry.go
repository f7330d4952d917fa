package firestore

import (
	"context"
	"errors"
	"fmt"

	pfirestore "github.com/tthaingoc/EcoFashion-sub009/internal/platform/firestore"
	"github.com/tthaingoc/EcoFashion-sub009/internal/repositories"
)

// Registry wires every Firestore-backed repository against one shared provider.
type Registry struct {
	provider *pfirestore.Provider

	carts     *CartRepository
	sessions  *SessionRepository
	inventory *InventoryRepository
	wallets   *WalletRepository
	orders    *OrderRepository
	health    *HealthRepository
}

var _ repositories.Registry = (*Registry)(nil)

// NewRegistry constructs the repository registry.
func NewRegistry(provider *pfirestore.Provider) (*Registry, error) {
	if provider == nil {
		return nil, errors.New("registry requires firestore provider")
	}

	carts, err := NewCartRepository(provider)
	if err != nil {
		return nil, fmt.Errorf("registry: %w", err)
	}
	sessions, err := NewSessionRepository(provider)
	if err != nil {
		return nil, fmt.Errorf("registry: %w", err)
	}
	inventory, err := NewInventoryRepository(provider)
	if err != nil {
		return nil, fmt.Errorf("registry: %w", err)
	}
	wallets, err := NewWalletRepository(provider)
	if err != nil {
		return nil, fmt.Errorf("registry: %w", err)
	}
	orders, err := NewOrderRepository(provider)
	if err != nil {
		return nil, fmt.Errorf("registry: %w", err)
	}
	health, err := NewHealthRepository(provider)
	if err != nil {
		return nil, fmt.Errorf("registry: %w", err)
	}

	return &Registry{
		provider:  provider,
		carts:     carts,
		sessions:  sessions,
		inventory: inventory,
		wallets:   wallets,
		orders:    orders,
		health:    health,
	}, nil
}

// Close releases the shared Firestore provider.
func (r *Registry) Close(context.Context) error {
	if r == nil || r.provider == nil {
		return nil
	}
	return r.provider.Close()
}

// Carts returns the cart repository.
func (r *Registry) Carts() repositories.CartRepository { return r.carts }

// Sessions returns the checkout session repository.
func (r *Registry) Sessions() repositories.SessionRepository { return r.sessions }

// Inventory returns the inventory repository.
func (r *Registry) Inventory() repositories.InventoryRepository { return r.inventory }

// Wallets returns the wallet ledger repository.
func (r *Registry) Wallets() repositories.WalletRepository { return r.wallets }

// Orders returns the order repository.
func (r *Registry) Orders() repositories.OrderRepository { return r.orders }

// Health returns the readiness probe repository.
func (r *Registry) Health() repositories.HealthRepository { return r.health }
