package repositories

import (
	"context"
	"time"

	domain "github.com/tthaingoc/EcoFashion-sub009/internal/domain"
)

// Registry exposes typed repository accessors and lifecycle hooks for dependency injection.
type Registry interface {
	Close(ctx context.Context) error

	Carts() CartRepository
	Sessions() SessionRepository
	Inventory() InventoryRepository
	Wallets() WalletRepository
	Orders() OrderRepository
	Health() HealthRepository
}

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// CartRepository persists the per-owner shopping cart document.
type CartRepository interface {
	FindByOwner(ctx context.Context, ownerID string) (domain.Cart, error)
	Save(ctx context.Context, cart domain.Cart) (domain.Cart, error)
	RemoveItems(ctx context.Context, ownerID string, refs []domain.ItemRef, now time.Time) (domain.Cart, error)
}

// SessionRepository persists checkout sessions and their monotonic status transitions.
type SessionRepository interface {
	Insert(ctx context.Context, session domain.CheckoutSession) error
	FindByID(ctx context.Context, sessionID string) (domain.CheckoutSession, error)
	FindByTxnRef(ctx context.Context, txnRef string) (domain.CheckoutSession, error)
	ListByOwner(ctx context.Context, ownerID string, filter SessionListFilter) ([]domain.CheckoutSession, error)
	// UpdateItems replaces the session lines while the session is still open.
	UpdateItems(ctx context.Context, sessionID string, items []domain.CheckoutSessionItem, now time.Time) (domain.CheckoutSession, error)
	// Transition moves the session status, failing when the stored status differs from expected.
	Transition(ctx context.Context, req SessionTransitionRequest) (domain.CheckoutSession, error)
}

// SessionListFilter narrows owner session listings.
type SessionListFilter struct {
	Status domain.SessionStatus
	Limit  int
}

// SessionTransitionRequest describes a guarded status move.
type SessionTransitionRequest struct {
	SessionID string
	From      domain.SessionStatus
	To        domain.SessionStatus
	Now       time.Time
}

// InventoryRepository maintains stock counters, reservations, and the append-only stock ledger.
type InventoryRepository interface {
	GetStock(ctx context.Context, itemKey string) (domain.InventoryStock, error)
	// AdjustStock moves the on-hand counter by delta and appends an adjust ledger row.
	AdjustStock(ctx context.Context, req InventoryAdjustRequest) (domain.InventoryStock, error)
	// Reserve atomically checks availability across all lines, increments the
	// reserved counters, and creates the reservation. All lines succeed or none do.
	Reserve(ctx context.Context, req InventoryReserveRequest) (domain.InventoryReservation, error)
	// Release returns reserved quantities to availability. Releasing a reservation
	// that is no longer reserved is a no-op returning the stored reservation.
	Release(ctx context.Context, req InventoryReleaseRequest) (domain.InventoryReservation, error)
	GetReservation(ctx context.Context, reservationID string) (domain.InventoryReservation, error)
	// ListExpiredReservations returns reservations still in the reserved state
	// whose expiry lies at or before the cutoff, oldest first.
	ListExpiredReservations(ctx context.Context, cutoff time.Time, limit int) ([]domain.InventoryReservation, error)
	ListTransactions(ctx context.Context, itemKey string, limit int) ([]domain.InventoryTransaction, error)
}

// InventoryAdjustRequest describes a manual stock correction.
type InventoryAdjustRequest struct {
	ItemKey string
	Delta   int
	Now     time.Time
	TxnID   string
}

// InventoryReserveRequest carries the reservation to create.
type InventoryReserveRequest struct {
	Reservation domain.InventoryReservation
	Now         time.Time
	// TxnIDs supplies pre-minted ledger row IDs, one per reservation line.
	TxnIDs []string
}

// InventoryReleaseRequest identifies the reservation to release.
type InventoryReleaseRequest struct {
	ReservationID string
	Now           time.Time
	TxnIDs        []string
}

// WalletRepository maintains the append-only wallet ledger. Balances are derived
// from the most recent ledger row per owner, never stored separately.
type WalletRepository interface {
	// Balance returns the BalanceAfter of the owner's latest ledger row, zero when none exist.
	Balance(ctx context.Context, ownerID string) (int64, error)
	// Debit appends a negative-direction row after verifying sufficient balance.
	Debit(ctx context.Context, req WalletEntryRequest) (domain.WalletTransaction, error)
	// Credit appends a positive-direction row.
	Credit(ctx context.Context, req WalletEntryRequest) (domain.WalletTransaction, error)
	ListTransactions(ctx context.Context, ownerID string, limit int) ([]domain.WalletTransaction, error)
	FindTransaction(ctx context.Context, txnID string) (domain.WalletTransaction, error)
}

// WalletEntryRequest describes one ledger append.
type WalletEntryRequest struct {
	TxnID       string
	OwnerID     string
	Amount      int64 // unsigned, must be > 0
	Type        domain.WalletTransactionType
	ReferenceID string
	Now         time.Time
}

// OrderRepository materialises orders from paid sessions and tracks settlement.
type OrderRepository interface {
	// CreateFromSession atomically marks the open session paid, commits the
	// inventory reservation, and writes one order per provider group.
	CreateFromSession(ctx context.Context, req OrderMaterializeRequest) (OrderMaterializeResult, error)
	FindByID(ctx context.Context, orderID string) (domain.Order, error)
	ListByOwner(ctx context.Context, ownerID string, limit int) ([]domain.Order, error)
	ListByProvider(ctx context.Context, providerID string, providerType domain.ProviderType, limit int) ([]domain.Order, error)
	ListBySession(ctx context.Context, sessionID string) ([]domain.Order, error)
	// UpdatePaymentStatus applies a guarded payment state move.
	UpdatePaymentStatus(ctx context.Context, orderID string, to domain.PaymentStatus, now time.Time) (domain.Order, error)
	// UpdateFulfillmentStatus applies a guarded fulfillment state move.
	UpdateFulfillmentStatus(ctx context.Context, orderID string, to domain.FulfillmentStatus, now time.Time) (domain.Order, error)
}

// OrderMaterializeRequest carries everything the materialisation transaction needs.
type OrderMaterializeRequest struct {
	SessionID string
	// Orders are pre-built by the service from the session's provider groups,
	// IDs already minted.
	Orders []domain.Order
	// CommitTxnIDs supplies pre-minted stock ledger row IDs, one per reservation line.
	CommitTxnIDs []string
	Now          time.Time
}

// OrderMaterializeResult reports the created orders and the committed reservation.
type OrderMaterializeResult struct {
	Session     domain.CheckoutSession
	Orders      []domain.Order
	Reservation domain.InventoryReservation
}

// HealthRepository verifies datastore connectivity for readiness probes.
type HealthRepository interface {
	Ping(ctx context.Context) error
}
