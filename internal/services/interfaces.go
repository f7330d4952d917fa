package services

import (
	"context"
	"net/url"

	domain "github.com/tthaingoc/EcoFashion-sub009/internal/domain"
)

// Type aliases expose domain models to the services package without reversing dependency direction.
type (
	ItemRef               = domain.ItemRef
	ProviderType          = domain.ProviderType
	Cart                  = domain.Cart
	CartItem              = domain.CartItem
	CheckoutSession       = domain.CheckoutSession
	CheckoutSessionItem   = domain.CheckoutSessionItem
	SessionStatus         = domain.SessionStatus
	ProviderGroup         = domain.ProviderGroup
	Order                 = domain.Order
	OrderDetail           = domain.OrderDetail
	PaymentStatus         = domain.PaymentStatus
	FulfillmentStatus     = domain.FulfillmentStatus
	WalletTransaction     = domain.WalletTransaction
	WalletTransactionType = domain.WalletTransactionType
	InventoryStock        = domain.InventoryStock
	InventoryTransaction  = domain.InventoryTransaction
	InventoryReservation  = domain.InventoryReservation
	ReservationLine       = domain.ReservationLine
)

// CartService manages a buyer's single mutable cart.
type CartService interface {
	GetOrCreateCart(ctx context.Context, ownerID string) (Cart, error)
	UpsertItem(ctx context.Context, cmd UpsertCartItemCommand) (Cart, error)
	RemoveItem(ctx context.Context, cmd RemoveCartItemCommand) (Cart, error)
	Clear(ctx context.Context, ownerID string) error
}

// CheckoutService drives the session lifecycle from cart snapshot through
// payment to order materialization.
type CheckoutService interface {
	CreateSession(ctx context.Context, cmd CreateSessionCommand) (CheckoutSession, error)
	GetSession(ctx context.Context, cmd SessionReadCommand) (CheckoutSession, error)
	ListSessions(ctx context.Context, ownerID string) ([]CheckoutSession, error)
	UpdateSelection(ctx context.Context, cmd UpdateSelectionCommand) (CheckoutSession, error)
	CancelSession(ctx context.Context, cmd SessionReadCommand) (CheckoutSession, error)
	PayWithWallet(ctx context.Context, cmd SessionReadCommand) (CheckoutResult, error)
	PayWithGateway(ctx context.Context, cmd GatewayPayCommand) (GatewayRedirect, error)
	HandleGatewayReturn(ctx context.Context, params url.Values) (CheckoutResult, error)
}

// InventoryService exposes stock reads and administrative adjustments.
type InventoryService interface {
	GetStock(ctx context.Context, ref ItemRef) (InventoryStock, error)
	AdjustStock(ctx context.Context, cmd AdjustStockCommand) (InventoryStock, error)
	ListTransactions(ctx context.Context, cmd InventoryHistoryCommand) ([]InventoryTransaction, error)
	ReleaseExpired(ctx context.Context, limit int) (int, error)
}

// WalletService manages per-owner ledger balances.
type WalletService interface {
	GetBalance(ctx context.Context, ownerID string) (int64, error)
	Deposit(ctx context.Context, cmd WalletMutationCommand) (WalletTransaction, error)
	Withdraw(ctx context.Context, cmd WalletMutationCommand) (WalletTransaction, error)
	ListTransactions(ctx context.Context, cmd WalletHistoryCommand) ([]WalletTransaction, error)
}

// OrderService covers post-checkout reads and settlement transitions.
type OrderService interface {
	GetOrder(ctx context.Context, cmd OrderReadCommand) (Order, error)
	ListByOwner(ctx context.Context, ownerID string) ([]Order, error)
	ListByProvider(ctx context.Context, providerID string) ([]Order, error)
	ListBySession(ctx context.Context, sessionID string) ([]Order, error)
	AdvancePayment(ctx context.Context, cmd PaymentTransitionCommand) (Order, error)
	AdvanceFulfillment(ctx context.Context, cmd FulfillmentTransitionCommand) (Order, error)
	Refund(ctx context.Context, cmd RefundOrderCommand) (Order, error)
}

// PriceSource resolves the current catalog price and owning provider for an
// item at session-creation time. Cart lines already carry a snapshot; when a
// source is configured it wins so stale carts cannot lock in old prices.
type PriceSource interface {
	Quote(ctx context.Context, ref ItemRef) (PriceQuote, error)
}

// PriceQuote is a point-in-time catalog answer for one item.
type PriceQuote struct {
	UnitPrice    int64
	ProviderID   string
	ProviderType ProviderType
}

// Command and DTO definitions ------------------------------------------------

type UpsertCartItemCommand struct {
	OwnerID      string
	Item         ItemRef
	ProviderID   string
	ProviderType ProviderType
	Quantity     int
	UnitPrice    int64
}

type RemoveCartItemCommand struct {
	OwnerID string
	Item    ItemRef
}

type CreateSessionCommand struct {
	OwnerID         string
	SelectedItems   []ItemRef
	ShippingAddress string
}

type SessionReadCommand struct {
	OwnerID   string
	SessionID string
}

type UpdateSelectionCommand struct {
	OwnerID       string
	SessionID     string
	SelectedItems []ItemRef
}

type GatewayPayCommand struct {
	OwnerID   string
	SessionID string
	ClientIP  string
	BankCode  string
}

// GatewayRedirect carries the signed URL the buyer must be sent to.
type GatewayRedirect struct {
	SessionID  string
	TxnRef     string
	RedirectTo string
}

// CheckoutResult reports the terminal outcome of a payment attempt.
type CheckoutResult struct {
	Session CheckoutSession
	Orders  []Order
}

type AdjustStockCommand struct {
	Item   ItemRef
	Delta  int64
	Reason string
}

type InventoryHistoryCommand struct {
	Item  ItemRef
	Limit int
}

type WalletMutationCommand struct {
	OwnerID     string
	Amount      int64
	ReferenceID string
}

type WalletHistoryCommand struct {
	OwnerID string
	Limit   int
}

type OrderReadCommand struct {
	OrderID string
	OwnerID string
}

type PaymentTransitionCommand struct {
	OrderID string
	ActorID string
	To      PaymentStatus
}

type FulfillmentTransitionCommand struct {
	OrderID    string
	ProviderID string
	To         FulfillmentStatus
}

type RefundOrderCommand struct {
	OrderID string
	ActorID string
	Reason  string
}
