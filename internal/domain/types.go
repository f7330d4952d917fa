package domain

import "time"

// ProviderType distinguishes the two seller kinds in the marketplace.
type ProviderType string

const (
	// ProviderSupplier sells raw materials.
	ProviderSupplier ProviderType = "supplier"
	// ProviderDesigner sells finished fashion products.
	ProviderDesigner ProviderType = "designer"
)

// Valid reports whether t is one of the known provider kinds.
func (t ProviderType) Valid() bool {
	return t == ProviderSupplier || t == ProviderDesigner
}

// ItemRef identifies a sellable item. Exactly one of MaterialID or ProductID is set.
type ItemRef struct {
	MaterialID string `firestore:"materialId,omitempty" json:"materialId,omitempty"`
	ProductID  string `firestore:"productId,omitempty" json:"productId,omitempty"`
}

// Key returns the stable identity of the referenced item.
func (r ItemRef) Key() string {
	if r.MaterialID != "" {
		return "material:" + r.MaterialID
	}
	if r.ProductID != "" {
		return "product:" + r.ProductID
	}
	return ""
}

// IsZero reports whether the reference points at nothing.
func (r ItemRef) IsZero() bool {
	return r.MaterialID == "" && r.ProductID == ""
}

// Valid reports whether exactly one side of the reference is populated.
func (r ItemRef) Valid() bool {
	return (r.MaterialID == "") != (r.ProductID == "")
}

// Cart is the per-owner mutable shopping cart. No inventory is touched until checkout.
type Cart struct {
	ID        string
	OwnerID   string
	Items     []CartItem
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CartItem is one cart line. One line per (owner, itemRef).
type CartItem struct {
	ItemRef      ItemRef
	ProviderID   string
	ProviderType ProviderType
	Quantity     int
	UnitPrice    int64
	AddedAt      time.Time
}

// SessionStatus enumerates checkout session lifecycle states.
type SessionStatus string

const (
	SessionOpen      SessionStatus = "open"
	SessionPaid      SessionStatus = "paid"
	SessionExpired   SessionStatus = "expired"
	SessionCancelled SessionStatus = "cancelled"
)

// Session transitions are monotonic: once a session leaves open it never returns.
var sessionTransitions = map[SessionStatus][]SessionStatus{
	SessionOpen:      {SessionPaid, SessionExpired, SessionCancelled},
	SessionPaid:      {},
	SessionExpired:   {},
	SessionCancelled: {},
}

// CanTransitionSession reports whether a session may move between the two states.
func CanTransitionSession(from, to SessionStatus) bool {
	for _, next := range sessionTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// CheckoutSession is a time-bounded snapshot of selected cart items being prepared
// for payment. Prices are frozen at creation; the reservation covers the full
// original capture even when the selection is later narrowed.
type CheckoutSession struct {
	ID              string
	OwnerID         string
	Status          SessionStatus
	TxnRef          string // canonical opaque gateway reference, minted at creation
	ReservationID   string
	ShippingAddress string
	Items           []CheckoutSessionItem
	CreatedAt       time.Time
	ExpiresAt       time.Time
	UpdatedAt       time.Time
	PaidAt          *time.Time
}

// CheckoutSessionItem is one frozen line of a checkout session.
type CheckoutSessionItem struct {
	ItemRef      ItemRef
	ProviderID   string
	ProviderType ProviderType
	Quantity     int
	UnitPrice    int64 // snapshot at session creation, immutable afterwards
	IsSelected   bool
}

// ProviderGroup aggregates session items sharing a provider. Derived, never persisted.
type ProviderGroup struct {
	ProviderID   string
	ProviderType ProviderType
	Items        []CheckoutSessionItem
	Subtotal     int64
}

// GroupByProvider buckets the selected items by (providerId, providerType) preserving
// the order in which providers first appear among the items.
func GroupByProvider(items []CheckoutSessionItem) []ProviderGroup {
	index := make(map[string]int)
	groups := make([]ProviderGroup, 0, 2)
	for _, item := range items {
		if !item.IsSelected {
			continue
		}
		key := item.ProviderID + "|" + string(item.ProviderType)
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, ProviderGroup{
				ProviderID:   item.ProviderID,
				ProviderType: item.ProviderType,
			})
		}
		groups[i].Items = append(groups[i].Items, item)
		groups[i].Subtotal += int64(item.Quantity) * item.UnitPrice
	}
	return groups
}

// SelectedTotal sums quantity times unit price over the selected items.
func (s CheckoutSession) SelectedTotal() int64 {
	var total int64
	for _, item := range s.Items {
		if item.IsSelected {
			total += int64(item.Quantity) * item.UnitPrice
		}
	}
	return total
}

// PaymentStatus enumerates the order payment lifecycle.
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentFailed   PaymentStatus = "failed"
	PaymentRefunded PaymentStatus = "refunded"
)

var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentPending:  {PaymentPaid, PaymentFailed},
	PaymentPaid:     {PaymentRefunded},
	PaymentFailed:   {},
	PaymentRefunded: {},
}

// CanTransitionPayment reports whether the payment status move is allowed.
func CanTransitionPayment(from, to PaymentStatus) bool {
	for _, next := range paymentTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// FulfillmentStatus enumerates the order fulfillment lifecycle.
type FulfillmentStatus string

const (
	FulfillmentPending   FulfillmentStatus = "pending"
	FulfillmentConfirmed FulfillmentStatus = "confirmed"
	FulfillmentShipped   FulfillmentStatus = "shipped"
	FulfillmentDelivered FulfillmentStatus = "delivered"
	FulfillmentCancelled FulfillmentStatus = "cancelled"
)

// Fulfillment advances only forward; cancellation is allowed until the order ships.
var fulfillmentTransitions = map[FulfillmentStatus][]FulfillmentStatus{
	FulfillmentPending:   {FulfillmentConfirmed, FulfillmentCancelled},
	FulfillmentConfirmed: {FulfillmentShipped, FulfillmentCancelled},
	FulfillmentShipped:   {FulfillmentDelivered},
	FulfillmentDelivered: {},
	FulfillmentCancelled: {},
}

// CanTransitionFulfillment reports whether the fulfillment status move is allowed.
func CanTransitionFulfillment(from, to FulfillmentStatus) bool {
	for _, next := range fulfillmentTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Order is one per-provider slice of a paid checkout session. Subtotal and discount
// are immutable after creation.
type Order struct {
	ID                string
	OwnerID           string
	SessionID         string
	ProviderID        string
	ProviderType      ProviderType
	Subtotal          int64
	ShippingFee       int64
	Discount          int64
	TotalAmount       int64
	PaymentStatus     PaymentStatus
	FulfillmentStatus FulfillmentStatus
	ShippingAddress   string
	Details           []OrderDetail
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// OrderDetail is one line of an order. The sum of quantity times unit price across
// an order's details equals the order subtotal.
type OrderDetail struct {
	OrderID    string
	ItemRef    ItemRef
	Quantity   int
	UnitPrice  int64
	LineStatus FulfillmentStatus
}

// WalletTransactionType enumerates wallet ledger entry kinds.
type WalletTransactionType string

const (
	WalletDeposit    WalletTransactionType = "deposit"
	WalletWithdrawal WalletTransactionType = "withdrawal"
	WalletPayment    WalletTransactionType = "payment"
	WalletRefund     WalletTransactionType = "refund"
	WalletTransfer   WalletTransactionType = "transfer"
)

// SignedAmount applies the direction a transaction type implies to an unsigned amount.
func (t WalletTransactionType) SignedAmount(amount int64) int64 {
	switch t {
	case WalletDeposit, WalletRefund:
		return amount
	case WalletWithdrawal, WalletPayment, WalletTransfer:
		return -amount
	default:
		return 0
	}
}

// WalletTransactionStatus enumerates ledger entry settlement states.
type WalletTransactionStatus string

const (
	WalletTxnPending   WalletTransactionStatus = "pending"
	WalletTxnReleased  WalletTransactionStatus = "released"
	WalletTxnCancelled WalletTransactionStatus = "cancelled"
)

// WalletTransaction is one append-only ledger row. The wallet balance is the
// BalanceAfter of the owner's most recent row; there is no mutable balance field.
type WalletTransaction struct {
	ID            string
	WalletOwnerID string
	Amount        int64 // unsigned; direction derived from Type
	BalanceBefore int64
	BalanceAfter  int64
	Type          WalletTransactionType
	Status        WalletTransactionStatus
	ReferenceID   string
	Sequence      int64
	CreatedAt     time.Time
}

// InventoryTransactionType enumerates stock ledger entry kinds.
type InventoryTransactionType string

const (
	InventoryReserve InventoryTransactionType = "reserve"
	InventoryRelease InventoryTransactionType = "release"
	InventoryCommit  InventoryTransactionType = "commit"
	InventoryAdjust  InventoryTransactionType = "adjust"
)

// InventoryStock is the current counter projection for one stockable item.
// Available is always OnHand minus Reserved and never negative.
type InventoryStock struct {
	ItemKey   string
	OnHand    int
	Reserved  int
	Available int
	UpdatedAt time.Time
}

// InventoryTransaction is one append-only stock ledger row.
type InventoryTransaction struct {
	ID            string
	ItemKey       string
	QuantityDelta int
	BeforeQty     int
	AfterQty      int
	Type          InventoryTransactionType
	ReservationID string
	CreatedAt     time.Time
}

// ReservationStatus enumerates inventory reservation states.
type ReservationStatus string

const (
	ReservationReserved  ReservationStatus = "reserved"
	ReservationReleased  ReservationStatus = "released"
	ReservationCommitted ReservationStatus = "committed"
)

// InventoryReservation is a temporary hold across one or more items, created by a
// checkout session and resolved by payment (commit) or expiry/cancel (release).
type InventoryReservation struct {
	ID          string
	SessionID   string
	OwnerID     string
	Status      ReservationStatus
	Lines       []ReservationLine
	ExpiresAt   time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	ReleasedAt  *time.Time
	CommittedAt *time.Time
}

// ReservationLine is one held item quantity inside a reservation.
type ReservationLine struct {
	ItemRef  ItemRef
	Quantity int
}
