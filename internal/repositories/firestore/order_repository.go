package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	domain "github.com/tthaingoc/EcoFashion-sub009/internal/domain"
	pfirestore "github.com/tthaingoc/EcoFashion-sub009/internal/platform/firestore"
	"github.com/tthaingoc/EcoFashion-sub009/internal/repositories"
)

const orderCollection = "orders"

// OrderRepository materialises orders from paid checkout sessions and tracks
// their settlement state within Firestore.
type OrderRepository struct {
	provider     *pfirestore.Provider
	orders       *pfirestore.BaseRepository[orderDocument]
	sessions     *pfirestore.BaseRepository[sessionDocument]
	stocks       *pfirestore.BaseRepository[stockDocument]
	reservations *pfirestore.BaseRepository[reservationDocument]
	ledger       *pfirestore.BaseRepository[stockLedgerDocument]
}

// NewOrderRepository constructs a Firestore-backed order repository.
func NewOrderRepository(provider *pfirestore.Provider) (*OrderRepository, error) {
	if provider == nil {
		return nil, errors.New("order repository requires firestore provider")
	}
	return &OrderRepository{
		provider:     provider,
		orders:       pfirestore.NewBaseRepository[orderDocument](provider, orderCollection, nil, nil),
		sessions:     pfirestore.NewBaseRepository[sessionDocument](provider, sessionCollection, nil, nil),
		stocks:       pfirestore.NewBaseRepository[stockDocument](provider, stockCollection, nil, nil),
		reservations: pfirestore.NewBaseRepository[reservationDocument](provider, reservationCollection, nil, nil),
		ledger:       pfirestore.NewBaseRepository[stockLedgerDocument](provider, stockLedgerCollection, nil, nil),
	}, nil
}

// CreateFromSession runs the materialisation transaction: the open session is
// marked paid, the reservation is resolved against the stock counters, and one
// order document per provider group is created. Reservation lines matching a
// selected session item are committed; lines the buyer deselected after the
// hold was taken are released back to availability. Everything succeeds or
// nothing is written.
func (r *OrderRepository) CreateFromSession(ctx context.Context, req repositories.OrderMaterializeRequest) (repositories.OrderMaterializeResult, error) {
	if r == nil || r.provider == nil {
		return repositories.OrderMaterializeResult{}, errors.New("order repository not initialised")
	}
	sessionID := strings.TrimSpace(req.SessionID)
	if sessionID == "" {
		return repositories.OrderMaterializeResult{}, errors.New("order materialise: session id is required")
	}
	if len(req.Orders) == 0 {
		return repositories.OrderMaterializeResult{}, errors.New("order materialise: at least one order is required")
	}
	for _, order := range req.Orders {
		if strings.TrimSpace(order.ID) == "" {
			return repositories.OrderMaterializeResult{}, errors.New("order materialise: order ids must be pre-minted")
		}
	}

	now := req.Now.UTC()
	var result repositories.OrderMaterializeResult
	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		// Read phase: session, reservation, then every stock counter.
		sessionRef, err := r.sessions.DocumentRef(ctx, sessionID)
		if err != nil {
			return err
		}
		sessionSnap, err := tx.Get(sessionRef)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return repositories.NewSessionError(repositories.SessionErrorNotFound, fmt.Sprintf("session %s not found", sessionID), err)
			}
			return err
		}
		var sessionDoc sessionDocument
		if err := sessionSnap.DataTo(&sessionDoc); err != nil {
			return fmt.Errorf("decode session %s: %w", sessionID, err)
		}
		if sessionDoc.Status != string(domain.SessionOpen) {
			return repositories.NewSessionError(repositories.SessionErrorInvalidState, fmt.Sprintf("session %s is %s, not open", sessionID, sessionDoc.Status), nil)
		}
		if !now.Before(sessionDoc.ExpiresAt) {
			return repositories.NewSessionError(repositories.SessionErrorInvalidState, fmt.Sprintf("session %s hold expired at %s", sessionID, sessionDoc.ExpiresAt.UTC().Format(time.RFC3339)), nil)
		}

		reservationID := strings.TrimSpace(sessionDoc.ReservationID)
		if reservationID == "" {
			return repositories.NewSessionError(repositories.SessionErrorInvalidState, fmt.Sprintf("session %s has no reservation", sessionID), nil)
		}
		resRef, err := r.reservations.DocumentRef(ctx, reservationID)
		if err != nil {
			return err
		}
		resSnap, err := tx.Get(resRef)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return repositories.NewInventoryError(repositories.InventoryErrorReservationNotFound, fmt.Sprintf("reservation %s not found", reservationID), err)
			}
			return err
		}
		resDoc, err := decodeReservation(resSnap)
		if err != nil {
			return err
		}
		if resDoc.Status != string(domain.ReservationReserved) {
			return repositories.NewInventoryError(repositories.InventoryErrorInvalidReservationState, fmt.Sprintf("reservation %s is %s, not reserved", reservationID, resDoc.Status), nil)
		}
		if len(req.CommitTxnIDs) != len(resDoc.Lines) {
			return errors.New("order materialise: one commit txn id per reservation line is required")
		}

		stockRefs := make([]*firestore.DocumentRef, len(resDoc.Lines))
		stockDocs := make([]stockDocument, len(resDoc.Lines))
		for i, line := range resDoc.Lines {
			itemKey := line.ItemRef.Key()
			stockRef, err := r.stocks.DocumentRef(ctx, itemKey)
			if err != nil {
				return err
			}
			snap, err := tx.Get(stockRef)
			if err != nil {
				if status.Code(err) == codes.NotFound {
					return repositories.NewInventoryError(repositories.InventoryErrorStockNotFound, fmt.Sprintf("stock %s not found", itemKey), err)
				}
				return err
			}
			var stockDoc stockDocument
			if err := snap.DataTo(&stockDoc); err != nil {
				return fmt.Errorf("decode inventory stock %s: %w", itemKey, err)
			}
			if stockDoc.Reserved < line.Quantity || stockDoc.OnHand < line.Quantity {
				return repositories.NewInventoryError(repositories.InventoryErrorInvalidReservationState, fmt.Sprintf("stock %s cannot satisfy the reservation", itemKey), nil)
			}
			stockRefs[i] = stockRef
			stockDocs[i] = stockDoc
		}

		// Write phase.
		sessionDoc.Status = string(domain.SessionPaid)
		sessionDoc.PaidAt = &now
		sessionDoc.UpdatedAt = now
		if err := tx.Set(sessionRef, sessionDoc); err != nil {
			return err
		}

		selected := make(map[string]bool, len(sessionDoc.Items))
		for _, item := range sessionDoc.Items {
			if item.IsSelected {
				selected[item.ItemRef.Key()] = true
			}
		}

		for i, line := range resDoc.Lines {
			itemKey := line.ItemRef.Key()
			stockDoc := stockDocs[i]
			var entry stockLedgerDocument
			if selected[itemKey] {
				before := stockDoc.OnHand
				stockDoc.Reserved -= line.Quantity
				stockDoc.OnHand -= line.Quantity
				entry = stockLedgerDocument{
					ItemKey:       itemKey,
					QuantityDelta: -line.Quantity,
					BeforeQty:     before,
					AfterQty:      stockDoc.OnHand,
					Type:          string(domain.InventoryCommit),
					ReservationID: reservationID,
					CreatedAt:     now,
				}
			} else {
				// Deselected after the hold was taken; hand the quantity back.
				before := stockDoc.Reserved
				stockDoc.Reserved -= line.Quantity
				entry = stockLedgerDocument{
					ItemKey:       itemKey,
					QuantityDelta: -line.Quantity,
					BeforeQty:     before,
					AfterQty:      stockDoc.Reserved,
					Type:          string(domain.InventoryRelease),
					ReservationID: reservationID,
					CreatedAt:     now,
				}
			}
			stockDoc.UpdatedAt = now
			stockDoc.recalculate()
			if err := tx.Set(stockRefs[i], stockDoc); err != nil {
				return err
			}

			ledgerRef, err := r.ledger.DocumentRef(ctx, req.CommitTxnIDs[i])
			if err != nil {
				return err
			}
			if err := tx.Create(ledgerRef, entry); err != nil {
				return err
			}
		}

		resDoc.Status = string(domain.ReservationCommitted)
		resDoc.UpdatedAt = now
		resDoc.CommittedAt = &now
		if err := tx.Set(resRef, resDoc); err != nil {
			return err
		}

		orders := make([]domain.Order, len(req.Orders))
		for i, order := range req.Orders {
			orderRef, err := r.orders.DocumentRef(ctx, order.ID)
			if err != nil {
				return err
			}
			order.SessionID = sessionID
			order.CreatedAt = now
			order.UpdatedAt = now
			doc := newOrderDocument(order)
			if err := tx.Create(orderRef, doc); err != nil {
				return err
			}
			orders[i] = doc.toDomain(order.ID)
		}

		result = repositories.OrderMaterializeResult{
			Session:     sessionDoc.toDomain(sessionID),
			Orders:      orders,
			Reservation: resDoc.toDomain(reservationID),
		}
		return nil
	})
	if err != nil {
		return repositories.OrderMaterializeResult{}, wrapOrderError("orders.createFromSession", err)
	}
	return result, nil
}

// FindByID fetches one order document.
func (r *OrderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	if r == nil || r.orders == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return domain.Order{}, errors.New("order find: order id is required")
	}

	doc, err := r.orders.Get(ctx, orderID)
	if err != nil {
		if pfirestore.IsNotFound(err) {
			return domain.Order{}, repositories.NewOrderError(repositories.OrderErrorNotFound, fmt.Sprintf("order %s not found", orderID), err)
		}
		return domain.Order{}, err
	}
	return doc.Data.toDomain(doc.ID), nil
}

// ListByOwner returns the buyer's orders, newest first.
func (r *OrderRepository) ListByOwner(ctx context.Context, ownerID string, limit int) ([]domain.Order, error) {
	return r.list(ctx, func(query firestore.Query) firestore.Query {
		return query.Where("ownerId", "==", strings.TrimSpace(ownerID))
	}, limit)
}

// ListByProvider returns the seller's incoming orders, newest first.
func (r *OrderRepository) ListByProvider(ctx context.Context, providerID string, providerType domain.ProviderType, limit int) ([]domain.Order, error) {
	return r.list(ctx, func(query firestore.Query) firestore.Query {
		return query.
			Where("providerId", "==", strings.TrimSpace(providerID)).
			Where("providerType", "==", string(providerType))
	}, limit)
}

// ListBySession returns every order created from one checkout session.
func (r *OrderRepository) ListBySession(ctx context.Context, sessionID string) ([]domain.Order, error) {
	return r.list(ctx, func(query firestore.Query) firestore.Query {
		return query.Where("sessionId", "==", strings.TrimSpace(sessionID))
	}, 0)
}

func (r *OrderRepository) list(ctx context.Context, narrow func(firestore.Query) firestore.Query, limit int) ([]domain.Order, error) {
	if r == nil || r.orders == nil {
		return nil, errors.New("order repository not initialised")
	}
	if limit <= 0 {
		limit = defaultLedgerListLimit
	}
	if limit > maxLedgerListLimit {
		limit = maxLedgerListLimit
	}

	docs, err := r.orders.Query(ctx, func(query firestore.Query) firestore.Query {
		return narrow(query).OrderBy("createdAt", firestore.Desc).Limit(limit)
	})
	if err != nil {
		return nil, wrapOrderError("orders.list", err)
	}

	orders := make([]domain.Order, len(docs))
	for i, doc := range docs {
		orders[i] = doc.Data.toDomain(doc.ID)
	}
	return orders, nil
}

// UpdatePaymentStatus applies a guarded payment state move.
func (r *OrderRepository) UpdatePaymentStatus(ctx context.Context, orderID string, to domain.PaymentStatus, now time.Time) (domain.Order, error) {
	return r.update(ctx, orderID, now, func(doc *orderDocument) error {
		from := domain.PaymentStatus(doc.PaymentStatus)
		if !domain.CanTransitionPayment(from, to) {
			return repositories.NewOrderError(repositories.OrderErrorInvalidTransition, fmt.Sprintf("payment %s -> %s is not allowed", from, to), nil)
		}
		doc.PaymentStatus = string(to)
		return nil
	})
}

// UpdateFulfillmentStatus applies a guarded fulfillment state move, carrying
// the order's detail lines along with it.
func (r *OrderRepository) UpdateFulfillmentStatus(ctx context.Context, orderID string, to domain.FulfillmentStatus, now time.Time) (domain.Order, error) {
	return r.update(ctx, orderID, now, func(doc *orderDocument) error {
		from := domain.FulfillmentStatus(doc.FulfillmentStatus)
		if !domain.CanTransitionFulfillment(from, to) {
			return repositories.NewOrderError(repositories.OrderErrorInvalidTransition, fmt.Sprintf("fulfillment %s -> %s is not allowed", from, to), nil)
		}
		doc.FulfillmentStatus = string(to)
		for i := range doc.Details {
			doc.Details[i].LineStatus = string(to)
		}
		return nil
	})
}

func (r *OrderRepository) update(ctx context.Context, orderID string, now time.Time, mutate func(*orderDocument) error) (domain.Order, error) {
	if r == nil || r.provider == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return domain.Order{}, errors.New("order update: order id is required")
	}

	var updated domain.Order
	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		orderRef, err := r.orders.DocumentRef(ctx, orderID)
		if err != nil {
			return err
		}
		snap, err := tx.Get(orderRef)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return repositories.NewOrderError(repositories.OrderErrorNotFound, fmt.Sprintf("order %s not found", orderID), err)
			}
			return err
		}
		var doc orderDocument
		if err := snap.DataTo(&doc); err != nil {
			return fmt.Errorf("decode order %s: %w", orderID, err)
		}
		if err := mutate(&doc); err != nil {
			return err
		}
		doc.UpdatedAt = now.UTC()
		if err := tx.Set(orderRef, doc); err != nil {
			return err
		}
		updated = doc.toDomain(orderID)
		return nil
	})
	if err != nil {
		return domain.Order{}, wrapOrderError("orders.update", err)
	}
	return updated, nil
}

// Helper structures ---------------------------------------------------------

type orderDocument struct {
	OwnerID           string                `firestore:"ownerId"`
	SessionID         string                `firestore:"sessionId"`
	ProviderID        string                `firestore:"providerId"`
	ProviderType      string                `firestore:"providerType"`
	Subtotal          int64                 `firestore:"subtotal"`
	ShippingFee       int64                 `firestore:"shippingFee"`
	Discount          int64                 `firestore:"discount"`
	TotalAmount       int64                 `firestore:"totalAmount"`
	PaymentStatus     string                `firestore:"paymentStatus"`
	FulfillmentStatus string                `firestore:"fulfillmentStatus"`
	ShippingAddress   string                `firestore:"shippingAddress,omitempty"`
	Details           []orderDetailDocument `firestore:"details"`
	CreatedAt         time.Time             `firestore:"createdAt"`
	UpdatedAt         time.Time             `firestore:"updatedAt"`
}

type orderDetailDocument struct {
	ItemRef    domain.ItemRef `firestore:"itemRef"`
	Quantity   int            `firestore:"qty"`
	UnitPrice  int64          `firestore:"unitPrice"`
	LineStatus string         `firestore:"lineStatus"`
}

func newOrderDocument(order domain.Order) orderDocument {
	details := make([]orderDetailDocument, len(order.Details))
	for i, detail := range order.Details {
		details[i] = orderDetailDocument{
			ItemRef:    detail.ItemRef,
			Quantity:   detail.Quantity,
			UnitPrice:  detail.UnitPrice,
			LineStatus: string(detail.LineStatus),
		}
	}
	return orderDocument{
		OwnerID:           strings.TrimSpace(order.OwnerID),
		SessionID:         strings.TrimSpace(order.SessionID),
		ProviderID:        strings.TrimSpace(order.ProviderID),
		ProviderType:      string(order.ProviderType),
		Subtotal:          order.Subtotal,
		ShippingFee:       order.ShippingFee,
		Discount:          order.Discount,
		TotalAmount:       order.TotalAmount,
		PaymentStatus:     string(order.PaymentStatus),
		FulfillmentStatus: string(order.FulfillmentStatus),
		ShippingAddress:   strings.TrimSpace(order.ShippingAddress),
		Details:           details,
		CreatedAt:         order.CreatedAt.UTC(),
		UpdatedAt:         order.UpdatedAt.UTC(),
	}
}

func (d orderDocument) toDomain(id string) domain.Order {
	details := make([]domain.OrderDetail, len(d.Details))
	for i, detail := range d.Details {
		details[i] = domain.OrderDetail{
			OrderID:    id,
			ItemRef:    detail.ItemRef,
			Quantity:   detail.Quantity,
			UnitPrice:  detail.UnitPrice,
			LineStatus: domain.FulfillmentStatus(detail.LineStatus),
		}
	}
	return domain.Order{
		ID:                id,
		OwnerID:           d.OwnerID,
		SessionID:         d.SessionID,
		ProviderID:        d.ProviderID,
		ProviderType:      domain.ProviderType(d.ProviderType),
		Subtotal:          d.Subtotal,
		ShippingFee:       d.ShippingFee,
		Discount:          d.Discount,
		TotalAmount:       d.TotalAmount,
		PaymentStatus:     domain.PaymentStatus(d.PaymentStatus),
		FulfillmentStatus: domain.FulfillmentStatus(d.FulfillmentStatus),
		ShippingAddress:   d.ShippingAddress,
		Details:           details,
		CreatedAt:         d.CreatedAt,
		UpdatedAt:         d.UpdatedAt,
	}
}

func wrapOrderError(op string, err error) error {
	if err == nil {
		return nil
	}
	var orderErr *repositories.OrderError
	if errors.As(err, &orderErr) {
		if orderErr.Op == "" {
			orderErr.Op = op
		}
		return orderErr
	}
	var sessErr *repositories.SessionError
	if errors.As(err, &sessErr) {
		return err
	}
	var invErr *repositories.InventoryError
	if errors.As(err, &invErr) {
		return err
	}
	return pfirestore.WrapError(op, err)
}
