package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/tthaingoc/EcoFashion-sub009/internal/domain"
	"github.com/tthaingoc/EcoFashion-sub009/internal/payments"
	"github.com/tthaingoc/EcoFashion-sub009/internal/platform/events"
	"github.com/tthaingoc/EcoFashion-sub009/internal/repositories"
)

var (
	errCheckoutRepositoriesRequired = errors.New("checkout service: repositories are required")
	errCheckoutClockRequired        = errors.New("checkout service: clock is required")
)

// ErrCheckoutInvalidInput indicates the caller supplied invalid input.
var ErrCheckoutInvalidInput = errors.New("checkout service: invalid input")

// ErrCheckoutUnavailable indicates the checkout backend cannot fulfil the request.
var ErrCheckoutUnavailable = errors.New("checkout service: unavailable")

// ErrCheckoutSessionNotFound indicates the session does not exist or belongs to another owner.
var ErrCheckoutSessionNotFound = errors.New("checkout service: session not found")

// ErrCheckoutSessionNotOpen indicates the session already left the open state.
var ErrCheckoutSessionNotOpen = errors.New("checkout service: session not open")

// ErrCheckoutSessionExpired indicates the session's hold window has passed.
var ErrCheckoutSessionExpired = errors.New("checkout service: session expired")

// ErrCheckoutInsufficientStock indicates a selected item cannot be held.
var ErrCheckoutInsufficientStock = errors.New("checkout service: insufficient stock")

// ErrCheckoutInsufficientBalance indicates the wallet cannot cover the session total.
var ErrCheckoutInsufficientBalance = errors.New("checkout service: insufficient balance")

// ErrCheckoutPaymentDeclined indicates the gateway reported a failed payment.
// The session stays open so the buyer can retry.
var ErrCheckoutPaymentDeclined = errors.New("checkout service: payment declined")

// ErrCheckoutGatewayUnreachable indicates the payment gateway could not be used.
var ErrCheckoutGatewayUnreachable = errors.New("checkout service: gateway unreachable")

// ErrCheckoutAmountMismatch indicates the gateway confirmed an amount that
// differs from the session total.
var ErrCheckoutAmountMismatch = errors.New("checkout service: amount mismatch")

const defaultHoldTTL = 30 * time.Minute

// CheckoutServiceDeps wires every collaborator of the checkout flow.
type CheckoutServiceDeps struct {
	Sessions    repositories.SessionRepository
	Carts       repositories.CartRepository
	Inventory   repositories.InventoryRepository
	Orders      repositories.OrderRepository
	Wallets     repositories.WalletRepository
	Gateway     payments.Provider
	Prices      PriceSource
	Events      events.Publisher
	HoldTTL     time.Duration
	Clock       func() time.Time
	IDGenerator func() string
	Logger      func(context.Context, string, map[string]any)
}

type checkoutService struct {
	sessions  repositories.SessionRepository
	carts     repositories.CartRepository
	inventory repositories.InventoryRepository
	orders    repositories.OrderRepository
	wallets   repositories.WalletRepository
	gateway   payments.Provider
	prices    PriceSource
	events    events.Publisher
	holdTTL   time.Duration
	now       func() time.Time
	newID     func() string
	logger    func(context.Context, string, map[string]any)
}

// NewCheckoutService constructs a CheckoutService enforcing dependency validation.
func NewCheckoutService(deps CheckoutServiceDeps) (CheckoutService, error) {
	if deps.Sessions == nil || deps.Carts == nil || deps.Inventory == nil || deps.Orders == nil || deps.Wallets == nil {
		return nil, errCheckoutRepositoriesRequired
	}
	if deps.Clock == nil {
		return nil, errCheckoutClockRequired
	}

	holdTTL := deps.HoldTTL
	if holdTTL <= 0 {
		holdTTL = defaultHoldTTL
	}
	newID := deps.IDGenerator
	if newID == nil {
		newID = func() string { return ulid.Make().String() }
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	publisher := deps.Events
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}

	return &checkoutService{
		sessions:  deps.Sessions,
		carts:     deps.Carts,
		inventory: deps.Inventory,
		orders:    deps.Orders,
		wallets:   deps.Wallets,
		gateway:   deps.Gateway,
		prices:    deps.Prices,
		events:    publisher,
		holdTTL:   holdTTL,
		now:       func() time.Time { return deps.Clock().UTC() },
		newID:     newID,
		logger:    logger,
	}, nil
}

// CreateSession snapshots the selected cart lines into a new open session and
// takes a bounded inventory hold over them. Prices are frozen at this moment.
func (s *checkoutService) CreateSession(ctx context.Context, cmd CreateSessionCommand) (CheckoutSession, error) {
	if s == nil || s.sessions == nil {
		return CheckoutSession{}, ErrCheckoutUnavailable
	}
	uid := strings.TrimSpace(cmd.OwnerID)
	if uid == "" || len(cmd.SelectedItems) == 0 {
		return CheckoutSession{}, ErrCheckoutInvalidInput
	}

	cart, err := s.carts.FindByOwner(ctx, uid)
	if err != nil {
		return CheckoutSession{}, s.translate(err)
	}
	lines := make(map[string]domain.CartItem, len(cart.Items))
	for _, item := range cart.Items {
		lines[item.ItemRef.Key()] = item
	}

	now := s.now()
	items := make([]domain.CheckoutSessionItem, 0, len(cmd.SelectedItems))
	seen := make(map[string]bool, len(cmd.SelectedItems))
	for _, ref := range cmd.SelectedItems {
		key := ref.Key()
		if key == "" || seen[key] {
			return CheckoutSession{}, ErrCheckoutInvalidInput
		}
		seen[key] = true
		line, ok := lines[key]
		if !ok || line.Quantity <= 0 {
			return CheckoutSession{}, ErrCheckoutInvalidInput
		}

		item := domain.CheckoutSessionItem{
			ItemRef:      line.ItemRef,
			ProviderID:   line.ProviderID,
			ProviderType: line.ProviderType,
			Quantity:     line.Quantity,
			UnitPrice:    line.UnitPrice,
			IsSelected:   true,
		}
		if s.prices != nil {
			quote, err := s.prices.Quote(ctx, line.ItemRef)
			if err != nil {
				return CheckoutSession{}, errors.Join(ErrCheckoutUnavailable, err)
			}
			item.UnitPrice = quote.UnitPrice
			if quote.ProviderID != "" {
				item.ProviderID = quote.ProviderID
				item.ProviderType = quote.ProviderType
			}
		}
		if item.ProviderID == "" || !item.ProviderType.Valid() {
			return CheckoutSession{}, ErrCheckoutInvalidInput
		}
		items = append(items, item)
	}

	sessionID := s.newID()
	reservationID := s.newID()
	session := domain.CheckoutSession{
		ID:              sessionID,
		OwnerID:         uid,
		Status:          domain.SessionOpen,
		TxnRef:          s.newID(),
		ReservationID:   reservationID,
		ShippingAddress: strings.TrimSpace(cmd.ShippingAddress),
		Items:           items,
		CreatedAt:       now,
		ExpiresAt:       now.Add(s.holdTTL),
		UpdatedAt:       now,
	}

	resLines := make([]domain.ReservationLine, len(items))
	txnIDs := make([]string, len(items))
	for i, item := range items {
		resLines[i] = domain.ReservationLine{ItemRef: item.ItemRef, Quantity: item.Quantity}
		txnIDs[i] = s.newID()
	}
	reservation := domain.InventoryReservation{
		ID:        reservationID,
		SessionID: sessionID,
		OwnerID:   uid,
		Lines:     resLines,
		ExpiresAt: session.ExpiresAt,
	}
	if _, err := s.inventory.Reserve(ctx, repositories.InventoryReserveRequest{
		Reservation: reservation,
		Now:         now,
		TxnIDs:      txnIDs,
	}); err != nil {
		return CheckoutSession{}, s.translate(err)
	}

	if err := s.sessions.Insert(ctx, session); err != nil {
		s.releaseReservation(ctx, reservation, now)
		return CheckoutSession{}, s.translate(err)
	}

	s.logger(ctx, "checkout.session_created", map[string]any{
		"sessionID": sessionID,
		"ownerID":   uid,
		"items":     len(items),
		"expiresAt": session.ExpiresAt,
	})
	return session, nil
}

// GetSession loads the session, expiring it lazily when its hold window has passed.
func (s *checkoutService) GetSession(ctx context.Context, cmd SessionReadCommand) (CheckoutSession, error) {
	if s == nil || s.sessions == nil {
		return CheckoutSession{}, ErrCheckoutUnavailable
	}
	session, err := s.loadOwned(ctx, cmd.OwnerID, cmd.SessionID)
	if err != nil {
		return CheckoutSession{}, err
	}
	return s.expireIfDue(ctx, session), nil
}

// ListSessions returns the owner's sessions, newest first.
func (s *checkoutService) ListSessions(ctx context.Context, ownerID string) ([]CheckoutSession, error) {
	if s == nil || s.sessions == nil {
		return nil, ErrCheckoutUnavailable
	}
	uid := strings.TrimSpace(ownerID)
	if uid == "" {
		return nil, ErrCheckoutInvalidInput
	}
	sessions, err := s.sessions.ListByOwner(ctx, uid, repositories.SessionListFilter{})
	if err != nil {
		return nil, s.translate(err)
	}
	return sessions, nil
}

// UpdateSelection toggles which snapshot lines participate in payment. The
// selection must stay within the captured lines; the inventory hold is kept as
// taken, and deselected quantities are handed back when the session settles.
func (s *checkoutService) UpdateSelection(ctx context.Context, cmd UpdateSelectionCommand) (CheckoutSession, error) {
	if s == nil || s.sessions == nil {
		return CheckoutSession{}, ErrCheckoutUnavailable
	}
	if len(cmd.SelectedItems) == 0 {
		return CheckoutSession{}, ErrCheckoutInvalidInput
	}

	session, err := s.loadOwned(ctx, cmd.OwnerID, cmd.SessionID)
	if err != nil {
		return CheckoutSession{}, err
	}
	session = s.expireIfDue(ctx, session)
	if session.Status != domain.SessionOpen {
		return CheckoutSession{}, s.stateError(session.Status)
	}

	captured := make(map[string]bool, len(session.Items))
	for _, item := range session.Items {
		captured[item.ItemRef.Key()] = true
	}
	selected := make(map[string]bool, len(cmd.SelectedItems))
	for _, ref := range cmd.SelectedItems {
		key := ref.Key()
		if key == "" || !captured[key] {
			return CheckoutSession{}, ErrCheckoutInvalidInput
		}
		selected[key] = true
	}

	items := make([]domain.CheckoutSessionItem, len(session.Items))
	copy(items, session.Items)
	for i := range items {
		items[i].IsSelected = selected[items[i].ItemRef.Key()]
	}

	updated, err := s.sessions.UpdateItems(ctx, session.ID, items, s.now())
	if err != nil {
		return CheckoutSession{}, s.translate(err)
	}
	return updated, nil
}

// CancelSession moves an open session to cancelled and releases its hold.
func (s *checkoutService) CancelSession(ctx context.Context, cmd SessionReadCommand) (CheckoutSession, error) {
	if s == nil || s.sessions == nil {
		return CheckoutSession{}, ErrCheckoutUnavailable
	}
	session, err := s.loadOwned(ctx, cmd.OwnerID, cmd.SessionID)
	if err != nil {
		return CheckoutSession{}, err
	}
	session = s.expireIfDue(ctx, session)
	if session.Status != domain.SessionOpen {
		return CheckoutSession{}, s.stateError(session.Status)
	}

	now := s.now()
	cancelled, err := s.sessions.Transition(ctx, repositories.SessionTransitionRequest{
		SessionID: session.ID,
		From:      domain.SessionOpen,
		To:        domain.SessionCancelled,
		Now:       now,
	})
	if err != nil {
		return CheckoutSession{}, s.translate(err)
	}
	s.releaseByID(ctx, session.ReservationID, len(session.Items), now)
	return cancelled, nil
}

// PayWithWallet debits the buyer's wallet for the selected total and
// materialises the orders. A failed materialisation refunds the debit.
func (s *checkoutService) PayWithWallet(ctx context.Context, cmd SessionReadCommand) (CheckoutResult, error) {
	if s == nil || s.sessions == nil {
		return CheckoutResult{}, ErrCheckoutUnavailable
	}
	session, err := s.loadOwned(ctx, cmd.OwnerID, cmd.SessionID)
	if err != nil {
		return CheckoutResult{}, err
	}
	session = s.expireIfDue(ctx, session)
	if session.Status != domain.SessionOpen {
		return CheckoutResult{}, s.stateError(session.Status)
	}

	total := session.SelectedTotal()
	if total <= 0 {
		return CheckoutResult{}, ErrCheckoutInvalidInput
	}

	now := s.now()
	debit, err := s.wallets.Debit(ctx, repositories.WalletEntryRequest{
		TxnID:       s.newID(),
		OwnerID:     session.OwnerID,
		Amount:      total,
		Type:        domain.WalletPayment,
		ReferenceID: session.ID,
		Now:         now,
	})
	if err != nil {
		return CheckoutResult{}, s.translate(err)
	}

	result, err := s.finalize(ctx, session)
	if err != nil {
		// The debit is durable; hand the money back before reporting failure.
		if _, refundErr := s.wallets.Credit(ctx, repositories.WalletEntryRequest{
			TxnID:       s.newID(),
			OwnerID:     session.OwnerID,
			Amount:      total,
			Type:        domain.WalletRefund,
			ReferenceID: debit.ID,
			Now:         s.now(),
		}); refundErr != nil {
			s.logger(ctx, "checkout.wallet_refund_failed", map[string]any{
				"sessionID": session.ID,
				"debitID":   debit.ID,
				"error":     refundErr.Error(),
			})
		}
		return CheckoutResult{}, err
	}
	return result, nil
}

// PayWithGateway builds the signed hosted-payment redirect for the session total.
func (s *checkoutService) PayWithGateway(ctx context.Context, cmd GatewayPayCommand) (GatewayRedirect, error) {
	if s == nil || s.sessions == nil {
		return GatewayRedirect{}, ErrCheckoutUnavailable
	}
	if s.gateway == nil {
		return GatewayRedirect{}, ErrCheckoutGatewayUnreachable
	}
	session, err := s.loadOwned(ctx, cmd.OwnerID, cmd.SessionID)
	if err != nil {
		return GatewayRedirect{}, err
	}
	session = s.expireIfDue(ctx, session)
	if session.Status != domain.SessionOpen {
		return GatewayRedirect{}, s.stateError(session.Status)
	}

	total := session.SelectedTotal()
	if total <= 0 {
		return GatewayRedirect{}, ErrCheckoutInvalidInput
	}

	redirect, err := s.gateway.BuildPaymentURL(ctx, payments.PaymentRequest{
		TxnRef:    session.TxnRef,
		Amount:    total,
		OrderInfo: fmt.Sprintf("Thanh toan don hang %s", session.ID),
		ClientIP:  strings.TrimSpace(cmd.ClientIP),
		CreatedAt: s.now(),
	})
	if err != nil {
		return GatewayRedirect{}, errors.Join(ErrCheckoutGatewayUnreachable, err)
	}
	return GatewayRedirect{
		SessionID:  session.ID,
		TxnRef:     session.TxnRef,
		RedirectTo: redirect,
	}, nil
}

// HandleGatewayReturn authenticates the gateway callback and settles the
// session. A failed payment leaves the session open for another attempt; a
// replayed success for an already-paid session returns the existing orders.
func (s *checkoutService) HandleGatewayReturn(ctx context.Context, params url.Values) (CheckoutResult, error) {
	if s == nil || s.sessions == nil {
		return CheckoutResult{}, ErrCheckoutUnavailable
	}
	if s.gateway == nil {
		return CheckoutResult{}, ErrCheckoutGatewayUnreachable
	}

	outcome, err := s.gateway.VerifyReturn(params)
	if err != nil {
		if errors.Is(err, payments.ErrSignatureInvalid) {
			s.logger(ctx, "checkout.signature_rejected", map[string]any{
				"txnRef": params.Get("vnp_TxnRef"),
			})
			return CheckoutResult{}, err
		}
		return CheckoutResult{}, errors.Join(ErrCheckoutInvalidInput, err)
	}

	session, err := s.sessions.FindByTxnRef(ctx, outcome.TxnRef)
	if err != nil {
		return CheckoutResult{}, s.translate(err)
	}
	session = s.expireIfDue(ctx, session)

	if session.Status == domain.SessionPaid {
		orders, err := s.orders.ListBySession(ctx, session.ID)
		if err != nil {
			return CheckoutResult{}, s.translate(err)
		}
		return CheckoutResult{Session: session, Orders: orders}, nil
	}
	if session.Status != domain.SessionOpen {
		return CheckoutResult{Session: session}, s.stateError(session.Status)
	}

	if !outcome.Success {
		s.logger(ctx, "checkout.gateway_declined", map[string]any{
			"sessionID":    session.ID,
			"responseCode": outcome.ResponseCode,
		})
		return CheckoutResult{Session: session}, ErrCheckoutPaymentDeclined
	}
	if outcome.Amount != session.SelectedTotal() {
		s.logger(ctx, "checkout.amount_mismatch", map[string]any{
			"sessionID": session.ID,
			"expected":  session.SelectedTotal(),
			"received":  outcome.Amount,
		})
		return CheckoutResult{Session: session}, ErrCheckoutAmountMismatch
	}

	return s.finalize(ctx, session)
}

// finalize runs the materialisation transaction and the follow-up bookkeeping
// shared by both payment paths.
func (s *checkoutService) finalize(ctx context.Context, session domain.CheckoutSession) (CheckoutResult, error) {
	groups := domain.GroupByProvider(session.Items)
	if len(groups) == 0 {
		return CheckoutResult{}, ErrCheckoutInvalidInput
	}

	now := s.now()
	orders := make([]domain.Order, len(groups))
	for i, group := range groups {
		details := make([]domain.OrderDetail, len(group.Items))
		for j, item := range group.Items {
			details[j] = domain.OrderDetail{
				ItemRef:    item.ItemRef,
				Quantity:   item.Quantity,
				UnitPrice:  item.UnitPrice,
				LineStatus: domain.FulfillmentPending,
			}
		}
		orders[i] = domain.Order{
			ID:                s.newID(),
			OwnerID:           session.OwnerID,
			SessionID:         session.ID,
			ProviderID:        group.ProviderID,
			ProviderType:      group.ProviderType,
			Subtotal:          group.Subtotal,
			TotalAmount:       group.Subtotal,
			PaymentStatus:     domain.PaymentPaid,
			FulfillmentStatus: domain.FulfillmentPending,
			ShippingAddress:   session.ShippingAddress,
			Details:           details,
		}
	}

	reservation, err := s.inventory.GetReservation(ctx, session.ReservationID)
	if err != nil {
		return CheckoutResult{}, s.translate(err)
	}
	commitTxnIDs := make([]string, len(reservation.Lines))
	for i := range commitTxnIDs {
		commitTxnIDs[i] = s.newID()
	}

	result, err := s.orders.CreateFromSession(ctx, repositories.OrderMaterializeRequest{
		SessionID:    session.ID,
		Orders:       orders,
		CommitTxnIDs: commitTxnIDs,
		Now:          now,
	})
	if err != nil {
		return CheckoutResult{}, s.translate(err)
	}

	s.removePurchasedFromCart(ctx, session, now)
	s.publishSettled(ctx, result)

	return CheckoutResult{Session: result.Session, Orders: result.Orders}, nil
}

// removePurchasedFromCart drops the bought lines from the buyer's cart. The
// orders already exist; failure here only leaves stale cart lines behind.
func (s *checkoutService) removePurchasedFromCart(ctx context.Context, session domain.CheckoutSession, now time.Time) {
	refs := make([]domain.ItemRef, 0, len(session.Items))
	for _, item := range session.Items {
		if item.IsSelected {
			refs = append(refs, item.ItemRef)
		}
	}
	if len(refs) == 0 {
		return
	}
	if _, err := s.carts.RemoveItems(ctx, session.OwnerID, refs, now); err != nil {
		s.logger(ctx, "checkout.cart_cleanup_failed", map[string]any{
			"sessionID": session.ID,
			"ownerID":   session.OwnerID,
			"error":     err.Error(),
		})
	}
}

func (s *checkoutService) publishSettled(ctx context.Context, result repositories.OrderMaterializeResult) {
	session := result.Session
	notifications := make([]events.Notification, 0, len(result.Orders)+1)
	notifications = append(notifications, events.Notification{
		Type:       events.TypeSessionPaid,
		OwnerID:    session.OwnerID,
		SessionID:  session.ID,
		OccurredAt: session.UpdatedAt,
		Payload:    map[string]any{"orders": len(result.Orders)},
	})
	for _, order := range result.Orders {
		notifications = append(notifications, events.Notification{
			Type:       events.TypeOrderCreated,
			OwnerID:    order.OwnerID,
			SessionID:  session.ID,
			OrderID:    order.ID,
			OccurredAt: order.CreatedAt,
			Payload: map[string]any{
				"providerId":   order.ProviderID,
				"providerType": string(order.ProviderType),
				"totalAmount":  order.TotalAmount,
			},
		})
	}
	for _, notification := range notifications {
		if _, err := s.events.Publish(ctx, notification); err != nil {
			s.logger(ctx, "checkout.notification_failed", map[string]any{
				"type":      notification.Type,
				"sessionID": notification.SessionID,
				"error":     err.Error(),
			})
		}
	}
}

// loadOwned fetches the session and hides other owners' sessions behind not-found.
func (s *checkoutService) loadOwned(ctx context.Context, ownerID, sessionID string) (domain.CheckoutSession, error) {
	uid := strings.TrimSpace(ownerID)
	sid := strings.TrimSpace(sessionID)
	if uid == "" || sid == "" {
		return domain.CheckoutSession{}, ErrCheckoutInvalidInput
	}
	session, err := s.sessions.FindByID(ctx, sid)
	if err != nil {
		return domain.CheckoutSession{}, s.translate(err)
	}
	if session.OwnerID != uid {
		return domain.CheckoutSession{}, ErrCheckoutSessionNotFound
	}
	return session, nil
}

// expireIfDue transitions an open session whose hold window has passed and
// releases its reservation. The stored state wins on races: if another writer
// already moved the session, the freshest copy is returned.
func (s *checkoutService) expireIfDue(ctx context.Context, session domain.CheckoutSession) domain.CheckoutSession {
	now := s.now()
	if session.Status != domain.SessionOpen || now.Before(session.ExpiresAt) {
		return session
	}

	expired, err := s.sessions.Transition(ctx, repositories.SessionTransitionRequest{
		SessionID: session.ID,
		From:      domain.SessionOpen,
		To:        domain.SessionExpired,
		Now:       now,
	})
	if err != nil {
		if fresh, findErr := s.sessions.FindByID(ctx, session.ID); findErr == nil {
			return fresh
		}
		return session
	}

	s.releaseByID(ctx, session.ReservationID, len(session.Items), now)
	if _, err := s.events.Publish(ctx, events.Notification{
		Type:       events.TypeSessionExpired,
		OwnerID:    session.OwnerID,
		SessionID:  session.ID,
		OccurredAt: now,
	}); err != nil {
		s.logger(ctx, "checkout.notification_failed", map[string]any{
			"type":      events.TypeSessionExpired,
			"sessionID": session.ID,
			"error":     err.Error(),
		})
	}
	return expired
}

func (s *checkoutService) releaseReservation(ctx context.Context, reservation domain.InventoryReservation, now time.Time) {
	s.releaseByID(ctx, reservation.ID, len(reservation.Lines), now)
}

func (s *checkoutService) releaseByID(ctx context.Context, reservationID string, lineCount int, now time.Time) {
	if reservationID == "" {
		return
	}
	txnIDs := make([]string, lineCount)
	for i := range txnIDs {
		txnIDs[i] = s.newID()
	}
	if _, err := s.inventory.Release(ctx, repositories.InventoryReleaseRequest{
		ReservationID: reservationID,
		Now:           now,
		TxnIDs:        txnIDs,
	}); err != nil {
		s.logger(ctx, "checkout.release_failed", map[string]any{
			"reservationID": reservationID,
			"error":         err.Error(),
		})
	}
}

func (s *checkoutService) stateError(status domain.SessionStatus) error {
	if status == domain.SessionExpired {
		return ErrCheckoutSessionExpired
	}
	return ErrCheckoutSessionNotOpen
}

func (s *checkoutService) translate(err error) error {
	if err == nil {
		return nil
	}
	var sessErr *repositories.SessionError
	if errors.As(err, &sessErr) {
		switch sessErr.Code {
		case repositories.SessionErrorNotFound:
			return errors.Join(ErrCheckoutSessionNotFound, err)
		case repositories.SessionErrorInvalidState:
			return errors.Join(ErrCheckoutSessionNotOpen, err)
		}
	}
	var invErr *repositories.InventoryError
	if errors.As(err, &invErr) {
		switch invErr.Code {
		case repositories.InventoryErrorInsufficientStock, repositories.InventoryErrorStockNotFound:
			return errors.Join(ErrCheckoutInsufficientStock, err)
		case repositories.InventoryErrorReservationNotFound, repositories.InventoryErrorInvalidReservationState:
			return errors.Join(ErrCheckoutSessionNotOpen, err)
		}
	}
	var walletErr *repositories.WalletError
	if errors.As(err, &walletErr) && walletErr.Code == repositories.WalletErrorInsufficientBalance {
		return errors.Join(ErrCheckoutInsufficientBalance, err)
	}
	return errors.Join(ErrCheckoutUnavailable, err)
}
