package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/tthaingoc/EcoFashion-sub009/internal/domain"
	"github.com/tthaingoc/EcoFashion-sub009/internal/platform/events"
	"github.com/tthaingoc/EcoFashion-sub009/internal/repositories"
)

var (
	errOrderRepositoryRequired = errors.New("order service: repository is required")
	errOrderClockRequired      = errors.New("order service: clock is required")
)

// ErrOrderInvalidInput indicates the caller supplied invalid input.
var ErrOrderInvalidInput = errors.New("order service: invalid input")

// ErrOrderUnavailable indicates the order backend cannot fulfil the request.
var ErrOrderUnavailable = errors.New("order service: unavailable")

// ErrOrderNotFound indicates the order does not exist or is not visible to the caller.
var ErrOrderNotFound = errors.New("order service: not found")

// ErrOrderInvalidTransition indicates the requested status move is not allowed.
var ErrOrderInvalidTransition = errors.New("order service: invalid transition")

// OrderServiceDeps wires order persistence, the wallet ledger used for
// refunds, and the notification pipeline.
type OrderServiceDeps struct {
	Repository  repositories.OrderRepository
	Wallets     repositories.WalletRepository
	Events      events.Publisher
	Clock       func() time.Time
	IDGenerator func() string
	Logger      func(context.Context, string, map[string]any)
}

type orderService struct {
	repo    repositories.OrderRepository
	wallets repositories.WalletRepository
	events  events.Publisher
	now     func() time.Time
	newID   func() string
	logger  func(context.Context, string, map[string]any)
}

// NewOrderService constructs an OrderService enforcing dependency validation.
func NewOrderService(deps OrderServiceDeps) (OrderService, error) {
	if deps.Repository == nil {
		return nil, errOrderRepositoryRequired
	}
	if deps.Clock == nil {
		return nil, errOrderClockRequired
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

	return &orderService{
		repo:    deps.Repository,
		wallets: deps.Wallets,
		events:  publisher,
		now:     func() time.Time { return deps.Clock().UTC() },
		newID:   newID,
		logger:  logger,
	}, nil
}

// GetOrder fetches one order. When an owner is given, other buyers' orders
// stay hidden behind not-found.
func (s *orderService) GetOrder(ctx context.Context, cmd OrderReadCommand) (Order, error) {
	if s == nil || s.repo == nil {
		return Order{}, ErrOrderUnavailable
	}
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return Order{}, ErrOrderInvalidInput
	}

	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return Order{}, s.translate(err)
	}
	if uid := strings.TrimSpace(cmd.OwnerID); uid != "" && order.OwnerID != uid {
		return Order{}, ErrOrderNotFound
	}
	return order, nil
}

// ListByOwner returns the buyer's orders, newest first.
func (s *orderService) ListByOwner(ctx context.Context, ownerID string) ([]Order, error) {
	if s == nil || s.repo == nil {
		return nil, ErrOrderUnavailable
	}
	uid := strings.TrimSpace(ownerID)
	if uid == "" {
		return nil, ErrOrderInvalidInput
	}
	orders, err := s.repo.ListByOwner(ctx, uid, 0)
	if err != nil {
		return nil, s.translate(err)
	}
	return orders, nil
}

// ListByProvider returns the seller's incoming orders across both provider kinds.
func (s *orderService) ListByProvider(ctx context.Context, providerID string) ([]Order, error) {
	if s == nil || s.repo == nil {
		return nil, ErrOrderUnavailable
	}
	pid := strings.TrimSpace(providerID)
	if pid == "" {
		return nil, ErrOrderInvalidInput
	}

	var orders []Order
	for _, kind := range []domain.ProviderType{domain.ProviderSupplier, domain.ProviderDesigner} {
		batch, err := s.repo.ListByProvider(ctx, pid, kind, 0)
		if err != nil {
			return nil, s.translate(err)
		}
		orders = append(orders, batch...)
	}
	return orders, nil
}

// ListBySession returns every order created from one checkout session.
func (s *orderService) ListBySession(ctx context.Context, sessionID string) ([]Order, error) {
	if s == nil || s.repo == nil {
		return nil, ErrOrderUnavailable
	}
	sid := strings.TrimSpace(sessionID)
	if sid == "" {
		return nil, ErrOrderInvalidInput
	}
	orders, err := s.repo.ListBySession(ctx, sid)
	if err != nil {
		return nil, s.translate(err)
	}
	return orders, nil
}

// AdvancePayment applies a guarded payment status move.
func (s *orderService) AdvancePayment(ctx context.Context, cmd PaymentTransitionCommand) (Order, error) {
	if s == nil || s.repo == nil {
		return Order{}, ErrOrderUnavailable
	}
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" || cmd.To == "" {
		return Order{}, ErrOrderInvalidInput
	}

	order, err := s.repo.UpdatePaymentStatus(ctx, orderID, cmd.To, s.now())
	if err != nil {
		return Order{}, s.translate(err)
	}
	s.publish(ctx, events.TypeOrderPaymentChanged, order, map[string]any{
		"paymentStatus": string(order.PaymentStatus),
		"actorId":       strings.TrimSpace(cmd.ActorID),
	})
	return order, nil
}

// AdvanceFulfillment applies a guarded fulfillment status move. When a
// provider is given, only that provider's order may be moved.
func (s *orderService) AdvanceFulfillment(ctx context.Context, cmd FulfillmentTransitionCommand) (Order, error) {
	if s == nil || s.repo == nil {
		return Order{}, ErrOrderUnavailable
	}
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" || cmd.To == "" {
		return Order{}, ErrOrderInvalidInput
	}

	if pid := strings.TrimSpace(cmd.ProviderID); pid != "" {
		order, err := s.repo.FindByID(ctx, orderID)
		if err != nil {
			return Order{}, s.translate(err)
		}
		if order.ProviderID != pid {
			return Order{}, ErrOrderNotFound
		}
	}

	order, err := s.repo.UpdateFulfillmentStatus(ctx, orderID, cmd.To, s.now())
	if err != nil {
		return Order{}, s.translate(err)
	}
	s.publish(ctx, events.TypeOrderFulfillmentMoved, order, map[string]any{
		"fulfillmentStatus": string(order.FulfillmentStatus),
	})
	return order, nil
}

// Refund moves a paid order to refunded and credits the buyer's wallet with
// the order total. The payment move happens first so a wallet failure can be
// retried through the ledger without double-refunding the status.
func (s *orderService) Refund(ctx context.Context, cmd RefundOrderCommand) (Order, error) {
	if s == nil || s.repo == nil {
		return Order{}, ErrOrderUnavailable
	}
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return Order{}, ErrOrderInvalidInput
	}

	now := s.now()
	order, err := s.repo.UpdatePaymentStatus(ctx, orderID, domain.PaymentRefunded, now)
	if err != nil {
		return Order{}, s.translate(err)
	}

	if s.wallets != nil && order.TotalAmount > 0 {
		if _, err := s.wallets.Credit(ctx, repositories.WalletEntryRequest{
			TxnID:       s.newID(),
			OwnerID:     order.OwnerID,
			Amount:      order.TotalAmount,
			Type:        domain.WalletRefund,
			ReferenceID: order.ID,
			Now:         now,
		}); err != nil {
			s.logger(ctx, "order.refund_credit_failed", map[string]any{
				"orderID": order.ID,
				"ownerID": order.OwnerID,
				"amount":  order.TotalAmount,
				"error":   err.Error(),
			})
			return order, errors.Join(ErrOrderUnavailable, err)
		}
	}

	s.publish(ctx, events.TypeOrderPaymentChanged, order, map[string]any{
		"paymentStatus": string(order.PaymentStatus),
		"reason":        strings.TrimSpace(cmd.Reason),
		"actorId":       strings.TrimSpace(cmd.ActorID),
	})
	return order, nil
}

func (s *orderService) publish(ctx context.Context, eventType string, order Order, payload map[string]any) {
	if _, err := s.events.Publish(ctx, events.Notification{
		Type:       eventType,
		OwnerID:    order.OwnerID,
		SessionID:  order.SessionID,
		OrderID:    order.ID,
		OccurredAt: order.UpdatedAt,
		Payload:    payload,
	}); err != nil {
		s.logger(ctx, "order.notification_failed", map[string]any{
			"type":    eventType,
			"orderID": order.ID,
			"error":   err.Error(),
		})
	}
}

func (s *orderService) translate(err error) error {
	if err == nil {
		return nil
	}
	var orderErr *repositories.OrderError
	if errors.As(err, &orderErr) {
		switch orderErr.Code {
		case repositories.OrderErrorNotFound:
			return errors.Join(ErrOrderNotFound, err)
		case repositories.OrderErrorInvalidTransition:
			return errors.Join(ErrOrderInvalidTransition, err)
		}
	}
	return errors.Join(ErrOrderUnavailable, err)
}
