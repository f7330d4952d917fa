package services

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/tthaingoc/EcoFashion-sub009/internal/domain"
	"github.com/tthaingoc/EcoFashion-sub009/internal/platform/events"
	"github.com/tthaingoc/EcoFashion-sub009/internal/repositories"
)

func TestOrderServiceGetOrderHidesForeignOwner(t *testing.T) {
	repo := &stubOrderRepo{
		findFn: func(_ context.Context, orderID string) (domain.Order, error) {
			return domain.Order{ID: orderID, OwnerID: "buyer-1"}, nil
		},
	}
	svc, err := NewOrderService(OrderServiceDeps{Repository: repo, Clock: time.Now})
	if err != nil {
		t.Fatalf("new order service: %v", err)
	}

	_, err = svc.GetOrder(context.Background(), OrderReadCommand{OrderID: "order-1", OwnerID: "someone-else"})
	if !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
}

func TestOrderServiceAdvanceFulfillmentPublishesEvent(t *testing.T) {
	now := time.Date(2026, 3, 5, 11, 0, 0, 0, time.UTC)
	publisher := &capturePublisher{}
	repo := &stubOrderRepo{
		updateFulfillmentFn: func(_ context.Context, orderID string, to domain.FulfillmentStatus, updatedAt time.Time) (domain.Order, error) {
			return domain.Order{
				ID:                orderID,
				OwnerID:           "buyer-1",
				ProviderID:        "supplier-1",
				FulfillmentStatus: to,
				UpdatedAt:         updatedAt,
			}, nil
		},
	}
	svc, err := NewOrderService(OrderServiceDeps{Repository: repo, Events: publisher, Clock: fixedClock(now)})
	if err != nil {
		t.Fatalf("new order service: %v", err)
	}

	order, err := svc.AdvanceFulfillment(context.Background(), FulfillmentTransitionCommand{
		OrderID: "order-1",
		To:      domain.FulfillmentConfirmed,
	})
	if err != nil {
		t.Fatalf("advance fulfillment: %v", err)
	}
	if order.FulfillmentStatus != domain.FulfillmentConfirmed {
		t.Fatalf("expected confirmed, got %s", order.FulfillmentStatus)
	}
	if len(publisher.published) != 1 || publisher.published[0].Type != events.TypeOrderFulfillmentMoved {
		t.Fatalf("expected fulfillment notification, got %+v", publisher.published)
	}
}

func TestOrderServiceAdvanceFulfillmentScopedToProvider(t *testing.T) {
	repo := &stubOrderRepo{
		findFn: func(_ context.Context, orderID string) (domain.Order, error) {
			return domain.Order{ID: orderID, ProviderID: "supplier-1"}, nil
		},
	}
	svc, err := NewOrderService(OrderServiceDeps{Repository: repo, Clock: time.Now})
	if err != nil {
		t.Fatalf("new order service: %v", err)
	}

	_, err = svc.AdvanceFulfillment(context.Background(), FulfillmentTransitionCommand{
		OrderID:    "order-1",
		ProviderID: "designer-9",
		To:         domain.FulfillmentConfirmed,
	})
	if !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound for foreign provider, got %v", err)
	}
}

func TestOrderServiceAdvancePaymentMapsInvalidTransition(t *testing.T) {
	repo := &stubOrderRepo{
		updatePaymentFn: func(_ context.Context, orderID string, to domain.PaymentStatus, _ time.Time) (domain.Order, error) {
			return domain.Order{}, repositories.NewOrderError(repositories.OrderErrorInvalidTransition, "refunded -> paid is not allowed", nil)
		},
	}
	svc, err := NewOrderService(OrderServiceDeps{Repository: repo, Clock: time.Now})
	if err != nil {
		t.Fatalf("new order service: %v", err)
	}

	_, err = svc.AdvancePayment(context.Background(), PaymentTransitionCommand{OrderID: "order-1", To: domain.PaymentPaid})
	if !errors.Is(err, ErrOrderInvalidTransition) {
		t.Fatalf("expected ErrOrderInvalidTransition, got %v", err)
	}
}

func TestOrderServiceRefundCreditsWallet(t *testing.T) {
	now := time.Date(2026, 3, 5, 11, 0, 0, 0, time.UTC)
	publisher := &capturePublisher{}
	repo := &stubOrderRepo{
		updatePaymentFn: func(_ context.Context, orderID string, to domain.PaymentStatus, updatedAt time.Time) (domain.Order, error) {
			if to != domain.PaymentRefunded {
				t.Fatalf("expected refunded target, got %s", to)
			}
			return domain.Order{
				ID:            orderID,
				OwnerID:       "buyer-1",
				TotalAmount:   90000,
				PaymentStatus: to,
				UpdatedAt:     updatedAt,
			}, nil
		},
	}
	var credit repositories.WalletEntryRequest
	wallets := &stubWalletRepo{
		creditFn: func(_ context.Context, req repositories.WalletEntryRequest) (domain.WalletTransaction, error) {
			credit = req
			return domain.WalletTransaction{ID: req.TxnID}, nil
		},
	}
	svc, err := NewOrderService(OrderServiceDeps{
		Repository:  repo,
		Wallets:     wallets,
		Events:      publisher,
		Clock:       fixedClock(now),
		IDGenerator: sequentialIDs("refund"),
	})
	if err != nil {
		t.Fatalf("new order service: %v", err)
	}

	order, err := svc.Refund(context.Background(), RefundOrderCommand{OrderID: "order-1", Reason: "damaged"})
	if err != nil {
		t.Fatalf("refund: %v", err)
	}
	if order.PaymentStatus != domain.PaymentRefunded {
		t.Fatalf("expected refunded order, got %s", order.PaymentStatus)
	}
	if credit.Type != domain.WalletRefund || credit.Amount != 90000 || credit.ReferenceID != "order-1" {
		t.Fatalf("unexpected wallet credit %+v", credit)
	}
	if len(publisher.published) != 1 || publisher.published[0].Type != events.TypeOrderPaymentChanged {
		t.Fatalf("expected payment notification, got %+v", publisher.published)
	}
}

func TestOrderServiceRefundUnpaidOrderRejected(t *testing.T) {
	repo := &stubOrderRepo{
		updatePaymentFn: func(_ context.Context, orderID string, to domain.PaymentStatus, _ time.Time) (domain.Order, error) {
			return domain.Order{}, repositories.NewOrderError(repositories.OrderErrorInvalidTransition, "pending -> refunded is not allowed", nil)
		},
	}
	credits := 0
	wallets := &stubWalletRepo{
		creditFn: func(_ context.Context, req repositories.WalletEntryRequest) (domain.WalletTransaction, error) {
			credits++
			return domain.WalletTransaction{}, nil
		},
	}
	svc, err := NewOrderService(OrderServiceDeps{Repository: repo, Wallets: wallets, Clock: time.Now})
	if err != nil {
		t.Fatalf("new order service: %v", err)
	}

	_, err = svc.Refund(context.Background(), RefundOrderCommand{OrderID: "order-1"})
	if !errors.Is(err, ErrOrderInvalidTransition) {
		t.Fatalf("expected ErrOrderInvalidTransition, got %v", err)
	}
	if credits != 0 {
		t.Fatalf("wallet must not be credited when the status move fails")
	}
}

func TestOrderServiceListByProviderQueriesBothKinds(t *testing.T) {
	var kinds []domain.ProviderType
	repo := &stubOrderRepo{
		listByProviderFn: func(_ context.Context, providerID string, providerType domain.ProviderType, _ int) ([]domain.Order, error) {
			kinds = append(kinds, providerType)
			if providerType == domain.ProviderSupplier {
				return []domain.Order{{ID: "order-1", ProviderID: providerID}}, nil
			}
			return nil, nil
		},
	}
	svc, err := NewOrderService(OrderServiceDeps{Repository: repo, Clock: time.Now})
	if err != nil {
		t.Fatalf("new order service: %v", err)
	}

	orders, err := svc.ListByProvider(context.Background(), "supplier-1")
	if err != nil {
		t.Fatalf("list by provider: %v", err)
	}
	if len(orders) != 1 {
		t.Fatalf("expected one order, got %d", len(orders))
	}
	if len(kinds) != 2 {
		t.Fatalf("expected both provider kinds queried, got %v", kinds)
	}
}
