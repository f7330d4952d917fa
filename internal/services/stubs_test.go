package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	domain "github.com/tthaingoc/EcoFashion-sub009/internal/domain"
	"github.com/tthaingoc/EcoFashion-sub009/internal/platform/events"
	"github.com/tthaingoc/EcoFashion-sub009/internal/repositories"
)

type stubCartRepo struct {
	findFn   func(ctx context.Context, ownerID string) (domain.Cart, error)
	saveFn   func(ctx context.Context, cart domain.Cart) (domain.Cart, error)
	removeFn func(ctx context.Context, ownerID string, refs []domain.ItemRef, now time.Time) (domain.Cart, error)
}

func (s *stubCartRepo) FindByOwner(ctx context.Context, ownerID string) (domain.Cart, error) {
	if s.findFn != nil {
		return s.findFn(ctx, ownerID)
	}
	return domain.Cart{ID: ownerID, OwnerID: ownerID}, nil
}

func (s *stubCartRepo) Save(ctx context.Context, cart domain.Cart) (domain.Cart, error) {
	if s.saveFn != nil {
		return s.saveFn(ctx, cart)
	}
	return cart, nil
}

func (s *stubCartRepo) RemoveItems(ctx context.Context, ownerID string, refs []domain.ItemRef, now time.Time) (domain.Cart, error) {
	if s.removeFn != nil {
		return s.removeFn(ctx, ownerID, refs, now)
	}
	return domain.Cart{ID: ownerID, OwnerID: ownerID}, nil
}

type stubSessionRepo struct {
	insertFn       func(ctx context.Context, session domain.CheckoutSession) error
	findByIDFn     func(ctx context.Context, sessionID string) (domain.CheckoutSession, error)
	findByTxnRefFn func(ctx context.Context, txnRef string) (domain.CheckoutSession, error)
	listByOwnerFn  func(ctx context.Context, ownerID string, filter repositories.SessionListFilter) ([]domain.CheckoutSession, error)
	updateItemsFn  func(ctx context.Context, sessionID string, items []domain.CheckoutSessionItem, now time.Time) (domain.CheckoutSession, error)
	transitionFn   func(ctx context.Context, req repositories.SessionTransitionRequest) (domain.CheckoutSession, error)
}

func (s *stubSessionRepo) Insert(ctx context.Context, session domain.CheckoutSession) error {
	if s.insertFn != nil {
		return s.insertFn(ctx, session)
	}
	return nil
}

func (s *stubSessionRepo) FindByID(ctx context.Context, sessionID string) (domain.CheckoutSession, error) {
	if s.findByIDFn != nil {
		return s.findByIDFn(ctx, sessionID)
	}
	return domain.CheckoutSession{}, repositories.NewSessionError(repositories.SessionErrorNotFound, "not found", nil)
}

func (s *stubSessionRepo) FindByTxnRef(ctx context.Context, txnRef string) (domain.CheckoutSession, error) {
	if s.findByTxnRefFn != nil {
		return s.findByTxnRefFn(ctx, txnRef)
	}
	return domain.CheckoutSession{}, repositories.NewSessionError(repositories.SessionErrorNotFound, "not found", nil)
}

func (s *stubSessionRepo) ListByOwner(ctx context.Context, ownerID string, filter repositories.SessionListFilter) ([]domain.CheckoutSession, error) {
	if s.listByOwnerFn != nil {
		return s.listByOwnerFn(ctx, ownerID, filter)
	}
	return nil, nil
}

func (s *stubSessionRepo) UpdateItems(ctx context.Context, sessionID string, items []domain.CheckoutSessionItem, now time.Time) (domain.CheckoutSession, error) {
	if s.updateItemsFn != nil {
		return s.updateItemsFn(ctx, sessionID, items, now)
	}
	return domain.CheckoutSession{}, errors.New("not implemented")
}

func (s *stubSessionRepo) Transition(ctx context.Context, req repositories.SessionTransitionRequest) (domain.CheckoutSession, error) {
	if s.transitionFn != nil {
		return s.transitionFn(ctx, req)
	}
	return domain.CheckoutSession{}, errors.New("not implemented")
}

type stubInventoryRepo struct {
	getStockFn       func(ctx context.Context, itemKey string) (domain.InventoryStock, error)
	adjustFn         func(ctx context.Context, req repositories.InventoryAdjustRequest) (domain.InventoryStock, error)
	reserveFn        func(ctx context.Context, req repositories.InventoryReserveRequest) (domain.InventoryReservation, error)
	releaseFn        func(ctx context.Context, req repositories.InventoryReleaseRequest) (domain.InventoryReservation, error)
	getReservationFn func(ctx context.Context, reservationID string) (domain.InventoryReservation, error)
	listExpiredFn    func(ctx context.Context, cutoff time.Time, limit int) ([]domain.InventoryReservation, error)
	listTxnsFn       func(ctx context.Context, itemKey string, limit int) ([]domain.InventoryTransaction, error)
}

func (s *stubInventoryRepo) GetStock(ctx context.Context, itemKey string) (domain.InventoryStock, error) {
	if s.getStockFn != nil {
		return s.getStockFn(ctx, itemKey)
	}
	return domain.InventoryStock{}, errors.New("not implemented")
}

func (s *stubInventoryRepo) AdjustStock(ctx context.Context, req repositories.InventoryAdjustRequest) (domain.InventoryStock, error) {
	if s.adjustFn != nil {
		return s.adjustFn(ctx, req)
	}
	return domain.InventoryStock{}, errors.New("not implemented")
}

func (s *stubInventoryRepo) Reserve(ctx context.Context, req repositories.InventoryReserveRequest) (domain.InventoryReservation, error) {
	if s.reserveFn != nil {
		return s.reserveFn(ctx, req)
	}
	return req.Reservation, nil
}

func (s *stubInventoryRepo) Release(ctx context.Context, req repositories.InventoryReleaseRequest) (domain.InventoryReservation, error) {
	if s.releaseFn != nil {
		return s.releaseFn(ctx, req)
	}
	return domain.InventoryReservation{ID: req.ReservationID, Status: domain.ReservationReleased}, nil
}

func (s *stubInventoryRepo) GetReservation(ctx context.Context, reservationID string) (domain.InventoryReservation, error) {
	if s.getReservationFn != nil {
		return s.getReservationFn(ctx, reservationID)
	}
	return domain.InventoryReservation{ID: reservationID, Status: domain.ReservationReserved}, nil
}

func (s *stubInventoryRepo) ListExpiredReservations(ctx context.Context, cutoff time.Time, limit int) ([]domain.InventoryReservation, error) {
	if s.listExpiredFn != nil {
		return s.listExpiredFn(ctx, cutoff, limit)
	}
	return nil, nil
}

func (s *stubInventoryRepo) ListTransactions(ctx context.Context, itemKey string, limit int) ([]domain.InventoryTransaction, error) {
	if s.listTxnsFn != nil {
		return s.listTxnsFn(ctx, itemKey, limit)
	}
	return nil, nil
}

type stubWalletRepo struct {
	balanceFn func(ctx context.Context, ownerID string) (int64, error)
	debitFn   func(ctx context.Context, req repositories.WalletEntryRequest) (domain.WalletTransaction, error)
	creditFn  func(ctx context.Context, req repositories.WalletEntryRequest) (domain.WalletTransaction, error)
	listFn    func(ctx context.Context, ownerID string, limit int) ([]domain.WalletTransaction, error)
	findFn    func(ctx context.Context, txnID string) (domain.WalletTransaction, error)
}

func (s *stubWalletRepo) Balance(ctx context.Context, ownerID string) (int64, error) {
	if s.balanceFn != nil {
		return s.balanceFn(ctx, ownerID)
	}
	return 0, nil
}

func (s *stubWalletRepo) Debit(ctx context.Context, req repositories.WalletEntryRequest) (domain.WalletTransaction, error) {
	if s.debitFn != nil {
		return s.debitFn(ctx, req)
	}
	return domain.WalletTransaction{ID: req.TxnID, WalletOwnerID: req.OwnerID, Amount: req.Amount, Type: req.Type}, nil
}

func (s *stubWalletRepo) Credit(ctx context.Context, req repositories.WalletEntryRequest) (domain.WalletTransaction, error) {
	if s.creditFn != nil {
		return s.creditFn(ctx, req)
	}
	return domain.WalletTransaction{ID: req.TxnID, WalletOwnerID: req.OwnerID, Amount: req.Amount, Type: req.Type}, nil
}

func (s *stubWalletRepo) ListTransactions(ctx context.Context, ownerID string, limit int) ([]domain.WalletTransaction, error) {
	if s.listFn != nil {
		return s.listFn(ctx, ownerID, limit)
	}
	return nil, nil
}

func (s *stubWalletRepo) FindTransaction(ctx context.Context, txnID string) (domain.WalletTransaction, error) {
	if s.findFn != nil {
		return s.findFn(ctx, txnID)
	}
	return domain.WalletTransaction{}, repositories.NewWalletError(repositories.WalletErrorTransactionNotFound, "not found", nil)
}

type stubOrderRepo struct {
	createFn            func(ctx context.Context, req repositories.OrderMaterializeRequest) (repositories.OrderMaterializeResult, error)
	findFn              func(ctx context.Context, orderID string) (domain.Order, error)
	listByOwnerFn       func(ctx context.Context, ownerID string, limit int) ([]domain.Order, error)
	listByProviderFn    func(ctx context.Context, providerID string, providerType domain.ProviderType, limit int) ([]domain.Order, error)
	listBySessionFn     func(ctx context.Context, sessionID string) ([]domain.Order, error)
	updatePaymentFn     func(ctx context.Context, orderID string, to domain.PaymentStatus, now time.Time) (domain.Order, error)
	updateFulfillmentFn func(ctx context.Context, orderID string, to domain.FulfillmentStatus, now time.Time) (domain.Order, error)
}

func (s *stubOrderRepo) CreateFromSession(ctx context.Context, req repositories.OrderMaterializeRequest) (repositories.OrderMaterializeResult, error) {
	if s.createFn != nil {
		return s.createFn(ctx, req)
	}
	return repositories.OrderMaterializeResult{}, errors.New("not implemented")
}

func (s *stubOrderRepo) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	if s.findFn != nil {
		return s.findFn(ctx, orderID)
	}
	return domain.Order{}, repositories.NewOrderError(repositories.OrderErrorNotFound, "not found", nil)
}

func (s *stubOrderRepo) ListByOwner(ctx context.Context, ownerID string, limit int) ([]domain.Order, error) {
	if s.listByOwnerFn != nil {
		return s.listByOwnerFn(ctx, ownerID, limit)
	}
	return nil, nil
}

func (s *stubOrderRepo) ListByProvider(ctx context.Context, providerID string, providerType domain.ProviderType, limit int) ([]domain.Order, error) {
	if s.listByProviderFn != nil {
		return s.listByProviderFn(ctx, providerID, providerType, limit)
	}
	return nil, nil
}

func (s *stubOrderRepo) ListBySession(ctx context.Context, sessionID string) ([]domain.Order, error) {
	if s.listBySessionFn != nil {
		return s.listBySessionFn(ctx, sessionID)
	}
	return nil, nil
}

func (s *stubOrderRepo) UpdatePaymentStatus(ctx context.Context, orderID string, to domain.PaymentStatus, now time.Time) (domain.Order, error) {
	if s.updatePaymentFn != nil {
		return s.updatePaymentFn(ctx, orderID, to, now)
	}
	return domain.Order{}, errors.New("not implemented")
}

func (s *stubOrderRepo) UpdateFulfillmentStatus(ctx context.Context, orderID string, to domain.FulfillmentStatus, now time.Time) (domain.Order, error) {
	if s.updateFulfillmentFn != nil {
		return s.updateFulfillmentFn(ctx, orderID, to, now)
	}
	return domain.Order{}, errors.New("not implemented")
}

type capturePublisher struct {
	published []events.Notification
	err       error
}

func (c *capturePublisher) Publish(_ context.Context, notification events.Notification) (string, error) {
	if c.err != nil {
		return "", c.err
	}
	c.published = append(c.published, notification)
	return "msg-1", nil
}

func sequentialIDs(prefix string) func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("%s-%d", prefix, n)
	}
}
