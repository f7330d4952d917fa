package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	domain "github.com/tthaingoc/EcoFashion-sub009/internal/domain"
	"github.com/tthaingoc/EcoFashion-sub009/internal/platform/requestctx"
	"github.com/tthaingoc/EcoFashion-sub009/internal/services"
)

type stubCartService struct {
	getFn    func(ctx context.Context, ownerID string) (domain.Cart, error)
	upsertFn func(ctx context.Context, cmd services.UpsertCartItemCommand) (domain.Cart, error)
	removeFn func(ctx context.Context, cmd services.RemoveCartItemCommand) (domain.Cart, error)
	clearFn  func(ctx context.Context, ownerID string) error
}

func (s *stubCartService) GetOrCreateCart(ctx context.Context, ownerID string) (domain.Cart, error) {
	if s.getFn != nil {
		return s.getFn(ctx, ownerID)
	}
	return domain.Cart{ID: ownerID, OwnerID: ownerID}, nil
}

func (s *stubCartService) UpsertItem(ctx context.Context, cmd services.UpsertCartItemCommand) (domain.Cart, error) {
	if s.upsertFn != nil {
		return s.upsertFn(ctx, cmd)
	}
	return domain.Cart{ID: cmd.OwnerID, OwnerID: cmd.OwnerID}, nil
}

func (s *stubCartService) RemoveItem(ctx context.Context, cmd services.RemoveCartItemCommand) (domain.Cart, error) {
	if s.removeFn != nil {
		return s.removeFn(ctx, cmd)
	}
	return domain.Cart{ID: cmd.OwnerID, OwnerID: cmd.OwnerID}, nil
}

func (s *stubCartService) Clear(ctx context.Context, ownerID string) error {
	if s.clearFn != nil {
		return s.clearFn(ctx, ownerID)
	}
	return nil
}

type stubCheckoutService struct {
	createFn          func(ctx context.Context, cmd services.CreateSessionCommand) (domain.CheckoutSession, error)
	getFn             func(ctx context.Context, cmd services.SessionReadCommand) (domain.CheckoutSession, error)
	listFn            func(ctx context.Context, ownerID string) ([]domain.CheckoutSession, error)
	updateSelectionFn func(ctx context.Context, cmd services.UpdateSelectionCommand) (domain.CheckoutSession, error)
	cancelFn          func(ctx context.Context, cmd services.SessionReadCommand) (domain.CheckoutSession, error)
	payWalletFn       func(ctx context.Context, cmd services.SessionReadCommand) (services.CheckoutResult, error)
	payGatewayFn      func(ctx context.Context, cmd services.GatewayPayCommand) (services.GatewayRedirect, error)
	gatewayReturnFn   func(ctx context.Context, params url.Values) (services.CheckoutResult, error)
}

func (s *stubCheckoutService) CreateSession(ctx context.Context, cmd services.CreateSessionCommand) (domain.CheckoutSession, error) {
	if s.createFn != nil {
		return s.createFn(ctx, cmd)
	}
	return domain.CheckoutSession{ID: "sess-1", OwnerID: cmd.OwnerID, Status: domain.SessionOpen}, nil
}

func (s *stubCheckoutService) GetSession(ctx context.Context, cmd services.SessionReadCommand) (domain.CheckoutSession, error) {
	if s.getFn != nil {
		return s.getFn(ctx, cmd)
	}
	return domain.CheckoutSession{ID: cmd.SessionID, OwnerID: cmd.OwnerID, Status: domain.SessionOpen}, nil
}

func (s *stubCheckoutService) ListSessions(ctx context.Context, ownerID string) ([]domain.CheckoutSession, error) {
	if s.listFn != nil {
		return s.listFn(ctx, ownerID)
	}
	return nil, nil
}

func (s *stubCheckoutService) UpdateSelection(ctx context.Context, cmd services.UpdateSelectionCommand) (domain.CheckoutSession, error) {
	if s.updateSelectionFn != nil {
		return s.updateSelectionFn(ctx, cmd)
	}
	return domain.CheckoutSession{ID: cmd.SessionID, OwnerID: cmd.OwnerID, Status: domain.SessionOpen}, nil
}

func (s *stubCheckoutService) CancelSession(ctx context.Context, cmd services.SessionReadCommand) (domain.CheckoutSession, error) {
	if s.cancelFn != nil {
		return s.cancelFn(ctx, cmd)
	}
	return domain.CheckoutSession{ID: cmd.SessionID, OwnerID: cmd.OwnerID, Status: domain.SessionCancelled}, nil
}

func (s *stubCheckoutService) PayWithWallet(ctx context.Context, cmd services.SessionReadCommand) (services.CheckoutResult, error) {
	if s.payWalletFn != nil {
		return s.payWalletFn(ctx, cmd)
	}
	return services.CheckoutResult{}, nil
}

func (s *stubCheckoutService) PayWithGateway(ctx context.Context, cmd services.GatewayPayCommand) (services.GatewayRedirect, error) {
	if s.payGatewayFn != nil {
		return s.payGatewayFn(ctx, cmd)
	}
	return services.GatewayRedirect{}, nil
}

func (s *stubCheckoutService) HandleGatewayReturn(ctx context.Context, params url.Values) (services.CheckoutResult, error) {
	if s.gatewayReturnFn != nil {
		return s.gatewayReturnFn(ctx, params)
	}
	return services.CheckoutResult{}, nil
}

type stubWalletService struct {
	balanceFn  func(ctx context.Context, ownerID string) (int64, error)
	depositFn  func(ctx context.Context, cmd services.WalletMutationCommand) (domain.WalletTransaction, error)
	withdrawFn func(ctx context.Context, cmd services.WalletMutationCommand) (domain.WalletTransaction, error)
	listFn     func(ctx context.Context, cmd services.WalletHistoryCommand) ([]domain.WalletTransaction, error)
}

func (s *stubWalletService) GetBalance(ctx context.Context, ownerID string) (int64, error) {
	if s.balanceFn != nil {
		return s.balanceFn(ctx, ownerID)
	}
	return 0, nil
}

func (s *stubWalletService) Deposit(ctx context.Context, cmd services.WalletMutationCommand) (domain.WalletTransaction, error) {
	if s.depositFn != nil {
		return s.depositFn(ctx, cmd)
	}
	return domain.WalletTransaction{}, nil
}

func (s *stubWalletService) Withdraw(ctx context.Context, cmd services.WalletMutationCommand) (domain.WalletTransaction, error) {
	if s.withdrawFn != nil {
		return s.withdrawFn(ctx, cmd)
	}
	return domain.WalletTransaction{}, nil
}

func (s *stubWalletService) ListTransactions(ctx context.Context, cmd services.WalletHistoryCommand) ([]domain.WalletTransaction, error) {
	if s.listFn != nil {
		return s.listFn(ctx, cmd)
	}
	return nil, nil
}

type stubOrderService struct {
	getFn                func(ctx context.Context, cmd services.OrderReadCommand) (domain.Order, error)
	listByOwnerFn        func(ctx context.Context, ownerID string) ([]domain.Order, error)
	listByProviderFn     func(ctx context.Context, providerID string) ([]domain.Order, error)
	listBySessionFn      func(ctx context.Context, sessionID string) ([]domain.Order, error)
	advancePaymentFn     func(ctx context.Context, cmd services.PaymentTransitionCommand) (domain.Order, error)
	advanceFulfillmentFn func(ctx context.Context, cmd services.FulfillmentTransitionCommand) (domain.Order, error)
	refundFn             func(ctx context.Context, cmd services.RefundOrderCommand) (domain.Order, error)
}

func (s *stubOrderService) GetOrder(ctx context.Context, cmd services.OrderReadCommand) (domain.Order, error) {
	if s.getFn != nil {
		return s.getFn(ctx, cmd)
	}
	return domain.Order{ID: cmd.OrderID, OwnerID: cmd.OwnerID}, nil
}

func (s *stubOrderService) ListByOwner(ctx context.Context, ownerID string) ([]domain.Order, error) {
	if s.listByOwnerFn != nil {
		return s.listByOwnerFn(ctx, ownerID)
	}
	return nil, nil
}

func (s *stubOrderService) ListByProvider(ctx context.Context, providerID string) ([]domain.Order, error) {
	if s.listByProviderFn != nil {
		return s.listByProviderFn(ctx, providerID)
	}
	return nil, nil
}

func (s *stubOrderService) ListBySession(ctx context.Context, sessionID string) ([]domain.Order, error) {
	if s.listBySessionFn != nil {
		return s.listBySessionFn(ctx, sessionID)
	}
	return nil, nil
}

func (s *stubOrderService) AdvancePayment(ctx context.Context, cmd services.PaymentTransitionCommand) (domain.Order, error) {
	if s.advancePaymentFn != nil {
		return s.advancePaymentFn(ctx, cmd)
	}
	return domain.Order{ID: cmd.OrderID}, nil
}

func (s *stubOrderService) AdvanceFulfillment(ctx context.Context, cmd services.FulfillmentTransitionCommand) (domain.Order, error) {
	if s.advanceFulfillmentFn != nil {
		return s.advanceFulfillmentFn(ctx, cmd)
	}
	return domain.Order{ID: cmd.OrderID}, nil
}

func (s *stubOrderService) Refund(ctx context.Context, cmd services.RefundOrderCommand) (domain.Order, error) {
	if s.refundFn != nil {
		return s.refundFn(ctx, cmd)
	}
	return domain.Order{ID: cmd.OrderID, PaymentStatus: domain.PaymentRefunded}, nil
}

type stubInventoryService struct {
	getStockFn       func(ctx context.Context, ref domain.ItemRef) (domain.InventoryStock, error)
	adjustFn         func(ctx context.Context, cmd services.AdjustStockCommand) (domain.InventoryStock, error)
	listFn           func(ctx context.Context, cmd services.InventoryHistoryCommand) ([]domain.InventoryTransaction, error)
	releaseExpiredFn func(ctx context.Context, limit int) (int, error)
}

func (s *stubInventoryService) GetStock(ctx context.Context, ref domain.ItemRef) (domain.InventoryStock, error) {
	if s.getStockFn != nil {
		return s.getStockFn(ctx, ref)
	}
	return domain.InventoryStock{ItemKey: ref.Key()}, nil
}

func (s *stubInventoryService) AdjustStock(ctx context.Context, cmd services.AdjustStockCommand) (domain.InventoryStock, error) {
	if s.adjustFn != nil {
		return s.adjustFn(ctx, cmd)
	}
	return domain.InventoryStock{ItemKey: cmd.Item.Key()}, nil
}

func (s *stubInventoryService) ListTransactions(ctx context.Context, cmd services.InventoryHistoryCommand) ([]domain.InventoryTransaction, error) {
	if s.listFn != nil {
		return s.listFn(ctx, cmd)
	}
	return nil, nil
}

func (s *stubInventoryService) ReleaseExpired(ctx context.Context, limit int) (int, error) {
	if s.releaseExpiredFn != nil {
		return s.releaseExpiredFn(ctx, limit)
	}
	return 0, nil
}

// serveAs routes the request through a fresh chi router carrying the given
// registrar, with the owner identity already on the context.
func serveAs(t *testing.T, ownerID string, register RouteRegistrar, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	r := chi.NewRouter()
	register(r)
	if ownerID != "" {
		req = req.WithContext(requestctx.WithOwnerID(req.Context(), ownerID))
	}
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func jsonRequest(method, target, body string) *http.Request {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	return req
}
