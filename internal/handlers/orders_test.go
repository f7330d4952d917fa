package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	domain "github.com/tthaingoc/EcoFashion-sub009/internal/domain"
	"github.com/tthaingoc/EcoFashion-sub009/internal/services"
)

func TestOrderHandlersListOrdersProviderView(t *testing.T) {
	h := NewOrderHandlers(&stubOrderService{
		listByProviderFn: func(_ context.Context, providerID string) ([]domain.Order, error) {
			if providerID != "supplier-1" {
				t.Fatalf("expected provider supplier-1, got %q", providerID)
			}
			return []domain.Order{{ID: "order-1", ProviderID: providerID}}, nil
		},
	})

	rr := serveAs(t, "supplier-1", h.Routes, jsonRequest(http.MethodGet, "/?view=provider", ""))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	var body struct {
		Orders []orderView `json:"orders"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if len(body.Orders) != 1 || body.Orders[0].ID != "order-1" {
		t.Fatalf("unexpected orders: %+v", body.Orders)
	}
}

func TestOrderHandlersListBySessionHidesForeignOrders(t *testing.T) {
	h := NewOrderHandlers(&stubOrderService{
		listBySessionFn: func(context.Context, string) ([]domain.Order, error) {
			return []domain.Order{
				{ID: "order-1", OwnerID: "user-1"},
				{ID: "order-2", OwnerID: "someone-else"},
			}, nil
		},
	})

	rr := serveAs(t, "user-1", h.Routes, jsonRequest(http.MethodGet, "/?sessionId=sess-1", ""))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	var body struct {
		Orders []orderView `json:"orders"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if len(body.Orders) != 1 || body.Orders[0].ID != "order-1" {
		t.Fatalf("expected only the caller's order, got %+v", body.Orders)
	}
}

func TestOrderHandlersAdvanceFulfillment(t *testing.T) {
	var captured services.FulfillmentTransitionCommand
	h := NewOrderHandlers(&stubOrderService{
		advanceFulfillmentFn: func(_ context.Context, cmd services.FulfillmentTransitionCommand) (domain.Order, error) {
			captured = cmd
			return domain.Order{ID: cmd.OrderID, FulfillmentStatus: cmd.To}, nil
		},
	})

	rr := serveAs(t, "supplier-1", h.Routes, jsonRequest(http.MethodPost, "/order-1/fulfillment", `{"to":"shipped"}`))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if captured.OrderID != "order-1" || captured.ProviderID != "supplier-1" {
		t.Fatalf("unexpected command: %+v", captured)
	}
	if captured.To != domain.FulfillmentShipped {
		t.Fatalf("expected target shipped, got %s", captured.To)
	}
}

func TestOrderHandlersAdvancePaymentRejectsMissingTarget(t *testing.T) {
	h := NewOrderHandlers(&stubOrderService{})

	rr := serveAs(t, "user-1", h.Routes, jsonRequest(http.MethodPost, "/order-1/payment", `{"to":""}`))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestOrderHandlersMapsInvalidTransition(t *testing.T) {
	h := NewOrderHandlers(&stubOrderService{
		advancePaymentFn: func(context.Context, services.PaymentTransitionCommand) (domain.Order, error) {
			return domain.Order{}, services.ErrOrderInvalidTransition
		},
	})

	rr := serveAs(t, "user-1", h.Routes, jsonRequest(http.MethodPost, "/order-1/payment", `{"to":"paid"}`))

	if rr.Code != http.StatusConflict {
		t.Fatalf("expected status 409, got %d", rr.Code)
	}
}

func TestOrderHandlersRefund(t *testing.T) {
	var captured services.RefundOrderCommand
	h := NewOrderHandlers(&stubOrderService{
		refundFn: func(_ context.Context, cmd services.RefundOrderCommand) (domain.Order, error) {
			captured = cmd
			return domain.Order{ID: cmd.OrderID, PaymentStatus: domain.PaymentRefunded}, nil
		},
	})

	rr := serveAs(t, "user-1", h.Routes, jsonRequest(http.MethodPost, "/order-1:refund", `{"reason":"damaged on arrival"}`))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if captured.OrderID != "order-1" || captured.ActorID != "user-1" || captured.Reason != "damaged on arrival" {
		t.Fatalf("unexpected command: %+v", captured)
	}

	var view orderView
	if err := json.Unmarshal(rr.Body.Bytes(), &view); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if view.PaymentStatus != string(domain.PaymentRefunded) {
		t.Fatalf("expected refunded order, got %+v", view)
	}
}

func TestOrderHandlersGetOrderMapsNotFound(t *testing.T) {
	h := NewOrderHandlers(&stubOrderService{
		getFn: func(context.Context, services.OrderReadCommand) (domain.Order, error) {
			return domain.Order{}, services.ErrOrderNotFound
		},
	})

	rr := serveAs(t, "user-1", h.Routes, jsonRequest(http.MethodGet, "/order-404", ""))

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rr.Code)
	}
}
