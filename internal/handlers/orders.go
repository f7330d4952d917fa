package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/tthaingoc/EcoFashion-sub009/internal/domain"
	"github.com/tthaingoc/EcoFashion-sub009/internal/platform/httpx"
	"github.com/tthaingoc/EcoFashion-sub009/internal/platform/requestctx"
	"github.com/tthaingoc/EcoFashion-sub009/internal/services"
)

const maxOrderBodySize = 8 * 1024

type orderTransitionRequest struct {
	To string `json:"to"`
}

type refundOrderRequest struct {
	Reason string `json:"reason"`
}

type orderDetailView struct {
	Item       itemRefPayload `json:"item"`
	Quantity   int            `json:"quantity"`
	UnitPrice  int64          `json:"unitPrice"`
	LineStatus string         `json:"lineStatus"`
}

type orderView struct {
	ID                string            `json:"id"`
	OwnerID           string            `json:"ownerId"`
	SessionID         string            `json:"sessionId"`
	ProviderID        string            `json:"providerId"`
	ProviderType      string            `json:"providerType"`
	Subtotal          int64             `json:"subtotal"`
	ShippingFee       int64             `json:"shippingFee"`
	Discount          int64             `json:"discount"`
	TotalAmount       int64             `json:"totalAmount"`
	PaymentStatus     string            `json:"paymentStatus"`
	FulfillmentStatus string            `json:"fulfillmentStatus"`
	ShippingAddress   string            `json:"shippingAddress,omitempty"`
	Details           []orderDetailView `json:"details"`
	CreatedAt         string            `json:"createdAt"`
	UpdatedAt         string            `json:"updatedAt"`
}

// OrderHandlers exposes the settled-order endpoints for buyers and providers.
type OrderHandlers struct {
	orders services.OrderService
}

// NewOrderHandlers constructs a new OrderHandlers instance.
func NewOrderHandlers(orders services.OrderService) *OrderHandlers {
	return &OrderHandlers{orders: orders}
}

// Routes registers the /orders endpoints.
func (h *OrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/", h.listOrders)
	r.Get("/{orderID}", h.getOrder)
	r.Post("/{orderID}/payment", h.advancePayment)
	r.Post("/{orderID}/fulfillment", h.advanceFulfillment)
	r.Post("/{orderID}:refund", h.refundOrder)
}

func (h *OrderHandlers) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ownerID, ok := h.requireOwner(ctx, w)
	if !ok {
		return
	}

	query := r.URL.Query()
	var (
		orders []domain.Order
		err    error
	)
	switch {
	case strings.TrimSpace(query.Get("sessionId")) != "":
		orders, err = h.orders.ListBySession(ctx, strings.TrimSpace(query.Get("sessionId")))
		if err == nil {
			// The session lookup is not owner scoped at the repository; hide
			// other buyers' orders here.
			filtered := orders[:0]
			for _, order := range orders {
				if order.OwnerID == ownerID {
					filtered = append(filtered, order)
				}
			}
			orders = filtered
		}
	case strings.TrimSpace(query.Get("view")) == "provider":
		orders, err = h.orders.ListByProvider(ctx, ownerID)
	default:
		orders, err = h.orders.ListByOwner(ctx, ownerID)
	}
	if err != nil {
		h.writeOrderError(ctx, w, err)
		return
	}

	views := make([]orderView, 0, len(orders))
	for _, order := range orders {
		views = append(views, newOrderView(order))
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"orders": views})
}

func (h *OrderHandlers) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ownerID, ok := h.requireOwner(ctx, w)
	if !ok {
		return
	}

	order, err := h.orders.GetOrder(ctx, services.OrderReadCommand{
		OrderID: chi.URLParam(r, "orderID"),
		OwnerID: ownerID,
	})
	if err != nil {
		h.writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, newOrderView(order))
}

func (h *OrderHandlers) advancePayment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ownerID, ok := h.requireOwner(ctx, w)
	if !ok {
		return
	}

	req, ok := h.readTransition(ctx, w, r)
	if !ok {
		return
	}

	order, err := h.orders.AdvancePayment(ctx, services.PaymentTransitionCommand{
		OrderID: chi.URLParam(r, "orderID"),
		ActorID: ownerID,
		To:      domain.PaymentStatus(req.To),
	})
	if err != nil {
		h.writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, newOrderView(order))
}

func (h *OrderHandlers) advanceFulfillment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ownerID, ok := h.requireOwner(ctx, w)
	if !ok {
		return
	}

	req, ok := h.readTransition(ctx, w, r)
	if !ok {
		return
	}

	order, err := h.orders.AdvanceFulfillment(ctx, services.FulfillmentTransitionCommand{
		OrderID:    chi.URLParam(r, "orderID"),
		ProviderID: ownerID,
		To:         domain.FulfillmentStatus(req.To),
	})
	if err != nil {
		h.writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, newOrderView(order))
}

func (h *OrderHandlers) refundOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ownerID, ok := h.requireOwner(ctx, w)
	if !ok {
		return
	}

	var req refundOrderRequest
	if body, err := readLimitedBody(r, maxOrderBodySize); err == nil {
		if err := json.Unmarshal(body, &req); err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "malformed JSON payload", http.StatusBadRequest))
			return
		}
	} else if !errors.Is(err, errEmptyBody) {
		writeBodyError(ctx, w, err)
		return
	}

	order, err := h.orders.Refund(ctx, services.RefundOrderCommand{
		OrderID: chi.URLParam(r, "orderID"),
		ActorID: ownerID,
		Reason:  strings.TrimSpace(req.Reason),
	})
	if err != nil {
		h.writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, newOrderView(order))
}

func (h *OrderHandlers) readTransition(ctx context.Context, w http.ResponseWriter, r *http.Request) (orderTransitionRequest, bool) {
	var req orderTransitionRequest
	body, err := readLimitedBody(r, maxOrderBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return req, false
	}
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "malformed JSON payload", http.StatusBadRequest))
		return req, false
	}
	if strings.TrimSpace(req.To) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "target status is required", http.StatusBadRequest))
		return req, false
	}
	return req, true
}

func (h *OrderHandlers) requireOwner(ctx context.Context, w http.ResponseWriter) (string, bool) {
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return "", false
	}
	ownerID, ok := requestctx.OwnerID(ctx)
	if !ok {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return "", false
	}
	return ownerID, true
}

func (h *OrderHandlers) writeOrderError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrOrderNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("order_not_found", "order not found", http.StatusNotFound))
	case errors.Is(err, services.ErrOrderInvalidTransition):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_transition", "the requested status change is not allowed", http.StatusConflict))
	case errors.Is(err, services.ErrOrderInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid order input", http.StatusBadRequest))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("order_unavailable", "orders temporarily unavailable", http.StatusServiceUnavailable))
	}
}

func newOrderView(order domain.Order) orderView {
	view := orderView{
		ID:                order.ID,
		OwnerID:           order.OwnerID,
		SessionID:         order.SessionID,
		ProviderID:        order.ProviderID,
		ProviderType:      string(order.ProviderType),
		Subtotal:          order.Subtotal,
		ShippingFee:       order.ShippingFee,
		Discount:          order.Discount,
		TotalAmount:       order.TotalAmount,
		PaymentStatus:     string(order.PaymentStatus),
		FulfillmentStatus: string(order.FulfillmentStatus),
		ShippingAddress:   order.ShippingAddress,
		Details:           make([]orderDetailView, 0, len(order.Details)),
		CreatedAt:         formatTime(order.CreatedAt),
		UpdatedAt:         formatTime(order.UpdatedAt),
	}
	for _, detail := range order.Details {
		view.Details = append(view.Details, orderDetailView{
			Item:       itemRefView(detail.ItemRef),
			Quantity:   detail.Quantity,
			UnitPrice:  detail.UnitPrice,
			LineStatus: string(detail.LineStatus),
		})
	}
	return view
}
