package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	domain "github.com/tthaingoc/EcoFashion-sub009/internal/domain"
	"github.com/tthaingoc/EcoFashion-sub009/internal/platform/httpx"
	"github.com/tthaingoc/EcoFashion-sub009/internal/platform/requestctx"
	"github.com/tthaingoc/EcoFashion-sub009/internal/services"
)

const maxCartBodySize = 16 * 1024

type upsertCartItemRequest struct {
	Item         itemRefPayload `json:"item"`
	ProviderID   string         `json:"providerId"`
	ProviderType string         `json:"providerType"`
	Quantity     int            `json:"quantity"`
	UnitPrice    int64          `json:"unitPrice"`
}

type cartItemView struct {
	Item         itemRefPayload `json:"item"`
	ProviderID   string         `json:"providerId"`
	ProviderType string         `json:"providerType"`
	Quantity     int            `json:"quantity"`
	UnitPrice    int64          `json:"unitPrice"`
	AddedAt      string         `json:"addedAt"`
}

type cartView struct {
	OwnerID   string         `json:"ownerId"`
	Items     []cartItemView `json:"items"`
	UpdatedAt string         `json:"updatedAt,omitempty"`
}

// CartHandlers exposes the buyer cart endpoints.
type CartHandlers struct {
	carts services.CartService
}

// NewCartHandlers constructs a new CartHandlers instance.
func NewCartHandlers(carts services.CartService) *CartHandlers {
	return &CartHandlers{carts: carts}
}

// Routes registers the /cart endpoints.
func (h *CartHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/", h.getCart)
	r.Put("/items", h.upsertItem)
	r.Delete("/items/{itemKind}/{itemID}", h.removeItem)
	r.Delete("/", h.clearCart)
}

func (h *CartHandlers) getCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ownerID, ok := h.requireOwner(ctx, w)
	if !ok {
		return
	}

	cart, err := h.carts.GetOrCreateCart(ctx, ownerID)
	if err != nil {
		h.writeCartError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, newCartView(cart))
}

func (h *CartHandlers) upsertItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ownerID, ok := h.requireOwner(ctx, w)
	if !ok {
		return
	}

	body, err := readLimitedBody(r, maxCartBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}
	var req upsertCartItemRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "malformed JSON payload", http.StatusBadRequest))
		return
	}

	cart, err := h.carts.UpsertItem(ctx, services.UpsertCartItemCommand{
		OwnerID:      ownerID,
		Item:         req.Item.toDomain(),
		ProviderID:   req.ProviderID,
		ProviderType: domain.ProviderType(req.ProviderType),
		Quantity:     req.Quantity,
		UnitPrice:    req.UnitPrice,
	})
	if err != nil {
		h.writeCartError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, newCartView(cart))
}

func (h *CartHandlers) removeItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ownerID, ok := h.requireOwner(ctx, w)
	if !ok {
		return
	}

	ref, ok := itemRefFromPath(chi.URLParam(r, "itemKind"), chi.URLParam(r, "itemID"))
	if !ok {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "item kind must be material or product", http.StatusBadRequest))
		return
	}

	cart, err := h.carts.RemoveItem(ctx, services.RemoveCartItemCommand{OwnerID: ownerID, Item: ref})
	if err != nil {
		h.writeCartError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, newCartView(cart))
}

func (h *CartHandlers) clearCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ownerID, ok := h.requireOwner(ctx, w)
	if !ok {
		return
	}

	if err := h.carts.Clear(ctx, ownerID); err != nil {
		h.writeCartError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CartHandlers) requireOwner(ctx context.Context, w http.ResponseWriter) (string, bool) {
	if h.carts == nil {
		httpx.WriteError(ctx, w, httpx.NewError("cart_service_unavailable", "cart service unavailable", http.StatusServiceUnavailable))
		return "", false
	}
	ownerID, ok := requestctx.OwnerID(ctx)
	if !ok {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return "", false
	}
	return ownerID, true
}

func (h *CartHandlers) writeCartError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrCartItemNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("cart_item_not_found", "item is not in the cart", http.StatusNotFound))
	case errors.Is(err, services.ErrCartTooManyItems):
		httpx.WriteError(ctx, w, httpx.NewError("cart_full", "cart line limit reached", http.StatusConflict))
	case errors.Is(err, services.ErrCartInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid cart input", http.StatusBadRequest))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("cart_unavailable", "cart temporarily unavailable", http.StatusServiceUnavailable))
	}
}

func writeBodyError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errBodyTooLarge):
		httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "request body exceeds limit", http.StatusRequestEntityTooLarge))
	case errors.Is(err, errEmptyBody):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body is required", http.StatusBadRequest))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "unable to read request body", http.StatusBadRequest))
	}
}

func newCartView(cart domain.Cart) cartView {
	view := cartView{
		OwnerID:   cart.OwnerID,
		Items:     make([]cartItemView, 0, len(cart.Items)),
		UpdatedAt: formatTime(cart.UpdatedAt),
	}
	for _, item := range cart.Items {
		view.Items = append(view.Items, cartItemView{
			Item:         itemRefView(item.ItemRef),
			ProviderID:   item.ProviderID,
			ProviderType: string(item.ProviderType),
			Quantity:     item.Quantity,
			UnitPrice:    item.UnitPrice,
			AddedAt:      formatTime(item.AddedAt),
		})
	}
	return view
}
