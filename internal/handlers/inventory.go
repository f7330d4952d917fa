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

const maxInventoryBodySize = 4 * 1024

type adjustStockRequest struct {
	Item   itemRefPayload `json:"item"`
	Delta  int64          `json:"delta"`
	Reason string         `json:"reason"`
}

type releaseExpiredRequest struct {
	Limit int `json:"limit"`
}

type stockView struct {
	ItemKey   string `json:"itemKey"`
	OnHand    int    `json:"onHand"`
	Reserved  int    `json:"reserved"`
	Available int    `json:"available"`
	UpdatedAt string `json:"updatedAt"`
}

type inventoryTransactionView struct {
	ID            string `json:"id"`
	ItemKey       string `json:"itemKey"`
	QuantityDelta int    `json:"quantityDelta"`
	BeforeQty     int    `json:"beforeQty"`
	AfterQty      int    `json:"afterQty"`
	Type          string `json:"type"`
	ReservationID string `json:"reservationId,omitempty"`
	CreatedAt     string `json:"createdAt"`
}

// InventoryHandlers exposes stock reads and administrative stock operations.
type InventoryHandlers struct {
	inventory services.InventoryService
}

// NewInventoryHandlers constructs a new InventoryHandlers instance.
func NewInventoryHandlers(inventory services.InventoryService) *InventoryHandlers {
	return &InventoryHandlers{inventory: inventory}
}

// Routes registers the /inventory endpoints.
func (h *InventoryHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/stock/{itemKind}/{itemID}", h.getStock)
	r.Get("/transactions/{itemKind}/{itemID}", h.listTransactions)
	r.Post("/adjust", h.adjustStock)
	r.Post("/reservations:release-expired", h.releaseExpired)
}

func (h *InventoryHandlers) getStock(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.ready(ctx, w) {
		return
	}

	ref, ok := itemRefFromPath(chi.URLParam(r, "itemKind"), chi.URLParam(r, "itemID"))
	if !ok {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "item kind must be material or product", http.StatusBadRequest))
		return
	}

	stock, err := h.inventory.GetStock(ctx, ref)
	if err != nil {
		h.writeInventoryError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, newStockView(stock))
}

func (h *InventoryHandlers) listTransactions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.ready(ctx, w) {
		return
	}

	ref, ok := itemRefFromPath(chi.URLParam(r, "itemKind"), chi.URLParam(r, "itemID"))
	if !ok {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "item kind must be material or product", http.StatusBadRequest))
		return
	}
	limit, err := parseLimitParam(r.URL.Query().Get("limit"))
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	txns, err := h.inventory.ListTransactions(ctx, services.InventoryHistoryCommand{Item: ref, Limit: limit})
	if err != nil {
		h.writeInventoryError(ctx, w, err)
		return
	}
	views := make([]inventoryTransactionView, 0, len(txns))
	for _, txn := range txns {
		views = append(views, newInventoryTransactionView(txn))
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"transactions": views})
}

func (h *InventoryHandlers) adjustStock(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.ready(ctx, w) {
		return
	}

	body, err := readLimitedBody(r, maxInventoryBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}
	var req adjustStockRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "malformed JSON payload", http.StatusBadRequest))
		return
	}

	stock, err := h.inventory.AdjustStock(ctx, services.AdjustStockCommand{
		Item:   req.Item.toDomain(),
		Delta:  req.Delta,
		Reason: strings.TrimSpace(req.Reason),
	})
	if err != nil {
		h.writeInventoryError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, newStockView(stock))
}

func (h *InventoryHandlers) releaseExpired(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.ready(ctx, w) {
		return
	}

	var req releaseExpiredRequest
	if body, err := readLimitedBody(r, maxInventoryBodySize); err == nil {
		if err := json.Unmarshal(body, &req); err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "malformed JSON payload", http.StatusBadRequest))
			return
		}
	} else if !errors.Is(err, errEmptyBody) {
		writeBodyError(ctx, w, err)
		return
	}

	released, err := h.inventory.ReleaseExpired(ctx, req.Limit)
	if err != nil {
		h.writeInventoryError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"released": released})
}

func (h *InventoryHandlers) ready(ctx context.Context, w http.ResponseWriter) bool {
	if h.inventory == nil {
		httpx.WriteError(ctx, w, httpx.NewError("inventory_service_unavailable", "inventory service unavailable", http.StatusServiceUnavailable))
		return false
	}
	if _, ok := requestctx.OwnerID(ctx); !ok {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return false
	}
	return true
}

func (h *InventoryHandlers) writeInventoryError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrInventoryStockNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("stock_not_found", "no stock record for item", http.StatusNotFound))
	case errors.Is(err, services.ErrInventoryInsufficientStock):
		httpx.WriteError(ctx, w, httpx.NewError("insufficient_stock", "adjustment would drive stock negative", http.StatusConflict))
	case errors.Is(err, services.ErrInventoryInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid inventory input", http.StatusBadRequest))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("inventory_unavailable", "inventory temporarily unavailable", http.StatusServiceUnavailable))
	}
}

func newStockView(stock domain.InventoryStock) stockView {
	return stockView{
		ItemKey:   stock.ItemKey,
		OnHand:    stock.OnHand,
		Reserved:  stock.Reserved,
		Available: stock.Available,
		UpdatedAt: formatTime(stock.UpdatedAt),
	}
}

func newInventoryTransactionView(txn domain.InventoryTransaction) inventoryTransactionView {
	return inventoryTransactionView{
		ID:            txn.ID,
		ItemKey:       txn.ItemKey,
		QuantityDelta: txn.QuantityDelta,
		BeforeQty:     txn.BeforeQty,
		AfterQty:      txn.AfterQty,
		Type:          string(txn.Type),
		ReservationID: txn.ReservationID,
		CreatedAt:     formatTime(txn.CreatedAt),
	}
}
