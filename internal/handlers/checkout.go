package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	domain "github.com/tthaingoc/EcoFashion-sub009/internal/domain"
	"github.com/tthaingoc/EcoFashion-sub009/internal/payments"
	"github.com/tthaingoc/EcoFashion-sub009/internal/platform/httpx"
	"github.com/tthaingoc/EcoFashion-sub009/internal/platform/requestctx"
	"github.com/tthaingoc/EcoFashion-sub009/internal/services"
)

const maxCheckoutBodySize = 32 * 1024

type createSessionRequest struct {
	SelectedItems   []itemRefPayload `json:"selectedItems"`
	ShippingAddress string           `json:"shippingAddress"`
}

type updateSelectionRequest struct {
	SelectedItems []itemRefPayload `json:"selectedItems"`
}

type gatewayPayRequest struct {
	BankCode string `json:"bankCode"`
}

type sessionItemView struct {
	Item         itemRefPayload `json:"item"`
	ProviderID   string         `json:"providerId"`
	ProviderType string         `json:"providerType"`
	Quantity     int            `json:"quantity"`
	UnitPrice    int64          `json:"unitPrice"`
	IsSelected   bool           `json:"isSelected"`
}

type sessionView struct {
	ID              string            `json:"id"`
	OwnerID         string            `json:"ownerId"`
	Status          string            `json:"status"`
	TxnRef          string            `json:"txnRef"`
	ShippingAddress string            `json:"shippingAddress,omitempty"`
	Items           []sessionItemView `json:"items"`
	SelectedTotal   int64             `json:"selectedTotal"`
	CreatedAt       string            `json:"createdAt"`
	ExpiresAt       string            `json:"expiresAt"`
	PaidAt          string            `json:"paidAt,omitempty"`
}

type checkoutResultView struct {
	Session sessionView `json:"session"`
	Orders  []orderView `json:"orders"`
}

type gatewayRedirectView struct {
	SessionID  string `json:"sessionId"`
	TxnRef     string `json:"txnRef"`
	RedirectTo string `json:"redirectTo"`
}

// CheckoutHandlers exposes the checkout session lifecycle endpoints.
type CheckoutHandlers struct {
	checkout services.CheckoutService
}

// NewCheckoutHandlers constructs a new CheckoutHandlers instance.
func NewCheckoutHandlers(checkout services.CheckoutService) *CheckoutHandlers {
	return &CheckoutHandlers{checkout: checkout}
}

// Routes registers the authenticated /checkout endpoints.
func (h *CheckoutHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/sessions", h.createSession)
	r.Get("/sessions", h.listSessions)
	r.Get("/sessions/{sessionID}", h.getSession)
	r.Put("/sessions/{sessionID}/selection", h.updateSelection)
	r.Post("/sessions/{sessionID}:cancel", h.cancelSession)
	r.Post("/sessions/{sessionID}/pay/wallet", h.payWithWallet)
	r.Post("/sessions/{sessionID}/pay/gateway", h.payWithGateway)
}

// GatewayReturnRoutes registers the unauthenticated gateway callback. The
// request is trusted on its HMAC signature alone, never on a bearer token.
func (h *CheckoutHandlers) GatewayReturnRoutes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/vnpay/return", h.gatewayReturn)
}

func (h *CheckoutHandlers) createSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ownerID, ok := h.requireOwner(ctx, w)
	if !ok {
		return
	}

	body, err := readLimitedBody(r, maxCheckoutBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}
	var req createSessionRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "malformed JSON payload", http.StatusBadRequest))
		return
	}

	session, err := h.checkout.CreateSession(ctx, services.CreateSessionCommand{
		OwnerID:         ownerID,
		SelectedItems:   itemRefsFromPayload(req.SelectedItems),
		ShippingAddress: strings.TrimSpace(req.ShippingAddress),
	})
	if err != nil {
		h.writeCheckoutError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, newSessionView(session))
}

func (h *CheckoutHandlers) listSessions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ownerID, ok := h.requireOwner(ctx, w)
	if !ok {
		return
	}

	sessions, err := h.checkout.ListSessions(ctx, ownerID)
	if err != nil {
		h.writeCheckoutError(ctx, w, err)
		return
	}
	views := make([]sessionView, 0, len(sessions))
	for _, session := range sessions {
		views = append(views, newSessionView(session))
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"sessions": views})
}

func (h *CheckoutHandlers) getSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ownerID, ok := h.requireOwner(ctx, w)
	if !ok {
		return
	}

	session, err := h.checkout.GetSession(ctx, services.SessionReadCommand{
		OwnerID:   ownerID,
		SessionID: chi.URLParam(r, "sessionID"),
	})
	if err != nil {
		h.writeCheckoutError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, newSessionView(session))
}

func (h *CheckoutHandlers) updateSelection(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ownerID, ok := h.requireOwner(ctx, w)
	if !ok {
		return
	}

	body, err := readLimitedBody(r, maxCheckoutBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}
	var req updateSelectionRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "malformed JSON payload", http.StatusBadRequest))
		return
	}

	session, err := h.checkout.UpdateSelection(ctx, services.UpdateSelectionCommand{
		OwnerID:       ownerID,
		SessionID:     chi.URLParam(r, "sessionID"),
		SelectedItems: itemRefsFromPayload(req.SelectedItems),
	})
	if err != nil {
		h.writeCheckoutError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, newSessionView(session))
}

func (h *CheckoutHandlers) cancelSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ownerID, ok := h.requireOwner(ctx, w)
	if !ok {
		return
	}

	session, err := h.checkout.CancelSession(ctx, services.SessionReadCommand{
		OwnerID:   ownerID,
		SessionID: chi.URLParam(r, "sessionID"),
	})
	if err != nil {
		h.writeCheckoutError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, newSessionView(session))
}

func (h *CheckoutHandlers) payWithWallet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ownerID, ok := h.requireOwner(ctx, w)
	if !ok {
		return
	}

	result, err := h.checkout.PayWithWallet(ctx, services.SessionReadCommand{
		OwnerID:   ownerID,
		SessionID: chi.URLParam(r, "sessionID"),
	})
	if err != nil {
		h.writeCheckoutError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, newCheckoutResultView(result))
}

func (h *CheckoutHandlers) payWithGateway(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ownerID, ok := h.requireOwner(ctx, w)
	if !ok {
		return
	}

	var req gatewayPayRequest
	if body, err := readLimitedBody(r, maxCheckoutBodySize); err == nil {
		if err := json.Unmarshal(body, &req); err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "malformed JSON payload", http.StatusBadRequest))
			return
		}
	} else if !errors.Is(err, errEmptyBody) {
		writeBodyError(ctx, w, err)
		return
	}

	redirect, err := h.checkout.PayWithGateway(ctx, services.GatewayPayCommand{
		OwnerID:   ownerID,
		SessionID: chi.URLParam(r, "sessionID"),
		ClientIP:  clientIP(r),
		BankCode:  strings.TrimSpace(req.BankCode),
	})
	if err != nil {
		h.writeCheckoutError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, gatewayRedirectView{
		SessionID:  redirect.SessionID,
		TxnRef:     redirect.TxnRef,
		RedirectTo: redirect.RedirectTo,
	})
}

func (h *CheckoutHandlers) gatewayReturn(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.checkout == nil {
		httpx.WriteError(ctx, w, httpx.NewError("checkout_service_unavailable", "checkout service unavailable", http.StatusServiceUnavailable))
		return
	}

	result, err := h.checkout.HandleGatewayReturn(ctx, r.URL.Query())
	if err != nil {
		switch {
		case errors.Is(err, payments.ErrSignatureInvalid):
			requestctx.Logger(ctx).Warn("gateway return rejected: signature mismatch",
				zap.String("remoteAddr", r.RemoteAddr))
			httpx.WriteError(ctx, w, httpx.NewError("invalid_signature", "gateway signature verification failed", http.StatusBadRequest))
		case errors.Is(err, services.ErrCheckoutPaymentDeclined):
			writeJSONResponse(w, http.StatusPaymentRequired, map[string]any{
				"error":   "payment_declined",
				"message": "the gateway declined the payment",
				"session": newSessionView(result.Session),
			})
		case errors.Is(err, services.ErrCheckoutAmountMismatch):
			httpx.WriteError(ctx, w, httpx.NewError("amount_mismatch", "gateway amount does not match the session total", http.StatusConflict))
		default:
			h.writeCheckoutError(ctx, w, err)
		}
		return
	}
	writeJSONResponse(w, http.StatusOK, newCheckoutResultView(result))
}

func (h *CheckoutHandlers) requireOwner(ctx context.Context, w http.ResponseWriter) (string, bool) {
	if h.checkout == nil {
		httpx.WriteError(ctx, w, httpx.NewError("checkout_service_unavailable", "checkout service unavailable", http.StatusServiceUnavailable))
		return "", false
	}
	ownerID, ok := requestctx.OwnerID(ctx)
	if !ok {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return "", false
	}
	return ownerID, true
}

func (h *CheckoutHandlers) writeCheckoutError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrCheckoutSessionNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("session_not_found", "checkout session not found", http.StatusNotFound))
	case errors.Is(err, services.ErrCheckoutSessionExpired):
		httpx.WriteError(ctx, w, httpx.NewError("session_expired", "checkout session has expired", http.StatusGone))
	case errors.Is(err, services.ErrCheckoutSessionNotOpen):
		httpx.WriteError(ctx, w, httpx.NewError("session_not_open", "checkout session is no longer open", http.StatusConflict))
	case errors.Is(err, services.ErrCheckoutInsufficientStock):
		httpx.WriteError(ctx, w, httpx.NewError("insufficient_stock", "not enough stock to hold the selection", http.StatusConflict))
	case errors.Is(err, services.ErrCheckoutInsufficientBalance):
		httpx.WriteError(ctx, w, httpx.NewError("insufficient_balance", "wallet balance does not cover the total", http.StatusPaymentRequired))
	case errors.Is(err, services.ErrCheckoutPaymentDeclined):
		httpx.WriteError(ctx, w, httpx.NewError("payment_declined", "the gateway declined the payment", http.StatusPaymentRequired))
	case errors.Is(err, services.ErrCheckoutAmountMismatch):
		httpx.WriteError(ctx, w, httpx.NewError("amount_mismatch", "gateway amount does not match the session total", http.StatusConflict))
	case errors.Is(err, services.ErrCheckoutGatewayUnreachable):
		httpx.WriteError(ctx, w, httpx.NewError("gateway_unreachable", "payment gateway unreachable", http.StatusBadGateway))
	case errors.Is(err, services.ErrCheckoutInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid checkout input", http.StatusBadRequest))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("checkout_unavailable", "checkout temporarily unavailable", http.StatusServiceUnavailable))
	}
}

func itemRefsFromPayload(payloads []itemRefPayload) []domain.ItemRef {
	if len(payloads) == 0 {
		return nil
	}
	refs := make([]domain.ItemRef, 0, len(payloads))
	for _, p := range payloads {
		refs = append(refs, p.toDomain())
	}
	return refs
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return strings.TrimSpace(r.RemoteAddr)
	}
	return host
}

func newSessionView(session domain.CheckoutSession) sessionView {
	view := sessionView{
		ID:              session.ID,
		OwnerID:         session.OwnerID,
		Status:          string(session.Status),
		TxnRef:          session.TxnRef,
		ShippingAddress: session.ShippingAddress,
		Items:           make([]sessionItemView, 0, len(session.Items)),
		SelectedTotal:   session.SelectedTotal(),
		CreatedAt:       formatTime(session.CreatedAt),
		ExpiresAt:       formatTime(session.ExpiresAt),
		PaidAt:          formatTimePtr(session.PaidAt),
	}
	for _, item := range session.Items {
		view.Items = append(view.Items, sessionItemView{
			Item:         itemRefView(item.ItemRef),
			ProviderID:   item.ProviderID,
			ProviderType: string(item.ProviderType),
			Quantity:     item.Quantity,
			UnitPrice:    item.UnitPrice,
			IsSelected:   item.IsSelected,
		})
	}
	return view
}

func newCheckoutResultView(result services.CheckoutResult) checkoutResultView {
	view := checkoutResultView{
		Session: newSessionView(result.Session),
		Orders:  make([]orderView, 0, len(result.Orders)),
	}
	for _, order := range result.Orders {
		view.Orders = append(view.Orders, newOrderView(order))
	}
	return view
}
