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

const maxWalletBodySize = 4 * 1024

type walletMutationRequest struct {
	Amount      int64  `json:"amount"`
	ReferenceID string `json:"referenceId"`
}

type walletTransactionView struct {
	ID           string `json:"id"`
	Amount       int64  `json:"amount"`
	BalanceAfter int64  `json:"balanceAfter"`
	Type         string `json:"type"`
	Status       string `json:"status"`
	ReferenceID  string `json:"referenceId,omitempty"`
	Sequence     int64  `json:"sequence"`
	CreatedAt    string `json:"createdAt"`
}

// WalletHandlers exposes the owner wallet endpoints.
type WalletHandlers struct {
	wallets services.WalletService
}

// NewWalletHandlers constructs a new WalletHandlers instance.
func NewWalletHandlers(wallets services.WalletService) *WalletHandlers {
	return &WalletHandlers{wallets: wallets}
}

// Routes registers the /wallet endpoints.
func (h *WalletHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/balance", h.getBalance)
	r.Get("/transactions", h.listTransactions)
	r.Post("/deposit", h.deposit)
	r.Post("/withdraw", h.withdraw)
}

func (h *WalletHandlers) getBalance(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ownerID, ok := h.requireOwner(ctx, w)
	if !ok {
		return
	}

	balance, err := h.wallets.GetBalance(ctx, ownerID)
	if err != nil {
		h.writeWalletError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"ownerId": ownerID, "balance": balance})
}

func (h *WalletHandlers) listTransactions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ownerID, ok := h.requireOwner(ctx, w)
	if !ok {
		return
	}

	limit, err := parseLimitParam(r.URL.Query().Get("limit"))
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	txns, err := h.wallets.ListTransactions(ctx, services.WalletHistoryCommand{OwnerID: ownerID, Limit: limit})
	if err != nil {
		h.writeWalletError(ctx, w, err)
		return
	}
	views := make([]walletTransactionView, 0, len(txns))
	for _, txn := range txns {
		views = append(views, newWalletTransactionView(txn))
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"transactions": views})
}

func (h *WalletHandlers) deposit(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, false)
}

func (h *WalletHandlers) withdraw(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, true)
}

func (h *WalletHandlers) mutate(w http.ResponseWriter, r *http.Request, withdraw bool) {
	ctx := r.Context()
	ownerID, ok := h.requireOwner(ctx, w)
	if !ok {
		return
	}

	body, err := readLimitedBody(r, maxWalletBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}
	var req walletMutationRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "malformed JSON payload", http.StatusBadRequest))
		return
	}

	op := h.wallets.Deposit
	if withdraw {
		op = h.wallets.Withdraw
	}
	txn, err := op(ctx, services.WalletMutationCommand{
		OwnerID:     ownerID,
		Amount:      req.Amount,
		ReferenceID: strings.TrimSpace(req.ReferenceID),
	})
	if err != nil {
		h.writeWalletError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, newWalletTransactionView(txn))
}

func (h *WalletHandlers) requireOwner(ctx context.Context, w http.ResponseWriter) (string, bool) {
	if h.wallets == nil {
		httpx.WriteError(ctx, w, httpx.NewError("wallet_service_unavailable", "wallet service unavailable", http.StatusServiceUnavailable))
		return "", false
	}
	ownerID, ok := requestctx.OwnerID(ctx)
	if !ok {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return "", false
	}
	return ownerID, true
}

func (h *WalletHandlers) writeWalletError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrWalletInsufficientBalance):
		httpx.WriteError(ctx, w, httpx.NewError("insufficient_balance", "wallet balance is too low", http.StatusPaymentRequired))
	case errors.Is(err, services.ErrWalletInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid wallet input", http.StatusBadRequest))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("wallet_unavailable", "wallet temporarily unavailable", http.StatusServiceUnavailable))
	}
}

func newWalletTransactionView(txn domain.WalletTransaction) walletTransactionView {
	return walletTransactionView{
		ID:           txn.ID,
		Amount:       txn.Amount,
		BalanceAfter: txn.BalanceAfter,
		Type:         string(txn.Type),
		Status:       string(txn.Status),
		ReferenceID:  txn.ReferenceID,
		Sequence:     txn.Sequence,
		CreatedAt:    formatTime(txn.CreatedAt),
	}
}
