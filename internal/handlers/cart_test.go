package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	domain "github.com/tthaingoc/EcoFashion-sub009/internal/domain"
	"github.com/tthaingoc/EcoFashion-sub009/internal/services"
)

func TestCartHandlersGetCartRequiresIdentity(t *testing.T) {
	h := NewCartHandlers(&stubCartService{})

	rr := serveAs(t, "", h.Routes, jsonRequest(http.MethodGet, "/", ""))

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rr.Code)
	}
}

func TestCartHandlersUpsertItem(t *testing.T) {
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	var captured services.UpsertCartItemCommand
	h := NewCartHandlers(&stubCartService{
		upsertFn: func(_ context.Context, cmd services.UpsertCartItemCommand) (domain.Cart, error) {
			captured = cmd
			return domain.Cart{
				ID:      cmd.OwnerID,
				OwnerID: cmd.OwnerID,
				Items: []domain.CartItem{{
					ItemRef:      cmd.Item,
					ProviderID:   cmd.ProviderID,
					ProviderType: cmd.ProviderType,
					Quantity:     cmd.Quantity,
					UnitPrice:    cmd.UnitPrice,
					AddedAt:      now,
				}},
				UpdatedAt: now,
			}, nil
		},
	})

	body := `{"item":{"materialId":"mat-1"},"providerId":"supplier-1","providerType":"supplier","quantity":3,"unitPrice":15000}`
	rr := serveAs(t, "user-1", h.Routes, jsonRequest(http.MethodPut, "/items", body))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if captured.OwnerID != "user-1" {
		t.Fatalf("expected owner user-1, got %q", captured.OwnerID)
	}
	if captured.Item.MaterialID != "mat-1" || captured.Quantity != 3 {
		t.Fatalf("unexpected command: %+v", captured)
	}

	var view cartView
	if err := json.Unmarshal(rr.Body.Bytes(), &view); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if len(view.Items) != 1 || view.Items[0].Item.MaterialID != "mat-1" {
		t.Fatalf("unexpected cart view: %+v", view)
	}
}

func TestCartHandlersRemoveItemRejectsUnknownKind(t *testing.T) {
	h := NewCartHandlers(&stubCartService{})

	rr := serveAs(t, "user-1", h.Routes, jsonRequest(http.MethodDelete, "/items/gadget/g-1", ""))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestCartHandlersMapsItemNotFound(t *testing.T) {
	h := NewCartHandlers(&stubCartService{
		removeFn: func(context.Context, services.RemoveCartItemCommand) (domain.Cart, error) {
			return domain.Cart{}, services.ErrCartItemNotFound
		},
	})

	rr := serveAs(t, "user-1", h.Routes, jsonRequest(http.MethodDelete, "/items/material/mat-9", ""))

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rr.Code)
	}
}

func TestCartHandlersClearCart(t *testing.T) {
	cleared := ""
	h := NewCartHandlers(&stubCartService{
		clearFn: func(_ context.Context, ownerID string) error {
			cleared = ownerID
			return nil
		},
	})

	rr := serveAs(t, "user-1", h.Routes, jsonRequest(http.MethodDelete, "/", ""))

	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected status 204, got %d", rr.Code)
	}
	if cleared != "user-1" {
		t.Fatalf("expected clear for user-1, got %q", cleared)
	}
}
