package idempotency

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/tthaingoc/EcoFashion-sub009/internal/platform/requestctx"
)

var fixedTime = time.Date(2026, 3, 4, 9, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedTime }

func postAs(owner, key, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/checkout/sessions", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set(HeaderName, key)
	}
	if owner != "" {
		req = req.WithContext(requestctx.WithOwnerID(req.Context(), owner))
	}
	return req
}

func TestMiddlewareWithoutKeyPassesThrough(t *testing.T) {
	store := NewMemoryStore()
	calls := 0
	handler := Middleware(store, WithClock(fixedClock))(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusCreated)
	}))

	for i := 0; i < 2; i++ {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, postAs("buyer-1", "", `{"shippingAddress":"12 Nguyen Hue"}`))
		if rr.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d", rr.Code)
		}
	}
	if calls != 2 {
		t.Fatalf("requests without a key must not be deduplicated, got %d calls", calls)
	}
}

func TestMiddlewareReplaysStoredResponse(t *testing.T) {
	store := NewMemoryStore()
	calls := 0
	handler := Middleware(store, WithClock(fixedClock))(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"sess-1"}`))
	}))

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, postAs("buyer-1", "key-1", `{"shippingAddress":"12 Nguyen Hue"}`))
	if first.Code != http.StatusCreated {
		t.Fatalf("expected 201 on first attempt, got %d", first.Code)
	}
	if first.Header().Get(ReplayHeaderName) != "" {
		t.Fatalf("first response must not be marked as a replay")
	}

	second := httptest.NewRecorder()
	handler.ServeHTTP(second, postAs("buyer-1", "key-1", `{"shippingAddress":"12 Nguyen Hue"}`))
	if calls != 1 {
		t.Fatalf("retry must not reach the handler, got %d calls", calls)
	}
	if second.Code != http.StatusCreated {
		t.Fatalf("expected replayed 201, got %d", second.Code)
	}
	if second.Header().Get(ReplayHeaderName) != "true" {
		t.Fatalf("replay marker missing: %v", second.Header())
	}
	if second.Body.String() != `{"id":"sess-1"}` {
		t.Fatalf("unexpected replayed body %q", second.Body.String())
	}
}

func TestMiddlewareRejectsKeyReuseWithDifferentPayload(t *testing.T) {
	store := NewMemoryStore()
	handler := Middleware(store, WithClock(fixedClock))(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, postAs("buyer-1", "key-1", `{"shippingAddress":"12 Nguyen Hue"}`))
	if first.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", first.Code)
	}

	second := httptest.NewRecorder()
	handler.ServeHTTP(second, postAs("buyer-1", "key-1", `{"shippingAddress":"99 Le Loi"}`))
	if second.Code != http.StatusConflict {
		t.Fatalf("expected 409 for reused key, got %d", second.Code)
	}
	var payload map[string]any
	if err := json.Unmarshal(second.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if payload["error"] != "idempotency_key_reused" {
		t.Fatalf("unexpected error code %v", payload["error"])
	}
}

func TestMiddlewareScopesKeysPerOwner(t *testing.T) {
	store := NewMemoryStore()
	calls := 0
	handler := Middleware(store, WithClock(fixedClock))(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusCreated)
	}))

	for _, owner := range []string{"buyer-1", "buyer-2"} {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, postAs(owner, "key-1", `{"shippingAddress":"12 Nguyen Hue"}`))
		if rr.Code != http.StatusCreated {
			t.Fatalf("expected 201 for %s, got %d", owner, rr.Code)
		}
	}
	if calls != 2 {
		t.Fatalf("owners must not share idempotency records, got %d calls", calls)
	}
}

func TestMiddlewareReportsInFlightClaim(t *testing.T) {
	store := NewMemoryStore()
	if _, err := store.Claim(context.Background(), "buyer-1|key-1", fingerprintFor(t), fixedTime, time.Hour); err != nil {
		t.Fatalf("seed claim: %v", err)
	}

	handler := Middleware(store, WithClock(fixedClock))(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		t.Fatal("in-flight key must not reach the handler")
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, postAs("buyer-1", "key-1", `{"shippingAddress":"12 Nguyen Hue"}`))
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409 while first attempt is processing, got %d", rr.Code)
	}
}

func TestMiddlewareIgnoresNonMutatingMethods(t *testing.T) {
	store := NewMemoryStore()
	calls := 0
	handler := Middleware(store, WithClock(fixedClock))(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/checkout/sessions", nil)
	req.Header.Set(HeaderName, "key-1")
	req = req.WithContext(requestctx.WithOwnerID(req.Context(), "buyer-1"))

	for i := 0; i < 2; i++ {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req.Clone(req.Context()))
		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rr.Code)
		}
	}
	if calls != 2 {
		t.Fatalf("GET requests must bypass the store, got %d calls", calls)
	}
}

// fingerprintFor computes the fingerprint the middleware derives for the
// request shape used throughout these tests.
func fingerprintFor(t *testing.T) string {
	t.Helper()
	req := postAs("buyer-1", "key-1", `{"shippingAddress":"12 Nguyen Hue"}`)
	body, err := bufferBody(req)
	if err != nil {
		t.Fatalf("buffer body: %v", err)
	}
	return fingerprintRequest(req, "buyer-1", body)
}
