package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/SandaminiI/serandib-microservices/common/api"
)

func newTestHandler(env *testEnv) http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mux := http.NewServeMux()
	NewHandler(env.svc, nil, logger).registerRoutes(mux)
	return mux
}

func doJSON(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHandler_AddToCart(t *testing.T) {
	env := newTestEnv(product("p1", 10))
	h := newTestHandler(env)

	rec := doJSON(t, h, "POST", "/api/customers/cust1/cart/items",
		`{"product_id":"p1","quantity":2}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var item api.LineItem
	if err := json.NewDecoder(rec.Body).Decode(&item); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if item.ProductID != "p1" || item.Quantity != 2 {
		t.Errorf("unexpected line item: %+v", item)
	}
}

func TestHandler_AddToCartErrors(t *testing.T) {
	env := newTestEnv(product("p1", 3))
	h := newTestHandler(env)

	cases := []struct {
		name string
		body string
		want int
	}{
		{"malformed body", `{not json`, http.StatusBadRequest},
		{"zero quantity", `{"product_id":"p1","quantity":0}`, http.StatusBadRequest},
		{"negative quantity", `{"product_id":"p1","quantity":-2}`, http.StatusBadRequest},
		{"unknown product", `{"product_id":"ghost","quantity":1}`, http.StatusNotFound},
		{"insufficient stock", `{"product_id":"p1","quantity":4}`, http.StatusConflict},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := doJSON(t, h, "POST", "/api/customers/cust1/cart/items", tc.body)
			if rec.Code != tc.want {
				t.Errorf("expected %d, got %d: %s", tc.want, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestHandler_AdjustQuantity(t *testing.T) {
	env := newTestEnv(product("p1", 10))
	h := newTestHandler(env)

	item, err := env.svc.AddToCart(context.Background(), "cust1", "p1", 4)
	if err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
	itemPath := fmt.Sprintf("/api/customers/cust1/cart/items/%s", item.ID)

	rec := doJSON(t, h, "PATCH", itemPath, `{"op":"increase","by":3}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("increase: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, h, "PATCH", itemPath, `{"op":"decrease","by":2}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("decrease: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var updated api.LineItem
	json.NewDecoder(rec.Body).Decode(&updated)
	if updated.Quantity != 5 {
		t.Errorf("expected quantity 5, got %d", updated.Quantity)
	}

	rec = doJSON(t, h, "PATCH", itemPath, `{"op":"shrink","by":1}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unknown op: expected 400, got %d", rec.Code)
	}

	rec = doJSON(t, h, "PATCH", itemPath, `{"op":"decrease","by":5}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("decrease to zero: expected 400, got %d", rec.Code)
	}

	rec = doJSON(t, h, "PATCH", "/api/customers/cust1/cart/items/unknown", `{"op":"increase","by":1}`)
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown item: expected 404, got %d", rec.Code)
	}
}

func TestHandler_RemoveItem(t *testing.T) {
	env := newTestEnv(product("p1", 10))
	h := newTestHandler(env)

	item, err := env.svc.AddToCart(context.Background(), "cust1", "p1", 2)
	if err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
	itemPath := fmt.Sprintf("/api/customers/cust1/cart/items/%s", item.ID)

	rec := doJSON(t, h, "DELETE", itemPath, "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, h, "DELETE", itemPath, "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 on second delete, got %d", rec.Code)
	}
}

func TestHandler_GetCart(t *testing.T) {
	env := newTestEnv(product("p1", 10))
	h := newTestHandler(env)

	env.svc.AddToCart(context.Background(), "cust1", "p1", 2)

	rec := doJSON(t, h, "GET", "/api/customers/cust1/cart", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var cart api.Cart
	if err := json.NewDecoder(rec.Body).Decode(&cart); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if cart.CustomerID != "cust1" {
		t.Errorf("expected customer cust1, got %s", cart.CustomerID)
	}
	if len(cart.Items) != 1 || cart.Total != 3000 {
		t.Errorf("unexpected cart: %+v", cart)
	}
}

func TestHandler_CommitCart(t *testing.T) {
	env := newTestEnv(product("p1", 10))
	h := newTestHandler(env)

	env.svc.AddToCart(context.Background(), "cust1", "p1", 2)

	rec := doJSON(t, h, "POST", "/api/customers/cust1/cart/commit", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, h, "POST", "/api/customers/cust1/cart/commit", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 on empty cart, got %d", rec.Code)
	}
}
