package main

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type handler struct {
	svc      CartService
	identity IdentityResolver
	logger   *slog.Logger
}

func NewHandler(svc CartService, identity IdentityResolver, logger *slog.Logger) *handler {
	return &handler{
		svc:      svc,
		identity: identity,
		logger:   logger,
	}
}

func (h *handler) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/customers/{customerID}/cart/items", h.handleAddToCart)
	mux.HandleFunc("PATCH /api/customers/{customerID}/cart/items/{itemID}", h.handleAdjustQuantity)
	mux.HandleFunc("DELETE /api/customers/{customerID}/cart/items/{itemID}", h.handleRemoveItem)
	mux.HandleFunc("GET /api/customers/{customerID}/cart", h.handleGetCart)
	mux.HandleFunc("POST /api/customers/{customerID}/cart/commit", h.handleCommitCart)

	mux.Handle("GET /metrics", promhttp.Handler())
}

type addToCartRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int32  `json:"quantity"`
}

func (h *handler) handleAddToCart(w http.ResponseWriter, r *http.Request) {
	customerID, ok := h.resolveCustomer(w, r)
	if !ok {
		return
	}

	var req addToCartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Error("failed to decode request body", slog.Any("error", err))
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	h.logger.Info("add to cart request",
		slog.String("customer_id", customerID),
		slog.String("product_id", req.ProductID),
		slog.Int("quantity", int(req.Quantity)),
	)

	item, err := h.svc.AddToCart(r.Context(), customerID, req.ProductID, req.Quantity)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, item)
}

type adjustQuantityRequest struct {
	Op string `json:"op"` // "increase" or "decrease"
	By int32  `json:"by"`
}

func (h *handler) handleAdjustQuantity(w http.ResponseWriter, r *http.Request) {
	customerID, ok := h.resolveCustomer(w, r)
	if !ok {
		return
	}
	itemID := r.PathValue("itemID")

	var req adjustQuantityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Error("failed to decode request body", slog.Any("error", err))
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.By == 0 {
		req.By = 1
	}

	h.logger.Info("adjust quantity request",
		slog.String("customer_id", customerID),
		slog.String("item_id", itemID),
		slog.String("op", req.Op),
		slog.Int("by", int(req.By)),
	)

	var err error
	var item any
	switch req.Op {
	case "increase":
		item, err = h.svc.IncreaseQuantity(r.Context(), customerID, itemID, req.By)
	case "decrease":
		item, err = h.svc.DecreaseQuantity(r.Context(), customerID, itemID, req.By)
	default:
		http.Error(w, "op must be \"increase\" or \"decrease\"", http.StatusBadRequest)
		return
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, item)
}

func (h *handler) handleRemoveItem(w http.ResponseWriter, r *http.Request) {
	customerID, ok := h.resolveCustomer(w, r)
	if !ok {
		return
	}
	itemID := r.PathValue("itemID")

	h.logger.Info("remove item request",
		slog.String("customer_id", customerID),
		slog.String("item_id", itemID),
	)

	if err := h.svc.RemoveItem(r.Context(), customerID, itemID); err != nil {
		h.writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) handleGetCart(w http.ResponseWriter, r *http.Request) {
	customerID, ok := h.resolveCustomer(w, r)
	if !ok {
		return
	}

	cart, err := h.svc.GetCart(r.Context(), customerID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, cart)
}

func (h *handler) handleCommitCart(w http.ResponseWriter, r *http.Request) {
	customerID, ok := h.resolveCustomer(w, r)
	if !ok {
		return
	}

	h.logger.Info("commit cart request", slog.String("customer_id", customerID))

	if err := h.svc.CommitCart(r.Context(), customerID); err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "committed"})
}

// resolveCustomer resolves the caller's identity once at the boundary. A
// session token in X-Customer-Token wins over the path segment, which is for
// trusted internal callers.
func (h *handler) resolveCustomer(w http.ResponseWriter, r *http.Request) (string, bool) {
	token := r.Header.Get("X-Customer-Token")
	if token == "" || h.identity == nil {
		return r.PathValue("customerID"), true
	}

	customerID, err := h.identity.ResolveCustomer(r.Context(), token)
	if err != nil {
		h.logger.Warn("failed to resolve customer token", slog.Any("error", err))
		http.Error(w, "Invalid session token", http.StatusUnauthorized)
		return "", false
	}
	return customerID, true
}

func (h *handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var status int
	switch {
	case errors.Is(err, ErrInvalidQuantity):
		status = http.StatusBadRequest
	case errors.Is(err, ErrProductNotFound),
		errors.Is(err, ErrLineItemNotFound),
		errors.Is(err, ErrCartNotFound):
		status = http.StatusNotFound
	case errors.Is(err, ErrInsufficientStock):
		status = http.StatusConflict
	default:
		h.logger.Error("request failed",
			slog.String("path", r.URL.Path),
			slog.Any("error", err),
		)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	h.logger.Warn("request rejected",
		slog.String("path", r.URL.Path),
		slog.Any("error", err),
	)
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
