package main

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/trace"

	"github.com/SandaminiI/serandib-microservices/common/api"
	"github.com/SandaminiI/serandib-microservices/common/metrics"
)

// TelemetryMiddleware decorates the coordinator with span events and the
// reservation business counters.
type TelemetryMiddleware struct {
	next    CartService
	metrics *metrics.CartMetrics
}

func NewTelemetryMiddleware(next CartService, m *metrics.CartMetrics) CartService {
	return &TelemetryMiddleware{next: next, metrics: m}
}

func (t *TelemetryMiddleware) AddToCart(ctx context.Context, customerID, productID string, quantity int32) (*api.LineItem, error) {
	span := trace.SpanFromContext(ctx)
	span.AddEvent(fmt.Sprintf("AddToCart: customer=%s product=%s quantity=%d", customerID, productID, quantity))

	item, err := t.next.AddToCart(ctx, customerID, productID, quantity)
	t.countReservation(err)
	return item, err
}

func (t *TelemetryMiddleware) IncreaseQuantity(ctx context.Context, customerID, cartItemID string, by int32) (*api.LineItem, error) {
	span := trace.SpanFromContext(ctx)
	span.AddEvent(fmt.Sprintf("IncreaseQuantity: customer=%s item=%s by=%d", customerID, cartItemID, by))

	item, err := t.next.IncreaseQuantity(ctx, customerID, cartItemID, by)
	t.countReservation(err)
	return item, err
}

func (t *TelemetryMiddleware) DecreaseQuantity(ctx context.Context, customerID, cartItemID string, by int32) (*api.LineItem, error) {
	span := trace.SpanFromContext(ctx)
	span.AddEvent(fmt.Sprintf("DecreaseQuantity: customer=%s item=%s by=%d", customerID, cartItemID, by))

	item, err := t.next.DecreaseQuantity(ctx, customerID, cartItemID, by)
	if err == nil {
		t.metrics.UnitsReleased.Add(float64(by))
	}
	return item, err
}

func (t *TelemetryMiddleware) RemoveItem(ctx context.Context, customerID, cartItemID string) error {
	span := trace.SpanFromContext(ctx)
	span.AddEvent(fmt.Sprintf("RemoveItem: customer=%s item=%s", customerID, cartItemID))

	return t.next.RemoveItem(ctx, customerID, cartItemID)
}

func (t *TelemetryMiddleware) GetCart(ctx context.Context, customerID string) (*api.Cart, error) {
	span := trace.SpanFromContext(ctx)
	span.AddEvent(fmt.Sprintf("GetCart: customer=%s", customerID))

	return t.next.GetCart(ctx, customerID)
}

func (t *TelemetryMiddleware) CommitCart(ctx context.Context, customerID string) error {
	span := trace.SpanFromContext(ctx)
	span.AddEvent(fmt.Sprintf("CommitCart: customer=%s", customerID))

	err := t.next.CommitCart(ctx, customerID)
	if err == nil {
		t.metrics.CartsCommitted.Inc()
	}
	return err
}

func (t *TelemetryMiddleware) AbandonCart(ctx context.Context, customerID string) error {
	span := trace.SpanFromContext(ctx)
	span.AddEvent(fmt.Sprintf("AbandonCart: customer=%s", customerID))

	err := t.next.AbandonCart(ctx, customerID)
	if err == nil {
		t.metrics.CartsAbandoned.Inc()
	}
	return err
}

func (t *TelemetryMiddleware) countReservation(err error) {
	switch {
	case err == nil:
		t.metrics.ReservationsTotal.Inc()
	case errors.Is(err, ErrInsufficientStock):
		t.metrics.ReservationsRejected.Inc()
	}
}
