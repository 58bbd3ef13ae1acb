package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.opentelemetry.io/otel"

	"github.com/SandaminiI/serandib-microservices/common/api"
	"github.com/SandaminiI/serandib-microservices/common/broker"
)

// Consumer drives the two broker-facing cart transitions: order.paid from
// the checkout collaborator commits the cart, cart.expired from the session
// layer releases it.
type Consumer struct {
	svc    CartService
	logger *slog.Logger
}

func NewConsumer(svc CartService, logger *slog.Logger) *Consumer {
	return &Consumer{svc: svc, logger: logger}
}

func (c *Consumer) Listen(ch *amqp.Channel) error {
	if err := c.consume(ch, broker.OrderPaidEvent, c.handleOrderPaid); err != nil {
		return err
	}
	return c.consume(ch, broker.CartExpiredEvent, c.handleCartExpired)
}

func (c *Consumer) consume(ch *amqp.Channel, event string, handle func(context.Context, *api.CartEvent) error) error {
	q, err := ch.QueueDeclare(
		"",    // name: broker-generated
		true,  // durable
		false, // delete when unused
		true,  // exclusive
		false, // no-wait
		amqp.Table{"x-dead-letter-exchange": broker.DLX}, // failed messages route to the event's DLQ
	)
	if err != nil {
		return fmt.Errorf("failed to declare queue for %s: %w", event, err)
	}

	if err := ch.QueueBind(q.Name, event, event, false, nil); err != nil {
		return fmt.Errorf("failed to bind queue to %s: %w", event, err)
	}

	msgs, err := ch.Consume(q.Name, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to consume %s: %w", event, err)
	}

	go func() {
		for d := range msgs {
			ctx := broker.ExtractAMQPHeader(context.Background(), d.Headers)

			tr := otel.Tracer("amqp")
			ctx, span := tr.Start(ctx, fmt.Sprintf("AMQP - consume - %s", event))

			var payload api.CartEvent
			if err := json.Unmarshal(d.Body, &payload); err != nil {
				c.logger.Error("failed to unmarshal event",
					slog.String("event", event),
					slog.Any("error", err),
				)
				d.Nack(false, false)
				span.End()
				continue
			}

			if err := handle(ctx, &payload); err != nil {
				c.logger.Error("failed to handle event",
					slog.String("event", event),
					slog.String("customer_id", payload.CustomerID),
					slog.Any("error", err),
				)
				if retryErr := broker.HandleRetry(ch, &d); retryErr != nil {
					c.logger.Error("error handling retry", slog.Any("error", retryErr))
				}
				d.Nack(false, false)
				span.End()
				continue
			}

			d.Ack(false)
			span.End()
		}
	}()

	return nil
}

func (c *Consumer) handleOrderPaid(ctx context.Context, event *api.CartEvent) error {
	c.logger.Info("order paid, committing cart", slog.String("customer_id", event.CustomerID))

	err := c.svc.CommitCart(ctx, event.CustomerID)
	if errors.Is(err, ErrCartNotFound) {
		// Redelivery after a successful commit; nothing left to do.
		return nil
	}
	return err
}

func (c *Consumer) handleCartExpired(ctx context.Context, event *api.CartEvent) error {
	c.logger.Info("cart expired, releasing reservations", slog.String("customer_id", event.CustomerID))
	return c.svc.AbandonCart(ctx, event.CustomerID)
}
