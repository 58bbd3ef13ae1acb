package main

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/SandaminiI/serandib-microservices/common/broker"
)

// AMQPPublisher publishes cart lifecycle events to the broker's direct
// exchanges, carrying the trace context in the message headers.
type AMQPPublisher struct {
	channel *amqp.Channel
}

func NewAMQPPublisher(channel *amqp.Channel) *AMQPPublisher {
	return &AMQPPublisher{channel: channel}
}

func (p *AMQPPublisher) Publish(ctx context.Context, event string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s payload: %w", event, err)
	}

	return p.channel.PublishWithContext(
		ctx,
		event, // exchange
		event, // routing key
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Headers:      broker.InjectAMQPHeaders(ctx),
			Body:         body,
			DeliveryMode: amqp.Persistent,
		},
	)
}

var _ EventPublisher = (*AMQPPublisher)(nil)
