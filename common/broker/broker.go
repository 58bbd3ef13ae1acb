package broker

import (
	"context"
	"fmt"
	"log"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Event names. Both publishers and consumers must use the same constants.
const (
	OrderPaidEvent     = "order.paid"     // checkout service → publishes, cart consumes
	CartExpiredEvent   = "cart.expired"   // session layer → publishes, cart consumes
	CartCommittedEvent = "cart.committed" // cart service → publishes
	CartAbandonedEvent = "cart.abandoned" // cart service → publishes
	StockDriftEvent    = "stock.drift"    // consistency checker → publishes
)

// MaxRetryCount bounds redelivery before a message is dead-lettered.
const MaxRetryCount = 3

// DLX is the dead letter exchange; it routes failed messages to the
// queue-specific DLQs declared below.
const DLX = "dlx"

// Connect opens a channel to RabbitMQ and declares the exchange/DLQ topology.
// The returned close function shuts the channel and the connection down in
// order; use it with defer.
func Connect(user, pass, host, port string) (*amqp.Channel, func() error, error) {
	address := fmt.Sprintf("amqp://%s:%s@%s:%s/", user, pass, host, port)

	conn, err := amqp.Dial(address)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if err := createDLQAndDLX(ch); err != nil {
		ch.Close()
		conn.Close()
		return nil, nil, fmt.Errorf("failed to create DLQ: %w", err)
	}

	if err := createExchanges(ch); err != nil {
		ch.Close()
		conn.Close()
		return nil, nil, fmt.Errorf("failed to create exchanges: %w", err)
	}

	close := func() error {
		if err := ch.Close(); err != nil {
			return err
		}
		return conn.Close()
	}

	return ch, close, nil
}

// HandleRetry republishes a failed delivery with an incremented
// x-retry-count header. After MaxRetryCount attempts the message is nacked
// without requeue so the queue's dead-letter-exchange routes it to its DLQ.
func HandleRetry(ch *amqp.Channel, d *amqp.Delivery) error {
	if d.Headers == nil {
		d.Headers = amqp.Table{}
	}

	retryCount, ok := d.Headers["x-retry-count"].(int64)
	if !ok {
		retryCount = 0
	}
	retryCount++
	d.Headers["x-retry-count"] = retryCount

	log.Printf("Retrying message, retry count: %d", retryCount)

	if retryCount >= MaxRetryCount {
		log.Printf("Max retries reached, sending to DLX (will route to %s.dlq)", d.RoutingKey)
		return d.Nack(false, false)
	}

	// backoff grows with the attempt number
	time.Sleep(time.Second * time.Duration(retryCount))

	return ch.PublishWithContext(
		context.Background(),
		d.Exchange,
		d.RoutingKey,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Headers:      d.Headers,
			Body:         d.Body,
			DeliveryMode: amqp.Persistent,
		},
	)
}

func createDLQAndDLX(ch *amqp.Channel) error {
	err := ch.ExchangeDeclare(
		DLX,      // name
		"direct", // routing key = original queue name
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare DLX exchange: %w", err)
	}

	// One DLQ per consumed event keeps failures separable per queue.
	dlqQueues := []string{
		OrderPaidEvent + ".dlq",
		CartExpiredEvent + ".dlq",
	}

	for _, dlq := range dlqQueues {
		_, err := ch.QueueDeclare(
			dlq,
			true,  // durable
			false, // delete when unused
			false, // exclusive
			false, // no-wait
			nil,
		)
		if err != nil {
			return fmt.Errorf("failed to declare DLQ %s: %w", dlq, err)
		}

		queueName := dlq[:len(dlq)-4] // strip ".dlq"
		err = ch.QueueBind(dlq, queueName, DLX, false, nil)
		if err != nil {
			return fmt.Errorf("failed to bind DLQ %s to DLX: %w", dlq, err)
		}
	}

	return nil
}

func createExchanges(ch *amqp.Channel) error {
	events := []string{
		OrderPaidEvent,
		CartExpiredEvent,
		CartCommittedEvent,
		CartAbandonedEvent,
		StockDriftEvent,
	}

	for _, event := range events {
		err := ch.ExchangeDeclare(
			event,
			"direct",
			true,  // durable
			false, // auto-deleted
			false, // internal
			false, // no-wait
			nil,
		)
		if err != nil {
			return fmt.Errorf("failed to declare %s exchange: %w", event, err)
		}
	}

	return nil
}
