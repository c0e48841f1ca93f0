package queue

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/getf1tickets/order-service/internal/usecase"
)

// RabbitProducer publishes order events to a topic exchange with publisher
// confirms. Consumers bind their own queues to the exchange.
type RabbitProducer struct {
	ch *amqp.Channel
}

// NewRabbitProducer declares the exchange once at startup and switches the
// channel into confirm mode.
func NewRabbitProducer(ch *amqp.Channel, exchange string) (*RabbitProducer, error) {
	if err := ch.ExchangeDeclare(
		exchange,
		"topic",
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		return nil, fmt.Errorf("declare exchange: %w", err)
	}

	if err := ch.Confirm(false); err != nil {
		return nil, fmt.Errorf("enable confirm mode: %w", err)
	}
	return &RabbitProducer{ch: ch}, nil
}

// Publish sends one persistent message and waits for the broker's confirm.
// An unconfirmed publish is an error so the outbox dispatcher retries it.
func (p *RabbitProducer) Publish(ctx context.Context, exchange, routingKey string, payload []byte) error {
	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         payload,
	}

	conf, err := p.ch.PublishWithDeferredConfirmWithContext(
		ctx,
		exchange,
		routingKey,
		false, // mandatory
		false, // immediate
		pub,
	)
	if err != nil {
		return fmt.Errorf("publish: %w", err)
	}

	acked, err := conf.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("await confirm: %w", err)
	}
	if !acked {
		return fmt.Errorf("publish %s/%s: broker nacked", exchange, routingKey)
	}
	return nil
}

var _ usecase.EventPublisher = (*RabbitProducer)(nil)
