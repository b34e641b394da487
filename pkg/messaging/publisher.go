package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/nabis/inventory-core/pkg/logger"
)

// Publisher handles publishing events to RabbitMQ
type Publisher struct {
	channel  *amqp.Channel
	exchange string
	logger   *logger.Logger
}

// NewPublisher creates a new publisher for the given exchange
func NewPublisher(rmq *RabbitMQ, exchange string, log *logger.Logger) (*Publisher, error) {
	// Declare the exchange
	if err := rmq.DeclareExchange(exchange); err != nil {
		return nil, fmt.Errorf("failed to declare exchange %s: %w", exchange, err)
	}

	return &Publisher{
		channel:  rmq.Channel(),
		exchange: exchange,
		logger:   log,
	}, nil
}

// Publish publishes an outbox row to the exchange. The routing key is
// "inventory.<eventType>" and the AMQP message ID is set to messageID
// (the originating OutboxEvent's id), per the broker topology's
// messageId=outboxEventId rule — this is what lets WMS-side consumers
// deduplicate on redelivery.
func (p *Publisher) Publish(ctx context.Context, messageID, eventType string, data interface{}) error {
	event, err := NewEvent(eventType, data)
	if err != nil {
		return fmt.Errorf("failed to create event: %w", err)
	}
	event.ID = messageID

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	routingKey := "inventory." + eventType

	err = p.channel.PublishWithContext(ctx,
		p.exchange, // exchange
		routingKey, // routing key
		false,      // mandatory
		false,      // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    messageID,
			Timestamp:    event.Timestamp,
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	p.logger.Debug().
		Str("event_type", eventType).
		Str("event_id", event.ID).
		Str("routing_key", routingKey).
		Msg("event published")

	return nil
}

// PublishCommand publishes a command message (e.g. ForceWmsSync) directly
// to the exchange with a fixed routing key, bypassing the outbox.
func (p *Publisher) PublishCommand(ctx context.Context, messageID, routingKey string, data interface{}) error {
	body, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal command: %w", err)
	}

	err = p.channel.PublishWithContext(ctx,
		p.exchange,
		routingKey,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    messageID,
			Timestamp:    time.Now().UTC(),
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish command: %w", err)
	}

	p.logger.Debug().
		Str("routing_key", routingKey).
		Str("message_id", messageID).
		Msg("command published")

	return nil
}
