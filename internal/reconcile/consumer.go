package reconcile

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/nabis/inventory-core/pkg/logger"
	"github.com/nabis/inventory-core/pkg/messaging"
)

// Consumer drains ForceWmsSync commands from the wms.forceSync exchange.
// It cannot reuse messaging.Consumer as-is: that type unconditionally
// unmarshals a message body into the domain-events Event envelope, but
// messaging.Publisher.PublishCommand intentionally bypasses that envelope
// and marshals the command payload directly, so commands need their own
// small consume loop — grounded on messaging.Consumer.Start's shape but
// decoding messaging.ForceWmsSyncCommand straight from the message body.
type Consumer struct {
	rmq       *messaging.RabbitMQ
	queueName string
	engine    *Engine
	logger    *logger.Logger
}

// NewConsumer declares the reconciliation queue and binds it to the
// command exchange under the wms.forceSync routing key.
func NewConsumer(rmq *messaging.RabbitMQ, queueName string, engine *Engine, log *logger.Logger) (*Consumer, error) {
	if _, err := rmq.DeclareQueue(queueName); err != nil {
		return nil, fmt.Errorf("failed to declare queue %s: %w", queueName, err)
	}
	if err := rmq.DeclareExchange(messaging.ExchangeWmsForceSync); err != nil {
		return nil, fmt.Errorf("failed to declare command exchange: %w", err)
	}
	if err := rmq.BindQueue(queueName, messaging.ExchangeWmsForceSync, messaging.CommandForceWmsSync); err != nil {
		return nil, fmt.Errorf("failed to bind queue: %w", err)
	}

	return &Consumer{rmq: rmq, queueName: queueName, engine: engine, logger: log}, nil
}

// Start begins consuming ForceWmsSync commands until ctx is cancelled.
func (c *Consumer) Start(ctx context.Context) error {
	msgs, err := c.rmq.Channel().Consume(
		c.queueName, // queue
		"",          // consumer tag (auto-generated)
		false,       // auto-ack
		false,       // exclusive
		false,       // no-local
		false,       // no-wait
		nil,         // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	c.logger.Info().Str("queue", c.queueName).Msg("reconciliation consumer started")

	go func() {
		for {
			select {
			case <-ctx.Done():
				c.logger.Info().Str("queue", c.queueName).Msg("reconciliation consumer stopped")
				return
			case msg, ok := <-msgs:
				if !ok {
					c.logger.Warn().Msg("reconciliation message channel closed")
					return
				}
				c.handleMessage(ctx, msg)
			}
		}
	}()

	return nil
}

func (c *Consumer) handleMessage(ctx context.Context, msg amqp.Delivery) {
	var cmd messaging.ForceWmsSyncCommand
	if err := json.Unmarshal(msg.Body, &cmd); err != nil {
		c.logger.Error().Err(err).Msg("failed to unmarshal ForceWmsSync command")
		msg.Reject(false)
		return
	}

	c.logger.Debug().Str("sync_request_id", cmd.SyncRequestID).Msg("processing ForceWmsSync command")

	if err := c.engine.ProcessSyncRequest(ctx, cmd); err != nil {
		c.logger.Error().Err(err).Str("sync_request_id", cmd.SyncRequestID).Msg("failed to process sync request")

		if messaging.IsNonRetriable(err) {
			msg.Reject(false)
			return
		}

		retryCount := retryCountFromDeathHeader(msg)
		if retryCount >= 3 {
			msg.Reject(false)
			return
		}
		msg.Nack(false, true)
		return
	}

	msg.Ack(false)
}

func retryCountFromDeathHeader(msg amqp.Delivery) int {
	if msg.Headers == nil {
		return 0
	}
	if deaths, ok := msg.Headers["x-death"].([]interface{}); ok {
		for _, death := range deaths {
			if d, ok := death.(amqp.Table); ok {
				if count, ok := d["count"].(int64); ok {
					return int(count)
				}
			}
		}
	}
	return 0
}
