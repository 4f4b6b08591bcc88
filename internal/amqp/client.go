// Package amqp publishes and consumes movement events over RabbitMQ. The
// API server publishes after each committed ledger mutation; the export
// worker consumes and mirrors movements to the configured sheet.
package amqp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/rabbitmq/amqp091-go"
)

type Client struct {
	conn         *amqp091.Connection
	channel      *amqp091.Channel
	exchangeName string
	queueName    string
}

func NewClient(url, exchangeName, queueName string) (*Client, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial AMQP: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	client := &Client{
		conn:         conn,
		channel:      channel,
		exchangeName: exchangeName,
		queueName:    queueName,
	}

	if err := client.setup(); err != nil {
		client.Close()
		return nil, fmt.Errorf("setup exchange and queue: %w", err)
	}

	return client, nil
}

func (c *Client) setup() error {
	err := c.channel.ExchangeDeclare(
		c.exchangeName, // name
		"direct",       // type
		true,           // durable
		false,          // auto-deleted
		false,          // internal
		false,          // no-wait
		nil,            // arguments
	)
	if err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	_, err = c.channel.QueueDeclare(
		c.queueName, // name
		true,        // durable
		false,       // delete when unused
		false,       // exclusive
		false,       // no-wait
		nil,         // arguments
	)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}

	// Routing key matches the queue name on a direct exchange.
	err = c.channel.QueueBind(c.queueName, c.queueName, c.exchangeName, false, nil)
	if err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}

	return nil
}

// PublishMovementSync asks the worker to export the movement with this id.
func (c *Client) PublishMovementSync(ctx context.Context, id int64) error {
	return c.publish(ctx, TypeMovementSync, MovementSyncMessage{ID: id})
}

// PublishMovementDelete notifies the worker of a soft-deleted movement.
func (c *Client) PublishMovementDelete(ctx context.Context, id int64) error {
	return c.publish(ctx, TypeMovementDelete, MovementDeleteMessage{ID: id})
}

func (c *Client) publish(ctx context.Context, msgType string, payload any) error {
	body, err := newEnvelope(msgType, payload)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err = c.channel.PublishWithContext(
		ctx,
		c.exchangeName, // exchange
		c.queueName,    // routing key
		false,          // mandatory
		false,          // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish message: %w", err)
	}

	slog.InfoContext(ctx, "Published movement event",
		"type", msgType,
		"exchange", c.exchangeName,
		"queue", c.queueName)

	return nil
}

// ConsumeMovementEvents delivers decoded messages to the handlers until the
// context is cancelled. Malformed messages are rejected without requeue;
// handler failures requeue the delivery.
func (c *Client) ConsumeMovementEvents(
	ctx context.Context,
	onSync func(ctx context.Context, msg MovementSyncMessage) error,
	onDelete func(ctx context.Context, msg MovementDeleteMessage) error,
) error {
	msgs, err := c.channel.Consume(
		c.queueName, // queue
		"",          // consumer
		false,       // auto-ack (we want manual ack)
		false,       // exclusive
		false,       // no-local
		false,       // no-wait
		nil,         // args
	)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	slog.InfoContext(ctx, "Started consuming movement events", "queue", c.queueName)

	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "Stopping message consumption", "reason", ctx.Err())
			return ctx.Err()
		case delivery, ok := <-msgs:
			if !ok {
				return fmt.Errorf("message channel closed")
			}
			c.dispatch(ctx, delivery, onSync, onDelete)
		}
	}
}

func (c *Client) dispatch(
	ctx context.Context,
	delivery amqp091.Delivery,
	onSync func(ctx context.Context, msg MovementSyncMessage) error,
	onDelete func(ctx context.Context, msg MovementDeleteMessage) error,
) {
	env, err := decodeEnvelope(delivery.Body)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to decode message", "error", err)
		delivery.Nack(false, false) // reject and don't requeue
		return
	}

	var handleErr error
	switch env.Type {
	case TypeMovementSync:
		var msg MovementSyncMessage
		if err := json.Unmarshal(env.Payload, &msg); err != nil {
			slog.ErrorContext(ctx, "Failed to decode sync payload", "error", err)
			delivery.Nack(false, false)
			return
		}
		handleErr = onSync(ctx, msg)
	case TypeMovementDelete:
		var msg MovementDeleteMessage
		if err := json.Unmarshal(env.Payload, &msg); err != nil {
			slog.ErrorContext(ctx, "Failed to decode delete payload", "error", err)
			delivery.Nack(false, false)
			return
		}
		handleErr = onDelete(ctx, msg)
	default:
		slog.WarnContext(ctx, "Unknown message type", "type", env.Type)
		delivery.Nack(false, false)
		return
	}

	if handleErr != nil {
		slog.ErrorContext(ctx, "Failed to handle message",
			"type", env.Type, "error", handleErr)
		delivery.Nack(false, true) // reject and requeue
		return
	}

	delivery.Ack(false)
}

func (c *Client) Close() error {
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
