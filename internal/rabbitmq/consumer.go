package rabbitmq

import (
	"context"
	"errors"
	"fmt"

	"github.com/Renal37/dessert-aggregator/internal/logger"
	"github.com/Renal37/dessert-aggregator/internal/models"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

var ErrDeliveriesClosed = errors.New("delivery channel closed by broker")

// Handler processes one message body. Returning an error wrapping
// models.ErrMalformedEvent drops the message, any other error requeues it.
type Handler func(ctx context.Context, body []byte) error

type Consumer struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	prefetch int
}

func NewConsumer(url string, prefetch int) (*Consumer, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if err := channel.Qos(prefetch, 0, false); err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to set QoS: %w", err)
	}

	return &Consumer{
		conn:     conn,
		channel:  channel,
		prefetch: prefetch,
	}, nil
}

func (c *Consumer) Close() {
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		c.conn.Close()
	}
}

// Consume delivers messages of queue to handler one at a time until ctx is
// cancelled. Each message is acknowledged only after handler returns.
func (c *Consumer) Consume(ctx context.Context, queue string, handler Handler) error {
	if err := declareQueue(c.channel, queue); err != nil {
		return err
	}

	deliveries, err := c.channel.Consume(
		queue,
		"",    // consumer tag
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	logger.Log.Info("started consuming", zap.String("queue", queue), zap.Int("prefetch", c.prefetch))

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-deliveries:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return ErrDeliveriesClosed
			}
			settle(ctx, msg, handler)
		}
	}
}

func settle(ctx context.Context, msg amqp.Delivery, handler Handler) {
	err := handler(ctx, msg.Body)

	switch {
	case err == nil:
		if ackErr := msg.Ack(false); ackErr != nil {
			logger.Log.Error("failed to ack message", zap.String("messageID", msg.MessageId), zap.Error(ackErr))
		}
	case errors.Is(err, models.ErrMalformedEvent):
		logger.Log.Error("dropping malformed message", zap.String("messageID", msg.MessageId), zap.Error(err))
		if nackErr := msg.Nack(false, false); nackErr != nil {
			logger.Log.Error("failed to reject message", zap.String("messageID", msg.MessageId), zap.Error(nackErr))
		}
	default:
		logger.Log.Error("failed to process message, requeueing", zap.String("messageID", msg.MessageId), zap.Error(err))
		if nackErr := msg.Nack(false, true); nackErr != nil {
			logger.Log.Error("failed to requeue message", zap.String("messageID", msg.MessageId), zap.Error(nackErr))
		}
	}
}

func declareQueue(channel *amqp.Channel, queue string) error {
	_, err := channel.QueueDeclare(
		queue,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", queue, err)
	}
	return nil
}
