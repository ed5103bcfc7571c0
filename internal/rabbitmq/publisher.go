package rabbitmq

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Renal37/dessert-aggregator/internal/models"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher announces committed order and user writes on the events queue.
type Publisher struct {
	mu      sync.Mutex
	conn    *amqp.Connection
	channel *amqp.Channel
	queue   string
	now     func() time.Time
}

func NewPublisher(url, queue string) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if err := declareQueue(channel, queue); err != nil {
		channel.Close()
		conn.Close()
		return nil, err
	}

	return &Publisher{
		conn:    conn,
		channel: channel,
		queue:   queue,
		now:     time.Now,
	}, nil
}

func (p *Publisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		p.conn.Close()
	}
}

func (p *Publisher) PublishOrderChange(ctx context.Context, before, after *models.Order) error {
	eventID := uuid.NewString()

	body, err := models.EncodeOrderChange(eventID, before, after, p.now().UTC())
	if err != nil {
		return err
	}

	return p.publish(ctx, eventID, models.EventOrderChanged, body)
}

func (p *Publisher) PublishUserCreated(ctx context.Context, userID string) error {
	eventID := uuid.NewString()

	body, err := models.EncodeUserCreated(eventID, userID, p.now().UTC())
	if err != nil {
		return err
	}

	return p.publish(ctx, eventID, models.EventUserCreated, body)
}

// amqp channels are not safe for concurrent publishing.
func (p *Publisher) publish(ctx context.Context, eventID string, eventType models.EventType, body []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	err := p.channel.PublishWithContext(ctx,
		"",      // default exchange
		p.queue, // routing key
		false,   // mandatory
		false,   // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    eventID,
			Type:         string(eventType),
			Timestamp:    p.now(),
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish %s event: %w", eventType, err)
	}

	return nil
}
