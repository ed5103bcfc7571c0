package workers

import (
	"context"
	"fmt"
	"time"

	"github.com/Renal37/dessert-aggregator/internal/logger"
	"github.com/Renal37/dessert-aggregator/internal/models"
	"github.com/Renal37/dessert-aggregator/internal/rabbitmq"
	"go.uber.org/zap"
)

const handleTimeout = 30 * time.Second

type queueConsumer interface {
	Consume(ctx context.Context, queue string, handler rabbitmq.Handler) error
}

type aggregateHandler interface {
	Handle(ctx context.Context, change models.OrderChange) (models.HandleResult, error)
	HandleUserCreated(ctx context.Context, event models.UserCreated) (models.HandleResult, error)
}

// EventWorker feeds order and user events from the queue into the aggregates.
type EventWorker struct {
	consumer   queueConsumer
	aggregates aggregateHandler
	queueName  string
}

func NewEventWorker(consumer queueConsumer, aggregates aggregateHandler, queueName string) *EventWorker {
	return &EventWorker{
		consumer:   consumer,
		aggregates: aggregates,
		queueName:  queueName,
	}
}

// Start blocks until ctx is cancelled or the consumer fails.
func (w *EventWorker) Start(ctx context.Context) error {
	logger.Log.Info("starting event worker", zap.String("queue", w.queueName))
	return w.consumer.Consume(ctx, w.queueName, w.handleMessage)
}

func (w *EventWorker) handleMessage(ctx context.Context, body []byte) error {
	event, err := models.DecodeEvent(body)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, handleTimeout)
	defer cancel()

	switch {
	case event.Order != nil:
		result, err := w.aggregates.Handle(ctx, *event.Order)
		if err != nil {
			return fmt.Errorf("failed to handle order event %s: %w", event.ID, err)
		}
		logger.Log.Debug("processed order event",
			zap.String("eventID", event.ID),
			zap.String("orderID", event.Order.OrderID()),
			zap.String("kind", string(result.Kind)),
			zap.Bool("applied", result.Applied),
			zap.Bool("duplicate", result.Duplicate),
			zap.Bool("noop", result.NoOp),
		)
	case event.User != nil:
		result, err := w.aggregates.HandleUserCreated(ctx, *event.User)
		if err != nil {
			return fmt.Errorf("failed to handle user event %s: %w", event.ID, err)
		}
		logger.Log.Debug("processed user event",
			zap.String("eventID", event.ID),
			zap.String("userID", event.User.UserID),
			zap.Bool("duplicate", result.Duplicate),
		)
	}

	return nil
}
