package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/Renal37/dessert-aggregator/internal/database"
	"github.com/Renal37/dessert-aggregator/internal/logger"
	"github.com/Renal37/dessert-aggregator/internal/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	ErrOrderNotFound  = errors.New("order not found")
	ErrInvalidCart    = errors.New("cart is invalid")
	ErrInvalidStatus  = errors.New("order status is invalid")
	ErrDuplicateOrder = errors.New("order already exists")
)

// DefaultDeliveryFee is added to every order total.
var DefaultDeliveryFee = decimal.NewFromInt(60)

type OrderService struct {
	storage     orderStorage
	publisher   orderEventPublisher
	deliveryFee decimal.Decimal
	now         func() time.Time
}

type orderStorage interface {
	CreateOrder(ctx context.Context, order models.Order) error
	FindOrdersByUser(ctx context.Context, userID string) ([]models.Order, error)
	UpdateOrderStatus(ctx context.Context, orderID string, status models.OrderStatus, now time.Time) (before, after *models.Order, err error)
	DeleteOrder(ctx context.Context, orderID string) (*models.Order, error)
}

type orderEventPublisher interface {
	PublishOrderChange(ctx context.Context, before, after *models.Order) error
}

func NewOrderService(storage orderStorage, publisher orderEventPublisher, deliveryFee decimal.Decimal) *OrderService {
	return &OrderService{
		storage:     storage,
		publisher:   publisher,
		deliveryFee: deliveryFee,
		now:         time.Now,
	}
}

// CreateOrder checks out a cart: the total is the sum of the line items plus
// the delivery fee and the order starts as Pending.
func (o *OrderService) CreateOrder(ctx context.Context, userID string, cart models.Cart) (*models.Order, error) {
	if len(cart.Items) == 0 {
		return nil, fmt.Errorf("%w: no items", ErrInvalidCart)
	}

	total := o.deliveryFee
	for i, item := range cart.Items {
		if item.ProductID == "" {
			return nil, fmt.Errorf("%w: item %d has no product", ErrInvalidCart, i)
		}
		if item.Quantity <= 0 {
			return nil, fmt.Errorf("%w: item %d quantity must be positive", ErrInvalidCart, i)
		}
		if item.Price.IsNegative() {
			return nil, fmt.Errorf("%w: item %d price must not be negative", ErrInvalidCart, i)
		}
		total = total.Add(item.Price.Mul(decimal.NewFromInt(item.Quantity)))
	}

	now := o.now().UTC()
	order := models.Order{
		ID:          uuid.NewString(),
		UserID:      userID,
		Items:       cart.Items,
		TotalAmount: total,
		Status:      models.StatusPending,
		CreatedAt:   &now,
		UpdatedAt:   &now,
	}

	if err := o.storage.CreateOrder(ctx, order); err != nil {
		if errors.Is(err, database.ErrDuplicateOrder) {
			return nil, ErrDuplicateOrder
		}
		return nil, err
	}

	o.publish(ctx, nil, &order)

	return &order, nil
}

// GetOrders returns the orders of a user, newest first.
func (o *OrderService) GetOrders(ctx context.Context, userID string) ([]models.Order, error) {
	orders, err := o.storage.FindOrdersByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	sort.Slice(orders, func(i, j int) bool {
		if orders[i].CreatedAt == nil || orders[j].CreatedAt == nil {
			return orders[j].CreatedAt == nil && orders[i].CreatedAt != nil
		}
		return orders[i].CreatedAt.After(*orders[j].CreatedAt)
	})

	return orders, nil
}

func (o *OrderService) UpdateOrderStatus(ctx context.Context, orderID string, status models.OrderStatus) (*models.Order, error) {
	canonical, ok := models.ParseOrderStatus(string(status))
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	before, after, err := o.storage.UpdateOrderStatus(ctx, orderID, canonical, o.now().UTC())
	if err != nil {
		if errors.Is(err, database.ErrOrderNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}

	o.publish(ctx, before, after)

	return after, nil
}

func (o *OrderService) DeleteOrder(ctx context.Context, orderID string) error {
	before, err := o.storage.DeleteOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, database.ErrOrderNotFound) {
			return ErrOrderNotFound
		}
		return err
	}

	o.publish(ctx, before, nil)

	return nil
}

// publish announces a committed write. A lost announcement leaves the
// aggregates stale until the next recompute, so it is logged and not returned.
func (o *OrderService) publish(ctx context.Context, before, after *models.Order) {
	if err := o.publisher.PublishOrderChange(ctx, before, after); err != nil {
		orderID := ""
		if after != nil {
			orderID = after.ID
		} else if before != nil {
			orderID = before.ID
		}
		logger.Log.Error("failed to publish order change", zap.String("orderID", orderID), zap.Error(err))
	}
}
