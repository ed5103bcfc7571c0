package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	StatusPending   OrderStatus = "Pending"
	StatusPreparing OrderStatus = "Preparing"
	StatusShipped   OrderStatus = "Shipped"
	StatusDelivered OrderStatus = "Delivered"
	StatusCancelled OrderStatus = "Cancelled"
	StatusRefunded  OrderStatus = "Refunded"
)

// legacyForDelivery is the storefront's older name for StatusShipped.
const legacyForDelivery = "for delivery"

var knownStatuses = []OrderStatus{
	StatusPending,
	StatusPreparing,
	StatusShipped,
	StatusDelivered,
	StatusCancelled,
	StatusRefunded,
}

// ParseOrderStatus maps a stored status string onto the canonical enumeration.
// The second result is false for values outside of it.
func ParseOrderStatus(s string) (OrderStatus, bool) {
	normalized := strings.ToLower(strings.TrimSpace(s))
	if normalized == legacyForDelivery {
		return StatusShipped, true
	}

	for _, status := range knownStatuses {
		if strings.ToLower(string(status)) == normalized {
			return status, true
		}
	}

	return OrderStatus(s), false
}

// IsPendingLike reports whether the status counts toward pending deliveries.
// Only Pending and Shipped (formerly "For Delivery") are counted.
func (s OrderStatus) IsPendingLike() bool {
	return s == StatusPending || s == StatusShipped
}

type LineItem struct {
	ProductID string          `json:"productId"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int64           `json:"quantity"`
	Image     string          `json:"image,omitempty"`
}

type Order struct {
	ID          string          `json:"id"`
	UserID      string          `json:"userId,omitempty"`
	Items       []LineItem      `json:"items"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
	Status      OrderStatus     `json:"status"`
	CreatedAt   *time.Time      `json:"createdAt,omitempty"`
	UpdatedAt   *time.Time      `json:"updatedAt,omitempty"`
}

// ItemsQuantity returns the number of units across all line items.
func (o *Order) ItemsQuantity() int64 {
	var total int64
	for _, item := range o.Items {
		total += item.Quantity
	}
	return total
}

// Cart is the checkout request of the storefront.
type Cart struct {
	Items []LineItem `json:"items"`
}
