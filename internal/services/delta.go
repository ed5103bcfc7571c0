package services

import (
	"time"

	"github.com/Renal37/dessert-aggregator/internal/models"
)

func pendingWeight(order *models.Order) int64 {
	if order.Status.IsPendingLike() {
		return 1
	}
	return 0
}

// ComputeDelta derives the aggregate change caused by one order write.
// before is nil on creation and after is nil on deletion.
func ComputeDelta(before, after *models.Order, loc *time.Location) models.Delta {
	var delta models.Delta

	switch {
	case before == nil && after == nil:
		return delta
	case before == nil:
		delta.Orders = 1
		delta.Revenue = after.TotalAmount
		delta.ProductsSold = after.ItemsQuantity()
		delta.PendingDeliveries = pendingWeight(after)
		if after.CreatedAt != nil {
			delta.Months = append(delta.Months, models.MonthDelta{
				Month:      ResolveMonth(*after.CreatedAt, loc),
				Sales:      after.TotalAmount,
				OrderCount: 1,
			})
		}
	case after == nil:
		delta.Orders = -1
		delta.Revenue = before.TotalAmount.Neg()
		delta.ProductsSold = -before.ItemsQuantity()
		delta.PendingDeliveries = -pendingWeight(before)
		if before.CreatedAt != nil {
			delta.Months = append(delta.Months, models.MonthDelta{
				Month:      ResolveMonth(*before.CreatedAt, loc),
				Sales:      before.TotalAmount.Neg(),
				OrderCount: -1,
			})
		}
	default:
		delta.Revenue = after.TotalAmount.Sub(before.TotalAmount)
		delta.ProductsSold = after.ItemsQuantity() - before.ItemsQuantity()
		delta.PendingDeliveries = pendingWeight(after) - pendingWeight(before)
		delta.Months = monthTransfer(before, after, loc)
	}

	return delta
}

// monthTransfer handles the bucket side of an update. The creation time is
// immutable in practice, but a moved timestamp still has to move the sales.
func monthTransfer(before, after *models.Order, loc *time.Location) []models.MonthDelta {
	var months []models.MonthDelta

	if before.CreatedAt != nil && after.CreatedAt != nil {
		from := ResolveMonth(*before.CreatedAt, loc)
		to := ResolveMonth(*after.CreatedAt, loc)

		if from.Key == to.Key {
			change := after.TotalAmount.Sub(before.TotalAmount)
			if change.IsZero() {
				return nil
			}
			return append(months, models.MonthDelta{Month: to, Sales: change})
		}

		return append(months,
			models.MonthDelta{Month: from, Sales: before.TotalAmount.Neg(), OrderCount: -1},
			models.MonthDelta{Month: to, Sales: after.TotalAmount, OrderCount: 1},
		)
	}

	if before.CreatedAt != nil {
		months = append(months, models.MonthDelta{
			Month:      ResolveMonth(*before.CreatedAt, loc),
			Sales:      before.TotalAmount.Neg(),
			OrderCount: -1,
		})
	}

	if after.CreatedAt != nil {
		months = append(months, models.MonthDelta{
			Month:      ResolveMonth(*after.CreatedAt, loc),
			Sales:      after.TotalAmount,
			OrderCount: 1,
		})
	}

	return months
}

// mergeDelta adds next into acc, folding month deltas by key.
func mergeDelta(acc *models.Delta, next models.Delta) {
	acc.Users += next.Users
	acc.Orders += next.Orders
	acc.Revenue = acc.Revenue.Add(next.Revenue)
	acc.ProductsSold += next.ProductsSold
	acc.PendingDeliveries += next.PendingDeliveries

	for _, month := range next.Months {
		found := false
		for i := range acc.Months {
			if acc.Months[i].Month.Key == month.Month.Key {
				acc.Months[i].Sales = acc.Months[i].Sales.Add(month.Sales)
				acc.Months[i].OrderCount += month.OrderCount
				found = true
				break
			}
		}
		if !found {
			acc.Months = append(acc.Months, month)
		}
	}
}

// contribution is what a single existing order adds to the aggregates.
func contribution(order *models.Order, loc *time.Location) models.Delta {
	return ComputeDelta(nil, order, loc)
}
