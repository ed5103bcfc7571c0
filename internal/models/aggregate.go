package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Summary is the singleton record of business counters shown on the dashboard.
type Summary struct {
	TotalUsers        int64           `json:"totalUsers"`
	TotalOrders       int64           `json:"totalOrdersAllTime"`
	OrdersLast30Days  int64           `json:"ordersLast30Days"`
	PendingDeliveries int64           `json:"pendingDeliveries"`
	TotalProductsSold int64           `json:"totalProductsSold"`
	TotalRevenue      decimal.Decimal `json:"totalRevenue"`
	UpdatedAt         time.Time       `json:"lastUpdated"`
}

// MonthKey identifies a calendar month bucket together with its display fields.
type MonthKey struct {
	Key           string
	Label         string
	Year          int
	SortTimestamp time.Time
}

// MonthlySales is the sales rollup of one calendar month.
type MonthlySales struct {
	MonthKey      string          `json:"monthKey"`
	Month         string          `json:"month"`
	Year          int             `json:"year"`
	SalesAmount   decimal.Decimal `json:"salesAmount"`
	OrderCount    int64           `json:"orderCount"`
	SortTimestamp time.Time       `json:"sortTimestamp"`
}

type MonthDelta struct {
	Month      MonthKey
	Sales      decimal.Decimal
	OrderCount int64
}

// Delta is the signed change to the stored aggregates caused by one event.
type Delta struct {
	Users             int64
	Orders            int64
	Revenue           decimal.Decimal
	ProductsSold      int64
	PendingDeliveries int64
	Months            []MonthDelta
}

func (d Delta) IsZero() bool {
	return d.Users == 0 &&
		d.Orders == 0 &&
		d.Revenue.IsZero() &&
		d.ProductsSold == 0 &&
		d.PendingDeliveries == 0 &&
		len(d.Months) == 0
}

// HandleResult reports what happened to a single order event.
type HandleResult struct {
	Key       string
	Kind      ChangeKind
	Delta     Delta
	Applied   bool
	NoOp      bool
	Duplicate bool
}

type RecomputeResult struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Orders  int    `json:"orders"`
	Months  int    `json:"months"`
}
