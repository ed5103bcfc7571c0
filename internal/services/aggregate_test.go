package services

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"testing"
	"time"

	"github.com/Renal37/dessert-aggregator/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var admin = models.Caller{UserID: "1", Login: "admin", Admin: true}

func dec(value string) decimal.Decimal {
	return decimal.RequireFromString(value)
}

func assertDecimal(t *testing.T, expected string, actual decimal.Decimal, msgAndArgs ...interface{}) {
	t.Helper()
	assert.Truef(t, dec(expected).Equal(actual), "expected %s, got %s %v", expected, actual.String(), msgAndArgs)
}

func at(value string) *time.Time {
	parsed, err := time.Parse(time.RFC3339, value)
	if err != nil {
		panic(err)
	}
	return &parsed
}

// dessertOrder builds an order whose total is the item sum plus the 60 delivery fee.
func dessertOrder(id, createdAt string, status models.OrderStatus, items ...models.LineItem) *models.Order {
	total := DefaultDeliveryFee
	for _, item := range items {
		total = total.Add(item.Price.Mul(decimal.NewFromInt(item.Quantity)))
	}

	order := &models.Order{
		ID:          id,
		UserID:      "7",
		Items:       items,
		TotalAmount: total,
		Status:      status,
	}
	if createdAt != "" {
		order.CreatedAt = at(createdAt)
	}
	return order
}

func item(productID string, price int64, quantity int64) models.LineItem {
	return models.LineItem{ProductID: productID, Name: productID, Price: decimal.NewFromInt(price), Quantity: quantity}
}

func cloneOrder(order *models.Order) *models.Order {
	if order == nil {
		return nil
	}
	clone := *order
	clone.Items = append([]models.LineItem(nil), order.Items...)
	if order.CreatedAt != nil {
		createdAt := *order.CreatedAt
		clone.CreatedAt = &createdAt
	}
	return &clone
}

func newTestAggregateService(storage aggregateStorage, now time.Time) *AggregateService {
	service := NewAggregateService(storage, AggregateConfig{})
	service.now = func() time.Time { return now }
	return service
}

func TestAggregateService_Scenario(t *testing.T) {
	storage := newMemoryStorage()
	service := newTestAggregateService(storage, *at("2025-08-10T12:00:00Z"))
	ctx := context.Background()

	orderA := dessertOrder("A", "2025-07-05T10:00:00Z", models.StatusPending, item("cake", 700, 2))
	orderB := dessertOrder("B", "2025-07-20T10:00:00Z", models.StatusDelivered, item("cake", 700, 1))
	orderC := dessertOrder("C", "2025-08-02T10:00:00Z", models.StatusPending, item("cake", 700, 3))

	assertDecimal(t, "1460", orderA.TotalAmount)
	assertDecimal(t, "760", orderB.TotalAmount)
	assertDecimal(t, "2160", orderC.TotalAmount)

	for i, order := range []*models.Order{orderA, orderB, orderC} {
		result, err := service.Handle(ctx, models.OrderChange{EventID: fmt.Sprintf("create-%d", i), After: order})
		require.NoError(t, err)
		assert.True(t, result.Applied)
		assert.Equal(t, models.ChangeCreated, result.Kind)
	}

	summary, err := service.GetSummary(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), summary.TotalOrders)
	assertDecimal(t, "4380", summary.TotalRevenue)
	assert.Equal(t, int64(6), summary.TotalProductsSold)
	assert.Equal(t, int64(2), summary.PendingDeliveries)

	july, ok := storage.month("2025-07")
	require.True(t, ok)
	assertDecimal(t, "2220", july.SalesAmount)
	assert.Equal(t, int64(2), july.OrderCount)
	assert.Equal(t, "Jul", july.Month)

	august, ok := storage.month("2025-08")
	require.True(t, ok)
	assertDecimal(t, "2160", august.SalesAmount)

	result, err := service.Handle(ctx, models.OrderChange{EventID: "delete-B", Before: orderB})
	require.NoError(t, err)
	assert.Equal(t, models.ChangeDeleted, result.Kind)

	summary, err = service.GetSummary(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), summary.TotalOrders)
	assertDecimal(t, "3620", summary.TotalRevenue)
	assert.Equal(t, int64(5), summary.TotalProductsSold)
	assert.Equal(t, int64(2), summary.PendingDeliveries)

	july, ok = storage.month("2025-07")
	require.True(t, ok)
	assertDecimal(t, "1460", july.SalesAmount)
	assert.Equal(t, int64(1), july.OrderCount)
}

func TestAggregateService_HandleRedelivery(t *testing.T) {
	storage := newMemoryStorage()
	service := newTestAggregateService(storage, *at("2025-07-10T00:00:00Z"))
	ctx := context.Background()

	change := models.OrderChange{
		EventID: "evt-1",
		After:   dessertOrder("A", "2025-07-05T10:00:00Z", models.StatusPending, item("tart", 250, 2)),
	}

	first, err := service.Handle(ctx, change)
	require.NoError(t, err)
	assert.True(t, first.Applied)
	assert.False(t, first.Duplicate)

	before, beforeMonths := storage.snapshot()

	second, err := service.Handle(ctx, change)
	require.NoError(t, err)
	assert.False(t, second.Applied)
	assert.True(t, second.Duplicate)
	assert.Equal(t, first.Key, second.Key)

	after, afterMonths := storage.snapshot()
	assert.Equal(t, before.TotalOrders, after.TotalOrders)
	assertDecimal(t, before.TotalRevenue.String(), after.TotalRevenue)
	assert.Equal(t, len(beforeMonths), len(afterMonths))
	assertDecimal(t, "560", afterMonths["2025-07"].SalesAmount)
}

func TestAggregateService_HandleNoOp(t *testing.T) {
	storage := newMemoryStorage()
	service := newTestAggregateService(storage, *at("2025-07-10T00:00:00Z"))

	order := dessertOrder("A", "2025-07-05T10:00:00Z", models.StatusPending, item("tart", 250, 2))
	touched := cloneOrder(order)
	touched.UpdatedAt = at("2025-07-06T10:00:00Z")

	testCases := []struct {
		testName string
		after    *models.Order
	}{
		{testName: "identical snapshots", after: cloneOrder(order)},
		{testName: "only update time changed", after: touched},
		{testName: "status change inside the pending set", after: func() *models.Order {
			shipped := cloneOrder(order)
			shipped.Status = models.StatusShipped
			return shipped
		}()},
	}

	for _, tc := range testCases {
		t.Run(tc.testName, func(t *testing.T) {
			result, err := service.Handle(context.Background(), models.OrderChange{EventID: tc.testName, Before: order, After: tc.after})
			require.NoError(t, err)
			assert.True(t, result.NoOp)
			assert.False(t, result.Applied)
			assert.Equal(t, 0, storage.applyCalls)
		})
	}
}

func TestAggregateService_HandlePendingTransitions(t *testing.T) {
	storage := newMemoryStorage()
	service := newTestAggregateService(storage, *at("2025-07-10T00:00:00Z"))
	ctx := context.Background()

	current := dessertOrder("A", "2025-07-05T10:00:00Z", models.StatusPending, item("eclair", 120, 1))
	_, err := service.Handle(ctx, models.OrderChange{EventID: "create", After: current})
	require.NoError(t, err)

	steps := []struct {
		status          models.OrderStatus
		expectedPending int64
	}{
		{status: models.StatusPreparing, expectedPending: 0},
		{status: models.StatusShipped, expectedPending: 1},
		{status: models.StatusDelivered, expectedPending: 0},
		{status: models.StatusRefunded, expectedPending: 0},
		{status: models.OrderStatus("Lost In Transit"), expectedPending: 0},
		{status: models.StatusPending, expectedPending: 1},
	}

	for i, step := range steps {
		next := cloneOrder(current)
		next.Status = step.status

		_, err := service.Handle(ctx, models.OrderChange{EventID: fmt.Sprintf("update-%d", i), Before: current, After: next})
		require.NoError(t, err)

		summary, err := service.GetSummary(ctx)
		require.NoError(t, err)
		assert.Equalf(t, step.expectedPending, summary.PendingDeliveries, "after moving to %s", step.status)
		assert.Equal(t, int64(1), summary.TotalOrders)

		current = next
	}
}

func TestAggregateService_HandleErrors(t *testing.T) {
	storage := newMemoryStorage()
	service := newTestAggregateService(storage, *at("2025-07-10T00:00:00Z"))

	_, err := service.Handle(context.Background(), models.OrderChange{EventID: "empty"})
	assert.ErrorIs(t, err, ErrEmptyChange)
	assert.Equal(t, 0, storage.calls)

	storage.failWith = errStorageDown
	result, err := service.Handle(context.Background(), models.OrderChange{
		EventID: "evt",
		After:   dessertOrder("A", "2025-07-05T10:00:00Z", models.StatusPending, item("tart", 250, 1)),
	})
	assert.ErrorIs(t, err, errStorageDown)
	assert.False(t, result.Applied)
	assert.False(t, result.Duplicate)
}

func TestAggregateService_HandleUserCreated(t *testing.T) {
	storage := newMemoryStorage()
	service := newTestAggregateService(storage, *at("2025-07-10T00:00:00Z"))
	ctx := context.Background()

	event := models.UserCreated{EventID: "user-evt", UserID: "42"}

	result, err := service.HandleUserCreated(ctx, event)
	require.NoError(t, err)
	assert.True(t, result.Applied)

	result, err = service.HandleUserCreated(ctx, event)
	require.NoError(t, err)
	assert.True(t, result.Duplicate)

	summary, err := service.GetSummary(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), summary.TotalUsers)
	assert.Equal(t, int64(0), summary.TotalOrders)
}

func TestEventKey(t *testing.T) {
	order := dessertOrder("A", "2025-07-05T10:00:00Z", models.StatusPending, item("tart", 250, 1))
	changed := cloneOrder(order)
	changed.Status = models.StatusDelivered

	base := EventKey(models.OrderChange{EventID: "evt-1", Before: order, After: changed})

	assert.Len(t, base, 64)
	assert.Equal(t, base, EventKey(models.OrderChange{EventID: "evt-1", Before: cloneOrder(order), After: cloneOrder(changed)}))
	assert.NotEqual(t, base, EventKey(models.OrderChange{EventID: "evt-2", Before: order, After: changed}))
	assert.NotEqual(t, base, EventKey(models.OrderChange{EventID: "evt-1", Before: changed, After: order}))
	assert.NotEqual(t, base, EventKey(models.OrderChange{EventID: "evt-1", After: changed}))
}

func TestAggregateService_IncrementalMatchesRecompute(t *testing.T) {
	storage := newMemoryStorage()
	service := newTestAggregateService(storage, *at("2025-12-31T00:00:00Z"))
	ctx := context.Background()
	rng := rand.New(rand.NewSource(20250705))

	statuses := []models.OrderStatus{
		models.StatusPending,
		models.StatusPreparing,
		models.StatusShipped,
		models.StatusDelivered,
		models.StatusCancelled,
		models.StatusRefunded,
		models.OrderStatus("Mystery"),
	}
	base := *at("2025-01-01T00:00:00Z")

	randomItems := func() []models.LineItem {
		items := make([]models.LineItem, rng.Intn(3)+1)
		for i := range items {
			items[i] = models.LineItem{
				ProductID: fmt.Sprintf("p%d", rng.Intn(10)),
				Price:     decimal.New(rng.Int63n(90000)+1000, -2),
				Quantity:  rng.Int63n(4) + 1,
			}
		}
		return items
	}
	total := func(items []models.LineItem) decimal.Decimal {
		sum := DefaultDeliveryFee
		for _, item := range items {
			sum = sum.Add(item.Price.Mul(decimal.NewFromInt(item.Quantity)))
		}
		return sum
	}
	randomTime := func() *time.Time {
		if rng.Intn(25) == 0 {
			return nil
		}
		value := base.Add(time.Duration(rng.Int63n(int64(364 * 24 * time.Hour))))
		return &value
	}

	apply := func(change models.OrderChange) {
		_, err := service.Handle(ctx, change)
		require.NoError(t, err)
		if rng.Intn(10) == 0 {
			result, err := service.Handle(ctx, change)
			require.NoError(t, err)
			assert.False(t, result.Applied)
		}
	}

	nextID := 0
	for step := 0; step < 500; step++ {
		ids := make([]string, 0, len(storage.orders))
		for id := range storage.orders {
			ids = append(ids, id)
		}
		sort.Strings(ids)

		eventID := fmt.Sprintf("evt-%d", step)

		if len(ids) == 0 || rng.Intn(3) == 0 {
			nextID++
			items := randomItems()
			order := &models.Order{
				ID:          fmt.Sprintf("order-%d", nextID),
				Items:       items,
				TotalAmount: total(items),
				Status:      statuses[rng.Intn(len(statuses))],
				CreatedAt:   randomTime(),
			}
			storage.orders[order.ID] = *cloneOrder(order)
			apply(models.OrderChange{EventID: eventID, After: order})
			continue
		}

		current := storage.orders[ids[rng.Intn(len(ids))]]
		before := cloneOrder(&current)

		if rng.Intn(5) == 0 {
			delete(storage.orders, current.ID)
			apply(models.OrderChange{EventID: eventID, Before: before})
			continue
		}

		after := cloneOrder(&current)
		switch rng.Intn(4) {
		case 0, 1:
			after.Status = statuses[rng.Intn(len(statuses))]
		case 2:
			after.Items = randomItems()
			after.TotalAmount = total(after.Items)
		case 3:
			after.CreatedAt = randomTime()
		}
		storage.orders[after.ID] = *cloneOrder(after)
		apply(models.OrderChange{EventID: eventID, Before: before, After: after})
	}

	incremental, incrementalMonths := storage.snapshot()

	_, err := service.Recompute(ctx, admin)
	require.NoError(t, err)

	recomputed, recomputedMonths := storage.snapshot()

	assert.Equal(t, recomputed.TotalOrders, incremental.TotalOrders)
	assert.Equal(t, int64(len(storage.orders)), recomputed.TotalOrders)
	assertDecimal(t, recomputed.TotalRevenue.String(), incremental.TotalRevenue)
	assert.Equal(t, recomputed.TotalProductsSold, incremental.TotalProductsSold)
	assert.Equal(t, recomputed.PendingDeliveries, incremental.PendingDeliveries)

	require.Equal(t, len(recomputedMonths), len(incrementalMonths))
	for key, month := range recomputedMonths {
		got, ok := incrementalMonths[key]
		require.Truef(t, ok, "month %s missing from incremental state", key)
		assertDecimal(t, month.SalesAmount.String(), got.SalesAmount, key)
		assert.Equalf(t, month.OrderCount, got.OrderCount, "order count of %s", key)
		assert.Equal(t, month.Month, got.Month)
		assert.True(t, month.SortTimestamp.Equal(got.SortTimestamp))
	}
}

func TestAggregateService_Recompute(t *testing.T) {
	now := *at("2025-08-10T12:00:00Z")
	storage := newMemoryStorage()
	storage.users = 4
	for _, order := range []*models.Order{
		dessertOrder("A", "2025-07-05T10:00:00Z", models.StatusPending, item("cake", 700, 2)),
		dessertOrder("B", "2025-07-20T10:00:00Z", models.StatusDelivered, item("cake", 700, 1)),
		dessertOrder("C", "2025-08-02T10:00:00Z", models.StatusShipped, item("cake", 700, 3)),
		dessertOrder("D", "", models.StatusPending, item("cookie", 100, 1)),
	} {
		storage.orders[order.ID] = *order
	}

	// stale values are replaced, not added to
	storage.summary = &models.Summary{TotalOrders: 99, TotalRevenue: dec("1")}
	storage.months["2024-01"] = models.MonthlySales{MonthKey: "2024-01", SalesAmount: dec("5"), OrderCount: 1}

	service := newTestAggregateService(storage, now)

	result, err := service.Recompute(context.Background(), admin)
	require.NoError(t, err)
	assert.Equal(t, "ok", result.Status)
	assert.Equal(t, 4, result.Orders)
	assert.Equal(t, 2, result.Months)
	assert.Equal(t, "rebuilt aggregates from 4 orders and 4 users", result.Message)

	summary, err := service.GetSummary(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(4), summary.TotalUsers)
	assert.Equal(t, int64(4), summary.TotalOrders)
	assert.Equal(t, int64(2), summary.OrdersLast30Days)
	assert.Equal(t, int64(3), summary.PendingDeliveries)
	assert.Equal(t, int64(7), summary.TotalProductsSold)
	assertDecimal(t, "4540", summary.TotalRevenue)
	assert.True(t, now.Equal(summary.UpdatedAt))

	months, err := service.GetMonthlySales(context.Background())
	require.NoError(t, err)
	require.Len(t, months, 2)
	assert.Equal(t, "2025-07", months[0].MonthKey)
	assertDecimal(t, "2220", months[0].SalesAmount)
	assert.Equal(t, "2025-08", months[1].MonthKey)
	assertDecimal(t, "2160", months[1].SalesAmount)
}

func TestAggregateService_RecomputeErrors(t *testing.T) {
	t.Run("caller without admin claim", func(t *testing.T) {
		storage := newMemoryStorage()
		service := newTestAggregateService(storage, time.Now())

		_, err := service.Recompute(context.Background(), models.Caller{UserID: "7", Login: "customer"})
		assert.ErrorIs(t, err, ErrPermissionDenied)
		assert.Equal(t, 0, storage.calls)
	})

	t.Run("storage failure", func(t *testing.T) {
		storage := newMemoryStorage()
		storage.failWith = errStorageDown
		service := newTestAggregateService(storage, time.Now())

		_, err := service.Recompute(context.Background(), admin)
		assert.ErrorIs(t, err, ErrRecomputeFailed)
		assert.ErrorIs(t, err, errStorageDown)
	})
}

func TestAggregateService_GetSummaryBeforeFirstWrite(t *testing.T) {
	service := newTestAggregateService(newMemoryStorage(), time.Now())

	summary, err := service.GetSummary(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), summary.TotalOrders)
	assert.True(t, summary.TotalRevenue.IsZero())
}

func TestAggregateService_RefreshRollingCount(t *testing.T) {
	now := *at("2025-08-31T12:00:00Z")
	storage := newMemoryStorage()
	for _, order := range []*models.Order{
		dessertOrder("old", "2025-07-01T12:00:00Z", models.StatusDelivered),
		dessertOrder("edge", "2025-08-01T12:00:00Z", models.StatusDelivered),
		dessertOrder("recent", "2025-08-30T12:00:00Z", models.StatusPending),
	} {
		storage.orders[order.ID] = *order
	}

	service := newTestAggregateService(storage, now)

	count, err := service.RefreshRollingCount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	summary, err := service.GetSummary(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), summary.OrdersLast30Days)
}

func TestAggregateService_PurgeProcessedEvents(t *testing.T) {
	now := *at("2025-08-31T12:00:00Z")
	storage := newMemoryStorage()
	storage.processed["stale"] = now.Add(-8 * 24 * time.Hour)
	storage.processed["fresh"] = now.Add(-time.Hour)

	service := newTestAggregateService(storage, now)

	purged, err := service.PurgeProcessedEvents(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), purged)
	assert.Contains(t, storage.processed, "fresh")
	assert.NotContains(t, storage.processed, "stale")
}

type recordingScheduler struct {
	enqueued  []Job
	scheduled []time.Duration
}

func (s *recordingScheduler) Enqueue(job Job) error {
	s.enqueued = append(s.enqueued, job)
	return nil
}

func (s *recordingScheduler) ScheduleJob(job Job, delay time.Duration) {
	s.enqueued = append(s.enqueued, job)
	s.scheduled = append(s.scheduled, delay)
}

func TestAggregateService_ScheduleMaintenance(t *testing.T) {
	storage := newMemoryStorage()
	storage.orders["A"] = *dessertOrder("A", "2025-08-30T12:00:00Z", models.StatusPending)

	service := NewAggregateService(storage, AggregateConfig{RollingInterval: 15 * time.Minute})
	service.now = func() time.Time { return *at("2025-08-31T12:00:00Z") }

	scheduler := &recordingScheduler{}
	require.NoError(t, service.ScheduleMaintenance(scheduler))
	require.Len(t, scheduler.enqueued, 1)

	scheduler.enqueued[0](context.Background())
	assert.Equal(t, []time.Duration{15 * time.Minute}, scheduler.scheduled)
	assert.Equal(t, int64(1), storage.summary.OrdersLast30Days)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	scheduler.enqueued[1](ctx)
	assert.Len(t, scheduler.scheduled, 1)
}
