package services

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/Renal37/dessert-aggregator/internal/models"
)

var errStorageDown = errors.New("storage is down")

// memoryStorage keeps the aggregates in maps and follows the same apply rules
// as the Postgres store: one marker per event key, increments per month and
// removal of a month bucket once its order count reaches zero.
type memoryStorage struct {
	mu sync.Mutex

	summary   *models.Summary
	months    map[string]models.MonthlySales
	processed map[string]time.Time
	orders    map[string]models.Order
	users     int64

	applyCalls int
	calls      int
	failWith   error
}

func newMemoryStorage() *memoryStorage {
	return &memoryStorage{
		months:    map[string]models.MonthlySales{},
		processed: map[string]time.Time{},
		orders:    map[string]models.Order{},
	}
}

func (m *memoryStorage) ApplyDelta(_ context.Context, eventKey string, delta models.Delta, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	m.applyCalls++
	if m.failWith != nil {
		return false, m.failWith
	}

	if eventKey != "" {
		if _, ok := m.processed[eventKey]; ok {
			return false, nil
		}
		m.processed[eventKey] = now
	}

	if m.summary == nil {
		m.summary = &models.Summary{}
	}
	m.summary.TotalUsers += delta.Users
	m.summary.TotalOrders += delta.Orders
	m.summary.PendingDeliveries += delta.PendingDeliveries
	m.summary.TotalProductsSold += delta.ProductsSold
	m.summary.TotalRevenue = m.summary.TotalRevenue.Add(delta.Revenue)
	m.summary.UpdatedAt = now

	for _, month := range delta.Months {
		bucket, ok := m.months[month.Month.Key]
		if !ok {
			bucket = models.MonthlySales{
				MonthKey:      month.Month.Key,
				Month:         month.Month.Label,
				Year:          month.Month.Year,
				SortTimestamp: month.Month.SortTimestamp,
			}
		}
		bucket.SalesAmount = bucket.SalesAmount.Add(month.Sales)
		bucket.OrderCount += month.OrderCount

		if bucket.OrderCount == 0 {
			delete(m.months, month.Month.Key)
			continue
		}
		m.months[month.Month.Key] = bucket
	}

	return true, nil
}

func (m *memoryStorage) SaveSummary(_ context.Context, summary models.Summary) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	if m.failWith != nil {
		return m.failWith
	}
	m.summary = &summary
	return nil
}

func (m *memoryStorage) ReplaceMonthlySales(_ context.Context, months []models.MonthlySales) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	if m.failWith != nil {
		return m.failWith
	}
	m.months = map[string]models.MonthlySales{}
	for _, month := range months {
		m.months[month.MonthKey] = month
	}
	return nil
}

func (m *memoryStorage) SetRollingOrderCount(_ context.Context, count int64, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	if m.failWith != nil {
		return m.failWith
	}
	if m.summary == nil {
		m.summary = &models.Summary{}
	}
	m.summary.OrdersLast30Days = count
	m.summary.UpdatedAt = now
	return nil
}

func (m *memoryStorage) PurgeProcessedEvents(_ context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	if m.failWith != nil {
		return 0, m.failWith
	}
	var purged int64
	for key, processedAt := range m.processed {
		if processedAt.Before(before) {
			delete(m.processed, key)
			purged++
		}
	}
	return purged, nil
}

func (m *memoryStorage) FindSummary(_ context.Context) (*models.Summary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	if m.failWith != nil {
		return nil, m.failWith
	}
	if m.summary == nil {
		return nil, nil
	}
	summary := *m.summary
	return &summary, nil
}

func (m *memoryStorage) FindMonthlySales(_ context.Context) ([]models.MonthlySales, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	if m.failWith != nil {
		return nil, m.failWith
	}
	result := make([]models.MonthlySales, 0, len(m.months))
	for _, month := range m.months {
		result = append(result, month)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].MonthKey < result[j].MonthKey })
	return result, nil
}

func (m *memoryStorage) FindAllOrders(_ context.Context) ([]models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	if m.failWith != nil {
		return nil, m.failWith
	}
	result := make([]models.Order, 0, len(m.orders))
	for _, order := range m.orders {
		result = append(result, order)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (m *memoryStorage) CountOrdersSince(_ context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	if m.failWith != nil {
		return 0, m.failWith
	}
	var count int64
	for _, order := range m.orders {
		if order.CreatedAt != nil && !order.CreatedAt.Before(cutoff) {
			count++
		}
	}
	return count, nil
}

func (m *memoryStorage) CountUsers(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	if m.failWith != nil {
		return 0, m.failWith
	}
	return m.users, nil
}

func (m *memoryStorage) month(key string) (models.MonthlySales, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	month, ok := m.months[key]
	return month, ok
}

func (m *memoryStorage) snapshot() (models.Summary, map[string]models.MonthlySales) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var summary models.Summary
	if m.summary != nil {
		summary = *m.summary
	}
	months := make(map[string]models.MonthlySales, len(m.months))
	for key, month := range m.months {
		months[key] = month
	}
	return summary, months
}
