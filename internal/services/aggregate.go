package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/Renal37/dessert-aggregator/internal/logger"
	"github.com/Renal37/dessert-aggregator/internal/models"
	"go.uber.org/zap"
)

var (
	ErrPermissionDenied = errors.New("permission denied")
	ErrRecomputeFailed  = errors.New("aggregate recompute failed")
	ErrEmptyChange      = errors.New("order change carries no snapshot")
)

// RollingWindow is the trailing period counted in Summary.OrdersLast30Days.
const RollingWindow = 30 * 24 * time.Hour

type AggregateConfig struct {
	Location        *time.Location // calendar used for month buckets
	RollingInterval time.Duration  // how often the rolling count is refreshed
	EventRetention  time.Duration  // how long processed-event markers are kept
}

// AggregateService maintains the dashboard summary and monthly sales from order events.
type AggregateService struct {
	storage aggregateStorage
	config  AggregateConfig
	now     func() time.Time
}

type aggregateStorage interface {
	ApplyDelta(ctx context.Context, eventKey string, delta models.Delta, now time.Time) (bool, error)

	SaveSummary(ctx context.Context, summary models.Summary) error

	ReplaceMonthlySales(ctx context.Context, months []models.MonthlySales) error

	SetRollingOrderCount(ctx context.Context, count int64, now time.Time) error

	PurgeProcessedEvents(ctx context.Context, before time.Time) (int64, error)

	FindSummary(ctx context.Context) (*models.Summary, error)

	FindMonthlySales(ctx context.Context) ([]models.MonthlySales, error)

	FindAllOrders(ctx context.Context) ([]models.Order, error)

	CountOrdersSince(ctx context.Context, cutoff time.Time) (int64, error)

	CountUsers(ctx context.Context) (int64, error)
}

type jobScheduler interface {
	Enqueue(job Job) error

	ScheduleJob(job Job, delay time.Duration)
}

func NewAggregateService(storage aggregateStorage, config AggregateConfig) *AggregateService {
	if config.Location == nil {
		config.Location = time.UTC
	}
	if config.RollingInterval <= 0 {
		config.RollingInterval = time.Hour
	}
	if config.EventRetention <= 0 {
		config.EventRetention = 7 * 24 * time.Hour
	}

	return &AggregateService{
		storage: storage,
		config:  config,
		now:     time.Now,
	}
}

// EventKey identifies a logical order event so that redeliveries can be recognised.
func EventKey(change models.OrderChange) string {
	before, _ := json.Marshal(change.Before)
	after, _ := json.Marshal(change.After)

	hash := sha256.New()
	hash.Write([]byte(models.EventOrderChanged))
	hash.Write([]byte{0})
	hash.Write([]byte(change.EventID))
	hash.Write([]byte{0})
	hash.Write([]byte(change.OrderID()))
	hash.Write([]byte{0})
	hash.Write(before)
	hash.Write([]byte{0})
	hash.Write(after)

	return hex.EncodeToString(hash.Sum(nil))
}

func userEventKey(event models.UserCreated) string {
	sum := sha256.Sum256([]byte(string(models.EventUserCreated) + "\x00" + event.EventID + "\x00" + event.UserID))
	return hex.EncodeToString(sum[:])
}

// Handle applies the aggregate change of one order write. Identical
// redeliveries are detected through the event key and change nothing.
func (as *AggregateService) Handle(ctx context.Context, change models.OrderChange) (models.HandleResult, error) {
	if change.Before == nil && change.After == nil {
		return models.HandleResult{}, ErrEmptyChange
	}

	for _, warning := range change.Warnings {
		logger.Log.Warn("order data quality", zap.String("eventID", change.EventID), zap.String("problem", warning))
	}

	result := models.HandleResult{
		Key:   EventKey(change),
		Kind:  change.Kind(),
		Delta: ComputeDelta(change.Before, change.After, as.config.Location),
	}

	if result.Delta.IsZero() {
		result.NoOp = true
		logger.Log.Debug("order event changes no aggregate",
			zap.String("orderID", change.OrderID()),
			zap.String("kind", string(result.Kind)),
		)
		return result, nil
	}

	applied, err := as.storage.ApplyDelta(ctx, result.Key, result.Delta, as.now())
	if err != nil {
		return result, fmt.Errorf("failed to apply order delta: %w", err)
	}

	result.Applied = applied
	result.Duplicate = !applied

	if result.Duplicate {
		logger.Log.Info("skipped redelivered order event",
			zap.String("orderID", change.OrderID()),
			zap.String("key", result.Key),
		)
		return result, nil
	}

	logger.Log.Info("applied order delta",
		zap.String("orderID", change.OrderID()),
		zap.String("kind", string(result.Kind)),
		zap.Int64("orders", result.Delta.Orders),
		zap.String("revenue", result.Delta.Revenue.String()),
		zap.Int64("productsSold", result.Delta.ProductsSold),
		zap.Int64("pendingDeliveries", result.Delta.PendingDeliveries),
		zap.Int("months", len(result.Delta.Months)),
	)

	return result, nil
}

// HandleUserCreated counts a newly registered user.
func (as *AggregateService) HandleUserCreated(ctx context.Context, event models.UserCreated) (models.HandleResult, error) {
	result := models.HandleResult{
		Key:   userEventKey(event),
		Delta: models.Delta{Users: 1},
	}

	applied, err := as.storage.ApplyDelta(ctx, result.Key, result.Delta, as.now())
	if err != nil {
		return result, fmt.Errorf("failed to apply user delta: %w", err)
	}

	result.Applied = applied
	result.Duplicate = !applied

	return result, nil
}

// RefreshRollingCount recounts the orders created within RollingWindow.
func (as *AggregateService) RefreshRollingCount(ctx context.Context) (int64, error) {
	now := as.now()

	count, err := as.storage.CountOrdersSince(ctx, now.Add(-RollingWindow))
	if err != nil {
		return 0, fmt.Errorf("failed to count recent orders: %w", err)
	}

	if err := as.storage.SetRollingOrderCount(ctx, count, now); err != nil {
		return 0, fmt.Errorf("failed to save recent orders count: %w", err)
	}

	return count, nil
}

// PurgeProcessedEvents drops event markers older than the configured retention.
func (as *AggregateService) PurgeProcessedEvents(ctx context.Context) (int64, error) {
	purged, err := as.storage.PurgeProcessedEvents(ctx, as.now().Add(-as.config.EventRetention))
	if err != nil {
		return 0, fmt.Errorf("failed to purge processed events: %w", err)
	}
	return purged, nil
}

func (as *AggregateService) runMaintenance(ctx context.Context) {
	count, err := as.RefreshRollingCount(ctx)
	if err != nil {
		logger.Log.Error("failed to refresh rolling order count", zap.Error(err))
	} else {
		logger.Log.Info("refreshed rolling order count", zap.Int64("ordersLast30Days", count))
	}

	purged, err := as.PurgeProcessedEvents(ctx)
	if err != nil {
		logger.Log.Error("failed to purge processed events", zap.Error(err))
		return
	}
	if purged > 0 {
		logger.Log.Info("purged processed events", zap.Int64("count", purged))
	}
}

// ScheduleMaintenance runs the rolling count refresh now and then once per
// RollingInterval until the queue stops.
func (as *AggregateService) ScheduleMaintenance(queue jobScheduler) error {
	var job Job
	job = func(ctx context.Context) {
		if ctx.Err() != nil {
			return
		}
		as.runMaintenance(ctx)
		queue.ScheduleJob(job, as.config.RollingInterval)
	}

	return queue.Enqueue(job)
}

// Recompute rebuilds the summary and every monthly bucket from the stored
// orders and users. Only administrators may run it.
func (as *AggregateService) Recompute(ctx context.Context, caller models.Caller) (models.RecomputeResult, error) {
	if !caller.Admin {
		logger.Log.Warn("rejected aggregate recompute", zap.String("login", caller.Login))
		return models.RecomputeResult{}, ErrPermissionDenied
	}

	now := as.now()
	cutoff := now.Add(-RollingWindow)

	users, err := as.storage.CountUsers(ctx)
	if err != nil {
		return models.RecomputeResult{}, fmt.Errorf("%w: counting users: %w", ErrRecomputeFailed, err)
	}

	orders, err := as.storage.FindAllOrders(ctx)
	if err != nil {
		return models.RecomputeResult{}, fmt.Errorf("%w: reading orders: %w", ErrRecomputeFailed, err)
	}

	var total models.Delta
	var recent int64
	for i := range orders {
		order := &orders[i]
		mergeDelta(&total, contribution(order, as.config.Location))

		if order.CreatedAt == nil {
			logger.Log.Warn("order without creation time", zap.String("orderID", order.ID))
			continue
		}
		if !order.CreatedAt.Before(cutoff) {
			recent++
		}
	}

	summary := models.Summary{
		TotalUsers:        users,
		TotalOrders:       total.Orders,
		OrdersLast30Days:  recent,
		PendingDeliveries: total.PendingDeliveries,
		TotalProductsSold: total.ProductsSold,
		TotalRevenue:      total.Revenue,
		UpdatedAt:         now,
	}

	months := make([]models.MonthlySales, 0, len(total.Months))
	for _, month := range total.Months {
		months = append(months, models.MonthlySales{
			MonthKey:      month.Month.Key,
			Month:         month.Month.Label,
			Year:          month.Month.Year,
			SalesAmount:   month.Sales,
			OrderCount:    month.OrderCount,
			SortTimestamp: month.Month.SortTimestamp,
		})
	}
	sort.Slice(months, func(i, j int) bool {
		return months[i].SortTimestamp.Before(months[j].SortTimestamp)
	})

	if err := as.storage.SaveSummary(ctx, summary); err != nil {
		return models.RecomputeResult{}, fmt.Errorf("%w: saving summary: %w", ErrRecomputeFailed, err)
	}

	if err := as.storage.ReplaceMonthlySales(ctx, months); err != nil {
		return models.RecomputeResult{}, fmt.Errorf("%w: saving monthly sales: %w", ErrRecomputeFailed, err)
	}

	logger.Log.Info("recomputed aggregates",
		zap.String("login", caller.Login),
		zap.Int("orders", len(orders)),
		zap.Int("months", len(months)),
		zap.Int64("users", users),
	)

	return models.RecomputeResult{
		Status:  "ok",
		Message: fmt.Sprintf("rebuilt aggregates from %d orders and %d users", len(orders), users),
		Orders:  len(orders),
		Months:  len(months),
	}, nil
}

func (as *AggregateService) GetSummary(ctx context.Context) (models.Summary, error) {
	summary, err := as.storage.FindSummary(ctx)
	if err != nil {
		return models.Summary{}, err
	}

	if summary == nil {
		return models.Summary{}, nil
	}

	return *summary, nil
}

func (as *AggregateService) GetMonthlySales(ctx context.Context) ([]models.MonthlySales, error) {
	months, err := as.storage.FindMonthlySales(ctx)
	if err != nil {
		return nil, err
	}

	sort.Slice(months, func(i, j int) bool {
		return months[i].SortTimestamp.Before(months[j].SortTimestamp)
	})

	return months, nil
}
