package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Renal37/dessert-aggregator/internal/models"
	"github.com/jackc/pgx/v5"
)

var errEventAlreadyProcessed = errors.New("event already processed")

const (
	InsertProcessedEventQuery = `
		INSERT INTO
			processed_events (key, processed_at)
		VALUES ($1, $2)
		ON CONFLICT (key) DO NOTHING
	`
	DeleteProcessedEventsQuery = `
		DELETE FROM
			processed_events
		WHERE
			processed_at < $1
	`
	AddSummaryDeltaQuery = `
		INSERT INTO
			summary (id, total_users, total_orders, pending_deliveries, total_products_sold, total_revenue, updated_at)
		VALUES (1, $1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			total_users = summary.total_users + EXCLUDED.total_users,
			total_orders = summary.total_orders + EXCLUDED.total_orders,
			pending_deliveries = summary.pending_deliveries + EXCLUDED.pending_deliveries,
			total_products_sold = summary.total_products_sold + EXCLUDED.total_products_sold,
			total_revenue = summary.total_revenue + EXCLUDED.total_revenue,
			updated_at = EXCLUDED.updated_at
	`
	AddMonthDeltaQuery = `
		INSERT INTO
			monthly_sales (month_key, month_label, year, sales_amount, order_count, sort_timestamp)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (month_key) DO UPDATE SET
			sales_amount = monthly_sales.sales_amount + EXCLUDED.sales_amount,
			order_count = monthly_sales.order_count + EXCLUDED.order_count
	`
	DeleteEmptyMonthQuery = `
		DELETE FROM
			monthly_sales
		WHERE
			month_key = $1 AND order_count = 0
	`
	SaveSummaryQuery = `
		INSERT INTO
			summary (id, total_users, total_orders, orders_last_30_days, pending_deliveries, total_products_sold, total_revenue, updated_at)
		VALUES (1, $1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			total_users = EXCLUDED.total_users,
			total_orders = EXCLUDED.total_orders,
			orders_last_30_days = EXCLUDED.orders_last_30_days,
			pending_deliveries = EXCLUDED.pending_deliveries,
			total_products_sold = EXCLUDED.total_products_sold,
			total_revenue = EXCLUDED.total_revenue,
			updated_at = EXCLUDED.updated_at
	`
	SetRollingOrderCountQuery = `
		INSERT INTO
			summary (id, orders_last_30_days, updated_at)
		VALUES (1, $1, $2)
		ON CONFLICT (id) DO UPDATE SET
			orders_last_30_days = EXCLUDED.orders_last_30_days,
			updated_at = EXCLUDED.updated_at
	`
	DeleteMonthlySalesQuery = `
		DELETE FROM monthly_sales
	`
	InsertMonthlySalesQuery = `
		INSERT INTO
			monthly_sales (month_key, month_label, year, sales_amount, order_count, sort_timestamp)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	SelectSummaryQuery = `
		SELECT
			total_users,
			total_orders,
			orders_last_30_days,
			pending_deliveries,
			total_products_sold,
			total_revenue,
			updated_at
		FROM
			summary
		WHERE
			id = 1
	`
	SelectMonthlySalesQuery = `
		SELECT
			month_key,
			month_label,
			year,
			sales_amount,
			order_count,
			sort_timestamp
		FROM
			monthly_sales
		ORDER BY
			sort_timestamp
	`
)

// ApplyDelta adds delta to the summary and the touched month buckets in one
// transaction. When eventKey was processed before nothing is written and
// false is returned. An empty eventKey skips the redelivery check.
func (d *Database) ApplyDelta(ctx context.Context, eventKey string, delta models.Delta, now time.Time) (bool, error) {
	err := pgx.BeginTxFunc(ctx, d.db, pgx.TxOptions{}, func(tx pgx.Tx) error {
		if eventKey != "" {
			tag, err := tx.Exec(ctx, InsertProcessedEventQuery, eventKey, now)
			if err != nil {
				return fmt.Errorf("failed to mark event processed: %w", err)
			}
			if tag.RowsAffected() == 0 {
				return errEventAlreadyProcessed
			}
		}

		_, err := tx.Exec(ctx, AddSummaryDeltaQuery,
			delta.Users,
			delta.Orders,
			delta.PendingDeliveries,
			delta.ProductsSold,
			delta.Revenue,
			now,
		)
		if err != nil {
			return fmt.Errorf("failed to update summary: %w", err)
		}

		for _, month := range delta.Months {
			_, err := tx.Exec(ctx, AddMonthDeltaQuery,
				month.Month.Key,
				month.Month.Label,
				month.Month.Year,
				month.Sales,
				month.OrderCount,
				month.Month.SortTimestamp,
			)
			if err != nil {
				return fmt.Errorf("failed to update monthly sales %s: %w", month.Month.Key, err)
			}

			if _, err := tx.Exec(ctx, DeleteEmptyMonthQuery, month.Month.Key); err != nil {
				return fmt.Errorf("failed to drop empty month %s: %w", month.Month.Key, err)
			}
		}

		return nil
	})

	if errors.Is(err, errEventAlreadyProcessed) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	return true, nil
}

// SaveSummary overwrites the summary record.
func (d *Database) SaveSummary(ctx context.Context, summary models.Summary) error {
	return pgx.BeginTxFunc(ctx, d.db, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, SaveSummaryQuery,
			summary.TotalUsers,
			summary.TotalOrders,
			summary.OrdersLast30Days,
			summary.PendingDeliveries,
			summary.TotalProductsSold,
			summary.TotalRevenue,
			summary.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to save summary: %w", err)
		}
		return nil
	})
}

// ReplaceMonthlySales swaps every month bucket for months in one batch.
func (d *Database) ReplaceMonthlySales(ctx context.Context, months []models.MonthlySales) error {
	return pgx.BeginTxFunc(ctx, d.db, pgx.TxOptions{}, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		batch.Queue(DeleteMonthlySalesQuery)
		for _, month := range months {
			batch.Queue(InsertMonthlySalesQuery,
				month.MonthKey,
				month.Month,
				month.Year,
				month.SalesAmount,
				month.OrderCount,
				month.SortTimestamp,
			)
		}

		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("failed to replace monthly sales: %w", err)
		}
		return nil
	})
}

func (d *Database) SetRollingOrderCount(ctx context.Context, count int64, now time.Time) error {
	if _, err := d.db.Exec(ctx, SetRollingOrderCountQuery, count, now); err != nil {
		return fmt.Errorf("failed to save rolling order count: %w", err)
	}
	return nil
}

func (d *Database) PurgeProcessedEvents(ctx context.Context, before time.Time) (int64, error) {
	tag, err := d.db.Exec(ctx, DeleteProcessedEventsQuery, before)
	if err != nil {
		return 0, fmt.Errorf("failed to purge processed events: %w", err)
	}
	return tag.RowsAffected(), nil
}

// FindSummary returns nil without an error before the first aggregate write.
func (d *Database) FindSummary(ctx context.Context) (*models.Summary, error) {
	summary := &models.Summary{}

	err := d.db.QueryRow(ctx, SelectSummaryQuery).Scan(
		&summary.TotalUsers,
		&summary.TotalOrders,
		&summary.OrdersLast30Days,
		&summary.PendingDeliveries,
		&summary.TotalProductsSold,
		&summary.TotalRevenue,
		&summary.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read summary: %w", err)
	}

	return summary, nil
}

func (d *Database) FindMonthlySales(ctx context.Context) ([]models.MonthlySales, error) {
	rows, err := d.db.Query(ctx, SelectMonthlySalesQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to query monthly sales: %w", err)
	}
	defer rows.Close()

	result := []models.MonthlySales{}
	for rows.Next() {
		var month models.MonthlySales
		if err := rows.Scan(
			&month.MonthKey,
			&month.Month,
			&month.Year,
			&month.SalesAmount,
			&month.OrderCount,
			&month.SortTimestamp,
		); err != nil {
			return nil, fmt.Errorf("failed to scan monthly sales row: %w", err)
		}
		result = append(result, month)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate monthly sales rows: %w", err)
	}

	return result, nil
}
