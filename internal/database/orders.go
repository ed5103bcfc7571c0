package database

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"time"

	"github.com/Renal37/dessert-aggregator/internal/models"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrDuplicateOrder = errors.New("order already exists")
	ErrOrderNotFound  = errors.New("order not found")
)

const orderColumns = `
			id,
			user_id,
			status,
			total_amount,
			created_at,
			updated_at
`

const (
	InsertOrderQuery = `
		INSERT INTO
			orders (id, user_id, status, total_amount, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	InsertOrderItemQuery = `
		INSERT INTO
			order_items (order_id, position, product_id, name, price, quantity, image)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	SelectOrderForUpdateQuery = `
		SELECT` + orderColumns + `
		FROM
			orders
		WHERE
			id = $1
		FOR UPDATE
	`
	SelectOrdersByUserQuery = `
		SELECT` + orderColumns + `
		FROM
			orders
		WHERE
			user_id = $1
	`
	SelectAllOrdersQuery = `
		SELECT` + orderColumns + `
		FROM
			orders
		ORDER BY
			created_at
	`
	SelectOrderItemsQuery = `
		SELECT
			order_id,
			product_id,
			name,
			price,
			quantity,
			image
		FROM
			order_items
		WHERE
			order_id = ANY($1)
		ORDER BY
			order_id, position
	`
	SelectAllOrderItemsQuery = `
		SELECT
			order_id,
			product_id,
			name,
			price,
			quantity,
			image
		FROM
			order_items
		ORDER BY
			order_id, position
	`
	UpdateOrderStatusQuery = `
		UPDATE
			orders
		SET
			status = $2,
			updated_at = $3
		WHERE
			id = $1
	`
	DeleteOrderQuery = `
		DELETE FROM
			orders
		WHERE
			id = $1
	`
	CountOrdersSinceQuery = `
		SELECT
			count(*)
		FROM
			orders
		WHERE
			created_at >= $1
	`
)

// OrderStatusDB converts order statuses to and from their column value.
type OrderStatusDB struct {
	models.OrderStatus
}

func (s *OrderStatusDB) Scan(value interface{}) error {
	strVal, ok := value.(string)
	if !ok {
		return fmt.Errorf("order status must be a string, not %T", value)
	}

	status, _ := models.ParseOrderStatus(strVal)
	*s = OrderStatusDB{status}
	return nil
}

func (s OrderStatusDB) Value() (driver.Value, error) {
	return string(s.OrderStatus), nil
}

func scanOrder(row pgx.Row) (models.Order, error) {
	var (
		order     models.Order
		status    OrderStatusDB
		createdAt time.Time
		updatedAt time.Time
	)

	if err := row.Scan(&order.ID, &order.UserID, &status, &order.TotalAmount, &createdAt, &updatedAt); err != nil {
		return models.Order{}, err
	}

	createdAt = createdAt.UTC()
	updatedAt = updatedAt.UTC()
	order.Status = status.OrderStatus
	order.CreatedAt = &createdAt
	order.UpdatedAt = &updatedAt
	order.Items = []models.LineItem{}

	return order, nil
}

func collectOrders(rows pgx.Rows) ([]models.Order, error) {
	defer rows.Close()

	var result []models.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order row: %w", err)
		}
		result = append(result, order)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate order rows: %w", err)
	}

	return result, nil
}

// attachItems loads the line items of orders in one query.
func attachItems(ctx context.Context, executor DBExecutor, orders []models.Order, query string, args ...interface{}) error {
	rows, err := executor.Query(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to query order items: %w", err)
	}
	defer rows.Close()

	index := make(map[string]int, len(orders))
	for i := range orders {
		index[orders[i].ID] = i
	}

	for rows.Next() {
		var orderID string
		var item models.LineItem
		if err := rows.Scan(&orderID, &item.ProductID, &item.Name, &item.Price, &item.Quantity, &item.Image); err != nil {
			return fmt.Errorf("failed to scan order item row: %w", err)
		}

		if i, ok := index[orderID]; ok {
			orders[i].Items = append(orders[i].Items, item)
		}
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate order item rows: %w", err)
	}

	return nil
}

func orderIDs(orders []models.Order) []string {
	ids := make([]string, len(orders))
	for i, order := range orders {
		ids[i] = order.ID
	}
	return ids
}

// lockOrder reads an order with its items and keeps its row locked until tx ends.
func lockOrder(ctx context.Context, tx pgx.Tx, orderID string) (*models.Order, error) {
	order, err := scanOrder(tx.QueryRow(ctx, SelectOrderForUpdateQuery, orderID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to read order: %w", err)
	}

	orders := []models.Order{order}
	if err := attachItems(ctx, tx, orders, SelectOrderItemsQuery, orderIDs(orders)); err != nil {
		return nil, err
	}

	return &orders[0], nil
}

// CreateOrder stores an order together with its line items.
func (d *Database) CreateOrder(ctx context.Context, order models.Order) error {
	return pgx.BeginTxFunc(ctx, d.db, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, InsertOrderQuery,
			order.ID,
			order.UserID,
			OrderStatusDB{order.Status},
			order.TotalAmount,
			order.CreatedAt,
			order.UpdatedAt,
		)
		if err != nil {
			var e *pgconn.PgError
			if errors.As(err, &e) && e.Code == pgerrcode.UniqueViolation {
				return ErrDuplicateOrder
			}
			return fmt.Errorf("failed to create order: %w", err)
		}

		batch := &pgx.Batch{}
		for i, item := range order.Items {
			batch.Queue(InsertOrderItemQuery, order.ID, i, item.ProductID, item.Name, item.Price, item.Quantity, item.Image)
		}

		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("failed to create order items: %w", err)
		}

		return nil
	})
}

func (d *Database) FindOrdersByUser(ctx context.Context, userID string) ([]models.Order, error) {
	rows, err := d.db.Query(ctx, SelectOrdersByUserQuery, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query user orders: %w", err)
	}

	orders, err := collectOrders(rows)
	if err != nil {
		return nil, err
	}

	if len(orders) == 0 {
		return orders, nil
	}

	if err := attachItems(ctx, d.db, orders, SelectOrderItemsQuery, orderIDs(orders)); err != nil {
		return nil, err
	}

	return orders, nil
}

// FindAllOrders reads every order with its items.
func (d *Database) FindAllOrders(ctx context.Context) ([]models.Order, error) {
	rows, err := d.db.Query(ctx, SelectAllOrdersQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}

	orders, err := collectOrders(rows)
	if err != nil {
		return nil, err
	}

	if err := attachItems(ctx, d.db, orders, SelectAllOrderItemsQuery); err != nil {
		return nil, err
	}

	return orders, nil
}

// UpdateOrderStatus changes the status and returns the order as it was and as it is now.
func (d *Database) UpdateOrderStatus(ctx context.Context, orderID string, status models.OrderStatus, now time.Time) (*models.Order, *models.Order, error) {
	var before, after *models.Order

	err := pgx.BeginTxFunc(ctx, d.db, pgx.TxOptions{}, func(tx pgx.Tx) error {
		current, err := lockOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}

		if _, err := tx.Exec(ctx, UpdateOrderStatusQuery, orderID, OrderStatusDB{status}, now); err != nil {
			return fmt.Errorf("failed to update order status: %w", err)
		}

		updated := *current
		updated.Status = status
		updatedAt := now
		updated.UpdatedAt = &updatedAt

		before, after = current, &updated
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	return before, after, nil
}

// DeleteOrder removes an order and returns its last state.
func (d *Database) DeleteOrder(ctx context.Context, orderID string) (*models.Order, error) {
	var before *models.Order

	err := pgx.BeginTxFunc(ctx, d.db, pgx.TxOptions{}, func(tx pgx.Tx) error {
		current, err := lockOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}

		if _, err := tx.Exec(ctx, DeleteOrderQuery, orderID); err != nil {
			return fmt.Errorf("failed to delete order: %w", err)
		}

		before = current
		return nil
	})
	if err != nil {
		return nil, err
	}

	return before, nil
}

func (d *Database) CountOrdersSince(ctx context.Context, cutoff time.Time) (int64, error) {
	var count int64
	if err := d.db.QueryRow(ctx, CountOrdersSinceQuery, cutoff).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count orders: %w", err)
	}
	return count, nil
}
