package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/safar/go-order-api/internal/database"
	"github.com/safar/go-order-api/internal/models"
)

// querier is satisfied by both *sql.DB and *sql.Tx, so reads can run inside or
// outside a transaction.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

func CreateOrder(ctx context.Context, db *sql.DB) (*models.Order, error) {
	order := &models.Order{}

	query := `
		INSERT INTO orders (status, created_at, updated_at)
		VALUES ($1, NOW(), NOW())
		RETURNING id, status, created_at, updated_at`

	err := db.QueryRowContext(ctx, query, models.StatusOpen).Scan(
		&order.ID,
		&order.Status,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	order.Items = []models.LineItem{}

	return order, nil
}

func GetOrder(ctx context.Context, db *sql.DB, id int64) (*models.Order, error) {
	return getOrder(ctx, db, id, false)
}

// GetOrderForUpdate locks the order row for the lifetime of the transaction,
// serializing concurrent line-item mutations on the same order.
func GetOrderForUpdate(ctx context.Context, tx *sql.Tx, id int64) (*models.Order, error) {
	return getOrder(ctx, tx, id, true)
}

func getOrder(ctx context.Context, q querier, id int64, forUpdate bool) (*models.Order, error) {
	order := &models.Order{}

	query := `
		SELECT id, status, created_at, updated_at
		FROM orders
		WHERE id = $1`
	if forUpdate {
		query += `
		FOR UPDATE`
	}

	err := q.QueryRowContext(ctx, query, id).Scan(
		&order.ID,
		&order.Status,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	itemsByOrder, err := loadLineItems(ctx, q, []int64{id})
	if err != nil {
		return nil, err
	}
	order.Items = itemsByOrder[id]
	if order.Items == nil {
		order.Items = []models.LineItem{}
	}

	return order, nil
}

// loadLineItems fetches the items for a set of orders in one query, joined
// with the product name for detail views. The join is a LEFT JOIN so a line
// item still surfaces when its product row is gone; the close operation
// depends on seeing such items to reject the order.
func loadLineItems(ctx context.Context, q querier, orderIDs []int64) (map[int64][]models.LineItem, error) {
	query := `
		SELECT i.order_id, i.product_id, COALESCE(p.name, ''), i.quantity, i.unit_price, i.created_at
		FROM order_items i
		LEFT JOIN products p ON p.id = i.product_id
		WHERE i.order_id = ANY($1)
		ORDER BY i.created_at, i.product_id`

	rows, err := q.QueryContext(ctx, query, pq.Array(orderIDs))
	if err != nil {
		return nil, fmt.Errorf("get order items: %w", err)
	}
	defer rows.Close()

	items := make(map[int64][]models.LineItem)
	for rows.Next() {
		var item models.LineItem
		err := rows.Scan(
			&item.OrderID,
			&item.ProductID,
			&item.ProductName,
			&item.Quantity,
			&item.UnitPrice,
			&item.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		items[item.OrderID] = append(items[item.OrderID], item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return items, nil
}

// ListOrders returns one page of orders with their items loaded, optionally
// narrowed to a status. Ordering is by id: stable insertion order within a
// single listing, nothing more.
func ListOrders(ctx context.Context, db *sql.DB, page, pageSize int, status *models.Status) (*OffsetPage, error) {
	countQuery := `SELECT COUNT(*) FROM orders`
	listQuery := `
		SELECT id, status, created_at, updated_at
		FROM orders`

	var args []interface{}
	if status != nil {
		countQuery += ` WHERE status = $1`
		listQuery += `
		WHERE status = $1`
		args = append(args, *status)
	}

	var total int64
	if err := db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count orders: %w", err)
	}

	offset := (page - 1) * pageSize
	listQuery += fmt.Sprintf(`
		ORDER BY id
		LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, pageSize, offset)

	rows, err := db.QueryContext(ctx, listQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var orders []models.Order
	var orderIDs []int64
	for rows.Next() {
		var order models.Order
		err := rows.Scan(
			&order.ID,
			&order.Status,
			&order.CreatedAt,
			&order.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, order)
		orderIDs = append(orderIDs, order.ID)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	if len(orderIDs) > 0 {
		itemsByOrder, err := loadLineItems(ctx, db, orderIDs)
		if err != nil {
			return nil, err
		}
		for i := range orders {
			orders[i].Items = itemsByOrder[orders[i].ID]
		}
	}

	return &OffsetPage{
		Items:      orders,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages(total, pageSize),
	}, nil
}

func InsertLineItem(ctx context.Context, tx *sql.Tx, item *models.LineItem) error {
	query := `
		INSERT INTO order_items (order_id, product_id, quantity, unit_price, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		RETURNING created_at`

	err := tx.QueryRowContext(ctx, query,
		item.OrderID, item.ProductID, item.Quantity, item.UnitPrice).Scan(&item.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return database.ErrDuplicateLineItem
		}
		return fmt.Errorf("insert line item: %w", err)
	}

	return nil
}

func DeleteLineItem(ctx context.Context, tx *sql.Tx, orderID, productID int64) error {
	result, err := tx.ExecContext(ctx,
		`DELETE FROM order_items WHERE order_id = $1 AND product_id = $2`,
		orderID, productID)
	if err != nil {
		return fmt.Errorf("delete line item: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return database.ErrLineItemNotFound
	}

	return nil
}

// UpdateOrderStatus persists a status change and returns the new updated_at,
// so callers can hand back the timestamp that was actually written.
func UpdateOrderStatus(ctx context.Context, tx *sql.Tx, id int64, status models.Status) (time.Time, error) {
	var updatedAt time.Time
	err := tx.QueryRowContext(ctx,
		`UPDATE orders SET status = $1, updated_at = NOW() WHERE id = $2
		 RETURNING updated_at`,
		status, id).Scan(&updatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return time.Time{}, database.ErrOrderNotFound
		}
		return time.Time{}, fmt.Errorf("update order status: %w", err)
	}

	return updatedAt, nil
}

// TouchOrder bumps updated_at without changing status and returns the new
// timestamp.
func TouchOrder(ctx context.Context, tx *sql.Tx, id int64) (time.Time, error) {
	var updatedAt time.Time
	err := tx.QueryRowContext(ctx,
		`UPDATE orders SET updated_at = NOW() WHERE id = $1
		 RETURNING updated_at`, id).Scan(&updatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return time.Time{}, database.ErrOrderNotFound
		}
		return time.Time{}, fmt.Errorf("touch order: %w", err)
	}

	return updatedAt, nil
}
