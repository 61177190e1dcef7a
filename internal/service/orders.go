package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/safar/go-order-api/internal/database"
	"github.com/safar/go-order-api/internal/models"
	"github.com/safar/go-order-api/internal/store"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Orders is the order lifecycle engine. Every mutation runs as a single
// transaction spanning the order and, when stock is touched, the product row:
// either both persist or neither does.
type Orders struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewOrders(db *sql.DB, logger *zap.Logger) *Orders {
	return &Orders{db: db, logger: logger}
}

// OrderDetail is the full view of an order, total recomputed from its items.
type OrderDetail struct {
	ID        int64             `json:"id"`
	Status    models.Status     `json:"status"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
	Total     decimal.Decimal   `json:"total"`
	Items     []models.LineItem `json:"items"`
}

// OrderSummary is the listing view: no item detail, total still recomputed.
type OrderSummary struct {
	ID        int64           `json:"id"`
	Status    models.Status   `json:"status"`
	CreatedAt time.Time       `json:"created_at"`
	Total     decimal.Decimal `json:"total"`
}

func newOrderDetail(order *models.Order) *OrderDetail {
	items := order.Items
	if items == nil {
		items = []models.LineItem{}
	}
	return &OrderDetail{
		ID:        order.ID,
		Status:    order.Status,
		CreatedAt: order.CreatedAt,
		UpdatedAt: order.UpdatedAt,
		Total:     order.Total(),
		Items:     items,
	}
}

func lifecycleTxOptions() database.TxOptions {
	return database.TxOptions{
		IsolationLevel: sql.LevelSerializable,
		MaxRetries:     3,
	}
}

// Create starts a new empty order in the open status.
func (s *Orders) Create(ctx context.Context) (*OrderDetail, error) {
	order, err := store.CreateOrder(ctx, s.db)
	if err != nil {
		return nil, err
	}

	s.logger.Info("order created", zap.Int64("order_id", order.ID))

	return newOrderDetail(order), nil
}

// AddLineItem reserves stock for the product and appends a line item carrying
// the product's current price. Reservation happens here, synchronously: there
// is no separate commit phase, and closing the order does not touch stock
// again. An open order moves to in_progress on its first item.
func (s *Orders) AddLineItem(ctx context.Context, orderID, productID int64, quantity int) (*OrderDetail, error) {
	if quantity <= 0 {
		return nil, database.ValidationError("quantity must be greater than zero")
	}

	var result *models.Order

	err := database.WithRetry(ctx, s.db, lifecycleTxOptions(), func(tx *sql.Tx) error {
		order, err := store.GetOrderForUpdate(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if !order.Status.Mutable() {
			return database.ErrOrderClosed
		}
		for _, item := range order.Items {
			if item.ProductID == productID {
				return database.ErrDuplicateLineItem
			}
		}

		product, err := store.LockProduct(ctx, tx, productID)
		if err != nil {
			return err
		}
		if product.Stock < quantity {
			return database.ErrInsufficientStock
		}

		if _, err := store.AdjustStock(ctx, tx, productID, -quantity); err != nil {
			return err
		}

		item := models.LineItem{
			OrderID:     orderID,
			ProductID:   productID,
			ProductName: product.Name,
			Quantity:    quantity,
			UnitPrice:   product.Price,
		}
		if err := store.InsertLineItem(ctx, tx, &item); err != nil {
			return err
		}

		if order.Status == models.StatusOpen {
			updatedAt, err := store.UpdateOrderStatus(ctx, tx, orderID, models.StatusInProgress)
			if err != nil {
				return err
			}
			order.Status = models.StatusInProgress
			order.UpdatedAt = updatedAt
		} else {
			updatedAt, err := store.TouchOrder(ctx, tx, orderID)
			if err != nil {
				return err
			}
			order.UpdatedAt = updatedAt
		}

		order.Items = append(order.Items, item)
		result = order
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("line item added",
		zap.Int64("order_id", orderID),
		zap.Int64("product_id", productID),
		zap.Int("quantity", quantity),
	)

	return newOrderDetail(result), nil
}

// RemoveLineItem deletes the line item and returns its quantity to the
// product's stock. The order status never reverts to open.
func (s *Orders) RemoveLineItem(ctx context.Context, orderID, productID int64) (*OrderDetail, error) {
	var result *models.Order

	err := database.WithRetry(ctx, s.db, lifecycleTxOptions(), func(tx *sql.Tx) error {
		order, err := store.GetOrderForUpdate(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if !order.Status.Mutable() {
			return database.ErrOrderClosed
		}

		var removed *models.LineItem
		for i := range order.Items {
			if order.Items[i].ProductID == productID {
				removed = &order.Items[i]
				break
			}
		}
		if removed == nil {
			return database.ErrLineItemNotFound
		}

		if err := store.DeleteLineItem(ctx, tx, orderID, productID); err != nil {
			return err
		}

		// Restore the quantity recorded on the line item itself.
		if _, err := store.AdjustStock(ctx, tx, productID, removed.Quantity); err != nil {
			return err
		}

		updatedAt, err := store.TouchOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}
		order.UpdatedAt = updatedAt

		items := order.Items[:0]
		for _, item := range order.Items {
			if item.ProductID != productID {
				items = append(items, item)
			}
		}
		order.Items = items
		result = order
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("line item removed",
		zap.Int64("order_id", orderID),
		zap.Int64("product_id", productID),
	)

	return newOrderDetail(result), nil
}

// Close moves the order to its terminal status. Stock was already reserved
// when the items were added, so closing only re-verifies that every
// referenced product still exists.
func (s *Orders) Close(ctx context.Context, orderID int64) (*OrderDetail, error) {
	var result *models.Order

	err := database.WithRetry(ctx, s.db, lifecycleTxOptions(), func(tx *sql.Tx) error {
		order, err := store.GetOrderForUpdate(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if order.Status == models.StatusClosed {
			return database.ErrOrderAlreadyClosed
		}
		if len(order.Items) == 0 {
			return database.ErrEmptyOrder
		}

		for _, item := range order.Items {
			exists, err := store.ProductExists(ctx, tx, item.ProductID)
			if err != nil {
				return err
			}
			if !exists {
				return database.ErrProductNotFound
			}
		}

		updatedAt, err := store.UpdateOrderStatus(ctx, tx, orderID, models.StatusClosed)
		if err != nil {
			return err
		}
		order.Status = models.StatusClosed
		order.UpdatedAt = updatedAt
		result = order
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("order closed",
		zap.Int64("order_id", orderID),
		zap.String("total", result.Total().String()),
	)

	return newOrderDetail(result), nil
}

// Get returns the full order detail, line items joined with product names.
func (s *Orders) Get(ctx context.Context, orderID int64) (*OrderDetail, error) {
	order, err := store.GetOrder(ctx, s.db, orderID)
	if err != nil {
		return nil, err
	}
	return newOrderDetail(order), nil
}

// List returns one page of order summaries, optionally filtered by status.
func (s *Orders) List(ctx context.Context, page, pageSize int, status *models.Status) (*store.OffsetPage, error) {
	page, pageSize = store.ClampPage(page, pageSize)

	result, err := store.ListOrders(ctx, s.db, page, pageSize, status)
	if err != nil {
		return nil, err
	}

	orders := result.Items.([]models.Order)
	summaries := make([]OrderSummary, 0, len(orders))
	for i := range orders {
		summaries = append(summaries, OrderSummary{
			ID:        orders[i].ID,
			Status:    orders[i].Status,
			CreatedAt: orders[i].CreatedAt,
			Total:     orders[i].Total(),
		})
	}
	result.Items = summaries

	return result, nil
}
