package service

import (
	"context"
	"database/sql"

	"github.com/safar/go-order-api/internal/database"
	"github.com/safar/go-order-api/internal/models"
	"github.com/safar/go-order-api/internal/store"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Catalog is the read/write facade over the product inventory. The order
// lifecycle goes through the same store primitives inside its own
// transactions; Catalog covers the standalone product operations.
type Catalog struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewCatalog(db *sql.DB, logger *zap.Logger) *Catalog {
	return &Catalog{db: db, logger: logger}
}

func validateProduct(name string, price decimal.Decimal, stock int) error {
	if name == "" {
		return database.ValidationError("product name must not be empty")
	}
	if price.IsNegative() {
		return database.ValidationError("product price must not be negative")
	}
	if stock < 0 {
		return database.ValidationError("product stock must not be negative")
	}
	return nil
}

func (c *Catalog) CreateProduct(ctx context.Context, name string, price decimal.Decimal, stock int) (*models.Product, error) {
	if err := validateProduct(name, price, stock); err != nil {
		return nil, err
	}

	var product *models.Product
	err := database.WithTransaction(ctx, c.db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		var err error
		product, err = store.CreateProduct(ctx, tx, name, price, stock)
		return err
	})
	if err != nil {
		return nil, err
	}

	c.logger.Info("product created",
		zap.Int64("product_id", product.ID),
		zap.String("name", product.Name),
		zap.Int("stock", product.Stock),
	)

	return product, nil
}

func (c *Catalog) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	return store.GetProduct(ctx, c.db, id)
}

func (c *Catalog) ListProducts(ctx context.Context, page, pageSize int) (*store.OffsetPage, error) {
	page, pageSize = store.ClampPage(page, pageSize)
	return store.ListProducts(ctx, c.db, page, pageSize)
}

func (c *Catalog) UpdateProduct(ctx context.Context, id int64, name string, price decimal.Decimal, stock int) (*models.Product, error) {
	if err := validateProduct(name, price, stock); err != nil {
		return nil, err
	}

	var product *models.Product
	err := database.WithTransaction(ctx, c.db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		var err error
		product, err = store.UpdateProduct(ctx, tx, id, name, price, stock)
		return err
	})
	if err != nil {
		return nil, err
	}

	c.logger.Info("product updated",
		zap.Int64("product_id", product.ID),
		zap.Int("version", product.Version),
	)

	return product, nil
}

// AdjustStock applies a signed stock delta in its own transaction. The store
// guard keeps the result non-negative under concurrent adjustments.
func (c *Catalog) AdjustStock(ctx context.Context, id int64, delta int) (*models.Product, error) {
	var product *models.Product

	err := database.WithRetry(ctx, c.db, database.TxOptions{
		IsolationLevel: sql.LevelReadCommitted,
		MaxRetries:     3,
	}, func(tx *sql.Tx) error {
		var err error
		product, err = store.AdjustStock(ctx, tx, id, delta)
		return err
	})
	if err != nil {
		return nil, err
	}

	c.logger.Info("stock adjusted",
		zap.Int64("product_id", id),
		zap.Int("delta", delta),
		zap.Int("stock", product.Stock),
	)

	return product, nil
}
