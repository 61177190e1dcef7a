package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/safar/go-order-api/internal/database"
	"github.com/safar/go-order-api/internal/models"
	"github.com/shopspring/decimal"
)

const productColumns = "id, name, price, stock, created_at, updated_at, version"

func scanProduct(row *sql.Row) (*models.Product, error) {
	product := &models.Product{}
	err := row.Scan(
		&product.ID,
		&product.Name,
		&product.Price,
		&product.Stock,
		&product.CreatedAt,
		&product.UpdatedAt,
		&product.Version,
	)
	if err != nil {
		return nil, err
	}
	return product, nil
}

func CreateProduct(ctx context.Context, q querier, name string, price decimal.Decimal, stock int) (*models.Product, error) {
	query := `
		INSERT INTO products (name, price, stock, created_at, updated_at, version)
		VALUES ($1, $2, $3, NOW(), NOW(), 1)
		RETURNING ` + productColumns

	product, err := scanProduct(q.QueryRowContext(ctx, query, name, price, stock))
	if err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}

	return product, nil
}

func GetProduct(ctx context.Context, db *sql.DB, id int64) (*models.Product, error) {
	query := `
		SELECT ` + productColumns + `
		FROM products
		WHERE id = $1`

	product, err := scanProduct(db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrProductNotFound
		}
		return nil, fmt.Errorf("get product: %w", err)
	}

	return product, nil
}

// LockProduct reads a product under FOR UPDATE, serializing concurrent stock
// checks on the same row for the lifetime of the transaction.
func LockProduct(ctx context.Context, tx *sql.Tx, id int64) (*models.Product, error) {
	query := `
		SELECT ` + productColumns + `
		FROM products
		WHERE id = $1
		FOR UPDATE`

	product, err := scanProduct(tx.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrProductNotFound
		}
		return nil, fmt.Errorf("lock product: %w", err)
	}

	return product, nil
}

func ProductExists(ctx context.Context, tx *sql.Tx, id int64) (bool, error) {
	var exists bool
	err := tx.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM products WHERE id = $1)",
		id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check product exists: %w", err)
	}
	return exists, nil
}

// UpdateProduct replaces the mutable fields of an existing product and bumps
// its version.
func UpdateProduct(ctx context.Context, q querier, id int64, name string, price decimal.Decimal, stock int) (*models.Product, error) {
	query := `
		UPDATE products
		SET name = $1, price = $2, stock = $3, updated_at = NOW(), version = version + 1
		WHERE id = $4
		RETURNING ` + productColumns

	product, err := scanProduct(q.QueryRowContext(ctx, query, name, price, stock, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrProductNotFound
		}
		return nil, fmt.Errorf("update product: %w", err)
	}

	return product, nil
}

// AdjustStock applies a signed delta to a product's stock. The WHERE clause
// guards the non-negative floor, so two concurrent adjustments can never
// jointly drive stock below zero.
func AdjustStock(ctx context.Context, tx *sql.Tx, id int64, delta int) (*models.Product, error) {
	query := `
		UPDATE products
		SET stock = stock + $1, updated_at = NOW()
		WHERE id = $2
		  AND stock + $1 >= 0
		RETURNING ` + productColumns

	product, err := scanProduct(tx.QueryRowContext(ctx, query, delta, id))
	if err == nil {
		return product, nil
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("adjust stock: %w", err)
	}

	// Zero rows: either the product is gone or the floor was hit.
	var exists bool
	if err := tx.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM products WHERE id = $1)",
		id).Scan(&exists); err != nil {
		return nil, fmt.Errorf("adjust stock: %w", err)
	}
	if !exists {
		return nil, database.ErrProductNotFound
	}
	return nil, database.ErrInsufficientStock
}

func ListProducts(ctx context.Context, db *sql.DB, page, pageSize int) (*OffsetPage, error) {
	var total int64
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM products`).Scan(&total)
	if err != nil {
		return nil, fmt.Errorf("count products: %w", err)
	}

	offset := (page - 1) * pageSize
	query := `
		SELECT ` + productColumns + `
		FROM products
		ORDER BY id
		LIMIT $1 OFFSET $2`

	rows, err := db.QueryContext(ctx, query, pageSize, offset)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var products []models.Product
	for rows.Next() {
		var product models.Product
		err := rows.Scan(
			&product.ID,
			&product.Name,
			&product.Price,
			&product.Stock,
			&product.CreatedAt,
			&product.UpdatedAt,
			&product.Version,
		)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, product)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return &OffsetPage{
		Items:      products,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages(total, pageSize),
	}, nil
}
