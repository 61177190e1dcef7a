package integration

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/safar/go-order-api/internal/database"
	"github.com/safar/go-order-api/internal/models"
	"github.com/safar/go-order-api/internal/service"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func TestCreateProduct(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	catalog := service.NewCatalog(db, zap.NewNop())

	product, err := catalog.CreateProduct(ctx, "Keyboard", decimal.RequireFromString("49.90"), 10)
	if err != nil {
		t.Fatalf("Create product: %v", err)
	}

	if product.ID == 0 {
		t.Error("Product ID should not be 0")
	}
	if product.Stock != 10 {
		t.Errorf("Expected stock 10, got %d", product.Stock)
	}
	if !product.Price.Equal(decimal.RequireFromString("49.90")) {
		t.Errorf("Expected price 49.90, got %s", product.Price)
	}
}

func TestCreateProductValidation(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	catalog := service.NewCatalog(db, zap.NewNop())

	cases := []struct {
		name  string
		price decimal.Decimal
		stock int
	}{
		{"", decimal.NewFromInt(10), 5},
		{"Mouse", decimal.NewFromInt(-1), 5},
		{"Mouse", decimal.NewFromInt(10), -5},
	}

	for _, tc := range cases {
		_, err := catalog.CreateProduct(ctx, tc.name, tc.price, tc.stock)
		if !errors.Is(err, database.ErrValidation) {
			t.Errorf("CreateProduct(%q, %s, %d): expected validation error, got %v",
				tc.name, tc.price, tc.stock, err)
		}
	}
}

func TestGetProductNotFound(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	catalog := service.NewCatalog(db, zap.NewNop())

	_, err := catalog.GetProduct(ctx, 9999)
	if !errors.Is(err, database.ErrProductNotFound) {
		t.Errorf("Expected product not found, got %v", err)
	}
}

func TestUpdateProduct(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	catalog := service.NewCatalog(db, zap.NewNop())

	product, err := catalog.CreateProduct(ctx, "Monitor", decimal.NewFromInt(200), 8)
	if err != nil {
		t.Fatalf("Create product: %v", err)
	}

	updated, err := catalog.UpdateProduct(ctx, product.ID, "Monitor 27\"", decimal.NewFromInt(250), 6)
	if err != nil {
		t.Fatalf("Update product: %v", err)
	}

	if updated.Name != "Monitor 27\"" {
		t.Errorf("Expected updated name, got %q", updated.Name)
	}
	if updated.Stock != 6 {
		t.Errorf("Expected stock 6, got %d", updated.Stock)
	}
	if updated.Version != product.Version+1 {
		t.Errorf("Expected version bump to %d, got %d", product.Version+1, updated.Version)
	}

	_, err = catalog.UpdateProduct(ctx, 9999, "Ghost", decimal.NewFromInt(1), 1)
	if !errors.Is(err, database.ErrProductNotFound) {
		t.Errorf("Expected product not found, got %v", err)
	}
}

func TestListProductsClampsPagination(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	catalog := service.NewCatalog(db, zap.NewNop())

	for i := 0; i < 5; i++ {
		_, err := catalog.CreateProduct(ctx, "Item", decimal.NewFromInt(10), 1)
		if err != nil {
			t.Fatalf("Create product %d: %v", i, err)
		}
	}

	// Invalid inputs fall back to page=1, pageSize=3.
	result, err := catalog.ListProducts(ctx, 0, 0)
	if err != nil {
		t.Fatalf("List products: %v", err)
	}

	if result.Page != 1 || result.PageSize != 3 {
		t.Errorf("Expected page=1 pageSize=3, got page=%d pageSize=%d", result.Page, result.PageSize)
	}

	products := result.Items.([]models.Product)
	if len(products) != 3 {
		t.Errorf("Expected 3 products on first page, got %d", len(products))
	}
	if result.Total != 5 {
		t.Errorf("Expected total 5, got %d", result.Total)
	}
	if result.TotalPages != 2 {
		t.Errorf("Expected 2 total pages, got %d", result.TotalPages)
	}
}

func TestAdjustStock(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	catalog := service.NewCatalog(db, zap.NewNop())

	product, err := catalog.CreateProduct(ctx, "Webcam", decimal.NewFromInt(80), 10)
	if err != nil {
		t.Fatalf("Create product: %v", err)
	}

	adjusted, err := catalog.AdjustStock(ctx, product.ID, -4)
	if err != nil {
		t.Fatalf("Adjust stock: %v", err)
	}
	if adjusted.Stock != 6 {
		t.Errorf("Expected stock 6, got %d", adjusted.Stock)
	}

	adjusted, err = catalog.AdjustStock(ctx, product.ID, 2)
	if err != nil {
		t.Fatalf("Adjust stock: %v", err)
	}
	if adjusted.Stock != 8 {
		t.Errorf("Expected stock 8, got %d", adjusted.Stock)
	}

	_, err = catalog.AdjustStock(ctx, product.ID, -20)
	if !errors.Is(err, database.ErrInsufficientStock) {
		t.Errorf("Expected insufficient stock, got %v", err)
	}

	after, err := catalog.GetProduct(ctx, product.ID)
	if err != nil {
		t.Fatalf("Get product: %v", err)
	}
	if after.Stock != 8 {
		t.Errorf("Stock should remain 8 after failed adjustment, got %d", after.Stock)
	}

	_, err = catalog.AdjustStock(ctx, 9999, -1)
	if !errors.Is(err, database.ErrProductNotFound) {
		t.Errorf("Expected product not found, got %v", err)
	}
}

func TestConcurrentStockAdjustments(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	catalog := service.NewCatalog(db, zap.NewNop())

	product, err := catalog.CreateProduct(ctx, "Cable", decimal.NewFromInt(5), 10)
	if err != nil {
		t.Fatalf("Create product: %v", err)
	}

	concurrency := 20
	var wg sync.WaitGroup
	results := make(chan error, concurrency)

	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := catalog.AdjustStock(ctx, product.ID, -1)
			results <- err
		}()
	}

	wg.Wait()
	close(results)

	successCount := 0
	insufficientCount := 0
	for err := range results {
		switch {
		case err == nil:
			successCount++
		case errors.Is(err, database.ErrInsufficientStock):
			insufficientCount++
		default:
			t.Errorf("Unexpected error: %v", err)
		}
	}

	if successCount != 10 {
		t.Errorf("Expected 10 successful decrements, got %d", successCount)
	}

	after, err := catalog.GetProduct(ctx, product.ID)
	if err != nil {
		t.Fatalf("Get product: %v", err)
	}
	if after.Stock != 0 {
		t.Errorf("Expected stock 0, got %d", after.Stock)
	}
}
