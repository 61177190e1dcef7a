package main

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/safar/go-order-api/internal/config"
	"github.com/safar/go-order-api/internal/database"
	"github.com/safar/go-order-api/internal/models"
	"github.com/safar/go-order-api/internal/observability"
	"github.com/safar/go-order-api/internal/service"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Load config: %v", err)
	}

	logger, err := observability.NewLogger(&cfg.Log)
	if err != nil {
		log.Fatalf("Build logger: %v", err)
	}
	defer logger.Sync()

	db, err := database.NewConnection(&cfg.Database)
	if err != nil {
		logger.Fatal("connect to database", zap.Error(err))
	}
	defer db.Close()

	logger.Info("connected to database")

	catalog := service.NewCatalog(db, logger)
	orders := service.NewOrders(db, logger)

	mux := http.NewServeMux()

	handle := func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, observability.Middleware(logger, pattern, h))
	}

	handle("/products", handleProducts(catalog, logger))
	handle("/products/", handleProductByID(catalog, logger))
	handle("/orders", handleOrders(orders, logger))
	handle("/orders/", handleOrderByID(orders, logger))
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      mux,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	logger.Info("server starting", zap.String("port", cfg.Server.Port))
	if err := server.ListenAndServe(); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}

func handleProducts(catalog *service.Catalog, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		switch r.Method {
		case http.MethodPost:
			var req struct {
				Name  string  `json:"name"`
				Price float64 `json:"price"`
				Stock int     `json:"stock"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				respondError(w, http.StatusBadRequest, "Invalid request body")
				return
			}

			product, err := catalog.CreateProduct(ctx, req.Name, decimal.NewFromFloat(req.Price), req.Stock)
			if err != nil {
				respondServiceError(w, logger, err)
				return
			}

			respondJSON(w, http.StatusCreated, product)

		case http.MethodGet:
			page, _ := strconv.Atoi(r.URL.Query().Get("page"))
			pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))

			result, err := catalog.ListProducts(ctx, page, pageSize)
			if err != nil {
				respondServiceError(w, logger, err)
				return
			}

			respondJSON(w, http.StatusOK, result)

		default:
			respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	}
}

func handleProductByID(catalog *service.Catalog, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		rest := strings.TrimPrefix(r.URL.Path, "/products/")
		parts := strings.Split(rest, "/")

		id, err := strconv.ParseInt(parts[0], 10, 64)
		if err != nil {
			respondError(w, http.StatusBadRequest, "Invalid product ID")
			return
		}

		// /products/{id}/stock
		if len(parts) == 2 && parts[1] == "stock" {
			if r.Method != http.MethodPatch {
				respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
				return
			}

			var req struct {
				Delta int `json:"delta"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				respondError(w, http.StatusBadRequest, "Invalid request body")
				return
			}

			product, err := catalog.AdjustStock(ctx, id, req.Delta)
			if err != nil {
				respondServiceError(w, logger, err)
				return
			}

			respondJSON(w, http.StatusOK, product)
			return
		}

		if len(parts) != 1 {
			respondError(w, http.StatusNotFound, "Not found")
			return
		}

		switch r.Method {
		case http.MethodGet:
			product, err := catalog.GetProduct(ctx, id)
			if err != nil {
				respondServiceError(w, logger, err)
				return
			}

			respondJSON(w, http.StatusOK, product)

		case http.MethodPut:
			var req struct {
				Name  string  `json:"name"`
				Price float64 `json:"price"`
				Stock int     `json:"stock"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				respondError(w, http.StatusBadRequest, "Invalid request body")
				return
			}

			product, err := catalog.UpdateProduct(ctx, id, req.Name, decimal.NewFromFloat(req.Price), req.Stock)
			if err != nil {
				respondServiceError(w, logger, err)
				return
			}

			respondJSON(w, http.StatusOK, product)

		default:
			respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	}
}

func handleOrders(orders *service.Orders, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		switch r.Method {
		case http.MethodPost:
			order, err := orders.Create(ctx)
			if err != nil {
				respondServiceError(w, logger, err)
				return
			}

			respondJSON(w, http.StatusCreated, order)

		case http.MethodGet:
			page, _ := strconv.Atoi(r.URL.Query().Get("page"))
			pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))

			var status *models.Status
			if raw := r.URL.Query().Get("status"); raw != "" {
				s := models.Status(raw)
				if !s.Valid() {
					respondError(w, http.StatusBadRequest, "Invalid status filter")
					return
				}
				status = &s
			}

			result, err := orders.List(ctx, page, pageSize, status)
			if err != nil {
				respondServiceError(w, logger, err)
				return
			}

			respondJSON(w, http.StatusOK, result)

		default:
			respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	}
}

func handleOrderByID(orders *service.Orders, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		rest := strings.TrimPrefix(r.URL.Path, "/orders/")
		parts := strings.Split(rest, "/")

		orderID, err := strconv.ParseInt(parts[0], 10, 64)
		if err != nil {
			respondError(w, http.StatusBadRequest, "Invalid order ID")
			return
		}

		switch {
		// /orders/{id}
		case len(parts) == 1:
			if r.Method != http.MethodGet {
				respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
				return
			}

			order, err := orders.Get(ctx, orderID)
			if err != nil {
				respondServiceError(w, logger, err)
				return
			}

			respondJSON(w, http.StatusOK, order)

		// /orders/{id}/close
		case len(parts) == 2 && parts[1] == "close":
			if r.Method != http.MethodPost {
				respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
				return
			}

			order, err := orders.Close(ctx, orderID)
			if err != nil {
				respondServiceError(w, logger, err)
				return
			}

			respondJSON(w, http.StatusOK, order)

		// /orders/{id}/items
		case len(parts) == 2 && parts[1] == "items":
			if r.Method != http.MethodPost {
				respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
				return
			}

			var req struct {
				ProductID int64 `json:"product_id"`
				Quantity  int   `json:"quantity"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				respondError(w, http.StatusBadRequest, "Invalid request body")
				return
			}

			order, err := orders.AddLineItem(ctx, orderID, req.ProductID, req.Quantity)
			if err != nil {
				respondServiceError(w, logger, err)
				return
			}

			respondJSON(w, http.StatusOK, order)

		// /orders/{id}/items/{productId}
		case len(parts) == 3 && parts[1] == "items":
			if r.Method != http.MethodDelete {
				respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
				return
			}

			productID, err := strconv.ParseInt(parts[2], 10, 64)
			if err != nil {
				respondError(w, http.StatusBadRequest, "Invalid product ID")
				return
			}

			order, err := orders.RemoveLineItem(ctx, orderID, productID)
			if err != nil {
				respondServiceError(w, logger, err)
				return
			}

			respondJSON(w, http.StatusOK, order)

		default:
			respondError(w, http.StatusNotFound, "Not found")
		}
	}
}

// respondServiceError maps the error taxonomy to response codes: absent
// entities are 404, business-rule violations are 400 with the rule's message,
// anything else is a 500 without internal detail.
func respondServiceError(w http.ResponseWriter, logger *zap.Logger, err error) {
	switch {
	case database.IsNotFound(err):
		respondError(w, http.StatusNotFound, err.Error())
	case database.IsBusinessRule(err):
		respondError(w, http.StatusBadRequest, err.Error())
	default:
		logger.Error("internal error", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "Internal server error")
	}
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("Error encoding JSON response: %v", err)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
