package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID        int64           `json:"id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Stock     int             `json:"stock"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
	Version   int             `json:"version"`
}

type Order struct {
	ID        int64      `json:"id"`
	Status    Status     `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	Items     []LineItem `json:"items,omitempty"`
}

// Total is recomputed from the line items on every read; it is never stored,
// so it cannot drift from the items it is derived from.
func (o *Order) Total() decimal.Decimal {
	var total decimal.Decimal
	for _, item := range o.Items {
		total = total.Add(item.Subtotal())
	}
	return total
}

// LineItem is owned by its order: (order_id, product_id) is the composite key
// and rows are cascade-deleted with the order. UnitPrice is the product price
// captured when the item was added; later catalog price changes do not affect it.
type LineItem struct {
	OrderID     int64           `json:"order_id"`
	ProductID   int64           `json:"product_id"`
	ProductName string          `json:"product_name,omitempty"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	CreatedAt   time.Time       `json:"created_at"`
}

func (li LineItem) Subtotal() decimal.Decimal {
	return li.UnitPrice.Mul(decimal.NewFromInt(int64(li.Quantity)))
}

type Status string

const (
	StatusOpen       Status = "open"
	StatusInProgress Status = "in_progress"
	StatusClosed     Status = "closed"
)

func (s Status) Valid() bool {
	switch s {
	case StatusOpen, StatusInProgress, StatusClosed:
		return true
	}
	return false
}

// statusTransitions is the single source of truth for the order state machine.
// Closed has no outgoing edges: it is terminal.
var statusTransitions = map[Status][]Status{
	StatusOpen:       {StatusInProgress, StatusClosed},
	StatusInProgress: {StatusClosed},
	StatusClosed:     {},
}

func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range statusTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Mutable reports whether line items may still be added or removed.
func (s Status) Mutable() bool {
	return s == StatusOpen || s == StatusInProgress
}
