// Package orders implements purchase-order fulfillment: creating orders from
// a material selection, quantity edits while draft, and the receipt pipeline
// that walks items and their materials to RECEIVED.
package orders

import (
	"fmt"
	"time"

	"github.com/atelier-erp/atelier-erp/internal/catalog"
	"github.com/atelier-erp/atelier-erp/internal/shared"
)

// OrderStatus is the fulfillment state of a purchase order.
type OrderStatus string

const (
	StatusDraft             OrderStatus = "DRAFT"
	StatusSent              OrderStatus = "SENT"
	StatusPartiallyReceived OrderStatus = "PARTIALLY_RECEIVED"
	StatusReceived          OrderStatus = "RECEIVED"
)

// ItemStatus is the receipt state of a single order item.
type ItemStatus string

const (
	ItemPending  ItemStatus = "PENDING"
	ItemReceived ItemStatus = "RECEIVED"
)

// Order is a purchase order issued to one supplier. TotalAmount is always a
// full re-sum over the current items, never an incremental delta.
type Order struct {
	ID           int64       `json:"id"`
	Number       string      `json:"number"`
	SupplierName string      `json:"supplier_name"`
	Status       OrderStatus `json:"status"`
	TotalAmount  float64     `json:"total_amount"`
	Version      int64       `json:"version"`
	Items        []Item      `json:"items"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

// Item is one ordered material line. ExpectedPrice is a snapshot taken at
// order creation; later material price changes never reach open orders.
type Item struct {
	ID            int64      `json:"id"`
	OrderID       int64      `json:"order_id"`
	MaterialID    int64      `json:"material_id"`
	ProductID     int64      `json:"product_id"`
	ProjectID     int64      `json:"project_id"`
	Qty           float64    `json:"qty"`
	Unit          string     `json:"unit"`
	ExpectedPrice float64    `json:"expected_price"`
	Status        ItemStatus `json:"status"`
}

// MaterialSnapshot is the locked read of a material taken inside the order
// transaction, joined with its product for the project reference.
type MaterialSnapshot struct {
	ID         int64
	ProductID  int64
	ProjectID  int64
	Name       string
	Qty        float64
	Unit       string
	TotalPrice float64
	Status     catalog.MaterialStatus
}

var (
	ErrNotFound     = fmt.Errorf("orders: %w", shared.ErrNotFound)
	ErrValidation   = fmt.Errorf("orders: %w", shared.ErrValidation)
	ErrInvalidState = fmt.Errorf("orders: %w", shared.ErrInvalidState)
	ErrStaleWrite   = fmt.Errorf("orders: %w", shared.ErrStaleWrite)
)

// SumItems re-sums expected prices over items.
func SumItems(items []Item) float64 {
	var total float64
	for _, item := range items {
		total += item.ExpectedPrice
	}
	return total
}

// ReceiptStatus derives the order status from its items' receipt states. An
// order with no received item keeps its current status.
func ReceiptStatus(current OrderStatus, items []Item) OrderStatus {
	if len(items) == 0 {
		return current
	}
	received := 0
	for _, item := range items {
		if item.Status == ItemReceived {
			received++
		}
	}
	switch {
	case received == len(items):
		return StatusReceived
	case received > 0:
		return StatusPartiallyReceived
	default:
		return current
	}
}
