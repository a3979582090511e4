package orders

import "time"

// CreateOrderRequest selects materials for a new purchase order.
type CreateOrderRequest struct {
	SupplierName string  `json:"supplier_name" validate:"required,max=120"`
	MaterialIDs  []int64 `json:"material_ids" validate:"required,min=1,dive,gt=0"`
}

// EditQuantityRequest changes one item's quantity while the order is a draft.
type EditQuantityRequest struct {
	Qty float64 `json:"qty" validate:"required,gt=0"`
}

// DeleteItemsRequest removes items from a draft order.
type DeleteItemsRequest struct {
	ItemIDs []int64 `json:"item_ids" validate:"required,min=1,dive,gt=0"`
}

// ReceiveItemsRequest marks items as received.
type ReceiveItemsRequest struct {
	ItemIDs []int64 `json:"item_ids" validate:"required,min=1,dive,gt=0"`
}

// MarkInStockRequest declares materials in stock without an order.
type MarkInStockRequest struct {
	MaterialIDs []int64 `json:"material_ids" validate:"required,min=1,dive,gt=0"`
}

// ListFilters narrows order listings.
type ListFilters struct {
	SupplierName string
	Status       OrderStatus
	Limit        int
	Offset       int
}

// Summary is the listing row for an order.
type Summary struct {
	ID           int64       `json:"id"`
	Number       string      `json:"number"`
	SupplierName string      `json:"supplier_name"`
	Status       OrderStatus `json:"status"`
	TotalAmount  float64     `json:"total_amount"`
	ItemCount    int         `json:"item_count"`
	CreatedAt    time.Time   `json:"created_at"`
}
