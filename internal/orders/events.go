package orders

import (
	"context"
	"time"
)

// OrderCreatedEvent is emitted after a purchase order is committed.
type OrderCreatedEvent struct {
	ID           int64
	Number       string
	SupplierName string
	TotalAmount  float64
	ItemCount    int
	CreatedAt    time.Time
}

// ItemsReceivedEvent is emitted after a receipt flips items and materials.
type ItemsReceivedEvent struct {
	OrderIDs   []int64
	ItemIDs    []int64
	ReceivedAt time.Time
}

// EventHandler receives fulfillment events. Dispatch is in-process and
// best-effort; handler errors are logged, never propagated.
type EventHandler interface {
	HandleOrderCreated(ctx context.Context, evt OrderCreatedEvent) error
	HandleItemsReceived(ctx context.Context, evt ItemsReceivedEvent) error
}
